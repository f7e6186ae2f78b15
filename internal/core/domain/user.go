package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Role is the authorisation tier of a portal account. Only the values
// declared below are valid; use ParseRole for untrusted input.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleStaff  Role = "staff"
	RoleDoctor Role = "doctor"
)

// AllRoles lists every valid role.
var AllRoles = []Role{RoleAdmin, RoleStaff, RoleDoctor}

// ParseRole converts s into a Role, rejecting anything outside the closed set.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", ErrBadRequest
	}
	return r, nil
}

// Valid reports whether r is one of the declared roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleStaff, RoleDoctor:
		return true
	}
	return false
}

func (r Role) String() string { return string(r) }

// User models a persisted portal account. Identity is held in plaintext only
// in memory; stores persist it encrypted.
type User struct {
	ID         string    `json:"id"`
	Identity   string    `json:"username"`
	SecretHash string    `json:"-"`
	Role       Role      `json:"role"`
	CreatedAt  time.Time `json:"created_at"`
}

// DisplayName is the name shown for persisted accounts, which carry no
// separate profile name.
func (u *User) DisplayName() string {
	return u.Identity
}

// Length bounds applied to usernames and passwords on account creation
// and change, counted in characters like the request validator's min/max
// tags. Login input is only checked for presence.
const (
	MinIdentityLength = 3
	MaxIdentityLength = 64
	MinSecretLength   = 6
	MaxSecretLength   = 72
)

// MaxSecretBytes is bcrypt's input limit.
const MaxSecretBytes = 72

// ValidateIdentity checks a username destined for the credential store.
func ValidateIdentity(identity string) error {
	if n := utf8.RuneCountInString(identity); n < MinIdentityLength || n > MaxIdentityLength {
		return fmt.Errorf("%w: username must be between %d and %d characters", ErrBadRequest, MinIdentityLength, MaxIdentityLength)
	}
	if strings.TrimSpace(identity) != identity {
		return fmt.Errorf("%w: username must not have leading or trailing spaces", ErrBadRequest)
	}
	return nil
}

// ValidateSecret checks a new password.
func ValidateSecret(secret string) error {
	if n := utf8.RuneCountInString(secret); n < MinSecretLength || n > MaxSecretLength {
		return fmt.Errorf("%w: password must be between %d and %d characters", ErrBadRequest, MinSecretLength, MaxSecretLength)
	}
	if len(secret) > MaxSecretBytes {
		return fmt.Errorf("%w: password must be at most %d bytes", ErrBadRequest, MaxSecretBytes)
	}
	return nil
}
