package ports

import (
	"time"

	"github.com/clinicdesk/staff-portal/internal/core/domain"
)

// PasswordHasher turns secrets into stored digests and checks candidates
// against them.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, digest string) bool
}

// TokenIssuer signs and verifies session tokens. Verify distinguishes
// domain.ErrTokenInvalid from domain.ErrTokenExpired.
type TokenIssuer interface {
	Issue(p domain.Principal, ttl time.Duration) (token string, expiresAt time.Time, err error)
	Verify(token string) (*domain.Principal, error)
}

// IdentityCipher encrypts usernames before they reach a store.
type IdentityCipher interface {
	Encrypt(identity string) (string, error)
	Decrypt(encoded string) (string, error)
}
