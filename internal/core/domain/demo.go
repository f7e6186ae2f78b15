package domain

import "crypto/subtle"

// DemoIdentity is one of the built-in accounts that authenticate without
// touching the credential store.
type DemoIdentity int

const (
	DemoAdmin DemoIdentity = iota + 1
	DemoStaff
	DemoDoctor
)

type demoAccount struct {
	username    string
	password    string
	displayName string
	role        Role
}

var demoAccounts = map[DemoIdentity]demoAccount{
	DemoAdmin:  {username: "admin", password: "admin", displayName: "Demo Administrator", role: RoleAdmin},
	DemoStaff:  {username: "staff", password: "staff", displayName: "Demo Staff", role: RoleStaff},
	DemoDoctor: {username: "doctor", password: "doctor", displayName: "Demo Doctor", role: RoleDoctor},
}

// DemoIdentities lists the built-in accounts.
var DemoIdentities = []DemoIdentity{DemoAdmin, DemoStaff, DemoDoctor}

// LookupDemoIdentity finds the built-in account whose username equals
// username exactly.
func LookupDemoIdentity(username string) (DemoIdentity, bool) {
	for _, d := range DemoIdentities {
		if demoAccounts[d].username == username {
			return d, true
		}
	}
	return 0, false
}

func (d DemoIdentity) Username() string    { return demoAccounts[d].username }
func (d DemoIdentity) DisplayName() string { return demoAccounts[d].displayName }
func (d DemoIdentity) Role() Role          { return demoAccounts[d].role }

// Matches compares secret with the fixed plaintext password. No hashing is
// involved.
func (d DemoIdentity) Matches(secret string) bool {
	acc, ok := demoAccounts[d]
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(acc.password), []byte(secret)) == 1
}
