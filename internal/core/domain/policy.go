package domain

import "slices"

// Operation names an action guarded by the role policy.
type Operation string

const (
	OpCreateUser         Operation = "create-user"
	OpListUsers          Operation = "list-all-users"
	OpUpdateUserIdentity Operation = "update-user-identity"
	OpDeleteUser         Operation = "delete-user"
	OpViewOwnProfile     Operation = "view-own-profile"
	OpChangeOwnPassword  Operation = "change-own-password"
)

// policy is the single source of truth for both server enforcement and
// client navigation gating.
var policy = map[Operation][]Role{
	OpCreateUser:         {RoleAdmin},
	OpListUsers:          {RoleAdmin},
	OpUpdateUserIdentity: {RoleAdmin},
	OpDeleteUser:         {RoleAdmin},
	OpViewOwnProfile:     {RoleAdmin, RoleStaff, RoleDoctor},
	OpChangeOwnPassword:  {RoleAdmin, RoleStaff, RoleDoctor},
}

// AllOperations returns every guarded operation in a stable order.
func AllOperations() []Operation {
	return []Operation{
		OpCreateUser,
		OpListUsers,
		OpUpdateUserIdentity,
		OpDeleteUser,
		OpViewOwnProfile,
		OpChangeOwnPassword,
	}
}

// AllowedRoles returns a copy of the roles permitted to perform op.
// Unknown operations yield nil.
func AllowedRoles(op Operation) []Role {
	return slices.Clone(policy[op])
}

// Authorize returns nil when role may perform op and ErrForbidden otherwise.
// Unknown roles and operations are always forbidden.
func Authorize(role Role, op Operation) error {
	if !role.Valid() {
		return ErrForbidden
	}
	if slices.Contains(policy[op], role) {
		return nil
	}
	return ErrForbidden
}
