package ports

import (
	"context"
	"time"

	"github.com/clinicdesk/staff-portal/internal/core/domain"
)

// CreateUserInput carries a new account's plaintext credentials.
type CreateUserInput struct {
	Identity string
	Secret   string
	Role     string
}

// UserService implements account management. Every method authorizes the
// actor against the role policy before touching the store.
type UserService interface {
	CreateUser(ctx context.Context, actor *domain.Principal, in CreateUserInput) (*domain.User, error)
	ListUsers(ctx context.Context, actor *domain.Principal) ([]*domain.User, error)
	UpdateIdentity(ctx context.Context, actor *domain.Principal, targetID, identity string) error
	DeleteUser(ctx context.Context, actor *domain.Principal, targetID string) error
	GetProfile(ctx context.Context, actor *domain.Principal) (*Profile, error)
	ChangeOwnPassword(ctx context.Context, actor *domain.Principal, current, next string) error
}

// Profile is the caller's own view of their account. Demo identities have no
// stored record, so CreatedAt is zero for them.
type Profile struct {
	SubjectID   string
	Username    string
	DisplayName string
	Role        domain.Role
	Demo        bool
	CreatedAt   time.Time
}
