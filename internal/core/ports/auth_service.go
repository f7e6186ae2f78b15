package ports

import (
	"context"
	"time"

	"github.com/clinicdesk/staff-portal/internal/core/domain"
)

// LoginResult is returned on successful authentication.
type LoginResult struct {
	Token       string
	ExpiresAt   time.Time
	SubjectID   string
	Role        domain.Role
	DisplayName string
}

type AuthService interface {
	Login(ctx context.Context, identity, secret string) (*LoginResult, error)
	// Authenticate verifies a raw bearer token. Every failure is
	// domain.ErrUnauthenticated.
	Authenticate(ctx context.Context, rawToken string) (*domain.Principal, error)
}

// LoginThrottle tracks failed logins per identity.
type LoginThrottle interface {
	Blocked(ctx context.Context, identity string) (bool, error)
	RecordFailure(ctx context.Context, identity string) error
	Reset(ctx context.Context, identity string) error
}
