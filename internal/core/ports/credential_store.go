package ports

import (
	"context"

	"github.com/clinicdesk/staff-portal/internal/core/domain"
)

// CredentialStore persists portal accounts. Identities are handled in
// plaintext at this boundary; implementations encrypt them at rest.
type CredentialStore interface {
	// FindByIdentity decrypts every stored identity and returns the record
	// whose plaintext equals identity, or domain.ErrUserNotFound.
	FindByIdentity(ctx context.Context, identity string) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
	// Create returns domain.ErrDuplicateIdentity when identity is taken.
	Create(ctx context.Context, identity, secretHash string, role domain.Role) (*domain.User, error)
	UpdateIdentity(ctx context.Context, id, identity string) error
	UpdateSecret(ctx context.Context, id, secretHash string) error
	Delete(ctx context.Context, id string) error
	// List returns all records, newest first.
	List(ctx context.Context) ([]*domain.User, error)
	Ping(ctx context.Context) error
}
