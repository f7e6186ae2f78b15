package domain

import (
	"context"
	"time"
)

// Principal is the identity resolved from a verified session token. Its
// fields are authoritative for the lifetime of a request.
type Principal struct {
	// SubjectID is the record id, or the raw username for demo identities.
	SubjectID   string
	Role        Role
	DisplayName string
	// Demo marks sessions issued to a built-in identity.
	Demo      bool
	ExpiresAt time.Time
}

type principalKey struct{}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom extracts the principal stored by WithPrincipal.
func PrincipalFrom(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	return p, ok && p != nil
}
