package ports

import (
	"context"

	"github.com/clinicdesk/staff-portal/internal/core/domain"
)

// AuditSink persists audit events.
type AuditSink interface {
	Record(ctx context.Context, event domain.AuthEvent) error
}

// AuditRecorder accepts events without blocking the caller.
type AuditRecorder interface {
	Enqueue(event domain.AuthEvent)
}
