package queue

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/clinicdesk/staff-portal/internal/core/domain"
)

// LogSink writes audit events to the structured log. It backs AUDIT_SINK=log.
type LogSink struct {
	log zerolog.Logger
}

func NewLogSink(log zerolog.Logger) *LogSink {
	return &LogSink{log: log.With().Str("component", "audit").Logger()}
}

func (s *LogSink) Record(_ context.Context, event domain.AuthEvent) error {
	s.log.Info().
		Str("kind", string(event.Kind)).
		Str("subject_id", event.SubjectID).
		Str("role", string(event.Role)).
		Str("operation", string(event.Operation)).
		Str("target_id", event.TargetID).
		Str("outcome", event.Outcome).
		Time("at", event.At).
		Msg("audit event")
	return nil
}
