package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicdesk/staff-portal/internal/core/domain"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestAuditPublisher_Record(t *testing.T) {
	w := &fakeWriter{}
	p := &AuditPublisher{writer: w}
	at := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	err := p.Record(context.Background(), domain.AuthEvent{
		Kind:      domain.EventUserMutation,
		SubjectID: "admin",
		Role:      domain.RoleAdmin,
		Operation: domain.OpDeleteUser,
		TargetID:  "42",
		Outcome:   "success",
		At:        at,
	})
	require.NoError(t, err)
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "admin", string(msg.Key))
	assert.Equal(t, at, msg.Time)

	var decoded domain.AuthEvent
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, domain.OpDeleteUser, decoded.Operation)
	assert.Equal(t, "42", decoded.TargetID)
}

func TestAuditPublisher_KeyFallsBackToKind(t *testing.T) {
	w := &fakeWriter{}
	p := &AuditPublisher{writer: w}

	require.NoError(t, p.Record(context.Background(), domain.AuthEvent{Kind: domain.EventLogin, Outcome: "invalid_credentials"}))
	assert.Equal(t, "login", string(w.msgs[0].Key))
}

func TestAuditPublisher_WriteError(t *testing.T) {
	p := &AuditPublisher{writer: &fakeWriter{err: errors.New("broker down")}}

	err := p.Record(context.Background(), domain.AuthEvent{Kind: domain.EventLogin})
	assert.ErrorContains(t, err, "broker down")
}

func TestAuditPublisher_Close(t *testing.T) {
	w := &fakeWriter{}
	p := &AuditPublisher{writer: w}

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestNewAuditPublisher_DefaultTopic(t *testing.T) {
	p := NewAuditPublisher([]string{"localhost:9092"}, "")
	w, ok := p.writer.(*kafka.Writer)
	require.True(t, ok)
	assert.Equal(t, defaultTopic, w.Topic)
}
