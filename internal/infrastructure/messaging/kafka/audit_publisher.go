package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/clinicdesk/staff-portal/internal/core/domain"
)

const defaultTopic = "portal.auth-events"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// AuditPublisher implements ports.AuditSink by publishing JSON events to a
// Kafka topic, keyed by subject so one subject's events share a partition.
type AuditPublisher struct {
	writer messageWriter
}

// NewAuditPublisher returns a publisher writing to topic on brokers.
func NewAuditPublisher(brokers []string, topic string) *AuditPublisher {
	if topic == "" {
		topic = defaultTopic
	}
	return &AuditPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireOne,
			BatchTimeout:           50 * time.Millisecond,
			AllowAutoTopicCreation: true,
		},
	}
}

func (p *AuditPublisher) Record(ctx context.Context, event domain.AuthEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("kafka: marshal audit event: %w", err)
	}

	key := event.SubjectID
	if key == "" {
		key = string(event.Kind)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: data,
		Time:  event.At,
		Headers: []kafka.Header{
			{Key: "kind", Value: []byte(event.Kind)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka: publish audit event: %w", err)
	}
	return nil
}

// Close flushes pending messages and releases the writer.
func (p *AuditPublisher) Close() error {
	return p.writer.Close()
}
