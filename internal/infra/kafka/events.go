package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/arklim/petclub-iam/internal/core/domain"
	"github.com/arklim/petclub-iam/internal/core/port"
	"github.com/arklim/petclub-iam/internal/infra/config"
)

const schemaVersion = "1.0"

// EventPublisher implements port.EventPublisher using Kafka.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

// NewEventPublisher constructs a Kafka-backed event publisher.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *EventPublisher {
	return &EventPublisher{producer: producer, appCfg: appCfg, logger: logger}
}

type eventEnvelope struct {
	EventID   string            `json:"event_id"`
	EventType string            `json:"event_type"`
	UserID    string            `json:"user_id,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Version   string            `json:"version"`
	Payload   eventPayload      `json:"payload"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

type eventPayload struct {
	Role     string         `json:"role,omitempty"`
	ActorID  string         `json:"actor_id,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// PublishAuthEvent enqueues event keyed by user id so a user's events keep their order.
func (p *EventPublisher) PublishAuthEvent(ctx context.Context, event domain.AuthEvent) error {
	ts := event.OccurredAt
	if ts.IsZero() {
		ts = time.Now()
	}
	id := event.EventID
	if id == "" {
		id = uuid.NewString()
	}

	metadata := map[string]string{
		"service":     p.appCfg.Name,
		"environment": p.appCfg.Env,
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		metadata["trace_id"] = sc.TraceID().String()
	}

	body, err := json.Marshal(eventEnvelope{
		EventID:   id,
		EventType: string(event.Type),
		UserID:    event.UserID,
		Timestamp: ts.UTC(),
		Version:   schemaVersion,
		Payload: eventPayload{
			Role:     string(event.Role),
			ActorID:  event.ActorID,
			Metadata: event.Metadata,
		},
		Metadata: metadata,
	})
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(string(event.Type)),
		Key:   sarama.StringEncoder(event.UserID),
		Value: sarama.ByteEncoder(body),
	}

	select {
	case p.producer.Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var _ port.EventPublisher = (*EventPublisher)(nil)
