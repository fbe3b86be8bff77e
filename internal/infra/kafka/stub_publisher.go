package kafka

import (
	"context"

	"go.uber.org/zap"

	"github.com/arklim/petclub-iam/internal/core/domain"
	"github.com/arklim/petclub-iam/internal/core/port"
)

// StubPublisher logs events instead of sending them to Kafka. Useful for development environments.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a development-friendly event publisher.
func NewStubPublisher(logger *zap.Logger) *StubPublisher {
	return &StubPublisher{logger: logger}
}

func (p *StubPublisher) PublishAuthEvent(_ context.Context, event domain.AuthEvent) error {
	p.logger.Info("stub event published",
		zap.String("event_type", string(event.Type)),
		zap.String("user_id", event.UserID),
		zap.Time("timestamp", event.OccurredAt.UTC()),
		zap.Any("metadata", event.Metadata),
	)
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)
