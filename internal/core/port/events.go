package port

import (
	"context"

	"github.com/arklim/petclub-iam/internal/core/domain"
)

// EventPublisher publishes auth lifecycle events to the message bus.
type EventPublisher interface {
	PublishAuthEvent(ctx context.Context, event domain.AuthEvent) error
}

// Mailer delivers transactional email.
type Mailer interface {
	Send(ctx context.Context, msg MailMessage) error
}

// MailMessage is a rendered email ready for delivery.
type MailMessage struct {
	To       string
	Subject  string
	TextBody string
	HTMLBody string
}

// AuthMetrics records auth outcome counters.
type AuthMetrics interface {
	ObserveSignIn(outcome string)
	ObserveRefresh(outcome string)
	ObserveRevocation(reason string)
}
