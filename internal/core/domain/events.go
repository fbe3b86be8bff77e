package domain

import "time"

// AuthEventType names an auth lifecycle event published to the bus.
type AuthEventType string

const (
	EventUserSignedUp           AuthEventType = "user.signed_up"
	EventUserSignedIn           AuthEventType = "user.signed_in"
	EventSessionRefreshed       AuthEventType = "session.refreshed"
	EventSessionSignedOut       AuthEventType = "session.signed_out"
	EventRefreshReuseDetected   AuthEventType = "session.refresh_reuse_detected"
	EventPasswordResetRequested AuthEventType = "password.reset_requested"
	EventPasswordResetCompleted AuthEventType = "password.reset_completed"
)

// AuthEvent is the payload for every auth lifecycle message.
type AuthEvent struct {
	EventID    string
	Type       AuthEventType
	UserID     string
	Role       Role
	ActorID    string
	OccurredAt time.Time
	Metadata   map[string]any
}
