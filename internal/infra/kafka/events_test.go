package kafka

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"go.uber.org/zap/zaptest"

	"github.com/arklim/petclub-iam/internal/core/domain"
	"github.com/arklim/petclub-iam/internal/infra/config"
)

func TestPublishAuthEvent(t *testing.T) {
	cfg := mocks.NewTestConfig()
	cfg.Producer.Return.Successes = true
	asyncProducer := mocks.NewAsyncProducer(t, cfg)

	var captured []byte
	asyncProducer.ExpectInputWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != "petclub.session.signed_out" {
			t.Errorf("unexpected topic %q", msg.Topic)
		}
		key, _ := msg.Key.Encode()
		if string(key) != "user-1" {
			t.Errorf("unexpected key %q", key)
		}
		captured, _ = msg.Value.Encode()
		return nil
	})

	producer := newProducer(asyncProducer, "petclub", zaptest.NewLogger(t))
	publisher := NewEventPublisher(producer, config.AppSettings{Name: "petclub-iam", Env: "test"}, zaptest.NewLogger(t))

	occurred := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	err := publisher.PublishAuthEvent(context.Background(), domain.AuthEvent{
		EventID:    "evt-1",
		Type:       domain.EventSessionSignedOut,
		UserID:     "user-1",
		Role:       domain.RoleUser,
		OccurredAt: occurred,
	})
	if err != nil {
		t.Fatalf("PublishAuthEvent: %v", err)
	}

	<-asyncProducer.Successes()
	if err := producer.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	var envelope eventEnvelope
	if err := json.Unmarshal(captured, &envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if envelope.EventID != "evt-1" || envelope.EventType != "session.signed_out" || envelope.Version != schemaVersion {
		t.Fatalf("unexpected envelope: %+v", envelope)
	}
	if !envelope.Timestamp.Equal(occurred) || envelope.Payload.Role != "USER" {
		t.Fatalf("unexpected envelope payload: %+v", envelope)
	}
	if envelope.Metadata["service"] != "petclub-iam" {
		t.Fatalf("missing service metadata: %+v", envelope.Metadata)
	}
}

func TestPublishAuthEventHonoursContext(t *testing.T) {
	producer := &Producer{prefix: "petclub"}
	producer.producer = blockedProducer{}
	publisher := NewEventPublisher(producer, config.AppSettings{}, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := publisher.PublishAuthEvent(ctx, domain.AuthEvent{Type: domain.EventUserSignedUp, UserID: "u"}); err == nil {
		t.Fatalf("expected context cancellation error")
	}
}

func TestTopicName(t *testing.T) {
	p := &Producer{prefix: "petclub"}
	if got := p.TopicName("user.signed_up"); got != "petclub.user.signed_up" {
		t.Fatalf("unexpected topic %q", got)
	}
	if got := p.TopicName("petclub.user.signed_up"); got != "petclub.user.signed_up" {
		t.Fatalf("prefix should not be doubled: %q", got)
	}
	if got := (&Producer{}).TopicName("x"); got != "x" {
		t.Fatalf("unexpected topic %q", got)
	}
}

// blockedProducer never accepts input.
type blockedProducer struct{ sarama.AsyncProducer }

func (blockedProducer) Input() chan<- *sarama.ProducerMessage { return make(chan *sarama.ProducerMessage) }
