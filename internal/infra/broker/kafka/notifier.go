package kafka

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"
)

// ConversationUpdated is emitted whenever a thread changes: a message was
// sent or a participant marked it read. Consumers refresh their views from
// the REST API rather than trusting the event payload.
type ConversationUpdated struct {
	ConversationID string    `json:"conversation_id"`
	Participants   []string  `json:"participants"`
	Reason         string    `json:"reason"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// Update reasons.
const (
	ReasonMessageSent = "message_sent"
	ReasonMarkedRead  = "marked_read"
)

// publisher is the slice of Producer the notifier needs.
type publisher interface {
	Publish(ctx context.Context, rec Record) error
}

// Notifier publishes ConversationUpdated events to a single topic, keyed by
// conversation id so per-thread ordering is preserved.
type Notifier struct {
	producer publisher
	topic    string
	logger   *slog.Logger
}

// NewNotifier wires a producer to a topic.
func NewNotifier(producer publisher, topic string, logger *slog.Logger) *Notifier {
	return &Notifier{producer: producer, topic: topic, logger: logger}
}

// ConversationUpdated publishes the event. Delivery failures are logged and
// swallowed: eventing is best effort and must never fail the chat operation.
func (n *Notifier) ConversationUpdated(ctx context.Context, conversationID string, participants []string, reason string) {
	if n == nil || n.producer == nil {
		return
	}
	ev := ConversationUpdated{
		ConversationID: conversationID,
		Participants:   participants,
		Reason:         reason,
		OccurredAt:     time.Now().UTC(),
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		if n.logger != nil {
			n.logger.Error("encode conversation event failed", "error", err, "conversation_id", ev.ConversationID)
		}
		return
	}
	rec := Record{
		Topic:   n.topic,
		Key:     ev.ConversationID,
		Payload: payload,
		Headers: map[string]string{"event": "conversation.updated", "reason": ev.Reason},
	}
	if err := n.producer.Publish(ctx, rec); err != nil {
		if n.logger != nil {
			n.logger.Error("publish conversation event failed", "error", err, "conversation_id", ev.ConversationID, "topic", n.topic)
		}
	}
}
