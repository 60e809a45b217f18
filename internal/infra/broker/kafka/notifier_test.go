package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturingPublisher struct {
	records []Record
	err     error
}

func (p *capturingPublisher) Publish(_ context.Context, rec Record) error {
	p.records = append(p.records, rec)
	return p.err
}

func TestNotifierPublishesKeyedEvent(t *testing.T) {
	pub := &capturingPublisher{}
	n := NewNotifier(pub, "chat.conversation.updated", nil)

	n.ConversationUpdated(context.Background(), "c-1", []string{"ana", "luis"}, ReasonMessageSent)

	require.Len(t, pub.records, 1)
	rec := pub.records[0]
	assert.Equal(t, "chat.conversation.updated", rec.Topic)
	assert.Equal(t, "c-1", rec.Key, "records are keyed by conversation id")
	assert.Equal(t, "conversation.updated", rec.Headers["event"])
	assert.Equal(t, ReasonMessageSent, rec.Headers["reason"])

	var ev ConversationUpdated
	require.NoError(t, json.Unmarshal(rec.Payload, &ev))
	assert.Equal(t, "c-1", ev.ConversationID)
	assert.ElementsMatch(t, []string{"ana", "luis"}, ev.Participants)
	assert.Equal(t, ReasonMessageSent, ev.Reason)
	assert.False(t, ev.OccurredAt.IsZero())
}

func TestNotifierSwallowsPublishFailure(t *testing.T) {
	pub := &capturingPublisher{err: errors.New("broker down")}
	n := NewNotifier(pub, "chat.conversation.updated", nil)

	n.ConversationUpdated(context.Background(), "c-1", []string{"ana"}, ReasonMarkedRead)

	require.Len(t, pub.records, 1, "the publish is attempted and the failure swallowed")
}

func TestNotifierNilIsNoOp(t *testing.T) {
	var n *Notifier
	n.ConversationUpdated(context.Background(), "c-1", nil, ReasonMarkedRead)
}
