package chatview

import (
	"context"

	"rentchat/internal/domain/chat"
)

// ChatAPI is the conversation-store contract the view layer consumes. The
// production implementation is the REST client; tests use a fake.
type ChatAPI interface {
	// ListConversations returns the user's threads, most recently active first.
	ListConversations(ctx context.Context, userID string) ([]chat.Conversation, error)
	// ListMessages returns messages exchanged with the participant. Order is
	// not guaranteed; callers sort before display.
	ListMessages(ctx context.Context, userID, participantID string, limit int) ([]chat.Message, error)
	// SendMessage posts a text message addressed to the receiver.
	SendMessage(ctx context.Context, userID, receiverID, content string) error
	// MarkRead reports that the user opened the conversation. Callers do not
	// wait on it before updating local state.
	MarkRead(ctx context.Context, userID, conversationID string) error
}
