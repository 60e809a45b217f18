package chatview

import (
	"context"
	"log/slog"
	"time"

	"rentchat/internal/domain/chat"
)

// Stats are the derived counters shown above the conversation list. They are
// recomputed from the list on every load, never stored.
type Stats struct {
	Total       int
	Unread      int
	ActiveToday int
}

// ListPanel loads and filters the conversation list.
type ListPanel struct {
	api    ChatAPI
	logger *slog.Logger
}

// NewListPanel builds a panel over the conversation-store API.
func NewListPanel(api ChatAPI, logger *slog.Logger) *ListPanel {
	return &ListPanel{api: api, logger: logger}
}

// Load fetches the user's conversations. Failures degrade to an empty list:
// the panel logs and renders empty rather than breaking the page.
func (p *ListPanel) Load(ctx context.Context, userID string) []chat.Conversation {
	conversations, err := p.api.ListConversations(ctx, userID)
	if err != nil {
		if p.logger != nil {
			p.logger.Error("load conversations failed", "error", err, "user_id", userID)
		}
		return []chat.Conversation{}
	}
	return conversations
}

// Filter returns the conversations matching the search term. Matching is
// case-insensitive over participant name, property address and last-message
// content; an empty term returns the input unchanged.
func Filter(conversations []chat.Conversation, term string) []chat.Conversation {
	out := make([]chat.Conversation, 0, len(conversations))
	for _, conv := range conversations {
		if conv.MatchesSearch(term) {
			out = append(out, conv)
		}
	}
	return out
}

// ComputeStats derives the list counters.
func ComputeStats(conversations []chat.Conversation, now time.Time) Stats {
	stats := Stats{Total: len(conversations)}
	for _, conv := range conversations {
		stats.Unread += conv.UnreadCount
		if conv.ActiveOn(now) {
			stats.ActiveToday++
		}
	}
	return stats
}
