package chatview

import (
	"context"
	"log/slog"
	"time"

	"rentchat/internal/domain/chat"
)

// Phase is the controller's lifecycle state.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseLoading
	PhaseLoaded
	PhaseSending
)

// HandoffSource yields the one-shot "contact this person" payload, if any.
// Satisfied by the handoff slot implementations.
type HandoffSource interface {
	Take(ctx context.Context) (h chat.Handoff, ok bool, err error)
}

// ControllerConfig wires a Controller.
type ControllerConfig struct {
	API          ChatAPI
	Handoff      HandoffSource
	Logger       *slog.Logger
	MessageLimit int
	Now          func() time.Time
}

// Controller owns the chat view state: the conversation list, the active
// conversation with its messages, and the composer. It mirrors a
// single-threaded UI event loop and is not safe for concurrent use; callers
// invoke it from one goroutine.
type Controller struct {
	api          ChatAPI
	panel        *ListPanel
	handoff      HandoffSource
	logger       *slog.Logger
	now          func() time.Time
	messageLimit int

	userID        string
	conversations []chat.Conversation
	activeID      string
	messages      []chat.Message
	composer      Composer
	phase         Phase
	sending       bool
	loadGen       uint64
}

// NewController builds a controller. API is required.
func NewController(cfg ControllerConfig) *Controller {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	limit := cfg.MessageLimit
	if limit <= 0 {
		limit = 50
	}
	return &Controller{
		api:          cfg.API,
		panel:        NewListPanel(cfg.API, cfg.Logger),
		handoff:      cfg.Handoff,
		logger:       cfg.Logger,
		now:          now,
		messageLimit: limit,
	}
}

// Mount initializes the view for a user: consumes the pending handoff (if
// any), making the synthesized conversation visible and selected before the
// server list resolves, then loads the conversation list.
func (c *Controller) Mount(ctx context.Context, userID string) {
	c.userID = userID
	c.phase = PhaseIdle

	if c.handoff != nil {
		h, ok, err := c.handoff.Take(ctx)
		switch {
		case err != nil:
			c.warn("handoff payload discarded", "error", err)
		case ok:
			conv := h.Conversation(c.now())
			c.conversations = []chat.Conversation{conv}
			c.Select(ctx, conv.ID)
		}
	}

	c.RefreshConversations(ctx)
}

// RefreshConversations reloads the list from the server, preserving any
// synthesized conversations the server does not know about yet.
func (c *Controller) RefreshConversations(ctx context.Context) {
	server := c.panel.Load(ctx, c.userID)
	c.merge(server)
}

// Select makes the conversation active: zeroes its unread count locally,
// reports the read to the server without waiting on it, and loads the
// message history ascending by timestamp. A load that resolves after a newer
// selection is discarded.
func (c *Controller) Select(ctx context.Context, conversationID string) {
	conv := c.find(conversationID)
	if conv == nil {
		c.warn("select ignored: unknown conversation", "conversation_id", conversationID)
		return
	}
	c.activeID = conv.ID
	if conv.UnreadCount > 0 {
		conv.UnreadCount = 0
		if !conv.Synthetic {
			// Local state is authoritative for the view; the receipt is
			// fire-and-forget.
			if err := c.api.MarkRead(ctx, c.userID, conv.ID); err != nil {
				c.warn("mark read failed", "error", err, "conversation_id", conv.ID)
			}
		}
	}

	c.loadGen++
	gen := c.loadGen
	c.phase = PhaseLoading
	messages, err := c.api.ListMessages(ctx, c.userID, conv.ParticipantID, c.messageLimit)
	if gen != c.loadGen {
		// A newer selection superseded this load.
		return
	}
	if err != nil {
		c.error("load messages failed", "error", err, "participant_id", conv.ParticipantID)
		c.phase = PhaseLoaded
		return
	}
	chat.SortMessages(messages)
	c.messages = messages
	c.phase = PhaseLoaded
}

// Send posts the composer draft to the active conversation. It is a no-op
// when the draft is blank, nothing is selected, or a send is already in
// flight. Success clears the draft and reloads both the message list and the
// conversation list; failure preserves the draft for a manual retry.
func (c *Controller) Send(ctx context.Context) {
	if c.sending {
		return
	}
	active := c.find(c.activeID)
	if active == nil {
		return
	}
	content, err := chat.ValidateContent(c.composer.Draft())
	if err != nil {
		return
	}

	c.sending = true
	c.phase = PhaseSending
	err = c.api.SendMessage(ctx, c.userID, active.ParticipantID, content)
	c.sending = false
	if err != nil {
		c.error("send message failed", "error", err, "participant_id", active.ParticipantID)
		c.phase = PhaseLoaded
		return
	}
	c.composer.Clear()
	c.reloadActiveMessages(ctx)
	c.RefreshConversations(ctx)
	c.phase = PhaseLoaded
}

// Conversations returns the current list, filtered by the search term.
func (c *Controller) Conversations(searchTerm string) []chat.Conversation {
	return Filter(c.conversations, searchTerm)
}

// Messages returns the active conversation's history, ascending.
func (c *Controller) Messages() []chat.Message {
	return c.messages
}

// Rendered returns the display rows for the active conversation.
func (c *Controller) Rendered() []RenderedMessage {
	return RenderMessages(c.messages, c.userID, c.now())
}

// Active returns the selected conversation, if any.
func (c *Controller) Active() (chat.Conversation, bool) {
	if conv := c.find(c.activeID); conv != nil {
		return *conv, true
	}
	return chat.Conversation{}, false
}

// Stats derives the list counters.
func (c *Controller) Stats() Stats {
	return ComputeStats(c.conversations, c.now())
}

// Phase returns the controller lifecycle state.
func (c *Controller) Phase() Phase {
	return c.phase
}

// Sending reports whether a send is in flight.
func (c *Controller) Sending() bool {
	return c.sending
}

// Composer returns the composition bar state.
func (c *Controller) Composer() *Composer {
	return &c.composer
}

func (c *Controller) reloadActiveMessages(ctx context.Context) {
	active := c.find(c.activeID)
	if active == nil {
		return
	}
	c.loadGen++
	gen := c.loadGen
	messages, err := c.api.ListMessages(ctx, c.userID, active.ParticipantID, c.messageLimit)
	if gen != c.loadGen {
		return
	}
	if err != nil {
		c.error("reload messages failed", "error", err, "participant_id", active.ParticipantID)
		return
	}
	chat.SortMessages(messages)
	c.messages = messages
}

// merge replaces the list with the server's view, keeping synthesized
// conversations the server has not materialized yet. When the server now
// knows a thread that was synthesized locally, the server record wins and
// the selection follows it.
func (c *Controller) merge(server []chat.Conversation) {
	kept := make([]chat.Conversation, 0, 1)
	for _, conv := range c.conversations {
		if !conv.Synthetic {
			continue
		}
		if match := byParticipant(server, conv.ParticipantID); match != nil {
			if c.activeID == conv.ID {
				c.activeID = match.ID
			}
			continue
		}
		kept = append(kept, conv)
	}
	c.conversations = append(kept, server...)

	// The open conversation never shows unread.
	if active := c.find(c.activeID); active != nil {
		active.UnreadCount = 0
	}
}

func (c *Controller) find(id string) *chat.Conversation {
	if id == "" {
		return nil
	}
	for i := range c.conversations {
		if c.conversations[i].ID == id {
			return &c.conversations[i]
		}
	}
	return nil
}

func byParticipant(conversations []chat.Conversation, participantID string) *chat.Conversation {
	for i := range conversations {
		if conversations[i].ParticipantID == participantID {
			return &conversations[i]
		}
	}
	return nil
}

func (c *Controller) warn(msg string, attrs ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, attrs...)
	}
}

func (c *Controller) error(msg string, attrs ...any) {
	if c.logger != nil {
		c.logger.Error(msg, attrs...)
	}
}
