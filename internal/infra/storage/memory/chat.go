package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"rentchat/internal/domain/chat"
)

var (
	// ErrConversationNotFound is returned when a thread cannot be located.
	ErrConversationNotFound = errors.New("memory: conversation not found")
	// ErrProfileNotFound is returned when a participant is unknown.
	ErrProfileNotFound = errors.New("memory: profile not found")
)

type threadKey struct {
	low, high string
}

func keyFor(a, b string) threadKey {
	if a < b {
		return threadKey{low: a, high: b}
	}
	return threadKey{low: b, high: a}
}

type thread struct {
	id              string
	key             threadKey
	propertyAddress string
	propertyTitle   string
	status          chat.ConversationStatus
	createdAt       time.Time
	messages        []storedMessage
	unread          map[string]int
	lastMessage     chat.LastMessage
}

type storedMessage struct {
	chat.Message
	receiverID string
}

// ChatStore is an in-memory conversation store used for local runs and tests.
type ChatStore struct {
	mu       sync.RWMutex
	profiles map[string]chat.Profile
	threads  map[threadKey]*thread
	byID     map[string]*thread
}

// NewChatStore builds an empty store.
func NewChatStore() *ChatStore {
	return &ChatStore{
		profiles: make(map[string]chat.Profile),
		threads:  make(map[threadKey]*thread),
		byID:     make(map[string]*thread),
	}
}

// UpsertProfile registers or updates a participant profile.
func (s *ChatStore) UpsertProfile(ctx context.Context, p chat.Profile) error {
	if p.ID == "" {
		return errors.New("memory: profile id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.ID] = p
	return nil
}

// Profile returns a participant profile or ErrProfileNotFound.
func (s *ChatStore) Profile(ctx context.Context, id string) (chat.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[id]
	if !ok {
		return chat.Profile{}, ErrProfileNotFound
	}
	return p, nil
}

// SendMessage appends a message to the thread between sender and receiver,
// creating the thread on first contact, and bumps the receiver's unread count.
// Returns the stored message and the id of the thread it landed in.
func (s *ChatStore) SendMessage(ctx context.Context, senderID, receiverID, content string, msgType chat.MessageType, at time.Time) (chat.Message, string, error) {
	if senderID == receiverID {
		return chat.Message{}, "", chat.ErrSameParticipant
	}
	content, err := chat.ValidateContent(content)
	if err != nil {
		return chat.Message{}, "", err
	}
	if msgType == "" {
		msgType = chat.MessageText
	}
	if at.IsZero() {
		at = time.Now()
	}
	at = at.UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	sender := s.profiles[senderID]
	th := s.threads[keyFor(senderID, receiverID)]
	if th == nil {
		th = &thread{
			id:        uuid.NewString(),
			key:       keyFor(senderID, receiverID),
			status:    chat.ConversationActive,
			createdAt: at,
			unread:    make(map[string]int),
		}
		s.threads[th.key] = th
		s.byID[th.id] = th
	}

	msg := chat.Message{
		ID:         uuid.NewString(),
		Content:    content,
		SenderID:   senderID,
		SenderName: sender.Name,
		SenderRole: sender.Role,
		Timestamp:  at,
		Type:       msgType,
	}
	th.messages = append(th.messages, storedMessage{Message: msg, receiverID: receiverID})
	th.unread[receiverID]++
	th.lastMessage = chat.LastMessage{
		Content:    msg.Content,
		Timestamp:  msg.Timestamp,
		SenderName: msg.SenderName,
	}
	return msg, th.id, nil
}

// SetPropertyContext attaches property information to an existing thread.
func (s *ChatStore) SetPropertyContext(ctx context.Context, conversationID, address, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	th, ok := s.byID[conversationID]
	if !ok {
		return ErrConversationNotFound
	}
	th.propertyAddress = address
	th.propertyTitle = title
	return nil
}

// ListConversations returns every thread the user participates in, most
// recently active first, with the unread count seen from the user's side.
func (s *ChatStore) ListConversations(ctx context.Context, userID string) ([]chat.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]chat.Conversation, 0)
	for _, th := range s.threads {
		if ctx != nil {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
			}
		}
		other, ok := th.otherParticipant(userID)
		if !ok {
			continue
		}
		profile := s.profiles[other]
		if profile.ID == "" {
			profile = chat.Profile{ID: other, Name: other}
		}
		out = append(out, chat.Conversation{
			ID:              th.id,
			ParticipantID:   profile.ID,
			ParticipantName: profile.Name,
			ParticipantRole: profile.Role,
			LastMessage:     th.lastMessage,
			UnreadCount:     th.unread[userID],
			PropertyAddress: th.propertyAddress,
			PropertyTitle:   th.propertyTitle,
			Status:          th.status,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastMessage.Timestamp.After(out[j].LastMessage.Timestamp)
	})
	return out, nil
}

// ListMessages returns the most recent messages exchanged between the two
// users in ascending timestamp order, capped at limit.
func (s *ChatStore) ListMessages(ctx context.Context, userID, otherID string, limit int) ([]chat.Message, error) {
	limit = normalizeLimit(limit)

	s.mu.RLock()
	defer s.mu.RUnlock()

	th, ok := s.threads[keyFor(userID, otherID)]
	if !ok {
		return []chat.Message{}, nil
	}
	messages := make([]chat.Message, 0, len(th.messages))
	for _, m := range th.messages {
		messages = append(messages, m.Message)
	}
	chat.SortMessages(messages)
	if len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}
	return messages, nil
}

// MarkRead zeroes the user's unread counter on a conversation and flags the
// other side's messages as read.
func (s *ChatStore) MarkRead(ctx context.Context, conversationID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	th, ok := s.byID[conversationID]
	if !ok {
		return ErrConversationNotFound
	}
	if _, isParticipant := th.otherParticipant(userID); !isParticipant {
		return ErrConversationNotFound
	}
	th.unread[userID] = 0
	for i := range th.messages {
		if th.messages[i].receiverID == userID {
			th.messages[i].IsRead = true
		}
	}
	return nil
}

func (t *thread) otherParticipant(userID string) (string, bool) {
	switch userID {
	case t.key.low:
		return t.key.high, true
	case t.key.high:
		return t.key.low, true
	default:
		return "", false
	}
}

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > 200 {
		return 50
	}
	return limit
}
