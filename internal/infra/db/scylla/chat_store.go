package scylla

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/gocql/gocql"

	"rentchat/internal/domain/chat"
)

// ErrConversationNotFound is returned when a thread does not exist.
var ErrConversationNotFound = errors.New("scylla: conversation not found")

// ErrProfileNotFound is returned when a participant is unknown.
var ErrProfileNotFound = errors.New("scylla: profile not found")

const lastMessageSnippetMax = 500

// ChatStore persists pair-keyed conversations in Scylla. A conversation row
// is keyed by the sorted participant pair; a second table maps the public
// conversation id back to that key.
type ChatStore struct {
	session *gocql.Session
	logger  *slog.Logger
}

// NewChatStore builds a store over a connected session.
func NewChatStore(session *gocql.Session, logger *slog.Logger) *ChatStore {
	return &ChatStore{session: session, logger: logger}
}

// Ping verifies the session can reach the cluster.
func (s *ChatStore) Ping(ctx context.Context) error {
	if s.session == nil {
		return errors.New("scylla session not initialized")
	}
	var version string
	return s.session.
		Query(`SELECT release_version FROM system.local`).
		WithContext(ctx).
		Consistency(gocql.One).
		Scan(&version)
}

// UpsertProfile registers or updates a participant profile.
func (s *ChatStore) UpsertProfile(ctx context.Context, p chat.Profile) error {
	if p.ID == "" {
		return errors.New("scylla: profile id is required")
	}
	return s.session.
		Query(`INSERT INTO chat_profiles (id, name, role, avatar) VALUES (?, ?, ?, ?)`,
			p.ID, p.Name, p.Role, p.Avatar).
		WithContext(ctx).
		Consistency(gocql.Quorum).
		Exec()
}

// Profile loads a participant profile.
func (s *ChatStore) Profile(ctx context.Context, id string) (chat.Profile, error) {
	var p chat.Profile
	err := s.session.
		Query(`SELECT id, name, role, avatar FROM chat_profiles WHERE id = ? LIMIT 1`, id).
		WithContext(ctx).
		Consistency(gocql.One).
		Scan(&p.ID, &p.Name, &p.Role, &p.Avatar)
	if errors.Is(err, gocql.ErrNotFound) {
		return chat.Profile{}, ErrProfileNotFound
	}
	if err != nil {
		return chat.Profile{}, err
	}
	return p, nil
}

// SendMessage appends a message, creating the pair thread on first contact.
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

	sender, err := s.Profile(ctx, senderID)
	if err != nil && !errors.Is(err, ErrProfileNotFound) {
		return chat.Message{}, "", err
	}

	key := pairKey(senderID, receiverID)
	convID, err := s.conversationIDByPair(ctx, key)
	if errors.Is(err, gocql.ErrNotFound) {
		convID, err = s.createConversation(ctx, key, senderID, receiverID, at)
	}
	if err != nil {
		return chat.Message{}, "", err
	}

	messageID := gocql.TimeUUID()
	if err := s.session.
		Query(`INSERT INTO chat_messages (conversation_id, message_id, sender_id, receiver_id, content, type, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			convID, messageID, senderID, receiverID, content, string(msgType), at).
		WithContext(ctx).
		Consistency(gocql.Quorum).
		Exec(); err != nil {
		return chat.Message{}, "", err
	}

	// best-effort update of the list snapshot
	if err := s.session.
		Query(`UPDATE chat_conversations SET last_message_at = ?, last_message_text = ?, last_message_sender = ? WHERE pair_key = ?`,
			at, trimSnippet(content, lastMessageSnippetMax), sender.Name, key).
		WithContext(ctx).
		Consistency(gocql.One).
		Exec(); err != nil && s.logger != nil {
		s.logger.Warn("failed to update last message meta", "error", err, "conversation_id", convID)
	}

	return chat.Message{
		ID:         messageID.String(),
		Content:    content,
		SenderID:   senderID,
		SenderName: sender.Name,
		SenderRole: sender.Role,
		Timestamp:  at,
		Type:       msgType,
	}, convID.String(), nil
}

// SetPropertyContext attaches property information to an existing thread.
func (s *ChatStore) SetPropertyContext(ctx context.Context, conversationID, address, title string) error {
	_, key, err := s.resolveConversation(ctx, conversationID)
	if err != nil {
		return err
	}
	return s.session.
		Query(`UPDATE chat_conversations SET property_address = ?, property_title = ? WHERE pair_key = ?`,
			address, title, key).
		WithContext(ctx).
		Consistency(gocql.Quorum).
		Exec()
}

// ListConversations returns the user's threads, most recently active first.
// The unread count is derived from the user's read marker.
func (s *ChatStore) ListConversations(ctx context.Context, userID string) ([]chat.Conversation, error) {
	if s.session == nil {
		return nil, errors.New("scylla session not initialized")
	}
	iter := s.session.
		Query(`SELECT id, participants, property_address, property_title, status, created_at, last_message_at, last_message_text, last_message_sender FROM chat_conversations WHERE participants CONTAINS ? ALLOW FILTERING`, userID).
		WithContext(ctx).
		Consistency(gocql.One).
		Iter()

	type row struct {
		id              gocql.UUID
		participants    []string
		propertyAddress string
		propertyTitle   string
		status          string
		createdAt       time.Time
		lastMessageAt   time.Time
		lastMessageText string
		lastSenderName  string
	}
	rows := make([]row, 0)
	var r row
	for iter.Scan(&r.id, &r.participants, &r.propertyAddress, &r.propertyTitle, &r.status, &r.createdAt, &r.lastMessageAt, &r.lastMessageText, &r.lastSenderName) {
		r.participants = append([]string(nil), r.participants...)
		rows = append(rows, r)
	}
	if err := iter.Close(); err != nil {
		return nil, err
	}

	out := make([]chat.Conversation, 0, len(rows))
	for _, r := range rows {
		otherID := otherParticipant(r.participants, userID)
		if otherID == "" {
			continue
		}
		profile, err := s.Profile(ctx, otherID)
		if err != nil {
			profile = chat.Profile{ID: otherID, Name: otherID}
		}
		unread, err := s.unreadCount(ctx, r.id, userID)
		if err != nil {
			return nil, err
		}
		out = append(out, chat.Conversation{
			ID:              r.id.String(),
			ParticipantID:   profile.ID,
			ParticipantName: profile.Name,
			ParticipantRole: profile.Role,
			LastMessage: chat.LastMessage{
				Content:    r.lastMessageText,
				Timestamp:  r.lastMessageAt,
				SenderName: r.lastSenderName,
			},
			UnreadCount:     unread,
			PropertyAddress: r.propertyAddress,
			PropertyTitle:   r.propertyTitle,
			Status:          chat.ConversationStatus(r.status),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastMessage.Timestamp.After(out[j].LastMessage.Timestamp)
	})
	return out, nil
}

// ListMessages returns the most recent messages between the two users in
// ascending timestamp order, capped at limit. IsRead is derived from the
// receiver's read marker.
func (s *ChatStore) ListMessages(ctx context.Context, userID, otherID string, limit int) ([]chat.Message, error) {
	if s.session == nil {
		return nil, errors.New("scylla session not initialized")
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	convID, err := s.conversationIDByPair(ctx, pairKey(userID, otherID))
	if errors.Is(err, gocql.ErrNotFound) {
		return []chat.Message{}, nil
	}
	if err != nil {
		return nil, err
	}

	markers := map[string]time.Time{
		userID:  s.readMarker(ctx, convID, userID),
		otherID: s.readMarker(ctx, convID, otherID),
	}
	profiles := map[string]chat.Profile{}
	for _, id := range []string{userID, otherID} {
		if p, err := s.Profile(ctx, id); err == nil {
			profiles[id] = p
		}
	}

	iter := s.session.
		Query(`SELECT message_id, sender_id, receiver_id, content, type, created_at FROM chat_messages WHERE conversation_id = ? LIMIT ?`, convID, limit).
		WithContext(ctx).
		Consistency(gocql.One).
		Iter()

	out := make([]chat.Message, 0, limit)
	var (
		messageID  gocql.UUID
		senderID   string
		receiverID string
		content    string
		msgType    string
		createdAt  time.Time
	)
	for iter.Scan(&messageID, &senderID, &receiverID, &content, &msgType, &createdAt) {
		sender := profiles[senderID]
		out = append(out, chat.Message{
			ID:         messageID.String(),
			Content:    content,
			SenderID:   senderID,
			SenderName: sender.Name,
			SenderRole: sender.Role,
			Timestamp:  createdAt,
			IsRead:     readAt(createdAt, markers[receiverID]),
			Type:       chat.MessageType(msgType),
		})
	}
	if err := iter.Close(); err != nil {
		return nil, err
	}
	chat.SortMessages(out)
	return out, nil
}

// MarkRead moves the user's read marker to now, which zeroes the derived
// unread count and flags received messages as read.
func (s *ChatStore) MarkRead(ctx context.Context, conversationID, userID string) error {
	convID, key, err := s.resolveConversation(ctx, conversationID)
	if err != nil {
		return err
	}
	var participants []string
	if err := s.session.
		Query(`SELECT participants FROM chat_conversations WHERE pair_key = ? LIMIT 1`, key).
		WithContext(ctx).
		Consistency(gocql.One).
		Scan(&participants); err != nil {
		if errors.Is(err, gocql.ErrNotFound) {
			return ErrConversationNotFound
		}
		return err
	}
	if otherParticipant(participants, userID) == "" {
		return ErrConversationNotFound
	}
	return s.session.
		Query(`INSERT INTO chat_reads (conversation_id, user_id, last_read_at) VALUES (?, ?, ?)`,
			convID, userID, time.Now().UTC()).
		WithContext(ctx).
		Consistency(gocql.Quorum).
		Exec()
}

func (s *ChatStore) createConversation(ctx context.Context, key, senderID, receiverID string, at time.Time) (gocql.UUID, error) {
	id := gocql.TimeUUID()
	if err := s.session.
		Query(`INSERT INTO chat_conversations (pair_key, id, participants, status, created_at, last_message_at, last_message_text) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			key, id, []string{senderID, receiverID}, string(chat.ConversationActive), at, at, "").
		WithContext(ctx).
		Consistency(gocql.Quorum).
		Exec(); err != nil {
		return gocql.UUID{}, err
	}
	if err := s.session.
		Query(`INSERT INTO chat_conversation_ids (id, pair_key) VALUES (?, ?)`, id, key).
		WithContext(ctx).
		Consistency(gocql.Quorum).
		Exec(); err != nil {
		return gocql.UUID{}, err
	}
	return id, nil
}

func (s *ChatStore) conversationIDByPair(ctx context.Context, key string) (gocql.UUID, error) {
	var id gocql.UUID
	err := s.session.
		Query(`SELECT id FROM chat_conversations WHERE pair_key = ? LIMIT 1`, key).
		WithContext(ctx).
		Consistency(gocql.One).
		Scan(&id)
	return id, err
}

// resolveConversation maps a public conversation id to its pair key.
func (s *ChatStore) resolveConversation(ctx context.Context, conversationID string) (gocql.UUID, string, error) {
	if s.session == nil {
		return gocql.UUID{}, "", errors.New("scylla session not initialized")
	}
	id, err := gocql.ParseUUID(strings.TrimSpace(conversationID))
	if err != nil {
		return gocql.UUID{}, "", ErrConversationNotFound
	}
	var key string
	if err := s.session.
		Query(`SELECT pair_key FROM chat_conversation_ids WHERE id = ? LIMIT 1`, id).
		WithContext(ctx).
		Consistency(gocql.One).
		Scan(&key); err != nil {
		if errors.Is(err, gocql.ErrNotFound) {
			return gocql.UUID{}, "", ErrConversationNotFound
		}
		return gocql.UUID{}, "", err
	}
	return id, key, nil
}

// unreadCount counts messages addressed to the user that arrived after the
// user's read marker.
func (s *ChatStore) unreadCount(ctx context.Context, convID gocql.UUID, userID string) (int, error) {
	marker := s.readMarker(ctx, convID, userID)
	iter := s.session.
		Query(`SELECT receiver_id, created_at FROM chat_messages WHERE conversation_id = ?`, convID).
		WithContext(ctx).
		Consistency(gocql.One).
		Iter()
	var (
		receiverID string
		createdAt  time.Time
		count      int
	)
	for iter.Scan(&receiverID, &createdAt) {
		if receiverID == userID && !readAt(createdAt, marker) {
			count++
		}
	}
	if err := iter.Close(); err != nil {
		return 0, err
	}
	return count, nil
}

// readMarker returns the user's last read position, zero when never read.
func (s *ChatStore) readMarker(ctx context.Context, convID gocql.UUID, userID string) time.Time {
	var at time.Time
	err := s.session.
		Query(`SELECT last_read_at FROM chat_reads WHERE conversation_id = ? AND user_id = ? LIMIT 1`, convID, userID).
		WithContext(ctx).
		Consistency(gocql.One).
		Scan(&at)
	if err != nil && !errors.Is(err, gocql.ErrNotFound) && s.logger != nil {
		s.logger.Warn("failed to load read marker", "error", err, "conversation_id", convID, "user_id", userID)
	}
	return at
}

// pairKey identifies the thread between two users regardless of direction.
func pairKey(a, b string) string {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}

// readAt reports whether a message created at ts is covered by the marker.
func readAt(ts, marker time.Time) bool {
	if marker.IsZero() {
		return false
	}
	return !ts.After(marker)
}

func trimSnippet(text string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(strings.TrimSpace(text))
	if len(runes) <= max {
		return string(runes)
	}
	return string(runes[:max])
}

func otherParticipant(participants []string, userID string) string {
	for _, p := range participants {
		if p != userID {
			return p
		}
	}
	return ""
}
