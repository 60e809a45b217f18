package chat

import (
	"errors"
	"sort"
	"strings"
	"time"
)

// ConversationStatus tells whether a thread is still visible to its participants.
type ConversationStatus string

const (
	ConversationActive   ConversationStatus = "active"
	ConversationArchived ConversationStatus = "archived"
)

// MessageType classifies the payload carried by a message.
type MessageType string

const (
	MessageText  MessageType = "text"
	MessageImage MessageType = "image"
	MessageFile  MessageType = "file"
)

var (
	// ErrEmptyContent is returned when a message would carry no text.
	ErrEmptyContent = errors.New("chat: message content is empty")
	// ErrSameParticipant is returned when a conversation would have a user talking to themselves.
	ErrSameParticipant = errors.New("chat: sender and receiver are the same user")
)

// LastMessage is the denormalized snapshot shown in conversation lists.
type LastMessage struct {
	Content    string
	Timestamp  time.Time
	SenderName string
}

// Conversation is a thread between the current user and one other participant,
// optionally scoped to a property.
type Conversation struct {
	ID              string
	ParticipantID   string
	ParticipantName string
	ParticipantRole string
	LastMessage     LastMessage
	UnreadCount     int
	PropertyAddress string
	PropertyTitle   string
	Status          ConversationStatus
	Synthetic       bool
}

// Message is a single entry inside a conversation. Messages are never mutated
// after creation except for the IsRead flag.
type Message struct {
	ID         string
	Content    string
	SenderID   string
	SenderName string
	SenderRole string
	Timestamp  time.Time
	IsRead     bool
	Type       MessageType
}

// Profile identifies a chat participant.
type Profile struct {
	ID     string
	Name   string
	Role   string
	Avatar string
}

// SortMessages orders messages ascending by timestamp, the only order the view
// ever displays. Ties keep their relative fetch order.
func SortMessages(messages []Message) {
	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].Timestamp.Before(messages[j].Timestamp)
	})
}

// MatchesSearch reports whether the conversation matches a case-insensitive
// substring search over participant name, property address and last message
// content. An empty term matches everything.
func (c Conversation) MatchesSearch(term string) bool {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return true
	}
	return strings.Contains(strings.ToLower(c.ParticipantName), term) ||
		strings.Contains(strings.ToLower(c.PropertyAddress), term) ||
		strings.Contains(strings.ToLower(c.LastMessage.Content), term)
}

// ActiveOn reports whether the conversation saw a message during the calendar
// day of the reference time.
func (c Conversation) ActiveOn(ref time.Time) bool {
	if c.LastMessage.Timestamp.IsZero() {
		return false
	}
	y1, m1, d1 := c.LastMessage.Timestamp.In(ref.Location()).Date()
	y2, m2, d2 := ref.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// ValidateContent rejects empty or whitespace-only message text.
func ValidateContent(text string) (string, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", ErrEmptyContent
	}
	return trimmed, nil
}
