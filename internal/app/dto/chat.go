package dto

import "time"

// Participant identifies the other party of a conversation.
type Participant struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Role   string `json:"role"`
	Avatar string `json:"avatar,omitempty"`
}

// LastMessagePreview is the denormalized snapshot shown in list views.
type LastMessagePreview struct {
	Content    string    `json:"content"`
	Timestamp  time.Time `json:"timestamp"`
	SenderName string    `json:"senderName,omitempty"`
}

// PropertyRef links a conversation to a property.
type PropertyRef struct {
	Address string `json:"address,omitempty"`
	Title   string `json:"title,omitempty"`
}

// ConversationSummary is one entry of the conversation list payload.
type ConversationSummary struct {
	ID          string              `json:"id"`
	Participant Participant         `json:"participant"`
	LastMessage *LastMessagePreview `json:"lastMessage,omitempty"`
	UnreadCount int                 `json:"unreadCount"`
	Property    *PropertyRef        `json:"property,omitempty"`
	Status      string              `json:"status,omitempty"`
}

// ConversationList is the GET /conversations response envelope.
type ConversationList struct {
	Success bool                  `json:"success"`
	Data    []ConversationSummary `json:"data"`
}

// SenderRef carries display attributes of a message author.
type SenderRef struct {
	Name string `json:"name"`
	Role string `json:"role,omitempty"`
}

// MessageItem is one entry of the message list payload.
type MessageItem struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	SenderID  string    `json:"senderId"`
	Sender    SenderRef `json:"sender"`
	CreatedAt time.Time `json:"createdAt"`
	IsRead    bool      `json:"isRead"`
	Type      string    `json:"type,omitempty"`
}

// MessageList is the GET /messages response envelope.
type MessageList struct {
	Success  bool          `json:"success"`
	Messages []MessageItem `json:"messages"`
}

// SendMessageRequest is the POST /messages body.
type SendMessageRequest struct {
	Content    string `json:"content"`
	ReceiverID string `json:"receiverId"`
	Type       string `json:"type,omitempty"`
}

// AttachmentResponse is the POST /attachments response.
type AttachmentResponse struct {
	Success bool   `json:"success"`
	URL     string `json:"url"`
}
