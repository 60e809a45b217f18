package ginserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	gin "github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"rentchat/internal/app/dto"
	"rentchat/internal/domain/chat"
	"rentchat/internal/infra/storage/s3"
)

// ChatHTTP exposes the chat REST endpoints.
type ChatHTTP interface {
	ListConversations(c *gin.Context)
	ListMessages(c *gin.Context)
	SendMessage(c *gin.Context)
	MarkRead(c *gin.Context)
	UploadAttachment(c *gin.Context)
	UpsertProfile(c *gin.Context)
}

// ChatStore is what the handler needs from persistence. Satisfied by the
// memory store and the mongo repository.
type ChatStore interface {
	UpsertProfile(ctx context.Context, p chat.Profile) error
	SendMessage(ctx context.Context, senderID, receiverID, content string, msgType chat.MessageType, at time.Time) (chat.Message, string, error)
	ListConversations(ctx context.Context, userID string) ([]chat.Conversation, error)
	ListMessages(ctx context.Context, userID, otherID string, limit int) ([]chat.Message, error)
	MarkRead(ctx context.Context, conversationID, userID string) error
}

// ChatNotifier publishes conversation update events, best effort.
type ChatNotifier interface {
	ConversationUpdated(ctx context.Context, conversationID string, participants []string, reason string)
}

// ChatHandler serves the conversation-store contract consumed by the chat view.
type ChatHandler struct {
	Store    ChatStore
	Uploads  s3.Uploader
	Notifier ChatNotifier
	Logger   *slog.Logger
	Now      func() time.Time
}

// ListConversations returns the caller's conversation list.
func (h ChatHandler) ListConversations(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	conversations, err := h.Store.ListConversations(c.Request.Context(), userID)
	if err != nil {
		h.fail(c, err, "list conversations", "user_id", userID)
		return
	}
	out := dto.ConversationList{Success: true, Data: make([]dto.ConversationSummary, 0, len(conversations))}
	for _, conv := range conversations {
		out.Data = append(out.Data, toConversationSummary(conv))
	}
	c.JSON(http.StatusOK, out)
}

// ListMessages returns messages between the caller and receiverId, ascending.
func (h ChatHandler) ListMessages(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	otherID := strings.TrimSpace(c.Query("receiverId"))
	if otherID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "receiverId is required"})
		return
	}
	limit := parsePositiveInt(c.Query("limit"), 50)

	messages, err := h.Store.ListMessages(c.Request.Context(), userID, otherID, limit)
	if err != nil {
		h.fail(c, err, "list messages", "user_id", userID, "receiver_id", otherID)
		return
	}
	out := dto.MessageList{Success: true, Messages: make([]dto.MessageItem, 0, len(messages))}
	for _, msg := range messages {
		out.Messages = append(out.Messages, toMessageItem(msg))
	}
	c.JSON(http.StatusOK, out)
}

// SendMessage stores a new message addressed to receiverId.
func (h ChatHandler) SendMessage(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req dto.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid payload"})
		return
	}
	req.ReceiverID = strings.TrimSpace(req.ReceiverID)
	if req.ReceiverID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "receiverId is required"})
		return
	}
	msgType := chat.MessageType(strings.TrimSpace(req.Type))
	switch msgType {
	case "", chat.MessageText, chat.MessageImage, chat.MessageFile:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "unsupported message type"})
		return
	}

	msg, conversationID, err := h.Store.SendMessage(c.Request.Context(), userID, req.ReceiverID, req.Content, msgType, h.now())
	if err != nil {
		switch {
		case errors.Is(err, chat.ErrEmptyContent):
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "content is required"})
		case errors.Is(err, chat.ErrSameParticipant):
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "cannot message yourself"})
		default:
			h.fail(c, err, "send message", "user_id", userID, "receiver_id", req.ReceiverID)
		}
		return
	}
	if h.Notifier != nil {
		h.Notifier.ConversationUpdated(c.Request.Context(), conversationID, []string{userID, req.ReceiverID}, "message_sent")
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "message": toMessageItem(msg)})
}

// MarkRead zeroes the caller's unread counter on a conversation.
func (h ChatHandler) MarkRead(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	conversationID := strings.TrimSpace(c.Param("id"))
	if conversationID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "conversation id is required"})
		return
	}
	if err := h.Store.MarkRead(c.Request.Context(), conversationID, userID); err != nil {
		if isNotFound(err) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "conversation not found"})
			return
		}
		h.fail(c, err, "mark read", "user_id", userID, "conversation_id", conversationID)
		return
	}
	if h.Notifier != nil {
		h.Notifier.ConversationUpdated(c.Request.Context(), conversationID, []string{userID}, "marked_read")
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "readAt": h.now().UTC()})
}

// UploadAttachment stores a binary payload and returns its public URL. The
// client then sends a message of type image or file whose content is the URL.
func (h ChatHandler) UploadAttachment(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	if h.Uploads == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "attachments unavailable"})
		return
	}
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "file is required"})
		return
	}
	defer file.Close()

	key := fmt.Sprintf("%s/%s-%s", userID, uuid.NewString(), sanitizeFilename(header.Filename))
	url, err := h.Uploads.Upload(c.Request.Context(), key, file, header.Header.Get("Content-Type"))
	if err != nil {
		h.fail(c, err, "upload attachment", "user_id", userID, "filename", header.Filename)
		return
	}
	c.JSON(http.StatusCreated, dto.AttachmentResponse{Success: true, URL: url})
}

// UpsertProfile registers a chat participant so their name and role resolve
// in list views. Fed by the account service in production, by fixtures here.
func (h ChatHandler) UpsertProfile(c *gin.Context) {
	var req dto.Participant
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid payload"})
		return
	}
	req.ID = strings.TrimSpace(req.ID)
	if req.ID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "id is required"})
		return
	}
	profile := chat.Profile{ID: req.ID, Name: req.Name, Role: req.Role, Avatar: req.Avatar}
	if err := h.Store.UpsertProfile(c.Request.Context(), profile); err != nil {
		h.fail(c, err, "upsert profile", "profile_id", req.ID)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h ChatHandler) fail(c *gin.Context, err error, action string, attrs ...any) {
	if h.Logger != nil {
		h.Logger.Error("chat store call failed", append([]any{"action", action, "error", err}, attrs...)...)
	}
	c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "internal error"})
}

func (h ChatHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func requireUser(c *gin.Context) (string, bool) {
	userID := strings.TrimSpace(c.GetHeader("X-User-ID"))
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "missing user identity"})
		return "", false
	}
	return userID, true
}

func toConversationSummary(conv chat.Conversation) dto.ConversationSummary {
	summary := dto.ConversationSummary{
		ID: conv.ID,
		Participant: dto.Participant{
			ID:   conv.ParticipantID,
			Name: conv.ParticipantName,
			Role: conv.ParticipantRole,
		},
		UnreadCount: conv.UnreadCount,
		Status:      string(conv.Status),
	}
	if !conv.LastMessage.Timestamp.IsZero() {
		summary.LastMessage = &dto.LastMessagePreview{
			Content:    conv.LastMessage.Content,
			Timestamp:  conv.LastMessage.Timestamp,
			SenderName: conv.LastMessage.SenderName,
		}
	}
	if conv.PropertyAddress != "" || conv.PropertyTitle != "" {
		summary.Property = &dto.PropertyRef{Address: conv.PropertyAddress, Title: conv.PropertyTitle}
	}
	return summary
}

func toMessageItem(msg chat.Message) dto.MessageItem {
	return dto.MessageItem{
		ID:        msg.ID,
		Content:   msg.Content,
		SenderID:  msg.SenderID,
		Sender:    dto.SenderRef{Name: msg.SenderName, Role: msg.SenderRole},
		CreatedAt: msg.Timestamp,
		IsRead:    msg.IsRead,
		Type:      string(msg.Type),
	}
}

func parsePositiveInt(raw string, def int) int {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || value <= 0 {
		return def
	}
	return value
}

func sanitizeFilename(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "attachment"
	}
	replacer := strings.NewReplacer("/", "-", "\\", "-", " ", "_")
	return replacer.Replace(name)
}

func isNotFound(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "not found")
}

var _ ChatHTTP = (*ChatHandler)(nil)
