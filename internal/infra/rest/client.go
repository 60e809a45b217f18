package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"rentchat/internal/app/dto"
	"rentchat/internal/chatview"
	"rentchat/internal/domain/chat"
)

// Config defines REST client settings.
type Config struct {
	BaseURL     string
	CallTimeout time.Duration
}

// Client is a typed wrapper over the conversation-store REST API.
type Client struct {
	baseURL     string
	http        *http.Client
	callTimeout time.Duration
}

// NewClient builds a client for the given base URL.
func NewClient(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("rest: base URL required")
	}
	timeout := cfg.CallTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL:     base,
		http:        &http.Client{},
		callTimeout: timeout,
	}, nil
}

// ListConversations fetches the user's conversation list.
func (c *Client) ListConversations(ctx context.Context, userID string) ([]chat.Conversation, error) {
	var envelope dto.ConversationList
	if err := c.getJSON(ctx, userID, "/api/v1/conversations", nil, &envelope); err != nil {
		return nil, err
	}
	if !envelope.Success {
		return nil, errors.New("rest: conversation list request not successful")
	}
	out := make([]chat.Conversation, 0, len(envelope.Data))
	for _, item := range envelope.Data {
		out = append(out, toDomainConversation(item))
	}
	return out, nil
}

// ListMessages fetches messages exchanged with the participant.
func (c *Client) ListMessages(ctx context.Context, userID, participantID string, limit int) ([]chat.Message, error) {
	query := url.Values{}
	query.Set("receiverId", participantID)
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	var envelope dto.MessageList
	if err := c.getJSON(ctx, userID, "/api/v1/messages", query, &envelope); err != nil {
		return nil, err
	}
	if !envelope.Success {
		return nil, errors.New("rest: message list request not successful")
	}
	out := make([]chat.Message, 0, len(envelope.Messages))
	for _, item := range envelope.Messages {
		out = append(out, toDomainMessage(item))
	}
	return out, nil
}

// SendMessage posts a text message. Only the HTTP status matters to callers.
func (c *Client) SendMessage(ctx context.Context, userID, receiverID, content string) error {
	body := dto.SendMessageRequest{Content: content, ReceiverID: receiverID}
	return c.postJSON(ctx, userID, "/api/v1/messages", body)
}

// MarkRead reports the conversation as opened by the user.
func (c *Client) MarkRead(ctx context.Context, userID, conversationID string) error {
	path := "/api/v1/conversations/" + url.PathEscape(conversationID) + "/read"
	return c.postJSON(ctx, userID, path, nil)
}

func (c *Client) getJSON(ctx context.Context, userID, path string, query url.Values, out any) error {
	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(callCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-User-ID", userID)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("rest: %s returned %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) postJSON(ctx context.Context, userID, path string, body any) error {
	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", userID)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("rest: %s returned %d", path, resp.StatusCode)
	}
	return nil
}

func toDomainConversation(item dto.ConversationSummary) chat.Conversation {
	conv := chat.Conversation{
		ID:              item.ID,
		ParticipantID:   item.Participant.ID,
		ParticipantName: item.Participant.Name,
		ParticipantRole: item.Participant.Role,
		UnreadCount:     item.UnreadCount,
		Status:          chat.ConversationStatus(item.Status),
	}
	if conv.Status == "" {
		conv.Status = chat.ConversationActive
	}
	if item.LastMessage != nil {
		conv.LastMessage = chat.LastMessage{
			Content:    item.LastMessage.Content,
			Timestamp:  item.LastMessage.Timestamp,
			SenderName: item.LastMessage.SenderName,
		}
	}
	if item.Property != nil {
		conv.PropertyAddress = item.Property.Address
		conv.PropertyTitle = item.Property.Title
	}
	return conv
}

func toDomainMessage(item dto.MessageItem) chat.Message {
	msgType := chat.MessageType(item.Type)
	if msgType == "" {
		msgType = chat.MessageText
	}
	return chat.Message{
		ID:         item.ID,
		Content:    item.Content,
		SenderID:   item.SenderID,
		SenderName: item.Sender.Name,
		SenderRole: item.Sender.Role,
		Timestamp:  item.CreatedAt,
		IsRead:     item.IsRead,
		Type:       msgType,
	}
}

var _ chatview.ChatAPI = (*Client)(nil)
