package mongo

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"rentchat/internal/domain/chat"
)

// ErrConversationNotFound is returned when a thread does not exist.
var ErrConversationNotFound = errors.New("mongo: conversation not found")

// ChatRepository persists conversations, messages and profiles.
type ChatRepository struct {
	conversations *mongo.Collection
	messages      *mongo.Collection
	profiles      *mongo.Collection
}

// NewChatRepository builds a repository over the chat collections.
func NewChatRepository(db *mongo.Database) *ChatRepository {
	return &ChatRepository{
		conversations: db.Collection("chat_conversations"),
		messages:      db.Collection("chat_messages"),
		profiles:      db.Collection("chat_profiles"),
	}
}

type conversationDocument struct {
	ID           string         `bson:"_id"`
	Participants []string       `bson:"participants"`
	Property     propertyDoc    `bson:"property,omitempty"`
	Status       string         `bson:"status"`
	CreatedAt    time.Time      `bson:"created_at"`
	LastMessage  lastMessageDoc `bson:"last_message,omitempty"`
	Unread       map[string]int `bson:"unread,omitempty"`
}

type propertyDoc struct {
	Address string `bson:"address,omitempty"`
	Title   string `bson:"title,omitempty"`
}

type lastMessageDoc struct {
	Content    string    `bson:"content"`
	Timestamp  time.Time `bson:"timestamp"`
	SenderName string    `bson:"sender_name,omitempty"`
}

type messageDocument struct {
	ID             string    `bson:"_id"`
	ConversationID string    `bson:"conversation_id"`
	SenderID       string    `bson:"sender_id"`
	ReceiverID     string    `bson:"receiver_id"`
	SenderName     string    `bson:"sender_name,omitempty"`
	SenderRole     string    `bson:"sender_role,omitempty"`
	Content        string    `bson:"content"`
	Type           string    `bson:"type"`
	CreatedAt      time.Time `bson:"created_at"`
	IsRead         bool      `bson:"is_read"`
}

type profileDocument struct {
	ID     string `bson:"_id"`
	Name   string `bson:"name"`
	Role   string `bson:"role,omitempty"`
	Avatar string `bson:"avatar,omitempty"`
}

// UpsertProfile registers or updates a participant profile.
func (r *ChatRepository) UpsertProfile(ctx context.Context, p chat.Profile) error {
	if p.ID == "" {
		return errors.New("mongo: profile id is required")
	}
	doc := profileDocument{ID: p.ID, Name: p.Name, Role: p.Role, Avatar: p.Avatar}
	opts := options.Update().SetUpsert(true)
	_, err := r.profiles.UpdateOne(ctx, bson.M{"_id": p.ID}, bson.M{"$set": doc}, opts)
	return err
}

// Profile loads a participant profile.
func (r *ChatRepository) Profile(ctx context.Context, id string) (chat.Profile, error) {
	var doc profileDocument
	if err := r.profiles.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		return chat.Profile{}, err
	}
	return chat.Profile{ID: doc.ID, Name: doc.Name, Role: doc.Role, Avatar: doc.Avatar}, nil
}

// SendMessage appends a message, creating the pair thread on first contact.
// Returns the stored message and the id of the thread it landed in.
func (r *ChatRepository) SendMessage(ctx context.Context, senderID, receiverID, content string, msgType chat.MessageType, at time.Time) (chat.Message, string, error) {
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

	sender, err := r.Profile(ctx, senderID)
	if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
		return chat.Message{}, "", err
	}

	pair := sortedPair(senderID, receiverID)
	filter := bson.M{"participants": pair}
	update := bson.M{
		"$setOnInsert": bson.M{
			"_id":          uuid.NewString(),
			"participants": pair,
			"status":       string(chat.ConversationActive),
			"created_at":   at,
		},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var conv conversationDocument
	if err := r.conversations.FindOneAndUpdate(ctx, filter, update, opts).Decode(&conv); err != nil {
		return chat.Message{}, "", err
	}

	msg := messageDocument{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		SenderID:       senderID,
		ReceiverID:     receiverID,
		SenderName:     sender.Name,
		SenderRole:     sender.Role,
		Content:        content,
		Type:           string(msgType),
		CreatedAt:      at,
	}
	if _, err := r.messages.InsertOne(ctx, msg); err != nil {
		return chat.Message{}, "", err
	}

	_, err = r.conversations.UpdateOne(ctx, bson.M{"_id": conv.ID}, bson.M{
		"$set": bson.M{
			"last_message": lastMessageDoc{
				Content:    content,
				Timestamp:  at,
				SenderName: sender.Name,
			},
		},
		"$inc": bson.M{"unread." + receiverID: 1},
	})
	if err != nil {
		return chat.Message{}, "", err
	}
	return toDomainMessage(msg), conv.ID, nil
}

// SetPropertyContext attaches property information to an existing thread.
func (r *ChatRepository) SetPropertyContext(ctx context.Context, conversationID, address, title string) error {
	res, err := r.conversations.UpdateOne(ctx, bson.M{"_id": conversationID}, bson.M{
		"$set": bson.M{"property": propertyDoc{Address: address, Title: title}},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrConversationNotFound
	}
	return nil
}

// ListConversations returns the user's threads, most recently active first.
func (r *ChatRepository) ListConversations(ctx context.Context, userID string) ([]chat.Conversation, error) {
	findOpts := options.Find().SetSort(bson.D{{Key: "last_message.timestamp", Value: -1}})
	cursor, err := r.conversations.Find(ctx, bson.M{"participants": userID}, findOpts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	out := make([]chat.Conversation, 0)
	for cursor.Next(ctx) {
		var doc conversationDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		otherID := otherParticipant(doc.Participants, userID)
		if otherID == "" {
			continue
		}
		profile, err := r.Profile(ctx, otherID)
		if err != nil {
			profile = chat.Profile{ID: otherID, Name: otherID}
		}
		out = append(out, chat.Conversation{
			ID:              doc.ID,
			ParticipantID:   profile.ID,
			ParticipantName: profile.Name,
			ParticipantRole: profile.Role,
			LastMessage: chat.LastMessage{
				Content:    doc.LastMessage.Content,
				Timestamp:  doc.LastMessage.Timestamp,
				SenderName: doc.LastMessage.SenderName,
			},
			UnreadCount:     doc.Unread[userID],
			PropertyAddress: doc.Property.Address,
			PropertyTitle:   doc.Property.Title,
			Status:          chat.ConversationStatus(doc.Status),
		})
	}
	return out, cursor.Err()
}

// ListMessages returns the most recent messages between the two users in
// ascending timestamp order, capped at limit.
func (r *ChatRepository) ListMessages(ctx context.Context, userID, otherID string, limit int) ([]chat.Message, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	filter := bson.M{
		"$or": bson.A{
			bson.M{"sender_id": userID, "receiver_id": otherID},
			bson.M{"sender_id": otherID, "receiver_id": userID},
		},
	}
	findOpts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit))
	cursor, err := r.messages.Find(ctx, filter, findOpts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	out := make([]chat.Message, 0, limit)
	for cursor.Next(ctx) {
		var doc messageDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, toDomainMessage(doc))
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	chat.SortMessages(out)
	return out, nil
}

// MarkRead zeroes the user's unread counter and flags received messages read.
func (r *ChatRepository) MarkRead(ctx context.Context, conversationID, userID string) error {
	res, err := r.conversations.UpdateOne(ctx,
		bson.M{"_id": conversationID, "participants": userID},
		bson.M{"$set": bson.M{"unread." + userID: 0}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrConversationNotFound
	}
	_, err = r.messages.UpdateMany(ctx,
		bson.M{"conversation_id": conversationID, "receiver_id": userID, "is_read": false},
		bson.M{"$set": bson.M{"is_read": true}},
	)
	return err
}

func toDomainMessage(doc messageDocument) chat.Message {
	return chat.Message{
		ID:         doc.ID,
		Content:    doc.Content,
		SenderID:   doc.SenderID,
		SenderName: doc.SenderName,
		SenderRole: doc.SenderRole,
		Timestamp:  doc.CreatedAt,
		IsRead:     doc.IsRead,
		Type:       chat.MessageType(doc.Type),
	}
}

func sortedPair(a, b string) []string {
	pair := []string{a, b}
	sort.Strings(pair)
	return pair
}

func otherParticipant(participants []string, userID string) string {
	for _, p := range participants {
		if p != userID {
			return p
		}
	}
	return ""
}
