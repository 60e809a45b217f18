package ginserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentchat/internal/app/dto"
	"rentchat/internal/domain/chat"
	"rentchat/internal/infra/config"
	"rentchat/internal/infra/obs"
	"rentchat/internal/infra/storage/memory"
)

type recordedEvent struct {
	conversationID string
	participants   []string
	reason         string
}

type fakeNotifier struct {
	events []recordedEvent
}

func (f *fakeNotifier) ConversationUpdated(_ context.Context, conversationID string, participants []string, reason string) {
	f.events = append(f.events, recordedEvent{conversationID, participants, reason})
}

func newTestServer(t *testing.T) (http.Handler, *memory.ChatStore, *fakeNotifier) {
	t.Helper()
	store := memory.NewChatStore()
	ctx := context.Background()
	require.NoError(t, store.UpsertProfile(ctx, chat.Profile{ID: "ana", Name: "Ana García", Role: "owner"}))
	require.NoError(t, store.UpsertProfile(ctx, chat.Profile{ID: "luis", Name: "Luis Pérez", Role: "tenant"}))

	notifier := &fakeNotifier{}
	handler := ChatHandler{Store: store, Notifier: notifier}
	srv := NewServer(config.Config{Env: "test"}, obs.Middleware{}, obs.HealthHandlers{}, Handlers{Chat: handler})
	return srv.Handler, store, notifier
}

func doJSON(t *testing.T, h http.Handler, method, path, userID, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestListConversationsRequiresIdentity(t *testing.T) {
	h, _, _ := newTestServer(t)
	rec := doJSON(t, h, http.MethodGet, "/api/v1/conversations", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSendAndListRoundTrip(t *testing.T) {
	h, _, notifier := newTestServer(t)

	rec := doJSON(t, h, http.MethodPost, "/api/v1/messages", "ana", `{"content":"hola","receiverId":"luis"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/v1/conversations", "luis", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list dto.ConversationList
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.True(t, list.Success)
	require.Len(t, list.Data, 1)
	assert.Equal(t, "ana", list.Data[0].Participant.ID)
	assert.Equal(t, "Ana García", list.Data[0].Participant.Name)
	assert.Equal(t, 1, list.Data[0].UnreadCount)
	require.NotNil(t, list.Data[0].LastMessage)
	assert.Equal(t, "hola", list.Data[0].LastMessage.Content)

	rec = doJSON(t, h, http.MethodGet, "/api/v1/messages?receiverId=ana", "luis", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var messages dto.MessageList
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &messages))
	require.Len(t, messages.Messages, 1)
	assert.Equal(t, "ana", messages.Messages[0].SenderID)

	require.Len(t, notifier.events, 1)
	assert.Equal(t, "message_sent", notifier.events[0].reason)
	assert.ElementsMatch(t, []string{"ana", "luis"}, notifier.events[0].participants)
}

func TestSendMessageValidation(t *testing.T) {
	h, _, notifier := newTestServer(t)

	rec := doJSON(t, h, http.MethodPost, "/api/v1/messages", "ana", `{"content":"   ","receiverId":"luis"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/api/v1/messages", "ana", `{"content":"hola","receiverId":"ana"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/api/v1/messages", "ana", `{"content":"hola"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/api/v1/messages", "ana", `{"content":"hola","receiverId":"luis","type":"video"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Empty(t, notifier.events, "rejected sends must not emit events")
}

func TestListMessagesRequiresReceiver(t *testing.T) {
	h, _, _ := newTestServer(t)
	rec := doJSON(t, h, http.MethodGet, "/api/v1/messages", "ana", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMarkRead(t *testing.T) {
	h, store, notifier := newTestServer(t)
	ctx := context.Background()

	_, convID, err := store.SendMessage(ctx, "ana", "luis", "hola", chat.MessageText, time.Now())
	require.NoError(t, err)

	rec := doJSON(t, h, http.MethodPost, "/api/v1/conversations/"+convID+"/read", "luis", "")
	require.Equal(t, http.StatusOK, rec.Code)

	convs, err := store.ListConversations(ctx, "luis")
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, 0, convs[0].UnreadCount)

	require.Len(t, notifier.events, 1)
	assert.Equal(t, "marked_read", notifier.events[0].reason)
}

func TestMarkReadUnknownConversation(t *testing.T) {
	h, _, _ := newTestServer(t)
	rec := doJSON(t, h, http.MethodPost, "/api/v1/conversations/nope/read", "luis", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUploadAttachmentUnavailableWithoutUploader(t *testing.T) {
	h, _, _ := newTestServer(t)
	rec := doJSON(t, h, http.MethodPost, "/api/v1/attachments", "ana", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestUpsertProfile(t *testing.T) {
	h, store, _ := newTestServer(t)
	rec := doJSON(t, h, http.MethodPost, "/api/v1/profiles", "", `{"id":"caro","name":"Carolina Soto","role":"broker"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	p, err := store.Profile(context.Background(), "caro")
	require.NoError(t, err)
	assert.Equal(t, "Carolina Soto", p.Name)
}

func TestHealthEndpoints(t *testing.T) {
	h, _, _ := newTestServer(t)
	rec := doJSON(t, h, http.MethodGet, "/livez", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = doJSON(t, h, http.MethodGet, "/readyz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
