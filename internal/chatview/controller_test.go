package chatview

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentchat/internal/domain/chat"
	"rentchat/internal/infra/handoff"
)

type sentMessage struct {
	receiverID string
	content    string
}

// fakeAPI is an in-memory ChatAPI double. The onListMessages and onSend
// hooks let tests interleave calls the way a UI event loop would.
type fakeAPI struct {
	conversations        []chat.Conversation
	messages             map[string][]chat.Message
	listConversationsErr error
	listMessagesErr      error
	sendErr              error

	listConversationsCalls int
	listMessagesCalls      int
	sent                   []sentMessage
	markedRead             []string

	onListMessages func()
	onSend         func()
}

func (f *fakeAPI) ListConversations(_ context.Context, _ string) ([]chat.Conversation, error) {
	f.listConversationsCalls++
	if f.listConversationsErr != nil {
		return nil, f.listConversationsErr
	}
	out := make([]chat.Conversation, len(f.conversations))
	copy(out, f.conversations)
	return out, nil
}

func (f *fakeAPI) ListMessages(_ context.Context, _, participantID string, _ int) ([]chat.Message, error) {
	f.listMessagesCalls++
	if f.onListMessages != nil {
		hook := f.onListMessages
		f.onListMessages = nil
		hook()
	}
	if f.listMessagesErr != nil {
		return nil, f.listMessagesErr
	}
	out := make([]chat.Message, len(f.messages[participantID]))
	copy(out, f.messages[participantID])
	return out, nil
}

func (f *fakeAPI) SendMessage(_ context.Context, userID, receiverID, content string) error {
	if f.onSend != nil {
		hook := f.onSend
		f.onSend = nil
		hook()
	}
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, sentMessage{receiverID: receiverID, content: content})
	f.messages[receiverID] = append(f.messages[receiverID], chat.Message{
		ID:        "sent",
		Content:   content,
		SenderID:  userID,
		Timestamp: time.Now(),
	})
	return nil
}

func (f *fakeAPI) MarkRead(_ context.Context, _, conversationID string) error {
	f.markedRead = append(f.markedRead, conversationID)
	return nil
}

func fixedNow() time.Time {
	return time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
}

func twoConversations() []chat.Conversation {
	return []chat.Conversation{
		{ID: "c-ana", ParticipantID: "ana", ParticipantName: "Ana", UnreadCount: 2,
			LastMessage: chat.LastMessage{Content: "hola", Timestamp: fixedNow().Add(-time.Hour)}},
		{ID: "c-luis", ParticipantID: "luis", ParticipantName: "Luis", UnreadCount: 0,
			LastMessage: chat.LastMessage{Content: "ok", Timestamp: fixedNow().Add(-2 * time.Hour)}},
	}
}

func newController(api *fakeAPI, slot HandoffSource) *Controller {
	return NewController(ControllerConfig{API: api, Handoff: slot, Now: fixedNow})
}

func TestMountLoadsConversations(t *testing.T) {
	api := &fakeAPI{conversations: twoConversations(), messages: map[string][]chat.Message{}}
	c := newController(api, nil)
	c.Mount(context.Background(), "me")

	assert.Len(t, c.Conversations(""), 2)
	_, active := c.Active()
	assert.False(t, active)
	assert.Equal(t, PhaseIdle, c.Phase())
}

func TestSelectSortsMessagesAndZeroesUnread(t *testing.T) {
	day := fixedNow().Truncate(24 * time.Hour)
	api := &fakeAPI{
		conversations: twoConversations(),
		messages: map[string][]chat.Message{
			"ana": {
				{ID: "m2", Timestamp: day.Add(10*time.Hour + 2*time.Minute)},
				{ID: "m0", Timestamp: day.Add(10 * time.Hour)},
				{ID: "m1", Timestamp: day.Add(10*time.Hour + time.Minute)},
			},
		},
	}
	c := newController(api, nil)
	ctx := context.Background()
	c.Mount(ctx, "me")

	before := c.Stats()
	require.Equal(t, 2, before.Unread)

	c.Select(ctx, "c-ana")

	messages := c.Messages()
	require.Len(t, messages, 3)
	assert.Equal(t, "m0", messages[0].ID)
	assert.Equal(t, "m1", messages[1].ID)
	assert.Equal(t, "m2", messages[2].ID)
	assert.Equal(t, PhaseLoaded, c.Phase())

	// Unread dropped by exactly the conversation's prior count.
	after := c.Stats()
	assert.Equal(t, 0, after.Unread)
	assert.Equal(t, []string{"c-ana"}, api.markedRead)
}

func TestSelectFailureLeavesMessagesUnchanged(t *testing.T) {
	api := &fakeAPI{
		conversations: twoConversations(),
		messages:      map[string][]chat.Message{"ana": {{ID: "m0", Timestamp: fixedNow()}}},
	}
	c := newController(api, nil)
	ctx := context.Background()
	c.Mount(ctx, "me")
	c.Select(ctx, "c-ana")
	require.Len(t, c.Messages(), 1)

	api.listMessagesErr = errors.New("backend down")
	c.Select(ctx, "c-luis")

	assert.Len(t, c.Messages(), 1, "failed load must not clobber the pane")
	assert.Equal(t, PhaseLoaded, c.Phase())
}

func TestStaleLoadIsDiscarded(t *testing.T) {
	api := &fakeAPI{
		conversations: twoConversations(),
		messages: map[string][]chat.Message{
			"ana":  {{ID: "from-ana", Timestamp: fixedNow()}},
			"luis": {{ID: "from-luis", Timestamp: fixedNow()}},
		},
	}
	c := newController(api, nil)
	ctx := context.Background()
	c.Mount(ctx, "me")

	// While Ana's history loads, the user clicks Luis. The interleaved
	// selection must win; Ana's late response is dropped.
	api.onListMessages = func() {
		c.Select(ctx, "c-luis")
	}
	c.Select(ctx, "c-ana")

	active, ok := c.Active()
	require.True(t, ok)
	assert.Equal(t, "c-luis", active.ID)
	require.Len(t, c.Messages(), 1)
	assert.Equal(t, "from-luis", c.Messages()[0].ID)
}

func TestSendEmptyDraftIsNoOp(t *testing.T) {
	api := &fakeAPI{conversations: twoConversations(), messages: map[string][]chat.Message{}}
	c := newController(api, nil)
	ctx := context.Background()
	c.Mount(ctx, "me")
	c.Select(ctx, "c-ana")
	phase := c.Phase()

	c.Composer().SetDraft("   ")
	c.Send(ctx)

	assert.Empty(t, api.sent, "blank drafts never reach the network")
	assert.Equal(t, "   ", c.Composer().Draft())
	assert.Equal(t, phase, c.Phase())
}

func TestSendWithoutSelectionIsNoOp(t *testing.T) {
	api := &fakeAPI{conversations: twoConversations(), messages: map[string][]chat.Message{}}
	c := newController(api, nil)
	c.Mount(context.Background(), "me")

	c.Composer().SetDraft("hola")
	c.Send(context.Background())

	assert.Empty(t, api.sent)
	assert.Equal(t, "hola", c.Composer().Draft())
}

func TestSendSuccessClearsDraftAndRefreshes(t *testing.T) {
	api := &fakeAPI{conversations: twoConversations(), messages: map[string][]chat.Message{}}
	c := newController(api, nil)
	ctx := context.Background()
	c.Mount(ctx, "me")
	c.Select(ctx, "c-ana")
	listCalls := api.listConversationsCalls
	msgCalls := api.listMessagesCalls

	c.Composer().SetDraft("hola ana")
	c.Send(ctx)

	require.Len(t, api.sent, 1)
	assert.Equal(t, sentMessage{receiverID: "ana", content: "hola ana"}, api.sent[0])
	assert.True(t, c.Composer().IsEmpty())
	assert.Equal(t, PhaseLoaded, c.Phase())
	assert.Equal(t, listCalls+1, api.listConversationsCalls, "conversation list reloads after a send")
	assert.Equal(t, msgCalls+1, api.listMessagesCalls, "message pane reloads after a send")
}

func TestSendFailurePreservesDraft(t *testing.T) {
	api := &fakeAPI{conversations: twoConversations(), messages: map[string][]chat.Message{}, sendErr: errors.New("timeout")}
	c := newController(api, nil)
	ctx := context.Background()
	c.Mount(ctx, "me")
	c.Select(ctx, "c-ana")

	c.Composer().SetDraft("hola ana")
	c.Send(ctx)

	assert.Equal(t, "hola ana", c.Composer().Draft(), "failed sends keep the text for retry")
	assert.Equal(t, PhaseLoaded, c.Phase())
	assert.False(t, c.Sending())
}

func TestSendInFlightGuard(t *testing.T) {
	api := &fakeAPI{conversations: twoConversations(), messages: map[string][]chat.Message{}}
	c := newController(api, nil)
	ctx := context.Background()
	c.Mount(ctx, "me")
	c.Select(ctx, "c-ana")

	// A double-submit lands while the first send is still in flight.
	api.onSend = func() {
		c.Send(ctx)
	}
	c.Composer().SetDraft("hola")
	c.Send(ctx)

	assert.Len(t, api.sent, 1, "the in-flight guard must drop the second submit")
}

func TestMountConsumesHandoffOnce(t *testing.T) {
	slot := handoff.NewMemorySlot(0)
	ctx := context.Background()
	require.NoError(t, slot.Put(ctx, chat.Handoff{ID: "u9", Name: "Nuevo Contacto", PropertyTitle: "Depto X"}))

	api := &fakeAPI{conversations: twoConversations(), messages: map[string][]chat.Message{}}
	c := newController(api, slot)
	c.Mount(ctx, "me")

	conversations := c.Conversations("")
	require.Len(t, conversations, 3)
	assert.Equal(t, "u9", conversations[0].ParticipantID, "synthesized conversation sits on top")
	assert.True(t, conversations[0].Synthetic)

	active, ok := c.Active()
	require.True(t, ok)
	assert.Equal(t, "u9", active.ParticipantID)
	assert.Empty(t, c.Messages(), "no history until the first message")

	// A remount must not synthesize a duplicate: the slot is read-once.
	c2 := newController(api, slot)
	c2.Mount(ctx, "me")
	assert.Len(t, c2.Conversations(""), 2)
}

func TestHandoffSelectedBeforeServerListResolves(t *testing.T) {
	slot := handoff.NewMemorySlot(0)
	ctx := context.Background()
	require.NoError(t, slot.Put(ctx, chat.Handoff{ID: "u9", Name: "Nuevo Contacto"}))

	api := &fakeAPI{conversations: twoConversations(), messages: map[string][]chat.Message{}}
	var activeAtListLoad string
	probe := &probingAPI{fakeAPI: api, onListConversations: func(c *Controller) {
		if active, ok := c.Active(); ok {
			activeAtListLoad = active.ParticipantID
		}
	}}
	c := NewController(ControllerConfig{API: probe, Handoff: slot, Now: fixedNow})
	probe.controller = c
	c.Mount(ctx, "me")

	assert.Equal(t, "u9", activeAtListLoad, "synthesized conversation is selected before the list fetch resolves")
}

func TestHandoffAdoptsServerThreadWhenKnown(t *testing.T) {
	slot := handoff.NewMemorySlot(0)
	ctx := context.Background()
	require.NoError(t, slot.Put(ctx, chat.Handoff{ID: "ana", Name: "Ana"}))

	api := &fakeAPI{conversations: twoConversations(), messages: map[string][]chat.Message{}}
	c := newController(api, slot)
	c.Mount(ctx, "me")

	conversations := c.Conversations("")
	require.Len(t, conversations, 2, "server thread replaces the synthesized one")

	active, ok := c.Active()
	require.True(t, ok)
	assert.Equal(t, "c-ana", active.ID, "selection follows the server record")
}

func TestMalformedHandoffIsSkipped(t *testing.T) {
	api := &fakeAPI{conversations: twoConversations(), messages: map[string][]chat.Message{}}
	c := newController(api, failingSlot{})
	c.Mount(context.Background(), "me")

	assert.Len(t, c.Conversations(""), 2, "no conversation is synthesized from a bad payload")
	_, ok := c.Active()
	assert.False(t, ok)
}

// probingAPI observes controller state during list loads.
type probingAPI struct {
	*fakeAPI
	controller          *Controller
	onListConversations func(*Controller)
}

func (p *probingAPI) ListConversations(ctx context.Context, userID string) ([]chat.Conversation, error) {
	if p.onListConversations != nil && p.controller != nil {
		p.onListConversations(p.controller)
	}
	return p.fakeAPI.ListConversations(ctx, userID)
}

type failingSlot struct{}

func (failingSlot) Take(context.Context) (chat.Handoff, bool, error) {
	return chat.Handoff{}, false, chat.ErrInvalidHandoff
}
