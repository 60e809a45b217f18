package chat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSortMessagesAscending(t *testing.T) {
	base := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	messages := []Message{
		{ID: "c", Timestamp: base.Add(2 * time.Minute)},
		{ID: "a", Timestamp: base},
		{ID: "b", Timestamp: base.Add(time.Minute)},
	}
	SortMessages(messages)
	assert.Equal(t, "a", messages[0].ID)
	assert.Equal(t, "b", messages[1].ID)
	assert.Equal(t, "c", messages[2].ID)
}

func TestSortMessagesStableOnEqualTimestamps(t *testing.T) {
	ts := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	messages := []Message{
		{ID: "first", Timestamp: ts},
		{ID: "second", Timestamp: ts},
	}
	SortMessages(messages)
	assert.Equal(t, "first", messages[0].ID)
	assert.Equal(t, "second", messages[1].ID)
}

func TestMatchesSearch(t *testing.T) {
	conv := Conversation{
		ParticipantName: "Ana García",
		PropertyAddress: "Av. Las Condes 1234",
		LastMessage:     LastMessage{Content: "¿Sigue disponible el departamento?"},
	}
	assert.True(t, conv.MatchesSearch(""))
	assert.True(t, conv.MatchesSearch("ana"))
	assert.True(t, conv.MatchesSearch("CONDES"))
	assert.True(t, conv.MatchesSearch("disponible"))
	assert.False(t, conv.MatchesSearch("luis"))
}

func TestActiveOn(t *testing.T) {
	now := time.Date(2026, 3, 14, 23, 30, 0, 0, time.UTC)
	today := Conversation{LastMessage: LastMessage{Timestamp: now.Add(-2 * time.Hour)}}
	yesterday := Conversation{LastMessage: LastMessage{Timestamp: now.Add(-24 * time.Hour)}}
	never := Conversation{}

	assert.True(t, today.ActiveOn(now))
	assert.False(t, yesterday.ActiveOn(now))
	assert.False(t, never.ActiveOn(now))
}

func TestValidateContent(t *testing.T) {
	text, err := ValidateContent("  hola  ")
	require.NoError(t, err)
	assert.Equal(t, "hola", text)

	_, err = ValidateContent("   ")
	assert.ErrorIs(t, err, ErrEmptyContent)

	_, err = ValidateContent("")
	assert.ErrorIs(t, err, ErrEmptyContent)
}

func TestDecodeHandoff(t *testing.T) {
	raw := []byte(`{"id":"u9","name":"Nuevo Contacto","propertyTitle":"Depto X"}`)
	h, err := DecodeHandoff(raw)
	require.NoError(t, err)
	assert.Equal(t, "u9", h.ID)
	assert.Equal(t, "Nuevo Contacto", h.Name)
	assert.Equal(t, "Depto X", h.PropertyTitle)
}

func TestDecodeHandoffRejectsMalformedPayloads(t *testing.T) {
	cases := map[string][]byte{
		"not json":     []byte("{"),
		"missing id":   []byte(`{"name":"Ana"}`),
		"missing name": []byte(`{"id":"u1"}`),
		"blank fields": []byte(`{"id":"  ","name":" "}`),
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeHandoff(raw)
			assert.ErrorIs(t, err, ErrInvalidHandoff)
		})
	}
}

func TestHandoffConversation(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	h := Handoff{ID: "u9", Name: "Nuevo Contacto", Type: "owner", PropertyTitle: "Depto X"}
	conv := h.Conversation(now)

	assert.Equal(t, "new-u9", conv.ID)
	assert.Equal(t, "u9", conv.ParticipantID)
	assert.Equal(t, "Nuevo Contacto", conv.ParticipantName)
	assert.Equal(t, "owner", conv.ParticipantRole)
	assert.Equal(t, ConversationActive, conv.Status)
	assert.True(t, conv.Synthetic)
	assert.Zero(t, conv.UnreadCount)
}
