package handoff

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentchat/internal/domain/chat"
)

func TestMemorySlotTakeIsReadOnce(t *testing.T) {
	slot := NewMemorySlot(0)
	ctx := context.Background()
	require.NoError(t, slot.Put(ctx, chat.Handoff{ID: "u9", Name: "Nuevo Contacto"}))

	h, ok, err := slot.Take(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "u9", h.ID)

	_, ok, err = slot.Take(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "second take must find the slot empty")
}

func TestMemorySlotEmpty(t *testing.T) {
	slot := NewMemorySlot(0)
	_, ok, err := slot.Take(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemorySlotPutReplacesPending(t *testing.T) {
	slot := NewMemorySlot(0)
	ctx := context.Background()
	require.NoError(t, slot.Put(ctx, chat.Handoff{ID: "a", Name: "A"}))
	require.NoError(t, slot.Put(ctx, chat.Handoff{ID: "b", Name: "B"}))

	h, ok, err := slot.Take(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "b", h.ID)
}

func TestMemorySlotExpiry(t *testing.T) {
	slot := NewMemorySlot(time.Minute)
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	slot.now = func() time.Time { return now }
	ctx := context.Background()
	require.NoError(t, slot.Put(ctx, chat.Handoff{ID: "u9", Name: "N"}))

	now = now.Add(2 * time.Minute)
	_, ok, err := slot.Take(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "expired payload must not be delivered")

	// And it was consumed either way.
	_, ok, err = slot.Take(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}
