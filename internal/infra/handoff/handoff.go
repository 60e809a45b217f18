// Package handoff implements the one-shot slot used to pass a "contact this
// person" command into the chat view. A payload is written once, read once
// and then gone, whatever the outcome of the read.
package handoff

import (
	"context"
	"sync"
	"time"

	"rentchat/internal/domain/chat"
)

// Slot stores at most one pending handoff payload.
type Slot interface {
	// Put replaces any pending payload.
	Put(ctx context.Context, h chat.Handoff) error
	// Take removes and returns the pending payload. ok is false when the
	// slot is empty or the payload expired.
	Take(ctx context.Context) (h chat.Handoff, ok bool, err error)
}

// MemorySlot keeps the payload in process memory, for single-process runs
// and tests.
type MemorySlot struct {
	mu      sync.Mutex
	pending *chat.Handoff
	expiry  time.Time
	ttl     time.Duration
	now     func() time.Time
}

// NewMemorySlot builds a slot whose payloads expire after ttl. A zero ttl
// means payloads never expire.
func NewMemorySlot(ttl time.Duration) *MemorySlot {
	return &MemorySlot{ttl: ttl, now: time.Now}
}

func (s *MemorySlot) Put(ctx context.Context, h chat.Handoff) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = &h
	if s.ttl > 0 {
		s.expiry = s.now().Add(s.ttl)
	} else {
		s.expiry = time.Time{}
	}
	return nil
}

func (s *MemorySlot) Take(ctx context.Context) (chat.Handoff, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return chat.Handoff{}, false, nil
	}
	h := *s.pending
	s.pending = nil
	if !s.expiry.IsZero() && s.now().After(s.expiry) {
		return chat.Handoff{}, false, nil
	}
	return h, true, nil
}

var _ Slot = (*MemorySlot)(nil)
