package handoff

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"rentchat/internal/domain/chat"
)

// RedisSlot stores the pending handoff in Redis so the contact action and
// the chat view can live in different processes. Read-once is GETDEL.
type RedisSlot struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRedisSlot builds a slot on the well-known handoff key.
func NewRedisSlot(client *redis.Client, ttl time.Duration) *RedisSlot {
	return &RedisSlot{client: client, key: chat.HandoffKey, ttl: ttl}
}

func (s *RedisSlot) Put(ctx context.Context, h chat.Handoff) error {
	raw, err := json.Marshal(h)
	if err != nil {
		return fmt.Errorf("handoff: encode payload: %w", err)
	}
	return s.client.Set(ctx, s.key, raw, s.ttl).Err()
}

func (s *RedisSlot) Take(ctx context.Context) (chat.Handoff, bool, error) {
	raw, err := s.client.GetDel(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return chat.Handoff{}, false, nil
	}
	if err != nil {
		return chat.Handoff{}, false, fmt.Errorf("handoff: read slot: %w", err)
	}
	h, err := chat.DecodeHandoff(raw)
	if err != nil {
		// Already consumed; the malformed payload is dropped.
		return chat.Handoff{}, false, err
	}
	return h, true, nil
}

var _ Slot = (*RedisSlot)(nil)
