package idempotency

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store deduplicates at-least-once deliveries (gateway webhooks, consumer
// offsets) with TTL-bounded Redis keys.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	return &Store{rdb: rdb, ttl: ttl}
}

// Seen atomically claims the key; the first caller gets false, replays get
// true until the TTL lapses.
func (s *Store) Seen(ctx context.Context, key string) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, "idem:"+key, "1", s.ttl).Result()
	if err != nil {
		return false, err
	}
	return !ok, nil
}

// Forget releases a claim, letting the sender's retry through after a
// processing failure.
func (s *Store) Forget(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, "idem:"+key).Err()
}
