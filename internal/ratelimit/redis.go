package ratelimit

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore backs the limiter with shared Redis counters so several
// server instances enforce one combined limit. Counter keys expire with
// the window; a separate block key carries the block duration.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps an existing Redis client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func counterKey(limitType, clientID string) string {
	return fmt.Sprintf("ratelimit:%s:%s", limitType, clientID)
}

func blockKey(limitType, clientID string) string {
	return fmt.Sprintf("ratelimit:block:%s:%s", limitType, clientID)
}

// Allow implements Store.
func (s *RedisStore) Allow(ctx context.Context, limitType, clientID string, cfg Config) (bool, string, error) {
	bk := blockKey(limitType, clientID)

	ttl, err := s.client.TTL(ctx, bk).Result()
	if err != nil {
		return false, "", fmt.Errorf("ttl %s: %w", bk, err)
	}
	if ttl > 0 {
		return false, fmt.Sprintf("Rate limit exceeded. Try again in %d seconds", int(ttl.Seconds())), nil
	}

	ck := counterKey(limitType, clientID)
	count, err := s.client.Incr(ctx, ck).Result()
	if err != nil {
		return false, "", fmt.Errorf("incr %s: %w", ck, err)
	}

	// First request of a window starts its expiry.
	if count == 1 {
		if err := s.client.Expire(ctx, ck, cfg.Window).Err(); err != nil {
			return false, "", fmt.Errorf("expire %s: %w", ck, err)
		}
	}

	if count > int64(cfg.MaxRequests) {
		if err := s.client.Set(ctx, bk, "1", cfg.BlockDuration).Err(); err != nil {
			return false, "", fmt.Errorf("set %s: %w", bk, err)
		}
		return false, fmt.Sprintf("Rate limit exceeded. Blocked for %d seconds", int(cfg.BlockDuration.Seconds())), nil
	}

	return true, "", nil
}

// Reset implements Store.
func (s *RedisStore) Reset(ctx context.Context, limitType, clientID string) error {
	return s.client.Del(ctx, counterKey(limitType, clientID), blockKey(limitType, clientID)).Err()
}
