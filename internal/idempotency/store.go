// Package idempotency remembers recently used submission keys so a retried
// checkout does not create a second order.
package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

type Store interface {
	// Claim reports whether key was free and is now held by the caller.
	Claim(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func redisKey(key string) string {
	return "idempotent-key:" + key
}

func (s *RedisStore) Claim(ctx context.Context, key string) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, redisKey(key), "claimed", s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("idempotency: failed to claim key: %w", err)
	}
	return ok, nil
}

func (s *RedisStore) Release(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, redisKey(key)).Err(); err != nil {
		return fmt.Errorf("idempotency: failed to release key: %w", err)
	}
	return nil
}

// NopStore accepts every key. Used when Redis is not configured.
type NopStore struct{}

func (NopStore) Claim(context.Context, string) (bool, error) { return true, nil }

func (NopStore) Release(context.Context, string) error { return nil }
