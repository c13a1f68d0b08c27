// Package dedup provides a TTL-bounded duplicate-event cache. Chat channels
// redeliver webhooks on timeout, so every inbound event id is checked here
// before it enters the pipeline.
package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store marks event ids as seen. MarkProcessed returns true when the id was
// newly marked, false when it was already seen inside the TTL window.
type Store interface {
	MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error)
}

const defaultKeyPrefix = "event:dedup:"

// RedisStore is the shared-state implementation for multi-worker deployments.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
}

func NewRedisStore(client *redis.Client, keyPrefix string) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}
	return &RedisStore{client: client, keyPrefix: keyPrefix}
}

// MarkProcessed uses SETNX so check-and-mark is a single atomic operation.
func (s *RedisStore) MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error) {
	fresh, err := s.client.SetNX(ctx, s.keyPrefix+eventID, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("dedup: mark %s: %w", eventID, err)
	}
	return fresh, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
