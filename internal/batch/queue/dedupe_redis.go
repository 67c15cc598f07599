package queue

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const dedupeKeyPrefix = "kintai:dedupe:"

// RedisDeduper claims idempotency keys with SETNX so replicas sharing the
// consumer group agree on who processed a trigger.
type RedisDeduper struct {
	client *redis.Client
}

// NewRedisDeduper wraps a Redis client.
func NewRedisDeduper(client *redis.Client) *RedisDeduper {
	return &RedisDeduper{client: client}
}

// TryAcquire claims the key for the TTL; false when already claimed.
func (d *RedisDeduper) TryAcquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return d.client.SetNX(ctx, dedupeKeyPrefix+key, "1", ttl).Result()
}
