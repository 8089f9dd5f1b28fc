package api

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const submitKeyPrefix = "submit:"

// RedisDeduper stores claimed correlation ids in Redis so all gateway
// instances see the same duplicate-detection window.
type RedisDeduper struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisDeduper creates a deduper using the provided Redis client and TTL.
func NewRedisDeduper(client *redis.Client, ttl time.Duration) *RedisDeduper {
	return &RedisDeduper{client: client, ttl: ttl}
}

// Add records the correlation id if it does not already exist. It returns
// true when the id was newly claimed.
func (r *RedisDeduper) Add(ctx context.Context, correlationID string) (bool, error) {
	return r.client.SetNX(ctx, submitKeyPrefix+correlationID, 1, r.ttl).Result()
}

// Remove releases a previously claimed id. It is used when the enqueue
// fails so the caller may resubmit.
func (r *RedisDeduper) Remove(ctx context.Context, correlationID string) error {
	return r.client.Del(ctx, submitKeyPrefix+correlationID).Err()
}
