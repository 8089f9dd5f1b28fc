package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"vendor-bridge/domain"
)

const outcomeKeyPrefix = "outcome:"

// RedisOutcomeCache keeps terminal outcomes in Redis so every worker
// instance can detect a redelivery of an already-finished command. The TTL
// must cover at least the queue's duplicate-detection window.
type RedisOutcomeCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisOutcomeCache(client *redis.Client, ttl time.Duration) *RedisOutcomeCache {
	return &RedisOutcomeCache{client: client, ttl: ttl}
}

// Get returns the recorded outcome for a correlation id, or nil when none
// is cached.
func (c *RedisOutcomeCache) Get(ctx context.Context, correlationID string) (*domain.StatusEvent, error) {
	data, err := c.client.Get(ctx, outcomeKeyPrefix+correlationID).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var ev domain.StatusEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

// Put records a terminal outcome.
func (c *RedisOutcomeCache) Put(ctx context.Context, ev domain.StatusEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, outcomeKeyPrefix+ev.CorrelationID, data, c.ttl).Err()
}
