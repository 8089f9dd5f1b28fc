// Package events publishes and consumes status events over Redis Streams.
package events

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"vendor-bridge/domain"
)

const eventField = "event"

// Publisher appends status events to the stream. Retention is bounded via
// approximate MaxLen trimming; outcome events are perishable signals, not
// an audit log.
type Publisher struct {
	rc     *redis.Client
	stream string
	maxLen int64
}

func NewPublisher(rc *redis.Client, stream string, maxLen int64) *Publisher {
	return &Publisher{rc: rc, stream: stream, maxLen: maxLen}
}

// Publish appends one status event. Callers must treat a returned error as
// "not emitted" and leave the originating command unacknowledged.
func (p *Publisher) Publish(ctx context.Context, ev domain.StatusEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.rc.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"correlationId": ev.CorrelationID,
			eventField:      string(data),
		},
	}).Err()
}

// Consumer reads status events through a consumer group, giving
// at-least-once delivery per group. Unacknowledged entries are reclaimed
// from crashed consumers after ClaimMinIdle.
type Consumer struct {
	rc           *redis.Client
	stream       string
	group        string
	name         string
	claimMinIdle time.Duration
}

func NewConsumer(rc *redis.Client, stream, group, name string, claimMinIdle time.Duration) *Consumer {
	return &Consumer{rc: rc, stream: stream, group: group, name: name, claimMinIdle: claimMinIdle}
}

// EnsureGroup creates the consumer group, tolerating concurrent creation.
func (c *Consumer) EnsureGroup(ctx context.Context) error {
	err := c.rc.XGroupCreateMkStream(ctx, c.stream, c.group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return err
	}
	return nil
}

// Run consumes events until the context is cancelled. An event is
// acknowledged only after handle returns nil; failed events stay pending
// and are redelivered.
func (c *Consumer) Run(ctx context.Context, handle func(ctx context.Context, ev domain.StatusEvent) error) {
	for {
		if ctx.Err() != nil {
			return
		}
		if err := c.poll(ctx, handle); err != nil {
			if err == redis.Nil || ctx.Err() != nil {
				continue
			}
			log.WithError(err).Error("read status stream")
			time.Sleep(time.Second)
		}
	}
}

// poll runs one consume cycle: reclaim stale pending entries, then read
// and dispatch new ones.
func (c *Consumer) poll(ctx context.Context, handle func(ctx context.Context, ev domain.StatusEvent) error) error {
	c.claimStale(ctx, handle)

	streams, err := c.rc.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.group,
		Consumer: c.name,
		Streams:  []string{c.stream, ">"},
		Count:    16,
		Block:    5 * time.Second,
	}).Result()
	if err != nil {
		return err
	}
	for _, st := range streams {
		c.dispatch(ctx, st.Messages, handle)
	}
	return nil
}

func (c *Consumer) claimStale(ctx context.Context, handle func(ctx context.Context, ev domain.StatusEvent) error) {
	if c.claimMinIdle <= 0 {
		return
	}
	msgs, _, err := c.rc.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   c.stream,
		Group:    c.group,
		Consumer: c.name,
		MinIdle:  c.claimMinIdle,
		Start:    "0-0",
		Count:    16,
	}).Result()
	if err != nil {
		if err != redis.Nil && ctx.Err() == nil {
			log.WithError(err).Debug("autoclaim status stream")
		}
		return
	}
	c.dispatch(ctx, msgs, handle)
}

func (c *Consumer) dispatch(ctx context.Context, msgs []redis.XMessage, handle func(ctx context.Context, ev domain.StatusEvent) error) {
	for _, m := range msgs {
		raw, ok := m.Values[eventField].(string)
		if !ok {
			log.WithField("id", m.ID).Warn("stream entry without event payload")
			c.rc.XAck(ctx, c.stream, c.group, m.ID)
			continue
		}
		var ev domain.StatusEvent
		if err := json.Unmarshal([]byte(raw), &ev); err != nil {
			log.WithError(err).WithField("id", m.ID).Warn("malformed status event")
			c.rc.XAck(ctx, c.stream, c.group, m.ID)
			continue
		}
		if err := handle(ctx, ev); err != nil {
			log.WithError(err).WithField("correlationId", ev.CorrelationID).Error("handle status event")
			continue
		}
		if err := c.rc.XAck(ctx, c.stream, c.group, m.ID).Err(); err != nil {
			log.WithError(err).WithField("id", m.ID).Error("ack status event")
		}
	}
}
