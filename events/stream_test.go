package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"vendor-bridge/domain"
)

const (
	testStream = "vendor:status"
	testGroup  = "notify"
)

func newStreamClient(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client, mr
}

func testEvent(id string) domain.StatusEvent {
	return domain.StatusEvent{
		CorrelationID:    id,
		UserID:           "user-1",
		Status:           domain.StatusSuccess,
		ExternalRecordID: "0001234567",
		EmittedAt:        42,
	}
}

func TestPublishAppendsEvent(t *testing.T) {
	client, _ := newStreamClient(t)
	ctx := context.Background()
	pub := NewPublisher(client, testStream, 1000)

	if err := pub.Publish(ctx, testEvent("corr-1")); err != nil {
		t.Fatalf("publish: %v", err)
	}

	entries, err := client.XRange(ctx, testStream, "-", "+").Result()
	if err != nil {
		t.Fatalf("xrange: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Values["correlationId"] != "corr-1" {
		t.Fatalf("correlation field missing: %#v", entries[0].Values)
	}
	var ev domain.StatusEvent
	if err := json.Unmarshal([]byte(entries[0].Values[eventField].(string)), &ev); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if ev.Status != domain.StatusSuccess || ev.ExternalRecordID != "0001234567" {
		t.Fatalf("event not preserved: %+v", ev)
	}
}

func TestEnsureGroupIsIdempotent(t *testing.T) {
	client, _ := newStreamClient(t)
	ctx := context.Background()
	c := NewConsumer(client, testStream, testGroup, "c1", 0)

	if err := c.EnsureGroup(ctx); err != nil {
		t.Fatalf("first ensure: %v", err)
	}
	if err := c.EnsureGroup(ctx); err != nil {
		t.Fatalf("second ensure: %v", err)
	}
}

func TestConsumerDeliversAndAcks(t *testing.T) {
	client, _ := newStreamClient(t)
	ctx := context.Background()
	pub := NewPublisher(client, testStream, 1000)
	c := NewConsumer(client, testStream, testGroup, "c1", 0)

	if err := c.EnsureGroup(ctx); err != nil {
		t.Fatalf("ensure group: %v", err)
	}
	if err := pub.Publish(ctx, testEvent("corr-1")); err != nil {
		t.Fatalf("publish: %v", err)
	}

	var got []domain.StatusEvent
	err := c.poll(ctx, func(ctx context.Context, ev domain.StatusEvent) error {
		got = append(got, ev)
		return nil
	})
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if len(got) != 1 || got[0].CorrelationID != "corr-1" {
		t.Fatalf("unexpected events: %+v", got)
	}

	pending, err := client.XPending(ctx, testStream, testGroup).Result()
	if err != nil {
		t.Fatalf("xpending: %v", err)
	}
	if pending.Count != 0 {
		t.Fatalf("handled event must be acknowledged, %d pending", pending.Count)
	}
}

func TestConsumerLeavesFailedEventPending(t *testing.T) {
	client, _ := newStreamClient(t)
	ctx := context.Background()
	pub := NewPublisher(client, testStream, 1000)
	c := NewConsumer(client, testStream, testGroup, "c1", 0)

	if err := c.EnsureGroup(ctx); err != nil {
		t.Fatalf("ensure group: %v", err)
	}
	if err := pub.Publish(ctx, testEvent("corr-1")); err != nil {
		t.Fatalf("publish: %v", err)
	}

	err := c.poll(ctx, func(ctx context.Context, ev domain.StatusEvent) error {
		return errors.New("socket hub offline")
	})
	if err != nil {
		t.Fatalf("poll: %v", err)
	}

	pending, err := client.XPending(ctx, testStream, testGroup).Result()
	if err != nil {
		t.Fatalf("xpending: %v", err)
	}
	if pending.Count != 1 {
		t.Fatalf("failed event must stay pending, got %d", pending.Count)
	}
}

func TestConsumerAcksUnreadableEntries(t *testing.T) {
	client, _ := newStreamClient(t)
	ctx := context.Background()
	c := NewConsumer(client, testStream, testGroup, "c1", 0)

	if err := c.EnsureGroup(ctx); err != nil {
		t.Fatalf("ensure group: %v", err)
	}
	if err := client.XAdd(ctx, &redis.XAddArgs{
		Stream: testStream,
		Values: map[string]interface{}{"correlationId": "corr-1"},
	}).Err(); err != nil {
		t.Fatalf("xadd: %v", err)
	}
	if err := client.XAdd(ctx, &redis.XAddArgs{
		Stream: testStream,
		Values: map[string]interface{}{eventField: "{not json"},
	}).Err(); err != nil {
		t.Fatalf("xadd: %v", err)
	}

	calls := 0
	err := c.poll(ctx, func(ctx context.Context, ev domain.StatusEvent) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if calls != 0 {
		t.Fatalf("unreadable entries must not reach the handler, got %d calls", calls)
	}

	pending, err := client.XPending(ctx, testStream, testGroup).Result()
	if err != nil {
		t.Fatalf("xpending: %v", err)
	}
	if pending.Count != 0 {
		t.Fatalf("unreadable entries must be acknowledged, %d pending", pending.Count)
	}
}

func TestConsumerReclaimsStaleEntries(t *testing.T) {
	client, _ := newStreamClient(t)
	ctx := context.Background()
	pub := NewPublisher(client, testStream, 1000)

	crashed := NewConsumer(client, testStream, testGroup, "crashed", 0)
	if err := crashed.EnsureGroup(ctx); err != nil {
		t.Fatalf("ensure group: %v", err)
	}
	if err := pub.Publish(ctx, testEvent("corr-1")); err != nil {
		t.Fatalf("publish: %v", err)
	}
	// the first consumer reads the entry but never acknowledges it
	if err := crashed.poll(ctx, func(ctx context.Context, ev domain.StatusEvent) error {
		return errors.New("crash before ack")
	}); err != nil {
		t.Fatalf("poll: %v", err)
	}

	time.Sleep(20 * time.Millisecond)

	survivor := NewConsumer(client, testStream, testGroup, "survivor", time.Millisecond)
	var got []domain.StatusEvent
	// publish a fresh entry so the read phase has data; the stale one
	// arrives through the claim phase
	if err := pub.Publish(ctx, testEvent("corr-2")); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := survivor.poll(ctx, func(ctx context.Context, ev domain.StatusEvent) error {
		got = append(got, ev)
		return nil
	}); err != nil {
		t.Fatalf("poll: %v", err)
	}

	ids := map[string]bool{}
	for _, ev := range got {
		ids[ev.CorrelationID] = true
	}
	if !ids["corr-1"] || !ids["corr-2"] {
		t.Fatalf("expected both the stale and the fresh event, got %+v", got)
	}
}
