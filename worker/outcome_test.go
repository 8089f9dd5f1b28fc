package worker

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"vendor-bridge/domain"
)

func newTestOutcomeCache(t *testing.T) (*RedisOutcomeCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisOutcomeCache(client, time.Hour), mr
}

func TestOutcomeCacheRoundTrip(t *testing.T) {
	cache, _ := newTestOutcomeCache(t)
	ctx := context.Background()

	ev := domain.StatusEvent{
		CorrelationID:    "corr-1",
		UserID:           "user-1",
		Status:           domain.StatusSuccess,
		ExternalRecordID: "0001234567",
		Warnings:         []string{"individual credential unavailable; executed under system identity"},
		EmittedAt:        42,
	}
	if err := cache.Put(ctx, ev); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := cache.Get(ctx, "corr-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil {
		t.Fatal("expected cached outcome")
	}
	if got.Status != ev.Status || got.ExternalRecordID != ev.ExternalRecordID || got.EmittedAt != ev.EmittedAt {
		t.Fatalf("outcome not preserved: %+v", got)
	}
	if len(got.Warnings) != 1 {
		t.Fatalf("warnings not preserved: %+v", got.Warnings)
	}
}

func TestOutcomeCacheMiss(t *testing.T) {
	cache, _ := newTestOutcomeCache(t)
	got, err := cache.Get(context.Background(), "unknown")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Fatalf("expected miss, got %+v", got)
	}
}

func TestOutcomeCacheExpires(t *testing.T) {
	cache, mr := newTestOutcomeCache(t)
	ctx := context.Background()

	ev := domain.StatusEvent{CorrelationID: "corr-1", UserID: "user-1", Status: domain.StatusFailure}
	if err := cache.Put(ctx, ev); err != nil {
		t.Fatalf("put: %v", err)
	}
	mr.FastForward(2 * time.Hour)

	got, err := cache.Get(ctx, "corr-1")
	if err != nil || got != nil {
		t.Fatalf("expected expiry, got %+v err %v", got, err)
	}
}
