package notify

import (
	"context"
	"encoding/json"
	"testing"

	"vendor-bridge/domain"
)

func TestNotifierPushesToSubscriber(t *testing.T) {
	hub := NewHub()
	ch := hub.Subscribe("user-1")
	n := NewNotifier(hub)

	ev := domain.StatusEvent{
		CorrelationID:    "corr-1",
		UserID:           "user-1",
		Status:           domain.StatusSuccess,
		ExternalRecordID: "0001234567",
		Warnings:         []string{"individual credential unavailable; executed under system identity"},
		EmittedAt:        42,
	}
	if err := n.Handle(context.Background(), ev); err != nil {
		t.Fatalf("handle: %v", err)
	}

	var got pushPayload
	select {
	case data := <-ch:
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
	default:
		t.Fatal("no notification delivered")
	}
	if got.CorrelationID != "corr-1" || got.Status != domain.StatusSuccess || got.ExternalRecordID != "0001234567" {
		t.Fatalf("unexpected payload: %+v", got)
	}
	if len(got.Warnings) != 1 {
		t.Fatalf("warnings not forwarded: %+v", got.Warnings)
	}
}

func TestNotifierConsumesEventWithoutConnection(t *testing.T) {
	n := NewNotifier(NewHub())
	ev := domain.StatusEvent{CorrelationID: "corr-1", UserID: "offline-user", Status: domain.StatusFailure}
	if err := n.Handle(context.Background(), ev); err != nil {
		t.Fatalf("absent connection must not fail the handler: %v", err)
	}
}

func TestNotifierOmitsInternalFields(t *testing.T) {
	hub := NewHub()
	ch := hub.Subscribe("user-1")
	n := NewNotifier(hub)

	ev := domain.StatusEvent{CorrelationID: "corr-1", UserID: "user-1", Status: domain.StatusFailure, Errors: []string{"rejected"}, EmittedAt: 42}
	if err := n.Handle(context.Background(), ev); err != nil {
		t.Fatalf("handle: %v", err)
	}

	data := <-ch
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if _, ok := raw["userId"]; ok {
		t.Fatal("push payload must not echo the user id")
	}
	if _, ok := raw["emittedAt"]; ok {
		t.Fatal("push payload must not expose internal timestamps")
	}
}
