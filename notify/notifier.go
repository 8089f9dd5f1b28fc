package notify

import (
	"context"
	"encoding/json"

	log "github.com/sirupsen/logrus"

	"vendor-bridge/domain"
)

// pushPayload is the wire shape delivered to the portal client.
type pushPayload struct {
	CorrelationID    string   `json:"correlationId"`
	Status           string   `json:"status"`
	ExternalRecordID string   `json:"externalRecordId,omitempty"`
	Errors           []string `json:"errors,omitempty"`
	Warnings         []string `json:"warnings,omitempty"`
}

// Notifier forwards status events to the submitting user's live
// connection. Events for users without a connection are dropped; missed
// notifications are recoverable through the portal's state query path, not
// through the stream.
type Notifier struct {
	hub *Hub
}

func NewNotifier(hub *Hub) *Notifier {
	return &Notifier{hub: hub}
}

// Handle resolves the event's user and pushes the notification. It never
// returns an error for an absent connection; the event is consumed either
// way.
func (n *Notifier) Handle(_ context.Context, ev domain.StatusEvent) error {
	data, err := json.Marshal(pushPayload{
		CorrelationID:    ev.CorrelationID,
		Status:           ev.Status,
		ExternalRecordID: ev.ExternalRecordID,
		Errors:           ev.Errors,
		Warnings:         ev.Warnings,
	})
	if err != nil {
		return err
	}
	if !n.hub.Push(ev.UserID, data) {
		log.WithFields(log.Fields{"correlationId": ev.CorrelationID, "user": ev.UserID}).
			Debug("no live connection, dropping notification")
	}
	return nil
}
