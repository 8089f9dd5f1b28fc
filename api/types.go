package api

import (
	"context"

	"vendor-bridge/domain"
)

// Storage abstracts command persistence for handlers.
type Storage interface {
	EnqueueCommand(ctx context.Context, cmd domain.Command) error
}

// Authenticator is implemented by types able to extract user IDs from headers.
type Authenticator interface {
	UserIDFromAuthHeader(string) (string, error)
}

// Deduper collapses duplicate submissions of the same correlation id
// within the detection window.
type Deduper interface {
	// Add records the correlation id and returns true if it was newly added.
	Add(ctx context.Context, correlationID string) (bool, error)
	// Remove releases a claim when the enqueue could not be completed.
	Remove(ctx context.Context, correlationID string) error
}

// mutationRequest is the JSON body accepted on every mutation route.
type mutationRequest struct {
	Payload     domain.VendorPayload `json:"payload"`
	UserContext domain.UserContext   `json:"userContext"`
}

// mutationResponse is the synchronous reply; execution happens later.
type mutationResponse struct {
	CorrelationID string `json:"correlationId"`
	Status        string `json:"status"`
	Message       string `json:"message,omitempty"`
}
