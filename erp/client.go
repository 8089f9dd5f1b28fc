// Package erp adapts vendor commands to the legacy backend's synchronous
// BAPI-style call.
package erp

import (
	"context"
	"errors"

	"vendor-bridge/domain"
	"vendor-bridge/identity"
)

// Client performs one synchronous call against the ERP backend.
//
// Failure classification is the adapter's most important contract: business
// rejections come back as a BapiResult with Success=false and a nil error,
// while connectivity-shaped failures come back as a *TransientError so the
// orchestrator can let the queue redeliver. Nothing else is ever returned.
type Client interface {
	Execute(ctx context.Context, cred identity.Credential, op domain.Operation, payload domain.VendorPayload) (domain.BapiResult, error)
}

// TransientError marks a failure worth retrying: timeouts, connectivity
// loss, throttling, backend unavailability.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return "transient erp failure: " + e.Err.Error() }

func (e *TransientError) Unwrap() error { return e.Err }

// IsTransient reports whether err is a retryable execution failure.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
