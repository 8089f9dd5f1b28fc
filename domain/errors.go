package domain

import (
	"errors"
	"fmt"
)

// ErrConcurrencyConflict indicates that the underlying storage rejected an
// update because another writer changed the entity in between.
var ErrConcurrencyConflict = errors.New("concurrency conflict")

// ValidationError is a synchronous ingestion-time rejection. Commands that
// fail validation are returned to the caller and never enqueued.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
