package domain

// Terminal statuses carried by a StatusEvent.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// DeadLetterError marks a failure event produced when a command exhausted
// its delivery attempts without reaching the ERP backend successfully.
const DeadLetterError = "delivery attempts exhausted; operator resubmission required"

// StatusEvent is the immutable terminal outcome of a command. Exactly one
// is emitted per correlation id; the stream retains it only for a bounded
// window, so consumers must act promptly.
type StatusEvent struct {
	CorrelationID    string   `json:"correlationId"`
	UserID           string   `json:"userId"`
	Status           string   `json:"status"`
	ExternalRecordID string   `json:"externalRecordId,omitempty"`
	Errors           []string `json:"errors,omitempty"`
	Warnings         []string `json:"warnings,omitempty"`
	EmittedAt        int64    `json:"emittedAt"`
}
