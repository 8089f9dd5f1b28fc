package domain

// BapiResult is the outcome of one synchronous call against the ERP
// backend. On success ExternalRecordID is populated; on failure Errors
// carries the backend's ordered, human-readable messages.
type BapiResult struct {
	Success          bool     `json:"success"`
	ExternalRecordID string   `json:"externalRecordId,omitempty"`
	Errors           []string `json:"errors,omitempty"`
}
