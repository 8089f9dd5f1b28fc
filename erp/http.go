package erp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"vendor-bridge/domain"
	"vendor-bridge/identity"
)

// HTTPBridge talks to the ERP backend through its RFC-over-HTTP gateway.
// One route per mutation kind; the call blocks until the backend commits or
// rejects the mutation.
type HTTPBridge struct {
	endpoint string
	hc       *http.Client
}

// NewHTTPBridge creates a bridge client for the given gateway endpoint.
// Call deadlines come from the caller's context; the embedded http.Client
// carries no timeout of its own.
func NewHTTPBridge(endpoint string, hc *http.Client) *HTTPBridge {
	if hc == nil {
		hc = &http.Client{}
	}
	return &HTTPBridge{endpoint: endpoint, hc: hc}
}

type bapiRequest struct {
	Vendor     domain.VendorPayload `json:"vendor"`
	OnBehalfOf string               `json:"onBehalfOf,omitempty"`
}

type bapiResponse struct {
	VendorID string   `json:"vendorId"`
	Messages []string `json:"messages"`
}

// Execute performs one BAPI-equivalent call under the resolved credential.
func (b *HTTPBridge) Execute(ctx context.Context, cred identity.Credential, op domain.Operation, payload domain.VendorPayload) (domain.BapiResult, error) {
	body, err := json.Marshal(bapiRequest{Vendor: payload, OnBehalfOf: cred.Subject})
	if err != nil {
		return domain.BapiResult{}, err
	}
	url := fmt.Sprintf("%s/bapi/vendor/%s", b.endpoint, op)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return domain.BapiResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(cred.User, cred.Secret)

	resp, err := b.hc.Do(req)
	if err != nil {
		// covers dial failures, resets and context deadlines
		return domain.BapiResult{}, &TransientError{Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return domain.BapiResult{}, &TransientError{Err: err}
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var br bapiResponse
		if err := json.Unmarshal(data, &br); err != nil {
			return domain.BapiResult{}, &TransientError{Err: fmt.Errorf("malformed success response: %w", err)}
		}
		if br.VendorID == "" {
			return domain.BapiResult{}, &TransientError{Err: fmt.Errorf("success response without vendor id")}
		}
		return domain.BapiResult{Success: true, ExternalRecordID: br.VendorID}, nil
	case resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return domain.BapiResult{}, &TransientError{Err: fmt.Errorf("erp gateway returned %d", resp.StatusCode)}
	default:
		// 4xx: the backend evaluated the request and rejected it
		var br bapiResponse
		if err := json.Unmarshal(data, &br); err != nil || len(br.Messages) == 0 {
			return domain.BapiResult{Success: false, Errors: []string{fmt.Sprintf("erp rejected request with status %d", resp.StatusCode)}}, nil
		}
		return domain.BapiResult{Success: false, Errors: br.Messages}, nil
	}
}
