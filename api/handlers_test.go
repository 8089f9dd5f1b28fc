package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"vendor-bridge/domain"
)

type fakeStore struct {
	enqueued []domain.Command
	failures int
}

func (f *fakeStore) EnqueueCommand(ctx context.Context, cmd domain.Command) error {
	if f.failures > 0 {
		f.failures--
		return errors.New("queue unavailable")
	}
	f.enqueued = append(f.enqueued, cmd)
	return nil
}

type fakeAuth struct {
	userID string
	err    error
}

func (f fakeAuth) UserIDFromAuthHeader(string) (string, error) {
	return f.userID, f.err
}

type fakeDeduper struct {
	added   []string
	removed []string
	addErr  error
}

func (f *fakeDeduper) Add(ctx context.Context, id string) (bool, error) {
	if f.addErr != nil {
		return false, f.addErr
	}
	f.added = append(f.added, id)
	return true, nil
}

func (f *fakeDeduper) Remove(ctx context.Context, id string) error {
	f.removed = append(f.removed, id)
	return nil
}

func vendorBody() string {
	return `{
		"payload": {"name": "Acme GmbH", "taxId": "DE123456789"},
		"userContext": {"role": "vendor", "userId": "user-1", "invitationToken": "inv-token"}
	}`
}

func newTestGateway(store *fakeStore, auth Authenticator, dd Deduper) (*echo.Echo, *Gateway) {
	logger := log.New()
	g := NewGateway(store, auth, dd, logger, 3, time.Second)
	e := echo.New()
	g.Register(e)
	return e, g
}

func doRequest(e *echo.Echo, method, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/api/vendors", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(echo.HeaderAuthorization, "Bearer x.y.z")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestSubmitAcceptsValidCommand(t *testing.T) {
	store := &fakeStore{}
	dd := &fakeDeduper{}
	e, _ := newTestGateway(store, fakeAuth{userID: "user-1"}, dd)

	rec := doRequest(e, http.MethodPost, vendorBody())
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp mutationResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.CorrelationID == "" || resp.Status != "queued" {
		t.Fatalf("unexpected response: %+v", resp)
	}

	if len(store.enqueued) != 1 {
		t.Fatalf("expected 1 enqueued command, got %d", len(store.enqueued))
	}
	cmd := store.enqueued[0]
	if cmd.CorrelationID != resp.CorrelationID {
		t.Fatalf("correlation id mismatch: %s vs %s", cmd.CorrelationID, resp.CorrelationID)
	}
	if cmd.Operation != domain.OperationCreate {
		t.Fatalf("unexpected operation %q", cmd.Operation)
	}
	if cmd.Payload.Name != "Acme GmbH" {
		t.Fatalf("payload not preserved: %+v", cmd.Payload)
	}
	if len(dd.added) != 1 || dd.added[0] != cmd.CorrelationID {
		t.Fatalf("dedup claim not recorded: %v", dd.added)
	}
}

func TestSubmitMapsMethodsToOperations(t *testing.T) {
	cases := []struct {
		method string
		op     domain.Operation
	}{
		{http.MethodPost, domain.OperationCreate},
		{http.MethodPut, domain.OperationUpdate},
		{http.MethodDelete, domain.OperationDelete},
	}
	for _, tc := range cases {
		store := &fakeStore{}
		e, _ := newTestGateway(store, fakeAuth{userID: "user-1"}, &fakeDeduper{})
		rec := doRequest(e, tc.method, vendorBody())
		if rec.Code != http.StatusAccepted {
			t.Fatalf("%s: expected 202, got %d", tc.method, rec.Code)
		}
		if store.enqueued[0].Operation != tc.op {
			t.Fatalf("%s: expected op %q, got %q", tc.method, tc.op, store.enqueued[0].Operation)
		}
	}
}

func TestSubmitRejectsUnauthenticated(t *testing.T) {
	store := &fakeStore{}
	e, _ := newTestGateway(store, fakeAuth{err: errors.New("bad token")}, &fakeDeduper{})

	rec := doRequest(e, http.MethodPost, vendorBody())
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if len(store.enqueued) != 0 {
		t.Fatal("unauthenticated command must not be enqueued")
	}
}

func TestSubmitRejectsUserMismatch(t *testing.T) {
	store := &fakeStore{}
	e, _ := newTestGateway(store, fakeAuth{userID: "someone-else"}, &fakeDeduper{})

	rec := doRequest(e, http.MethodPost, vendorBody())
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	if len(store.enqueued) != 0 {
		t.Fatal("mismatched command must not be enqueued")
	}
}

func TestSubmitRejectsInvalidUserContext(t *testing.T) {
	store := &fakeStore{}
	e, _ := newTestGateway(store, fakeAuth{userID: "user-1"}, &fakeDeduper{})

	// approver without a strong identity token
	body := `{
		"payload": {"name": "Acme GmbH", "taxId": "DE123456789"},
		"userContext": {"role": "approver", "userId": "user-1"}
	}`
	rec := doRequest(e, http.MethodPost, body)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(store.enqueued) != 0 {
		t.Fatal("invalid command must not be enqueued")
	}
}

func TestSubmitRejectsUnknownFields(t *testing.T) {
	store := &fakeStore{}
	e, _ := newTestGateway(store, fakeAuth{userID: "user-1"}, &fakeDeduper{})

	body := `{"payload": {"name": "Acme"}, "userContext": {"role": "vendor", "userId": "user-1", "invitationToken": "t"}, "extra": 1}`
	rec := doRequest(e, http.MethodPost, body)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestSubmitRetriesEnqueue(t *testing.T) {
	store := &fakeStore{failures: 2}
	dd := &fakeDeduper{}
	e, _ := newTestGateway(store, fakeAuth{userID: "user-1"}, dd)

	rec := doRequest(e, http.MethodPost, vendorBody())
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202 after retries, got %d", rec.Code)
	}
	if len(store.enqueued) != 1 {
		t.Fatalf("expected 1 enqueued command, got %d", len(store.enqueued))
	}
	if len(dd.removed) != 0 {
		t.Fatal("successful submit must keep the dedup claim")
	}
}

func TestSubmitReleasesClaimWhenEnqueueFails(t *testing.T) {
	store := &fakeStore{failures: 10}
	dd := &fakeDeduper{}
	e, _ := newTestGateway(store, fakeAuth{userID: "user-1"}, dd)

	rec := doRequest(e, http.MethodPost, vendorBody())
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	if len(dd.added) != 1 || len(dd.removed) != 1 || dd.added[0] != dd.removed[0] {
		t.Fatalf("dedup claim not rolled back: added=%v removed=%v", dd.added, dd.removed)
	}
	if len(store.enqueued) != 0 {
		t.Fatal("failed submit must not leave a command enqueued")
	}
}

func TestSubmitFailsWhenDedupUnavailable(t *testing.T) {
	store := &fakeStore{}
	dd := &fakeDeduper{addErr: errors.New("redis down")}
	e, _ := newTestGateway(store, fakeAuth{userID: "user-1"}, dd)

	rec := doRequest(e, http.MethodPost, vendorBody())
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	if len(store.enqueued) != 0 {
		t.Fatal("command must not be enqueued without a dedup claim")
	}
}

func TestHealthz(t *testing.T) {
	e, _ := newTestGateway(&fakeStore{}, fakeAuth{userID: "user-1"}, &fakeDeduper{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestEnqueueStampStrictlyIncreases(t *testing.T) {
	const n = 1000
	stamps := make(chan int64, n)
	for i := 0; i < n; i++ {
		go func() { stamps <- enqueueStamp() }()
	}
	seen := make(map[int64]bool, n)
	for i := 0; i < n; i++ {
		s := <-stamps
		if seen[s] {
			t.Fatalf("duplicate stamp %d", s)
		}
		seen[s] = true
	}
	a, b := enqueueStamp(), enqueueStamp()
	if b <= a {
		t.Fatalf("stamps not increasing: %d then %d", a, b)
	}
}
