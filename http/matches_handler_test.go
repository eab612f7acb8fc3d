package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/yourorg/match-api/internal/match"
)

type stubWorkflow struct {
	attachRes  match.AttachResult
	attachErr  error
	dismissErr error
	gotAgent   match.AgentContext
	gotNote    string
}

func (s *stubWorkflow) Attach(_ context.Context, agent match.AgentContext, _, note string) (match.AttachResult, error) {
	s.gotAgent = agent
	s.gotNote = note
	return s.attachRes, s.attachErr
}

func (s *stubWorkflow) Dismiss(_ context.Context, _, note string) error {
	s.gotNote = note
	return s.dismissErr
}

type stubStore struct {
	records []match.Record
	listErr error
}

func (s *stubStore) GetMatch(context.Context, string) (*match.Record, error) {
	return nil, errors.New("not implemented")
}
func (s *stubStore) GetListing(context.Context, string) (*match.Listing, error) {
	return nil, errors.New("not implemented")
}
func (s *stubStore) ListingPhotos(context.Context, string) ([]string, error) { return nil, nil }
func (s *stubStore) ListMatchesByClient(_ context.Context, _, statusFilter string, _ int) ([]match.Record, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	if statusFilter == "" {
		return s.records, nil
	}
	out := make([]match.Record, 0)
	for _, rec := range s.records {
		if string(rec.Status) == statusFilter {
			out = append(out, rec)
		}
	}
	return out, nil
}

func newTestRouter(wf Workflow, st MatchStore) http.Handler {
	r := chi.NewRouter()
	RegisterMatches(r, MatchesDeps{Workflow: wf, Store: st})
	return r
}

func doJSON(t *testing.T, h http.Handler, method, path, body string, headers map[string]string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	var payload map[string]any
	if rr.Body.Len() > 0 {
		if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
			t.Fatalf("response is not JSON: %v\n%s", err, rr.Body.String())
		}
	}
	return rr, payload
}

var agentHeaders = map[string]string{"X-Agent-ID": "a1", "X-Agent-Brokerage-ID": "b1"}

func TestAttachHandlerSuccess(t *testing.T) {
	wf := &stubWorkflow{attachRes: match.AttachResult{PropertyID: "p1", Applied: true}}
	rr, payload := doJSON(t, newTestRouter(wf, &stubStore{}),
		http.MethodPost, "/matches/m1/attach", `{"agent_note":"call Monday"}`, agentHeaders)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if payload["property_id"] != "p1" || payload["applied"] != true {
		t.Errorf("payload = %v", payload)
	}
	if wf.gotAgent.AgentID != "a1" || wf.gotAgent.BrokerageID != "b1" {
		t.Errorf("agent context = %+v", wf.gotAgent)
	}
	if wf.gotNote != "call Monday" {
		t.Errorf("agent note = %q", wf.gotNote)
	}
}

func TestAttachHandlerRequiresAgent(t *testing.T) {
	wf := &stubWorkflow{}
	rr, payload := doJSON(t, newTestRouter(wf, &stubStore{}),
		http.MethodPost, "/matches/m1/attach", "", nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
	if payload["error"] != "agent_id_required" {
		t.Errorf("payload = %v", payload)
	}
}

func TestAttachHandlerErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantKey    string
		wantVal    any
	}{
		{"stale state is silent no-op", match.ErrInvalidState, http.StatusOK, "applied", false},
		{"in flight", match.ErrAttachInFlight, http.StatusAccepted, "in_progress", true},
		{"missing brokerage", match.ErrMissingBrokerage, http.StatusUnprocessableEntity, "error", "missing_brokerage_association"},
		{"store timeout", match.ErrStoreTimeout, http.StatusGatewayTimeout, "error", "store_timeout"},
		{"plain store error", errors.New("connection refused"), http.StatusBadGateway, "error", "store_error"},
	}
	for _, tt := range tests {
		wf := &stubWorkflow{attachErr: tt.err}
		rr, payload := doJSON(t, newTestRouter(wf, &stubStore{}),
			http.MethodPost, "/matches/m1/attach", "", agentHeaders)
		if rr.Code != tt.wantStatus {
			t.Errorf("%s: status = %d, want %d", tt.name, rr.Code, tt.wantStatus)
		}
		if payload[tt.wantKey] != tt.wantVal {
			t.Errorf("%s: payload[%s] = %v, want %v", tt.name, tt.wantKey, payload[tt.wantKey], tt.wantVal)
		}
	}
}

func TestAttachHandlerPartialFailure(t *testing.T) {
	wf := &stubWorkflow{attachErr: &match.PartialAttachError{
		PropertyID: "p9",
		Stage:      match.StageClientLink,
		Err:        errors.New("link refused"),
	}}
	rr, payload := doJSON(t, newTestRouter(wf, &stubStore{}),
		http.MethodPost, "/matches/m1/attach", "", agentHeaders)

	if rr.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rr.Code)
	}
	if payload["error"] != "partial_attach" || payload["property_id"] != "p9" {
		t.Errorf("payload = %v", payload)
	}
	detail, _ := payload["detail"].(string)
	if !strings.Contains(detail, "created or updated") {
		t.Errorf("detail must say the property landed: %q", detail)
	}
}

func TestDismissHandlerStaleNoOp(t *testing.T) {
	wf := &stubWorkflow{dismissErr: match.ErrInvalidState}
	rr, payload := doJSON(t, newTestRouter(wf, &stubStore{}),
		http.MethodPost, "/matches/m1/dismiss", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if payload["applied"] != false {
		t.Errorf("payload = %v", payload)
	}
}

func TestListMatchesHandler(t *testing.T) {
	st := &stubStore{records: []match.Record{
		{ID: "m1", ClientID: "c1", ListingID: "l1", Score: 90, Status: match.StatusNew, CreatedAt: time.Now()},
		{ID: "m2", ClientID: "c1", ListingID: "l2", Score: 70, Status: match.StatusDismissed, CreatedAt: time.Now()},
	}}
	rr, payload := doJSON(t, newTestRouter(&stubWorkflow{}, st),
		http.MethodGet, "/clients/c1/matches?status=new", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if payload["count"] != float64(1) {
		t.Errorf("count = %v, want 1", payload["count"])
	}
}

func TestListMatchesRejectsUnknownStatus(t *testing.T) {
	rr, payload := doJSON(t, newTestRouter(&stubWorkflow{}, &stubStore{}),
		http.MethodGet, "/clients/c1/matches?status=bogus", "", nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
	if payload["error"] != "invalid_status" {
		t.Errorf("payload = %v", payload)
	}
}
