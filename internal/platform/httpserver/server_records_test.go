package httpserver

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	recordaccess "medrecords/contexts/clinical-records/record-access-service"
	"medrecords/contexts/clinical-records/record-access-service/adapters/identity"
	"medrecords/contexts/clinical-records/record-access-service/domain/entities"
	recorderrors "medrecords/contexts/clinical-records/record-access-service/domain/errors"
	recordshttp "medrecords/contexts/clinical-records/record-access-service/transport/http"
	"medrecords/internal/platform/observability"
)

func newTestServer() *Server {
	return newTestServerWith(nil)
}

func newTestServerWith(tokens TokenVerifier) *Server {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	module := recordaccess.NewInMemoryModule(logger)
	module.Store.Onboard(entities.Participant{
		ParticipantID: "p1",
		Clinical:      &entities.ClinicalProfile{HealthData: map[string]any{"blood_type": "A+"}},
	})
	module.Store.Onboard(entities.Participant{ParticipantID: "u1"})
	module.Store.Onboard(entities.Participant{ParticipantID: "stranger"})
	return New(module, tokens, observability.NewMetrics("medrecords"), logger, ":0")
}

func doRequest(server *Server, method string, path string, user string, requestID string, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("X-User-Id", user)
	}
	if requestID != "" {
		req.Header.Set("X-Request-Id", requestID)
	}
	rr := httptest.NewRecorder()
	server.mux.ServeHTTP(rr, req)
	return rr
}

func TestRecordsRequireUser(t *testing.T) {
	server := newTestServer()
	rr := doRequest(server, http.MethodPost, "/api/records/v1/access/authorize", "", "req-1", `{"user_id":"u1"}`)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestRecordMutationsRequireRequestID(t *testing.T) {
	server := newTestServer()
	cases := []struct {
		method string
		path   string
		body   string
	}{
		{http.MethodPost, "/api/records/v1/access/authorize", `{"user_id":"u1"}`},
		{http.MethodPost, "/api/records/v1/access/revoke", `{"user_id":"u1"}`},
		{http.MethodPost, "/api/records/v1/patients/p1/reports", `{"title":"Visit","text":"ok"}`},
		{http.MethodPatch, "/api/records/v1/patients/p1/health-data", `{"health_data":{"age":30}}`},
	}
	for _, tc := range cases {
		rr := doRequest(server, tc.method, tc.path, "u1", "", tc.body)
		if rr.Code != http.StatusBadRequest || !strings.Contains(rr.Body.String(), "missing_request_id") {
			t.Fatalf("%s %s: expected 400 missing_request_id, got %d body=%s", tc.method, tc.path, rr.Code, rr.Body.String())
		}
	}
}

func TestAddReportRequiresGrant(t *testing.T) {
	server := newTestServer()

	rr := doRequest(server, http.MethodPost, "/api/records/v1/patients/p1/reports", "u1", "req-1", `{"title":"Visit","text":"ok"}`)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 before grant, got %d body=%s", rr.Code, rr.Body.String())
	}

	rr = doRequest(server, http.MethodPost, "/api/records/v1/access/authorize", "p1", "req-2", `{"user_id":"u1"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 grant, got %d body=%s", rr.Code, rr.Body.String())
	}

	rr = doRequest(server, http.MethodPost, "/api/records/v1/patients/p1/reports", "u1", "req-3", `{"title":"Visit","text":"ok"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201 after grant, got %d body=%s", rr.Code, rr.Body.String())
	}
	var created recordshttp.AddReportResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if created.Report.AuthorID != "u1" || created.Report.Title != "Visit" || created.EventID == "" {
		t.Fatalf("unexpected report response: %+v", created)
	}

	rr = doRequest(server, http.MethodGet, "/api/records/v1/patients/p1", "u1", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 read, got %d body=%s", rr.Code, rr.Body.String())
	}
	var record recordshttp.PatientRecordResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &record); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if len(record.Reports) != 1 || record.Authorized != nil {
		t.Fatalf("unexpected record view: %+v", record)
	}

	if rr := doRequest(server, http.MethodGet, "/api/records/v1/patients/p1", "stranger", "", ""); rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for stranger, got %d", rr.Code)
	}
	if rr := doRequest(server, http.MethodGet, "/api/records/v1/patients/nobody", "u1", "", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown patient, got %d", rr.Code)
	}
}

func TestUpdateHealthDataReportsSkippedFields(t *testing.T) {
	server := newTestServer()
	doRequest(server, http.MethodPost, "/api/records/v1/access/authorize", "p1", "req-1", `{"user_id":"u1"}`)

	rr := doRequest(server, http.MethodPatch, "/api/records/v1/patients/p1/health-data", "u1", "req-2",
		`{"health_data":{"$meta":"x","age":30,"weight":null}}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	var resp recordshttp.UpdateHealthDataResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Applied) != 1 || resp.Applied["age"] != float64(30) {
		t.Fatalf("unexpected applied fields: %v", resp.Applied)
	}
	if strings.Join(resp.Skipped, ",") != "$meta,weight" {
		t.Fatalf("unexpected skipped fields: %v", resp.Skipped)
	}
	if resp.HealthData["blood_type"] != "A+" {
		t.Fatalf("existing fields must be preserved: %v", resp.HealthData)
	}
}

func TestAddReportIdempotencyKey(t *testing.T) {
	server := newTestServer()
	doRequest(server, http.MethodPost, "/api/records/v1/access/authorize", "p1", "req-1", `{"user_id":"u1"}`)

	send := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/records/v1/patients/p1/reports", bytes.NewReader([]byte(body)))
		req.Header.Set("X-User-Id", "u1")
		req.Header.Set("X-Request-Id", "req-2")
		req.Header.Set("Idempotency-Key", "visit-2026-05-04")
		rr := httptest.NewRecorder()
		server.mux.ServeHTTP(rr, req)
		return rr
	}

	if rr := send(`{"title":"Visit","text":"ok"}`); rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", rr.Code, rr.Body.String())
	}
	rr := send(`{"title":"Visit","text":"ok"}`)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"replayed":true`) {
		t.Fatalf("expected 200 replay, got %d body=%s", rr.Code, rr.Body.String())
	}
	if rr := send(`{"title":"Visit","text":"changed"}`); rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 idempotency conflict, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestAuthorizeSelfIsBadRequest(t *testing.T) {
	server := newTestServer()
	rr := doRequest(server, http.MethodPost, "/api/records/v1/access/authorize", "p1", "req-1", `{"user_id":"p1"}`)
	if rr.Code != http.StatusBadRequest || !strings.Contains(rr.Body.String(), "self_authorization") {
		t.Fatalf("expected 400 self_authorization, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestRecordsRejectMalformedInput(t *testing.T) {
	server := newTestServer()
	if rr := doRequest(server, http.MethodPost, "/api/records/v1/access/authorize", "p1", "req-1", `{"user_id":`); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid json, got %d", rr.Code)
	}
	if rr := doRequest(server, http.MethodGet, "/api/records/v1/audit?limit=abc", "p1", "", ""); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid limit, got %d", rr.Code)
	}
}

func TestAccessListAndCheck(t *testing.T) {
	server := newTestServer()
	doRequest(server, http.MethodPost, "/api/records/v1/access/authorize", "p1", "req-1", `{"user_id":"u1"}`)

	rr := doRequest(server, http.MethodGet, "/api/records/v1/access", "p1", "", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"authorized":["u1"]`) {
		t.Fatalf("unexpected list response: %d body=%s", rr.Code, rr.Body.String())
	}

	rr = doRequest(server, http.MethodGet, "/api/records/v1/patients/p1/access", "u1", "", "")
	var decision recordshttp.AccessDecisionResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &decision); err != nil {
		t.Fatalf("decode decision: %v", err)
	}
	if rr.Code != http.StatusOK || !decision.Allowed {
		t.Fatalf("expected allowed decision, got %d %+v", rr.Code, decision)
	}

	rr = doRequest(server, http.MethodPost, "/api/records/v1/access/revoke", "p1", "req-2", `{"user_id":"u1"}`)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"changed":true`) {
		t.Fatalf("unexpected revoke response: %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestBearerTokenRequiredWhenConfigured(t *testing.T) {
	verifier := identity.NewTokenVerifier("test-secret", "medrecords")
	server := newTestServerWith(verifier)

	rr := doRequest(server, http.MethodGet, "/api/records/v1/access", "p1", "", "")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("X-User-Id alone must not authenticate, got %d", rr.Code)
	}

	token, err := verifier.Issue("p1", time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/api/records/v1/access", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	// The header must not override the token subject.
	req.Header.Set("X-User-Id", "stranger")
	rr = httptest.NewRecorder()
	server.mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"participant_id":"p1"`) {
		t.Fatalf("expected 200 for p1, got %d body=%s", rr.Code, rr.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/api/records/v1/access", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rr = httptest.NewRecorder()
	server.mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for invalid token, got %d", rr.Code)
	}
}

func TestOperationalRoutes(t *testing.T) {
	server := newTestServer()
	doRequest(server, http.MethodPost, "/api/records/v1/access/authorize", "p1", "req-1", `{"user_id":"u1"}`)

	if rr := doRequest(server, http.MethodGet, "/healthz", "", "", ""); rr.Code != http.StatusOK {
		t.Fatalf("expected healthz 200, got %d", rr.Code)
	}
	rr := doRequest(server, http.MethodGet, "/metrics", "", "", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "medrecords_http_requests_total") {
		t.Fatalf("expected request counter in metrics, got %d", rr.Code)
	}
	if rr := doRequest(server, http.MethodGet, "/swagger/doc.json", "", "", ""); rr.Code != http.StatusOK {
		t.Fatalf("expected swagger doc 200, got %d", rr.Code)
	}
}

func TestWriteRecordsDomainErrorStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{recorderrors.ErrIdentityUnresolved, http.StatusUnauthorized},
		{recorderrors.ErrInvalidUserID, http.StatusBadRequest},
		{recorderrors.ErrPatientNotFound, http.StatusNotFound},
		{recorderrors.ErrNotAuthorized, http.StatusForbidden},
		{recorderrors.ErrStaleRecord, http.StatusConflict},
		{recorderrors.ErrIdempotencyConflict, http.StatusConflict},
		{fmt.Errorf("%w: broker down", recorderrors.ErrEmit), http.StatusBadGateway},
		{fmt.Errorf("%w: disk full", recorderrors.ErrStore), http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rr := httptest.NewRecorder()
		writeRecordsDomainError(rr, tc.err)
		if rr.Code != tc.want {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.want, rr.Code)
		}
	}
}
