package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	recorderrors "medrecords/contexts/clinical-records/record-access-service/domain/errors"
	recordshttp "medrecords/contexts/clinical-records/record-access-service/transport/http"
)

const maxRecordBodyBytes = 1 << 20

func (s *Server) handleAuthorizeAccess(w http.ResponseWriter, r *http.Request) {
	actorID, ok := s.requireActor(w, r)
	if !ok || !requireRequestID(w, r) {
		return
	}
	var req recordshttp.AccessChangeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	resp, err := s.records.Handler.AuthorizeAccessHandler(r.Context(), actorID, r.Header.Get("X-Request-Id"), req)
	if err != nil {
		writeRecordsDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRevokeAccess(w http.ResponseWriter, r *http.Request) {
	actorID, ok := s.requireActor(w, r)
	if !ok || !requireRequestID(w, r) {
		return
	}
	var req recordshttp.AccessChangeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	resp, err := s.records.Handler.RevokeAccessHandler(r.Context(), actorID, r.Header.Get("X-Request-Id"), req)
	if err != nil {
		writeRecordsDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAddReport(w http.ResponseWriter, r *http.Request) {
	actorID, ok := s.requireActor(w, r)
	if !ok || !requireRequestID(w, r) {
		return
	}
	var req recordshttp.AddReportRequest
	if !decodeBody(w, r, &req) {
		return
	}
	resp, err := s.records.Handler.AddReportHandler(
		r.Context(),
		actorID,
		r.PathValue("user_id"),
		r.Header.Get("X-Request-Id"),
		r.Header.Get("Idempotency-Key"),
		req,
	)
	if err != nil {
		writeRecordsDomainError(w, err)
		return
	}
	status := http.StatusCreated
	if resp.Replayed {
		status = http.StatusOK
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleUpdateHealthData(w http.ResponseWriter, r *http.Request) {
	actorID, ok := s.requireActor(w, r)
	if !ok || !requireRequestID(w, r) {
		return
	}
	var req recordshttp.UpdateHealthDataRequest
	if !decodeBody(w, r, &req) {
		return
	}
	resp, err := s.records.Handler.UpdateHealthDataHandler(
		r.Context(),
		actorID,
		r.PathValue("user_id"),
		r.Header.Get("X-Request-Id"),
		r.Header.Get("Idempotency-Key"),
		req,
	)
	if err != nil {
		writeRecordsDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetPatientRecord(w http.ResponseWriter, r *http.Request) {
	actorID, ok := s.requireActor(w, r)
	if !ok {
		return
	}
	resp, err := s.records.Handler.GetPatientRecordHandler(r.Context(), actorID, r.PathValue("user_id"))
	if err != nil {
		writeRecordsDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCheckAccess(w http.ResponseWriter, r *http.Request) {
	actorID, ok := s.requireActor(w, r)
	if !ok {
		return
	}
	resp, err := s.records.Handler.CheckAccessHandler(r.Context(), actorID, r.PathValue("user_id"))
	if err != nil {
		writeRecordsDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListAuthorized(w http.ResponseWriter, r *http.Request) {
	actorID, ok := s.requireActor(w, r)
	if !ok {
		return
	}
	resp, err := s.records.Handler.ListAuthorizedHandler(r.Context(), actorID)
	if err != nil {
		writeRecordsDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListAuditTrail(w http.ResponseWriter, r *http.Request) {
	actorID, ok := s.requireActor(w, r)
	if !ok {
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			writeRecordsError(w, http.StatusBadRequest, "invalid_limit", "limit must be a non-negative integer")
			return
		}
		limit = value
	}
	resp, err := s.records.Handler.ListAuditTrailHandler(r.Context(), actorID, limit)
	if err != nil {
		writeRecordsDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// requireActor resolves the caller from a bearer token, or from X-User-Id
// when token verification is disabled.
func (s *Server) requireActor(w http.ResponseWriter, r *http.Request) (string, bool) {
	if s.tokens == nil {
		userID := strings.TrimSpace(r.Header.Get("X-User-Id"))
		if userID == "" {
			writeRecordsError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
			return "", false
		}
		return userID, true
	}

	authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		writeRecordsError(w, http.StatusUnauthorized, "unauthorized", "Authorization bearer token is required")
		return "", false
	}
	actorID, err := s.tokens.Verify(parts[1])
	if err != nil {
		writeRecordsError(w, http.StatusUnauthorized, "unauthorized", "bearer token is invalid")
		return "", false
	}
	return actorID, true
}

func requireRequestID(w http.ResponseWriter, r *http.Request) bool {
	if strings.TrimSpace(r.Header.Get("X-Request-Id")) == "" {
		writeRecordsError(w, http.StatusBadRequest, "missing_request_id", "X-Request-Id header is required")
		return false
	}
	return true
}

func decodeBody(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRecordBodyBytes)).Decode(target); err != nil {
		writeRecordsError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return false
	}
	return true
}

func writeRecordsDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, recorderrors.ErrIdentityUnresolved):
		writeRecordsError(w, http.StatusUnauthorized, "identity_unresolved", err.Error())
	case errors.Is(err, recorderrors.ErrInvalidUserID):
		writeRecordsError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, recorderrors.ErrSelfAuthorization):
		writeRecordsError(w, http.StatusBadRequest, "self_authorization", err.Error())
	case errors.Is(err, recorderrors.ErrPatientNotFound):
		writeRecordsError(w, http.StatusNotFound, "patient_not_found", err.Error())
	case errors.Is(err, recorderrors.ErrNotAuthorized):
		writeRecordsError(w, http.StatusForbidden, "not_authorized", err.Error())
	case errors.Is(err, recorderrors.ErrStaleRecord):
		writeRecordsError(w, http.StatusConflict, "stale_record", "record changed concurrently, retry the request")
	case errors.Is(err, recorderrors.ErrIdempotencyConflict):
		writeRecordsError(w, http.StatusConflict, "idempotency_conflict", err.Error())
	case errors.Is(err, recorderrors.ErrEmit):
		writeRecordsError(w, http.StatusBadGateway, "emit_failed", "audit event could not be recorded")
	case errors.Is(err, recorderrors.ErrStore):
		writeRecordsError(w, http.StatusInternalServerError, "store_failed", "record store failure")
	default:
		writeRecordsError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeRecordsError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, recordshttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}
