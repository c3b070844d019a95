package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	recordaccess "medrecords/contexts/clinical-records/record-access-service"
	"medrecords/internal/platform/observability"

	httpSwagger "github.com/swaggo/http-swagger"
	_ "medrecords/internal/platform/httpserver/docs"
)

// TokenVerifier maps a bearer token to the caller's participant id.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

type Server struct {
	mux     *http.ServeMux
	http    *http.Server
	logger  *slog.Logger
	addr    string
	records recordaccess.Module
	tokens  TokenVerifier
	metrics *observability.Metrics
}

// New wires routes. With a nil verifier the caller is taken from the
// X-User-Id header, which is only suitable for local development.
func New(
	records recordaccess.Module,
	tokens TokenVerifier,
	metrics *observability.Metrics,
	logger *slog.Logger,
	addr string,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}

	s := &Server{
		mux:     http.NewServeMux(),
		logger:  logger,
		addr:    addr,
		records: records,
		tokens:  tokens,
		metrics: metrics,
	}
	s.registerRoutes()
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
		"token_auth", s.tokens != nil,
	)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) registerRoutes() {
	s.mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))
	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.metrics != nil {
		s.mux.Handle("GET /metrics", s.metrics.Handler())
	}

	s.handle("POST /api/records/v1/access/authorize", s.handleAuthorizeAccess)
	s.handle("POST /api/records/v1/access/revoke", s.handleRevokeAccess)
	s.handle("GET /api/records/v1/access", s.handleListAuthorized)
	s.handle("GET /api/records/v1/audit", s.handleListAuditTrail)
	s.handle("GET /api/records/v1/patients/{user_id}", s.handleGetPatientRecord)
	s.handle("GET /api/records/v1/patients/{user_id}/access", s.handleCheckAccess)
	s.handle("POST /api/records/v1/patients/{user_id}/reports", s.handleAddReport)
	s.handle("PATCH /api/records/v1/patients/{user_id}/health-data", s.handleUpdateHealthData)
}

func (s *Server) handle(pattern string, handler http.HandlerFunc) {
	if s.metrics != nil {
		handler = s.metrics.Instrument(pattern, handler)
	}
	s.mux.HandleFunc(pattern, handler)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
