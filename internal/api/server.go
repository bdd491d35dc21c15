// internal/api/server.go
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"assignment-service/internal/assignment/statemachine"
	"assignment-service/internal/billing"
	"assignment-service/internal/common/logger"
	"assignment-service/internal/common/observability"
	"assignment-service/internal/models"
	"assignment-service/internal/webhook"
)

// BatchService is the generation surface exposed over HTTP.
type BatchService interface {
	Generate(ctx context.Context, projectID string) (string, error)
	GenerateManualInvite(ctx context.Context, projectID, developerID, clientMessage string) (string, error)
}

// ResponseService drives candidate transitions.
type ResponseService interface {
	Accept(ctx context.Context, candidateID, actingUserID string) (*statemachine.AcceptResult, error)
	Reject(ctx context.Context, candidateID, actingUserID string) error
}

// WebhookService processes inbound messaging deliveries.
type WebhookService interface {
	Handle(ctx context.Context, msg *webhook.Message) (*webhook.Result, error)
}

// BillingGate gates batch generation per client.
type BillingGate interface {
	CanCreateProject(ctx context.Context, clientID string) (*billing.Decision, error)
	IncrementUsage(ctx context.Context, clientID string) error
}

// ProjectReader resolves the owning client for billing checks.
type ProjectReader interface {
	GetProject(ctx context.Context, projectID string) (*models.Project, error)
}

// SweepRunner triggers one sweep on demand.
type SweepRunner interface {
	SweepOnce(ctx context.Context) (int, error)
}

// Server wires the HTTP surface: generation, candidate responses, the
// inbound webhook, an admin sweep trigger and the health/metrics
// endpoints.
type Server struct {
	batches    BatchService
	responses  ResponseService
	webhooks   WebhookService
	billing    BillingGate
	projects   ProjectReader
	sweeper    SweepRunner
	sweepToken string
	obs        *observability.Observability
	logger     logger.Logger
	httpServer *http.Server
}

func NewServer(port int, batches BatchService, responses ResponseService, webhooks WebhookService, billing BillingGate, projects ProjectReader, sweeper SweepRunner, sweepToken string, obs *observability.Observability, log logger.Logger) *Server {
	s := &Server{
		batches:    batches,
		responses:  responses,
		webhooks:   webhooks,
		billing:    billing,
		projects:   projects,
		sweeper:    sweeper,
		sweepToken: sweepToken,
		obs:        obs,
		logger:     log.WithFields(map[string]interface{}{"component": "http-api"}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/projects/{projectId}/batches", s.instrument("generate_batch", s.handleGenerateBatch))
	mux.HandleFunc("POST /v1/projects/{projectId}/invites", s.instrument("manual_invite", s.handleManualInvite))
	mux.HandleFunc("POST /v1/candidates/{candidateId}/accept", s.instrument("accept", s.handleAccept))
	mux.HandleFunc("POST /v1/candidates/{candidateId}/reject", s.instrument("reject", s.handleReject))
	mux.HandleFunc("POST /v1/webhooks/messages", s.instrument("webhook", s.handleWebhook))
	mux.HandleFunc("POST /v1/admin/sweep", s.instrument("admin_sweep", s.handleAdminSweep))

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ready", s.handleReady)
	mux.Handle("GET /metrics", promhttp.Handler())

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

// statusRecorder captures the status code a handler wrote so the
// instrumentation can label the outcome.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) instrument(operation string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.obs == nil {
			next(w, r)
			return
		}
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)

		outcome := "success"
		if rec.status >= 400 {
			outcome = "error"
		}
		s.obs.RecordOperation(r.Context(), operation, outcome)
		s.obs.RecordDuration(r.Context(), operation, time.Since(start))
	}
}

// Start blocks until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("HTTP server listening", map[string]interface{}{
		"addr": s.httpServer.Addr,
	})
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
