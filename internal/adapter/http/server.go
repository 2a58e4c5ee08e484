// Package http exposes the service's HTTP surface: assessment requests,
// provider health, and the operational endpoints.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/hazard-risk-engine/internal/domain"
	"github.com/couchcryptid/hazard-risk-engine/internal/health"
)

// Assessor produces risk assessments. Implemented by the aggregation engine.
type Assessor interface {
	Assess(ctx context.Context, req domain.AssessmentRequest) (*domain.PropertyRiskAssessment, error)
	CheckReadiness(ctx context.Context) error
}

// Publisher forwards finished assessments to downstream consumers. May be nil.
type Publisher interface {
	Publish(ctx context.Context, assessment *domain.PropertyRiskAssessment) error
}

// Defaults fill in request fields the caller omitted.
type Defaults struct {
	Providers          []string
	Hazards            []domain.HazardType
	PerProviderTimeout time.Duration
}

// Server exposes the assessment API plus health, readiness, and metrics.
type Server struct {
	httpServer *http.Server
	assessor   Assessor
	monitor    *health.Monitor
	publisher  Publisher
	defaults   Defaults
	logger     *slog.Logger
}

// NewServer wires all routes. publisher may be nil when downstream
// publishing is disabled.
func NewServer(addr string, assessor Assessor, monitor *health.Monitor, publisher Publisher, defaults Defaults, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		assessor:  assessor,
		monitor:   monitor,
		publisher: publisher,
		defaults:  defaults,
		logger:    logger,
	}

	mux.HandleFunc("POST /v1/assessments", s.handleAssess)
	mux.HandleFunc("GET /v1/providers/health", s.handleProviderHealth)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", promhttp.Handler())

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

type assessmentRequest struct {
	Location  domain.Coordinate `json:"location"`
	Hazards   []string          `json:"hazardTypes"`
	Providers []string          `json:"providers"`

	// Optional per-request overrides of the configured deadlines.
	PerProviderTimeoutMs int64 `json:"perProviderTimeoutMs"`
	GlobalDeadlineMs     int64 `json:"globalDeadlineMs"`
}

type errorResponse struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

func (s *Server) handleAssess(w http.ResponseWriter, r *http.Request) {
	var body assessmentRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Code: "INVALID_REQUEST", Error: "malformed JSON body"})
		return
	}

	req, err := s.buildRequest(body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Code: "INVALID_REQUEST", Error: err.Error()})
		return
	}

	assessment, err := s.assessor.Assess(r.Context(), req)
	if err != nil {
		if errors.Is(err, domain.ErrNoData) {
			writeJSON(w, http.StatusNotFound, errorResponse{
				Code:  "NO_DATA",
				Error: "no provider returned usable data for this location",
			})
			return
		}
		s.logger.Error("assessment failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Code: "INTERNAL", Error: "assessment failed"})
		return
	}

	if s.publisher != nil {
		// Publishing is best-effort; the caller already has their answer.
		if err := s.publisher.Publish(r.Context(), assessment); err != nil {
			s.logger.Warn("assessment publish failed", "id", assessment.ID, "error", err)
		}
	}

	writeJSON(w, http.StatusOK, assessment)
}

func (s *Server) buildRequest(body assessmentRequest) (domain.AssessmentRequest, error) {
	var zero domain.AssessmentRequest

	if body.Location.Lat < -90 || body.Location.Lat > 90 {
		return zero, errors.New("location.lat must be between -90 and 90")
	}
	if body.Location.Lon < -180 || body.Location.Lon > 180 {
		return zero, errors.New("location.lon must be between -180 and 180")
	}

	hazards := s.defaults.Hazards
	if len(body.Hazards) > 0 {
		hazards = make([]domain.HazardType, 0, len(body.Hazards))
		for _, raw := range body.Hazards {
			h, err := domain.ParseHazardType(raw)
			if err != nil {
				return zero, err
			}
			hazards = append(hazards, h)
		}
	}

	providers := s.defaults.Providers
	if len(body.Providers) > 0 {
		providers = body.Providers
	}

	if body.PerProviderTimeoutMs < 0 {
		return zero, errors.New("perProviderTimeoutMs must not be negative")
	}
	if body.GlobalDeadlineMs < 0 {
		return zero, errors.New("globalDeadlineMs must not be negative")
	}
	perProviderTimeout := s.defaults.PerProviderTimeout
	if body.PerProviderTimeoutMs > 0 {
		perProviderTimeout = time.Duration(body.PerProviderTimeoutMs) * time.Millisecond
	}
	var globalDeadline time.Duration
	if body.GlobalDeadlineMs > 0 {
		globalDeadline = time.Duration(body.GlobalDeadlineMs) * time.Millisecond
	}

	return domain.AssessmentRequest{
		Location:           body.Location,
		Hazards:            hazards,
		Providers:          providers,
		PerProviderTimeout: perProviderTimeout,
		GlobalDeadline:     globalDeadline,
	}, nil
}

type providerHealthView struct {
	health.Record
	SuccessRate  float64 `json:"successRate"`
	AvgLatencyMs float64 `json:"avgLatencyMs"`
}

func (s *Server) handleProviderHealth(w http.ResponseWriter, _ *http.Request) {
	records := s.monitor.SnapshotAll()
	views := make([]providerHealthView, len(records))
	for i, r := range records {
		views[i] = providerHealthView{
			Record:       r,
			SuccessRate:  r.SuccessRate(),
			AvgLatencyMs: r.AvgLatencyMs(),
		}
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.assessor.CheckReadiness(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response write
}
