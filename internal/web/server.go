// Package web serves the planner HTTP API.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/commitment-planner/internal/config"
	"github.com/commitment-planner/internal/controller"
	"github.com/commitment-planner/internal/domain"
	"github.com/commitment-planner/internal/logging"
	"github.com/commitment-planner/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Version reported by the health endpoint
const Version = "1.0.0"

// maxBodyBytes bounds request bodies
const maxBodyBytes = 1 << 20

// Server represents the planner API server
type Server struct {
	cfg      *config.Config
	logger   *logging.Logger
	ctrl     *controller.Controller
	registry *prometheus.Registry
	limiter  *RateLimiter
	started  time.Time
}

// NewServer creates a server with its own metrics registry and controller.
// Extra options are passed to the controller.
func NewServer(cfg *config.Config, opts ...controller.Option) (*Server, error) {
	if cfg == nil {
		cfg = config.Get()
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder, err := metrics.NewRecorder(registry)
	if err != nil {
		return nil, err
	}

	logger := controller.NewLogger(cfg, "web")
	opts = append([]controller.Option{
		controller.WithRecorder(recorder),
		controller.WithLogger(logger.Component("controller")),
	}, opts...)

	return &Server{
		cfg:      cfg,
		logger:   logger,
		ctrl:     controller.New(cfg, opts...),
		registry: registry,
		limiter:  NewRateLimiter(cfg.Server.RateLimitPerMinute, time.Minute),
		started:  time.Now(),
	}, nil
}

// Handler returns the API routes
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	api := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, s.logRequest(s.limiter.Middleware(h)))
	}
	api("/api/plan", s.handlePlan)
	api("/api/grants", s.handleGrants)
	api("/api/grants/", s.handleGrant)
	api("/api/budget/spend", s.handleSpend)
	api("/api/budget/forecast", s.handleForecast)
	api("/api/families", s.handleFamilies)
	api("/api/cache/status", s.handleCacheStatus)

	mux.HandleFunc("/api/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	return mux
}

// Start runs the server until ctx is cancelled
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Server.Port),
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting planner API at http://localhost%s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.logger.Info("Shutting down planner API")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		s.Close()
		return err
	}
}

// Close releases the controller and the log file
func (s *Server) Close() {
	s.ctrl.Close()
	s.limiter.Stop()
	s.logger.Close()
}

// logRequest wraps a handler with request logging
func (s *Server) logRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info("%s %s %s", r.Method, r.URL.Path, time.Since(start))
	})
}

// ErrorResponse is the body of every failed API call
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// StatusFor maps an error to an HTTP status
func StatusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConstraintConflict), errors.Is(err, domain.ErrInsufficientData):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrPricingUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("Request failed: %v", err)
	}
	writeJSON(w, status, ErrorResponse{Error: err.Error()})
}

// allow handles CORS preflight and rejects other methods
func allow(w http.ResponseWriter, r *http.Request, methods ...string) bool {
	if r.Method == http.MethodOptions {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", strings.Join(append(methods, http.MethodOptions), ", "))
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.WriteHeader(http.StatusNoContent)
		return false
	}
	for _, m := range methods {
		if r.Method == m {
			return true
		}
	}
	w.Header().Set("Allow", strings.Join(methods, ", "))
	writeJSON(w, http.StatusMethodNotAllowed, ErrorResponse{Error: "Method not allowed"})
	return false
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return domain.NewValidationError("body", fmt.Sprintf("invalid JSON: %v", err))
	}
	return nil
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}

	var req controller.PlanRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	resp, err := s.ctrl.Plan(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// GrantListResponse lists stored grants
type GrantListResponse struct {
	Success bool     `json:"success"`
	Grants  []string `json:"grants"`
}

// handleGrants creates a grant (POST) or lists grant IDs (GET)
func (s *Server) handleGrants(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet, http.MethodPost) {
		return
	}

	if r.Method == http.MethodGet {
		if id := r.URL.Query().Get("id"); id != "" {
			s.writeGrant(w, r, id)
			return
		}
		writeJSON(w, http.StatusOK, GrantListResponse{Success: true, Grants: s.ctrl.ListGrants()})
		return
	}

	var grant domain.Grant
	if err := decode(w, r, &grant); err != nil {
		s.writeError(w, err)
		return
	}
	resp, err := s.ctrl.CreateGrant(r.Context(), &grant)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

// handleGrant returns /api/grants/{id}
func (s *Server) handleGrant(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/grants/"), "/")
	if id == "" {
		s.writeError(w, domain.NewValidationError("id", "grant ID is required"))
		return
	}
	s.writeGrant(w, r, id)
}

func (s *Server) writeGrant(w http.ResponseWriter, r *http.Request, id string) {
	resp, err := s.ctrl.GetGrant(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSpend(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}

	var req controller.SpendRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	resp, err := s.ctrl.RecordSpend(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if len(resp.Alerts) > 0 {
		s.logger.Warn("Spend on grant %s raised %d alerts", req.GrantID, len(resp.Alerts))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}

	var req controller.ForecastRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	resp, err := s.ctrl.Forecast(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleFamilies returns the priced instance families
func (s *Server) handleFamilies(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, s.ctrl.Families())
}

// CacheStatusResponse reports spot-rate cache statistics
type CacheStatusResponse struct {
	LiveSpotRates bool    `json:"live_spot_rates"`
	Hits          int64   `json:"hits"`
	Misses        int64   `json:"misses"`
	Items         int     `json:"items"`
	TTLHours      float64 `json:"ttl_hours"`
}

func (s *Server) handleCacheStatus(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	stats := s.ctrl.CacheStatus()
	writeJSON(w, http.StatusOK, CacheStatusResponse{
		LiveSpotRates: s.cfg.Pricing.LiveSpotRates,
		Hits:          stats.Hits,
		Misses:        stats.Misses,
		Items:         stats.Items,
		TTLHours:      s.cfg.Cache.TTL.Hours(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{
		"grants": fmt.Sprintf("%d", len(s.ctrl.ListGrants())),
		"uptime": time.Since(s.started).Round(time.Second).String(),
	}
	if s.cfg.Pricing.LiveSpotRates {
		checks["pricing"] = "live spot rates (" + s.cfg.Pricing.Region + ")"
	} else {
		checks["pricing"] = "static list prices"
	}
	if s.cfg.Logging.EnableFile {
		files := logging.ListLogFiles(s.cfg.Logging.LogDir, logging.DefaultRollingConfig().BaseName)
		var total int64
		for _, f := range files {
			total += f.Size
		}
		checks["log_files"] = fmt.Sprintf("%d (%s)", len(files), logging.FormatSize(total))
	}

	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   Version,
		Checks:    checks,
	})
}
