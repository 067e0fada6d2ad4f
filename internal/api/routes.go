package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/jonquils-io/jonquils/internal/api/middleware"
)

const (
	serviceVersion     = "v1.0.0"
	healthCheckTimeout = 2 * time.Second

	defaultWindowDays = 30
	maxWindowDays     = 365
	defaultListLimit  = 20
	maxListLimit      = 100
)

type (
	// HealthStatus represents the health check response structure.
	HealthStatus struct {
		Status      string `json:"status"`
		ServiceName string `json:"serviceName"`
		Version     string `json:"version"`
		Uptime      string `json:"uptime,omitempty"`
		Analytics   string `json:"analytics"`
	}
)

// setupRoutes sets up all HTTP routes for the API server.
func (s *Server) setupRoutes(mux *http.ServeMux) {
	// Probes
	mux.HandleFunc("GET /ping", s.handlePing)
	mux.HandleFunc("GET /ready", s.handleReady)
	mux.HandleFunc("GET /health", s.handleHealth)

	// Analytics reads
	mux.HandleFunc("GET /api/v1/analytics/tracks/{id}", s.handleTrackStats)
	mux.HandleFunc("GET /api/v1/analytics/users/{id}", s.handleUserStats)
	mux.HandleFunc("GET /api/v1/analytics/platform", s.handlePlatformStats)
	mux.HandleFunc("GET /api/v1/analytics/top-tracks", s.handleTopTracks)
	mux.HandleFunc("GET /api/v1/analytics/trending", s.handleTrending)

	// Search
	mux.HandleFunc("GET /api/v1/search", s.handleSearch)

	// Catch-all handler for 404 responses
	mux.HandleFunc("/", s.handleNotFound)
}

// handlePing responds to liveness probes.
func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)

	if _, err := w.Write([]byte("pong")); err != nil {
		s.logger.Error("Failed to write ping response",
			slog.String("correlation_id", middleware.GetCorrelationID(r.Context())),
			slog.String("error", err.Error()),
		)
	}
}

// handleReady responds to readiness probes with a catalog health check.
//
// Response codes:
//   - 200 OK: the catalog is reachable; traffic can be served
//   - 503 Service Unavailable: the catalog is down
//
// A degraded analytics sink does not fail readiness: the catalog answers
// search fallback and the write side sheds events instead of blocking.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	correlationID := middleware.GetCorrelationID(r.Context())

	if s.deps.Catalog != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		if err := s.deps.Catalog.Ping(ctx); err != nil {
			s.logger.Error("Catalog health check failed",
				slog.String("correlation_id", correlationID),
				slog.String("error", err.Error()),
			)

			w.Header().Set("Content-Type", "text/plain")
			w.WriteHeader(http.StatusServiceUnavailable)

			if _, writeErr := w.Write([]byte("catalog unavailable")); writeErr != nil {
				s.logger.Error("Failed to write unavailable response",
					slog.String("correlation_id", correlationID),
					slog.String("error", writeErr.Error()),
				)
			}

			return
		}
	}

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)

	if _, err := w.Write([]byte("ready")); err != nil {
		s.logger.Error("Failed to write ready response",
			slog.String("correlation_id", correlationID),
			slog.String("error", err.Error()),
		)
	}
}

// handleHealth returns detailed health status information, including whether
// the analytics sink is serving or degraded.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	var uptime string
	if !s.startTime.IsZero() {
		uptime = time.Since(s.startTime).Round(time.Second).String()
	}

	analytics := "unconfigured"
	if s.deps.Analytics != nil {
		analytics = "healthy"
		if !s.deps.Analytics.Healthy() {
			analytics = "degraded"
		}
	}

	health := HealthStatus{
		Status:      "healthy",
		ServiceName: "jonquils",
		Version:     serviceVersion,
		Uptime:      uptime,
		Analytics:   analytics,
	}

	s.writeJSON(w, r, http.StatusOK, health)
}

// handleNotFound returns RFC 7807 compliant 404 responses for unknown endpoints.
func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	WriteErrorResponse(w, r, s.logger, NotFound("The requested resource was not found"))
}

// writeJSON marshals v and writes it with the given status. Marshal failures
// become a 500 problem; write failures after headers are sent are only logged.
func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("Failed to encode response",
			slog.String("correlation_id", middleware.GetCorrelationID(r.Context())),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)

		WriteErrorResponse(w, r, s.logger, InternalServerError("Failed to encode response"))

		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if _, err := w.Write(data); err != nil {
		s.logger.Error("Failed to write response",
			slog.String("correlation_id", middleware.GetCorrelationID(r.Context())),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	}
}

// pathID parses the {id} path segment as a 32-bit identifier.
func pathID(r *http.Request) (uint32, bool) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 32)
	if err != nil || id == 0 {
		return 0, false
	}

	return uint32(id), true
}

// queryInt parses an integer query parameter, clamped to [1, max].
// Missing or malformed values fall back to def.
func queryInt(r *http.Request, name string, def, max int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}

	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return def
	}

	if v > max {
		return max
	}

	return v
}
