package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonquils-io/jonquils/internal/api/middleware"
	"github.com/jonquils-io/jonquils/internal/search"
	"github.com/jonquils-io/jonquils/internal/sink"
	"github.com/jonquils-io/jonquils/internal/telemetry"
)

type (
	// Analytics is the read side of the event sink the server exposes.
	// Satisfied by *sink.Client; split out so handlers can be tested
	// without a cluster.
	Analytics interface {
		Healthy() bool
		TrackStats(ctx context.Context, trackID uint32, days int) (*sink.TrackStats, error)
		PlaysByDay(ctx context.Context, trackID uint32, days int) ([]sink.DailyBucket, error)
		PlaysByHour(ctx context.Context, trackID uint32, days int) ([]sink.HourlyBucket, error)
		UserStats(ctx context.Context, userID uint32, days int) (*sink.UserStats, error)
		TopArtistsForUser(ctx context.Context, userID uint32, days, limit int) ([]sink.ArtistPlayCount, error)
		TopTracks(ctx context.Context, days, limit int) ([]sink.TrackPlayCount, error)
		TrendingTracks(ctx context.Context, recentDays, baselineDays, limit int) ([]sink.TrendingTrack, error)
		PlatformStats(ctx context.Context, days int) ([]sink.PlatformStats, error)
	}

	// Searcher answers ranked catalog queries. Satisfied by *search.Service.
	Searcher interface {
		Search(ctx context.Context, term string, scope search.Scope, limit int) (*search.Results, error)
	}

	// CatalogHealth is the readiness slice of the catalog connection.
	CatalogHealth interface {
		Ping(ctx context.Context) error
	}

	// Dependencies carries the injected runtime collaborators of the server.
	// Configuration (what) stays in ServerConfig; dependencies (how) live
	// here. Nil Dispatcher disables request telemetry, nil RateLimiter
	// disables rate limiting.
	Dependencies struct {
		Analytics   Analytics
		Searcher    Searcher
		Catalog     CatalogHealth
		Dispatcher  *telemetry.Dispatcher
		RateLimiter middleware.RateLimiter
	}
)

// Server represents the HTTP API server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	config     *ServerConfig
	deps       *Dependencies
	startTime  time.Time
}

// NewServer creates a new HTTP server instance with structured logging and
// the full middleware stack.
func NewServer(cfg *ServerConfig, deps *Dependencies) *Server {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	if deps == nil {
		deps = &Dependencies{}
	}

	mux := http.NewServeMux()

	server := &Server{
		logger: logger,
		config: cfg,
		deps:   deps,
	}

	server.setupRoutes(mux)

	if deps.Dispatcher == nil {
		logger.Warn("Telemetry dispatcher not configured - request analytics disabled")
	}

	if deps.RateLimiter == nil {
		logger.Warn("RateLimiter not configured - rate limiting disabled")
	}

	// Middleware executes in the order listed (top-to-bottom):
	//   1. CorrelationID - stamp every response, including rejections
	//   2. Recovery - catch panics in all downstream middleware
	//   3. RateLimit - shed load before doing any work
	//   4. Telemetry - record only admitted requests
	//   5. RequestLogger - log only admitted requests
	//   6. CORS - lightweight header manipulation
	handler := middleware.Apply(mux,
		middleware.WithCorrelationID(),
		middleware.WithRecovery(logger),
		middleware.WithRateLimit(deps.RateLimiter, logger),
		middleware.WithTelemetry(deps.Dispatcher),
		middleware.WithRequestLogger(logger),
		middleware.WithCORS(cfg.ToCORSConfig()),
	)

	server.httpServer = &http.Server{
		Addr:         cfg.Address(),
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return server
}

// Start starts the HTTP server and blocks until shutdown.
// It handles graceful shutdown on SIGINT and SIGTERM signals.
func (s *Server) Start() error {
	if err := s.config.Validate(); err != nil {
		return fmt.Errorf("invalid server configuration: %w", err)
	}

	s.startTime = time.Now()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("Starting jonquils API server",
			slog.String("address", s.config.Address()),
			slog.Duration("read_timeout", s.config.ReadTimeout),
			slog.Duration("write_timeout", s.config.WriteTimeout),
			slog.Duration("shutdown_timeout", s.config.ShutdownTimeout),
		)

		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Server failed to start",
				slog.String("address", s.config.Address()),
				slog.String("error", err.Error()),
			)

			serverErrors <- fmt.Errorf("server failed to start: %w", err)
		}
	}()

	select {
	case err := <-serverErrors:
		return err
	case sig := <-stop:
		s.logger.Info("Received shutdown signal",
			slog.String("signal", sig.String()),
		)

		return s.shutdown()
	}
}

// shutdown gracefully shuts down the server, then drains the telemetry
// queue and stops the rate limiter's background cleanup.
func (s *Server) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Initiating server shutdown",
		slog.Duration("shutdown_timeout", s.config.ShutdownTimeout),
	)

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("Server shutdown failed",
			slog.String("error", err.Error()),
			slog.Duration("shutdown_timeout", s.config.ShutdownTimeout),
		)

		return fmt.Errorf("server shutdown failed: %w", err)
	}

	if s.deps.Dispatcher != nil {
		s.logger.Info("Draining telemetry dispatcher")
		s.deps.Dispatcher.Close()

		if dropped := s.deps.Dispatcher.Dropped(); dropped > 0 {
			s.logger.Warn("Telemetry events were dropped during this run",
				slog.Uint64("dropped", dropped),
			)
		}
	}

	if s.deps.RateLimiter != nil {
		if closer, ok := s.deps.RateLimiter.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				s.logger.Error("Failed to close rate limiter", slog.String("error", err.Error()))
			}
		} else if limiter, ok := s.deps.RateLimiter.(interface{ Close() }); ok {
			limiter.Close()
		}
	}

	s.logger.Info("Server shutdown completed successfully")

	return nil
}
