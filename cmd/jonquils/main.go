// Package main provides the Jonquils streaming API service.
//
// The service serves catalog search and listening analytics over HTTP,
// records request telemetry into the analytics sink, and optionally
// consumes listen events from Kafka.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/jonquils-io/jonquils/internal/api"
	"github.com/jonquils-io/jonquils/internal/api/middleware"
	"github.com/jonquils-io/jonquils/internal/catalog"
	"github.com/jonquils-io/jonquils/internal/config"
	"github.com/jonquils-io/jonquils/internal/ingest"
	"github.com/jonquils-io/jonquils/internal/search"
	"github.com/jonquils-io/jonquils/internal/sink"
	"github.com/jonquils-io/jonquils/internal/telemetry"
)

// Version information.
const (
	version = "1.0.0-dev"
	name    = "jonquils"
)

func main() {
	versionFlag := flag.Bool("version", false, "show version information")
	flag.Parse()

	if *versionFlag {
		log.Printf("%s v%s\n", name, version)
		os.Exit(0)
	}

	serverConfig := api.LoadServerConfig()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: serverConfig.LogLevel,
	}))

	logger.Info("Starting Jonquils API service",
		slog.String("service", name),
		slog.String("version", version),
	)

	logger.Info("Loaded server configuration",
		slog.String("host", serverConfig.Host),
		slog.Int("port", serverConfig.Port),
		slog.Duration("read_timeout", serverConfig.ReadTimeout),
		slog.Duration("write_timeout", serverConfig.WriteTimeout),
		slog.Duration("shutdown_timeout", serverConfig.ShutdownTimeout),
		slog.String("log_level", serverConfig.LogLevel.String()),
	)

	middlewareConfig := middleware.LoadConfig()
	rateLimiter := middleware.NewInMemoryRateLimiter(middlewareConfig)

	logger.Info("Rate limiter initialized",
		slog.Int("global_rps", middlewareConfig.GlobalRPS),
		slog.Int("client_rps", middlewareConfig.ClientRPS),
		slog.Int("anonymous_rps", middlewareConfig.AnonymousRPS),
	)

	catalogConfig := catalog.LoadConfig()

	catalogConn, err := catalog.NewConnection(catalogConfig)
	if err != nil {
		logger.Error("Failed to connect to catalog database", slog.String("error", err.Error()))
		os.Exit(1)
	}

	defer func() {
		_ = catalogConn.Close() // Ensure connection closes on normal shutdown
	}()

	store := catalog.NewStore(catalogConn)

	logger.Info("Catalog store initialized",
		slog.String("database_url", catalogConfig.MaskDatabaseURL()),
	)

	// A sink config or dial failure yields a degraded client, never a dead
	// service. Catalog browsing and search must outlive the analytics store.
	analytics, err := sink.NewClient(sink.LoadConfig())
	if err != nil {
		logger.Error("Invalid analytics sink configuration", slog.String("error", err.Error()))

		_ = catalogConn.Close()
		//nolint:gocritic // Explicit cleanup before os.Exit is intentional (defer won't run)
		os.Exit(1)
	}

	defer func() {
		_ = analytics.Close()
	}()

	if analytics.Healthy() {
		if !analytics.Bootstrap(context.Background()) {
			logger.Warn("Analytics sink schema bootstrap failed, continuing degraded")
		}
	}

	indexer, err := search.NewIndexer(search.LoadConfig())
	if err != nil {
		logger.Error("Invalid search index configuration", slog.String("error", err.Error()))

		_ = catalogConn.Close()
		_ = analytics.Close()
		os.Exit(1)
	}

	if indexer.Healthy() {
		indexer.EnsureIndices(context.Background())
	}

	searcher := search.NewService(indexer, store, logger)

	dispatcher := telemetry.NewDispatcher(analytics, logger,
		config.GetEnvInt("TELEMETRY_QUEUE_SIZE", 0),
		config.GetEnvInt("TELEMETRY_WORKERS", 0),
	)

	// The Kafka consumer is optional; API-only deployments leave
	// KAFKA_BROKERS unset and rely on request telemetry alone.
	if ingestConfig, err := ingest.LoadConfig(); err == nil {
		consumer := ingest.NewConsumer(ingestConfig, analytics, logger)
		consumer.Start(context.Background())

		defer func() {
			_ = consumer.Close()
		}()

		logger.Info("Listen event consumer started",
			slog.Any("brokers", ingestConfig.Brokers),
			slog.String("topic", ingestConfig.Topic),
			slog.String("group_id", ingestConfig.GroupID),
		)
	} else {
		logger.Warn("Listen event consumer disabled",
			slog.String("reason", err.Error()),
		)
	}

	server := api.NewServer(serverConfig, &api.Dependencies{
		Analytics:   analytics,
		Searcher:    searcher,
		Catalog:     catalogConn,
		Dispatcher:  dispatcher,
		RateLimiter: rateLimiter,
	})

	if err := server.Start(); err != nil {
		logger.Error("Server failed to start",
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	logger.Info("Jonquils API service stopped")
}
