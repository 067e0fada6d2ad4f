// Package main provides the Jonquils batch reconciliation scheduler.
//
// The scheduler runs the ingestion flow (discover uploads in object
// storage, stage their metadata, promote them into the catalog, propagate
// to the search index) and the maintenance flow (aggregate listening
// rollups, prune expired data) on cron schedules.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/jonquils-io/jonquils/internal/blob"
	"github.com/jonquils-io/jonquils/internal/catalog"
	"github.com/jonquils-io/jonquils/internal/config"
	"github.com/jonquils-io/jonquils/internal/pipeline"
	"github.com/jonquils-io/jonquils/internal/search"
	"github.com/jonquils-io/jonquils/internal/sink"
)

// Version information.
const (
	version = "1.0.0-dev"
	name    = "jonquils-pipeline"
)

const stopTimeout = 30 * time.Second

func main() {
	versionFlag := flag.Bool("version", false, "show version information")
	runOnce := flag.Bool("once", false, "run the ingestion flow once and exit")
	flag.Parse()

	if *versionFlag {
		log.Printf("%s v%s\n", name, version)
		os.Exit(0)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: config.GetEnvLogLevel("LOG_LEVEL", slog.LevelInfo),
	}))

	logger.Info("Starting Jonquils pipeline scheduler",
		slog.String("service", name),
		slog.String("version", version),
	)

	pipelineConfig := pipeline.LoadConfig()

	logger.Info("Loaded pipeline configuration",
		slog.String("ingestion_schedule", pipelineConfig.IngestionSchedule),
		slog.String("maintenance_schedule", pipelineConfig.MaintenanceSchedule),
		slog.Int("step_retries", pipelineConfig.StepRetries),
		slog.Duration("retry_delay", pipelineConfig.RetryDelay),
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
	registry := pipeline.NewRegistry(catalogConn)
	staging := pipeline.NewStaging(catalogConn)

	logger.Info("Catalog store initialized",
		slog.String("database_url", catalogConfig.MaskDatabaseURL()),
	)

	// Object storage is load-bearing for the pipeline. Without it there is
	// nothing to discover, so unlike the sink and index it fails hard.
	blobs, err := blob.NewStore(blob.LoadConfig())
	if err != nil {
		logger.Error("Failed to connect to object storage", slog.String("error", err.Error()))

		_ = catalogConn.Close()
		//nolint:gocritic // Explicit cleanup before os.Exit is intentional (defer won't run)
		os.Exit(1)
	}

	if err := blobs.EnsureBuckets(context.Background()); err != nil {
		logger.Error("Failed to ensure storage buckets", slog.String("error", err.Error()))

		_ = catalogConn.Close()
		os.Exit(1)
	}

	analytics, err := sink.NewClient(sink.LoadConfig())
	if err != nil {
		logger.Error("Invalid analytics sink configuration", slog.String("error", err.Error()))

		_ = catalogConn.Close()
		os.Exit(1)
	}

	defer func() {
		_ = analytics.Close()
	}()

	if analytics.Healthy() {
		analytics.Bootstrap(context.Background())
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

	runner := pipeline.NewRunner(pipelineConfig, blobs, registry, staging, store, indexer, analytics)

	if *runOnce {
		if _, err := runner.RunIngestion(context.Background()); err != nil {
			logger.Error("Ingestion run failed", slog.String("error", err.Error()))

			_ = catalogConn.Close()
			_ = analytics.Close()
			os.Exit(1)
		}

		logger.Info("Ingestion run complete")

		return
	}

	scheduler, err := pipeline.NewScheduler(pipelineConfig, runner)
	if err != nil {
		logger.Error("Failed to build scheduler", slog.String("error", err.Error()))

		_ = catalogConn.Close()
		_ = analytics.Close()
		os.Exit(1)
	}

	scheduler.Start()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	sig := <-shutdown

	logger.Info("Shutdown signal received", slog.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()

	scheduler.Stop(ctx)

	logger.Info("Jonquils pipeline scheduler stopped")
}
