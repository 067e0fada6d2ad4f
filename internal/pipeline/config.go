// Package pipeline implements the scheduled batch reconciliation flow that
// moves uploaded audio from object storage into the catalog, search index,
// and analytics rollups:
//
//	Discover -> Stage -> Promote -> {Propagate, Aggregate} -> Prune
//
// Runs are single-flight, steps retry with a fixed delay, and item failures
// inside a step are isolated so one bad file never stops the batch.
package pipeline

import (
	"time"

	"github.com/jonquils-io/jonquils/internal/config"
)

// Default retention windows and retry policy.
const (
	defaultTelemetryRetention = 90 * 24 * time.Hour
	defaultStagingRetention   = 7 * 24 * time.Hour
	defaultRegistryRetention  = 30 * 24 * time.Hour
	defaultRunLogRetention    = 30 * 24 * time.Hour
	defaultTempRetention      = 24 * time.Hour

	defaultStepRetries     = 1
	defaultRetryDelay      = 5 * time.Minute
	defaultAggregateDays   = 7
	defaultIngestionCron   = "0 * * * *"
	defaultMaintenanceCron = "0 */6 * * *"
)

// Config holds pipeline scheduling, retry, and retention configuration.
type Config struct {
	IngestionSchedule   string
	MaintenanceSchedule string

	StepRetries int
	RetryDelay  time.Duration

	// AggregateDays is the trailing window the aggregate step recomputes
	// each run, covering late-arriving events.
	AggregateDays int

	TelemetryRetention time.Duration
	StagingRetention   time.Duration
	RegistryRetention  time.Duration
	RunLogRetention    time.Duration
	TempRetention      time.Duration
}

// LoadConfig loads pipeline configuration from environment variables with
// fallback to defaults.
func LoadConfig() *Config {
	return &Config{
		IngestionSchedule:   config.GetEnvStr("PIPELINE_INGESTION_SCHEDULE", defaultIngestionCron),
		MaintenanceSchedule: config.GetEnvStr("PIPELINE_MAINTENANCE_SCHEDULE", defaultMaintenanceCron),
		StepRetries:         config.GetEnvInt("PIPELINE_STEP_RETRIES", defaultStepRetries),
		RetryDelay:          config.GetEnvDuration("PIPELINE_RETRY_DELAY", defaultRetryDelay),
		AggregateDays:       config.GetEnvInt("PIPELINE_AGGREGATE_DAYS", defaultAggregateDays),
		TelemetryRetention:  config.GetEnvDuration("PIPELINE_TELEMETRY_RETENTION", defaultTelemetryRetention),
		StagingRetention:    config.GetEnvDuration("PIPELINE_STAGING_RETENTION", defaultStagingRetention),
		RegistryRetention:   config.GetEnvDuration("PIPELINE_REGISTRY_RETENTION", defaultRegistryRetention),
		RunLogRetention:     config.GetEnvDuration("PIPELINE_RUN_LOG_RETENTION", defaultRunLogRetention),
		TempRetention:       config.GetEnvDuration("PIPELINE_TEMP_RETENTION", defaultTempRetention),
	}
}
