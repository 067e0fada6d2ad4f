package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/robfig/cron/v3"

	"github.com/jonquils-io/jonquils/internal/config"
)

// Scheduler triggers pipeline runs on fixed cron schedules. Overlap
// protection is layered: cron skips a trigger while the previous invocation
// of the same job is running, and the runner's lock rejects cross-schedule
// overlap with ErrRunInFlight.
type Scheduler struct {
	cron   *cron.Cron
	runner *Runner
	logger *slog.Logger
}

// NewScheduler registers the ingestion and maintenance schedules.
func NewScheduler(cfg *Config, runner *Runner) (*Scheduler, error) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: config.GetEnvLogLevel("LOG_LEVEL", slog.LevelInfo),
	}))

	c := cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DiscardLogger),
		cron.Recover(cron.DiscardLogger),
	))

	s := &Scheduler{cron: c, runner: runner, logger: logger}

	if _, err := c.AddFunc(cfg.IngestionSchedule, func() {
		s.trigger(RunIngestion, runner.RunIngestion)
	}); err != nil {
		return nil, fmt.Errorf("register ingestion schedule %q: %w", cfg.IngestionSchedule, err)
	}

	if _, err := c.AddFunc(cfg.MaintenanceSchedule, func() {
		s.trigger(RunMaintenance, runner.RunMaintenance)
	}); err != nil {
		return nil, fmt.Errorf("register maintenance schedule %q: %w", cfg.MaintenanceSchedule, err)
	}

	logger.Info("pipeline schedules registered",
		slog.String("ingestion", cfg.IngestionSchedule),
		slog.String("maintenance", cfg.MaintenanceSchedule),
	)

	return s, nil
}

func (s *Scheduler) trigger(kind string, run func(context.Context) (*RunResult, error)) {
	if _, err := run(context.Background()); err != nil {
		if errors.Is(err, ErrRunInFlight) {
			s.logger.Warn("pipeline trigger skipped, run in flight", slog.String("kind", kind))

			return
		}

		s.logger.Error("pipeline run failed to start",
			slog.String("kind", kind),
			slog.String("error", err.Error()),
		)
	}
}

// Start begins schedule evaluation in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts schedule evaluation and waits for a running job to finish.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()

	select {
	case <-done.Done():
	case <-ctx.Done():
		s.logger.Warn("scheduler stop timed out with a run still in flight")
	}
}
