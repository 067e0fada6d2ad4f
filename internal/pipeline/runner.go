package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/jonquils-io/jonquils/internal/config"
)

// Run kinds recorded in the run log.
const (
	RunIngestion   = "ingestion"
	RunMaintenance = "maintenance"
)

// ErrRunInFlight is returned when a run is requested while another is still
// executing. Runs are single-flight; overlapping triggers are rejected, not
// queued.
var ErrRunInFlight = errors.New("pipeline run already in flight")

// StepResult records one step's outcome within a run.
type StepResult struct {
	Name     string
	Attempts int
	Items    int
	Failed   int
	Err      error
}

// RunResult summarizes a full pipeline run.
type RunResult struct {
	Kind       string
	StartedAt  time.Time
	FinishedAt time.Time
	Steps      []StepResult
}

// Succeeded reports whether every step completed without a step-level error.
// Isolated item failures do not fail the run.
func (r *RunResult) Succeeded() bool {
	for _, s := range r.Steps {
		if s.Err != nil {
			return false
		}
	}

	return true
}

func (r *RunResult) summary() string {
	out := ""

	for i, s := range r.Steps {
		if i > 0 {
			out += "; "
		}

		out += fmt.Sprintf("%s: items=%d failed=%d attempts=%d", s.Name, s.Items, s.Failed, s.Attempts)

		if s.Err != nil {
			out += " error=" + s.Err.Error()
		}
	}

	return out
}

// Runner executes the reconciliation flow against its backing stores.
type Runner struct {
	cfg      *Config
	blobs    BlobStore
	registry FileRegistry
	staging  StagingStore
	catalog  CatalogStore
	index    SearchIndex
	sink     AnalyticsSink
	genres   *GenreConfig
	logger   *slog.Logger

	mu sync.Mutex
}

// NewRunner wires a runner over its dependencies.
func NewRunner(
	cfg *Config,
	blobs BlobStore,
	registry FileRegistry,
	staging StagingStore,
	cat CatalogStore,
	index SearchIndex,
	analytics AnalyticsSink,
) *Runner {
	return &Runner{
		cfg:      cfg,
		blobs:    blobs,
		registry: registry,
		staging:  staging,
		catalog:  cat,
		index:    index,
		sink:     analytics,
		genres:   LoadGenreConfigFromEnv(),
		logger: slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: config.GetEnvLogLevel("LOG_LEVEL", slog.LevelInfo),
		})),
	}
}

// RunIngestion executes the full flow: Discover -> Stage -> Promote ->
// {Propagate, Aggregate} -> Prune. Propagate and Aggregate have no data
// dependency on each other and run concurrently. Returns ErrRunInFlight if
// another run holds the lock.
func (r *Runner) RunIngestion(ctx context.Context) (*RunResult, error) {
	if !r.mu.TryLock() {
		return nil, ErrRunInFlight
	}
	defer r.mu.Unlock()

	result := &RunResult{Kind: RunIngestion, StartedAt: time.Now().UTC()}

	r.runStep(ctx, result, "discover", func() (int, int, error) {
		pending, err := r.discover(ctx)

		return pending, 0, err
	})

	r.runStep(ctx, result, "stage", func() (int, int, error) {
		return r.stage(ctx)
	})

	var promoted []promotedTrack

	r.runStep(ctx, result, "promote", func() (int, int, error) {
		tracks, failed, err := r.promote(ctx)
		promoted = tracks

		return len(tracks), failed, err
	})

	// Fan out: propagation and aggregation touch disjoint systems.
	var wg sync.WaitGroup

	propagateResult := StepResult{Name: "propagate", Attempts: 1}
	aggregateResult := StepResult{Name: "aggregate"}

	wg.Add(2)

	go func() {
		defer wg.Done()

		propagateResult.Items = r.propagate(ctx, promoted)
	}()

	go func() {
		defer wg.Done()

		aggregateResult = r.attempt(ctx, "aggregate", func() (int, int, error) {
			days, err := r.aggregate(ctx)

			return days, 0, err
		})
	}()

	wg.Wait()
	result.Steps = append(result.Steps, propagateResult, aggregateResult)

	r.runStep(ctx, result, "prune", func() (int, int, error) {
		return 0, 0, r.prune(ctx)
	})

	return r.finish(ctx, result)
}

// RunMaintenance executes the standalone aggregate and prune flow used by
// the coarser maintenance schedule. Shares the single-flight lock with
// ingestion runs.
func (r *Runner) RunMaintenance(ctx context.Context) (*RunResult, error) {
	if !r.mu.TryLock() {
		return nil, ErrRunInFlight
	}
	defer r.mu.Unlock()

	result := &RunResult{Kind: RunMaintenance, StartedAt: time.Now().UTC()}

	r.runStep(ctx, result, "aggregate", func() (int, int, error) {
		days, err := r.aggregate(ctx)

		return days, 0, err
	})

	r.runStep(ctx, result, "prune", func() (int, int, error) {
		return 0, 0, r.prune(ctx)
	})

	return r.finish(ctx, result)
}

// runStep executes one step with the retry policy and appends its result.
func (r *Runner) runStep(ctx context.Context, result *RunResult, name string, fn func() (int, int, error)) {
	result.Steps = append(result.Steps, r.attempt(ctx, name, fn))
}

// attempt runs fn up to 1+StepRetries times, waiting RetryDelay between
// tries. Context cancellation stops retrying immediately.
func (r *Runner) attempt(ctx context.Context, name string, fn func() (int, int, error)) StepResult {
	step := StepResult{Name: name}

	for step.Attempts <= r.cfg.StepRetries {
		step.Attempts++
		step.Items, step.Failed, step.Err = fn()

		if step.Err == nil {
			return step
		}

		r.logger.Error("pipeline step failed",
			slog.String("step", name),
			slog.Int("attempt", step.Attempts),
			slog.String("error", step.Err.Error()),
		)

		if step.Attempts > r.cfg.StepRetries {
			break
		}

		select {
		case <-time.After(r.cfg.RetryDelay):
		case <-ctx.Done():
			step.Err = ctx.Err()

			return step
		}
	}

	return step
}

// finish stamps the result, records it in the run log, and logs a summary.
func (r *Runner) finish(ctx context.Context, result *RunResult) (*RunResult, error) {
	result.FinishedAt = time.Now().UTC()

	record := &RunRecord{
		Kind:       result.Kind,
		StartedAt:  result.StartedAt,
		FinishedAt: result.FinishedAt,
		Succeeded:  result.Succeeded(),
		Summary:    result.summary(),
	}

	if err := r.registry.RecordRun(ctx, record); err != nil {
		r.logger.Error("failed to record pipeline run", slog.String("error", err.Error()))
	}

	r.logger.Info("pipeline run finished",
		slog.String("kind", result.Kind),
		slog.Bool("succeeded", result.Succeeded()),
		slog.Duration("duration", result.FinishedAt.Sub(result.StartedAt)),
		slog.String("summary", record.Summary),
	)

	return result, nil
}
