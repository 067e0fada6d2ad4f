package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonquils-io/jonquils/internal/catalog"
)

// File lifecycle states in the registry. A file moves discovered -> staged
// -> processed, or lands in failed with a recorded error. Failed is not
// terminal: the next run's stage pass feeds on failed rows too.
const (
	StatusDiscovered = "discovered"
	StatusStaged     = "staged"
	StatusProcessed  = "processed"
	StatusFailed     = "failed"
)

// ErrFileNotRegistered is returned when a registry row does not exist.
var ErrFileNotRegistered = errors.New("file not registered")

// FileRecord is one row of etl.file_registry: a storage object the pipeline
// has seen, with its processing state.
type FileRecord struct {
	ID           int64
	Bucket       string
	FilePath     string
	ETag         string
	FileSize     int64
	Status       string
	ErrorMessage string
	DiscoveredAt time.Time
	ProcessedAt  *time.Time
}

// Registry persists discovery state so reruns skip already-processed files
// and re-process files whose content changed.
type Registry struct {
	conn *catalog.Connection
}

// NewRegistry creates a registry over the shared catalog connection.
func NewRegistry(conn *catalog.Connection) *Registry {
	return &Registry{conn: conn}
}

// RecordDiscovery upserts a discovered file keyed by (bucket, file_path).
// A new file inserts as discovered. A known file with an unchanged etag
// keeps its current status, so the upsert is a no-op for processed files.
// A changed etag resets the file to discovered for re-processing.
// Returns true when the file needs processing after the call.
func (r *Registry) RecordDiscovery(ctx context.Context, bucket, filePath, etag string, size int64) (bool, error) {
	query := `
		INSERT INTO etl.file_registry
			(bucket, file_path, etag, file_size, status, discovered_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (bucket, file_path) DO UPDATE SET
			etag      = EXCLUDED.etag,
			file_size = EXCLUDED.file_size,
			status    = CASE
				WHEN etl.file_registry.etag IS DISTINCT FROM EXCLUDED.etag THEN $5
				ELSE etl.file_registry.status
			END,
			error_message = CASE
				WHEN etl.file_registry.etag IS DISTINCT FROM EXCLUDED.etag THEN NULL
				ELSE etl.file_registry.error_message
			END,
			discovered_at = NOW()
		RETURNING status
	`

	var status string
	if err := r.conn.QueryRowContext(ctx, query, bucket, filePath, etag, size, StatusDiscovered).Scan(&status); err != nil {
		return false, fmt.Errorf("record discovery %s/%s: %w", bucket, filePath, err)
	}

	return status == StatusDiscovered, nil
}

// ListByStatus returns registry rows in a given state, oldest first.
func (r *Registry) ListByStatus(ctx context.Context, status string, limit int) ([]FileRecord, error) {
	query := `
		SELECT id, bucket, file_path, etag, file_size, status,
			COALESCE(error_message, ''), discovered_at, processed_at
		FROM etl.file_registry
		WHERE status = $1
		ORDER BY discovered_at
		LIMIT $2
	`

	rows, err := r.conn.QueryContext(ctx, query, status, limit)
	if err != nil {
		return nil, fmt.Errorf("list registry by status %q: %w", status, err)
	}

	defer func() {
		_ = rows.Close()
	}()

	var records []FileRecord

	for rows.Next() {
		var rec FileRecord
		if err := rows.Scan(
			&rec.ID, &rec.Bucket, &rec.FilePath, &rec.ETag, &rec.FileSize,
			&rec.Status, &rec.ErrorMessage, &rec.DiscoveredAt, &rec.ProcessedAt,
		); err != nil {
			return nil, fmt.Errorf("scan registry row: %w", err)
		}

		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate registry rows: %w", err)
	}

	return records, nil
}

// MarkStaged transitions a file to staged.
func (r *Registry) MarkStaged(ctx context.Context, id int64) error {
	return r.setStatus(ctx, id, StatusStaged, "")
}

// MarkProcessed transitions a file to processed and stamps processed_at.
func (r *Registry) MarkProcessed(ctx context.Context, id int64) error {
	query := `
		UPDATE etl.file_registry
		SET status = $2, error_message = NULL, processed_at = NOW()
		WHERE id = $1
	`

	return r.exec(ctx, query, id, StatusProcessed)
}

// MarkFailed transitions a file to failed, recording the error for the
// operator. The next run retries failed files; only removal from the bucket
// or a changed upload clears the recorded error sooner.
func (r *Registry) MarkFailed(ctx context.Context, id int64, cause error) error {
	return r.setStatus(ctx, id, StatusFailed, cause.Error())
}

func (r *Registry) setStatus(ctx context.Context, id int64, status, errMsg string) error {
	query := `
		UPDATE etl.file_registry
		SET status = $2, error_message = NULLIF($3, '')
		WHERE id = $1
	`

	return r.exec(ctx, query, id, status, errMsg)
}

func (r *Registry) exec(ctx context.Context, query string, id int64, args ...any) error {
	result, err := r.conn.ExecContext(ctx, query, append([]any{id}, args...)...)
	if err != nil {
		return fmt.Errorf("update registry row %d: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update registry row %d: %w", id, err)
	}

	if affected == 0 {
		return fmt.Errorf("%w: id %d", ErrFileNotRegistered, id)
	}

	return nil
}

// PruneTerminal deletes processed and failed rows older than the cutoff.
// Returns the number of rows removed.
func (r *Registry) PruneTerminal(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		DELETE FROM etl.file_registry
		WHERE status IN ($1, $2) AND discovered_at < $3
	`

	result, err := r.conn.ExecContext(ctx, query, StatusProcessed, StatusFailed, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune registry: %w", err)
	}

	return result.RowsAffected()
}

// RunRecord is one row of etl.pipeline_runs: the durable summary of a
// pipeline run for operators.
type RunRecord struct {
	ID         int64
	Kind       string
	StartedAt  time.Time
	FinishedAt time.Time
	Succeeded  bool
	Summary    string
}

// RecordRun appends a run summary to the run log.
func (r *Registry) RecordRun(ctx context.Context, rec *RunRecord) error {
	query := `
		INSERT INTO etl.pipeline_runs (kind, started_at, finished_at, succeeded, summary)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.conn.ExecContext(ctx, query,
		rec.Kind, rec.StartedAt, rec.FinishedAt, rec.Succeeded, rec.Summary)
	if err != nil {
		return fmt.Errorf("record pipeline run: %w", err)
	}

	return nil
}

// PruneRuns deletes run log rows older than the cutoff.
func (r *Registry) PruneRuns(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.conn.ExecContext(ctx,
		`DELETE FROM etl.pipeline_runs WHERE started_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune run log: %w", err)
	}

	return result.RowsAffected()
}
