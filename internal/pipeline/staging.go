package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/jonquils-io/jonquils/internal/catalog"
)

// StagedTrack is one row of staging.track_uploads: extracted metadata for a
// discovered file, waiting for promotion into the catalog.
type StagedTrack struct {
	ID          int64
	RegistryID  int64
	Bucket      string
	FilePath    string
	Title       string
	Artist      string
	Album       string
	Genre       string
	ReleaseYear int16
	DurationSec int32
	Format      string
	Bitrate     int32
	FileSize    int64
	UploadUser  string
	StagedAt    time.Time
}

// Staging persists extracted metadata between the stage and promote steps.
type Staging struct {
	conn *catalog.Connection
}

// NewStaging creates a staging store over the shared catalog connection.
func NewStaging(conn *catalog.Connection) *Staging {
	return &Staging{conn: conn}
}

// Upsert writes a staged track keyed by (bucket, file_path). Re-staging the
// same file replaces the previous extraction.
func (s *Staging) Upsert(ctx context.Context, track *StagedTrack) error {
	query := `
		INSERT INTO staging.track_uploads
			(registry_id, bucket, file_path, title, artist, album, genre,
			 release_year, duration_sec, format, bitrate, file_size,
			 upload_user, staged_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW())
		ON CONFLICT (bucket, file_path) DO UPDATE SET
			registry_id  = EXCLUDED.registry_id,
			title        = EXCLUDED.title,
			artist       = EXCLUDED.artist,
			album        = EXCLUDED.album,
			genre        = EXCLUDED.genre,
			release_year = EXCLUDED.release_year,
			duration_sec = EXCLUDED.duration_sec,
			format       = EXCLUDED.format,
			bitrate      = EXCLUDED.bitrate,
			file_size    = EXCLUDED.file_size,
			upload_user  = EXCLUDED.upload_user,
			staged_at    = NOW()
	`

	_, err := s.conn.ExecContext(ctx, query,
		track.RegistryID, track.Bucket, track.FilePath, track.Title,
		track.Artist, track.Album, track.Genre, track.ReleaseYear,
		track.DurationSec, track.Format, track.Bitrate, track.FileSize,
		track.UploadUser,
	)
	if err != nil {
		return fmt.Errorf("stage track %s/%s: %w", track.Bucket, track.FilePath, err)
	}

	return nil
}

// ListPending returns staged tracks whose registry row is still staged,
// oldest first. Tracks already promoted drop out of the join.
func (s *Staging) ListPending(ctx context.Context, limit int) ([]StagedTrack, error) {
	query := `
		SELECT t.id, t.registry_id, t.bucket, t.file_path, t.title, t.artist,
			t.album, COALESCE(t.genre, ''), COALESCE(t.release_year, 0),
			t.duration_sec, t.format, COALESCE(t.bitrate, 0), t.file_size,
			COALESCE(t.upload_user, ''), t.staged_at
		FROM staging.track_uploads t
		JOIN etl.file_registry r ON r.id = t.registry_id
		WHERE r.status = $1
		ORDER BY t.staged_at
		LIMIT $2
	`

	rows, err := s.conn.QueryContext(ctx, query, StatusStaged, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending staged tracks: %w", err)
	}

	defer func() {
		_ = rows.Close()
	}()

	var tracks []StagedTrack

	for rows.Next() {
		var t StagedTrack
		if err := rows.Scan(
			&t.ID, &t.RegistryID, &t.Bucket, &t.FilePath, &t.Title, &t.Artist,
			&t.Album, &t.Genre, &t.ReleaseYear, &t.DurationSec, &t.Format,
			&t.Bitrate, &t.FileSize, &t.UploadUser, &t.StagedAt,
		); err != nil {
			return nil, fmt.Errorf("scan staged track: %w", err)
		}

		tracks = append(tracks, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate staged tracks: %w", err)
	}

	return tracks, nil
}

// Prune deletes staged rows older than the cutoff. Promotion reads from the
// registry join, so pruning only clears the scratch space.
func (s *Staging) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.conn.ExecContext(ctx,
		`DELETE FROM staging.track_uploads WHERE staged_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune staging: %w", err)
	}

	return result.RowsAffected()
}
