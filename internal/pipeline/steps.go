package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/jonquils-io/jonquils/internal/blob"
	"github.com/jonquils-io/jonquils/internal/catalog"
	"github.com/jonquils-io/jonquils/internal/search"
	"github.com/jonquils-io/jonquils/internal/sink"
	"github.com/jonquils-io/jonquils/internal/telemetry"
)

// batchLimit caps how many files one run stages or promotes. The next run
// picks up the remainder.
const batchLimit = 500

// BlobStore is the object storage surface the pipeline needs.
type BlobStore interface {
	List(ctx context.Context, bucket, prefix string) ([]blob.Object, error)
	Stat(ctx context.Context, bucket, key string) (*blob.Object, error)
	Fetch(ctx context.Context, bucket, key string) (io.ReadCloser, error)
	Remove(ctx context.Context, bucket, key string) error
}

// FileRegistry tracks per-file pipeline state. *Registry satisfies it.
type FileRegistry interface {
	RecordDiscovery(ctx context.Context, bucket, filePath, etag string, size int64) (bool, error)
	ListByStatus(ctx context.Context, status string, limit int) ([]FileRecord, error)
	MarkStaged(ctx context.Context, id int64) error
	MarkProcessed(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, cause error) error
	PruneTerminal(ctx context.Context, cutoff time.Time) (int64, error)
	RecordRun(ctx context.Context, rec *RunRecord) error
	PruneRuns(ctx context.Context, cutoff time.Time) (int64, error)
}

// StagingStore holds extracted metadata between stage and promote.
// *Staging satisfies it.
type StagingStore interface {
	Upsert(ctx context.Context, track *StagedTrack) error
	ListPending(ctx context.Context, limit int) ([]StagedTrack, error)
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
}

// CatalogStore is the promote and aggregate surface of the catalog.
// *catalog.Store satisfies it.
type CatalogStore interface {
	UpsertArtist(ctx context.Context, artist *catalog.Artist) (uint32, error)
	UpsertAlbum(ctx context.Context, album *catalog.Album) (uint32, error)
	UpsertTrack(ctx context.Context, track *catalog.Track) (uint32, error)
	UpsertDailyStats(ctx context.Context, stats *catalog.DailyTrackStats) error
}

// SearchIndex is the propagate surface of the search indexer.
// *search.Indexer satisfies it.
type SearchIndex interface {
	Healthy() bool
	IndexTrack(ctx context.Context, doc *search.TrackDocument) bool
	IndexArtist(ctx context.Context, doc *search.ArtistDocument) bool
	IndexAlbum(ctx context.Context, doc *search.AlbumDocument) bool
}

// AnalyticsSink is the propagate, aggregate and prune surface of the event
// sink. *sink.Client satisfies it.
type AnalyticsSink interface {
	Healthy() bool
	Insert(ctx context.Context, event sink.Event) bool
	DailyActivity(ctx context.Context, days int) ([]sink.DailyActivity, error)
	TrackEventsSince(ctx context.Context, since time.Time, limit int) ([]sink.TrackEvent, error)
	PruneBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// promotedTrack carries the catalog identities assigned during promotion to
// the propagate step, with the denormalized names the index documents need.
type promotedTrack struct {
	TrackID    uint32
	ArtistID   uint32
	AlbumID    uint32
	Title      string
	ArtistName string
	AlbumTitle string
	Genre      string
	Duration   int32
	UploadUser string
}

// discover lists the tracks bucket and registers every audio object.
// Sidecar and junk keys (cover art, notes, manifests) are skipped so they
// never enter the registry. Returns the number of objects that need
// processing.
func (r *Runner) discover(ctx context.Context) (int, error) {
	objects, err := r.blobs.List(ctx, blob.BucketTracks, "")
	if err != nil {
		return 0, fmt.Errorf("discover: %w", err)
	}

	pending := 0
	skipped := 0

	for _, obj := range objects {
		if !supportedAudioKey(obj.Key) {
			skipped++

			continue
		}

		needsProcessing, err := r.registry.RecordDiscovery(ctx, obj.Bucket, obj.Key, obj.ETag, obj.Size)
		if err != nil {
			return pending, fmt.Errorf("discover: %w", err)
		}

		if needsProcessing {
			pending++
		}
	}

	r.logger.Info("discovery complete",
		slog.Int("listed", len(objects)),
		slog.Int("skipped", skipped),
		slog.Int("pending", pending),
	)

	return pending, nil
}

// stage extracts metadata for discovered files plus files that failed a
// previous run: a failure is never terminal while the object is still in
// the bucket, so the next run picks it up again. Item failures mark the
// file failed and move on; only registry access errors abort the step.
func (r *Runner) stage(ctx context.Context) (processed, failed int, err error) {
	records, err := r.registry.ListByStatus(ctx, StatusDiscovered, batchLimit)
	if err != nil {
		return 0, 0, fmt.Errorf("stage: %w", err)
	}

	if len(records) < batchLimit {
		retries, err := r.registry.ListByStatus(ctx, StatusFailed, batchLimit-len(records))
		if err != nil {
			return 0, 0, fmt.Errorf("stage: %w", err)
		}

		records = append(records, retries...)
	}

	for _, rec := range records {
		if err := r.stageOne(ctx, rec); err != nil {
			failed++

			r.logger.Warn("staging failed for file",
				slog.String("bucket", rec.Bucket),
				slog.String("path", rec.FilePath),
				slog.String("error", err.Error()),
			)

			if markErr := r.registry.MarkFailed(ctx, rec.ID, err); markErr != nil {
				return processed, failed, fmt.Errorf("stage: %w", markErr)
			}

			continue
		}

		if err := r.registry.MarkStaged(ctx, rec.ID); err != nil {
			return processed, failed, fmt.Errorf("stage: %w", err)
		}

		processed++
	}

	return processed, failed, nil
}

func (r *Runner) stageOne(ctx context.Context, rec FileRecord) error {
	obj, err := r.blobs.Stat(ctx, rec.Bucket, rec.FilePath)
	if err != nil {
		return err
	}

	body, err := r.blobs.Fetch(ctx, rec.Bucket, rec.FilePath)
	if err != nil {
		return err
	}

	defer func() {
		_ = body.Close()
	}()

	md, err := ExtractMetadata(body, obj)
	if err != nil {
		return err
	}

	return r.staging.Upsert(ctx, &StagedTrack{
		RegistryID:  rec.ID,
		Bucket:      rec.Bucket,
		FilePath:    rec.FilePath,
		Title:       md.Title,
		Artist:      md.Artist,
		Album:       md.Album,
		Genre:       r.genres.Normalize(md.Genre),
		ReleaseYear: md.ReleaseYear,
		DurationSec: md.DurationSec,
		Format:      md.Format,
		Bitrate:     md.Bitrate,
		FileSize:    obj.Size,
		UploadUser:  obj.UploadUserID(),
	})
}

// promote moves staged tracks into the catalog with idempotent upserts:
// artist first, then album, then track, so repeated runs converge on the
// same rows. Item failures are isolated like in stage.
func (r *Runner) promote(ctx context.Context) (promoted []promotedTrack, failed int, err error) {
	staged, err := r.staging.ListPending(ctx, batchLimit)
	if err != nil {
		return nil, 0, fmt.Errorf("promote: %w", err)
	}

	for _, item := range staged {
		result, err := r.promoteOne(ctx, item)
		if err != nil {
			failed++

			r.logger.Warn("promotion failed for track",
				slog.String("path", item.FilePath),
				slog.String("error", err.Error()),
			)

			if markErr := r.registry.MarkFailed(ctx, item.RegistryID, err); markErr != nil {
				return promoted, failed, fmt.Errorf("promote: %w", markErr)
			}

			continue
		}

		if err := r.registry.MarkProcessed(ctx, item.RegistryID); err != nil {
			return promoted, failed, fmt.Errorf("promote: %w", err)
		}

		promoted = append(promoted, *result)
	}

	return promoted, failed, nil
}

func (r *Runner) promoteOne(ctx context.Context, item StagedTrack) (*promotedTrack, error) {
	artistName := item.Artist
	if artistName == "" {
		artistName = "Unknown Artist"
	}

	artistID, err := r.catalog.UpsertArtist(ctx, &catalog.Artist{Name: artistName})
	if err != nil {
		return nil, err
	}

	var albumID uint32

	if item.Album != "" {
		albumID, err = r.catalog.UpsertAlbum(ctx, &catalog.Album{
			ArtistID:    artistID,
			Title:       item.Album,
			ReleaseYear: item.ReleaseYear,
		})
		if err != nil {
			return nil, err
		}
	}

	trackID, err := r.catalog.UpsertTrack(ctx, &catalog.Track{
		Title:       item.Title,
		ArtistID:    artistID,
		AlbumID:     albumID,
		Genre:       item.Genre,
		DurationSec: item.DurationSec,
		StoragePath: item.FilePath,
		FileSize:    item.FileSize,
		Format:      item.Format,
		Bitrate:     item.Bitrate,
	})
	if err != nil {
		return nil, err
	}

	return &promotedTrack{
		TrackID:    trackID,
		ArtistID:   artistID,
		AlbumID:    albumID,
		Title:      item.Title,
		ArtistName: artistName,
		AlbumTitle: item.Album,
		Genre:      item.Genre,
		Duration:   item.DurationSec,
		UploadUser: item.UploadUser,
	}, nil
}

// propagate records this run's promoted tracks in the analytics store and
// pushes them into the search index. The two writes are independent: a
// dropped event never blocks indexing and a degraded index never blocks the
// event. A degraded index skips the index half; the hourly rerun will
// re-discover nothing but the next changed upload re-indexes naturally, and
// a full reindex is an operator action.
func (r *Runner) propagate(ctx context.Context, promoted []promotedTrack) (indexed int) {
	if len(promoted) == 0 {
		return 0
	}

	for _, p := range promoted {
		r.recordUpload(ctx, p)
	}

	if !r.index.Healthy() {
		r.logger.Warn("search index degraded, skipping propagation",
			slog.Int("tracks", len(promoted)),
		)

		return 0
	}

	for _, p := range promoted {
		ok := r.index.IndexTrack(ctx, &search.TrackDocument{
			ID:          p.TrackID,
			Title:       p.Title,
			ArtistID:    p.ArtistID,
			ArtistName:  p.ArtistName,
			AlbumID:     p.AlbumID,
			AlbumTitle:  p.AlbumTitle,
			Genre:       p.Genre,
			DurationSec: p.Duration,
		})
		if !ok {
			continue
		}

		r.index.IndexArtist(ctx, &search.ArtistDocument{ID: p.ArtistID, Name: p.ArtistName})

		if p.AlbumID != 0 {
			r.index.IndexAlbum(ctx, &search.AlbumDocument{
				ID:         p.AlbumID,
				Title:      p.AlbumTitle,
				ArtistID:   p.ArtistID,
				ArtistName: p.ArtistName,
			})
		}

		indexed++
	}

	return indexed
}

// recordUpload appends one upload fact per promoted track. Best-effort like
// every sink write; the sink no-ops and counts the drop when degraded.
func (r *Runner) recordUpload(ctx context.Context, p promotedTrack) {
	event := sink.TrackEvent{
		EventID:    uuid.NewString(),
		Timestamp:  time.Now().UTC(),
		TrackID:    p.TrackID,
		ArtistID:   p.ArtistID,
		AlbumID:    p.AlbumID,
		Action:     sink.ActionUpload,
		DurationMs: int64(p.Duration) * 1000,
	}

	if id, err := strconv.ParseUint(p.UploadUser, 10, 32); err == nil && id > 0 {
		uploader := uint32(id)
		event.UserID = &uploader
	}

	r.sink.Insert(ctx, event)
}

// aggregate folds sink activity into the relational daily rollups and runs
// the telemetry quality pass. A degraded sink skips the step.
func (r *Runner) aggregate(ctx context.Context) (days int, err error) {
	activity, err := r.sink.DailyActivity(ctx, r.cfg.AggregateDays)
	if errors.Is(err, sink.ErrSinkUnavailable) {
		r.logger.Warn("analytics sink degraded, skipping aggregation")

		return 0, nil
	}

	if err != nil {
		return 0, fmt.Errorf("aggregate: %w", err)
	}

	for _, day := range activity {
		err := r.catalog.UpsertDailyStats(ctx, &catalog.DailyTrackStats{
			DateKey:       day.Day,
			TotalPlays:    int64(day.TotalPlays),
			UniqueUsers:   int64(day.UniqueUsers),
			UniqueTracks:  int64(day.UniqueTracks),
			TotalListenMs: int64(day.TotalListenMs),
		})
		if err != nil {
			return days, fmt.Errorf("aggregate: %w", err)
		}

		days++
	}

	r.qualityPass(ctx)

	return days, nil
}

// qualityPass samples recent track events and logs a quality report. It is
// advisory and never fails the run.
func (r *Runner) qualityPass(ctx context.Context) {
	since := time.Now().UTC().AddDate(0, 0, -1)

	events, err := r.sink.TrackEventsSince(ctx, since, batchLimit*10)
	if err != nil {
		return
	}

	report := telemetry.AssessQuality(events, time.Now().UTC())
	if report.Flagged == 0 {
		return
	}

	r.logger.Warn("telemetry quality issues detected",
		slog.Int("scanned", report.Scanned),
		slog.Int("flagged", report.Flagged),
		slog.Any("counts", report.Counts),
	)
}

// prune applies the retention windows: sink fact tables, staging scratch,
// terminal registry rows, the run log, and expired temp uploads.
func (r *Runner) prune(ctx context.Context) error {
	now := time.Now().UTC()

	if _, err := r.sink.PruneBefore(ctx, now.Add(-r.cfg.TelemetryRetention)); err != nil &&
		!errors.Is(err, sink.ErrSinkUnavailable) {
		return fmt.Errorf("prune telemetry: %w", err)
	}

	if _, err := r.staging.Prune(ctx, now.Add(-r.cfg.StagingRetention)); err != nil {
		return err
	}

	if _, err := r.registry.PruneTerminal(ctx, now.Add(-r.cfg.RegistryRetention)); err != nil {
		return err
	}

	if _, err := r.registry.PruneRuns(ctx, now.Add(-r.cfg.RunLogRetention)); err != nil {
		return err
	}

	return r.pruneTemp(ctx, now)
}

// pruneTemp clears abandoned uploads from the temp bucket.
func (r *Runner) pruneTemp(ctx context.Context, now time.Time) error {
	objects, err := r.blobs.List(ctx, blob.BucketTemp, "")
	if err != nil {
		return fmt.Errorf("prune temp: %w", err)
	}

	removed := 0

	for _, obj := range objects {
		if now.Sub(obj.LastModified) < r.cfg.TempRetention {
			continue
		}

		if err := r.blobs.Remove(ctx, obj.Bucket, obj.Key); err != nil {
			return fmt.Errorf("prune temp: %w", err)
		}

		removed++
	}

	if removed > 0 {
		r.logger.Info("temp uploads pruned", slog.Int("removed", removed))
	}

	return nil
}
