package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/jonquils-io/jonquils/internal/config"
)

// ErrNotFound is returned when a catalog entity does not exist.
var ErrNotFound = errors.New("catalog entity not found")

// Store provides catalog reads and the idempotent upserts used by the
// reconciliation pipeline's promote step.
type Store struct {
	conn   *Connection
	logger *slog.Logger
}

// NewStore creates a catalog store over an established connection.
func NewStore(conn *Connection) *Store {
	return &Store{
		conn: conn,
		logger: slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: config.GetEnvLogLevel("LOG_LEVEL", slog.LevelInfo),
		})),
	}
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}

	return nil
}

// UpsertArtist inserts an artist or refreshes an existing one by name.
// Returns the artist ID either way, so repeated promotion of the same
// staged file converges on one row.
func (s *Store) UpsertArtist(ctx context.Context, artist *Artist) (uint32, error) {
	query := `
		INSERT INTO artists (name, bio, image_path, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		ON CONFLICT (name) DO UPDATE SET
			bio        = COALESCE(NULLIF(EXCLUDED.bio, ''), artists.bio),
			image_path = COALESCE(NULLIF(EXCLUDED.image_path, ''), artists.image_path),
			updated_at = NOW()
		RETURNING id
	`

	var id uint32
	if err := s.conn.QueryRowContext(ctx, query, artist.Name, artist.Bio, artist.ImagePath).Scan(&id); err != nil {
		return 0, fmt.Errorf("upsert artist %q: %w", artist.Name, err)
	}

	return id, nil
}

// UpsertAlbum inserts an album or refreshes an existing one by
// (artist_id, title). Returns the album ID either way.
func (s *Store) UpsertAlbum(ctx context.Context, album *Album) (uint32, error) {
	query := `
		INSERT INTO albums (artist_id, title, release_year, cover_path, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		ON CONFLICT (artist_id, title) DO UPDATE SET
			release_year = CASE WHEN EXCLUDED.release_year > 0 THEN EXCLUDED.release_year ELSE albums.release_year END,
			cover_path   = COALESCE(NULLIF(EXCLUDED.cover_path, ''), albums.cover_path),
			updated_at   = NOW()
		RETURNING id
	`

	var id uint32

	err := s.conn.QueryRowContext(ctx, query,
		album.ArtistID, album.Title, album.ReleaseYear, album.CoverPath,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert album %q: %w", album.Title, err)
	}

	return id, nil
}

// UpsertTrack inserts a track or refreshes an existing one by storage path.
// The storage path is the conflict target: promoting the same object twice
// updates metadata in place instead of duplicating the track.
func (s *Store) UpsertTrack(ctx context.Context, track *Track) (uint32, error) {
	query := `
		INSERT INTO tracks
			(title, artist_id, album_id, genre, duration_sec, storage_path,
			 file_size, format, bitrate, created_at, updated_at)
		VALUES ($1, $2, NULLIF($3, 0), $4, $5, $6, $7, $8, $9, NOW(), NOW())
		ON CONFLICT (storage_path) DO UPDATE SET
			title        = EXCLUDED.title,
			artist_id    = EXCLUDED.artist_id,
			album_id     = EXCLUDED.album_id,
			genre        = EXCLUDED.genre,
			duration_sec = EXCLUDED.duration_sec,
			file_size    = EXCLUDED.file_size,
			format       = EXCLUDED.format,
			bitrate      = EXCLUDED.bitrate,
			updated_at   = NOW()
		RETURNING id
	`

	var id uint32

	err := s.conn.QueryRowContext(ctx, query,
		track.Title, track.ArtistID, track.AlbumID, track.Genre,
		track.DurationSec, track.StoragePath, track.FileSize, track.Format,
		track.Bitrate,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert track %q: %w", track.StoragePath, err)
	}

	return id, nil
}

// TrackByID fetches one track.
func (s *Store) TrackByID(ctx context.Context, id uint32) (*Track, error) {
	query := trackSelect + ` WHERE t.id = $1`

	track, err := scanTrack(s.conn.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: track %d", ErrNotFound, id)
	}

	if err != nil {
		return nil, fmt.Errorf("fetch track %d: %w", id, err)
	}

	return track, nil
}

// TracksByIDs fetches tracks by ID, preserving the order of ids. Unknown
// IDs are skipped, so a ranked ID list from the search index resolves into
// a ranked track list.
func (s *Store) TracksByIDs(ctx context.Context, ids []uint32) ([]Track, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := trackSelect + ` WHERE t.id = ANY($1)`

	rows, err := s.conn.QueryContext(ctx, query, pq.Array(int64IDs(ids)))
	if err != nil {
		return nil, fmt.Errorf("fetch tracks: %w", err)
	}

	defer func() {
		_ = rows.Close()
	}()

	byID := make(map[uint32]Track, len(ids))

	for rows.Next() {
		track, err := scanTrack(rows)
		if err != nil {
			return nil, fmt.Errorf("scan track: %w", err)
		}

		byID[track.ID] = *track
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tracks: %w", err)
	}

	ordered := make([]Track, 0, len(ids))

	for _, id := range ids {
		if track, ok := byID[id]; ok {
			ordered = append(ordered, track)
		}
	}

	return ordered, nil
}

// ArtistsByIDs fetches artists by ID, preserving the order of ids.
func (s *Store) ArtistsByIDs(ctx context.Context, ids []uint32) ([]Artist, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `
		SELECT id, name, COALESCE(bio, ''), COALESCE(image_path, ''), created_at, updated_at
		FROM artists
		WHERE id = ANY($1)
	`

	rows, err := s.conn.QueryContext(ctx, query, pq.Array(int64IDs(ids)))
	if err != nil {
		return nil, fmt.Errorf("fetch artists: %w", err)
	}

	defer func() {
		_ = rows.Close()
	}()

	byID := make(map[uint32]Artist, len(ids))

	for rows.Next() {
		var a Artist
		if err := rows.Scan(&a.ID, &a.Name, &a.Bio, &a.ImagePath, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan artist: %w", err)
		}

		byID[a.ID] = a
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate artists: %w", err)
	}

	ordered := make([]Artist, 0, len(ids))

	for _, id := range ids {
		if artist, ok := byID[id]; ok {
			ordered = append(ordered, artist)
		}
	}

	return ordered, nil
}

// AlbumsByIDs fetches albums by ID, preserving the order of ids.
func (s *Store) AlbumsByIDs(ctx context.Context, ids []uint32) ([]Album, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `
		SELECT id, artist_id, title, COALESCE(release_year, 0), COALESCE(cover_path, ''), created_at, updated_at
		FROM albums
		WHERE id = ANY($1)
	`

	rows, err := s.conn.QueryContext(ctx, query, pq.Array(int64IDs(ids)))
	if err != nil {
		return nil, fmt.Errorf("fetch albums: %w", err)
	}

	defer func() {
		_ = rows.Close()
	}()

	byID := make(map[uint32]Album, len(ids))

	for rows.Next() {
		var a Album
		if err := rows.Scan(&a.ID, &a.ArtistID, &a.Title, &a.ReleaseYear, &a.CoverPath, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan album: %w", err)
		}

		byID[a.ID] = a
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate albums: %w", err)
	}

	ordered := make([]Album, 0, len(ids))

	for _, id := range ids {
		if album, ok := byID[id]; ok {
			ordered = append(ordered, album)
		}
	}

	return ordered, nil
}

// SearchTracks is the relational fallback used when the search index is
// unavailable: case-insensitive substring match over track titles and
// artist names, exact-prefix matches first.
func (s *Store) SearchTracks(ctx context.Context, term string, limit int) ([]Track, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, nil
	}

	query := trackSelect + `
		JOIN artists a ON a.id = t.artist_id
		WHERE t.title ILIKE '%' || $1 || '%' OR a.name ILIKE '%' || $1 || '%'
		ORDER BY
			(t.title ILIKE $1 || '%') DESC,
			t.title
		LIMIT $2
	`

	rows, err := s.conn.QueryContext(ctx, query, term, limit)
	if err != nil {
		return nil, fmt.Errorf("search tracks %q: %w", term, err)
	}

	defer func() {
		_ = rows.Close()
	}()

	var tracks []Track

	for rows.Next() {
		track, err := scanTrack(rows)
		if err != nil {
			return nil, fmt.Errorf("scan track: %w", err)
		}

		tracks = append(tracks, *track)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tracks: %w", err)
	}

	return tracks, nil
}

// SearchArtists is the relational fallback for artist search.
func (s *Store) SearchArtists(ctx context.Context, term string, limit int) ([]Artist, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, nil
	}

	query := `
		SELECT id, name, COALESCE(bio, ''), COALESCE(image_path, ''), created_at, updated_at
		FROM artists
		WHERE name ILIKE '%' || $1 || '%'
		ORDER BY (name ILIKE $1 || '%') DESC, name
		LIMIT $2
	`

	rows, err := s.conn.QueryContext(ctx, query, term, limit)
	if err != nil {
		return nil, fmt.Errorf("search artists %q: %w", term, err)
	}

	defer func() {
		_ = rows.Close()
	}()

	var artists []Artist

	for rows.Next() {
		var a Artist
		if err := rows.Scan(&a.ID, &a.Name, &a.Bio, &a.ImagePath, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan artist: %w", err)
		}

		artists = append(artists, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate artists: %w", err)
	}

	return artists, nil
}

// SearchAlbums is the relational fallback for album search.
func (s *Store) SearchAlbums(ctx context.Context, term string, limit int) ([]Album, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, nil
	}

	query := `
		SELECT id, artist_id, title, COALESCE(release_year, 0), COALESCE(cover_path, ''), created_at, updated_at
		FROM albums
		WHERE title ILIKE '%' || $1 || '%'
		ORDER BY (title ILIKE $1 || '%') DESC, title
		LIMIT $2
	`

	rows, err := s.conn.QueryContext(ctx, query, term, limit)
	if err != nil {
		return nil, fmt.Errorf("search albums %q: %w", term, err)
	}

	defer func() {
		_ = rows.Close()
	}()

	var albums []Album

	for rows.Next() {
		var a Album
		if err := rows.Scan(&a.ID, &a.ArtistID, &a.Title, &a.ReleaseYear, &a.CoverPath, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan album: %w", err)
		}

		albums = append(albums, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate albums: %w", err)
	}

	return albums, nil
}

// UpsertDailyStats writes one day of aggregate totals, replacing any
// existing row for the same date. Reruns of the aggregate step converge on
// the latest computation.
func (s *Store) UpsertDailyStats(ctx context.Context, stats *DailyTrackStats) error {
	query := `
		INSERT INTO etl.daily_track_stats
			(date_key, total_plays, unique_users, unique_tracks, total_listen_ms, computed_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (date_key) DO UPDATE SET
			total_plays     = EXCLUDED.total_plays,
			unique_users    = EXCLUDED.unique_users,
			unique_tracks   = EXCLUDED.unique_tracks,
			total_listen_ms = EXCLUDED.total_listen_ms,
			computed_at     = NOW()
	`

	_, err := s.conn.ExecContext(ctx, query,
		stats.DateKey, stats.TotalPlays, stats.UniqueUsers,
		stats.UniqueTracks, stats.TotalListenMs,
	)
	if err != nil {
		return fmt.Errorf("upsert daily stats for %s: %w", stats.DateKey.Format("2006-01-02"), err)
	}

	return nil
}

// DailyStats reads aggregate rows for the trailing window, oldest first.
func (s *Store) DailyStats(ctx context.Context, since time.Time) ([]DailyTrackStats, error) {
	query := `
		SELECT date_key, total_plays, unique_users, unique_tracks, total_listen_ms, computed_at
		FROM etl.daily_track_stats
		WHERE date_key >= $1
		ORDER BY date_key
	`

	rows, err := s.conn.QueryContext(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("fetch daily stats: %w", err)
	}

	defer func() {
		_ = rows.Close()
	}()

	var stats []DailyTrackStats

	for rows.Next() {
		var d DailyTrackStats
		if err := rows.Scan(&d.DateKey, &d.TotalPlays, &d.UniqueUsers, &d.UniqueTracks, &d.TotalListenMs, &d.ComputedAt); err != nil {
			return nil, fmt.Errorf("scan daily stats: %w", err)
		}

		stats = append(stats, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate daily stats: %w", err)
	}

	return stats, nil
}

const trackSelect = `
	SELECT t.id, t.title, t.artist_id, COALESCE(t.album_id, 0),
		COALESCE(t.genre, ''), t.duration_sec, t.storage_path, t.file_size,
		t.format, COALESCE(t.bitrate, 0), t.created_at, t.updated_at
	FROM tracks t`

func int64IDs(ids []uint32) []int64 {
	out := make([]int64, len(ids))
	for i, id := range ids {
		out[i] = int64(id)
	}

	return out
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrack(row rowScanner) (*Track, error) {
	var t Track

	err := row.Scan(
		&t.ID, &t.Title, &t.ArtistID, &t.AlbumID, &t.Genre, &t.DurationSec,
		&t.StoragePath, &t.FileSize, &t.Format, &t.Bitrate, &t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &t, nil
}
