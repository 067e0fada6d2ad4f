package catalog

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/testcontainers/testcontainers-go"
	pgcontainer "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupTestDatabase creates a PostgreSQL testcontainer and runs migrations.
func setupTestDatabase(ctx context.Context, t *testing.T) (*pgcontainer.PostgresContainer, *Connection) {
	t.Helper()

	postgresContainer, err := pgcontainer.Run(ctx,
		"postgres:16-alpine",
		pgcontainer.WithDatabase("jonquils_test"),
		pgcontainer.WithUsername("test"),
		pgcontainer.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(120*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	connStr, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}

	conn, err := NewConnection(NewConfig(connStr))
	if err != nil {
		_ = postgresContainer.Terminate(ctx)

		t.Fatalf("failed to connect to test database: %v", err)
	}

	if err := runTestMigrations(conn.DB()); err != nil {
		_ = conn.Close()
		_ = postgresContainer.Terminate(ctx)

		t.Fatalf("failed to run test migrations: %v", err)
	}

	return postgresContainer, conn
}

// runTestMigrations applies all migrations from the migrations directory.
func runTestMigrations(db *sql.DB) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return err
	}

	m, err := migrate.NewWithDatabaseInstance(
		"file://../../migrations", // Relative path from internal/catalog to project root migrations/
		"postgres",
		driver,
	)
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}

	return nil
}

func TestStoreUpsertIdempotency(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	container, conn := setupTestDatabase(ctx, t)

	defer func() {
		_ = conn.Close()
		_ = container.Terminate(ctx)
	}()

	store := NewStore(conn)

	artistID, err := store.UpsertArtist(ctx, &Artist{Name: "Miles Davis"})
	if err != nil {
		t.Fatalf("UpsertArtist() error = %v", err)
	}

	// Same name converges on the same row and backfills the bio.
	artistID2, err := store.UpsertArtist(ctx, &Artist{Name: "Miles Davis", Bio: "Trumpeter and bandleader"})
	if err != nil {
		t.Fatalf("UpsertArtist() second call error = %v", err)
	}

	if artistID != artistID2 {
		t.Fatalf("UpsertArtist() returned %d then %d for the same name", artistID, artistID2)
	}

	albumID, err := store.UpsertAlbum(ctx, &Album{ArtistID: artistID, Title: "Kind of Blue", ReleaseYear: 1959})
	if err != nil {
		t.Fatalf("UpsertAlbum() error = %v", err)
	}

	track := &Track{
		Title:       "So What",
		ArtistID:    artistID,
		AlbumID:     albumID,
		Genre:       "jazz",
		DurationSec: 562,
		StoragePath: "tracks/1/so-what.flac",
		FileSize:    48123456,
		Format:      "flac",
		Bitrate:     1411,
	}

	trackID, err := store.UpsertTrack(ctx, track)
	if err != nil {
		t.Fatalf("UpsertTrack() error = %v", err)
	}

	// Re-promoting the same object updates in place.
	track.Title = "So What (Remastered)"

	trackID2, err := store.UpsertTrack(ctx, track)
	if err != nil {
		t.Fatalf("UpsertTrack() second call error = %v", err)
	}

	if trackID != trackID2 {
		t.Fatalf("UpsertTrack() returned %d then %d for the same storage path", trackID, trackID2)
	}

	got, err := store.TrackByID(ctx, trackID)
	if err != nil {
		t.Fatalf("TrackByID() error = %v", err)
	}

	if got.Title != "So What (Remastered)" {
		t.Errorf("TrackByID() title = %q, want updated title", got.Title)
	}
}

func TestStoreOrderedLookups(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	container, conn := setupTestDatabase(ctx, t)

	defer func() {
		_ = conn.Close()
		_ = container.Terminate(ctx)
	}()

	store := NewStore(conn)

	artistID, err := store.UpsertArtist(ctx, &Artist{Name: "John Coltrane"})
	if err != nil {
		t.Fatalf("UpsertArtist() error = %v", err)
	}

	var trackIDs []uint32

	for _, title := range []string{"Giant Steps", "Naima", "Countdown"} {
		id, err := store.UpsertTrack(ctx, &Track{
			Title:       title,
			ArtistID:    artistID,
			DurationSec: 300,
			StoragePath: "tracks/2/" + title,
			Format:      "mp3",
		})
		if err != nil {
			t.Fatalf("UpsertTrack(%q) error = %v", title, err)
		}

		trackIDs = append(trackIDs, id)
	}

	// Request in reverse rank order; response must preserve it and skip
	// the unknown ID.
	want := []uint32{trackIDs[2], trackIDs[0], trackIDs[1]}
	request := append([]uint32{want[0], 999999}, want[1], want[2])

	tracks, err := store.TracksByIDs(ctx, request)
	if err != nil {
		t.Fatalf("TracksByIDs() error = %v", err)
	}

	if len(tracks) != 3 {
		t.Fatalf("TracksByIDs() returned %d tracks, want 3", len(tracks))
	}

	for i, id := range want {
		if tracks[i].ID != id {
			t.Errorf("TracksByIDs()[%d].ID = %d, want %d (order must follow the request)", i, tracks[i].ID, id)
		}
	}
}

func TestStoreRelationalSearch(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	container, conn := setupTestDatabase(ctx, t)

	defer func() {
		_ = conn.Close()
		_ = container.Terminate(ctx)
	}()

	store := NewStore(conn)

	artistID, err := store.UpsertArtist(ctx, &Artist{Name: "Thelonious Monk"})
	if err != nil {
		t.Fatalf("UpsertArtist() error = %v", err)
	}

	for _, title := range []string{"Round Midnight", "Blue Monk", "Straight, No Chaser"} {
		if _, err := store.UpsertTrack(ctx, &Track{
			Title:       title,
			ArtistID:    artistID,
			DurationSec: 240,
			StoragePath: "tracks/3/" + title,
			Format:      "mp3",
		}); err != nil {
			t.Fatalf("UpsertTrack(%q) error = %v", title, err)
		}
	}

	// A title match and an artist-name match both surface.
	tracks, err := store.SearchTracks(ctx, "monk", 10)
	if err != nil {
		t.Fatalf("SearchTracks() error = %v", err)
	}

	if len(tracks) != 3 {
		t.Errorf("SearchTracks(monk) returned %d tracks, want 3 (artist-name matches included)", len(tracks))
	}

	artists, err := store.SearchArtists(ctx, "thelonious", 10)
	if err != nil {
		t.Fatalf("SearchArtists() error = %v", err)
	}

	if len(artists) != 1 || artists[0].Name != "Thelonious Monk" {
		t.Errorf("SearchArtists(thelonious) = %v, want Thelonious Monk", artists)
	}

	if tracks, err := store.SearchTracks(ctx, "  ", 10); err != nil || tracks != nil {
		t.Errorf("SearchTracks(blank) = (%v, %v), want (nil, nil)", tracks, err)
	}
}

func TestStoreDailyStatsUpsert(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	container, conn := setupTestDatabase(ctx, t)

	defer func() {
		_ = conn.Close()
		_ = container.Terminate(ctx)
	}()

	store := NewStore(conn)

	day := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)

	if err := store.UpsertDailyStats(ctx, &DailyTrackStats{
		DateKey:     day,
		TotalPlays:  100,
		UniqueUsers: 10,
	}); err != nil {
		t.Fatalf("UpsertDailyStats() error = %v", err)
	}

	// Rerun with corrected totals replaces the row.
	if err := store.UpsertDailyStats(ctx, &DailyTrackStats{
		DateKey:       day,
		TotalPlays:    120,
		UniqueUsers:   12,
		UniqueTracks:  40,
		TotalListenMs: 21600000,
	}); err != nil {
		t.Fatalf("UpsertDailyStats() rerun error = %v", err)
	}

	stats, err := store.DailyStats(ctx, day.AddDate(0, 0, -1))
	if err != nil {
		t.Fatalf("DailyStats() error = %v", err)
	}

	if len(stats) != 1 {
		t.Fatalf("DailyStats() returned %d rows, want 1", len(stats))
	}

	if stats[0].TotalPlays != 120 || stats[0].UniqueUsers != 12 {
		t.Errorf("DailyStats() = %+v, want the rerun totals", stats[0])
	}
}
