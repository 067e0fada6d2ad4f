package pipeline

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

	"github.com/jonquils-io/jonquils/internal/catalog"
)

func setupTestDatabase(ctx context.Context, t *testing.T) (*pgcontainer.PostgresContainer, *catalog.Connection) {
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

	conn, err := catalog.NewConnection(catalog.NewConfig(connStr))
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

func runTestMigrations(db *sql.DB) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return err
	}

	m, err := migrate.NewWithDatabaseInstance("file://../../migrations", "postgres", driver)
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}

	return nil
}

func TestRegistryDiscoveryLifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	container, conn := setupTestDatabase(ctx, t)

	defer func() {
		_ = conn.Close()
		_ = container.Terminate(ctx)
	}()

	registry := NewRegistry(conn)

	// First sighting registers the file as discovered.
	pending, err := registry.RecordDiscovery(ctx, "tracks", "1/a.mp3", "etag-1", 1024)
	if err != nil {
		t.Fatalf("RecordDiscovery() error = %v", err)
	}

	if !pending {
		t.Fatal("RecordDiscovery() = false for a new file, want true")
	}

	records, err := registry.ListByStatus(ctx, StatusDiscovered, 10)
	if err != nil {
		t.Fatalf("ListByStatus() error = %v", err)
	}

	if len(records) != 1 {
		t.Fatalf("ListByStatus(discovered) = %d rows, want 1", len(records))
	}

	id := records[0].ID

	if err := registry.MarkStaged(ctx, id); err != nil {
		t.Fatalf("MarkStaged() error = %v", err)
	}

	if err := registry.MarkProcessed(ctx, id); err != nil {
		t.Fatalf("MarkProcessed() error = %v", err)
	}

	// Rediscovery with the same etag leaves the processed state alone.
	pending, err = registry.RecordDiscovery(ctx, "tracks", "1/a.mp3", "etag-1", 1024)
	if err != nil {
		t.Fatalf("RecordDiscovery() rerun error = %v", err)
	}

	if pending {
		t.Error("RecordDiscovery() = true for an unchanged processed file, want false")
	}

	// A changed etag resets the file for re-processing.
	pending, err = registry.RecordDiscovery(ctx, "tracks", "1/a.mp3", "etag-2", 2048)
	if err != nil {
		t.Fatalf("RecordDiscovery() changed-etag error = %v", err)
	}

	if !pending {
		t.Error("RecordDiscovery() = false for a changed file, want true")
	}
}

func TestRegistryMarkFailedRecordsCause(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	container, conn := setupTestDatabase(ctx, t)

	defer func() {
		_ = conn.Close()
		_ = container.Terminate(ctx)
	}()

	registry := NewRegistry(conn)

	if _, err := registry.RecordDiscovery(ctx, "tracks", "bad.wav", "etag", 10); err != nil {
		t.Fatalf("RecordDiscovery() error = %v", err)
	}

	records, err := registry.ListByStatus(ctx, StatusDiscovered, 1)
	if err != nil || len(records) != 1 {
		t.Fatalf("ListByStatus() = (%v, %v)", records, err)
	}

	if err := registry.MarkFailed(ctx, records[0].ID, ErrUnsupportedFormat); err != nil {
		t.Fatalf("MarkFailed() error = %v", err)
	}

	failed, err := registry.ListByStatus(ctx, StatusFailed, 1)
	if err != nil || len(failed) != 1 {
		t.Fatalf("ListByStatus(failed) = (%v, %v)", failed, err)
	}

	if failed[0].ErrorMessage != ErrUnsupportedFormat.Error() {
		t.Errorf("ErrorMessage = %q, want %q", failed[0].ErrorMessage, ErrUnsupportedFormat.Error())
	}

	if err := registry.MarkStaged(ctx, 999999); !errors.Is(err, ErrFileNotRegistered) {
		t.Errorf("MarkStaged(unknown) error = %v, want ErrFileNotRegistered", err)
	}
}
