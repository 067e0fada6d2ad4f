package sink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"

	"github.com/jonquils-io/jonquils/internal/config"
)

// ErrSinkUnavailable is returned by read-side queries while the sink is in
// degraded mode (no connection could be established).
var ErrSinkUnavailable = errors.New("analytics sink unavailable")

// insertTimeout bounds a single fact-row append so a stalled sink cannot pin
// dispatcher workers indefinitely.
const insertTimeout = 10 * time.Second

// Conn is the subset of the ClickHouse driver connection used by the client.
// clickhouse-go's driver.Conn satisfies it; tests inject fakes.
type Conn interface {
	Exec(ctx context.Context, query string, args ...any) error
	Select(ctx context.Context, dest any, query string, args ...any) error
	Ping(ctx context.Context) error
	Close() error
}

// Client wraps a ClickHouse connection and owns schema bootstrap plus
// low-level insert/query execution for the fact tables.
//
// The connection is established once at construction. If the sink is
// unreachable at that point the client enters degraded mode: Bootstrap and
// Insert become logged no-ops and queries return ErrSinkUnavailable. The
// host process keeps serving; telemetry is best-effort, not transactional.
type Client struct {
	conn    Conn
	cfg     *Config
	logger  *slog.Logger
	healthy atomic.Bool
	dropped atomic.Uint64
}

// NewClient dials the analytics store and returns a client. A dial or ping
// failure is logged once and yields a degraded (no-op) client rather than an
// error: sink unavailability must never prevent the host process from
// serving other traffic.
func NewClient(cfg *Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client := &Client{
		cfg: cfg,
		logger: slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: config.GetEnvLogLevel("LOG_LEVEL", slog.LevelInfo),
		})),
	}

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: cfg.Addr,
		Auth: clickhouse.Auth{
			Database: "default",
			Username: cfg.Username,
			Password: cfg.password,
		},
		DialTimeout:  cfg.DialTimeout,
		MaxOpenConns: cfg.MaxOpenConns,
		MaxIdleConns: cfg.MaxIdleConns,
		Compression:  &clickhouse.Compression{Method: clickhouse.CompressionLZ4},
	})
	if err == nil {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
		err = conn.Ping(ctx)

		cancel()
	}

	if err != nil {
		client.logger.Error("analytics sink unreachable, entering degraded mode",
			slog.Any("addr", cfg.Addr),
			slog.String("error", err.Error()),
		)

		return client, nil
	}

	client.conn = conn
	client.healthy.Store(true)

	client.logger.Info("analytics sink connected",
		slog.Any("addr", cfg.Addr),
		slog.String("database", cfg.Database),
	)

	return client, nil
}

// NewClientWithConn builds a client over an existing connection. Used by
// tests and by integration wiring that manages the connection itself.
func NewClientWithConn(conn Conn, cfg *Config, logger *slog.Logger) *Client {
	client := &Client{conn: conn, cfg: cfg, logger: logger}
	client.healthy.Store(conn != nil)

	return client
}

// Healthy reports whether the sink connection is usable. A degraded client
// never recovers within a process lifetime; restart re-dials.
func (c *Client) Healthy() bool {
	return c.healthy.Load()
}

// Dropped returns the number of events discarded because the sink was
// degraded or an insert failed.
func (c *Client) Dropped() uint64 {
	return c.dropped.Load()
}

// Close releases the underlying connection. Safe on a degraded client.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}

	return c.conn.Close()
}

// Bootstrap idempotently ensures the analytics database and all fact tables
// exist. Safe to call on every startup. Failure is non-fatal: it logs,
// flips the client into degraded mode, and returns false.
func (c *Client) Bootstrap(ctx context.Context) bool {
	if !c.healthy.Load() {
		c.logger.Warn("skipping analytics schema bootstrap, sink degraded")

		return false
	}

	statements := append(
		[]string{fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", c.cfg.Database)},
		factTableDDL(c.cfg.Database)...,
	)

	for _, stmt := range statements {
		if err := c.conn.Exec(ctx, stmt); err != nil {
			c.logger.Error("analytics schema bootstrap failed, entering degraded mode",
				slog.String("error", err.Error()),
			)
			c.healthy.Store(false)

			return false
		}
	}

	c.logger.Info("analytics schema bootstrap complete",
		slog.String("database", c.cfg.Database),
		slog.Int("fact_tables", len(statements)-1),
	)

	return true
}

// Insert appends one fact row. It never raises to the caller: transient
// connectivity failure is logged and reported as false. Events are
// at-most-once; a failed insert is not retried.
func (c *Client) Insert(ctx context.Context, event Event) bool {
	if !c.healthy.Load() {
		c.dropped.Add(1)

		return false
	}

	ctx, cancel := context.WithTimeout(ctx, insertTimeout)
	defer cancel()

	query, args, err := c.insertStatement(event)
	if err != nil {
		c.dropped.Add(1)
		c.logger.Error("unsupported telemetry event",
			slog.String("error", err.Error()),
		)

		return false
	}

	if err := c.conn.Exec(ctx, query, args...); err != nil {
		c.dropped.Add(1)
		c.logger.Warn("telemetry insert failed, event dropped",
			slog.String("table", event.FactTable()),
			slog.String("error", err.Error()),
		)

		return false
	}

	return true
}

// insertStatement builds the parameterized single-row INSERT for an event.
func (c *Client) insertStatement(event Event) (string, []any, error) {
	table := c.table(event.FactTable())

	switch e := event.(type) {
	case APIRequestEvent:
		return fmt.Sprintf(`INSERT INTO %s
			(event_id, timestamp, method, path, status_code, response_time_ms,
			 user_id, request_size, response_size, ip_address, user_agent,
			 platform, error_message)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, table),
			[]any{
				e.EventID, e.Timestamp, e.Method, e.Path, e.StatusCode,
				e.ResponseTimeMs, e.UserID, e.RequestSize, e.ResponseSize,
				e.IPAddress, e.UserAgent, e.Platform, e.ErrorMessage,
			}, nil
	case TrackEvent:
		return fmt.Sprintf(`INSERT INTO %s
			(event_id, timestamp, track_id, artist_id, album_id, genre_id,
			 user_id, action, duration_ms, completion, platform, device_type,
			 session_id)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, table),
			[]any{
				e.EventID, e.Timestamp, e.TrackID, e.ArtistID, e.AlbumID,
				e.GenreID, e.UserID, e.Action, e.DurationMs, e.Completion,
				e.Platform, e.DeviceType, e.SessionID,
			}, nil
	case SearchEvent:
		return fmt.Sprintf(`INSERT INTO %s
			(event_id, timestamp, user_id, query, results_count, search_type,
			 clicked_track_id, session_id)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, table),
			[]any{
				e.EventID, e.Timestamp, e.UserID, e.Query, e.ResultsCount,
				e.SearchType, e.ClickedTrackID, e.SessionID,
			}, nil
	case UserEvent:
		return fmt.Sprintf(`INSERT INTO %s
			(event_id, timestamp, user_id, action, platform, metadata)
			VALUES (?, ?, ?, ?, ?, ?)`, table),
			[]any{e.EventID, e.Timestamp, e.UserID, e.Action, e.Platform, e.Metadata}, nil
	case ArtistEvent:
		return fmt.Sprintf(`INSERT INTO %s
			(event_id, timestamp, artist_id, action, user_id)
			VALUES (?, ?, ?, ?, ?)`, table),
			[]any{e.EventID, e.Timestamp, e.ArtistID, e.Action, e.UserID}, nil
	default:
		return "", nil, fmt.Errorf("no fact table mapping for %T", event)
	}
}

// table qualifies a fact table name with the analytics database.
func (c *Client) table(name string) string {
	return c.cfg.Database + "." + name
}
