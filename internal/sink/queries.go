package sink

import (
	"context"
	"fmt"
	"time"
)

// TrackStats aggregates play behavior for a single track over a window.
type TrackStats struct {
	TotalPlays    uint64  `ch:"total_plays"`
	UniqueUsers   uint64  `ch:"unique_users"`
	AvgCompletion float64 `ch:"avg_completion"`
	TotalSkips    uint64  `ch:"total_skips"`
	TotalLikes    uint64  `ch:"total_likes"`
}

// HourlyBucket is one hour of play counts.
type HourlyBucket struct {
	Hour  time.Time `ch:"hour"`
	Plays uint64    `ch:"plays"`
}

// DailyBucket is one day of play counts.
type DailyBucket struct {
	Day   time.Time `ch:"day"`
	Plays uint64    `ch:"plays"`
}

// UserStats summarizes a listener's activity over a window.
type UserStats struct {
	TotalPlays     uint64  `ch:"total_plays"`
	UniqueTracks   uint64  `ch:"unique_tracks"`
	UniqueArtists  uint64  `ch:"unique_artists"`
	TotalListenMs  uint64  `ch:"total_listen_ms"`
	AvgCompletion  float64 `ch:"avg_completion"`
	SearchesIssued uint64  `ch:"searches_issued"`
}

// ArtistPlayCount ranks an artist by plays for a listener.
type ArtistPlayCount struct {
	ArtistID uint32 `ch:"artist_id"`
	Plays    uint64 `ch:"plays"`
}

// TrackPlayCount ranks a track by plays.
type TrackPlayCount struct {
	TrackID     uint32 `ch:"track_id"`
	Plays       uint64 `ch:"plays"`
	UniqueUsers uint64 `ch:"unique_users"`
}

// TrendingTrack carries the velocity score used for trending ranking:
// recent plays weighted against the track's trailing baseline.
type TrendingTrack struct {
	TrackID     uint32  `ch:"track_id"`
	RecentPlays uint64  `ch:"recent_plays"`
	Velocity    float64 `ch:"velocity"`
}

// PlatformStats buckets request traffic by client platform.
type PlatformStats struct {
	Platform     string  `ch:"platform"`
	Requests     uint64  `ch:"requests"`
	AvgLatencyMs float64 `ch:"avg_latency_ms"`
	ErrorRate    float64 `ch:"error_rate"`
}

// DailyActivity is one day of platform-wide listening totals, the read model
// behind the daily aggregate reconciliation step.
type DailyActivity struct {
	Day           time.Time `ch:"day"`
	TotalPlays    uint64    `ch:"total_plays"`
	UniqueUsers   uint64    `ch:"unique_users"`
	UniqueTracks  uint64    `ch:"unique_tracks"`
	TotalListenMs uint64    `ch:"total_listen_ms"`
}

// TrackStats returns aggregate play metrics for a track over the trailing
// window. Days must be positive.
func (c *Client) TrackStats(ctx context.Context, trackID uint32, days int) (*TrackStats, error) {
	if !c.healthy.Load() {
		return nil, ErrSinkUnavailable
	}

	query := fmt.Sprintf(`
		SELECT
			countIf(action = 'play')                    AS total_plays,
			uniqExactIf(user_id, action = 'play')       AS unique_users,
			avgIf(completion, action = 'play')          AS avg_completion,
			countIf(action = 'skip')                    AS total_skips,
			countIf(action = 'like')                    AS total_likes
		FROM %s
		WHERE track_id = ? AND event_date >= today() - ?`,
		c.table(TableTrackAnalytics))

	var rows []TrackStats
	if err := c.conn.Select(ctx, &rows, query, trackID, days); err != nil {
		return nil, fmt.Errorf("track stats query: %w", err)
	}

	if len(rows) == 0 {
		return &TrackStats{}, nil
	}

	return &rows[0], nil
}

// PlaysByHour returns hourly play counts for a track over the trailing window.
func (c *Client) PlaysByHour(ctx context.Context, trackID uint32, days int) ([]HourlyBucket, error) {
	if !c.healthy.Load() {
		return nil, ErrSinkUnavailable
	}

	query := fmt.Sprintf(`
		SELECT toStartOfHour(timestamp) AS hour, count() AS plays
		FROM %s
		WHERE track_id = ? AND action = 'play' AND event_date >= today() - ?
		GROUP BY hour
		ORDER BY hour`,
		c.table(TableTrackAnalytics))

	var rows []HourlyBucket
	if err := c.conn.Select(ctx, &rows, query, trackID, days); err != nil {
		return nil, fmt.Errorf("hourly plays query: %w", err)
	}

	return rows, nil
}

// PlaysByDay returns daily play counts for a track over the trailing window.
func (c *Client) PlaysByDay(ctx context.Context, trackID uint32, days int) ([]DailyBucket, error) {
	if !c.healthy.Load() {
		return nil, ErrSinkUnavailable
	}

	query := fmt.Sprintf(`
		SELECT event_date AS day, count() AS plays
		FROM %s
		WHERE track_id = ? AND action = 'play' AND event_date >= today() - ?
		GROUP BY day
		ORDER BY day`,
		c.table(TableTrackAnalytics))

	var rows []DailyBucket
	if err := c.conn.Select(ctx, &rows, query, trackID, days); err != nil {
		return nil, fmt.Errorf("daily plays query: %w", err)
	}

	return rows, nil
}

// UserStats returns a listener's aggregate activity over the trailing window.
func (c *Client) UserStats(ctx context.Context, userID uint32, days int) (*UserStats, error) {
	if !c.healthy.Load() {
		return nil, ErrSinkUnavailable
	}

	query := fmt.Sprintf(`
		SELECT
			countIf(action = 'play')                      AS total_plays,
			uniqExactIf(track_id, action = 'play')        AS unique_tracks,
			uniqExactIf(artist_id, action = 'play')       AS unique_artists,
			toUInt64(sumIf(duration_ms, action = 'play' AND duration_ms > 0)) AS total_listen_ms,
			avgIf(completion, action = 'play')            AS avg_completion,
			(SELECT count() FROM %s
			 WHERE user_id = ? AND event_date >= today() - ?) AS searches_issued
		FROM %s
		WHERE user_id = ? AND event_date >= today() - ?`,
		c.table(TableSearchAnalytics), c.table(TableTrackAnalytics))

	var rows []UserStats
	if err := c.conn.Select(ctx, &rows, query, userID, days, userID, days); err != nil {
		return nil, fmt.Errorf("user stats query: %w", err)
	}

	if len(rows) == 0 {
		return &UserStats{}, nil
	}

	return &rows[0], nil
}

// TopArtistsForUser returns a listener's most-played artists, descending.
func (c *Client) TopArtistsForUser(ctx context.Context, userID uint32, days, limit int) ([]ArtistPlayCount, error) {
	if !c.healthy.Load() {
		return nil, ErrSinkUnavailable
	}

	query := fmt.Sprintf(`
		SELECT artist_id, count() AS plays
		FROM %s
		WHERE user_id = ? AND action = 'play' AND artist_id > 0
			AND event_date >= today() - ?
		GROUP BY artist_id
		ORDER BY plays DESC
		LIMIT ?`,
		c.table(TableTrackAnalytics))

	var rows []ArtistPlayCount
	if err := c.conn.Select(ctx, &rows, query, userID, days, limit); err != nil {
		return nil, fmt.Errorf("top artists query: %w", err)
	}

	return rows, nil
}

// TopTracks returns the platform-wide most-played tracks over the window.
func (c *Client) TopTracks(ctx context.Context, days, limit int) ([]TrackPlayCount, error) {
	if !c.healthy.Load() {
		return nil, ErrSinkUnavailable
	}

	query := fmt.Sprintf(`
		SELECT track_id, count() AS plays, uniqExact(user_id) AS unique_users
		FROM %s
		WHERE action = 'play' AND event_date >= today() - ?
		GROUP BY track_id
		ORDER BY plays DESC
		LIMIT ?`,
		c.table(TableTrackAnalytics))

	var rows []TrackPlayCount
	if err := c.conn.Select(ctx, &rows, query, days, limit); err != nil {
		return nil, fmt.Errorf("top tracks query: %w", err)
	}

	return rows, nil
}

// TrendingTracks ranks tracks by play velocity: recent-window plays divided
// by the daily average of the trailing baseline window. New tracks with no
// baseline get a neutral denominator of 1.
func (c *Client) TrendingTracks(ctx context.Context, recentDays, baselineDays, limit int) ([]TrendingTrack, error) {
	if !c.healthy.Load() {
		return nil, ErrSinkUnavailable
	}

	query := fmt.Sprintf(`
		SELECT
			track_id,
			countIf(event_date >= today() - ?) AS recent_plays,
			recent_plays / greatest(
				countIf(event_date < today() - ?) / ?, 1
			) AS velocity
		FROM %s
		WHERE action = 'play' AND event_date >= today() - ?
		GROUP BY track_id
		HAVING recent_plays > 0
		ORDER BY velocity DESC, recent_plays DESC
		LIMIT ?`,
		c.table(TableTrackAnalytics))

	var rows []TrendingTrack
	err := c.conn.Select(ctx, &rows, query,
		recentDays, recentDays, baselineDays, recentDays+baselineDays, limit)
	if err != nil {
		return nil, fmt.Errorf("trending tracks query: %w", err)
	}

	return rows, nil
}

// PlatformStats buckets API traffic by platform over the trailing window.
func (c *Client) PlatformStats(ctx context.Context, days int) ([]PlatformStats, error) {
	if !c.healthy.Load() {
		return nil, ErrSinkUnavailable
	}

	query := fmt.Sprintf(`
		SELECT
			platform,
			count()                               AS requests,
			avg(response_time_ms)                 AS avg_latency_ms,
			countIf(status_code >= 500) / count() AS error_rate
		FROM %s
		WHERE event_date >= today() - ?
		GROUP BY platform
		ORDER BY requests DESC`,
		c.table(TableAPIRequests))

	var rows []PlatformStats
	if err := c.conn.Select(ctx, &rows, query, days); err != nil {
		return nil, fmt.Errorf("platform stats query: %w", err)
	}

	return rows, nil
}

// DailyActivity returns per-day listening totals for the trailing window,
// oldest first. The reconciliation pipeline folds these into the relational
// daily aggregate table.
func (c *Client) DailyActivity(ctx context.Context, days int) ([]DailyActivity, error) {
	if !c.healthy.Load() {
		return nil, ErrSinkUnavailable
	}

	query := fmt.Sprintf(`
		SELECT
			event_date                       AS day,
			countIf(action = 'play')         AS total_plays,
			uniqExact(user_id)               AS unique_users,
			uniqExact(track_id)              AS unique_tracks,
			toUInt64(sumIf(duration_ms, action = 'play' AND duration_ms > 0)) AS total_listen_ms
		FROM %s
		WHERE event_date >= today() - ?
		GROUP BY day
		ORDER BY day`,
		c.table(TableTrackAnalytics))

	var rows []DailyActivity
	if err := c.conn.Select(ctx, &rows, query, days); err != nil {
		return nil, fmt.Errorf("daily activity query: %w", err)
	}

	return rows, nil
}

// TrackEventsSince returns raw track events newer than the cutoff, capped at
// limit. Used by the quality pass of the reconciliation pipeline.
func (c *Client) TrackEventsSince(ctx context.Context, since time.Time, limit int) ([]TrackEvent, error) {
	if !c.healthy.Load() {
		return nil, ErrSinkUnavailable
	}

	query := fmt.Sprintf(`
		SELECT event_id, timestamp, track_id, artist_id, album_id, genre_id,
			user_id, action, duration_ms, completion, platform, device_type,
			session_id
		FROM %s
		WHERE timestamp >= ?
		ORDER BY timestamp
		LIMIT ?`,
		c.table(TableTrackAnalytics))

	var rows []TrackEvent
	if err := c.conn.Select(ctx, &rows, query, since, limit); err != nil {
		return nil, fmt.Errorf("track events query: %w", err)
	}

	return rows, nil
}

// PruneBefore deletes fact rows older than the cutoff from every fact table.
// Partition-level mutations are asynchronous on the server side; this issues
// the deletes and returns the number of tables touched.
func (c *Client) PruneBefore(ctx context.Context, cutoff time.Time) (int, error) {
	if !c.healthy.Load() {
		return 0, ErrSinkUnavailable
	}

	tables := []string{
		TableAPIRequests, TableTrackAnalytics, TableSearchAnalytics,
		TableUserAnalytics, TableArtistAnalytics,
	}

	pruned := 0

	for _, name := range tables {
		stmt := fmt.Sprintf("ALTER TABLE %s DELETE WHERE event_date < ?", c.table(name))
		if err := c.conn.Exec(ctx, stmt, cutoff); err != nil {
			return pruned, fmt.Errorf("prune %s: %w", name, err)
		}

		pruned++
	}

	return pruned, nil
}
