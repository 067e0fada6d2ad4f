package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/jonquils-io/jonquils/internal/api/middleware"
	"github.com/jonquils-io/jonquils/internal/sink"
)

// API response envelopes for the analytics read endpoints. These are
// separate from the sink's result structs to decouple the HTTP contract
// from the columnar read models.
type (
	// TrackStatsResponse summarizes play behavior for one track.
	TrackStatsResponse struct {
		TrackID       uint32            `json:"trackId"`
		WindowDays    int               `json:"windowDays"`
		TotalPlays    uint64            `json:"totalPlays"`
		UniqueUsers   uint64            `json:"uniqueUsers"`
		AvgCompletion float64           `json:"avgCompletion"`
		TotalSkips    uint64            `json:"totalSkips"`
		TotalLikes    uint64            `json:"totalLikes"`
		DailyPlays    []DailyPlayCount  `json:"dailyPlays,omitempty"`
		HourlyPlays   []HourlyPlayCount `json:"hourlyPlays,omitempty"`
	}

	// DailyPlayCount is one day of plays.
	DailyPlayCount struct {
		Day   string `json:"day"`
		Plays uint64 `json:"plays"`
	}

	// HourlyPlayCount is one hour of plays.
	HourlyPlayCount struct {
		Hour  string `json:"hour"`
		Plays uint64 `json:"plays"`
	}

	// UserStatsResponse summarizes a listener's activity.
	UserStatsResponse struct {
		UserID         uint32           `json:"userId"`
		WindowDays     int              `json:"windowDays"`
		TotalPlays     uint64           `json:"totalPlays"`
		UniqueTracks   uint64           `json:"uniqueTracks"`
		UniqueArtists  uint64           `json:"uniqueArtists"`
		TotalListenMs  uint64           `json:"totalListenMs"`
		AvgCompletion  float64          `json:"avgCompletion"`
		SearchesIssued uint64           `json:"searchesIssued"`
		TopArtists     []ArtistRanking  `json:"topArtists"`
	}

	// ArtistRanking ranks an artist by plays.
	ArtistRanking struct {
		ArtistID uint32 `json:"artistId"`
		Plays    uint64 `json:"plays"`
	}

	// TrackRanking ranks a track by plays.
	TrackRanking struct {
		TrackID     uint32 `json:"trackId"`
		Plays       uint64 `json:"plays"`
		UniqueUsers uint64 `json:"uniqueUsers"`
	}

	// TrendingEntry ranks a track by play velocity against its baseline.
	TrendingEntry struct {
		TrackID     uint32  `json:"trackId"`
		RecentPlays uint64  `json:"recentPlays"`
		Velocity    float64 `json:"velocity"`
	}

	// PlatformBucket is request traffic for one client platform.
	PlatformBucket struct {
		Platform     string  `json:"platform"`
		Requests     uint64  `json:"requests"`
		AvgLatencyMs float64 `json:"avgLatencyMs"`
		ErrorRate    float64 `json:"errorRate"`
	}
)

// handleTrackStats serves GET /api/v1/analytics/tracks/{id}.
//
// Query parameters:
//   - days: trailing window in days (default 30, max 365)
//   - granularity: "day" (default) or "hour" for the play count buckets
func (s *Server) handleTrackStats(w http.ResponseWriter, r *http.Request) {
	trackID, ok := pathID(r)
	if !ok {
		WriteErrorResponse(w, r, s.logger, BadRequest("track id must be a positive integer"))

		return
	}

	days := queryInt(r, "days", defaultWindowDays, maxWindowDays)

	granularity := r.URL.Query().Get("granularity")
	if granularity != "" && granularity != "day" && granularity != "hour" {
		WriteErrorResponse(w, r, s.logger, BadRequest("granularity must be \"day\" or \"hour\""))

		return
	}

	stats, err := s.deps.Analytics.TrackStats(r.Context(), trackID, days)
	if err != nil {
		s.writeAnalyticsError(w, r, "track stats", err)

		return
	}

	resp := TrackStatsResponse{
		TrackID:       trackID,
		WindowDays:    days,
		TotalPlays:    stats.TotalPlays,
		UniqueUsers:   stats.UniqueUsers,
		AvgCompletion: stats.AvgCompletion,
		TotalSkips:    stats.TotalSkips,
		TotalLikes:    stats.TotalLikes,
	}

	if granularity == "hour" {
		hourly, err := s.deps.Analytics.PlaysByHour(r.Context(), trackID, days)
		if err != nil {
			s.writeAnalyticsError(w, r, "hourly plays", err)

			return
		}

		resp.HourlyPlays = make([]HourlyPlayCount, 0, len(hourly))
		for _, bucket := range hourly {
			resp.HourlyPlays = append(resp.HourlyPlays, HourlyPlayCount{
				Hour:  bucket.Hour.Format(time.RFC3339),
				Plays: bucket.Plays,
			})
		}
	} else {
		daily, err := s.deps.Analytics.PlaysByDay(r.Context(), trackID, days)
		if err != nil {
			s.writeAnalyticsError(w, r, "daily plays", err)

			return
		}

		resp.DailyPlays = make([]DailyPlayCount, 0, len(daily))
		for _, bucket := range daily {
			resp.DailyPlays = append(resp.DailyPlays, DailyPlayCount{
				Day:   bucket.Day.Format(time.DateOnly),
				Plays: bucket.Plays,
			})
		}
	}

	s.writeJSON(w, r, http.StatusOK, resp)
}

// handleUserStats serves GET /api/v1/analytics/users/{id}.
func (s *Server) handleUserStats(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(r)
	if !ok {
		WriteErrorResponse(w, r, s.logger, BadRequest("user id must be a positive integer"))

		return
	}

	days := queryInt(r, "days", defaultWindowDays, maxWindowDays)
	limit := queryInt(r, "limit", defaultListLimit, maxListLimit)

	stats, err := s.deps.Analytics.UserStats(r.Context(), userID, days)
	if err != nil {
		s.writeAnalyticsError(w, r, "user stats", err)

		return
	}

	topArtists, err := s.deps.Analytics.TopArtistsForUser(r.Context(), userID, days, limit)
	if err != nil {
		s.writeAnalyticsError(w, r, "top artists", err)

		return
	}

	resp := UserStatsResponse{
		UserID:         userID,
		WindowDays:     days,
		TotalPlays:     stats.TotalPlays,
		UniqueTracks:   stats.UniqueTracks,
		UniqueArtists:  stats.UniqueArtists,
		TotalListenMs:  stats.TotalListenMs,
		AvgCompletion:  stats.AvgCompletion,
		SearchesIssued: stats.SearchesIssued,
		TopArtists:     make([]ArtistRanking, 0, len(topArtists)),
	}

	for _, a := range topArtists {
		resp.TopArtists = append(resp.TopArtists, ArtistRanking{ArtistID: a.ArtistID, Plays: a.Plays})
	}

	s.writeJSON(w, r, http.StatusOK, resp)
}

// handlePlatformStats serves GET /api/v1/analytics/platform.
func (s *Server) handlePlatformStats(w http.ResponseWriter, r *http.Request) {
	days := queryInt(r, "days", defaultWindowDays, maxWindowDays)

	stats, err := s.deps.Analytics.PlatformStats(r.Context(), days)
	if err != nil {
		s.writeAnalyticsError(w, r, "platform stats", err)

		return
	}

	buckets := make([]PlatformBucket, 0, len(stats))
	for _, p := range stats {
		buckets = append(buckets, PlatformBucket{
			Platform:     p.Platform,
			Requests:     p.Requests,
			AvgLatencyMs: p.AvgLatencyMs,
			ErrorRate:    p.ErrorRate,
		})
	}

	s.writeJSON(w, r, http.StatusOK, map[string]any{
		"windowDays": days,
		"platforms":  buckets,
	})
}

// handleTopTracks serves GET /api/v1/analytics/top-tracks.
func (s *Server) handleTopTracks(w http.ResponseWriter, r *http.Request) {
	days := queryInt(r, "days", defaultWindowDays, maxWindowDays)
	limit := queryInt(r, "limit", defaultListLimit, maxListLimit)

	tracks, err := s.deps.Analytics.TopTracks(r.Context(), days, limit)
	if err != nil {
		s.writeAnalyticsError(w, r, "top tracks", err)

		return
	}

	rankings := make([]TrackRanking, 0, len(tracks))
	for _, t := range tracks {
		rankings = append(rankings, TrackRanking{
			TrackID:     t.TrackID,
			Plays:       t.Plays,
			UniqueUsers: t.UniqueUsers,
		})
	}

	s.writeJSON(w, r, http.StatusOK, map[string]any{
		"windowDays": days,
		"tracks":     rankings,
	})
}

// handleTrending serves GET /api/v1/analytics/trending.
//
// Query parameters:
//   - days: recent window scored against the trailing baseline (default 7)
//   - limit: maximum entries (default 20, max 100)
func (s *Server) handleTrending(w http.ResponseWriter, r *http.Request) {
	recentDays := queryInt(r, "days", 7, maxWindowDays)
	limit := queryInt(r, "limit", defaultListLimit, maxListLimit)
	baselineDays := recentDays * 4

	tracks, err := s.deps.Analytics.TrendingTracks(r.Context(), recentDays, baselineDays, limit)
	if err != nil {
		s.writeAnalyticsError(w, r, "trending tracks", err)

		return
	}

	entries := make([]TrendingEntry, 0, len(tracks))
	for _, t := range tracks {
		entries = append(entries, TrendingEntry{
			TrackID:     t.TrackID,
			RecentPlays: t.RecentPlays,
			Velocity:    t.Velocity,
		})
	}

	s.writeJSON(w, r, http.StatusOK, map[string]any{
		"windowDays": recentDays,
		"tracks":     entries,
	})
}

// writeAnalyticsError maps read failures from the sink to problem responses.
// A degraded sink is a 503 so callers can distinguish "come back later"
// from a genuine server fault.
func (s *Server) writeAnalyticsError(w http.ResponseWriter, r *http.Request, what string, err error) {
	if errors.Is(err, sink.ErrSinkUnavailable) {
		WriteErrorResponse(w, r, s.logger, ServiceUnavailable("Analytics are temporarily unavailable"))

		return
	}

	s.logger.Error("Analytics query failed",
		slog.String("correlation_id", middleware.GetCorrelationID(r.Context())),
		slog.String("query", what),
		slog.String("error", err.Error()),
	)

	WriteErrorResponse(w, r, s.logger, InternalServerError("Failed to load "+what))
}
