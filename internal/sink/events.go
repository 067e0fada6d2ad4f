// Package sink provides the ClickHouse-backed event sink client used for
// analytics ingestion and read-side analytics queries.
package sink

import "time"

// Fact table names inside the analytics database.
const (
	TableAPIRequests     = "api_requests_log"
	TableTrackAnalytics  = "track_analytics"
	TableSearchAnalytics = "search_analytics"
	TableUserAnalytics   = "user_analytics"
	TableArtistAnalytics = "artist_analytics"
)

// Actions recorded in fact rows.
const (
	ActionRequest          = "request"
	ActionPlay             = "play"
	ActionSkip             = "skip"
	ActionLike             = "like"
	ActionSearch           = "search"
	ActionPlaylistMutation = "playlist_mutation"
	ActionUpload           = "upload"
	ActionProfileUpdate    = "profile_update"
)

// Event is a single immutable telemetry fact row. Implementations are plain
// structs, one per fact table; the client dispatches on FactTable.
type Event interface {
	// FactTable returns the destination fact table name.
	FactTable() string
}

// APIRequestEvent is one observed request/response cycle.
//
// UserID is zero for anonymous callers; the column participates in the table
// ordering key and is therefore not nullable.
type APIRequestEvent struct {
	EventID        string    `ch:"event_id"`
	Timestamp      time.Time `ch:"timestamp"`
	Method         string    `ch:"method"`
	Path           string    `ch:"path"`
	StatusCode     uint16    `ch:"status_code"`
	ResponseTimeMs uint32    `ch:"response_time_ms"`
	UserID         uint32    `ch:"user_id"`
	RequestSize    uint64    `ch:"request_size"`
	ResponseSize   uint64    `ch:"response_size"`
	IPAddress      string    `ch:"ip_address"`
	UserAgent      string    `ch:"user_agent"`
	Platform       string    `ch:"platform"`
	ErrorMessage   string    `ch:"error_message"`
}

// FactTable implements Event.
func (APIRequestEvent) FactTable() string { return TableAPIRequests }

// TrackEvent is one observed track action (play, skip, like, upload, ...).
// UserID is nullable: events arriving without a resolved subject are stored
// as-is and surfaced by the quality pass rather than dropped.
type TrackEvent struct {
	EventID    string    `ch:"event_id"`
	Timestamp  time.Time `ch:"timestamp"`
	TrackID    uint32    `ch:"track_id"`
	ArtistID   uint32    `ch:"artist_id"`
	AlbumID    uint32    `ch:"album_id"`
	GenreID    uint32    `ch:"genre_id"`
	UserID     *uint32   `ch:"user_id"`
	Action     string    `ch:"action"`
	DurationMs int64     `ch:"duration_ms"`
	Completion float32   `ch:"completion"`
	Platform   string    `ch:"platform"`
	DeviceType string    `ch:"device_type"`
	SessionID  string    `ch:"session_id"`
}

// FactTable implements Event.
func (TrackEvent) FactTable() string { return TableTrackAnalytics }

// SearchEvent is one observed search query.
type SearchEvent struct {
	EventID        string    `ch:"event_id"`
	Timestamp      time.Time `ch:"timestamp"`
	UserID         uint32    `ch:"user_id"`
	Query          string    `ch:"query"`
	ResultsCount   uint32    `ch:"results_count"`
	SearchType     string    `ch:"search_type"`
	ClickedTrackID uint32    `ch:"clicked_track_id"`
	SessionID      string    `ch:"session_id"`
}

// FactTable implements Event.
func (SearchEvent) FactTable() string { return TableSearchAnalytics }

// UserEvent is one observed user-level action (login, playlist mutation, ...).
type UserEvent struct {
	EventID   string    `ch:"event_id"`
	Timestamp time.Time `ch:"timestamp"`
	UserID    uint32    `ch:"user_id"`
	Action    string    `ch:"action"`
	Platform  string    `ch:"platform"`
	Metadata  string    `ch:"metadata"`
}

// FactTable implements Event.
func (UserEvent) FactTable() string { return TableUserAnalytics }

// ArtistEvent is one observed artist-level action (profile update, follow).
type ArtistEvent struct {
	EventID   string    `ch:"event_id"`
	Timestamp time.Time `ch:"timestamp"`
	ArtistID  uint32    `ch:"artist_id"`
	Action    string    `ch:"action"`
	UserID    uint32    `ch:"user_id"`
}

// FactTable implements Event.
func (ArtistEvent) FactTable() string { return TableArtistAnalytics }
