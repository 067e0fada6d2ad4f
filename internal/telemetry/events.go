package telemetry

import (
	"time"

	"github.com/google/uuid"

	"github.com/jonquils-io/jonquils/internal/sink"
)

// TrackAction captures the caller-supplied fields of a track interaction.
// Identity and timing are stamped by the dispatcher helpers.
type TrackAction struct {
	TrackID    uint32
	ArtistID   uint32
	AlbumID    uint32
	GenreID    uint32
	UserID     *uint32
	Action     string
	DurationMs int64
	Completion float32
	Platform   string
	DeviceType string
	SessionID  string
}

// LogTrackAction records a play, skip, or like against a track.
func (d *Dispatcher) LogTrackAction(a TrackAction) bool {
	return d.Enqueue(sink.TrackEvent{
		EventID:    uuid.NewString(),
		Timestamp:  time.Now().UTC(),
		TrackID:    a.TrackID,
		ArtistID:   a.ArtistID,
		AlbumID:    a.AlbumID,
		GenreID:    a.GenreID,
		UserID:     a.UserID,
		Action:     a.Action,
		DurationMs: a.DurationMs,
		Completion: a.Completion,
		Platform:   a.Platform,
		DeviceType: a.DeviceType,
		SessionID:  a.SessionID,
	})
}

// LogSearch records a search issued by a listener and how many results it
// returned. clickedTrackID is zero until the listener picks a result.
func (d *Dispatcher) LogSearch(userID uint32, query, searchType string, resultsCount uint32, clickedTrackID uint32, sessionID string) bool {
	return d.Enqueue(sink.SearchEvent{
		EventID:        uuid.NewString(),
		Timestamp:      time.Now().UTC(),
		UserID:         userID,
		Query:          query,
		ResultsCount:   resultsCount,
		SearchType:     searchType,
		ClickedTrackID: clickedTrackID,
		SessionID:      sessionID,
	})
}

// LogUserAction records an account-level action such as an upload or a
// profile update. metadata is an optional JSON payload.
func (d *Dispatcher) LogUserAction(userID uint32, action, platform, metadata string) bool {
	return d.Enqueue(sink.UserEvent{
		EventID:   uuid.NewString(),
		Timestamp: time.Now().UTC(),
		UserID:    userID,
		Action:    action,
		Platform:  platform,
		Metadata:  metadata,
	})
}

// LogArtistAction records an interaction with an artist page or profile.
func (d *Dispatcher) LogArtistAction(artistID, userID uint32, action string) bool {
	return d.Enqueue(sink.ArtistEvent{
		EventID:   uuid.NewString(),
		Timestamp: time.Now().UTC(),
		ArtistID:  artistID,
		Action:    action,
		UserID:    userID,
	})
}
