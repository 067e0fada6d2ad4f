package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/jonquils-io/jonquils/internal/api/middleware"
	"github.com/jonquils-io/jonquils/internal/catalog"
	"github.com/jonquils-io/jonquils/internal/search"
)

type (
	// SearchResponse is a ranked search result set. Fallback reports whether
	// the relational path served it instead of the full-text index.
	SearchResponse struct {
		Query    string         `json:"query"`
		Scope    string         `json:"scope"`
		Fallback bool           `json:"fallback"`
		Tracks   []TrackResult  `json:"tracks,omitempty"`
		Artists  []ArtistResult `json:"artists,omitempty"`
		Albums   []AlbumResult  `json:"albums,omitempty"`
	}

	// TrackResult is one track hit.
	TrackResult struct {
		ID          uint32 `json:"id"`
		Title       string `json:"title"`
		ArtistID    uint32 `json:"artistId"`
		AlbumID     uint32 `json:"albumId,omitempty"`
		Genre       string `json:"genre,omitempty"`
		DurationSec int32  `json:"durationSec"`
		Format      string `json:"format,omitempty"`
	}

	// ArtistResult is one artist hit.
	ArtistResult struct {
		ID   uint32 `json:"id"`
		Name string `json:"name"`
	}

	// AlbumResult is one album hit.
	AlbumResult struct {
		ID          uint32 `json:"id"`
		Title       string `json:"title"`
		ArtistID    uint32 `json:"artistId"`
		ReleaseYear int16  `json:"releaseYear,omitempty"`
	}
)

// searchScopes maps the scope query parameter to index scopes.
var searchScopes = map[string]search.Scope{
	"":        search.ScopeAll,
	"all":     search.ScopeAll,
	"tracks":  search.ScopeTracks,
	"artists": search.ScopeArtists,
	"albums":  search.ScopeAlbums,
}

// handleSearch serves GET /api/v1/search.
//
// Query parameters:
//   - q: search term (required)
//   - scope: all | tracks | artists | albums (default all)
//   - limit: maximum hits per scope (default 20, max 100)
//
// Every served query is also recorded as a search analytics event through
// the fire-and-forget dispatcher.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		WriteErrorResponse(w, r, s.logger, BadRequest("query parameter q is required"))

		return
	}

	scopeParam := r.URL.Query().Get("scope")

	scope, ok := searchScopes[scopeParam]
	if !ok {
		WriteErrorResponse(w, r, s.logger, BadRequest("scope must be one of: all, tracks, artists, albums"))

		return
	}

	limit := queryInt(r, "limit", defaultListLimit, maxListLimit)

	results, err := s.deps.Searcher.Search(r.Context(), query, scope, limit)
	if err != nil {
		s.logger.Error("Search failed",
			slog.String("correlation_id", middleware.GetCorrelationID(r.Context())),
			slog.String("query", query),
			slog.String("error", err.Error()),
		)

		WriteErrorResponse(w, r, s.logger, InternalServerError("Search is temporarily unavailable"))

		return
	}

	resp := SearchResponse{
		Query:    query,
		Scope:    string(scope),
		Fallback: results.Fallback,
		Tracks:   trackResults(results.Tracks),
		Artists:  artistResults(results.Artists),
		Albums:   albumResults(results.Albums),
	}

	s.recordSearch(r, query, scope, resp)

	s.writeJSON(w, r, http.StatusOK, resp)
}

// recordSearch emits the search analytics event. Best-effort: a saturated
// queue drops the event, never the response.
func (s *Server) recordSearch(r *http.Request, query string, scope search.Scope, resp SearchResponse) {
	if s.deps.Dispatcher == nil {
		return
	}

	total := len(resp.Tracks) + len(resp.Artists) + len(resp.Albums)

	s.deps.Dispatcher.LogSearch(
		middleware.ResolveUserID(r),
		query,
		string(scope),
		uint32(total),
		0,
		r.Header.Get("X-Session-ID"),
	)
}

func trackResults(tracks []catalog.Track) []TrackResult {
	if len(tracks) == 0 {
		return nil
	}

	out := make([]TrackResult, 0, len(tracks))
	for _, t := range tracks {
		out = append(out, TrackResult{
			ID:          t.ID,
			Title:       t.Title,
			ArtistID:    t.ArtistID,
			AlbumID:     t.AlbumID,
			Genre:       t.Genre,
			DurationSec: t.DurationSec,
			Format:      t.Format,
		})
	}

	return out
}

func artistResults(artists []catalog.Artist) []ArtistResult {
	if len(artists) == 0 {
		return nil
	}

	out := make([]ArtistResult, 0, len(artists))
	for _, a := range artists {
		out = append(out, ArtistResult{ID: a.ID, Name: a.Name})
	}

	return out
}

func albumResults(albums []catalog.Album) []AlbumResult {
	if len(albums) == 0 {
		return nil
	}

	out := make([]AlbumResult, 0, len(albums))
	for _, a := range albums {
		out = append(out, AlbumResult{
			ID:          a.ID,
			Title:       a.Title,
			ArtistID:    a.ArtistID,
			ReleaseYear: a.ReleaseYear,
		})
	}

	return out
}
