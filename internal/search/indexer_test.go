package search

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// roundTripperFunc lets tests serve canned Elasticsearch responses.
type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func esResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header: http.Header{
			"X-Elastic-Product": []string{"Elasticsearch"},
			"Content-Type":      []string{"application/json"},
		},
		Body: io.NopCloser(strings.NewReader(body)),
	}
}

func stubIndexer(t *testing.T, rt roundTripperFunc) *Indexer {
	t.Helper()

	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{"http://stub:9200"},
		Transport: rt,
	})
	require.NoError(t, err)

	return NewIndexerWithClient(client, slog.New(slog.DiscardHandler))
}

func TestMultiSearchRankedIDs(t *testing.T) {
	var captured string

	ix := stubIndexer(t, func(r *http.Request) (*http.Response, error) {
		body, _ := io.ReadAll(r.Body)
		captured = string(body)

		return esResponse(http.StatusOK, `{
			"responses": [
				{"status": 200, "hits": {"hits": [{"_id": "3"}, {"_id": "1"}, {"_id": "2"}]}},
				{"status": 200, "hits": {"hits": [{"_id": "7"}]}},
				{"status": 200, "hits": {"hits": []}}
			]
		}`), nil
	})

	ranked, err := ix.MultiSearch(context.Background(), "miles", ScopeAll, 10)
	require.NoError(t, err)

	assert.Equal(t, []uint32{3, 1, 2}, ranked.Tracks, "hit order is the ranking")
	assert.Equal(t, []uint32{7}, ranked.Artists)
	assert.Empty(t, ranked.Albums)

	// The request carries one boosted multi_match per index.
	lines := strings.Split(strings.TrimSpace(captured), "\n")
	require.Len(t, lines, 6)
	assert.JSONEq(t, `{"index":"tracks"}`, lines[0])

	var trackQuery map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &trackQuery))

	multiMatch := trackQuery["query"].(map[string]any)["multi_match"].(map[string]any)
	assert.Equal(t, "miles", multiMatch["query"])
	assert.Contains(t, multiMatch["fields"], "title^3")
	assert.Contains(t, multiMatch["fields"], "artist_name^2")
}

func TestMultiSearchScopedToOneIndex(t *testing.T) {
	ix := stubIndexer(t, func(r *http.Request) (*http.Response, error) {
		return esResponse(http.StatusOK, `{
			"responses": [
				{"status": 200, "hits": {"hits": [{"_id": "5"}]}}
			]
		}`), nil
	})

	ranked, err := ix.MultiSearch(context.Background(), "blue", ScopeArtists, 5)
	require.NoError(t, err)

	assert.Empty(t, ranked.Tracks)
	assert.Equal(t, []uint32{5}, ranked.Artists)
}

func TestMultiSearchDegraded(t *testing.T) {
	ix := &Indexer{logger: slog.New(slog.DiscardHandler)}

	_, err := ix.MultiSearch(context.Background(), "miles", ScopeAll, 10)
	assert.ErrorIs(t, err, ErrIndexUnavailable)
	assert.False(t, ix.Healthy())
}

func TestMultiSearchServerError(t *testing.T) {
	ix := stubIndexer(t, func(r *http.Request) (*http.Response, error) {
		return esResponse(http.StatusServiceUnavailable, `{"error": "unavailable"}`), nil
	})

	_, err := ix.MultiSearch(context.Background(), "miles", ScopeAll, 10)
	assert.ErrorIs(t, err, ErrIndexUnavailable)
}

func TestIndexTrackWritesDocument(t *testing.T) {
	var method, path, body string

	ix := stubIndexer(t, func(r *http.Request) (*http.Response, error) {
		method = r.Method
		path = r.URL.Path

		b, _ := io.ReadAll(r.Body)
		body = string(b)

		return esResponse(http.StatusCreated, `{"result": "created"}`), nil
	})

	ok := ix.IndexTrack(context.Background(), &TrackDocument{
		ID:         42,
		Title:      "So What",
		ArtistID:   3,
		ArtistName: "Miles Davis",
	})

	require.True(t, ok)
	assert.Equal(t, http.MethodPut, method)
	assert.Equal(t, "/tracks/_doc/42", path)
	assert.JSONEq(t, `{
		"id": 42, "title": "So What", "artist_id": 3,
		"artist_name": "Miles Davis", "album_id": 0, "album_title": "",
		"genre": "", "duration_sec": 0
	}`, body)
}

func TestDeleteTreatsMissingAsSuccess(t *testing.T) {
	ix := stubIndexer(t, func(r *http.Request) (*http.Response, error) {
		return esResponse(http.StatusNotFound, `{"result": "not_found"}`), nil
	})

	assert.True(t, ix.DeleteTrack(context.Background(), 42), "missing document is the goal state")
}

func TestDegradedIndexerDropsWrites(t *testing.T) {
	ix := &Indexer{logger: slog.New(slog.DiscardHandler)}

	assert.False(t, ix.IndexTrack(context.Background(), &TrackDocument{ID: 1}))
	assert.False(t, ix.DeleteTrack(context.Background(), 1))
	assert.False(t, ix.EnsureIndices(context.Background()))
}
