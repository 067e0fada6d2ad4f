package search

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonquils-io/jonquils/internal/catalog"
)

// fakeIndex scripts the index side of the service.
type fakeIndex struct {
	healthy bool
	ranked  *RankedIDs
	err     error
	calls   int
}

func (f *fakeIndex) Healthy() bool { return f.healthy }

func (f *fakeIndex) MultiSearch(_ context.Context, _ string, _ Scope, _ int) (*RankedIDs, error) {
	f.calls++

	return f.ranked, f.err
}

// fakeCatalog resolves IDs from fixed entities and records fallback use.
type fakeCatalog struct {
	tracks        map[uint32]catalog.Track
	artists       map[uint32]catalog.Artist
	fallbackUsed  bool
	fallbackTerms []string
}

func (f *fakeCatalog) TracksByIDs(_ context.Context, ids []uint32) ([]catalog.Track, error) {
	var out []catalog.Track

	for _, id := range ids {
		if t, ok := f.tracks[id]; ok {
			out = append(out, t)
		}
	}

	return out, nil
}

func (f *fakeCatalog) ArtistsByIDs(_ context.Context, ids []uint32) ([]catalog.Artist, error) {
	var out []catalog.Artist

	for _, id := range ids {
		if a, ok := f.artists[id]; ok {
			out = append(out, a)
		}
	}

	return out, nil
}

func (f *fakeCatalog) AlbumsByIDs(_ context.Context, _ []uint32) ([]catalog.Album, error) {
	return nil, nil
}

func (f *fakeCatalog) SearchTracks(_ context.Context, term string, _ int) ([]catalog.Track, error) {
	f.fallbackUsed = true
	f.fallbackTerms = append(f.fallbackTerms, term)

	var out []catalog.Track
	for _, t := range f.tracks {
		out = append(out, t)
	}

	return out, nil
}

func (f *fakeCatalog) SearchArtists(_ context.Context, term string, _ int) ([]catalog.Artist, error) {
	f.fallbackUsed = true

	return nil, nil
}

func (f *fakeCatalog) SearchAlbums(_ context.Context, term string, _ int) ([]catalog.Album, error) {
	f.fallbackUsed = true

	return nil, nil
}

func testCatalog() *fakeCatalog {
	return &fakeCatalog{
		tracks: map[uint32]catalog.Track{
			1: {ID: 1, Title: "So What"},
			2: {ID: 2, Title: "Freddie Freeloader"},
			3: {ID: 3, Title: "Blue in Green"},
		},
		artists: map[uint32]catalog.Artist{
			7: {ID: 7, Name: "Miles Davis"},
		},
	}
}

func newTestService(index Index, cat Catalog) *Service {
	return NewService(index, cat, slog.New(slog.DiscardHandler))
}

func TestServiceResolvesRankOrder(t *testing.T) {
	index := &fakeIndex{
		healthy: true,
		// Rank order differs from ID order; ID 99 is stale in the index.
		ranked: &RankedIDs{Tracks: []uint32{3, 99, 1}, Artists: []uint32{7}},
	}
	cat := testCatalog()

	results, err := newTestService(index, cat).Search(context.Background(), "blue", ScopeAll, 10)
	require.NoError(t, err)

	require.Len(t, results.Tracks, 2)
	assert.Equal(t, uint32(3), results.Tracks[0].ID, "index ranking must survive resolution")
	assert.Equal(t, uint32(1), results.Tracks[1].ID)
	require.Len(t, results.Artists, 1)
	assert.Equal(t, "Miles Davis", results.Artists[0].Name)
	assert.False(t, results.Fallback)
	assert.False(t, cat.fallbackUsed)
}

func TestServiceFailsOpenOnIndexError(t *testing.T) {
	index := &fakeIndex{healthy: true, err: errors.New("msearch: connection refused")}
	cat := testCatalog()

	results, err := newTestService(index, cat).Search(context.Background(), "miles", ScopeAll, 10)
	require.NoError(t, err, "index failure must not surface to the caller")

	assert.True(t, results.Fallback)
	assert.True(t, cat.fallbackUsed)
	assert.NotEmpty(t, results.Tracks)
}

func TestServiceSkipsDegradedIndex(t *testing.T) {
	index := &fakeIndex{healthy: false}
	cat := testCatalog()

	results, err := newTestService(index, cat).Search(context.Background(), "miles", ScopeTracks, 10)
	require.NoError(t, err)

	assert.Zero(t, index.calls, "degraded index should not be queried at all")
	assert.True(t, results.Fallback)
	assert.Equal(t, []string{"miles"}, cat.fallbackTerms)
}

func TestServiceBlankTerm(t *testing.T) {
	index := &fakeIndex{healthy: true}
	cat := testCatalog()

	results, err := newTestService(index, cat).Search(context.Background(), "   ", ScopeAll, 10)
	require.NoError(t, err)

	assert.Empty(t, results.Tracks)
	assert.Zero(t, index.calls)
	assert.False(t, cat.fallbackUsed)
}

func TestServiceScopedFallback(t *testing.T) {
	index := &fakeIndex{healthy: false}
	cat := testCatalog()

	results, err := newTestService(index, cat).Search(context.Background(), "monk", ScopeArtists, 10)
	require.NoError(t, err)

	assert.True(t, results.Fallback)
	assert.Empty(t, results.Tracks, "artist scope must not search tracks")
}
