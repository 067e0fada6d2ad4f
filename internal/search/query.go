package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Scope selects which entity types a search covers.
type Scope string

// Search scopes.
const (
	ScopeAll     Scope = "all"
	ScopeTracks  Scope = "tracks"
	ScopeArtists Scope = "artists"
	ScopeAlbums  Scope = "albums"
)

// indices returns the index names a scope queries, in response order.
func (s Scope) indices() []string {
	switch s {
	case ScopeTracks:
		return []string{IndexTracks}
	case ScopeArtists:
		return []string{IndexArtists}
	case ScopeAlbums:
		return []string{IndexAlbums}
	default:
		return []string{IndexTracks, IndexArtists, IndexAlbums}
	}
}

// RankedIDs carries relevance-ordered entity IDs per type. Order is the
// ranking; resolvers must preserve it.
type RankedIDs struct {
	Tracks  []uint32
	Artists []uint32
	Albums  []uint32
}

// queryFields maps each index to its boosted multi_match fields. Track
// titles outweigh artist names, which outweigh everything else.
var queryFields = map[string][]string{
	IndexTracks:  {"title^3", "artist_name^2", "album_title", "genre"},
	IndexArtists: {"name^3", "bio"},
	IndexAlbums:  {"title^3", "artist_name^2"},
}

// MultiSearch runs one ranked query per index in the scope as a single
// _msearch round trip and returns relevance-ordered IDs.
func (ix *Indexer) MultiSearch(ctx context.Context, term string, scope Scope, limit int) (*RankedIDs, error) {
	if !ix.healthy.Load() {
		return nil, ErrIndexUnavailable
	}

	indices := scope.indices()

	body, err := msearchBody(term, indices, limit)
	if err != nil {
		return nil, fmt.Errorf("build msearch body: %w", err)
	}

	res, err := ix.client.Msearch(
		bytes.NewReader(body),
		ix.client.Msearch.WithContext(ctx),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIndexUnavailable, err)
	}

	defer func() {
		_ = res.Body.Close()
	}()

	if res.IsError() {
		return nil, fmt.Errorf("%w: msearch returned status %d", ErrIndexUnavailable, res.StatusCode)
	}

	var parsed msearchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode msearch response: %w", err)
	}

	if len(parsed.Responses) != len(indices) {
		return nil, fmt.Errorf("msearch returned %d responses for %d queries", len(parsed.Responses), len(indices))
	}

	ranked := &RankedIDs{}

	for i, index := range indices {
		ids := parsed.Responses[i].ids()

		switch index {
		case IndexTracks:
			ranked.Tracks = ids
		case IndexArtists:
			ranked.Artists = ids
		case IndexAlbums:
			ranked.Albums = ids
		}
	}

	return ranked, nil
}

// msearchBody builds the NDJSON request: one header line and one query
// line per index. Hits only carry IDs; documents resolve from the catalog.
func msearchBody(term string, indices []string, limit int) ([]byte, error) {
	var buf bytes.Buffer

	for _, index := range indices {
		header := map[string]string{"index": index}

		query := map[string]any{
			"size":    limit,
			"_source": false,
			"query": map[string]any{
				"multi_match": map[string]any{
					"query":     term,
					"fields":    queryFields[index],
					"fuzziness": "AUTO",
					"operator":  "and",
				},
			},
		}

		for _, line := range []any{header, query} {
			encoded, err := json.Marshal(line)
			if err != nil {
				return nil, err
			}

			buf.Write(encoded)
			buf.WriteByte('\n')
		}
	}

	return buf.Bytes(), nil
}

type msearchResponse struct {
	Responses []searchResult `json:"responses"`
}

type searchResult struct {
	Status int `json:"status"`
	Hits   struct {
		Hits []struct {
			ID string `json:"_id"`
		} `json:"hits"`
	} `json:"hits"`
}

// ids converts hit document IDs to catalog IDs, preserving rank order.
// Malformed IDs are skipped.
func (r searchResult) ids() []uint32 {
	ids := make([]uint32, 0, len(r.Hits.Hits))

	for _, hit := range r.Hits.Hits {
		id, err := strconv.ParseUint(strings.TrimSpace(hit.ID), 10, 32)
		if err != nil {
			continue
		}

		ids = append(ids, uint32(id))
	}

	return ids
}
