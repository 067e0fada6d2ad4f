package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jonquils-io/jonquils/internal/catalog"
)

const defaultLimit = 20

// Index is the ranked-query side of the Indexer. Split out so the service
// can be tested without a cluster.
type Index interface {
	Healthy() bool
	MultiSearch(ctx context.Context, term string, scope Scope, limit int) (*RankedIDs, error)
}

// Catalog is the slice of the catalog store the service needs: ordered ID
// resolution for index hits and ILIKE search for the fallback path.
type Catalog interface {
	TracksByIDs(ctx context.Context, ids []uint32) ([]catalog.Track, error)
	ArtistsByIDs(ctx context.Context, ids []uint32) ([]catalog.Artist, error)
	AlbumsByIDs(ctx context.Context, ids []uint32) ([]catalog.Album, error)
	SearchTracks(ctx context.Context, term string, limit int) ([]catalog.Track, error)
	SearchArtists(ctx context.Context, term string, limit int) ([]catalog.Artist, error)
	SearchAlbums(ctx context.Context, term string, limit int) ([]catalog.Album, error)
}

// Results is a ranked search response. Fallback reports whether the
// relational path served it instead of the index.
type Results struct {
	Tracks   []catalog.Track
	Artists  []catalog.Artist
	Albums   []catalog.Album
	Fallback bool
}

// Service answers search queries, preferring the index and failing open to
// the relational catalog when the index cannot serve.
type Service struct {
	index   Index
	catalog Catalog
	logger  *slog.Logger
}

// NewService wires the index and catalog sides together.
func NewService(index Index, cat Catalog, logger *slog.Logger) *Service {
	return &Service{index: index, catalog: cat, logger: logger}
}

// Search runs a ranked query over the requested scope. Index errors are
// logged and absorbed by the fallback; only catalog errors surface, since
// with both paths down there is nothing left to serve from.
func (s *Service) Search(ctx context.Context, term string, scope Scope, limit int) (*Results, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return &Results{}, nil
	}

	if limit <= 0 {
		limit = defaultLimit
	}

	if s.index.Healthy() {
		ranked, err := s.index.MultiSearch(ctx, term, scope, limit)
		if err == nil {
			return s.resolve(ctx, ranked)
		}

		s.logger.Warn("index search failed, falling back to catalog",
			slog.String("term", term),
			slog.String("error", err.Error()),
		)
	}

	return s.fallback(ctx, term, scope, limit)
}

// resolve turns ranked IDs into catalog entities, preserving rank order.
// IDs the catalog no longer knows drop out silently; the index is allowed
// to lag behind deletions.
func (s *Service) resolve(ctx context.Context, ranked *RankedIDs) (*Results, error) {
	results := &Results{}

	var err error

	if results.Tracks, err = s.catalog.TracksByIDs(ctx, ranked.Tracks); err != nil {
		return nil, fmt.Errorf("resolve track hits: %w", err)
	}

	if results.Artists, err = s.catalog.ArtistsByIDs(ctx, ranked.Artists); err != nil {
		return nil, fmt.Errorf("resolve artist hits: %w", err)
	}

	if results.Albums, err = s.catalog.AlbumsByIDs(ctx, ranked.Albums); err != nil {
		return nil, fmt.Errorf("resolve album hits: %w", err)
	}

	return results, nil
}

// fallback serves the query from the relational catalog.
func (s *Service) fallback(ctx context.Context, term string, scope Scope, limit int) (*Results, error) {
	results := &Results{Fallback: true}

	var err error

	for _, index := range scope.indices() {
		switch index {
		case IndexTracks:
			if results.Tracks, err = s.catalog.SearchTracks(ctx, term, limit); err != nil {
				return nil, fmt.Errorf("fallback track search: %w", err)
			}
		case IndexArtists:
			if results.Artists, err = s.catalog.SearchArtists(ctx, term, limit); err != nil {
				return nil, fmt.Errorf("fallback artist search: %w", err)
			}
		case IndexAlbums:
			if results.Albums, err = s.catalog.SearchAlbums(ctx, term, limit); err != nil {
				return nil, fmt.Errorf("fallback album search: %w", err)
			}
		}
	}

	return results, nil
}
