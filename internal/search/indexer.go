package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"sync/atomic"

	"github.com/elastic/go-elasticsearch/v8"

	"github.com/jonquils-io/jonquils/internal/config"
)

// ErrIndexUnavailable is returned by queries while the indexer is degraded.
// Callers are expected to fall back to the relational catalog.
var ErrIndexUnavailable = errors.New("search index unavailable")

// TrackDocument is the indexed projection of a catalog track. Denormalized
// artist and album names carry the relevance signal for multi_match.
type TrackDocument struct {
	ID          uint32 `json:"id"`
	Title       string `json:"title"`
	ArtistID    uint32 `json:"artist_id"`
	ArtistName  string `json:"artist_name"`
	AlbumID     uint32 `json:"album_id"`
	AlbumTitle  string `json:"album_title"`
	Genre       string `json:"genre"`
	DurationSec int32  `json:"duration_sec"`
}

// ArtistDocument is the indexed projection of a catalog artist.
type ArtistDocument struct {
	ID   uint32 `json:"id"`
	Name string `json:"name"`
	Bio  string `json:"bio,omitempty"`
}

// AlbumDocument is the indexed projection of a catalog album.
type AlbumDocument struct {
	ID          uint32 `json:"id"`
	Title       string `json:"title"`
	ArtistID    uint32 `json:"artist_id"`
	ArtistName  string `json:"artist_name"`
	ReleaseYear int16  `json:"release_year,omitempty"`
}

// Indexer maintains the search indices and executes ranked queries.
//
// Like the analytics sink, the indexer degrades instead of failing: if the
// cluster is unreachable at construction all writes become logged no-ops
// and queries return ErrIndexUnavailable.
type Indexer struct {
	client  *elasticsearch.Client
	logger  *slog.Logger
	healthy atomic.Bool
}

// NewIndexer connects to Elasticsearch and returns an indexer. Connection
// failure yields a degraded indexer, not an error.
func NewIndexer(cfg *Config) (*Indexer, error) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: config.GetEnvLogLevel("LOG_LEVEL", slog.LevelInfo),
	}))

	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.password,
	})
	if err != nil {
		return nil, fmt.Errorf("build elasticsearch client: %w", err)
	}

	idx := &Indexer{client: client, logger: logger}

	res, err := client.Ping(client.Ping.WithContext(context.Background()))
	if err != nil || res.IsError() {
		if res != nil {
			_ = res.Body.Close()
		}

		logger.Error("search index unreachable, entering degraded mode",
			slog.Any("addresses", cfg.Addresses),
		)

		return idx, nil
	}

	_ = res.Body.Close()
	idx.healthy.Store(true)

	logger.Info("search index connected", slog.Any("addresses", cfg.Addresses))

	return idx, nil
}

// NewIndexerWithClient builds an indexer over an existing client, assumed
// healthy. Used by tests with a stub transport.
func NewIndexerWithClient(client *elasticsearch.Client, logger *slog.Logger) *Indexer {
	idx := &Indexer{client: client, logger: logger}
	idx.healthy.Store(true)

	return idx
}

// Healthy reports whether the index connection is usable.
func (ix *Indexer) Healthy() bool {
	return ix.healthy.Load()
}

// EnsureIndices idempotently creates the three entity indices. An index
// that already exists is left untouched. Failure degrades the indexer.
func (ix *Indexer) EnsureIndices(ctx context.Context) bool {
	if !ix.healthy.Load() {
		return false
	}

	for name, mapping := range indexMappings {
		exists, err := ix.client.Indices.Exists(
			[]string{name},
			ix.client.Indices.Exists.WithContext(ctx),
		)
		if err == nil && exists.StatusCode == http.StatusOK {
			_ = exists.Body.Close()

			continue
		}

		if exists != nil {
			_ = exists.Body.Close()
		}

		res, err := ix.client.Indices.Create(
			name,
			ix.client.Indices.Create.WithContext(ctx),
			ix.client.Indices.Create.WithBody(bytes.NewReader([]byte(mapping))),
		)
		if err != nil || res.IsError() {
			if res != nil {
				_ = res.Body.Close()
			}

			ix.logger.Error("search index creation failed, entering degraded mode",
				slog.String("index", name),
			)
			ix.healthy.Store(false)

			return false
		}

		_ = res.Body.Close()
		ix.logger.Info("search index created", slog.String("index", name))
	}

	return true
}

// IndexTrack writes or replaces a track document. Failures are logged and
// reported as false; the catalog write that triggered the projection has
// already committed and is never rolled back for indexing.
func (ix *Indexer) IndexTrack(ctx context.Context, doc *TrackDocument) bool {
	return ix.index(ctx, IndexTracks, doc.ID, doc)
}

// IndexArtist writes or replaces an artist document.
func (ix *Indexer) IndexArtist(ctx context.Context, doc *ArtistDocument) bool {
	return ix.index(ctx, IndexArtists, doc.ID, doc)
}

// IndexAlbum writes or replaces an album document.
func (ix *Indexer) IndexAlbum(ctx context.Context, doc *AlbumDocument) bool {
	return ix.index(ctx, IndexAlbums, doc.ID, doc)
}

// DeleteTrack removes a track document. A missing document counts as
// success; the goal state is "not present".
func (ix *Indexer) DeleteTrack(ctx context.Context, id uint32) bool {
	return ix.delete(ctx, IndexTracks, id)
}

// DeleteArtist removes an artist document.
func (ix *Indexer) DeleteArtist(ctx context.Context, id uint32) bool {
	return ix.delete(ctx, IndexArtists, id)
}

// DeleteAlbum removes an album document.
func (ix *Indexer) DeleteAlbum(ctx context.Context, id uint32) bool {
	return ix.delete(ctx, IndexAlbums, id)
}

func (ix *Indexer) index(ctx context.Context, indexName string, id uint32, doc any) bool {
	if !ix.healthy.Load() {
		return false
	}

	body, err := json.Marshal(doc)
	if err != nil {
		ix.logger.Error("search document marshal failed",
			slog.String("index", indexName),
			slog.String("error", err.Error()),
		)

		return false
	}

	res, err := ix.client.Index(
		indexName,
		bytes.NewReader(body),
		ix.client.Index.WithDocumentID(docID(id)),
		ix.client.Index.WithContext(ctx),
	)
	if err != nil || res.IsError() {
		if res != nil {
			_ = res.Body.Close()
		}

		ix.logger.Warn("search index write failed",
			slog.String("index", indexName),
			slog.String("doc_id", docID(id)),
		)

		return false
	}

	_ = res.Body.Close()

	return true
}

func (ix *Indexer) delete(ctx context.Context, indexName string, id uint32) bool {
	if !ix.healthy.Load() {
		return false
	}

	res, err := ix.client.Delete(
		indexName,
		docID(id),
		ix.client.Delete.WithContext(ctx),
	)
	if err != nil {
		ix.logger.Warn("search index delete failed",
			slog.String("index", indexName),
			slog.String("doc_id", docID(id)),
		)

		return false
	}

	defer func() {
		_ = res.Body.Close()
	}()

	// 404 means the document was already gone, which is the goal state.
	if res.IsError() && res.StatusCode != http.StatusNotFound {
		ix.logger.Warn("search index delete failed",
			slog.String("index", indexName),
			slog.String("doc_id", docID(id)),
			slog.Int("status", res.StatusCode),
		)

		return false
	}

	return true
}

func docID(id uint32) string {
	return strconv.FormatUint(uint64(id), 10)
}

// indexMappings are the explicit index mappings, keyed by index name.
// Text fields get keyword sub-fields for exact filtering.
var indexMappings = map[string]string{
	IndexTracks: `{
		"mappings": {
			"properties": {
				"id":           {"type": "integer"},
				"title":        {"type": "text", "fields": {"raw": {"type": "keyword"}}},
				"artist_id":    {"type": "integer"},
				"artist_name":  {"type": "text", "fields": {"raw": {"type": "keyword"}}},
				"album_id":     {"type": "integer"},
				"album_title":  {"type": "text"},
				"genre":        {"type": "text", "fields": {"raw": {"type": "keyword"}}},
				"duration_sec": {"type": "integer"}
			}
		}
	}`,
	IndexArtists: `{
		"mappings": {
			"properties": {
				"id":   {"type": "integer"},
				"name": {"type": "text", "fields": {"raw": {"type": "keyword"}}},
				"bio":  {"type": "text"}
			}
		}
	}`,
	IndexAlbums: `{
		"mappings": {
			"properties": {
				"id":           {"type": "integer"},
				"title":        {"type": "text", "fields": {"raw": {"type": "keyword"}}},
				"artist_id":    {"type": "integer"},
				"artist_name":  {"type": "text"},
				"release_year": {"type": "short"}
			}
		}
	}`,
}
