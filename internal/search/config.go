// Package search maintains the full-text projection of the catalog in
// Elasticsearch and serves ranked queries against it. The index is a
// disposable projection of the relational catalog: indexing failures never
// fail the write path, and queries fall back to the catalog when the index
// is unavailable.
package search

import (
	"time"

	"github.com/jonquils-io/jonquils/internal/config"
)

// Index names for the three searchable entity types.
const (
	IndexTracks  = "tracks"
	IndexArtists = "artists"
	IndexAlbums  = "albums"
)

// Config holds Elasticsearch connection configuration.
type Config struct {
	Addresses   []string
	Username    string
	password    string
	DialTimeout time.Duration
}

// LoadConfig loads Elasticsearch configuration from environment variables.
// An empty ELASTICSEARCH_URL is valid and yields a degraded indexer.
func LoadConfig() *Config {
	return &Config{
		Addresses:   config.GetEnvStrSlice("ELASTICSEARCH_URL", []string{"http://localhost:9200"}),
		Username:    config.GetEnvStr("ELASTICSEARCH_USERNAME", ""),
		password:    config.GetEnvStr("ELASTICSEARCH_PASSWORD", ""),
		DialTimeout: config.GetEnvDuration("ELASTICSEARCH_DIAL_TIMEOUT", 5*time.Second),
	}
}
