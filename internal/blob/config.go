// Package blob wraps object storage access for uploaded audio files and
// imagery. Buckets follow the platform layout: tracks, covers, playlists,
// and temp for in-flight uploads.
package blob

import (
	"errors"
	"strings"

	"github.com/jonquils-io/jonquils/internal/config"
)

// Bucket names.
const (
	BucketTracks    = "tracks"
	BucketCovers    = "covers"
	BucketPlaylists = "playlists"
	BucketTemp      = "temp"
)

// User-metadata keys stamped on uploaded objects by the upload surface.
const (
	MetaOriginalFilename = "Original-Filename"
	MetaUserID           = "User-Id"
)

// ErrEndpointEmpty is returned when the object storage endpoint is missing.
var ErrEndpointEmpty = errors.New("object storage endpoint cannot be empty")

// Config holds object storage connection configuration.
type Config struct {
	Endpoint  string
	AccessKey string
	secretKey string
	UseSSL    bool
	Region    string
}

// LoadConfig loads object storage configuration from environment variables.
func LoadConfig() *Config {
	return &Config{
		Endpoint:  config.GetEnvStr("MINIO_ENDPOINT", "localhost:9000"),
		AccessKey: config.GetEnvStr("MINIO_ACCESS_KEY", ""),
		secretKey: config.GetEnvStr("MINIO_SECRET_KEY", ""),
		UseSSL:    config.GetEnvBool("MINIO_USE_SSL", false),
		Region:    config.GetEnvStr("MINIO_REGION", ""),
	}
}

// Validate checks if the object storage configuration is valid.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Endpoint) == "" {
		return ErrEndpointEmpty
	}

	return nil
}
