package catalog

import "time"

// Artist is a catalog artist row. Name is unique across the catalog.
type Artist struct {
	ID        uint32
	Name      string
	Bio       string
	ImagePath string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Album is a catalog album row, unique per (ArtistID, Title).
type Album struct {
	ID          uint32
	ArtistID    uint32
	Title       string
	ReleaseYear int16
	CoverPath   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Track is a catalog track row. StoragePath is the object key in blob
// storage and is the track's stable identity across re-ingestion.
type Track struct {
	ID          uint32
	Title       string
	ArtistID    uint32
	AlbumID     uint32
	Genre       string
	DurationSec int32
	StoragePath string
	FileSize    int64
	Format      string
	Bitrate     int32
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// DailyTrackStats is one day of platform-wide listening totals, keyed by
// calendar date. Rows are produced by the reconciliation aggregate step and
// replaced idempotently on rerun.
type DailyTrackStats struct {
	DateKey       time.Time
	TotalPlays    int64
	UniqueUsers   int64
	UniqueTracks  int64
	TotalListenMs int64
	ComputedAt    time.Time
}
