package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/bogem/id3v2/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonquils-io/jonquils/internal/blob"
	"github.com/jonquils-io/jonquils/internal/catalog"
	"github.com/jonquils-io/jonquils/internal/search"
	"github.com/jonquils-io/jonquils/internal/sink"
)

// fakeBlob serves objects from memory. listGate, when set, blocks List
// until released so tests can hold a run open.
type fakeBlob struct {
	mu        sync.Mutex
	objects   map[string]map[string][]byte // bucket -> key -> payload
	modified  map[string]time.Time         // bucket/key -> last modified
	listGate  chan struct{}
	listErrs  []error
	fetchErrs []error
	removed   []string
}

func newFakeBlob() *fakeBlob {
	return &fakeBlob{
		objects:  map[string]map[string][]byte{},
		modified: map[string]time.Time{},
	}
}

func (f *fakeBlob) put(bucket, key string, payload []byte, modified time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.objects[bucket] == nil {
		f.objects[bucket] = map[string][]byte{}
	}

	f.objects[bucket][key] = payload
	f.modified[bucket+"/"+key] = modified
}

func (f *fakeBlob) List(_ context.Context, bucket, _ string) ([]blob.Object, error) {
	if f.listGate != nil && bucket == blob.BucketTracks {
		<-f.listGate
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.listErrs) > 0 {
		err := f.listErrs[0]
		f.listErrs = f.listErrs[1:]

		return nil, err
	}

	var out []blob.Object

	for key, payload := range f.objects[bucket] {
		out = append(out, blob.Object{
			Bucket:       bucket,
			Key:          key,
			Size:         int64(len(payload)),
			ETag:         fmt.Sprintf("%x", len(payload)),
			LastModified: f.modified[bucket+"/"+key],
		})
	}

	return out, nil
}

func (f *fakeBlob) Stat(_ context.Context, bucket, key string) (*blob.Object, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	payload, ok := f.objects[bucket][key]
	if !ok {
		return nil, fmt.Errorf("no such object %s/%s", bucket, key)
	}

	return &blob.Object{
		Bucket: bucket,
		Key:    key,
		Size:   int64(len(payload)),
		ETag:   fmt.Sprintf("%x", len(payload)),
	}, nil
}

func (f *fakeBlob) Fetch(_ context.Context, bucket, key string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.fetchErrs) > 0 {
		err := f.fetchErrs[0]
		f.fetchErrs = f.fetchErrs[1:]

		return nil, err
	}

	payload, ok := f.objects[bucket][key]
	if !ok {
		return nil, fmt.Errorf("no such object %s/%s", bucket, key)
	}

	return io.NopCloser(bytes.NewReader(payload)), nil
}

func (f *fakeBlob) Remove(_ context.Context, bucket, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.objects[bucket], key)
	f.removed = append(f.removed, bucket+"/"+key)

	return nil
}

// fakeRegistry mirrors the registry's state machine in memory.
type fakeRegistry struct {
	mu      sync.Mutex
	nextID  int64
	records map[string]*FileRecord // bucket/path -> record
	runs    []RunRecord
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{records: map[string]*FileRecord{}}
}

func (f *fakeRegistry) RecordDiscovery(_ context.Context, bucket, filePath, etag string, size int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := bucket + "/" + filePath

	rec, ok := f.records[key]
	if !ok {
		f.nextID++
		f.records[key] = &FileRecord{
			ID: f.nextID, Bucket: bucket, FilePath: filePath,
			ETag: etag, FileSize: size, Status: StatusDiscovered,
			DiscoveredAt: time.Now().UTC(),
		}

		return true, nil
	}

	if rec.ETag != etag {
		rec.ETag = etag
		rec.FileSize = size
		rec.Status = StatusDiscovered
		rec.ErrorMessage = ""
	}

	return rec.Status == StatusDiscovered, nil
}

func (f *fakeRegistry) ListByStatus(_ context.Context, status string, limit int) ([]FileRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []FileRecord

	for _, rec := range f.records {
		if rec.Status == status && len(out) < limit {
			out = append(out, *rec)
		}
	}

	return out, nil
}

func (f *fakeRegistry) find(id int64) *FileRecord {
	for _, rec := range f.records {
		if rec.ID == id {
			return rec
		}
	}

	return nil
}

func (f *fakeRegistry) setStatus(id int64, status, errMsg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	rec := f.find(id)
	if rec == nil {
		return ErrFileNotRegistered
	}

	rec.Status = status
	rec.ErrorMessage = errMsg

	return nil
}

func (f *fakeRegistry) MarkStaged(_ context.Context, id int64) error {
	return f.setStatus(id, StatusStaged, "")
}

func (f *fakeRegistry) MarkProcessed(_ context.Context, id int64) error {
	return f.setStatus(id, StatusProcessed, "")
}

func (f *fakeRegistry) MarkFailed(_ context.Context, id int64, cause error) error {
	return f.setStatus(id, StatusFailed, cause.Error())
}

func (f *fakeRegistry) PruneTerminal(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

func (f *fakeRegistry) RecordRun(_ context.Context, rec *RunRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.runs = append(f.runs, *rec)

	return nil
}

func (f *fakeRegistry) PruneRuns(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

func (f *fakeRegistry) statusOf(bucket, path string) string {
	return f.statusOfKey(bucket + "/" + path)
}

func (f *fakeRegistry) statusOfKey(key string) string {
	f.mu.Lock()
	defer f.mu.Unlock()

	if rec, ok := f.records[key]; ok {
		return rec.Status
	}

	return ""
}

// fakeStaging holds staged tracks keyed by file path. Pending resolution
// follows the registry status, like the SQL join does.
type fakeStaging struct {
	mu       sync.Mutex
	registry *fakeRegistry
	tracks   map[string]StagedTrack
}

func newFakeStaging(reg *fakeRegistry) *fakeStaging {
	return &fakeStaging{registry: reg, tracks: map[string]StagedTrack{}}
}

func (f *fakeStaging) Upsert(_ context.Context, track *StagedTrack) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.tracks[track.Bucket+"/"+track.FilePath] = *track

	return nil
}

func (f *fakeStaging) ListPending(_ context.Context, limit int) ([]StagedTrack, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []StagedTrack

	for key, track := range f.tracks {
		if len(out) >= limit {
			break
		}

		if f.registry.statusOfKey(key) == StatusStaged {
			out = append(out, track)
		}
	}

	return out, nil
}

func (f *fakeStaging) Prune(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

// fakeCatalog assigns IDs with the same conflict keys the real store uses.
type fakeCatalog struct {
	mu          sync.Mutex
	nextID      uint32
	artists     map[string]uint32
	albums      map[string]uint32
	tracks      map[string]uint32
	dailyStats  map[string]catalog.DailyTrackStats
	failOnTitle string
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		artists:    map[string]uint32{},
		albums:     map[string]uint32{},
		tracks:     map[string]uint32{},
		dailyStats: map[string]catalog.DailyTrackStats{},
	}
}

func (f *fakeCatalog) id(m map[string]uint32, key string) uint32 {
	if id, ok := m[key]; ok {
		return id
	}

	f.nextID++
	m[key] = f.nextID

	return f.nextID
}

func (f *fakeCatalog) UpsertArtist(_ context.Context, artist *catalog.Artist) (uint32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.id(f.artists, artist.Name), nil
}

func (f *fakeCatalog) UpsertAlbum(_ context.Context, album *catalog.Album) (uint32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.id(f.albums, fmt.Sprintf("%d/%s", album.ArtistID, album.Title)), nil
}

func (f *fakeCatalog) UpsertTrack(_ context.Context, track *catalog.Track) (uint32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failOnTitle != "" && track.Title == f.failOnTitle {
		return 0, errors.New("catalog write refused")
	}

	return f.id(f.tracks, track.StoragePath), nil
}

func (f *fakeCatalog) UpsertDailyStats(_ context.Context, stats *catalog.DailyTrackStats) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.dailyStats[stats.DateKey.Format("2006-01-02")] = *stats

	return nil
}

// fakeSearchIndex records indexed documents.
type fakeSearchIndex struct {
	mu      sync.Mutex
	healthy bool
	tracks  []search.TrackDocument
}

func (f *fakeSearchIndex) Healthy() bool { return f.healthy }

func (f *fakeSearchIndex) IndexTrack(_ context.Context, doc *search.TrackDocument) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.tracks = append(f.tracks, *doc)

	return true
}

func (f *fakeSearchIndex) IndexArtist(_ context.Context, _ *search.ArtistDocument) bool { return true }
func (f *fakeSearchIndex) IndexAlbum(_ context.Context, _ *search.AlbumDocument) bool   { return true }

// fakeAnalytics serves canned daily activity and records inserted events
// and prune cutoffs.
type fakeAnalytics struct {
	mu       sync.Mutex
	degraded bool
	activity []sink.DailyActivity
	inserted []sink.Event
	pruned   []time.Time
}

func (f *fakeAnalytics) Healthy() bool { return !f.degraded }

func (f *fakeAnalytics) Insert(_ context.Context, event sink.Event) bool {
	if f.degraded {
		return false
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.inserted = append(f.inserted, event)

	return true
}

func (f *fakeAnalytics) DailyActivity(_ context.Context, _ int) ([]sink.DailyActivity, error) {
	if f.degraded {
		return nil, sink.ErrSinkUnavailable
	}

	return f.activity, nil
}

func (f *fakeAnalytics) TrackEventsSince(_ context.Context, _ time.Time, _ int) ([]sink.TrackEvent, error) {
	if f.degraded {
		return nil, sink.ErrSinkUnavailable
	}

	return nil, nil
}

func (f *fakeAnalytics) PruneBefore(_ context.Context, cutoff time.Time) (int, error) {
	if f.degraded {
		return 0, sink.ErrSinkUnavailable
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.pruned = append(f.pruned, cutoff)

	return 5, nil
}

type fixture struct {
	cfg      *Config
	blobs    *fakeBlob
	registry *fakeRegistry
	staging  *fakeStaging
	catalog  *fakeCatalog
	index    *fakeSearchIndex
	sink     *fakeAnalytics
	runner   *Runner
}

func newFixture() *fixture {
	f := &fixture{
		cfg: &Config{
			StepRetries:        1,
			RetryDelay:         time.Millisecond,
			AggregateDays:      7,
			TelemetryRetention: 90 * 24 * time.Hour,
			StagingRetention:   7 * 24 * time.Hour,
			RegistryRetention:  30 * 24 * time.Hour,
			RunLogRetention:    30 * 24 * time.Hour,
			TempRetention:      24 * time.Hour,
		},
		blobs:    newFakeBlob(),
		registry: newFakeRegistry(),
		catalog:  newFakeCatalog(),
		index:    &fakeSearchIndex{healthy: true},
		sink:     &fakeAnalytics{},
	}

	f.staging = newFakeStaging(f.registry)
	f.runner = NewRunner(f.cfg, f.blobs, f.registry, f.staging, f.catalog, f.index, f.sink)

	return f
}

func taggedMP3(t *testing.T, title, artist, album string) []byte {
	t.Helper()

	return mp3Payload(t, func(tag *id3v2.Tag) {
		tag.SetTitle(title)
		tag.SetArtist(artist)
		tag.SetAlbum(album)
	})
}

func TestRunIngestionEndToEnd(t *testing.T) {
	f := newFixture()
	now := time.Now().UTC()

	f.blobs.put(blob.BucketTracks, "1/so-what.mp3", taggedMP3(t, "So What", "Miles Davis", "Kind of Blue"), now)
	f.blobs.put(blob.BucketTracks, "1/blue-in-green.mp3", taggedMP3(t, "Blue in Green", "Miles Davis", "Kind of Blue"), now)

	f.sink.activity = []sink.DailyActivity{
		{Day: now.AddDate(0, 0, -1), TotalPlays: 100, UniqueUsers: 10},
		{Day: now, TotalPlays: 40, UniqueUsers: 7},
	}

	result, err := f.runner.RunIngestion(context.Background())
	require.NoError(t, err)
	require.True(t, result.Succeeded(), "summary: %s", result.summary())

	// Both files reached the terminal state and the catalog converged on
	// one artist, one album, two tracks.
	assert.Equal(t, StatusProcessed, f.registry.statusOf(blob.BucketTracks, "1/so-what.mp3"))
	assert.Equal(t, StatusProcessed, f.registry.statusOf(blob.BucketTracks, "1/blue-in-green.mp3"))
	assert.Len(t, f.catalog.artists, 1)
	assert.Len(t, f.catalog.albums, 1)
	assert.Len(t, f.catalog.tracks, 2)

	// Propagation and aggregation both ran. Each promoted track leaves an
	// upload fact in the analytics store alongside its index document.
	assert.Len(t, f.index.tracks, 2)
	require.Len(t, f.sink.inserted, 2)

	event, ok := f.sink.inserted[0].(sink.TrackEvent)
	require.True(t, ok)
	assert.Equal(t, sink.ActionUpload, event.Action)
	assert.NotZero(t, event.TrackID)
	assert.NotEmpty(t, event.EventID)

	assert.Len(t, f.catalog.dailyStats, 2)

	// Prune reached the sink and the run was logged.
	assert.Len(t, f.sink.pruned, 1)
	require.Len(t, f.registry.runs, 1)
	assert.Equal(t, RunIngestion, f.registry.runs[0].Kind)
	assert.True(t, f.registry.runs[0].Succeeded)

	// A rerun over unchanged storage is a no-op end to end.
	result, err = f.runner.RunIngestion(context.Background())
	require.NoError(t, err)
	require.True(t, result.Succeeded())

	assert.Len(t, f.catalog.tracks, 2, "rerun must not duplicate catalog rows")
	assert.Len(t, f.index.tracks, 2, "rerun promoted nothing, so nothing re-indexes")
	assert.Len(t, f.sink.inserted, 2, "rerun promoted nothing, so no new upload facts")
}

func TestRunIngestionItemFailureIsolation(t *testing.T) {
	f := newFixture()
	now := time.Now().UTC()

	f.blobs.put(blob.BucketTracks, "good.mp3", taggedMP3(t, "Naima", "John Coltrane", ""), now)
	f.blobs.put(blob.BucketTracks, "bad.flac", []byte("RIFF"), now)

	result, err := f.runner.RunIngestion(context.Background())
	require.NoError(t, err)

	assert.True(t, result.Succeeded(), "item failures must not fail the run: %s", result.summary())
	assert.Equal(t, StatusProcessed, f.registry.statusOf(blob.BucketTracks, "good.mp3"))
	assert.Equal(t, StatusFailed, f.registry.statusOf(blob.BucketTracks, "bad.flac"))

	rec := f.registry.records[blob.BucketTracks+"/bad.flac"]
	assert.Contains(t, rec.ErrorMessage, "parse flac metadata")
}

func TestRunIngestionPromoteFailureIsolation(t *testing.T) {
	f := newFixture()
	now := time.Now().UTC()

	f.blobs.put(blob.BucketTracks, "ok.mp3", taggedMP3(t, "Giant Steps", "John Coltrane", ""), now)
	f.blobs.put(blob.BucketTracks, "refused.mp3", taggedMP3(t, "Cursed", "John Coltrane", ""), now)
	f.catalog.failOnTitle = "Cursed"

	result, err := f.runner.RunIngestion(context.Background())
	require.NoError(t, err)
	require.True(t, result.Succeeded())

	assert.Equal(t, StatusProcessed, f.registry.statusOf(blob.BucketTracks, "ok.mp3"))
	assert.Equal(t, StatusFailed, f.registry.statusOf(blob.BucketTracks, "refused.mp3"))
	assert.Len(t, f.index.tracks, 1, "only the promoted track propagates")

	// Once the catalog stops refusing, the next run picks the failed row
	// back up and promotes it.
	f.catalog.failOnTitle = ""

	result, err = f.runner.RunIngestion(context.Background())
	require.NoError(t, err)
	require.True(t, result.Succeeded())

	assert.Equal(t, StatusProcessed, f.registry.statusOf(blob.BucketTracks, "refused.mp3"))
	assert.Len(t, f.index.tracks, 2)
}

func TestRunIngestionRetriesFailedItemNextRun(t *testing.T) {
	f := newFixture()
	now := time.Now().UTC()

	f.blobs.put(blob.BucketTracks, "flaky.mp3", taggedMP3(t, "Lonely Woman", "Ornette Coleman", ""), now)
	f.blobs.fetchErrs = []error{errors.New("transient: connection reset")}

	_, err := f.runner.RunIngestion(context.Background())
	require.NoError(t, err)
	require.Equal(t, StatusFailed, f.registry.statusOf(blob.BucketTracks, "flaky.mp3"))

	// The object is unchanged, but the failure is not terminal: the next
	// run stages it again and promotes it.
	result, err := f.runner.RunIngestion(context.Background())
	require.NoError(t, err)
	require.True(t, result.Succeeded(), "summary: %s", result.summary())

	assert.Equal(t, StatusProcessed, f.registry.statusOf(blob.BucketTracks, "flaky.mp3"))
	assert.Len(t, f.catalog.tracks, 1)
}

func TestDiscoverSkipsNonAudioKeys(t *testing.T) {
	f := newFixture()
	now := time.Now().UTC()

	f.blobs.put(blob.BucketTracks, "album/track.mp3", taggedMP3(t, "Song", "Artist", ""), now)
	f.blobs.put(blob.BucketTracks, "album/liner-notes.txt", []byte("notes"), now)
	f.blobs.put(blob.BucketTracks, "album/manifest.json", []byte("{}"), now)

	result, err := f.runner.RunIngestion(context.Background())
	require.NoError(t, err)
	require.True(t, result.Succeeded())

	assert.Equal(t, StatusProcessed, f.registry.statusOf(blob.BucketTracks, "album/track.mp3"))
	assert.Empty(t, f.registry.statusOf(blob.BucketTracks, "album/liner-notes.txt"), "sidecar keys never enter the registry")
	assert.Empty(t, f.registry.statusOf(blob.BucketTracks, "album/manifest.json"))
}

func TestRunIngestionReprocessesChangedObject(t *testing.T) {
	f := newFixture()
	now := time.Now().UTC()

	f.blobs.put(blob.BucketTracks, "track.mp3", taggedMP3(t, "Take One", "Artist", ""), now)

	_, err := f.runner.RunIngestion(context.Background())
	require.NoError(t, err)
	require.Equal(t, StatusProcessed, f.registry.statusOf(blob.BucketTracks, "track.mp3"))

	// Re-upload with different content: the etag changes and the file is
	// rediscovered, but the catalog row is replaced, not duplicated.
	f.blobs.put(blob.BucketTracks, "track.mp3", taggedMP3(t, "Take Two (Longer Title)", "Artist", ""), now)

	_, err = f.runner.RunIngestion(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StatusProcessed, f.registry.statusOf(blob.BucketTracks, "track.mp3"))
	assert.Len(t, f.catalog.tracks, 1)
}

func TestRunIngestionSingleFlight(t *testing.T) {
	f := newFixture()
	f.blobs.listGate = make(chan struct{})

	started := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		close(started)

		_, err := f.runner.RunIngestion(context.Background())
		done <- err
	}()

	<-started
	time.Sleep(10 * time.Millisecond) // let the run take the lock

	_, err := f.runner.RunIngestion(context.Background())
	assert.ErrorIs(t, err, ErrRunInFlight)

	_, err = f.runner.RunMaintenance(context.Background())
	assert.ErrorIs(t, err, ErrRunInFlight, "maintenance shares the single-flight lock")

	close(f.blobs.listGate)
	require.NoError(t, <-done)
}

func TestStepRetrySucceedsOnSecondAttempt(t *testing.T) {
	f := newFixture()
	f.blobs.listErrs = []error{errors.New("transient: connection reset")}

	result, err := f.runner.RunIngestion(context.Background())
	require.NoError(t, err)
	require.True(t, result.Succeeded())

	assert.Equal(t, "discover", result.Steps[0].Name)
	assert.Equal(t, 2, result.Steps[0].Attempts)
}

func TestStepRetriesExhausted(t *testing.T) {
	f := newFixture()
	f.blobs.listErrs = []error{
		errors.New("transient: connection reset"),
		errors.New("transient: connection reset"),
	}

	result, err := f.runner.RunIngestion(context.Background())
	require.NoError(t, err)

	assert.False(t, result.Succeeded())
	assert.Equal(t, 2, result.Steps[0].Attempts)
	assert.Error(t, result.Steps[0].Err)

	require.Len(t, f.registry.runs, 1)
	assert.False(t, f.registry.runs[0].Succeeded)
}

func TestPropagateSkipsDegradedIndex(t *testing.T) {
	f := newFixture()
	f.index.healthy = false

	f.blobs.put(blob.BucketTracks, "t.mp3", taggedMP3(t, "Solo", "Artist", ""), time.Now().UTC())

	result, err := f.runner.RunIngestion(context.Background())
	require.NoError(t, err)

	assert.True(t, result.Succeeded(), "a degraded index must not fail the run")
	assert.Empty(t, f.index.tracks)
	assert.Len(t, f.sink.inserted, 1, "the upload fact does not depend on index health")
	assert.Equal(t, StatusProcessed, f.registry.statusOf(blob.BucketTracks, "t.mp3"), "promotion is independent of propagation")
}

func TestAggregateSkipsDegradedSink(t *testing.T) {
	f := newFixture()
	f.sink.degraded = true

	result, err := f.runner.RunMaintenance(context.Background())
	require.NoError(t, err)

	assert.True(t, result.Succeeded(), "a degraded sink must not fail maintenance")
	assert.Empty(t, f.catalog.dailyStats)
}

func TestPruneRemovesExpiredTempUploads(t *testing.T) {
	f := newFixture()
	now := time.Now().UTC()

	f.blobs.put(blob.BucketTemp, "stale-upload", []byte("x"), now.Add(-48*time.Hour))
	f.blobs.put(blob.BucketTemp, "fresh-upload", []byte("x"), now.Add(-time.Hour))

	result, err := f.runner.RunMaintenance(context.Background())
	require.NoError(t, err)
	require.True(t, result.Succeeded())

	assert.Equal(t, []string{blob.BucketTemp + "/stale-upload"}, f.blobs.removed)
}

func TestAggregateIdempotence(t *testing.T) {
	f := newFixture()
	day := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)

	f.sink.activity = []sink.DailyActivity{{Day: day, TotalPlays: 100, UniqueUsers: 10}}

	_, err := f.runner.RunMaintenance(context.Background())
	require.NoError(t, err)

	// A later run with corrected totals replaces the same date key.
	f.sink.activity = []sink.DailyActivity{{Day: day, TotalPlays: 120, UniqueUsers: 12}}

	_, err = f.runner.RunMaintenance(context.Background())
	require.NoError(t, err)

	require.Len(t, f.catalog.dailyStats, 1)
	assert.Equal(t, int64(120), f.catalog.dailyStats["2026-08-30"].TotalPlays)
}
