package pipeline

import (
	"bytes"
	"testing"

	"github.com/bogem/id3v2/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonquils-io/jonquils/internal/blob"
)

// mp3Payload renders a real ID3v2 tag block, which is all the extractor
// reads from an MP3.
func mp3Payload(t *testing.T, mutate func(tag *id3v2.Tag)) []byte {
	t.Helper()

	tag := id3v2.NewEmptyTag()
	if mutate != nil {
		mutate(tag)
	}

	var buf bytes.Buffer

	_, err := tag.WriteTo(&buf)
	require.NoError(t, err)

	return buf.Bytes()
}

func TestExtractMetadataMP3(t *testing.T) {
	payload := mp3Payload(t, func(tag *id3v2.Tag) {
		tag.SetTitle("So What")
		tag.SetArtist("Miles Davis")
		tag.SetAlbum("Kind of Blue")
		tag.SetGenre("Jazz")
		tag.SetYear("1959")
		tag.AddTextFrame(tag.CommonID("Length"), tag.DefaultEncoding(), "562000")
	})

	obj := &blob.Object{Bucket: blob.BucketTracks, Key: "1/so-what.mp3", Size: int64(len(payload))}

	md, err := ExtractMetadata(bytes.NewReader(payload), obj)
	require.NoError(t, err)

	assert.Equal(t, "So What", md.Title)
	assert.Equal(t, "Miles Davis", md.Artist)
	assert.Equal(t, "Kind of Blue", md.Album)
	assert.Equal(t, "Jazz", md.Genre)
	assert.Equal(t, int16(1959), md.ReleaseYear)
	assert.Equal(t, int32(562), md.DurationSec)
	assert.Equal(t, "mp3", md.Format)
}

func TestExtractMetadataFilenameFallback(t *testing.T) {
	payload := mp3Payload(t, nil)

	obj := &blob.Object{
		Bucket: blob.BucketTracks,
		Key:    "7/4f2a.mp3",
		UserMetadata: map[string]string{
			blob.MetaOriginalFilename: "John Coltrane - Giant Steps.mp3",
		},
	}

	md, err := ExtractMetadata(bytes.NewReader(payload), obj)
	require.NoError(t, err)

	assert.Equal(t, "John Coltrane", md.Artist)
	assert.Equal(t, "Giant Steps", md.Title)
}

func TestExtractMetadataKeyFallback(t *testing.T) {
	payload := mp3Payload(t, nil)

	// No original filename recorded and no separator in the key: the base
	// name becomes the title and the artist stays empty.
	obj := &blob.Object{Bucket: blob.BucketTracks, Key: "uploads/untitled.mp3"}

	md, err := ExtractMetadata(bytes.NewReader(payload), obj)
	require.NoError(t, err)

	assert.Equal(t, "untitled", md.Title)
	assert.Empty(t, md.Artist)
}

func TestExtractMetadataUnsupportedFormat(t *testing.T) {
	obj := &blob.Object{Bucket: blob.BucketTracks, Key: "cover.jpg"}

	_, err := ExtractMetadata(bytes.NewReader([]byte{0xFF, 0xD8}), obj)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestExtractMetadataTagsWinOverFilename(t *testing.T) {
	payload := mp3Payload(t, func(tag *id3v2.Tag) {
		tag.SetTitle("Naima")
		tag.SetArtist("John Coltrane")
	})

	obj := &blob.Object{
		Bucket: blob.BucketTracks,
		Key:    "7/naima.mp3",
		UserMetadata: map[string]string{
			blob.MetaOriginalFilename: "Wrong Artist - Wrong Title.mp3",
		},
	}

	md, err := ExtractMetadata(bytes.NewReader(payload), obj)
	require.NoError(t, err)

	assert.Equal(t, "Naima", md.Title)
	assert.Equal(t, "John Coltrane", md.Artist)
}
