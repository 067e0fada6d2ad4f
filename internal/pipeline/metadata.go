package pipeline

import (
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"

	"github.com/bogem/id3v2/v2"
	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/meta"

	"github.com/jonquils-io/jonquils/internal/blob"
)

// ErrUnsupportedFormat is returned for files the stage step cannot parse.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// supportedAudioKey reports whether the object key carries an extension the
// stage step can parse. Discovery uses it to keep sidecar files out of the
// registry.
func supportedAudioKey(key string) bool {
	switch strings.TrimPrefix(strings.ToLower(path.Ext(key)), ".") {
	case "mp3", "flac":
		return true
	default:
		return false
	}
}

// TrackMetadata is what the stage step extracts from an audio file before
// it lands in staging.
type TrackMetadata struct {
	Title       string
	Artist      string
	Album       string
	Genre       string
	ReleaseYear int16
	DurationSec int32
	Format      string
	Bitrate     int32
}

// ExtractMetadata parses embedded tags from an audio object. The format is
// taken from the object key's extension. Missing tags fall back to the
// uploader's original filename, so an untagged file still stages with a
// usable title.
func ExtractMetadata(r io.Reader, obj *blob.Object) (*TrackMetadata, error) {
	format := strings.TrimPrefix(strings.ToLower(path.Ext(obj.Key)), ".")

	var (
		md  *TrackMetadata
		err error
	)

	switch format {
	case "mp3":
		md, err = extractMP3(r)
	case "flac":
		md, err = extractFLAC(r, obj.Size)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	if err != nil {
		return nil, err
	}

	md.Format = format
	applyFilenameFallback(md, obj)

	return md, nil
}

// extractMP3 reads ID3v2 tags. Duration comes from the TLEN frame when
// present; MP3 frame walking is out of scope for staging.
func extractMP3(r io.Reader) (*TrackMetadata, error) {
	tag, err := id3v2.ParseReader(r, id3v2.Options{Parse: true})
	if err != nil {
		return nil, fmt.Errorf("parse id3 tags: %w", err)
	}

	md := &TrackMetadata{
		Title:  strings.TrimSpace(tag.Title()),
		Artist: strings.TrimSpace(tag.Artist()),
		Album:  strings.TrimSpace(tag.Album()),
		Genre:  strings.TrimSpace(tag.Genre()),
	}

	if year, err := strconv.Atoi(strings.TrimSpace(tag.Year())); err == nil && year > 0 {
		md.ReleaseYear = int16(year)
	}

	if lenFrame := tag.GetTextFrame(tag.CommonID("Length")); lenFrame.Text != "" {
		if ms, err := strconv.ParseInt(strings.TrimSpace(lenFrame.Text), 10, 64); err == nil && ms > 0 {
			md.DurationSec = int32(ms / 1000)
		}
	}

	return md, nil
}

// extractFLAC reads the StreamInfo and VorbisComment metadata blocks.
func extractFLAC(r io.Reader, size int64) (*TrackMetadata, error) {
	stream, err := flac.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse flac metadata: %w", err)
	}

	md := &TrackMetadata{}

	if stream.Info != nil && stream.Info.SampleRate > 0 {
		md.DurationSec = int32(stream.Info.NSamples / uint64(stream.Info.SampleRate))

		if md.DurationSec > 0 && size > 0 {
			md.Bitrate = int32(size * 8 / int64(md.DurationSec) / 1000)
		}
	}

	for _, block := range stream.Blocks {
		vc, ok := block.Body.(*meta.VorbisComment)
		if !ok {
			continue
		}

		for _, tag := range vc.Tags {
			value := strings.TrimSpace(tag[1])
			if value == "" {
				continue
			}

			switch strings.ToUpper(tag[0]) {
			case "TITLE":
				md.Title = value
			case "ARTIST":
				if md.Artist == "" {
					md.Artist = value
				}
			case "ALBUM":
				md.Album = value
			case "GENRE":
				md.Genre = value
			case "DATE":
				if year, err := strconv.Atoi(value[:min(4, len(value))]); err == nil && year > 0 {
					md.ReleaseYear = int16(year)
				}
			}
		}
	}

	return md, nil
}

// applyFilenameFallback fills missing title and artist from the uploader's
// original filename ("Artist - Title.ext") or, failing that, the object key.
func applyFilenameFallback(md *TrackMetadata, obj *blob.Object) {
	if md.Title != "" && md.Artist != "" {
		return
	}

	name := obj.OriginalFilename()
	if name == "" {
		name = path.Base(obj.Key)
	}

	name = strings.TrimSuffix(name, path.Ext(name))

	if artist, title, ok := strings.Cut(name, " - "); ok {
		if md.Artist == "" {
			md.Artist = strings.TrimSpace(artist)
		}

		if md.Title == "" {
			md.Title = strings.TrimSpace(title)
		}

		return
	}

	if md.Title == "" {
		md.Title = strings.TrimSpace(name)
	}
}
