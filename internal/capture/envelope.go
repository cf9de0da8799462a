// Package capture defines the canonical, immutable unit of work handed to
// inference: the capture envelope. Builders wrap a finalized video segment
// or a single still photo into an envelope; partial or cancelled segments
// never reach this package.
package capture

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/evanoberholster/imagemeta"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/fpang/carelog/internal/recorder"
)

// Type identifies what kind of media an envelope carries.
type Type string

const (
	TypePhoto        Type = "photo"
	TypeShortVideo   Type = "shortVideo"
	TypeAudioSnippet Type = "audioSnippet"
)

// ErrDecode reports an unrecoverable media payload (empty or undecodable).
var ErrDecode = errors.New("undecodable media payload")

// Field is one metadata entry. Envelope metadata preserves insertion order,
// which keeps prompt construction and manifest output deterministic.
type Field struct {
	Key   string
	Value string
}

// Envelope is the canonical inference-ready capture record. It is immutable
// once built.
type Envelope struct {
	ID         string
	Type       Type
	CapturedAt time.Time

	// MediaRef is a local file reference: the segment manifest path for
	// short videos, or the persisted photo file for photos.
	MediaRef string

	Metadata []Field
}

// Meta returns the value for a metadata key, or "" when absent.
func (e *Envelope) Meta(key string) string {
	for _, f := range e.Metadata {
		if f.Key == key {
			return f.Value
		}
	}
	return ""
}

// FromSegment builds a short-video envelope from a successfully finalized
// segment and its audio outcome.
func FromSegment(seg *recorder.PersistedSegment, audio recorder.AudioMetadata) *Envelope {
	duration := seg.EndedAt.Sub(seg.StartedAt)

	meta := []Field{
		{Key: "source", Value: "wearable"},
		{Key: "segmentId", Value: seg.ID},
		{Key: "frameCount", Value: strconv.Itoa(seg.FrameCount)},
		{Key: "durationSec", Value: strconv.FormatFloat(duration.Seconds(), 'f', 1, 64)},
	}
	if audio.Included {
		meta = append(meta, Field{Key: "audio", Value: audio.LocalFileName})
	} else {
		meta = append(meta, Field{Key: "audioStatus", Value: audio.Status})
	}

	return &Envelope{
		ID:         uuid.NewString(),
		Type:       TypeShortVideo,
		CapturedAt: seg.StartedAt,
		MediaRef:   seg.ManifestRef,
		Metadata:   meta,
	}
}

// FromPhoto persists raw photo bytes to a file under dir and builds a photo
// envelope referencing it. Persisting the payload is part of this builder's
// contract, not the device's. When the photo carries EXIF data, the capture
// time is taken from it in preference to receivedAt.
func FromPhoto(data []byte, format string, receivedAt time.Time, dir string) (*Envelope, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty photo payload: %w", ErrDecode)
	}

	ext := "." + format
	if format == "" {
		ext = ".jpg"
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create photo dir: %w", err)
	}

	id := uuid.NewString()
	path := filepath.Join(dir, "photo-"+id+ext)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("persist photo: %w", err)
	}

	capturedAt := receivedAt
	if t, ok := exifCaptureTime(data); ok {
		capturedAt = t
	}

	return &Envelope{
		ID:         id,
		Type:       TypePhoto,
		CapturedAt: capturedAt,
		MediaRef:   path,
		Metadata: []Field{
			{Key: "source", Value: "wearable"},
			{Key: "format", Value: format},
		},
	}, nil
}

// exifCaptureTime extracts the EXIF capture timestamp from an image payload.
// Missing or unreadable EXIF is normal for wearable frames, so failures are
// reported at debug level only.
func exifCaptureTime(data []byte) (time.Time, bool) {
	meta, err := imagemeta.Decode(bytes.NewReader(data))
	if err != nil {
		log.Debug().Err(err).Msg("No EXIF metadata in photo payload")
		return time.Time{}, false
	}
	// Fallback chain: DateTimeOriginal > CreateDate.
	if !meta.DateTimeOriginal().IsZero() {
		return meta.DateTimeOriginal(), true
	}
	if !meta.CreateDate().IsZero() {
		return meta.CreateDate(), true
	}
	return time.Time{}, false
}
