package capture

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"testing"
	"time"

	"github.com/fpang/carelog/internal/recorder"
)

func encodeTestJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encode test jpeg: %v", err)
	}
	return buf.Bytes()
}

func TestFromSegmentWithAudio(t *testing.T) {
	started := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	seg := &recorder.PersistedSegment{
		ID:          "seg-1",
		StartedAt:   started,
		EndedAt:     started.Add(12 * time.Second),
		ManifestRef: "segments/seg-1/manifest.json",
		FrameCount:  24,
	}
	audio := recorder.AudioMetadata{
		Included: true, Status: recorder.AudioStatusRecorded, LocalFileName: "audio.wav",
	}

	env := FromSegment(seg, audio)

	if env.Type != TypeShortVideo {
		t.Errorf("type = %q, want shortVideo", env.Type)
	}
	if !env.CapturedAt.Equal(started) {
		t.Errorf("capturedAt = %v, want segment start %v", env.CapturedAt, started)
	}
	if env.MediaRef != seg.ManifestRef {
		t.Errorf("mediaRef = %q, want manifest ref", env.MediaRef)
	}
	if env.ID == "" {
		t.Error("envelope id must be assigned")
	}

	wantMeta := map[string]string{
		"source":      "wearable",
		"segmentId":   "seg-1",
		"frameCount":  "24",
		"durationSec": "12.0",
		"audio":       "audio.wav",
	}
	for k, v := range wantMeta {
		if got := env.Meta(k); got != v {
			t.Errorf("Meta(%q) = %q, want %q", k, got, v)
		}
	}
	if got := env.Meta("audioStatus"); got != "" {
		t.Errorf("audioStatus should be absent when audio is included, got %q", got)
	}
}

func TestFromSegmentWithoutAudio(t *testing.T) {
	seg := &recorder.PersistedSegment{ID: "seg-2", StartedAt: time.Now(), EndedAt: time.Now()}
	env := FromSegment(seg, recorder.AudioMetadata{Status: recorder.AudioStatusEmpty})

	if got := env.Meta("audioStatus"); got != recorder.AudioStatusEmpty {
		t.Errorf("audioStatus = %q, want %q", got, recorder.AudioStatusEmpty)
	}
	if got := env.Meta("audio"); got != "" {
		t.Errorf("audio should be absent when capture was empty, got %q", got)
	}
}

func TestFromPhotoPersistsPayload(t *testing.T) {
	dir := t.TempDir()
	data := encodeTestJPEG(t, 32, 32)
	receivedAt := time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC)

	env, err := FromPhoto(data, "jpg", receivedAt, dir)
	if err != nil {
		t.Fatalf("FromPhoto: %v", err)
	}
	if env.Type != TypePhoto {
		t.Errorf("type = %q, want photo", env.Type)
	}

	persisted, err := os.ReadFile(env.MediaRef)
	if err != nil {
		t.Fatalf("read persisted photo: %v", err)
	}
	if !bytes.Equal(persisted, data) {
		t.Error("persisted payload differs from input")
	}

	// Synthetic JPEGs carry no EXIF; the receive time stands in.
	if !env.CapturedAt.Equal(receivedAt) {
		t.Errorf("capturedAt = %v, want receive time %v", env.CapturedAt, receivedAt)
	}
	if got := env.Meta("source"); got != "wearable" {
		t.Errorf("source = %q, want wearable", got)
	}
}

func TestFromPhotoEmptyPayload(t *testing.T) {
	_, err := FromPhoto(nil, "jpg", time.Now(), t.TempDir())
	if !errors.Is(err, ErrDecode) {
		t.Errorf("error = %v, want ErrDecode", err)
	}
}

func TestDownscaleJPEG(t *testing.T) {
	t.Run("large image is bounded", func(t *testing.T) {
		data := encodeTestJPEG(t, 120, 40)
		out, err := DownscaleJPEG(data, 30)
		if err != nil {
			t.Fatalf("DownscaleJPEG: %v", err)
		}
		img, err := jpeg.Decode(bytes.NewReader(out))
		if err != nil {
			t.Fatalf("decode output: %v", err)
		}
		b := img.Bounds()
		if b.Dx() != 30 || b.Dy() != 10 {
			t.Errorf("output = %dx%d, want 30x10", b.Dx(), b.Dy())
		}
	})

	t.Run("small image passes through", func(t *testing.T) {
		data := encodeTestJPEG(t, 20, 20)
		out, err := DownscaleJPEG(data, 30)
		if err != nil {
			t.Fatalf("DownscaleJPEG: %v", err)
		}
		if !bytes.Equal(out, data) {
			t.Error("in-bounds payload should be returned unchanged")
		}
	})

	t.Run("garbage payload", func(t *testing.T) {
		_, err := DownscaleJPEG([]byte("not a jpeg"), 30)
		if !errors.Is(err, ErrDecode) {
			t.Errorf("error = %v, want ErrDecode", err)
		}
	})
}
