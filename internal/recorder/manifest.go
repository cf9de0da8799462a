package recorder

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Manifest file and directory names within a segment directory.
const (
	ManifestFileName = "manifest.json"
	FramesDirName    = "frames"

	// VideoFormatImageSequence identifies the frame storage format: a
	// directory of JPEG files whose zero-padded names sort in capture order.
	VideoFormatImageSequence = "image_sequence_jpeg"
)

// AudioStatus values recorded in the manifest's audio descriptor.
const (
	AudioStatusRecorded     = "recorded"
	AudioStatusEmpty        = "empty_audio"
	AudioStatusNotRecording = "not_recording"
	AudioStatusError        = "error"
)

// AudioMetadata describes the audio outcome of a segment. Included is false
// whenever capture was skipped, produced no usable samples, or errored;
// downstream inference must tolerate its absence.
type AudioMetadata struct {
	Included      bool   `json:"included"`
	Status        string `json:"status"`
	Note          string `json:"note"`
	LocalFileName string `json:"localFileName,omitempty"`
	SampleRateHz  int    `json:"sampleRateHz,omitempty"`
	Channels      int    `json:"channels,omitempty"`
	DurationMillis int64 `json:"durationMillis,omitempty"`
	Bytes         int64  `json:"bytes,omitempty"`
}

// Manifest is the persisted descriptor of a finalized segment, written as
// one JSON document next to the segment's frames directory.
type Manifest struct {
	SegmentID       string        `json:"segmentId"`
	CaptureType     string        `json:"captureType"`
	VideoFormat     string        `json:"videoFormat"`
	StartedAt       time.Time     `json:"startedAt"`
	EndedAt         time.Time     `json:"endedAt"`
	FrameCount      int           `json:"frameCount"`
	FramesDirectory string        `json:"framesDirectory"`
	Audio           AudioMetadata `json:"audio"`
}

// ClosedSegment is a segment detached from the recorder at end of capture,
// pending its manifest write. Once Close returns one, the recorder no longer
// tracks the segment and is free to open the next.
type ClosedSegment struct {
	ID         string
	StartedAt  time.Time
	EndedAt    time.Time
	Dir        string
	FrameCount int
}

// PersistedSegment is the immutable result of finalizing a segment.
type PersistedSegment struct {
	ID          string
	StartedAt   time.Time
	EndedAt     time.Time
	ManifestRef string
	FrameCount  int
}

// writeManifest marshals the manifest and writes it atomically: the document
// goes to a temp file in the segment directory first, then is renamed into
// place so a crash never leaves a truncated manifest behind.
func writeManifest(segmentDir string, m *Manifest) (string, error) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal manifest: %w", err)
	}

	tmp, err := os.CreateTemp(segmentDir, "manifest-*.tmp")
	if err != nil {
		return "", fmt.Errorf("create manifest temp: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("write manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("close manifest: %w", err)
	}

	finalPath := filepath.Join(segmentDir, ManifestFileName)
	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("rename manifest: %w", err)
	}
	return finalPath, nil
}

// ReadManifest loads and parses a segment manifest from disk.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	return &m, nil
}
