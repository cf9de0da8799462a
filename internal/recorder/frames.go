// Package recorder owns the on-disk lifecycle of capture segments: an
// append-only JPEG frame sequence plus a manifest per segment, and an
// independent audio capture bound to the same segment id.
package recorder

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// frameFilePattern yields fixed-width zero-padded names (000000.jpg, ...)
// so lexicographic order equals temporal order.
const frameFilePattern = "%06d.jpg"

// FrameRecorder serializes incoming video frames to a per-segment frame
// sequence and writes the segment manifest on finalize. It owns exactly one
// segment's artifacts at a time; every operation takes the recorder lock
// because frames may arrive concurrently with a finalize or discard request.
type FrameRecorder struct {
	mu   sync.Mutex
	root string
	open *openSegment
}

type openSegment struct {
	id         string
	startedAt  time.Time
	dir        string
	framesDir  string
	nextIndex  int
	frameCount int
}

// NewFrameRecorder creates a FrameRecorder storing segments under root
// (one subdirectory per segment id).
func NewFrameRecorder(root string) *FrameRecorder {
	return &FrameRecorder{root: root}
}

// Open creates the storage locations for a new segment. It fails with
// ErrSegmentAlreadyActive if another segment is open.
func (r *FrameRecorder) Open(id string, startedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.open != nil {
		return fmt.Errorf("open segment %s: %w (current %s)", id, ErrSegmentAlreadyActive, r.open.id)
	}

	dir := filepath.Join(r.root, id)
	framesDir := filepath.Join(dir, FramesDirName)
	if err := os.MkdirAll(framesDir, 0o755); err != nil {
		return &IOError{SegmentID: id, Op: "open", Err: err}
	}

	r.open = &openSegment{
		id:        id,
		startedAt: startedAt,
		dir:       dir,
		framesDir: framesDir,
	}

	log.Debug().Str("segmentId", id).Str("dir", dir).Msg("Segment opened")
	return nil
}

// Append writes one frame to the open segment. It is a no-op when id does
// not match the currently open segment, which defends against stale frame
// callbacks after a finalize or cancel raced in. A failed write is logged
// and skipped; losing one frame must not abort the segment, and the index
// is not advanced so recorded indices stay gap-free.
func (r *FrameRecorder) Append(id string, frame []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.open == nil || r.open.id != id {
		log.Debug().Str("segmentId", id).Msg("Dropping frame for inactive segment")
		return
	}

	name := fmt.Sprintf(frameFilePattern, r.open.nextIndex)
	path := filepath.Join(r.open.framesDir, name)
	if err := os.WriteFile(path, frame, 0o644); err != nil {
		log.Warn().Err(err).
			Str("segmentId", id).
			Int("index", r.open.nextIndex).
			Msg("Frame write failed, skipping frame")
		return
	}

	r.open.nextIndex++
	r.open.frameCount++
}

// FrameCount reports the number of frames written so far for id, or 0 when
// the segment is not open.
func (r *FrameRecorder) FrameCount(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.open == nil || r.open.id != id {
		return 0
	}
	return r.open.frameCount
}

// Close detaches the open segment from the recorder, returning its snapshot
// for the pending manifest write. The recorder is free to open the next
// segment as soon as Close returns, so a new capture window never waits on
// the previous segment's finalize. It returns nil when id does not match the
// open segment — the caller treats that as a no-op because a cancel raced
// the end signal.
func (r *FrameRecorder) Close(id string, endedAt time.Time) *ClosedSegment {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.open == nil || r.open.id != id {
		return nil
	}
	seg := r.open
	r.open = nil

	log.Debug().Str("segmentId", seg.id).Int("frameCount", seg.frameCount).Msg("Segment closed")
	return &ClosedSegment{
		ID:         seg.id,
		StartedAt:  seg.startedAt,
		EndedAt:    endedAt,
		Dir:        seg.dir,
		FrameCount: seg.frameCount,
	}
}

// Finalize writes the manifest for a closed segment and returns the
// immutable PersistedSegment. It operates only on the detached snapshot and
// may run concurrently with the next segment's recording.
func (r *FrameRecorder) Finalize(closed *ClosedSegment, audio AudioMetadata) (*PersistedSegment, error) {
	manifest := &Manifest{
		SegmentID:       closed.ID,
		CaptureType:     "shortVideo",
		VideoFormat:     VideoFormatImageSequence,
		StartedAt:       closed.StartedAt.UTC(),
		EndedAt:         closed.EndedAt.UTC(),
		FrameCount:      closed.FrameCount,
		FramesDirectory: FramesDirName,
		Audio:           audio,
	}

	manifestPath, err := writeManifest(closed.Dir, manifest)
	if err != nil {
		// The segment cannot be recovered without its manifest; cleanup is
		// left to Discard.
		return nil, &IOError{SegmentID: closed.ID, Op: "finalize", Err: err}
	}

	log.Info().
		Str("segmentId", closed.ID).
		Int("frameCount", closed.FrameCount).
		Str("manifest", manifestPath).
		Msg("Segment finalized")

	return &PersistedSegment{
		ID:          closed.ID,
		StartedAt:   closed.StartedAt,
		EndedAt:     closed.EndedAt,
		ManifestRef: manifestPath,
		FrameCount:  closed.FrameCount,
	}, nil
}

// Discard deletes the segment's entire storage location and clears any
// in-memory state for id, regardless of pending appends. It also removes
// already-finalized artifacts, which is how a cancel that lost the race
// against finalize cleans up the just-written manifest.
func (r *FrameRecorder) Discard(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.open != nil && r.open.id == id {
		r.open = nil
	}

	dir := filepath.Join(r.root, id)
	if err := os.RemoveAll(dir); err != nil {
		log.Warn().Err(err).Str("segmentId", id).Msg("Failed to remove segment directory")
		return
	}
	log.Debug().Str("segmentId", id).Msg("Segment storage discarded")
}

// SegmentDir returns the storage location for a segment id.
func (r *FrameRecorder) SegmentDir(id string) string {
	return filepath.Join(r.root, id)
}
