package recorder

import (
	"errors"
	"fmt"
)

// ErrSegmentAlreadyActive is returned by FrameRecorder.Open when a segment is
// already open. At most one segment may be active at a time.
var ErrSegmentAlreadyActive = errors.New("segment already active")

// ErrAudioAlreadyActive is returned by AudioRecorder.Start when an audio
// capture is already running.
var ErrAudioAlreadyActive = errors.New("audio segment already active")

// IOError wraps a disk create/write failure during segment recording. Open
// and finalize IO failures abort the affected segment; per-frame write
// failures are logged and skipped by the recorder itself.
type IOError struct {
	SegmentID string
	Op        string
	Err       error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("recording io %s (segment %s): %v", e.Op, e.SegmentID, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// CaptureError wraps an audio capture start failure (recorder unavailable,
// permission denial). Audio failures never abort a segment; they only
// suppress audio inclusion.
type CaptureError struct {
	SegmentID string
	Err       error
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("audio capture (segment %s): %v", e.SegmentID, e.Err)
}

func (e *CaptureError) Unwrap() error { return e.Err }
