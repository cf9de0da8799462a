package recorder

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// AudioFileName is the audio artifact name within a segment directory.
const AudioFileName = "audio.wav"

// AudioStream is a live microphone capture. Read yields raw 16-bit PCM;
// Close stops the capture and unblocks any in-flight Read.
type AudioStream interface {
	io.ReadCloser

	// Route describes the active input route (diagnostic only).
	Route() string

	SampleRate() int
	Channels() int
}

// AudioSource opens microphone capture streams. Implementations handle the
// platform audio session and permission prompt; a denial surfaces as a Begin
// error, which the pipeline treats as "segment without audio", never as a
// segment failure.
type AudioSource interface {
	Begin(ctx context.Context) (AudioStream, error)
}

// AudioRecorder captures one audio track per segment, independently of the
// frame recorder and bound to the same segment id for correlation only.
type AudioRecorder struct {
	mu     sync.Mutex
	root   string
	source AudioSource
	active *audioCapture
}

type audioCapture struct {
	id        string
	startedAt time.Time
	path      string
	stream    AudioStream
	wav       *wavWriter
	done      chan struct{}
	copyErr   error
}

// NewAudioRecorder creates an AudioRecorder writing one WAV file into each
// segment's directory under root.
func NewAudioRecorder(root string, source AudioSource) *AudioRecorder {
	return &AudioRecorder{root: root, source: source}
}

// Start begins audio capture for the segment. It fails with
// ErrAudioAlreadyActive when a capture is running, and with a CaptureError
// when the source cannot be opened. On success it returns the active input
// route description for diagnostics.
func (r *AudioRecorder) Start(ctx context.Context, id string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active != nil {
		return "", fmt.Errorf("start audio for segment %s: %w (current %s)", id, ErrAudioAlreadyActive, r.active.id)
	}

	stream, err := r.source.Begin(ctx)
	if err != nil {
		return "", &CaptureError{SegmentID: id, Err: err}
	}

	dir := filepath.Join(r.root, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		stream.Close()
		return "", &CaptureError{SegmentID: id, Err: err}
	}

	path := filepath.Join(dir, AudioFileName)
	wav, err := newWAVWriter(path, stream.SampleRate(), stream.Channels())
	if err != nil {
		stream.Close()
		return "", &CaptureError{SegmentID: id, Err: err}
	}

	ac := &audioCapture{
		id:        id,
		startedAt: time.Now(),
		path:      path,
		stream:    stream,
		wav:       wav,
		done:      make(chan struct{}),
	}
	r.active = ac

	go func() {
		_, err := io.Copy(ac.wav, ac.stream)
		ac.copyErr = err
		close(ac.done)
	}()

	log.Debug().
		Str("segmentId", id).
		Str("route", stream.Route()).
		Int("sampleRateHz", stream.SampleRate()).
		Msg("Audio capture started")

	return stream.Route(), nil
}

// Stop ends capture for id and returns the resulting AudioMetadata. When id
// does not match the active capture it returns a not_recording record. A
// capture whose file holds only the container header is treated as empty:
// the artifact is deleted and an empty_audio record returned.
func (r *AudioRecorder) Stop(id string) AudioMetadata {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active == nil || r.active.id != id {
		return AudioMetadata{
			Included: false,
			Status:   AudioStatusNotRecording,
			Note:     "no active audio capture for segment " + id,
		}
	}

	ac := r.active
	r.active = nil
	elapsed := time.Since(ac.startedAt)

	ac.stream.Close()
	<-ac.done
	if err := ac.wav.Close(); err != nil && ac.copyErr == nil {
		ac.copyErr = err
	}

	if ac.copyErr != nil && ac.copyErr != io.EOF {
		os.Remove(ac.path)
		log.Warn().Err(ac.copyErr).Str("segmentId", id).Msg("Audio capture errored, omitting audio")
		return AudioMetadata{
			Included: false,
			Status:   AudioStatusError,
			Note:     ac.copyErr.Error(),
		}
	}

	info, err := os.Stat(ac.path)
	if err != nil {
		return AudioMetadata{
			Included: false,
			Status:   AudioStatusError,
			Note:     "stat audio artifact: " + err.Error(),
		}
	}

	if info.Size() <= wavHeaderSize {
		os.Remove(ac.path)
		log.Debug().Str("segmentId", id).Int64("bytes", info.Size()).Msg("Audio capture produced no samples")
		return AudioMetadata{
			Included: false,
			Status:   AudioStatusEmpty,
			Note:     "capture produced no audio samples",
		}
	}

	log.Debug().
		Str("segmentId", id).
		Int64("bytes", info.Size()).
		Dur("duration", elapsed).
		Msg("Audio capture stopped")

	return AudioMetadata{
		Included:       true,
		Status:         AudioStatusRecorded,
		Note:           "route " + ac.stream.Route(),
		LocalFileName:  AudioFileName,
		SampleRateHz:   ac.stream.SampleRate(),
		Channels:       ac.stream.Channels(),
		DurationMillis: elapsed.Milliseconds(),
		Bytes:          info.Size(),
	}
}

// Discard stops capture for id if active and deletes any partial artifact
// without producing metadata.
func (r *AudioRecorder) Discard(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active == nil || r.active.id != id {
		return
	}
	ac := r.active
	r.active = nil

	ac.stream.Close()
	<-ac.done
	ac.wav.Close()
	if err := os.Remove(ac.path); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Str("segmentId", id).Msg("Failed to remove audio artifact")
	}
}
