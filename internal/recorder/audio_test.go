package recorder

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

// stubStream serves a fixed PCM payload, then blocks until Close before
// reporting EOF, mirroring a live microphone stream.
type stubStream struct {
	mu     sync.Mutex
	data   []byte
	pos    int
	closed chan struct{}
	once   sync.Once
}

func newStubStream(data []byte) *stubStream {
	return &stubStream{data: data, closed: make(chan struct{})}
}

func (s *stubStream) Read(p []byte) (int, error) {
	s.mu.Lock()
	if s.pos < len(s.data) {
		n := copy(p, s.data[s.pos:])
		s.pos += n
		s.mu.Unlock()
		return n, nil
	}
	s.mu.Unlock()
	<-s.closed
	return 0, io.EOF
}

func (s *stubStream) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

func (s *stubStream) Route() string   { return "stub mic" }
func (s *stubStream) SampleRate() int { return 16000 }
func (s *stubStream) Channels() int   { return 1 }

type stubSource struct {
	stream   AudioStream
	beginErr error
}

func (s *stubSource) Begin(ctx context.Context) (AudioStream, error) {
	if s.beginErr != nil {
		return nil, s.beginErr
	}
	return s.stream, nil
}

func TestAudioRecorderCapture(t *testing.T) {
	root := t.TempDir()
	pcm := make([]byte, 2048)
	r := NewAudioRecorder(root, &stubSource{stream: newStubStream(pcm)})

	route, err := r.Start(context.Background(), "seg-1")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if route != "stub mic" {
		t.Errorf("route = %q, want stub mic", route)
	}

	meta := r.Stop("seg-1")
	if !meta.Included {
		t.Fatalf("audio not included: %+v", meta)
	}
	if meta.Status != AudioStatusRecorded {
		t.Errorf("status = %q, want %q", meta.Status, AudioStatusRecorded)
	}
	if meta.LocalFileName != AudioFileName {
		t.Errorf("localFileName = %q, want %q", meta.LocalFileName, AudioFileName)
	}
	if meta.SampleRateHz != 16000 || meta.Channels != 1 {
		t.Errorf("format = %dHz/%dch, want 16000Hz/1ch", meta.SampleRateHz, meta.Channels)
	}
	wantBytes := int64(wavHeaderSize + len(pcm))
	if meta.Bytes != wantBytes {
		t.Errorf("bytes = %d, want %d", meta.Bytes, wantBytes)
	}

	path := filepath.Join(root, "seg-1", AudioFileName)
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat artifact: %v", err)
	}
	if info.Size() != wantBytes {
		t.Errorf("artifact size = %d, want %d", info.Size(), wantBytes)
	}
}

// A capture that produced no samples leaves only the container header; the
// artifact is deleted and the segment records empty audio.
func TestAudioRecorderEmptyCapture(t *testing.T) {
	root := t.TempDir()
	r := NewAudioRecorder(root, &stubSource{stream: newStubStream(nil)})

	if _, err := r.Start(context.Background(), "seg-1"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	meta := r.Stop("seg-1")

	if meta.Included {
		t.Error("empty capture must not be included")
	}
	if meta.Status != AudioStatusEmpty {
		t.Errorf("status = %q, want %q", meta.Status, AudioStatusEmpty)
	}
	path := filepath.Join(root, "seg-1", AudioFileName)
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("empty artifact should be deleted, stat err = %v", err)
	}
}

func TestAudioRecorderStopUnknownID(t *testing.T) {
	r := NewAudioRecorder(t.TempDir(), &stubSource{stream: newStubStream(nil)})
	meta := r.Stop("seg-missing")
	if meta.Included || meta.Status != AudioStatusNotRecording {
		t.Errorf("stop of unknown id = %+v, want not_recording", meta)
	}
}

func TestAudioRecorderSecondStartFails(t *testing.T) {
	r := NewAudioRecorder(t.TempDir(), &stubSource{stream: newStubStream(nil)})
	if _, err := r.Start(context.Background(), "seg-1"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	_, err := r.Start(context.Background(), "seg-2")
	if !errors.Is(err, ErrAudioAlreadyActive) {
		t.Errorf("second Start error = %v, want ErrAudioAlreadyActive", err)
	}
	r.Stop("seg-1")
}

func TestAudioRecorderSourceDenied(t *testing.T) {
	denied := errors.New("microphone permission denied")
	r := NewAudioRecorder(t.TempDir(), &stubSource{beginErr: denied})

	_, err := r.Start(context.Background(), "seg-1")
	var capErr *CaptureError
	if !errors.As(err, &capErr) {
		t.Fatalf("Start error = %v, want CaptureError", err)
	}
	if !errors.Is(err, denied) {
		t.Errorf("CaptureError should wrap the source error, got %v", err)
	}
	// The recorder stays free for the next segment.
	meta := r.Stop("seg-1")
	if meta.Status != AudioStatusNotRecording {
		t.Errorf("status = %q, want %q", meta.Status, AudioStatusNotRecording)
	}
}

func TestAudioRecorderDiscard(t *testing.T) {
	root := t.TempDir()
	r := NewAudioRecorder(root, &stubSource{stream: newStubStream(make([]byte, 512))})

	if _, err := r.Start(context.Background(), "seg-1"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	r.Discard("seg-1")

	path := filepath.Join(root, "seg-1", AudioFileName)
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("artifact should be deleted on discard, stat err = %v", err)
	}
	if meta := r.Stop("seg-1"); meta.Status != AudioStatusNotRecording {
		t.Errorf("stop after discard = %q, want %q", meta.Status, AudioStatusNotRecording)
	}
}
