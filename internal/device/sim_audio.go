package device

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/fpang/carelog/internal/recorder"
)

// SimAudioSource is a recorder.AudioSource producing silence-valued PCM at a
// fixed rate. With Silent set it produces no samples at all, which exercises
// the empty-audio path downstream.
type SimAudioSource struct {
	SampleRate int
	Channels   int
	Silent     bool
}

// Begin implements recorder.AudioSource.
func (s *SimAudioSource) Begin(ctx context.Context) (recorder.AudioStream, error) {
	rate := s.SampleRate
	if rate == 0 {
		rate = 16000
	}
	channels := s.Channels
	if channels == 0 {
		channels = 1
	}
	return &simAudioStream{
		rate:     rate,
		channels: channels,
		silent:   s.Silent,
		closed:   make(chan struct{}),
	}, nil
}

type simAudioStream struct {
	rate     int
	channels int
	silent   bool
	once     sync.Once
	closed   chan struct{}
}

// Read paces itself to roughly real time, emitting 20 ms of zero-valued
// samples per call. A silent stream blocks until Close, then reports EOF.
func (s *simAudioStream) Read(p []byte) (int, error) {
	select {
	case <-s.closed:
		return 0, io.EOF
	default:
	}

	if s.silent {
		<-s.closed
		return 0, io.EOF
	}

	const slice = 20 * time.Millisecond
	select {
	case <-s.closed:
		return 0, io.EOF
	case <-time.After(slice):
	}

	n := s.rate * s.channels * 2 / 50 // 20 ms of 16-bit samples
	if n > len(p) {
		n = len(p)
	}
	for i := 0; i < n; i++ {
		p[i] = 0
	}
	return n, nil
}

func (s *simAudioStream) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

func (s *simAudioStream) Route() string   { return "simulated microphone" }
func (s *simAudioStream) SampleRate() int { return s.rate }
func (s *simAudioStream) Channels() int   { return s.channels }
