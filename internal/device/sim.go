package device

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Simulator is an in-process Provider used by the daemon's --simulate mode
// and by tests. It produces synthetic JPEG frames at a fixed interval while
// streaming, and honours Pause/Resume so segment boundaries can be driven
// without camera hardware.
type Simulator struct {
	mu     sync.Mutex
	state  SessionState
	states []chan SessionState
	frames []chan Frame
	photos []chan Photo

	frameInterval time.Duration
	frameData     []byte
	stopTicker    chan struct{}
}

// NewSimulator creates a Simulator emitting one synthetic frame per interval
// while the session is streaming.
func NewSimulator(frameInterval time.Duration) *Simulator {
	return &Simulator{
		state:         StateStopped,
		frameInterval: frameInterval,
		frameData:     syntheticJPEG(),
	}
}

// States implements Provider.
func (s *Simulator) States(ctx context.Context) <-chan SessionState {
	ch := make(chan SessionState, 16)
	s.mu.Lock()
	s.states = append(s.states, ch)
	s.mu.Unlock()
	go s.closeOnDone(ctx, func() { s.dropState(ch) })
	return ch
}

// Frames implements Provider.
func (s *Simulator) Frames(ctx context.Context) <-chan Frame {
	ch := make(chan Frame, 16)
	s.mu.Lock()
	s.frames = append(s.frames, ch)
	s.mu.Unlock()
	go s.closeOnDone(ctx, func() { s.dropFrame(ch) })
	return ch
}

// Photos implements Provider.
func (s *Simulator) Photos(ctx context.Context) <-chan Photo {
	ch := make(chan Photo, 4)
	s.mu.Lock()
	s.photos = append(s.photos, ch)
	s.mu.Unlock()
	go s.closeOnDone(ctx, func() { s.dropPhoto(ch) })
	return ch
}

// Start implements Provider. The simulated device connects immediately and
// comes up paused; callers drive capture windows via Resume/Pause.
func (s *Simulator) Start(ctx context.Context) error {
	s.setState(StateStarting)
	s.setState(StateWaitingForDevice)
	s.setState(StatePaused)
	return nil
}

// Stop implements Provider.
func (s *Simulator) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.stopTicker != nil {
		close(s.stopTicker)
		s.stopTicker = nil
	}
	s.mu.Unlock()
	s.setState(StateStopping)
	s.setState(StateStopped)
	return nil
}

// Resume moves the simulated session into Streaming and starts frame delivery.
func (s *Simulator) Resume() {
	s.mu.Lock()
	if s.state == StateStreaming {
		s.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	s.stopTicker = stop
	s.mu.Unlock()

	s.setState(StateStreaming)
	go s.deliverFrames(stop)
}

// Pause moves the simulated session back to Paused and stops frame delivery.
func (s *Simulator) Pause() {
	s.mu.Lock()
	if s.stopTicker != nil {
		close(s.stopTicker)
		s.stopTicker = nil
	}
	s.mu.Unlock()
	s.setState(StatePaused)
}

// Disconnect simulates the device dropping the session without a clean stop.
func (s *Simulator) Disconnect() {
	s.mu.Lock()
	if s.stopTicker != nil {
		close(s.stopTicker)
		s.stopTicker = nil
	}
	s.mu.Unlock()
	s.setState(StateWaitingForDevice)
}

// RequestPhotoCapture implements Provider. The simulator always accepts and
// delivers a synthetic photo shortly after.
func (s *Simulator) RequestPhotoCapture(ctx context.Context, format string) (bool, error) {
	go func() {
		time.Sleep(10 * time.Millisecond)
		p := Photo{Data: syntheticJPEG(), Format: format, CapturedAt: time.Now()}
		s.mu.Lock()
		for _, ch := range s.photos {
			select {
			case ch <- p:
			default:
				log.Warn().Msg("Simulator photo subscriber full, dropping photo")
			}
		}
		s.mu.Unlock()
	}()
	return true, nil
}

func (s *Simulator) deliverFrames(stop chan struct{}) {
	ticker := time.NewTicker(s.frameInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case t := <-ticker.C:
			f := Frame{Data: s.frameData, MIMEType: "image/jpeg", ReceivedAt: t}
			s.mu.Lock()
			for _, ch := range s.frames {
				select {
				case ch <- f:
				default:
				}
			}
			s.mu.Unlock()
		}
	}
}

func (s *Simulator) setState(state SessionState) {
	s.mu.Lock()
	s.state = state
	subs := make([]chan SessionState, len(s.states))
	copy(subs, s.states)
	s.mu.Unlock()
	for _, ch := range subs {
		select {
		case ch <- state:
		default:
			log.Warn().Stringer("state", state).Msg("Simulator state subscriber full, dropping transition")
		}
	}
}

func (s *Simulator) closeOnDone(ctx context.Context, drop func()) {
	<-ctx.Done()
	drop()
}

func (s *Simulator) dropState(ch chan SessionState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, c := range s.states {
		if c == ch {
			s.states = append(s.states[:i], s.states[i+1:]...)
			close(c)
			return
		}
	}
}

func (s *Simulator) dropFrame(ch chan Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, c := range s.frames {
		if c == ch {
			s.frames = append(s.frames[:i], s.frames[i+1:]...)
			close(c)
			return
		}
	}
}

func (s *Simulator) dropPhoto(ch chan Photo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, c := range s.photos {
		if c == ch {
			s.photos = append(s.photos[:i], s.photos[i+1:]...)
			close(c)
			return
		}
	}
}

// syntheticJPEG encodes a small solid-colour JPEG used as the simulated
// frame and photo payload.
func syntheticJPEG() []byte {
	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			img.Set(x, y, color.RGBA{R: 0x5a, G: 0x7a, B: 0x9a, A: 0xff})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 70}); err != nil {
		// Encoding a fixed in-memory image cannot fail in practice.
		return nil
	}
	return buf.Bytes()
}
