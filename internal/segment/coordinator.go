package segment

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/fpang/carelog/internal/capture"
	"github.com/fpang/carelog/internal/device"
	"github.com/fpang/carelog/internal/recorder"
)

// FrameSink is the frame recorder surface the coordinator drives. Satisfied
// by recorder.FrameRecorder.
type FrameSink interface {
	Open(id string, startedAt time.Time) error
	Append(id string, frame []byte)
	Close(id string, endedAt time.Time) *recorder.ClosedSegment
	Finalize(closed *recorder.ClosedSegment, audio recorder.AudioMetadata) (*recorder.PersistedSegment, error)
	Discard(id string)
}

// AudioSink is the audio recorder surface the coordinator drives. Satisfied
// by recorder.AudioRecorder.
type AudioSink interface {
	Start(ctx context.Context, id string) (string, error)
	Stop(id string) recorder.AudioMetadata
	Discard(id string)
}

// CaptureHandler receives each inference-ready envelope the coordinator
// produces (finalized segments and captured photos).
type CaptureHandler func(ctx context.Context, env *capture.Envelope)

// Config assembles a Coordinator.
type Config struct {
	Frames  FrameSink
	Audio   AudioSink
	Handler CaptureHandler

	// PhotoDir is where photo payloads are persisted before envelope build.
	PhotoDir string

	// Bus and Diag are optional; nil values are replaced with fresh instances.
	Bus  *Broadcaster
	Diag *DiagnosticLog

	// GestureCooldown tunes the detector; zero selects the default.
	GestureCooldown time.Duration

	// Now and NewID exist for tests; nil selects time.Now and uuid.NewString.
	Now   func() time.Time
	NewID func() string
}

// Coordinator is the state machine tying boundary detection to the frame and
// audio recorders: it opens a segment on a begin signal, closes and finalizes
// on an end signal, and supports out-of-band cancellation, including a cancel
// racing an in-flight finalize. At most one segment is active at a time.
type Coordinator struct {
	frames   FrameSink
	audio    AudioSink
	handler  CaptureHandler
	photoDir string
	bus      *Broadcaster
	diag     *DiagnosticLog
	now      func() time.Time
	newID    func() string

	detMu    sync.Mutex
	detector *Detector

	mu         sync.Mutex
	active     *activeSegment
	finalizing map[string]bool
	cancelled  map[string]bool

	wg sync.WaitGroup
}

type activeSegment struct {
	id        string
	startedAt time.Time
}

// NewCoordinator creates a Coordinator in the Idle state.
func NewCoordinator(cfg Config) *Coordinator {
	if cfg.Bus == nil {
		cfg.Bus = NewBroadcaster()
	}
	if cfg.Diag == nil {
		cfg.Diag = NewDiagnosticLog(0)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}
	return &Coordinator{
		frames:     cfg.Frames,
		audio:      cfg.Audio,
		handler:    cfg.Handler,
		photoDir:   cfg.PhotoDir,
		bus:        cfg.Bus,
		diag:       cfg.Diag,
		now:        cfg.Now,
		newID:      cfg.NewID,
		detector:   NewDetector(cfg.GestureCooldown),
		finalizing: make(map[string]bool),
		cancelled:  make(map[string]bool),
	}
}

// Events returns the coordinator's broadcaster for subscribers.
func (c *Coordinator) Events() *Broadcaster { return c.bus }

// Diagnostics returns the coordinator's diagnostic log.
func (c *Coordinator) Diagnostics() *DiagnosticLog { return c.diag }

// ActiveID returns the id of the active segment, or "" when idle.
func (c *Coordinator) ActiveID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return ""
	}
	return c.active.id
}

// NoteAppCommand records an app-initiated start/stop call for gesture
// classification.
func (c *Coordinator) NoteAppCommand() {
	c.detMu.Lock()
	defer c.detMu.Unlock()
	c.detector.NoteAppCommand(c.now())
}

// Observe consumes the next session-state value. State values must arrive
// one at a time, in order; Run enforces this by consuming the provider's
// state channel from a single goroutine.
func (c *Coordinator) Observe(ctx context.Context, state device.SessionState) {
	c.detMu.Lock()
	tr := c.detector.Observe(state, c.now())
	c.detMu.Unlock()

	c.diag.Record(DiagnosticEntry{
		Timestamp: tr.At,
		Name:      "stateChanged",
		Metadata: map[string]string{
			"from": tr.From.String(),
			"to":   tr.To.String(),
		},
		IsButtonLike: tr.UserGesture,
	})
	c.bus.Publish(Event{Type: EventStateChanged, At: tr.At, Fields: map[string]string{
		"from": tr.From.String(),
		"to":   tr.To.String(),
	}})

	switch tr.Signal {
	case SignalBegin:
		c.Begin(ctx)
	case SignalEnd:
		c.End(ctx)
	default:
		// A session reset while a segment is recording cannot produce a clean
		// end signal; the segment is abandoned.
		if c.ActiveID() != "" &&
			(state == device.StateStopped || state == device.StateStopping || state == device.StateWaitingForDevice) {
			c.AbandonActive("session reset: " + state.String())
		}
	}
}

// Begin opens a new segment. A begin while a segment is already active is a
// no-op. A recorder open failure aborts only this segment; the coordinator
// stays idle and awaits the next begin signal.
func (c *Coordinator) Begin(ctx context.Context) {
	c.mu.Lock()
	if c.active != nil {
		id := c.active.id
		c.mu.Unlock()
		log.Debug().Str("segmentId", id).Msg("Begin while segment active, ignoring")
		return
	}

	id := c.newID()
	startedAt := c.now()

	if err := c.frames.Open(id, startedAt); err != nil {
		c.mu.Unlock()
		log.Error().Err(err).Str("segmentId", id).Msg("Failed to open segment")
		c.diag.Record(DiagnosticEntry{
			Name:     "segmentOpenFailed",
			Metadata: map[string]string{"segmentId": id, "error": err.Error()},
		})
		c.bus.Publish(Event{Type: EventSegmentFailed, SegmentID: id, Fields: map[string]string{"error": err.Error()}})
		return
	}

	c.active = &activeSegment{id: id, startedAt: startedAt}
	c.mu.Unlock()

	// Audio is best effort: a start failure (device busy, permission denied)
	// suppresses audio inclusion but never aborts the segment.
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		route, err := c.audio.Start(ctx, id)
		if err != nil {
			log.Warn().Err(err).Str("segmentId", id).Msg("Audio start failed, segment continues without audio")
			c.diag.Record(DiagnosticEntry{
				Name:     "audioStartFailed",
				Metadata: map[string]string{"segmentId": id, "error": err.Error()},
			})
			return
		}
		// A very short segment can end before the source comes up; its Stop
		// already ran and returned not_recording, so a capture left running
		// here would never be stopped and would block every later segment's
		// audio start.
		if c.ActiveID() != id {
			c.audio.Discard(id)
			log.Debug().Str("segmentId", id).Msg("Audio came up after segment ended, discarding")
			return
		}
		log.Debug().Str("segmentId", id).Str("route", route).Msg("Audio recording for segment")
	}()

	log.Info().Str("segmentId", id).Msg("Segment started")
	c.bus.Publish(Event{Type: EventSegmentStarted, SegmentID: id})
}

// End closes the active segment: it detaches the segment from the frame
// recorder and stops the audio recorder synchronously, then writes the
// manifest asynchronously from the detached snapshot. Because the recorder's
// open slot is released before End returns, a begin signal arriving while
// the manifest write is still in flight opens the next segment normally.
// An end while idle is a no-op.
func (c *Coordinator) End(ctx context.Context) {
	c.mu.Lock()
	if c.active == nil {
		c.mu.Unlock()
		return
	}
	seg := c.active
	c.active = nil
	c.finalizing[seg.id] = true
	c.mu.Unlock()

	endedAt := c.now()
	closed := c.frames.Close(seg.id, endedAt)
	audioMeta := c.audio.Stop(seg.id)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.finalize(ctx, seg.id, closed, audioMeta)
	}()
}

func (c *Coordinator) finalize(ctx context.Context, id string, closed *recorder.ClosedSegment, audioMeta recorder.AudioMetadata) {
	var ps *recorder.PersistedSegment
	var err error
	if closed != nil {
		ps, err = c.frames.Finalize(closed, audioMeta)
	}

	c.mu.Lock()
	delete(c.finalizing, id)
	wasCancelled := c.cancelled[id]
	delete(c.cancelled, id)
	c.mu.Unlock()

	if err != nil {
		log.Error().Err(err).Str("segmentId", id).Msg("Segment finalize failed")
		c.frames.Discard(id)
		c.diag.Record(DiagnosticEntry{
			Name:     "segmentFinalizeFailed",
			Metadata: map[string]string{"segmentId": id, "error": err.Error()},
		})
		c.bus.Publish(Event{Type: EventSegmentFailed, SegmentID: id, Fields: map[string]string{"error": err.Error()}})
		return
	}
	if ps == nil {
		// A cancel raced in before the close and already discarded resources.
		log.Debug().Str("segmentId", id).Msg("Close found no open segment, treating end as no-op")
		return
	}

	if wasCancelled {
		// The cancel lost the race against finalize: delete the just-written
		// artifacts instead of forwarding them.
		c.frames.Discard(id)
		log.Info().Str("segmentId", id).Msg("Cancelled segment artifacts deleted after finalize")
		c.diag.Record(DiagnosticEntry{
			Name:     "segmentCancelledAfterFinalize",
			Metadata: map[string]string{"segmentId": id},
		})
		c.bus.Publish(Event{Type: EventSegmentCancelled, SegmentID: id})
		return
	}

	c.diag.Record(DiagnosticEntry{
		Name: "segmentFinalized",
		Metadata: map[string]string{
			"segmentId":  id,
			"frameCount": strconv.Itoa(ps.FrameCount),
		},
	})
	c.bus.Publish(Event{Type: EventSegmentFinalized, SegmentID: id, Fields: map[string]string{
		"frameCount": strconv.Itoa(ps.FrameCount),
	}})

	env := capture.FromSegment(ps, audioMeta)
	if c.handler != nil {
		c.handler(ctx, env)
	}
}

// Cancel discards the segment with the given id. A cancel for an id that is
// neither active nor finalizing is a no-op. A cancel while that id's
// finalize is in flight marks it so the finalize result is deleted instead
// of forwarded.
func (c *Coordinator) Cancel(id string) {
	c.mu.Lock()
	if c.active != nil && c.active.id == id {
		c.active = nil
		c.mu.Unlock()

		c.frames.Discard(id)
		c.audio.Discard(id)
		log.Info().Str("segmentId", id).Msg("Segment cancelled")
		c.diag.Record(DiagnosticEntry{
			Name:     "segmentCancelled",
			Metadata: map[string]string{"segmentId": id},
		})
		c.bus.Publish(Event{Type: EventSegmentCancelled, SegmentID: id})
		return
	}
	if c.finalizing[id] {
		c.cancelled[id] = true
		c.mu.Unlock()
		log.Debug().Str("segmentId", id).Msg("Cancel recorded for in-flight finalize")
		return
	}
	c.mu.Unlock()
}

// AbandonActive cancels the current segment, if any, noting the reason in
// diagnostics. Used when the underlying session shuts down unexpectedly.
func (c *Coordinator) AbandonActive(reason string) {
	c.mu.Lock()
	if c.active == nil {
		c.mu.Unlock()
		return
	}
	id := c.active.id
	c.active = nil
	c.mu.Unlock()

	c.frames.Discard(id)
	c.audio.Discard(id)
	log.Warn().Str("segmentId", id).Str("reason", reason).Msg("Segment abandoned")
	c.diag.Record(DiagnosticEntry{
		Name:     "segmentAbandoned",
		Metadata: map[string]string{"segmentId": id, "reason": reason},
	})
	c.bus.Publish(Event{Type: EventSegmentAbandoned, SegmentID: id, Fields: map[string]string{"reason": reason}})
}

// HandleFrame appends a frame to the active segment. Frames arriving while
// idle, or for a segment that has since ended, are dropped by the recorder's
// id check.
func (c *Coordinator) HandleFrame(frame device.Frame) {
	id := c.ActiveID()
	if id == "" {
		return
	}
	c.frames.Append(id, frame.Data)
}

// HandlePhoto persists a photo payload, builds its envelope, and hands it to
// the capture handler.
func (c *Coordinator) HandlePhoto(ctx context.Context, photo device.Photo) {
	env, err := capture.FromPhoto(photo.Data, photo.Format, photo.CapturedAt, c.photoDir)
	if err != nil {
		log.Error().Err(err).Msg("Failed to build photo envelope")
		c.diag.Record(DiagnosticEntry{
			Name:     "photoFailed",
			Metadata: map[string]string{"error": err.Error()},
		})
		return
	}

	log.Info().Str("captureId", env.ID).Msg("Photo captured")
	c.diag.Record(DiagnosticEntry{
		Name:     "photoCaptured",
		Metadata: map[string]string{"captureId": env.ID},
	})
	c.bus.Publish(Event{Type: EventPhotoCaptured, Fields: map[string]string{"captureId": env.ID}})

	if c.handler != nil {
		c.handler(ctx, env)
	}
}

// Run consumes the provider's state, frame, and photo sequences until ctx is
// cancelled. State values are processed one at a time in arrival order;
// frames and photos are consumed from their own goroutines and serialize
// against segment state inside the recorders.
func (c *Coordinator) Run(ctx context.Context, provider device.Provider) {
	states := provider.States(ctx)
	frames := provider.Frames(ctx)
	photos := provider.Photos(ctx)

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for frame := range frames {
			c.HandleFrame(frame)
		}
	}()

	go func() {
		defer wg.Done()
		for photo := range photos {
			c.HandlePhoto(ctx, photo)
		}
	}()

	for state := range states {
		c.Observe(ctx, state)
	}

	c.AbandonActive("session stream closed")
	wg.Wait()
	c.wg.Wait()
}

// Wait blocks until all in-flight finalize work has completed.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}
