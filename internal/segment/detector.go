// Package segment turns device session-state transitions into capture
// segments: it detects segment boundaries, coordinates the frame and audio
// recorders over one segment lifecycle at a time, and broadcasts typed
// pipeline events to any number of subscribers.
package segment

import (
	"time"

	"github.com/fpang/carelog/internal/device"
)

// DefaultGestureCooldown is the window after an app-initiated start/stop
// call during which a pause/stop transition is attributed to the app rather
// than a device-side user gesture.
const DefaultGestureCooldown = 2 * time.Second

// Signal is the segmentation outcome of one state transition.
type Signal int

const (
	SignalNone Signal = iota
	SignalBegin
	SignalEnd
)

// Transition is one normalized session-state transition with its derived
// segmentation signal.
type Transition struct {
	From device.SessionState
	To   device.SessionState
	At   time.Time

	Signal Signal

	// UserGesture marks a streaming pause/stop that was not preceded by an
	// app-initiated start/stop call within the cooldown window. Diagnostic
	// only; segmentation never depends on it.
	UserGesture bool
}

// Detector derives segment begin/end signals from the raw state sequence.
// It keeps the previously observed state and must be fed transitions in
// arrival order, one at a time.
type Detector struct {
	prev     device.SessionState
	havePrev bool

	lastAppCommand time.Time
	cooldown       time.Duration
}

// NewDetector creates a Detector. A zero cooldown selects
// DefaultGestureCooldown.
func NewDetector(cooldown time.Duration) *Detector {
	if cooldown <= 0 {
		cooldown = DefaultGestureCooldown
	}
	return &Detector{cooldown: cooldown}
}

// NoteAppCommand records an app-initiated start/stop call so transitions
// that closely follow it are not classified as user gestures.
func (d *Detector) NoteAppCommand(at time.Time) {
	d.lastAppCommand = at
}

// Observe consumes the next session-state value and returns the transition
// with its segmentation signal. A segment begins on Paused→Streaming and
// ends on Streaming→Paused; every other transition is ignored for
// segmentation purposes.
func (d *Detector) Observe(state device.SessionState, at time.Time) Transition {
	tr := Transition{From: d.prev, To: state, At: at}
	if !d.havePrev {
		d.prev = state
		d.havePrev = true
		return tr
	}

	switch {
	case d.prev == device.StatePaused && state == device.StateStreaming:
		tr.Signal = SignalBegin
	case d.prev == device.StateStreaming && state == device.StatePaused:
		tr.Signal = SignalEnd
	}

	if d.prev == device.StateStreaming &&
		(state == device.StatePaused || state == device.StateStopped) {
		tr.UserGesture = d.lastAppCommand.IsZero() || at.Sub(d.lastAppCommand) > d.cooldown
	}

	d.prev = state
	return tr
}
