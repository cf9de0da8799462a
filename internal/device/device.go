// Package device defines the boundary to the wearable camera session. The
// pipeline consumes session-state transitions, video frames, and photo
// payloads from a Provider; the provider's pairing, permission, and
// registration flow lives behind this interface and is not this module's
// concern.
package device

import (
	"context"
	"time"
)

// SessionState is the device-driven streaming state. The pipeline never
// commands a transition directly, only requests start/stop; the device
// reports the resulting states asynchronously.
type SessionState int

const (
	StateStopped SessionState = iota
	StateStarting
	StateWaitingForDevice
	StateStreaming
	StatePaused
	StateStopping
)

// String returns the lowercase state name used in logs and diagnostics.
func (s SessionState) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateWaitingForDevice:
		return "waitingForDevice"
	case StateStreaming:
		return "streaming"
	case StatePaused:
		return "paused"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Frame is one raw video frame payload delivered by the device.
type Frame struct {
	Data       []byte
	MIMEType   string
	ReceivedAt time.Time
}

// Photo is one raw still-photo payload delivered by the device after a
// RequestPhotoCapture call is accepted.
type Photo struct {
	Data       []byte
	Format     string
	CapturedAt time.Time
}

// Provider is the device session boundary. States, Frames, and Photos are
// lazy, effectively unbounded sequences: the returned channels stay open for
// the life of the subscription and close only when ctx is cancelled or the
// provider shuts down. Re-calling a method re-subscribes.
type Provider interface {
	// States delivers session-state values in arrival order.
	States(ctx context.Context) <-chan SessionState

	// Frames delivers raw video frames while the device is streaming.
	Frames(ctx context.Context) <-chan Frame

	// Photos delivers still photos captured via RequestPhotoCapture.
	Photos(ctx context.Context) <-chan Photo

	// Start asks the device to begin a streaming session.
	Start(ctx context.Context) error

	// Stop asks the device to end the streaming session.
	Stop(ctx context.Context) error

	// RequestPhotoCapture asks the device to take a still photo in the given
	// format (e.g. "jpeg"). The returned bool reports whether the device
	// accepted the request; the photo itself arrives later via Photos.
	RequestPhotoCapture(ctx context.Context, format string) (bool, error)
}
