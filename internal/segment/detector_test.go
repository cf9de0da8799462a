package segment

import (
	"testing"
	"time"

	"github.com/fpang/carelog/internal/device"
)

func TestDetectorSignals(t *testing.T) {
	tests := []struct {
		name   string
		states []device.SessionState
		want   []Signal
	}{
		{
			name:   "pause to streaming begins",
			states: []device.SessionState{device.StatePaused, device.StateStreaming},
			want:   []Signal{SignalNone, SignalBegin},
		},
		{
			name:   "streaming to pause ends",
			states: []device.SessionState{device.StatePaused, device.StateStreaming, device.StatePaused},
			want:   []Signal{SignalNone, SignalBegin, SignalEnd},
		},
		{
			name: "startup sequence emits nothing",
			states: []device.SessionState{
				device.StateStopped, device.StateStarting, device.StateWaitingForDevice,
			},
			want: []Signal{SignalNone, SignalNone, SignalNone},
		},
		{
			name:   "stop during streaming is not an end",
			states: []device.SessionState{device.StatePaused, device.StateStreaming, device.StateStopped},
			want:   []Signal{SignalNone, SignalBegin, SignalNone},
		},
		{
			name: "two capture windows",
			states: []device.SessionState{
				device.StatePaused, device.StateStreaming, device.StatePaused,
				device.StateStreaming, device.StatePaused,
			},
			want: []Signal{SignalNone, SignalBegin, SignalEnd, SignalBegin, SignalEnd},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDetector(0)
			at := time.Now()
			for i, st := range tt.states {
				tr := d.Observe(st, at)
				if tr.Signal != tt.want[i] {
					t.Errorf("state %d (%s): signal = %v, want %v", i, st, tr.Signal, tt.want[i])
				}
			}
		})
	}
}

func TestDetectorUserGesture(t *testing.T) {
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	d := NewDetector(2 * time.Second)
	d.Observe(device.StatePaused, base)
	d.Observe(device.StateStreaming, base)

	// Pause shortly after an app-initiated command: attributed to the app.
	d.NoteAppCommand(base.Add(5 * time.Second))
	tr := d.Observe(device.StatePaused, base.Add(6*time.Second))
	if tr.UserGesture {
		t.Error("pause within cooldown of app command should not be a user gesture")
	}

	d.Observe(device.StateStreaming, base.Add(10*time.Second))

	// Pause long after the last app command: a device-side gesture.
	tr = d.Observe(device.StatePaused, base.Add(30*time.Second))
	if !tr.UserGesture {
		t.Error("pause outside cooldown should be a user gesture")
	}
}

func TestDetectorNoAppCommandIsGesture(t *testing.T) {
	base := time.Now()
	d := NewDetector(0)
	d.Observe(device.StatePaused, base)
	d.Observe(device.StateStreaming, base)

	tr := d.Observe(device.StateStopped, base.Add(time.Second))
	if !tr.UserGesture {
		t.Error("stop with no prior app command should be a user gesture")
	}
}
