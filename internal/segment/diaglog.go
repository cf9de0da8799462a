package segment

import (
	"sync"
	"time"
)

// DefaultDiagnosticCapacity is the number of entries the diagnostic log
// retains before evicting the oldest.
const DefaultDiagnosticCapacity = 60

// DiagnosticEntry is one recorded pipeline event.
type DiagnosticEntry struct {
	Timestamp time.Time
	Name      string
	Metadata  map[string]string

	// IsButtonLike marks transitions attributed to a device-side user
	// gesture rather than an app-initiated call.
	IsButtonLike bool

	// IsManualMarker marks entries recorded explicitly by the user.
	IsManualMarker bool
}

// DiagnosticLog is a fixed-capacity, most-recent-first buffer of pipeline
// events. It is purely observational and never gates pipeline behavior.
type DiagnosticLog struct {
	mu      sync.Mutex
	entries []DiagnosticEntry
	next    int
	count   int
}

// NewDiagnosticLog creates a DiagnosticLog. A non-positive capacity selects
// DefaultDiagnosticCapacity.
func NewDiagnosticLog(capacity int) *DiagnosticLog {
	if capacity <= 0 {
		capacity = DefaultDiagnosticCapacity
	}
	return &DiagnosticLog{entries: make([]DiagnosticEntry, capacity)}
}

// Record inserts an entry, evicting the oldest once capacity is exceeded.
func (l *DiagnosticLog) Record(e DiagnosticEntry) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[l.next] = e
	l.next = (l.next + 1) % len(l.entries)
	if l.count < len(l.entries) {
		l.count++
	}
}

// Recent returns the retained entries, most recent first.
func (l *DiagnosticLog) Recent() []DiagnosticEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]DiagnosticEntry, 0, l.count)
	idx := l.next - 1
	for i := 0; i < l.count; i++ {
		if idx < 0 {
			idx = len(l.entries) - 1
		}
		out = append(out, l.entries[idx])
		idx--
	}
	return out
}

// Len reports the number of retained entries.
func (l *DiagnosticLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}
