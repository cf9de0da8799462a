package store

import (
	"testing"
	"time"
)

func TestEventKeys(t *testing.T) {
	ts := time.Date(2026, 3, 10, 14, 30, 5, 0, time.UTC)
	ev := &ActivityEvent{ID: "ev-1", Timestamp: ts}

	if got, want := eventPK(ts), "DAY#2026-03-10"; got != want {
		t.Errorf("eventPK = %q, want %q", got, want)
	}
	if got, want := eventSK(ev), "EVENT#2026-03-10T14:30:05Z#ev-1"; got != want {
		t.Errorf("eventSK = %q, want %q", got, want)
	}
}

func TestEventSKOrdersByTimestamp(t *testing.T) {
	earlier := &ActivityEvent{ID: "z", Timestamp: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)}
	later := &ActivityEvent{ID: "a", Timestamp: time.Date(2026, 3, 10, 17, 0, 0, 0, time.UTC)}

	if eventSK(earlier) >= eventSK(later) {
		t.Errorf("sort keys must order by timestamp: %q vs %q", eventSK(earlier), eventSK(later))
	}
}
