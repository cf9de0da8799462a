package segment

import (
	"strconv"
	"testing"
	"time"
)

func TestDiagnosticLogEviction(t *testing.T) {
	l := NewDiagnosticLog(3)
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		l.Record(DiagnosticEntry{
			Timestamp: base.Add(time.Duration(i) * time.Second),
			Name:      "event-" + strconv.Itoa(i),
		})
	}

	if l.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", l.Len())
	}

	got := l.Recent()
	want := []string{"event-4", "event-3", "event-2"}
	if len(got) != len(want) {
		t.Fatalf("Recent() returned %d entries, want %d", len(got), len(want))
	}
	for i, name := range want {
		if got[i].Name != name {
			t.Errorf("Recent()[%d].Name = %q, want %q", i, got[i].Name, name)
		}
	}
}

func TestDiagnosticLogPartiallyFilled(t *testing.T) {
	l := NewDiagnosticLog(10)
	l.Record(DiagnosticEntry{Name: "first"})
	l.Record(DiagnosticEntry{Name: "second"})

	got := l.Recent()
	if len(got) != 2 {
		t.Fatalf("Recent() returned %d entries, want 2", len(got))
	}
	if got[0].Name != "second" || got[1].Name != "first" {
		t.Errorf("Recent() order = [%s, %s], want [second, first]", got[0].Name, got[1].Name)
	}
}

func TestDiagnosticLogDefaultTimestamp(t *testing.T) {
	l := NewDiagnosticLog(0)
	l.Record(DiagnosticEntry{Name: "untimed"})
	if got := l.Recent(); got[0].Timestamp.IsZero() {
		t.Error("Record should fill a zero timestamp")
	}
}
