package segment

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// EventType identifies a pipeline event broadcast to subscribers.
type EventType string

const (
	EventSegmentStarted   EventType = "segmentStarted"
	EventSegmentFinalized EventType = "segmentFinalized"
	EventSegmentCancelled EventType = "segmentCancelled"
	EventSegmentAbandoned EventType = "segmentAbandoned"
	EventSegmentFailed    EventType = "segmentFailed"
	EventPhotoCaptured    EventType = "photoCaptured"
	EventStateChanged     EventType = "stateChanged"
)

// Event is one typed pipeline event. Fields carries event-specific context
// (segment id, frame count, error text) as strings for display and logging.
type Event struct {
	Type      EventType
	At        time.Time
	SegmentID string
	Fields    map[string]string
}

// Broadcaster fans events out to any number of subscribers. Publishing never
// blocks: a subscriber that falls behind misses events rather than stalling
// the pipeline.
type Broadcaster struct {
	mu   sync.Mutex
	subs map[int]chan Event
	next int
}

// NewBroadcaster creates an empty Broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[int]chan Event)}
}

// Subscribe registers a new subscriber and returns its channel plus a cancel
// function that unregisters and closes it.
func (b *Broadcaster) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	ch := make(chan Event, 32)
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if c, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(c)
		}
	}
	return ch, cancel
}

// Publish delivers the event to every subscriber that has buffer room.
func (b *Broadcaster) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			log.Debug().Str("type", string(ev.Type)).Msg("Event subscriber full, dropping event")
		}
	}
}
