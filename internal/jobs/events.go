// Package jobs carries sequenced progress events from background
// workflow operations to UI subscribers.
package jobs

import (
	"sync"
	"time"
)

// EventType classifies messages emitted while a run is in flight.
type EventType string

const (
	EventTypeStatus   EventType = "status"
	EventTypeProgress EventType = "progress"
	EventTypeResult   EventType = "result"
	EventTypeError    EventType = "error"
)

// Event is a sequenced payload consumed by the frontend.
type Event struct {
	Seq            int64     `json:"seq"`
	Timestamp      time.Time `json:"timestamp"`
	RunID          string    `json:"runId"`
	Type           EventType `json:"type"`
	Step           int       `json:"step,omitempty"`
	Message        string    `json:"message,omitempty"`
	Attempt        int       `json:"attempt,omitempty"`
	DownloadURL    string    `json:"downloadUrl,omitempty"`
	OutputFilename string    `json:"outputFilename,omitempty"`
}

// EventBus keeps a bounded history of events and supports incremental
// reads so the frontend can catch up after a missed push.
type EventBus struct {
	mu      sync.RWMutex
	nextSeq int64
	limit   int
	history []Event
}

// NewEventBus creates a bounded in-memory event buffer.
func NewEventBus(limit int) *EventBus {
	if limit <= 0 {
		limit = 500
	}
	return &EventBus{
		limit:   limit,
		history: make([]Event, 0, limit),
	}
}

// Publish stamps the event with the next sequence number and appends it,
// evicting the oldest entries past the history limit.
func (b *EventBus) Publish(event Event) Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextSeq++
	event.Seq = b.nextSeq
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	b.history = append(b.history, event)
	if excess := len(b.history) - b.limit; excess > 0 {
		b.history = append([]Event(nil), b.history[excess:]...)
	}

	return event
}

// Since returns events with sequence strictly greater than seq.
func (b *EventBus) Since(seq int64) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.history) == 0 {
		return nil
	}

	out := make([]Event, 0, len(b.history))
	for _, event := range b.history {
		if event.Seq > seq {
			out = append(out, event)
		}
	}
	return out
}
