// Package realtimetest provides a Publisher that records events for assertions.
package realtimetest

import (
	"encoding/json"
	"sync"
)

// Event is one recorded publication. Data holds the payload re-decoded from JSON
// so tests see exactly what a client would.
type Event struct {
	Room  string
	Event string
	Data  map[string]any
}

// Recorder implements realtime.Publisher.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(room, event string, data any) {
	var decoded map[string]any
	if raw, err := json.Marshal(data); err == nil {
		_ = json.Unmarshal(raw, &decoded)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Event{Room: room, Event: event, Data: decoded})
}

// Events returns a copy of everything published so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Named returns the recorded events with the given name.
func (r *Recorder) Named(event string) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

// Reset discards recorded events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
