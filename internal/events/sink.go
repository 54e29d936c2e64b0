package events

import (
	"context"
	"log/slog"
	"sync"
)

// Sink receives events as they happen. Emit is called synchronously from the
// goroutine that produced the event and must not block for long.
type Sink interface {
	Emit(event *RegistryEvent)
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(event *RegistryEvent)

// Emit calls f(event).
func (f SinkFunc) Emit(event *RegistryEvent) {
	f(event)
}

// Discard drops every event.
var Discard Sink = SinkFunc(func(*RegistryEvent) {})

// Recorder is a Sink that keeps every event in memory. It is safe for
// concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []*RegistryEvent
}

// Emit appends event.
func (r *Recorder) Emit(event *RegistryEvent) {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
}

// Events returns a copy of the recorded events in emission order.
func (r *Recorder) Events() []*RegistryEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*RegistryEvent, len(r.events))
	copy(out, r.events)
	return out
}

// OfType returns the recorded events of type t.
func (r *Recorder) OfType(t EventType) []*RegistryEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*RegistryEvent
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// Reset drops all recorded events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}

// StoreSink writes events to an EventStore, logging failures instead of
// returning them. BuildID is stamped on events that have none.
type StoreSink struct {
	Store   EventStore
	BuildID string
	Logger  *slog.Logger
}

// Emit stores event.
func (s *StoreSink) Emit(event *RegistryEvent) {
	if event.BuildID == "" {
		event.BuildID = s.BuildID
	}
	if err := s.Store.StoreEvent(context.Background(), event); err != nil {
		logger := s.Logger
		if logger == nil {
			logger = slog.Default()
		}
		logger.Warn("failed to store event", "type", event.Type, "error", err)
	}
}

// Multi fans events out to every sink in order.
func Multi(sinks ...Sink) Sink {
	return SinkFunc(func(event *RegistryEvent) {
		for _, s := range sinks {
			s.Emit(event)
		}
	})
}
