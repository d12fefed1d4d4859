// Package events carries run-loop transitions to the caller as an ordered stream.
package events

import (
	"context"
	"errors"
	"sync"

	"github.com/h4d-assistant/book-chat/internal/model"
)

// ErrStreamClosed is returned when emitting after the terminal event.
var ErrStreamClosed = errors.New("event stream already terminated")

// Emitter accepts events in the order they occur.
type Emitter interface {
	Emit(ctx context.Context, ev model.Event) error
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(ctx context.Context, ev model.Event) error

// Emit calls f.
func (f EmitterFunc) Emit(ctx context.Context, ev model.Event) error {
	return f(ctx, ev)
}

// Stream forwards events to a sink and closes itself after the first final or error event.
type Stream struct {
	sink Emitter

	mu       sync.Mutex
	terminal *model.Event
}

// NewStream wraps sink.
func NewStream(sink Emitter) *Stream {
	return &Stream{sink: sink}
}

// Emit forwards ev unless the stream already terminated.
func (s *Stream) Emit(ctx context.Context, ev model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.terminal != nil {
		return ErrStreamClosed
	}
	if ev.Type.Terminal() {
		s.terminal = &ev
	}
	return s.sink.Emit(ctx, ev)
}

// Terminated reports whether a terminal event has been emitted.
func (s *Stream) Terminated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.terminal != nil
}

// Terminal returns the terminal event, if any.
func (s *Stream) Terminal() (model.Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.terminal == nil {
		return model.Event{}, false
	}
	return *s.terminal, true
}

// Recorder keeps emitted events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []model.Event
}

// Emit appends ev.
func (r *Recorder) Emit(_ context.Context, ev model.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

// Events returns a copy of what was recorded.
func (r *Recorder) Events() []model.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Event, len(r.events))
	copy(out, r.events)
	return out
}

// Types returns the recorded event types in order.
func (r *Recorder) Types() []model.EventType {
	evs := r.Events()
	out := make([]model.EventType, len(evs))
	for i, ev := range evs {
		out[i] = ev.Type
	}
	return out
}
