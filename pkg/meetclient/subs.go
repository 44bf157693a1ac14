package meetclient

import (
	"encoding/json"
	"sync"
)

// Handler consumes one event's raw payload.
type Handler func(data json.RawMessage)

// Subscriptions routes incoming events to handlers for one session. The set
// is torn down exactly once on session end; handlers registered through a
// previous session cannot leak into a new one, so reconnects never stack
// duplicate handlers.
type Subscriptions struct {
	mu       sync.Mutex
	handlers map[string][]Handler
	done     bool
}

// NewSubscriptions creates an empty subscription set.
func NewSubscriptions() *Subscriptions {
	return &Subscriptions{handlers: make(map[string][]Handler)}
}

// On registers a handler for an event. Ignored after Teardown.
func (s *Subscriptions) On(event string, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return
	}
	s.handlers[event] = append(s.handlers[event], h)
}

// Dispatch invokes every handler registered for event, in registration order.
func (s *Subscriptions) Dispatch(event string, data json.RawMessage) {
	s.mu.Lock()
	hs := make([]Handler, len(s.handlers[event]))
	copy(hs, s.handlers[event])
	s.mu.Unlock()
	for _, h := range hs {
		h(data)
	}
}

// Teardown drops every handler. Safe to call more than once; only the first
// call does anything.
func (s *Subscriptions) Teardown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return
	}
	s.done = true
	s.handlers = make(map[string][]Handler)
}

// Active reports whether the set still accepts registrations.
func (s *Subscriptions) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.done
}
