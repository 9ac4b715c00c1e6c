// Package store holds the in-memory trace state of one viewer session.
//
// The store is observable: every mutation notifies the registered listeners
// with the scope of the change, so a renderer only redraws the affected cell.
// Mutations are expected to arrive serialized from a single event loop (the
// session's read loop); the internal mutex makes reads from other goroutines
// safe but does not impose any cross-mutation ordering of its own.
package store

import (
	"sync"

	"github.com/probviz/probviz/traceviz/go/types"
)

// Event describes one store change delivered to listeners.
type Event struct {
	// All is true when the entire view changed (an Initialize, or an explicit
	// Invalidate such as a viewport resize) and every cell must re-render.
	All bool
	// TraceID names the single affected trace when All is false.
	TraceID string
	// Removed is true when TraceID was deleted rather than upserted.
	Removed bool
}

// Listener receives store change events. Listeners run synchronously on the
// mutating goroutine, in registration order.
type Listener func(Event)

// Store is the mutable trace mapping plus the shared Info of one viz.
type Store struct {
	mtx         sync.Mutex
	initialized bool
	info        types.Info
	traces      map[string]types.Trace
	listeners   []Listener
}

// New returns an empty, uninitialized Store.
func New() *Store {
	return &Store{
		traces: map[string]types.Trace{},
	}
}

// AddListener registers a listener for subsequent mutations.
func (s *Store) AddListener(l Listener) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.listeners = append(s.listeners, l)
}

func (s *Store) notify(e Event) {
	s.mtx.Lock()
	listeners := make([]Listener, len(s.listeners))
	copy(listeners, s.listeners)
	s.mtx.Unlock()
	for _, l := range listeners {
		l(e)
	}
}

// Initialize replaces the entire store contents. A second call with an
// identical payload is a no-op in effect; a call with a different payload
// wins outright, there is no merging.
func (s *Store) Initialize(info types.Info, traces map[string]types.Trace) {
	copied := make(map[string]types.Trace, len(traces))
	for id, t := range traces {
		copied[id] = t
	}
	s.mtx.Lock()
	s.initialized = true
	s.info = info
	s.traces = copied
	s.mtx.Unlock()
	s.notify(Event{All: true})
}

// PutTrace inserts or overwrites the trace stored under id.
func (s *Store) PutTrace(id string, t types.Trace) {
	s.mtx.Lock()
	s.traces[id] = t
	s.mtx.Unlock()
	s.notify(Event{TraceID: id})
}

// RemoveTrace deletes the trace stored under id. Removing an unknown id is a
// no-op and notifies nobody.
func (s *Store) RemoveTrace(id string) {
	s.mtx.Lock()
	_, ok := s.traces[id]
	if ok {
		delete(s.traces, id)
	}
	s.mtx.Unlock()
	if ok {
		s.notify(Event{TraceID: id, Removed: true})
	}
}

// Invalidate notifies listeners that every cell must re-render without
// changing any stored data, e.g. after a viewport resize.
func (s *Store) Invalidate() {
	s.notify(Event{All: true})
}

// Initialized returns true once Initialize has been called. Rendering before
// that is a protocol violation on the sender's part.
func (s *Store) Initialized() bool {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.initialized
}

// Info returns the shared per-viz context.
func (s *Store) Info() types.Info {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.info
}

// Trace returns the trace stored under id.
func (s *Store) Trace(id string) (types.Trace, bool) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	t, ok := s.traces[id]
	return t, ok
}

// Traces returns a copy of the current trace mapping.
func (s *Store) Traces() map[string]types.Trace {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	ret := make(map[string]types.Trace, len(s.traces))
	for id, t := range s.traces {
		ret[id] = t
	}
	return ret
}

// Len returns the number of stored traces.
func (s *Store) Len() int {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return len(s.traces)
}
