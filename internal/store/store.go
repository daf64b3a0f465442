package store

import (
	"sync"

	"github.com/ThomasRohde/ariadne/internal/event"
)

// TraceSnapshot is a consistent read of one trace: the most recent envelope
// (nil if only spans arrived) and the spans in arrival order.
type TraceSnapshot struct {
	Trace *event.Event
	Spans []*event.Event
}

type traceRecord struct {
	trace *event.Event
	spans []*event.Event
}

// Store composes the ring buffer with a secondary index from trace id to the
// trace envelope and its spans. The index is append-only for the life of the
// process: ring eviction does not prune it. That asymmetry is deliberate —
// the index is an advisory convenience for inspecting recent traces, not an
// authoritative mirror of the buffer.
type Store struct {
	mu     sync.RWMutex
	ring   *Ring
	traces map[string]*traceRecord
}

// New creates a store bounded at capacity events.
func New(capacity int) *Store {
	return &Store{
		ring:   NewRing(capacity),
		traces: make(map[string]*traceRecord),
	}
}

// Append adds e to the ring and indexes it by trace id. A re-emitted trace
// envelope replaces the prior envelope for the same id; spans accumulate in
// arrival order.
func (s *Store) Append(e *event.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ring.Append(e)

	rec := s.traces[e.TraceID]
	if rec == nil {
		rec = &traceRecord{}
		s.traces[e.TraceID] = rec
	}
	if e.IsTrace() {
		rec.trace = e
	} else {
		rec.spans = append(rec.spans, e)
	}
}

// Snapshot returns every buffered event in arrival order.
func (s *Store) Snapshot() []*event.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ring.Snapshot()
}

// Trace returns a consistent snapshot of one trace's indexed events.
func (s *Store) Trace(id string) (TraceSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.traces[id]
	if !ok {
		return TraceSnapshot{}, false
	}
	snap := TraceSnapshot{Trace: rec.trace}
	if len(rec.spans) > 0 {
		snap.Spans = append([]*event.Event(nil), rec.spans...)
	}
	return snap, true
}

// Len returns the number of buffered events.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ring.Len()
}

// Cap returns the ring capacity.
func (s *Store) Cap() int {
	return s.ring.Cap()
}

// TraceCount returns the number of indexed trace ids.
func (s *Store) TraceCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.traces)
}

// Clear truncates both the ring and the trace index.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ring.Clear()
	s.traces = make(map[string]*traceRecord)
}
