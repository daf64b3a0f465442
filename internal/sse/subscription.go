package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/ThomasRohde/ariadne/internal/event"
)

// DefaultQueueCapacity bounds the pending-event queue of one subscriber.
const DefaultQueueCapacity = 5000

// Frame byte sequences. The backpressure comment is byte-for-byte stable —
// log scrapers match on it.
const (
	heartbeatFrame    = ": heartbeat\n\n"
	backpressureFrame = ":warning stream backpressure; events skipped\n\n"
)

// Sink is the flushable byte stream of one connected client.
type Sink interface {
	io.Writer
	http.Flusher
}

// connectedFrame is the first data frame on every new subscription. Consumers
// filter it by type.
type connectedFrame struct {
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
}

// Subscription is one live SSE client: a bounded queue of matching events
// plus pending control frames, drained onto the client's sink by Stream.
// Broadcast and the heartbeat scan only ever enqueue; every byte written to
// the sink comes from the single Stream goroutine, so writes never interleave.
type Subscription struct {
	id     int64
	filter *Filter

	mu        sync.Mutex
	queue     []*event.Event
	dropped   int // pending backpressure comments
	heartbeat bool
	lastWrite time.Time
	closed    bool

	wake chan struct{}
	done chan struct{}
}

func newSubscription(id int64, filter *Filter, queueCap int) *Subscription {
	if queueCap < 1 {
		queueCap = DefaultQueueCapacity
	}
	return &Subscription{
		id:     id,
		filter: filter,
		queue:  make([]*event.Event, 0, queueCap),
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// ID returns the monotonically assigned subscriber label.
func (s *Subscription) ID() int64 { return s.id }

// enqueue appends e to the pending queue, evicting the oldest entry and
// recording a backpressure comment when the queue is at capacity. It never
// blocks the caller.
func (s *Subscription) enqueue(e *event.Event) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if len(s.queue) == cap(s.queue) {
		copy(s.queue, s.queue[1:])
		s.queue = s.queue[:len(s.queue)-1]
		s.dropped++
	}
	s.queue = append(s.queue, e)
	s.mu.Unlock()
	s.signal()
}

// requestHeartbeat marks a heartbeat comment pending if the sink has been
// idle for at least interval. Reports whether a heartbeat was scheduled.
func (s *Subscription) requestHeartbeat(interval time.Duration) bool {
	s.mu.Lock()
	if s.closed || time.Since(s.lastWrite) < interval {
		s.mu.Unlock()
		return false
	}
	s.heartbeat = true
	s.mu.Unlock()
	s.signal()
	return true
}

func (s *Subscription) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// close marks the subscription terminal and releases Stream. Idempotent.
func (s *Subscription) close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.queue = nil
	close(s.done)
	s.mu.Unlock()
}

// Stream writes the initial connected frame, then drains queued events and
// control frames onto w until ctx is cancelled, the subscription is closed,
// or a write fails. A write failure is returned so the caller can log it;
// cancellation and shutdown return nil.
func (s *Subscription) Stream(ctx context.Context, w Sink) error {
	frame := connectedFrame{Type: "connected", Timestamp: time.Now().UTC().Format(time.RFC3339)}
	payload, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("marshal connected frame: %w", err)
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
		return fmt.Errorf("write connected frame: %w", err)
	}
	w.Flush()
	s.touch()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.done:
			return nil
		case <-s.wake:
		}
		if err := s.flush(w); err != nil {
			return err
		}
	}
}

// flush drains everything pending in one pass: backpressure comments first,
// then a heartbeat if scheduled, then the queued events as compact-JSON data
// frames.
func (s *Subscription) flush(w Sink) error {
	s.mu.Lock()
	events := s.queue
	s.queue = make([]*event.Event, 0, cap(s.queue))
	dropped := s.dropped
	s.dropped = 0
	heartbeat := s.heartbeat
	s.heartbeat = false
	s.mu.Unlock()

	if dropped == 0 && !heartbeat && len(events) == 0 {
		return nil
	}

	for i := 0; i < dropped; i++ {
		if _, err := io.WriteString(w, backpressureFrame); err != nil {
			return fmt.Errorf("write backpressure comment: %w", err)
		}
	}
	if heartbeat {
		if _, err := io.WriteString(w, heartbeatFrame); err != nil {
			return fmt.Errorf("write heartbeat: %w", err)
		}
	}
	for _, e := range events {
		payload, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("marshal event: %w", err)
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
			return fmt.Errorf("write event frame: %w", err)
		}
	}

	w.Flush()
	s.touch()
	return nil
}

func (s *Subscription) touch() {
	s.mu.Lock()
	s.lastWrite = time.Now()
	s.mu.Unlock()
}

// queueLen reports the number of pending events. Test hook.
func (s *Subscription) queueLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}
