package sse

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/ThomasRohde/ariadne/internal/event"
)

// DefaultHeartbeatInterval is the heartbeat scan period and the idle time
// after which a sink is sent a comment frame, keeping intermediaries from
// collecting the connection. Because idleness is checked only on each scan,
// a sink can sit idle for up to about twice the interval before it gets one.
const DefaultHeartbeatInterval = 15 * time.Second

// Options tune a Manager. Zero values fall back to the package defaults; tests
// shrink them to exercise backpressure and heartbeats quickly.
type Options struct {
	QueueCapacity     int
	HeartbeatInterval time.Duration
}

// Manager owns the set of active subscriptions. Broadcast fans accepted
// events out to every matching subscriber without ever blocking ingest: a
// full subscriber queue drops its oldest entry instead. A background ticker
// drives heartbeats until Close.
type Manager struct {
	logger   *zap.Logger
	queueCap int
	interval time.Duration

	mu     sync.RWMutex
	subs   map[int64]*Subscription
	nextID atomic.Int64

	done     chan struct{}
	stopOnce sync.Once
}

// NewManager creates a manager and starts its heartbeat loop.
func NewManager(logger *zap.Logger, opts Options) *Manager {
	if opts.QueueCapacity < 1 {
		opts.QueueCapacity = DefaultQueueCapacity
	}
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = DefaultHeartbeatInterval
	}
	m := &Manager{
		logger:   logger,
		queueCap: opts.QueueCapacity,
		interval: opts.HeartbeatInterval,
		subs:     make(map[int64]*Subscription),
		done:     make(chan struct{}),
	}
	go m.heartbeatLoop()
	return m
}

// Subscribe registers a new subscription with an optional filter.
func (m *Manager) Subscribe(filter *Filter) *Subscription {
	sub := newSubscription(m.nextID.Add(1), filter, m.queueCap)

	m.mu.Lock()
	m.subs[sub.id] = sub
	m.mu.Unlock()

	m.logger.Info("subscriber connected",
		zap.Int64("subscriber_id", sub.id),
		zap.Bool("filtered", filter != nil),
	)
	return sub
}

// Unsubscribe removes sub from the registry and releases its queue. Safe to
// call more than once.
func (m *Manager) Unsubscribe(sub *Subscription) {
	m.mu.Lock()
	_, present := m.subs[sub.id]
	delete(m.subs, sub.id)
	m.mu.Unlock()

	sub.close()
	if present {
		m.logger.Info("subscriber disconnected", zap.Int64("subscriber_id", sub.id))
	}
}

// Broadcast delivers e to every subscription whose filter matches. The
// registry lock is held only to snapshot the iteration target; per-subscriber
// work is lock-free with respect to other subscribers.
func (m *Manager) Broadcast(e *event.Event) {
	for _, sub := range m.snapshot() {
		if sub.filter.Matches(e) {
			sub.enqueue(e)
		}
	}
}

// Count returns the number of active subscriptions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subs)
}

// Close terminates every subscription and stops the heartbeat loop.
func (m *Manager) Close() {
	m.stopOnce.Do(func() {
		close(m.done)

		m.mu.Lock()
		subs := make([]*Subscription, 0, len(m.subs))
		for _, sub := range m.subs {
			subs = append(subs, sub)
		}
		m.subs = make(map[int64]*Subscription)
		m.mu.Unlock()

		for _, sub := range subs {
			sub.close()
		}
		m.logger.Info("SSE manager closed", zap.Int("terminated", len(subs)))
	})
}

func (m *Manager) snapshot() []*Subscription {
	m.mu.RLock()
	defer m.mu.RUnlock()
	subs := make([]*Subscription, 0, len(m.subs))
	for _, sub := range m.subs {
		subs = append(subs, sub)
	}
	return subs
}

// heartbeatLoop scans subscriptions on every tick and schedules a comment
// frame for any sink idle past the interval. Removals during iteration are
// fine — the scan works on a snapshot and closed subscriptions ignore the
// request.
func (m *Manager) heartbeatLoop() {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			for _, sub := range m.snapshot() {
				sub.requestHeartbeat(m.interval)
			}
		}
	}
}
