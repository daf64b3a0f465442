// Package sse manages live Server-Sent-Events subscriptions: per-client
// bounded queues, filters, heartbeats and the drop-oldest backpressure policy
// that keeps ingest non-blocking.
package sse

import (
	"errors"
	"strings"
	"time"

	"github.com/ThomasRohde/ariadne/internal/event"
)

// ErrInvalidSince is returned when the since query parameter is not an
// RFC 3339 timestamp.
var ErrInvalidSince = errors.New("invalid since parameter")

// Filter restricts which events a subscriber receives. All present criteria
// are conjunctive; a nil Filter accepts everything.
type Filter struct {
	// TraceID, when set, requires an exact trace_id match.
	TraceID string
	// Kinds, when non-empty, requires a span's kind to be a member. Trace
	// envelopes pass through regardless.
	Kinds map[string]struct{}
	// Since, when set, requires a span's started_at to be >= this instant.
	// Spans without started_at and trace envelopes pass through.
	Since *time.Time
}

// ParseFilter builds a Filter from the raw query parameters of GET /events.
// kinds is comma-separated; blank entries are dropped. A non-empty since that
// does not parse as RFC 3339 yields ErrInvalidSince.
func ParseFilter(traceID, kinds, since string) (*Filter, error) {
	f := &Filter{TraceID: traceID}

	if kinds != "" {
		f.Kinds = make(map[string]struct{})
		for _, k := range strings.Split(kinds, ",") {
			k = strings.TrimSpace(k)
			if k != "" {
				f.Kinds[k] = struct{}{}
			}
		}
	}

	if since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			return nil, ErrInvalidSince
		}
		f.Since = &t
	}

	if f.TraceID == "" && len(f.Kinds) == 0 && f.Since == nil {
		return nil, nil
	}
	return f, nil
}

// Matches reports whether e passes the filter.
func (f *Filter) Matches(e *event.Event) bool {
	if f == nil {
		return true
	}
	if f.TraceID != "" && e.TraceID != f.TraceID {
		return false
	}
	if len(f.Kinds) > 0 && e.IsSpan() {
		if e.Kind == "" {
			return false
		}
		if _, ok := f.Kinds[e.Kind]; !ok {
			return false
		}
	}
	if f.Since != nil && e.IsSpan() && e.StartedAt != "" {
		started, err := time.Parse(time.RFC3339, e.StartedAt)
		if err != nil || started.Before(*f.Since) {
			return false
		}
	}
	return true
}
