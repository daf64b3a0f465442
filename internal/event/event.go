// Package event defines the wire model for agent telemetry — trace envelopes
// and the spans inside them — together with the truncation and validation
// rules applied on ingest. Events are immutable once validated; the store and
// the SSE fan-out only ever read them.
package event

// Event type discriminators.
const (
	TypeTrace = "trace"
	TypeSpan  = "span"
)

// Span status values.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Event is a single telemetry event: either a trace envelope or a span.
// The two kinds share a wire shape discriminated by Type; fields that apply
// to only one kind are simply absent on the other. Timestamps are carried as
// RFC 3339 strings — arrival order is the only ordering the service
// preserves, so they stay opaque data after validation.
type Event struct {
	Type    string `json:"type"`
	TraceID string `json:"trace_id"`
	Name    string `json:"name,omitempty"`

	// Trace envelope fields.
	GroupID  string            `json:"group_id,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`

	// Span fields.
	SpanID   string         `json:"span_id,omitempty"`
	ParentID string         `json:"parent_id,omitempty"`
	Kind     string         `json:"kind,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
	Status   string         `json:"status,omitempty"`

	StartedAt string `json:"started_at,omitempty"`
	EndedAt   string `json:"ended_at,omitempty"`
}

// IsTrace reports whether the event is a trace envelope.
func (e *Event) IsTrace() bool { return e.Type == TypeTrace }

// IsSpan reports whether the event is a span.
func (e *Event) IsSpan() bool { return e.Type == TypeSpan }
