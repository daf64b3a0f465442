// Package service implements the ingest pipeline: parse the request payload,
// truncate and validate every event, then append to the store and fan out to
// subscribers. Validation is all-or-nothing per request — a single bad event
// rejects the whole payload and nothing is stored.
package service

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/ThomasRohde/ariadne/internal/event"
)

// EventStore receives every accepted event.
type EventStore interface {
	Append(e *event.Event)
}

// Broadcaster fans an accepted event out to live subscribers.
type Broadcaster interface {
	Broadcast(e *event.Event)
}

// EventRelay forwards accepted events to a downstream sink. Implementations
// must never block or fail the ingest path.
type EventRelay interface {
	Publish(ctx context.Context, e *event.Event)
}

// IngestService accepts raw ingest payloads and drives them through the
// truncate → validate → store → broadcast pipeline.
type IngestService interface {
	Ingest(ctx context.Context, body []byte) (int, error)
}

type ingestService struct {
	store       EventStore
	broadcaster Broadcaster
	relay       EventRelay // nil when no downstream sink is configured
	logger      *zap.Logger
}

// NewIngestService wires the pipeline. relay may be nil.
func NewIngestService(store EventStore, broadcaster Broadcaster, relay EventRelay, logger *zap.Logger) IngestService {
	return &ingestService{store: store, broadcaster: broadcaster, relay: relay, logger: logger}
}

// Ingest parses body as one event or a {"batch":[...]} wrapper, truncates and
// validates every event, and only then stores and broadcasts them in payload
// order. The returned error is a *event.ValidationError for anything the
// producer got wrong.
func (s *ingestService) Ingest(ctx context.Context, body []byte) (int, error) {
	raws, batch, verr := splitPayload(body)
	if verr != nil {
		return 0, verr
	}

	events := make([]*event.Event, len(raws))
	var details []event.FieldError
	for i, raw := range raws {
		ev, errs := decodeEvent(raw)
		for _, fe := range errs {
			fe.Path = prefixPath(batch, i, fe.Path)
			details = append(details, fe)
		}
		events[i] = ev
	}
	if len(details) > 0 {
		return 0, &event.ValidationError{Details: details}
	}

	for _, ev := range events {
		s.store.Append(ev)
		s.broadcaster.Broadcast(ev)
		if s.relay != nil {
			s.relay.Publish(ctx, ev)
		}
	}

	s.logger.Debug("events ingested", zap.Int("count", len(events)), zap.Bool("batch", batch))
	return len(events), nil
}

// splitPayload decomposes the request body into per-event raw messages.
// A body with a batch field is a batch; anything else is a single event.
func splitPayload(body []byte) ([]json.RawMessage, bool, *event.ValidationError) {
	var envelope struct {
		Batch json.RawMessage `json:"batch"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, false, &event.ValidationError{Details: []event.FieldError{
			{Path: "body", Message: "request body must be a JSON event or a {\"batch\": [...]} wrapper"},
		}}
	}

	if envelope.Batch == nil {
		return []json.RawMessage{body}, false, nil
	}

	var raws []json.RawMessage
	if err := json.Unmarshal(envelope.Batch, &raws); err != nil {
		return nil, false, &event.ValidationError{Details: []event.FieldError{
			{Path: "batch", Message: "batch must be an array of events"},
		}}
	}
	return raws, true, nil
}

// decodeEvent unmarshals, truncates and validates one raw event. Unknown
// fields are ignored for forward compatibility; truncation runs before
// validation so oversized inputs cannot inflate error payloads.
func decodeEvent(raw json.RawMessage) (*event.Event, []event.FieldError) {
	var ev event.Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, []event.FieldError{decodeFieldError(err)}
	}
	event.Truncate(&ev)
	return &ev, event.Validate(&ev)
}

func decodeFieldError(err error) event.FieldError {
	if typeErr, ok := err.(*json.UnmarshalTypeError); ok && typeErr.Field != "" {
		return event.FieldError{
			Path:    typeErr.Field,
			Message: fmt.Sprintf("expected %s", typeErr.Type),
		}
	}
	return event.FieldError{Path: "", Message: "must be a JSON object"}
}

func prefixPath(batch bool, index int, path string) string {
	if batch {
		if path == "" {
			return fmt.Sprintf("batch[%d]", index)
		}
		return fmt.Sprintf("batch[%d].%s", index, path)
	}
	if path == "" {
		return "body"
	}
	return path
}
