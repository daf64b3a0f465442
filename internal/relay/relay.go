// Package relay forwards accepted telemetry events to a NATS JetStream
// stream for downstream consumers. The relay is strictly fire-and-forget:
// publish failures are logged and dropped so the ingest path never blocks on
// an external broker.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/ThomasRohde/ariadne/internal/event"
)

const (
	// StreamTelemetry is the durable stream that captures relayed events.
	StreamTelemetry = "TELEMETRY"
	// SubjectEvents captures every relayed event, suffixed by event type.
	SubjectEvents = "TELEMETRY.events.>"

	subjectPrefix = "TELEMETRY.events."
)

// Relay wraps a NATS connection and its JetStream context.
type Relay struct {
	conn *nats.Conn
	js   nats.JetStreamContext
	log  *zap.Logger
}

// New connects to the broker and prepares the JetStream publishing context.
// The connection retries in the background forever, so a broker restart
// pauses the relay instead of killing it.
func New(url string, logger *zap.Logger) (*Relay, error) {
	nc, err := nats.Connect(url,
		nats.Name("ariadne-relay"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("relay: connect to %s: %w", url, err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("relay: jetstream context: %w", err)
	}

	logger.Info("telemetry relay connected", zap.String("url", url))
	return &Relay{conn: nc, js: js, log: logger}, nil
}

// ProvisionStream idempotently ensures the TELEMETRY stream exists. It
// creates the stream on first run and is a no-op when it already exists.
func (r *Relay) ProvisionStream() error {
	_, err := r.js.StreamInfo(StreamTelemetry)
	if err == nil {
		r.log.Info("NATS stream already exists", zap.String("stream", StreamTelemetry))
		return nil
	}
	if !errors.Is(err, nats.ErrStreamNotFound) {
		return fmt.Errorf("stream info: %w", err)
	}

	cfg := &nats.StreamConfig{
		Name:      StreamTelemetry,
		Subjects:  []string{SubjectEvents},
		Storage:   nats.FileStorage,
		Retention: nats.LimitsPolicy,
	}
	if _, err := r.js.AddStream(cfg); err != nil {
		return fmt.Errorf("create stream: %w", err)
	}

	r.log.Info("NATS stream provisioned",
		zap.String("stream", StreamTelemetry),
		zap.String("subjects", SubjectEvents),
	)
	return nil
}

// Publish relays e on TELEMETRY.events.<type> without waiting for the ack.
// Errors are logged and swallowed — the relay must never surface into the
// ingest response.
func (r *Relay) Publish(ctx context.Context, e *event.Event) {
	payload, err := json.Marshal(e)
	if err != nil {
		r.log.Warn("relay marshal failed", zap.String("trace_id", e.TraceID), zap.Error(err))
		return
	}
	if _, err := r.js.PublishAsync(subjectPrefix+e.Type, payload, nats.MsgId(uuid.NewString())); err != nil {
		r.log.Warn("relay publish failed",
			zap.String("trace_id", e.TraceID),
			zap.String("type", e.Type),
			zap.Error(err),
		)
	}
}

// Close starts draining the connection, which flushes buffered publishes and
// then closes it in the background; Close returns without waiting for the
// drain to finish or for outstanding JetStream acks. If the drain cannot
// start, the connection is closed hard.
func (r *Relay) Close() {
	if r.conn == nil {
		return
	}
	if err := r.conn.Drain(); err != nil {
		r.log.Warn("relay drain failed, closing hard", zap.Error(err))
		r.conn.Close()
	}
}
