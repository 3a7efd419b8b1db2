// Package events publishes diagnostic phase-completion events over NATS.
//
// Publication is strictly observational: a missing broker, a
// dropped connection, or a publish error must never change the
// pipeline's behavior or exit code. NATS is never used to distribute
// work to other processes, only to let external tooling watch a run.
package events

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/wolfire/ogda/internal/logfields"
)

// PhaseEvent is the JSON payload published for each completed phase.
type PhaseEvent struct {
	RunID      string    `json:"run_id"`
	Phase      string    `json:"phase"`
	DurationMS float64   `json:"duration_ms"`
	ItemCount  int       `json:"item_count"`
	Timestamp  time.Time `json:"timestamp"`
}

// Publisher publishes PhaseEvents to subjects of the form
// "ogda.pipeline.<run-id>.<phase>". A nil or disconnected Publisher is
// safe to call: PublishPhaseEvent degrades to a no-op, mirroring
// the nil-safe defaults used throughout the pipeline (metrics.NoopRecorder,
// hash.NewPool, build.NewEngine).
type Publisher struct {
	conn   *nats.Conn
	logger *slog.Logger
}

// NewPublisher connects to url and returns a Publisher. When url is
// empty the event stream is disabled by configuration: NewPublisher
// returns a nil *Publisher, and every subsequent
// PublishPhaseEvent call is a no-op. A connection failure is logged and
// returned as a nil *Publisher rather than an error, since the caller
// must be able to continue the pipeline regardless.
func NewPublisher(url string, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	if url == "" {
		return nil
	}

	conn, err := nats.Connect(url,
		nats.Name("ogda"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				logger.Warn("events: NATS disconnected", logfields.Error(err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("events: NATS reconnected", slog.String("url", nc.ConnectedUrl()))
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			logger.Info("events: NATS connection closed")
		}),
	)
	if err != nil {
		logger.Warn("events: failed to connect, diagnostic event stream disabled", logfields.Error(err))
		return nil
	}

	return &Publisher{conn: conn, logger: logger}
}

// PublishPhaseEvent publishes one event for a completed pipeline phase.
// It never returns an error: failures are logged at debug level and
// swallowed. The absence of a subscriber never affects pipeline behavior
// or exit code.
func (p *Publisher) PublishPhaseEvent(runID, phase string, duration time.Duration, itemCount int) {
	if p == nil || p.conn == nil {
		return
	}

	evt := PhaseEvent{
		RunID:      runID,
		Phase:      phase,
		DurationMS: float64(duration.Microseconds()) / 1000.0,
		ItemCount:  itemCount,
		Timestamp:  time.Now(),
	}

	data, err := json.Marshal(evt)
	if err != nil {
		p.logger.Debug("events: failed to marshal phase event", logfields.Stage(phase), logfields.Error(err))
		return
	}

	subject := "ogda.pipeline." + runID + "." + phase
	if err := p.conn.Publish(subject, data); err != nil {
		p.logger.Debug("events: failed to publish phase event", logfields.Stage(phase), logfields.Error(err))
	}
}

// Close flushes and closes the underlying NATS connection, tolerating a
// nil Publisher (disabled event stream).
func (p *Publisher) Close() {
	if p == nil || p.conn == nil {
		return
	}
	p.conn.Close()
}
