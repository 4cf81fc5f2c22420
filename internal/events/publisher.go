package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// SubmissionResolved is emitted once per resolved submission.
type SubmissionResolved struct {
	SessionID  string    `json:"session_id"`
	Document   string    `json:"document"`
	Phase      string    `json:"phase"`
	TestCases  int       `json:"test_cases"`
	Error      string    `json:"error,omitempty"`
	ResolvedAt time.Time `json:"resolved_at"`
}

// Publisher delivers resolution events to interested parties.
type Publisher interface {
	PublishResolved(ctx context.Context, event SubmissionResolved) error
}

// NopPublisher discards every event.
type NopPublisher struct{}

// PublishResolved implements Publisher.
func (NopPublisher) PublishResolved(context.Context, SubmissionResolved) error {
	return nil
}

// NATSPublisher publishes resolution events as JSON on a NATS subject.
type NATSPublisher struct {
	conn    *nats.Conn
	subject string
	logger  zerolog.Logger
}

// Connect dials NATS and wraps the connection in a publisher.
func Connect(url, subject string, logger zerolog.Logger) (*NATSPublisher, error) {
	conn, err := nats.Connect(url,
		nats.Name("testgen-workbench"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn().Err(err).Msg("nats disconnected")
			}
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return NewNATSPublisher(conn, subject, logger), nil
}

// NewNATSPublisher wraps an existing connection.
func NewNATSPublisher(conn *nats.Conn, subject string, logger zerolog.Logger) *NATSPublisher {
	return &NATSPublisher{
		conn:    conn,
		subject: subject,
		logger:  logger.With().Str("component", "submission_events").Logger(),
	}
}

// PublishResolved implements Publisher. A publisher without a connection drops events.
func (p *NATSPublisher) PublishResolved(_ context.Context, event SubmissionResolved) error {
	if p == nil || p.conn == nil || p.subject == "" {
		return nil
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode submission event: %w", err)
	}

	if err := p.conn.Publish(p.subject, payload); err != nil {
		return fmt.Errorf("publish submission event: %w", err)
	}

	p.logger.Debug().Str("session_id", event.SessionID).Str("phase", event.Phase).Msg("submission event published")
	return nil
}

// Close drains the underlying connection.
func (p *NATSPublisher) Close() {
	if p == nil || p.conn == nil {
		return
	}
	if err := p.conn.Drain(); err != nil {
		p.logger.Warn().Err(err).Msg("nats drain failed")
	}
}
