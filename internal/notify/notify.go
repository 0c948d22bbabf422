// Package notify announces analytics lifecycle events to other processes.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/huangsam/skysched/internal/contract"
	"github.com/huangsam/skysched/internal/logging"
	"github.com/huangsam/skysched/schema"
	"github.com/nats-io/nats.go"
)

// DefaultSubject is where refresh events go when no subject is configured.
const DefaultSubject = "skysched.analytics.refreshed"

const flushTimeout = 5 * time.Second

// NATSPublisher publishes refresh events on a NATS subject.
type NATSPublisher struct {
	nc      *nats.Conn
	subject string
}

var _ contract.EventPublisher = &NATSPublisher{} // Compile-time check

// NewNATSPublisher connects to the NATS server at url.
func NewNATSPublisher(url, subject string) (*NATSPublisher, error) {
	if subject == "" {
		subject = DefaultSubject
	}
	log := logging.With("notify")
	nc, err := nats.Connect(url,
		nats.Name("skysched"),
		nats.MaxReconnects(10),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("disconnected from NATS")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info().Str("url", c.ConnectedUrl()).Msg("reconnected to NATS")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &NATSPublisher{nc: nc, subject: subject}, nil
}

// Subject returns the subject events are published on.
func (p *NATSPublisher) Subject() string { return p.subject }

// PublishRefreshed implements contract.EventPublisher. It returns once the server has
// acknowledged the flush.
func (p *NATSPublisher) PublishRefreshed(ctx context.Context, event schema.RefreshEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode refresh event: %w", err)
	}
	if err := p.nc.Publish(p.subject, data); err != nil {
		return fmt.Errorf("failed to publish refresh event: %w", err)
	}
	if _, ok := ctx.Deadline(); ok {
		return p.nc.FlushWithContext(ctx)
	}
	return p.nc.FlushTimeout(flushTimeout)
}

// Close drains pending messages and closes the connection.
func (p *NATSPublisher) Close() error {
	return p.nc.Drain()
}

// Noop discards every event.
type Noop struct{}

var _ contract.EventPublisher = Noop{} // Compile-time check

// PublishRefreshed implements contract.EventPublisher.
func (Noop) PublishRefreshed(context.Context, schema.RefreshEvent) error { return nil }

// Close implements contract.EventPublisher.
func (Noop) Close() error { return nil }

// New returns a NATS publisher when a server URL is configured and Noop otherwise.
func New(cfg *contract.Config) (contract.EventPublisher, error) {
	if cfg.NatsURL == "" {
		return Noop{}, nil
	}
	return NewNATSPublisher(cfg.NatsURL, cfg.NatsSubject)
}

// DecodeRefreshEvent parses a message published by PublishRefreshed.
func DecodeRefreshEvent(data []byte) (schema.RefreshEvent, error) {
	var event schema.RefreshEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return schema.RefreshEvent{}, fmt.Errorf("failed to decode refresh event: %w", err)
	}
	return event, nil
}
