package bus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/nats-io/nats.go"

	"scribe/internal/events"
	"scribe/internal/logging"
)

// NATS is a nats.go-backed bus for horizontally scaled deployments. Events
// travel as JSON envelopes on "<prefix>.<EventName>" subjects; every daemon
// replica sees every event and relies on the coordinator's conditional
// repository writes to avoid double-applying transitions.
type NATS struct {
	conn   *nats.Conn
	prefix string
	logger *slog.Logger

	mu     sync.Mutex
	subs   []*nats.Subscription
	closed bool
}

// ConnectNATS dials the NATS server and wraps the connection in a Bus.
func ConnectNATS(url, subjectPrefix string, logger *slog.Logger) (*NATS, error) {
	conn, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.RetryOnFailedConnect(true),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", url, err)
	}
	return NewNATS(conn, subjectPrefix, logger), nil
}

// NewNATS wraps an existing connection. The caller keeps ownership of conn
// only until Close is called.
func NewNATS(conn *nats.Conn, subjectPrefix string, logger *slog.Logger) *NATS {
	prefix := strings.Trim(strings.TrimSpace(subjectPrefix), ".")
	if prefix == "" {
		prefix = "events"
	}
	return &NATS{
		conn:   conn,
		prefix: prefix,
		logger: logging.NewComponentLogger(logger, "bus"),
	}
}

func (b *NATS) subject(name string) string {
	return b.prefix + "." + name
}

// Publish encodes and sends the event on its subject.
func (b *NATS) Publish(_ context.Context, event events.Event) error {
	if event == nil {
		return errors.New("publish: nil event")
	}
	raw, err := events.Encode(event)
	if err != nil {
		return err
	}
	if err := b.conn.Publish(b.subject(event.Name()), raw); err != nil {
		return fmt.Errorf("publish %s: %w", event.Name(), err)
	}
	return nil
}

// Subscribe registers a handler for an event name.
func (b *NATS) Subscribe(name string, handler Handler) error {
	if handler == nil {
		return errors.New("subscribe: handler must not be nil")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return errors.New("subscribe: bus is closed")
	}

	sub, err := b.conn.Subscribe(b.subject(name), func(msg *nats.Msg) {
		defer func() {
			if r := recover(); r != nil {
				b.logger.Error("event handler panicked",
					logging.String(logging.FieldEventType, name),
					logging.Any("panic", r),
				)
			}
		}()
		event, err := events.Decode(msg.Data)
		if err != nil {
			b.logger.Warn("dropping undecodable message",
				logging.String("subject", msg.Subject),
				logging.Error(err),
			)
			return
		}
		if err := handler(context.Background(), event); err != nil {
			b.logger.Warn("event handler failed",
				logging.String(logging.FieldEventType, name),
				logging.Error(err),
			)
		}
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", name, err)
	}
	b.subs = append(b.subs, sub)
	return nil
}

// Close tears down every registration and the connection.
func (b *NATS) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for _, sub := range b.subs {
		if err := sub.Unsubscribe(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
			b.logger.Warn("unsubscribe failed", logging.Error(err))
		}
	}
	b.subs = nil
	if err := b.conn.Drain(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
		return fmt.Errorf("drain nats connection: %w", err)
	}
	return nil
}
