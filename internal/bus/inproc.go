package bus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"scribe/internal/events"
	"scribe/internal/logging"
)

// Inproc is a channel-backed bus for single-process deployments. Every
// subscriber owns a buffered queue drained by a dedicated goroutine, so a
// slow handler never stalls publishers of unrelated subjects.
type Inproc struct {
	logger *slog.Logger
	buffer int

	mu     sync.RWMutex
	subs   map[string][]*inprocSub
	closed bool
	wg     sync.WaitGroup
}

type inprocSub struct {
	queue   chan events.Event
	handler Handler
}

// NewInproc constructs an in-process bus. buffer bounds each subscriber's
// queue; publish blocks once a queue is full.
func NewInproc(logger *slog.Logger, buffer int) *Inproc {
	if buffer <= 0 {
		buffer = 64
	}
	return &Inproc{
		logger: logging.NewComponentLogger(logger, "bus"),
		buffer: buffer,
		subs:   make(map[string][]*inprocSub),
	}
}

// Subscribe registers a handler for an event name and starts its delivery loop.
func (b *Inproc) Subscribe(name string, handler Handler) error {
	if handler == nil {
		return errors.New("subscribe: handler must not be nil")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return errors.New("subscribe: bus is closed")
	}

	sub := &inprocSub{
		queue:   make(chan events.Event, b.buffer),
		handler: handler,
	}
	b.subs[name] = append(b.subs[name], sub)

	b.wg.Add(1)
	go b.deliver(name, sub)
	return nil
}

// Publish enqueues the event for every subscriber of its name. Blocks while a
// subscriber queue is full; honors ctx cancellation.
func (b *Inproc) Publish(ctx context.Context, event events.Event) error {
	if event == nil {
		return errors.New("publish: nil event")
	}
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return errors.New("publish: bus is closed")
	}
	subs := b.subs[event.Name()]
	b.mu.RUnlock()

	for _, sub := range subs {
		select {
		case sub.queue <- event:
		case <-ctx.Done():
			return fmt.Errorf("publish %s: %w", event.Name(), ctx.Err())
		}
	}
	return nil
}

func (b *Inproc) deliver(name string, sub *inprocSub) {
	defer b.wg.Done()
	for event := range sub.queue {
		b.invoke(name, sub.handler, event)
	}
}

func (b *Inproc) invoke(name string, handler Handler, event events.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				logging.String(logging.FieldEventType, name),
				logging.Any("panic", r),
			)
		}
	}()
	if err := handler(context.Background(), event); err != nil {
		b.logger.Warn("event handler failed",
			logging.String(logging.FieldEventType, name),
			logging.Error(err),
		)
	}
}

// Close tears down every registration and waits for in-flight handlers.
func (b *Inproc) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	for _, subs := range b.subs {
		for _, sub := range subs {
			close(sub.queue)
		}
	}
	b.subs = make(map[string][]*inprocSub)
	b.mu.Unlock()

	b.wg.Wait()
	return nil
}
