package bus

import (
	"context"

	"scribe/internal/events"
)

// Handler consumes one event. Returned errors are logged by the bus; they do
// not stop delivery to other subscribers and are never retried by the bus
// itself.
type Handler func(ctx context.Context, event events.Event) error

// Bus is the typed publish/subscribe contract. Publish delivers the event to
// zero or more subscribers registered for the event's name; ordering across
// subjects is not guaranteed and same-subject ordering is best effort only.
type Bus interface {
	Publish(ctx context.Context, event events.Event) error
	Subscribe(name string, handler Handler) error
	Close() error
}
