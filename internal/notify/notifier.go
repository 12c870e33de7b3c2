package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Sink receives events for delivery to an external consumer (dashboard feed,
// Kafka topic). Implementations must tolerate being called concurrently.
type Sink interface {
	Deliver(ctx context.Context, event Event) error
}

// Notifier accepts events from services. Emit must never block a write path.
type Notifier interface {
	Emit(ctx context.Context, event Event)
}

// Dispatcher buffers events on a channel and drains them into a sink from a
// background goroutine, decoupling notification delivery from the ledger
// transaction. When the buffer is full the event is dropped and counted; the
// mutation has already committed and must not be delayed.
type Dispatcher struct {
	sink    Sink
	inbox   chan Event
	logger  *slog.Logger
	dropped func()

	closeOnce sync.Once
}

// Option configures the Dispatcher.
type Option func(*Dispatcher)

// WithDropCounter registers a callback invoked each time an event is dropped
// due to a full buffer. Used to feed the notifications_dropped metric.
func WithDropCounter(fn func()) Option {
	return func(d *Dispatcher) { d.dropped = fn }
}

// NewDispatcher creates a dispatcher with the given buffer size.
func NewDispatcher(sink Sink, buffer int, logger *slog.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		sink:   sink,
		inbox:  make(chan Event, buffer),
		logger: logger,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Emit enqueues the event without blocking.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	select {
	case d.inbox <- event:
	default:
		if d.dropped != nil {
			d.dropped()
		}
		d.logger.WarnContext(ctx, "notification buffer full, event dropped",
			"event_type", event.Type,
			"subject", event.Subject,
		)
	}
}

// Run drains the inbox into the sink until the context is cancelled. Delivery
// failures are logged and the event is discarded; they never propagate back to
// the writer.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-d.inbox:
			if err := d.sink.Deliver(ctx, event); err != nil {
				d.logger.ErrorContext(ctx, "notification delivery failed",
					"event_type", event.Type,
					"subject", event.Subject,
					"error", err,
				)
			}
		}
	}
}
