package notify

import (
	"context"
	"sync"
)

// MemorySink records delivered events for assertions in tests.
type MemorySink struct {
	mu     sync.Mutex
	events []Event
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Deliver(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// Events returns a snapshot of everything delivered so far.
func (s *MemorySink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event{}, s.events...)
}

// direct is a Notifier that delivers synchronously, bypassing the dispatcher.
// Tests use it so emitted events are observable without running a goroutine.
type direct struct {
	sink Sink
}

// NewDirect wraps a sink in a synchronous Notifier.
func NewDirect(sink Sink) Notifier {
	return direct{sink: sink}
}

func (d direct) Emit(ctx context.Context, event Event) {
	_ = d.sink.Deliver(ctx, event)
}
