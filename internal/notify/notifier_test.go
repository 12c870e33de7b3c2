package notify

import (
	"context"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestDispatcher_DeliversBufferedEvents(t *testing.T) {
	sink := NewMemorySink()
	d := NewDispatcher(sink, 8, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = d.Run(ctx)
	}()

	d.Emit(ctx, Event{Type: EventCredentialIssued, Subject: "cred-1"})
	d.Emit(ctx, Event{Type: EventCredentialRevoked, Subject: "cred-1"})

	require.Eventually(t, func() bool {
		return len(sink.Events()) == 2
	}, time.Second, 5*time.Millisecond)

	events := sink.Events()
	assert.Equal(t, EventCredentialIssued, events[0].Type)
	assert.Equal(t, EventCredentialRevoked, events[1].Type)
	assert.False(t, events[0].Timestamp.IsZero(), "emit stamps missing timestamps")

	cancel()
	<-done
}

func TestDispatcher_EmitDropsWhenBufferFull(t *testing.T) {
	sink := NewMemorySink()
	var dropped atomic.Int32
	// No Run goroutine, so nothing drains the single-slot buffer.
	d := NewDispatcher(sink, 1, discardLogger(), WithDropCounter(func() {
		dropped.Add(1)
	}))

	ctx := context.Background()
	d.Emit(ctx, Event{Type: EventPolicyCreated, Subject: "pol-1"})
	d.Emit(ctx, Event{Type: EventPolicyCreated, Subject: "pol-2"})
	d.Emit(ctx, Event{Type: EventPolicyCreated, Subject: "pol-3"})

	assert.Equal(t, int32(2), dropped.Load())
	assert.Empty(t, sink.Events(), "nothing delivered without a running dispatcher")
}

func TestDispatcher_RunStopsOnContextCancel(t *testing.T) {
	d := NewDispatcher(NewMemorySink(), 1, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- d.Run(ctx) }()

	cancel()
	select {
	case err := <-errCh:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

func TestDirect_DeliversSynchronously(t *testing.T) {
	sink := NewMemorySink()
	n := NewDirect(sink)

	n.Emit(context.Background(), Event{
		Type:        EventAuditRecorded,
		Institution: "Test University",
		Subject:     "audit-1",
		Attrs:       map[string]string{"framework": "enqa"},
	})

	events := sink.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "Test University", events[0].Institution)
	assert.Equal(t, "enqa", events[0].Attrs["framework"])
}
