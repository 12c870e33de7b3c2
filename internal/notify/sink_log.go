package notify

import (
	"context"
	"log/slog"
)

// LogSink writes events to the structured log. It is the default sink when no
// broker is configured and keeps local development observable.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Deliver(ctx context.Context, event Event) error {
	attrs := []any{
		"event_type", event.Type,
		"actor", event.Actor,
		"institution", event.Institution,
		"subject", event.Subject,
	}
	for k, v := range event.Attrs {
		attrs = append(attrs, k, v)
	}
	s.logger.InfoContext(ctx, "ledger event", attrs...)
	return nil
}
