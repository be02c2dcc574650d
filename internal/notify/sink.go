// Package notify fans structured pool events out to every registered sink
// (logging, redis bus, event store, websocket hub). Sinks can be filtered by
// event type so a deployment indexes only the records it cares about.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alanyoungcy/wagerpool/internal/domain"
)

// Fanout dispatches events to one or more sinks. It maintains a set of
// allowed event types; events outside the set are dropped. An empty set
// allows everything.
type Fanout struct {
	sinks  []domain.EventSink
	events map[domain.EventType]bool
	logger *slog.Logger
}

// NewFanout creates a Fanout delivering to the given sinks. Only events
// whose type appears in events are forwarded; if events is empty, all pass.
func NewFanout(sinks []domain.EventSink, events []string, logger *slog.Logger) *Fanout {
	allowed := make(map[domain.EventType]bool, len(events))
	for _, e := range events {
		allowed[domain.EventType(strings.TrimSpace(e))] = true
	}
	return &Fanout{
		sinks:  sinks,
		events: allowed,
		logger: logger.With(slog.String("component", "notify")),
	}
}

// Emit delivers ev to every sink. Errors from individual sinks are collected
// into a combined error; one sink failing does not prevent delivery to the
// rest, and the pool core treats the combined error as log-only anyway.
func (f *Fanout) Emit(ctx context.Context, ev domain.Event) error {
	if len(f.events) > 0 && !f.events[ev.Type] {
		f.logger.DebugContext(ctx, "event filtered out",
			slog.String("event", string(ev.Type)),
		)
		return nil
	}

	var errs []string
	for _, s := range f.sinks {
		if err := s.Emit(ctx, ev); err != nil {
			f.logger.ErrorContext(ctx, "sink failed",
				slog.String("event", string(ev.Type)),
				slog.String("error", err.Error()),
			)
			errs = append(errs, err.Error())
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sink(s) failed: %s", len(errs), strings.Join(errs, "; "))
	}
	return nil
}

// LogSink writes every event as a structured log record.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a LogSink on the given logger.
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger.With(slog.String("component", "events"))}
}

// Emit logs the event at info level with its structured fields.
func (s *LogSink) Emit(ctx context.Context, ev domain.Event) error {
	attrs := []any{
		slog.String("event_id", ev.ID),
		slog.String("type", string(ev.Type)),
		slog.Uint64("market_id", ev.MarketID),
		slog.String("actor", ev.Actor.Hex()),
		slog.Time("at", ev.At),
	}
	for k, v := range ev.Fields {
		attrs = append(attrs, slog.Any(k, v))
	}
	s.logger.InfoContext(ctx, "pool event", attrs...)
	return nil
}

// Compile-time interface checks.
var (
	_ domain.EventSink = (*Fanout)(nil)
	_ domain.EventSink = (*LogSink)(nil)
)
