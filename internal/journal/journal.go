// Package journal persists bot decision logs to one or more sinks: a local
// JSONL file, a Redis stream and the Postgres audit log.
package journal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/alanyoungcy/nearbot/internal/domain"
)

// Sink persists journal lines.
type Sink interface {
	Write(ctx context.Context, line Line) error
}

// ErrorHandler is called once per failed sink write.
type ErrorHandler func(ctx context.Context, sink string, err error)

type namedSink struct {
	name string
	sink Sink
}

// Journal fans each log entry out to every registered sink. A failing sink
// never blocks the others.
type Journal struct {
	mu      sync.RWMutex
	sinks   []namedSink
	onError ErrorHandler
	logger  *slog.Logger
}

// New creates a Journal with no sinks.
func New(logger *slog.Logger) *Journal {
	return &Journal{
		logger: logger.With(slog.String("component", "journal")),
	}
}

// Add registers a sink under name.
func (j *Journal) Add(name string, s Sink) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.sinks = append(j.sinks, namedSink{name: name, sink: s})
}

// OnError sets the handler invoked for sink failures.
func (j *Journal) OnError(fn ErrorHandler) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.onError = fn
}

// Record writes e to every sink. Failures are logged, reported to the error
// handler and returned joined.
func (j *Journal) Record(ctx context.Context, e domain.LogEntry) error {
	j.mu.RLock()
	sinks := j.sinks
	onError := j.onError
	j.mu.RUnlock()

	line := NewLine(e)
	var errs []error
	for _, s := range sinks {
		if err := s.sink.Write(ctx, line); err != nil {
			err = fmt.Errorf("journal: write %s: %w", s.name, err)
			j.logger.ErrorContext(ctx, "journal write failed",
				slog.String("sink", s.name),
				slog.String("entry_id", e.ID),
				slog.String("error", err.Error()),
			)
			if onError != nil {
				onError(ctx, s.name, err)
			}
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink that holds resources.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	var errs []error
	for _, s := range j.sinks {
		if c, ok := s.sink.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("journal: close %s: %w", s.name, err))
			}
		}
	}
	return errors.Join(errs...)
}

// entryDetail converts a line to the generic map stored in the audit log.
func entryDetail(line Line) map[string]any {
	d := map[string]any{
		"id":      line.ID,
		"level":   string(line.Level),
		"message": line.Message,
	}
	if line.FlatEventID != "" {
		d["event_id"] = line.FlatEventID
	}
	if line.FlatTrigger != "" {
		d["trigger"] = string(line.FlatTrigger)
	}
	if line.TickTS != nil {
		d["tick_ts"] = *line.TickTS
		d["price"] = *line.Price
		d["time_to_resolution_min"] = *line.TimeToResolutionMin
	}
	if line.Snapshot != nil {
		d["volatility"] = line.Snapshot.Volatility
	}
	if len(line.Payload) > 0 {
		d["payload"] = line.Payload
	}
	return d
}

// auditEvent names the audit row for a line.
func auditEvent(line Line) string {
	if line.Trigger != "" {
		return "journal." + string(line.Trigger)
	}
	return "journal." + string(line.Level)
}

