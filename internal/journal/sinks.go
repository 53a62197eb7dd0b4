package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/alanyoungcy/nearbot/internal/domain"
)

// FileSink appends lines to a local JSONL file.
type FileSink struct {
	mu   sync.Mutex
	path string
	f    *os.File
}

// OpenFile opens path for appending, creating parent directories as needed.
func OpenFile(path string) (*FileSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("journal: create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", path, err)
	}
	return &FileSink{path: path, f: f}, nil
}

// Path returns the file location.
func (s *FileSink) Path() string { return s.path }

func (s *FileSink) Write(_ context.Context, line Line) error {
	b, err := json.Marshal(line)
	if err != nil {
		return fmt.Errorf("marshal line: %w", err)
	}
	b = append(b, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.f.Write(b); err != nil {
		return fmt.Errorf("append: %w", err)
	}
	return nil
}

func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.f.Close()
}

// StreamSink appends lines to the journal stream of a SignalBus.
type StreamSink struct {
	bus domain.SignalBus
}

func NewStreamSink(bus domain.SignalBus) *StreamSink {
	return &StreamSink{bus: bus}
}

func (s *StreamSink) Write(ctx context.Context, line Line) error {
	b, err := json.Marshal(line)
	if err != nil {
		return fmt.Errorf("marshal line: %w", err)
	}
	return s.bus.StreamAppend(ctx, domain.StreamJournal, b)
}

// AuditSink records lines in the audit store.
type AuditSink struct {
	store domain.AuditStore
}

func NewAuditSink(store domain.AuditStore) *AuditSink {
	return &AuditSink{store: store}
}

func (s *AuditSink) Write(ctx context.Context, line Line) error {
	return s.store.Log(ctx, auditEvent(line), entryDetail(line))
}
