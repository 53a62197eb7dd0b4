package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alanyoungcy/nearbot/internal/domain"
	"github.com/alanyoungcy/nearbot/internal/state"
)

const (
	contentTypeJSONL = "application/x-ndjson"
	contentTypeJSON  = "application/json"

	// multipartThreshold is the journal size above which uploads switch to
	// the multipart manager.
	multipartThreshold int64 = 16 * 1024 * 1024
	journalPartSize    int64 = 8 * 1024 * 1024
)

// Archiver copies finished scenarios and journal files to object storage.
// Every upload is recorded in the audit log when one is configured.
type Archiver struct {
	writer        domain.BlobWriter
	audit         domain.AuditStore
	journalPrefix string
	now           func() time.Time
	logger        *slog.Logger
}

// NewArchiver creates an Archiver. audit may be nil; an empty journalPrefix
// uses "journal/".
func NewArchiver(writer domain.BlobWriter, audit domain.AuditStore, journalPrefix string, logger *slog.Logger) *Archiver {
	if journalPrefix == "" {
		journalPrefix = "journal/"
	}
	return &Archiver{
		writer:        writer,
		audit:         audit,
		journalPrefix: normalisePrefix(journalPrefix),
		now:           time.Now,
		logger:        logger.With(slog.String("component", "archiver")),
	}
}

// WithClock swaps the time source used for archive paths.
func (a *Archiver) WithClock(now func() time.Time) *Archiver {
	if now != nil {
		a.now = now
	}
	return a
}

// Archive uploads the positions, fills and logs of a scenario as JSONL plus
// a summary report under scenarios/<UTC timestamp>/. An empty scenario is
// skipped.
func (a *Archiver) Archive(ctx context.Context, snap state.Snapshot) error {
	if len(snap.Positions) == 0 && len(snap.ExecutedOrders) == 0 && len(snap.Logs) == 0 {
		return nil
	}

	dir := scenarioDir(a.now())
	titles := make(map[string]string, len(snap.Prices))
	for _, p := range snap.Prices {
		titles[p.EventID] = p.Title
	}

	uploads := []struct {
		name    string
		records func() ([]byte, error)
		ctype   string
	}{
		{"positions.jsonl", func() ([]byte, error) { return marshalJSONL(snap.Positions) }, contentTypeJSONL},
		{"orders.jsonl", func() ([]byte, error) { return marshalJSONL(snap.ExecutedOrders) }, contentTypeJSONL},
		{"logs.jsonl", func() ([]byte, error) { return marshalJSONL(snap.Logs) }, contentTypeJSONL},
		{"report.json", func() ([]byte, error) { return json.Marshal(state.BuildReport(snap.Positions, titles)) }, contentTypeJSON},
	}
	for _, u := range uploads {
		data, err := u.records()
		if err != nil {
			return fmt.Errorf("s3blob: archive %s marshal: %w", u.name, err)
		}
		if err := a.writer.Put(ctx, dir+u.name, bytes.NewReader(data), u.ctype); err != nil {
			return fmt.Errorf("s3blob: archive %s upload: %w", u.name, err)
		}
	}

	a.logger.InfoContext(ctx, "scenario archived",
		slog.String("path", dir),
		slog.Int("positions", len(snap.Positions)),
		slog.Int("orders", len(snap.ExecutedOrders)),
	)
	return a.record(ctx, "archive.scenario", map[string]any{
		"path":      dir,
		"positions": len(snap.Positions),
		"orders":    len(snap.ExecutedOrders),
		"logs":      len(snap.Logs),
		"pnl_usd":   snap.RealizedPnLUSD,
	})
}

// ArchiveJournal uploads the journal file at localPath and returns its
// object path. An empty or missing file uploads nothing.
func (a *Archiver) ArchiveJournal(ctx context.Context, localPath string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("s3blob: archive journal open: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("s3blob: archive journal stat: %w", err)
	}
	if info.Size() == 0 {
		return "", nil
	}

	path := a.journalPrefix + journalPath(localPath, a.now())
	if info.Size() > multipartThreshold {
		err = a.writer.PutMultipart(ctx, path, f, journalPartSize)
	} else {
		err = a.writer.Put(ctx, path, f, contentTypeJSONL)
	}
	if err != nil {
		return "", fmt.Errorf("s3blob: archive journal upload: %w", err)
	}

	a.logger.InfoContext(ctx, "journal archived",
		slog.String("path", path),
		slog.Int64("bytes", info.Size()),
	)
	return path, a.record(ctx, "archive.journal", map[string]any{
		"path":  path,
		"bytes": info.Size(),
	})
}

func (a *Archiver) record(ctx context.Context, event string, detail map[string]any) error {
	if a.audit == nil {
		return nil
	}
	if err := a.audit.Log(ctx, event, detail); err != nil {
		return fmt.Errorf("s3blob: %s audit log: %w", event, err)
	}
	return nil
}

// scenarioDir is the object prefix for a scenario archived at t:
//
//	scenarios/20260301T120000Z/
func scenarioDir(t time.Time) string {
	return "scenarios/" + t.UTC().Format("20060102T150405Z") + "/"
}

// journalPath names the upload of a local journal file below the journal
// prefix:
//
//	2026-03-01/decisions-20260301T120000Z.jsonl
func journalPath(localPath string, t time.Time) string {
	t = t.UTC()
	base := strings.TrimSuffix(filepath.Base(localPath), filepath.Ext(localPath))
	return fmt.Sprintf("%s/%s-%s.jsonl", t.Format(time.DateOnly), base, t.Format("20060102T150405Z"))
}

// marshalJSONL encodes each record as one compact JSON line.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
