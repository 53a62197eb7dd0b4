package feed

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"sync"
	"time"

	"github.com/alanyoungcy/nearbot/internal/domain"
)

const (
	// DefaultReplaySpeed advances sixty rows per wall-clock second.
	DefaultReplaySpeed = 60.0
	minReplaySpeed     = 0.1
	minReplayInterval  = 50 * time.Millisecond
	defaultReplayVol   = 1000.0
)

// ReplayRow is one line of a replay file.
type ReplayRow struct {
	TS                  *string  `json:"ts"`
	Price               *float64 `json:"price"`
	Volume              *float64 `json:"volume,omitempty"`
	Bid                 *float64 `json:"bid,omitempty"`
	Ask                 *float64 `json:"ask,omitempty"`
	EventID             string   `json:"event_id,omitempty"`
	MarketTitle         string   `json:"market_title,omitempty"`
	ResolutionTS        string   `json:"resolution_ts,omitempty"`
	TimeToResolutionMin *float64 `json:"time_to_resolution_min,omitempty"`
}

// ReplayConfig holds the defaults applied to rows that omit event fields.
type ReplayConfig struct {
	EventID     string
	MarketTitle string
	// ResolutionTime is used when a row carries neither
	// time_to_resolution_min nor resolution_ts. Zero means unknown.
	ResolutionTime time.Time
	Speed          float64
}

// Replay plays back recorded prices one row at a time. A background goroutine
// advances the cursor at a rate set by the speed multiplier.
type Replay struct {
	mu     sync.Mutex
	cfg    ReplayConfig
	ticks  []domain.MarketTick
	source string
	index  int
	paused bool
	speed  float64
	stop   chan struct{}
	onEnd  func()
	logger *slog.Logger
}

// NewReplay creates an empty, paused Replay.
func NewReplay(cfg ReplayConfig, logger *slog.Logger) *Replay {
	if cfg.EventID == "" {
		cfg.EventID = "replay-event-1"
	}
	if cfg.MarketTitle == "" {
		cfg.MarketTitle = "Replay Event"
	}
	if cfg.Speed <= 0 {
		cfg.Speed = DefaultReplaySpeed
	}
	return &Replay{
		cfg:    cfg,
		paused: true,
		speed:  math.Max(minReplaySpeed, cfg.Speed),
		logger: logger.With(slog.String("component", "replay_feed")),
	}
}

// OnEnd registers a callback invoked after playback reaches the last row.
func (r *Replay) OnEnd(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onEnd = fn
}

// LoadFile reads a JSONL replay file from disk.
func (r *Replay) LoadFile(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("feed: open replay file: %w", err)
	}
	defer f.Close()
	return r.Load(f, path)
}

// Load parses JSONL rows from src and replaces the loaded data. Lines that are
// not JSON or lack a string ts and a numeric price are skipped. When no valid
// row remains the current data is left untouched.
func (r *Replay) Load(src io.Reader, source string) (int, error) {
	rows, err := parseRows(src)
	if err != nil {
		return 0, fmt.Errorf("feed: read replay %s: %w", source, err)
	}
	if len(rows) == 0 {
		return 0, fmt.Errorf("feed: load replay %s: %w", source, domain.ErrNoReplayData)
	}

	ticks := make([]domain.MarketTick, len(rows))
	for i, row := range rows {
		prev := *row.Price
		if i > 0 {
			prev = *rows[i-1].Price
		}
		ticks[i] = r.rowToTick(row, prev)
	}

	r.mu.Lock()
	r.stopLocked()
	r.ticks = ticks
	r.source = source
	r.index = 0
	r.mu.Unlock()

	r.logger.Info("replay loaded",
		slog.String("source", source),
		slog.Int("rows", len(ticks)),
	)
	return len(ticks), nil
}

func parseRows(src io.Reader) ([]ReplayRow, error) {
	var rows []ReplayRow
	sc := bufio.NewScanner(src)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var row ReplayRow
		if err := json.Unmarshal(line, &row); err != nil {
			continue
		}
		if row.TS == nil || row.Price == nil {
			continue
		}
		if _, ok := parseTS(*row.TS); !ok {
			continue
		}
		rows = append(rows, row)
	}
	return rows, sc.Err()
}

var tsLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.DateOnly,
}

func parseTS(s string) (time.Time, bool) {
	for _, layout := range tsLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func (r *Replay) rowToTick(row ReplayRow, prevPrice float64) domain.MarketTick {
	ts, _ := parseTS(*row.TS)

	var secs float64
	switch {
	case row.TimeToResolutionMin != nil:
		secs = *row.TimeToResolutionMin * 60
	case row.ResolutionTS != "":
		if res, ok := parseTS(row.ResolutionTS); ok {
			secs = res.Sub(ts).Seconds()
		}
	case !r.cfg.ResolutionTime.IsZero():
		secs = r.cfg.ResolutionTime.Sub(ts).Seconds()
	}

	ev := domain.MarketEvent{
		ID:                  r.cfg.EventID,
		Title:               r.cfg.MarketTitle,
		SecondsToResolution: math.Max(0, secs),
	}
	if row.EventID != "" {
		ev.ID = row.EventID
	}
	if row.MarketTitle != "" {
		ev.Title = row.MarketTitle
	}

	vol := defaultReplayVol
	if row.Volume != nil {
		vol = *row.Volume
	}
	price := *row.Price
	return domain.NewMarketTick(ev, price, math.Abs(price-prevPrice), vol, vol, ts)
}

// Ticks returns the row at the cursor, or the last row once playback ended.
func (r *Replay) Ticks() []domain.MarketTick {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.ticks) == 0 {
		return nil
	}
	idx := min(r.index, len(r.ticks)-1)
	return []domain.MarketTick{r.ticks[idx]}
}

// PriceHistory returns every row of the event up to and including the cursor.
func (r *Replay) PriceHistory(eventID string) []domain.PricePoint {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.ticks) == 0 {
		return nil
	}
	last := min(r.index, len(r.ticks)-1)
	var out []domain.PricePoint
	for _, t := range r.ticks[:last+1] {
		if t.Event.ID == eventID {
			out = append(out, domain.PricePoint{Timestamp: t.Timestamp, Price: t.YesPrice})
		}
	}
	return out
}

// Reset stops playback and rewinds to the first row.
func (r *Replay) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopLocked()
	r.index = 0
}

// Start begins advancing the cursor. It is a no-op while already running.
func (r *Replay) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.startLocked()
}

func (r *Replay) startLocked() {
	if r.stop != nil {
		return
	}
	r.paused = false
	interval := max(minReplayInterval, time.Duration(float64(time.Second)/r.speed))
	stop := make(chan struct{})
	r.stop = stop
	go r.run(stop, interval)
}

func (r *Replay) run(stop <-chan struct{}, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if !r.advance(stop) {
				return
			}
		}
	}
}

// advance moves the cursor one row if the playback identified by stop is
// still current and not paused. It returns false once that playback is over.
func (r *Replay) advance(stop <-chan struct{}) bool {
	r.mu.Lock()
	if r.stop != stop {
		r.mu.Unlock()
		return false
	}
	if r.paused {
		r.mu.Unlock()
		return true
	}
	ended := r.stepLocked()
	onEnd := r.onEnd
	r.mu.Unlock()

	if ended {
		r.logger.Info("replay finished")
		if onEnd != nil {
			onEnd()
		}
	}
	return !ended
}

// Step advances the cursor by one row regardless of the timer and reports
// whether the end was reached.
func (r *Replay) Step() bool {
	r.mu.Lock()
	ended := r.stepLocked()
	onEnd := r.onEnd
	r.mu.Unlock()

	if ended && onEnd != nil {
		onEnd()
	}
	return ended
}

func (r *Replay) stepLocked() bool {
	if r.index >= len(r.ticks) {
		return false
	}
	r.index++
	if r.index >= len(r.ticks) {
		r.stopLocked()
		return true
	}
	return false
}

// Stop halts playback and leaves the cursor where it is.
func (r *Replay) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopLocked()
}

func (r *Replay) stopLocked() {
	if r.stop != nil {
		close(r.stop)
		r.stop = nil
	}
	r.paused = true
}

func (r *Replay) Pause() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paused = true
}

func (r *Replay) Resume() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paused = false
}

// SetSpeed sets the playback multiplier, floored at 0.1. A running timer is
// restarted with the new interval.
func (r *Replay) SetSpeed(multiplier float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.speed = math.Max(minReplaySpeed, multiplier)
	if r.stop != nil {
		r.stopLocked()
		r.startLocked()
	}
}

// Speed returns the current playback multiplier.
func (r *Replay) Speed() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.speed
}

// Running reports whether the playback timer is active.
func (r *Replay) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stop != nil
}

// Source returns the file path or blob key of the loaded data.
func (r *Replay) Source() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.source
}

// Progress reports the cursor position. It is always available, with zero
// totals when nothing is loaded.
func (r *Replay) Progress() (Progress, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	total := len(r.ticks)
	p := Progress{Index: min(r.index, total), Total: total}
	if total > 0 {
		p.Percent = float64(p.Index) / float64(total) * 100
	}
	if p.Index < total {
		p.CurrentTS = r.ticks[p.Index].Timestamp
	}
	return p, true
}
