package feed

import (
	"math"
	"sync"
	"time"

	"github.com/alanyoungcy/nearbot/internal/domain"
)

// DefaultHistoryWindow is how far back price history is kept.
const DefaultHistoryWindow = 30 * time.Minute

// History maintains a sliding window of recent YES prices per event and the
// volatility measure derived from it.
type History struct {
	mu     sync.RWMutex
	points map[string][]domain.PricePoint
	window time.Duration
}

// NewHistory creates a History that discards points older than window
// relative to the newest point of each event.
func NewHistory(window time.Duration) *History {
	return &History{
		points: make(map[string][]domain.PricePoint),
		window: window,
	}
}

// Track records a price observation and trims points outside the window.
func (h *History) Track(eventID string, price float64, ts time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.points[eventID] = append(h.points[eventID], domain.PricePoint{Timestamp: ts, Price: price})
	h.trim(eventID, ts)
}

// Get returns a copy of the event's history, oldest first.
func (h *History) Get(eventID string) []domain.PricePoint {
	h.mu.RLock()
	defer h.mu.RUnlock()

	src := h.points[eventID]
	if len(src) == 0 {
		return nil
	}
	out := make([]domain.PricePoint, len(src))
	copy(out, src)
	return out
}

// Volatility returns the mean absolute change between consecutive points in
// the window. Fewer than two points yield 0.
func (h *History) Volatility(eventID string) float64 {
	h.mu.RLock()
	defer h.mu.RUnlock()

	pts := h.points[eventID]
	if len(pts) < 2 {
		return 0
	}
	var sum float64
	for i := 1; i < len(pts); i++ {
		sum += math.Abs(pts[i].Price - pts[i-1].Price)
	}
	return sum / float64(len(pts)-1)
}

// Reset drops all history.
func (h *History) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	clear(h.points)
}

// trim removes points strictly older than window before now.
// The caller must hold h.mu.
func (h *History) trim(eventID string, now time.Time) {
	cutoff := now.Add(-h.window)
	pts := h.points[eventID]

	i := 0
	for i < len(pts) && pts[i].Timestamp.Before(cutoff) {
		i++
	}
	if i > 0 {
		h.points[eventID] = pts[i:]
	}
}
