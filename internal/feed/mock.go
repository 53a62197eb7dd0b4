package feed

import (
	"log/slog"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/alanyoungcy/nearbot/internal/domain"
)

// Scripted mock events.
const (
	MockRisingEventID   = "event-1"
	MockCrashingEventID = "event-2"
)

const (
	mockMinPrice  = 0.5
	mockMaxPrice  = 0.99
	mockAvgVolume = 1000.0
)

// mockScript describes how one scripted event moves.
type mockScript struct {
	event      domain.MarketEvent
	startPrice float64
	// step returns the next price given the previous one, the minutes
	// elapsed since the scenario began and a noise sample in [-0.5, 0.5).
	step func(prev, elapsedMin, noise float64) float64
}

var mockScripts = []mockScript{
	{
		event:      domain.MarketEvent{ID: MockRisingEventID, Title: "Sample Event 1", SecondsToResolution: 4 * 60 * 60},
		startPrice: 0.88,
		step: func(prev, _, noise float64) float64 {
			return prev + 0.0005 + noise*0.005
		},
	},
	{
		event:      domain.MarketEvent{ID: MockCrashingEventID, Title: "Sample Event 2", SecondsToResolution: 6 * 60 * 60},
		startPrice: 0.90,
		step: func(prev, elapsedMin, noise float64) float64 {
			n := noise * 0.004
			switch {
			case elapsedMin < 30:
				return prev + n
			case elapsedMin < 60:
				return prev - 0.0008 + n
			default:
				return prev - 0.003 + n
			}
		},
	},
}

// MockConfig configures the scripted market.
type MockConfig struct {
	// Seed fixes the noise generator; zero seeds from the clock.
	Seed int64
	// TickStep is subtracted from every countdown on each Ticks call.
	TickStep time.Duration
}

// Mock is a scripted two-event market: event-1 drifts up towards the take
// profit band, event-2 trades flat and then falls through the stop loss.
type Mock struct {
	mu      sync.Mutex
	cfg     MockConfig
	rng     *rand.Rand
	now     func() time.Time
	events  []domain.MarketEvent
	prices  map[string]float64
	history *History
	logger  *slog.Logger
}

// NewMock creates a Mock positioned at the start of its script.
func NewMock(cfg MockConfig, logger *slog.Logger) *Mock {
	if cfg.TickStep <= 0 {
		cfg.TickStep = 10 * time.Second
	}
	seed := uint64(cfg.Seed)
	if cfg.Seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	m := &Mock{
		cfg:     cfg,
		rng:     rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		now:     time.Now,
		history: NewHistory(DefaultHistoryWindow),
		logger:  logger.With(slog.String("component", "mock_feed")),
	}
	m.resetLocked()
	return m
}

// WithClock replaces the time source used to stamp ticks.
func (m *Mock) WithClock(now func() time.Time) *Mock {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
	return m
}

// Ticks advances every scripted event by one step and returns the new ticks.
func (m *Mock) Ticks() []domain.MarketTick {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	step := m.cfg.TickStep.Seconds()
	ticks := make([]domain.MarketTick, 0, len(m.events))

	for i, sc := range mockScripts {
		ev := m.events[i]
		ev.SecondsToResolution = math.Max(0, ev.SecondsToResolution-step)
		m.events[i] = ev

		elapsedMin := (sc.event.SecondsToResolution - ev.SecondsToResolution) / 60
		next := sc.step(m.prices[ev.ID], elapsedMin, m.rng.Float64()-0.5)
		next = math.Max(mockMinPrice, math.Min(mockMaxPrice, next))
		m.prices[ev.ID] = next

		m.history.Track(ev.ID, next, now)
		vol30m := mockAvgVolume * (0.5 + m.rng.Float64())

		ticks = append(ticks, domain.NewMarketTick(ev, next, m.history.Volatility(ev.ID), vol30m, mockAvgVolume, now))
	}
	return ticks
}

// PriceHistory returns the last 30 minutes of YES prices for an event.
func (m *Mock) PriceHistory(eventID string) []domain.PricePoint {
	return m.history.Get(eventID)
}

// Reset rewinds the script to its initial prices and countdowns.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetLocked()
	m.logger.Debug("mock market reset")
}

func (m *Mock) resetLocked() {
	m.events = make([]domain.MarketEvent, len(mockScripts))
	m.prices = make(map[string]float64, len(mockScripts))
	for i, sc := range mockScripts {
		m.events[i] = sc.event
		m.prices[sc.event.ID] = sc.startPrice
	}
	m.history.Reset()
}

func (m *Mock) Start()           {}
func (m *Mock) Stop()            {}
func (m *Mock) Pause()           {}
func (m *Mock) Resume()          {}
func (m *Mock) SetSpeed(float64) {}

// Progress always reports false: the mock market has no playback.
func (m *Mock) Progress() (Progress, bool) { return Progress{}, false }
