// Package risk gates order admission on daily loss, loss streaks, concurrent
// events and per-event capital.
package risk

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/nearbot/internal/domain"
)

// Config holds the account risk limits.
type Config struct {
	BaseCapitalUSD        float64
	MaxDailyLossPct       float64
	MaxConsecutiveLosses  int
	MaxConcurrentEvents   int
	MaxCapitalPerEventPct float64
}

// Rejection codes, stable for metrics labels.
const (
	CodeDailyLoss         = "daily_loss"
	CodeConsecutiveLosses = "consecutive_losses"
	CodeConcurrentEvents  = "concurrent_events"
	CodeEventCapital      = "event_capital"
)

// Decision is the outcome of a pre-trade check.
type Decision struct {
	Allowed bool
	Code    string
	Reason  string
}

// State is the risk ledger for one calendar day (UTC). ActivePositions
// survives day rollover.
type State struct {
	Date                string            `json:"date"`
	DailyRealizedPnLUSD float64           `json:"dailyRealizedPnlUsd"`
	ConsecutiveLosses   int               `json:"consecutiveLosses"`
	ActivePositions     []domain.Position `json:"activePositions"`
}

// Rollover returns s with the daily counters cleared when now falls on a
// different UTC date than s.Date.
func Rollover(s State, now time.Time) State {
	today := now.UTC().Format(time.DateOnly)
	if s.Date == today {
		return s
	}
	s.Date = today
	s.DailyRealizedPnLUSD = 0
	s.ConsecutiveLosses = 0
	return s
}

// Manager tracks daily PnL, loss streaks and per-event exposure.
type Manager struct {
	mu     sync.Mutex
	cfg    Config
	state  State
	now    func() time.Time
	logger *slog.Logger
}

// NewManager creates a Manager with a fresh state dated today.
func NewManager(cfg Config, logger *slog.Logger) *Manager {
	m := &Manager{
		cfg:    cfg,
		now:    time.Now,
		logger: logger.With(slog.String("component", "risk")),
	}
	m.state = Rollover(State{}, m.now())
	return m
}

// WithClock swaps the time source.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	if now != nil {
		m.mu.Lock()
		m.now = now
		m.state = Rollover(m.state, now())
		m.mu.Unlock()
	}
	return m
}

// rollover applies Rollover to the held state. The caller must hold m.mu.
func (m *Manager) rollover() {
	prev := m.state.Date
	m.state = Rollover(m.state, m.now())
	if prev != m.state.Date {
		m.logger.Info("risk: day rollover",
			slog.String("from", prev),
			slog.String("to", m.state.Date),
		)
	}
}

// CanPlaceOrder checks the order against the limits in a fixed order and
// returns the first failure.
func (m *Manager) CanPlaceOrder(order domain.OrderRequest, notionalUSD float64) Decision {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rollover()

	if d := m.accountCheck(); !d.Allowed {
		return d
	}

	active := m.activeEvents()
	if !active[order.EventID] && len(active) >= m.cfg.MaxConcurrentEvents {
		return reject(CodeConcurrentEvents, "concurrent events limit reached: %d >= %d",
			len(active), m.cfg.MaxConcurrentEvents)
	}

	capLimit := m.cfg.BaseCapitalUSD * m.cfg.MaxCapitalPerEventPct
	exposure := m.eventExposure(order.EventID)
	if exposure+notionalUSD > capLimit {
		return reject(CodeEventCapital, "per-event capital exceeded for %s: %.2f + %.2f > %.2f",
			order.EventID, exposure, notionalUSD, capLimit)
	}

	return Decision{Allowed: true}
}

// Halted reports whether the account-level limits (daily loss and loss
// streak) currently block every new entry.
func (m *Manager) Halted() Decision {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rollover()
	return m.accountCheck()
}

// accountCheck applies the limits that do not depend on the order. The caller
// must hold m.mu.
func (m *Manager) accountCheck() Decision {
	lossLimit := m.cfg.BaseCapitalUSD * m.cfg.MaxDailyLossPct
	if m.state.DailyRealizedPnLUSD <= lossLimit {
		return reject(CodeDailyLoss, "daily loss limit reached: pnl %.2f <= limit %.2f",
			m.state.DailyRealizedPnLUSD, lossLimit)
	}
	if m.state.ConsecutiveLosses >= m.cfg.MaxConsecutiveLosses {
		return reject(CodeConsecutiveLosses, "consecutive loss limit reached: %d >= %d",
			m.state.ConsecutiveLosses, m.cfg.MaxConsecutiveLosses)
	}
	return Decision{Allowed: true}
}

func reject(code, format string, args ...any) Decision {
	return Decision{Code: code, Reason: fmt.Sprintf(format, args...)}
}

// activeEvents returns the events holding at least one open position. The
// caller must hold m.mu.
func (m *Manager) activeEvents() map[string]bool {
	out := make(map[string]bool)
	for _, p := range m.state.ActivePositions {
		if !p.Closed {
			out[p.EventID] = true
		}
	}
	return out
}

// eventExposure sums open exposure on one event. The caller must hold m.mu.
func (m *Manager) eventExposure(eventID string) float64 {
	var total float64
	for _, p := range m.state.ActivePositions {
		if !p.Closed && p.EventID == eventID {
			total += p.Exposure(m.cfg.BaseCapitalUSD)
		}
	}
	return total
}

// OnPositionOpened starts tracking p.
func (m *Manager) OnPositionOpened(p domain.Position) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rollover()
	m.state.ActivePositions = append(m.state.ActivePositions, p)
}

// OnPositionClosed books the realized PnL of p and replaces its tracked
// record.
func (m *Manager) OnPositionClosed(p domain.Position) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rollover()

	m.state.DailyRealizedPnLUSD += p.RealizedPnLUSD
	switch {
	case p.RealizedPnLUSD < 0:
		m.state.ConsecutiveLosses++
	case p.RealizedPnLUSD > 0:
		m.state.ConsecutiveLosses = 0
	}

	for i := range m.state.ActivePositions {
		if m.state.ActivePositions[i].ID == p.ID {
			m.state.ActivePositions[i] = p
			return
		}
	}
	m.state.ActivePositions = append(m.state.ActivePositions, p)
}

// HasRecentLossOnEvent reports whether any tracked position on the event
// closed at a loss.
func (m *Manager) HasRecentLossOnEvent(eventID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rollover()

	for _, p := range m.state.ActivePositions {
		if p.EventID == eventID && p.Closed && p.RealizedPnLUSD < 0 {
			return true
		}
	}
	return false
}

// State returns a copy of the current risk state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rollover()

	out := m.state
	out.ActivePositions = append([]domain.Position(nil), m.state.ActivePositions...)
	return out
}
