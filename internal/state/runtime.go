// Package state holds the bot's in-memory ledger: positions, fills, realized
// PnL, event phases, the latest prices and the recent log ring.
package state

import (
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/alanyoungcy/nearbot/internal/domain"
)

// Snapshot is a consistent copy of the runtime ledger.
type Snapshot struct {
	BotEnabled     bool                              `json:"botEnabled"`
	Positions      []domain.Position                 `json:"positions"`
	ExecutedOrders []domain.ExecutedOrder            `json:"executedOrders"`
	RealizedPnLUSD float64                           `json:"realizedPnlUsd"`
	EventPhases    map[string]domain.EventPhaseState `json:"eventPhases"`
	Prices         []domain.PriceSnapshot            `json:"prices"`
	Logs           []domain.LogEntry                 `json:"logs"`
}

// Runtime is the mutable bot ledger. Every method is safe for concurrent use
// and readers always receive copies.
type Runtime struct {
	mu         sync.RWMutex
	botEnabled bool
	positions  []domain.Position
	orders     []domain.ExecutedOrder
	realized   float64
	phases     map[string]domain.EventPhaseState
	prices     []domain.PriceSnapshot
	titles     map[string]string
	logs       *LogRing
}

// NewRuntime creates an empty ledger.
func NewRuntime(botEnabled bool, logCapacity int) *Runtime {
	return &Runtime{
		botEnabled: botEnabled,
		phases:     make(map[string]domain.EventPhaseState),
		titles:     make(map[string]string),
		logs:       NewLogRing(logCapacity),
	}
}

func (r *Runtime) BotEnabled() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.botEnabled
}

func (r *Runtime) SetBotEnabled(enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.botEnabled = enabled
}

// ToggleBotEnabled flips the enabled flag and returns the new value.
func (r *Runtime) ToggleBotEnabled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.botEnabled = !r.botEnabled
	return r.botEnabled
}

// SetPrices replaces the price snapshot and remembers every event title seen.
func (r *Runtime) SetPrices(prices []domain.PriceSnapshot) {
	cp := make([]domain.PriceSnapshot, len(prices))
	copy(cp, prices)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.prices = cp
	for _, p := range cp {
		r.titles[p.EventID] = p.Title
	}
}

// Titles maps every event id seen since the last reset to its title.
func (r *Runtime) Titles() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return maps.Clone(r.titles)
}

func (r *Runtime) Prices() []domain.PriceSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.PriceSnapshot, len(r.prices))
	copy(out, r.prices)
	return out
}

// AddPosition records a newly opened position.
func (r *Runtime) AddPosition(p domain.Position) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.positions = append(r.positions, p)
}

// Positions returns every position, open and closed, in opening order.
func (r *Runtime) Positions() []domain.Position {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.copyPositions(func(domain.Position) bool { return true })
}

// OpenPositions returns the positions that are not closed.
func (r *Runtime) OpenPositions() []domain.Position {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.copyPositions(func(p domain.Position) bool { return !p.Closed })
}

func (r *Runtime) copyPositions(keep func(domain.Position) bool) []domain.Position {
	out := make([]domain.Position, 0, len(r.positions))
	for _, p := range r.positions {
		if keep(p) {
			out = append(out, p)
		}
	}
	return out
}

// ClosePosition closes the open position with the given id, adds its PnL to
// the cumulative realized total and returns the closed copy.
func (r *Runtime) ClosePosition(id string, exitPrice float64, reason domain.ExitReason, at time.Time, baseCapital float64) (domain.Position, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.positions {
		if r.positions[i].ID != id {
			continue
		}
		pnl, err := r.positions[i].Close(exitPrice, reason, at, baseCapital)
		if err != nil {
			return domain.Position{}, fmt.Errorf("state: close position: %w", err)
		}
		r.realized += pnl
		return r.positions[i], nil
	}
	return domain.Position{}, fmt.Errorf("state: close position %s: %w", id, domain.ErrNotFound)
}

// SetUnrealized updates the mark-to-market PnL of an open position.
func (r *Runtime) SetUnrealized(id string, pnl float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.positions {
		if r.positions[i].ID == id && !r.positions[i].Closed {
			r.positions[i].UnrealizedPnLUSD = pnl
			return
		}
	}
}

// AddOrder appends a filled order.
func (r *Runtime) AddOrder(o domain.ExecutedOrder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders = append(r.orders, o)
}

func (r *Runtime) Orders() []domain.ExecutedOrder {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.ExecutedOrder, len(r.orders))
	copy(out, r.orders)
	return out
}

// RealizedPnL returns the cumulative realized PnL since the last reset.
func (r *Runtime) RealizedPnL() float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.realized
}

// SetPhase records the phase of an event.
func (r *Runtime) SetPhase(eventID string, phase domain.Phase, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.phases[eventID] = domain.EventPhaseState{EventID: eventID, Phase: phase, UpdatedAt: at}
}

// EnsurePhase sets phase only for events that have none yet.
func (r *Runtime) EnsurePhase(eventID string, phase domain.Phase, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.phases[eventID]; !ok {
		r.phases[eventID] = domain.EventPhaseState{EventID: eventID, Phase: phase, UpdatedAt: at}
	}
}

// Phase returns the phase of an event.
func (r *Runtime) Phase(eventID string) (domain.EventPhaseState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ps, ok := r.phases[eventID]
	return ps, ok
}

func (r *Runtime) Phases() map[string]domain.EventPhaseState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return maps.Clone(r.phases)
}

// AppendLog adds an entry to the log ring.
func (r *Runtime) AppendLog(e domain.LogEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs.Append(e)
}

func (r *Runtime) Logs() []domain.LogEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.logs.Entries()
}

// Snapshot copies the whole ledger under one read lock.
func (r *Runtime) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := Snapshot{
		BotEnabled:     r.botEnabled,
		Positions:      r.copyPositions(func(domain.Position) bool { return true }),
		ExecutedOrders: make([]domain.ExecutedOrder, len(r.orders)),
		RealizedPnLUSD: r.realized,
		EventPhases:    maps.Clone(r.phases),
		Prices:         make([]domain.PriceSnapshot, len(r.prices)),
		Logs:           r.logs.Entries(),
	}
	copy(s.ExecutedOrders, r.orders)
	copy(s.Prices, r.prices)
	return s
}

// Reset clears everything except the enabled flag.
func (r *Runtime) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.positions = nil
	r.orders = nil
	r.realized = 0
	r.phases = make(map[string]domain.EventPhaseState)
	r.prices = nil
	r.titles = make(map[string]string)
	r.logs.Reset()
}
