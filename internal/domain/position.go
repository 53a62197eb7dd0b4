package domain

import (
	"fmt"
	"time"
)

// ExitReason records why a position was closed.
type ExitReason string

const (
	ExitTakeProfit ExitReason = "TAKE_PROFIT"
	ExitStopLoss   ExitReason = "STOP_LOSS"
	ExitForce      ExitReason = "FORCE_EXIT"
)

// Position is a simulated holding in one side of an event. It is created by a
// filled entry order and closed exactly once.
type Position struct {
	ID               string     `json:"id"`
	EventID          string     `json:"eventId"`
	Side             Side       `json:"side"`
	AvgEntryPrice    float64    `json:"avgEntryPrice"`
	Size             float64    `json:"size"`
	OpenedAt         time.Time  `json:"openTimestamp"`
	RealizedPnLUSD   float64    `json:"realizedPnlUsd"`
	UnrealizedPnLUSD float64    `json:"unrealizedPnlUsd"`
	Closed           bool       `json:"closed"`
	ClosedAt         *time.Time `json:"closedTimestamp,omitempty"`
	ExitPrice        *float64   `json:"exitPrice,omitempty"`
	ExitReason       ExitReason `json:"exitReason,omitempty"`
}

// PnL is the side-aware profit of moving from entry to exit for size units of
// base capital.
func PnL(side Side, entry, exit, size, baseCapital float64) float64 {
	if side == SideNo {
		return (entry - exit) * size * baseCapital
	}
	return (exit - entry) * size * baseCapital
}

// Exposure returns the dollar exposure at the entry price.
func (p Position) Exposure(baseCapital float64) float64 {
	return p.AvgEntryPrice * p.Size * baseCapital
}

// Close marks the position closed at exitPrice and returns the realized PnL.
// All close fields are set together; closing twice is an error.
func (p *Position) Close(exitPrice float64, reason ExitReason, at time.Time, baseCapital float64) (float64, error) {
	if p.Closed {
		return 0, fmt.Errorf("position %s: %w", p.ID, ErrPositionClosed)
	}
	pnl := PnL(p.Side, p.AvgEntryPrice, exitPrice, p.Size, baseCapital)
	closedAt := at
	exit := exitPrice
	*p = Position{
		ID:             p.ID,
		EventID:        p.EventID,
		Side:           p.Side,
		AvgEntryPrice:  p.AvgEntryPrice,
		Size:           p.Size,
		OpenedAt:       p.OpenedAt,
		RealizedPnLUSD: pnl,
		Closed:         true,
		ClosedAt:       &closedAt,
		ExitPrice:      &exit,
		ExitReason:     reason,
	}
	return pnl, nil
}

// HoldingTime is the time between open and close, or zero while open.
func (p Position) HoldingTime() time.Duration {
	if p.ClosedAt == nil {
		return 0
	}
	return p.ClosedAt.Sub(p.OpenedAt)
}
