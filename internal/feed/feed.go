// Package feed provides the market data sources the engine polls: a scripted
// mock market and a JSONL replay of recorded prices.
package feed

import (
	"time"

	"github.com/alanyoungcy/nearbot/internal/domain"
)

// Feed is the contract shared by every market data source. Playback controls
// are no-ops on sources that have no notion of playback.
type Feed interface {
	// Ticks returns the current batch of ticks, one per active event.
	Ticks() []domain.MarketTick
	// PriceHistory returns the YES price history kept for an event,
	// oldest first.
	PriceHistory(eventID string) []domain.PricePoint
	Reset()
	Start()
	Stop()
	Pause()
	Resume()
	SetSpeed(multiplier float64)
	// Progress reports playback position. The boolean is false when the
	// source has no playback.
	Progress() (Progress, bool)
}

// Progress describes how far a replay has advanced.
type Progress struct {
	Index     int       `json:"index"`
	Total     int       `json:"total"`
	Percent   float64   `json:"percent"`
	CurrentTS time.Time `json:"currentTs,omitzero"`
}
