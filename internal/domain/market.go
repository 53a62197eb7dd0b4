package domain

import "time"

// Side is the outcome a position is held on.
type Side string

const (
	SideYes Side = "YES"
	SideNo  Side = "NO"
)

// MarketEvent identifies a binary-outcome event. SecondsToResolution is owned
// by the feed and counts down on every tick.
type MarketEvent struct {
	ID                  string  `json:"id"`
	Title               string  `json:"title"`
	SecondsToResolution float64 `json:"secondsToResolution"`
}

// MarketTick is a point-in-time observation of one event. Ticks are passed by
// value and never mutated after creation.
type MarketTick struct {
	Event         MarketEvent `json:"event"`
	YesPrice      float64     `json:"yesPrice"`
	NoPrice       float64     `json:"noPrice"`
	Volatility30m float64     `json:"volatility30m"`
	Volume30m     float64     `json:"volume30m"`
	AvgVolume2h   float64     `json:"avgVolume2h"`
	Timestamp     time.Time   `json:"timestamp"`
}

// NewMarketTick builds a tick with NoPrice derived from yes so the two always
// sum to one.
func NewMarketTick(ev MarketEvent, yes, volatility, vol30m, avgVol2h float64, ts time.Time) MarketTick {
	return MarketTick{
		Event:         ev,
		YesPrice:      yes,
		NoPrice:       1 - yes,
		Volatility30m: volatility,
		Volume30m:     vol30m,
		AvgVolume2h:   avgVol2h,
		Timestamp:     ts,
	}
}

// PriceFor returns the price of the given side.
func (t MarketTick) PriceFor(side Side) float64 {
	if side == SideNo {
		return t.NoPrice
	}
	return t.YesPrice
}

// MinutesToResolution converts the event countdown to minutes.
func (t MarketTick) MinutesToResolution() float64 {
	return t.Event.SecondsToResolution / 60
}

// PricePoint is one YES price observation kept for stop-loss lookback.
type PricePoint struct {
	Timestamp time.Time `json:"timestamp"`
	Price     float64   `json:"price"`
}

// PriceSnapshot is the per-event row exposed in runtime status.
type PriceSnapshot struct {
	EventID             string    `json:"eventId"`
	Title               string    `json:"title"`
	YesPrice            float64   `json:"yesPrice"`
	NoPrice             float64   `json:"noPrice"`
	SecondsToResolution float64   `json:"secondsToResolution"`
	Timestamp           time.Time `json:"timestamp"`
}

// SnapshotOf derives the status row for a tick.
func SnapshotOf(t MarketTick) PriceSnapshot {
	return PriceSnapshot{
		EventID:             t.Event.ID,
		Title:               t.Event.Title,
		YesPrice:            t.YesPrice,
		NoPrice:             t.NoPrice,
		SecondsToResolution: t.Event.SecondsToResolution,
		Timestamp:           t.Timestamp,
	}
}

// MarketMode selects the market data source.
type MarketMode string

const (
	MarketModeMock   MarketMode = "MOCK"
	MarketModeReplay MarketMode = "REPLAY"
	MarketModeLive   MarketMode = "LIVE"
)
