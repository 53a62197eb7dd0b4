// Package strategy holds the near-threshold entry evaluator. It is a pure
// function of the tick batch and a context snapshot.
package strategy

import (
	"github.com/alanyoungcy/nearbot/internal/domain"
)

// Params holds the entry rules.
type Params struct {
	EntryPriceMin            float64
	EntryPriceMax            float64
	MinHoursToExpiryForEntry float64
	MaxVolatility30mForEntry float64
	MaxEntryTranchesPerEvent int
	FirstEntrySize           float64
	TrancheSize              float64
}

// LossHistory reports events that closed at a loss.
type LossHistory interface {
	HasRecentLossOnEvent(eventID string) bool
}

// Context is the per-cycle snapshot the evaluator reads.
type Context struct {
	Risk         LossHistory
	OpenTranches map[string]int
	HasOpen      map[string]bool
}

// Evaluate returns candidate entry orders in tick order. For each tick the
// YES side is tested before the NO side and both may qualify.
func Evaluate(ticks []domain.MarketTick, c Context, p Params) []domain.OrderRequest {
	var orders []domain.OrderRequest
	for _, t := range ticks {
		if !eligible(t, c, p) {
			continue
		}

		size := p.FirstEntrySize
		if c.HasOpen[t.Event.ID] {
			size = p.TrancheSize
		}

		for _, side := range []domain.Side{domain.SideYes, domain.SideNo} {
			price := t.PriceFor(side)
			if price < p.EntryPriceMin || price > p.EntryPriceMax {
				continue
			}
			orders = append(orders, domain.OrderRequest{
				EventID: t.Event.ID,
				Side:    side,
				Price:   price,
				Size:    size,
				Kind:    domain.OrderKindLimitBuy,
			})
		}
	}
	return orders
}

// eligible applies the per-event skip rules.
func eligible(t domain.MarketTick, c Context, p Params) bool {
	if t.Event.SecondsToResolution/3600 < p.MinHoursToExpiryForEntry {
		return false
	}
	if t.Volatility30m > p.MaxVolatility30mForEntry {
		return false
	}
	if c.Risk != nil && c.Risk.HasRecentLossOnEvent(t.Event.ID) {
		return false
	}
	return c.OpenTranches[t.Event.ID] < p.MaxEntryTranchesPerEvent
}
