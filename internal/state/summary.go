package state

import (
	"slices"
	"strings"

	"github.com/alanyoungcy/nearbot/internal/domain"
)

// EventSummary aggregates the closed positions of one event.
type EventSummary struct {
	EventID       string  `json:"eventId"`
	EventTitle    string  `json:"eventTitle"`
	EntryPrice    float64 `json:"entryPrice"`
	ExitPrice     float64 `json:"exitPrice"`
	IsStopLoss    bool    `json:"isStopLoss"`
	TradeCount    int     `json:"tradeCount"`
	NetPnLUSD     float64 `json:"netPnlUsd"`
	HoldingTimeMs int64   `json:"holdingTimeMs"`
}

// Report is the closed-position performance summary.
type Report struct {
	TotalTrades   int            `json:"totalTrades"`
	Wins          int            `json:"wins"`
	Losses        int            `json:"losses"`
	WinRate       float64        `json:"winRate"`
	NetPnLUSD     float64        `json:"netPnlUsd"`
	ExitsByReason map[string]int `json:"exitsByReason"`
	EventSummary  []EventSummary `json:"eventSummary"`
}

// Summarize groups closed positions by event, ordered by event id. Entry
// price is the size-weighted average entry, exit price is the latest exit and
// holding time is summed across trades. titles maps event ids to display
// titles; missing titles fall back to the id.
func Summarize(positions []domain.Position, titles map[string]string) []EventSummary {
	type acc struct {
		sum      EventSummary
		notional float64
		size     float64
		lastExit int64
	}
	byEvent := make(map[string]*acc)

	for _, p := range positions {
		if !p.Closed {
			continue
		}
		a, ok := byEvent[p.EventID]
		if !ok {
			title := titles[p.EventID]
			if title == "" {
				title = p.EventID
			}
			a = &acc{sum: EventSummary{EventID: p.EventID, EventTitle: title}}
			byEvent[p.EventID] = a
		}
		a.sum.TradeCount++
		a.sum.NetPnLUSD += p.RealizedPnLUSD
		a.sum.HoldingTimeMs += p.HoldingTime().Milliseconds()
		a.notional += p.AvgEntryPrice * p.Size
		a.size += p.Size
		if p.ExitReason == domain.ExitStopLoss {
			a.sum.IsStopLoss = true
		}
		if p.ExitPrice != nil && p.ClosedAt != nil && p.ClosedAt.UnixNano() >= a.lastExit {
			a.sum.ExitPrice = *p.ExitPrice
			a.lastExit = p.ClosedAt.UnixNano()
		}
	}

	out := make([]EventSummary, 0, len(byEvent))
	for _, a := range byEvent {
		if a.size > 0 {
			a.sum.EntryPrice = a.notional / a.size
		}
		out = append(out, a.sum)
	}
	slices.SortFunc(out, func(x, y EventSummary) int { return strings.Compare(x.EventID, y.EventID) })
	return out
}

// BuildReport computes totals and the win rate over closed positions. A
// trade with zero PnL counts as neither a win nor a loss.
func BuildReport(positions []domain.Position, titles map[string]string) Report {
	r := Report{ExitsByReason: make(map[string]int)}
	for _, p := range positions {
		if !p.Closed {
			continue
		}
		r.TotalTrades++
		r.NetPnLUSD += p.RealizedPnLUSD
		r.ExitsByReason[string(p.ExitReason)]++
		switch {
		case p.RealizedPnLUSD > 0:
			r.Wins++
		case p.RealizedPnLUSD < 0:
			r.Losses++
		}
	}
	if r.TotalTrades > 0 {
		r.WinRate = float64(r.Wins) / float64(r.TotalTrades)
	}
	r.EventSummary = Summarize(positions, titles)
	return r
}
