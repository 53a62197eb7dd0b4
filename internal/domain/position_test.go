package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPnL(t *testing.T) {
	cases := []struct {
		name        string
		side        Side
		entry, exit float64
		want        float64
	}{
		{"yes gain", SideYes, 0.87, 0.93, 1.8},
		{"yes loss", SideYes, 0.87, 0.80, -2.1},
		{"no gains when price falls", SideNo, 0.88, 0.80, 2.4},
		{"no loses when price rises", SideNo, 0.80, 0.88, -2.4},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, PnL(tc.side, tc.entry, tc.exit, 0.03, 1000), 1e-9)
		})
	}
}

func TestPosition_Close(t *testing.T) {
	opened := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p := Position{
		ID:               "p1",
		EventID:          "event-1",
		Side:             SideYes,
		AvgEntryPrice:    0.87,
		Size:             0.03,
		OpenedAt:         opened,
		UnrealizedPnLUSD: 0.5,
	}
	assert.Zero(t, p.HoldingTime())
	assert.InDelta(t, 26.1, p.Exposure(1000), 1e-9)

	closedAt := opened.Add(20 * time.Minute)
	pnl, err := p.Close(0.93, ExitTakeProfit, closedAt, 1000)
	require.NoError(t, err)
	assert.InDelta(t, 1.8, pnl, 1e-9)

	assert.True(t, p.Closed)
	assert.InDelta(t, 1.8, p.RealizedPnLUSD, 1e-9)
	assert.Zero(t, p.UnrealizedPnLUSD)
	require.NotNil(t, p.ExitPrice)
	assert.Equal(t, 0.93, *p.ExitPrice)
	require.NotNil(t, p.ClosedAt)
	assert.Equal(t, closedAt, *p.ClosedAt)
	assert.Equal(t, ExitTakeProfit, p.ExitReason)
	assert.Equal(t, 20*time.Minute, p.HoldingTime())

	_, err = p.Close(0.5, ExitStopLoss, closedAt, 1000)
	assert.ErrorIs(t, err, ErrPositionClosed)
	assert.Equal(t, ExitTakeProfit, p.ExitReason)
}

func TestMarketTick_NoPriceComplement(t *testing.T) {
	tick := NewMarketTick(MarketEvent{ID: "e", SecondsToResolution: 5400}, 0.12, 0.004, 1000, 900, time.Time{})
	assert.InDelta(t, 0.88, tick.PriceFor(SideNo), 1e-9)
	assert.Equal(t, 0.12, tick.PriceFor(SideYes))
	assert.Equal(t, 90.0, tick.MinutesToResolution())
}

func TestTriggerFor(t *testing.T) {
	assert.Equal(t, TriggerStopLoss, TriggerFor(ExitStopLoss))
	assert.Equal(t, TriggerForceExit, TriggerFor(ExitForce))
	assert.Equal(t, TriggerTakeProfit, TriggerFor(ExitTakeProfit))
}
