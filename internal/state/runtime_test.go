package state

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/nearbot/internal/domain"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func openPosition(id, event string, side domain.Side, entry, size float64) domain.Position {
	return domain.Position{ID: id, EventID: event, Side: side, AvgEntryPrice: entry, Size: size, OpenedAt: t0}
}

func TestRuntime_ClosePosition(t *testing.T) {
	rt := NewRuntime(true, 0)
	rt.AddPosition(openPosition("p1", "e1", domain.SideYes, 0.87, 0.03))
	rt.AddPosition(openPosition("p2", "e2", domain.SideNo, 0.12, 0.02))

	closed, err := rt.ClosePosition("p1", 0.93, domain.ExitTakeProfit, t0.Add(time.Minute), 1000)
	require.NoError(t, err)
	assert.True(t, closed.Closed)
	assert.InDelta(t, 1.8, closed.RealizedPnLUSD, 1e-9)
	assert.InDelta(t, 1.8, rt.RealizedPnL(), 1e-9)
	require.NotNil(t, closed.ExitPrice)
	assert.Equal(t, 0.93, *closed.ExitPrice)

	_, err = rt.ClosePosition("p1", 0.95, domain.ExitTakeProfit, t0, 1000)
	assert.True(t, errors.Is(err, domain.ErrPositionClosed))
	assert.InDelta(t, 1.8, rt.RealizedPnL(), 1e-9, "second close changes nothing")

	_, err = rt.ClosePosition("missing", 0.5, domain.ExitForce, t0, 1000)
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	open := rt.OpenPositions()
	require.Len(t, open, 1)
	assert.Equal(t, "p2", open[0].ID)
	assert.Len(t, rt.Positions(), 2)
}

func TestRuntime_SetUnrealizedOnlyTouchesOpen(t *testing.T) {
	rt := NewRuntime(true, 0)
	rt.AddPosition(openPosition("p1", "e1", domain.SideYes, 0.87, 0.03))
	rt.SetUnrealized("p1", 0.6)
	assert.Equal(t, 0.6, rt.OpenPositions()[0].UnrealizedPnLUSD)

	_, err := rt.ClosePosition("p1", 0.8, domain.ExitStopLoss, t0, 1000)
	require.NoError(t, err)
	rt.SetUnrealized("p1", 5)
	assert.Zero(t, rt.Positions()[0].UnrealizedPnLUSD)
}

func TestRuntime_Phases(t *testing.T) {
	rt := NewRuntime(true, 0)
	rt.EnsurePhase("e1", domain.PhaseIdle, t0)
	rt.SetPhase("e1", domain.PhaseInPosition, t0.Add(time.Second))
	rt.EnsurePhase("e1", domain.PhaseIdle, t0.Add(2*time.Second))

	ps, ok := rt.Phase("e1")
	require.True(t, ok)
	assert.Equal(t, domain.PhaseInPosition, ps.Phase)

	phases := rt.Phases()
	delete(phases, "e1")
	_, ok = rt.Phase("e1")
	assert.True(t, ok, "Phases returns a copy")
}

func TestRuntime_ResetKeepsBotEnabled(t *testing.T) {
	rt := NewRuntime(false, 0)
	rt.SetBotEnabled(true)
	rt.AddPosition(openPosition("p1", "e1", domain.SideYes, 0.87, 0.03))
	rt.AddOrder(domain.ExecutedOrder{ID: "o1"})
	_, err := rt.ClosePosition("p1", 0.8, domain.ExitStopLoss, t0, 1000)
	require.NoError(t, err)
	rt.SetPhase("e1", domain.PhaseExited, t0)
	rt.SetPrices([]domain.PriceSnapshot{{EventID: "e1", Title: "Event"}})
	rt.AppendLog(domain.LogEntry{Message: "x"})

	rt.Reset()
	s := rt.Snapshot()
	assert.True(t, s.BotEnabled)
	assert.Empty(t, s.Positions)
	assert.Empty(t, s.ExecutedOrders)
	assert.Zero(t, s.RealizedPnLUSD)
	assert.Empty(t, s.EventPhases)
	assert.Empty(t, s.Prices)
	assert.Empty(t, s.Logs)
	assert.Empty(t, rt.Titles())

	rt.Reset()
	assert.Equal(t, s, rt.Snapshot())
}

func TestRuntime_ToggleAndTitles(t *testing.T) {
	rt := NewRuntime(true, 0)
	assert.False(t, rt.ToggleBotEnabled())
	assert.True(t, rt.ToggleBotEnabled())

	rt.SetPrices([]domain.PriceSnapshot{{EventID: "e1", Title: "One"}})
	rt.SetPrices([]domain.PriceSnapshot{{EventID: "e2", Title: "Two"}})
	assert.Equal(t, map[string]string{"e1": "One", "e2": "Two"}, rt.Titles())
	assert.Len(t, rt.Prices(), 1)
}

func TestRuntime_ConcurrentAccess(t *testing.T) {
	rt := NewRuntime(true, 50)
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for range 100 {
				rt.AppendLog(domain.LogEntry{EventID: "e"})
				rt.SetPhase("e", domain.PhaseWaitEntry, t0)
			}
		}()
		go func() {
			defer wg.Done()
			for range 100 {
				_ = rt.Snapshot()
			}
		}()
	}
	wg.Wait()
	assert.Len(t, rt.Logs(), 50)
}
