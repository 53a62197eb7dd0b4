package feed

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMock(seed int64) (*Mock, *time.Time) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	m := NewMock(MockConfig{Seed: seed, TickStep: 10 * time.Second}, slog.New(slog.DiscardHandler))
	m.WithClock(func() time.Time { return now })
	return m, &now
}

func TestMock_TicksInvariants(t *testing.T) {
	m, now := newTestMock(7)

	for i := range 500 {
		*now = now.Add(10 * time.Second)
		ticks := m.Ticks()
		require.Len(t, ticks, 2)
		assert.Equal(t, MockRisingEventID, ticks[0].Event.ID)
		assert.Equal(t, MockCrashingEventID, ticks[1].Event.ID)

		for _, tk := range ticks {
			assert.InDelta(t, 1.0, tk.YesPrice+tk.NoPrice, 1e-12)
			assert.GreaterOrEqual(t, tk.YesPrice, 0.5)
			assert.LessOrEqual(t, tk.YesPrice, 0.99)
			assert.Equal(t, 1000.0, tk.AvgVolume2h)
			assert.GreaterOrEqual(t, tk.Volume30m, 500.0)
			assert.Less(t, tk.Volume30m, 1500.0)
			assert.Equal(t, *now, tk.Timestamp)
		}
		assert.InDelta(t, 4*3600-float64(i+1)*10, ticks[0].Event.SecondsToResolution, 1e-9)
	}
}

func TestMock_CountdownFloorsAtZero(t *testing.T) {
	m := NewMock(MockConfig{Seed: 1, TickStep: time.Hour}, slog.New(slog.DiscardHandler))
	for range 8 {
		m.Ticks()
	}
	ticks := m.Ticks()
	assert.Zero(t, ticks[0].Event.SecondsToResolution)
	assert.Zero(t, ticks[1].Event.SecondsToResolution)
}

func TestMock_CrashScenarioFalls(t *testing.T) {
	m, now := newTestMock(42)

	var last float64
	// 2 hours of 10 s ticks: past the 60 minute mark event-2 falls 0.003 per tick.
	for range 720 {
		*now = now.Add(10 * time.Second)
		last = m.Ticks()[1].YesPrice
	}
	assert.Equal(t, 0.5, last)
}

func TestMock_HistoryWindowAndReset(t *testing.T) {
	m, now := newTestMock(3)
	for range 300 {
		*now = now.Add(10 * time.Second)
		m.Ticks()
	}

	hist := m.PriceHistory(MockRisingEventID)
	require.NotEmpty(t, hist)
	assert.LessOrEqual(t, len(hist), 181)
	assert.False(t, hist[0].Timestamp.Before(now.Add(-30*time.Minute)))

	m.Reset()
	assert.Empty(t, m.PriceHistory(MockRisingEventID))
	ticks := m.Ticks()
	assert.InDelta(t, 0.88, ticks[0].YesPrice, 0.003)
	assert.InDelta(t, 4*3600-10, ticks[0].Event.SecondsToResolution, 1e-9)
}

func TestMock_SeedIsDeterministic(t *testing.T) {
	a, _ := newTestMock(11)
	b, _ := newTestMock(11)
	for range 20 {
		assert.Equal(t, a.Ticks(), b.Ticks())
	}
	_, ok := a.Progress()
	assert.False(t, ok)
}
