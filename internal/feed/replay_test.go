package feed

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/nearbot/internal/domain"
)

const replayFixture = `{"ts":"2025-03-01T12:00:00Z","price":0.87,"time_to_resolution_min":300}
not json
{"ts":"2025-03-01T12:01:00Z","price":0.88,"resolution_ts":"2025-03-01T17:01:00Z","volume":250}
{"price":0.5}
{"ts":"2025-03-01T12:02:00Z","price":"0.9"}
{"ts":"2025-03-01T12:02:00Z","price":0.85,"event_id":"other","market_title":"Other"}

{"ts":"2025-03-01T12:03:00Z","price":0.89}
`

func newTestReplay(t *testing.T, cfg ReplayConfig) *Replay {
	t.Helper()
	r := NewReplay(cfg, slog.New(slog.DiscardHandler))
	t.Cleanup(r.Stop)
	return r
}

func TestReplay_LoadSkipsInvalidRows(t *testing.T) {
	r := newTestReplay(t, ReplayConfig{ResolutionTime: time.Date(2025, 3, 1, 13, 3, 0, 0, time.UTC)})

	n, err := r.Load(strings.NewReader(replayFixture), "fixture")
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	ticks := r.Ticks()
	require.Len(t, ticks, 1)
	tk := ticks[0]
	assert.Equal(t, "replay-event-1", tk.Event.ID)
	assert.Equal(t, "Replay Event", tk.Event.Title)
	assert.Equal(t, 0.87, tk.YesPrice)
	assert.InDelta(t, 0.13, tk.NoPrice, 1e-12)
	assert.Equal(t, 300.0*60, tk.Event.SecondsToResolution)
	assert.Zero(t, tk.Volatility30m)
	assert.Equal(t, 1000.0, tk.Volume30m)
	assert.Equal(t, 1000.0, tk.AvgVolume2h)

	r.Step()
	tk = r.Ticks()[0]
	assert.Equal(t, 5.0*3600, tk.Event.SecondsToResolution)
	assert.InDelta(t, 0.01, tk.Volatility30m, 1e-12)
	assert.Equal(t, 250.0, tk.Volume30m)

	r.Step()
	tk = r.Ticks()[0]
	assert.Equal(t, "other", tk.Event.ID)
	assert.Equal(t, "Other", tk.Event.Title)

	r.Step()
	tk = r.Ticks()[0]
	assert.Equal(t, 3600.0, tk.Event.SecondsToResolution, "falls back to configured resolution time")
	assert.InDelta(t, 0.04, tk.Volatility30m, 1e-12)
}

func TestReplay_LoadEmptyKeepsPreviousData(t *testing.T) {
	r := newTestReplay(t, ReplayConfig{})
	_, err := r.Load(strings.NewReader(replayFixture), "fixture")
	require.NoError(t, err)

	_, err = r.Load(strings.NewReader("garbage\n{}\n"), "bad")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNoReplayData))
	assert.Equal(t, "fixture", r.Source())
	assert.Len(t, r.Ticks(), 1)
}

func TestReplay_LoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "day.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(replayFixture), 0o644))

	r := newTestReplay(t, ReplayConfig{})
	n, err := r.LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	_, err = r.LoadFile(filepath.Join(dir, "missing.jsonl"))
	assert.Error(t, err)
}

func TestReplay_NoCountdownInformation(t *testing.T) {
	r := newTestReplay(t, ReplayConfig{})
	_, err := r.Load(strings.NewReader(`{"ts":"2025-03-01T12:00:00Z","price":0.9}`), "x")
	require.NoError(t, err)
	assert.Zero(t, r.Ticks()[0].Event.SecondsToResolution)
}

func TestReplay_ResolutionInThePastFloorsAtZero(t *testing.T) {
	r := newTestReplay(t, ReplayConfig{})
	_, err := r.Load(strings.NewReader(`{"ts":"2025-03-01T12:00:00Z","price":0.9,"resolution_ts":"2025-03-01T11:00:00Z"}`), "x")
	require.NoError(t, err)
	assert.Zero(t, r.Ticks()[0].Event.SecondsToResolution)
}

func TestReplay_EmptyFeed(t *testing.T) {
	r := newTestReplay(t, ReplayConfig{})
	assert.Empty(t, r.Ticks())
	assert.Empty(t, r.PriceHistory("replay-event-1"))

	p, ok := r.Progress()
	assert.True(t, ok)
	assert.Equal(t, Progress{}, p)
}

func TestReplay_ProgressHistoryAndEnd(t *testing.T) {
	r := newTestReplay(t, ReplayConfig{})
	_, err := r.Load(strings.NewReader(replayFixture), "fixture")
	require.NoError(t, err)

	var ended atomic.Int32
	r.OnEnd(func() { ended.Add(1) })

	p, _ := r.Progress()
	assert.Equal(t, 0, p.Index)
	assert.Equal(t, 4, p.Total)
	assert.Zero(t, p.Percent)
	assert.Equal(t, time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC), p.CurrentTS)
	assert.Len(t, r.PriceHistory("replay-event-1"), 1)

	assert.False(t, r.Step())
	assert.False(t, r.Step())
	hist := r.PriceHistory("replay-event-1")
	require.Len(t, hist, 2)
	assert.Equal(t, 0.88, hist[1].Price)
	assert.Len(t, r.PriceHistory("other"), 1)

	p, _ = r.Progress()
	assert.Equal(t, 50.0, p.Percent)

	assert.False(t, r.Step())
	assert.True(t, r.Step())
	assert.EqualValues(t, 1, ended.Load())

	p, _ = r.Progress()
	assert.Equal(t, 4, p.Index)
	assert.Equal(t, 100.0, p.Percent)
	assert.True(t, p.CurrentTS.IsZero())
	assert.Equal(t, 0.89, r.Ticks()[0].YesPrice, "cursor past the end serves the last row")

	assert.False(t, r.Step(), "no further steps after the end")
	assert.EqualValues(t, 1, ended.Load())

	r.Reset()
	p, _ = r.Progress()
	assert.Zero(t, p.Index)
	assert.False(t, r.Running())
}

func TestReplay_TimerAdvancesAndStopsAtEnd(t *testing.T) {
	r := newTestReplay(t, ReplayConfig{Speed: 1000})
	_, err := r.Load(strings.NewReader(replayFixture), "fixture")
	require.NoError(t, err)

	done := make(chan struct{})
	r.OnEnd(func() { close(done) })

	r.Start()
	assert.True(t, r.Running())
	r.Start()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("replay did not reach the end")
	}
	assert.Eventually(t, func() bool { return !r.Running() }, time.Second, 10*time.Millisecond)
	p, _ := r.Progress()
	assert.Equal(t, 4, p.Index)
}

func TestReplay_PauseHoldsCursor(t *testing.T) {
	r := newTestReplay(t, ReplayConfig{Speed: 1000})
	_, err := r.Load(strings.NewReader(replayFixture), "fixture")
	require.NoError(t, err)

	r.Start()
	r.Pause()
	before, _ := r.Progress()
	time.Sleep(200 * time.Millisecond)
	after, _ := r.Progress()
	assert.Equal(t, before.Index, after.Index)
	assert.True(t, r.Running())

	r.Stop()
	assert.False(t, r.Running())
}

func TestReplay_SetSpeed(t *testing.T) {
	r := newTestReplay(t, ReplayConfig{})
	assert.Equal(t, DefaultReplaySpeed, r.Speed())

	r.SetSpeed(0.01)
	assert.Equal(t, 0.1, r.Speed())

	_, err := r.Load(strings.NewReader(replayFixture), "fixture")
	require.NoError(t, err)
	r.Start()
	r.SetSpeed(2)
	assert.Equal(t, 2.0, r.Speed())
	assert.True(t, r.Running(), "running timer is restarted")
}
