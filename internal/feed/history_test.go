package feed

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistory_TrimsOutsideWindow(t *testing.T) {
	h := NewHistory(30 * time.Minute)
	t0 := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	h.Track("e", 0.90, t0)
	h.Track("e", 0.91, t0.Add(10*time.Minute))
	h.Track("e", 0.92, t0.Add(30*time.Minute))
	require.Len(t, h.Get("e"), 3, "point exactly at the cutoff is kept")

	h.Track("e", 0.93, t0.Add(31*time.Minute))
	pts := h.Get("e")
	require.Len(t, pts, 3)
	assert.Equal(t, 0.91, pts[0].Price)
}

func TestHistory_Volatility(t *testing.T) {
	h := NewHistory(time.Hour)
	t0 := time.Now()

	assert.Zero(t, h.Volatility("e"))
	h.Track("e", 0.90, t0)
	assert.Zero(t, h.Volatility("e"))

	h.Track("e", 0.92, t0.Add(time.Second))
	h.Track("e", 0.91, t0.Add(2*time.Second))
	assert.InDelta(t, 0.015, h.Volatility("e"), 1e-9)
}

func TestHistory_GetReturnsCopy(t *testing.T) {
	h := NewHistory(time.Hour)
	h.Track("e", 0.9, time.Now())

	pts := h.Get("e")
	pts[0].Price = 0
	assert.Equal(t, 0.9, h.Get("e")[0].Price)
	assert.Nil(t, h.Get("missing"))

	h.Reset()
	assert.Nil(t, h.Get("e"))
}
