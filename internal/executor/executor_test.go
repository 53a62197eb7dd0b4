package executor

import (
	"log/slog"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/nearbot/internal/domain"
)

func req(price float64) domain.OrderRequest {
	return domain.OrderRequest{EventID: "e1", Side: domain.SideYes, Price: price, Size: 0.03, Kind: domain.OrderKindLimitBuy}
}

func TestSimFillsAtPriceWithoutSlippage(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s := NewSim(SimConfig{}, nil, slog.New(slog.DiscardHandler)).WithClock(func() time.Time { return at })

	out, err := s.Execute(t.Context(), req(0.87))
	require.NoError(t, err)
	assert.NotEmpty(t, out.ID)
	assert.Equal(t, 0.87, out.FilledPrice)
	assert.Equal(t, at, out.Timestamp)
	assert.Equal(t, req(0.87), out.OrderRequest)

	other, err := s.Execute(t.Context(), req(0.87))
	require.NoError(t, err)
	assert.NotEqual(t, out.ID, other.ID)
}

func TestSimSlippageIsBounded(t *testing.T) {
	s := NewSim(SimConfig{SlippageBps: 50}, rand.New(rand.NewPCG(1, 2)), slog.New(slog.DiscardHandler))
	for range 200 {
		out, err := s.Execute(t.Context(), req(0.9))
		require.NoError(t, err)
		assert.InDelta(t, 0.9, out.FilledPrice, 0.9*50/10_000+1e-12)
	}
}

func TestSimClampsToRange(t *testing.T) {
	s := NewSim(SimConfig{SlippageBps: 10_000}, rand.New(rand.NewPCG(3, 4)), slog.New(slog.DiscardHandler))
	for range 100 {
		out, err := s.Execute(t.Context(), req(0.98))
		require.NoError(t, err)
		assert.GreaterOrEqual(t, out.FilledPrice, minFillPrice)
		assert.LessOrEqual(t, out.FilledPrice, maxFillPrice)
	}
}

func TestSimWaitsFillDelay(t *testing.T) {
	s := NewSim(SimConfig{FillDelay: 20 * time.Millisecond}, nil, slog.New(slog.DiscardHandler))
	start := time.Now()
	_, err := s.Execute(t.Context(), req(0.87))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestSimRejectsInvalidOrder(t *testing.T) {
	s := NewSim(SimConfig{}, nil, slog.New(slog.DiscardHandler))
	_, err := s.Execute(t.Context(), req(0))
	require.Error(t, err)
}
