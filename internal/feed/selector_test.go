package feed

import (
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/nearbot/internal/domain"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		in   string
		want domain.MarketMode
		err  error
	}{
		{in: "MOCK", want: domain.MarketModeMock},
		{in: "replay", want: domain.MarketModeReplay},
		{in: " Mock ", want: domain.MarketModeMock},
		{in: "LIVE", err: domain.ErrUnsupportedMode},
		{in: "paper", err: domain.ErrInvalidMode},
		{in: "", err: domain.ErrInvalidMode},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMode(tt.in)
			if tt.err != nil {
				assert.True(t, errors.Is(err, tt.err), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSelector_Dispatch(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)
	mock := NewMock(MockConfig{Seed: 5}, logger)
	replay := NewReplay(ReplayConfig{}, logger)
	_, err := replay.Load(strings.NewReader(replayFixture), "fixture")
	require.NoError(t, err)

	s, err := NewSelector(domain.MarketModeMock, mock, replay, logger)
	require.NoError(t, err)

	assert.Len(t, s.Ticks(), 2)
	_, ok := s.Progress()
	assert.False(t, ok)

	mode, err := s.SetMode("REPLAY")
	require.NoError(t, err)
	assert.Equal(t, domain.MarketModeReplay, mode)
	assert.Len(t, s.Ticks(), 1)
	_, ok = s.Progress()
	assert.True(t, ok)

	_, err = s.SetMode("LIVE")
	assert.ErrorIs(t, err, domain.ErrUnsupportedMode)
	assert.Equal(t, domain.MarketModeReplay, s.Mode())
}

func TestSelector_ResetResetsEverySource(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)
	mock := NewMock(MockConfig{Seed: 5}, logger)
	replay := NewReplay(ReplayConfig{}, logger)
	_, err := replay.Load(strings.NewReader(replayFixture), "fixture")
	require.NoError(t, err)
	replay.Step()

	s, err := NewSelector(domain.MarketModeMock, mock, replay, logger)
	require.NoError(t, err)
	s.Ticks()
	s.Reset()

	p, _ := replay.Progress()
	assert.Zero(t, p.Index)
	assert.Empty(t, mock.PriceHistory(MockRisingEventID))
}

func TestNewSelector_RejectsLive(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)
	_, err := NewSelector(domain.MarketModeLive, NewMock(MockConfig{}, logger), NewReplay(ReplayConfig{}, logger), logger)
	assert.ErrorIs(t, err, domain.ErrUnsupportedMode)
}
