package feed

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/alanyoungcy/nearbot/internal/domain"
)

// ParseMode validates a market data mode name. LIVE is recognised but not
// supported.
func ParseMode(s string) (domain.MarketMode, error) {
	switch mode := domain.MarketMode(strings.ToUpper(strings.TrimSpace(s))); mode {
	case domain.MarketModeMock, domain.MarketModeReplay:
		return mode, nil
	case domain.MarketModeLive:
		return "", fmt.Errorf("feed: %s: %w", mode, domain.ErrUnsupportedMode)
	default:
		return "", fmt.Errorf("feed: %q: %w", s, domain.ErrInvalidMode)
	}
}

// Selector routes the Feed contract to the source picked by the active mode.
// Switching modes takes effect on the next call.
type Selector struct {
	mu     sync.RWMutex
	mode   domain.MarketMode
	mock   *Mock
	replay *Replay
	logger *slog.Logger
}

// NewSelector creates a Selector starting in mode.
func NewSelector(mode domain.MarketMode, mock *Mock, replay *Replay, logger *slog.Logger) (*Selector, error) {
	if _, err := ParseMode(string(mode)); err != nil {
		return nil, err
	}
	return &Selector{
		mode:   mode,
		mock:   mock,
		replay: replay,
		logger: logger.With(slog.String("component", "feed_selector")),
	}, nil
}

// Mode returns the active mode.
func (s *Selector) Mode() domain.MarketMode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

// SetMode switches the active source. Invalid and unsupported modes leave the
// current mode in place.
func (s *Selector) SetMode(name string) (domain.MarketMode, error) {
	mode, err := ParseMode(name)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	prev := s.mode
	s.mode = mode
	s.mu.Unlock()

	if prev != mode {
		s.logger.Info("market data mode changed",
			slog.String("from", string(prev)),
			slog.String("to", string(mode)),
		)
	}
	return mode, nil
}

// Replay returns the replay source regardless of the active mode.
func (s *Selector) Replay() *Replay { return s.replay }

func (s *Selector) active() Feed {
	if s.Mode() == domain.MarketModeReplay {
		return s.replay
	}
	return s.mock
}

func (s *Selector) Ticks() []domain.MarketTick { return s.active().Ticks() }

func (s *Selector) PriceHistory(eventID string) []domain.PricePoint {
	return s.active().PriceHistory(eventID)
}

// Reset resets every source, not only the active one.
func (s *Selector) Reset() {
	s.mock.Reset()
	s.replay.Reset()
}

func (s *Selector) Start()  { s.active().Start() }
func (s *Selector) Stop()   { s.active().Stop() }
func (s *Selector) Pause()  { s.active().Pause() }
func (s *Selector) Resume() { s.active().Resume() }

func (s *Selector) SetSpeed(multiplier float64) { s.active().SetSpeed(multiplier) }

func (s *Selector) Progress() (Progress, bool) { return s.active().Progress() }
