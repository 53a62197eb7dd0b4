package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/alanyoungcy/nearbot/internal/domain"
	"github.com/alanyoungcy/nearbot/internal/feed"
)

// ModeSwitcher changes the active market data source.
type ModeSwitcher interface {
	Mode() domain.MarketMode
	SetMode(name string) (domain.MarketMode, error)
}

// MarketModeHandler reads and switches the market data mode.
type MarketModeHandler struct {
	feeds  ModeSwitcher
	bot    Bot
	logger *slog.Logger
}

// NewMarketModeHandler creates a MarketModeHandler.
func NewMarketModeHandler(feeds ModeSwitcher, bot Bot, logger *slog.Logger) *MarketModeHandler {
	return &MarketModeHandler{feeds: feeds, bot: bot, logger: logHandler(logger, "market_mode")}
}

type marketModeRequest struct {
	Mode string `json:"mode"`
}

// Get returns the active mode.
// GET /api/market-mode
func (h *MarketModeHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]domain.MarketMode{"mode": h.feeds.Mode()})
}

// Set switches the mode. The engine is stopped first so no cycle reads from
// the outgoing source.
// POST /api/market-mode
func (h *MarketModeHandler) Set(w http.ResponseWriter, r *http.Request) {
	var req marketModeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Mode) == "" {
		writeError(w, http.StatusBadRequest, "mode is required")
		return
	}

	mode, err := feed.ParseMode(req.Mode)
	if err != nil {
		writeModeError(w, err)
		return
	}
	if mode != h.feeds.Mode() {
		h.bot.Stop()
	}
	if _, err := h.feeds.SetMode(string(mode)); err != nil {
		writeModeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]domain.MarketMode{"mode": mode})
}

func writeModeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrUnsupportedMode):
		writeError(w, http.StatusBadRequest, "market data mode not supported: use MOCK or REPLAY")
	case errors.Is(err, domain.ErrInvalidMode):
		writeError(w, http.StatusBadRequest, "invalid market data mode: use MOCK or REPLAY")
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
