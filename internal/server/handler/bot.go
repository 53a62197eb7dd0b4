package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/nearbot/internal/domain"
	"github.com/alanyoungcy/nearbot/internal/engine"
	"github.com/alanyoungcy/nearbot/internal/feed"
	"github.com/alanyoungcy/nearbot/internal/state"
)

// Bot is the engine surface driven by the control endpoints.
type Bot interface {
	Snapshot() engine.Status
	Toggle(ctx context.Context) bool
	Reset(ctx context.Context)
	Stop()
}

// ModeSource reports the active market data source.
type ModeSource interface {
	Mode() domain.MarketMode
	Progress() (feed.Progress, bool)
}

// TitleSource maps event IDs to display titles.
type TitleSource interface {
	Titles() map[string]string
}

// StatusResponse is the body of GET /api/status.
type StatusResponse struct {
	engine.Status
	EventSummary   []state.EventSummary `json:"eventSummary"`
	MarketDataMode domain.MarketMode    `json:"marketDataMode"`
	ReplayProgress *feed.Progress       `json:"replayProgress"`
}

// BotHandler serves status, toggle, reset, config and report.
type BotHandler struct {
	bot    Bot
	feeds  ModeSource
	titles TitleSource
	config any
	logger *slog.Logger
}

// NewBotHandler creates a BotHandler. config is served as-is by GET
// /api/config and must already be redacted.
func NewBotHandler(bot Bot, feeds ModeSource, titles TitleSource, config any, logger *slog.Logger) *BotHandler {
	return &BotHandler{
		bot:    bot,
		feeds:  feeds,
		titles: titles,
		config: config,
		logger: logHandler(logger, "bot"),
	}
}

// BuildStatus assembles the full status view. It backs both the REST
// endpoint and the WebSocket status push.
func (h *BotHandler) BuildStatus() StatusResponse {
	st := h.bot.Snapshot()
	resp := StatusResponse{
		Status:         st,
		EventSummary:   state.Summarize(st.Positions, h.titles.Titles()),
		MarketDataMode: h.feeds.Mode(),
	}
	if p, ok := h.feeds.Progress(); ok {
		resp.ReplayProgress = &p
	}
	return resp
}

// Status returns the runtime snapshot.
// GET /api/status
func (h *BotHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.BuildStatus())
}

// Toggle flips the bot on or off.
// POST /api/bot/toggle
func (h *BotHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	enabled := h.bot.Toggle(r.Context())
	h.logger.Info("bot toggled", slog.Bool("enabled", enabled))
	writeJSON(w, http.StatusOK, map[string]bool{"botEnabled": enabled})
}

// Reset clears the scenario.
// POST /api/reset
func (h *BotHandler) Reset(w http.ResponseWriter, r *http.Request) {
	h.bot.Reset(r.Context())
	h.logger.Info("scenario reset")
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// Config returns the redacted configuration.
// GET /api/config
func (h *BotHandler) Config(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.config)
}

// Report summarises closed positions.
// GET /api/report
func (h *BotHandler) Report(w http.ResponseWriter, r *http.Request) {
	st := h.bot.Snapshot()
	writeJSON(w, http.StatusOK, state.BuildReport(st.Positions, h.titles.Titles()))
}
