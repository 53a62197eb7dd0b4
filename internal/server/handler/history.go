package handler

import (
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/nearbot/internal/domain"
)

// HistoryHandler serves persisted positions, orders and audit records. Any
// store may be nil when persistence is disabled.
type HistoryHandler struct {
	positions domain.PositionStore
	orders    domain.OrderStore
	audit     domain.AuditStore
	logger    *slog.Logger
}

// NewHistoryHandler creates a HistoryHandler.
func NewHistoryHandler(positions domain.PositionStore, orders domain.OrderStore, audit domain.AuditStore, logger *slog.Logger) *HistoryHandler {
	return &HistoryHandler{
		positions: positions,
		orders:    orders,
		audit:     audit,
		logger:    logHandler(logger, "history"),
	}
}

// Positions lists persisted positions.
// GET /api/history/positions?limit=&offset=&since=&until=
func (h *HistoryHandler) Positions(w http.ResponseWriter, r *http.Request) {
	if h.positions == nil {
		writeError(w, http.StatusServiceUnavailable, "persistence is disabled")
		return
	}
	opts, err := parseListOpts(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	positions, err := h.positions.List(r.Context(), opts)
	if err != nil {
		h.logger.Error("list positions failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list positions")
		return
	}
	if positions == nil {
		positions = []domain.Position{}
	}
	writeJSON(w, http.StatusOK, positions)
}

// Orders lists persisted executed orders.
// GET /api/history/orders?limit=&offset=&since=&until=
func (h *HistoryHandler) Orders(w http.ResponseWriter, r *http.Request) {
	if h.orders == nil {
		writeError(w, http.StatusServiceUnavailable, "persistence is disabled")
		return
	}
	opts, err := parseListOpts(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	orders, err := h.orders.List(r.Context(), opts)
	if err != nil {
		h.logger.Error("list orders failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list orders")
		return
	}
	if orders == nil {
		orders = []domain.ExecutedOrder{}
	}
	writeJSON(w, http.StatusOK, orders)
}

// Audit lists persisted journal records.
// GET /api/history/audit?limit=&offset=&since=&until=
func (h *HistoryHandler) Audit(w http.ResponseWriter, r *http.Request) {
	if h.audit == nil {
		writeError(w, http.StatusServiceUnavailable, "persistence is disabled")
		return
	}
	opts, err := parseListOpts(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	entries, err := h.audit.List(r.Context(), opts)
	if err != nil {
		h.logger.Error("list audit failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list audit records")
		return
	}
	if entries == nil {
		entries = []domain.AuditEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}
