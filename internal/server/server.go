package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/alanyoungcy/nearbot/internal/domain"
	"github.com/alanyoungcy/nearbot/internal/server/handler"
	"github.com/alanyoungcy/nearbot/internal/server/middleware"
	"github.com/alanyoungcy/nearbot/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled
	// RateLimit is the number of mutating requests allowed per client per
	// RateWindow. Zero disables limiting.
	RateLimit  int
	RateWindow time.Duration
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health     *handler.HealthHandler
	Bot        *handler.BotHandler
	MarketMode *handler.MarketModeHandler
	Replay     *handler.ReplayHandler
	History    *handler.HistoryHandler
	Metrics    http.Handler
}

// Server is the HTTP + WebSocket control surface of the bot.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the ServeMux.
// It wires up middleware (auth, rate limit, logging, CORS) and attaches the
// WebSocket hub. limiter and wsHub may be nil.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// --- Register routes ---

	// Health check (no auth required).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Bot control.
	mux.HandleFunc("GET /api/status", handlers.Bot.Status)
	mux.HandleFunc("POST /api/bot/toggle", handlers.Bot.Toggle)
	mux.HandleFunc("POST /api/reset", handlers.Bot.Reset)
	mux.HandleFunc("GET /api/config", handlers.Bot.Config)
	mux.HandleFunc("GET /api/report", handlers.Bot.Report)

	// Market data source.
	mux.HandleFunc("GET /api/market-mode", handlers.MarketMode.Get)
	mux.HandleFunc("POST /api/market-mode", handlers.MarketMode.Set)

	// Replay playback.
	mux.HandleFunc("GET /api/replay/files", handlers.Replay.Files)
	mux.HandleFunc("POST /api/replay/load", handlers.Replay.Load)
	mux.HandleFunc("POST /api/replay/start", handlers.Replay.Start)
	mux.HandleFunc("POST /api/replay/stop", handlers.Replay.Stop)
	mux.HandleFunc("POST /api/replay/pause", handlers.Replay.Pause)
	mux.HandleFunc("POST /api/replay/resume", handlers.Replay.Resume)
	mux.HandleFunc("POST /api/replay/step", handlers.Replay.Step)
	mux.HandleFunc("POST /api/replay/speed", handlers.Replay.Speed)
	mux.HandleFunc("GET /api/replay/progress", handlers.Replay.Progress)

	// Persisted history.
	if handlers.History != nil {
		mux.HandleFunc("GET /api/history/positions", handlers.History.Positions)
		mux.HandleFunc("GET /api/history/orders", handlers.History.Orders)
		mux.HandleFunc("GET /api/history/audit", handlers.History.Audit)
	}

	// Prometheus exposition (no auth required).
	if handlers.Metrics != nil {
		mux.Handle("GET /metrics", handlers.Metrics)
	}

	// WebSocket endpoint.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Build the middleware chain, innermost first.
	var h http.Handler = mux

	if limiter != nil && cfg.RateLimit > 0 {
		window := cfg.RateWindow
		if window <= 0 {
			window = time.Second
		}
		h = middleware.RateLimit(limiter, cfg.RateLimit, window)(h)
	}

	// Apply auth middleware (skips if APIKey is empty).
	h = middleware.Auth(cfg.APIKey, "/api/health", "/metrics")(h)

	// Apply request logging middleware.
	h = middleware.Logging(logger)(h)

	// Apply CORS middleware outermost so preflights skip auth.
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		handler:    h,
		logger:     logger.With(slog.String("component", "server")),
	}
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler { return s.handler }

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("server: listen: %w", err)
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until the server is shut down.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("server: starting",
		slog.String("addr", ln.Addr().String()),
	)
	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: serve: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
