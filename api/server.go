// Package api provides the HTTP REST surface for voyago.
//
// Endpoints:
//
//	POST /chat/                      run one conversational turn
//	GET  /chat/history/{session_id}  read retained session history
//	GET  /health                     liveness probe
//	GET  /ready                      readiness probe (DB ping)
//
// The layer is deliberately thin: request decoding, response encoding,
// and middleware (recovery, logging, per-IP rate limiting). All chat
// semantics live in internal/chat.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	// DefaultAddr is the default address for the HTTP server.
	DefaultAddr = "127.0.0.1:8080"

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout = 10 * time.Second

	// ReadHeaderTimeout bounds header reads (Slowloris protection).
	ReadHeaderTimeout = 10 * time.Second

	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout = 30 * time.Second

	// WriteTimeout is the maximum duration for writing the response.
	// Generation calls dominate, so this is generous.
	WriteTimeout = 2 * time.Minute

	// IdleTimeout is the keep-alive idle bound.
	IdleTimeout = 2 * time.Minute
)

// ServerConfig contains the parameters for NewServer.
type ServerConfig struct {
	Logger  *slog.Logger
	Chat    ChatService
	History HistoryReader
	Pool    *pgxpool.Pool

	// Rate limiting; RateRPS <= 0 disables the middleware.
	RateRPS    float64
	RateBurst  int
	TrustProxy bool
}

// Server is the HTTP server for voyago's REST API.
type Server struct {
	mux     *http.ServeMux
	logger  *slog.Logger
	limiter *rateLimiter
	cfg     ServerConfig
}

// NewServer creates an HTTP server with all routes registered.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Chat == nil {
		return nil, errors.New("chat service is required")
	}
	if cfg.History == nil {
		return nil, errors.New("history reader is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	mux := http.NewServeMux()
	NewHealthHandler(cfg.Pool, cfg.Logger).RegisterRoutes(mux)
	NewChatHandler(cfg.Chat, cfg.History, cfg.Logger).RegisterRoutes(mux)

	s := &Server{
		mux:    mux,
		logger: cfg.Logger,
		cfg:    cfg,
	}
	if cfg.RateRPS > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = int(cfg.RateRPS) * 3
		}
		s.limiter = newRateLimiter(cfg.RateRPS, burst)
	}

	return s, nil
}

// Handler returns the HTTP handler with middleware applied.
// Order: recovery → logging → rate limit → handler.
func (s *Server) Handler() http.Handler {
	middlewares := []func(http.Handler) http.Handler{
		recoveryMiddleware(s.logger),
		loggingMiddleware(s.logger),
	}
	if s.limiter != nil {
		middlewares = append(middlewares, rateLimitMiddleware(s.limiter, s.cfg.TrustProxy, s.logger))
	}
	return chain(s.mux, middlewares...)
}

// Run starts the HTTP server and blocks until the context is
// cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: ReadHeaderTimeout,
		ReadTimeout:       ReadTimeout,
		WriteTimeout:      WriteTimeout,
		IdleTimeout:       IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
