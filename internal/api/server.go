// Package api serves the corpus, the searches and the overlay sessions over
// HTTP, and pushes session changes to WebSocket clients.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/FocuswithJustin/guematrix/core/cache"
	"github.com/FocuswithJustin/guematrix/core/coords"
	"github.com/FocuswithJustin/guematrix/core/engine"
	"github.com/FocuswithJustin/guematrix/core/search"
	"github.com/FocuswithJustin/guematrix/internal/logging"
	"github.com/FocuswithJustin/guematrix/internal/server"
	"github.com/FocuswithJustin/guematrix/internal/sessionstore"
	"github.com/FocuswithJustin/guematrix/internal/store"
)

const shutdownTimeout = 10 * time.Second

// Server is the guematrix HTTP API.
type Server struct {
	cfg      Config
	engine   *engine.Engine
	store    store.Store
	sessions *sessionstore.Store
	hub      *Hub
	stats    *cache.LRU[string, StatsInfo]
	started  time.Time

	mu   sync.Mutex
	live map[string]*engine.Session
}

// Option configures a Server.
type Option func(*Server)

// WithStore serves statistics and verses from a corpus store instead of
// the flattened corpus.
func WithStore(st store.Store) Option {
	return func(s *Server) { s.store = st }
}

// WithSessionStore persists sessions so they survive a restart.
func WithSessionStore(ss *sessionstore.Store) Option {
	return func(s *Server) { s.sessions = ss }
}

// New creates a server around eng.
func New(cfg Config, eng *engine.Engine, opts ...Option) *Server {
	if cfg.MaxBatch <= 0 || cfg.MaxBatch > coords.MaxBatch {
		cfg.MaxBatch = coords.MaxBatch
	}
	if cfg.StatsTTL <= 0 {
		cfg.StatsTTL = 5 * time.Minute
	}
	if cfg.AutoMaxSkip <= 0 {
		cfg.AutoMaxSkip = search.DefaultMaxSkip
	}
	s := &Server{
		cfg:     cfg,
		engine:  eng,
		hub:     NewHub(),
		stats:   cache.New[string, StatsInfo](cache.Config{MaxSize: 1, TTL: cfg.StatsTTL}),
		started: time.Now(),
		live:    make(map[string]*engine.Session),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Hub returns the WebSocket hub.
func (s *Server) Hub() *Hub { return s.hub }

// Routes registers every endpoint on a new mux.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ws", s.handleWebSocket)

	mux.HandleFunc("GET /api/torah/raw", s.handleRaw)
	mux.HandleFunc("GET /api/torah/refs", s.handleRefs)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /api/verse", s.handleVerse)
	mux.HandleFunc("POST /api/search", s.handleSearch)
	mux.HandleFunc("POST /api/corpus/reload", s.handleReload)

	mux.HandleFunc("GET /api/sessions", s.handleListSessions)
	mux.HandleFunc("POST /api/sessions", s.handleCreateSession)
	mux.HandleFunc("GET /api/sessions/{id}", s.handleGetSession)
	mux.HandleFunc("DELETE /api/sessions/{id}", s.handleDeleteSession)
	mux.HandleFunc("POST /api/sessions/{id}/queries", s.handleAddQuery)
	mux.HandleFunc("DELETE /api/sessions/{id}/queries/{qid}", s.handleRemoveQuery)
	mux.HandleFunc("POST /api/sessions/{id}/queries/{qid}/select", s.handleSelectMatch)
	mux.HandleFunc("POST /api/sessions/{id}/queries/{qid}/pin", s.handlePin)
	mux.HandleFunc("GET /api/sessions/{id}/queries/{qid}/legend", s.handleLegendFor)
	mux.HandleFunc("GET /api/sessions/{id}/queries/{qid}/preview", s.handlePreview)
	mux.HandleFunc("GET /api/sessions/{id}/window", s.handleWindow)
	mux.HandleFunc("GET /api/sessions/{id}/legend", s.handleLegend)

	return mux
}

// Handler wraps the routes in the middleware chain: logging outermost, then
// CORS, rate limiting, authentication, security headers and timing.
func (s *Server) Handler(ctx context.Context) http.Handler {
	var handler http.Handler = server.TimingMiddleware(logging.GetLogger(), s.Routes())
	handler = server.SecurityHeadersWithCSP(server.APICSPConfig(), handler)

	if s.cfg.Auth.Enabled {
		handler = AuthMiddleware(s.cfg.Auth, handler)
	}
	if s.cfg.RateLimitRequests > 0 {
		rl := NewRateLimiter(ctx, RateLimiterConfig{
			RequestsPerMinute: s.cfg.RateLimitRequests,
			BurstSize:         s.cfg.RateLimitBurst,
		})
		handler = rl.Middleware(handler)
	}
	handler = server.CORSMiddlewareWithConfig(server.CORSConfig{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
	}, handler)
	return logging.CombinedMiddleware(handler)
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	if err := ValidateAuthConfig(s.cfg.Auth); err != nil {
		return fmt.Errorf("invalid auth config: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go s.hub.Run(ctx)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.Handler(ctx),
		ReadHeaderTimeout: 10 * time.Second,
	}
	logSecurity(s.cfg)
	logging.ServerStartup("rest_api", "http", s.cfg.Port, "websocket_protocol", "ws", "version", s.cfg.Version)

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	logging.Info("shutting down", "timeout", shutdownTimeout.String())
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func logSecurity(cfg Config) {
	if cfg.Auth.Enabled {
		logging.Info("authentication configured", "enabled", true)
	} else {
		logging.Warn("authentication disabled", "note", "all requests allowed")
	}
	if len(cfg.AllowedOrigins) == 0 {
		logging.Warn("cors permissive", "note", "allowing all origins")
	}
	if cfg.RateLimitRequests > 0 {
		logging.Info("rate limiting enabled", "requests_per_minute", cfg.RateLimitRequests, "burst_size", cfg.RateLimitBurst)
	}
}
