package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/ashita-ai/wyrmgate/internal/auth"
	"github.com/ashita-ai/wyrmgate/internal/ctxutil"
	"github.com/ashita-ai/wyrmgate/internal/orchestrator"
	"github.com/ashita-ai/wyrmgate/internal/ratelimit"
	"github.com/ashita-ai/wyrmgate/internal/validate"
)

// Server is the Wyrmgate HTTP server.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	logger     *slog.Logger
}

// Handler returns the root HTTP handler for use in tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ServerConfig holds all dependencies and configuration for creating a Server.
// Optional fields (nil-safe): Limiter, Broker, MCPServer.
type ServerConfig struct {
	// Required dependencies.
	Service   *orchestrator.Service
	Validator *validate.Validator
	Store     Pinger
	JWTMgr    *auth.JWTManager
	Logger    *slog.Logger

	// Optional dependencies (nil = disabled).
	Limiter   ratelimit.Limiter
	Broker    *Broker
	MCPServer *mcpserver.MCPServer

	// HTTP server settings.
	Port                int
	ReadTimeout         time.Duration
	WriteTimeout        time.Duration
	RequestTimeout      time.Duration
	Version             string
	MaxRequestBodyBytes int64
	StreamChunkRunes    int
}

// New creates a new HTTP server with all routes configured.
func New(cfg ServerConfig) *Server {
	h := NewHandlers(HandlersDeps{
		Service:             cfg.Service,
		Validator:           cfg.Validator,
		Broker:              cfg.Broker,
		Store:               cfg.Store,
		Logger:              cfg.Logger,
		Version:             cfg.Version,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
		RequestTimeout:      cfg.RequestTimeout,
		StreamChunkRunes:    cfg.StreamChunkRunes,
	})

	limiter := cfg.Limiter
	if limiter == nil {
		limiter = ratelimit.NoopLimiter{}
	}
	reqIDFunc := func(r *http.Request) string {
		return RequestIDFromContext(r.Context())
	}
	// Model calls are the expensive part, so only the chat endpoints are limited.
	chatRL := ratelimit.Middleware(limiter, "chat", userKeyFunc, reqIDFunc, cfg.Logger)

	mux := http.NewServeMux()

	// Chat endpoints (rate limited per user).
	mux.Handle("POST /v1/chat", chatRL(http.HandlerFunc(h.HandleChat)))
	mux.Handle("POST /v1/game/chat", chatRL(http.HandlerFunc(h.HandleGameChat)))
	mux.Handle("POST /v1/game/chat/stream", chatRL(http.HandlerFunc(h.HandleGameChatStream)))

	// Game state.
	mux.HandleFunc("GET /v1/game/state", h.HandleGameState)
	mux.HandleFunc("POST /v1/game/new", h.HandleNewGame)
	mux.HandleFunc("GET /v1/game/achievements", h.HandleAchievements)

	mux.HandleFunc("GET /v1/tools", h.HandleTools)
	mux.HandleFunc("GET /v1/sessions/{session_id}/messages", h.HandleSessionMessages)

	// Long-lived connection, not rate limited.
	mux.HandleFunc("GET /v1/subscribe", h.HandleSubscribe)

	// MCP StreamableHTTP transport (auth required).
	if cfg.MCPServer != nil {
		mux.Handle("/mcp", mcpserver.NewStreamableHTTPServer(cfg.MCPServer))
	}

	// Health (no auth, no rate limit).
	mux.HandleFunc("GET /health", h.HandleHealth)

	// Middleware chain (outermost executes first):
	// request ID → security headers → tracing → logging → auth → recovery → handler.
	var handler http.Handler = mux
	handler = recoveryMiddleware(cfg.Logger, handler)
	handler = authMiddleware(cfg.JWTMgr, handler)
	handler = loggingMiddleware(cfg.Logger, handler)
	handler = tracingMiddleware(handler)
	handler = securityHeadersMiddleware(handler)
	handler = requestIDMiddleware(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           handler,
			ReadTimeout:       cfg.ReadTimeout,
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      cfg.WriteTimeout,
		},
		handler: handler,
		logger:  cfg.Logger,
	}
}

// userKeyFunc keys rate limits by the authenticated user.
func userKeyFunc(r *http.Request) string {
	return ctxutil.UserIDFromContext(r.Context())
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}
