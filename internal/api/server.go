// Package api exposes the conversational backend over HTTP: an SSE chat
// endpoint, conversation CRUD, and the model inventory.
package api

import (
	"context"
	"errors"
	"iter"
	"net/http"

	"github.com/neuassist/neuassist/internal/chat"
	"github.com/neuassist/neuassist/internal/log"
	"github.com/neuassist/neuassist/internal/store"
)

// Streamer runs one chat turn as an event sequence.
type Streamer interface {
	Stream(ctx context.Context, req chat.Request) iter.Seq[chat.Event]
}

// ModelCatalog is the model inventory served to the client.
type ModelCatalog struct {
	Available []string
	Thinking  []string
	Default   string
}

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger      log.Logger
	Store       *store.Store // Required
	Chat        Streamer     // Required
	Models      ModelCatalog
	CORSOrigins []string // Allowed origins for CORS
	TrustProxy  bool     // Trust X-Real-IP/X-Forwarded-For headers
	RateBurst   int      // Rate limiter burst size per IP (0 = default 60)
}

// Server is the JSON API HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates a new API server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Store == nil {
		return nil, errors.New("store is required")
	}
	if cfg.Chat == nil {
		return nil, errors.New("chat service is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	ch := &chatHandler{logger: logger, store: cfg.Store, streamer: cfg.Chat}
	cv := &conversationHandler{logger: logger, store: cfg.Store}
	mh := &modelHandler{logger: logger, catalog: cfg.Models}

	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/chat", ch.chat)

	mux.HandleFunc("GET /api/conversations", cv.list)
	mux.HandleFunc("POST /api/conversations", cv.create)
	mux.HandleFunc("DELETE /api/conversations/{id}", cv.delete)
	mux.HandleFunc("GET /api/conversations/{id}/history", cv.history)

	mux.HandleFunc("GET /api/models", mh.models)
	mux.HandleFunc("GET /api/thinking_models", mh.thinkingModels)
	mux.HandleFunc("GET /api/default_model", mh.defaultModel)

	// Rate limiter: per-IP token bucket (1 token/sec refill)
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 60
	}
	rl := newIPLimiter(rateLimitConfig{
		perSecond:  1,
		burst:      burst,
		trustProxy: cfg.TrustProxy,
	})

	// Middleware stack, outermost first:
	//   Recovery → Logging → CORS → RateLimit → Routes
	// CORS sits before RateLimit so preflight OPTIONS gets proper headers.
	var handler http.Handler = mux
	handler = rl.middleware(logger)(handler)
	handler = corsMiddleware(cfg.CORSOrigins)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = recoveryMiddleware(logger)(handler)

	// Health probes bypass the middleware stack.
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", health)
	topMux.Handle("/", handler)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
