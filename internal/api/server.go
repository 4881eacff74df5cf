// Package api exposes the chatbot over a JSON HTTP API.
//
// Routes:
//   - POST /api/v1/chat           - answer a query as a persona
//   - GET  /api/v1/status         - retrieval tier health
//   - GET  /api/v1/personas       - the closed persona set
//   - POST /api/v1/admin/reindex  - rebuild the knowledge index
//   - GET  /health, GET /ready    - container probes, outside the middleware stack
package api

import (
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/roteiro-ai/roteiro/internal/log"
)

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger       log.Logger
	Responder    Responder     // Required
	Retrieval    Retrieval     // Required
	Pool         *pgxpool.Pool // Optional: nil skips the DB ping in /ready
	KnowledgeDir string        // Directory reindexed by the admin endpoint
	CORSOrigins  []string      // Allowed origins for CORS
	IsDev        bool          // Disables HSTS
	TrustProxy   bool          // Trust X-Real-IP/X-Forwarded-For headers
	RateBurst    int           // Rate limiter burst size per IP (0 = default 60)
}

// Server is the JSON API HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates an API server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Responder == nil {
		return nil, errors.New("responder is required")
	}
	if cfg.Retrieval == nil {
		return nil, errors.New("retrieval is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	ch := &chatHandler{responder: cfg.Responder, logger: logger}
	st := &statusHandler{retrieval: cfg.Retrieval, knowledgeDir: cfg.KnowledgeDir, logger: logger}
	ph := &personasHandler{logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/chat", ch.send)
	mux.HandleFunc("GET /api/v1/status", st.getStatus)
	mux.HandleFunc("GET /api/v1/personas", ph.list)
	mux.HandleFunc("POST /api/v1/admin/reindex", st.reindex)

	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 60
	}
	rl := newRateLimiter(1.0, burst)

	// Middleware stack, outermost first:
	//   Recovery → RequestID → Logging → CORS → RateLimit → Routes
	// RequestID runs before Logging so request_id is available in log
	// attributes; CORS runs before RateLimit so preflight OPTIONS gets
	// proper CORS headers.
	var handler http.Handler = mux
	handler = rateLimitMiddleware(rl, cfg.TrustProxy, logger)(handler)
	handler = corsMiddleware(cfg.CORSOrigins)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	isDev := cfg.IsDev
	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setSecurityHeaders(w, isDev)
		handler.ServeHTTP(w, r)
	})

	// Health probes stay outside the middleware stack so rate limiting and
	// CORS never interfere with orchestrator checks.
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", health)
	topMux.Handle("GET /ready", readiness(cfg.Pool))
	topMux.Handle("/", final)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
