package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/mindflow/mindflow-ai/internal/ai"
	"github.com/mindflow/mindflow-ai/internal/graph"
	"github.com/mindflow/mindflow-ai/internal/storage"
	"github.com/mindflow/mindflow-ai/internal/vault"
)

// ---------------------------------------------------------------------------
// Server
// ---------------------------------------------------------------------------

// Server is the HTTP API layer for the mind-map service.
type Server struct {
	store   *graph.MapStore
	db      *storage.Storage
	vault   *vault.Vault
	gateway *ai.Gateway
	sse     *SSEBroadcaster
	mux     *http.ServeMux
	server  *http.Server

	// writeLimiter guards the expensive write endpoints (full import,
	// mind-map generation) against accidental client loops. Per-server,
	// not per-IP; sufficient for single-instance deployments.
	writeLimiter *rate.Limiter
}

// NewServer creates a new Server wired to the given graph store, database,
// vault, SSE broadcaster, and (optional) AI gateway.
// Pass nil for gateway when no AI provider is configured.
func NewServer(store *graph.MapStore, db *storage.Storage, v *vault.Vault, sse *SSEBroadcaster, gateway *ai.Gateway) *Server {
	if sse == nil {
		sse = NewSSEBroadcaster()
	}
	s := &Server{
		store:   store,
		db:      db,
		vault:   v,
		gateway: gateway,
		sse:     sse,
		mux:     http.NewServeMux(),
	}

	// 2 requests/sec with a burst of 5.
	s.writeLimiter = rate.NewLimiter(rate.Limit(2), 5)

	return s
}

// RegisterRoutes wires up every API endpoint.
func (s *Server) RegisterRoutes() {
	// -- Map endpoints ----------------------------------------------------
	s.mux.HandleFunc("GET /api/map", s.handleGetMap)
	s.mux.HandleFunc("PUT /api/map",
		s.withRateLimit(s.writeLimiter, s.handleImportMap))
	s.mux.HandleFunc("GET /api/map/visible", s.handleGetVisible)
	s.mux.HandleFunc("GET /api/map/export", s.handleExportMap)
	s.mux.HandleFunc("GET /api/map/stats", s.handleMapStats)
	s.mux.HandleFunc("POST /api/map/nodes", s.handleMergeNodes)
	s.mux.HandleFunc("PATCH /api/map/nodes/{id}", s.handleUpdateNode)
	s.mux.HandleFunc("DELETE /api/map/nodes/{id}", s.handleRemoveNode)
	s.mux.HandleFunc("POST /api/map/nodes/{id}/collapse", s.handleToggleCollapse)
	s.mux.HandleFunc("POST /api/map/edges", s.handleConnect)
	s.mux.HandleFunc("POST /api/map/selection", s.handleSelect)

	// -- AI endpoints -----------------------------------------------------
	s.mux.HandleFunc("POST /api/ai/generate",
		s.withRateLimit(s.writeLimiter, s.handleGenerate))
	s.mux.HandleFunc("POST /api/ai/expand", s.handleExpand)
	s.mux.HandleFunc("POST /api/ai/quiz", s.handleQuiz)
	s.mux.HandleFunc("POST /api/ai/summary", s.handleSummary)

	// -- Credential endpoints ---------------------------------------------
	s.mux.HandleFunc("GET /api/credential", s.handleCredentialStatus)
	s.mux.HandleFunc("PUT /api/credential", s.handleCredentialStore)
	s.mux.HandleFunc("DELETE /api/credential", s.handleCredentialRemove)

	// -- Saved maps -------------------------------------------------------
	s.mux.HandleFunc("GET /api/maps", s.handleListMaps)
	s.mux.HandleFunc("POST /api/maps", s.handleSaveMap)
	s.mux.HandleFunc("GET /api/maps/{id}", s.handleGetSavedMap)
	s.mux.HandleFunc("PUT /api/maps/{id}", s.handleUpdateSavedMap)
	s.mux.HandleFunc("DELETE /api/maps/{id}", s.handleDeleteSavedMap)
	s.mux.HandleFunc("POST /api/maps/{id}/load", s.handleLoadSavedMap)

	// -- SSE event stream -------------------------------------------------
	s.mux.HandleFunc("GET /api/events", s.handleSSE)

	// -- Health check -----------------------------------------------------
	s.mux.HandleFunc("GET /health", s.handleHealth)
}

// Handler returns the fully-wrapped http.Handler (middleware chain + mux).
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = recoveryMiddleware(h)
	h = loggingMiddleware(h)
	h = corsMiddleware(h)
	return h
}

// ListenAndServe starts the HTTP server on the given address.
func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// ---------------------------------------------------------------------------
// Handlers
// ---------------------------------------------------------------------------

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "ok",
		"service": "mindflow-ai",
	})
}

// ---------------------------------------------------------------------------
// JSON response helpers
// ---------------------------------------------------------------------------

// writeJSON writes an arbitrary value as JSON with the given HTTP status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a standardised JSON error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
		"code":  code,
	})
}

// ---------------------------------------------------------------------------
// Middleware
// ---------------------------------------------------------------------------

// corsMiddleware allows requests from localhost dev servers.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			origin = "http://localhost:5173"
		}

		if strings.HasPrefix(origin, "http://localhost:") {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Max-Age", "86400")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// responseRecorder captures the status code written by downstream handlers.
// It also implements http.Flusher so SSE streaming works through the
// logging middleware.
type responseRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rr *responseRecorder) WriteHeader(code int) {
	rr.statusCode = code
	rr.ResponseWriter.WriteHeader(code)
}

// Flush implements http.Flusher by delegating to the underlying writer.
func (rr *responseRecorder) Flush() {
	if f, ok := rr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// loggingMiddleware logs method, path, duration and status code.
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &responseRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rec, r)

		slog.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.statusCode,
			"duration_ms", time.Since(start).Milliseconds(),
			"remote_addr", r.RemoteAddr,
		)
	})
}

// recoveryMiddleware catches panics and returns a 500 response.
func recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				stack := debug.Stack()
				slog.Error("panic recovered",
					"error", err,
					"stack", string(stack),
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				fmt.Fprintf(w, `{"error":"internal server error"}`)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// withRateLimit wraps a handler with a token-bucket rate limiter.
// Returns 429 when the limiter is exhausted.
// NOTE: this is a per-server limiter (not per-IP).
func (s *Server) withRateLimit(limiter *rate.Limiter, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			fmt.Fprint(w, `{"error":"rate limit exceeded","retry_after_ms":1000}`)
			slog.Warn("rate limit exceeded",
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr,
			)
			return
		}
		next(w, r)
	}
}
