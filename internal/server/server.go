package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// MaxPageSize caps the number of records returned by a single listing
// request. Clients page with the after_id cursor.
const MaxPageSize = 500

// Server is the HTTP API server for cardbox-sync.
type Server struct {
	config Config
	http   *http.Server
	store  *StoreDB
}

// NewServer creates a new Server with the given config and store.
func NewServer(cfg Config, store *StoreDB) *Server {
	s := &Server{
		config: cfg,
		store:  store,
	}

	s.http = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      s.routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s
}

// Start begins listening for HTTP requests (non-blocking).
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.config.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	go func() {
		if err := s.http.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error("http server", "err", err)
		}
	}()

	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// Handler returns the routed handler. Used by tests with httptest.
func (s *Server) Handler() http.Handler {
	return s.routes()
}

// routes builds the HTTP handler with all routes and middleware.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)

	mux.HandleFunc("POST /v1/{collection}/write", s.requireAuth(s.handleWrite))
	mux.HandleFunc("GET /v1/{collection}/changes", s.requireAuth(s.handleChanges))
	mux.HandleFunc("GET /v1/sync/status", s.requireAuth(s.handleStatus))
	mux.HandleFunc("GET /v1/{collection}", s.requireAuth(s.handleList))

	return chain(mux, recoveryMiddleware, loggingMiddleware, maxBytesMiddleware(1<<20))
}

// requireAuth checks the static bearer API key. An empty configured key
// disables auth for local development.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.config.APIKey != "" {
			if r.Header.Get("Authorization") != "Bearer "+s.config.APIKey {
				writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, "invalid or missing API key")
				return
			}
		}
		next(w, r)
	}
}

// chain applies middleware in declaration order (first listed is outermost).
func chain(h http.Handler, mw ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mw) - 1; i >= 0; i-- {
		h = mw[i](h)
	}
	return h
}

func recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				slog.Error("handler panic", "panic", rec, "path", r.URL.Path)
				writeError(w, http.StatusInternalServerError, ErrCodeInternal, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		slog.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds())
	})
}

func maxBytesMiddleware(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, limit)
			next.ServeHTTP(w, r)
		})
	}
}
