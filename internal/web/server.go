// Package web provides the HTTP server and handlers for the lender service.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/brokerload/lenderdesk/internal/auth"
	"github.com/brokerload/lenderdesk/internal/bulk"
	"github.com/brokerload/lenderdesk/internal/config"
	"github.com/brokerload/lenderdesk/internal/lender"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server is the HTTP server for the lender service.
type Server struct {
	cfg      *config.Config
	repo     lender.Repository
	auth     *auth.Authenticator
	importer *bulk.Importer
	exporter *bulk.Exporter
	router   *chi.Mux
	server   *http.Server
}

// NewServer creates a new Server instance.
func NewServer(cfg *config.Config, repo lender.Repository, authenticator *auth.Authenticator) *Server {
	s := &Server{
		cfg:      cfg,
		repo:     repo,
		auth:     authenticator,
		importer: bulk.NewImporter(repo),
		exporter: bulk.NewExporter(repo),
		router:   chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
	s.router.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))

	if s.cfg.Rate.Enabled {
		limiter := newRateLimiter(s.cfg.Rate.RequestsPerMinute, time.Minute)
		s.router.Use(limiter.middleware)
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/", s.handleIndex)

	// Lender CRUD: reads are anonymous, writes require authentication.
	s.router.Route("/lenders", func(r chi.Router) {
		r.Get("/", s.handleListLenders)
		r.Get("/{code}", s.handleGetLender)

		r.With(s.requireBasicAuth).Post("/", s.handleCreateLender)
		r.With(s.requireBasicAuth).Put("/{code}", s.handleUpdateLender)
		r.With(s.requireBasicAuth).Delete("/{code}", s.handleDeleteLender)
	})

	// Bulk CSV exchange. Both directions require authentication.
	s.router.Route("/csv-in-bulk", func(r chi.Router) {
		r.Use(s.requireBasicAuth)
		r.Get("/", s.handleBulkExport)
		r.Post("/", s.handleBulkImport)
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// requireBasicAuth resolves the request's Basic Authentication header to an
// active user identity and threads it through the request context. Any
// authentication failure short-circuits with 401 before the handlers run.
func (s *Server) requireBasicAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, err := s.auth.Authenticate(r.Context(), r.Header.Get("Authorization"))
		if err != nil {
			if !errors.Is(err, auth.ErrUnauthenticated) {
				slog.Error("authentication lookup failed",
					"path", r.URL.Path,
					"method", r.Method,
					"error", err,
					"request_id", middleware.GetReqID(r.Context()),
				)
				writeError(w, http.StatusInternalServerError, "internal error")
				return
			}
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), identity)))
	})
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprintf(w, `{"error":%q}`, message)
}

// writeJSON encodes v as JSON with the given status.
// Encoding errors are logged since headers are already sent.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
