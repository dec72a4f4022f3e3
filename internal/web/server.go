// Package web provides the HTTP server and JSON handlers for the import and
// moderation API.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/adboard/marketplace/internal/config"
	"github.com/adboard/marketplace/internal/core"
	"github.com/adboard/marketplace/internal/web/middleware"
)

// Server is the HTTP server for the import and moderation API.
type Server struct {
	service *core.Service
	pool    *pgxpool.Pool
	cfg     *config.Config
	router  *chi.Mux
	server  *http.Server

	authMiddleware func(http.Handler) http.Handler
}

// NewServer creates a new Server instance. The pool is used only for health
// checks; all data access goes through the service.
func NewServer(service *core.Service, pool *pgxpool.Pool, cfg *config.Config) (*Server, error) {
	s := &Server{
		service: service,
		pool:    pool,
		cfg:     cfg,
		router:  chi.NewRouter(),
	}
	if err := s.setupMiddleware(); err != nil {
		return nil, err
	}
	s.setupRoutes()
	return s, nil
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() error {
	actors, err := s.cfg.Security.Actors()
	if err != nil {
		return fmt.Errorf("actor keys: %w", err)
	}

	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(chimw.Recoverer)
	s.router.Use(chimw.Compress(5))
	s.router.Use(chimw.Timeout(s.cfg.Server.RequestTimeout))
	s.router.Use(securityHeaders)

	s.authMiddleware = middleware.ActorAuth(actors)

	return nil
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	// Health probes stay unauthenticated; everything else carries an actor.
	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Use(middleware.Logger)

		// Entity type catalog
		r.Get("/entity-types", s.handleListEntityTypes)

		// Bulk import: preview, inspect, commit, discard
		r.Post("/import/preview/{entityType}", s.handlePreview)
		r.Get("/import/batch/{batchID}", s.handleGetBatch)
		r.Post("/import/commit/{batchID}", s.handleCommit)
		r.Delete("/import/batch/{batchID}", s.handleDiscardBatch)
		r.Get("/import/history", s.handleImportHistory)

		// Canonical entities
		r.Get("/entities/{entityType}/{entityID}", s.handleGetEntity)

		// Moderation: submit, review queue, decisions
		r.Post("/edits/{entityType}/{entityID}", s.handleSubmitEdit)
		r.Get("/edits/pending", s.handleListPending)
		r.Get("/edits/{editID}", s.handleGetEdit)
		r.Post("/edits/{editID}/approve", s.handleApprove)
		r.Post("/edits/{editID}/reject", s.handleReject)

		// Audit log
		r.Get("/audit-log", s.handleAuditLog)
		r.Get("/audit-log/export", s.handleAuditLogExport)
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("starting server", "addr", addr)
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

// handleHealth reports process and database liveness.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.pool.Ping(r.Context()); err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{"status": "degraded", "database": "unreachable"})
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

// securityHeaders adds security headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// writeJSON encodes v as JSON and writes it to w.
// Logs encoding errors since headers are already sent.
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
