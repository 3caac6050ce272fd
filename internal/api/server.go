// Package api exposes the HTTP surface: registration, profile, session
// listing, and the voice turn endpoint.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/abdulmalikadebayo/safehaven/internal/config"
	"github.com/abdulmalikadebayo/safehaven/internal/metrics"
	"github.com/abdulmalikadebayo/safehaven/internal/store"
	"github.com/abdulmalikadebayo/safehaven/internal/turn"
)

// Server holds the handler dependencies.
type Server struct {
	cfg     config.Config
	logger  *slog.Logger
	store   store.DataStore
	orc     *turn.Orchestrator
	metrics *metrics.Metrics
}

// New creates a Server.
func New(cfg config.Config, logger *slog.Logger, st store.DataStore, orc *turn.Orchestrator, m *metrics.Metrics) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{cfg: cfg, logger: logger, store: st, orc: orc, metrics: m}
}

// Router assembles the full middleware chain and route table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(RequestID)
	r.Use(AccessLog(s.logger))
	r.Use(Recover(s.logger))
	r.Use(CORS(s.cfg.CORSAllowedOrigins))

	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", s.handleRegister)
		r.Post("/auth/login", s.handleLogin)

		// Turns work anonymously; a presented token must still resolve.
		r.Group(func(r chi.Router) {
			r.Use(Authenticate(s.store, false))
			r.Post("/voice_input", s.handleVoiceInput)
		})

		r.Group(func(r chi.Router) {
			r.Use(Authenticate(s.store, true))
			r.Get("/auth/me", s.handleMe)
			r.Get("/profile", s.handleGetProfile)
			r.Patch("/profile", s.handlePatchProfile)
			r.Get("/sessions", s.handleSessions)
		})
	})

	return r
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		s.logger.Warn("readiness check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
