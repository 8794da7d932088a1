// Package api serves the non-websocket HTTP surface: health and
// registry statistics. Classroom CRUD lives in the external system.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"classd/internal/classroom"
)

// Server exposes health and stats endpoints over a plain ServeMux.
type Server struct {
	registry *classroom.Registry
	router   *http.ServeMux
	log      *zap.Logger
}

// NewServer wires the routes.
func NewServer(registry *classroom.Registry, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		registry: registry,
		router:   http.NewServeMux(),
		log:      log,
	}
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /api/stats", s.handleStats)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.registry.Stats())
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.Warn("response encoding failed", zap.Error(err))
	}
}
