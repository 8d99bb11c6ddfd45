// Package handler implements the health endpoint.
package handler

import (
	"encoding/json"
	"net/http"
)

// Pinger reports storage reachability (e.g. *sql.DB).
type Pinger interface {
	Ping() error
}

// Server handles health checks.
type Server struct {
	pinger Pinger
}

// NewServer returns a health handler. pinger may be nil; then the DB check
// is skipped (in-memory mode).
func NewServer(pinger Pinger) *Server {
	return &Server{pinger: pinger}
}

// HealthCheck reports liveness and, when a pinger is configured, storage
// readiness.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	dbStatus := "skipped"
	if s.pinger != nil {
		if err := s.pinger.Ping(); err != nil {
			status = "degraded"
			dbStatus = "unreachable"
			code = http.StatusServiceUnavailable
		} else {
			dbStatus = "ok"
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status": status,
		"db":     dbStatus,
	})
}
