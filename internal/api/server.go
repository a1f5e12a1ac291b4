// Package api serves the shell's own JSON endpoints, mounted under /_shell.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sisbarc/camshell/internal/routes"
	"github.com/sisbarc/camshell/internal/storage"
)

// Server holds the dependencies of the /_shell handlers.
type Server struct {
	table   *routes.Table
	devices storage.DeviceStore
	logger  *slog.Logger
}

// New creates an API server. devices may be nil when discovery is disabled.
func New(table *routes.Table, devices storage.DeviceStore, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		table:   table,
		devices: devices,
		logger:  logger,
	}
}

// Mount registers the API routes under r.
func (s *Server) Mount(r chi.Router) {
	r.Get("/routes", s.handleListRoutes)
	r.Get("/devices", s.handleListDevices)
	r.Get("/devices/{instance}", s.handleGetDevice)
	r.Get("/version", s.handleVersion)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
