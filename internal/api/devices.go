package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sisbarc/camshell/internal/storage"
)

func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	if s.devices == nil {
		writeJSON(w, http.StatusOK, []storage.Device{})
		return
	}
	devices, err := s.devices.List(r.Context())
	if err != nil {
		s.logger.Error("failed to list devices", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list devices")
		return
	}
	writeJSON(w, http.StatusOK, devices)
}

func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	instance := chi.URLParam(r, "instance")
	if s.devices == nil {
		writeError(w, http.StatusNotFound, "device discovery is disabled")
		return
	}
	d, err := s.devices.Get(r.Context(), instance)
	if err != nil {
		var nf *storage.NotFoundError
		if errors.As(err, &nf) {
			writeError(w, http.StatusNotFound, nf.Error())
			return
		}
		s.logger.Error("failed to get device", "instance", instance, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get device")
		return
	}
	writeJSON(w, http.StatusOK, d)
}
