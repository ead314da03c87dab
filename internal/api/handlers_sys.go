package api

import (
	"net/http"

	"github.com/careorg/rosteraccess/pkg/models"
)

func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) ConfigReadHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.cfgs.Current())
}

// ConfigWriteHandler replaces the active access policy configuration. The
// new configuration is validated before it takes effect; running
// evaluations finish against the snapshot they started with.
func (s *Server) ConfigWriteHandler(w http.ResponseWriter, r *http.Request) {
	var cfg models.RBACConfig
	if err := decodeJSON(r, &cfg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.cfgs.Swap(cfg); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"version": s.cfgs.Current().Version,
	})
}
