package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// ManualGrantHandler handles POST /v1/grants/{staffID}. With "deny": true
// the grant is a manual deny override that outranks roster state.
func (s *Server) ManualGrantHandler(w http.ResponseWriter, r *http.Request) {
	staffID := chi.URLParam(r, "staffID")

	var req struct {
		PropertyID string     `json:"property_id"`
		ClientIDs  []string   `json:"client_ids"`
		ValidUntil *time.Time `json:"valid_until"`
		Deny       bool       `json:"deny"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.PropertyID == "" {
		writeError(w, http.StatusBadRequest, "property_id is required")
		return
	}

	grant, err := s.engine.SetManualGrant(r.Context(), staffID, req.PropertyID, req.ClientIDs, actor(r), req.ValidUntil, req.Deny)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	s.refreshGrantGauge(r)
	writeJSON(w, http.StatusCreated, grant)
}

// ManualClearHandler handles DELETE /v1/grants/{staffID}/{propertyID}
func (s *Server) ManualClearHandler(w http.ResponseWriter, r *http.Request) {
	staffID := chi.URLParam(r, "staffID")
	propertyID := chi.URLParam(r, "propertyID")

	if err := s.engine.ClearManualGrant(r.Context(), staffID, propertyID, actor(r)); err != nil {
		writeDomainError(w, err)
		return
	}
	s.refreshGrantGauge(r)
	w.WriteHeader(http.StatusNoContent)
}
