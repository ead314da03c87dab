package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// AccessiblePropertiesHandler handles GET /v1/access/{staffID}/properties
func (s *Server) AccessiblePropertiesHandler(w http.ResponseWriter, r *http.Request) {
	staffID := chi.URLParam(r, "staffID")
	properties, err := s.engine.AccessibleProperties(r.Context(), staffID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if properties == nil {
		properties = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"staff_id":   staffID,
		"properties": properties,
	})
}

// AccessibleClientsHandler handles GET /v1/access/{staffID}/clients
func (s *Server) AccessibleClientsHandler(w http.ResponseWriter, r *http.Request) {
	staffID := chi.URLParam(r, "staffID")
	clients, err := s.engine.AccessibleClients(r.Context(), staffID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if clients == nil {
		clients = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"staff_id": staffID,
		"clients":  clients,
	})
}
