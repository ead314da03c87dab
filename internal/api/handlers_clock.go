package api

import (
	"net/http"

	"github.com/careorg/rosteraccess/pkg/models"
	"github.com/go-chi/chi/v5"
)

// ClockEventHandler handles POST /v1/clock/{shiftID}
func (s *Server) ClockEventHandler(w http.ResponseWriter, r *http.Request) {
	shiftID := chi.URLParam(r, "shiftID")

	var req struct {
		StaffID string `json:"staff_id"`
		Kind    string `json:"kind"`
		Reason  string `json:"reason"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.StaffID == "" || req.Kind == "" {
		writeError(w, http.StatusBadRequest, "staff_id and kind are required")
		return
	}

	ev, err := s.clock.Record(r.Context(), req.StaffID, shiftID, models.ClockEventKind(req.Kind), req.Reason)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	clockEventsTotal.WithLabelValues(string(ev.Kind)).Inc()
	s.refreshGrantGauge(r)

	writeJSON(w, http.StatusOK, map[string]any{
		"event_id":       ev.ID,
		"shift_id":       ev.ShiftID,
		"kind":           ev.Kind,
		"timestamp":      ev.Timestamp,
		"pending_reason": ev.PendingReason,
	})
}

// ClockReasonHandler handles POST /v1/clock/{shiftID}/reason — supplies the
// missing reason for a pending early finish.
func (s *Server) ClockReasonHandler(w http.ResponseWriter, r *http.Request) {
	shiftID := chi.URLParam(r, "shiftID")

	var req struct {
		Reason string `json:"reason"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.clock.ResolveReason(r.Context(), shiftID, req.Reason); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
