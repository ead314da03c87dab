package api

import (
	"net/http"
	"time"

	"github.com/careorg/rosteraccess/pkg/models"
	"github.com/go-chi/chi/v5"
)

// ShiftCreateHandler handles POST /v1/shifts
func (s *Server) ShiftCreateHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		StaffID    string    `json:"staff_id"`
		PropertyID string    `json:"property_id"`
		ClientIDs  []string  `json:"client_ids"`
		Start      time.Time `json:"start"`
		End        time.Time `json:"end"`
		Status     string    `json:"status"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	shift := &models.Shift{
		StaffID:    req.StaffID,
		PropertyID: req.PropertyID,
		ClientIDs:  req.ClientIDs,
		Start:      req.Start,
		End:        req.End,
		Status:     models.ShiftStatus(req.Status),
	}
	if err := s.shifts.Create(r.Context(), shift); err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, shift)
}

// ShiftListHandler handles GET /v1/shifts?staff=&from=&to=. The window
// defaults to a day either side of now.
func (s *Server) ShiftListHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	staffID := q.Get("staff")
	if staffID == "" {
		writeError(w, http.StatusBadRequest, "staff query parameter is required")
		return
	}

	now := time.Now().UTC()
	from := now.Add(-24 * time.Hour)
	to := now.Add(24 * time.Hour)
	if v := q.Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid from timestamp")
			return
		}
		from = t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid to timestamp")
			return
		}
		to = t
	}

	shifts, err := s.shifts.ShiftsForStaff(r.Context(), staffID, from, to)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if shifts == nil {
		shifts = []*models.Shift{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": shifts})
}

// ShiftReadHandler handles GET /v1/shifts/{shiftID}
func (s *Server) ShiftReadHandler(w http.ResponseWriter, r *http.Request) {
	shift, err := s.shifts.Get(r.Context(), chi.URLParam(r, "shiftID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, shift)
}

// ShiftCancelHandler handles DELETE /v1/shifts/{shiftID}. The revoke a
// cancellation implies is applied before this returns.
func (s *Server) ShiftCancelHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.shifts.Cancel(r.Context(), chi.URLParam(r, "shiftID")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
