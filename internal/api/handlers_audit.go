package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/careorg/rosteraccess/internal/storage"
)

// AuditLogHandler handles GET /v1/audit. Entries come back in ascending
// timestamp order.
func (s *Server) AuditLogHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := storage.AuditFilter{
		StaffID: q.Get("staff"),
		Limit:   100,
	}

	if l := q.Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil {
			filter.Limit = n
		}
	}
	if o := q.Get("offset"); o != "" {
		if n, err := strconv.Atoi(o); err == nil {
			filter.Offset = n
		}
	}
	if from := q.Get("from"); from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid from timestamp")
			return
		}
		filter.From = &t
	}
	if to := q.Get("to"); to != "" {
		t, err := time.Parse(time.RFC3339, to)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid to timestamp")
			return
		}
		filter.To = &t
	}

	entries, err := s.auditor.Query(r.Context(), filter)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"data": entries})
}

// AuditDeadletterHandler handles GET /v1/audit/deadletter — entries whose
// appends exhausted their retries and await reconciliation.
func (s *Server) AuditDeadletterHandler(w http.ResponseWriter, r *http.Request) {
	entries := s.auditor.Deadletter()
	auditDeadletterSize.Set(float64(len(entries)))
	writeJSON(w, http.StatusOK, map[string]any{"data": entries})
}
