package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/careorg/rosteraccess/internal/config"
	"github.com/careorg/rosteraccess/internal/storage"
	"github.com/careorg/rosteraccess/pkg/models"
)

func newTestServer(t *testing.T) (*Server, http.Handler, *storage.MemoryBackend) {
	t.Helper()
	store := storage.NewMemoryBackend()
	holder, err := config.NewHolder(models.DefaultRBACConfig())
	if err != nil {
		t.Fatalf("config holder: %v", err)
	}
	srv := NewServer(store, holder, Config{ListenAddr: ":0"})
	return srv, srv.BuildRouter(), store
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Actor", "manager-1")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var result map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("decoding response %q: %v", w.Body.String(), err)
	}
	return result
}

func TestHealth(t *testing.T) {
	_, handler, _ := newTestServer(t)
	w := doJSON(t, handler, "GET", "/v1/sys/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if got := decodeBody(t, w)["status"]; got != "ok" {
		t.Fatalf("expected status ok, got %v", got)
	}
}

func TestShiftLifecycleOverHTTP(t *testing.T) {
	_, handler, store := newTestServer(t)
	store.AddStaff("s1", "Support Worker")

	now := time.Now().UTC()
	w := doJSON(t, handler, "POST", "/v1/shifts", map[string]any{
		"staff_id":    "s1",
		"property_id": "p1",
		"client_ids":  []string{"c1"},
		"start":       now.Add(-time.Hour),
		"end":         now.Add(7 * time.Hour),
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	shiftID, _ := decodeBody(t, w)["id"].(string)
	if shiftID == "" {
		t.Fatal("expected a shift ID in the response")
	}

	// The shift is in progress, so access is live.
	w = doJSON(t, handler, "GET", "/v1/access/s1/properties", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	props, _ := decodeBody(t, w)["properties"].([]any)
	if len(props) != 1 || props[0] != "p1" {
		t.Fatalf("expected access to p1, got %v", props)
	}

	w = doJSON(t, handler, "GET", "/v1/access/s1/clients", nil)
	clients, _ := decodeBody(t, w)["clients"].([]any)
	if len(clients) != 1 || clients[0] != "c1" {
		t.Fatalf("expected access to c1, got %v", clients)
	}

	// Reading it back works.
	w = doJSON(t, handler, "GET", "/v1/shifts/"+shiftID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	// Cancellation removes access before the request returns.
	w = doJSON(t, handler, "DELETE", "/v1/shifts/"+shiftID, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	w = doJSON(t, handler, "GET", "/v1/access/s1/properties", nil)
	props, _ = decodeBody(t, w)["properties"].([]any)
	if len(props) != 0 {
		t.Fatalf("expected no access after cancellation, got %v", props)
	}
}

func TestShiftValidationOverHTTP(t *testing.T) {
	_, handler, _ := newTestServer(t)
	now := time.Now().UTC()

	w := doJSON(t, handler, "POST", "/v1/shifts", map[string]any{
		"property_id": "p1",
		"start":       now,
		"end":         now.Add(time.Hour),
	})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for missing staff_id, got %d", w.Code)
	}

	w = doJSON(t, handler, "GET", "/v1/shifts/nope", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown shift, got %d", w.Code)
	}
}

func TestClockFlowOverHTTP(t *testing.T) {
	_, handler, store := newTestServer(t)
	store.AddStaff("s1", "Support Worker")

	now := time.Now().UTC()
	w := doJSON(t, handler, "POST", "/v1/shifts", map[string]any{
		"staff_id":    "s1",
		"property_id": "p1",
		"start":       now.Add(-time.Hour),
		"end":         now.Add(7 * time.Hour),
	})
	shiftID, _ := decodeBody(t, w)["id"].(string)

	w = doJSON(t, handler, "POST", "/v1/clock/"+shiftID, map[string]any{
		"staff_id": "s1",
		"kind":     "clock_in",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for clock-in, got %d: %s", w.Code, w.Body.String())
	}

	// Early finish without a reason enters the pending sub-state.
	w = doJSON(t, handler, "POST", "/v1/clock/"+shiftID, map[string]any{
		"staff_id": "s1",
		"kind":     "early_finish",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for early finish, got %d: %s", w.Code, w.Body.String())
	}
	if pending, _ := decodeBody(t, w)["pending_reason"].(bool); !pending {
		t.Fatal("expected pending_reason to be set")
	}

	w = doJSON(t, handler, "POST", "/v1/clock/"+shiftID+"/reason", map[string]any{
		"reason": "client went to hospital",
	})
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for reason, got %d: %s", w.Code, w.Body.String())
	}

	// A second terminal event is out of sequence.
	w = doJSON(t, handler, "POST", "/v1/clock/"+shiftID, map[string]any{
		"staff_id": "s1",
		"kind":     "clock_out",
	})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for duplicate terminal event, got %d", w.Code)
	}
}

func TestManualGrantOverHTTP(t *testing.T) {
	_, handler, store := newTestServer(t)
	store.AddStaff("s1", "Support Worker")

	w := doJSON(t, handler, "POST", "/v1/grants/s1", map[string]any{
		"property_id": "p7",
		"client_ids":  []string{"c7"},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	if body["source"] != "manual" || body["granted_by"] != "manager-1" {
		t.Fatalf("unexpected grant body: %v", body)
	}

	w = doJSON(t, handler, "GET", "/v1/access/s1/properties", nil)
	props, _ := decodeBody(t, w)["properties"].([]any)
	if len(props) != 1 || props[0] != "p7" {
		t.Fatalf("expected manual access to p7, got %v", props)
	}

	w = doJSON(t, handler, "DELETE", "/v1/grants/s1/p7", nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	w = doJSON(t, handler, "GET", "/v1/access/s1/properties", nil)
	props, _ = decodeBody(t, w)["properties"].([]any)
	if len(props) != 0 {
		t.Fatalf("expected no access after clear, got %v", props)
	}

	w = doJSON(t, handler, "POST", "/v1/grants/s1", map[string]any{})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing property_id, got %d", w.Code)
	}
}

func TestAuditTrailOverHTTP(t *testing.T) {
	_, handler, store := newTestServer(t)
	store.AddStaff("s1", "Support Worker")

	doJSON(t, handler, "POST", "/v1/grants/s1", map[string]any{"property_id": "p1"})

	w := doJSON(t, handler, "GET", "/v1/audit?staff=s1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	data, _ := decodeBody(t, w)["data"].([]any)
	if len(data) == 0 {
		t.Fatal("expected audit entries for the manual grant")
	}
	first, _ := data[0].(map[string]any)
	if first["action"] != "grant" || first["actor"] != "manager-1" {
		t.Fatalf("unexpected audit entry: %v", first)
	}

	w = doJSON(t, handler, "GET", "/v1/audit?from=not-a-time", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad timestamp, got %d", w.Code)
	}

	w = doJSON(t, handler, "GET", "/v1/audit/deadletter", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestConfigOverHTTP(t *testing.T) {
	_, handler, _ := newTestServer(t)

	w := doJSON(t, handler, "GET", "/v1/sys/config", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	cfg := decodeBody(t, w)
	if cfg["enabled"] != true {
		t.Fatalf("expected enabled config, got %v", cfg)
	}

	next := models.DefaultRBACConfig()
	next.RequireClockIn = true
	w = doJSON(t, handler, "PUT", "/v1/sys/config", next)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if v, _ := decodeBody(t, w)["version"].(float64); v != 2 {
		t.Fatalf("expected version 2 after swap, got %v", v)
	}

	bad := models.DefaultRBACConfig()
	bad.EarlyFinishGracePeriodMinutes = -5
	w = doJSON(t, handler, "PUT", "/v1/sys/config", bad)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid config, got %d", w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	_, handler, _ := newTestServer(t)
	// Prime the request counter so the scrape below has something to show.
	doJSON(t, handler, "GET", "/v1/sys/health", nil)
	w := doJSON(t, handler, "GET", "/metrics", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !bytes.Contains(w.Body.Bytes(), []byte("rosteraccess_requests_total")) {
		t.Error("expected request counter in metrics output")
	}
}
