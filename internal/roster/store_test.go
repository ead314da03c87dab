package roster

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/careorg/rosteraccess/internal/storage"
	"github.com/careorg/rosteraccess/pkg/models"
)

// recordingListener captures synchronous cancellation callbacks.
type recordingListener struct {
	cancelled []string
}

func (r *recordingListener) ShiftCancelled(_ context.Context, shift *models.Shift) error {
	r.cancelled = append(r.cancelled, shift.ID)
	return nil
}

func day(h, m int) time.Time {
	return time.Date(2024, 3, 11, h, m, 0, 0, time.UTC)
}

func TestCreateAssignsDefaults(t *testing.T) {
	s := New(storage.NewMemoryBackend())
	shift := &models.Shift{
		StaffID:    "s1",
		PropertyID: "p1",
		Start:      day(9, 0),
		End:        day(17, 0),
	}
	if err := s.Create(context.Background(), shift); err != nil {
		t.Fatalf("create: %v", err)
	}
	if shift.ID == "" {
		t.Error("expected an ID to be assigned")
	}
	if shift.Status != models.ShiftAssigned {
		t.Errorf("expected default status assigned, got %q", shift.Status)
	}
}

func TestCreateValidation(t *testing.T) {
	s := New(storage.NewMemoryBackend())
	cases := []struct {
		name  string
		shift *models.Shift
	}{
		{"missing staff", &models.Shift{PropertyID: "p1", Start: day(9, 0), End: day(17, 0)}},
		{"missing property", &models.Shift{StaffID: "s1", Start: day(9, 0), End: day(17, 0)}},
		{"end before start", &models.Shift{StaffID: "s1", PropertyID: "p1", Start: day(17, 0), End: day(9, 0)}},
		{"zero duration", &models.Shift{StaffID: "s1", PropertyID: "p1", Start: day(9, 0), End: day(9, 0)}},
		{"bad status", &models.Shift{StaffID: "s1", PropertyID: "p1", Start: day(9, 0), End: day(17, 0), Status: models.ShiftCompleted}},
	}
	for _, tc := range cases {
		err := s.Create(context.Background(), tc.shift)
		var verr *models.ValidationError
		if !errors.As(err, &verr) {
			t.Errorf("%s: expected validation error, got %v", tc.name, err)
		}
	}
}

func TestCancelNotifiesListenerSynchronously(t *testing.T) {
	backend := storage.NewMemoryBackend()
	s := New(backend)
	listener := &recordingListener{}
	s.SetCancelListener(listener)

	shift := &models.Shift{StaffID: "s1", PropertyID: "p1", Start: day(9, 0), End: day(17, 0)}
	if err := s.Create(context.Background(), shift); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := s.Cancel(context.Background(), shift.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if len(listener.cancelled) != 1 || listener.cancelled[0] != shift.ID {
		t.Fatalf("expected listener called for %s, got %v", shift.ID, listener.cancelled)
	}

	got, err := s.Get(context.Background(), shift.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != models.ShiftCancelled {
		t.Errorf("expected cancelled status, got %q", got.Status)
	}

	// Cancelling again is a no-op, listener not re-notified.
	if err := s.Cancel(context.Background(), shift.ID); err != nil {
		t.Fatalf("second cancel: %v", err)
	}
	if len(listener.cancelled) != 1 {
		t.Errorf("expected one listener call, got %d", len(listener.cancelled))
	}
}

func TestCancelUnknownShift(t *testing.T) {
	s := New(storage.NewMemoryBackend())
	if err := s.Cancel(context.Background(), "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestShiftsActiveAt(t *testing.T) {
	backend := storage.NewMemoryBackend()
	s := New(backend)

	morning := &models.Shift{StaffID: "s1", PropertyID: "p1", Start: day(9, 0), End: day(12, 0)}
	evening := &models.Shift{StaffID: "s1", PropertyID: "p2", Start: day(18, 0), End: day(22, 0)}
	for _, shift := range []*models.Shift{morning, evening} {
		if err := s.Create(context.Background(), shift); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	active, err := s.ShiftsActiveAt(context.Background(), "s1", day(10, 0))
	if err != nil {
		t.Fatalf("active at: %v", err)
	}
	if len(active) != 1 || active[0].PropertyID != "p1" {
		t.Fatalf("expected the morning shift, got %v", active)
	}

	active, err = s.ShiftsActiveAt(context.Background(), "s1", day(12, 0))
	if err != nil {
		t.Fatalf("active at: %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("expected no shift at the end boundary, got %v", active)
	}
}
