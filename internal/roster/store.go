package roster

import (
	"context"
	"time"

	"github.com/careorg/rosteraccess/internal/storage"
	"github.com/careorg/rosteraccess/pkg/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// CancelListener is notified synchronously when a shift is cancelled, so a
// revoke implied by the cancellation lands before Cancel returns.
type CancelListener interface {
	ShiftCancelled(ctx context.Context, shift *models.Shift) error
}

// Store owns shift records. Pure data access plus the synchronous
// cancellation hook; access policy lives in the engine.
type Store struct {
	store    storage.StorageBackend
	listener CancelListener
	now      func() time.Time
}

// New creates a shift Store.
func New(store storage.StorageBackend) *Store {
	return &Store{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// SetCancelListener wires the access engine in.
func (s *Store) SetCancelListener(l CancelListener) { s.listener = l }

// SetClock overrides the time source. Tests only.
func (s *Store) SetClock(now func() time.Time) { s.now = now }

// Create validates and persists a new shift. A missing ID is assigned; a
// missing status defaults to assigned.
func (s *Store) Create(ctx context.Context, shift *models.Shift) error {
	if shift.StaffID == "" || shift.PropertyID == "" {
		return models.Validationf("shift requires staff_id and property_id")
	}
	if !shift.End.After(shift.Start) {
		return models.Validationf("shift end must be after start")
	}
	if shift.ID == "" {
		shift.ID = uuid.NewString()
	}
	if shift.Status == "" {
		shift.Status = models.ShiftAssigned
	}
	switch shift.Status {
	case models.ShiftOpen, models.ShiftAssigned:
	default:
		return models.Validationf("new shift status must be open or assigned, got %q", shift.Status)
	}
	shift.CreatedAt = s.now()
	shift.UpdatedAt = shift.CreatedAt

	if err := s.store.CreateShift(ctx, shift); err != nil {
		return err
	}
	log.Info().
		Str("shift_id", shift.ID).
		Str("staff_id", shift.StaffID).
		Str("property_id", shift.PropertyID).
		Time("start", shift.Start).
		Time("end", shift.End).
		Msg("shift created")
	return nil
}

// Get returns a shift by ID.
func (s *Store) Get(ctx context.Context, shiftID string) (*models.Shift, error) {
	return s.store.GetShift(ctx, shiftID)
}

// Cancel marks the shift cancelled and synchronously notifies the engine.
// Any revoke the cancellation causes is applied before Cancel returns; a
// cancelled shift must not back access for even a moment.
func (s *Store) Cancel(ctx context.Context, shiftID string) error {
	shift, err := s.store.GetShift(ctx, shiftID)
	if err != nil {
		return err
	}
	if shift.Status == models.ShiftCancelled {
		return nil
	}
	if err := s.store.UpdateShiftStatus(ctx, shiftID, models.ShiftCancelled); err != nil {
		return err
	}
	shift.Status = models.ShiftCancelled
	log.Info().Str("shift_id", shiftID).Str("staff_id", shift.StaffID).Msg("shift cancelled")

	if s.listener != nil {
		if err := s.listener.ShiftCancelled(ctx, shift); err != nil {
			return err
		}
	}
	return nil
}

// ShiftsActiveAt returns the staff member's non-cancelled shifts whose
// [start, end) window contains the instant.
func (s *Store) ShiftsActiveAt(ctx context.Context, staffID string, at time.Time) ([]*models.Shift, error) {
	shifts, err := s.store.ShiftsForStaff(ctx, staffID, at, at.Add(time.Nanosecond))
	if err != nil {
		return nil, err
	}
	var out []*models.Shift
	for _, shift := range shifts {
		if shift.Contributes() && !shift.Start.After(at) && shift.End.After(at) {
			out = append(out, shift)
		}
	}
	return out, nil
}

// ShiftsForStaff returns the staff member's shifts overlapping [from, to).
func (s *Store) ShiftsForStaff(ctx context.Context, staffID string, from, to time.Time) ([]*models.Shift, error) {
	return s.store.ShiftsForStaff(ctx, staffID, from, to)
}

// ShiftsStartingBetween returns shifts starting in (t0, t1].
func (s *Store) ShiftsStartingBetween(ctx context.Context, t0, t1 time.Time) ([]*models.Shift, error) {
	return s.store.ShiftsStartingBetween(ctx, t0, t1)
}

// ShiftsEndingBetween returns shifts ending in (t0, t1].
func (s *Store) ShiftsEndingBetween(ctx context.Context, t0, t1 time.Time) ([]*models.Shift, error) {
	return s.store.ShiftsEndingBetween(ctx, t0, t1)
}
