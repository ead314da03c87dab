package storage

import (
	"context"
	"errors"
	"time"

	"github.com/careorg/rosteraccess/pkg/models"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// ErrAlreadyExists is returned when trying to create a resource that already exists.
var ErrAlreadyExists = errors.New("already exists")

// StorageBackend defines the persistence interface for the roster access engine.
type StorageBackend interface {
	// Shifts
	CreateShift(ctx context.Context, shift *models.Shift) error
	GetShift(ctx context.Context, id string) (*models.Shift, error)
	UpdateShiftStatus(ctx context.Context, id string, status models.ShiftStatus) error
	// ShiftsForStaff returns the staff member's shifts whose [start, end)
	// window overlaps [from, to), any status.
	ShiftsForStaff(ctx context.Context, staffID string, from, to time.Time) ([]*models.Shift, error)
	ShiftsStartingBetween(ctx context.Context, t0, t1 time.Time) ([]*models.Shift, error)
	ShiftsEndingBetween(ctx context.Context, t0, t1 time.Time) ([]*models.Shift, error)

	// Clock events
	WriteClockEvent(ctx context.Context, ev *models.ClockEvent) error
	ClockEventsForShift(ctx context.Context, shiftID string) ([]*models.ClockEvent, error)
	// PendingReasonEvents returns early-finish events still awaiting a
	// reason whose timestamp is at or before the cutoff.
	PendingReasonEvents(ctx context.Context, cutoff time.Time) ([]*models.ClockEvent, error)
	// TerminalEventsBetween returns clock-out and early-finish events whose
	// timestamp falls in (t0, t1], ascending.
	TerminalEventsBetween(ctx context.Context, t0, t1 time.Time) ([]*models.ClockEvent, error)
	ResolveEventReason(ctx context.Context, eventID, reason string) error

	// Access grants
	ActiveGrants(ctx context.Context, staffID string) ([]*models.AccessGrant, error)
	CreateGrant(ctx context.Context, grant *models.AccessGrant) error
	RevokeGrant(ctx context.Context, grantID string, at time.Time) error

	// Staff and property catalog
	GetStaffRole(ctx context.Context, staffID string) (string, error)
	ListProperties(ctx context.Context) ([]string, error)

	// Audit
	WriteAuditEntry(ctx context.Context, entry *models.AuditEntry) error
	QueryAuditLog(ctx context.Context, filter AuditFilter) ([]*models.AuditEntry, error)

	// Metrics helpers
	CountActiveGrants(ctx context.Context) (int64, error)

	// Lifecycle
	Close()
}

// AuditFilter specifies query parameters for audit log retrieval.
// Entries are always returned in ascending timestamp order.
type AuditFilter struct {
	StaffID string
	From    *time.Time
	To      *time.Time
	Limit   int
	Offset  int
}
