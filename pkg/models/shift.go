package models

import "time"

// ShiftStatus is the lifecycle state of a rostered shift.
type ShiftStatus string

const (
	ShiftOpen      ShiftStatus = "open"
	ShiftAssigned  ShiftStatus = "assigned"
	ShiftCancelled ShiftStatus = "cancelled"
	ShiftCompleted ShiftStatus = "completed"
)

// Shift is a scheduled work assignment linking a staff member, a property and
// optionally specific clients to a time window.
type Shift struct {
	ID         string      `json:"id"`
	StaffID    string      `json:"staff_id"`
	PropertyID string      `json:"property_id"`
	ClientIDs  []string    `json:"client_ids"`
	Start      time.Time   `json:"start"`
	End        time.Time   `json:"end"`
	Status     ShiftStatus `json:"status"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// Contributes returns true if the shift can contribute roster access at all.
// Cancelled shifts never grant anything.
func (s *Shift) Contributes() bool {
	return s.Status != ShiftCancelled
}

// Overlaps returns true if the shift window [Start, End) intersects [from, to).
func (s *Shift) Overlaps(from, to time.Time) bool {
	return s.Start.Before(to) && s.End.After(from)
}

// ClockEventKind identifies a clock event type.
type ClockEventKind string

const (
	ClockIn     ClockEventKind = "clock_in"
	ClockOut    ClockEventKind = "clock_out"
	EarlyFinish ClockEventKind = "early_finish"
)

// Terminal reports whether the event kind closes a shift.
func (k ClockEventKind) Terminal() bool {
	return k == ClockOut || k == EarlyFinish
}

// ClockEvent is an immutable record of a staff member clocking in or out of a
// shift. PendingReason marks an early finish that was accepted without a
// reason and is awaiting one (or the grace timeout).
type ClockEvent struct {
	ID            string         `json:"id"`
	ShiftID       string         `json:"shift_id"`
	StaffID       string         `json:"staff_id"`
	Kind          ClockEventKind `json:"kind"`
	Timestamp     time.Time      `json:"timestamp"`
	Reason        string         `json:"reason,omitempty"`
	PendingReason bool           `json:"pending_reason,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

// ShiftClockState is the derived clock state of a single shift.
type ShiftClockState string

const (
	ShiftNotStarted    ShiftClockState = "not_started"
	ShiftClockedIn     ShiftClockState = "clocked_in"
	ShiftClockedOut    ShiftClockState = "clocked_out"
	ShiftEarlyFinished ShiftClockState = "early_finished"
)

// DeriveClockState folds a shift's event history into its current state.
func DeriveClockState(events []*ClockEvent) ShiftClockState {
	state := ShiftNotStarted
	for _, ev := range events {
		switch ev.Kind {
		case ClockIn:
			if state == ShiftNotStarted {
				state = ShiftClockedIn
			}
		case ClockOut:
			if state == ShiftClockedIn {
				state = ShiftClockedOut
			}
		case EarlyFinish:
			if state == ShiftClockedIn {
				state = ShiftEarlyFinished
			}
		}
	}
	return state
}
