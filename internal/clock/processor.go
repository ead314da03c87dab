package clock

import (
	"context"
	"time"

	"github.com/careorg/rosteraccess/internal/notify"
	"github.com/careorg/rosteraccess/internal/storage"
	"github.com/careorg/rosteraccess/pkg/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ConfigSource is the slice of the config holder the processor needs.
type ConfigSource interface {
	Current() models.RBACConfig
}

// Evaluator is notified after every accepted clock transition so grants can
// be reconciled synchronously.
type Evaluator interface {
	Reevaluate(ctx context.Context, staffID, trigger string) error
}

// Processor validates and sequences clock events per shift. The state
// machine is NotStarted → ClockedIn → {ClockedOut | EarlyFinished}; an early
// finish missing a required reason enters a pending sub-state until the
// reason arrives or the grace period elapses.
type Processor struct {
	store storage.StorageBackend
	cfgs  ConfigSource
	eval  Evaluator
	hooks notify.Hooks
	locks *shiftLocks
	now   func() time.Time
}

// NewProcessor creates a Processor. The evaluator may be set later via
// SetEvaluator when wiring order demands it.
func NewProcessor(store storage.StorageBackend, cfgs ConfigSource, hooks notify.Hooks) *Processor {
	return &Processor{
		store: store,
		cfgs:  cfgs,
		hooks: hooks,
		locks: newShiftLocks(),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// SetEvaluator wires the access engine in.
func (p *Processor) SetEvaluator(eval Evaluator) { p.eval = eval }

// SetClock overrides the time source. Tests only.
func (p *Processor) SetClock(now func() time.Time) { p.now = now }

// Record validates and persists a clock event for the given shift. It
// returns the stored event, or a *models.ValidationError when the event is
// malformed or out of sequence. Accepted events trigger a synchronous
// re-evaluation of the staff member's access.
func (p *Processor) Record(ctx context.Context, staffID, shiftID string, kind models.ClockEventKind, reason string) (*models.ClockEvent, error) {
	unlock := p.locks.acquire(shiftID)
	defer unlock()

	now := p.now()
	cfg := p.cfgs.Current()

	shift, err := p.store.GetShift(ctx, shiftID)
	if err != nil {
		return nil, err
	}
	if shift.StaffID != staffID {
		return nil, models.Validationf("shift %s is not assigned to staff %s", shiftID, staffID)
	}
	if shift.Status == models.ShiftCancelled {
		return nil, models.Validationf("shift %s is cancelled", shiftID)
	}

	events, err := p.store.ClockEventsForShift(ctx, shiftID)
	if err != nil {
		return nil, err
	}
	state := models.DeriveClockState(events)

	ev := &models.ClockEvent{
		ID:        uuid.NewString(),
		ShiftID:   shiftID,
		StaffID:   staffID,
		Kind:      kind,
		Timestamp: now,
		Reason:    reason,
		CreatedAt: now,
	}

	switch kind {
	case models.ClockIn:
		if state != models.ShiftNotStarted {
			return nil, models.Validationf("shift %s already has a clock-in", shiftID)
		}
		if !now.Before(shift.End) {
			return nil, models.Validationf("shift %s has already ended", shiftID)
		}
		if cfg.RequireClockIn && now.After(shift.Start.Add(cfg.ClockInGrace())) {
			return nil, models.Validationf("clock-in window for shift %s has elapsed", shiftID)
		}

	case models.ClockOut:
		if state == models.ShiftNotStarted {
			return nil, models.Validationf("clock-out for shift %s without a prior clock-in", shiftID)
		}
		if state != models.ShiftClockedIn {
			return nil, models.Validationf("shift %s is already closed", shiftID)
		}
		if !cfg.AllowManualClockOut {
			return nil, models.Validationf("manual clock-out is disabled")
		}

	case models.EarlyFinish:
		if !cfg.AllowEarlyFinish {
			return nil, models.Validationf("early finish is disabled")
		}
		if state == models.ShiftNotStarted {
			return nil, models.Validationf("early finish for shift %s without a prior clock-in", shiftID)
		}
		if state != models.ShiftClockedIn {
			return nil, models.Validationf("shift %s is already closed", shiftID)
		}
		if !now.Before(shift.End) {
			return nil, models.Validationf("shift %s has already ended, use clock-out", shiftID)
		}
		if cfg.RequireEarlyFinishReason && reason == "" {
			if cfg.GracePeriod() <= 0 {
				return nil, models.Validationf("early finish requires a reason")
			}
			ev.PendingReason = true
		}

	default:
		return nil, models.Validationf("unknown clock event kind %q", kind)
	}

	if err := p.store.WriteClockEvent(ctx, ev); err != nil {
		return nil, err
	}

	log.Info().
		Str("staff_id", staffID).
		Str("shift_id", shiftID).
		Str("kind", string(kind)).
		Bool("pending_reason", ev.PendingReason).
		Msg("clock event recorded")

	switch kind {
	case models.ClockIn:
		go p.hooks.OnClockIn(staffID, shiftID)
	case models.ClockOut:
		go p.hooks.OnClockOut(staffID, shiftID)
	case models.EarlyFinish:
		go p.hooks.OnEarlyFinish(staffID, shiftID, reason)
	}

	if p.eval != nil {
		if err := p.eval.Reevaluate(ctx, staffID, "clock:"+string(kind)); err != nil {
			log.Warn().Err(err).Str("staff_id", staffID).Msg("re-evaluation after clock event failed")
		}
	}
	return ev, nil
}

// ResolveReason supplies the missing reason for a pending early finish.
func (p *Processor) ResolveReason(ctx context.Context, shiftID, reason string) error {
	if reason == "" {
		return models.Validationf("reason must not be empty")
	}
	unlock := p.locks.acquire(shiftID)
	defer unlock()

	events, err := p.store.ClockEventsForShift(ctx, shiftID)
	if err != nil {
		return err
	}
	for _, ev := range events {
		if ev.Kind == models.EarlyFinish && ev.PendingReason {
			if err := p.store.ResolveEventReason(ctx, ev.ID, reason); err != nil {
				return err
			}
			if p.eval != nil {
				if err := p.eval.Reevaluate(ctx, ev.StaffID, "clock:reason"); err != nil {
					log.Warn().Err(err).Str("staff_id", ev.StaffID).Msg("re-evaluation after reason failed")
				}
			}
			return nil
		}
	}
	return models.Validationf("shift %s has no early finish awaiting a reason", shiftID)
}

// Sweep performs the time-driven clock transitions for the window (from, to]:
// synthesized clock-outs at shift end, terminal-event grace boundaries and
// pending-reason expiries. It returns the staff IDs whose access needs
// re-evaluation; the caller owns that step.
func (p *Processor) Sweep(ctx context.Context, from, to time.Time) ([]string, error) {
	cfg := p.cfgs.Current()
	impacted := map[string]bool{}

	if cfg.AutoClockOutAtShiftEnd {
		ended, err := p.store.ShiftsEndingBetween(ctx, from, to)
		if err != nil {
			return nil, err
		}
		for _, shift := range ended {
			if !shift.Contributes() {
				continue
			}
			written, err := p.autoClockOut(ctx, shift)
			if err != nil {
				return nil, err
			}
			if written {
				impacted[shift.StaffID] = true
			}
		}
	}

	// Access after a terminal event ends at timestamp+grace, which precedes
	// shift end on an early finish. Report staff whose grace boundary fell
	// inside this window so the revoke lands even with no readers.
	grace := cfg.GracePeriod()
	terminals, err := p.store.TerminalEventsBetween(ctx, from.Add(-grace), to.Add(-grace))
	if err != nil {
		return nil, err
	}
	for _, ev := range terminals {
		impacted[ev.StaffID] = true
	}

	// Pending early-finish reasons time out once the grace period elapses.
	cutoff := to.Add(-grace)
	pending, err := p.store.PendingReasonEvents(ctx, cutoff)
	if err != nil {
		return nil, err
	}
	for _, ev := range pending {
		if err := p.store.ResolveEventReason(ctx, ev.ID, "unspecified"); err != nil {
			log.Warn().Err(err).Str("event_id", ev.ID).Msg("resolving expired pending reason")
			continue
		}
		log.Info().Str("staff_id", ev.StaffID).Str("shift_id", ev.ShiftID).Msg("pending early-finish reason timed out")
		impacted[ev.StaffID] = true
	}

	out := make([]string, 0, len(impacted))
	for staffID := range impacted {
		out = append(out, staffID)
	}
	return out, nil
}

// autoClockOut synthesizes a clock-out at shift end if the shift is still
// open. Holds the shift lock across the state check and the write so a
// racing Record cannot close the shift in between.
func (p *Processor) autoClockOut(ctx context.Context, shift *models.Shift) (bool, error) {
	unlock := p.locks.acquire(shift.ID)
	defer unlock()

	events, err := p.store.ClockEventsForShift(ctx, shift.ID)
	if err != nil {
		return false, err
	}
	if models.DeriveClockState(events) != models.ShiftClockedIn {
		return false, nil
	}
	ev := &models.ClockEvent{
		ID:        uuid.NewString(),
		ShiftID:   shift.ID,
		StaffID:   shift.StaffID,
		Kind:      models.ClockOut,
		Timestamp: shift.End,
		Reason:    "auto clock-out at shift end",
		CreatedAt: p.now(),
	}
	if err := p.store.WriteClockEvent(ctx, ev); err != nil {
		return false, err
	}
	log.Info().Str("staff_id", shift.StaffID).Str("shift_id", shift.ID).Msg("auto clock-out")
	go p.hooks.OnClockOut(shift.StaffID, shift.ID)
	return true, nil
}
