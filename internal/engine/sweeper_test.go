package engine

import (
	"context"
	"testing"
	"time"

	"github.com/careorg/rosteraccess/internal/clock"
	"github.com/careorg/rosteraccess/internal/notify"
	"github.com/careorg/rosteraccess/pkg/models"
)

func TestSweepRevokesAfterShiftEnd(t *testing.T) {
	f := newFixture(t)
	f.store.AddStaff("s1", "Support Worker")
	shift := f.addShift(t, "s1", "p1", nil, at(9, 0), at(17, 0))

	proc := clock.NewProcessor(f.store, f.cfgs, notify.NopHooks{})
	proc.SetClock(func() time.Time { return f.now })
	sweeper := NewSweeper(f.engine, proc, time.Minute)

	f.now = at(10, 0)
	if got := f.access(t, "s1"); len(got) != 1 {
		t.Fatalf("expected access during shift, got %v", got)
	}

	// Nobody clocks anything; the sweep past shift end closes it out.
	sweeper.lastTick = at(16, 55)
	f.now = at(17, 5)
	if err := sweeper.Tick(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}

	count, err := f.store.CountActiveGrants(context.Background())
	if err != nil {
		t.Fatalf("count grants: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected sweep to revoke the grant, got %d active", count)
	}

	// The sweep also synthesized the shift-end clock-out for the open shift.
	events, err := f.store.ClockEventsForShift(context.Background(), shift.ID)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	// No clock-in was ever recorded, so no auto clock-out either.
	if len(events) != 0 {
		t.Fatalf("expected no synthesized events without a clock-in, got %d", len(events))
	}
}

func TestSweepRevokesAtEarlyFinishGraceBoundary(t *testing.T) {
	f := newFixture(t)
	f.cfgs.cfg.EarlyFinishGracePeriodMinutes = 30
	f.store.AddStaff("s1", "Support Worker")
	shift := f.addShift(t, "s1", "p1", nil, at(9, 0), at(17, 0))
	f.clockEvent(t, shift, models.ClockIn, at(9, 0))

	proc := clock.NewProcessor(f.store, f.cfgs, notify.NopHooks{})
	proc.SetClock(func() time.Time { return f.now })
	sweeper := NewSweeper(f.engine, proc, time.Minute)

	f.now = at(10, 0)
	if got := f.access(t, "s1"); len(got) != 1 {
		t.Fatalf("expected access during shift, got %v", got)
	}

	// Early finish at 16:00 with a reason: access ends at 16:30, well
	// before shift end. No reader touches this staff member afterwards.
	f.now = at(16, 0)
	if _, err := proc.Record(context.Background(), "s1", shift.ID, models.EarlyFinish, "client admitted to hospital"); err != nil {
		t.Fatalf("early finish: %v", err)
	}

	// The tick covering the 16:30 boundary must close the grant out.
	sweeper.lastTick = at(16, 25)
	f.now = at(16, 31)
	if err := sweeper.Tick(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}

	count, err := f.store.CountActiveGrants(context.Background())
	if err != nil {
		t.Fatalf("count grants: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected sweep to revoke at the grace boundary, got %d active", count)
	}
}

func TestSweepAutoClockOut(t *testing.T) {
	f := newFixture(t)
	f.store.AddStaff("s1", "Support Worker")
	shift := f.addShift(t, "s1", "p1", nil, at(9, 0), at(17, 0))
	f.clockEvent(t, shift, models.ClockIn, at(9, 0))

	proc := clock.NewProcessor(f.store, f.cfgs, notify.NopHooks{})
	proc.SetClock(func() time.Time { return f.now })
	sweeper := NewSweeper(f.engine, proc, time.Minute)

	f.now = at(10, 0)
	if got := f.access(t, "s1"); len(got) != 1 {
		t.Fatalf("expected access during shift, got %v", got)
	}

	sweeper.lastTick = at(16, 55)
	f.now = at(17, 5)
	if err := sweeper.Tick(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}

	events, err := f.store.ClockEventsForShift(context.Background(), shift.ID)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected clock-in plus auto clock-out, got %d events", len(events))
	}
	out := events[1]
	if out.Kind != models.ClockOut || !out.Timestamp.Equal(at(17, 0)) {
		t.Fatalf("expected auto clock-out at shift end, got %+v", out)
	}

	count, _ := f.store.CountActiveGrants(context.Background())
	if count != 0 {
		t.Fatalf("expected grant revoked after auto clock-out, got %d active", count)
	}
}
