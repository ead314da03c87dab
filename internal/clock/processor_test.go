package clock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/careorg/rosteraccess/internal/notify"
	"github.com/careorg/rosteraccess/internal/storage"
	"github.com/careorg/rosteraccess/pkg/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubConfig struct {
	cfg models.RBACConfig
}

func (s *stubConfig) Current() models.RBACConfig { return s.cfg }

// recordingEvaluator captures re-evaluation triggers.
type recordingEvaluator struct {
	mu    sync.Mutex
	calls []string
}

func (r *recordingEvaluator) Reevaluate(_ context.Context, staffID, trigger string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, staffID+":"+trigger)
	return nil
}

type procFixture struct {
	proc  *Processor
	store *storage.MemoryBackend
	cfgs  *stubConfig
	eval  *recordingEvaluator
	now   time.Time
}

func newProcFixture(t *testing.T) *procFixture {
	t.Helper()
	f := &procFixture{
		store: storage.NewMemoryBackend(),
		cfgs:  &stubConfig{cfg: models.DefaultRBACConfig()},
		eval:  &recordingEvaluator{},
		now:   time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC),
	}
	f.proc = NewProcessor(f.store, f.cfgs, notify.NopHooks{})
	f.proc.SetEvaluator(f.eval)
	f.proc.SetClock(func() time.Time { return f.now })
	return f
}

func (f *procFixture) addShift(t *testing.T, start, end time.Time) *models.Shift {
	t.Helper()
	shift := &models.Shift{
		ID:         uuid.NewString(),
		StaffID:    "s1",
		PropertyID: "p1",
		Start:      start,
		End:        end,
		Status:     models.ShiftAssigned,
	}
	require.NoError(t, f.store.CreateShift(context.Background(), shift))
	return shift
}

func ts(h, m int) time.Time {
	return time.Date(2024, 3, 11, h, m, 0, 0, time.UTC)
}

func TestClockInThenOut(t *testing.T) {
	f := newProcFixture(t)
	shift := f.addShift(t, ts(9, 0), ts(17, 0))

	f.now = ts(9, 3)
	ev, err := f.proc.Record(context.Background(), "s1", shift.ID, models.ClockIn, "")
	require.NoError(t, err)
	assert.Equal(t, models.ClockIn, ev.Kind)
	assert.Equal(t, ts(9, 3), ev.Timestamp)

	f.now = ts(17, 0)
	ev, err = f.proc.Record(context.Background(), "s1", shift.ID, models.ClockOut, "")
	require.NoError(t, err)
	assert.Equal(t, models.ClockOut, ev.Kind)

	// Each accepted event triggered a synchronous re-evaluation.
	assert.Equal(t, []string{"s1:clock:clock_in", "s1:clock:clock_out"}, f.eval.calls)
}

func TestDuplicateClockInRejected(t *testing.T) {
	f := newProcFixture(t)
	shift := f.addShift(t, ts(9, 0), ts(17, 0))

	f.now = ts(9, 1)
	_, err := f.proc.Record(context.Background(), "s1", shift.ID, models.ClockIn, "")
	require.NoError(t, err)

	_, err = f.proc.Record(context.Background(), "s1", shift.ID, models.ClockIn, "")
	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)

	// The rejected event left no trace.
	events, err := f.store.ClockEventsForShift(context.Background(), shift.ID)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestClockOutWithoutClockInRejected(t *testing.T) {
	f := newProcFixture(t)
	shift := f.addShift(t, ts(9, 0), ts(17, 0))

	f.now = ts(10, 0)
	_, err := f.proc.Record(context.Background(), "s1", shift.ID, models.ClockOut, "")
	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Empty(t, f.eval.calls)
}

func TestDuplicateTerminalRejected(t *testing.T) {
	f := newProcFixture(t)
	shift := f.addShift(t, ts(9, 0), ts(17, 0))

	f.now = ts(9, 0)
	_, err := f.proc.Record(context.Background(), "s1", shift.ID, models.ClockIn, "")
	require.NoError(t, err)
	f.now = ts(16, 0)
	_, err = f.proc.Record(context.Background(), "s1", shift.ID, models.EarlyFinish, "client appointment ended")
	require.NoError(t, err)

	_, err = f.proc.Record(context.Background(), "s1", shift.ID, models.ClockOut, "")
	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestConcurrentTerminalEventsSerialized(t *testing.T) {
	f := newProcFixture(t)
	shift := f.addShift(t, ts(9, 0), ts(17, 0))

	f.now = ts(9, 0)
	_, err := f.proc.Record(context.Background(), "s1", shift.ID, models.ClockIn, "")
	require.NoError(t, err)

	// Two racing terminal events for one shift: exactly one may win.
	f.now = ts(16, 0)
	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.proc.Record(context.Background(), "s1", shift.ID, models.ClockOut, "")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var accepted, rejected int
	for err := range errs {
		if err == nil {
			accepted++
		} else {
			var verr *models.ValidationError
			require.ErrorAs(t, err, &verr)
			rejected++
		}
	}
	assert.Equal(t, 1, accepted)
	assert.Equal(t, 1, rejected)

	events, err := f.store.ClockEventsForShift(context.Background(), shift.ID)
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestLateClockInRejectedWhenRequired(t *testing.T) {
	f := newProcFixture(t)
	f.cfgs.cfg.RequireClockIn = true
	shift := f.addShift(t, ts(9, 0), ts(17, 0))

	f.now = ts(9, 20)
	_, err := f.proc.Record(context.Background(), "s1", shift.ID, models.ClockIn, "")
	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestWrongStaffRejected(t *testing.T) {
	f := newProcFixture(t)
	shift := f.addShift(t, ts(9, 0), ts(17, 0))

	f.now = ts(9, 0)
	_, err := f.proc.Record(context.Background(), "someone-else", shift.ID, models.ClockIn, "")
	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestUnknownShift(t *testing.T) {
	f := newProcFixture(t)
	_, err := f.proc.Record(context.Background(), "s1", "missing", models.ClockIn, "")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestEarlyFinishReasonPending(t *testing.T) {
	f := newProcFixture(t)
	shift := f.addShift(t, ts(9, 0), ts(17, 0))

	f.now = ts(9, 0)
	_, err := f.proc.Record(context.Background(), "s1", shift.ID, models.ClockIn, "")
	require.NoError(t, err)

	// Reason required but omitted: accepted with the pending flag while the
	// grace period runs.
	f.now = ts(16, 0)
	ev, err := f.proc.Record(context.Background(), "s1", shift.ID, models.EarlyFinish, "")
	require.NoError(t, err)
	assert.True(t, ev.PendingReason)

	// The reason arrives.
	require.NoError(t, f.proc.ResolveReason(context.Background(), shift.ID, "client went to hospital"))
	events, err := f.store.ClockEventsForShift(context.Background(), shift.ID)
	require.NoError(t, err)
	last := events[len(events)-1]
	assert.False(t, last.PendingReason)
	assert.Equal(t, "client went to hospital", last.Reason)

	// A second resolution has nothing to attach to.
	err = f.proc.ResolveReason(context.Background(), shift.ID, "again")
	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestEarlyFinishReasonRequiredWithoutGrace(t *testing.T) {
	f := newProcFixture(t)
	f.cfgs.cfg.EarlyFinishGracePeriodMinutes = 0
	shift := f.addShift(t, ts(9, 0), ts(17, 0))

	f.now = ts(9, 0)
	_, err := f.proc.Record(context.Background(), "s1", shift.ID, models.ClockIn, "")
	require.NoError(t, err)

	f.now = ts(16, 0)
	_, err = f.proc.Record(context.Background(), "s1", shift.ID, models.EarlyFinish, "")
	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestEarlyFinishDisabled(t *testing.T) {
	f := newProcFixture(t)
	f.cfgs.cfg.AllowEarlyFinish = false
	shift := f.addShift(t, ts(9, 0), ts(17, 0))

	f.now = ts(9, 0)
	_, err := f.proc.Record(context.Background(), "s1", shift.ID, models.ClockIn, "")
	require.NoError(t, err)

	f.now = ts(16, 0)
	_, err = f.proc.Record(context.Background(), "s1", shift.ID, models.EarlyFinish, "done")
	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestEarlyFinishAfterShiftEndRejected(t *testing.T) {
	f := newProcFixture(t)
	shift := f.addShift(t, ts(9, 0), ts(17, 0))

	f.now = ts(9, 0)
	_, err := f.proc.Record(context.Background(), "s1", shift.ID, models.ClockIn, "")
	require.NoError(t, err)

	f.now = ts(17, 30)
	_, err = f.proc.Record(context.Background(), "s1", shift.ID, models.EarlyFinish, "late")
	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestCancelledShiftRejectsEvents(t *testing.T) {
	f := newProcFixture(t)
	shift := f.addShift(t, ts(9, 0), ts(17, 0))
	require.NoError(t, f.store.UpdateShiftStatus(context.Background(), shift.ID, models.ShiftCancelled))

	f.now = ts(9, 0)
	_, err := f.proc.Record(context.Background(), "s1", shift.ID, models.ClockIn, "")
	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestSweepExpiresPendingReason(t *testing.T) {
	f := newProcFixture(t)
	shift := f.addShift(t, ts(9, 0), ts(17, 0))

	f.now = ts(9, 0)
	_, err := f.proc.Record(context.Background(), "s1", shift.ID, models.ClockIn, "")
	require.NoError(t, err)
	f.now = ts(16, 0)
	ev, err := f.proc.Record(context.Background(), "s1", shift.ID, models.EarlyFinish, "")
	require.NoError(t, err)
	require.True(t, ev.PendingReason)

	// Grace (15m) elapsed with no reason: the sweep stamps a placeholder.
	impacted, err := f.proc.Sweep(context.Background(), ts(16, 10), ts(16, 20))
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, impacted)

	events, err := f.store.ClockEventsForShift(context.Background(), shift.ID)
	require.NoError(t, err)
	last := events[len(events)-1]
	assert.False(t, last.PendingReason)
	assert.Equal(t, "unspecified", last.Reason)
}
