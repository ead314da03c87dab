package engine

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// ClockSweeper performs the clock-side time-driven transitions for a window
// and reports which staff members were affected.
type ClockSweeper interface {
	Sweep(ctx context.Context, from, to time.Time) ([]string, error)
}

// Sweeper drives the time-based half of the engine: shift boundaries that
// pass with no external event still produce grant and revoke transitions,
// so overnight auto-revokes land even with no readers.
type Sweeper struct {
	engine   *Engine
	clock    ClockSweeper
	interval time.Duration
	lastTick time.Time
}

// NewSweeper creates a Sweeper ticking at the given interval.
func NewSweeper(engine *Engine, clock ClockSweeper, interval time.Duration) *Sweeper {
	return &Sweeper{
		engine:   engine,
		clock:    clock,
		interval: interval,
	}
}

// Run blocks, sweeping every interval until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.lastTick = s.engine.now()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Tick(ctx); err != nil {
				log.Error().Err(err).Msg("sweep failed")
			}
		}
	}
}

// Tick sweeps the window since the previous tick. Exported so tests and the
// server can drive sweeps deterministically.
func (s *Sweeper) Tick(ctx context.Context) error {
	started := time.Now()
	defer func() { sweepDuration.Observe(time.Since(started).Seconds()) }()

	now := s.engine.now()
	from := s.lastTick
	if from.IsZero() {
		from = now.Add(-s.interval)
	}
	s.lastTick = now

	impacted := map[string]bool{}

	// Clock-side transitions first: auto clock-outs and expired pending
	// reasons change the inputs the evaluations below read.
	staffIDs, err := s.clock.Sweep(ctx, from, now)
	if err != nil {
		return err
	}
	for _, id := range staffIDs {
		impacted[id] = true
	}

	cfg := s.engine.cfgs.Current()
	grace := cfg.GracePeriod()

	// Staff whose shifts started since the last tick.
	starting, err := s.engine.store.ShiftsStartingBetween(ctx, from, now)
	if err != nil {
		return err
	}
	for _, shift := range starting {
		impacted[shift.StaffID] = true
	}

	// Staff whose shifts (or their grace windows) ended since the last tick.
	ended, err := s.engine.store.ShiftsEndingBetween(ctx, from.Add(-grace), now)
	if err != nil {
		return err
	}
	for _, shift := range ended {
		impacted[shift.StaffID] = true
	}

	for staffID := range impacted {
		if err := s.engine.Reevaluate(ctx, staffID, "sweep"); err != nil {
			log.Warn().Err(err).Str("staff_id", staffID).Msg("sweep re-evaluation failed")
		}
	}
	if len(impacted) > 0 {
		log.Debug().Int("staff", len(impacted)).Msg("sweep complete")
	}

	// Drain audit entries that failed to append since the last tick.
	if flusher, ok := s.engine.auditor.(interface {
		FlushDeadletter(context.Context) int
	}); ok {
		flusher.FlushDeadletter(ctx)
	}
	return nil
}
