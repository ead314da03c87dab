package engine

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/careorg/rosteraccess/internal/notify"
	"github.com/careorg/rosteraccess/internal/policy"
	"github.com/careorg/rosteraccess/internal/storage"
	"github.com/careorg/rosteraccess/pkg/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ConfigSource is the slice of the config holder the engine needs.
type ConfigSource interface {
	Current() models.RBACConfig
}

// Auditor records access decisions. Append failures are deadlettered by the
// implementation for later reconciliation; the engine only logs them.
type Auditor interface {
	Append(ctx context.Context, entry *models.AuditEntry) error
}

// Engine reconciles shifts, clock events and manual overrides into the
// authoritative set of active access grants per staff member. All mutation
// of AccessGrant rows happens here.
type Engine struct {
	store    storage.StorageBackend
	resolver *policy.Resolver
	cfgs     ConfigSource
	auditor  Auditor
	hooks    notify.Hooks
	locks    *staffLocks
	now      func() time.Time

	// audited tracks one-shot audit entries (missed clock-in denials,
	// manual-deny suppressions) so idempotent re-evaluation stays quiet.
	// Keys expire after auditDedupTTL, keeping the set bounded.
	audited *onceSet
}

// auditDedupTTL outlives any single shift plus its grace window, so a
// denial or suppression is audited once while the condition holds.
const auditDedupTTL = 24 * time.Hour

// New creates an Engine.
func New(store storage.StorageBackend, resolver *policy.Resolver, cfgs ConfigSource, auditor Auditor, hooks notify.Hooks) *Engine {
	return &Engine{
		store:    store,
		resolver: resolver,
		cfgs:     cfgs,
		auditor:  auditor,
		hooks:    hooks,
		locks:    newStaffLocks(),
		now:      func() time.Time { return time.Now().UTC() },
		audited:  newOnceSet(auditDedupTTL),
	}
}

// SetClock overrides the time source. Tests only.
func (e *Engine) SetClock(now func() time.Time) { e.now = now }

// Reevaluate recomputes and persists the staff member's effective access.
// Safe to call from any trigger; evaluation is serialized per staff member
// and idempotent.
func (e *Engine) Reevaluate(ctx context.Context, staffID, trigger string) error {
	unlock := e.locks.acquire(staffID)
	defer unlock()
	_, err := e.evaluate(ctx, staffID, e.now(), trigger)
	return err
}

// ComputeEffectiveAccess evaluates the staff member's access at the given
// instant, persisting any grant transitions the evaluation implies.
func (e *Engine) ComputeEffectiveAccess(ctx context.Context, staffID string, now time.Time) ([]models.Access, error) {
	unlock := e.locks.acquire(staffID)
	defer unlock()
	return e.evaluate(ctx, staffID, now, "query")
}

// ShiftCancelled is invoked synchronously by the roster store. The revoke it
// implies is applied before this call returns.
func (e *Engine) ShiftCancelled(ctx context.Context, shift *models.Shift) error {
	return e.Reevaluate(ctx, shift.StaffID, "shift cancelled")
}

// rosterEntry accumulates the desired roster-derived access for a property.
type rosterEntry struct {
	clientIDs []string
}

func (e *Engine) evaluate(ctx context.Context, staffID string, now time.Time, trigger string) ([]models.Access, error) {
	cfg := e.cfgs.Current()
	evaluationsTotal.WithLabelValues(trigger).Inc()

	role, err := e.store.GetStaffRole(ctx, staffID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// Unknown staff: deny by default.
			return nil, nil
		}
		return nil, err
	}

	if !cfg.Enabled {
		// Engine disabled: the roster places no restrictions at all.
		return e.universalAccess(ctx, now)
	}

	class := e.resolver.Classify(role, cfg)
	if class == policy.Excluded {
		return e.universalAccess(ctx, now)
	}

	grants, err := e.store.ActiveGrants(ctx, staffID)
	if err != nil {
		return nil, err
	}

	// Manual allow grants need no bookkeeping here; assemble picks them up
	// from the re-read. Only denies and roster rows drive reconciliation.
	manualDenies := map[string]*models.AccessGrant{}
	rosterActive := map[string]*models.AccessGrant{}
	var staleRoster []*models.AccessGrant
	for _, g := range grants {
		switch {
		case g.Source == models.SourceManual && g.Deny && g.ActiveAt(now):
			manualDenies[g.PropertyID] = g
		case g.Source == models.SourceRoster && g.ActiveAt(now):
			rosterActive[g.PropertyID] = g
		case g.Source == models.SourceRoster:
			// Expired window on a roster grant: treat as no longer active.
			staleRoster = append(staleRoster, g)
		}
	}

	desired := map[string]*rosterEntry{}
	if class == policy.Gated && cfg.AutoGrantAccess {
		// A shift can only be active at now if it started by now and its
		// latest possible end boundary (end + grace) is still ahead.
		shifts, err := e.store.ShiftsForStaff(ctx, staffID, now.Add(-cfg.GracePeriod()), now.Add(time.Second))
		if err != nil {
			return nil, err
		}
		for _, shift := range shifts {
			if !shift.Contributes() {
				continue
			}
			events, err := e.store.ClockEventsForShift(ctx, shift.ID)
			if err != nil {
				return nil, err
			}
			active, missed := shiftActiveAt(shift, events, cfg, now)
			if missed && e.audited.first("deny:"+shift.ID, now) {
				e.audit(ctx, cfg, &models.AuditEntry{
					Timestamp:  now,
					StaffID:    staffID,
					Action:     models.ActionDeny,
					PropertyID: shift.PropertyID,
					Reason:     "no clock-in recorded before grace period elapsed",
				})
			}
			if !active {
				continue
			}
			entry := desired[shift.PropertyID]
			if entry == nil {
				entry = &rosterEntry{}
				desired[shift.PropertyID] = entry
			}
			entry.clientIDs = mergeClients(entry.clientIDs, shift.ClientIDs)
		}
	}

	if err := e.reconcile(ctx, cfg, staffID, now, desired, rosterActive, staleRoster, manualDenies); err != nil {
		return nil, err
	}

	return e.assemble(ctx, staffID, now, cfg, manualDenies)
}

// reconcile persists the delta between the previously computed roster state
// and the desired one. No-op re-evaluation writes nothing and audits nothing.
func (e *Engine) reconcile(ctx context.Context, cfg models.RBACConfig, staffID string, now time.Time,
	desired map[string]*rosterEntry, rosterActive map[string]*models.AccessGrant,
	staleRoster []*models.AccessGrant, manualDenies map[string]*models.AccessGrant) error {

	// Roster grants whose validity window lapsed are closed out regardless
	// of AutoRevokeAccess; their window already ended.
	for _, g := range staleRoster {
		if err := e.revokeGrant(ctx, cfg, g, now, "grant window expired"); err != nil {
			return err
		}
	}

	for propertyID, g := range rosterActive {
		if deny, ok := manualDenies[propertyID]; ok {
			reason := "manual deny override by " + deny.GrantedBy
			if err := e.revokeGrant(ctx, cfg, g, now, reason); err != nil {
				return err
			}
			e.audit(ctx, cfg, &models.AuditEntry{
				Timestamp:  now,
				StaffID:    staffID,
				Action:     models.ActionOverride,
				PropertyID: propertyID,
				Reason:     reason,
				Actor:      deny.GrantedBy,
			})
			continue
		}
		want, ok := desired[propertyID]
		if !ok {
			if cfg.AutoRevokeAccess {
				if err := e.revokeGrant(ctx, cfg, g, now, "no active shift covers property"); err != nil {
					return err
				}
			}
			continue
		}
		if !sameClients(g.ClientIDs, want.clientIDs) {
			// Client assignments changed: replace the grant.
			if err := e.store.RevokeGrant(ctx, g.ID, now); err != nil && !errors.Is(err, storage.ErrNotFound) {
				return err
			}
			if err := e.createRosterGrant(ctx, cfg, staffID, propertyID, want.clientIDs, now, "client assignments updated"); err != nil {
				return err
			}
		}
	}

	for propertyID, want := range desired {
		if deny, ok := manualDenies[propertyID]; ok {
			if e.audited.first("override:"+staffID+"|"+propertyID+"|"+deny.ID, now) {
				e.audit(ctx, cfg, &models.AuditEntry{
					Timestamp:  now,
					StaffID:    staffID,
					Action:     models.ActionOverride,
					PropertyID: propertyID,
					Reason:     "manual deny suppresses roster grant",
					Actor:      deny.GrantedBy,
				})
			}
			continue
		}
		if _, ok := rosterActive[propertyID]; ok {
			continue
		}
		if err := e.createRosterGrant(ctx, cfg, staffID, propertyID, want.clientIDs, now, "active shift covers property"); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) createRosterGrant(ctx context.Context, cfg models.RBACConfig, staffID, propertyID string, clientIDs []string, now time.Time, reason string) error {
	grant := &models.AccessGrant{
		ID:         uuid.NewString(),
		StaffID:    staffID,
		PropertyID: propertyID,
		ClientIDs:  clientIDs,
		ValidFrom:  now,
		Source:     models.SourceRoster,
		CreatedAt:  now,
	}
	if err := e.store.CreateGrant(ctx, grant); err != nil {
		return err
	}
	grantsCreatedTotal.Inc()
	e.audit(ctx, cfg, &models.AuditEntry{
		Timestamp:  now,
		StaffID:    staffID,
		Action:     models.ActionGrant,
		PropertyID: propertyID,
		ClientIDs:  clientIDs,
		Reason:     reason,
	})
	go e.hooks.OnAccessGranted(staffID, propertyID)
	log.Debug().Str("staff_id", staffID).Str("property_id", propertyID).Msg("roster grant created")
	return nil
}

func (e *Engine) revokeGrant(ctx context.Context, cfg models.RBACConfig, g *models.AccessGrant, now time.Time, reason string) error {
	if err := e.store.RevokeGrant(ctx, g.ID, now); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return err
	}
	grantsRevokedTotal.Inc()
	e.audit(ctx, cfg, &models.AuditEntry{
		Timestamp:  now,
		StaffID:    g.StaffID,
		Action:     models.ActionRevoke,
		PropertyID: g.PropertyID,
		ClientIDs:  g.ClientIDs,
		Reason:     reason,
	})
	go e.hooks.OnAccessRevoked(g.StaffID, g.PropertyID)
	log.Debug().Str("staff_id", g.StaffID).Str("property_id", g.PropertyID).Str("reason", reason).Msg("grant revoked")
	return nil
}

// assemble re-reads the grant rows and projects the effective access set,
// most recently granted first.
func (e *Engine) assemble(ctx context.Context, staffID string, now time.Time, cfg models.RBACConfig, manualDenies map[string]*models.AccessGrant) ([]models.Access, error) {
	grants, err := e.store.ActiveGrants(ctx, staffID)
	if err != nil {
		return nil, err
	}
	var result []models.Access
	seen := map[string]bool{}
	for _, g := range grants {
		if g.Deny || !g.ActiveAt(now) {
			continue
		}
		if _, denied := manualDenies[g.PropertyID]; denied {
			continue
		}
		if seen[g.PropertyID] {
			continue
		}
		seen[g.PropertyID] = true
		result = append(result, models.Access{
			PropertyID: g.PropertyID,
			ClientIDs:  g.ClientIDs,
			GrantedAt:  g.ValidFrom,
			Source:     g.Source,
		})
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].GrantedAt.After(result[j].GrantedAt)
	})
	return result, nil
}

// universalAccess expands the full property catalog for excluded roles.
// No grant rows are written and nothing is audited.
func (e *Engine) universalAccess(ctx context.Context, now time.Time) ([]models.Access, error) {
	properties, err := e.store.ListProperties(ctx)
	if err != nil {
		return nil, err
	}
	result := make([]models.Access, 0, len(properties))
	for _, propertyID := range properties {
		result = append(result, models.Access{
			PropertyID: propertyID,
			GrantedAt:  now,
			Source:     models.SourceRoster,
		})
	}
	return result, nil
}

func (e *Engine) audit(ctx context.Context, cfg models.RBACConfig, entry *models.AuditEntry) {
	if !cfg.AuditLogging {
		return
	}
	if err := e.auditor.Append(ctx, entry); err != nil {
		log.Warn().Err(err).Str("staff_id", entry.StaffID).Msg("audit append degraded")
	}
}

// shiftActiveAt decides whether a single shift contributes access at now.
// The second return flags a missed clock-in that should be audited as a
// denial. Boundary rule: the earliest applicable end boundary wins.
func shiftActiveAt(shift *models.Shift, events []*models.ClockEvent, cfg models.RBACConfig, now time.Time) (bool, bool) {
	grace := cfg.GracePeriod()

	var clockIn, terminal *models.ClockEvent
	for _, ev := range events {
		if ev.Kind == models.ClockIn && clockIn == nil {
			clockIn = ev
		}
		if ev.Kind.Terminal() && terminal == nil {
			terminal = ev
		}
	}

	var start time.Time
	if cfg.RequireClockIn {
		if clockIn == nil {
			missed := now.After(shift.Start.Add(cfg.ClockInGrace())) && now.Before(shift.End)
			return false, missed
		}
		start = clockIn.Timestamp
	} else {
		start = shift.Start
	}
	if now.Before(start) {
		return false, false
	}

	var end time.Time
	if terminal != nil {
		end = terminal.Timestamp.Add(grace)
	}
	if cfg.AutoClockOutAtShiftEnd {
		end = earliest(end, shift.End)
	} else if terminal == nil {
		end = earliest(end, shift.End.Add(grace))
	}
	return now.Before(end), false
}

func earliest(a, b time.Time) time.Time {
	if a.IsZero() || b.Before(a) {
		return b
	}
	return a
}

func mergeClients(existing, extra []string) []string {
	seen := map[string]bool{}
	for _, c := range existing {
		seen[c] = true
	}
	for _, c := range extra {
		if !seen[c] {
			seen[c] = true
			existing = append(existing, c)
		}
	}
	return existing
}

func sameClients(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := map[string]bool{}
	for _, c := range a {
		set[c] = true
	}
	for _, c := range b {
		if !set[c] {
			return false
		}
	}
	return true
}
