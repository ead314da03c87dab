package engine

import (
	"context"
	"errors"
	"time"

	"github.com/careorg/rosteraccess/internal/storage"
	"github.com/careorg/rosteraccess/pkg/models"
	"github.com/google/uuid"
)

// SetManualGrant installs a manual grant (or, with deny set, a manual deny
// override) for a staff member and property. Any existing manual grant for
// the same property is replaced. The change is applied synchronously: the
// evaluation runs before this call returns, so the next read reflects it.
func (e *Engine) SetManualGrant(ctx context.Context, staffID, propertyID string, clientIDs []string, grantedBy string, validUntil *time.Time, deny bool) (*models.AccessGrant, error) {
	cfg := e.cfgs.Current()
	if !cfg.AllowManualOverride {
		return nil, models.Validationf("manual overrides are disabled")
	}
	if grantedBy == "" {
		return nil, models.Validationf("grantedBy is required for a manual grant")
	}

	unlock := e.locks.acquire(staffID)
	defer unlock()
	now := e.now()

	if err := e.clearManualLocked(ctx, cfg, staffID, propertyID, grantedBy, now, true); err != nil {
		return nil, err
	}

	grant := &models.AccessGrant{
		ID:         uuid.NewString(),
		StaffID:    staffID,
		PropertyID: propertyID,
		ClientIDs:  clientIDs,
		ValidFrom:  now,
		ValidUntil: validUntil,
		Source:     models.SourceManual,
		GrantedBy:  grantedBy,
		Deny:       deny,
		CreatedAt:  now,
	}
	if err := e.store.CreateGrant(ctx, grant); err != nil {
		return nil, err
	}
	grantsCreatedTotal.Inc()

	action := models.ActionGrant
	reason := "manual grant"
	if deny {
		action = models.ActionOverride
		reason = "manual deny override"
	}
	e.audit(ctx, cfg, &models.AuditEntry{
		Timestamp:  now,
		StaffID:    staffID,
		Action:     action,
		PropertyID: propertyID,
		ClientIDs:  clientIDs,
		Reason:     reason,
		Actor:      grantedBy,
	})
	if !deny {
		go e.hooks.OnAccessGranted(staffID, propertyID)
	}

	// Apply the override's consequences (deny revoking roster grants,
	// allow surfacing on reads) before returning.
	if _, err := e.evaluate(ctx, staffID, now, "manual override"); err != nil {
		return grant, err
	}
	return grant, nil
}

// ClearManualGrant removes all manual grants (including deny overrides) for
// the staff member and property, then re-evaluates synchronously.
func (e *Engine) ClearManualGrant(ctx context.Context, staffID, propertyID, actor string) error {
	cfg := e.cfgs.Current()
	if !cfg.AllowManualOverride {
		return models.Validationf("manual overrides are disabled")
	}

	unlock := e.locks.acquire(staffID)
	defer unlock()
	now := e.now()

	if err := e.clearManualLocked(ctx, cfg, staffID, propertyID, actor, now, false); err != nil {
		return err
	}
	_, err := e.evaluate(ctx, staffID, now, "manual clear")
	return err
}

// clearManualLocked revokes active manual grants for the property. When
// replacing is true the revocations are silent; a clear is audited.
func (e *Engine) clearManualLocked(ctx context.Context, cfg models.RBACConfig, staffID, propertyID, actor string, now time.Time, replacing bool) error {
	grants, err := e.store.ActiveGrants(ctx, staffID)
	if err != nil {
		return err
	}
	cleared := false
	for _, g := range grants {
		if g.Source != models.SourceManual || g.PropertyID != propertyID {
			continue
		}
		if err := e.store.RevokeGrant(ctx, g.ID, now); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return err
		}
		grantsRevokedTotal.Inc()
		cleared = true
	}
	if cleared && !replacing {
		e.audit(ctx, cfg, &models.AuditEntry{
			Timestamp:  now,
			StaffID:    staffID,
			Action:     models.ActionRevoke,
			PropertyID: propertyID,
			Reason:     "manual grant cleared",
			Actor:      actor,
		})
		go e.hooks.OnAccessRevoked(staffID, propertyID)
	}
	return nil
}
