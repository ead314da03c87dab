package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/careorg/rosteraccess/pkg/models"
)

// MemoryBackend is an in-memory StorageBackend used by tests and by the
// server's dev mode. All methods are safe for concurrent use.
type MemoryBackend struct {
	mu         sync.RWMutex
	shifts     map[string]*models.Shift
	events     map[string][]*models.ClockEvent // shiftID → events, ts order
	eventsByID map[string]*models.ClockEvent
	grants     map[string]*models.AccessGrant
	staffRoles map[string]string
	properties []string
	audit      []*models.AuditEntry
	auditSeq   int64
}

// NewMemoryBackend returns an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		shifts:     map[string]*models.Shift{},
		events:     map[string][]*models.ClockEvent{},
		eventsByID: map[string]*models.ClockEvent{},
		grants:     map[string]*models.AccessGrant{},
		staffRoles: map[string]string{},
	}
}

// AddStaff registers a staff member with a role.
func (m *MemoryBackend) AddStaff(staffID, role string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.staffRoles[staffID] = role
}

// AddProperty registers a property in the catalog.
func (m *MemoryBackend) AddProperty(propertyID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.properties {
		if p == propertyID {
			return
		}
	}
	m.properties = append(m.properties, propertyID)
	sort.Strings(m.properties)
}

// --- Shifts ---

func (m *MemoryBackend) CreateShift(ctx context.Context, s *models.Shift) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.shifts[s.ID]; ok {
		return ErrAlreadyExists
	}
	cp := *s
	m.shifts[s.ID] = &cp
	return nil
}

func (m *MemoryBackend) GetShift(ctx context.Context, id string) (*models.Shift, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.shifts[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *MemoryBackend) UpdateShiftStatus(ctx context.Context, id string, status models.ShiftStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.shifts[id]
	if !ok {
		return ErrNotFound
	}
	s.Status = status
	s.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MemoryBackend) ShiftsForStaff(ctx context.Context, staffID string, from, to time.Time) ([]*models.Shift, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.Shift
	for _, s := range m.shifts {
		if s.StaffID == staffID && s.Overlaps(from, to) {
			cp := *s
			out = append(out, &cp)
		}
	}
	sortShiftsByStart(out)
	return out, nil
}

func (m *MemoryBackend) ShiftsStartingBetween(ctx context.Context, t0, t1 time.Time) ([]*models.Shift, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.Shift
	for _, s := range m.shifts {
		if s.Start.After(t0) && !s.Start.After(t1) {
			cp := *s
			out = append(out, &cp)
		}
	}
	sortShiftsByStart(out)
	return out, nil
}

func (m *MemoryBackend) ShiftsEndingBetween(ctx context.Context, t0, t1 time.Time) ([]*models.Shift, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.Shift
	for _, s := range m.shifts {
		if s.End.After(t0) && !s.End.After(t1) {
			cp := *s
			out = append(out, &cp)
		}
	}
	sortShiftsByStart(out)
	return out, nil
}

func sortShiftsByStart(shifts []*models.Shift) {
	sort.Slice(shifts, func(i, j int) bool {
		if shifts[i].Start.Equal(shifts[j].Start) {
			return shifts[i].ID < shifts[j].ID
		}
		return shifts[i].Start.Before(shifts[j].Start)
	})
}

// --- Clock events ---

func (m *MemoryBackend) WriteClockEvent(ctx context.Context, ev *models.ClockEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *ev
	m.events[ev.ShiftID] = append(m.events[ev.ShiftID], &cp)
	m.eventsByID[ev.ID] = &cp
	return nil
}

func (m *MemoryBackend) ClockEventsForShift(ctx context.Context, shiftID string) ([]*models.ClockEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	events := m.events[shiftID]
	out := make([]*models.ClockEvent, len(events))
	for i, ev := range events {
		cp := *ev
		out[i] = &cp
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (m *MemoryBackend) PendingReasonEvents(ctx context.Context, cutoff time.Time) ([]*models.ClockEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.ClockEvent
	for _, ev := range m.eventsByID {
		if ev.PendingReason && !ev.Timestamp.After(cutoff) {
			cp := *ev
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (m *MemoryBackend) TerminalEventsBetween(ctx context.Context, t0, t1 time.Time) ([]*models.ClockEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.ClockEvent
	for _, ev := range m.eventsByID {
		if ev.Kind.Terminal() && ev.Timestamp.After(t0) && !ev.Timestamp.After(t1) {
			cp := *ev
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (m *MemoryBackend) ResolveEventReason(ctx context.Context, eventID, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev, ok := m.eventsByID[eventID]
	if !ok || !ev.PendingReason {
		return ErrNotFound
	}
	ev.Reason = reason
	ev.PendingReason = false
	return nil
}

// --- Access grants ---

func (m *MemoryBackend) ActiveGrants(ctx context.Context, staffID string) ([]*models.AccessGrant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.AccessGrant
	for _, g := range m.grants {
		if g.StaffID == staffID && g.RevokedAt == nil {
			cp := *g
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ValidFrom.Equal(out[j].ValidFrom) {
			return out[i].ID > out[j].ID
		}
		return out[i].ValidFrom.After(out[j].ValidFrom)
	})
	return out, nil
}

func (m *MemoryBackend) CreateGrant(ctx context.Context, g *models.AccessGrant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.grants[g.ID]; ok {
		return ErrAlreadyExists
	}
	cp := *g
	m.grants[g.ID] = &cp
	return nil
}

func (m *MemoryBackend) RevokeGrant(ctx context.Context, grantID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.grants[grantID]
	if !ok || g.RevokedAt != nil {
		return ErrNotFound
	}
	g.RevokedAt = &at
	return nil
}

// --- Staff and catalog ---

func (m *MemoryBackend) GetStaffRole(ctx context.Context, staffID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	role, ok := m.staffRoles[staffID]
	if !ok {
		return "", ErrNotFound
	}
	return role, nil
}

func (m *MemoryBackend) ListProperties(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.properties))
	copy(out, m.properties)
	return out, nil
}

// --- Audit ---

func (m *MemoryBackend) WriteAuditEntry(ctx context.Context, entry *models.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.auditSeq++
	cp := *entry
	cp.ID = m.auditSeq
	m.audit = append(m.audit, &cp)
	return nil
}

func (m *MemoryBackend) QueryAuditLog(ctx context.Context, filter AuditFilter) ([]*models.AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.AuditEntry
	for _, e := range m.audit {
		if filter.StaffID != "" && e.StaffID != filter.StaffID {
			continue
		}
		if filter.From != nil && e.Timestamp.Before(*filter.From) {
			continue
		}
		if filter.To != nil && !e.Timestamp.Before(*filter.To) {
			continue
		}
		cp := *e
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].ID < out[j].ID
		}
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// --- Metrics ---

func (m *MemoryBackend) CountActiveGrants(ctx context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var count int64
	for _, g := range m.grants {
		if g.RevokedAt == nil {
			count++
		}
	}
	return count, nil
}

func (m *MemoryBackend) Close() {}
