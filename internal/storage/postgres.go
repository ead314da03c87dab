package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/careorg/rosteraccess/pkg/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresBackend is a StorageBackend backed by PostgreSQL.
type PostgresBackend struct {
	pool *pgxpool.Pool
}

// NewPostgresBackend opens a pgxpool connection and returns a ready backend.
func NewPostgresBackend(ctx context.Context, connStr string) (*PostgresBackend, error) {
	cfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parsing postgres config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return &PostgresBackend{pool: pool}, nil
}

func (p *PostgresBackend) Close() {
	p.pool.Close()
}

// --- Shifts ---

func (p *PostgresBackend) CreateShift(ctx context.Context, s *models.Shift) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO shifts (id, staff_id, property_id, client_ids, start_at, end_at, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)`,
		s.ID, s.StaffID, s.PropertyID, s.ClientIDs, s.Start, s.End, s.Status, s.CreatedAt,
	)
	return err
}

func (p *PostgresBackend) GetShift(ctx context.Context, id string) (*models.Shift, error) {
	row := p.pool.QueryRow(ctx,
		`SELECT id, staff_id, property_id, client_ids, start_at, end_at, status, created_at, updated_at
		 FROM shifts WHERE id = $1`,
		id,
	)
	return scanShift(row)
}

func (p *PostgresBackend) UpdateShiftStatus(ctx context.Context, id string, status models.ShiftStatus) error {
	tag, err := p.pool.Exec(ctx,
		`UPDATE shifts SET status = $1, updated_at = NOW() WHERE id = $2`,
		status, id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresBackend) ShiftsForStaff(ctx context.Context, staffID string, from, to time.Time) ([]*models.Shift, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, staff_id, property_id, client_ids, start_at, end_at, status, created_at, updated_at
		 FROM shifts
		 WHERE staff_id = $1 AND start_at < $3 AND end_at > $2
		 ORDER BY start_at`,
		staffID, from, to,
	)
	if err != nil {
		return nil, err
	}
	return collectShifts(rows)
}

func (p *PostgresBackend) ShiftsStartingBetween(ctx context.Context, t0, t1 time.Time) ([]*models.Shift, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, staff_id, property_id, client_ids, start_at, end_at, status, created_at, updated_at
		 FROM shifts WHERE start_at > $1 AND start_at <= $2 ORDER BY start_at`,
		t0, t1,
	)
	if err != nil {
		return nil, err
	}
	return collectShifts(rows)
}

func (p *PostgresBackend) ShiftsEndingBetween(ctx context.Context, t0, t1 time.Time) ([]*models.Shift, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, staff_id, property_id, client_ids, start_at, end_at, status, created_at, updated_at
		 FROM shifts WHERE end_at > $1 AND end_at <= $2 ORDER BY end_at`,
		t0, t1,
	)
	if err != nil {
		return nil, err
	}
	return collectShifts(rows)
}

func scanShift(row pgx.Row) (*models.Shift, error) {
	var s models.Shift
	err := row.Scan(&s.ID, &s.StaffID, &s.PropertyID, &s.ClientIDs, &s.Start, &s.End,
		&s.Status, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

func collectShifts(rows pgx.Rows) ([]*models.Shift, error) {
	defer rows.Close()
	var shifts []*models.Shift
	for rows.Next() {
		s, err := scanShift(rows)
		if err != nil {
			return nil, err
		}
		shifts = append(shifts, s)
	}
	return shifts, rows.Err()
}

// --- Clock events ---

func (p *PostgresBackend) WriteClockEvent(ctx context.Context, ev *models.ClockEvent) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO clock_events (id, shift_id, staff_id, kind, ts, reason, pending_reason, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		ev.ID, ev.ShiftID, ev.StaffID, ev.Kind, ev.Timestamp, ev.Reason, ev.PendingReason, ev.CreatedAt,
	)
	return err
}

func (p *PostgresBackend) ClockEventsForShift(ctx context.Context, shiftID string) ([]*models.ClockEvent, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, shift_id, staff_id, kind, ts, reason, pending_reason, created_at
		 FROM clock_events WHERE shift_id = $1 ORDER BY ts, created_at`,
		shiftID,
	)
	if err != nil {
		return nil, err
	}
	return collectClockEvents(rows)
}

func (p *PostgresBackend) PendingReasonEvents(ctx context.Context, cutoff time.Time) ([]*models.ClockEvent, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, shift_id, staff_id, kind, ts, reason, pending_reason, created_at
		 FROM clock_events WHERE pending_reason AND ts <= $1 ORDER BY ts`,
		cutoff,
	)
	if err != nil {
		return nil, err
	}
	return collectClockEvents(rows)
}

func (p *PostgresBackend) TerminalEventsBetween(ctx context.Context, t0, t1 time.Time) ([]*models.ClockEvent, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, shift_id, staff_id, kind, ts, reason, pending_reason, created_at
		 FROM clock_events WHERE kind IN ('clock_out', 'early_finish') AND ts > $1 AND ts <= $2 ORDER BY ts`,
		t0, t1,
	)
	if err != nil {
		return nil, err
	}
	return collectClockEvents(rows)
}

func (p *PostgresBackend) ResolveEventReason(ctx context.Context, eventID, reason string) error {
	tag, err := p.pool.Exec(ctx,
		`UPDATE clock_events SET reason = $1, pending_reason = FALSE
		 WHERE id = $2 AND pending_reason`,
		reason, eventID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func collectClockEvents(rows pgx.Rows) ([]*models.ClockEvent, error) {
	defer rows.Close()
	var events []*models.ClockEvent
	for rows.Next() {
		var ev models.ClockEvent
		if err := rows.Scan(&ev.ID, &ev.ShiftID, &ev.StaffID, &ev.Kind, &ev.Timestamp,
			&ev.Reason, &ev.PendingReason, &ev.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, &ev)
	}
	return events, rows.Err()
}

// --- Access grants ---

func (p *PostgresBackend) ActiveGrants(ctx context.Context, staffID string) ([]*models.AccessGrant, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, staff_id, property_id, client_ids, valid_from, valid_until, source, granted_by, deny, revoked_at, created_at
		 FROM access_grants
		 WHERE staff_id = $1 AND revoked_at IS NULL
		 ORDER BY valid_from DESC, created_at DESC`,
		staffID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var grants []*models.AccessGrant
	for rows.Next() {
		var g models.AccessGrant
		if err := rows.Scan(&g.ID, &g.StaffID, &g.PropertyID, &g.ClientIDs, &g.ValidFrom,
			&g.ValidUntil, &g.Source, &g.GrantedBy, &g.Deny, &g.RevokedAt, &g.CreatedAt); err != nil {
			return nil, err
		}
		grants = append(grants, &g)
	}
	return grants, rows.Err()
}

func (p *PostgresBackend) CreateGrant(ctx context.Context, g *models.AccessGrant) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO access_grants (id, staff_id, property_id, client_ids, valid_from, valid_until, source, granted_by, deny, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		g.ID, g.StaffID, g.PropertyID, g.ClientIDs, g.ValidFrom, g.ValidUntil,
		g.Source, g.GrantedBy, g.Deny, g.CreatedAt,
	)
	return err
}

func (p *PostgresBackend) RevokeGrant(ctx context.Context, grantID string, at time.Time) error {
	tag, err := p.pool.Exec(ctx,
		`UPDATE access_grants SET revoked_at = $1 WHERE id = $2 AND revoked_at IS NULL`,
		at, grantID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Staff and catalog ---

func (p *PostgresBackend) GetStaffRole(ctx context.Context, staffID string) (string, error) {
	var role string
	err := p.pool.QueryRow(ctx, `SELECT role FROM staff WHERE id = $1`, staffID).Scan(&role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	return role, nil
}

func (p *PostgresBackend) ListProperties(ctx context.Context) ([]string, error) {
	rows, err := p.pool.Query(ctx, `SELECT id FROM properties ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// --- Audit ---

func (p *PostgresBackend) WriteAuditEntry(ctx context.Context, entry *models.AuditEntry) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO audit_log (ts, staff_id, action, property_id, client_ids, reason, actor)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.Timestamp, entry.StaffID, entry.Action, entry.PropertyID,
		entry.ClientIDs, entry.Reason, entry.Actor,
	)
	return err
}

func (p *PostgresBackend) QueryAuditLog(ctx context.Context, filter AuditFilter) ([]*models.AuditEntry, error) {
	query := strings.Builder{}
	query.WriteString(`SELECT id, ts, staff_id, action, property_id, client_ids, reason, actor FROM audit_log WHERE 1=1`)
	args := []any{}
	n := 1
	if filter.StaffID != "" {
		fmt.Fprintf(&query, ` AND staff_id = $%d`, n)
		args = append(args, filter.StaffID)
		n++
	}
	if filter.From != nil {
		fmt.Fprintf(&query, ` AND ts >= $%d`, n)
		args = append(args, filter.From)
		n++
	}
	if filter.To != nil {
		fmt.Fprintf(&query, ` AND ts < $%d`, n)
		args = append(args, filter.To)
		n++
	}
	query.WriteString(` ORDER BY ts ASC, id ASC`)
	if filter.Limit > 0 {
		fmt.Fprintf(&query, ` LIMIT $%d`, n)
		args = append(args, filter.Limit)
		n++
	}
	if filter.Offset > 0 {
		fmt.Fprintf(&query, ` OFFSET $%d`, n)
		args = append(args, filter.Offset)
	}

	rows, err := p.pool.Query(ctx, query.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*models.AuditEntry
	for rows.Next() {
		var e models.AuditEntry
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.StaffID, &e.Action, &e.PropertyID,
			&e.ClientIDs, &e.Reason, &e.Actor); err != nil {
			return nil, err
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// --- Metrics ---

func (p *PostgresBackend) CountActiveGrants(ctx context.Context) (int64, error) {
	var count int64
	err := p.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM access_grants WHERE revoked_at IS NULL`,
	).Scan(&count)
	return count, err
}
