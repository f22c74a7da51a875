package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/grantline/vestd/internal/date"
	"github.com/grantline/vestd/internal/fixed"
)

// GetGrant retrieves a grant by ID. Soft-deleted grants are invisible:
// returns ErrGrantNotFound for missing and deleted rows alike.
func (s *Store) GetGrant(ctx context.Context, id string) (Grant, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, employee_id, grant_date, total_amount, vested_amount, status, version
		FROM grants
		WHERE id = ? AND deleted_at IS NULL
	`, id)

	var g Grant
	err := row.Scan(&g.ID, &g.TenantID, &g.EmployeeID, &g.GrantDate, &g.Total, &g.Vested, &g.Status, &g.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return Grant{}, fmt.Errorf("grant %s: %w", id, ErrGrantNotFound)
	}
	if err != nil {
		return Grant{}, fmt.Errorf("get grant %s: %w", id, err)
	}
	return g, nil
}

// ListActiveGrantIDs returns the IDs of all active, non-deleted grants in
// deterministic order. This is the batch materialization work list.
func (s *Store) ListActiveGrantIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM grants
		WHERE status = ? AND deleted_at IS NULL
		ORDER BY id
	`, StatusActive)
	if err != nil {
		return nil, fmt.Errorf("list active grants: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan grant id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate grant ids: %w", err)
	}
	return ids, nil
}

// VestedDates returns the set of vest dates already recorded for a grant.
// The materializer excludes these from its candidates, making re-runs
// idempotent.
func (s *Store) VestedDates(ctx context.Context, grantID string) (map[date.Date]bool, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT vest_date FROM vesting_events WHERE grant_id = ?
	`, grantID)
	if err != nil {
		return nil, fmt.Errorf("vested dates for %s: %w", grantID, err)
	}
	defer rows.Close()

	dates := make(map[date.Date]bool)
	for rows.Next() {
		var d date.Date
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scan vest date: %w", err)
		}
		dates[d] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate vest dates: %w", err)
	}
	return dates, nil
}

// ListGrantEvents returns all events for a grant with deterministic
// ordering (vest date, then ID). Returns an empty slice, not nil, when the
// grant has no events.
func (s *Store) ListGrantEvents(ctx context.Context, grantID string) ([]VestingEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, grant_id, tenant_id, vest_date, shares_vested, pps, created_at
		FROM vesting_events
		WHERE grant_id = ?
		ORDER BY vest_date ASC, id ASC
	`, grantID)
	if err != nil {
		return nil, fmt.Errorf("list events for %s: %w", grantID, err)
	}
	defer rows.Close()

	events := []VestingEvent{}
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// scanEvent scans one vesting event row.
func scanEvent(rows *sql.Rows) (VestingEvent, error) {
	var (
		ev        VestingEvent
		pps       sql.NullString
		createdNs int64
	)
	if err := rows.Scan(&ev.ID, &ev.GrantID, &ev.TenantID, &ev.VestDate, &ev.Shares, &pps, &createdNs); err != nil {
		return VestingEvent{}, fmt.Errorf("scan event: %w", err)
	}
	if pps.Valid {
		p, err := fixed.Parse(pps.String)
		if err != nil {
			return VestingEvent{}, fmt.Errorf("scan event pps: %w", err)
		}
		ev.PPS = &p
	}
	ev.CreatedAt = time.Unix(0, createdNs).UTC()
	return ev, nil
}

// LatestPriceOn returns the price from the most recent snapshot whose
// effective date is on or before d. Returns ErrNoPrice when the tenant has
// no history that early; callers store a NULL snapshot in that case.
func (s *Store) LatestPriceOn(ctx context.Context, tenantID string, d date.Date) (fixed.Amount, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT price FROM price_snapshots
		WHERE tenant_id = ? AND effective_date <= ?
		ORDER BY effective_date DESC, id DESC
		LIMIT 1
	`, tenantID, d)

	var price fixed.Amount
	err := row.Scan(&price)
	if errors.Is(err, sql.ErrNoRows) {
		return fixed.Zero, ErrNoPrice
	}
	if err != nil {
		return fixed.Zero, fmt.Errorf("latest price for %s on %s: %w", tenantID, d, err)
	}
	return price, nil
}

// FindDuplicateGroups scans the whole ledger for (grant, vest date) pairs
// holding more than one event. Ordered by grant then date so repair runs
// are deterministic.
func (s *Store) FindDuplicateGroups(ctx context.Context) ([]DuplicateGroup, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT grant_id, vest_date, COUNT(*) AS n
		FROM vesting_events
		GROUP BY grant_id, vest_date
		HAVING n > 1
		ORDER BY grant_id ASC, vest_date ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("find duplicate groups: %w", err)
	}
	defer rows.Close()

	groups := []DuplicateGroup{}
	for rows.Next() {
		var g DuplicateGroup
		if err := rows.Scan(&g.GrantID, &g.VestDate, &g.Count); err != nil {
			return nil, fmt.Errorf("scan duplicate group: %w", err)
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate duplicate groups: %w", err)
	}
	return groups, nil
}
