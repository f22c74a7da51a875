package store

import (
	"context"
	"fmt"
	"time"

	"github.com/grantline/vestd/internal/fixed"
)

// InsertTenant inserts a tenant row.
func (s *Store) InsertTenant(ctx context.Context, t Tenant) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tenants (id, name, created_at) VALUES (?, ?, ?)
	`, t.ID, t.Name, time.Now().UTC().Format(time.RFC3339))
	return wrapWriteError("insert tenant", err)
}

// InsertEmployee inserts an employee row.
func (s *Store) InsertEmployee(ctx context.Context, e Employee) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO employees (id, tenant_id, name, created_at) VALUES (?, ?, ?, ?)
	`, e.ID, e.TenantID, e.Name, time.Now().UTC().Format(time.RFC3339))
	return wrapWriteError("insert employee", err)
}

// InsertGrant inserts a grant row at version 1 with nothing vested.
// Grant creation belongs to external onboarding; this exists for the seed
// path and tests.
func (s *Store) InsertGrant(ctx context.Context, g Grant) error {
	status := g.Status
	if status == "" {
		status = StatusActive
	}
	vested := g.Vested
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO grants
		(id, tenant_id, employee_id, grant_date, total_amount, vested_amount, status, version, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?)
	`, g.ID, g.TenantID, g.EmployeeID, g.GrantDate, g.Total, vested, status, time.Now().UTC().Format(time.RFC3339))
	return wrapWriteError("insert grant", err)
}

// InsertPriceSnapshot appends one entry to a tenant's price history.
func (s *Store) InsertPriceSnapshot(ctx context.Context, p PriceSnapshot) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO price_snapshots (tenant_id, effective_date, price) VALUES (?, ?, ?)
	`, p.TenantID, p.EffectiveDate, p.Price)
	return wrapWriteError("insert price snapshot", err)
}

// SoftDeleteGrant marks a grant deleted. The row is never physically
// removed; reads treat it as absent.
func (s *Store) SoftDeleteGrant(ctx context.Context, grantID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE grants SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL
	`, time.Now().UTC().Format(time.RFC3339), grantID)
	return wrapWriteError("soft delete grant", err)
}

// SetGrantStatus updates a grant's lifecycle status. Owned by external
// workflows; exists for the seed path and tests.
func (s *Store) SetGrantStatus(ctx context.Context, grantID string, status GrantStatus) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE grants SET status = ? WHERE id = ?
	`, status, grantID)
	return wrapWriteError("set grant status", err)
}

// ApplyTranche atomically records one vesting event and advances the
// grant's running total under optimistic concurrency.
//
// One transaction: insert the event, then a conditional
// UPDATE ... SET vested_amount = ?, version = version + 1
// WHERE version = expectVersion. If the condition matches no row the whole
// transaction rolls back (the event insert included) and ErrVersionConflict
// is returned: another writer advanced the grant and the caller's schedule
// data is stale. A uniqueness violation on (grant_id, vest_date) rolls back
// likewise and surfaces as *ConstraintError.
func (s *Store) ApplyTranche(ctx context.Context, ev VestingEvent, newVested fixed.Amount, expectVersion int64) error {
	if !ev.Shares.IsPositive() {
		return fmt.Errorf("apply tranche: shares must be positive, got %s", ev.Shares)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("apply tranche: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	var pps any
	if ev.PPS != nil {
		pps = ev.PPS.String()
	}
	createdAt := ev.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO vesting_events
		(id, grant_id, tenant_id, vest_date, shares_vested, pps, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, ev.ID, ev.GrantID, ev.TenantID, ev.VestDate, ev.Shares, pps, createdAt.UnixNano())
	if err != nil {
		return wrapWriteError("apply tranche: insert event", err)
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE grants
		SET vested_amount = ?, version = version + 1
		WHERE id = ? AND version = ? AND deleted_at IS NULL
	`, newVested, ev.GrantID, expectVersion)
	if err != nil {
		return wrapWriteError("apply tranche: update grant", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("apply tranche: rows affected: %w", err)
	}
	if affected == 0 {
		// Version moved under us. Rollback discards the event insert too;
		// the loser recomputes from a fresh read rather than retrying blind.
		return fmt.Errorf("apply tranche for grant %s at version %d: %w", ev.GrantID, expectVersion, ErrVersionConflict)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("apply tranche: commit: %w", err)
	}
	return nil
}

// RepairGrant collapses duplicate (grant, vest date) groups for one grant
// and recomputes its running total from first principles, in a single
// transaction.
//
// For each duplicated date the earliest event by (created_at, id) survives
// and the rest are deleted. vested_amount is then recomputed as the exact
// sum over the surviving events - a full recompute, not an increment,
// because the stored running total may itself be the corrupted quantity.
// Returns the number of groups collapsed and events deleted.
func (s *Store) RepairGrant(ctx context.Context, grantID string) (groupsFixed, eventsDeleted int, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("repair grant: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	// Duplicated dates for this grant only.
	rows, err := tx.QueryContext(ctx, `
		SELECT vest_date
		FROM vesting_events
		WHERE grant_id = ?
		GROUP BY vest_date
		HAVING COUNT(*) > 1
		ORDER BY vest_date ASC
	`, grantID)
	if err != nil {
		return 0, 0, fmt.Errorf("repair grant: find duplicates: %w", err)
	}
	var dupDates []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			rows.Close()
			return 0, 0, fmt.Errorf("repair grant: scan date: %w", err)
		}
		dupDates = append(dupDates, d)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, 0, fmt.Errorf("repair grant: iterate dates: %w", err)
	}
	rows.Close()

	for _, d := range dupDates {
		result, err := tx.ExecContext(ctx, `
			DELETE FROM vesting_events
			WHERE grant_id = ? AND vest_date = ?
			AND id != (
				SELECT id FROM vesting_events
				WHERE grant_id = ? AND vest_date = ?
				ORDER BY created_at ASC, id ASC
				LIMIT 1
			)
		`, grantID, d, grantID, d)
		if err != nil {
			return 0, 0, wrapWriteError("repair grant: delete duplicates", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return 0, 0, fmt.Errorf("repair grant: rows affected: %w", err)
		}
		eventsDeleted += int(n)
		groupsFixed++
	}

	// Recompute the running total over the survivors. Summed in Go: SQL
	// SUM() over TEXT would go through floats.
	sumRows, err := tx.QueryContext(ctx, `
		SELECT shares_vested FROM vesting_events WHERE grant_id = ?
	`, grantID)
	if err != nil {
		return 0, 0, fmt.Errorf("repair grant: read survivors: %w", err)
	}
	total := fixed.Zero
	for sumRows.Next() {
		var shares fixed.Amount
		if err := sumRows.Scan(&shares); err != nil {
			sumRows.Close()
			return 0, 0, fmt.Errorf("repair grant: scan shares: %w", err)
		}
		total = total.Add(shares)
	}
	if err := sumRows.Err(); err != nil {
		sumRows.Close()
		return 0, 0, fmt.Errorf("repair grant: iterate survivors: %w", err)
	}
	sumRows.Close()

	var version int64
	if err := tx.QueryRowContext(ctx, `
		SELECT version FROM grants WHERE id = ?
	`, grantID).Scan(&version); err != nil {
		return 0, 0, fmt.Errorf("repair grant: read version: %w", err)
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE grants
		SET vested_amount = ?, version = version + 1
		WHERE id = ? AND version = ?
	`, total, grantID, version)
	if err != nil {
		return 0, 0, wrapWriteError("repair grant: update grant", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, 0, fmt.Errorf("repair grant: rows affected: %w", err)
	}
	if affected == 0 {
		return 0, 0, fmt.Errorf("repair grant %s: %w", grantID, ErrVersionConflict)
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("repair grant: commit: %w", err)
	}
	return groupsFixed, eventsDeleted, nil
}

// InsertRawEvent inserts an event row without touching the grant. This is
// the corruption-injection path used by reconciler tests and the scenario
// harness; the engine never calls it.
func (s *Store) InsertRawEvent(ctx context.Context, ev VestingEvent) error {
	var pps any
	if ev.PPS != nil {
		pps = ev.PPS.String()
	}
	createdAt := ev.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO vesting_events
		(id, grant_id, tenant_id, vest_date, shares_vested, pps, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, ev.ID, ev.GrantID, ev.TenantID, ev.VestDate, ev.Shares, pps, createdAt.UnixNano())
	return wrapWriteError("insert raw event", err)
}

// DropUniqueEventIndex removes the v1 idempotency index, recreating the
// pre-v1 legacy layout in which duplicate events were possible. Used by
// tests and the harness to stage corruption scenarios.
func (s *Store) DropUniqueEventIndex(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DROP INDEX IF EXISTS idx_events_grant_date_unique`)
	if err != nil {
		return fmt.Errorf("drop unique event index: %w", err)
	}
	return nil
}
