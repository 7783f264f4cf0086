package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/woodshed-orlando/kinkos/pkg/core/model"
	"github.com/woodshed-orlando/kinkos/pkg/db"
)

// occupancyLockKey serialises capacity-counting check-ins across connections
const occupancyLockKey = 0x6b696e6b

const checkInColumns = `id, member_id, check_in_type, checked_in_by, counts_toward_capacity,
	check_in_time, check_out_time, checked_out_by`

func scanCheckIn(row pgx.Row) (model.CheckIn, error) {
	var c model.CheckIn
	var checkedInBy, checkedOutBy *string
	err := row.Scan(
		&c.ID, &c.MemberID, &c.CheckInType, &checkedInBy, &c.CountsTowardCapacity,
		&c.CheckInTime, &c.CheckOutTime, &checkedOutBy,
	)
	c.CheckedInBy = deref(checkedInBy)
	c.CheckedOutBy = deref(checkedOutBy)
	return c, err
}

// InsertCheckIn takes a transaction-scoped advisory lock so concurrent
// check-ins see each other's rows, then inserts only while under the ceiling.
func (d *DB) InsertCheckIn(ctx context.Context, c *model.CheckIn, maxOccupancy int) error {
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin check-in transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, occupancyLockKey); err != nil {
		return fmt.Errorf("failed to lock occupancy: %w", err)
	}

	tag, err := tx.Exec(ctx, `
		INSERT INTO check_ins (id, member_id, check_in_type, checked_in_by, counts_toward_capacity, check_in_time)
		SELECT $1, $2, $3, $4, $5, $6
		WHERE NOT $5::boolean OR (
			SELECT COUNT(*) FROM check_ins
			WHERE check_out_time IS NULL AND counts_toward_capacity
		) < $7
	`, c.ID, c.MemberID, c.CheckInType, nullable(c.CheckedInBy), c.CountsTowardCapacity, c.CheckInTime.UTC(), maxOccupancy)
	if err != nil {
		if isUniqueViolation(err) {
			return db.ErrConflict
		}
		return fmt.Errorf("failed to insert check-in: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return db.ErrCapacityReached
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit check-in: %w", err)
	}
	return nil
}

// CloseCheckIn stamps the checkout time on an open check-in
func (d *DB) CloseCheckIn(ctx context.Context, checkInID, checkedOutBy string, at time.Time) (*model.CheckIn, error) {
	c, err := scanCheckIn(d.pool.QueryRow(ctx, `
		UPDATE check_ins SET check_out_time = $2, checked_out_by = $3
		WHERE id = $1 AND check_out_time IS NULL
		RETURNING `+checkInColumns,
		checkInID, at.UTC(), nullable(checkedOutBy)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, db.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to close check-in: %w", err)
	}
	return &c, nil
}

// CountOccupancy counts open check-ins that count toward capacity
func (d *DB) CountOccupancy(ctx context.Context) (int, error) {
	var n int
	err := d.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM check_ins
		WHERE check_out_time IS NULL AND counts_toward_capacity
	`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count occupancy: %w", err)
	}
	return n, nil
}

// ListActiveCheckIns returns open check-ins, newest first
func (d *DB) ListActiveCheckIns(ctx context.Context) ([]model.CheckIn, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT `+checkInColumns+`
		FROM check_ins
		WHERE check_out_time IS NULL
		ORDER BY check_in_time DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query active check-ins: %w", err)
	}
	defer rows.Close()

	var checkIns []model.CheckIn
	for rows.Next() {
		c, err := scanCheckIn(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan check-in: %w", err)
		}
		checkIns = append(checkIns, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating check-ins: %w", err)
	}

	return checkIns, nil
}
