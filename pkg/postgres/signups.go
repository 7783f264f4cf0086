package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/woodshed-orlando/kinkos/pkg/core/model"
	"github.com/woodshed-orlando/kinkos/pkg/db"
)

var signupColumns = []string{"id", "shift_id", "member_id", "signed_up_at", "cancelled_at", "notes"}

func (d *DB) querySignups(ctx context.Context, pred sq.Sqlizer) ([]model.ShiftSignup, error) {
	query, args, err := psql.Select(signupColumns...).
		From("shift_signups").
		Where(pred).
		OrderBy("signed_up_at").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build signups query: %w", err)
	}

	rows, err := d.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query signups: %w", err)
	}
	defer rows.Close()

	var signups []model.ShiftSignup
	for rows.Next() {
		var s model.ShiftSignup
		if err := rows.Scan(&s.ID, &s.ShiftID, &s.MemberID, &s.SignedUpAt, &s.CancelledAt, &s.Notes); err != nil {
			return nil, fmt.Errorf("failed to scan signup: %w", err)
		}
		signups = append(signups, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating signups: %w", err)
	}

	return signups, nil
}

// ListShiftSignups returns every signup for a shift, cancelled ones included
func (d *DB) ListShiftSignups(ctx context.Context, shiftID string) ([]model.ShiftSignup, error) {
	return d.querySignups(ctx, sq.Eq{"shift_id": shiftID})
}

// ListSignupsForShifts returns every signup for the given shifts
func (d *DB) ListSignupsForShifts(ctx context.Context, shiftIDs []string) ([]model.ShiftSignup, error) {
	if len(shiftIDs) == 0 {
		return nil, nil
	}
	return d.querySignups(ctx, sq.Eq{"shift_id": shiftIDs})
}

// ListMemberSignups returns every signup a member has made
func (d *DB) ListMemberSignups(ctx context.Context, memberID string) ([]model.ShiftSignup, error) {
	return d.querySignups(ctx, sq.Eq{"member_id": memberID})
}

// InsertSignup locks the shift row, then re-checks capacity and duplication
// before inserting. The partial unique index backs up the duplicate check.
func (d *DB) InsertSignup(ctx context.Context, signup *model.ShiftSignup) error {
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin signup transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var capacity int
	err = tx.QueryRow(ctx, `
		SELECT max_volunteers FROM shifts WHERE id = $1 FOR UPDATE
	`, signup.ShiftID).Scan(&capacity)
	if errors.Is(err, pgx.ErrNoRows) {
		return db.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to lock shift: %w", err)
	}

	var active int
	var alreadySignedUp bool
	err = tx.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(BOOL_OR(member_id = $2), FALSE)
		FROM shift_signups
		WHERE shift_id = $1 AND cancelled_at IS NULL
	`, signup.ShiftID, signup.MemberID).Scan(&active, &alreadySignedUp)
	if err != nil {
		return fmt.Errorf("failed to count signups: %w", err)
	}

	if active >= capacity {
		return db.ErrCapacityReached
	}
	if alreadySignedUp {
		return db.ErrConflict
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO shift_signups (id, shift_id, member_id, signed_up_at, notes)
		VALUES ($1, $2, $3, $4, $5)
	`, signup.ID, signup.ShiftID, signup.MemberID, signup.SignedUpAt.UTC(), signup.Notes)
	if err != nil {
		if isUniqueViolation(err) {
			return db.ErrConflict
		}
		return fmt.Errorf("failed to insert signup: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit signup: %w", err)
	}
	return nil
}

// CancelSignup soft-deletes an active signup
func (d *DB) CancelSignup(ctx context.Context, signupID string, at time.Time) error {
	tag, err := d.pool.Exec(ctx, `
		UPDATE shift_signups SET cancelled_at = $2
		WHERE id = $1 AND cancelled_at IS NULL
	`, signupID, at.UTC())
	if err != nil {
		return fmt.Errorf("failed to cancel signup: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return db.ErrNotFound
	}
	return nil
}
