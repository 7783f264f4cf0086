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

var waiverColumns = []string{
	"id", "member_id", "initials", "signature", "signed_date", "valid_until",
	"bylaws_agreed", "liability_release_agreed", "dungeon_rules_agreed", "code_of_conduct_agreed",
}

func scanWaiver(row pgx.Row) (model.Waiver, error) {
	var w model.Waiver
	err := row.Scan(
		&w.ID, &w.MemberID, &w.Initials, &w.Signature, &w.SignedDate, &w.ValidUntil,
		&w.BylawsAgreed, &w.LiabilityReleaseAgreed, &w.DungeonRulesAgreed, &w.CodeOfConductAgreed,
	)
	return w, err
}

// latestWaiversQuery selects each member's most recent waiver
func latestWaiversQuery() sq.SelectBuilder {
	return psql.Select(waiverColumns...).
		Options("DISTINCT ON (member_id)").
		From("waivers").
		OrderBy("member_id", "signed_date DESC")
}

// InsertWaiver inserts a waiver record
func (d *DB) InsertWaiver(ctx context.Context, w *model.Waiver) error {
	query, args, err := psql.Insert("waivers").Columns(waiverColumns...).Values(
		w.ID, w.MemberID, w.Initials, w.Signature, w.SignedDate.UTC(), w.ValidUntil.UTC(),
		w.BylawsAgreed, w.LiabilityReleaseAgreed, w.DungeonRulesAgreed, w.CodeOfConductAgreed,
	).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build waiver insert: %w", err)
	}

	if _, err := d.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert waiver: %w", err)
	}
	return nil
}

// LatestWaiver returns the member's most recently signed waiver
func (d *DB) LatestWaiver(ctx context.Context, memberID string) (*model.Waiver, error) {
	query, args, err := psql.Select(waiverColumns...).
		From("waivers").
		Where(sq.Eq{"member_id": memberID}).
		OrderBy("signed_date DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build waiver query: %w", err)
	}

	w, err := scanWaiver(d.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, db.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest waiver: %w", err)
	}
	return &w, nil
}

func (d *DB) queryWaivers(ctx context.Context, b sq.SelectBuilder) ([]model.Waiver, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build waivers query: %w", err)
	}

	rows, err := d.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query waivers: %w", err)
	}
	defer rows.Close()

	var waivers []model.Waiver
	for rows.Next() {
		w, err := scanWaiver(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan waiver: %w", err)
		}
		waivers = append(waivers, w)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating waivers: %w", err)
	}

	return waivers, nil
}

// LatestWaivers returns the latest waiver per member for the given members
func (d *DB) LatestWaivers(ctx context.Context, memberIDs []string) (map[string]model.Waiver, error) {
	out := make(map[string]model.Waiver)
	if len(memberIDs) == 0 {
		return out, nil
	}

	waivers, err := d.queryWaivers(ctx, latestWaiversQuery().Where(sq.Eq{"member_id": memberIDs}))
	if err != nil {
		return nil, err
	}
	for _, w := range waivers {
		out[w.MemberID] = w
	}
	return out, nil
}

// ListLatestWaiversExpiring returns latest waivers whose validity ends in [from, to]
func (d *DB) ListLatestWaiversExpiring(ctx context.Context, from, to time.Time) ([]model.Waiver, error) {
	latest := latestWaiversQuery()
	return d.queryWaivers(ctx, psql.Select(waiverColumns...).
		FromSelect(latest, "latest").
		Where(sq.And{
			sq.GtOrEq{"valid_until": from.UTC()},
			sq.LtOrEq{"valid_until": to.UTC()},
		}).
		OrderBy("valid_until"))
}
