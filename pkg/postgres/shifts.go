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

var shiftColumns = []string{
	"id", "title", "description", "location", "start_time", "end_time",
	"min_volunteers", "max_volunteers", "status", "created_by", "lead_volunteer", "created_at",
}

func scanShift(row pgx.Row) (model.Shift, error) {
	var s model.Shift
	var createdBy, lead *string
	err := row.Scan(
		&s.ID, &s.Title, &s.Description, &s.Location, &s.StartTime, &s.EndTime,
		&s.MinVolunteers, &s.MaxVolunteers, &s.Status, &createdBy, &lead, &s.CreatedAt,
	)
	s.CreatedBy = deref(createdBy)
	s.LeadVolunteer = deref(lead)
	return s, err
}

// GetShift retrieves a shift by ID
func (d *DB) GetShift(ctx context.Context, id string) (*model.Shift, error) {
	query, args, err := psql.Select(shiftColumns...).From("shifts").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build shift query: %w", err)
	}

	s, err := scanShift(d.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, db.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get shift: %w", err)
	}
	return &s, nil
}

// ListShiftsFrom returns shifts starting at or after from, ordered by start time
func (d *DB) ListShiftsFrom(ctx context.Context, from time.Time) ([]model.Shift, error) {
	query, args, err := psql.Select(shiftColumns...).
		From("shifts").
		Where(sq.GtOrEq{"start_time": from.UTC()}).
		OrderBy("start_time").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build shifts query: %w", err)
	}

	rows, err := d.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query shifts: %w", err)
	}
	defer rows.Close()

	var shifts []model.Shift
	for rows.Next() {
		s, err := scanShift(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan shift: %w", err)
		}
		shifts = append(shifts, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating shifts: %w", err)
	}

	return shifts, nil
}

// InsertShifts inserts shift records in a single statement
func (d *DB) InsertShifts(ctx context.Context, shifts []model.Shift) error {
	if len(shifts) == 0 {
		return nil
	}

	b := psql.Insert("shifts").Columns(shiftColumns...)
	for _, s := range shifts {
		b = b.Values(
			s.ID, s.Title, s.Description, s.Location, s.StartTime.UTC(), s.EndTime.UTC(),
			s.MinVolunteers, s.MaxVolunteers, s.Status, nullable(s.CreatedBy), nullable(s.LeadVolunteer), s.CreatedAt.UTC(),
		)
	}

	query, args, err := b.ToSql()
	if err != nil {
		return fmt.Errorf("failed to build shift insert: %w", err)
	}

	if _, err := d.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert shifts: %w", err)
	}
	return nil
}

// CountShiftsFrom counts shifts starting at or after from
func (d *DB) CountShiftsFrom(ctx context.Context, from time.Time, status model.ShiftStatus) (int, error) {
	pred := sq.And{sq.GtOrEq{"start_time": from.UTC()}}
	if status != "" {
		pred = append(pred, sq.Eq{"status": status})
	}
	return d.count(ctx, psql.Select("COUNT(*)").From("shifts").Where(pred))
}
