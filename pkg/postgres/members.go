package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/woodshed-orlando/kinkos/pkg/core/model"
	"github.com/woodshed-orlando/kinkos/pkg/db"
)

var memberColumns = []string{
	"id", "auth_id", "email", "display_name", "legal_name", "pronouns", "phone",
	"avatar_url", "bio", "role", "status", "member_since",
	"emergency_contact_name", "emergency_contact_phone", "emergency_contact_relationship",
	"show_in_contacts", "show_phone", "show_email", "created_at", "updated_at",
}

func scanMember(row pgx.Row) (model.Member, error) {
	var m model.Member
	var authID *string
	err := row.Scan(
		&m.ID, &authID, &m.Email, &m.DisplayName, &m.LegalName, &m.Pronouns, &m.Phone,
		&m.AvatarURL, &m.Bio, &m.Role, &m.Status, &m.MemberSince,
		&m.EmergencyContactName, &m.EmergencyContactPhone, &m.EmergencyContactRelationship,
		&m.ShowInContacts, &m.ShowPhone, &m.ShowEmail, &m.CreatedAt, &m.UpdatedAt,
	)
	m.AuthID = deref(authID)
	return m, err
}

func (d *DB) queryMembers(ctx context.Context, b sq.SelectBuilder) ([]model.Member, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build members query: %w", err)
	}

	rows, err := d.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query members: %w", err)
	}
	defer rows.Close()

	var members []model.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating members: %w", err)
	}

	return members, nil
}

func (d *DB) getMemberWhere(ctx context.Context, pred sq.Eq) (*model.Member, error) {
	query, args, err := psql.Select(memberColumns...).From("members").Where(pred).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build member query: %w", err)
	}

	m, err := scanMember(d.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, db.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get member: %w", err)
	}
	return &m, nil
}

// GetMember retrieves a member by ID
func (d *DB) GetMember(ctx context.Context, id string) (*model.Member, error) {
	return d.getMemberWhere(ctx, sq.Eq{"id": id})
}

// GetMemberByAuthID retrieves a member by the identity provider's subject
func (d *DB) GetMemberByAuthID(ctx context.Context, authID string) (*model.Member, error) {
	return d.getMemberWhere(ctx, sq.Eq{"auth_id": authID})
}

// InsertMember inserts a new member record
func (d *DB) InsertMember(ctx context.Context, m *model.Member) error {
	query, args, err := psql.Insert("members").Columns(memberColumns...).Values(
		m.ID, nullable(m.AuthID), m.Email, m.DisplayName, m.LegalName, m.Pronouns, m.Phone,
		m.AvatarURL, m.Bio, m.Role, m.Status, m.MemberSince,
		m.EmergencyContactName, m.EmergencyContactPhone, m.EmergencyContactRelationship,
		m.ShowInContacts, m.ShowPhone, m.ShowEmail, m.CreatedAt, m.UpdatedAt,
	).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build member insert: %w", err)
	}

	if _, err := d.pool.Exec(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("member %s: %w", m.ID, db.ErrConflict)
		}
		return fmt.Errorf("failed to insert member: %w", err)
	}
	return nil
}

// escapeLike escapes LIKE wildcards so user input matches literally
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func searchMembersQuery(query string, limit int) sq.SelectBuilder {
	b := psql.Select(memberColumns...).From("members").OrderBy("display_name")
	if q := strings.TrimSpace(query); q != "" {
		pattern := "%" + escapeLike(q) + "%"
		b = b.Where(sq.Or{
			sq.ILike{"display_name": pattern},
			sq.ILike{"legal_name": pattern},
			sq.ILike{"email": pattern},
		})
	}
	if limit > 0 {
		b = b.Limit(uint64(limit))
	}
	return b
}

// SearchMembers matches display name, legal name or email case-insensitively
func (d *DB) SearchMembers(ctx context.Context, query string, limit int) ([]model.Member, error) {
	return d.queryMembers(ctx, searchMembersQuery(query, limit))
}

// ListContacts returns active members who opted into the directory
func (d *DB) ListContacts(ctx context.Context) ([]model.Member, error) {
	return d.queryMembers(ctx, psql.Select(memberColumns...).
		From("members").
		Where(sq.And{
			sq.Eq{"status": model.StatusActive},
			sq.Eq{"show_in_contacts": true},
		}).
		OrderBy("display_name"))
}

// ListMembersByIDs returns the members that exist among ids
func (d *DB) ListMembersByIDs(ctx context.Context, ids []string) ([]model.Member, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return d.queryMembers(ctx, psql.Select(memberColumns...).
		From("members").
		Where(sq.Eq{"id": ids}).
		OrderBy("display_name"))
}

func (d *DB) updateMember(ctx context.Context, b sq.UpdateBuilder) (int64, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build member update: %w", err)
	}

	tag, err := d.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to update member: %w", err)
	}
	return tag.RowsAffected(), nil
}

// UpdateMemberProfile overwrites the member-editable fields
func (d *DB) UpdateMemberProfile(ctx context.Context, id string, u model.ProfileUpdate, at time.Time) error {
	n, err := d.updateMember(ctx, psql.Update("members").
		SetMap(map[string]any{
			"display_name":                   u.DisplayName,
			"legal_name":                     u.LegalName,
			"pronouns":                       u.Pronouns,
			"phone":                          u.Phone,
			"bio":                            u.Bio,
			"emergency_contact_name":         u.EmergencyContactName,
			"emergency_contact_phone":        u.EmergencyContactPhone,
			"emergency_contact_relationship": u.EmergencyContactRelationship,
			"show_in_contacts":               u.ShowInContacts,
			"show_phone":                     u.ShowPhone,
			"show_email":                     u.ShowEmail,
			"updated_at":                     at.UTC(),
		}).
		Where(sq.Eq{"id": id}))
	if err != nil {
		return err
	}
	if n == 0 {
		return db.ErrNotFound
	}
	return nil
}

// SetMemberRole changes a member's role
func (d *DB) SetMemberRole(ctx context.Context, id string, role model.Role, at time.Time) error {
	n, err := d.updateMember(ctx, psql.Update("members").
		Set("role", role).
		Set("updated_at", at.UTC()).
		Where(sq.Eq{"id": id}))
	if err != nil {
		return err
	}
	if n == 0 {
		return db.ErrNotFound
	}
	return nil
}

func updateStatusQuery(id string, from, to model.Status, at time.Time) sq.UpdateBuilder {
	b := psql.Update("members").
		Set("status", to).
		Set("updated_at", at.UTC()).
		Where(sq.And{
			sq.Eq{"id": id},
			sq.Eq{"status": from},
		})
	if to == model.StatusActive {
		b = b.Set("member_since", sq.Expr("COALESCE(member_since, ?)", at.UTC()))
	}
	return b
}

// UpdateMemberStatus moves a member between statuses if it is still in from
func (d *DB) UpdateMemberStatus(ctx context.Context, id string, from, to model.Status, at time.Time) (bool, error) {
	n, err := d.updateMember(ctx, updateStatusQuery(id, from, to, at))
	if err != nil {
		return false, err
	}
	if n > 0 {
		return true, nil
	}

	// Distinguish a missing member from one that already moved on
	if _, err := d.GetMember(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

// CountMembers counts members, optionally restricted to one status
func (d *DB) CountMembers(ctx context.Context, status model.Status) (int, error) {
	b := psql.Select("COUNT(*)").From("members")
	if status != "" {
		b = b.Where(sq.Eq{"status": status})
	}
	return d.count(ctx, b)
}

func (d *DB) count(ctx context.Context, b sq.SelectBuilder) (int, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build count query: %w", err)
	}

	var n int
	if err := d.pool.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count: %w", err)
	}
	return n, nil
}
