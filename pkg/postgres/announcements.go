package postgres

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/woodshed-orlando/kinkos/pkg/core/model"
	"github.com/woodshed-orlando/kinkos/pkg/db"
)

func rolesToStrings(roles []model.Role) []string {
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = string(r)
	}
	return out
}

func stringsToRoles(ss []string) []model.Role {
	if len(ss) == 0 {
		return nil
	}
	out := make([]model.Role, len(ss))
	for i, s := range ss {
		out[i] = model.Role(s)
	}
	return out
}

// InsertAnnouncement inserts an announcement record
func (d *DB) InsertAnnouncement(ctx context.Context, a *model.Announcement) error {
	_, err := d.pool.Exec(ctx, `
		INSERT INTO announcements (id, title, content, priority, is_published, publish_at, expires_at, target_roles, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, a.ID, a.Title, a.Content, a.Priority, a.IsPublished, a.PublishAt.UTC(), a.ExpiresAt,
		rolesToStrings(a.TargetRoles), nullable(a.CreatedBy), a.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert announcement: %w", err)
	}
	return nil
}

func visibleAnnouncementsQuery(now time.Time) sq.SelectBuilder {
	return psql.Select(
		"id", "title", "content", "priority", "is_published", "publish_at",
		"expires_at", "target_roles", "created_by", "created_at",
	).
		From("announcements").
		Where(sq.And{
			sq.Eq{"is_published": true},
			sq.LtOrEq{"publish_at": now.UTC()},
			sq.Or{
				sq.Eq{"expires_at": nil},
				sq.Gt{"expires_at": now.UTC()},
			},
		}).
		OrderBy("created_at DESC")
}

// ListVisibleAnnouncements returns announcements inside their publication window
func (d *DB) ListVisibleAnnouncements(ctx context.Context, now time.Time) ([]model.Announcement, error) {
	query, args, err := visibleAnnouncementsQuery(now).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build announcements query: %w", err)
	}

	rows, err := d.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query announcements: %w", err)
	}
	defer rows.Close()

	var announcements []model.Announcement
	for rows.Next() {
		var a model.Announcement
		var roles []string
		var createdBy *string
		if err := rows.Scan(&a.ID, &a.Title, &a.Content, &a.Priority, &a.IsPublished, &a.PublishAt,
			&a.ExpiresAt, &roles, &createdBy, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan announcement: %w", err)
		}
		a.TargetRoles = stringsToRoles(roles)
		a.CreatedBy = deref(createdBy)
		announcements = append(announcements, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating announcements: %w", err)
	}

	return announcements, nil
}

// ListReadAnnouncementIDs returns the announcements a member has read
func (d *DB) ListReadAnnouncementIDs(ctx context.Context, memberID string) ([]string, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT announcement_id FROM announcement_reads WHERE member_id = $1 ORDER BY announcement_id
	`, memberID)
	if err != nil {
		return nil, fmt.Errorf("failed to query announcement reads: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan announcement read: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating announcement reads: %w", err)
	}

	return ids, nil
}

// MarkAnnouncementRead records a read receipt once
func (d *DB) MarkAnnouncementRead(ctx context.Context, announcementID, memberID string, at time.Time) error {
	tag, err := d.pool.Exec(ctx, `
		INSERT INTO announcement_reads (announcement_id, member_id, read_at)
		SELECT id, $2, $3 FROM announcements WHERE id = $1
		ON CONFLICT (announcement_id, member_id) DO NOTHING
	`, announcementID, memberID, at.UTC())
	if err != nil {
		return fmt.Errorf("failed to mark announcement read: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	// Zero rows is either an existing receipt or a missing announcement
	var exists bool
	if err := d.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM announcements WHERE id = $1)`, announcementID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check announcement: %w", err)
	}
	if !exists {
		return db.ErrNotFound
	}
	return nil
}
