package postgres

import (
	"context"
	"fmt"

	"github.com/woodshed-orlando/kinkos/pkg/core/model"
)

// ListActiveResources returns active resources ordered by sort order then title
func (d *DB) ListActiveResources(ctx context.Context) ([]model.Resource, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT id, title, description, url, category, is_active, sort_order, required_roles, created_at
		FROM resources
		WHERE is_active
		ORDER BY sort_order, title
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query resources: %w", err)
	}
	defer rows.Close()

	var resources []model.Resource
	for rows.Next() {
		var r model.Resource
		var roles []string
		if err := rows.Scan(&r.ID, &r.Title, &r.Description, &r.URL, &r.Category, &r.IsActive,
			&r.SortOrder, &roles, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan resource: %w", err)
		}
		r.RequiredRoles = stringsToRoles(roles)
		resources = append(resources, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating resources: %w", err)
	}

	return resources, nil
}
