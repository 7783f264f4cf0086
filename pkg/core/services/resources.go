package services

import (
	"context"
	"fmt"

	"github.com/woodshed-orlando/kinkos/pkg/core/model"
)

// ResourceStore defines the database operations needed for the resource library
type ResourceStore interface {
	ListActiveResources(ctx context.Context) ([]model.Resource, error)
}

// ListResources returns the active resources the member's role may see
func ListResources(ctx context.Context, store ResourceStore, member *model.Member) ([]model.Resource, error) {
	resources, err := store.ListActiveResources(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch resources: %w", err)
	}

	visible := []model.Resource{}
	for _, r := range resources {
		if model.RoleAllowed(r.RequiredRoles, member.Role) {
			visible = append(visible, r)
		}
	}
	return visible, nil
}
