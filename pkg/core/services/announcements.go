package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/woodshed-orlando/kinkos/pkg/core/model"
	"github.com/woodshed-orlando/kinkos/pkg/core/policy"
	"github.com/woodshed-orlando/kinkos/pkg/db"
)

// AnnouncementStore defines the database operations needed for announcements
type AnnouncementStore interface {
	InsertAnnouncement(ctx context.Context, announcement *model.Announcement) error
	ListVisibleAnnouncements(ctx context.Context, now time.Time) ([]model.Announcement, error)
	ListReadAnnouncementIDs(ctx context.Context, memberID string) ([]string, error)
	MarkAnnouncementRead(ctx context.Context, announcementID, memberID string, at time.Time) error
}

// AnnouncementRequest is the admin form for a new announcement.
// Published defaults to true and PublishAt to now.
type AnnouncementRequest struct {
	Title       string       `json:"title" validate:"required,max=200"`
	Content     string       `json:"content" validate:"min=10,max=10000"`
	Priority    string       `json:"priority" validate:"omitempty,oneof=low normal high urgent"`
	Published   *bool        `json:"is_published"`
	PublishAt   *time.Time   `json:"publish_at"`
	ExpiresAt   *time.Time   `json:"expires_at"`
	TargetRoles []model.Role `json:"target_roles" validate:"dive,oneof=member volunteer lead admin owner"`
}

// CreateAnnouncement saves an announcement. Urgent announcements that are
// visible immediately are also pushed to the staff channel.
func CreateAnnouncement(
	ctx context.Context,
	store AnnouncementStore,
	notifier StaffNotifier,
	logger *zap.Logger,
	createdBy string,
	req AnnouncementRequest,
) (*model.Announcement, error) {
	req.Title = strings.TrimSpace(req.Title)
	req.Content = strings.TrimSpace(req.Content)
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	now := clock().UTC()
	a := &model.Announcement{
		ID:          newID(),
		Title:       req.Title,
		Content:     req.Content,
		Priority:    model.PriorityNormal,
		IsPublished: true,
		PublishAt:   now,
		ExpiresAt:   req.ExpiresAt,
		TargetRoles: req.TargetRoles,
		CreatedBy:   createdBy,
		CreatedAt:   now,
	}
	if req.Priority != "" {
		a.Priority = model.Priority(req.Priority)
	}
	if req.Published != nil {
		a.IsPublished = *req.Published
	}
	if req.PublishAt != nil {
		a.PublishAt = req.PublishAt.UTC()
	}
	if a.ExpiresAt != nil && !a.ExpiresAt.After(a.PublishAt) {
		return nil, fmt.Errorf("%w: expires_at must be after publish_at", policy.ErrInvalidRequest)
	}

	if err := store.InsertAnnouncement(ctx, a); err != nil {
		return nil, fmt.Errorf("failed to insert announcement: %w", err)
	}

	logger.Info("Announcement created",
		zap.String("announcement_id", a.ID),
		zap.String("priority", string(a.Priority)),
		zap.Bool("published", a.IsPublished))

	if a.Priority == model.PriorityUrgent && a.VisibleAt(now) {
		text := fmt.Sprintf("Urgent announcement: %s\n%s", a.Title, a.Content)
		if err := notifyStaff(ctx, notifier, text); err != nil {
			logger.Warn("Failed to notify staff of urgent announcement",
				zap.String("announcement_id", a.ID),
				zap.Error(err))
		}
	}

	return a, nil
}

// ListAnnouncements returns the announcements visible to a member now, highest
// priority first and newest first within a priority, each with its read state
func ListAnnouncements(ctx context.Context, store AnnouncementStore, member *model.Member) ([]model.AnnouncementView, error) {
	now := clock().UTC()

	announcements, err := store.ListVisibleAnnouncements(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch announcements: %w", err)
	}

	readIDs, err := store.ListReadAnnouncementIDs(ctx, member.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch read receipts: %w", err)
	}

	views := []model.AnnouncementView{}
	for _, a := range announcements {
		if !a.VisibleAt(now) || !model.RoleAllowed(a.TargetRoles, member.Role) {
			continue
		}
		views = append(views, model.AnnouncementView{
			Announcement: a,
			IsRead:       slices.Contains(readIDs, a.ID),
		})
	}

	sort.SliceStable(views, func(i, j int) bool {
		pi, pj := views[i].Priority.Rank(), views[j].Priority.Rank()
		if pi != pj {
			return pi > pj
		}
		return views[i].CreatedAt.After(views[j].CreatedAt)
	})

	return views, nil
}

// MarkAnnouncementRead records that the member has read an announcement. Repeat calls are no-ops.
func MarkAnnouncementRead(ctx context.Context, store AnnouncementStore, announcementID, memberID string) error {
	err := store.MarkAnnouncementRead(ctx, announcementID, memberID, clock().UTC())
	if errors.Is(err, db.ErrNotFound) {
		return policy.ErrAnnouncementNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to mark announcement read: %w", err)
	}
	return nil
}
