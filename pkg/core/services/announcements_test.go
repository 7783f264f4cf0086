package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/woodshed-orlando/kinkos/pkg/core/model"
	"github.com/woodshed-orlando/kinkos/pkg/core/policy"
	"github.com/woodshed-orlando/kinkos/pkg/memstore"
)

func timePtr(t time.Time) *time.Time { return &t }

func announce(t *testing.T, store *memstore.Store, notifier StaffNotifier, req AnnouncementRequest) *model.Announcement {
	t.Helper()
	a, err := CreateAnnouncement(context.Background(), store, notifier, zap.NewNop(), "admin", req)
	require.NoError(t, err)
	return a
}

func titles(views []model.AnnouncementView) []string {
	out := make([]string, len(views))
	for i, v := range views {
		out[i] = v.Title
	}
	return out
}

func TestListAnnouncements_OrderingAndVisibility(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	member := &model.Member{ID: "m1", Role: model.RoleMember}
	body := "Please read this carefully."

	freezeClock(t, testNow.Add(-3*time.Hour))
	announce(t, store, nil, AnnouncementRequest{Title: "old normal", Content: body})
	freezeClock(t, testNow.Add(-2*time.Hour))
	announce(t, store, nil, AnnouncementRequest{Title: "low", Content: body, Priority: "low"})
	freezeClock(t, testNow.Add(-time.Hour))
	announce(t, store, nil, AnnouncementRequest{Title: "new normal", Content: body})
	announce(t, store, nil, AnnouncementRequest{Title: "high", Content: body, Priority: "high"})
	announce(t, store, nil, AnnouncementRequest{Title: "draft", Content: body, Published: boolPtr(false)})
	announce(t, store, nil, AnnouncementRequest{Title: "scheduled", Content: body, PublishAt: timePtr(testNow.Add(time.Hour))})
	announce(t, store, nil, AnnouncementRequest{Title: "expired", Content: body, ExpiresAt: timePtr(testNow.Add(-time.Minute))})
	announce(t, store, nil, AnnouncementRequest{Title: "admins only", Content: body, TargetRoles: []model.Role{model.RoleAdmin, model.RoleOwner}})

	freezeClock(t, testNow)
	views, err := ListAnnouncements(ctx, store, member)
	require.NoError(t, err)
	assert.Equal(t, []string{"high", "new normal", "old normal", "low"}, titles(views))

	admin := &model.Member{ID: "a1", Role: model.RoleAdmin}
	views, err = ListAnnouncements(ctx, store, admin)
	require.NoError(t, err)
	assert.Contains(t, titles(views), "admins only")

	freezeClock(t, testNow.Add(2*time.Hour))
	views, err = ListAnnouncements(ctx, store, member)
	require.NoError(t, err)
	assert.Contains(t, titles(views), "scheduled", "visible once publish_at passes")
}

func TestMarkAnnouncementRead(t *testing.T) {
	freezeClock(t, testNow)
	ctx := context.Background()
	store := memstore.New()
	member := &model.Member{ID: "m1", Role: model.RoleMember}
	a := announce(t, store, nil, AnnouncementRequest{Title: "Rules update", Content: "New dungeon rules apply."})

	views, err := ListAnnouncements(ctx, store, member)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.False(t, views[0].IsRead)

	require.NoError(t, MarkAnnouncementRead(ctx, store, a.ID, member.ID))
	require.NoError(t, MarkAnnouncementRead(ctx, store, a.ID, member.ID), "repeat reads are no-ops")

	views, err = ListAnnouncements(ctx, store, member)
	require.NoError(t, err)
	assert.True(t, views[0].IsRead)

	other, err := ListAnnouncements(ctx, store, &model.Member{ID: "m2", Role: model.RoleMember})
	require.NoError(t, err)
	assert.False(t, other[0].IsRead, "read state is per member")

	err = MarkAnnouncementRead(ctx, store, "ghost", member.ID)
	assert.ErrorIs(t, err, policy.ErrAnnouncementNotFound)
}

func TestCreateAnnouncement_Validation(t *testing.T) {
	freezeClock(t, testNow)
	tests := []struct {
		name    string
		req     AnnouncementRequest
		message string
	}{
		{"missing title", AnnouncementRequest{Content: "Long enough content"}, "title is required"},
		{"short content", AnnouncementRequest{Title: "Hi", Content: "too short"}, "content must be at least 10 characters"},
		{"unknown priority", AnnouncementRequest{Title: "Hi", Content: "Long enough content", Priority: "critical"}, "priority must be one of"},
		{"unknown role", AnnouncementRequest{Title: "Hi", Content: "Long enough content", TargetRoles: []model.Role{"guest"}}, "must be one of"},
		{"expires before publish", AnnouncementRequest{Title: "Hi", Content: "Long enough content", ExpiresAt: timePtr(testNow)}, "expires_at must be after publish_at"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CreateAnnouncement(context.Background(), memstore.New(), nil, zap.NewNop(), "admin", tt.req)
			assert.ErrorIs(t, err, policy.ErrInvalidRequest)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestCreateAnnouncement_UrgentNotifiesStaff(t *testing.T) {
	freezeClock(t, testNow)
	store := memstore.New()
	notifier := &mockNotifier{}

	a := announce(t, store, notifier, AnnouncementRequest{Title: "Power outage", Content: "The venue is closed tonight.", Priority: "urgent"})
	assert.Equal(t, model.PriorityUrgent, a.Priority)
	require.Len(t, notifier.messages, 1)
	assert.Contains(t, notifier.messages[0], "Power outage")

	announce(t, store, notifier, AnnouncementRequest{Title: "Later", Content: "Scheduled for tomorrow.", Priority: "urgent", PublishAt: timePtr(testNow.Add(24 * time.Hour))})
	announce(t, store, notifier, AnnouncementRequest{Title: "Routine", Content: "Nothing pressing here."})
	assert.Len(t, notifier.messages, 1, "only urgent announcements visible now")
}

func TestListResources_FiltersByRole(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	store.AddResource(model.Resource{ID: "r1", Title: "Bylaws", Category: model.CategoryPolicies, IsActive: true, SortOrder: 1})
	store.AddResource(model.Resource{ID: "r2", Title: "Desk manual", Category: model.CategoryTraining, IsActive: true, SortOrder: 2,
		RequiredRoles: []model.Role{model.RoleVolunteer, model.RoleLead}})
	store.AddResource(model.Resource{ID: "r3", Title: "Old form", Category: model.CategoryForms, IsActive: false})

	resources, err := ListResources(ctx, store, &model.Member{ID: "m1", Role: model.RoleMember})
	require.NoError(t, err)
	require.Len(t, resources, 1)
	assert.Equal(t, "r1", resources[0].ID)

	resources, err = ListResources(ctx, store, &model.Member{ID: "v1", Role: model.RoleVolunteer})
	require.NoError(t, err)
	require.Len(t, resources, 2)
	assert.Equal(t, "r2", resources[1].ID)

	resources, err = ListResources(ctx, store, &model.Member{ID: "a1", Role: model.RoleAdmin})
	require.NoError(t, err)
	assert.Len(t, resources, 1, "the allow list is exact, not a minimum")
}
