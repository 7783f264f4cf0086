package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/woodshed-orlando/kinkos/pkg/core/model"
	"github.com/woodshed-orlando/kinkos/pkg/core/policy"
	"github.com/woodshed-orlando/kinkos/pkg/memstore"
)

func fridayNight() ShiftRequest {
	start := time.Date(2026, 10, 23, 19, 0, 0, 0, time.UTC)
	return ShiftRequest{
		Title:         "Friday social",
		StartTime:     start,
		EndTime:       start.Add(5 * time.Hour),
		MaxVolunteers: 3,
	}
}

func TestCreateShift_AppliesDefaults(t *testing.T) {
	freezeClock(t, testNow)
	ctx := context.Background()
	store := memstore.New()
	cfg := testConfig()

	shift, err := CreateShift(ctx, store, cfg, zap.NewNop(), "admin", fridayNight())
	require.NoError(t, err)
	assert.Equal(t, cfg.DefaultShiftLocation, shift.Location)
	assert.Equal(t, 1, shift.MinVolunteers)
	assert.Equal(t, model.ShiftOpen, shift.Status)
	assert.Equal(t, "admin", shift.CreatedBy)
	assert.Equal(t, testNow, shift.CreatedAt)

	stored, err := store.GetShift(ctx, shift.ID)
	require.NoError(t, err)
	assert.Equal(t, *shift, *stored)
}

func TestCreateShift_Validation(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*ShiftRequest)
		message string
	}{
		{"missing title", func(r *ShiftRequest) { r.Title = "  " }, "title is required"},
		{"no capacity", func(r *ShiftRequest) { r.MaxVolunteers = 0 }, "max_volunteers must be at least 1"},
		{"ends before start", func(r *ShiftRequest) { r.EndTime = r.StartTime.Add(-time.Hour) }, "end_time must be after start_time"},
		{"min above max", func(r *ShiftRequest) { r.MinVolunteers = 5 }, "max_volunteers must be at least min_volunteers"},
		{"missing start", func(r *ShiftRequest) { r.StartTime = time.Time{} }, "start_time is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := fridayNight()
			tt.modify(&req)

			_, err := CreateShift(context.Background(), memstore.New(), testConfig(), zap.NewNop(), "admin", req)
			assert.ErrorIs(t, err, policy.ErrInvalidRequest)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestCreateRecurringShifts(t *testing.T) {
	freezeClock(t, testNow)
	ctx := context.Background()
	store := memstore.New()

	loc, err := testConfig().Location()
	require.NoError(t, err)

	shifts, err := CreateRecurringShifts(ctx, store, testConfig(), zap.NewNop(), "admin", fridayNight(), "RRULE:FREQ=WEEKLY;COUNT=4")
	require.NoError(t, err)
	require.Len(t, shifts, 4)

	for i, s := range shifts {
		wantStart := fridayNight().StartTime.In(loc).AddDate(0, 0, 7*i)
		assert.True(t, wantStart.Equal(s.StartTime), "occurrence %d: got %s, want %s", i, s.StartTime, wantStart)
		assert.Equal(t, 5*time.Hour, s.EndTime.Sub(s.StartTime))
		assert.Equal(t, time.Friday, s.StartTime.Weekday())
	}

	ids := map[string]bool{}
	for _, s := range shifts {
		ids[s.ID] = true
	}
	assert.Len(t, ids, 4, "each occurrence gets its own id")

	stored, err := store.ListShiftsFrom(ctx, testNow)
	require.NoError(t, err)
	assert.Len(t, stored, 4)
}

func TestCreateRecurringShifts_CappedAndInvalid(t *testing.T) {
	freezeClock(t, testNow)

	shifts, err := CreateRecurringShifts(context.Background(), memstore.New(), testConfig(), zap.NewNop(), "admin", fridayNight(), "FREQ=DAILY")
	require.NoError(t, err)
	assert.Len(t, shifts, MaxRecurringShifts)

	_, err = CreateRecurringShifts(context.Background(), memstore.New(), testConfig(), zap.NewNop(), "admin", fridayNight(), "FREQ=SOMETIMES")
	assert.ErrorIs(t, err, policy.ErrInvalidRequest)
}

func TestCreateRecurringShifts_KeepsVenueTimeAcrossDST(t *testing.T) {
	freezeClock(t, testNow)
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// 19:00 EDT, sent as UTC the way a JSON client would
	req := fridayNight()
	req.StartTime = time.Date(2026, 10, 23, 23, 0, 0, 0, time.UTC)
	req.EndTime = req.StartTime.Add(4 * time.Hour)

	shifts, err := CreateRecurringShifts(context.Background(), memstore.New(), testConfig(), zap.NewNop(), "admin", req, "FREQ=WEEKLY;COUNT=3")
	require.NoError(t, err)
	require.Len(t, shifts, 3)

	for _, s := range shifts {
		local := s.StartTime.In(loc)
		assert.Equal(t, 19, local.Hour(), "starts at %s", local)
		assert.Equal(t, time.Friday, local.Weekday())
		assert.Equal(t, 4*time.Hour, s.EndTime.Sub(s.StartTime))
	}
	assert.Equal(t, time.Date(2026, 11, 7, 0, 0, 0, 0, time.UTC), shifts[2].StartTime, "after the clocks go back")
}

func TestCreateRecurringShifts_SkipHolidays(t *testing.T) {
	freezeClock(t, testNow)
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	req := fridayNight()
	req.StartTime = time.Date(2026, 11, 19, 19, 0, 0, 0, loc) // Thursday before Thanksgiving
	req.EndTime = req.StartTime.Add(4 * time.Hour)
	req.SkipHolidays = true

	shifts, err := CreateRecurringShifts(context.Background(), memstore.New(), testConfig(), zap.NewNop(), "admin", req, "FREQ=WEEKLY;COUNT=3")
	require.NoError(t, err)
	require.Len(t, shifts, 2)
	assert.True(t, shifts[0].StartTime.Equal(req.StartTime))
	assert.True(t, shifts[1].StartTime.Equal(req.StartTime.AddDate(0, 0, 14)), "Thanksgiving is skipped")

	req.StartTime = time.Date(2026, 12, 25, 19, 0, 0, 0, loc)
	req.EndTime = req.StartTime.Add(4 * time.Hour)
	_, err = CreateRecurringShifts(context.Background(), memstore.New(), testConfig(), zap.NewNop(), "admin", req, "FREQ=YEARLY;COUNT=1")
	assert.ErrorIs(t, err, policy.ErrInvalidRequest)
}

func TestWithoutHolidays(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	july4Late := time.Date(2026, 7, 5, 2, 0, 0, 0, time.UTC) // 22:00 on July 4th in Orlando
	july5 := time.Date(2026, 7, 5, 20, 0, 0, 0, time.UTC)

	assert.Equal(t, []time.Time{july5}, withoutHolidays([]time.Time{july4Late, july5}, loc))
}

func TestExpandRecurrence_ByDay(t *testing.T) {
	start := time.Date(2026, 10, 19, 20, 0, 0, 0, time.UTC) // Monday
	got, err := expandRecurrence("FREQ=WEEKLY;BYDAY=WE,SA;COUNT=4", start, 10)
	require.NoError(t, err)

	want := []time.Time{
		time.Date(2026, 10, 21, 20, 0, 0, 0, time.UTC),
		time.Date(2026, 10, 24, 20, 0, 0, 0, time.UTC),
		time.Date(2026, 10, 28, 20, 0, 0, 0, time.UTC),
		time.Date(2026, 10, 31, 20, 0, 0, 0, time.UTC),
	}
	assert.Equal(t, want, got)
}

func TestPublishRoster(t *testing.T) {
	freezeClock(t, testNow)
	ctx := context.Background()
	store := memstore.New()
	lead := seedMember(t, store, "lead", model.StatusActive, model.RoleLead)
	seedMember(t, store, "v1", model.StatusActive, model.RoleVolunteer)
	seedMember(t, store, "v2", model.StatusActive, model.RoleVolunteer)

	first := seedShift(t, store, "first", testNow.Add(24*time.Hour), 3)
	seedShift(t, store, "far", testNow.AddDate(0, 0, 20), 2)

	spare := seedShift(t, store, "spare", testNow.Add(48*time.Hour), 2)
	cancelled := spare
	cancelled.ID = "cancelled"
	cancelled.Status = model.ShiftCancelled
	require.NoError(t, store.InsertShifts(ctx, []model.Shift{cancelled}))

	led := first
	led.ID = "led"
	led.StartTime = testNow.Add(72 * time.Hour)
	led.EndTime = led.StartTime.Add(3 * time.Hour)
	led.LeadVolunteer = lead.ID
	require.NoError(t, store.InsertShifts(ctx, []model.Shift{led}))

	for i, memberID := range []string{"v1", "v2"} {
		freezeClock(t, testNow.Add(time.Duration(i)*time.Minute))
		_, err := SignUp(ctx, store, zap.NewNop(), "first", memberID, "")
		require.NoError(t, err)
	}
	_, err := SignUp(ctx, store, zap.NewNop(), "led", "lead", "")
	require.NoError(t, err)
	_, err = SignUp(ctx, store, zap.NewNop(), "led", "v1", "")
	require.NoError(t, err)

	freezeClock(t, testNow)
	roster, err := PublishRoster(ctx, store, zap.NewNop(), 2, time.UTC)
	require.NoError(t, err)

	require.Len(t, roster.Rows, 3, "far and cancelled shifts are left out")
	assert.Equal(t, RosterRow{
		Date:       "Sat Oct 17 2026",
		Time:       "18:00-22:00",
		Title:      "Front desk first",
		Location:   first.Location,
		Volunteers: []string{"Member v1", "Member v2"},
		SpotsLeft:  1,
	}, roster.Rows[0])

	assert.Equal(t, "Front desk spare", roster.Rows[1].Title)
	assert.Empty(t, roster.Rows[1].Volunteers)

	assert.Equal(t, "Member lead", roster.Rows[2].Lead)
	assert.Equal(t, []string{"Member v1"}, roster.Rows[2].Volunteers)
	assert.Equal(t, 1, roster.Rows[2].SpotsLeft)

	_, err = PublishRoster(ctx, store, zap.NewNop(), 0, time.UTC)
	assert.ErrorIs(t, err, policy.ErrInvalidRequest)
}

func TestPublishRoster_Empty(t *testing.T) {
	freezeClock(t, testNow)
	roster, err := PublishRoster(context.Background(), memstore.New(), zap.NewNop(), 1, nil)
	require.NoError(t, err)
	assert.Empty(t, roster.Rows)
	assert.Equal(t, testNow.AddDate(0, 0, 7), roster.End)
}

func TestSignUpDoesNotOvershootRecurringShifts(t *testing.T) {
	freezeClock(t, testNow)
	ctx := context.Background()
	store := memstore.New()
	req := fridayNight()
	req.MaxVolunteers = 1

	shifts, err := CreateRecurringShifts(ctx, store, testConfig(), zap.NewNop(), "admin", req, "FREQ=WEEKLY;COUNT=2")
	require.NoError(t, err)

	for _, s := range shifts {
		for i := 0; i < 3; i++ {
			_, _ = SignUp(ctx, store, zap.NewNop(), s.ID, fmt.Sprintf("m%d", i), "")
		}
		signups, err := store.ListShiftSignups(ctx, s.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, policy.ActiveSignupCount(signups))
	}
}
