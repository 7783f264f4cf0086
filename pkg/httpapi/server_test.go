package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/woodshed-orlando/kinkos/internal/config"
	"github.com/woodshed-orlando/kinkos/pkg/core/model"
	"github.com/woodshed-orlando/kinkos/pkg/memstore"
)

const testSecret = "an-adequately-long-test-secret"

type testAPI struct {
	t       *testing.T
	store   *memstore.Store
	handler http.Handler
}

func newTestAPI(t *testing.T) *testAPI {
	cfg := &config.Config{JWTSecret: testSecret, MaxOccupancy: 2}
	cfg.ApplyDefaults()
	store := memstore.New()

	return &testAPI{
		t:       t,
		store:   store,
		handler: NewServer(store, nil, cfg, zap.NewNop()).Routes(),
	}
}

func signToken(t *testing.T, secret, subject string, ttl time.Duration) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func (a *testAPI) seedMember(id string, status model.Status, role model.Role) *model.Member {
	a.t.Helper()
	now := time.Now().UTC()
	m := &model.Member{
		ID:          id,
		AuthID:      "auth-" + id,
		Email:       id + "@example.com",
		DisplayName: "Member " + id,
		Role:        role,
		Status:      status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	require.NoError(a.t, a.store.InsertMember(context.Background(), m))
	return m
}

func (a *testAPI) seedWaiver(memberID string) {
	a.t.Helper()
	signed := time.Now().UTC().AddDate(0, -1, 0)
	require.NoError(a.t, a.store.InsertWaiver(context.Background(), &model.Waiver{
		ID:                     "waiver-" + memberID,
		MemberID:               memberID,
		Initials:               "JD",
		Signature:              "Jane Doe",
		SignedDate:             signed,
		ValidUntil:             signed.AddDate(1, 0, 0),
		BylawsAgreed:           true,
		LiabilityReleaseAgreed: true,
		DungeonRulesAgreed:     true,
		CodeOfConductAgreed:    true,
	}))
}

func (a *testAPI) seedShift(id string, capacity int) {
	a.t.Helper()
	start := time.Now().UTC().Add(48 * time.Hour).Truncate(time.Hour)
	require.NoError(a.t, a.store.InsertShifts(context.Background(), []model.Shift{{
		ID:            id,
		Title:         "Front desk " + id,
		Location:      config.DefaultShiftLocation,
		StartTime:     start,
		EndTime:       start.Add(4 * time.Hour),
		MinVolunteers: 1,
		MaxVolunteers: capacity,
		Status:        model.ShiftOpen,
		CreatedAt:     time.Now().UTC(),
	}}))
}

// do sends a request as the given auth subject. An empty subject sends no token.
func (a *testAPI) do(method, path, subject string, body interface{}) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if subject != "" {
		req.Header.Set("Authorization", "Bearer "+signToken(a.t, testSecret, subject, time.Hour))
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	return decode[errorResponse](t, rec).Error
}

func TestHealthz(t *testing.T) {
	api := newTestAPI(t)
	rec := api.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestAuthenticate(t *testing.T) {
	api := newTestAPI(t)
	api.seedMember("m1", model.StatusActive, model.RoleMember)

	send := func(header string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		api.handler.ServeHTTP(rec, req)
		return rec
	}

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "auth-m1"}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "Bearer not-a-jwt", http.StatusUnauthorized},
		{"wrong secret", "Bearer " + signToken(t, "some-other-secret-value", "auth-m1", time.Hour), http.StatusUnauthorized},
		{"expired", "Bearer " + signToken(t, testSecret, "auth-m1", -time.Minute), http.StatusUnauthorized},
		{"no expiry", "Bearer " + noExpiry, http.StatusUnauthorized},
		{"valid", "Bearer " + signToken(t, testSecret, "auth-m1", time.Hour), http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := send(tt.header)
			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusUnauthorized {
				assert.Equal(t, "Authentication required", errorMessage(t, rec))
			}
		})
	}
}

func TestRegisterThenMe(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(http.MethodGet, "/api/me", "auth-new", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "No member profile for this account. Register first", errorMessage(t, rec))

	body := map[string]string{"email": "new@example.com", "display_name": "Newcomer"}
	rec = api.do(http.MethodPost, "/api/members/register", "auth-new", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[model.Member](t, rec)
	assert.Equal(t, model.StatusPending, created.Status)
	assert.Equal(t, model.RoleMember, created.Role)

	rec = api.do(http.MethodPost, "/api/members/register", "auth-new", body)
	assert.Equal(t, http.StatusOK, rec.Code, "second registration returns the existing member")
	assert.Equal(t, created.ID, decode[model.Member](t, rec).ID)

	rec = api.do(http.MethodPost, "/api/me", "auth-new", body)
	assert.Equal(t, http.StatusOK, rec.Code, "POST /api/me registers too")
	assert.Equal(t, created.ID, decode[model.Member](t, rec).ID)

	rec = api.do(http.MethodGet, "/api/me", "auth-new", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Newcomer", decode[model.Member](t, rec).DisplayName)
}

func TestRegister_InvalidBody(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(http.MethodPost, "/api/members/register", "auth-new", map[string]string{"email": "nope", "display_name": "Newcomer"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, errorMessage(t, rec), "email")

	rec = api.do(http.MethodPost, "/api/members/register", "auth-new", map[string]string{"unexpected": "field"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSignWaiver_ActivatesPendingMember(t *testing.T) {
	api := newTestAPI(t)
	api.seedMember("m1", model.StatusPending, model.RoleMember)

	rec := api.do(http.MethodPost, "/api/me/waivers", "auth-m1", map[string]interface{}{
		"member_id":                "someone-else",
		"initials":                 "JD",
		"signature":                "Jane Doe",
		"bylaws_agreed":            true,
		"liability_release_agreed": true,
		"dungeon_rules_agreed":     true,
		"code_of_conduct_agreed":   true,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var result struct {
		Waiver    model.Waiver `json:"waiver"`
		Activated bool         `json:"activated"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, result.Activated)
	assert.Equal(t, "m1", result.Waiver.MemberID, "members sign only for themselves")

	member, err := api.store.GetMember(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusActive, member.Status)
}

func TestSignupFlow(t *testing.T) {
	api := newTestAPI(t)
	api.seedMember("m1", model.StatusActive, model.RoleVolunteer)
	api.seedMember("m2", model.StatusActive, model.RoleVolunteer)
	api.seedShift("s1", 1)

	rec := api.do(http.MethodPost, "/api/shifts/s1/signup", "auth-m1", map[string]string{"notes": " first time "})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "first time", decode[model.ShiftSignup](t, rec).Notes)

	rec = api.do(http.MethodPost, "/api/shifts/s1/signup", "auth-m1", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "You are already signed up for this shift", errorMessage(t, rec))

	rec = api.do(http.MethodPost, "/api/shifts/s1/signup", "auth-m2", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "This shift is full", errorMessage(t, rec))

	rec = api.do(http.MethodPost, "/api/shifts/missing/signup", "auth-m2", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = api.do(http.MethodGet, "/api/shifts?filter=my-shifts", "auth-m1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	mine := decode[[]model.ShiftSummary](t, rec)
	require.Len(t, mine, 1)
	assert.True(t, mine[0].SignedUp)

	rec = api.do(http.MethodGet, "/api/shifts?filter=available", "auth-m2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]model.ShiftSummary](t, rec))

	rec = api.do(http.MethodGet, "/api/shifts?filter=bogus", "auth-m2", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(http.MethodDelete, "/api/shifts/s1/signup", "auth-m1", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = api.do(http.MethodDelete, "/api/shifts/s1/signup", "auth-m1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = api.do(http.MethodPost, "/api/shifts/s1/signup", "auth-m2", nil)
	assert.Equal(t, http.StatusCreated, rec.Code, "a cancelled spot frees capacity")
}

func TestDesk_RequiresVolunteer(t *testing.T) {
	api := newTestAPI(t)
	api.seedMember("m1", model.StatusActive, model.RoleMember)

	rec := api.do(http.MethodGet, "/api/desk/occupancy", "auth-m1", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "You do not have permission to do that", errorMessage(t, rec))
}

func TestDesk_CheckInAndOut(t *testing.T) {
	api := newTestAPI(t)
	api.seedMember("desk", model.StatusActive, model.RoleVolunteer)
	for _, id := range []string{"a", "b", "c"} {
		api.seedMember(id, model.StatusActive, model.RoleMember)
		api.seedWaiver(id)
	}
	api.seedMember("nowaiver", model.StatusActive, model.RoleMember)

	rec := api.do(http.MethodPost, "/api/desk/checkins", "auth-desk", map[string]string{"member_id": "nowaiver"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, errorMessage(t, rec), "waiver")

	rec = api.do(http.MethodPost, "/api/desk/checkins", "auth-desk", map[string]string{"member_id": "a"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var first struct {
		CheckIn   model.CheckIn `json:"check_in"`
		Occupancy int           `json:"occupancy"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &first))
	assert.Equal(t, 1, first.Occupancy)
	assert.Equal(t, "desk", first.CheckIn.CheckedInBy)

	rec = api.do(http.MethodPost, "/api/desk/checkins", "auth-desk", map[string]string{"member_id": "a"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = api.do(http.MethodPost, "/api/desk/checkins", "auth-desk", map[string]string{"member_id": "b"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = api.do(http.MethodPost, "/api/desk/checkins", "auth-desk", map[string]string{"member_id": "c"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, errorMessage(t, rec), "Venue is at capacity (2)")

	rec = api.do(http.MethodGet, "/api/desk/checkins", "auth-desk", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]json.RawMessage](t, rec), 2)

	rec = api.do(http.MethodPost, "/api/desk/checkins/"+first.CheckIn.ID+"/checkout", "auth-desk", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "desk", decode[model.CheckIn](t, rec).CheckedOutBy)

	rec = api.do(http.MethodPost, "/api/desk/checkins/"+first.CheckIn.ID+"/checkout", "auth-desk", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = api.do(http.MethodGet, "/api/desk/occupancy", "auth-desk", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"current":1,"max":2,"approaching_capacity":false}`, rec.Body.String())
}

func TestAdmin_RequiresAdmin(t *testing.T) {
	api := newTestAPI(t)
	api.seedMember("lead", model.StatusActive, model.RoleLead)

	rec := api.do(http.MethodGet, "/api/admin/stats", "auth-lead", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAdmin_CreateShift(t *testing.T) {
	api := newTestAPI(t)
	api.seedMember("admin", model.StatusActive, model.RoleAdmin)

	start := time.Now().UTC().Add(72 * time.Hour).Truncate(time.Hour)
	body := map[string]interface{}{
		"title":          "Dungeon monitor",
		"start_time":     start,
		"end_time":       start.Add(3 * time.Hour),
		"min_volunteers": 1,
		"max_volunteers": 2,
	}

	rec := api.do(http.MethodPost, "/api/admin/shifts", "auth-admin", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	single := decode[[]model.Shift](t, rec)
	require.Len(t, single, 1)
	assert.Equal(t, config.DefaultShiftLocation, single[0].Location)
	assert.Equal(t, "admin", single[0].CreatedBy)

	body["rrule"] = "FREQ=WEEKLY;COUNT=3"
	rec = api.do(http.MethodPost, "/api/admin/shifts", "auth-admin", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	recurring := decode[[]model.Shift](t, rec)
	require.Len(t, recurring, 3)
	venue, err := time.LoadLocation(config.DefaultTimezone)
	require.NoError(t, err)
	assert.True(t, start.In(venue).AddDate(0, 0, 14).Equal(recurring[2].StartTime), "keeps the venue wall-clock start")

	body["end_time"] = start.Add(-time.Hour)
	rec = api.do(http.MethodPost, "/api/admin/shifts", "auth-admin", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(http.MethodGet, "/api/admin/stats", "auth-admin", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"total_members":1,"active_members":1,"upcoming_shifts":4,"open_upcoming_shifts":4}`, rec.Body.String())
}

func TestAdmin_RoleAndTransition(t *testing.T) {
	api := newTestAPI(t)
	api.seedMember("admin", model.StatusActive, model.RoleAdmin)
	api.seedMember("m1", model.StatusActive, model.RoleMember)

	rec := api.do(http.MethodPut, "/api/admin/members/m1/role", "auth-admin", map[string]string{"role": "volunteer"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, model.RoleVolunteer, decode[model.Member](t, rec).Role)

	rec = api.do(http.MethodPut, "/api/admin/members/m1/role", "auth-admin", map[string]string{"role": "owner"})
	assert.Equal(t, http.StatusForbidden, rec.Code, "only owners grant owner")

	rec = api.do(http.MethodPost, "/api/admin/members/m1/transitions", "auth-admin", map[string]string{"transition": "suspend"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, model.StatusSuspended, decode[model.Member](t, rec).Status)

	rec = api.do(http.MethodPost, "/api/admin/members/m1/transitions", "auth-admin", map[string]string{"transition": "renew"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(http.MethodPost, "/api/admin/members/ghost/transitions", "auth-admin", map[string]string{"transition": "suspend"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAnnouncements(t *testing.T) {
	api := newTestAPI(t)
	api.seedMember("admin", model.StatusActive, model.RoleAdmin)
	api.seedMember("m1", model.StatusActive, model.RoleMember)

	rec := api.do(http.MethodPost, "/api/admin/announcements", "auth-admin", map[string]interface{}{
		"title":        "Staff meeting",
		"content":      "Sunday at noon in the lounge.",
		"target_roles": []string{"admin"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = api.do(http.MethodPost, "/api/admin/announcements", "auth-admin", map[string]interface{}{
		"title":    "Halloween party",
		"content":  "Costumes encouraged, doors at eight.",
		"priority": "high",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	party := decode[model.Announcement](t, rec)

	rec = api.do(http.MethodGet, "/api/announcements", "auth-m1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	views := decode[[]model.AnnouncementView](t, rec)
	require.Len(t, views, 1, "admin-only announcements are hidden from members")
	assert.Equal(t, party.ID, views[0].ID)
	assert.False(t, views[0].IsRead)

	rec = api.do(http.MethodPost, "/api/announcements/"+party.ID+"/read", "auth-m1", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = api.do(http.MethodGet, "/api/announcements", "auth-m1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[[]model.AnnouncementView](t, rec)[0].IsRead)

	rec = api.do(http.MethodPost, "/api/announcements/missing/read", "auth-m1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatusFor_UnknownErrorIsInternal(t *testing.T) {
	api := newTestAPI(t)
	req := httptest.NewRequest(http.MethodGet, "/anything", nil)
	rec := httptest.NewRecorder()

	NewServer(api.store, nil, &config.Config{}, zap.NewNop()).respondError(rec, req, assert.AnError)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, errInternal.Error(), errorMessage(t, rec))
}
