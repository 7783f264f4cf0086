package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/woodshed-orlando/kinkos/internal/config"
	"github.com/woodshed-orlando/kinkos/pkg/core/model"
	"github.com/woodshed-orlando/kinkos/pkg/memstore"
)

var testNow = time.Date(2026, 10, 16, 18, 0, 0, 0, time.UTC)

// freezeClock pins the service clock for the duration of a test
func freezeClock(t *testing.T, now time.Time) {
	t.Helper()
	prev := clock
	clock = func() time.Time { return now }
	t.Cleanup(func() { clock = prev })
}

func testConfig() *config.Config {
	cfg := &config.Config{JWTSecret: "0123456789abcdef0123"}
	cfg.ApplyDefaults()
	return cfg
}

func seedMember(t *testing.T, store *memstore.Store, id string, status model.Status, role model.Role) *model.Member {
	t.Helper()
	m := &model.Member{
		ID:          id,
		AuthID:      "auth-" + id,
		Email:       id + "@example.com",
		DisplayName: "Member " + id,
		LegalName:   "Jane Doe",
		Role:        role,
		Status:      status,
		CreatedAt:   testNow.AddDate(-1, 0, 0),
		UpdatedAt:   testNow.AddDate(-1, 0, 0),
	}
	require.NoError(t, store.InsertMember(context.Background(), m))
	return m
}

func seedShift(t *testing.T, store *memstore.Store, id string, start time.Time, capacity int) model.Shift {
	t.Helper()
	s := model.Shift{
		ID:            id,
		Title:         "Front desk " + id,
		Location:      config.DefaultShiftLocation,
		StartTime:     start,
		EndTime:       start.Add(4 * time.Hour),
		MinVolunteers: 1,
		MaxVolunteers: capacity,
		Status:        model.ShiftOpen,
		CreatedAt:     testNow.AddDate(0, -1, 0),
	}
	require.NoError(t, store.InsertShifts(context.Background(), []model.Shift{s}))
	return s
}

func seedWaiver(t *testing.T, store *memstore.Store, memberID string, signed time.Time) {
	t.Helper()
	w := &model.Waiver{
		ID:                     "waiver-" + memberID + "-" + signed.Format("20060102"),
		MemberID:               memberID,
		Initials:               "JD",
		Signature:              "Jane Doe",
		SignedDate:             signed,
		ValidUntil:             signed.AddDate(1, 0, 0),
		BylawsAgreed:           true,
		LiabilityReleaseAgreed: true,
		DungeonRulesAgreed:     true,
		CodeOfConductAgreed:    true,
	}
	require.NoError(t, store.InsertWaiver(context.Background(), w))
}

// mockGmailClient implements GmailClient for testing
type mockGmailClient struct {
	sentEmails []string
	failFor    map[string]bool
	err        error
}

func (m *mockGmailClient) SendEmail(to, subject, body string) error {
	if m.err != nil {
		return m.err
	}
	if m.failFor[to] {
		return fmt.Errorf("mailbox unavailable")
	}
	m.sentEmails = append(m.sentEmails, to)
	return nil
}

// mockNotifier implements StaffNotifier for testing
type mockNotifier struct {
	mu       sync.Mutex
	messages []string
	err      error
}

func (m *mockNotifier) NotifyStaff(ctx context.Context, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, text)
	return m.err
}
