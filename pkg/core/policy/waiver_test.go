package policy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/woodshed-orlando/kinkos/pkg/core/model"
)

func TestWaiverValidUntil_ExactlyOneYear(t *testing.T) {
	signed := time.Date(2025, 3, 14, 19, 30, 5, 123, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 14, 19, 30, 5, 123, time.UTC), WaiverValidUntil(signed))
}

func TestWaiverValidUntil_LeapDay(t *testing.T) {
	signed := time.Date(2028, 2, 29, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2029, 2, 28, 12, 0, 0, 0, time.UTC), WaiverValidUntil(signed))
}

func TestIsWaiverExpired(t *testing.T) {
	validUntil := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	assert.False(t, IsWaiverExpired(validUntil, validUntil.Add(-time.Hour)))
	assert.False(t, IsWaiverExpired(validUntil, validUntil), "the expiry instant is still valid")
	assert.True(t, IsWaiverExpired(validUntil, validUntil.Add(time.Nanosecond)))
	assert.True(t, IsWaiverExpired(validUntil, validUntil.AddDate(1, 0, 0)))
}

func TestIsWaiverExpiringSoon(t *testing.T) {
	validUntil := time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC)

	assert.False(t, IsWaiverExpiringSoon(validUntil, validUntil.AddDate(0, 0, -31), 30))
	assert.True(t, IsWaiverExpiringSoon(validUntil, validUntil.AddDate(0, 0, -29), 30))
	assert.True(t, IsWaiverExpiringSoon(validUntil, validUntil, 30))
	assert.False(t, IsWaiverExpiringSoon(validUntil, validUntil.Add(time.Second), 30), "expired is not expiring")
}

func TestLatestWaiverAndValidity(t *testing.T) {
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	waivers := []model.Waiver{
		{ID: "old", SignedDate: now.AddDate(-2, 0, 0), ValidUntil: now.AddDate(-1, 0, 0)},
		{ID: "new", SignedDate: now.AddDate(0, -1, 0), ValidUntil: now.AddDate(0, 11, 0)},
		{ID: "mid", SignedDate: now.AddDate(-1, -6, 0), ValidUntil: now.AddDate(0, -6, 0)},
	}

	latest := LatestWaiver(waivers)
	require.NotNil(t, latest)
	assert.Equal(t, "new", latest.ID)
	assert.True(t, HasValidWaiver(latest, now))

	assert.Nil(t, LatestWaiver(nil))
	assert.False(t, HasValidWaiver(nil, now))
	assert.False(t, HasValidWaiver(&waivers[0], now))
}

func TestValidateInitials(t *testing.T) {
	tests := []struct {
		name      string
		legalName string
		initials  string
		expected  bool
	}{
		{"two names", "Jane Doe", "JD", true},
		{"lowercase input", "Jane Doe", "jd", true},
		{"spaced input", "Jane Doe", "J D", true},
		{"three names", "Mary Ann Smith", "MAS", true},
		{"extra whitespace in name", "  Mary   Ann  Smith ", "mas", true},
		{"lowercase name", "jane doe", "JD", true},
		{"wrong order", "Jane Doe", "DJ", false},
		{"missing middle", "Mary Ann Smith", "MS", false},
		{"empty initials", "Jane Doe", "", false},
		{"empty name", "", "JD", false},
		{"accented", "Élodie Martin", "ÉM", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ValidateInitials(tt.legalName, tt.initials))
		})
	}
}
