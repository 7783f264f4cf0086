package policy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/woodshed-orlando/kinkos/pkg/core/model"
)

func cancelledAt(t time.Time) *time.Time {
	return &t
}

func TestCheckSignUp_ShiftFull(t *testing.T) {
	shift := &model.Shift{ID: "shift-1", MaxVolunteers: 2}
	signups := []model.ShiftSignup{
		{ID: "s1", ShiftID: "shift-1", MemberID: "alice"},
		{ID: "s2", ShiftID: "shift-1", MemberID: "bob"},
	}

	err := CheckSignUp(shift, signups, "carol")
	require.ErrorIs(t, err, ErrShiftFull)
	assert.Equal(t, "This shift is full", err.Error())
}

func TestCheckSignUp_CancelledSignupsFreeSpots(t *testing.T) {
	shift := &model.Shift{ID: "shift-1", MaxVolunteers: 2}
	signups := []model.ShiftSignup{
		{ID: "s1", MemberID: "alice"},
		{ID: "s2", MemberID: "bob", CancelledAt: cancelledAt(time.Now())},
	}

	assert.NoError(t, CheckSignUp(shift, signups, "carol"))
}

func TestCheckSignUp_AlreadySignedUp(t *testing.T) {
	shift := &model.Shift{ID: "shift-1", MaxVolunteers: 5}
	signups := []model.ShiftSignup{
		{ID: "s1", MemberID: "alice"},
	}

	err := CheckSignUp(shift, signups, "alice")
	require.ErrorIs(t, err, ErrAlreadySignedUp)
	assert.Equal(t, "You are already signed up for this shift", err.Error())
}

func TestCheckSignUp_FullTakesPrecedenceOverDuplicate(t *testing.T) {
	shift := &model.Shift{ID: "shift-1", MaxVolunteers: 1}
	signups := []model.ShiftSignup{
		{ID: "s1", MemberID: "alice"},
	}

	assert.ErrorIs(t, CheckSignUp(shift, signups, "alice"), ErrShiftFull)
}

func TestCheckSignUp_ResignAfterCancel(t *testing.T) {
	shift := &model.Shift{ID: "shift-1", MaxVolunteers: 3}
	signups := []model.ShiftSignup{
		{ID: "s1", MemberID: "alice", CancelledAt: cancelledAt(time.Now())},
	}

	assert.NoError(t, CheckSignUp(shift, signups, "alice"))
}

func TestCheckSignUp_MissingShift(t *testing.T) {
	assert.ErrorIs(t, CheckSignUp(nil, nil, "alice"), ErrShiftNotFound)
}

func TestCheckCancel(t *testing.T) {
	assert.ErrorIs(t, CheckCancel(nil), ErrSignupNotFound)
	assert.ErrorIs(t, CheckCancel(&model.ShiftSignup{CancelledAt: cancelledAt(time.Now())}), ErrSignupNotFound)
	assert.NoError(t, CheckCancel(&model.ShiftSignup{ID: "s1"}))
	assert.Equal(t, "Signup not found", ErrSignupNotFound.Error())
}

func TestFilterShifts(t *testing.T) {
	shifts := []model.ShiftSummary{
		{Shift: model.Shift{ID: "a", MaxVolunteers: 2}, ActiveSignups: 2, SignedUp: true},
		{Shift: model.Shift{ID: "b", MaxVolunteers: 3}, ActiveSignups: 1},
		{Shift: model.Shift{ID: "c", MaxVolunteers: 1}, ActiveSignups: 1},
	}

	tests := []struct {
		name     string
		filter   string
		expected []string
	}{
		{"all", FilterAll, []string{"a", "b", "c"}},
		{"unknown behaves as all", "", []string{"a", "b", "c"}},
		{"my shifts", FilterMyShifts, []string{"a"}},
		{"available", FilterAvailable, []string{"b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ids []string
			for _, s := range FilterShifts(shifts, tt.filter) {
				ids = append(ids, s.ID)
			}
			assert.Equal(t, tt.expected, ids)
		})
	}
}
