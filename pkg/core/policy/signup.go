package policy

import "github.com/woodshed-orlando/kinkos/pkg/core/model"

// ActiveSignupCount counts signups that have not been cancelled
func ActiveSignupCount(signups []model.ShiftSignup) int {
	count := 0
	for _, s := range signups {
		if s.IsActive() {
			count++
		}
	}
	return count
}

// FindActiveSignup returns the member's active signup, or nil if there is none
func FindActiveSignup(signups []model.ShiftSignup, memberID string) *model.ShiftSignup {
	for i := range signups {
		if signups[i].MemberID == memberID && signups[i].IsActive() {
			return &signups[i]
		}
	}
	return nil
}

// CheckSignUp decides whether a member may join a shift.
// Capacity is checked before duplication, so a member already on a full shift sees "full".
func CheckSignUp(shift *model.Shift, signups []model.ShiftSignup, memberID string) error {
	if shift == nil {
		return ErrShiftNotFound
	}
	if ActiveSignupCount(signups) >= shift.Capacity() {
		return ErrShiftFull
	}
	if FindActiveSignup(signups, memberID) != nil {
		return ErrAlreadySignedUp
	}
	return nil
}

// CheckCancel decides whether a signup may be cancelled
func CheckCancel(signup *model.ShiftSignup) error {
	if signup == nil || !signup.IsActive() {
		return ErrSignupNotFound
	}
	return nil
}

// FilterShifts applies the schedule filters: "my-shifts" keeps shifts the member
// holds, "available" keeps shifts with spots left, anything else keeps everything.
func FilterShifts(shifts []model.ShiftSummary, filter string) []model.ShiftSummary {
	switch filter {
	case FilterMyShifts:
		var mine []model.ShiftSummary
		for _, s := range shifts {
			if s.SignedUp {
				mine = append(mine, s)
			}
		}
		return mine
	case FilterAvailable:
		var open []model.ShiftSummary
		for _, s := range shifts {
			if s.ActiveSignups < s.Capacity() {
				open = append(open, s)
			}
		}
		return open
	default:
		return shifts
	}
}

const (
	FilterAll       = "all"
	FilterMyShifts  = "my-shifts"
	FilterAvailable = "available"
)
