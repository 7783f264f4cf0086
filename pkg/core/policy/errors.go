package policy

import "errors"

// User-facing failures. The messages are shown to members verbatim.
var (
	ErrShiftNotFound        = errors.New("Shift not found")
	ErrShiftFull            = errors.New("This shift is full")
	ErrAlreadySignedUp      = errors.New("You are already signed up for this shift")
	ErrSignupNotFound       = errors.New("Signup not found")
	ErrMemberNotFound       = errors.New("Member not found")
	ErrAlreadyCheckedIn     = errors.New("Member is already checked in")
	ErrCheckInNotFound      = errors.New("Check-in not found")
	ErrAnnouncementNotFound = errors.New("Announcement not found")
	ErrForbidden            = errors.New("You do not have permission to do that")
	ErrInvalidRequest       = errors.New("Invalid request")
)

// CheckInDeniedError carries the reason a check-in was refused
type CheckInDeniedError struct {
	Reason string
}

func (e *CheckInDeniedError) Error() string {
	return e.Reason
}
