package db

import (
	"context"
	"errors"
	"time"

	"github.com/woodshed-orlando/kinkos/pkg/core/model"
)

// Store errors. Implementations return these (possibly wrapped) so services can
// translate them into user-facing messages.
var (
	ErrNotFound        = errors.New("record not found")
	ErrConflict        = errors.New("conflicting record exists")
	ErrCapacityReached = errors.New("capacity reached")
)

// MemberStore defines the interface for member database operations
type MemberStore interface {
	GetMember(ctx context.Context, id string) (*model.Member, error)
	GetMemberByAuthID(ctx context.Context, authID string) (*model.Member, error)
	InsertMember(ctx context.Context, member *model.Member) error
	SearchMembers(ctx context.Context, query string, limit int) ([]model.Member, error)
	ListContacts(ctx context.Context) ([]model.Member, error)
	ListMembersByIDs(ctx context.Context, ids []string) ([]model.Member, error)
	UpdateMemberProfile(ctx context.Context, id string, update model.ProfileUpdate, at time.Time) error
	SetMemberRole(ctx context.Context, id string, role model.Role, at time.Time) error
	// UpdateMemberStatus moves a member from one status to another. It reports
	// false without error if the member was no longer in the from status.
	UpdateMemberStatus(ctx context.Context, id string, from, to model.Status, at time.Time) (bool, error)
	// CountMembers counts members, optionally restricted to one status (empty = all)
	CountMembers(ctx context.Context, status model.Status) (int, error)
}

// ShiftStore defines the interface for shift database operations
type ShiftStore interface {
	GetShift(ctx context.Context, id string) (*model.Shift, error)
	// ListShiftsFrom returns shifts starting at or after from, ordered by start time
	ListShiftsFrom(ctx context.Context, from time.Time) ([]model.Shift, error)
	InsertShifts(ctx context.Context, shifts []model.Shift) error
	// CountShiftsFrom counts shifts starting at or after from, optionally with one status (empty = all)
	CountShiftsFrom(ctx context.Context, from time.Time, status model.ShiftStatus) (int, error)
}

// SignupStore defines the interface for shift signup database operations
type SignupStore interface {
	ListShiftSignups(ctx context.Context, shiftID string) ([]model.ShiftSignup, error)
	ListSignupsForShifts(ctx context.Context, shiftIDs []string) ([]model.ShiftSignup, error)
	ListMemberSignups(ctx context.Context, memberID string) ([]model.ShiftSignup, error)
	// InsertSignup re-checks capacity and duplication atomically with the insert.
	// Returns ErrNotFound for a missing shift, ErrCapacityReached when full and
	// ErrConflict when the member already holds an active signup.
	InsertSignup(ctx context.Context, signup *model.ShiftSignup) error
	// CancelSignup returns ErrNotFound unless the signup exists and is active
	CancelSignup(ctx context.Context, signupID string, at time.Time) error
}

// WaiverStore defines the interface for waiver database operations
type WaiverStore interface {
	InsertWaiver(ctx context.Context, waiver *model.Waiver) error
	// LatestWaiver returns the member's most recently signed waiver or ErrNotFound
	LatestWaiver(ctx context.Context, memberID string) (*model.Waiver, error)
	// LatestWaivers returns the most recent waiver per member for the given members
	LatestWaivers(ctx context.Context, memberIDs []string) (map[string]model.Waiver, error)
	// ListLatestWaiversExpiring returns each member's latest waiver whose valid_until falls in [from, to]
	ListLatestWaiversExpiring(ctx context.Context, from, to time.Time) ([]model.Waiver, error)
}

// CheckInStore defines the interface for check-in database operations
type CheckInStore interface {
	// InsertCheckIn re-checks the occupancy ceiling atomically with the insert when
	// the check-in counts toward capacity. Returns ErrCapacityReached when full and
	// ErrConflict when the member is already checked in.
	InsertCheckIn(ctx context.Context, checkIn *model.CheckIn, maxOccupancy int) error
	// CloseCheckIn returns ErrNotFound unless the check-in exists and is open
	CloseCheckIn(ctx context.Context, checkInID, checkedOutBy string, at time.Time) (*model.CheckIn, error)
	// CountOccupancy counts open check-ins that count toward capacity
	CountOccupancy(ctx context.Context) (int, error)
	// ListActiveCheckIns returns open check-ins, newest first
	ListActiveCheckIns(ctx context.Context) ([]model.CheckIn, error)
}

// AnnouncementStore defines the interface for announcement database operations
type AnnouncementStore interface {
	InsertAnnouncement(ctx context.Context, announcement *model.Announcement) error
	// ListVisibleAnnouncements returns published announcements inside their window at now
	ListVisibleAnnouncements(ctx context.Context, now time.Time) ([]model.Announcement, error)
	ListReadAnnouncementIDs(ctx context.Context, memberID string) ([]string, error)
	// MarkAnnouncementRead is idempotent; ErrNotFound if the announcement does not exist
	MarkAnnouncementRead(ctx context.Context, announcementID, memberID string, at time.Time) error
}

// ResourceStore defines the interface for resource database operations
type ResourceStore interface {
	// ListActiveResources returns active resources ordered by sort order then title
	ListActiveResources(ctx context.Context) ([]model.Resource, error)
}

// Database defines the interface for all database operations.
// Both the PostgreSQL-backed postgres.DB and the in-memory memstore.Store implement it.
type Database interface {
	MemberStore
	ShiftStore
	SignupStore
	WaiverStore
	CheckInStore
	AnnouncementStore
	ResourceStore
}
