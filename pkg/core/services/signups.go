package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/woodshed-orlando/kinkos/pkg/core/model"
	"github.com/woodshed-orlando/kinkos/pkg/core/policy"
	"github.com/woodshed-orlando/kinkos/pkg/db"
)

// SignupStore defines the database operations needed for shift signups
type SignupStore interface {
	GetShift(ctx context.Context, id string) (*model.Shift, error)
	ListShiftsFrom(ctx context.Context, from time.Time) ([]model.Shift, error)
	ListShiftSignups(ctx context.Context, shiftID string) ([]model.ShiftSignup, error)
	ListSignupsForShifts(ctx context.Context, shiftIDs []string) ([]model.ShiftSignup, error)
	ListMemberSignups(ctx context.Context, memberID string) ([]model.ShiftSignup, error)
	InsertSignup(ctx context.Context, signup *model.ShiftSignup) error
	CancelSignup(ctx context.Context, signupID string, at time.Time) error
}

// SignUp claims a spot on a shift for a member.
// Checks run in order: the shift exists, it has room, the member is not already on it.
func SignUp(ctx context.Context, store SignupStore, logger *zap.Logger, shiftID, memberID, notes string) (*model.ShiftSignup, error) {
	logger.Debug("Starting signUp", zap.String("shift_id", shiftID), zap.String("member_id", memberID))

	shift, err := store.GetShift(ctx, shiftID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, policy.ErrShiftNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch shift: %w", err)
	}

	signups, err := store.ListShiftSignups(ctx, shiftID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch signups: %w", err)
	}

	if err := policy.CheckSignUp(shift, signups, memberID); err != nil {
		logger.Info("Signup refused",
			zap.String("shift_id", shiftID),
			zap.String("member_id", memberID),
			zap.String("reason", err.Error()))
		return nil, err
	}

	signup := &model.ShiftSignup{
		ID:         newID(),
		ShiftID:    shiftID,
		MemberID:   memberID,
		SignedUpAt: clock().UTC(),
		Notes:      notes,
	}

	// The store re-checks both rules atomically; a concurrent writer may have won the race
	if err := store.InsertSignup(ctx, signup); err != nil {
		switch {
		case errors.Is(err, db.ErrNotFound):
			return nil, policy.ErrShiftNotFound
		case errors.Is(err, db.ErrCapacityReached):
			return nil, policy.ErrShiftFull
		case errors.Is(err, db.ErrConflict):
			return nil, policy.ErrAlreadySignedUp
		}
		return nil, fmt.Errorf("failed to insert signup: %w", err)
	}

	logger.Info("Member signed up for shift",
		zap.String("shift_id", shiftID),
		zap.String("member_id", memberID),
		zap.String("signup_id", signup.ID))

	return signup, nil
}

// CancelSignup releases the member's active signup on a shift. The row is kept with cancelled_at set.
func CancelSignup(ctx context.Context, store SignupStore, logger *zap.Logger, shiftID, memberID string) error {
	logger.Debug("Starting cancelSignup", zap.String("shift_id", shiftID), zap.String("member_id", memberID))

	signups, err := store.ListShiftSignups(ctx, shiftID)
	if err != nil {
		return fmt.Errorf("failed to fetch signups: %w", err)
	}

	signup := policy.FindActiveSignup(signups, memberID)
	if err := policy.CheckCancel(signup); err != nil {
		return err
	}

	if err := store.CancelSignup(ctx, signup.ID, clock().UTC()); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return policy.ErrSignupNotFound
		}
		return fmt.Errorf("failed to cancel signup: %w", err)
	}

	logger.Info("Member cancelled shift signup",
		zap.String("shift_id", shiftID),
		zap.String("member_id", memberID),
		zap.String("signup_id", signup.ID))

	return nil
}

// ListShifts returns upcoming shifts as seen by memberID, narrowed by filter
// ("all", "my-shifts" or "available"; empty means all).
func ListShifts(ctx context.Context, store SignupStore, logger *zap.Logger, memberID, filter string) ([]model.ShiftSummary, error) {
	switch filter {
	case "":
		filter = policy.FilterAll
	case policy.FilterAll, policy.FilterMyShifts, policy.FilterAvailable:
	default:
		return nil, fmt.Errorf("%w: unknown filter %q", policy.ErrInvalidRequest, filter)
	}

	summaries, err := upcomingShiftSummaries(ctx, store, memberID)
	if err != nil {
		return nil, err
	}

	filtered := policy.FilterShifts(summaries, filter)
	logger.Debug("Listed shifts",
		zap.String("filter", filter),
		zap.Int("upcoming", len(summaries)),
		zap.Int("returned", len(filtered)))

	return filtered, nil
}

func upcomingShiftSummaries(ctx context.Context, store SignupStore, memberID string) ([]model.ShiftSummary, error) {
	shifts, err := store.ListShiftsFrom(ctx, clock().UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch shifts: %w", err)
	}
	if len(shifts) == 0 {
		return []model.ShiftSummary{}, nil
	}

	ids := make([]string, len(shifts))
	for i, s := range shifts {
		ids[i] = s.ID
	}

	signups, err := store.ListSignupsForShifts(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch signups: %w", err)
	}

	byShift := make(map[string][]model.ShiftSignup)
	for _, s := range signups {
		byShift[s.ShiftID] = append(byShift[s.ShiftID], s)
	}

	summaries := make([]model.ShiftSummary, len(shifts))
	for i, shift := range shifts {
		summaries[i] = model.ShiftSummary{
			Shift:         shift,
			ActiveSignups: policy.ActiveSignupCount(byShift[shift.ID]),
			SignedUp:      memberID != "" && policy.FindActiveSignup(byShift[shift.ID], memberID) != nil,
		}
	}

	return summaries, nil
}

// MySignup is an active signup together with its shift
type MySignup struct {
	Signup model.ShiftSignup `json:"signup"`
	Shift  model.Shift       `json:"shift"`
}

// MySignups returns the member's active signups for upcoming shifts, soonest first
func MySignups(ctx context.Context, store SignupStore, logger *zap.Logger, memberID string) ([]MySignup, error) {
	signups, err := store.ListMemberSignups(ctx, memberID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch member signups: %w", err)
	}

	now := clock().UTC()
	result := []MySignup{}
	for _, su := range signups {
		if !su.IsActive() {
			continue
		}

		shift, err := store.GetShift(ctx, su.ShiftID)
		if errors.Is(err, db.ErrNotFound) {
			logger.Warn("Signup references missing shift",
				zap.String("signup_id", su.ID),
				zap.String("shift_id", su.ShiftID))
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to fetch shift %s: %w", su.ShiftID, err)
		}

		if shift.StartTime.Before(now) {
			continue
		}
		result = append(result, MySignup{Signup: su, Shift: *shift})
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Shift.StartTime.Before(result[j].Shift.StartTime)
	})

	return result, nil
}
