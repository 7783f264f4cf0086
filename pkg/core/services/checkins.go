package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/woodshed-orlando/kinkos/internal/config"
	"github.com/woodshed-orlando/kinkos/pkg/core/model"
	"github.com/woodshed-orlando/kinkos/pkg/core/policy"
	"github.com/woodshed-orlando/kinkos/pkg/db"
)

// CheckInStore defines the database operations needed at the front desk
type CheckInStore interface {
	GetMember(ctx context.Context, id string) (*model.Member, error)
	ListMembersByIDs(ctx context.Context, ids []string) ([]model.Member, error)
	LatestWaiver(ctx context.Context, memberID string) (*model.Waiver, error)
	InsertCheckIn(ctx context.Context, checkIn *model.CheckIn, maxOccupancy int) error
	CloseCheckIn(ctx context.Context, checkInID, checkedOutBy string, at time.Time) (*model.CheckIn, error)
	CountOccupancy(ctx context.Context) (int, error)
	ListActiveCheckIns(ctx context.Context) ([]model.CheckIn, error)
}

// CheckInRequest is a front-desk admission. CountsTowardCapacity defaults to true.
type CheckInRequest struct {
	MemberID             string `json:"member_id" validate:"required"`
	CheckInType          string `json:"check_in_type" validate:"omitempty,max=40"`
	CheckedInBy          string `json:"-"`
	CountsTowardCapacity *bool  `json:"counts_toward_capacity"`
}

// CheckInResult reports the admitted check-in and the occupancy after it
type CheckInResult struct {
	CheckIn             model.CheckIn `json:"check_in"`
	Occupancy           int           `json:"occupancy"`
	MaxOccupancy        int           `json:"max_occupancy"`
	ApproachingCapacity bool          `json:"approaching_capacity"`
}

// OccupancyStatus is the current headcount against the ceiling
type OccupancyStatus struct {
	Current             int  `json:"current"`
	Max                 int  `json:"max"`
	ApproachingCapacity bool `json:"approaching_capacity"`
}

// ActiveCheckIn is an open check-in with the member's display name
type ActiveCheckIn struct {
	model.CheckIn
	DisplayName string `json:"display_name"`
}

// CheckIn admits a member. Suspension, inactive membership, a missing or
// expired waiver and a full venue are refused with a *policy.CheckInDeniedError.
// Crossing the warning threshold alerts staff.
func CheckIn(
	ctx context.Context,
	store CheckInStore,
	notifier StaffNotifier,
	cfg *config.Config,
	logger *zap.Logger,
	req CheckInRequest,
) (*CheckInResult, error) {
	logger.Debug("Starting checkIn", zap.String("member_id", req.MemberID))

	if err := validateRequest(req); err != nil {
		return nil, err
	}

	counts := true
	if req.CountsTowardCapacity != nil {
		counts = *req.CountsTowardCapacity
	}
	checkInType := req.CheckInType
	if checkInType == "" {
		checkInType = model.CheckInTypeSocialVisit
	}

	member, err := store.GetMember(ctx, req.MemberID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, policy.ErrMemberNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch member: %w", err)
	}

	now := clock().UTC()

	waiver, err := store.LatestWaiver(ctx, member.ID)
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		return nil, fmt.Errorf("failed to fetch waiver: %w", err)
	}
	hasValidWaiver := policy.HasValidWaiver(waiver, now)

	occupancy, err := store.CountOccupancy(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count occupancy: %w", err)
	}

	// Staff and other non-counting visits never hit the ceiling
	effectiveOccupancy := occupancy
	if !counts {
		effectiveOccupancy = 0
	}

	decision := policy.CanCheckIn(member, hasValidWaiver, effectiveOccupancy, cfg.MaxOccupancy)
	if !decision.Allowed {
		logger.Info("Check-in refused",
			zap.String("member_id", member.ID),
			zap.String("status", string(member.Status)),
			zap.Bool("valid_waiver", hasValidWaiver),
			zap.Int("occupancy", occupancy),
			zap.String("reason", decision.Reason))
		return nil, &policy.CheckInDeniedError{Reason: decision.Reason}
	}

	checkIn := &model.CheckIn{
		ID:                   newID(),
		MemberID:             member.ID,
		CheckInType:          checkInType,
		CheckedInBy:          req.CheckedInBy,
		CountsTowardCapacity: counts,
		CheckInTime:          now,
	}

	if err := store.InsertCheckIn(ctx, checkIn, cfg.MaxOccupancy); err != nil {
		switch {
		case errors.Is(err, db.ErrConflict):
			return nil, policy.ErrAlreadyCheckedIn
		case errors.Is(err, db.ErrCapacityReached):
			full := policy.CanCheckIn(member, true, cfg.MaxOccupancy, cfg.MaxOccupancy)
			return nil, &policy.CheckInDeniedError{Reason: full.Reason}
		}
		return nil, fmt.Errorf("failed to insert check-in: %w", err)
	}

	after := occupancy
	if counts {
		after++
	}
	approaching := policy.IsApproachingCapacity(after, cfg.MaxOccupancy, cfg.CapacityWarningThreshold)

	logger.Info("Member checked in",
		zap.String("member_id", member.ID),
		zap.String("check_in_id", checkIn.ID),
		zap.String("type", checkInType),
		zap.Int("occupancy", after))

	if approaching && !policy.IsApproachingCapacity(occupancy, cfg.MaxOccupancy, cfg.CapacityWarningThreshold) {
		text := fmt.Sprintf("Occupancy is %d of %d. The venue is approaching capacity.", after, cfg.MaxOccupancy)
		if err := notifyStaff(ctx, notifier, text); err != nil {
			logger.Warn("Failed to notify staff of occupancy", zap.Int("occupancy", after), zap.Error(err))
		}
	}

	return &CheckInResult{
		CheckIn:             *checkIn,
		Occupancy:           after,
		MaxOccupancy:        cfg.MaxOccupancy,
		ApproachingCapacity: approaching,
	}, nil
}

// CheckOut closes an open check-in
func CheckOut(ctx context.Context, store CheckInStore, logger *zap.Logger, checkInID, checkedOutBy string) (*model.CheckIn, error) {
	checkIn, err := store.CloseCheckIn(ctx, checkInID, checkedOutBy, clock().UTC())
	if errors.Is(err, db.ErrNotFound) {
		return nil, policy.ErrCheckInNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to check out: %w", err)
	}

	logger.Info("Member checked out",
		zap.String("member_id", checkIn.MemberID),
		zap.String("check_in_id", checkIn.ID))

	return checkIn, nil
}

// Occupancy reports the current headcount against the configured ceiling
func Occupancy(ctx context.Context, store CheckInStore, cfg *config.Config) (*OccupancyStatus, error) {
	current, err := store.CountOccupancy(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count occupancy: %w", err)
	}

	return &OccupancyStatus{
		Current:             current,
		Max:                 cfg.MaxOccupancy,
		ApproachingCapacity: policy.IsApproachingCapacity(current, cfg.MaxOccupancy, cfg.CapacityWarningThreshold),
	}, nil
}

// ActiveCheckIns lists everyone currently inside, newest first
func ActiveCheckIns(ctx context.Context, store CheckInStore) ([]ActiveCheckIn, error) {
	checkIns, err := store.ListActiveCheckIns(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch active check-ins: %w", err)
	}

	ids := make([]string, len(checkIns))
	for i, c := range checkIns {
		ids[i] = c.MemberID
	}

	members, err := store.ListMembersByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch members: %w", err)
	}

	names := make(map[string]string, len(members))
	for _, m := range members {
		names[m.ID] = m.DisplayName
	}

	result := make([]ActiveCheckIn, len(checkIns))
	for i, c := range checkIns {
		result[i] = ActiveCheckIn{CheckIn: c, DisplayName: names[c.MemberID]}
	}
	return result, nil
}
