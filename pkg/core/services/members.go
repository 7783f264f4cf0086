package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/woodshed-orlando/kinkos/pkg/core/lifecycle"
	"github.com/woodshed-orlando/kinkos/pkg/core/model"
	"github.com/woodshed-orlando/kinkos/pkg/core/policy"
	"github.com/woodshed-orlando/kinkos/pkg/db"
)

const memberSearchLimit = 50

// MemberStore defines the database operations needed for the member directory and admin
type MemberStore interface {
	GetMember(ctx context.Context, id string) (*model.Member, error)
	SearchMembers(ctx context.Context, query string, limit int) ([]model.Member, error)
	ListContacts(ctx context.Context) ([]model.Member, error)
	UpdateMemberProfile(ctx context.Context, id string, update model.ProfileUpdate, at time.Time) error
	SetMemberRole(ctx context.Context, id string, role model.Role, at time.Time) error
	UpdateMemberStatus(ctx context.Context, id string, from, to model.Status, at time.Time) (bool, error)
	CountMembers(ctx context.Context, status model.Status) (int, error)
	CountShiftsFrom(ctx context.Context, from time.Time, status model.ShiftStatus) (int, error)
	LatestWaivers(ctx context.Context, memberIDs []string) (map[string]model.Waiver, error)
}

// MemberSearchResult is a member with the state of their latest waiver
type MemberSearchResult struct {
	model.Member
	HasValidWaiver   bool       `json:"has_valid_waiver"`
	WaiverValidUntil *time.Time `json:"waiver_valid_until,omitempty"`
}

// SearchMembers finds members by display name, legal name or email for the front desk
func SearchMembers(ctx context.Context, store MemberStore, logger *zap.Logger, query string) ([]MemberSearchResult, error) {
	members, err := store.SearchMembers(ctx, strings.TrimSpace(query), memberSearchLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to search members: %w", err)
	}

	ids := make([]string, len(members))
	for i, m := range members {
		ids[i] = m.ID
	}

	waivers, err := store.LatestWaivers(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch waivers: %w", err)
	}

	now := clock().UTC()
	results := make([]MemberSearchResult, len(members))
	for i, m := range members {
		results[i] = MemberSearchResult{Member: m}
		if w, ok := waivers[m.ID]; ok {
			validUntil := w.ValidUntil
			results[i].WaiverValidUntil = &validUntil
			results[i].HasValidWaiver = policy.HasValidWaiver(&w, now)
		}
	}

	logger.Debug("Searched members", zap.String("query", query), zap.Int("results", len(results)))
	return results, nil
}

// Contacts returns the member directory with private fields hidden
func Contacts(ctx context.Context, store MemberStore) ([]model.Contact, error) {
	members, err := store.ListContacts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch contacts: %w", err)
	}

	contacts := make([]model.Contact, len(members))
	for i, m := range members {
		contacts[i] = model.ContactFor(m)
	}
	return contacts, nil
}

// UpdateProfile validates and saves the member's own profile fields
func UpdateProfile(ctx context.Context, store MemberStore, logger *zap.Logger, memberID string, update model.ProfileUpdate) (*model.Member, error) {
	update.DisplayName = strings.TrimSpace(update.DisplayName)
	if err := validateRequest(update); err != nil {
		return nil, err
	}

	if err := store.UpdateMemberProfile(ctx, memberID, update, clock().UTC()); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, policy.ErrMemberNotFound
		}
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}

	logger.Info("Profile updated", zap.String("member_id", memberID))

	member, err := store.GetMember(ctx, memberID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch member: %w", err)
	}
	return member, nil
}

// SetRole changes a member's role. Admins and owners may change roles, but only
// an owner may grant the owner role or take it away.
func SetRole(ctx context.Context, store MemberStore, logger *zap.Logger, actor *model.Member, memberID string, role model.Role) (*model.Member, error) {
	if !role.IsValid() {
		return nil, fmt.Errorf("%w: unknown role %q", policy.ErrInvalidRequest, role)
	}
	if actor == nil || !actor.Role.IsAdmin() {
		return nil, policy.ErrForbidden
	}

	target, err := store.GetMember(ctx, memberID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, policy.ErrMemberNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch member: %w", err)
	}

	if (role == model.RoleOwner || target.Role == model.RoleOwner) && actor.Role != model.RoleOwner {
		return nil, policy.ErrForbidden
	}

	if target.Role == role {
		return target, nil
	}

	if err := store.SetMemberRole(ctx, memberID, role, clock().UTC()); err != nil {
		return nil, fmt.Errorf("failed to set role: %w", err)
	}

	logger.Info("Member role changed",
		zap.String("actor_id", actor.ID),
		zap.String("member_id", memberID),
		zap.String("from", string(target.Role)),
		zap.String("to", string(role)))

	target.Role = role
	return target, nil
}

// TransitionMember moves a member through the status lifecycle on behalf of an admin
func TransitionMember(ctx context.Context, store MemberStore, logger *zap.Logger, actor *model.Member, memberID string, transition lifecycle.Transition) (*model.Member, error) {
	if actor == nil || !actor.Role.IsAdmin() {
		return nil, policy.ErrForbidden
	}
	if !transition.IsValid() {
		return nil, fmt.Errorf("%w: unknown transition %q", policy.ErrInvalidRequest, transition)
	}

	member, err := store.GetMember(ctx, memberID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, policy.ErrMemberNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch member: %w", err)
	}

	to, changed, err := lifecycle.Fire(member.Status, transition)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", policy.ErrInvalidRequest, err)
	}
	if !changed {
		return member, nil
	}

	ok, err := store.UpdateMemberStatus(ctx, member.ID, member.Status, to, clock().UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to update member status: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: member status changed concurrently, reload and retry", policy.ErrInvalidRequest)
	}

	logger.Info("Member status changed",
		zap.String("actor_id", actor.ID),
		zap.String("member_id", member.ID),
		zap.String("transition", string(transition)),
		zap.String("from", string(member.Status)),
		zap.String("to", string(to)))

	return store.GetMember(ctx, member.ID)
}

// AdminStats is the dashboard summary
type AdminStats struct {
	TotalMembers       int `json:"total_members"`
	ActiveMembers      int `json:"active_members"`
	UpcomingShifts     int `json:"upcoming_shifts"`
	OpenUpcomingShifts int `json:"open_upcoming_shifts"`
}

// GetAdminStats counts members and upcoming shifts
func GetAdminStats(ctx context.Context, store MemberStore) (*AdminStats, error) {
	var stats AdminStats
	var err error

	if stats.TotalMembers, err = store.CountMembers(ctx, ""); err != nil {
		return nil, fmt.Errorf("failed to count members: %w", err)
	}
	if stats.ActiveMembers, err = store.CountMembers(ctx, model.StatusActive); err != nil {
		return nil, fmt.Errorf("failed to count active members: %w", err)
	}

	now := clock().UTC()
	if stats.UpcomingShifts, err = store.CountShiftsFrom(ctx, now, ""); err != nil {
		return nil, fmt.Errorf("failed to count shifts: %w", err)
	}
	if stats.OpenUpcomingShifts, err = store.CountShiftsFrom(ctx, now, model.ShiftOpen); err != nil {
		return nil, fmt.Errorf("failed to count open shifts: %w", err)
	}

	return &stats, nil
}

// RegistrationStore defines the database operations needed to enrol members
type RegistrationStore interface {
	GetMemberByAuthID(ctx context.Context, authID string) (*model.Member, error)
	InsertMember(ctx context.Context, member *model.Member) error
}

// Registration is the identity a new member arrives with
type Registration struct {
	AuthID      string `json:"-" validate:"required"`
	Email       string `json:"email" validate:"required,email"`
	DisplayName string `json:"display_name" validate:"required,min=2,max=80"`
	LegalName   string `json:"legal_name" validate:"max=120"`
}

// RegisterMember enrols a new pending member for an authenticated identity.
// Registering an identity twice returns the existing member.
func RegisterMember(ctx context.Context, store RegistrationStore, logger *zap.Logger, reg Registration) (*model.Member, bool, error) {
	reg.DisplayName = strings.TrimSpace(reg.DisplayName)
	reg.Email = strings.TrimSpace(reg.Email)
	if err := validateRequest(reg); err != nil {
		return nil, false, err
	}

	existing, err := store.GetMemberByAuthID(ctx, reg.AuthID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, db.ErrNotFound) {
		return nil, false, fmt.Errorf("failed to look up member: %w", err)
	}

	now := clock().UTC()
	member := &model.Member{
		ID:          newID(),
		AuthID:      reg.AuthID,
		Email:       reg.Email,
		DisplayName: reg.DisplayName,
		LegalName:   strings.TrimSpace(reg.LegalName),
		Role:        model.RoleMember,
		Status:      model.StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := store.InsertMember(ctx, member); err != nil {
		if errors.Is(err, db.ErrConflict) {
			// Lost a race with a concurrent registration of the same identity
			existing, getErr := store.GetMemberByAuthID(ctx, reg.AuthID)
			if getErr == nil {
				return existing, false, nil
			}
		}
		return nil, false, fmt.Errorf("failed to insert member: %w", err)
	}

	logger.Info("Member registered", zap.String("member_id", member.ID), zap.String("email", member.Email))
	return member, true, nil
}
