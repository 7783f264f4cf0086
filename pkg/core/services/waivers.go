package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/woodshed-orlando/kinkos/internal/config"
	"github.com/woodshed-orlando/kinkos/pkg/core/lifecycle"
	"github.com/woodshed-orlando/kinkos/pkg/core/model"
	"github.com/woodshed-orlando/kinkos/pkg/core/policy"
	"github.com/woodshed-orlando/kinkos/pkg/db"
)

// WaiverStore defines the database operations needed for waivers
type WaiverStore interface {
	GetMember(ctx context.Context, id string) (*model.Member, error)
	InsertWaiver(ctx context.Context, waiver *model.Waiver) error
	UpdateMemberStatus(ctx context.Context, id string, from, to model.Status, at time.Time) (bool, error)
}

// WaiverResult is the outcome of signing a waiver
type WaiverResult struct {
	Waiver        model.Waiver `json:"waiver"`
	InitialsMatch bool         `json:"initials_match"`
	Activated     bool         `json:"activated"`
	Status        model.Status `json:"status"`
}

// SignWaiver records a signed waiver valid for one year and fires the
// complete_waiver transition, which activates pending members only.
// Initials that do not match the legal name are reported but accepted.
func SignWaiver(ctx context.Context, store WaiverStore, logger *zap.Logger, sub policy.WaiverSubmission) (*WaiverResult, error) {
	logger.Debug("Starting signWaiver", zap.String("member_id", sub.MemberID))

	sub.Initials = strings.TrimSpace(sub.Initials)
	sub.Signature = strings.TrimSpace(sub.Signature)
	if err := validateRequest(sub); err != nil {
		return nil, err
	}

	member, err := store.GetMember(ctx, sub.MemberID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, policy.ErrMemberNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch member: %w", err)
	}

	initialsMatch := policy.ValidateInitials(member.LegalName, sub.Initials)
	if !initialsMatch {
		logger.Warn("Waiver initials do not match legal name",
			zap.String("member_id", member.ID),
			zap.String("initials", sub.Initials))
	}

	signed := clock().UTC()
	waiver := model.Waiver{
		ID:                     newID(),
		MemberID:               member.ID,
		Initials:               strings.ToUpper(sub.Initials),
		Signature:              sub.Signature,
		SignedDate:             signed,
		ValidUntil:             policy.WaiverValidUntil(signed),
		BylawsAgreed:           sub.BylawsAgreed,
		LiabilityReleaseAgreed: sub.LiabilityReleaseAgreed,
		DungeonRulesAgreed:     sub.DungeonRulesAgreed,
		CodeOfConductAgreed:    sub.CodeOfConductAgreed,
	}

	if err := store.InsertWaiver(ctx, &waiver); err != nil {
		return nil, fmt.Errorf("failed to insert waiver: %w", err)
	}

	result := &WaiverResult{
		Waiver:        waiver,
		InitialsMatch: initialsMatch,
		Status:        member.Status,
	}

	to, changed, err := lifecycle.Fire(member.Status, lifecycle.CompleteWaiver)
	if err != nil {
		return nil, err
	}
	if changed {
		// Conditional on the status read above, so a concurrent suspension wins
		ok, err := store.UpdateMemberStatus(ctx, member.ID, member.Status, to, signed)
		if err != nil {
			return nil, fmt.Errorf("failed to activate member: %w", err)
		}
		if ok {
			result.Activated = true
			result.Status = to
			logger.Info("Member activated by waiver", zap.String("member_id", member.ID))
		}
	}

	logger.Info("Waiver signed",
		zap.String("member_id", member.ID),
		zap.String("waiver_id", waiver.ID),
		zap.Time("valid_until", waiver.ValidUntil),
		zap.Bool("initials_match", initialsMatch))

	return result, nil
}

// WaiverReminderStore defines the database operations needed for waiver reminders
type WaiverReminderStore interface {
	ListLatestWaiversExpiring(ctx context.Context, from, to time.Time) ([]model.Waiver, error)
	ListMembersByIDs(ctx context.Context, ids []string) ([]model.Member, error)
}

// ReminderSent represents a member who was successfully sent a reminder
type ReminderSent struct {
	MemberID    string
	DisplayName string
	Email       string
	ValidUntil  time.Time
}

// SendWaiverReminders emails active members whose latest waiver expires within
// cfg.WaiverReminderDays. Returns members who were reminded and those where sending failed.
func SendWaiverReminders(
	ctx context.Context,
	store WaiverReminderStore,
	gmailClient GmailClient,
	cfg *config.Config,
	logger *zap.Logger,
) ([]ReminderSent, []FailedEmail, error) {
	now := clock().UTC()
	until := now.AddDate(0, 0, cfg.WaiverReminderDays)
	logger.Debug("Starting sendWaiverReminders", zap.Time("until", until))

	waivers, err := store.ListLatestWaiversExpiring(ctx, now, until)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch expiring waivers: %w", err)
	}
	logger.Debug("Found expiring waivers", zap.Int("count", len(waivers)))

	if len(waivers) == 0 {
		logger.Info("No waivers expiring soon")
		return []ReminderSent{}, []FailedEmail{}, nil
	}

	ids := make([]string, len(waivers))
	for i, w := range waivers {
		ids[i] = w.MemberID
	}

	members, err := store.ListMembersByIDs(ctx, ids)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch members: %w", err)
	}

	membersByID := make(map[string]model.Member, len(members))
	for _, m := range members {
		membersByID[m.ID] = m
	}

	remindersSent := []ReminderSent{}
	failedEmails := []FailedEmail{}
	attempted := 0

	for _, w := range waivers {
		member, exists := membersByID[w.MemberID]
		if !exists {
			logger.Warn("Waiver references missing member", zap.String("member_id", w.MemberID))
			continue
		}

		if member.Status != model.StatusActive || member.Email == "" {
			logger.Debug("Skipping member",
				zap.String("member_id", member.ID),
				zap.String("status", string(member.Status)))
			continue
		}

		if !policy.IsWaiverExpiringSoon(w.ValidUntil, now, cfg.WaiverReminderDays) {
			continue
		}

		attempted++
		subject := fmt.Sprintf("Your waiver expires on %s", w.ValidUntil.Format("Mon Jan 02 2006"))
		body := fmt.Sprintf("Hey %s\n\nYour annual waiver expires on %s. Please sign a new one before your next visit so the front desk can check you in.\n\nThanks\nThe Woodshed team\n",
			member.DisplayName, w.ValidUntil.Format("Monday, January 2 2006"))

		logger.Info("Sending waiver reminder",
			zap.String("member_id", member.ID),
			zap.String("email", member.Email))

		if err := gmailClient.SendEmail(member.Email, subject, body); err != nil {
			logger.Warn("Failed to send waiver reminder",
				zap.String("member_id", member.ID),
				zap.String("email", member.Email),
				zap.Error(err))

			failedEmails = append(failedEmails, FailedEmail{
				MemberID:    member.ID,
				DisplayName: member.DisplayName,
				Email:       member.Email,
				Error:       err.Error(),
			})
			continue
		}

		remindersSent = append(remindersSent, ReminderSent{
			MemberID:    member.ID,
			DisplayName: member.DisplayName,
			Email:       member.Email,
			ValidUntil:  w.ValidUntil,
		})
	}

	if attempted > 0 && len(failedEmails) == attempted {
		return nil, nil, fmt.Errorf("all %d waiver reminder send attempts failed", attempted)
	}

	logger.Debug("Send waiver reminders completed",
		zap.Int("reminders_sent", len(remindersSent)),
		zap.Int("reminders_failed", len(failedEmails)))

	return remindersSent, failedEmails, nil
}
