package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
	"go.uber.org/zap"

	"github.com/woodshed-orlando/kinkos/internal/config"
	"github.com/woodshed-orlando/kinkos/pkg/core/model"
	"github.com/woodshed-orlando/kinkos/pkg/core/policy"
)

// MaxRecurringShifts caps how many shifts one recurrence rule may create
const MaxRecurringShifts = 52

// ShiftStore defines the database operations needed to schedule shifts
type ShiftStore interface {
	InsertShifts(ctx context.Context, shifts []model.Shift) error
}

// ShiftRequest is the admin form for a new shift
type ShiftRequest struct {
	Title         string    `json:"title" validate:"required,max=120"`
	Description   string    `json:"description" validate:"max=2000"`
	Location      string    `json:"location" validate:"max=200"`
	StartTime     time.Time `json:"start_time" validate:"required"`
	EndTime       time.Time `json:"end_time" validate:"required"`
	MinVolunteers int       `json:"min_volunteers" validate:"min=1"`
	MaxVolunteers int       `json:"max_volunteers" validate:"min=1"`
	LeadVolunteer string    `json:"lead_volunteer"`
	// SkipHolidays drops recurring occurrences that fall on US federal holidays
	SkipHolidays  bool      `json:"skip_holidays"`
}

func (r *ShiftRequest) normalise(cfg *config.Config) error {
	r.Title = strings.TrimSpace(r.Title)
	r.Location = strings.TrimSpace(r.Location)
	if r.Location == "" {
		r.Location = cfg.DefaultShiftLocation
	}
	if r.MinVolunteers == 0 {
		r.MinVolunteers = 1
	}

	if err := validateRequest(*r); err != nil {
		return err
	}
	if !r.EndTime.After(r.StartTime) {
		return fmt.Errorf("%w: end_time must be after start_time", policy.ErrInvalidRequest)
	}
	if r.MaxVolunteers < r.MinVolunteers {
		return fmt.Errorf("%w: max_volunteers must be at least min_volunteers", policy.ErrInvalidRequest)
	}
	return nil
}

func (r ShiftRequest) shiftAt(start time.Time, createdBy string, now time.Time) model.Shift {
	return model.Shift{
		ID:            newID(),
		Title:         r.Title,
		Description:   r.Description,
		Location:      r.Location,
		StartTime:     start.UTC(),
		EndTime:       start.Add(r.EndTime.Sub(r.StartTime)).UTC(),
		MinVolunteers: r.MinVolunteers,
		MaxVolunteers: r.MaxVolunteers,
		Status:        model.ShiftOpen,
		CreatedBy:     createdBy,
		LeadVolunteer: r.LeadVolunteer,
		CreatedAt:     now,
	}
}

// CreateShift schedules a single open shift
func CreateShift(ctx context.Context, store ShiftStore, cfg *config.Config, logger *zap.Logger, createdBy string, req ShiftRequest) (*model.Shift, error) {
	if err := req.normalise(cfg); err != nil {
		return nil, err
	}

	shift := req.shiftAt(req.StartTime, createdBy, clock().UTC())
	if err := store.InsertShifts(ctx, []model.Shift{shift}); err != nil {
		return nil, fmt.Errorf("failed to insert shift: %w", err)
	}

	logger.Info("Shift created",
		zap.String("shift_id", shift.ID),
		zap.String("title", shift.Title),
		zap.Time("start", shift.StartTime))

	return &shift, nil
}

// CreateRecurringShifts repeats the shift template at every occurrence of an
// RFC 5545 recurrence rule (e.g. "FREQ=WEEKLY;BYDAY=FR;COUNT=8"), starting at
// the template's start time. At most MaxRecurringShifts are created.
func CreateRecurringShifts(
	ctx context.Context,
	store ShiftStore,
	cfg *config.Config,
	logger *zap.Logger,
	createdBy string,
	req ShiftRequest,
	recurrence string,
) ([]model.Shift, error) {
	if err := req.normalise(cfg); err != nil {
		return nil, err
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	// Expanded in venue time so occurrences keep their wall-clock start across DST
	occurrences, err := expandRecurrence(recurrence, req.StartTime.In(loc), MaxRecurringShifts)
	if err != nil {
		return nil, err
	}
	if req.SkipHolidays {
		kept := withoutHolidays(occurrences, loc)
		if len(kept) == 0 {
			return nil, fmt.Errorf("%w: every occurrence falls on a holiday", policy.ErrInvalidRequest)
		}
		logger.Debug("Skipped holiday occurrences", zap.Int("skipped", len(occurrences)-len(kept)))
		occurrences = kept
	}

	now := clock().UTC()
	shifts := make([]model.Shift, len(occurrences))
	for i, start := range occurrences {
		shifts[i] = req.shiftAt(start, createdBy, now)
	}

	if err := store.InsertShifts(ctx, shifts); err != nil {
		return nil, fmt.Errorf("failed to insert shifts: %w", err)
	}

	logger.Info("Recurring shifts created",
		zap.String("title", req.Title),
		zap.String("rrule", recurrence),
		zap.Int("count", len(shifts)))

	return shifts, nil
}

// expandRecurrence lists up to limit occurrences of rule starting at start
func expandRecurrence(recurrence string, start time.Time, limit int) ([]time.Time, error) {
	opt, err := rrule.StrToROption(strings.TrimPrefix(strings.TrimSpace(recurrence), "RRULE:"))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid recurrence rule: %v", policy.ErrInvalidRequest, err)
	}
	// Unset BYDAY and BYHOUR fields are derived from the start time
	opt.Dtstart = start
	rule, err := rrule.NewRRule(*opt)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid recurrence rule: %v", policy.ErrInvalidRequest, err)
	}

	var occurrences []time.Time
	next := rule.Iterator()
	for len(occurrences) < limit {
		t, ok := next()
		if !ok {
			break
		}
		occurrences = append(occurrences, t)
	}

	if len(occurrences) == 0 {
		return nil, fmt.Errorf("%w: recurrence rule produces no shifts", policy.ErrInvalidRequest)
	}
	return occurrences, nil
}

// RosterStore defines the database operations needed to build the roster
type RosterStore interface {
	ListShiftsFrom(ctx context.Context, from time.Time) ([]model.Shift, error)
	ListSignupsForShifts(ctx context.Context, shiftIDs []string) ([]model.ShiftSignup, error)
	ListMembersByIDs(ctx context.Context, ids []string) ([]model.Member, error)
}

// RosterRow is one shift on the published roster
type RosterRow struct {
	Date       string   // Format: "Fri Oct 16 2026"
	Time       string   // Format: "19:00-23:00"
	Title      string
	Location   string
	Lead       string   // Display name of the lead volunteer
	Volunteers []string // Display names of signed-up volunteers
	SpotsLeft  int
}

// Roster is the upcoming schedule ready for publishing
type Roster struct {
	Start time.Time
	End   time.Time
	Rows  []RosterRow
}

// PublishRoster builds the roster of shifts in the next `weeks` weeks with the
// names of everyone signed up, in the venue's local time
func PublishRoster(ctx context.Context, store RosterStore, logger *zap.Logger, weeks int, loc *time.Location) (*Roster, error) {
	if weeks < 1 {
		return nil, fmt.Errorf("%w: weeks must be at least 1", policy.ErrInvalidRequest)
	}
	if loc == nil {
		loc = time.Local
	}

	start := clock().UTC()
	end := start.AddDate(0, 0, 7*weeks)
	logger.Debug("Starting publishRoster", zap.Time("start", start), zap.Time("end", end))

	shifts, err := store.ListShiftsFrom(ctx, start)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch shifts: %w", err)
	}

	var inWindow []model.Shift
	for _, s := range shifts {
		if s.StartTime.Before(end) && s.Status != model.ShiftCancelled {
			inWindow = append(inWindow, s)
		}
	}

	roster := &Roster{Start: start, End: end, Rows: []RosterRow{}}
	if len(inWindow) == 0 {
		logger.Info("No shifts to publish")
		return roster, nil
	}

	shiftIDs := make([]string, len(inWindow))
	for i, s := range inWindow {
		shiftIDs[i] = s.ID
	}

	signups, err := store.ListSignupsForShifts(ctx, shiftIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch signups: %w", err)
	}

	memberIDs := []string{}
	byShift := make(map[string][]model.ShiftSignup)
	for _, su := range signups {
		if !su.IsActive() {
			continue
		}
		byShift[su.ShiftID] = append(byShift[su.ShiftID], su)
		memberIDs = append(memberIDs, su.MemberID)
	}
	for _, s := range inWindow {
		if s.LeadVolunteer != "" {
			memberIDs = append(memberIDs, s.LeadVolunteer)
		}
	}

	members, err := store.ListMembersByIDs(ctx, memberIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch members: %w", err)
	}
	names := make(map[string]string, len(members))
	for _, m := range members {
		names[m.ID] = m.DisplayName
	}

	for _, s := range inWindow {
		active := byShift[s.ID]
		sort.Slice(active, func(i, j int) bool { return active[i].SignedUpAt.Before(active[j].SignedUpAt) })

		volunteers := make([]string, 0, len(active))
		for _, su := range active {
			if su.MemberID == s.LeadVolunteer {
				continue
			}
			volunteers = append(volunteers, names[su.MemberID])
		}

		startLocal, endLocal := s.StartTime.In(loc), s.EndTime.In(loc)
		roster.Rows = append(roster.Rows, RosterRow{
			Date:       startLocal.Format("Mon Jan 02 2006"),
			Time:       startLocal.Format("15:04") + "-" + endLocal.Format("15:04"),
			Title:      s.Title,
			Location:   s.Location,
			Lead:       names[s.LeadVolunteer],
			Volunteers: volunteers,
			SpotsLeft:  max(s.Capacity()-len(active), 0),
		})
	}

	logger.Debug("Roster built", zap.Int("rows", len(roster.Rows)))
	return roster, nil
}
