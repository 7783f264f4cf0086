package commands

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/woodshed-orlando/kinkos/pkg/core/model"
	"github.com/woodshed-orlando/kinkos/pkg/core/services"
)

// ListShiftsCmd creates the listShifts command
func ListShiftsCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "listShifts [member_id]",
		Short: "List upcoming shifts, optionally as seen by one member",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, _ := cmd.Flags().GetString("filter")
			var memberID string
			if len(args) > 0 {
				memberID = args[0]
			}

			store, err := app.Database()
			if err != nil {
				return err
			}
			loc, err := app.Cfg.Location()
			if err != nil {
				return err
			}

			shifts, err := services.ListShifts(app.Ctx, store, app.Logger, memberID, filter)
			if err != nil {
				return err
			}

			if len(shifts) == 0 {
				fmt.Println("No upcoming shifts.")
				return nil
			}

			fmt.Printf("\n%-36s  %-28s  %-24s  %s\n", "ID", "When", "Shift", "Volunteers")
			for _, s := range shifts {
				mark := " "
				if s.SignedUp {
					mark = "*"
				}
				spots := spotsTone(s.ActiveSignups, s.MinVolunteers, s.MaxVolunteers).
					render(fmt.Sprintf("%d/%d", s.ActiveSignups, s.MaxVolunteers))
				fmt.Printf("%-36s  %-28s  %-24s  %s %s\n",
					s.ID,
					formatShiftTime(s.StartTime, s.EndTime, loc),
					truncate(s.Title, 24),
					spots,
					mark,
				)
			}
			if memberID != "" {
				fmt.Println("\n  * = signed up")
			}
			fmt.Println()
			return nil
		},
	}

	cmd.Flags().String("filter", "all", "all, my-shifts or available")

	return cmd
}

// CreateShiftCmd creates the createShift command
func CreateShiftCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "createShift <title> <start>",
		Short: "Create a shift (start as YYYY-MM-DD HH:MM in venue time), optionally recurring",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			hours, _ := cmd.Flags().GetFloat64("hours")
			minVolunteers, _ := cmd.Flags().GetInt("min")
			maxVolunteers, _ := cmd.Flags().GetInt("max")
			location, _ := cmd.Flags().GetString("location")
			description, _ := cmd.Flags().GetString("description")
			lead, _ := cmd.Flags().GetString("lead")
			createdBy, _ := cmd.Flags().GetString("by")
			recurrence, _ := cmd.Flags().GetString("rrule")
			skipHolidays, _ := cmd.Flags().GetBool("skip-holidays")

			loc, err := app.Cfg.Location()
			if err != nil {
				return err
			}
			start, err := parseLocalTime(args[1], loc)
			if err != nil {
				return err
			}

			store, err := app.Database()
			if err != nil {
				return err
			}

			req := services.ShiftRequest{
				Title:         args[0],
				Description:   description,
				Location:      location,
				StartTime:     start,
				EndTime:       start.Add(time.Duration(hours * float64(time.Hour))),
				MinVolunteers: minVolunteers,
				MaxVolunteers: maxVolunteers,
				LeadVolunteer: lead,
				SkipHolidays:  skipHolidays,
			}

			var shifts []model.Shift
			if recurrence == "" {
				shift, err := services.CreateShift(app.Ctx, store, app.Cfg, app.Logger, createdBy, req)
				if err != nil {
					return err
				}
				shifts = []model.Shift{*shift}
			} else {
				shifts, err = services.CreateRecurringShifts(app.Ctx, store, app.Cfg, app.Logger, createdBy, req, recurrence)
				if err != nil {
					return err
				}
			}

			fmt.Printf("\n✓ Created %d shift(s):\n\n", len(shifts))
			for i, s := range shifts {
				fmt.Printf("  %2d. %s  %s (%s)\n", i+1, formatShiftTime(s.StartTime, s.EndTime, loc), s.Title, s.ID)
			}
			fmt.Println()
			return nil
		},
	}

	cmd.Flags().Float64("hours", 4, "Shift length in hours")
	cmd.Flags().Int("min", 1, "Minimum volunteers")
	cmd.Flags().Int("max", 1, "Maximum volunteers")
	cmd.Flags().String("location", "", "Location (defaults to the venue)")
	cmd.Flags().String("description", "", "Description")
	cmd.Flags().String("lead", "", "Member ID of the lead volunteer")
	cmd.Flags().String("by", "", "Member ID recorded as the creator")
	cmd.Flags().String("rrule", "", `Recurrence rule, e.g. "FREQ=WEEKLY;COUNT=8"`)
	cmd.Flags().Bool("skip-holidays", false, "Drop recurring shifts that fall on US federal holidays")

	return cmd
}

// SignUpCmd creates the signUp command
func SignUpCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "signUp <shift_id> <member_id>",
		Short: "Sign a member up for a shift",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			notes, _ := cmd.Flags().GetString("notes")

			store, err := app.Database()
			if err != nil {
				return err
			}

			signup, err := services.SignUp(app.Ctx, store, app.Logger, args[0], args[1], notes)
			if err != nil {
				return err
			}

			fmt.Printf("\n✓ Signed up! Signup ID: %s\n\n", signup.ID)
			return nil
		},
	}

	cmd.Flags().String("notes", "", "Notes for the shift lead")

	return cmd
}

// CancelSignupCmd creates the cancelSignup command
func CancelSignupCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancelSignup <shift_id> <member_id>",
		Short: "Cancel a member's signup for a shift",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := app.Database()
			if err != nil {
				return err
			}

			if err := services.CancelSignup(app.Ctx, store, app.Logger, args[0], args[1]); err != nil {
				return err
			}

			fmt.Println("\n✓ Signup cancelled.")
			return nil
		},
	}
}

// PublishRosterCmd creates the publishRoster command
func PublishRosterCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "publishRoster",
		Short: "Publish the upcoming volunteer roster to the roster sheet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			weeks, _ := cmd.Flags().GetInt("weeks")

			if app.Cfg.RosterSheetID == "" {
				return errors.New("rosterSheetID is not configured")
			}
			loc, err := app.Cfg.Location()
			if err != nil {
				return err
			}
			store, err := app.Database()
			if err != nil {
				return err
			}

			roster, err := services.PublishRoster(app.Ctx, store, app.Logger, weeks, loc)
			if err != nil {
				return err
			}

			sheets, err := app.SheetsClient()
			if err != nil {
				return err
			}

			title, err := sheets.PublishRoster(app.Cfg.RosterSheetID, toSheetRoster(roster, app.Cfg.DefaultShiftLocation))
			if err != nil {
				return fmt.Errorf("failed to publish roster: %w", err)
			}

			app.Logger.Info("Roster published", zap.String("tab", title), zap.Int("shifts", len(roster.Rows)))
			fmt.Printf("\n✓ Published %d shifts to tab %q\n\n", len(roster.Rows), title)
			return nil
		},
	}

	cmd.Flags().Int("weeks", 2, "Number of weeks to publish")

	return cmd
}
