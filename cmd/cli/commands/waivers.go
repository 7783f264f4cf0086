package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/woodshed-orlando/kinkos/pkg/core/policy"
	"github.com/woodshed-orlando/kinkos/pkg/core/services"
)

// SignWaiverCmd creates the signWaiver command
func SignWaiverCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "signWaiver <member_id> <initials> <signature>",
		Short: "Record a waiver signed at the front desk",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			agreed, _ := cmd.Flags().GetBool("agreed")

			store, err := app.Database()
			if err != nil {
				return err
			}

			result, err := services.SignWaiver(app.Ctx, store, app.Logger, policy.WaiverSubmission{
				MemberID:               args[0],
				Initials:               args[1],
				Signature:              args[2],
				BylawsAgreed:           agreed,
				LiabilityReleaseAgreed: agreed,
				DungeonRulesAgreed:     agreed,
				CodeOfConductAgreed:    agreed,
			})
			if err != nil {
				return err
			}

			fmt.Printf("\n✓ Waiver recorded, valid until %s\n", result.Waiver.ValidUntil.Format("Mon Jan 2 2006"))
			if !result.InitialsMatch {
				fmt.Println(toneWarn.render("⚠️  Initials do not match the member's legal name"))
			}
			if result.Activated {
				fmt.Println(toneOK.render("Membership activated"))
			}
			fmt.Println()
			return nil
		},
	}

	cmd.Flags().Bool("agreed", false, "The member agreed to the bylaws, liability release, dungeon rules and code of conduct")

	return cmd
}

// SendWaiverRemindersCmd creates the sendWaiverReminders command
func SendWaiverRemindersCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sendWaiverReminders",
		Short: "Email members whose waiver is about to expire",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := app.Database()
			if err != nil {
				return err
			}
			gmail, err := app.GmailClient()
			if err != nil {
				return err
			}

			remindersSent, failedEmails, err := services.SendWaiverReminders(app.Ctx, store, gmail, app.Cfg, app.Logger)
			if err != nil {
				return err
			}

			fmt.Printf("\n✓ Waiver reminders completed!\n\n")

			if len(remindersSent) > 0 {
				fmt.Printf("Reminders sent to %d members:\n", len(remindersSent))
				for _, rs := range remindersSent {
					fmt.Printf("  ✓ %s (%s) expires %s\n", rs.DisplayName, rs.Email, rs.ValidUntil.Format("Jan 2"))
				}
				fmt.Println()
			}

			if len(failedEmails) > 0 {
				fmt.Printf("⚠️  Failed to send %d reminder emails:\n", len(failedEmails))
				for _, fe := range failedEmails {
					fmt.Printf("  ✗ %s (%s): %s\n", fe.DisplayName, fe.Email, fe.Error)
				}
				fmt.Println()
			}

			if len(remindersSent) == 0 && len(failedEmails) == 0 {
				fmt.Printf("No reminders needed - no waivers expire in the next %d days.\n", app.Cfg.WaiverReminderDays)
			}

			return nil
		},
	}
}
