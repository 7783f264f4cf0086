package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/woodshed-orlando/kinkos/pkg/core/services"
)

// CheckInCmd creates the checkIn command
func CheckInCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checkIn <member_id>",
		Short: "Check a member into the venue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			checkInType, _ := cmd.Flags().GetString("type")
			by, _ := cmd.Flags().GetString("by")
			staff, _ := cmd.Flags().GetBool("staff")

			store, err := app.Database()
			if err != nil {
				return err
			}

			req := services.CheckInRequest{
				MemberID:    args[0],
				CheckInType: checkInType,
				CheckedInBy: by,
			}
			if staff {
				counts := false
				req.CountsTowardCapacity = &counts
			}

			result, err := services.CheckIn(app.Ctx, store, app.Notifier(), app.Cfg, app.Logger, req)
			if err != nil {
				return err
			}

			occupancy := occupancyTone(result.Occupancy, result.MaxOccupancy, app.Cfg.CapacityWarningThreshold).
				render(fmt.Sprintf("%d/%d", result.Occupancy, result.MaxOccupancy))
			fmt.Printf("\n✓ Checked in! Check-in ID: %s\n", result.CheckIn.ID)
			fmt.Printf("Occupancy: %s\n", occupancy)
			if result.ApproachingCapacity {
				fmt.Println(toneWarn.render("⚠️  Approaching capacity"))
			}
			fmt.Println()
			return nil
		},
	}

	cmd.Flags().String("type", "", "Check-in type (default social_visit)")
	cmd.Flags().String("by", "", "Member ID of the staff member at the desk")
	cmd.Flags().Bool("staff", false, "Working staff; does not count toward capacity")

	return cmd
}

// CheckOutCmd creates the checkOut command
func CheckOutCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checkOut <check_in_id>",
		Short: "Check a member out of the venue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			by, _ := cmd.Flags().GetString("by")

			store, err := app.Database()
			if err != nil {
				return err
			}

			checkIn, err := services.CheckOut(app.Ctx, store, app.Logger, args[0], by)
			if err != nil {
				return err
			}

			fmt.Printf("\n✓ Checked out member %s after %s\n\n",
				checkIn.MemberID, checkIn.CheckOutTime.Sub(checkIn.CheckInTime).Round(time.Minute))
			return nil
		},
	}

	cmd.Flags().String("by", "", "Member ID of the staff member at the desk")

	return cmd
}

// OccupancyCmd creates the occupancy command
func OccupancyCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "occupancy",
		Short: "Show current occupancy and who is inside",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := app.Database()
			if err != nil {
				return err
			}
			loc, err := app.Cfg.Location()
			if err != nil {
				return err
			}

			status, err := services.Occupancy(app.Ctx, store, app.Cfg)
			if err != nil {
				return err
			}
			inside, err := services.ActiveCheckIns(app.Ctx, store)
			if err != nil {
				return err
			}

			occupancy := occupancyTone(status.Current, status.Max, app.Cfg.CapacityWarningThreshold).
				render(fmt.Sprintf("%d/%d", status.Current, status.Max))
			fmt.Printf("\nOccupancy: %s\n\n", occupancy)

			if len(inside) == 0 {
				fmt.Println("Nobody is checked in.")
				return nil
			}

			fmt.Printf("%-36s  %-24s  %-6s  %s\n", "Check-in ID", "Member", "Since", "Type")
			for _, c := range inside {
				kind := c.CheckInType
				if !c.CountsTowardCapacity {
					kind = toneMuted.render(kind + " (staff)")
				}
				fmt.Printf("%-36s  %-24s  %-6s  %s\n",
					c.ID, truncate(c.DisplayName, 24), c.CheckInTime.In(loc).Format("15:04"), kind)
			}
			fmt.Println()
			return nil
		},
	}
}
