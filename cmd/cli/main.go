package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/woodshed-orlando/kinkos/cmd/cli/commands"
	"github.com/woodshed-orlando/kinkos/internal/config"
	"github.com/woodshed-orlando/kinkos/pkg/utils/logging"
)

var app = &commands.AppContext{Ctx: context.Background()}

func main() {
	rootCmd := &cobra.Command{
		Use:   "kinkos",
		Short: "KinkOS - Run The Woodshed Orlando",
		Long:  `Member check-in, waivers, volunteer shifts and announcements for The Woodshed Orlando.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initApp()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			app.Close()
			if app.Logger != nil {
				_ = app.Logger.Sync()
			}
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&app.Env, "env", "e", "", "Environment (required: dev, prod, etc.)")
	rootCmd.PersistentFlags().BoolVar(&app.InMemory, "in-memory", false, "Use a throwaway in-memory store instead of PostgreSQL")
	_ = rootCmd.MarkPersistentFlagRequired("env")

	rootCmd.AddCommand(commands.ServeCmd(app))
	rootCmd.AddCommand(commands.MigrateCmd(app))
	rootCmd.AddCommand(commands.ListShiftsCmd(app))
	rootCmd.AddCommand(commands.CreateShiftCmd(app))
	rootCmd.AddCommand(commands.SignUpCmd(app))
	rootCmd.AddCommand(commands.CancelSignupCmd(app))
	rootCmd.AddCommand(commands.PublishRosterCmd(app))
	rootCmd.AddCommand(commands.CheckInCmd(app))
	rootCmd.AddCommand(commands.CheckOutCmd(app))
	rootCmd.AddCommand(commands.OccupancyCmd(app))
	rootCmd.AddCommand(commands.SignWaiverCmd(app))
	rootCmd.AddCommand(commands.SendWaiverRemindersCmd(app))
	rootCmd.AddCommand(commands.InteractiveCmd(app))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// initApp loads configuration and sets up the logger. Stores and API clients
// are opened lazily by the commands that need them.
func initApp() error {
	var err error

	app.Cfg, err = config.LoadWithEnv(app.Env)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	app.Logger, err = logging.InitLogger(app.Env, app.Cfg.LogDir)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	app.Logger.Info("Starting application",
		zap.String("environment", app.Env),
		zap.Bool("in_memory", app.InMemory))

	return nil
}
