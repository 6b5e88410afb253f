package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/auto-dns/docker-log-sentry/internal/app"
	"github.com/auto-dns/docker-log-sentry/internal/config"
	"github.com/auto-dns/docker-log-sentry/internal/logger"
	"github.com/auto-dns/docker-log-sentry/internal/shutdown"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot [trigger]",
	Short: "Snapshot the application databases and prune old snapshots",
	Long: "Takes an RDS snapshot and a SQLite file backup, then applies the daily/weekly/monthly " +
		"retention policy. With --schedule it keeps running and snapshots on the configured cron schedule.",
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := cmd.Context().Value(configKey).(*config.Config)
		logInstance := logger.SetupLogger(&cfg.Logging)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		runner, err := app.NewSnapshotRunner(ctx, &cfg.Snapshot, logInstance)
		if err != nil {
			return err
		}

		schedule, _ := cmd.Flags().GetBool("schedule")
		if schedule {
			return runner.RunSchedule(shutdown.New(ctx), cfg.Snapshot.Schedule)
		}

		trigger := "manual"
		if len(args) == 1 {
			trigger = args[0]
		}
		return runner.RunAll(ctx, trigger)
	},
}

func init() {
	snapshotCmd.Flags().Bool("schedule", false, "run continuously on snapshot.schedule")
}
