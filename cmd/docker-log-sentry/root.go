package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/auto-dns/docker-log-sentry/internal/app"
	"github.com/auto-dns/docker-log-sentry/internal/config"
	"github.com/auto-dns/docker-log-sentry/internal/logger"
)

type contextKey string

const configKey = contextKey("config")

var rootCmd = &cobra.Command{
	Use:   "docker-log-sentry",
	Short: "Capture container logs and extract security-relevant lines",
	Long: "Streams the logs of the configured containers into append-only files and " +
		"continuously copies the security-relevant lines into an important/ directory.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		configFile, _ := cmd.Flags().GetString("config")
		if err := config.InitConfig(configFile); err != nil {
			return err
		}
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		ctx := context.WithValue(cmd.Context(), configKey, cfg)
		cmd.SetContext(ctx)
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := cmd.Context().Value(configKey).(*config.Config)
		if err := cfg.Validate(); err != nil {
			return err
		}

		logInstance := logger.SetupLogger(&cfg.Logging)

		application, err := app.New(cfg, logInstance)
		if err != nil {
			return fmt.Errorf("failed to create app: %w", err)
		}
		defer func() {
			if err := application.Close(); err != nil {
				logInstance.Error().Err(err).Msg("Error closing application")
			}
		}()

		return runUntilSignal(application, logInstance)
	},
}

// runUntilSignal runs the application until SIGINT or SIGTERM.
func runUntilSignal(application application, logInstance zerolog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			logInstance.Info().Msgf("Received signal: %v", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := application.Run(ctx); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file (default is config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "INFO", "set log level (e.g. INFO, DEBUG, WARN)")
	viper.BindPFlag("log.log_level", rootCmd.PersistentFlags().Lookup("log-level"))

	rootCmd.AddCommand(snapshotCmd)
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Execution error: %v\n", err)
		os.Exit(1)
	}
}
