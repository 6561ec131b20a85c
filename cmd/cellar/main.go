package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"wine-cellar/internal/app"
	"wine-cellar/internal/config"
	"wine-cellar/internal/logging"
)

var (
	// Global flags
	userID  string
	verbose bool
	timeout time.Duration

	cfg         *config.Config
	logger      *zap.Logger
	application *app.App
)

var rootCmd = &cobra.Command{
	Use:   "cellar",
	Short: "Wine cellar insights and evening planner",
	Long: `cellar tracks which bottles are ready to drink and plans an evening lineup.

Bottles come from the local database, or from Supabase when SUPABASE_URL,
SUPABASE_ANON_KEY and SUPABASE_JWT_SECRET are set.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.NewFromEnv()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		if userID == "" {
			userID = cfg.UserID
		}

		level := cfg.LogLevel
		if verbose {
			level = "debug"
		}
		logger, err = logging.New(level, cfg.LogDev)
		if err != nil {
			return err
		}

		application, err = app.New(cmd.Context(), cfg, logger)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if application != nil {
			_ = application.Close()
		}
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&userID, "user", "u", "", "Cellar owner (default: CELLAR_USER_ID)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Minute, "Operation timeout")

	rootCmd.AddCommand(insightsCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(bottlesCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(snapshotsCleanupCmd)
	rootCmd.AddCommand(metricsCleanupCmd)
}

// opContext bounds a command by the --timeout flag and SIGINT.
func opContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return ctx, func() {
		cancel()
		stop()
	}
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
