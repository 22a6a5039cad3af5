package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/tineye"
	"github.com/nao1215/tineye/internal/config"
	"github.com/nao1215/tineye/internal/database"
	"github.com/nao1215/tineye/internal/model"
	"github.com/nao1215/tineye/internal/report"
)

// usageSource is the part of tineye.Client the remaining command needs.
type usageSource interface {
	RemainingSearches(ctx context.Context) (*tineye.UsageResponse, error)
}

// NewRemainingCmd creates the remaining command.
func NewRemainingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remaining",
		Short: "Show the remaining search quota",
		Long: `Remaining shows how many searches the API key has left and when its
bundles expire. Each check is stored in the history database and the report
shows how many searches were used since the previous check of the same
profile (disable with --no-history).

Examples:
  # Quota of the default profile
  tineye remaining

  # Quota of another profile, as JSON
  tineye remaining -p sandbox --json`,
		Args: cobra.NoArgs,
		RunE: runRemainingCmd,
	}

	addOutputFlags(cmd)
	cmd.Flags().Bool("no-history", false,
		"Do not record the quota snapshot in the history database")
	return cmd
}

// runRemainingCmd executes the remaining command.
func runRemainingCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := applyOutputFlags(cmd, cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := newLogger(cmd, cfg)

	ctx, cancel := signalContext(cmd)
	defer cancel()

	client, err := newClient(cfg, logger)
	if err != nil {
		return err
	}
	return runRemaining(ctx, cmd, cfg, client, logger)
}

// runRemaining fetches the quota, stores the snapshot and writes the report.
func runRemaining(ctx context.Context, cmd *cobra.Command, cfg *config.Config, src usageSource, logger *slog.Logger) error {
	resp, err := src.RemainingSearches(ctx)
	if err != nil {
		return err
	}

	usage := model.NewUsageReport(resp, cfg.Profile, time.Now())

	if cfg.SaveToDB {
		recordUsage(ctx, cfg, usage, logger)
	}

	return writeReport(cmd, cfg, func(w report.Writer) (int, error) {
		return w.WriteUsage(usage)
	})
}

// recordUsage compares the snapshot with the previous one of the same
// profile and stores it. Failures are logged only.
func recordUsage(ctx context.Context, cfg *config.Config, usage *model.UsageReport, logger *slog.Logger) {
	db, err := database.Open(cfg.DBDir, database.DefaultOptions())
	if err != nil {
		logger.Warn("failed to open database", "error", err)
		return
	}
	defer db.Close()

	previous, err := db.LatestUsage(ctx, usage.Profile)
	if err != nil {
		logger.Warn("failed to read previous quota snapshot", "error", err)
	}
	usage.CompareWith(previous)

	if _, err := db.SaveUsage(ctx, usage); err != nil {
		logger.Warn("failed to save quota snapshot", "error", err)
		return
	}
	logger.Debug("quota snapshot saved", "id", usage.ID)
}
