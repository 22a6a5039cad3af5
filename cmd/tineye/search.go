package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/nao1215/tineye"
	"github.com/nao1215/tineye/internal/config"
	"github.com/nao1215/tineye/internal/database"
	"github.com/nao1215/tineye/internal/model"
	"github.com/nao1215/tineye/internal/pipeline"
	"github.com/nao1215/tineye/internal/report"
)

// NewSearchCmd creates the search command.
func NewSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search [image-url]",
		Short: "Search for copies of an image by URL",
		Long: `Search asks TinEye where the image at the given URL appears on the web.

For every match the report shows the image URL, its score, the domain and the
pages that link to it. Every search consumes one search from the quota of the
API key and is recorded in the local history (disable with --no-history).

Examples:
  # Search one image
  tineye search https://example.com/photo.jpg

  # Search several images, two at a time
  tineye search --batch 2 https://example.com/a.jpg https://example.com/b.jpg

  # Only matches on one domain, newest crawl first
  tineye search --domain example.org --sort crawl_date --order desc https://example.com/a.jpg

  # JSON report written to a file
  tineye search --json -o report.json https://example.com/a.jpg`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearchCmd(cmd, args, model.QueryURL)
		},
	}

	addSearchFlags(cmd)
	return cmd
}

// addSearchFlags registers the flags shared by search and upload.
func addSearchFlags(cmd *cobra.Command) {
	// Request parameters; unset flags keep the profile values.
	cmd.Flags().Int("offset", 0, "Number of matches to skip")
	cmd.Flags().Int("limit", 0, "Maximum number of matches to return")
	cmd.Flags().Int("backlink-limit", 0, "Maximum number of backlinks per match")
	cmd.Flags().String("sort", "", "Sort key: score, size or crawl_date")
	cmd.Flags().String("order", "", "Sort order: asc or desc")
	cmd.Flags().String("domain", "", "Only return matches from this domain")

	// Client behavior flags
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Deadline for each API call")

	// Batch flags
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of concurrent searches")

	// Report flags
	addOutputFlags(cmd)
	cmd.Flags().Bool("no-history", false,
		"Do not record the search in the history database")
}

// runSearchCmd executes the search and upload commands.
func runSearchCmd(cmd *cobra.Command, args []string, kind model.QueryKind) error {
	cfg, err := buildSearchConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.ValidateSearch(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := newLogger(cmd, cfg)

	ctx, cancel := signalContext(cmd)
	defer cancel()

	client, err := newClient(cfg, logger)
	if err != nil {
		return err
	}

	return runSearch(ctx, cmd, cfg, client, kind, logger)
}

// buildSearchConfig loads the configuration and applies the command flags.
// Only flags given on the command line override the configuration file.
func buildSearchConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("offset") {
		if cfg.Offset, err = flags.GetInt("offset"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("limit") {
		if cfg.Limit, err = flags.GetInt("limit"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("backlink-limit") {
		if cfg.BacklinkLimit, err = flags.GetInt("backlink-limit"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("sort") {
		if cfg.Sort, err = flags.GetString("sort"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("order") {
		if cfg.Order, err = flags.GetString("order"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("domain") {
		if cfg.Domain, err = flags.GetString("domain"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("timeout") {
		if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("batch") {
		if cfg.BatchSize, err = flags.GetInt("batch"); err != nil {
			return nil, err
		}
	}
	if flags.Lookup("skip-exif-check") != nil {
		if cfg.SkipExifCheck, err = flags.GetBool("skip-exif-check"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("max-size") {
		if cfg.MaxImageSize, err = flags.GetInt64("max-size"); err != nil {
			return nil, err
		}
	}

	if err := applyOutputFlags(cmd, cfg); err != nil {
		return nil, err
	}

	cfg.Targets = args
	return cfg, nil
}

// runSearch searches all targets, writes the report and records the history.
// It returns an error when at least one search failed.
func runSearch(ctx context.Context, cmd *cobra.Command, cfg *config.Config, searcher pipeline.Searcher, kind model.QueryKind, logger *slog.Logger) error {
	logger.Info("starting search",
		"targets", len(cfg.Targets),
		"kind", kind,
		"batchSize", cfg.BatchSize,
		"saveToDB", cfg.SaveToDB,
	)

	// Open database connection if saving is enabled
	var db *database.HistoryDB
	if cfg.SaveToDB {
		var err error
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		logger.Debug("database opened", "path", db.Path())
	}

	searchOpts := cfg.SearchOptions()
	bp := pipeline.NewBatchProcessor(
		func() *pipeline.Pipeline {
			return newSearchPipeline(cfg, searcher, db, searchOpts, kind, logger)
		},
		pipeline.WithConcurrency(cfg.BatchSize),
		pipeline.WithBatchLogger(logger),
	)

	targets := make([]pipeline.Target, len(cfg.Targets))
	for i, t := range cfg.Targets {
		targets[i] = pipeline.Target{Value: t, Kind: kind, Profile: cfg.Profile}
	}

	jobs, batchErr := bp.ProcessBatch(ctx, targets)
	reports := pipeline.Reports(jobs)

	err := writeReport(cmd, cfg, func(w report.Writer) (int, error) {
		if len(reports) == 1 {
			return w.WriteSearch(reports[0])
		}
		return w.WriteSearches(reports)
	})
	if err != nil {
		return err
	}

	if batchErr != nil {
		return batchErr
	}
	switch failed := pipeline.FailedCount(jobs); {
	case failed == 0:
		return nil
	case len(jobs) == 1:
		return jobs[0].Err
	default:
		return fmt.Errorf("%d of %d searches failed", failed, len(jobs))
	}
}

// newSearchPipeline creates the steps for one search.
// Failed searches still reach the history step.
func newSearchPipeline(cfg *config.Config, searcher pipeline.Searcher, db *database.HistoryDB, searchOpts []tineye.SearchOption, kind model.QueryKind, logger *slog.Logger) *pipeline.Pipeline {
	p := pipeline.New(
		pipeline.WithLogger(logger),
		pipeline.WithContinueOnError(true),
	)

	if kind == model.QueryUpload {
		p.AddStep(pipeline.NewReadFileStep(cfg.MaxImageSize))
		if !cfg.SkipExifCheck {
			p.AddStep(pipeline.NewExifCheckStep(logger))
		}
	}
	p.AddStep(pipeline.NewSearchStep(searcher, searchOpts...))
	if db != nil {
		p.AddStep(pipeline.NewHistoryStep(db, logger))
	}
	return p
}
