package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nao1215/tineye/internal/database"
	"github.com/nao1215/tineye/internal/model"
	"github.com/nao1215/tineye/internal/report"
)

// errNotEnoughSearches is returned when fewer than two successful searches are stored.
var errNotEnoughSearches = errors.New("at least 2 successful searches are required for comparison")

// NewCompareCmd creates the compare command.
// This command compares search results with historical data stored in the database.
func NewCompareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare [query]",
		Short: "Compare the latest search of an image with an earlier one",
		Long: `Compare shows how the results for an image changed between two searches.

It reports:
- Matches that appeared since the earlier search
- Matches that are gone
- Matches whose score changed
- Domains that appeared or disappeared

The query is an image URL or a local file, as in 'tineye history'. By default
the latest two successful searches are compared.

Examples:
  # Compare the latest two searches
  tineye compare https://example.com/photo.jpg

  # Compare the latest search with a specific stored search
  tineye compare --with-id 5 photo.jpg

  # JSON output
  tineye compare --json https://example.com/photo.jpg`,
		Args: cobra.ExactArgs(1),
		RunE: runCompareCmd,
	}

	cmd.Flags().Int64P("with-id", "i", 0,
		"Compare with a specific stored search by ID (use 'tineye history' to see IDs)")
	addOutputFlags(cmd)

	return cmd
}

// runCompareCmd executes the compare command.
func runCompareCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := applyOutputFlags(cmd, cfg); err != nil {
		return err
	}

	withID, err := cmd.Flags().GetInt64("with-id")
	if err != nil {
		return err
	}

	// Validate arguments before opening database
	key, err := historyKey(args[0], cfg.MaxImageSize)
	if err != nil {
		return err
	}

	db, err := openHistory(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	comparison, err := compareSearches(context.Background(), db, key, withID)
	if err != nil {
		return err
	}

	return writeReport(cmd, cfg, func(w report.Writer) (int, error) {
		return w.WriteComparison(comparison)
	})
}

// compareSearches compares the latest successful search for key with the
// one before it, or with the stored search withID when given.
func compareSearches(ctx context.Context, db *database.HistoryDB, key string, withID int64) (*model.Comparison, error) {
	n := 2
	if withID > 0 {
		n = 1
	}

	reports, err := db.LatestSearches(ctx, key, n)
	if err != nil {
		return nil, fmt.Errorf("failed to get search history: %w", err)
	}
	if len(reports) == 0 {
		return nil, fmt.Errorf("no successful search found for %s", key)
	}

	current := reports[0]

	if withID <= 0 {
		if len(reports) < 2 {
			return nil, fmt.Errorf("%w (found %d)", errNotEnoughSearches, len(reports))
		}
		return model.Compare(reports[1], current), nil
	}

	previous, err := db.GetSearch(ctx, withID)
	if err != nil {
		return nil, fmt.Errorf("failed to get search with ID %d: %w", withID, err)
	}
	if previous == nil {
		return nil, fmt.Errorf("%w: ID %d", errSearchNotFound, withID)
	}
	if previous.HistoryKey() != current.HistoryKey() {
		return nil, fmt.Errorf("search ID %d is for %s, not %s", withID, previous.Query, current.Query)
	}
	if previous.Failed() {
		return nil, fmt.Errorf("search ID %d failed and cannot be compared: %s", withID, previous.Error)
	}
	if previous.ID == current.ID {
		return nil, fmt.Errorf("search ID %d is the latest search; choose an earlier one", withID)
	}
	return model.Compare(previous, current), nil
}
