package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nao1215/tineye/internal/config"
	"github.com/nao1215/tineye/internal/database"
	"github.com/nao1215/tineye/internal/model"
	"github.com/nao1215/tineye/internal/report"
)

// noFindingsMessage is shown for searches without findings.
const noFindingsMessage = "No findings"

var (
	// errSearchNotFound is returned when --id names no stored search.
	errSearchNotFound = errors.New("search not found")

	// errQueriesWithFilter is returned when --queries is combined with a query or --id.
	errQueriesWithFilter = errors.New("--queries cannot be combined with a query or --id")
)

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [query]",
		Short: "List stored searches",
		Long: `History lists the searches recorded in the local database, newest first.

The query may be an image URL or a local file; a file is matched by its
content, so searches of renamed copies are listed too. Without a query every
stored search is listed.

Examples:
  # All stored searches
  tineye history

  # Searches for one image
  tineye history https://example.com/photo.jpg
  tineye history photo.jpg

  # Show a stored report in full
  tineye history --id 12
  tineye history --id 12 --json

  # Every query with stored searches (uploads appear as content digests)
  tineye history --queries`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().Int64P("id", "i", 0,
		"Show the stored report with this ID (see the ID column of the list)")
	cmd.Flags().BoolP("queries", "q", false,
		"List the distinct queries with stored searches")
	addOutputFlags(cmd)

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := applyOutputFlags(cmd, cfg); err != nil {
		return err
	}

	id, err := cmd.Flags().GetInt64("id")
	if err != nil {
		return err
	}
	queriesOnly, err := cmd.Flags().GetBool("queries")
	if err != nil {
		return err
	}
	if queriesOnly && (id > 0 || len(args) > 0) {
		return errQueriesWithFilter
	}

	// Resolve the key before opening the database
	var key string
	if len(args) > 0 {
		if key, err = historyKey(args[0], cfg.MaxImageSize); err != nil {
			return err
		}
	}

	db, err := openHistory(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()

	switch {
	case queriesOnly:
		return listQueries(ctx, cmd.OutOrStdout(), db)
	case id > 0:
		return showSearch(ctx, cmd, cfg, db, id)
	}
	return listHistory(ctx, cmd.OutOrStdout(), db, key)
}

// showSearch writes one stored report in the selected format.
func showSearch(ctx context.Context, cmd *cobra.Command, cfg *config.Config, db *database.HistoryDB, id int64) error {
	stored, err := db.GetSearch(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get search %d: %w", id, err)
	}
	if stored == nil {
		return fmt.Errorf("%w: ID %d", errSearchNotFound, id)
	}
	return writeReport(cmd, cfg, func(w report.Writer) (int, error) {
		return w.WriteSearch(stored)
	})
}

// listHistory prints the stored searches for key, or all of them.
func listHistory(ctx context.Context, out io.Writer, db *database.HistoryDB, key string) error {
	searches, err := db.ListSearches(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to get search history: %w", err)
	}

	if len(searches) == 0 {
		if key != "" {
			fmt.Fprintf(out, "No search history found for %s\n", key)
		} else {
			fmt.Fprintln(out, "No search history found.")
		}
		fmt.Fprintln(out, "\nUse 'tineye search' or 'tineye upload' to search for an image.")
		return nil
	}

	fmt.Fprintf(out, "Search history (%d searches):\n\n", len(searches))
	fmt.Fprintf(out, "  %-6s  %-19s  %-6s  %8s  %-16s  %s\n", "ID", "Date", "Kind", "Results", "Findings", "Query")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 90))

	for _, meta := range searches {
		results := fmt.Sprintf("%d", meta.TotalResults)
		if meta.Error != "" {
			results = "failed"
		}
		fmt.Fprintf(out, "  %-6d  %-19s  %-6s  %8s  %-16s  %s\n",
			meta.ID,
			meta.SearchedAt.Local().Format("2006-01-02 15:04:05"),
			meta.Kind,
			results,
			formatRiskSummary(meta.RiskSummary),
			meta.Query,
		)
	}

	fmt.Fprintln(out, "\nUse 'tineye history --id <id>' to show a stored report.")
	fmt.Fprintln(out, "Use 'tineye compare <query>' to compare the latest two searches.")

	return nil
}

// listQueries prints every history key that has stored searches.
func listQueries(ctx context.Context, out io.Writer, db *database.HistoryDB) error {
	keys, err := db.ListQueries(ctx)
	if err != nil {
		return fmt.Errorf("failed to list queries: %w", err)
	}
	if len(keys) == 0 {
		fmt.Fprintln(out, "No search history found.")
		return nil
	}

	fmt.Fprintf(out, "Stored queries (%d):\n\n", len(keys))
	for _, key := range keys {
		fmt.Fprintf(out, "  %s\n", key)
	}
	fmt.Fprintln(out, "\nPass a query to 'tineye history' or 'tineye compare'.")
	return nil
}

// formatRiskSummary formats the finding counts into a short string.
func formatRiskSummary(summary model.SeverityCounts) string {
	var parts []string
	if v := summary.Critical; v > 0 {
		parts = append(parts, fmt.Sprintf("C:%d", v))
	}
	if v := summary.High; v > 0 {
		parts = append(parts, fmt.Sprintf("H:%d", v))
	}
	if v := summary.Medium; v > 0 {
		parts = append(parts, fmt.Sprintf("M:%d", v))
	}
	if v := summary.Low; v > 0 {
		parts = append(parts, fmt.Sprintf("L:%d", v))
	}
	if v := summary.Info; v > 0 {
		parts = append(parts, fmt.Sprintf("I:%d", v))
	}

	if len(parts) == 0 {
		return noFindingsMessage
	}
	return strings.Join(parts, " ")
}
