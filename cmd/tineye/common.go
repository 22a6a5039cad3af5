package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nao1215/tineye"
	"github.com/nao1215/tineye/internal/config"
	"github.com/nao1215/tineye/internal/database"
	"github.com/nao1215/tineye/internal/imagemeta"
	"github.com/nao1215/tineye/internal/log"
	"github.com/nao1215/tineye/internal/report"
)

// errNoHistory is returned by read-only history commands before any search was saved.
var errNoHistory = errors.New("no search history yet (run 'tineye search' or 'tineye upload' first)")

// getPersistentString reads a global flag from the command or its parents.
func getPersistentString(cmd *cobra.Command, name string) string {
	if f := cmd.Flags().Lookup(name); f != nil {
		return f.Value.String()
	}
	if f := cmd.Root().PersistentFlags().Lookup(name); f != nil {
		return f.Value.String()
	}
	return ""
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// loadConfig builds the configuration from defaults, the configuration file
// and the environment. Command flags are applied by the caller.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(getPersistentString(cmd, "config"), getPersistentString(cmd, "profile"), os.LookupEnv)
	if err != nil {
		return nil, err
	}
	cfg.Verbose = getVerboseFlag(cmd)
	return cfg, nil
}

// applyOutputFlags reads --json, --markdown and --output when the command has them.
func applyOutputFlags(cmd *cobra.Command, cfg *config.Config) error {
	var err error
	if cmd.Flags().Lookup("json") != nil {
		if cfg.JSONReport, err = cmd.Flags().GetBool("json"); err != nil {
			return err
		}
	}
	if cmd.Flags().Lookup("markdown") != nil {
		if cfg.MarkdownReport, err = cmd.Flags().GetBool("markdown"); err != nil {
			return err
		}
	}
	if cmd.Flags().Lookup("output") != nil {
		if cfg.ReportFile, err = cmd.Flags().GetString("output"); err != nil {
			return err
		}
	}
	if cmd.Flags().Lookup("tee") != nil {
		if cfg.TeeReport, err = cmd.Flags().GetBool("tee"); err != nil {
			return err
		}
	}
	if cmd.Flags().Lookup("no-history") != nil {
		noHistory, err := cmd.Flags().GetBool("no-history")
		if err != nil {
			return err
		}
		if noHistory {
			cfg.SaveToDB = false
		}
	}
	if cfg.JSONReport && cfg.MarkdownReport {
		return config.ErrConflictingReportFormats
	}
	return nil
}

// addOutputFlags registers the report format flags.
func addOutputFlags(cmd *cobra.Command) {
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")
	cmd.Flags().Bool("tee", false,
		"With --output, also print a text report to stdout")
}

// newLogger creates the structured logger for a command.
// The API key is masked wherever it appears.
func newLogger(cmd *cobra.Command, cfg *config.Config) *slog.Logger {
	return log.NewSecureLogger(cmd.ErrOrStderr(), cfg.Verbose, cfg.APIKey)
}

// newClient creates an API client from the configuration.
func newClient(cfg *config.Config, logger *slog.Logger) (*tineye.Client, error) {
	opts := append(cfg.ClientOptions(), tineye.WithLogger(logger))
	client, err := tineye.New(cfg.APIURL, cfg.APIKey, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	return client, nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// openOutput returns the report destination: the --output file or stdout.
// The returned close function must always be called.
func openOutput(cmd *cobra.Command, cfg *config.Config) (io.Writer, func() error, error) {
	if cfg.ReportFile == "" {
		return cmd.OutOrStdout(), func() error { return nil }, nil
	}

	dir := filepath.Dir(cfg.ReportFile)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	// Reports list where the user's images appear, so only the owner may read them.
	f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, f.Close, nil
}

// newReportWriter selects the report format.
func newReportWriter(w io.Writer, cfg *config.Config) report.Writer {
	switch {
	case cfg.JSONReport:
		return report.NewJSONWriter(w, report.WithPrettyPrint(), report.WithVersion(getVersion()))
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(w)
	default:
		return report.NewSimpleWriter(w, report.WithVerbose(cfg.Verbose))
	}
}

// writeReport opens the output and hands a writer to fn. With --tee the
// file report is followed by a text report on stdout.
func writeReport(cmd *cobra.Command, cfg *config.Config, fn func(report.Writer) (int, error)) error {
	out, closeOut, err := openOutput(cmd, cfg)
	if err != nil {
		return err
	}
	w := newReportWriter(out, cfg)
	if cfg.ReportFile != "" && cfg.TeeReport {
		w = report.NewMultiWriter(w, report.NewSimpleWriter(cmd.OutOrStdout(), report.WithVerbose(cfg.Verbose)))
	}
	_, writeErr := fn(w)
	closeErr := closeOut()
	if writeErr != nil {
		return fmt.Errorf("failed to write report: %w", writeErr)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to close output file: %w", closeErr)
	}
	return nil
}

// openHistory opens the existing history database for reading.
func openHistory(cfg *config.Config) (*database.HistoryDB, error) {
	opts := database.DefaultOptions()
	opts.CreateIfNotExists = false
	db, err := database.Open(cfg.DBDir, opts)
	if err != nil {
		if errors.Is(err, database.ErrDatabaseNotFound) {
			return nil, errNoHistory
		}
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// historyKey maps a command argument to the key searches are stored under.
// An existing local file is identified by its digest, so renamed copies
// still match; anything else is used as given.
func historyKey(arg string, maxSize int64) (string, error) {
	info, err := os.Stat(arg)
	if err != nil || info.IsDir() {
		return arg, nil //nolint:nilerr // not a local file
	}
	if maxSize > 0 && info.Size() > maxSize {
		return "", fmt.Errorf("%s exceeds %d bytes", arg, maxSize)
	}
	data, err := os.ReadFile(arg) //nolint:gosec // User-provided path is intentional
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", arg, err)
	}
	return imagemeta.Digest(data), nil
}
