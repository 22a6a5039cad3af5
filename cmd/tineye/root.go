package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for tineye.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tineye",
		Short: "Reverse image search from the command line",
		Long: `tineye queries the TinEye reverse image search API.

It finds where an image appears on the web, checks local files for
identifying EXIF metadata before uploading them, and records every search
in a local history database so later searches for the same image can be
compared.

The API key is read from the configuration file (see 'tineye init') or
from the TINEYE_API_KEY environment variable.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().StringP("config", "c", "",
		"Configuration file path (default: .tineye in current, XDG config or home directory)")
	cmd.PersistentFlags().StringP("profile", "p", "",
		"Configuration profile to use (default: defaultProfile of the configuration file)")

	// Add subcommands
	cmd.AddCommand(NewSearchCmd())
	cmd.AddCommand(NewUploadCmd())
	cmd.AddCommand(NewRemainingCmd())
	cmd.AddCommand(NewCountCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewCompareCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
