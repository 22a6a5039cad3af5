package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/nao1215/tineye"
)

// imageCounter is the part of tineye.Client the count command needs.
type imageCounter interface {
	ImageCount(ctx context.Context) (*tineye.ImageCountResponse, error)
}

// countResult is the JSON output of the count command.
type countResult struct {
	Count int64 `json:"count"`
}

// NewCountCmd creates the count command.
func NewCountCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "count",
		Short: "Show the number of images in the TinEye index",
		Long: `Count prints the number of images currently in the TinEye index.
It does not consume search quota.`,
		Args: cobra.NoArgs,
		RunE: runCountCmd,
	}

	cmd.Flags().BoolP("json", "j", false, "Output the count in JSON format")
	return cmd
}

// runCountCmd executes the count command.
func runCountCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}

	logger := newLogger(cmd, cfg)

	ctx, cancel := signalContext(cmd)
	defer cancel()

	client, err := newClient(cfg, logger)
	if err != nil {
		return err
	}
	return runCount(ctx, cmd, client, jsonOutput)
}

// runCount fetches and prints the index size.
func runCount(ctx context.Context, cmd *cobra.Command, counter imageCounter, jsonOutput bool) error {
	resp, err := counter.ImageCount(ctx)
	if err != nil {
		return err
	}

	if jsonOutput {
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(countResult{Count: resp.Count})
	}

	_, err = fmt.Fprintf(cmd.OutOrStdout(), "TinEye index: %s images\n", humanize.Comma(resp.Count))
	return err
}
