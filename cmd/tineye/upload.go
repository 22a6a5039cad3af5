package main

import (
	"github.com/spf13/cobra"

	"github.com/nao1215/tineye/internal/config"
	"github.com/nao1215/tineye/internal/model"
)

// NewUploadCmd creates the upload command.
func NewUploadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upload [file]",
		Short: "Search for copies of a local image",
		Long: `Upload sends local image files to TinEye and reports where they appear.

Before uploading, each file is checked for EXIF metadata that could identify
its owner: GPS position, camera serial numbers, owner names and the software
used. The findings are included in the report. The check runs locally; the
file is uploaded unchanged.

Uploads are recorded in the history under the digest of the file, so a
renamed copy of the same image is compared with earlier searches.

Examples:
  # Search a local photo
  tineye upload photo.jpg

  # Several files, Markdown report
  tineye upload --markdown -o report.md a.jpg b.png

  # Skip the EXIF check
  tineye upload --skip-exif-check photo.jpg`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearchCmd(cmd, args, model.QueryUpload)
		},
	}

	addSearchFlags(cmd)
	cmd.Flags().Bool("skip-exif-check", false,
		"Do not check files for identifying EXIF metadata")
	cmd.Flags().Int64("max-size", config.DefaultMaxImageSize,
		"Maximum file size in bytes")
	return cmd
}
