package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/nao1215/spider/internal/log"
	"github.com/nao1215/spider/internal/metadata"
)

// NewMetadataCmd creates the metadata command.
func NewMetadataCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "metadata FILE...",
		Short: "Show file information and EXIF data",
		Long: `Metadata prints general information about each file (name,
extension, mode, size, modification time) and, for JPEG, PNG and GIF
images, the format, the resolution and every EXIF tag.

Files that are not images are reported and skipped. Paths that are not
regular files are logged and skipped.

Examples:
  spider metadata data/cat.jpg
  spider metadata data/*`,
		Args: cobra.MinimumNArgs(1),
		RunE: runMetadataCmd,
	}
	cmd.Flags().Bool("no-color", false, "Disable colored output")
	return cmd
}

func runMetadataCmd(cmd *cobra.Command, args []string) error {
	noColor, err := cmd.Flags().GetBool("no-color")
	if err != nil {
		return err
	}
	logger := log.NewSecureLogger(cmd.ErrOrStderr(), getVerboseFlag(cmd))

	inspector := metadata.NewInspector()
	printer := metadata.NewPrinter(cmd.OutOrStdout(), !noColor && !color.NoColor)

	failed := 0
	for _, path := range args {
		info, err := inspector.Inspect(path)
		if err != nil {
			failed++
			logger.Error("cannot inspect file", "path", path, "error", err)
			continue
		}
		if info.ImageErr != nil {
			logger.Debug("not an image", slog.String("path", path), slog.Any("error", info.ImageErr))
		}
		if err := printer.Print(info); err != nil {
			return err
		}
	}

	if failed == len(args) {
		return errors.New("no file could be inspected")
	}
	if failed > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "%d of %d path(s) skipped\n", failed, len(args))
	}
	return nil
}
