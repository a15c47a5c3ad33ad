package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command. Given URLs it behaves like crawl,
// which keeps the original "spider -r URL" form working.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "spider [flags] URL...",
		Short: "Crawl a website and download its images",
		Long: `spider crawls a website, collects the links to files with the given
extensions (images by default) and downloads them.

Without -r only the given page is scraped. With -r links are followed up
to -l levels below the URL's path, on the same host only.`,
		Example: `  spider https://example.com/gallery/
  spider -r -l 2 -p ./images https://example.com/`,
		Version:       getVersion(),
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			return runCrawlCmd(cmd, args)
		},
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	addCrawlFlags(cmd)

	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewMetadataCmd())
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
