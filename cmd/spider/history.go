package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nao1215/spider/internal/config"
	"github.com/nao1215/spider/internal/database"
	"github.com/nao1215/spider/internal/model"
)

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [URL]",
		Short: "Show stored crawls",
		Long: `History reads the crawl history database written by crawl.

Without arguments it lists the crawled URLs. Given a URL it lists the
stored crawls of that URL, newest first. --id prints one stored report.

Examples:
  # List crawled URLs
  spider history

  # Crawls of one URL
  spider history https://example.com/gallery

  # Pages stored for one URL
  spider history --pages https://example.com/gallery

  # Print crawl 3 as Markdown
  spider history --id 3 -m`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().Bool("list-sites", false, "List crawled URLs")
	cmd.Flags().Int64("id", 0, "Print the stored report with this ID")
	cmd.Flags().Bool("pages", false, "List the stored pages of URL")
	cmd.Flags().BoolP("json", "j", false, "Print the report as JSON")
	cmd.Flags().BoolP("markdown", "m", false, "Print the report as Markdown")
	cmd.Flags().String("db-dir", "", "Directory of the history database (default: XDG data directory)")
	cmd.MarkFlagsMutuallyExclusive("json", "markdown")

	return cmd
}

// historyOptions are the parsed history flags.
type historyOptions struct {
	dbDir      string
	listSites  bool
	id         int64
	pages      bool
	asJSON     bool
	asMarkdown bool
	verbose    bool
}

func runHistoryCmd(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	opts := historyOptions{dbDir: config.XDGDataDir(), verbose: getVerboseFlag(cmd)}

	var err error
	if opts.listSites, err = flags.GetBool("list-sites"); err != nil {
		return err
	}
	if opts.id, err = flags.GetInt64("id"); err != nil {
		return err
	}
	if opts.pages, err = flags.GetBool("pages"); err != nil {
		return err
	}
	if opts.asJSON, err = flags.GetBool("json"); err != nil {
		return err
	}
	if opts.asMarkdown, err = flags.GetBool("markdown"); err != nil {
		return err
	}
	dbDir, err := flags.GetString("db-dir")
	if err != nil {
		return err
	}
	if dbDir != "" {
		opts.dbDir = dbDir
	}

	return runHistory(cmd.Context(), cmd.OutOrStdout(), opts, args)
}

// runHistory prints the requested part of the history.
func runHistory(ctx context.Context, out io.Writer, opts historyOptions, args []string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	db, err := database.Open(opts.dbDir, database.Options{})
	if err != nil {
		if errors.Is(err, database.ErrNoHistory) {
			fmt.Fprintln(out, "No crawl history yet.")
			return nil
		}
		return err
	}
	defer db.Close() //nolint:errcheck

	switch {
	case opts.id != 0:
		return printStoredReport(ctx, out, db, opts)
	case len(args) == 0 || opts.listSites:
		return printSites(ctx, out, db)
	}

	seed, err := model.ParseURL(args[0])
	if err != nil {
		return fmt.Errorf("invalid URL %q: %w", args[0], err)
	}
	if opts.pages {
		return printPages(ctx, out, db, seed.String())
	}
	return printCrawlHistory(ctx, out, db, seed.String())
}

func printSites(ctx context.Context, out io.Writer, db *database.CrawlDB) error {
	sites, err := db.ListCrawledSites(ctx)
	if err != nil {
		return err
	}
	if len(sites) == 0 {
		fmt.Fprintln(out, "No crawl history yet.")
		return nil
	}
	for _, s := range sites {
		fmt.Fprintln(out, s)
	}
	return nil
}

func printCrawlHistory(ctx context.Context, out io.Writer, db *database.CrawlDB, seed string) error {
	history, err := db.GetCrawlHistory(ctx, seed)
	if err != nil {
		return err
	}
	if len(history) == 0 {
		fmt.Fprintf(out, "No crawls stored for %s\n", seed)
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tPAGES\tFILES\tDOWNLOADED\tFAILED\tERRORS\tNOTE")
	for _, h := range history {
		note := ""
		if h.Summary.TimedOut {
			note = "timed out"
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%d\t%d\t%d\t%s\n",
			h.ID,
			h.Timestamp.Local().Format("2006-01-02 15:04:05"),
			h.Summary.Pages,
			h.Summary.Resources,
			h.Summary.Downloaded,
			h.Summary.Failed,
			h.Summary.Errors,
			note,
		)
	}
	return tw.Flush()
}

func printPages(ctx context.Context, out io.Writer, db *database.CrawlDB, seed string) error {
	pages, err := db.ListPages(ctx, seed)
	if err != nil {
		return err
	}
	if len(pages) == 0 {
		fmt.Fprintf(out, "No pages stored for %s\n", seed)
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "URL\tSTATUS\tTYPE\tTITLE\tLAST SEEN")
	for _, p := range pages {
		status := "-"
		if p.StatusCode != 0 {
			status = fmt.Sprintf("%d", p.StatusCode)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			p.URL, status, p.ContentType, p.Title,
			p.Timestamp.Local().Format("2006-01-02 15:04:05"),
		)
	}
	return tw.Flush()
}

func printStoredReport(ctx context.Context, out io.Writer, db *database.CrawlDB, opts historyOptions) error {
	r, err := db.GetCrawlReportByID(ctx, opts.id)
	if err != nil {
		return err
	}
	if r == nil {
		return fmt.Errorf("no stored crawl with ID %d", opts.id)
	}
	_, err = newReportWriter(out, opts.asJSON, opts.asMarkdown, opts.verbose, false).Write(r)
	return err
}
