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

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/nao1215/spider/internal/config"
	"github.com/nao1215/spider/internal/database"
	"github.com/nao1215/spider/internal/httpclient"
	"github.com/nao1215/spider/internal/log"
	"github.com/nao1215/spider/internal/model"
	"github.com/nao1215/spider/internal/pipeline"
	"github.com/nao1215/spider/internal/report"
	"github.com/nao1215/spider/internal/tor"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl URL...",
		Short: "Crawl websites and download matching files",
		Long: `Crawl fetches each URL and downloads the files it links to whose
extension is in the extension list.

With -r, links to HTML pages are followed breadth-first. Only pages on
the same host and below the URL's path are visited, at most -l levels
deep. Redirects are followed within that scope.

Failed fetches and downloads never stop the crawl. Each one is written
to the error log and counted in the report.

Examples:
  # Download the images of one page
  spider crawl https://example.com/gallery/

  # Follow links three levels deep and save PDFs and PNGs to ./out
  spider crawl -r -l 3 -e pdf,png -p ./out https://example.com/docs/

  # Crawl two sites in parallel with a 2 minute deadline each
  spider crawl -r -b 2 -T 2m https://a.example.com https://b.example.com

  # Write a Markdown report
  spider crawl -r -m -o report.md https://example.com/

  # Crawl an onion service through an embedded Tor daemon
  spider crawl -r --tor http://<56 characters>.onion/

Configuration file (.spider) example:
  sites:
    example.com:
      depth: 2
      cookie: "session_id=abc123"
      headers:
        Authorization: "Bearer token"`,
		Args: cobra.MinimumNArgs(1),
		RunE: runCrawlCmd,
	}
	addCrawlFlags(cmd)
	return cmd
}

// addCrawlFlags registers the crawl flags on cmd. The root command
// carries them too so "spider -r URL" works without the subcommand.
func addCrawlFlags(cmd *cobra.Command) {
	cmd.Flags().BoolP("recursive", "r", false,
		"Follow links recursively (without it only the given page is scraped)")
	cmd.Flags().IntP("level", "l", config.DefaultCrawlDepth,
		"Maximum recursion depth (1-100, requires -r)")
	cmd.Flags().StringP("path", "p", config.DefaultOutputDir,
		"Directory where downloaded files are saved")
	cmd.Flags().StringSliceP("extension", "e", config.DefaultExtensions,
		"File extensions to download (repeatable or comma separated)")

	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each request")
	cmd.Flags().DurationP("crawl-timeout", "T", 0,
		"Overall crawl deadline per URL (0 means none)")
	cmd.Flags().IntP("workers", "w", config.DefaultConcurrency,
		"Number of concurrent fetches and downloads per URL")
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of URLs crawled concurrently")
	cmd.Flags().Int("max-pages", config.DefaultMaxPages,
		"Maximum number of pages per URL (0 means unlimited)")
	cmd.Flags().Int("max-redirects", config.DefaultMaxRedirects,
		"Maximum redirects followed from one URL")
	cmd.Flags().String("proxy", "",
		"SOCKS5 proxy address (e.g., 127.0.0.1:9050)")
	cmd.Flags().Bool("tor", false,
		"Start an embedded Tor daemon and crawl through it (mutually exclusive with --proxy)")
	cmd.Flags().Duration("tor-startup-timeout", config.DefaultTorStartupTimeout,
		"Timeout for the embedded Tor daemon to bootstrap")
	cmd.Flags().String("error-log", config.DefaultErrorLogPath,
		"Append-only log of failed fetches and downloads (empty disables it)")

	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .spider in current, XDG config or home directory)")

	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")
	cmd.Flags().Bool("no-history", false,
		"Do not store the crawl in the history database")
	cmd.Flags().String("db-dir", "",
		"Directory of the history database (default: XDG data directory)")
	cmd.Flags().Bool("no-color", false,
		"Disable colored output")
}

func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	noColor, err := cmd.Flags().GetBool("no-color")
	if err != nil {
		return err
	}

	logger := log.NewSecureLogger(cmd.ErrOrStderr(), cfg.Verbose)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runCrawl(ctx, cfg, crawlIO{
		stdout: cmd.OutOrStdout(),
		stderr: cmd.ErrOrStderr(),
		color:  !noColor && !color.NoColor,
	}, logger)
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

// buildConfig creates a Config from cobra command flags.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var err error
	if cfg.Recursive, err = flags.GetBool("recursive"); err != nil {
		return nil, err
	}
	if cfg.CrawlDepth, err = flags.GetInt("level"); err != nil {
		return nil, err
	}
	if flags.Changed("level") && !cfg.Recursive {
		return nil, config.ErrLevelWithoutRecursive
	}
	if cfg.OutputDir, err = flags.GetString("path"); err != nil {
		return nil, err
	}
	exts, err := flags.GetStringSlice("extension")
	if err != nil {
		return nil, err
	}
	cfg.Extensions = config.SplitExtensions(exts...)

	if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
		return nil, err
	}
	if cfg.CrawlTimeout, err = flags.GetDuration("crawl-timeout"); err != nil {
		return nil, err
	}
	if cfg.Concurrency, err = flags.GetInt("workers"); err != nil {
		return nil, err
	}
	if cfg.BatchSize, err = flags.GetInt("batch"); err != nil {
		return nil, err
	}
	if cfg.MaxPages, err = flags.GetInt("max-pages"); err != nil {
		return nil, err
	}
	if cfg.MaxRedirects, err = flags.GetInt("max-redirects"); err != nil {
		return nil, err
	}
	if cfg.ProxyAddress, err = flags.GetString("proxy"); err != nil {
		return nil, err
	}
	if cfg.UseTor, err = flags.GetBool("tor"); err != nil {
		return nil, err
	}
	if cfg.TorStartupTimeout, err = flags.GetDuration("tor-startup-timeout"); err != nil {
		return nil, err
	}
	if cfg.ErrorLogPath, err = flags.GetString("error-log"); err != nil {
		return nil, err
	}
	if cfg.JSONReport, err = flags.GetBool("json"); err != nil {
		return nil, err
	}
	if cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
		return nil, err
	}
	if cfg.ReportFile, err = flags.GetString("output"); err != nil {
		return nil, err
	}

	noHistory, err := flags.GetBool("no-history")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noHistory
	dbDir, err := flags.GetString("db-dir")
	if err != nil {
		return nil, err
	}
	if dbDir != "" {
		cfg.DBDir = dbDir
	}

	if cfg.ConfigFilePath, err = flags.GetString("config"); err != nil {
		return nil, err
	}
	cfg.SiteConfigs, err = loadSiteConfigs(cfg.ConfigFilePath)
	if err != nil {
		return nil, err
	}

	cfg.Verbose = getVerboseFlag(cmd)
	cfg.Targets = args
	return cfg, nil
}

// loadSiteConfigs loads the configuration file. An explicitly given file
// must exist; otherwise a missing file yields empty settings.
func loadSiteConfigs(explicitPath string) (*config.File, error) {
	path := config.FindConfigFile(explicitPath)
	if path == "" {
		if explicitPath != "" {
			return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, explicitPath)
		}
		return &config.File{Sites: make(map[string]config.SiteConfig)}, nil
	}

	sites, err := config.LoadConfigFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
	}
	return sites, nil
}

// crawlIO holds where a crawl prints.
type crawlIO struct {
	stdout io.Writer
	stderr io.Writer
	color  bool
}

// buildReports creates one report per target. Every target is validated
// before anything is fetched, onion hosts included.
func buildReports(cfg *config.Config) ([]*model.CrawlReport, error) {
	reports := make([]*model.CrawlReport, 0, len(cfg.Targets))
	for _, target := range cfg.Targets {
		seed, err := model.ParseURL(target)
		if err != nil {
			return nil, fmt.Errorf("invalid URL %q: %w", target, err)
		}
		if tor.IsOnionHost(seed.Host) {
			if err := tor.ValidateOnionHost(seed.Host); err != nil {
				return nil, fmt.Errorf("invalid URL %q: %w", target, err)
			}
			if !cfg.UseTor && cfg.ProxyAddress == "" {
				return nil, fmt.Errorf("%q: %w", target, tor.ErrOnionRequiresProxy)
			}
		}
		scope, err := model.NewScope(target, cfg.Depth(seed.Host))
		if err != nil {
			return nil, fmt.Errorf("invalid URL %q: %w", target, err)
		}

		r := model.NewCrawlReport(scope)
		r.Extensions = cfg.ExtensionsFor(seed.Host)
		r.OutputDir = cfg.OutputDir
		reports = append(reports, r)
	}
	return reports, nil
}

// runCrawl crawls every target and writes the reports.
func runCrawl(ctx context.Context, cfg *config.Config, out crawlIO, logger *slog.Logger) error {
	reports, err := buildReports(cfg)
	if err != nil {
		return err
	}

	logger.Info("starting crawl",
		"targets", cfg.Targets,
		"recursive", cfg.Recursive,
		"batchSize", cfg.BatchSize,
		"saveToDB", cfg.SaveToDB,
	)

	// Progress goes to stderr when a machine-readable report owns stdout.
	progressOut := out.stdout
	if cfg.ReportFile == "" && (cfg.JSONReport || cfg.MarkdownReport) {
		progressOut = out.stderr
	}

	proxyAddress := cfg.ProxyAddress
	if cfg.UseTor {
		daemon, err := startTorDaemon(ctx, cfg, progressOut, logger)
		if err != nil {
			return err
		}
		defer func() {
			logger.Info("stopping embedded Tor daemon")
			if err := daemon.Stop(); err != nil {
				logger.Error("failed to stop embedded Tor daemon", "error", err)
			}
		}()
		if proxyAddress, err = daemon.ProxyAddress(); err != nil {
			return err
		}
	}

	client, err := httpclient.NewClient(
		httpclient.WithTimeout(cfg.Timeout),
		httpclient.WithProxy(proxyAddress),
	)
	if err != nil {
		return fmt.Errorf("failed to create HTTP client: %w", err)
	}
	if proxyAddress != "" {
		if err := client.CheckProxy(ctx).Err(); err != nil {
			return fmt.Errorf("proxy check failed: %w (is a SOCKS5 proxy running at %s?)", err, proxyAddress)
		}
		logger.Info("proxy connection verified", "address", proxyAddress)
	}

	var db *database.CrawlDB
	if cfg.SaveToDB {
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close() //nolint:errcheck
	}

	var sink model.ErrorSink = log.DiscardSink{}
	var fileSink *log.FileSink
	if cfg.ErrorLogPath != "" {
		fileSink = log.NewFileSink(cfg.ErrorLogPath, logger)
		defer fileSink.Close() //nolint:errcheck
		sink = fileSink
	}

	console := report.NewConsole(progressOut,
		report.WithConsoleColor(out.color),
		report.WithSeedPrefix(len(reports) > 1 && cfg.BatchSize > 1),
	)
	console.Banner(getVersion())

	bp := pipeline.NewBatchProcessor(
		func(r *model.CrawlReport) *pipeline.Pipeline {
			return createPipelineForReport(client, cfg, r, db, sink, console, logger)
		},
		pipeline.WithBatchConcurrency(cfg.BatchSize),
		pipeline.WithBatchLogger(logger),
	)
	batchErr := bp.ProcessBatch(ctx, reports)

	if err := outputReports(cfg, reports, out); err != nil {
		return err
	}
	if fileSink != nil && fileSink.Count() > 0 {
		fmt.Fprintf(progressOut, "%d error(s) logged to %s\n", fileSink.Count(), fileSink.Path())
	}
	console.Done()

	if errors.Is(batchErr, context.Canceled) {
		return fmt.Errorf("crawl interrupted: %w", batchErr)
	}
	return batchErr
}

// startTorDaemon launches the embedded Tor daemon and waits for it to bootstrap.
func startTorDaemon(ctx context.Context, cfg *config.Config, progress io.Writer, logger *slog.Logger) (*tor.Daemon, error) {
	fmt.Fprintln(progress, "Starting embedded Tor daemon...")
	fmt.Fprintln(progress, "This may take a few minutes while Tor builds its circuits.")

	daemon := tor.NewDaemon(tor.WithStartupTimeout(cfg.TorStartupTimeout))
	if err := daemon.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start embedded Tor daemon: %w", err)
	}
	addr, _ := daemon.ProxyAddress()
	logger.Info("embedded Tor daemon started", "socks", addr)
	return daemon, nil
}

// createPipelineForReport creates the pipeline for one seed with the
// settings of its host.
func createPipelineForReport(
	client *httpclient.Client,
	cfg *config.Config,
	r *model.CrawlReport,
	db *database.CrawlDB,
	sink model.ErrorSink,
	progress pipeline.Progress,
	logger *slog.Logger,
) *pipeline.Pipeline {
	host := r.Scope.Base.Host
	site := cfg.Site(host)

	pipelineOpts := []pipeline.Option{
		pipeline.WithLogger(logger),
		pipeline.WithProgress(progress),
	}
	configOpts := []pipeline.DefaultPipelineOption{
		pipeline.WithPipelineConcurrency(cfg.Concurrency),
		pipeline.WithPipelineMaxPages(cfg.MaxPages),
		pipeline.WithPipelineMaxRedirects(cfg.MaxRedirects),
		pipeline.WithPipelineCrawlTimeout(cfg.CrawlTimeout),
		pipeline.WithPipelineUserAgent(cfg.UserAgentFor(host)),
		pipeline.WithPipelineMaxBodySize(cfg.MaxBodySize),
		pipeline.WithPipelineMaxDownloadSize(cfg.MaxDownloadSize),
		pipeline.WithPipelineErrorSink(sink),
	}
	if site.Cookie != "" {
		configOpts = append(configOpts, pipeline.WithPipelineCookie(site.Cookie))
	}
	if len(site.Headers) > 0 {
		configOpts = append(configOpts, pipeline.WithPipelineHeaders(site.Headers))
	}
	if db != nil {
		configOpts = append(configOpts, pipeline.WithPipelineDB(db))
	}
	return pipeline.DefaultPipeline(client, pipelineOpts, configOpts...)
}

// outputReports writes the reports in the requested format.
func outputReports(cfg *config.Config, reports []*model.CrawlReport, out crawlIO) error {
	output := out.stdout
	if cfg.ReportFile != "" {
		f, err := createReportFile(cfg.ReportFile)
		if err != nil {
			return err
		}
		defer f.Close() //nolint:errcheck
		output = f
	}

	w := newReportWriter(output, cfg.JSONReport, cfg.MarkdownReport, cfg.Verbose, cfg.ReportFile == "" && out.color)
	for _, r := range reports {
		if _, err := w.Write(r); err != nil {
			return fmt.Errorf("failed to write report for %s: %w", r.Seed(), err)
		}
	}
	return nil
}

// newReportWriter picks the report format.
func newReportWriter(output io.Writer, asJSON, asMarkdown, verbose, colored bool) report.Writer {
	switch {
	case asJSON:
		return report.NewFullJSONWriter(output, getVersion(), report.WithPrettyPrint())
	case asMarkdown:
		return report.NewMarkdownWriter(output)
	default:
		return report.NewSimpleWriter(output, report.WithVerbose(verbose), report.WithColor(colored))
	}
}

// createReportFile creates (or truncates) path and its parent directories.
// Reports list every crawled URL, so the file is readable by the owner only.
func createReportFile(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600) //nolint:gosec // user supplied report path
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, nil
}
