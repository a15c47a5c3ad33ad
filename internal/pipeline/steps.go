package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/nao1215/spider/internal/config"
	"github.com/nao1215/spider/internal/crawler"
	"github.com/nao1215/spider/internal/database"
	"github.com/nao1215/spider/internal/download"
	"github.com/nao1215/spider/internal/httpclient"
	"github.com/nao1215/spider/internal/model"
)

// Step names, in the order DefaultPipeline runs them.
const (
	StepCrawl    = "crawl"
	StepScrape   = "scrape"
	StepDownload = "download"
	StepPersist  = "persist"
)

// reportSink sends failures both to the report and to sink.
func reportSink(report *model.CrawlReport, sink model.ErrorSink) model.ErrorSink {
	if sink == nil {
		return report
	}
	return model.MultiSink{report, sink}
}

// CrawlStep discovers the pages of the report's scope.
type CrawlStep struct {
	fetcher      *crawler.Fetcher
	concurrency  int
	maxPages     int
	maxRedirects int
	crawlTimeout time.Duration
	sink         model.ErrorSink
	logger       *slog.Logger
}

// CrawlStepOption configures a CrawlStep.
type CrawlStepOption func(*CrawlStep)

// WithCrawlConcurrency sets how many pages are fetched in parallel.
func WithCrawlConcurrency(n int) CrawlStepOption {
	return func(s *CrawlStep) {
		s.concurrency = n
	}
}

// WithCrawlMaxPages caps the pages crawled. 0 means unlimited.
func WithCrawlMaxPages(n int) CrawlStepOption {
	return func(s *CrawlStep) {
		s.maxPages = n
	}
}

// WithCrawlMaxRedirects sets the redirect hop limit.
func WithCrawlMaxRedirects(n int) CrawlStepOption {
	return func(s *CrawlStep) {
		s.maxRedirects = n
	}
}

// WithCrawlTimeout bounds the whole crawl. When it expires the pages found
// so far are kept, the report is marked as timed out and later steps still
// run on the partial result.
func WithCrawlTimeout(d time.Duration) CrawlStepOption {
	return func(s *CrawlStep) {
		s.crawlTimeout = d
	}
}

// WithCrawlErrorSink sets an extra sink for per-URL failures.
func WithCrawlErrorSink(sink model.ErrorSink) CrawlStepOption {
	return func(s *CrawlStep) {
		s.sink = sink
	}
}

// WithCrawlLogger sets a custom logger for the crawl step.
func WithCrawlLogger(logger *slog.Logger) CrawlStepOption {
	return func(s *CrawlStep) {
		s.logger = logger
	}
}

// NewCrawlStep creates a crawl step fetching with fetcher.
func NewCrawlStep(fetcher *crawler.Fetcher, opts ...CrawlStepOption) *CrawlStep {
	s := &CrawlStep{
		fetcher:      fetcher,
		concurrency:  crawler.DefaultConcurrency,
		maxRedirects: crawler.DefaultMaxRedirects,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *CrawlStep) Name() string {
	return StepCrawl
}

// Do crawls report.Scope and stores the yielded pages.
func (s *CrawlStep) Do(ctx context.Context, report *model.CrawlReport) error {
	crawlCtx := ctx
	if s.crawlTimeout > 0 {
		var cancel context.CancelFunc
		crawlCtx, cancel = context.WithTimeout(ctx, s.crawlTimeout)
		defer cancel()
	}

	spider := crawler.NewSpider(s.fetcher,
		crawler.WithConcurrency(s.concurrency),
		crawler.WithMaxPages(s.maxPages),
		crawler.WithMaxRedirects(s.maxRedirects),
		crawler.WithErrorSink(reportSink(report, s.sink)),
		crawler.WithLogger(s.logger),
	)

	result, err := spider.Crawl(crawlCtx, report.Scope)
	report.Pages = result.Pages

	if err != nil {
		// Our own deadline is not a failure: the partial result goes on.
		if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			report.TimedOut = true
			s.logger.Warn("crawl deadline reached", "seed", report.Seed(), "pages", len(result.Pages))
			return nil
		}
		return fmt.Errorf("crawl interrupted: %w", err)
	}

	s.logger.Info("crawl completed",
		"seed", report.Seed(),
		"pages", len(result.Pages),
		"fetched", result.Fetched,
	)
	return nil
}

// ScrapeStep fetches pages the crawl did not parse (the seed at depth 0)
// and matches every page's references against the report's extensions.
type ScrapeStep struct {
	fetcher      *crawler.Fetcher
	concurrency  int
	maxRedirects int
	sink         model.ErrorSink
	logger       *slog.Logger
}

// ScrapeStepOption configures a ScrapeStep.
type ScrapeStepOption func(*ScrapeStep)

// WithScrapeConcurrency sets how many pages are scraped in parallel.
func WithScrapeConcurrency(n int) ScrapeStepOption {
	return func(s *ScrapeStep) {
		s.concurrency = n
	}
}

// WithScrapeMaxRedirects sets the redirect hop limit.
func WithScrapeMaxRedirects(n int) ScrapeStepOption {
	return func(s *ScrapeStep) {
		s.maxRedirects = n
	}
}

// WithScrapeErrorSink sets an extra sink for per-URL failures.
func WithScrapeErrorSink(sink model.ErrorSink) ScrapeStepOption {
	return func(s *ScrapeStep) {
		s.sink = sink
	}
}

// WithScrapeLogger sets a custom logger for the scrape step.
func WithScrapeLogger(logger *slog.Logger) ScrapeStepOption {
	return func(s *ScrapeStep) {
		s.logger = logger
	}
}

// NewScrapeStep creates a scrape step fetching with fetcher.
func NewScrapeStep(fetcher *crawler.Fetcher, opts ...ScrapeStepOption) *ScrapeStep {
	s := &ScrapeStep{
		fetcher:      fetcher,
		concurrency:  crawler.DefaultConcurrency,
		maxRedirects: crawler.DefaultMaxRedirects,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *ScrapeStep) Name() string {
	return StepScrape
}

// Do scrapes unparsed pages and fills report.Resources.
func (s *ScrapeStep) Do(ctx context.Context, report *model.CrawlReport) error {
	spider := crawler.NewSpider(s.fetcher,
		crawler.WithConcurrency(s.concurrency),
		crawler.WithMaxRedirects(s.maxRedirects),
		crawler.WithErrorSink(reportSink(report, s.sink)),
		crawler.WithLogger(s.logger),
	)
	scraped := spider.Scrape(ctx, report.Scope, report.Pages)

	exts := model.NewExtensionSet(report.Extensions...)
	report.Resources = CollectResources(report.Pages, exts)

	s.logger.Info("resources matched",
		"seed", report.Seed(),
		"scraped", scraped,
		"resources", len(report.Resources),
	)
	return nil
}

// CollectResources matches the references of pages against exts.
// A fetched page is itself a candidate, so a crawled link to an image
// that was answered with image/png counts as a resource.
func CollectResources(pages []*model.Page, exts model.ExtensionSet) []model.ResourceURL {
	resources := make([]model.ResourceURL, 0)
	for _, p := range pages {
		refs := p.Links
		if p.StatusCode != 0 {
			refs = append([]string{p.URL.String()}, p.Links...)
		}
		resources = model.MergeResources(resources, model.MatchResources(p.URL, refs, exts)...)
	}
	return resources
}

// DownloadStep saves the report's resources to its output directory.
type DownloadStep struct {
	client      *http.Client
	downloadOpt []download.Option
	sink        model.ErrorSink
}

// NewDownloadStep creates a download step. The error sink option, if any,
// is combined with the report so failures are counted there as well.
func NewDownloadStep(client *http.Client, sink model.ErrorSink, opts ...download.Option) *DownloadStep {
	return &DownloadStep{client: client, downloadOpt: opts, sink: sink}
}

// Name returns the step name.
func (s *DownloadStep) Name() string {
	return StepDownload
}

// Do downloads report.Resources into report.OutputDir.
// A directory that cannot be created fails every download but not the step.
func (s *DownloadStep) Do(ctx context.Context, report *model.CrawlReport) error {
	opts := append(append([]download.Option{}, s.downloadOpt...), download.WithErrorSink(reportSink(report, s.sink)))
	d := download.NewDownloader(s.client, report.OutputDir, opts...)
	report.Downloads = d.DownloadAll(ctx, report.Resources)
	return nil
}

// PersistStep stores the report in the crawl history.
type PersistStep struct {
	db     *database.CrawlDB
	logger *slog.Logger
}

// NewPersistStep creates a persist step writing to db.
func NewPersistStep(db *database.CrawlDB, logger *slog.Logger) *PersistStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &PersistStep{db: db, logger: logger}
}

// Name returns the step name.
func (s *PersistStep) Name() string {
	return StepPersist
}

// Do saves the report. Once started the write is not cancelled, so a
// stored report is never half written.
func (s *PersistStep) Do(ctx context.Context, report *model.CrawlReport) error {
	if report.FinishedAt.IsZero() {
		report.FinishedAt = time.Now()
	}
	id, err := s.db.SaveCrawlReport(context.WithoutCancel(ctx), report)
	if err != nil {
		return fmt.Errorf("failed to save crawl history: %w", err)
	}
	s.logger.Debug("crawl saved", "seed", report.Seed(), "id", id, "db", s.db.Path())
	return nil
}

// DefaultPipelineConfig holds the settings of the standard pipeline.
type DefaultPipelineConfig struct {
	Concurrency     int
	MaxPages        int
	MaxRedirects    int
	CrawlTimeout    time.Duration
	Cookie          string
	Headers         map[string]string
	UserAgent       string
	MaxBodySize     int64
	MaxDownloadSize int64

	// ErrorSink receives every per-URL failure besides the report.
	ErrorSink model.ErrorSink

	// DB stores the report when set.
	DB *database.CrawlDB
}

// DefaultPipelineOption configures a DefaultPipelineConfig.
type DefaultPipelineOption func(*DefaultPipelineConfig)

// WithPipelineConcurrency sets the parallel fetches and downloads.
func WithPipelineConcurrency(n int) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Concurrency = n
	}
}

// WithPipelineMaxPages caps the pages crawled.
func WithPipelineMaxPages(n int) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.MaxPages = n
	}
}

// WithPipelineMaxRedirects sets the redirect hop limit.
func WithPipelineMaxRedirects(n int) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.MaxRedirects = n
	}
}

// WithPipelineCrawlTimeout bounds the crawl step.
func WithPipelineCrawlTimeout(d time.Duration) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.CrawlTimeout = d
	}
}

// WithPipelineCookie sets the cookie sent with every request.
func WithPipelineCookie(cookie string) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Cookie = cookie
	}
}

// WithPipelineHeaders sets additional request headers.
func WithPipelineHeaders(headers map[string]string) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Headers = headers
	}
}

// WithPipelineUserAgent sets the User-Agent header.
func WithPipelineUserAgent(userAgent string) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.UserAgent = userAgent
	}
}

// WithPipelineMaxBodySize sets the HTML body limit.
func WithPipelineMaxBodySize(n int64) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.MaxBodySize = n
	}
}

// WithPipelineMaxDownloadSize sets the per-resource size limit.
func WithPipelineMaxDownloadSize(n int64) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.MaxDownloadSize = n
	}
}

// WithPipelineErrorSink sets the sink shared by all steps.
func WithPipelineErrorSink(sink model.ErrorSink) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.ErrorSink = sink
	}
}

// WithPipelineDB adds the persist step writing to db.
func WithPipelineDB(db *database.CrawlDB) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.DB = db
	}
}

// DefaultPipeline creates the standard crawl, scrape, download and
// (with a database) persist pipeline.
//
// The first variadic parameter accepts pipeline options (WithLogger, etc).
// The second accepts pipeline config options (WithPipelineCookie, etc).
func DefaultPipeline(client *httpclient.Client, pipelineOpts []Option, configOpts ...DefaultPipelineOption) *Pipeline {
	p := New(pipelineOpts...)

	cfg := &DefaultPipelineConfig{
		Concurrency:     config.DefaultConcurrency,
		MaxPages:        config.DefaultMaxPages,
		MaxRedirects:    config.DefaultMaxRedirects,
		UserAgent:       config.DefaultUserAgent,
		MaxBodySize:     config.DefaultMaxBodySize,
		MaxDownloadSize: config.DefaultMaxDownloadSize,
	}
	for _, opt := range configOpts {
		opt(cfg)
	}

	httpClient := client.NewHTTPClient()
	if cfg.Cookie != "" || len(cfg.Headers) > 0 {
		httpClient = client.HTTPClientWithConfig(cfg.Cookie, cfg.Headers)
	}

	fetcher := crawler.NewFetcher(httpClient,
		crawler.WithUserAgent(cfg.UserAgent),
		crawler.WithMaxBodySize(cfg.MaxBodySize),
		crawler.WithFetcherLogger(p.logger),
	)

	p.AddSteps(
		NewCrawlStep(fetcher,
			WithCrawlConcurrency(cfg.Concurrency),
			WithCrawlMaxPages(cfg.MaxPages),
			WithCrawlMaxRedirects(cfg.MaxRedirects),
			WithCrawlTimeout(cfg.CrawlTimeout),
			WithCrawlErrorSink(cfg.ErrorSink),
			WithCrawlLogger(p.logger),
		),
		NewScrapeStep(fetcher,
			WithScrapeConcurrency(cfg.Concurrency),
			WithScrapeMaxRedirects(cfg.MaxRedirects),
			WithScrapeErrorSink(cfg.ErrorSink),
			WithScrapeLogger(p.logger),
		),
		NewDownloadStep(httpClient, cfg.ErrorSink,
			download.WithUserAgent(cfg.UserAgent),
			download.WithMaxSize(cfg.MaxDownloadSize),
			download.WithConcurrency(cfg.Concurrency),
			download.WithLogger(p.logger),
		),
	)
	if cfg.DB != nil {
		p.AddStep(NewPersistStep(cfg.DB, p.logger))
	}
	return p
}
