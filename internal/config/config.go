package config

import (
	"fmt"
	"maps"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// DefaultTimeout bounds each HTTP request. Clearnet pages answer well
	// within five seconds; a slow server is recorded and skipped.
	DefaultTimeout = 5 * time.Second

	// DefaultCrawlDepth is the depth used by --recursive when --level is
	// not given.
	DefaultCrawlDepth = 5

	// MinCrawlDepth and MaxCrawlDepth bound --level.
	MinCrawlDepth = 1
	MaxCrawlDepth = 100

	// DefaultOutputDir is where resources are saved.
	DefaultOutputDir = "./data/"

	// DefaultConcurrency is the number of parallel fetches and downloads
	// per seed.
	DefaultConcurrency = 4

	// DefaultBatchSize is the number of seeds crawled at once.
	// Seeds usually live on the same host, so one at a time is the default.
	DefaultBatchSize = 1

	// DefaultMaxRedirects caps the redirect hops followed from one URL.
	DefaultMaxRedirects = 10

	// DefaultMaxPages of 0 means no page cap; depth and scope bound the crawl.
	DefaultMaxPages = 0

	// AppName is the application name used for XDG directory paths.
	AppName = "spider"

	// DefaultUserAgent identifies spider in HTTP requests.
	DefaultUserAgent = "spider/1.0 (+https://github.com/nao1215/spider)"

	// DefaultMaxBodySize limits how much of an HTML page is read.
	DefaultMaxBodySize = 10 * 1024 * 1024 // 10MB

	// DefaultMaxDownloadSize limits the size of one downloaded resource.
	DefaultMaxDownloadSize = 100 * 1024 * 1024 // 100MB

	// DefaultErrorLogPath is the append-only error log.
	DefaultErrorLogPath = "spider.log"

	// DefaultTorStartupTimeout bounds the bootstrap of the embedded Tor daemon.
	DefaultTorStartupTimeout = 3 * time.Minute
)

// DefaultExtensions are the resource extensions matched when none are given.
var DefaultExtensions = []string{"jpg", "jpeg", "png", "gif", "bmp"}

// Config holds all configuration options for spider.
// It is populated from CLI flags and passed down explicitly.
//
// Design decision: a single flat struct, as the number of options is
// manageable and every command reads only a few of them.
type Config struct {
	// Timeout is the per-request timeout for fetches and downloads.
	Timeout time.Duration

	// CrawlTimeout is the overall deadline of one crawl. Zero means none.
	// When it expires no new URLs are fetched and partial results are kept.
	CrawlTimeout time.Duration

	// Recursive enables following links. Without it only the seed page
	// is scraped, whatever CrawlDepth says.
	Recursive bool

	// CrawlDepth is the maximum link depth below the seed path.
	CrawlDepth int

	// Extensions are the resource extensions to download, without dots.
	Extensions []string

	// OutputDir is where downloaded resources are saved.
	OutputDir string

	// Concurrency is the number of parallel fetches and downloads per seed.
	Concurrency int

	// BatchSize is the number of seeds crawled concurrently.
	BatchSize int

	// MaxRedirects caps the redirect hops followed from one URL.
	MaxRedirects int

	// MaxPages caps the pages fetched per seed. Zero means unlimited.
	MaxPages int

	// UserAgent is the User-Agent header sent with every request.
	UserAgent string

	// MaxBodySize is the maximum HTML body size read, in bytes.
	MaxBodySize int64

	// MaxDownloadSize is the maximum size of one resource, in bytes.
	MaxDownloadSize int64

	// ErrorLogPath is the append-only error log. Empty disables it.
	ErrorLogPath string

	// ProxyAddress is an optional SOCKS5 proxy in "host:port" form.
	ProxyAddress string

	// UseTor starts an embedded Tor daemon and crawls through it.
	// Mutually exclusive with ProxyAddress.
	UseTor bool

	// TorStartupTimeout bounds the embedded daemon's bootstrap.
	TorStartupTimeout time.Duration

	// Verbose enables debug logging.
	Verbose bool

	// ConfigFilePath is the explicit configuration file path, if any.
	ConfigFilePath string

	// SiteConfigs holds the per-host settings of the configuration file.
	SiteConfigs *File

	// JSONReport selects the JSON report. Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport selects the Markdown report.
	MarkdownReport bool

	// ReportFile is the report destination. Empty means stdout.
	ReportFile string

	// Targets are the seed URLs to crawl.
	Targets []string

	// DBDir is the directory holding the crawl history database.
	DBDir string

	// SaveToDB stores every crawl in the history database.
	SaveToDB bool
}

// NewConfig creates a Config with default values.
//
// Design decision: a constructor instead of zero values because most
// defaults are non-zero.
func NewConfig() *Config {
	return &Config{
		Timeout:           DefaultTimeout,
		CrawlDepth:        DefaultCrawlDepth,
		Extensions:        slices.Clone(DefaultExtensions),
		OutputDir:         DefaultOutputDir,
		Concurrency:       DefaultConcurrency,
		BatchSize:         DefaultBatchSize,
		MaxRedirects:      DefaultMaxRedirects,
		MaxPages:          DefaultMaxPages,
		UserAgent:         DefaultUserAgent,
		MaxBodySize:       DefaultMaxBodySize,
		MaxDownloadSize:   DefaultMaxDownloadSize,
		ErrorLogPath:      DefaultErrorLogPath,
		TorStartupTimeout: DefaultTorStartupTimeout,
		DBDir:             XDGDataDir(),
		SaveToDB:          true,
	}
}

// XDGDataDir returns the XDG data directory for spider.
// On Linux: ~/.local/share/spider
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for spider.
// On Linux: ~/.config/spider
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Depth returns the crawl depth for host: 0 unless recursive, otherwise
// the site override from the configuration file or CrawlDepth.
func (c *Config) Depth(host string) int {
	if !c.Recursive {
		return 0
	}
	if c.SiteConfigs != nil {
		if d := c.SiteConfigs.GetSiteConfig(host).Depth; d > 0 {
			return d
		}
	}
	return c.CrawlDepth
}

// ExtensionsFor returns the extensions to match on host.
func (c *Config) ExtensionsFor(host string) []string {
	if c.SiteConfigs != nil {
		if exts := c.SiteConfigs.GetSiteConfig(host).Extensions; len(exts) > 0 {
			return exts
		}
	}
	return c.Extensions
}

// UserAgentFor returns the User-Agent to send to host.
func (c *Config) UserAgentFor(host string) string {
	if c.SiteConfigs != nil {
		if ua := c.SiteConfigs.GetSiteConfig(host).UserAgent; ua != "" {
			return ua
		}
	}
	return c.UserAgent
}

// Site returns the configuration file settings for host, or the zero value.
func (c *Config) Site(host string) SiteConfig {
	if c.SiteConfigs == nil {
		return SiteConfig{}
	}
	return c.SiteConfigs.GetSiteConfig(host)
}

// Validate checks the configuration and returns the first problem found.
//
// Design decision: validation happens once after flag parsing so a bad
// value fails before any request is sent.
func (c *Config) Validate() error {
	if len(c.Targets) == 0 {
		return ErrNoTarget
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.CrawlTimeout < 0 {
		return ErrInvalidCrawlTimeout
	}
	if c.Recursive && (c.CrawlDepth < MinCrawlDepth || c.CrawlDepth > MaxCrawlDepth) {
		return ErrInvalidDepth
	}
	if err := c.validateSiteDepths(); err != nil {
		return err
	}
	if len(normalizeExtensions(c.Extensions)) == 0 {
		return ErrNoExtensions
	}
	if strings.TrimSpace(c.OutputDir) == "" {
		return ErrNoOutputDir
	}
	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}
	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}
	if c.MaxRedirects < 0 {
		return ErrInvalidMaxRedirects
	}
	if c.MaxPages < 0 {
		return ErrInvalidMaxPages
	}
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}
	if c.MaxBodySize < 0 || c.MaxDownloadSize < 0 {
		return ErrInvalidMaxBodySize
	}
	if c.UseTor && c.ProxyAddress != "" {
		return ErrConflictingProxy
	}
	if c.UseTor && c.TorStartupTimeout <= 0 {
		return ErrInvalidTorStartupTimeout
	}
	return nil
}

// validateSiteDepths applies the --level bounds to the depths of the
// configuration file. Zero means "not set" there.
func (c *Config) validateSiteDepths() error {
	if c.SiteConfigs == nil {
		return nil
	}
	if d := c.SiteConfigs.Defaults.Depth; !validSiteDepth(d) {
		return fmt.Errorf("%w: defaults.depth is %d", ErrInvalidDepth, d)
	}
	for _, host := range slices.Sorted(maps.Keys(c.SiteConfigs.Sites)) {
		if d := c.SiteConfigs.Sites[host].Depth; !validSiteDepth(d) {
			return fmt.Errorf("%w: sites.%s.depth is %d", ErrInvalidDepth, host, d)
		}
	}
	return nil
}

func validSiteDepth(d int) bool {
	return d == 0 || (d >= MinCrawlDepth && d <= MaxCrawlDepth)
}

// SplitExtensions parses "jpg,PNG, .gif" style lists into lowercase
// extensions without dots. Repeated flag values are accepted as well.
func SplitExtensions(values ...string) []string {
	var out []string
	for _, v := range values {
		out = append(out, strings.Split(v, ",")...)
	}
	return normalizeExtensions(out)
}

func normalizeExtensions(exts []string) []string {
	out := make([]string, 0, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(e), "."))
		if e == "" || slices.Contains(out, e) {
			continue
		}
		out = append(out, e)
	}
	return out
}
