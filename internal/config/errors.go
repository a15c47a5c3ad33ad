package config

import "errors"

// Configuration validation errors returned by Config.Validate.
//
// Design decision: package-level sentinels so callers can use errors.Is
// while users still get a readable message.
var (
	// ErrNoTarget is returned when no seed URL is given.
	ErrNoTarget = errors.New("no target specified: provide at least one URL")

	// ErrInvalidTimeout is returned when the request timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidCrawlTimeout is returned when the crawl deadline is negative.
	ErrInvalidCrawlTimeout = errors.New("invalid crawl timeout: must be non-negative")

	// ErrInvalidDepth is returned when --level is outside 1-100.
	ErrInvalidDepth = errors.New("invalid level: must be between 1 and 100")

	// ErrLevelWithoutRecursive is returned when --level is set without --recursive.
	ErrLevelWithoutRecursive = errors.New("--level requires --recursive")

	// ErrNoExtensions is returned when the extension list is empty.
	ErrNoExtensions = errors.New("no extensions specified")

	// ErrNoOutputDir is returned when the output directory is empty.
	ErrNoOutputDir = errors.New("no output directory specified")

	// ErrInvalidConcurrency is returned when the worker count is not positive.
	ErrInvalidConcurrency = errors.New("invalid workers: must be positive")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrInvalidMaxRedirects is returned when the redirect cap is negative.
	ErrInvalidMaxRedirects = errors.New("invalid max redirects: must be non-negative")

	// ErrInvalidMaxPages is returned when the page cap is negative.
	ErrInvalidMaxPages = errors.New("invalid max pages: must be non-negative")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrInvalidMaxBodySize is returned when a size limit is negative.
	ErrInvalidMaxBodySize = errors.New("invalid size limit: must be non-negative")

	// ErrConflictingProxy is returned when both --proxy and --tor are given.
	ErrConflictingProxy = errors.New("conflicting proxies: --proxy and --tor cannot be used together")

	// ErrInvalidTorStartupTimeout is returned when --tor-startup-timeout is not positive.
	ErrInvalidTorStartupTimeout = errors.New("invalid Tor startup timeout: must be positive")
)
