// Package model defines the core data structures used throughout spider.
//
// This package contains the following main types:
//   - CanonicalURL: The identity of a URL used for deduplication
//   - Scope: The site/path/depth boundary of one crawl run
//   - FetchOutcome: The classified result of fetching one page
//   - ResourceURL: A discovered URL eligible for download
//   - DownloadResult: The outcome of downloading one resource
//   - CrawlReport: The aggregate result of crawling one seed
//
// URL canonicalization and scope checking live here as pure functions
// because the crawler, the downloader and the reports all depend on the
// same notion of URL identity.
//
// Design decision: We separate models into their own package to avoid circular
// dependencies. Multiple packages (crawler, download, pipeline, report) need
// to use these types, so centralizing them prevents import cycles.
//
// The models are designed to be serializable to JSON for report output and
// database storage.
package model
