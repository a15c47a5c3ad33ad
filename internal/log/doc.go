// Package log provides the logging and error-log plumbing of spider.
//
// Diagnostics go through log/slog. NewSecureLogger wraps the text handler
// in a SecureHandler that masks sensitive attributes: the headers and
// cookies of site configurations, credentials embedded in URLs and values
// that look like tokens. Masking applies at every level, so verbose output
// can be shared.
//
// Per-URL crawl failures are not log lines but entries of an error log.
// The sinks in this package implement model.ErrorSink:
//
//   - FileSink appends "URL: ...\nError: ...\n\n" entries to a file.
//   - LoggerSink forwards failures to a *slog.Logger.
//   - DiscardSink drops them.
//
// # Usage
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	slog.SetDefault(logger)
//
//	sink := log.NewFileSink("spider.log", logger)
//	defer sink.Close()
package log
