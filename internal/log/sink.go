package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/nao1215/spider/internal/model"
)

// DefaultErrorLogPath is the error log written when no path is configured.
const DefaultErrorLogPath = "spider.log"

// FileSink appends one entry per failure to an error log:
//
//	URL: https://example.com/missing
//	Error: unexpected HTTP status: 404 Not Found
//
// Entries from different workers never interleave. A FileSink created by
// NewFileSink opens its file on the first failure, so a clean run leaves no
// empty log behind.
type FileSink struct {
	mu      sync.Mutex
	path    string
	w       io.Writer
	closer  io.Closer
	openErr error
	count   int
	logger  *slog.Logger
}

// NewFileSink returns a sink appending to the file at path.
func NewFileSink(path string, logger *slog.Logger) *FileSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileSink{path: path, logger: logger}
}

// NewWriterSink returns a sink writing entries to w.
func NewWriterSink(w io.Writer) *FileSink {
	return &FileSink{w: w, logger: slog.Default()}
}

// Record appends an entry for url.
func (s *FileSink) Record(url string, cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.w == nil {
		if s.openErr != nil {
			return
		}
		f, err := os.OpenFile(s.path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644) //nolint:gosec // path comes from the user
		if err != nil {
			s.openErr = err
			s.logger.Warn("failed to open error log", "path", s.path, "error", err)
			return
		}
		s.w = f
		s.closer = f
	}

	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}
	if _, err := fmt.Fprintf(s.w, "URL: %s\nError: %s\n\n", url, msg); err != nil {
		s.logger.Warn("failed to write error log", "path", s.path, "error", err)
		return
	}
	s.count++
}

// Count returns the number of entries written.
func (s *FileSink) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Path returns the log file path, or "" for a writer sink.
func (s *FileSink) Path() string {
	return s.path
}

// Close closes the log file if it was opened.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closer == nil {
		return nil
	}
	err := s.closer.Close()
	s.closer = nil
	s.w = nil
	return err
}

// LoggerSink reports failures to a logger at Warn level.
type LoggerSink struct {
	logger *slog.Logger
}

// NewLoggerSink returns a sink logging through logger.
func NewLoggerSink(logger *slog.Logger) *LoggerSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggerSink{logger: logger}
}

// Record logs the failure.
func (s *LoggerSink) Record(url string, cause error) {
	s.logger.Warn("crawl failure", "url", url, "error", cause)
}

// DiscardSink drops every failure.
type DiscardSink struct{}

// Record does nothing.
func (DiscardSink) Record(string, error) {}

var (
	_ model.ErrorSink = (*FileSink)(nil)
	_ model.ErrorSink = (*LoggerSink)(nil)
	_ model.ErrorSink = DiscardSink{}
)
