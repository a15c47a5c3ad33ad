package report

import (
	"io"

	"github.com/nao1215/spider/internal/model"
)

// Writer renders crawl reports.
//
// Design decision: an interface so the crawl and history commands can pick
// text, JSON or Markdown output and send it to stdout or a file alike.
type Writer interface {
	// Write renders report and returns the number of bytes written.
	Write(report *model.CrawlReport) (int, error)
}

// MultiWriter writes each report to several Writers, e.g. the terminal
// and a report file.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write writes report to every Writer and stops at the first error.
func (m *MultiWriter) Write(report *model.CrawlReport) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(report)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

type baseWriter struct {
	output io.Writer
}

func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// statusText describes how the run ended.
func statusText(report *model.CrawlReport) string {
	switch {
	case report.TimedOut:
		return "TIMED OUT (partial results)"
	case report.ErrorMessage != "":
		return "ERROR - " + report.ErrorMessage
	default:
		return "Complete"
	}
}

// truncateString shortens s to maxLen bytes with an ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
