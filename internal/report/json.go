package report

import (
	"encoding/json"
	"io"

	"github.com/nao1215/spider/internal/model"
)

// JSONWriter outputs reports as JSON for other tools.
type JSONWriter struct {
	baseWriter

	indent       bool
	indentPrefix string
	indentString string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables indented output with the given prefix and indent.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint is WithIndent("", "  ").
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs report as JSON.
func (w *JSONWriter) Write(report *model.CrawlReport) (int, error) {
	return w.writeJSON(report)
}

func (w *JSONWriter) writeJSON(v any) (int, error) {
	var data []byte
	var err error
	if w.indent {
		data, err = json.MarshalIndent(v, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return 0, err
	}
	data = append(data, '\n')
	return w.output.Write(data)
}

// Summary holds the counts of a report.
type Summary struct {
	PagesFound      int  `json:"pages_found"`
	ResourcesFound  int  `json:"resources_found"`
	Downloaded      int  `json:"downloaded"`
	FailedDownloads int  `json:"failed_downloads"`
	Errors          int  `json:"errors"`
	TimedOut        bool `json:"timed_out"`
}

// NewSummary computes the summary of report.
func NewSummary(report *model.CrawlReport) Summary {
	return Summary{
		PagesFound:      report.PagesFound(),
		ResourcesFound:  report.ResourcesFound(),
		Downloaded:      report.Downloaded(),
		FailedDownloads: report.FailedDownloads(),
		Errors:          report.ErrorCount(),
		TimedOut:        report.TimedOut,
	}
}

// JSONReport wraps a report with the generating version and its summary.
//
// Design decision: the wrapper keeps output-only fields out of CrawlReport,
// which is also the stored history format.
type JSONReport struct {
	Version string             `json:"version"`
	Summary Summary            `json:"summary"`
	Report  *model.CrawlReport `json:"report"`
}

// FullJSONWriter outputs reports inside a JSONReport wrapper.
type FullJSONWriter struct {
	*JSONWriter

	version string
}

// NewFullJSONWriter creates a writer for wrapped reports.
func NewFullJSONWriter(output io.Writer, version string, opts ...JSONWriterOption) *FullJSONWriter {
	return &FullJSONWriter{
		JSONWriter: NewJSONWriter(output, opts...),
		version:    version,
	}
}

// Write outputs report wrapped with version and summary.
func (w *FullJSONWriter) Write(report *model.CrawlReport) (int, error) {
	return w.writeJSON(&JSONReport{
		Version: w.version,
		Summary: NewSummary(report),
		Report:  report,
	})
}
