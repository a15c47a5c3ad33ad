package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/nao1215/spider/internal/model"
)

// SimpleWriter outputs human-readable text reports for the terminal.
// Colors are off unless enabled with WithColor, so piped output and report
// files stay plain.
type SimpleWriter struct {
	baseWriter

	verbose bool

	title   *color.Color
	success *color.Color
	failure *color.Color
	warning *color.Color
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose lists every page, download and error instead of counts only.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// WithColor enables ANSI colors.
func WithColor(enabled bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		for _, c := range []*color.Color{w.title, w.success, w.failure, w.warning} {
			if enabled {
				c.EnableColor()
			} else {
				c.DisableColor()
			}
		}
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
		title:      color.New(color.FgCyan, color.Bold),
		success:    color.New(color.FgGreen),
		failure:    color.New(color.FgRed),
		warning:    color.New(color.FgYellow),
	}
	WithColor(false)(w)
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write renders report as text.
func (w *SimpleWriter) Write(report *model.CrawlReport) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, report)
	w.writeSummary(&sb, report)
	if w.verbose {
		w.writePages(&sb, report)
	}
	w.writeDownloads(&sb, report)
	w.writeErrors(&sb, report)
	w.writeFooter(&sb)

	return io.WriteString(w.output, sb.String())
}

func (w *SimpleWriter) rule(sb *strings.Builder, ch string) {
	sb.WriteString(strings.Repeat(ch, 70))
	sb.WriteString("\n")
}

func (w *SimpleWriter) section(sb *strings.Builder, name string) {
	w.rule(sb, "-")
	sb.WriteString(w.title.Sprint(name))
	sb.WriteString("\n")
	w.rule(sb, "-")
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *model.CrawlReport) {
	sb.WriteString("\n")
	w.rule(sb, "=")
	sb.WriteString(w.title.Sprint("                           SPIDER REPORT"))
	sb.WriteString("\n")
	w.rule(sb, "=")
	sb.WriteString("\n")

	fmt.Fprintf(sb, "Seed:        %s\n", report.Seed())
	fmt.Fprintf(sb, "Depth:       %d\n", report.Scope.MaxDepth)
	fmt.Fprintf(sb, "Extensions:  %s\n", strings.Join(report.Extensions, ", "))
	fmt.Fprintf(sb, "Output Dir:  %s\n", report.OutputDir)
	fmt.Fprintf(sb, "Crawl Date:  %s\n", report.StartedAt.Format("2006-01-02 15:04:05 MST"))
	if d := report.Duration(); d > 0 {
		fmt.Fprintf(sb, "Duration:    %s\n", d.Round(time.Millisecond))
	}

	status := statusText(report)
	switch {
	case report.TimedOut:
		status = w.warning.Sprint(status)
	case report.ErrorMessage != "":
		status = w.failure.Sprint(status)
	default:
		status = w.success.Sprint(status)
	}
	fmt.Fprintf(sb, "Status:      %s\n\n", status)
}

func (w *SimpleWriter) writeSummary(sb *strings.Builder, report *model.CrawlReport) {
	w.section(sb, "SUMMARY")
	fmt.Fprintf(sb, "  Found %d URLs\n", report.PagesFound())
	fmt.Fprintf(sb, "  Found %d files\n", report.ResourcesFound())

	line := fmt.Sprintf("Successfully downloaded %d/%d files", report.Downloaded(), len(report.Downloads))
	if report.FailedDownloads() > 0 {
		line = w.warning.Sprint(line)
	} else {
		line = w.success.Sprint(line)
	}
	fmt.Fprintf(sb, "  %s\n", line)
	fmt.Fprintf(sb, "  Errors recorded: %d\n\n", report.ErrorCount())
}

func (w *SimpleWriter) writePages(sb *strings.Builder, report *model.CrawlReport) {
	if len(report.Pages) == 0 {
		return
	}
	w.section(sb, "PAGES")
	for _, p := range report.Pages {
		fmt.Fprintf(sb, "  [+] %s", p.URL)
		if p.Title != "" {
			fmt.Fprintf(sb, " (%s)", truncateString(p.Title, 50))
		}
		sb.WriteString("\n")
		for _, from := range p.RedirectedFrom {
			fmt.Fprintf(sb, "      redirected from %s\n", from)
		}
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeDownloads(sb *strings.Builder, report *model.CrawlReport) {
	failed := report.FailedDownloads()
	if len(report.Downloads) == 0 || (!w.verbose && failed == 0) {
		return
	}
	w.section(sb, "DOWNLOADS")
	for _, d := range report.Downloads {
		if d.Saved() {
			if w.verbose {
				fmt.Fprintf(sb, "  %s %s -> %s (%d bytes)\n", w.success.Sprint("[ok]"), d.Resource.URL, d.Path, d.Size)
			}
			continue
		}
		fmt.Fprintf(sb, "  %s %s\n", w.failure.Sprint("[ng]"), d.Resource.URL)
		fmt.Fprintf(sb, "       %s\n", d.Err)
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeErrors(sb *strings.Builder, report *model.CrawlReport) {
	if !w.verbose || len(report.Errors) == 0 {
		return
	}
	w.section(sb, "ERRORS")
	for _, e := range report.Errors {
		fmt.Fprintf(sb, "  URL: %s\n  Error: %s\n\n", e.URL, e.Message)
	}
}

func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	w.rule(sb, "=")
	sb.WriteString("Report generated by spider\n")
	sb.WriteString("https://github.com/nao1215/spider\n")
	w.rule(sb, "=")
}
