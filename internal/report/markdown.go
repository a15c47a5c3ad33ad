package report

import (
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/spider/internal/model"
)

// MarkdownWriter outputs reports as GitHub Flavored Markdown.
//
// Design decision: nao1215/markdown builds tables, alerts and mermaid
// charts without hand-escaping.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output)}
}

// Write renders report as Markdown.
func (w *MarkdownWriter) Write(report *model.CrawlReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeSummary(md, report)
	w.writePages(md, report)
	w.writeDownloads(md, report)
	w.writeErrors(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.CrawlReport) {
	md.H1("Spider Report")
	md.PlainText("")

	rows := [][]string{
		{"Seed", "`" + report.Seed() + "`"},
		{"Depth", strconv.Itoa(report.Scope.MaxDepth)},
		{"Extensions", strings.Join(report.Extensions, ", ")},
		{"Output Dir", "`" + report.OutputDir + "`"},
		{"Crawl Date", report.StartedAt.Format("2006-01-02 15:04:05 MST")},
	}
	if d := report.Duration(); d > 0 {
		rows = append(rows, []string{"Duration", d.Round(time.Millisecond).String()})
	}
	rows = append(rows, []string{"Status", w.statusText(report)})

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) statusText(report *model.CrawlReport) string {
	switch {
	case report.TimedOut:
		return "⚠️ Timed Out (partial results)"
	case report.ErrorMessage != "":
		return "❌ Error - " + report.ErrorMessage
	default:
		return "✅ Complete"
	}
}

func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, report *model.CrawlReport) {
	md.H2("Summary")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Count"},
		Rows: [][]string{
			{"Pages found", strconv.Itoa(report.PagesFound())},
			{"Files found", strconv.Itoa(report.ResourcesFound())},
			{"Downloaded", strconv.Itoa(report.Downloaded())},
			{"Failed downloads", strconv.Itoa(report.FailedDownloads())},
			{"Errors recorded", strconv.Itoa(report.ErrorCount())},
		},
	})
	md.PlainText("")

	if len(report.Downloads) > 0 {
		w.writePieChart(md, report)
	}

	switch {
	case report.ErrorMessage != "":
		md.Cautionf("The crawl stopped early: %s", report.ErrorMessage)
	case report.TimedOut:
		md.Warningf("The crawl deadline expired. %d page(s) were crawled before it did.", report.PagesFound())
	case report.FailedDownloads() > 0:
		md.Importantf("%d of %d file(s) could not be downloaded.", report.FailedDownloads(), len(report.Downloads))
	case report.ResourcesFound() == 0:
		md.Note("No files matching the extensions were found.")
	default:
		md.Tip("All files were downloaded.")
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, report *model.CrawlReport) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Download Results"),
		piechart.WithShowData(true),
	)
	if n := report.Downloaded(); n > 0 {
		chart.LabelAndIntValue("Downloaded", uint64(n))
	}
	if n := report.FailedDownloads(); n > 0 {
		chart.LabelAndIntValue("Failed", uint64(n))
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writePages(md *markdown.Markdown, report *model.CrawlReport) {
	md.H2("Pages")
	md.PlainText("")

	if len(report.Pages) == 0 {
		md.PlainText("No pages were crawled.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(report.Pages))
	for i, p := range report.Pages {
		depth := "-"
		if d, ok := report.Scope.Depth(p.URL); ok {
			depth = strconv.Itoa(d)
		}
		status := "-"
		if p.StatusCode != 0 {
			status = strconv.Itoa(p.StatusCode)
		}
		title := p.Title
		if title == "" {
			title = "-"
		}
		rows[i] = []string{truncateString(p.URL.String(), 80), depth, status, truncateString(title, 50)}
	}
	md.Table(markdown.TableSet{
		Header: []string{"URL", "Depth", "Status", "Title"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeDownloads(md *markdown.Markdown, report *model.CrawlReport) {
	md.H2("Downloads")
	md.PlainText("")

	if len(report.Downloads) == 0 {
		md.PlainText("No files were downloaded.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(report.Downloads))
	for i, d := range report.Downloads {
		result := "✅ " + d.Path
		size := strconv.FormatInt(d.Size, 10)
		if !d.Saved() {
			result = "❌ " + truncateString(d.Err.Error(), 60)
			size = "-"
		}
		rows[i] = []string{truncateString(d.Resource.URL.String(), 80), truncateString(d.Resource.Source.String(), 60), size, result}
	}
	md.Table(markdown.TableSet{
		Header: []string{"File", "Found On", "Bytes", "Result"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeErrors(md *markdown.Markdown, report *model.CrawlReport) {
	if len(report.Errors) == 0 {
		return
	}
	md.H2("Errors")
	md.PlainText("")

	lines := make([]string, len(report.Errors))
	for i, e := range report.Errors {
		lines[i] = "URL: " + e.URL + "\nError: " + e.Message
	}
	md.Details(strconv.Itoa(len(report.Errors))+" error(s)", strings.Join(lines, "\n\n"))
	md.PlainText("")
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [spider](https://github.com/nao1215/spider)*")
}
