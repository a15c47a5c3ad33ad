package report

import (
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"

	"github.com/nao1215/spider/internal/model"
	"github.com/nao1215/spider/internal/pipeline"
)

// Console prints one status line per finished pipeline step.
// It implements pipeline.Progress and is safe for concurrent use, so a
// batch of crawls can share one Console.
type Console struct {
	mu         sync.Mutex
	out        io.Writer
	seedPrefix bool

	info    *color.Color
	success *color.Color
	warning *color.Color
	failure *color.Color
}

var _ pipeline.Progress = (*Console)(nil)

// ConsoleOption configures a Console.
type ConsoleOption func(*Console)

// WithConsoleColor enables ANSI colors.
func WithConsoleColor(enabled bool) ConsoleOption {
	return func(c *Console) {
		for _, col := range []*color.Color{c.info, c.success, c.warning, c.failure} {
			if enabled {
				col.EnableColor()
			} else {
				col.DisableColor()
			}
		}
	}
}

// WithSeedPrefix prefixes every line with the report's seed. Useful when
// several crawls print to the same terminal.
func WithSeedPrefix(enabled bool) ConsoleOption {
	return func(c *Console) {
		c.seedPrefix = enabled
	}
}

// NewConsole creates a Console writing to out.
func NewConsole(out io.Writer, opts ...ConsoleOption) *Console {
	c := &Console{
		out:     out,
		info:    color.New(color.FgCyan),
		success: color.New(color.FgGreen),
		warning: color.New(color.FgYellow),
		failure: color.New(color.FgRed),
	}
	WithConsoleColor(false)(c)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Banner prints the program name and version.
func (c *Console) Banner(version string) {
	c.println(c.info.Sprintf("spider %s", version))
}

// StepStarted announces the crawl of a seed.
func (c *Console) StepStarted(report *model.CrawlReport, step string) {
	if step != pipeline.StepCrawl {
		return
	}
	c.println(c.prefix(report) + c.info.Sprintf("Crawling %s...", report.Seed()))
}

// StepFinished prints the counts a step produced, or its error.
func (c *Console) StepFinished(report *model.CrawlReport, step string, err error) {
	prefix := c.prefix(report)
	if err != nil {
		c.println(prefix + c.failure.Sprintf("%s failed: %v", step, err))
		return
	}

	switch step {
	case pipeline.StepCrawl:
		line := fmt.Sprintf("Found %d URLs", report.PagesFound())
		if report.TimedOut {
			c.println(prefix + c.warning.Sprint(line+" (crawl deadline reached)"))
			return
		}
		c.println(prefix + line)
	case pipeline.StepScrape:
		c.println(prefix + fmt.Sprintf("Found %d files", report.ResourcesFound()))
	case pipeline.StepDownload:
		line := fmt.Sprintf("Successfully downloaded %d/%d files", report.Downloaded(), len(report.Downloads))
		if report.FailedDownloads() > 0 {
			c.println(prefix + c.warning.Sprint(line))
			return
		}
		c.println(prefix + c.success.Sprint(line))
	}
}

// Done prints the final line of a run.
func (c *Console) Done() {
	c.println(c.success.Sprint("Done!"))
}

func (c *Console) prefix(report *model.CrawlReport) string {
	if !c.seedPrefix {
		return ""
	}
	return "[" + report.Seed() + "] "
}

func (c *Console) println(line string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, line) //nolint:errcheck // terminal output
}
