package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/nao1215/spider/internal/model"
)

// Step is one stage of processing a seed.
//
// Design decision: an interface rather than a function type so steps can
// carry their configuration and report a name for logging and progress.
type Step interface {
	// Do runs the step. Per-URL failures are recorded in the report and
	// do not make Do fail; an error means the run cannot go on.
	Do(ctx context.Context, report *model.CrawlReport) error

	// Name returns the step's name for logging and progress output.
	Name() string
}

// Progress observes a pipeline run, e.g. to print live status lines.
// Calls for different reports may arrive concurrently during batch runs.
type Progress interface {
	StepStarted(report *model.CrawlReport, step string)
	StepFinished(report *model.CrawlReport, step string, err error)
}

// Pipeline runs steps in order against one report.
type Pipeline struct {
	steps           []Step
	logger          *slog.Logger
	progress        Progress
	continueOnError bool
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithProgress reports step boundaries to progress.
func WithProgress(progress Progress) Option {
	return func(p *Pipeline) {
		p.progress = progress
	}
}

// WithContinueOnError keeps running later steps after one fails.
// The default stops, since a failed download directory or history
// database usually means the remaining steps would fail too.
func WithContinueOnError(continueOnError bool) Option {
	return func(p *Pipeline) {
		p.continueOnError = continueOnError
	}
}

// New creates an empty Pipeline.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{steps: make([]Step, 0)}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// AddStep appends a step to the pipeline.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs all steps in order.
//
// Cancellation is checked between steps; each step decides how to wind
// down when ctx ends while it runs. A step error is stored in the report
// and, unless continueOnError is set, stops the run.
// FinishedAt is set when Execute returns.
func (p *Pipeline) Execute(ctx context.Context, report *model.CrawlReport) error {
	defer func() {
		if report.FinishedAt.IsZero() {
			report.FinishedAt = time.Now()
		}
	}()

	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			p.logger.Warn("pipeline cancelled",
				"step", step.Name(),
				"seed", report.Seed(),
				"reason", err,
			)
			report.TimedOut = true
			setError(report, err)
			return err
		}

		p.logger.Info("executing step", "step", step.Name(), "seed", report.Seed())
		if p.progress != nil {
			p.progress.StepStarted(report, step.Name())
		}

		err := step.Do(ctx, report)
		if p.progress != nil {
			p.progress.StepFinished(report, step.Name(), err)
		}
		if err != nil {
			p.logger.Error("step failed", "step", step.Name(), "seed", report.Seed(), "error", err)
			setError(report, err)
			if !p.continueOnError {
				return err
			}
		} else {
			p.logger.Debug("step completed", "step", step.Name(), "seed", report.Seed())
		}

		report.PerformedSteps = append(report.PerformedSteps, step.Name())
	}
	return nil
}

func setError(report *model.CrawlReport, err error) {
	report.Error = err
	report.ErrorMessage = err.Error()
}

// StepCount returns the number of steps in the pipeline.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
