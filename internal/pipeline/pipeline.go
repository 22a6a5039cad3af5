package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/nao1215/tineye"
	"github.com/nao1215/tineye/internal/model"
)

// Job carries one search through the pipeline.
type Job struct {
	// Target is the image URL or the local file path.
	Target string

	// Kind tells whether Target is a URL or a file to upload.
	Kind model.QueryKind

	// Data holds the image bytes of an upload once read.
	Data []byte

	// Report accumulates the results of every step.
	Report *model.SearchReport

	// Err is the first error a step returned.
	Err error
}

// NewJob creates a job with an empty report.
func NewJob(target string, kind model.QueryKind) *Job {
	return &Job{
		Target: target,
		Kind:   kind,
		Report: &model.SearchReport{
			Query:      target,
			Kind:       kind,
			SearchedAt: time.Now(),
			Matches:    []tineye.Match{},
		},
	}
}

// fail records the first error of the job.
func (j *Job) fail(err error) {
	if j.Err != nil {
		return
	}
	j.Err = err
	j.Report.Error = err.Error()
}

// Step defines the interface that all pipeline steps must implement.
// Steps are executed in sequence, with each step receiving the job
// modified by previous steps.
type Step interface {
	// Do executes the pipeline step.
	// Returns an error if the step fails; the pipeline records it in the job.
	Do(ctx context.Context, job *Job) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// Pipeline orchestrates the execution of multiple steps.
type Pipeline struct {
	// steps contains the ordered list of steps to execute.
	steps []Step

	// logger is used for structured logging during execution.
	logger *slog.Logger

	// continueOnError runs the remaining steps after one fails.
	// Steps that depend on earlier results skip failed jobs themselves.
	continueOnError bool
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithContinueOnError configures the pipeline to continue execution
// even when a step fails, e.g. to record failed searches in the history.
func WithContinueOnError(continueOnError bool) Option {
	return func(p *Pipeline) {
		p.continueOnError = continueOnError
	}
}

// New creates a new Pipeline with the given options.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps: make([]Step, 0),
	}

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

// Execute runs all pipeline steps in sequence.
// Cancellation is checked before each step; steps handle their own timeouts.
//
// Returns the first error encountered if continueOnError is false,
// or nil (errors are recorded in the job).
func (p *Pipeline) Execute(ctx context.Context, job *Job) error {
	for _, step := range p.steps {
		select {
		case <-ctx.Done():
			p.logger.Warn("pipeline cancelled",
				"step", step.Name(),
				"target", job.Target,
				"reason", ctx.Err(),
			)
			job.fail(ctx.Err())
			return ctx.Err()
		default:
		}

		p.logger.Debug("executing step",
			"step", step.Name(),
			"target", job.Target,
		)

		if err := step.Do(ctx, job); err != nil {
			p.logger.Warn("step failed",
				"step", step.Name(),
				"target", job.Target,
				"error", err,
			)
			job.fail(err)

			if !p.continueOnError {
				return err
			}
			continue
		}

		p.logger.Debug("step completed",
			"step", step.Name(),
			"target", job.Target,
		)
	}

	return nil
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
