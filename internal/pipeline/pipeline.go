package pipeline

import (
	"context"
	"log/slog"
)

// Step is one stage of an analysis. Steps run in sequence and each one
// reads and extends the Analysis left by the steps before it.
//
// Design decision: steps are an interface rather than plain functions so a
// step can carry its own collaborators (a fetcher, a store, a logger) and
// report a Name for logs and Analysis.PerformedSteps.
type Step interface {
	// Do executes the step against a. It returns an error only when the
	// analysis cannot go on; non-critical failures such as an unreachable
	// page are recorded in the analysis and return nil.
	Do(ctx context.Context, a *Analysis) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// Pipeline executes steps in order.
//
// A Pipeline is built per analysis and is not shared between goroutines.
// By default the first failing step ends the run; see WithContinueOnError.
type Pipeline struct {
	steps []Step

	logger *slog.Logger

	// continueOnError keeps executing after a step fails.
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

// WithContinueOnError configures the pipeline to continue execution
// even when a step fails. Failures are logged, the last one is recorded in
// Analysis.Err and Execute fails only when ctx ends.
//
// Design decision: scoring steps stop on the first error because later
// steps depend on their output, so only the persistence pipeline built
// after a report exists sets this.
func WithContinueOnError(continueOnError bool) Option {
	return func(p *Pipeline) {
		p.continueOnError = continueOnError
	}
}

// New creates a Pipeline. Steps are added with AddStep.
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

// Execute runs all steps in sequence. Cancellation is checked before each
// step; steps handle their own timeouts.
func (p *Pipeline) Execute(ctx context.Context, a *Analysis) error {
	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			p.logger.Warn("pipeline cancelled",
				"step", step.Name(),
				"reason", err,
			)
			a.Cancelled = true
			return err
		}

		p.logger.Debug("executing step",
			"step", step.Name(),
			"url", a.Target(),
		)

		if err := step.Do(ctx, a); err != nil {
			p.logger.Error("step failed",
				"step", step.Name(),
				"url", a.Target(),
				"error", err,
			)
			a.Err = err
			if !p.continueOnError {
				return err
			}
		}

		a.PerformedSteps = append(a.PerformedSteps, step.Name())
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
