package workflow

import (
	"context"
	"errors"
	"fmt"
	"slices"
)

// Step names.
const (
	StepLoad       = "load"
	StepGenerate   = "generate"
	StepPolish     = "polish"
	StepPersist    = "persist"
	StepSynthesize = "synthesize-audio"
)

// Pipeline validation errors.
var (
	ErrEmptyPipeline     = errors.New("pipeline has no steps")
	ErrStepNameEmpty     = errors.New("step name cannot be empty")
	ErrStepRunNil        = errors.New("step has no run function")
	ErrDuplicateStep     = errors.New("duplicate step name")
	ErrDependencyMissing = errors.New("step depends on a step that does not run before it")
	ErrStopWithoutCause  = errors.New("step stopped without a cause")
	ErrStepPanicked      = errors.New("step panicked")
)

// PreconditionError reports that a step ran without the state field it needs.
type PreconditionError struct {
	Step  string
	Field string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("step %s requires %s to be set", e.Step, e.Field)
}

// Outcome is the result of one step: either continue with a new state or stop
// the run with a cause.
type Outcome struct {
	state State
	err   error
}

// Continue hands next to the following step.
func Continue(next State) Outcome {
	return Outcome{state: next}
}

// Stop ends the run. current is returned unchanged apart from the error.
func Stop(current State, cause error) Outcome {
	if cause == nil {
		cause = ErrStopWithoutCause
	}

	return Outcome{state: current, err: cause}
}

// State returns the state the step produced.
func (o Outcome) State() State {
	return o.state
}

// Err returns the cause of a stop, or nil.
func (o Outcome) Err() error {
	return o.err
}

// Stopped reports whether the step asked the engine to stop.
func (o Outcome) Stopped() bool {
	return o.err != nil
}

// Step is a named unit of work.
type Step struct {
	Name string

	// Requires names the steps that must appear earlier in the pipeline.
	Requires []string

	// When guards the step; nil means always run. It sees the state left by the
	// previous step.
	When func(State) bool

	Run func(ctx context.Context, state State) Outcome
}

// After returns a copy of s that depends on the named steps.
func (s Step) After(names ...string) Step {
	s.Requires = append(slices.Clone(s.Requires), names...)

	return s
}

// Pipeline is an ordered, validated list of steps.
type Pipeline struct {
	steps []Step
}

// NewPipeline validates the order of steps: names must be unique and every
// dependency must run earlier.
func NewPipeline(steps ...Step) (Pipeline, error) {
	if len(steps) == 0 {
		return Pipeline{}, ErrEmptyPipeline
	}

	seen := make(map[string]bool, len(steps))

	for index, step := range steps {
		if step.Name == "" {
			return Pipeline{}, fmt.Errorf("step %d: %w", index, ErrStepNameEmpty)
		}

		if step.Run == nil {
			return Pipeline{}, fmt.Errorf("%s: %w", step.Name, ErrStepRunNil)
		}

		if seen[step.Name] {
			return Pipeline{}, fmt.Errorf("%w: %s", ErrDuplicateStep, step.Name)
		}

		for _, dependency := range step.Requires {
			if !seen[dependency] {
				return Pipeline{}, fmt.Errorf("%w: %s -> %s", ErrDependencyMissing, step.Name, dependency)
			}
		}

		seen[step.Name] = true
	}

	return Pipeline{steps: slices.Clone(steps)}, nil
}

// Names lists the steps in execution order.
func (p Pipeline) Names() []string {
	names := make([]string, 0, len(p.steps))
	for _, step := range p.steps {
		names = append(names, step.Name)
	}

	return names
}
