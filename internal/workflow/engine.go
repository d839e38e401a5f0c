// Package workflow runs the staged blog pipeline: generate, polish, persist and,
// when audio was requested, synthesize speech.
//
// Every run threads a State value through named steps. A step either continues
// with a new State or stops the run; the first stop ends the run and the
// remaining steps are reported as skipped. Run never returns an error: failures
// are recorded in State.Err as "<step>: <cause>".
package workflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/book-expert/blog-workflow/internal/core"
	"github.com/book-expert/blog-workflow/internal/text"
	"github.com/book-expert/logger"
)

// Progress line formats.
const (
	progressFmtStart   = "==> %s\n"
	progressFmtDone    = "<== %s done\n"
	progressFmtFailed  = "<== %s failed: %s\n"
	progressFmtSkipped = "--- %s skipped\n"
)

// Log message format constants.
const (
	logFmtStepStart    = "Starting step %s"
	logFmtStepDone     = "Step %s completed"
	logFmtStepFailed   = "Step %s failed: %v"
	logFmtStepSkipped  = "Step %s skipped"
	logFmtRunFinished  = "Workflow finished (steps: %s)"
	logFmtRunRejected  = "Workflow request rejected: %v"
	requestStepName    = "request"
	stepListSeparator  = ", "
	errFmtStepFailure  = "%s: %v"
	errFmtMissingField = "%w: %s"
)

// ErrMissingDependency indicates that a required collaborator was not provided.
var ErrMissingDependency = errors.New("missing workflow dependency")

// Dependencies are the collaborators an Engine calls.
type Dependencies struct {
	Generator   core.Generator
	Polisher    core.Polisher
	Synthesizer core.Synthesizer
	Store       core.ResultStore
	Log         *logger.Logger
}

func (d Dependencies) validate() error {
	missing := make([]string, 0, 5)

	if d.Generator == nil {
		missing = append(missing, "generator")
	}

	if d.Polisher == nil {
		missing = append(missing, "polisher")
	}

	if d.Synthesizer == nil {
		missing = append(missing, "synthesizer")
	}

	if d.Store == nil {
		missing = append(missing, "store")
	}

	if d.Log == nil {
		missing = append(missing, "logger")
	}

	if len(missing) > 0 {
		return fmt.Errorf(errFmtMissingField, ErrMissingDependency, strings.Join(missing, stepListSeparator))
	}

	return nil
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces the clock used for metadata timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithProgress writes human-readable progress lines to w.
func WithProgress(w io.Writer) Option {
	return func(e *Engine) {
		e.progress = w
	}
}

// Engine runs the blog pipelines. It holds no per-run state and may be shared
// between goroutines if its collaborators can.
type Engine struct {
	generator   core.Generator
	polisher    core.Polisher
	synthesizer core.Synthesizer
	store       core.ResultStore
	log         *logger.Logger
	now         func() time.Time
	progress    io.Writer

	generatePipeline Pipeline
	polishPipeline   Pipeline
	filePipeline     Pipeline
}

// New wires an Engine. All dependencies are required.
func New(deps Dependencies, opts ...Option) (*Engine, error) {
	err := deps.validate()
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		generator:   deps.Generator,
		polisher:    deps.Polisher,
		synthesizer: deps.Synthesizer,
		store:       deps.Store,
		log:         deps.Log,
		now:         time.Now,
		progress:    io.Discard,
	}

	for _, opt := range opts {
		opt(engine)
	}

	pipelineErr := engine.buildPipelines()
	if pipelineErr != nil {
		return nil, pipelineErr
	}

	return engine, nil
}

func (e *Engine) buildPipelines() error {
	var err error

	e.generatePipeline, err = NewPipeline(
		e.generateStep(),
		e.polishStep().After(StepGenerate),
		e.persistStep().After(StepPolish),
		e.synthesizeStep(e.storeAudioPath).After(StepPersist),
	)
	if err != nil {
		return fmt.Errorf("generate pipeline: %w", err)
	}

	e.polishPipeline, err = NewPipeline(
		e.polishStep(),
		e.persistStep().After(StepPolish),
		e.synthesizeStep(e.storeAudioPath).After(StepPersist),
	)
	if err != nil {
		return fmt.Errorf("polish pipeline: %w", err)
	}

	e.filePipeline, err = NewPipeline(
		e.loadStep(),
		e.polishStep().After(StepLoad),
		e.persistBesideSourceStep().After(StepPolish),
		e.synthesizeStep(besideSourceAudioPath).After(StepPersist),
	)
	if err != nil {
		return fmt.Errorf("file pipeline: %w", err)
	}

	return nil
}

// Run generates a blog post for req, polishes and saves it, and synthesizes
// audio when req.WantAudio is set. An empty length defaults to medium and an
// empty style to blog.
func (e *Engine) Run(ctx context.Context, req Request) State {
	req = req.withDefaults()
	state := NewState(req, e.now())

	validationErr := req.Validate()
	if validationErr != nil {
		return e.reject(state, validationErr)
	}

	return e.Execute(ctx, e.generatePipeline, state)
}

// PolishExisting polishes user-provided markdown, saves it and optionally
// synthesizes audio. A level-one heading becomes the document title.
func (e *Engine) PolishExisting(ctx context.Context, content string, style core.PolishStyle, wantAudio bool) State {
	title, body, found := text.SplitTitle(content)
	if !found || title == "" {
		title = DefaultTitle
	}

	req := Request{Topic: title, PolishStyle: style, WantAudio: wantAudio}.withDefaults()
	state := NewState(req, e.now())

	validationErr := req.Validate()
	if validationErr != nil {
		return e.reject(state, validationErr)
	}

	body = strings.TrimSpace(body)
	if body != "" {
		// Seeding a fresh state cannot collide with an existing value.
		state, _ = state.WithOriginalText(body)
	}

	return e.Execute(ctx, e.polishPipeline, state)
}

// ProcessFile polishes an existing markdown file. The result is written to
// "<base>_polished.md" and audio, when requested, to "<base>.<ext>".
func (e *Engine) ProcessFile(ctx context.Context, path string, wantAudio bool) State {
	req := Request{SourcePath: path, WantAudio: wantAudio}.withDefaults()

	return e.Execute(ctx, e.filePipeline, NewState(req, e.now()))
}

// Execute runs pipeline from state. The first stopped step ends the run.
func (e *Engine) Execute(ctx context.Context, pipeline Pipeline, state State) State {
	for index, step := range pipeline.steps {
		if step.When != nil && !step.When(state) {
			e.reportSkipped(step.Name)

			continue
		}

		ctxErr := ctx.Err()
		if ctxErr != nil {
			state = e.fail(state, step.Name, ctxErr)
			e.skipRemaining(pipeline.steps[index+1:])

			return state
		}

		e.reportf(progressFmtStart, step.Name)
		e.log.Info(logFmtStepStart, step.Name)

		outcome := e.runStep(ctx, step, state)
		if outcome.Stopped() {
			state = e.fail(outcome.State(), step.Name, outcome.Err())
			e.skipRemaining(pipeline.steps[index+1:])

			return state
		}

		state = outcome.State().WithCompleted(step.Name, e.now())

		e.reportf(progressFmtDone, step.Name)
		e.log.Info(logFmtStepDone, step.Name)
	}

	e.log.Info(logFmtRunFinished, strings.Join(pipeline.Names(), stepListSeparator))

	return state
}

func (e *Engine) runStep(ctx context.Context, step Step, state State) (outcome Outcome) {
	defer func() {
		recovered := recover()
		if recovered != nil {
			outcome = Stop(state, fmt.Errorf("%w: %v", ErrStepPanicked, recovered))
		}
	}()

	return step.Run(ctx, state)
}

func (e *Engine) fail(state State, stepName string, cause error) State {
	e.reportf(progressFmtFailed, stepName, cause.Error())
	e.log.Error(logFmtStepFailed, stepName, cause)

	return state.WithError(fmt.Sprintf(errFmtStepFailure, stepName, cause))
}

func (e *Engine) reject(state State, cause error) State {
	e.log.Error(logFmtRunRejected, cause)

	return state.WithError(fmt.Sprintf(errFmtStepFailure, requestStepName, cause))
}

func (e *Engine) skipRemaining(steps []Step) {
	for _, step := range steps {
		e.reportSkipped(step.Name)
	}
}

func (e *Engine) reportSkipped(name string) {
	e.reportf(progressFmtSkipped, name)
	e.log.Info(logFmtStepSkipped, name)
}

func (e *Engine) reportf(format string, args ...any) {
	_, _ = fmt.Fprintf(e.progress, format, args...)
}
