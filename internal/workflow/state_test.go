package workflow_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/book-expert/blog-workflow/internal/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var startedAt = time.Date(2024, time.February, 29, 12, 0, 0, 0, time.UTC)

func TestState_BuildersDoNotMutateReceiver(t *testing.T) {
	t.Parallel()

	initial := workflow.NewState(workflow.Request{Topic: "X"}, startedAt)

	next, err := initial.WithOriginalText("draft")
	require.NoError(t, err)

	assert.Empty(t, initial.OriginalText())
	assert.Equal(t, "draft", next.OriginalText())
	assert.Equal(t, "X", next.Config().Topic)

	completed := next.WithCompleted("generate", startedAt.Add(time.Second))
	assert.Len(t, next.Metadata(), 1)
	assert.Len(t, completed.Metadata(), 2)
	assert.True(t, completed.Completed("generate"))
	assert.False(t, next.Completed("generate"))
}

func TestState_FieldsAreWriteOnce(t *testing.T) {
	t.Parallel()

	state := workflow.NewState(workflow.Request{}, startedAt)

	builders := map[string]func(workflow.State, string) (workflow.State, error){
		"title":         workflow.State.WithTitle,
		"originalText":  workflow.State.WithOriginalText,
		"polishedText":  workflow.State.WithPolishedText,
		"blogFilePath":  workflow.State.WithBlogFilePath,
		"audioFilePath": workflow.State.WithAudioFilePath,
	}

	for name, build := range builders {
		first, err := build(state, "first")
		require.NoError(t, err, name)

		_, err = build(first, "second")
		require.ErrorIs(t, err, workflow.ErrFieldAlreadySet, name)
		assert.Contains(t, err.Error(), name)

		_, err = build(state, " ")
		require.ErrorIs(t, err, workflow.ErrEmptyValue, name)
	}
}

func TestState_WithErrorKeepsFirst(t *testing.T) {
	t.Parallel()

	state := workflow.NewState(workflow.Request{}, startedAt).
		WithError("generate: boom").
		WithError("persist: later")

	assert.Equal(t, "generate: boom", state.Err())
	assert.True(t, state.Failed())
}

func TestState_MetadataIsCopied(t *testing.T) {
	t.Parallel()

	state := workflow.NewState(workflow.Request{}, startedAt)

	entries := state.Metadata()
	entries[0].Step = "tampered"

	assert.Equal(t, workflow.MetadataStarted, state.Metadata()[0].Step)
	assert.Equal(t, "2024-02-29T12:00:00Z", state.Metadata()[0].Timestamp())
}

func TestState_SiblingsDoNotShareMetadata(t *testing.T) {
	t.Parallel()

	base := workflow.NewState(workflow.Request{}, startedAt).WithCompleted("generate", startedAt)

	left := base.WithCompleted("polish", startedAt)
	right := base.WithCompleted("persist", startedAt)

	assert.Equal(t, "polish", left.Metadata()[2].Step)
	assert.Equal(t, "persist", right.Metadata()[2].Step)
}

func TestState_Title(t *testing.T) {
	t.Parallel()

	state := workflow.NewState(workflow.Request{Topic: "topic"}, startedAt)
	assert.Equal(t, "topic", state.Title())

	titled, err := state.WithTitle("heading")
	require.NoError(t, err)
	assert.Equal(t, "heading", titled.Title())
}

func TestRequest_Validate(t *testing.T) {
	t.Parallel()

	require.NoError(t, workflow.Request{Length: "short", PolishStyle: "story"}.Validate())
	require.Error(t, workflow.Request{Length: "short", PolishStyle: "poem"}.Validate())
	require.Error(t, workflow.Request{Length: "tiny", PolishStyle: "blog"}.Validate())
}

func TestNewPipeline_Validation(t *testing.T) {
	t.Parallel()

	run := func(_ context.Context, state workflow.State) workflow.Outcome {
		return workflow.Continue(state)
	}

	_, err := workflow.NewPipeline()
	require.ErrorIs(t, err, workflow.ErrEmptyPipeline)

	_, err = workflow.NewPipeline(workflow.Step{Run: run})
	require.ErrorIs(t, err, workflow.ErrStepNameEmpty)

	_, err = workflow.NewPipeline(workflow.Step{Name: "a"})
	require.ErrorIs(t, err, workflow.ErrStepRunNil)

	_, err = workflow.NewPipeline(workflow.Step{Name: "a", Run: run}, workflow.Step{Name: "a", Run: run})
	require.ErrorIs(t, err, workflow.ErrDuplicateStep)

	_, err = workflow.NewPipeline(
		workflow.Step{Name: "persist", Run: run}.After("polish"),
		workflow.Step{Name: "polish", Run: run},
	)
	require.ErrorIs(t, err, workflow.ErrDependencyMissing)
	assert.Contains(t, err.Error(), "persist -> polish")

	pipeline, err := workflow.NewPipeline(
		workflow.Step{Name: "polish", Run: run},
		workflow.Step{Name: "persist", Run: run}.After("polish"),
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"polish", "persist"}, pipeline.Names())
}

func TestExecute_CustomPipeline(t *testing.T) {
	t.Parallel()

	h := newHarness(t)

	var calls []string

	record := func(name string) workflow.Step {
		return workflow.Step{
			Name: name,
			Run: func(_ context.Context, state workflow.State) workflow.Outcome {
				calls = append(calls, name)

				return workflow.Continue(state)
			},
		}
	}

	guarded := record("guarded")
	guarded.When = func(workflow.State) bool { return false }

	failing := workflow.Step{
		Name: "failing",
		Run: func(_ context.Context, state workflow.State) workflow.Outcome {
			calls = append(calls, "failing")

			return workflow.Stop(state, nil)
		},
	}

	pipeline, err := workflow.NewPipeline(record("first"), guarded, failing, record("never"))
	require.NoError(t, err)

	state := h.engine.Execute(context.Background(), pipeline, workflow.NewState(workflow.Request{}, startedAt))

	assert.Equal(t, []string{"first", "failing"}, calls)
	assert.Equal(t, "failing: "+workflow.ErrStopWithoutCause.Error(), state.Err())
	assert.Equal(t, []string{workflow.MetadataStarted, "first"}, metadataSteps(state))
	assert.Contains(t, h.progress.String(), "--- guarded skipped")
	assert.Contains(t, h.progress.String(), "--- never skipped")
}

func TestOutcome(t *testing.T) {
	t.Parallel()

	state := workflow.NewState(workflow.Request{Topic: "X"}, startedAt)
	cause := errors.New("cause")

	next := workflow.Continue(state)
	assert.False(t, next.Stopped())
	require.NoError(t, next.Err())

	stopped := workflow.Stop(state, cause)
	assert.True(t, stopped.Stopped())
	require.ErrorIs(t, stopped.Err(), cause)
	assert.Equal(t, "X", stopped.State().Config().Topic)

	precondition := &workflow.PreconditionError{Step: "persist", Field: "polishedText"}
	assert.Equal(t, "step persist requires polishedText to be set", precondition.Error())
}
