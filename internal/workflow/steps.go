package workflow

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/book-expert/blog-workflow/internal/text"
)

// DefaultTitle is used when a source document has no level-one heading.
const DefaultTitle = "未命名博客"

const polishedSuffix = "_polished.md"

// Log message format constants.
const (
	logFmtPolishFallback = "Polishing failed, keeping the original text: %v"
	logFmtPolishEmpty    = "Polisher returned empty text, keeping the original text"
	logFmtGenerated      = "Generated %d characters for topic %q"
	logFmtPersisted      = "Saved blog to %s"
	logFmtAudioSaved     = "Saved %s audio to %s"
	logFmtLoaded         = "Loaded %q (%d characters) from %s"
)

// ErrEmptyGeneration indicates that the generator returned no text.
var ErrEmptyGeneration = errors.New("generator returned empty text")

func (e *Engine) loadStep() Step {
	return Step{
		Name: StepLoad,
		Run: func(_ context.Context, state State) Outcome {
			path := state.Config().SourcePath
			if path == "" {
				return Stop(state, &PreconditionError{Step: StepLoad, Field: "config.sourcePath"})
			}

			data, readErr := os.ReadFile(path)
			if readErr != nil {
				return Stop(state, fmt.Errorf("failed to read %s: %w", path, readErr))
			}

			title, body, found := text.SplitTitle(string(data))
			if !found || title == "" {
				title = DefaultTitle
			}

			next, err := state.WithTitle(title)
			if err != nil {
				return Stop(state, err)
			}

			next, err = next.WithOriginalText(strings.TrimSpace(body))
			if err != nil {
				return Stop(state, err)
			}

			e.log.Info(logFmtLoaded, title, len(body), path)

			return Continue(next)
		},
	}
}

func (e *Engine) generateStep() Step {
	return Step{
		Name: StepGenerate,
		Run: func(ctx context.Context, state State) Outcome {
			cfg := state.Config()
			if strings.TrimSpace(cfg.Topic) == "" {
				return Stop(state, &PreconditionError{Step: StepGenerate, Field: "config.topic"})
			}

			content, err := e.generator.Generate(ctx, cfg.Topic, cfg.Length)
			if err != nil {
				return Stop(state, err)
			}

			if strings.TrimSpace(content) == "" {
				return Stop(state, ErrEmptyGeneration)
			}

			next, err := state.WithOriginalText(content)
			if err != nil {
				return Stop(state, err)
			}

			e.log.Info(logFmtGenerated, len(content), cfg.Topic)

			return Continue(next)
		},
	}
}

// polishStep falls back to the original text when the polisher fails, unless
// the run itself was cancelled.
func (e *Engine) polishStep() Step {
	return Step{
		Name: StepPolish,
		Run: func(ctx context.Context, state State) Outcome {
			original := state.OriginalText()
			if original == "" {
				return Stop(state, &PreconditionError{Step: StepPolish, Field: "originalText"})
			}

			polished, err := e.polisher.Polish(ctx, original, state.Config().PolishStyle)

			switch {
			case err != nil && ctx.Err() != nil:
				return Stop(state, err)
			case err != nil:
				e.log.Warn(logFmtPolishFallback, err)

				polished = original
			case strings.TrimSpace(polished) == "":
				e.log.Warn(logFmtPolishEmpty)

				polished = original
			}

			next, err := state.WithPolishedText(polished)
			if err != nil {
				return Stop(state, err)
			}

			return Continue(next)
		},
	}
}

// persistStep saves the polished text under a new timestamped name.
func (e *Engine) persistStep() Step {
	return Step{
		Name: StepPersist,
		Run: func(_ context.Context, state State) Outcome {
			precondition := persistPrecondition(state)
			if precondition != nil {
				return Stop(state, precondition)
			}

			path, err := e.store.SaveText(state.Title(), state.PolishedText())
			if err != nil {
				return Stop(state, err)
			}

			return e.recordBlogPath(state, path)
		},
	}
}

// persistBesideSourceStep saves the polished text as "<base>_polished.md" next
// to the source document.
func (e *Engine) persistBesideSourceStep() Step {
	return Step{
		Name: StepPersist,
		Run: func(_ context.Context, state State) Outcome {
			precondition := persistPrecondition(state)
			if precondition != nil {
				return Stop(state, precondition)
			}

			path := PolishedPath(state.Config().SourcePath)

			err := e.store.SaveTextAt(path, state.Title(), state.PolishedText())
			if err != nil {
				return Stop(state, err)
			}

			return e.recordBlogPath(state, path)
		},
	}
}

func (e *Engine) recordBlogPath(state State, path string) Outcome {
	next, err := state.WithBlogFilePath(path)
	if err != nil {
		return Stop(state, err)
	}

	e.log.Info(logFmtPersisted, path)

	return Continue(next)
}

func persistPrecondition(state State) error {
	if state.PolishedText() == "" {
		return &PreconditionError{Step: StepPersist, Field: "polishedText"}
	}

	if strings.TrimSpace(state.Title()) == "" {
		return &PreconditionError{Step: StepPersist, Field: "config.topic"}
	}

	return nil
}

// ShouldSynthesizeAudio is the branch taken after persist: audio was requested
// and there is polished text to speak.
func ShouldSynthesizeAudio(state State) bool {
	return state.Config().WantAudio && state.PolishedText() != ""
}

// synthesizeStep speaks the polished text. audioPath picks the output file for
// the state and the synthesized format.
func (e *Engine) synthesizeStep(audioPath func(state State, format string) string) Step {
	return Step{
		Name: StepSynthesize,
		When: ShouldSynthesizeAudio,
		Run: func(ctx context.Context, state State) Outcome {
			polished := state.PolishedText()
			if polished == "" {
				return Stop(state, &PreconditionError{Step: StepSynthesize, Field: "polishedText"})
			}

			audio, err := e.synthesizer.Synthesize(ctx, polished)
			if err != nil {
				return Stop(state, err)
			}

			path := audioPath(state, audio.Format)

			err = e.store.SaveBytes(path, audio.Data)
			if err != nil {
				return Stop(state, err)
			}

			next, err := state.WithAudioFilePath(path)
			if err != nil {
				return Stop(state, err)
			}

			e.log.Info(logFmtAudioSaved, audio.Format, path)

			return Continue(next)
		},
	}
}

func (e *Engine) storeAudioPath(_ State, format string) string {
	return e.store.AudioPath(format)
}

func besideSourceAudioPath(state State, format string) string {
	return sourceBase(state.Config().SourcePath) + "." + strings.TrimPrefix(format, ".")
}

// PolishedPath returns the "<base>_polished.md" path for a source document.
func PolishedPath(source string) string {
	return sourceBase(source) + polishedSuffix
}

func sourceBase(source string) string {
	return strings.TrimSuffix(source, filepath.Ext(source))
}
