package workflow

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/book-expert/blog-workflow/internal/core"
)

// MetadataStarted is the first metadata entry of every run.
const MetadataStarted = "workflow_started"

// Static errors.
var (
	ErrFieldAlreadySet = errors.New("field is already set")
	ErrEmptyValue      = errors.New("value cannot be empty")
)

// Request is the immutable input of a run.
type Request struct {
	Topic       string
	Length      core.Length
	WantAudio   bool
	PolishStyle core.PolishStyle

	// SourcePath names the markdown file read by the load step.
	SourcePath string
}

// withDefaults fills the length and style the interactive flow falls back to.
func (r Request) withDefaults() Request {
	if r.Length == "" {
		r.Length = core.LengthMedium
	}

	if r.PolishStyle == "" {
		r.PolishStyle = core.StyleBlog
	}

	return r
}

// Validate reports an unknown length or polish style.
func (r Request) Validate() error {
	_, lengthErr := core.ParseLength(string(r.Length))
	if lengthErr != nil {
		return lengthErr
	}

	_, styleErr := core.ParsePolishStyle(string(r.PolishStyle))
	if styleErr != nil {
		return styleErr
	}

	return nil
}

// MetadataEntry records when a step completed.
type MetadataEntry struct {
	Step string
	At   time.Time
}

// Timestamp renders At as RFC 3339 with nanoseconds.
func (m MetadataEntry) Timestamp() string {
	return m.At.Format(time.RFC3339Nano)
}

// State is the value threaded through the steps of a run. Builders return a new
// State and never modify the receiver. Empty strings mean "not set".
type State struct {
	config        Request
	title         string
	originalText  string
	polishedText  string
	blogFilePath  string
	audioFilePath string
	err           string
	metadata      []MetadataEntry
}

// NewState starts a run for req at the given time.
func NewState(req Request, startedAt time.Time) State {
	return State{
		config:   req,
		metadata: []MetadataEntry{{Step: MetadataStarted, At: startedAt}},
	}
}

// Config returns the run input.
func (s State) Config() Request {
	return s.config
}

// OriginalText returns the generated or loaded text before polishing.
func (s State) OriginalText() string {
	return s.originalText
}

// PolishedText returns the text that is persisted and spoken.
func (s State) PolishedText() string {
	return s.polishedText
}

// BlogFilePath returns where the polished document was saved, or "".
func (s State) BlogFilePath() string {
	return s.blogFilePath
}

// AudioFilePath returns where the synthesized audio was saved, or "".
func (s State) AudioFilePath() string {
	return s.audioFilePath
}

// Err returns the first failure of the run as "<step>: <cause>", or "".
func (s State) Err() string {
	return s.err
}

// Failed reports whether an error was recorded.
func (s State) Failed() bool {
	return s.err != ""
}

// Metadata returns a copy of the completion log, oldest first.
func (s State) Metadata() []MetadataEntry {
	return slices.Clone(s.metadata)
}

// Title is the document title: the one read from a source file, else the topic.
func (s State) Title() string {
	if s.title != "" {
		return s.title
	}

	return s.config.Topic
}

// Completed reports whether step has a metadata entry.
func (s State) Completed(step string) bool {
	return slices.ContainsFunc(s.metadata, func(entry MetadataEntry) bool {
		return entry.Step == step
	})
}

// WithTitle sets the document title.
func (s State) WithTitle(title string) (State, error) {
	err := checkWritable("title", s.title, title)
	if err != nil {
		return s, err
	}

	s.title = title

	return s, nil
}

// WithOriginalText sets the generated or loaded text.
func (s State) WithOriginalText(text string) (State, error) {
	err := checkWritable("originalText", s.originalText, text)
	if err != nil {
		return s, err
	}

	s.originalText = text

	return s, nil
}

// WithPolishedText sets the polished text.
func (s State) WithPolishedText(text string) (State, error) {
	err := checkWritable("polishedText", s.polishedText, text)
	if err != nil {
		return s, err
	}

	s.polishedText = text

	return s, nil
}

// WithBlogFilePath sets the path of the persisted document.
func (s State) WithBlogFilePath(path string) (State, error) {
	err := checkWritable("blogFilePath", s.blogFilePath, path)
	if err != nil {
		return s, err
	}

	s.blogFilePath = path

	return s, nil
}

// WithAudioFilePath sets the path of the persisted audio.
func (s State) WithAudioFilePath(path string) (State, error) {
	err := checkWritable("audioFilePath", s.audioFilePath, path)
	if err != nil {
		return s, err
	}

	s.audioFilePath = path

	return s, nil
}

// WithError records msg. The first error is kept.
func (s State) WithError(msg string) State {
	if s.err == "" {
		s.err = msg
	}

	return s
}

// WithCompleted appends a metadata entry for step.
func (s State) WithCompleted(step string, at time.Time) State {
	s.metadata = append(slices.Clone(s.metadata), MetadataEntry{Step: step, At: at})

	return s
}

func checkWritable(name, current, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s: %w", name, ErrEmptyValue)
	}

	if current != "" {
		return fmt.Errorf("%s: %w", name, ErrFieldAlreadySet)
	}

	return nil
}
