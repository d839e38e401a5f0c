package worker

import (
	"time"

	"github.com/book-expert/events"
)

// BlogRequestedEvent asks the worker to run the full blog workflow.
type BlogRequestedEvent struct {
	Header      events.EventHeader `json:"header"`
	Topic       string             `json:"topic"`
	Length      string             `json:"length,omitempty"`
	PolishStyle string             `json:"polish_style,omitempty"`
	WantAudio   bool               `json:"want_audio"`
}

// StepTime records when a workflow step completed.
type StepTime struct {
	Step string    `json:"step"`
	At   time.Time `json:"at"`
}

// BlogCompletedEvent reports the outcome of a run. Keys name objects in the
// artifact bucket; they are empty when the artifact was not produced.
type BlogCompletedEvent struct {
	Header   events.EventHeader `json:"header"`
	Topic    string             `json:"topic,omitempty"`
	BlogKey  string             `json:"blog_key,omitempty"`
	AudioKey string             `json:"audio_key,omitempty"`
	Error    string             `json:"error,omitempty"`
	Metadata []StepTime         `json:"metadata,omitempty"`
}
