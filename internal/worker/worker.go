// Package worker runs blog workflow requests received over NATS.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/book-expert/blog-workflow/internal/core"
	"github.com/book-expert/blog-workflow/internal/workflow"
	"github.com/book-expert/events"
	"github.com/book-expert/logger"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// DefaultRunTimeout bounds a single workflow run.
const DefaultRunTimeout = 10 * time.Minute

const uploadStepName = "upload"

// Log message format constants.
const (
	logFmtReceived      = "Received blog request for workflow %s (topic %q)"
	logFmtInvalid       = "Rejected blog request: %v"
	logFmtRunFailed     = "Workflow %s failed: %s"
	logFmtCompleted     = "Workflow %s completed (blog %s, audio %s)"
	logFmtReplyFailed   = "Failed to publish reply for workflow %s: %v"
	logFmtPublishFailed = "Failed to publish completion for workflow %s: %v"
	logFmtUploadFailed  = "Failed to upload artifact for workflow %s: %v"
)

// Static errors.
var (
	ErrTopicEmpty    = errors.New("topic cannot be empty")
	ErrSubjectEmpty  = errors.New("request subject cannot be empty")
	ErrNilConnection = errors.New("nats connection is required")
	ErrNilRunner     = errors.New("workflow runner is required")
	ErrNilStore      = errors.New("artifact store is required")
)

// Runner executes one blog workflow.
type Runner interface {
	Run(ctx context.Context, req workflow.Request) workflow.State
}

// ArtifactStore uploads the files a run produced.
type ArtifactStore interface {
	core.ObjectStore
	UploadFile(ctx context.Context, key, path string) error
}

// Settings configures a NatsWorker.
type Settings struct {
	// RequestSubject is subscribed to for BlogRequestedEvent messages.
	RequestSubject string
	// CompletedSubject, when set, also receives every BlogCompletedEvent.
	CompletedSubject string
	RunTimeout       time.Duration
}

// NatsWorker listens for blog requests on a NATS subject and runs them.
type NatsWorker struct {
	natsConnection *nats.Conn
	settings       Settings
	runner         Runner
	store          ArtifactStore
	log            *logger.Logger
	now            func() time.Time
}

// NewNatsWorker creates a worker.
func NewNatsWorker(
	natsConnection *nats.Conn,
	settings Settings,
	runner Runner,
	store ArtifactStore,
	log *logger.Logger,
) (*NatsWorker, error) {
	switch {
	case natsConnection == nil:
		return nil, ErrNilConnection
	case runner == nil:
		return nil, ErrNilRunner
	case store == nil:
		return nil, ErrNilStore
	case settings.RequestSubject == "":
		return nil, ErrSubjectEmpty
	}

	if settings.RunTimeout <= 0 {
		settings.RunTimeout = DefaultRunTimeout
	}

	return &NatsWorker{
		natsConnection: natsConnection,
		settings:       settings,
		runner:         runner,
		store:          store,
		log:            log,
		now:            time.Now,
	}, nil
}

// Run subscribes and blocks until ctx is done, then drains the subscription.
func (w *NatsWorker) Run(ctx context.Context) error {
	sub, err := w.natsConnection.Subscribe(w.settings.RequestSubject, func(msg *nats.Msg) {
		w.handleMessage(ctx, msg)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to subject %s: %w", w.settings.RequestSubject, err)
	}

	<-ctx.Done()

	drainErr := sub.Drain()
	if drainErr != nil {
		return fmt.Errorf("failed to drain subscription: %w", drainErr)
	}

	return nil
}

func (w *NatsWorker) handleMessage(parent context.Context, msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), w.settings.RunTimeout)
	defer cancel()

	event, req, err := parseRequest(msg.Data)
	if err != nil {
		w.log.Error(logFmtInvalid, err)
		w.publish(msg, w.completion(event.Header, event.Topic, "request: "+err.Error()))

		return
	}

	w.log.Info(logFmtReceived, event.Header.WorkflowID, req.Topic)

	state := w.runner.Run(ctx, req)
	completed := w.completion(event.Header, req.Topic, state.Err())
	completed.Metadata = stepTimes(state.Metadata())

	if state.Failed() {
		w.log.Error(logFmtRunFailed, event.Header.WorkflowID, state.Err())
	}

	var uploadErr error

	completed.BlogKey, uploadErr = w.uploadArtifact(ctx, state.BlogFilePath())
	w.recordUploadError(completed, uploadErr)

	completed.AudioKey, uploadErr = w.uploadArtifact(ctx, state.AudioFilePath())
	w.recordUploadError(completed, uploadErr)

	if completed.Error == "" {
		w.log.Info(logFmtCompleted, event.Header.WorkflowID, completed.BlogKey, completed.AudioKey)
	}

	w.publish(msg, completed)
}

// uploadArtifact stores the file at path under a fresh uuid key that keeps the
// file extension. An empty path yields an empty key.
func (w *NatsWorker) uploadArtifact(ctx context.Context, path string) (string, error) {
	if path == "" {
		return "", nil
	}

	key := uuid.NewString() + filepath.Ext(path)

	err := w.store.UploadFile(ctx, key, path)
	if err != nil {
		return "", err
	}

	return key, nil
}

// recordUploadError logs err and reports it unless the run already failed.
func (w *NatsWorker) recordUploadError(completed *BlogCompletedEvent, err error) {
	if err == nil {
		return
	}

	w.log.Error(logFmtUploadFailed, completed.Header.WorkflowID, err)

	if completed.Error == "" {
		completed.Error = uploadStepName + ": " + err.Error()
	}
}

func (w *NatsWorker) completion(requestHeader events.EventHeader, topic, errMsg string) *BlogCompletedEvent {
	header := requestHeader
	header.EventID = uuid.NewString()
	header.Timestamp = w.now()

	return &BlogCompletedEvent{
		Header: header,
		Topic:  topic,
		Error:  errMsg,
	}
}

// publish replies to the requester and mirrors the event on the completed subject.
func (w *NatsWorker) publish(msg *nats.Msg, completed *BlogCompletedEvent) {
	data, err := json.Marshal(completed)
	if err != nil {
		w.log.Error(logFmtReplyFailed, completed.Header.WorkflowID, err)

		return
	}

	if msg.Reply != "" {
		respondErr := msg.Respond(data)
		if respondErr != nil {
			w.log.Error(logFmtReplyFailed, completed.Header.WorkflowID, respondErr)
		}
	}

	if w.settings.CompletedSubject != "" {
		publishErr := w.natsConnection.Publish(w.settings.CompletedSubject, data)
		if publishErr != nil {
			w.log.Error(logFmtPublishFailed, completed.Header.WorkflowID, publishErr)
		}
	}
}

// parseRequest decodes and validates a request. The returned event carries a
// workflow id even when validation fails, so the error can be correlated.
func parseRequest(data []byte) (BlogRequestedEvent, workflow.Request, error) {
	var event BlogRequestedEvent

	err := json.Unmarshal(data, &event)
	if event.Header.WorkflowID == "" {
		event.Header.WorkflowID = uuid.NewString()
	}

	if err != nil {
		return event, workflow.Request{}, fmt.Errorf("failed to unmarshal event: %w", err)
	}

	topic := strings.TrimSpace(event.Topic)
	if topic == "" {
		return event, workflow.Request{}, ErrTopicEmpty
	}

	req := workflow.Request{Topic: topic, WantAudio: event.WantAudio}

	if event.Length != "" {
		req.Length, err = core.ParseLength(event.Length)
		if err != nil {
			return event, workflow.Request{}, err
		}
	}

	if event.PolishStyle != "" {
		req.PolishStyle, err = core.ParsePolishStyle(event.PolishStyle)
		if err != nil {
			return event, workflow.Request{}, err
		}
	}

	return event, req, nil
}

func stepTimes(entries []workflow.MetadataEntry) []StepTime {
	times := make([]StepTime, 0, len(entries))
	for _, entry := range entries {
		times = append(times, StepTime{Step: entry.Step, At: entry.At})
	}

	return times
}
