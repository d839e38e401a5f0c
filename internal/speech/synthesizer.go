// Package speech provides the text-to-speech clients used by the blog workflow.
//
// Two providers are supported: an OpenAI-compatible audio speech endpoint and a
// standalone TTS HTTP service. Both narrate markdown through text.Narrator before
// synthesis, so headings, links and code are spoken sensibly.
package speech

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/book-expert/blog-workflow/internal/config"
	"github.com/book-expert/blog-workflow/internal/core"
	"github.com/book-expert/blog-workflow/internal/text"
	"github.com/book-expert/logger"
	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const serviceName = "speech"

// Defaults for the OpenAI provider.
const (
	defaultOpenAIModel = "tts-1"
	defaultOpenAIVoice = "alloy"
)

// Static errors.
var (
	ErrTextEmpty           = errors.New("text cannot be empty")
	ErrEmptyAudio          = errors.New("received empty audio data")
	ErrUnsupportedProvider = errors.New("unsupported speech provider")
	ErrUnsupportedFormat   = errors.New("unsupported audio format")
	ErrBaseURLEmpty        = errors.New("speech base url is required for the http provider")
	ErrUnexpectedAudio     = errors.New("unexpected audio content type")
	ErrUnhealthy           = errors.New("speech service is unhealthy")
)

const logFmtSynthesized = "Synthesized %d bytes of %s audio from %d characters"

// Media types of the audio formats both providers can return.
var mediaTypes = map[string]string{
	"mp3":  "audio/mpeg",
	"wav":  "audio/wav",
	"opus": "audio/opus",
	"flac": "audio/flac",
	"aac":  "audio/aac",
	"pcm":  "audio/pcm",
}

// HealthChecker is implemented by synthesizers whose service exposes a health
// endpoint.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// MediaType returns the HTTP media type of an audio format such as "mp3".
func MediaType(format string) (string, error) {
	mediaType, ok := mediaTypes[format]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	return mediaType, nil
}

// New builds the Synthesizer selected by cfg.Provider. The configured format
// must be one both providers understand.
func New(cfg config.SpeechConfig, log *logger.Logger) (core.Synthesizer, error) {
	switch cfg.Provider {
	case config.SpeechProviderOpenAI, "":
		if cfg.Format != "" {
			_, err := MediaType(cfg.Format)
			if err != nil {
				return nil, err
			}
		}

		return NewOpenAISynthesizer(cfg, time.Duration(cfg.TimeoutSeconds)*time.Second, log), nil
	case config.SpeechProviderHTTP:
		synth, err := NewHTTPSynthesizer(cfg, log)
		if err != nil {
			return nil, err
		}

		return synth, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, cfg.Provider)
	}
}

// OpenAISynthesizer synthesizes speech through the OpenAI audio speech endpoint.
type OpenAISynthesizer struct {
	client   openai.Client
	narrator *text.Narrator
	model    string
	voice    string
	format   string
	log      *logger.Logger
}

// NewOpenAISynthesizer builds an OpenAI speech client from cfg.
func NewOpenAISynthesizer(cfg config.SpeechConfig, timeout time.Duration, log *logger.Logger) *OpenAISynthesizer {
	opts := []option.RequestOption{option.WithMaxRetries(0)}

	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}

	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	if timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(timeout))
	}

	synth := &OpenAISynthesizer{
		client:   openai.NewClient(opts...),
		narrator: text.NewNarrator(),
		model:    cfg.Model,
		voice:    cfg.Voice,
		format:   cfg.Format,
		log:      log,
	}

	if synth.model == "" {
		synth.model = defaultOpenAIModel
	}

	if synth.voice == "" {
		synth.voice = defaultOpenAIVoice
	}

	if synth.format == "" {
		synth.format = config.DefaultSpeechFormat
	}

	return synth
}

// Synthesize converts markdown text into audio in the configured format.
func (s *OpenAISynthesizer) Synthesize(ctx context.Context, markdown string) (core.Audio, error) {
	narration := s.narrator.Narrate(markdown)
	if narration == "" {
		return core.Audio{}, ErrTextEmpty
	}

	resp, err := s.client.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		Input:          narration,
		Model:          openai.SpeechModel(s.model),
		Voice:          openai.AudioSpeechNewParamsVoice(s.voice),
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormat(s.format),
	})
	if err != nil {
		return core.Audio{}, core.NewServiceError(serviceName, "synthesize", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return core.Audio{}, core.NewServiceError(serviceName, "synthesize", fmt.Errorf("failed to read audio data: %w", err))
	}

	if len(data) == 0 {
		return core.Audio{}, core.NewServiceError(serviceName, "synthesize", ErrEmptyAudio)
	}

	logSynthesized(s.log, len(data), s.format, len(narration))

	return core.Audio{Data: data, Format: s.format}, nil
}

func logSynthesized(log *logger.Logger, size int, format string, chars int) {
	if log == nil {
		return
	}

	log.Info(logFmtSynthesized, size, format, chars)
}
