package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/book-expert/blog-workflow/internal/config"
	"github.com/book-expert/blog-workflow/internal/core"
	"github.com/book-expert/blog-workflow/internal/text"
	"github.com/book-expert/logger"
)

// Paths served by a self-hosted narration server.
const (
	narratePath = "/v1/generate/speech"
	healthPath  = "/health"
)

const (
	formatWAV                   = "wav"
	defaultNarrationTemperature = 0.75
	defaultNarrationLanguage    = "zh"
)

// HTTPSynthesizer narrates blog posts through a self-hosted speech server. The
// server is asked for the configured audio format and must answer with it.
type HTTPSynthesizer struct {
	httpClient  *http.Client
	baseURL     string
	narrator    *text.Narrator
	format      string
	voice       string
	language    string
	temperature float64
	log         *logger.Logger
}

// narrationRequest is the JSON body of a narration call. Voice names a speaker
// reference known to the server.
type narrationRequest struct {
	Text        string  `json:"text"`
	Voice       string  `json:"speaker_ref_path,omitempty"`
	Language    string  `json:"language"`
	Temperature float64 `json:"temperature"`
	Format      string  `json:"format"`
}

type narrationFailure struct {
	Detail string `json:"detail"`
	Code   string `json:"error_code,omitempty"`
}

// NewHTTPSynthesizer builds a synthesizer for the server at cfg.BaseURL. An empty
// format means wav.
func NewHTTPSynthesizer(cfg config.SpeechConfig, log *logger.Logger) (*HTTPSynthesizer, error) {
	if cfg.BaseURL == "" {
		return nil, ErrBaseURLEmpty
	}

	format := cfg.Format
	if format == "" {
		format = formatWAV
	}

	_, err := MediaType(format)
	if err != nil {
		return nil, err
	}

	synth := &HTTPSynthesizer{
		httpClient:  &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		baseURL:     strings.TrimSuffix(cfg.BaseURL, "/"),
		narrator:    text.NewNarrator(),
		format:      format,
		voice:       cfg.Voice,
		language:    cfg.Language,
		temperature: cfg.Temperature,
		log:         log,
	}

	if synth.language == "" {
		synth.language = defaultNarrationLanguage
	}

	if synth.temperature == 0 {
		synth.temperature = defaultNarrationTemperature
	}

	return synth, nil
}

// Synthesize narrates markdown and returns audio in the configured format.
func (s *HTTPSynthesizer) Synthesize(ctx context.Context, markdown string) (core.Audio, error) {
	narration := s.narrator.Narrate(markdown)
	if narration == "" {
		return core.Audio{}, ErrTextEmpty
	}

	data, err := s.narrate(ctx, narration)
	if err != nil {
		return core.Audio{}, core.NewServiceError(serviceName, "synthesize", err)
	}

	logSynthesized(s.log, len(data), s.format, len(narration))

	return core.Audio{Data: data, Format: s.format}, nil
}

// HealthCheck reports whether the narration server answers its health endpoint.
func (s *HTTPSynthesizer) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+healthPath, http.NoBody)
	if err != nil {
		return core.NewServiceError(serviceName, "health", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return core.NewServiceError(serviceName, "health", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return core.NewServiceError(serviceName, "health", fmt.Errorf("%w: %s", ErrUnhealthy, resp.Status))
	}

	return nil
}

func (s *HTTPSynthesizer) narrate(ctx context.Context, narration string) ([]byte, error) {
	wantType, _ := MediaType(s.format)

	body, err := json.Marshal(narrationRequest{
		Text:        narration,
		Voice:       s.voice,
		Language:    s.language,
		Temperature: s.temperature,
		Format:      s.format,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode narration request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+narratePath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create narration request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", wantType)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach narration server: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read narration response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, narrationError(resp.Status, payload)
	}

	gotType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if gotType != wantType {
		return nil, fmt.Errorf("%w: want %s, got %q", ErrUnexpectedAudio, wantType, gotType)
	}

	if len(payload) == 0 {
		return nil, ErrEmptyAudio
	}

	return payload, nil
}

// narrationError prefers the server's structured detail over the raw body.
func narrationError(status string, payload []byte) error {
	var failure narrationFailure

	err := json.Unmarshal(payload, &failure)
	if err == nil && failure.Detail != "" {
		if failure.Code != "" {
			return fmt.Errorf("narration server returned %s: %s (%s)", status, failure.Detail, failure.Code)
		}

		return fmt.Errorf("narration server returned %s: %s", status, failure.Detail)
	}

	return fmt.Errorf("narration server returned %s: %s", status, strings.TrimSpace(string(payload)))
}
