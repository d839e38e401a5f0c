// Package llm implements blog generation and polishing on an OpenAI-compatible
// chat completion endpoint (OpenAI, ollama, DeepSeek and similar gateways).
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/book-expert/blog-workflow/internal/config"
	"github.com/book-expert/blog-workflow/internal/core"
	"github.com/book-expert/logger"
	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const (
	serviceName   = "llm"
	logFmtRequest = "Requesting chat completion from model %s (%d prompt bytes)"
)

// Static errors.
var (
	ErrModelEmpty    = errors.New("llm model is required")
	ErrTopicEmpty    = errors.New("topic cannot be empty")
	ErrTextEmpty     = errors.New("text cannot be empty")
	ErrEmptyChoices  = errors.New("model returned no choices")
	ErrEmptyResponse = errors.New("model returned empty content")
)

// Settings configures a Client.
type Settings struct {
	BaseURL           string
	APIKey            string
	Model             string
	Temperature       float64
	GenerateMaxTokens int64
	PolishMaxTokens   int64
	Timeout           time.Duration
}

// SettingsFromConfig maps the [llm] configuration section to Settings.
func SettingsFromConfig(cfg config.LLMConfig) Settings {
	return Settings{
		BaseURL:           cfg.BaseURL,
		APIKey:            cfg.APIKey,
		Model:             cfg.Model,
		Temperature:       cfg.Temperature,
		GenerateMaxTokens: cfg.GenerateMaxTokens,
		PolishMaxTokens:   cfg.PolishMaxTokens,
		Timeout:           time.Duration(cfg.TimeoutSeconds) * time.Second,
	}
}

// Client implements core.Generator and core.Polisher.
type Client struct {
	client   openai.Client
	settings Settings
	log      *logger.Logger
}

// NewClient builds a client. No network call is made until the first request.
func NewClient(settings Settings, log *logger.Logger) (*Client, error) {
	if settings.Model == "" {
		return nil, ErrModelEmpty
	}

	opts := []option.RequestOption{
		option.WithAPIKey(settings.APIKey),
		option.WithMaxRetries(0),
	}

	if settings.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(settings.BaseURL))
	}

	if settings.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(settings.Timeout))
	}

	return &Client{
		client:   openai.NewClient(opts...),
		settings: settings,
		log:      log,
	}, nil
}

// Model returns the configured model identifier.
func (c *Client) Model() string {
	return c.settings.Model
}

// Ping verifies that the service is reachable by listing the available models.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.client.Models.List(ctx)
	if err != nil {
		return core.NewServiceError(serviceName, "ping", err)
	}

	return nil
}

// Generate writes a blog post about topic.
func (c *Client) Generate(ctx context.Context, topic string, length core.Length) (string, error) {
	if strings.TrimSpace(topic) == "" {
		return "", ErrTopicEmpty
	}

	content, err := c.complete(ctx, BuildGeneratePrompt(topic, length), c.settings.GenerateMaxTokens)
	if err != nil {
		return "", core.NewServiceError(serviceName, "generate", err)
	}

	return content, nil
}

// Polish rewrites text in the requested style.
func (c *Client) Polish(ctx context.Context, text string, style core.PolishStyle) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrTextEmpty
	}

	content, err := c.complete(ctx, BuildPolishPrompt(text, style), c.settings.PolishMaxTokens)
	if err != nil {
		return "", core.NewServiceError(serviceName, "polish", err)
	}

	return content, nil
}

func (c *Client) complete(ctx context.Context, prompt Prompt, maxTokens int64) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.settings.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(prompt.System),
			openai.UserMessage(prompt.User),
		},
	}

	if c.settings.Temperature > 0 {
		params.Temperature = openai.Float(c.settings.Temperature)
	}

	if maxTokens > 0 {
		params.MaxTokens = openai.Int(maxTokens)
	}

	if c.log != nil {
		c.log.Info(logFmtRequest, c.settings.Model, len(prompt.User))
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", ErrEmptyChoices
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", ErrEmptyResponse
	}

	return content, nil
}
