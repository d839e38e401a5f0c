// Package config provides the configuration structure for the blog workflow.
package config

import (
	"fmt"
	"os"

	"github.com/book-expert/configurator"
	"github.com/book-expert/logger"
	"github.com/pelletier/go-toml/v2"
)

// Defaults applied when a value is missing from both the file and the environment.
const (
	DefaultLLMModel         = "qwen2:0.5b"
	DefaultSpeechProvider   = "openai"
	DefaultSpeechFormat     = "mp3"
	DefaultResultsDir       = "results"
	DefaultTimeoutSeconds   = 120
	DefaultTemperature      = 0.7
	DefaultGenerateTokens   = 2000
	DefaultPolishTokens     = 1000
	DefaultRequestSubject   = "blog.requested"
	DefaultCompletedSubject = "blog.completed"
	DefaultArtifactBucket   = "BLOG_ARTIFACTS"
	defaultLLMAPIKey        = "ollama"
)

// Speech providers.
const (
	SpeechProviderOpenAI = "openai"
	SpeechProviderHTTP   = "http"
)

// Environment variables that override file values.
const (
	EnvLLMBaseURL    = "OPENAI_API_URL"
	EnvLLMAPIKey     = "OPENAI_API_KEY"
	EnvLLMModel      = "OPENAI_MODEL"
	EnvSpeechAPIKey  = "SPEECH_API_KEY"
	EnvSpeechModel   = "SPEECH_MODEL"
	EnvSpeechVoice   = "SPEECH_VOICE"
	EnvSpeechBaseURL = "SPEECH_BASE_URL"
	EnvNATSURL       = "NATS_URL"
)

// DashScope names of the speech variables. They are read as fallbacks and lose
// to the SPEECH_ variables when both are set.
const (
	EnvDashScopeAPIKey = "DASHSCOPE_API_KEY"
	EnvDashScopeModel  = "DASHSCOPE_MODEL"
	EnvDashScopeVoice  = "DASHSCOPE_VOICE"
)

// LLMConfig holds the text generation service settings.
type LLMConfig struct {
	BaseURL           string  `toml:"base_url"`
	APIKey            string  `toml:"api_key"`
	Model             string  `toml:"model"`
	Temperature       float64 `toml:"temperature"`
	GenerateMaxTokens int64   `toml:"generate_max_tokens"`
	PolishMaxTokens   int64   `toml:"polish_max_tokens"`
	TimeoutSeconds    int     `toml:"timeout_seconds"`
}

// SpeechConfig holds the text-to-speech service settings.
type SpeechConfig struct {
	Provider       string  `toml:"provider"`
	BaseURL        string  `toml:"base_url"`
	APIKey         string  `toml:"api_key"`
	Model          string  `toml:"model"`
	Voice          string  `toml:"voice"`
	Format         string  `toml:"format"`
	Language       string  `toml:"language"`
	Temperature    float64 `toml:"temperature"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
}

// PathsConfig holds the configuration for file paths.
type PathsConfig struct {
	ResultsDir  string `toml:"results_dir"`
	BaseLogsDir string `toml:"base_logs_dir"`
}

// NATSConfig holds the configuration for NATS.
type NATSConfig struct {
	URL              string `toml:"url"`
	RequestSubject   string `toml:"request_subject"`
	CompletedSubject string `toml:"completed_subject"`
	ArtifactBucket   string `toml:"artifact_bucket"`
}

// Config is the root configuration structure.
type Config struct {
	LLM    LLMConfig    `toml:"llm"`
	Speech SpeechConfig `toml:"speech"`
	Paths  PathsConfig  `toml:"paths"`
	NATS   NATSConfig   `toml:"nats"`
}

// Load loads the configuration through the central configurator and applies
// environment overrides and defaults.
func Load(log *logger.Logger) (*Config, error) {
	var cfg Config

	err := configurator.Load(&cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration from configurator: %w", err)
	}

	cfg.ApplyEnv(os.LookupEnv)
	cfg.ApplyDefaults()

	return &cfg, nil
}

// LoadFile reads a toml configuration file from disk.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg, parseErr := Parse(data)
	if parseErr != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, parseErr)
	}

	cfg.ApplyEnv(os.LookupEnv)
	cfg.ApplyDefaults()

	return cfg, nil
}

// Parse decodes toml data without applying environment overrides or defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config

	err := toml.Unmarshal(data, &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal toml: %w", err)
	}

	return &cfg, nil
}

// FromEnv builds a configuration from the environment alone.
func FromEnv() *Config {
	var cfg Config

	cfg.ApplyEnv(os.LookupEnv)
	cfg.ApplyDefaults()

	return &cfg
}

// ApplyEnv overrides credentials and endpoints with values found by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	override := func(target *string, key string) {
		value, ok := lookup(key)
		if ok && value != "" {
			*target = value
		}
	}

	override(&c.LLM.BaseURL, EnvLLMBaseURL)
	override(&c.LLM.APIKey, EnvLLMAPIKey)
	override(&c.LLM.Model, EnvLLMModel)
	override(&c.Speech.APIKey, EnvDashScopeAPIKey)
	override(&c.Speech.Model, EnvDashScopeModel)
	override(&c.Speech.Voice, EnvDashScopeVoice)
	override(&c.Speech.APIKey, EnvSpeechAPIKey)
	override(&c.Speech.Model, EnvSpeechModel)
	override(&c.Speech.Voice, EnvSpeechVoice)
	override(&c.Speech.BaseURL, EnvSpeechBaseURL)
	override(&c.NATS.URL, EnvNATSURL)
}

// ApplyDefaults fills every unset value with its default.
func (c *Config) ApplyDefaults() {
	setString := func(target *string, value string) {
		if *target == "" {
			*target = value
		}
	}

	setInt := func(target *int, value int) {
		if *target <= 0 {
			*target = value
		}
	}

	setString(&c.LLM.Model, DefaultLLMModel)
	// Local OpenAI-compatible servers such as ollama accept any key.
	setString(&c.LLM.APIKey, defaultLLMAPIKey)
	setInt(&c.LLM.TimeoutSeconds, DefaultTimeoutSeconds)

	if c.LLM.Temperature == 0 {
		c.LLM.Temperature = DefaultTemperature
	}

	if c.LLM.GenerateMaxTokens <= 0 {
		c.LLM.GenerateMaxTokens = DefaultGenerateTokens
	}

	if c.LLM.PolishMaxTokens <= 0 {
		c.LLM.PolishMaxTokens = DefaultPolishTokens
	}

	setString(&c.Speech.Provider, DefaultSpeechProvider)
	if c.Speech.Provider == SpeechProviderHTTP {
		setString(&c.Speech.Format, "wav")
	}

	setString(&c.Speech.Format, DefaultSpeechFormat)
	setInt(&c.Speech.TimeoutSeconds, DefaultTimeoutSeconds)

	setString(&c.Paths.ResultsDir, DefaultResultsDir)
	setString(&c.Paths.BaseLogsDir, os.TempDir())

	setString(&c.NATS.RequestSubject, DefaultRequestSubject)
	setString(&c.NATS.CompletedSubject, DefaultCompletedSubject)
	setString(&c.NATS.ArtifactBucket, DefaultArtifactBucket)
}
