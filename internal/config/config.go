// Package config provides the runtime configuration for clipminder.
// It handles loading the optional config.yaml in the data directory and
// applying environment variable overrides on top of it. User-facing options
// such as the file filter live in the settings package instead.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Summary backends.
const (
	BackendOllama = "ollama"
	BackendOpenAI = "openai"
)

// Environment variables that override the config file.
const (
	EnvLogLevel     = "CLIPMINDER_LOG_LEVEL"
	EnvCleanLogFile = "CLIPMINDER_CLEAN_LOG"
	EnvOllamaHost   = "OLLAMA_HOST"
	EnvOpenAIAPIKey = "OPENAI_API_KEY"
)

// Config holds the runtime configuration.
type Config struct {
	// LogLevel controls logging verbosity (debug, info, warn, error).
	LogLevel string `yaml:"logLevel"`

	// PollInterval is how often the clipboard is sampled.
	PollInterval time.Duration `yaml:"pollInterval"`

	// Backend selects the generation endpoint flavour used for summaries.
	Backend string `yaml:"backend"`

	// OllamaURL is the base URL of the Ollama server.
	OllamaURL string `yaml:"ollamaURL"`

	// OpenAIBaseURL and OpenAIAPIKey configure an OpenAI-compatible server.
	OpenAIBaseURL string `yaml:"openaiBaseURL"`
	OpenAIAPIKey  string `yaml:"openaiAPIKey"`

	// SummaryWords caps the length of a stored summary.
	SummaryWords int `yaml:"summaryWords"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		LogLevel:      "info",
		PollInterval:  time.Second,
		Backend:       BackendOllama,
		OllamaURL:     "http://localhost:11434",
		OpenAIBaseURL: "http://localhost:11434/v1",
		SummaryWords:  50,
	}
}

// LoadFromFile loads configuration from a YAML file and applies environment
// overrides. If the file doesn't exist, returns the default configuration.
func LoadFromFile(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := DefaultConfig()
			cfg.applyEnv()
			if err := cfg.Validate(); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return LoadFromString(string(content))
}

// LoadFromString parses YAML configuration. Fields that are not present keep
// their defaults.
func LoadFromString(source string) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal([]byte(source), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if level := os.Getenv(EnvLogLevel); level != "" {
		c.LogLevel = level
	}
	if host := os.Getenv(EnvOllamaHost); host != "" {
		if !strings.Contains(host, "://") {
			host = "http://" + host
		}
		c.OllamaURL = host
	}
	if key := os.Getenv(EnvOpenAIAPIKey); key != "" && c.OpenAIAPIKey == "" {
		c.OpenAIAPIKey = key
	}
	c.OllamaURL = strings.TrimRight(c.OllamaURL, "/")
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendOllama, BackendOpenAI:
	default:
		return fmt.Errorf("unknown backend %q (expected %q or %q)", c.Backend, BackendOllama, BackendOpenAI)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("pollInterval must be positive, got %s", c.PollInterval)
	}
	if c.SummaryWords <= 0 {
		return fmt.Errorf("summaryWords must be positive, got %d", c.SummaryWords)
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid logLevel: %w", err)
	}
	return nil
}

// ZapLevel returns the configured log level, defaulting to info.
func (c *Config) ZapLevel() zap.AtomicLevel {
	level, err := zap.ParseAtomicLevel(c.LogLevel)
	if err != nil {
		return zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	return level
}

// ShouldCleanLogFile reports whether the log file should be truncated on start.
func ShouldCleanLogFile() bool {
	v := strings.ToLower(os.Getenv(EnvCleanLogFile))
	return v == "1" || v == "true"
}
