package config

import (
	"github.com/nibzard/tasklane/internal/assistant"
	"github.com/nibzard/tasklane/internal/usage"
)

// ConfigSource represents where a configuration value came from.
type ConfigSource string

const (
	SourceDefault  ConfigSource = "default"
	SourceUserFile ConfigSource = "user file"
	SourceProjFile ConfigSource = "project file"
	SourceEnv      ConfigSource = "environment"
	SourceFlag     ConfigSource = "flag"
)

// ConfigWithSources holds configuration along with source information for each field.
type ConfigWithSources struct {
	Config  *Config
	Sources map[string]ConfigSource
	// Files lists the config files that were read, lowest precedence first.
	Files []string
}

// Default values.
const (
	DefaultDataDir = "~/.tasklane"
	DefaultStorage = "file"
	DefaultListen  = "127.0.0.1:8080"
)

// Config holds the full configuration for tasklane.
type Config struct {
	// Storage
	DataDir string      `toml:"data_dir"`
	Storage string      `toml:"storage"` // file or redis
	Redis   RedisConfig `toml:"redis"`

	// HTTP API
	Listen string `toml:"listen"`

	// Assistant
	Assistant AssistantConfig `toml:"assistant"`

	// Pricing overrides the built-in per-model rates, keyed by model name.
	Pricing map[string]usage.Rate `toml:"pricing"`

	// Logging configuration
	LogLevel      string `toml:"log_level"`
	LogFormat     string `toml:"log_format"`
	LogTimestamps bool   `toml:"log_timestamps"`
	LogCaller     bool   `toml:"log_caller"`

	PromptDir string `toml:"-"` // Hidden, dev-only (requires TASKLANE_PROMPT_MODE=dev)
}

// RedisConfig selects the Redis instance used when storage = "redis".
type RedisConfig struct {
	Addr     string `toml:"addr"` // host:port or redis:// URL
	Password string `toml:"password"`
	DB       int    `toml:"db"`
	Prefix   string `toml:"prefix"`
}

// AssistantConfig is the [assistant] table. Zero values leave the
// persisted or built-in setting in place.
type AssistantConfig struct {
	APIKey           string  `toml:"api_key"`
	Model            string  `toml:"model"`
	BaseURL          string  `toml:"base_url"`
	MaxTokens        int     `toml:"max_tokens"`
	Temperature      float64 `toml:"temperature"`
	HistoryLimit     int     `toml:"history_limit"`
	SummaryMaxTokens int     `toml:"summary_max_tokens"`
	TimeoutSeconds   int     `toml:"timeout_seconds"`
}

// Settings converts the table to the assistant's own config type.
func (a AssistantConfig) Settings() assistant.Config {
	return assistant.Config{
		APIKey:           a.APIKey,
		Model:            a.Model,
		BaseURL:          a.BaseURL,
		MaxTokens:        a.MaxTokens,
		Temperature:      a.Temperature,
		HistoryLimit:     a.HistoryLimit,
		SummaryMaxTokens: a.SummaryMaxTokens,
		TimeoutSeconds:   a.TimeoutSeconds,
	}
}
