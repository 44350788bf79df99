package config

import (
	"os"
	"strconv"
	"strings"
)

// loadFromEnv overrides config from environment variables. If sources is
// non-nil, it tracks the source of each value.
func loadFromEnv(cfg *Config, sources map[string]ConfigSource) {
	set := func(field string) {
		if sources != nil {
			sources[field] = SourceEnv
		}
	}
	setString := func(env, field string, target *string) {
		if v := os.Getenv(env); v != "" {
			*target = v
			set(field)
		}
	}
	setInt := func(env, field string, target *int) {
		if v := os.Getenv(env); v != "" {
			if i, err := strconv.Atoi(v); err == nil {
				*target = i
				set(field)
			}
		}
	}
	setBool := func(env, field string, target *bool) {
		if v := os.Getenv(env); v != "" {
			*target = boolFromString(v)
			set(field)
		}
	}

	setString("TASKLANE_DATA_DIR", "data_dir", &cfg.DataDir)
	setString("TASKLANE_STORAGE", "storage", &cfg.Storage)
	setString("TASKLANE_LISTEN", "listen", &cfg.Listen)

	setString("TASKLANE_REDIS_ADDR", "redis.addr", &cfg.Redis.Addr)
	setString("TASKLANE_REDIS_PASSWORD", "redis.password", &cfg.Redis.Password)
	setInt("TASKLANE_REDIS_DB", "redis.db", &cfg.Redis.DB)
	setString("TASKLANE_REDIS_PREFIX", "redis.prefix", &cfg.Redis.Prefix)

	// OPENAI_API_KEY is the conventional name; TASKLANE_API_KEY wins when both are set.
	setString("OPENAI_API_KEY", "assistant.api_key", &cfg.Assistant.APIKey)
	setString("TASKLANE_API_KEY", "assistant.api_key", &cfg.Assistant.APIKey)
	setString("TASKLANE_MODEL", "assistant.model", &cfg.Assistant.Model)
	setString("TASKLANE_BASE_URL", "assistant.base_url", &cfg.Assistant.BaseURL)
	setInt("TASKLANE_MAX_TOKENS", "assistant.max_tokens", &cfg.Assistant.MaxTokens)
	if v := os.Getenv("TASKLANE_TEMPERATURE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Assistant.Temperature = f
			set("assistant.temperature")
		}
	}
	setInt("TASKLANE_HISTORY_LIMIT", "assistant.history_limit", &cfg.Assistant.HistoryLimit)
	setInt("TASKLANE_SUMMARY_MAX_TOKENS", "assistant.summary_max_tokens", &cfg.Assistant.SummaryMaxTokens)
	setInt("TASKLANE_TIMEOUT", "assistant.timeout_seconds", &cfg.Assistant.TimeoutSeconds)

	// Logging configuration
	setString("TASKLANE_LOG_LEVEL", "log_level", &cfg.LogLevel)
	setString("TASKLANE_LOG_FORMAT", "log_format", &cfg.LogFormat)
	setBool("TASKLANE_LOG_TIMESTAMPS", "log_timestamps", &cfg.LogTimestamps)
	setBool("TASKLANE_LOG_CALLER", "log_caller", &cfg.LogCaller)

	if devModeEnabled() {
		if v := os.Getenv("TASKLANE_PROMPT_DIR"); v != "" {
			cfg.PromptDir = v
		}
	}
}

// devModeEnabled reports whether TASKLANE_PROMPT_MODE=dev, which unlocks
// the prompt directory override.
func devModeEnabled() bool {
	return os.Getenv("TASKLANE_PROMPT_MODE") == "dev"
}

// boolFromString accepts 1, true, yes and on, in any case, as true.
func boolFromString(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "1" || s == "true" || s == "yes" || s == "on"
}
