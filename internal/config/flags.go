package config

import (
	"flag"
)

// parseFlags defines the global flags on fs and parses args. Only flags that
// were explicitly set change cfg. If sources is non-nil, it tracks the
// source of each value.
func parseFlags(cfg *Config, fs *flag.FlagSet, args []string, sources map[string]ConfigSource) error {
	if fs == nil {
		fs = flag.NewFlagSet("tasklane", flag.ContinueOnError)
	}

	var (
		dataDir, storageKind, redisAddr, listen string
		model, baseURL                          string
		logLevel, logFormat                     string
		logTimestamps, logCaller                bool
		promptDir                               string
	)
	fs.StringVar(&dataDir, "data-dir", cfg.DataDir, "Data directory (task state, logs)")
	fs.StringVar(&storageKind, "storage", cfg.Storage, "Storage backend (file, redis)")
	fs.StringVar(&redisAddr, "redis-addr", cfg.Redis.Addr, "Redis address or redis:// URL")
	fs.StringVar(&listen, "listen", cfg.Listen, "HTTP API listen address")
	fs.StringVar(&model, "model", cfg.Assistant.Model, "Assistant model")
	fs.StringVar(&baseURL, "base-url", cfg.Assistant.BaseURL, "Chat-completions endpoint base URL")
	fs.StringVar(&logLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	fs.StringVar(&logFormat, "log-format", cfg.LogFormat, "Log format (text, json, logfmt)")
	fs.BoolVar(&logTimestamps, "log-timestamps", cfg.LogTimestamps, "Show timestamps in logs")
	fs.BoolVar(&logCaller, "log-caller", cfg.LogCaller, "Show caller location in logs")
	if devModeEnabled() {
		fs.StringVar(&promptDir, "prompt-dir", cfg.PromptDir, "Prompt directory override (dev only)")
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	// Map flag names to source field names
	flagToSource := map[string]string{
		"data-dir":       "data_dir",
		"storage":        "storage",
		"redis-addr":     "redis.addr",
		"listen":         "listen",
		"model":          "assistant.model",
		"base-url":       "assistant.base_url",
		"log-level":      "log_level",
		"log-format":     "log_format",
		"log-timestamps": "log_timestamps",
		"log-caller":     "log_caller",
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "data-dir":
			cfg.DataDir = dataDir
		case "storage":
			cfg.Storage = storageKind
		case "redis-addr":
			cfg.Redis.Addr = redisAddr
		case "listen":
			cfg.Listen = listen
		case "model":
			cfg.Assistant.Model = model
		case "base-url":
			cfg.Assistant.BaseURL = baseURL
		case "log-level":
			cfg.LogLevel = logLevel
		case "log-format":
			cfg.LogFormat = logFormat
		case "log-timestamps":
			cfg.LogTimestamps = logTimestamps
		case "log-caller":
			cfg.LogCaller = logCaller
		case "prompt-dir":
			cfg.PromptDir = promptDir
		}
		if sources == nil {
			return
		}
		if fieldName, ok := flagToSource[f.Name]; ok {
			sources[fieldName] = SourceFlag
		}
	})
	return nil
}
