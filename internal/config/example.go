package config

// ExampleConfig returns an example configuration showing all available options.
func ExampleConfig() string {
	return `# tasklane configuration file
# Values can be overridden by environment variables (TASKLANE_*) or CLI flags

# Where task state and run logs live (supports ~ expansion and %VAR% on Windows)
data_dir = "~/.tasklane"

# Storage backend: file or redis
storage = "file"

# HTTP API listen address for "tasklane serve"
listen = "127.0.0.1:8080"

# Logging
log_level = "info"   # debug, info, warn, error
log_format = "text"  # text, json, logfmt

[redis]
# addr = "localhost:6379"   # or a redis:// URL
# password = ""
# db = 0
prefix = "tasklane:"

[assistant]
# api_key = "sk-..."        # or set OPENAI_API_KEY
model = "gpt-3.5-turbo"
# base_url = "https://api.openai.com/v1"
max_tokens = 500
temperature = 0.7
history_limit = 20
summary_max_tokens = 150
timeout_seconds = 60

# Per-model pricing in dollars per 1K tokens, merged over the built-in table
# [pricing."my-local-model"]
# input = 0.0
# output = 0.0
`
}
