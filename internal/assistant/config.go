package assistant

import "time"

// Defaults for Config.
const (
	DefaultModel            = "gpt-3.5-turbo"
	DefaultMaxTokens        = 500
	DefaultTemperature      = 0.7
	DefaultSummaryMaxTokens = 150
	DefaultTimeoutSeconds   = 60
	DefaultHistoryLimit     = 20
)

// Config is the assistant configuration. It is persisted as aiConfig.
type Config struct {
	APIKey           string  `json:"apiKey"`
	Model            string  `json:"model"`
	MaxTokens        int     `json:"maxTokens"`
	Temperature      float64 `json:"temperature"`
	HistoryLimit     int     `json:"historyLimit"`
	BaseURL          string  `json:"baseUrl,omitempty"`
	SummaryMaxTokens int     `json:"summaryMaxTokens,omitempty"`
	TimeoutSeconds   int     `json:"timeoutSeconds,omitempty"`
}

// DefaultConfig returns the built-in settings, without an API key.
func DefaultConfig() Config {
	return Config{
		Model:            DefaultModel,
		MaxTokens:        DefaultMaxTokens,
		Temperature:      DefaultTemperature,
		HistoryLimit:     DefaultHistoryLimit,
		BaseURL:          DefaultBaseURL,
		SummaryMaxTokens: DefaultSummaryMaxTokens,
		TimeoutSeconds:   DefaultTimeoutSeconds,
	}
}

// Merge returns c with every non-zero field of over applied.
func (c Config) Merge(over Config) Config {
	if over.APIKey != "" {
		c.APIKey = over.APIKey
	}
	if over.Model != "" {
		c.Model = over.Model
	}
	if over.MaxTokens > 0 {
		c.MaxTokens = over.MaxTokens
	}
	if over.Temperature != 0 {
		c.Temperature = over.Temperature
	}
	if over.HistoryLimit > 0 {
		c.HistoryLimit = over.HistoryLimit
	}
	if over.BaseURL != "" {
		c.BaseURL = over.BaseURL
	}
	if over.SummaryMaxTokens > 0 {
		c.SummaryMaxTokens = over.SummaryMaxTokens
	}
	if over.TimeoutSeconds > 0 {
		c.TimeoutSeconds = over.TimeoutSeconds
	}
	return c
}

// Configured reports whether an API key is set.
func (c Config) Configured() bool {
	return c.APIKey != ""
}

// Timeout returns the request timeout.
func (c Config) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return DefaultTimeoutSeconds * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Redacted returns c with the API key masked, for display.
func (c Config) Redacted() Config {
	if len(c.APIKey) > 8 {
		c.APIKey = c.APIKey[:3] + "..." + c.APIKey[len(c.APIKey)-4:]
	} else if c.APIKey != "" {
		c.APIKey = "***"
	}
	return c
}
