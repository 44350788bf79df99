package logging

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
)

// ConsoleOptions holds configuration for console logging.
type ConsoleOptions struct {
	Level           log.Level
	Formatter       log.Formatter
	ReportTimestamp bool
	ReportCaller    bool
	Prefix          string
}

// DefaultConsoleOptions returns default options for console logging.
func DefaultConsoleOptions() ConsoleOptions {
	return ConsoleOptions{
		Level:     log.InfoLevel,
		Formatter: log.TextFormatter,
		Prefix:    "tasklane",
	}
}

// NewLogger creates a leveled console logger writing to w (stderr when nil).
func NewLogger(w io.Writer, opts ConsoleOptions) *log.Logger {
	if w == nil {
		w = os.Stderr
	}
	return log.NewWithOptions(w, log.Options{
		Level:           opts.Level,
		Formatter:       opts.Formatter,
		ReportTimestamp: opts.ReportTimestamp,
		ReportCaller:    opts.ReportCaller,
		Prefix:          opts.Prefix,
	})
}

// NewLoggerFromConfig creates a console logger from string configuration values.
func NewLoggerFromConfig(w io.Writer, level, format string, timestamps, caller bool) *log.Logger {
	opts := DefaultConsoleOptions()
	opts.Level = ParseLogLevel(level)
	opts.Formatter = ParseLogFormatter(format)
	opts.ReportTimestamp = timestamps
	opts.ReportCaller = caller
	return NewLogger(w, opts)
}

// ParseLogLevel parses a string log level to a charmbracelet/log Level.
func ParseLogLevel(level string) log.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return log.DebugLevel
	case "info":
		return log.InfoLevel
	case "warn", "warning":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	case "fatal":
		return log.FatalLevel
	default:
		return log.InfoLevel
	}
}

// ParseLogFormatter parses a string formatter name to a charmbracelet/log Formatter.
func ParseLogFormatter(format string) log.Formatter {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "json":
		return log.JSONFormatter
	case "logfmt":
		return log.LogfmtFormatter
	default:
		return log.TextFormatter
	}
}

// ConsoleWriter renders events through a charmbracelet/log logger.
type ConsoleWriter struct {
	logger *log.Logger
}

// NewConsoleWriter creates an event writer backed by logger.
func NewConsoleWriter(logger *log.Logger) *ConsoleWriter {
	return &ConsoleWriter{logger: logger}
}

// Write logs the event at a level chosen by its type.
func (c *ConsoleWriter) Write(event Event) error {
	msg := formatMessage(event)
	fields := extractFields(event)

	switch event.Type {
	case EventError:
		c.logger.Error(msg, fields...)
	case EventSummary, EventRequest:
		c.logger.Info(msg, fields...)
	default:
		c.logger.Debug(msg, fields...)
	}
	return nil
}

func extractFields(event Event) []any {
	var fields []any
	if event.RequestID != "" {
		fields = append(fields, "request", event.RequestID)
	}
	if event.Tool != "" {
		fields = append(fields, "tool", event.Tool)
	}
	if event.Model != "" {
		fields = append(fields, "model", event.Model)
	}
	if event.Tokens != 0 {
		fields = append(fields, "tokens", event.Tokens)
	}
	if event.Cost != 0 {
		fields = append(fields, "cost", event.Cost)
	}
	if event.LatencyMS != 0 {
		fields = append(fields, "latency_ms", event.LatencyMS)
	}
	return fields
}

func formatMessage(event Event) string {
	if event.Content != "" {
		return event.Content
	}
	switch event.Type {
	case EventRequest:
		return "Assistant request"
	case EventTool:
		return "Tool call"
	case EventSummary:
		return "Summary"
	case EventUsage:
		return "Usage recorded"
	case EventError:
		return "Error"
	default:
		return event.Type
	}
}
