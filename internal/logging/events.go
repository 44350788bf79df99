package logging

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"
)

// Event types written by the assistant.
const (
	EventRequest = "request"
	EventTool    = "tool"
	EventSummary = "summary"
	EventUsage   = "usage"
	EventError   = "error"
)

// Event is one entry of the event log.
type Event struct {
	// Type is one of request, tool, summary, usage, error.
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`

	// RequestID ties together the events of one assistant utterance.
	RequestID string `json:"request_id,omitempty"`

	Content string `json:"content,omitempty"`
	Tool    string `json:"tool,omitempty"`

	// Usage events.
	Model     string  `json:"model,omitempty"`
	Tokens    int     `json:"tokens,omitempty"`
	Cost      float64 `json:"cost,omitempty"`
	LatencyMS int64   `json:"latency_ms,omitempty"`
}

// EventWriter writes events.
type EventWriter interface {
	Write(event Event) error
}

// JSONLWriter writes one JSON object per line to an io.Writer.
type JSONLWriter struct {
	w io.Writer
}

// NewJSONLWriter creates a JSONL writer.
func NewJSONLWriter(w io.Writer) *JSONLWriter {
	return &JSONLWriter{w: w}
}

// Write marshals event and appends a newline.
func (l *JSONLWriter) Write(event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal log event: %w", err)
	}
	data = append(data, '\n')
	_, err = l.w.Write(data)
	return err
}

// MultiWriter writes to multiple event writers.
type MultiWriter struct {
	writers []EventWriter
}

// NewMultiWriter creates a multi-writer. Nil writers are skipped.
func NewMultiWriter(writers ...EventWriter) *MultiWriter {
	m := &MultiWriter{}
	for _, w := range writers {
		if w != nil {
			m.writers = append(m.writers, w)
		}
	}
	return m
}

// Write writes the event to all underlying writers.
func (m *MultiWriter) Write(event Event) error {
	var errs []error
	for _, w := range m.writers {
		if err := w.Write(event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NullWriter is a no-op event writer.
type NullWriter struct{}

// Write does nothing.
func (NullWriter) Write(Event) error {
	return nil
}

type lockedWriter struct {
	mu     sync.Mutex
	writer EventWriter
}

func (l *lockedWriter) Write(event Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.writer.Write(event)
}

// Synchronized wraps w so it can be shared between goroutines. A nil w
// becomes a NullWriter.
func Synchronized(w EventWriter) EventWriter {
	if w == nil {
		return NullWriter{}
	}
	if _, ok := w.(*lockedWriter); ok {
		return w
	}
	return &lockedWriter{writer: w}
}
