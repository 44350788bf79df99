package assistant

import (
	"errors"
	"fmt"
)

// ErrEmptyRequest is returned for a blank utterance.
var ErrEmptyRequest = errors.New("empty request")

// ConfigurationError reports a missing or invalid assistant setting.
type ConfigurationError struct {
	Field   string
	Message string
}

func (e *ConfigurationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("assistant is not configured: %s (%s)", e.Message, e.Field)
	}
	return "assistant is not configured: " + e.Message
}

// MalformedToolCallError reports tool arguments that do not parse or do not
// match the tool's schema.
type MalformedToolCallError struct {
	Tool string
	Err  error
}

func (e *MalformedToolCallError) Error() string {
	if e.Tool == "" {
		return fmt.Sprintf("malformed tool call: %v", e.Err)
	}
	return fmt.Sprintf("malformed arguments for %s: %v", e.Tool, e.Err)
}

func (e *MalformedToolCallError) Unwrap() error {
	return e.Err
}

// TransportError reports a failed call to the chat-completions endpoint.
// Status is 0 for network failures.
type TransportError struct {
	Status  int
	Message string
	Err     error
}

func (e *TransportError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Status != 0 {
		return fmt.Sprintf("assistant request failed (status %d): %s", e.Status, msg)
	}
	return "assistant request failed: " + msg
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
