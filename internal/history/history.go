// Package history keeps the bounded assistant conversation.
package history

import "encoding/json"

// DefaultLimit is the history window used when none is configured.
const DefaultLimit = 20

// Role tags a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleFunction  Role = "function"
)

// FunctionCall is a tool invocation requested by the model.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Message is one conversation entry, in chat-completions wire form.
type Message struct {
	Role         Role          `json:"role"`
	Content      string        `json:"content"`
	Name         string        `json:"name,omitempty"`
	FunctionCall *FunctionCall `json:"function_call,omitempty"`
}

// MarshalJSON sends a null content for function-call turns, which is what
// chat-completions endpoints expect.
func (m Message) MarshalJSON() ([]byte, error) {
	type wire struct {
		Role         Role          `json:"role"`
		Content      *string       `json:"content"`
		Name         string        `json:"name,omitempty"`
		FunctionCall *FunctionCall `json:"function_call,omitempty"`
	}
	w := wire{Role: m.Role, Name: m.Name, FunctionCall: m.FunctionCall}
	if m.FunctionCall == nil || m.Content != "" {
		content := m.Content
		w.Content = &content
	}
	return json.Marshal(w)
}

// Manager appends messages and keeps the transcript bounded: once it grows
// past twice the limit, only the most recent limit messages are kept.
// It is not safe for concurrent use.
type Manager struct {
	limit    int
	messages []Message
}

// NewManager creates a manager with the given window size.
func NewManager(limit int) *Manager {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Manager{limit: limit}
}

// Limit returns the window size.
func (m *Manager) Limit() int {
	return m.limit
}

// SetLimit changes the window size and truncates if needed.
func (m *Manager) SetLimit(limit int) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	m.limit = limit
	m.truncate()
}

// Append adds messages in order.
func (m *Manager) Append(msgs ...Message) {
	for _, msg := range msgs {
		m.messages = append(m.messages, msg)
		m.truncate()
	}
}

func (m *Manager) truncate() {
	if len(m.messages) <= 2*m.limit {
		return
	}
	m.messages = append([]Message{}, m.messages[len(m.messages)-m.limit:]...)
}

// Len returns the number of stored messages.
func (m *Manager) Len() int {
	return len(m.messages)
}

// Messages returns a copy of the transcript.
func (m *Manager) Messages() []Message {
	return append([]Message{}, m.messages...)
}

// Last returns up to n of the most recent messages.
func (m *Manager) Last(n int) []Message {
	if n <= 0 {
		return nil
	}
	if n > len(m.messages) {
		n = len(m.messages)
	}
	return append([]Message{}, m.messages[len(m.messages)-n:]...)
}

// Window returns the most recent limit messages, starting at a user turn so
// a function result is never sent without the call that produced it.
func (m *Manager) Window() []Message {
	msgs := m.Last(m.limit)
	for len(msgs) > 0 && msgs[0].Role != RoleUser {
		msgs = msgs[1:]
	}
	return msgs
}

// Restore replaces the transcript, applying the cap.
func (m *Manager) Restore(msgs []Message) {
	m.messages = append([]Message{}, msgs...)
	m.truncate()
}

// Clear drops every message.
func (m *Manager) Clear() {
	m.messages = nil
}
