package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

type failingWriter struct{}

func (failingWriter) Write(Event) error { return errors.New("boom") }

type recordingWriter struct {
	events []Event
}

func (r *recordingWriter) Write(e Event) error {
	r.events = append(r.events, e)
	return nil
}

func TestJSONLWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONLWriter(&buf)
	if err := w.Write(Event{Type: EventUsage, Model: "gpt-4o", Tokens: 42, Cost: 0.5}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := w.Write(Event{Type: EventError, Content: "bad"}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	var got Event
	if err := json.Unmarshal([]byte(lines[0]), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Model != "gpt-4o" || got.Tokens != 42 || got.Timestamp.IsZero() {
		t.Errorf("decoded event = %+v", got)
	}
}

func TestMultiWriter(t *testing.T) {
	a, b := &recordingWriter{}, &recordingWriter{}
	m := NewMultiWriter(a, nil, failingWriter{}, b)
	err := m.Write(Event{Type: EventTool, Tool: "add_tasks"})
	if err == nil {
		t.Error("expected error from failing writer")
	}
	if len(a.events) != 1 || len(b.events) != 1 {
		t.Errorf("events delivered = %d, %d; want 1, 1", len(a.events), len(b.events))
	}
}

func TestSynchronized(t *testing.T) {
	if _, ok := Synchronized(nil).(NullWriter); !ok {
		t.Error("Synchronized(nil) should be a NullWriter")
	}
	rec := &recordingWriter{}
	w := Synchronized(rec)
	if Synchronized(w) != w {
		t.Error("Synchronized should not wrap twice")
	}
	_ = w.Write(Event{Type: EventSummary})
	if len(rec.events) != 1 {
		t.Errorf("got %d events, want 1", len(rec.events))
	}
}
