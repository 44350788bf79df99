package prompts

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestRenderSystemPromptListsProjects(t *testing.T) {
	r := NewRenderer(NewStore(""))
	now := time.Date(2026, 10, 18, 10, 0, 0, 0, time.Local)
	out, err := r.Render(SystemPrompt, NewData(now, []Project{{ID: 2, Name: "Home"}, {ID: 5, Name: "Work"}}))
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	for _, want := range []string{"Sunday, 2026-10-18", "- Home (id: 2)", "- Work (id: 5)"} {
		if !strings.Contains(out, want) {
			t.Errorf("Render() output missing %q:\n%s", want, out)
		}
	}
}

func TestRenderSystemPromptWithoutProjects(t *testing.T) {
	r := NewRenderer(NewStore(""))
	out, err := r.Render(SystemPrompt, NewData(time.Now(), nil))
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if !strings.Contains(out, "no projects yet") {
		t.Errorf("expected no-projects hint:\n%s", out)
	}
}

func TestRenderRequiresToday(t *testing.T) {
	r := NewRenderer(NewStore(""))
	if _, err := r.Render(SystemPrompt, Data{}); err == nil {
		t.Error("Render() without Today expected error, got nil")
	}
	if _, err := r.Render("nope.txt", Data{Today: "2026-01-01"}); err == nil {
		t.Error("Render() of unknown prompt expected error, got nil")
	}
}

func TestStoreOverrideDir(t *testing.T) {
	dir := t.TempDir()
	custom := "Custom summary please."
	if err := os.WriteFile(filepath.Join(dir, SummaryPrompt), []byte(custom), 0644); err != nil {
		t.Fatalf("write override: %v", err)
	}
	store := NewStore(dir)
	got, err := store.Load(SummaryPrompt)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got != custom {
		t.Errorf("Load() = %q, want override", got)
	}

	// Missing override falls back to the bundled prompt.
	got, err = store.Load(SystemPrompt)
	if err != nil || !strings.Contains(got, "{{.Today}}") {
		t.Errorf("Load() fallback = %q, %v", got, err)
	}

	if _, err := store.Load(""); err == nil {
		t.Error("Load() with empty name expected error, got nil")
	}
}

func TestRenderBadTemplate(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, SystemPrompt), []byte("{{.Missing}}"), 0644); err != nil {
		t.Fatalf("write override: %v", err)
	}
	r := NewRenderer(NewStore(dir))
	if _, err := r.Render(SystemPrompt, Data{Today: "2026-01-01"}); err == nil {
		t.Error("Render() with unknown field expected error, got nil")
	}
}
