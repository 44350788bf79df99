// Package prompts renders the assistant's system and summary prompts.
package prompts

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"text/template"
	"time"
)

const (
	SystemPrompt  = "system.txt"
	SummaryPrompt = "summary.txt"
)

const bundledSystemPrompt = `You are the task assistant of a personal task manager.
Today is {{.Weekday}}, {{.Today}}. Resolve relative dates ("tomorrow", "next friday")
against today and always send due dates as YYYY-MM-DD.

Use the tools to read or change tasks. Prefer one batch call over many single calls.
Priorities are "high", "medium" or "low". Refer to tasks by their numeric id.
{{- if .Projects}}

Projects (use these exact names):
{{- range .Projects}}
- {{.Name}} (id: {{.ID}})
{{- end}}
{{- else}}

There are no projects yet; create tasks without a project.
{{- end}}

Answer briefly and in the user's language.`

const bundledSummaryPrompt = `Summarize what you just did in one or two short sentences for the user.
Mention failures or warnings if there were any. Do not call tools.`

var bundled = map[string]string{
	SystemPrompt:  bundledSystemPrompt,
	SummaryPrompt: bundledSummaryPrompt,
}

// Store loads prompt assets. Files in dir override the bundled prompts.
type Store struct {
	dir string
}

// NewStore creates a prompt store. An empty dir uses only bundled prompts.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the override directory.
func (s *Store) Dir() string {
	return s.dir
}

// Load reads a prompt asset as a string.
func (s *Store) Load(name string) (string, error) {
	if name == "" {
		return "", errors.New("prompt name is empty")
	}
	if s != nil && s.dir != "" {
		data, err := os.ReadFile(filepath.Join(s.dir, name))
		if err == nil {
			return string(data), nil
		}
		if !os.IsNotExist(err) {
			return "", fmt.Errorf("read prompt %q: %w", name, err)
		}
	}
	raw, ok := bundled[name]
	if !ok {
		return "", fmt.Errorf("unknown prompt %q", name)
	}
	return raw, nil
}

// Project is the minimal project data needed for prompt rendering.
type Project struct {
	ID   int
	Name string
}

// Data holds prompt template variables.
type Data struct {
	Today    string
	Weekday  string
	Projects []Project
}

// NewData builds prompt data for the local calendar day of now.
func NewData(now time.Time, projects []Project) Data {
	local := now.Local()
	return Data{
		Today:    local.Format("2006-01-02"),
		Weekday:  local.Weekday().String(),
		Projects: projects,
	}
}

// Renderer renders templates with strict missing-key behavior.
type Renderer struct {
	store *Store
}

// NewRenderer creates a prompt renderer.
func NewRenderer(store *Store) *Renderer {
	return &Renderer{store: store}
}

// Render loads and renders a prompt template with required variable checks.
func (r *Renderer) Render(name string, data Data) (string, error) {
	if r == nil || r.store == nil {
		return "", errors.New("prompt renderer is not initialized")
	}
	if err := validateRequired(name, data); err != nil {
		return "", err
	}
	raw, err := r.store.Load(name)
	if err != nil {
		return "", err
	}
	tmpl, err := template.New(name).Option("missingkey=error").Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse prompt %q: %w", name, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render prompt %q: %w", name, err)
	}
	return buf.String(), nil
}

func validateRequired(name string, data Data) error {
	switch name {
	case SystemPrompt:
		if data.Today == "" {
			return fmt.Errorf("prompt %q requires Today", name)
		}
	case SummaryPrompt:
	default:
		return fmt.Errorf("unknown prompt %q", name)
	}
	return nil
}
