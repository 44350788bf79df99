package todo

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Priority is a task priority.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Rank orders priorities: high=1, medium=2, low=3. Unknown values sort last.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 3
	default:
		return 4
	}
}

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	return p.Rank() < 4
}

// ParsePriority parses a priority name, case-insensitively.
func ParsePriority(s string) (Priority, error) {
	p := Priority(strings.ToLower(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", fmt.Errorf("invalid priority %q, must be one of: high, medium, low", s)
	}
	return p, nil
}

// DefaultProjectColor is used when a project is created without a color.
const DefaultProjectColor = "#4a90d9"

// Subtask is a checklist item inside a task.
type Subtask struct {
	ID        int    `json:"id"`
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
}

// Task represents a single task.
type Task struct {
	ID          int        `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completedAt"`
	Priority    Priority   `json:"priority"`
	DueDate     string     `json:"dueDate,omitempty"`
	ProjectID   *int       `json:"projectId"`
	Labels      []string   `json:"labels"`
	Subtasks    []Subtask  `json:"subtasks"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// HasLabel reports whether the task carries label, ignoring case.
func (t *Task) HasLabel(label string) bool {
	for _, l := range t.Labels {
		if strings.EqualFold(l, label) {
			return true
		}
	}
	return false
}

// InProject reports whether the task belongs to project id.
func (t *Task) InProject(id int) bool {
	return t.ProjectID != nil && *t.ProjectID == id
}

func (t Task) clone() Task {
	c := t
	if t.CompletedAt != nil {
		at := *t.CompletedAt
		c.CompletedAt = &at
	}
	if t.ProjectID != nil {
		id := *t.ProjectID
		c.ProjectID = &id
	}
	c.Labels = append([]string{}, t.Labels...)
	c.Subtasks = append([]Subtask{}, t.Subtasks...)
	return c
}

// Project groups tasks.
type Project struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// State is the persisted form of a Store.
type State struct {
	Tasks            []Task    `json:"tasks"`
	Projects         []Project `json:"projects"`
	TaskIDCounter    int       `json:"taskIdCounter"`
	ProjectIDCounter int       `json:"projectIdCounter"`
	SubtaskIDCounter int       `json:"subtaskIdCounter"`
}

// ErrNotFound matches every NotFoundError via errors.Is.
var ErrNotFound = errors.New("not found")

// NotFoundError reports an unknown task, subtask or project id.
type NotFoundError struct {
	Kind string // "task", "subtask" or "project"
	ID   int
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Kind, e.ID)
}

// Is makes errors.Is(err, ErrNotFound) true.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// ValidationError represents a validation error with context.
type ValidationError struct {
	Path string // field or JSON path of the offending value
	Err  error  // Underlying error
}

func (e *ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Err)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// ImportFormatError reports an import document that does not have the
// expected shape. Nothing is changed when it is returned.
type ImportFormatError struct {
	Problems []error
}

func (e *ImportFormatError) Error() string {
	if len(e.Problems) == 0 {
		return "invalid import file"
	}
	msgs := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		msgs = append(msgs, p.Error())
	}
	return "invalid import file: " + strings.Join(msgs, "; ")
}
