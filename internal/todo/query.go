package todo

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/nibzard/tasklane/internal/dates"
)

// ViewKind names a view.
type ViewKind string

const (
	ViewToday     ViewKind = "today"
	ViewUpcoming  ViewKind = "upcoming"
	ViewInbox     ViewKind = "inbox"
	ViewImportant ViewKind = "important"
	ViewAll       ViewKind = "all"
	ViewCompleted ViewKind = "completed"
	ViewProject   ViewKind = "project"
	ViewLabel     ViewKind = "label"
	ViewSearch    ViewKind = "search"
)

// View is a named filter with its parameter.
type View struct {
	Kind      ViewKind
	ProjectID int    // ViewProject
	Label     string // ViewLabel
	Text      string // ViewSearch
}

// String renders the view in the form ParseView accepts.
func (v View) String() string {
	switch v.Kind {
	case ViewProject:
		return fmt.Sprintf("project:%d", v.ProjectID)
	case ViewLabel:
		return "label:" + v.Label
	case ViewSearch:
		return "search:" + v.Text
	default:
		return string(v.Kind)
	}
}

// ParseView parses "today", "upcoming", "inbox", "important", "all",
// "completed", "project:<id>", "label:<name>" or "search:<text>".
// An empty string means "all".
func ParseView(s string) (View, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return View{Kind: ViewAll}, nil
	}
	kind, arg, hasArg := strings.Cut(s, ":")
	kind = strings.ToLower(strings.TrimSpace(kind))
	switch ViewKind(kind) {
	case ViewToday, ViewUpcoming, ViewInbox, ViewImportant, ViewAll, ViewCompleted:
		if hasArg {
			return View{}, fmt.Errorf("view %q takes no argument", kind)
		}
		return View{Kind: ViewKind(kind)}, nil
	case ViewProject:
		id, err := strconv.Atoi(strings.TrimSpace(arg))
		if err != nil || id <= 0 {
			return View{}, fmt.Errorf("invalid project id %q", arg)
		}
		return View{Kind: ViewProject, ProjectID: id}, nil
	case ViewLabel:
		if strings.TrimSpace(arg) == "" {
			return View{}, fmt.Errorf("label view needs a label name")
		}
		return View{Kind: ViewLabel, Label: strings.TrimSpace(arg)}, nil
	case ViewSearch:
		return View{Kind: ViewSearch, Text: arg}, nil
	}
	return View{}, fmt.Errorf("unknown view %q", s)
}

// Query returns the tasks in a view, sorted by Less.
func (s *Store) Query(v View) []Task {
	today := s.Today()
	out := make([]Task, 0)
	for i := range s.tasks {
		if matches(&s.tasks[i], v, today) {
			out = append(out, s.tasks[i].clone())
		}
	}
	SortTasks(out)
	return out
}

func matches(t *Task, v View, today dates.Date) bool {
	switch v.Kind {
	case ViewToday:
		return !t.Completed && t.DueDate != "" && dueOrder(t, today) != dates.After
	case ViewUpcoming:
		return !t.Completed && t.DueDate != "" && dueOrder(t, today) == dates.After
	case ViewInbox:
		return !t.Completed && t.ProjectID == nil
	case ViewImportant:
		return !t.Completed && t.Priority == PriorityHigh
	case ViewCompleted:
		return t.Completed
	case ViewProject:
		return t.InProject(v.ProjectID)
	case ViewLabel:
		return t.HasLabel(v.Label)
	case ViewSearch:
		return matchesText(t, v.Text)
	default:
		return true
	}
}

// dueOrder compares the task's due date with today. Tasks with an
// unparseable due date compare as After so they never land in "today".
func dueOrder(t *Task, today dates.Date) dates.Order {
	d, err := dates.Parse(t.DueDate)
	if err != nil {
		return dates.After
	}
	return dates.CompareDates(d, today)
}

func matchesText(t *Task, text string) bool {
	q := strings.ToLower(strings.TrimSpace(text))
	if q == "" {
		return true
	}
	if strings.Contains(strings.ToLower(t.Title), q) || strings.Contains(strings.ToLower(t.Description), q) {
		return true
	}
	for _, l := range t.Labels {
		if strings.Contains(strings.ToLower(l), q) {
			return true
		}
	}
	return false
}

// Less is the view order: incomplete before completed, then priority rank,
// then due date ascending with undated tasks last, then newest first.
// Ties beyond createdAt fall back to the higher id first.
func Less(a, b *Task) bool {
	if a.Completed != b.Completed {
		return !a.Completed
	}
	if ra, rb := a.Priority.Rank(), b.Priority.Rank(); ra != rb {
		return ra < rb
	}
	if a.DueDate != b.DueDate {
		switch {
		case a.DueDate == "":
			return false
		case b.DueDate == "":
			return true
		}
		// Stored dates are normalized YYYY-MM-DD, so string order is date order.
		return a.DueDate < b.DueDate
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

// SortTasks sorts tasks in place by Less.
func SortTasks(tasks []Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		return Less(&tasks[i], &tasks[j])
	})
}

// Counts are the derived badge counts shown next to each view.
type Counts struct {
	Today     int            `json:"today"`
	Upcoming  int            `json:"upcoming"`
	Inbox     int            `json:"inbox"`
	Important int            `json:"important"`
	All       int            `json:"all"`
	Completed int            `json:"completed"`
	Projects  map[int]int    `json:"projects"`
	Labels    map[string]int `json:"labels"`
}

// Counts recomputes the per-view counts. Project and label counts only
// include incomplete tasks.
func (s *Store) Counts() Counts {
	today := s.Today()
	c := Counts{
		Projects: make(map[int]int, len(s.projects)),
		Labels:   make(map[string]int),
	}
	for _, p := range s.projects {
		c.Projects[p.ID] = 0
	}
	for i := range s.tasks {
		t := &s.tasks[i]
		c.All++
		if t.Completed {
			c.Completed++
			continue
		}
		if matches(t, View{Kind: ViewToday}, today) {
			c.Today++
		}
		if matches(t, View{Kind: ViewUpcoming}, today) {
			c.Upcoming++
		}
		if t.ProjectID == nil {
			c.Inbox++
		} else {
			c.Projects[*t.ProjectID]++
		}
		if t.Priority == PriorityHigh {
			c.Important++
		}
		for _, l := range t.Labels {
			c.Labels[l]++
		}
	}
	return c
}

// Labels returns every distinct label in first-seen order.
func (s *Store) Labels() []string {
	var out []string
	seen := make(map[string]bool)
	for _, t := range s.tasks {
		for _, l := range t.Labels {
			key := strings.ToLower(l)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, l)
		}
	}
	return out
}
