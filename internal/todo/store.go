package todo

import (
	"fmt"
	"strings"
	"time"

	"github.com/nibzard/tasklane/internal/dates"
)

// Store owns all tasks and projects plus the id counters.
// It is not safe for concurrent use; callers serialize access.
type Store struct {
	tasks    []Task
	projects []Project

	nextTaskID    int
	nextProjectID int
	nextSubtaskID int

	lastCreated time.Time
	now         func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the clock used for createdAt, completedAt and "today".
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore returns an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Today returns the store's current local calendar date.
func (s *Store) Today() dates.Date {
	return dates.FromTime(s.now().Local())
}

// NewTask holds the fields of a task to create.
type NewTask struct {
	Title       string
	Description string
	Priority    Priority // empty means low
	DueDate     string   // YYYY-MM-DD, optional
	ProjectID   *int
	Labels      []string
	Subtasks    []string
	Completed   bool
}

// Patch represents a partial update.
// nil pointer => "no change"
// DueDate "" => clear the due date; ProjectID 0 => clear the project.
type Patch struct {
	Title       *string
	Description *string
	Completed   *bool
	Priority    *Priority
	DueDate     *string
	ProjectID   *int
	Labels      *[]string
	AddSubtasks []string
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Completed == nil &&
		p.Priority == nil && p.DueDate == nil && p.ProjectID == nil &&
		p.Labels == nil && len(p.AddSubtasks) == 0
}

// ProjectPatch is a partial project update.
type ProjectPatch struct {
	Name  *string
	Color *string
}

// AddTask creates a task and returns its id.
func (s *Store) AddTask(fields NewTask) (int, error) {
	title := strings.TrimSpace(fields.Title)
	if title == "" {
		return 0, &ValidationError{Path: "title", Err: fmt.Errorf("missing required field")}
	}

	priority := PriorityLow
	if fields.Priority != "" {
		if !fields.Priority.Valid() {
			return 0, &ValidationError{Path: "priority", Err: fmt.Errorf("invalid priority %q", fields.Priority)}
		}
		priority = fields.Priority
	}

	due, err := normalizeDue(fields.DueDate)
	if err != nil {
		return 0, err
	}

	var projectID *int
	if fields.ProjectID != nil && *fields.ProjectID != 0 {
		if s.projectIndex(*fields.ProjectID) < 0 {
			return 0, &NotFoundError{Kind: "project", ID: *fields.ProjectID}
		}
		id := *fields.ProjectID
		projectID = &id
	}

	now := s.now()
	// createdAt must be unique so the view order stays total.
	if !now.After(s.lastCreated) {
		now = s.lastCreated.Add(time.Nanosecond)
	}
	s.lastCreated = now

	s.nextTaskID++
	task := Task{
		ID:          s.nextTaskID,
		Title:       title,
		Description: fields.Description,
		Priority:    priority,
		DueDate:     due,
		ProjectID:   projectID,
		Labels:      normalizeLabels(fields.Labels),
		Subtasks:    []Subtask{},
		CreatedAt:   now,
	}
	for _, st := range fields.Subtasks {
		s.appendSubtask(&task, st)
	}
	setCompleted(&task, fields.Completed, now)

	s.tasks = append(s.tasks, task)
	return task.ID, nil
}

// Get returns a copy of the task with the given id.
func (s *Store) Get(id int) (Task, error) {
	i := s.taskIndex(id)
	if i < 0 {
		return Task{}, &NotFoundError{Kind: "task", ID: id}
	}
	return s.tasks[i].clone(), nil
}

// Tasks returns copies of all tasks in creation order.
func (s *Store) Tasks() []Task {
	out := make([]Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t.clone())
	}
	return out
}

// EditTask applies the non-nil fields of patch to a task.
func (s *Store) EditTask(id int, patch Patch) error {
	i := s.taskIndex(id)
	if i < 0 {
		return &NotFoundError{Kind: "task", ID: id}
	}
	// Validate everything before touching the task.
	t := s.tasks[i].clone()

	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return &ValidationError{Path: "title", Err: fmt.Errorf("missing required field")}
		}
		t.Title = title
	}
	if patch.Description != nil {
		t.Description = *patch.Description
	}
	if patch.Priority != nil {
		if !patch.Priority.Valid() {
			return &ValidationError{Path: "priority", Err: fmt.Errorf("invalid priority %q", *patch.Priority)}
		}
		t.Priority = *patch.Priority
	}
	if patch.DueDate != nil {
		due, err := normalizeDue(*patch.DueDate)
		if err != nil {
			return err
		}
		t.DueDate = due
	}
	if patch.ProjectID != nil {
		if *patch.ProjectID == 0 {
			t.ProjectID = nil
		} else {
			if s.projectIndex(*patch.ProjectID) < 0 {
				return &NotFoundError{Kind: "project", ID: *patch.ProjectID}
			}
			pid := *patch.ProjectID
			t.ProjectID = &pid
		}
	}
	if patch.Labels != nil {
		t.Labels = normalizeLabels(*patch.Labels)
	}
	for _, title := range patch.AddSubtasks {
		s.appendSubtask(&t, title)
	}
	if patch.Completed != nil {
		setCompleted(&t, *patch.Completed, s.now())
	}

	s.tasks[i] = t
	return nil
}

// SetCompleted marks a task completed or pending.
func (s *Store) SetCompleted(id int, completed bool) error {
	return s.EditTask(id, Patch{Completed: &completed})
}

// DeleteTask removes a task and returns it. Deleting an id twice reports
// NotFoundError the second time.
func (s *Store) DeleteTask(id int) (Task, error) {
	i := s.taskIndex(id)
	if i < 0 {
		return Task{}, &NotFoundError{Kind: "task", ID: id}
	}
	removed := s.tasks[i]
	s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
	return removed, nil
}

// AddSubtask appends a subtask and returns its id.
func (s *Store) AddSubtask(taskID int, title string) (int, error) {
	i := s.taskIndex(taskID)
	if i < 0 {
		return 0, &NotFoundError{Kind: "task", ID: taskID}
	}
	if strings.TrimSpace(title) == "" {
		return 0, &ValidationError{Path: "subtask.title", Err: fmt.Errorf("missing required field")}
	}
	return s.appendSubtask(&s.tasks[i], title), nil
}

// ToggleSubtask flips a subtask's completed flag. The parent task's own
// completed flag is left alone.
func (s *Store) ToggleSubtask(taskID, subtaskID int) error {
	i := s.taskIndex(taskID)
	if i < 0 {
		return &NotFoundError{Kind: "task", ID: taskID}
	}
	for j := range s.tasks[i].Subtasks {
		if s.tasks[i].Subtasks[j].ID == subtaskID {
			s.tasks[i].Subtasks[j].Completed = !s.tasks[i].Subtasks[j].Completed
			return nil
		}
	}
	return &NotFoundError{Kind: "subtask", ID: subtaskID}
}

// DeleteSubtask removes a subtask from a task.
func (s *Store) DeleteSubtask(taskID, subtaskID int) error {
	i := s.taskIndex(taskID)
	if i < 0 {
		return &NotFoundError{Kind: "task", ID: taskID}
	}
	subs := s.tasks[i].Subtasks
	for j := range subs {
		if subs[j].ID == subtaskID {
			s.tasks[i].Subtasks = append(subs[:j], subs[j+1:]...)
			return nil
		}
	}
	return &NotFoundError{Kind: "subtask", ID: subtaskID}
}

// AddProject creates a project and returns its id.
func (s *Store) AddProject(name, color string) (int, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, &ValidationError{Path: "name", Err: fmt.Errorf("missing required field")}
	}
	if strings.TrimSpace(color) == "" {
		color = DefaultProjectColor
	}
	s.nextProjectID++
	s.projects = append(s.projects, Project{ID: s.nextProjectID, Name: name, Color: color})
	return s.nextProjectID, nil
}

// Project returns the project with the given id.
func (s *Store) Project(id int) (Project, error) {
	i := s.projectIndex(id)
	if i < 0 {
		return Project{}, &NotFoundError{Kind: "project", ID: id}
	}
	return s.projects[i], nil
}

// Projects returns all projects in creation order.
func (s *Store) Projects() []Project {
	return append([]Project{}, s.projects...)
}

// EditProject applies a partial project update.
func (s *Store) EditProject(id int, patch ProjectPatch) error {
	i := s.projectIndex(id)
	if i < 0 {
		return &NotFoundError{Kind: "project", ID: id}
	}
	p := s.projects[i]
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return &ValidationError{Path: "name", Err: fmt.Errorf("missing required field")}
		}
		p.Name = name
	}
	if patch.Color != nil {
		p.Color = *patch.Color
	}
	s.projects[i] = p
	return nil
}

// DeleteProject removes a project. Tasks that referenced it lose their
// project; they are never deleted. It returns the number of tasks affected.
func (s *Store) DeleteProject(id int) (int, error) {
	i := s.projectIndex(id)
	if i < 0 {
		return 0, &NotFoundError{Kind: "project", ID: id}
	}
	affected := 0
	for j := range s.tasks {
		if s.tasks[j].InProject(id) {
			s.tasks[j].ProjectID = nil
			affected++
		}
	}
	s.projects = append(s.projects[:i], s.projects[i+1:]...)
	return affected, nil
}

// ProjectLookupByName finds the first project, in creation order, whose name
// contains query or is contained in query, ignoring case. Ambiguous queries
// resolve to the earliest project; it is a best-effort heuristic.
func (s *Store) ProjectLookupByName(query string) (Project, bool) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return Project{}, false
	}
	for _, p := range s.projects {
		name := strings.ToLower(p.Name)
		if strings.Contains(name, q) || strings.Contains(q, name) {
			return p, true
		}
	}
	return Project{}, false
}

// Snapshot returns the persisted form of the store.
func (s *Store) Snapshot() State {
	return State{
		Tasks:            s.Tasks(),
		Projects:         s.Projects(),
		TaskIDCounter:    s.nextTaskID,
		ProjectIDCounter: s.nextProjectID,
		SubtaskIDCounter: s.nextSubtaskID,
	}
}

// Restore replaces the whole store with st. Counters never drop below the
// largest stored id; empty subtasks are dropped and labels deduplicated.
func (s *Store) Restore(st State) error {
	tasks := make([]Task, 0, len(st.Tasks))
	seenTasks := make(map[int]bool, len(st.Tasks))
	taskCounter, subtaskCounter := st.TaskIDCounter, st.SubtaskIDCounter
	var lastCreated time.Time

	for i, t := range st.Tasks {
		path := fmt.Sprintf("tasks[%d]", i)
		if t.ID <= 0 || seenTasks[t.ID] {
			return &ValidationError{Path: path + ".id", Err: fmt.Errorf("missing or duplicate id %d", t.ID)}
		}
		seenTasks[t.ID] = true
		if strings.TrimSpace(t.Title) == "" {
			return &ValidationError{Path: path + ".title", Err: fmt.Errorf("missing required field")}
		}
		if t.Priority == "" {
			t.Priority = PriorityLow
		}
		if !t.Priority.Valid() {
			return &ValidationError{Path: path + ".priority", Err: fmt.Errorf("invalid priority %q", t.Priority)}
		}
		due, err := normalizeDue(t.DueDate)
		if err != nil {
			return &ValidationError{Path: path + ".dueDate", Err: err}
		}
		t = t.clone()
		t.DueDate = due
		t.Labels = normalizeLabels(t.Labels)
		t.Subtasks = dropEmptySubtasks(t.Subtasks)
		if t.Completed && t.CompletedAt == nil {
			at := t.CreatedAt
			t.CompletedAt = &at
		}
		if !t.Completed {
			t.CompletedAt = nil
		}
		taskCounter = max(taskCounter, t.ID)
		for _, sub := range t.Subtasks {
			subtaskCounter = max(subtaskCounter, sub.ID)
		}
		if t.CreatedAt.After(lastCreated) {
			lastCreated = t.CreatedAt
		}
		tasks = append(tasks, t)
	}

	projects := make([]Project, 0, len(st.Projects))
	projectIDs := make(map[int]bool, len(st.Projects))
	projectCounter := st.ProjectIDCounter
	for i, p := range st.Projects {
		path := fmt.Sprintf("projects[%d]", i)
		if p.ID <= 0 || projectIDs[p.ID] {
			return &ValidationError{Path: path + ".id", Err: fmt.Errorf("missing or duplicate id %d", p.ID)}
		}
		if strings.TrimSpace(p.Name) == "" {
			return &ValidationError{Path: path + ".name", Err: fmt.Errorf("missing required field")}
		}
		projectIDs[p.ID] = true
		projectCounter = max(projectCounter, p.ID)
		projects = append(projects, p)
	}

	// Dangling project references would be invisible in every project view.
	for i := range tasks {
		if tasks[i].ProjectID != nil && !projectIDs[*tasks[i].ProjectID] {
			tasks[i].ProjectID = nil
		}
	}

	s.tasks = tasks
	s.projects = projects
	s.nextTaskID = taskCounter
	s.nextProjectID = projectCounter
	s.nextSubtaskID = subtaskCounter
	s.lastCreated = lastCreated
	return nil
}

// Reset drops every task and project and zeroes the counters.
func (s *Store) Reset() {
	s.tasks = nil
	s.projects = nil
	s.nextTaskID = 0
	s.nextProjectID = 0
	s.nextSubtaskID = 0
	s.lastCreated = time.Time{}
}

func (s *Store) taskIndex(id int) int {
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) projectIndex(id int) int {
	for i := range s.projects {
		if s.projects[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) appendSubtask(t *Task, title string) int {
	title = strings.TrimSpace(title)
	if title == "" {
		return 0
	}
	s.nextSubtaskID++
	t.Subtasks = append(t.Subtasks, Subtask{ID: s.nextSubtaskID, Title: title})
	return s.nextSubtaskID
}

func setCompleted(t *Task, completed bool, now time.Time) {
	if completed == t.Completed {
		return
	}
	t.Completed = completed
	if completed {
		at := now
		t.CompletedAt = &at
	} else {
		t.CompletedAt = nil
	}
}

func normalizeDue(s string) (string, error) {
	if strings.TrimSpace(s) == "" {
		return "", nil
	}
	due, err := dates.Normalize(s)
	if err != nil {
		return "", &ValidationError{Path: "dueDate", Err: err}
	}
	return due, nil
}

func normalizeLabels(labels []string) []string {
	out := make([]string, 0, len(labels))
	seen := make(map[string]bool, len(labels))
	for _, l := range labels {
		l = strings.TrimSpace(l)
		key := strings.ToLower(l)
		if l == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, l)
	}
	return out
}

func dropEmptySubtasks(subs []Subtask) []Subtask {
	out := make([]Subtask, 0, len(subs))
	for _, sub := range subs {
		sub.Title = strings.TrimSpace(sub.Title)
		if sub.Title == "" {
			continue
		}
		out = append(out, sub)
	}
	return out
}
