package assistant

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/nibzard/tasklane/internal/dates"
	"github.com/nibzard/tasklane/internal/history"
	"github.com/nibzard/tasklane/internal/todo"
)

// Result line markers.
const (
	markOK   = "✓"
	markFail = "✗"
	markWarn = "⚠"
)

// Result is the outcome of one tool call: one line per item plus warnings.
type Result struct {
	Tool  string
	Lines []string
}

// Text joins the result lines.
func (r Result) Text() string {
	return strings.Join(r.Lines, "\n")
}

// Failed counts the failure lines.
func (r Result) Failed() int {
	n := 0
	for _, l := range r.Lines {
		if strings.HasPrefix(l, markFail) {
			n++
		}
	}
	return n
}

type listArgs struct {
	View    string `json:"view"`
	Project string `json:"project"`
	Label   string `json:"label"`
	Search  string `json:"search"`
}

type taskSpec struct {
	ID          int       `json:"id"`
	Title       *string   `json:"title"`
	Description *string   `json:"description"`
	Priority    *string   `json:"priority"`
	DueDate     *string   `json:"dueDate"`
	Project     *string   `json:"project"`
	Labels      *[]string `json:"labels"`
	Subtasks    []string  `json:"subtasks"`
	Completed   *bool     `json:"completed"`
}

// Batch items stay raw until each is validated on its own.
type taskBatch struct {
	Tasks []json.RawMessage `json:"tasks"`
}

type idBatch struct {
	IDs []json.RawMessage `json:"ids"`
}

// Dispatch runs a tool call against store. Items are processed
// independently; an item that fails validation or application produces a
// ✗ line and the rest still run. Only arguments whose envelope cannot be
// parsed or validated return an error, in which case nothing was changed.
func Dispatch(store *todo.Store, call history.FunctionCall) (Result, error) {
	today := store.Today()
	res := Result{Tool: call.Name}

	switch call.Name {
	case ToolListTasks:
		var args listArgs
		if err := decodeArgs(call.Name, call.Arguments, today, &args); err != nil {
			return res, err
		}
		res.Lines = listTasks(store, args, today)
	case ToolAddTasks:
		var args taskBatch
		if err := decodeArgs(call.Name, call.Arguments, today, &args); err != nil {
			return res, err
		}
		for i, raw := range args.Tasks {
			var spec taskSpec
			if err := decodeItem(call.Name, raw, &spec); err != nil {
				res.Lines = append(res.Lines, itemFailLine(i, raw, err))
				continue
			}
			res.Lines = append(res.Lines, addTask(store, spec)...)
		}
	case ToolEditTasks:
		var args taskBatch
		if err := decodeArgs(call.Name, call.Arguments, today, &args); err != nil {
			return res, err
		}
		for i, raw := range args.Tasks {
			var spec taskSpec
			if err := decodeItem(call.Name, raw, &spec); err != nil {
				res.Lines = append(res.Lines, itemFailLine(i, raw, err))
				continue
			}
			res.Lines = append(res.Lines, editTask(store, spec)...)
		}
	case ToolDeleteTasks, ToolCompleteTasks, ToolUncompleteTasks:
		var args idBatch
		if err := decodeArgs(call.Name, call.Arguments, today, &args); err != nil {
			return res, err
		}
		for i, raw := range args.IDs {
			var id int
			if err := decodeItem(call.Name, raw, &id); err != nil {
				res.Lines = append(res.Lines, itemFailLine(i, raw, err))
				continue
			}
			res.Lines = append(res.Lines, applyByID(store, call.Name, id))
		}
	default:
		return res, &MalformedToolCallError{Tool: call.Name, Err: fmt.Errorf("unknown tool %q", call.Name)}
	}
	return res, nil
}

func listTasks(store *todo.Store, args listArgs, today dates.Date) []string {
	kind := todo.ViewAll
	if args.View != "" {
		kind = todo.ViewKind(args.View)
	}
	tasks := store.Query(todo.View{Kind: kind})

	var filters []todo.View
	desc := string(kind)
	if name := strings.TrimSpace(args.Project); name != "" {
		p, ok := store.ProjectLookupByName(name)
		if !ok {
			return []string{fmt.Sprintf("%s Project %q not found", markWarn, name)}
		}
		filters = append(filters, todo.View{Kind: todo.ViewProject, ProjectID: p.ID})
		desc += ", project " + p.Name
	}
	if label := strings.TrimSpace(args.Label); label != "" {
		filters = append(filters, todo.View{Kind: todo.ViewLabel, Label: label})
		desc += ", label " + label
	}
	if text := strings.TrimSpace(args.Search); text != "" {
		filters = append(filters, todo.View{Kind: todo.ViewSearch, Text: text})
		desc += fmt.Sprintf(", matching %q", text)
	}
	for _, f := range filters {
		tasks = intersect(tasks, store.Query(f))
	}

	if len(tasks) == 0 {
		return []string{fmt.Sprintf("No tasks (%s).", desc)}
	}
	lines := []string{fmt.Sprintf("%d task(s) (%s):", len(tasks), desc)}
	for i := range tasks {
		lines = append(lines, describeTask(store, &tasks[i], today))
	}
	return lines
}

// intersect keeps the tasks of a that also appear in b, in a's order.
func intersect(a, b []todo.Task) []todo.Task {
	keep := make(map[int]bool, len(b))
	for _, t := range b {
		keep[t.ID] = true
	}
	out := a[:0]
	for _, t := range a {
		if keep[t.ID] {
			out = append(out, t)
		}
	}
	return out
}

func describeTask(store *todo.Store, t *todo.Task, today dates.Date) string {
	var b strings.Builder
	fmt.Fprintf(&b, "#%d %s [%s]", t.ID, t.Title, t.Priority)
	if t.Completed {
		b.WriteString(" (done)")
	}
	if t.DueDate != "" {
		fmt.Fprintf(&b, " due %s (%s)", t.DueDate, dates.Describe(t.DueDate, today))
	}
	if t.ProjectID != nil {
		if p, err := store.Project(*t.ProjectID); err == nil {
			fmt.Fprintf(&b, " project %s", p.Name)
		}
	}
	if len(t.Labels) > 0 {
		fmt.Fprintf(&b, " labels %s", strings.Join(t.Labels, ", "))
	}
	if n := len(t.Subtasks); n > 0 {
		done := 0
		for _, st := range t.Subtasks {
			if st.Completed {
				done++
			}
		}
		fmt.Fprintf(&b, " subtasks %d/%d", done, n)
	}
	return b.String()
}

// resolveProject maps a project name to an id. Empty or "none" clears the
// project (id 0). ok is false when the name matches no project.
func resolveProject(store *todo.Store, name string) (id int, ok bool) {
	name = strings.TrimSpace(name)
	if name == "" || strings.EqualFold(name, "none") {
		return 0, true
	}
	p, found := store.ProjectLookupByName(name)
	if !found {
		return 0, false
	}
	return p.ID, true
}

func addTask(store *todo.Store, spec taskSpec) []string {
	fields := todo.NewTask{}
	if spec.Title != nil {
		fields.Title = *spec.Title
	}
	if spec.Description != nil {
		fields.Description = *spec.Description
	}
	if spec.Priority != nil {
		fields.Priority = todo.Priority(*spec.Priority)
	}
	if spec.DueDate != nil {
		fields.DueDate = *spec.DueDate
	}
	if spec.Labels != nil {
		fields.Labels = *spec.Labels
	}
	if spec.Completed != nil {
		fields.Completed = *spec.Completed
	}
	fields.Subtasks = spec.Subtasks

	var warning string
	if spec.Project != nil {
		pid, ok := resolveProject(store, *spec.Project)
		switch {
		case !ok:
			warning = fmt.Sprintf("%s Project %q not found; task %q created without a project", markWarn, *spec.Project, fields.Title)
		case pid != 0:
			fields.ProjectID = &pid
		}
	}

	id, err := store.AddTask(fields)
	if err != nil {
		return []string{fmt.Sprintf("%s Could not add %q: %v", markFail, fields.Title, err)}
	}
	lines := []string{fmt.Sprintf("%s Added task #%d: %s", markOK, id, strings.TrimSpace(fields.Title))}
	if warning != "" {
		lines = append(lines, warning)
	}
	return lines
}

func editTask(store *todo.Store, spec taskSpec) []string {
	// Re-read so the line reflects the current title.
	current, err := store.Get(spec.ID)
	if err != nil {
		return []string{failLine(spec.ID, err)}
	}

	patch := todo.Patch{
		Title:       spec.Title,
		Description: spec.Description,
		DueDate:     spec.DueDate,
		Labels:      spec.Labels,
		Completed:   spec.Completed,
		AddSubtasks: spec.Subtasks,
	}
	if spec.Priority != nil {
		p := todo.Priority(*spec.Priority)
		patch.Priority = &p
	}

	var warning string
	if spec.Project != nil {
		pid, ok := resolveProject(store, *spec.Project)
		if ok {
			patch.ProjectID = &pid
		} else {
			warning = fmt.Sprintf("%s Project %q not found; task #%d keeps its project", markWarn, *spec.Project, spec.ID)
		}
	}

	if patch.IsEmpty() && warning == "" {
		return []string{fmt.Sprintf("%s Task #%d: nothing to change", markWarn, spec.ID)}
	}

	var lines []string
	if !patch.IsEmpty() {
		if err := store.EditTask(spec.ID, patch); err != nil {
			return []string{failLine(spec.ID, err)}
		}
		title := current.Title
		if spec.Title != nil {
			title = strings.TrimSpace(*spec.Title)
		}
		lines = append(lines, fmt.Sprintf("%s Updated task #%d: %s", markOK, spec.ID, title))
	}
	if warning != "" {
		lines = append(lines, warning)
	}
	return lines
}

func applyByID(store *todo.Store, tool string, id int) string {
	switch tool {
	case ToolDeleteTasks:
		removed, err := store.DeleteTask(id)
		if err != nil {
			return failLine(id, err)
		}
		return fmt.Sprintf("%s Deleted task #%d: %s", markOK, id, removed.Title)
	case ToolCompleteTasks, ToolUncompleteTasks:
		t, err := store.Get(id)
		if err != nil {
			return failLine(id, err)
		}
		completed := tool == ToolCompleteTasks
		if err := store.SetCompleted(id, completed); err != nil {
			return failLine(id, err)
		}
		if completed {
			return fmt.Sprintf("%s Completed task #%d: %s", markOK, id, t.Title)
		}
		return fmt.Sprintf("%s Reopened task #%d: %s", markOK, id, t.Title)
	}
	return fmt.Sprintf("%s Task #%d: unsupported tool %s", markFail, id, tool)
}

// itemFailLine reports a batch item that could not be decoded. Items are
// numbered from 1.
func itemFailLine(i int, raw json.RawMessage, err error) string {
	text := string(raw)
	if len(text) > 60 {
		text = text[:57] + "..."
	}
	return fmt.Sprintf("%s Item %d %s skipped: %v", markFail, i+1, text, err)
}

func failLine(id int, err error) string {
	var nf *todo.NotFoundError
	if errors.As(err, &nf) && nf.Kind == "task" && nf.ID == id {
		return fmt.Sprintf("%s Task #%d not found", markFail, id)
	}
	return fmt.Sprintf("%s Task #%d: %v", markFail, id, err)
}
