package cmd

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/nibzard/tasklane/internal/dates"
	"github.com/nibzard/tasklane/internal/todo"
)

// lsCommand lists the tasks of a view in view order.
func (a *app) lsCommand(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("tasklane ls", flag.ContinueOnError)
	fs.SetOutput(a.errOut)
	verbose := fs.Bool("v", false, "Show descriptions and subtasks")
	showCounts := fs.Bool("counts", false, "Show per-view counts instead of tasks")

	rest, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if len(rest) > 1 {
		return fmt.Errorf("unexpected arguments: %v", rest[1:])
	}

	ws, closeWS, err := a.openWorkspace(ctx, false)
	if err != nil {
		return err
	}
	defer closeWS()

	return ws.View(func(s *todo.Store) error {
		if *showCounts {
			printCounts(a.out, s)
			return nil
		}
		arg := ""
		if len(rest) == 1 {
			arg = rest[0]
		}
		view, err := resolveView(s, arg)
		if err != nil {
			return err
		}
		tasks := s.Query(view)
		fmt.Fprintf(a.out, "%s (%d)\n", view, len(tasks))
		if len(tasks) == 0 {
			fmt.Fprintln(a.out, "  No tasks.")
			return nil
		}
		printTaskList(a.out, s, tasks, *verbose)
		return nil
	})
}

// resolveView parses a view name, accepting a project name in project:<x>.
func resolveView(s *todo.Store, arg string) (todo.View, error) {
	kind, rest, ok := strings.Cut(arg, ":")
	if ok && strings.EqualFold(strings.TrimSpace(kind), string(todo.ViewProject)) {
		id, err := resolveProject(s, rest)
		if err != nil {
			return todo.View{}, err
		}
		return todo.View{Kind: todo.ViewProject, ProjectID: id}, nil
	}
	return todo.ParseView(arg)
}

func printCounts(w io.Writer, s *todo.Store) {
	c := s.Counts()
	fmt.Fprintf(w, "today      %d\n", c.Today)
	fmt.Fprintf(w, "upcoming   %d\n", c.Upcoming)
	fmt.Fprintf(w, "inbox      %d\n", c.Inbox)
	fmt.Fprintf(w, "important  %d\n", c.Important)
	fmt.Fprintf(w, "all        %d\n", c.All)
	fmt.Fprintf(w, "completed  %d\n", c.Completed)
	for _, p := range s.Projects() {
		fmt.Fprintf(w, "@%s  %d\n", p.Name, c.Projects[p.ID])
	}
}

// addCommand creates one task.
func (a *app) addCommand(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("tasklane add", flag.ContinueOnError)
	fs.SetOutput(a.errOut)
	priority := fs.String("p", "", "Priority (high, medium, low)")
	due := fs.String("due", "", "Due date (YYYY-MM-DD, today, tomorrow)")
	project := fs.String("project", "", "Project id or name")
	labels := fs.String("label", "", "Comma-separated labels")
	desc := fs.String("desc", "", "Description")
	var subtasks stringList
	fs.Var(&subtasks, "sub", "Subtask title (repeatable)")

	rest, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	title := strings.TrimSpace(strings.Join(rest, " "))
	if title == "" {
		return fmt.Errorf("a task title is required")
	}

	ws, closeWS, err := a.openWorkspace(ctx, false)
	if err != nil {
		return err
	}
	defer closeWS()

	var id int
	err = ws.Update(ctx, func(s *todo.Store) error {
		fields := todo.NewTask{
			Title:       title,
			Description: *desc,
			DueDate:     resolveDue(*due, s.Today()),
			Labels:      splitAndTrim(*labels, ","),
			Subtasks:    subtasks,
		}
		if *priority != "" {
			p, err := todo.ParsePriority(*priority)
			if err != nil {
				return err
			}
			fields.Priority = p
		}
		if *project != "" {
			pid, err := resolveProject(s, *project)
			if err != nil {
				return err
			}
			fields.ProjectID = &pid
		}
		id, err = s.AddTask(fields)
		return err
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Added task #%d: %s\n", id, title)
	return nil
}

// editCommand applies a partial update. Only the flags given change the task;
// an empty -due, -project or -label clears the field.
func (a *app) editCommand(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("tasklane edit", flag.ContinueOnError)
	fs.SetOutput(a.errOut)
	title := fs.String("title", "", "New title")
	desc := fs.String("desc", "", "New description")
	priority := fs.String("p", "", "Priority (high, medium, low)")
	due := fs.String("due", "", "Due date; empty clears it")
	project := fs.String("project", "", "Project id or name; empty or none clears it")
	labels := fs.String("label", "", "Comma-separated labels; empty clears them")
	var subtasks stringList
	fs.Var(&subtasks, "sub", "Append a subtask (repeatable)")

	rest, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if len(rest) != 1 {
		return fmt.Errorf("usage: tasklane edit <id> [options]")
	}
	id, err := parseID(rest[0])
	if err != nil {
		return err
	}
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})
	if len(set) == 0 {
		return fmt.Errorf("nothing to change")
	}

	ws, closeWS, err := a.openWorkspace(ctx, false)
	if err != nil {
		return err
	}
	defer closeWS()

	err = ws.Update(ctx, func(s *todo.Store) error {
		var patch todo.Patch
		if set["title"] {
			patch.Title = title
		}
		if set["desc"] {
			patch.Description = desc
		}
		if set["p"] {
			p, err := todo.ParsePriority(*priority)
			if err != nil {
				return err
			}
			patch.Priority = &p
		}
		if set["due"] {
			d := resolveDue(*due, s.Today())
			patch.DueDate = &d
		}
		if set["project"] {
			pid := 0
			if name := strings.TrimSpace(*project); name != "" && !strings.EqualFold(name, "none") {
				if pid, err = resolveProject(s, name); err != nil {
					return err
				}
			}
			patch.ProjectID = &pid
		}
		if set["label"] {
			l := splitAndTrim(*labels, ",")
			patch.Labels = &l
		}
		patch.AddSubtasks = subtasks
		return s.EditTask(id, patch)
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Updated task #%d\n", id)
	return nil
}

// completeCommand marks tasks completed or incomplete.
func (a *app) completeCommand(ctx context.Context, args []string, completed bool) error {
	ids, err := parseIDs(args)
	if err != nil {
		return err
	}
	ws, closeWS, err := a.openWorkspace(ctx, false)
	if err != nil {
		return err
	}
	defer closeWS()

	err = ws.Update(ctx, func(s *todo.Store) error {
		for _, id := range ids {
			if err := s.SetCompleted(id, completed); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	verb := "Completed"
	if !completed {
		verb = "Reopened"
	}
	for _, id := range ids {
		fmt.Fprintf(a.out, "%s task #%d\n", verb, id)
	}
	return nil
}

// rmCommand deletes tasks after confirmation.
func (a *app) rmCommand(ctx context.Context, args []string) error {
	ids, err := parseIDs(args)
	if err != nil {
		return err
	}
	ws, closeWS, err := a.openWorkspace(ctx, false)
	if err != nil {
		return err
	}
	defer closeWS()

	var titles []string
	err = ws.View(func(s *todo.Store) error {
		for _, id := range ids {
			t, err := s.Get(id)
			if err != nil {
				return err
			}
			titles = append(titles, fmt.Sprintf("#%d %q", t.ID, t.Title))
		}
		return nil
	})
	if err != nil {
		return err
	}
	ok, err := a.confirm(ctx, fmt.Sprintf("Delete %s?", strings.Join(titles, ", ")))
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(a.out, "Cancelled.")
		return nil
	}

	err = ws.Update(ctx, func(s *todo.Store) error {
		for _, id := range ids {
			if _, err := s.DeleteTask(id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Deleted %d task(s)\n", len(ids))
	return nil
}

// subCommand manages subtasks: add <task> <title>, toggle <task> <sub>,
// rm <task> <sub>.
func (a *app) subCommand(ctx context.Context, args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("usage: tasklane sub add <task> <title> | toggle <task> <sub> | rm <task> <sub>")
	}
	action := args[0]
	taskID, err := parseID(args[1])
	if err != nil {
		return err
	}

	ws, closeWS, err := a.openWorkspace(ctx, false)
	if err != nil {
		return err
	}
	defer closeWS()

	switch action {
	case "add":
		title := strings.Join(args[2:], " ")
		var id int
		err = ws.Update(ctx, func(s *todo.Store) error {
			id, err = s.AddSubtask(taskID, title)
			return err
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Added subtask %d to task #%d\n", id, taskID)
	case "toggle", "rm":
		subID, err := parseID(args[2])
		if err != nil {
			return err
		}
		err = ws.Update(ctx, func(s *todo.Store) error {
			if action == "toggle" {
				return s.ToggleSubtask(taskID, subID)
			}
			return s.DeleteSubtask(taskID, subID)
		})
		if err != nil {
			return err
		}
		if action == "toggle" {
			fmt.Fprintf(a.out, "Toggled subtask %d of task #%d\n", subID, taskID)
		} else {
			fmt.Fprintf(a.out, "Deleted subtask %d of task #%d\n", subID, taskID)
		}
	default:
		return fmt.Errorf("unknown sub action: %s", action)
	}
	return nil
}

// resolveDue turns "today" and "tomorrow" into dates. Anything else is
// passed through for the store to validate.
func resolveDue(s string, today dates.Date) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "today":
		return today.String()
	case "tomorrow":
		return today.AddDays(1).String()
	}
	return strings.TrimSpace(s)
}

func printTaskList(w io.Writer, s *todo.Store, tasks []todo.Task, verbose bool) {
	names := make(map[int]string)
	for _, p := range s.Projects() {
		names[p.ID] = p.Name
	}
	today := s.Today()
	for i := range tasks {
		printTask(w, &tasks[i], names, today, verbose)
	}
}

func printTask(w io.Writer, t *todo.Task, projects map[int]string, today dates.Date, verbose bool) {
	check := "[ ]"
	if t.Completed {
		check = "[x]"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%4d %s %s", t.ID, check, t.Title)
	if t.Priority != "" && t.Priority != todo.PriorityLow {
		fmt.Fprintf(&b, "  !%s", t.Priority)
	}
	if t.DueDate != "" {
		fmt.Fprintf(&b, "  due %s", dates.Describe(t.DueDate, today))
	}
	if t.ProjectID != nil {
		if name, ok := projects[*t.ProjectID]; ok {
			fmt.Fprintf(&b, "  @%s", name)
		}
	}
	if len(t.Labels) > 0 {
		fmt.Fprintf(&b, "  #%s", strings.Join(t.Labels, " #"))
	}
	if len(t.Subtasks) > 0 {
		done := 0
		for _, st := range t.Subtasks {
			if st.Completed {
				done++
			}
		}
		fmt.Fprintf(&b, "  (%d/%d)", done, len(t.Subtasks))
	}
	fmt.Fprintln(w, b.String())

	if !verbose {
		return
	}
	if t.Description != "" {
		fmt.Fprintf(w, "       %s\n", t.Description)
	}
	for _, st := range t.Subtasks {
		mark := "[ ]"
		if st.Completed {
			mark = "[x]"
		}
		fmt.Fprintf(w, "       %s %d. %s\n", mark, st.ID, st.Title)
	}
}
