package cmd

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/nibzard/tasklane/internal/todo"
)

// projectCommand manages projects.
func (a *app) projectCommand(ctx context.Context, args []string) error {
	action := "ls"
	if len(args) > 0 {
		action, args = args[0], args[1:]
	}

	fs := flag.NewFlagSet("tasklane project "+action, flag.ContinueOnError)
	fs.SetOutput(a.errOut)
	name := fs.String("name", "", "New project name")
	color := fs.String("color", "", "Project color (hex)")
	rest, err := parseArgs(fs, args)
	if err != nil {
		return err
	}

	ws, closeWS, err := a.openWorkspace(ctx, false)
	if err != nil {
		return err
	}
	defer closeWS()

	switch action {
	case "ls", "list":
		return ws.View(func(s *todo.Store) error {
			projects := s.Projects()
			if len(projects) == 0 {
				fmt.Fprintln(a.out, "No projects.")
				return nil
			}
			counts := s.Counts()
			for _, p := range projects {
				fmt.Fprintf(a.out, "%4d %s  %s  (%d open)\n", p.ID, p.Name, p.Color, counts.Projects[p.ID])
			}
			return nil
		})

	case "add":
		if len(rest) == 0 {
			return fmt.Errorf("usage: tasklane project add <name> [-color hex]")
		}
		title := strings.Join(rest, " ")
		var id int
		err = ws.Update(ctx, func(s *todo.Store) error {
			id, err = s.AddProject(title, *color)
			return err
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Added project %d: %s\n", id, title)
		return nil

	case "edit":
		if len(rest) != 1 {
			return fmt.Errorf("usage: tasklane project edit <id|name> [-name n] [-color hex]")
		}
		var patch todo.ProjectPatch
		fs.Visit(func(f *flag.Flag) {
			switch f.Name {
			case "name":
				patch.Name = name
			case "color":
				patch.Color = color
			}
		})
		if patch.Name == nil && patch.Color == nil {
			return fmt.Errorf("nothing to change")
		}
		var id int
		err = ws.Update(ctx, func(s *todo.Store) error {
			if id, err = resolveProject(s, rest[0]); err != nil {
				return err
			}
			return s.EditProject(id, patch)
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Updated project %d\n", id)
		return nil

	case "rm":
		if len(rest) != 1 {
			return fmt.Errorf("usage: tasklane project rm <id|name>")
		}
		var id int
		err = ws.View(func(s *todo.Store) error {
			id, err = resolveProject(s, rest[0])
			return err
		})
		if err != nil {
			return err
		}
		moved, err := ws.DeleteProject(ctx, id, a.confirm)
		if err != nil {
			return a.declined(err)
		}
		fmt.Fprintf(a.out, "Deleted project %d; %d task(s) moved to the inbox\n", id, moved)
		return nil
	}
	return fmt.Errorf("unknown project action: %s", action)
}
