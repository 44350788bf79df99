package cmd

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
)

// exportCommand writes the export document to stdout or a file.
func (a *app) exportCommand(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("tasklane export", flag.ContinueOnError)
	fs.SetOutput(a.errOut)
	output := fs.String("o", "", "Write to file instead of stdout")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ws, closeWS, err := a.openWorkspace(ctx, false)
	if err != nil {
		return err
	}
	defer closeWS()

	data, err := ws.Export(ctx)
	if err != nil {
		return err
	}
	if *output == "" {
		_, err = a.out.Write(data)
		return err
	}
	if err := os.WriteFile(*output, data, 0o644); err != nil {
		return fmt.Errorf("writing export: %w", err)
	}
	fmt.Fprintf(a.errOut, "Exported to %s\n", *output)
	return nil
}

// importCommand replaces tasks and projects with an export document.
func (a *app) importCommand(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: tasklane import <file|->")
	}
	var (
		data []byte
		err  error
	)
	if args[0] == "-" {
		data, err = io.ReadAll(a.in)
	} else {
		data, err = os.ReadFile(args[0])
	}
	if err != nil {
		return fmt.Errorf("reading import: %w", err)
	}

	ws, closeWS, err := a.openWorkspace(ctx, false)
	if err != nil {
		return err
	}
	defer closeWS()

	summary, err := ws.Import(ctx, data)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Imported %d task(s) and %d project(s)\n", summary.Tasks, summary.Projects)
	return nil
}

// clearCommand deletes every task, project, conversation and usage counter.
func (a *app) clearCommand(ctx context.Context, args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("unexpected arguments: %v", args)
	}
	ws, closeWS, err := a.openWorkspace(ctx, false)
	if err != nil {
		return err
	}
	defer closeWS()

	if err := ws.ClearAll(ctx, a.confirm); err != nil {
		return a.declined(err)
	}
	fmt.Fprintln(a.out, "All data cleared.")
	return nil
}
