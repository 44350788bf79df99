package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/nibzard/tasklane/internal/logging"
	"github.com/nibzard/tasklane/internal/server"
	"github.com/nibzard/tasklane/internal/todo"
	"github.com/nibzard/tasklane/internal/ui"
)

// serveCommand serves the HTTP API until the context is cancelled.
func (a *app) serveCommand(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("tasklane serve", flag.ContinueOnError)
	fs.SetOutput(a.errOut)
	addr := fs.String("addr", a.cfg.Listen, "Listen address")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ws, closeWS, err := a.openWorkspace(ctx, true)
	if err != nil {
		return err
	}
	defer closeWS()

	e := server.New(ws, a.logger)
	a.logger.Info("serving HTTP API", "addr", *addr, "storage", a.cfg.Storage)
	return server.Serve(ctx, e, *addr)
}

// tuiCommand launches the terminal UI.
func (a *app) tuiCommand(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("tasklane tui", flag.ContinueOnError)
	fs.SetOutput(a.errOut)
	refresh := fs.Duration("refresh", 2*time.Second, "Refresh interval")
	rest, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if len(rest) > 1 {
		return fmt.Errorf("unexpected arguments: %v", rest[1:])
	}

	ws, closeWS, err := a.openWorkspace(ctx, true)
	if err != nil {
		return err
	}
	defer closeWS()

	opts := []ui.TUIOption{ui.WithRefreshInterval(*refresh)}
	if len(rest) == 1 {
		var view todo.View
		err := ws.View(func(s *todo.Store) error {
			var err error
			view, err = resolveView(s, rest[0])
			return err
		})
		if err != nil {
			return err
		}
		opts = append(opts, ui.WithView(view))
	}
	return ui.RunTUI(ctx, ws, opts...)
}

// logsCommand tails the latest assistant event log.
func (a *app) logsCommand(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("tasklane logs", flag.ContinueOnError)
	fs.SetOutput(a.errOut)
	follow := fs.Bool("f", false, "Follow the log (like tail -f)")
	fs.BoolVar(follow, "follow", false, "Follow the log (like tail -f)")
	n := fs.Int("n", 0, "Number of lines to show (0 = all)")
	list := fs.Bool("list", false, "List the event logs instead")
	if err := fs.Parse(args); err != nil {
		return err
	}

	logDir := a.cfg.LogDir()
	if *list {
		runs, err := logging.FindLogRuns(logDir)
		if err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("listing logs: %w", err)
		}
		if len(runs) == 0 {
			fmt.Fprintln(a.out, "No log files found.")
			return nil
		}
		for _, r := range runs {
			fmt.Fprintf(a.out, "%s  %s  %8d bytes\n", r.RunID, r.ModTime.Local().Format("2006-01-02 15:04:05"), r.Size)
		}
		return nil
	}

	logPath, err := logging.FindLatestLog(logDir)
	if err != nil {
		return fmt.Errorf("finding latest log: %w", err)
	}
	if logPath == "" {
		fmt.Fprintln(a.out, "No log files found.")
		return nil
	}

	fmt.Fprintf(a.out, "Tailing: %s\n", logPath)
	if *follow {
		fmt.Fprintln(a.out, "(Ctrl+C to stop)")
	}
	fmt.Fprintln(a.out)

	return logging.TailLog(ctx, a.out, logPath, *n, *follow)
}
