// Package cmd implements the CLI command structure for tasklane.
package cmd

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/nibzard/tasklane/internal/config"
	"github.com/nibzard/tasklane/internal/logging"
	"github.com/nibzard/tasklane/internal/storage"
	"github.com/nibzard/tasklane/internal/todo"
	"github.com/nibzard/tasklane/internal/workspace"
)

// Version is set via ldflags at build time.
var Version = "dev"

// Run executes the tasklane CLI.
func Run(ctx context.Context, args []string) error {
	return run(ctx, args, os.Stdin, os.Stdout, os.Stderr)
}

// app carries what every subcommand needs.
type app struct {
	cfg     *config.Config
	sources *config.ConfigWithSources
	yes     bool
	in      *bufio.Reader
	out     io.Writer
	errOut  io.Writer
	logger  *log.Logger
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	// Create a flag set for global options
	fs := flag.NewFlagSet("tasklane", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		printUsage(fs, stderr)
	}
	help := fs.Bool("help", false, "Show help")
	fs.BoolVar(help, "h", false, "Show help")
	showVersion := fs.Bool("version", false, "Show version")
	fs.BoolVar(showVersion, "v", false, "Show version")
	yes := fs.Bool("yes", false, "Answer yes to confirmation prompts")
	fs.BoolVar(yes, "y", false, "Answer yes to confirmation prompts")

	// Global flags
	cws, err := config.LoadWithSources(fs, args)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if *help {
		printUsage(fs, stdout)
		return nil
	}
	if *showVersion {
		return versionCommand(stdout)
	}

	a := &app{
		cfg:     cws.Config,
		sources: cws,
		yes:     *yes,
		in:      bufio.NewReader(stdin),
		out:     stdout,
		errOut:  stderr,
		logger: logging.NewLoggerFromConfig(stderr, cws.Config.LogLevel, cws.Config.LogFormat,
			cws.Config.LogTimestamps, cws.Config.LogCaller),
	}

	// With no subcommand, show today's tasks.
	subcommand := "ls"
	remainingArgs := fs.Args()
	if len(remainingArgs) > 0 {
		subcommand = remainingArgs[0]
		remainingArgs = remainingArgs[1:]
	}

	switch subcommand {
	case "ls", "list":
		return a.lsCommand(ctx, remainingArgs)
	case "add":
		return a.addCommand(ctx, remainingArgs)
	case "edit":
		return a.editCommand(ctx, remainingArgs)
	case "done":
		return a.completeCommand(ctx, remainingArgs, true)
	case "undo":
		return a.completeCommand(ctx, remainingArgs, false)
	case "rm":
		return a.rmCommand(ctx, remainingArgs)
	case "sub":
		return a.subCommand(ctx, remainingArgs)
	case "project":
		return a.projectCommand(ctx, remainingArgs)
	case "ask":
		return a.askCommand(ctx, remainingArgs)
	case "usage":
		return a.usageCommand(ctx, remainingArgs)
	case "history":
		return a.historyCommand(ctx, remainingArgs)
	case "setup":
		return a.setupCommand(ctx, remainingArgs)
	case "export":
		return a.exportCommand(ctx, remainingArgs)
	case "import":
		return a.importCommand(ctx, remainingArgs)
	case "clear":
		return a.clearCommand(ctx, remainingArgs)
	case "serve":
		return a.serveCommand(ctx, remainingArgs)
	case "tui":
		return a.tuiCommand(ctx, remainingArgs)
	case "logs":
		return a.logsCommand(ctx, remainingArgs)
	case "version":
		return versionCommand(stdout)
	case "help":
		printUsage(fs, stdout)
		return nil
	default:
		return fmt.Errorf("unknown command: %s (run 'tasklane help' for usage)", subcommand)
	}
}

// openWorkspace opens the configured backend. With events set, assistant
// events go to a fresh JSONL run log under the log dir and to the console
// logger. The returned func closes everything.
func (a *app) openWorkspace(ctx context.Context, events bool) (*workspace.Workspace, func(), error) {
	backend, err := storage.Open(ctx, a.cfg.StorageConfig())
	if err != nil {
		return nil, nil, err
	}

	opts := workspace.Options{
		Assistant: a.cfg.Assistant.Settings(),
		Rates:     a.cfg.Rates(),
		PromptDir: a.cfg.PromptDir,
		Logger:    a.logger,
	}
	var runLog *logging.RunLogger
	if events {
		runLog, err = logging.NewRunLogger(a.cfg.LogDir())
		if err != nil {
			a.logger.Warn("event log disabled", "error", err)
		} else {
			opts.Events = logging.NewMultiWriter(runLog.EventWriter(), logging.NewConsoleWriter(a.logger))
		}
	}

	ws, err := workspace.Open(ctx, backend, opts)
	if err != nil {
		_ = runLog.Close()
		_ = backend.Close()
		return nil, nil, err
	}
	closeFn := func() {
		if err := ws.Close(); err != nil {
			a.logger.Warn("closing storage", "error", err)
		}
		_ = runLog.Close()
	}
	return ws, closeFn, nil
}

// confirm asks a y/N question on the terminal unless --yes was given.
func (a *app) confirm(_ context.Context, prompt string) (bool, error) {
	if a.yes {
		return true, nil
	}
	fmt.Fprintf(a.out, "%s [y/N]: ", prompt)
	line, err := a.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("reading answer: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

// declined turns a refused confirmation into a quiet exit.
func (a *app) declined(err error) error {
	if errors.Is(err, workspace.ErrDeclined) {
		fmt.Fprintln(a.out, "Cancelled.")
		return nil
	}
	return err
}

// versionCommand shows version information.
func versionCommand(w io.Writer) error {
	fmt.Fprintf(w, "tasklane %s (%s/%s)\n", Version, runtime.GOOS, runtime.GOARCH)
	return nil
}

// printUsage prints the usage message.
func printUsage(fs *flag.FlagSet, w io.Writer) {
	fmt.Fprintln(w, "Tasklane - A task manager with a conversational assistant")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  tasklane [global options] [command] [options]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  ls [view]                 List tasks (default command, view defaults to all)")
	fmt.Fprintln(w, "                            Views: today, upcoming, inbox, important, all, completed,")
	fmt.Fprintln(w, "                            project:<id|name>, label:<name>, search:<text>")
	fmt.Fprintln(w, "  add <title>               Add a task")
	fmt.Fprintln(w, "  edit <id>                 Edit a task")
	fmt.Fprintln(w, "  done <id>...              Mark tasks completed")
	fmt.Fprintln(w, "  undo <id>...              Mark tasks incomplete")
	fmt.Fprintln(w, "  rm <id>...                Delete tasks")
	fmt.Fprintln(w, "  sub add|toggle|rm         Manage subtasks")
	fmt.Fprintln(w, "  project ls|add|edit|rm    Manage projects")
	fmt.Fprintln(w, "  ask <text>                Ask the assistant")
	fmt.Fprintln(w, "  usage                     Show assistant usage and cost")
	fmt.Fprintln(w, "  history                   Show or clear the conversation")
	fmt.Fprintln(w, "  setup                     Show or change assistant settings")
	fmt.Fprintln(w, "  export                    Export tasks and projects as JSON")
	fmt.Fprintln(w, "  import <file|->           Replace tasks and projects from an export")
	fmt.Fprintln(w, "  clear                     Delete all data")
	fmt.Fprintln(w, "  serve                     Serve the HTTP API")
	fmt.Fprintln(w, "  tui [view]                Launch terminal UI")
	fmt.Fprintln(w, "  logs                      Tail the latest assistant event log")
	fmt.Fprintln(w, "  version                   Show version information")
	fmt.Fprintln(w, "  help                      Show this help message")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Global Options:")
	fs.SetOutput(w)
	fs.PrintDefaults()
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Command options go before positional arguments or after them,")
	fmt.Fprintln(w, "e.g. 'tasklane add -p high Call the bank' or 'tasklane add Call the bank -p high'.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Environment Variables:")
	fmt.Fprintln(w, "  TASKLANE_DATA_DIR, TASKLANE_STORAGE, TASKLANE_REDIS_ADDR, TASKLANE_LISTEN")
	fmt.Fprintln(w, "  TASKLANE_API_KEY (or OPENAI_API_KEY), TASKLANE_MODEL, TASKLANE_BASE_URL")
	fmt.Fprintln(w, "  TASKLANE_LOG_LEVEL, TASKLANE_LOG_FORMAT")
}

// parseArgs parses fs allowing flags between positional arguments.
func parseArgs(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		args = fs.Args()
		if len(args) == 0 {
			return positional, nil
		}
		positional = append(positional, args[0])
		args = args[1:]
	}
}

func parseID(s string) (int, error) {
	id, err := strconv.Atoi(strings.TrimPrefix(strings.TrimSpace(s), "#"))
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

func parseIDs(args []string) ([]int, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("at least one id is required")
	}
	ids := make([]int, 0, len(args))
	for _, arg := range args {
		for _, part := range splitAndTrim(arg, ",") {
			id, err := parseID(part)
			if err != nil {
				return nil, err
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// resolveProject accepts a project id or a (partial) name.
func resolveProject(s *todo.Store, arg string) (int, error) {
	if id, err := strconv.Atoi(strings.TrimSpace(arg)); err == nil {
		p, err := s.Project(id)
		if err != nil {
			return 0, err
		}
		return p.ID, nil
	}
	p, ok := s.ProjectLookupByName(arg)
	if !ok {
		return 0, fmt.Errorf("no project matches %q", arg)
	}
	return p.ID, nil
}

func splitAndTrim(s, sep string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, sep)
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// stringList collects a repeatable string flag.
type stringList []string

func (l *stringList) String() string {
	return strings.Join(*l, ",")
}

func (l *stringList) Set(v string) error {
	*l = append(*l, v)
	return nil
}
