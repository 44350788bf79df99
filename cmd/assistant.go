package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/nibzard/tasklane/internal/assistant"
	"github.com/nibzard/tasklane/internal/config"
	"github.com/nibzard/tasklane/internal/history"
)

// askCommand sends one utterance to the assistant and prints the reply.
func (a *app) askCommand(ctx context.Context, args []string) error {
	flags := flag.NewFlagSet("tasklane ask", flag.ContinueOnError)
	flags.SetOutput(a.errOut)
	verbose := flags.Bool("v", false, "Show the tool result and request id")
	rest, err := parseArgs(flags, args)
	if err != nil {
		return err
	}
	text := strings.TrimSpace(strings.Join(rest, " "))
	if text == "" {
		return assistant.ErrEmptyRequest
	}

	ws, closeWS, err := a.openWorkspace(ctx, true)
	if err != nil {
		return err
	}
	defer closeWS()

	reply, err := ws.Ask(ctx, text)
	if err != nil {
		return err
	}
	if reply.Err != nil {
		return reply.Err
	}
	fmt.Fprintln(a.out, reply.Text)
	if *verbose {
		fmt.Fprintf(a.errOut, "request %s (%s)\n", reply.RequestID, reply.Phase)
		if reply.Result != nil {
			fmt.Fprintf(a.errOut, "tool %s:\n%s\n", reply.Result.Tool, reply.Result.Text())
		}
	}
	return nil
}

// usageCommand prints the usage counters and the most recent calls.
func (a *app) usageCommand(ctx context.Context, args []string) error {
	flags := flag.NewFlagSet("tasklane usage", flag.ContinueOnError)
	flags.SetOutput(a.errOut)
	n := flags.Int("n", 5, "Number of recent calls to show")
	if err := flags.Parse(args); err != nil {
		return err
	}

	ws, closeWS, err := a.openWorkspace(ctx, false)
	if err != nil {
		return err
	}
	defer closeWS()

	stats := ws.Usage()
	fmt.Fprintf(a.out, "Model:         %s\n", ws.AssistantConfig().Model)
	fmt.Fprintf(a.out, "Queries today: %d\n", stats.QueriesToday)
	fmt.Fprintf(a.out, "Total tokens:  %d\n", stats.TotalTokens)
	fmt.Fprintf(a.out, "Total cost:    $%.4f\n", stats.TotalCost)

	events := stats.Events
	if *n >= 0 && len(events) > *n {
		events = events[len(events)-*n:]
	}
	if len(events) == 0 {
		return nil
	}
	fmt.Fprintln(a.out)
	fmt.Fprintln(a.out, "Recent calls:")
	for _, ev := range events {
		fmt.Fprintf(a.out, "  %s  %-14s %6d tokens  $%.5f  %s\n",
			ev.Timestamp.Local().Format("2006-01-02 15:04"), ev.Model, ev.Tokens, ev.Cost, ev.Latency.Round(time.Millisecond))
	}
	return nil
}

// historyCommand prints or clears the conversation.
func (a *app) historyCommand(ctx context.Context, args []string) error {
	flags := flag.NewFlagSet("tasklane history", flag.ContinueOnError)
	flags.SetOutput(a.errOut)
	clearHist := flags.Bool("clear", false, "Clear the conversation")
	n := flags.Int("n", 0, "Show only the last n messages (0 = all)")
	if err := flags.Parse(args); err != nil {
		return err
	}

	ws, closeWS, err := a.openWorkspace(ctx, false)
	if err != nil {
		return err
	}
	defer closeWS()

	if *clearHist {
		if err := ws.ClearHistory(ctx); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "Conversation cleared.")
		return nil
	}

	msgs := ws.History()
	if *n > 0 && len(msgs) > *n {
		msgs = msgs[len(msgs)-*n:]
	}
	if len(msgs) == 0 {
		fmt.Fprintln(a.out, "No conversation yet.")
		return nil
	}
	for _, m := range msgs {
		fmt.Fprintln(a.out, formatMessage(m))
	}
	return nil
}

func formatMessage(m history.Message) string {
	switch {
	case m.FunctionCall != nil:
		return fmt.Sprintf("%s: -> %s %s", m.Role, m.FunctionCall.Name, m.FunctionCall.Arguments)
	case m.Role == history.RoleFunction:
		return fmt.Sprintf("%s(%s): %s", m.Role, m.Name, m.Content)
	default:
		return fmt.Sprintf("%s: %s", m.Role, m.Content)
	}
}

// setupCommand shows the effective assistant settings and persists changes.
func (a *app) setupCommand(ctx context.Context, args []string) error {
	flags := flag.NewFlagSet("tasklane setup", flag.ContinueOnError)
	flags.SetOutput(a.errOut)
	key := flags.String("key", "", "API key to store")
	model := flags.String("model", "", "Model to store")
	baseURL := flags.String("base-url", "", "Endpoint base URL to store")
	maxTokens := flags.Int("max-tokens", 0, "Max tokens per reply")
	temperature := flags.Float64("temperature", 0, "Sampling temperature")
	historyLimit := flags.Int("history", 0, "Conversation window size")
	writeConfig := flags.Bool("write-config", false, "Write an example user config file")
	force := flags.Bool("force", false, "Overwrite an existing config file")
	if err := flags.Parse(args); err != nil {
		return err
	}

	if *writeConfig {
		return a.writeUserConfig(*force)
	}

	ws, closeWS, err := a.openWorkspace(ctx, false)
	if err != nil {
		return err
	}
	defer closeWS()

	changes := assistant.Config{
		APIKey:       strings.TrimSpace(*key),
		Model:        strings.TrimSpace(*model),
		BaseURL:      strings.TrimSpace(*baseURL),
		MaxTokens:    *maxTokens,
		Temperature:  *temperature,
		HistoryLimit: *historyLimit,
	}
	if changes != (assistant.Config{}) {
		if err := ws.SetAssistantConfig(ctx, ws.SavedAssistantConfig().Merge(changes)); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "Assistant settings saved.")
		fmt.Fprintln(a.out)
	}

	cfg := ws.AssistantConfig().Redacted()
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = "(not set)"
	}
	fmt.Fprintf(a.out, "API key:        %s\n", apiKey)
	fmt.Fprintf(a.out, "Model:          %s\n", cfg.Model)
	fmt.Fprintf(a.out, "Base URL:       %s\n", cfg.BaseURL)
	fmt.Fprintf(a.out, "Max tokens:     %d\n", cfg.MaxTokens)
	fmt.Fprintf(a.out, "Temperature:    %g\n", cfg.Temperature)
	fmt.Fprintf(a.out, "History limit:  %d\n", cfg.HistoryLimit)
	fmt.Fprintf(a.out, "Storage:        %s (%s)\n", a.cfg.Storage, a.cfg.DataDir)
	if !cfg.Configured() {
		fmt.Fprintln(a.out)
		fmt.Fprintln(a.out, "The assistant needs an API key: run 'tasklane setup -key <key>' or set TASKLANE_API_KEY.")
	}

	if len(a.sources.Files) > 0 {
		fmt.Fprintln(a.out)
		fmt.Fprintln(a.out, "Config files:")
		for _, f := range a.sources.Files {
			fmt.Fprintf(a.out, "  %s\n", f)
		}
	}
	var overridden []string
	for field, src := range a.sources.Sources {
		if src != config.SourceDefault {
			overridden = append(overridden, field)
		}
	}
	if len(overridden) > 0 {
		sort.Strings(overridden)
		fmt.Fprintln(a.out)
		fmt.Fprintln(a.out, "Settings from config:")
		for _, field := range overridden {
			fmt.Fprintf(a.out, "  %-28s %s\n", field, a.sources.Sources[field])
		}
	}
	return nil
}

func (a *app) writeUserConfig(force bool) error {
	path, err := config.UserConfigPath()
	if err != nil {
		return fmt.Errorf("locating user config: %w", err)
	}
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists (use -force to overwrite)", path)
	} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(config.ExampleConfig()), 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	fmt.Fprintf(a.out, "Wrote %s\n", path)
	return nil
}
