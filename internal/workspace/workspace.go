// Package workspace binds one session's task store, assistant, usage and
// history to a storage backend.
//
// Every method holds the workspace lock for its whole duration, so an
// assistant request and a manual edit never interleave.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/nibzard/tasklane/internal/assistant"
	"github.com/nibzard/tasklane/internal/history"
	"github.com/nibzard/tasklane/internal/logging"
	"github.com/nibzard/tasklane/internal/prompts"
	"github.com/nibzard/tasklane/internal/storage"
	"github.com/nibzard/tasklane/internal/todo"
	"github.com/nibzard/tasklane/internal/usage"
)

// ErrDeclined is returned when the confirmation gate says no.
var ErrDeclined = errors.New("operation declined")

// Confirm asks the user a yes/no question.
type Confirm func(ctx context.Context, prompt string) (bool, error)

// Yes is a Confirm that always agrees.
func Yes(context.Context, string) (bool, error) {
	return true, nil
}

// Options configures Open.
type Options struct {
	// Assistant holds configured settings. Its non-zero fields win over
	// the persisted assistant config.
	Assistant assistant.Config
	// Rates overrides the pricing table; nil means usage.DefaultRates.
	Rates     map[string]usage.Rate
	PromptDir string
	Completer assistant.Completer
	Events    logging.EventWriter
	Logger    *log.Logger
	Clock     func() time.Time
}

type assistantRecord struct {
	AIConfig assistant.Config `json:"aiConfig"`
	AIStats  usage.Stats      `json:"aiStats"`
}

type historyRecord struct {
	Messages []history.Message `json:"messages"`
}

// ImportSummary reports what an import brought in.
type ImportSummary struct {
	Tasks    int `json:"tasks"`
	Projects int `json:"projects"`
}

// Workspace is one session.
type Workspace struct {
	mu        sync.Mutex
	backend   storage.Backend
	store     *todo.Store
	tracker   *usage.Tracker
	history   *history.Manager
	orch      *assistant.Orchestrator
	persisted assistant.Config
	override  assistant.Config
	logger    *log.Logger
	now       func() time.Time
}

// Open loads the state, assistant and history records from backend. A
// missing record starts empty.
func Open(ctx context.Context, backend storage.Backend, opts Options) (*Workspace, error) {
	if backend == nil {
		return nil, fmt.Errorf("workspace: backend is nil")
	}
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	w := &Workspace{
		backend:  backend,
		store:    todo.NewStore(todo.WithClock(now)),
		tracker:  usage.NewTracker(opts.Rates, usage.WithClock(now)),
		history:  history.NewManager(history.DefaultLimit),
		override: opts.Assistant,
		logger:   logger,
		now:      now,
	}

	var st todo.State
	if err := loadRecord(ctx, backend, storage.KeyState, &st); err != nil {
		return nil, err
	}
	if err := w.store.Restore(st); err != nil {
		return nil, fmt.Errorf("restore state: %w", err)
	}

	var ar assistantRecord
	if err := loadRecord(ctx, backend, storage.KeyAssistant, &ar); err != nil {
		return nil, err
	}
	w.persisted = ar.AIConfig
	w.tracker.Restore(ar.AIStats)

	var hr historyRecord
	if err := loadRecord(ctx, backend, storage.KeyHistory, &hr); err != nil {
		return nil, err
	}
	w.history.Restore(hr.Messages)

	orchOpts := []assistant.Option{
		assistant.WithRenderer(prompts.NewRenderer(prompts.NewStore(opts.PromptDir))),
		assistant.WithEventWriter(opts.Events),
		assistant.WithLogger(logger),
		assistant.WithClock(now),
	}
	if opts.Completer != nil {
		orchOpts = append(orchOpts, assistant.WithCompleter(opts.Completer))
	}
	w.orch = assistant.New(w.effectiveConfig(), w.store, w.tracker, w.history, orchOpts...)
	return w, nil
}

func loadRecord(ctx context.Context, b storage.Backend, key string, v any) error {
	err := storage.LoadJSON(ctx, b, key, v)
	if err == nil || errors.Is(err, storage.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("load %s: %w", key, err)
}

func (w *Workspace) effectiveConfig() assistant.Config {
	return assistant.DefaultConfig().Merge(w.persisted).Merge(w.override)
}

// Close closes the backend.
func (w *Workspace) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.backend.Close()
}

// View runs fn with the store. fn must not mutate it.
func (w *Workspace) View(fn func(*todo.Store) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return fn(w.store)
}

// Update runs fn with the store and saves the state if it succeeds. When fn
// or the save fails every change it made is rolled back.
func (w *Workspace) Update(ctx context.Context, fn func(*todo.Store) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	before := w.store.Snapshot()
	if err := fn(w.store); err != nil {
		w.rollback(before)
		return err
	}
	return w.commit(ctx, before)
}

// commit saves the state, restoring before when the save fails so memory
// never runs ahead of storage.
func (w *Workspace) commit(ctx context.Context, before todo.State) error {
	if err := w.saveState(ctx); err != nil {
		w.rollback(before)
		return err
	}
	return nil
}

func (w *Workspace) rollback(before todo.State) {
	if err := w.store.Restore(before); err != nil {
		w.logger.Error("rollback failed", "err", err)
	}
}

// Ask sends an utterance to the assistant. Assistant failures are in the
// reply; the error only reports a failure to persist the session.
func (w *Workspace) Ask(ctx context.Context, text string) (assistant.Reply, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	reply := w.orch.Ask(ctx, text)
	return reply, w.saveAll(ctx)
}

// DeleteProject removes a project after confirmation and returns how many
// tasks moved to the inbox.
func (w *Workspace) DeleteProject(ctx context.Context, id int, confirm Confirm) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	p, err := w.store.Project(id)
	if err != nil {
		return 0, err
	}
	refs := len(w.store.Query(todo.View{Kind: todo.ViewProject, ProjectID: id}))
	prompt := fmt.Sprintf("Delete project %q? %d task(s) will move to the inbox.", p.Name, refs)
	if err := ask(ctx, confirm, prompt); err != nil {
		return 0, err
	}

	before := w.store.Snapshot()
	n, err := w.store.DeleteProject(id)
	if err != nil {
		w.rollback(before)
		return 0, err
	}
	if err := w.commit(ctx, before); err != nil {
		return 0, err
	}
	return n, nil
}

// ClearAll deletes every task, project, message and usage counter after
// confirmation. The assistant config is kept.
func (w *Workspace) ClearAll(ctx context.Context, confirm Confirm) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := ask(ctx, confirm, "Delete all tasks, projects, assistant history and usage stats?"); err != nil {
		return err
	}
	w.store.Reset()
	w.tracker.Reset()
	w.history.Clear()
	return w.saveAll(ctx)
}

// Export renders the current state as an export document.
func (w *Workspace) Export(context.Context) ([]byte, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return todo.Export(w.store.Snapshot(), w.now())
}

// Import replaces the state with an export document. An invalid document
// returns *todo.ImportFormatError and changes nothing.
func (w *Workspace) Import(ctx context.Context, data []byte) (ImportSummary, error) {
	st, err := todo.ParseImport(data)
	if err != nil {
		return ImportSummary{}, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	before := w.store.Snapshot()
	if err := w.store.Restore(st); err != nil {
		w.rollback(before)
		return ImportSummary{}, err
	}
	if err := w.commit(ctx, before); err != nil {
		return ImportSummary{}, err
	}
	return ImportSummary{Tasks: len(st.Tasks), Projects: len(st.Projects)}, nil
}

// Usage returns the usage counters.
func (w *Workspace) Usage() usage.Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.tracker.Stats()
}

// History returns the conversation transcript.
func (w *Workspace) History() []history.Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.history.Messages()
}

// ClearHistory drops the conversation transcript.
func (w *Workspace) ClearHistory(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.history.Clear()
	return w.saveHistory(ctx)
}

// AssistantConfig returns the effective assistant config.
func (w *Workspace) AssistantConfig() assistant.Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.orch.Config()
}

// SavedAssistantConfig returns the persisted assistant config, without
// the configured overrides.
func (w *Workspace) SavedAssistantConfig() assistant.Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.persisted
}

// SetAssistantConfig persists cfg. Configured values from Options still
// win over it.
func (w *Workspace) SetAssistantConfig(ctx context.Context, cfg assistant.Config) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.persisted = cfg
	w.orch.SetConfig(w.effectiveConfig())
	return w.saveAssistant(ctx)
}

func ask(ctx context.Context, confirm Confirm, prompt string) error {
	if confirm == nil {
		return ErrDeclined
	}
	ok, err := confirm(ctx, prompt)
	if err != nil {
		return fmt.Errorf("confirm: %w", err)
	}
	if !ok {
		return ErrDeclined
	}
	return nil
}

func (w *Workspace) saveState(ctx context.Context) error {
	return storage.SaveJSON(ctx, w.backend, storage.KeyState, w.store.Snapshot())
}

func (w *Workspace) saveAssistant(ctx context.Context) error {
	return storage.SaveJSON(ctx, w.backend, storage.KeyAssistant, assistantRecord{
		AIConfig: w.persisted,
		AIStats:  w.tracker.Stats(),
	})
}

func (w *Workspace) saveHistory(ctx context.Context) error {
	return storage.SaveJSON(ctx, w.backend, storage.KeyHistory, historyRecord{Messages: w.history.Messages()})
}

func (w *Workspace) saveAll(ctx context.Context) error {
	return errors.Join(w.saveState(ctx), w.saveAssistant(ctx), w.saveHistory(ctx))
}
