package workspace

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/nibzard/tasklane/internal/assistant"
	"github.com/nibzard/tasklane/internal/history"
	"github.com/nibzard/tasklane/internal/storage"
	"github.com/nibzard/tasklane/internal/todo"
	"github.com/nibzard/tasklane/internal/usage"
)

func fixedNow() time.Time {
	return time.Date(2026, 10, 18, 9, 0, 0, 0, time.Local)
}

type scriptedCompleter struct {
	responses []*assistant.Response
	calls     int
}

func (s *scriptedCompleter) Complete(context.Context, assistant.Request) (*assistant.Response, error) {
	if s.calls >= len(s.responses) {
		return nil, &assistant.TransportError{Status: 500, Message: "no more responses"}
	}
	resp := s.responses[s.calls]
	s.calls++
	return resp, nil
}

func text(content string) *assistant.Response {
	return &assistant.Response{
		Choices: []assistant.Choice{{Message: history.Message{Role: history.RoleAssistant, Content: content}}},
		Usage:   usage.Usage{PromptTokens: 500, CompletionTokens: 300},
	}
}

func call(name, args string) *assistant.Response {
	return &assistant.Response{
		Choices: []assistant.Choice{{Message: history.Message{
			Role:         history.RoleAssistant,
			FunctionCall: &history.FunctionCall{Name: name, Arguments: args},
		}}},
	}
}

func openWorkspace(t *testing.T, b storage.Backend, opts Options) *Workspace {
	t.Helper()
	if opts.Clock == nil {
		opts.Clock = fixedNow
	}
	w, err := Open(context.Background(), b, opts)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return w
}

func no(context.Context, string) (bool, error) {
	return false, nil
}

func TestOpenEmptyBackend(t *testing.T) {
	w := openWorkspace(t, storage.NewMemoryBackend(), Options{})
	_ = w.View(func(s *todo.Store) error {
		if len(s.Tasks()) != 0 || len(s.Projects()) != 0 {
			t.Error("expected empty store")
		}
		return nil
	})
	cfg := w.AssistantConfig()
	if cfg.Configured() || cfg.Model != assistant.DefaultModel {
		t.Errorf("AssistantConfig() = %+v", cfg)
	}
}

func TestUpdatePersistsAcrossOpen(t *testing.T) {
	b, err := storage.NewFileBackend(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	w := openWorkspace(t, b, Options{})
	err = w.Update(ctx, func(s *todo.Store) error {
		pid, err := s.AddProject("Home", "")
		if err != nil {
			return err
		}
		_, err = s.AddTask(todo.NewTask{Title: "Buy milk", ProjectID: &pid, Subtasks: []string{"check fridge"}})
		return err
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	reopened := openWorkspace(t, b, Options{})
	_ = reopened.View(func(s *todo.Store) error {
		tasks := s.Tasks()
		if len(tasks) != 1 || tasks[0].Title != "Buy milk" || !tasks[0].InProject(1) {
			t.Errorf("tasks after reopen = %+v", tasks)
		}
		id, err := s.AddTask(todo.NewTask{Title: "next"})
		if err != nil || id != 2 {
			t.Errorf("next id = %d, %v; want 2", id, err)
		}
		return nil
	})
}

func TestUpdateRollsBackOnError(t *testing.T) {
	b := storage.NewMemoryBackend()
	w := openWorkspace(t, b, Options{})
	boom := errors.New("boom")
	err := w.Update(context.Background(), func(s *todo.Store) error {
		if _, err := s.AddTask(todo.NewTask{Title: "half done"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Update() error = %v, want boom", err)
	}
	_ = w.View(func(s *todo.Store) error {
		if len(s.Tasks()) != 0 {
			t.Error("failed update was not rolled back")
		}
		return nil
	})
	if _, err := b.Load(context.Background(), storage.KeyState); !errors.Is(err, storage.ErrNotExist) {
		t.Error("failed update should not save")
	}
}

var errDiskFull = errors.New("disk full")

// flakyBackend is a memory backend whose saves fail while full is set.
type flakyBackend struct {
	*storage.MemoryBackend
	full bool
}

func (f *flakyBackend) Save(ctx context.Context, key string, data []byte) error {
	if f.full {
		return errDiskFull
	}
	return f.MemoryBackend.Save(ctx, key, data)
}

func TestFailedSaveRollsBackMemory(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name   string
		mutate func(w *Workspace, pid int) error
	}{
		{
			name: "update",
			mutate: func(w *Workspace, _ int) error {
				return w.Update(ctx, func(s *todo.Store) error {
					_, err := s.AddTask(todo.NewTask{Title: "never stored"})
					return err
				})
			},
		},
		{
			name: "delete project",
			mutate: func(w *Workspace, pid int) error {
				_, err := w.DeleteProject(ctx, pid, Yes)
				return err
			},
		},
		{
			name: "import",
			mutate: func(w *Workspace, _ int) error {
				_, err := w.Import(ctx, []byte(`{"version": "1.0", "tasks": [], "projects": []}`))
				return err
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &flakyBackend{MemoryBackend: storage.NewMemoryBackend()}
			w := openWorkspace(t, b, Options{})
			var pid int
			err := w.Update(ctx, func(s *todo.Store) error {
				var err error
				if pid, err = s.AddProject("Work", ""); err != nil {
					return err
				}
				_, err = s.AddTask(todo.NewTask{Title: "filed", ProjectID: &pid})
				return err
			})
			if err != nil {
				t.Fatalf("seeding Update() error = %v", err)
			}

			b.full = true
			if err := tt.mutate(w, pid); !errors.Is(err, errDiskFull) {
				t.Fatalf("error = %v, want disk full", err)
			}

			_ = w.View(func(s *todo.Store) error {
				tasks := s.Tasks()
				if len(tasks) != 1 || tasks[0].Title != "filed" {
					t.Errorf("tasks in memory = %+v, want only the saved one", tasks)
				}
				if len(s.Projects()) != 1 {
					t.Errorf("projects in memory = %d, want 1", len(s.Projects()))
				}
				if tasks[0].ProjectID == nil || *tasks[0].ProjectID != pid {
					t.Error("task lost its project")
				}
				return nil
			})
		})
	}
}

func TestDeleteProjectConfirmation(t *testing.T) {
	ctx := context.Background()
	w := openWorkspace(t, storage.NewMemoryBackend(), Options{})
	var pid int
	_ = w.Update(ctx, func(s *todo.Store) error {
		pid, _ = s.AddProject("Work", "")
		for _, title := range []string{"a", "b", "c"} {
			if _, err := s.AddTask(todo.NewTask{Title: title, ProjectID: &pid}); err != nil {
				return err
			}
		}
		_, err := s.AddTask(todo.NewTask{Title: "loose"})
		return err
	})

	if _, err := w.DeleteProject(ctx, pid, no); !errors.Is(err, ErrDeclined) {
		t.Fatalf("declined DeleteProject() error = %v, want ErrDeclined", err)
	}
	if _, err := w.DeleteProject(ctx, pid, nil); !errors.Is(err, ErrDeclined) {
		t.Fatalf("DeleteProject() without gate error = %v, want ErrDeclined", err)
	}

	var prompt string
	n, err := w.DeleteProject(ctx, pid, func(_ context.Context, p string) (bool, error) {
		prompt = p
		return true, nil
	})
	if err != nil {
		t.Fatalf("DeleteProject() error = %v", err)
	}
	if n != 3 {
		t.Errorf("affected = %d, want 3", n)
	}
	if !strings.Contains(prompt, `"Work"`) || !strings.Contains(prompt, "3 task(s)") {
		t.Errorf("prompt = %q", prompt)
	}
	_ = w.View(func(s *todo.Store) error {
		if len(s.Projects()) != 0 {
			t.Error("project not removed")
		}
		for _, task := range s.Tasks() {
			if task.ProjectID != nil {
				t.Errorf("task %d still references project", task.ID)
			}
		}
		return nil
	})

	if _, err := w.DeleteProject(ctx, 99, Yes); !errors.Is(err, todo.ErrNotFound) {
		t.Errorf("DeleteProject(99) error = %v, want ErrNotFound", err)
	}
}

func TestAskPersistsHistoryAndUsage(t *testing.T) {
	b := storage.NewMemoryBackend()
	fake := &scriptedCompleter{responses: []*assistant.Response{
		call(assistant.ToolAddTasks, `{"tasks": [{"title": "Buy milk"}]}`),
		text("Added Buy milk."),
	}}
	w := openWorkspace(t, b, Options{
		Assistant: assistant.Config{APIKey: "sk-test"},
		Completer: fake,
	})

	reply, err := w.Ask(context.Background(), "add buy milk")
	if err != nil {
		t.Fatalf("Ask() save error = %v", err)
	}
	if reply.Err != nil || reply.Text != "Added Buy milk." {
		t.Fatalf("reply = %+v", reply)
	}

	reopened := openWorkspace(t, b, Options{})
	if got := len(reopened.History()); got != 4 {
		t.Errorf("history after reopen = %d messages, want 4", got)
	}
	stats := reopened.Usage()
	if stats.QueriesToday != 2 {
		t.Errorf("QueriesToday = %d, want 2", stats.QueriesToday)
	}
	if stats.TotalCost < 0.00134999 || stats.TotalCost > 0.00135001 {
		t.Errorf("TotalCost = %v, want 0.00135", stats.TotalCost)
	}
	_ = reopened.View(func(s *todo.Store) error {
		if tasks := s.Query(todo.View{Kind: todo.ViewInbox}); len(tasks) != 1 {
			t.Errorf("inbox = %+v", tasks)
		}
		return nil
	})
	// The configured key came from Options and must not be written to storage.
	if reopened.AssistantConfig().Configured() {
		t.Error("API key from options was persisted")
	}
}

func TestAskWithoutKeyStillSaves(t *testing.T) {
	w := openWorkspace(t, storage.NewMemoryBackend(), Options{})
	reply, err := w.Ask(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	var cfgErr *assistant.ConfigurationError
	if !errors.As(reply.Err, &cfgErr) {
		t.Errorf("reply.Err = %v, want ConfigurationError", reply.Err)
	}
	if len(w.History()) != 0 {
		t.Error("history changed without a key")
	}
}

func TestSetAssistantConfig(t *testing.T) {
	b := storage.NewMemoryBackend()
	ctx := context.Background()
	w := openWorkspace(t, b, Options{Assistant: assistant.Config{Model: "gpt-4o"}})
	if err := w.SetAssistantConfig(ctx, assistant.Config{APIKey: "sk-saved", Model: "gpt-4", HistoryLimit: 5}); err != nil {
		t.Fatalf("SetAssistantConfig() error = %v", err)
	}
	cfg := w.AssistantConfig()
	if cfg.APIKey != "sk-saved" || cfg.Model != "gpt-4o" || cfg.HistoryLimit != 5 {
		t.Errorf("effective config = %+v", cfg)
	}

	reopened := openWorkspace(t, b, Options{})
	cfg = reopened.AssistantConfig()
	if cfg.APIKey != "sk-saved" || cfg.Model != "gpt-4" {
		t.Errorf("persisted config = %+v", cfg)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	src := openWorkspace(t, storage.NewMemoryBackend(), Options{})
	_ = src.Update(ctx, func(s *todo.Store) error {
		pid, _ := s.AddProject("Work", "#ff0000")
		_, _ = s.AddTask(todo.NewTask{Title: "Report", ProjectID: &pid, Priority: todo.PriorityHigh, DueDate: "2026-10-20", Labels: []string{"q4"}})
		_, err := s.AddTask(todo.NewTask{Title: "Done", Completed: true})
		return err
	})
	data, err := src.Export(ctx)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	dst := openWorkspace(t, storage.NewMemoryBackend(), Options{})
	sum, err := dst.Import(ctx, data)
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if sum != (ImportSummary{Tasks: 2, Projects: 1}) {
		t.Errorf("summary = %+v", sum)
	}

	var want, got todo.State
	_ = src.View(func(s *todo.Store) error { want = s.Snapshot(); return nil })
	_ = dst.View(func(s *todo.Store) error { got = s.Snapshot(); return nil })
	if len(got.Tasks) != len(want.Tasks) || got.TaskIDCounter != want.TaskIDCounter {
		t.Fatalf("imported state = %+v, want %+v", got, want)
	}
	for i := range want.Tasks {
		w, g := want.Tasks[i], got.Tasks[i]
		if w.ID != g.ID || w.Title != g.Title || w.DueDate != g.DueDate || w.Completed != g.Completed || !w.CreatedAt.Equal(g.CreatedAt) {
			t.Errorf("task %d = %+v, want %+v", i, g, w)
		}
	}
}

func TestImportRejectsBadDocument(t *testing.T) {
	ctx := context.Background()
	w := openWorkspace(t, storage.NewMemoryBackend(), Options{})
	_ = w.Update(ctx, func(s *todo.Store) error {
		_, err := s.AddTask(todo.NewTask{Title: "keep"})
		return err
	})

	_, err := w.Import(ctx, []byte(`{"version": "1.0"}`))
	var ife *todo.ImportFormatError
	if !errors.As(err, &ife) {
		t.Fatalf("Import() error = %v, want ImportFormatError", err)
	}
	_ = w.View(func(s *todo.Store) error {
		if len(s.Tasks()) != 1 {
			t.Error("failed import changed the store")
		}
		return nil
	})
}

func TestClearAll(t *testing.T) {
	ctx := context.Background()
	b := storage.NewMemoryBackend()
	w := openWorkspace(t, b, Options{
		Assistant: assistant.Config{APIKey: "k"},
		Completer: &scriptedCompleter{responses: []*assistant.Response{text("hi")}},
	})
	_ = w.Update(ctx, func(s *todo.Store) error {
		_, err := s.AddTask(todo.NewTask{Title: "x"})
		return err
	})
	if _, err := w.Ask(ctx, "hello"); err != nil {
		t.Fatal(err)
	}
	if err := w.SetAssistantConfig(ctx, assistant.Config{Model: "gpt-4"}); err != nil {
		t.Fatal(err)
	}

	if err := w.ClearAll(ctx, no); !errors.Is(err, ErrDeclined) {
		t.Fatalf("declined ClearAll() error = %v", err)
	}
	if len(w.History()) == 0 {
		t.Fatal("declined ClearAll changed history")
	}

	if err := w.ClearAll(ctx, Yes); err != nil {
		t.Fatalf("ClearAll() error = %v", err)
	}
	reopened := openWorkspace(t, b, Options{})
	if len(reopened.History()) != 0 || reopened.Usage().TotalTokens != 0 {
		t.Error("history or usage survived ClearAll")
	}
	_ = reopened.View(func(s *todo.Store) error {
		if len(s.Tasks()) != 0 {
			t.Error("tasks survived ClearAll")
		}
		return nil
	})
	if reopened.AssistantConfig().Model != "gpt-4" {
		t.Error("ClearAll should keep the assistant config")
	}
}
