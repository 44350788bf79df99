package todo

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestExportImportRoundTrip(t *testing.T) {
	s := newTestStore()
	pid, _ := s.AddProject("Home", "green")
	_, _ = s.AddTask(NewTask{Title: "Paint", ProjectID: intPtr(pid), Labels: []string{"diy"}, Subtasks: []string{"Buy paint"}, DueDate: "2026-10-20"})
	done, _ := s.AddTask(NewTask{Title: "Mow", Priority: PriorityMedium})
	_ = s.SetCompleted(done, true)
	gone, _ := s.AddTask(NewTask{Title: "Temp"})
	_, _ = s.DeleteTask(gone)

	data, err := Export(s.Snapshot(), time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if !strings.Contains(string(data), `"version": "1.0"`) || !strings.HasSuffix(string(data), "\n") {
		t.Errorf("unexpected export layout:\n%s", data)
	}

	st, err := ParseImport(data)
	if err != nil {
		t.Fatalf("ParseImport failed: %v", err)
	}
	other := NewStore()
	if err := other.Restore(st); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}

	before, after := s.Snapshot(), other.Snapshot()
	if len(before.Tasks) != len(after.Tasks) {
		t.Fatalf("task count: got %d, want %d", len(after.Tasks), len(before.Tasks))
	}
	for i := range before.Tasks {
		b, a := before.Tasks[i], after.Tasks[i]
		if !b.CreatedAt.Equal(a.CreatedAt) {
			t.Errorf("task %d createdAt changed", b.ID)
		}
		if (b.CompletedAt == nil) != (a.CompletedAt == nil) || (b.CompletedAt != nil && !b.CompletedAt.Equal(*a.CompletedAt)) {
			t.Errorf("task %d completedAt changed", b.ID)
		}
		b.CreatedAt, a.CreatedAt = time.Time{}, time.Time{}
		b.CompletedAt, a.CompletedAt = nil, nil
		if !reflect.DeepEqual(b, a) {
			t.Errorf("task differs after round trip:\n got %+v\nwant %+v", a, b)
		}
	}
	if !reflect.DeepEqual(before.Projects, after.Projects) {
		t.Errorf("projects differ: %+v vs %+v", after.Projects, before.Projects)
	}
	if before.TaskIDCounter != after.TaskIDCounter || before.SubtaskIDCounter != after.SubtaskIDCounter || before.ProjectIDCounter != after.ProjectIDCounter {
		t.Errorf("counters differ: %+v vs %+v", after, before)
	}
}

func TestParseImportRejectsBadDocuments(t *testing.T) {
	tests := []struct {
		name     string
		data     string
		wantPath string
	}{
		{name: "not json", data: `{"tasks": [`},
		{name: "array root", data: `[]`},
		{name: "no collections", data: `{"version": "1.0"}`},
		{name: "tasks not array", data: `{"tasks": {}}`, wantPath: "tasks"},
		{name: "task without title", data: `{"tasks": [{"id": 1}]}`, wantPath: "tasks[0]"},
		{name: "fractional id", data: `{"tasks": [{"id": 1.5, "title": "x"}]}`, wantPath: "tasks[0].id"},
		{name: "bad priority", data: `{"tasks": [{"id": 1, "title": "x", "priority": "urgent"}]}`, wantPath: "tasks[0].priority"},
		{name: "duplicate ids", data: `{"tasks": [{"id": 1, "title": "x"}, {"id": 1, "title": "y"}]}`, wantPath: "tasks[1].id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseImport([]byte(tt.data))
			var ife *ImportFormatError
			if !errors.As(err, &ife) {
				t.Fatalf("expected ImportFormatError, got %v", err)
			}
			if tt.wantPath != "" && !strings.Contains(err.Error(), tt.wantPath) {
				t.Errorf("error %q does not mention %q", err, tt.wantPath)
			}
		})
	}
}

func TestParseImportProjectsOnly(t *testing.T) {
	st, err := ParseImport([]byte(`{"projects": [{"id": 3, "name": "Solo"}]}`))
	if err != nil {
		t.Fatalf("ParseImport failed: %v", err)
	}
	if len(st.Tasks) != 0 || len(st.Projects) != 1 || st.ProjectIDCounter != 3 {
		t.Errorf("unexpected state: %+v", st)
	}
}

func TestJSONPointerToPath(t *testing.T) {
	tests := map[string]string{
		"":                  "",
		"#":                 "",
		"/tasks/0/title":    "tasks[0].title",
		"#/projects/2/name": "projects[2].name",
		"/a~1b/c~0d":        "a/b.c~d",
	}
	for in, want := range tests {
		if got := jsonPointerToPath(in); got != want {
			t.Errorf("jsonPointerToPath(%q) = %q, want %q", in, got, want)
		}
	}
}
