package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type record struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// exerciseBackend runs the behaviour every backend shares.
func exerciseBackend(t *testing.T, b Backend) {
	t.Helper()
	ctx := context.Background()

	if _, err := b.Load(ctx, KeyState); !errors.Is(err, ErrNotExist) {
		t.Fatalf("Load() of missing record error = %v, want ErrNotExist", err)
	}

	if err := SaveJSON(ctx, b, KeyState, record{Name: "a", Count: 1}); err != nil {
		t.Fatalf("SaveJSON() error = %v", err)
	}
	if err := SaveJSON(ctx, b, KeyState, record{Name: "b", Count: 2}); err != nil {
		t.Fatalf("SaveJSON() overwrite error = %v", err)
	}
	var got record
	if err := LoadJSON(ctx, b, KeyState, &got); err != nil {
		t.Fatalf("LoadJSON() error = %v", err)
	}
	if got != (record{Name: "b", Count: 2}) {
		t.Errorf("LoadJSON() = %+v", got)
	}

	if err := b.Save(ctx, KeyHistory, []byte("{not json")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := LoadJSON(ctx, b, KeyHistory, &got); err == nil || errors.Is(err, ErrNotExist) {
		t.Errorf("LoadJSON() of corrupt record error = %v, want parse error", err)
	}

	if err := b.Delete(ctx, KeyState); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := b.Load(ctx, KeyState); !errors.Is(err, ErrNotExist) {
		t.Errorf("Load() after Delete error = %v, want ErrNotExist", err)
	}
	if err := b.Delete(ctx, KeyState); err != nil {
		t.Errorf("second Delete() error = %v", err)
	}

	if err := b.Save(ctx, "../escape", []byte("x")); err == nil {
		t.Error("Save() with path key should fail")
	}
}

func TestFileBackend(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	b, err := NewFileBackend(dir)
	if err != nil {
		t.Fatalf("NewFileBackend() error = %v", err)
	}
	exerciseBackend(t, b)

	if err := SaveJSON(context.Background(), b, KeyAssistant, record{Name: "x"}); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "assistant.json"))
	if err != nil {
		t.Fatalf("record file missing: %v", err)
	}
	if !strings.HasSuffix(string(data), "}\n") || !strings.Contains(string(data), "\n  \"name\"") {
		t.Errorf("record not indented with trailing newline: %q", data)
	}

	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestFileBackendEmptyDir(t *testing.T) {
	if _, err := NewFileBackend(""); err == nil {
		t.Error("NewFileBackend(\"\") should fail")
	}
}

func TestRedisBackend(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	b := NewRedisBackendWithClient(client, "test:")
	exerciseBackend(t, b)

	if err := b.Save(context.Background(), KeyState, []byte(`{"tasks":[]}`)); err != nil {
		t.Fatal(err)
	}
	got, err := mr.Get("test:state")
	if err != nil {
		t.Fatalf("key not stored under prefix: %v", err)
	}
	if got != `{"tasks":[]}` {
		t.Errorf("stored value = %q", got)
	}
	if ttl := mr.TTL("test:state"); ttl != 0 {
		t.Errorf("TTL = %v, want no expiry", ttl)
	}
	if err := b.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Errorf("Close() should leave a borrowed client open: %v", err)
	}
}

func TestOpen(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	ctx := context.Background()

	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "default file", cfg: Config{Dir: t.TempDir()}},
		{name: "memory", cfg: Config{Kind: "memory"}},
		{name: "redis addr", cfg: Config{Kind: "redis", Redis: RedisConfig{Addr: mr.Addr()}}},
		{name: "redis url", cfg: Config{Kind: "Redis", Redis: RedisConfig{Addr: "redis://" + mr.Addr() + "/0"}}},
		{name: "redis missing addr", cfg: Config{Kind: "redis"}, wantErr: true},
		{name: "unknown", cfg: Config{Kind: "s3"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := Open(ctx, tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Open() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			defer b.Close()
			if err := b.Save(ctx, KeyState, []byte("{}")); err != nil {
				t.Errorf("Save() error = %v", err)
			}
		})
	}
}

func TestMemoryBackend(t *testing.T) {
	exerciseBackend(t, NewMemoryBackend())
}
