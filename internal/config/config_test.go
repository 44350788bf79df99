package config

import (
	"flag"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// isolate points every config file lookup and TASKLANE_* variable at an
// empty temp environment.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	t.Setenv("APPDATA", filepath.Join(home, "AppData"))
	for _, env := range []string{
		"OPENAI_API_KEY", "TASKLANE_API_KEY", "TASKLANE_MODEL", "TASKLANE_DATA_DIR",
		"TASKLANE_STORAGE", "TASKLANE_REDIS_ADDR", "TASKLANE_LOG_LEVEL", "TASKLANE_MAX_TOKENS",
		"TASKLANE_TEMPERATURE", "TASKLANE_PROMPT_MODE", "TASKLANE_LISTEN",
	} {
		t.Setenv(env, "")
	}
	// Equivalent of t.Chdir (Go 1.24+) for older toolchains.
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PWD", dir)
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return home
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestDefaults(t *testing.T) {
	cfg := &Config{}
	setDefaults(cfg)

	if cfg.DataDir != DefaultDataDir {
		t.Errorf("DataDir: got %q, want %q", cfg.DataDir, DefaultDataDir)
	}
	if cfg.Storage != "file" {
		t.Errorf("Storage: got %q, want file", cfg.Storage)
	}
	if cfg.LogLevel != "info" || cfg.LogFormat != "text" {
		t.Errorf("logging defaults: got %q/%q", cfg.LogLevel, cfg.LogFormat)
	}
	if cfg.Redis.Prefix != "tasklane:" {
		t.Errorf("Redis.Prefix: got %q", cfg.Redis.Prefix)
	}
}

func TestLoadConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "tasklane.toml")
	writeFile(t, configFile, `data_dir = "/srv/tasks"
storage = "redis"

[redis]
addr = "redis://cache:6379/2"

[assistant]
model = "gpt-4o"
temperature = 0.2

[pricing."local-llm"]
input = 0.0001
output = 0.0002
`)

	cfg := &Config{}
	setDefaults(cfg)
	sources := map[string]ConfigSource{}
	for _, f := range configFields() {
		sources[f] = SourceDefault
	}
	if err := loadConfigFile(cfg, configFile, sources, SourceProjFile); err != nil {
		t.Fatalf("loadConfigFile: %v", err)
	}

	if cfg.DataDir != "/srv/tasks" {
		t.Errorf("DataDir: got %q", cfg.DataDir)
	}
	if cfg.Redis.Addr != "redis://cache:6379/2" {
		t.Errorf("Redis.Addr: got %q", cfg.Redis.Addr)
	}
	if cfg.Redis.Prefix != "tasklane:" {
		t.Errorf("Redis.Prefix should keep its default, got %q", cfg.Redis.Prefix)
	}
	if cfg.Assistant.Model != "gpt-4o" || cfg.Assistant.Temperature != 0.2 {
		t.Errorf("Assistant: got %+v", cfg.Assistant)
	}
	if r := cfg.Rates()["local-llm"]; r.Input != 0.0001 || r.Output != 0.0002 {
		t.Errorf("Rates()[local-llm]: got %+v", r)
	}
	if _, ok := cfg.Rates()["gpt-3.5-turbo"]; !ok {
		t.Error("Rates() dropped the built-in table")
	}

	if sources["redis.addr"] != SourceProjFile || sources["assistant.model"] != SourceProjFile {
		t.Errorf("sources: %v", sources)
	}
	if sources["listen"] != SourceDefault {
		t.Errorf("listen source: got %q, want default", sources["listen"])
	}
	if sources["pricing"] != SourceProjFile {
		t.Errorf("pricing source: got %q", sources["pricing"])
	}
}

func TestLoadConfigFileRejectsUnknownKeys(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "tasklane.toml")
	writeFile(t, configFile, "todo_file = \"x.json\"\n")

	cfg := &Config{}
	if err := loadConfigFile(cfg, configFile, nil, SourceUserFile); err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestLoadPrecedence(t *testing.T) {
	home := isolate(t)
	writeFile(t, filepath.Join(home, ".tasklane", "tasklane.toml"), `log_level = "warn"
listen = ":9000"

[assistant]
model = "gpt-4"
api_key = "sk-user"
max_tokens = 300
`)
	writeFile(t, "tasklane.toml", `[assistant]
model = "gpt-4o"
`)
	t.Setenv("OPENAI_API_KEY", "sk-env")
	t.Setenv("TASKLANE_MAX_TOKENS", "800")

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cws, err := LoadWithSources(fs, []string{"--log-level", "debug", "ls", "today"})
	if err != nil {
		t.Fatalf("LoadWithSources: %v", err)
	}
	cfg := cws.Config

	tests := []struct {
		field  string
		got    any
		want   any
		source ConfigSource
	}{
		{"listen", cfg.Listen, ":9000", SourceUserFile},
		{"assistant.model", cfg.Assistant.Model, "gpt-4o", SourceProjFile},
		{"assistant.api_key", cfg.Assistant.APIKey, "sk-env", SourceEnv},
		{"assistant.max_tokens", cfg.Assistant.MaxTokens, 800, SourceEnv},
		{"log_level", cfg.LogLevel, "debug", SourceFlag},
		{"storage", cfg.Storage, "file", SourceDefault},
	}
	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("%s: got %v, want %v", tt.field, tt.got, tt.want)
			}
			if cws.Sources[tt.field] != tt.source {
				t.Errorf("%s source: got %q, want %q", tt.field, cws.Sources[tt.field], tt.source)
			}
		})
	}

	if len(cws.Files) != 2 || cws.ConfigFile() != "tasklane.toml" {
		t.Errorf("Files: got %v", cws.Files)
	}
	if args := fs.Args(); len(args) != 2 || args[0] != "ls" {
		t.Errorf("remaining args: got %v", args)
	}
	if cfg.DataDir != filepath.Join(home, ".tasklane") {
		t.Errorf("DataDir: got %q, want expanded home path", cfg.DataDir)
	}
}

func TestTasklaneKeyWinsOverOpenAIKey(t *testing.T) {
	isolate(t)
	t.Setenv("OPENAI_API_KEY", "sk-openai")
	t.Setenv("TASKLANE_API_KEY", "sk-tasklane")

	cfg, err := Load(flag.NewFlagSet("test", flag.ContinueOnError), nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := cfg.Assistant.Settings().APIKey; got != "sk-tasklane" {
		t.Errorf("APIKey: got %q, want sk-tasklane", got)
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"unknown storage", []string{"--storage", "s3"}},
		{"redis without addr", []string{"--storage", "redis"}},
		{"unknown flag", []string{"--todo", "x.json"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			fs := flag.NewFlagSet("test", flag.ContinueOnError)
			fs.SetOutput(new(discard))
			if _, err := Load(fs, tt.args); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func TestStorageConfig(t *testing.T) {
	isolate(t)
	cfg, err := Load(flag.NewFlagSet("test", flag.ContinueOnError), []string{
		"--data-dir", "/tmp/tl", "--storage", "redis", "--redis-addr", "localhost:6379",
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	sc := cfg.StorageConfig()
	if sc.Kind != "redis" || sc.Dir != "/tmp/tl" || sc.Redis.Addr != "localhost:6379" || sc.Redis.Prefix != "tasklane:" {
		t.Errorf("StorageConfig: got %+v", sc)
	}
	if cfg.LogDir() != filepath.Join("/tmp/tl", "logs") {
		t.Errorf("LogDir: got %q", cfg.LogDir())
	}
}

func TestPromptDirRequiresDevMode(t *testing.T) {
	isolate(t)
	t.Setenv("TASKLANE_PROMPT_DIR", "/prompts")

	cfg, err := Load(flag.NewFlagSet("test", flag.ContinueOnError), nil)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.PromptDir != "" {
		t.Errorf("PromptDir outside dev mode: got %q", cfg.PromptDir)
	}

	t.Setenv("TASKLANE_PROMPT_MODE", "dev")
	cfg, err = Load(flag.NewFlagSet("test", flag.ContinueOnError), nil)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.PromptDir != "/prompts" {
		t.Errorf("PromptDir in dev mode: got %q", cfg.PromptDir)
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("Cannot get home directory")
	}

	tests := []struct {
		input string
		want  string
	}{
		{"~/test", filepath.Join(home, "test")},
		{"~", home},
		{"~user/x", "~user/x"},
		{"/absolute/path", "/absolute/path"},
		{"relative", "relative"},
	}
	t.Setenv("TASKLANE_TEST_HOME", home)
	if runtime.GOOS == "windows" {
		tests = append(tests,
			struct{ input, want string }{`~\test`, filepath.Join(home, "test")},
			struct{ input, want string }{`%TASKLANE_TEST_HOME%\logs`, filepath.Join(home, "logs")},
			struct{ input, want string }{`%NOPE_NOT_SET%\logs`, `%NOPE_NOT_SET%\logs`},
		)
	} else {
		tests = append(tests,
			struct{ input, want string }{`~\test`, `~\test`},
			struct{ input, want string }{"$TASKLANE_TEST_HOME/logs", home + "/logs"},
		)
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := expandPath(tt.input)
			if got != tt.want {
				t.Errorf("expandPath(%q): got %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestConfigFileDiscovery(t *testing.T) {
	home := isolate(t)
	cfgDir, err := os.UserConfigDir()
	if err != nil {
		t.Skipf("no user config dir: %v", err)
	}
	dotDir := filepath.Join(home, ".tasklane", "tasklane.toml")
	osDir := filepath.Join(cfgDir, "tasklane", "tasklane.toml")

	if got := firstExisting(userConfigPaths()); got != "" {
		t.Fatalf("empty home: found %q", got)
	}

	writeFile(t, osDir, `listen = ":7000"`)
	if got := firstExisting(userConfigPaths()); got != osDir {
		t.Errorf("OS config dir fallback: got %q, want %q", got, osDir)
	}

	writeFile(t, dotDir, `listen = ":7001"`)
	if got := firstExisting(userConfigPaths()); got != dotDir {
		t.Errorf("~/.tasklane preferred: got %q, want %q", got, dotDir)
	}

	writeFile(t, ".tasklane.toml", `log_level = "warn"`)
	if got := firstExisting(projectConfigNames); got != ".tasklane.toml" {
		t.Errorf("hidden project file: got %q", got)
	}
	writeFile(t, "tasklane.toml", `log_level = "error"`)
	if got := firstExisting(projectConfigNames); got != "tasklane.toml" {
		t.Errorf("project file precedence: got %q", got)
	}

	cfg, err := Load(flag.NewFlagSet("test", flag.ContinueOnError), nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Listen != ":7001" || cfg.LogLevel != "error" {
		t.Errorf("Load: listen %q, log_level %q", cfg.Listen, cfg.LogLevel)
	}
}

func TestBoolEnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("TASKLANE_LOG_TIMESTAMPS", "Yes")
	t.Setenv("TASKLANE_LOG_CALLER", "off")

	cws, err := LoadWithSources(flag.NewFlagSet("test", flag.ContinueOnError), nil)
	if err != nil {
		t.Fatalf("LoadWithSources: %v", err)
	}
	if !cws.Config.LogTimestamps || cws.Config.LogCaller {
		t.Errorf("timestamps %v, caller %v", cws.Config.LogTimestamps, cws.Config.LogCaller)
	}
	if cws.Sources["log_timestamps"] != SourceEnv || cws.Sources["log_caller"] != SourceEnv {
		t.Errorf("sources: %q, %q", cws.Sources["log_timestamps"], cws.Sources["log_caller"])
	}
}

func TestBoolFromString(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"1", true},
		{"true", true},
		{"TRUE", true},
		{"yes", true},
		{"on", true},
		{"0", false},
		{"false", false},
		{"", false},
		{"nope", false},
	}
	for _, tt := range tests {
		if got := boolFromString(tt.input); got != tt.want {
			t.Errorf("boolFromString(%q): got %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestExampleConfigParses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasklane.toml")
	writeFile(t, path, ExampleConfig())
	cfg := &Config{}
	if err := loadConfigFile(cfg, path, nil, SourceUserFile); err != nil {
		t.Fatalf("example config does not load: %v", err)
	}
	if cfg.Assistant.Model != "gpt-3.5-turbo" {
		t.Errorf("Assistant.Model: got %q", cfg.Assistant.Model)
	}
}
