package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dshills/bluebird/internal/config/loader"
	"github.com/dshills/bluebird/internal/logging"
	"github.com/dshills/bluebird/internal/storage"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
	if cfg.State.Backend != storage.BackendDir {
		t.Errorf("Backend = %q, want dir", cfg.State.Backend)
	}
	if !cfg.Files.Watch {
		t.Error("watch should default to on")
	}
}

func TestLoadTOML(t *testing.T) {
	path := writeFile(t, "bluebird.toml", `
[logging]
level = "debug"

[state]
backend = "sqlite"
path = "/tmp/state.db"

[files]
ignore = ["build/"]
debounce = "250ms"

[scripts]
paths = ["a.lua"]
timeout = "2s"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("level = %q", cfg.Logging.Level)
	}
	if cfg.State.Backend != storage.BackendSQLite || cfg.State.Path != "/tmp/state.db" {
		t.Errorf("state = %+v", cfg.State)
	}
	if cfg.Files.Debounce.Std() != 250*time.Millisecond {
		t.Errorf("debounce = %v", cfg.Files.Debounce)
	}
	if len(cfg.Files.Ignore) != 1 || cfg.Files.Ignore[0] != "build/" {
		t.Errorf("ignore = %v", cfg.Files.Ignore)
	}
	if cfg.ScriptTimeout() != 2*time.Second {
		t.Errorf("timeout = %v", cfg.ScriptTimeout())
	}
	// Untouched sections keep their defaults.
	if cfg.Logger.MaxEntries != 1000 {
		t.Errorf("max_entries = %d, want default", cfg.Logger.MaxEntries)
	}
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "bluebird.yaml", `
state:
  backend: memory
interceptor:
  capacity: 16
files:
  watch: false
  debounce: 1s
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.State.Backend != storage.BackendMemory {
		t.Errorf("backend = %q", cfg.State.Backend)
	}
	if cfg.Interceptor.Capacity != 16 {
		t.Errorf("capacity = %d", cfg.Interceptor.Capacity)
	}
	if cfg.Files.Watch {
		t.Error("watch should be off")
	}
	if cfg.Files.Debounce.Std() != time.Second {
		t.Errorf("debounce = %v", cfg.Files.Debounce)
	}
}

func TestLoadExplicitMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "none.toml"))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestLoadParseError(t *testing.T) {
	path := writeFile(t, "bad.toml", "[logging\n")
	_, err := Load(path)
	var pe *loader.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("error = %v, want *loader.ParseError", err)
	}
}

func TestLoadInvalid(t *testing.T) {
	path := writeFile(t, "bad.toml", "[state]\nbackend = \"etcd\"\n")
	_, err := Load(path)
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("error = %v, want ErrInvalid", err)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeFile(t, "c.toml", "[logger]\nmax_entries = 5\n")
	t.Setenv("BLUEBIRD_LOGGER_MAX_ENTRIES", "42")
	t.Setenv("BLUEBIRD_LOG_LEVEL", "WARN")
	t.Setenv("BLUEBIRD_WORKSPACE", "/work/proj")
	t.Setenv("BLUEBIRD_FILES_IGNORE", "dist/, *.tmp")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Logger.MaxEntries != 42 {
		t.Errorf("max_entries = %d, want 42", cfg.Logger.MaxEntries)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("level = %q, want warn", cfg.Logging.Level)
	}
	if cfg.Workspace.Path != "/work/proj" {
		t.Errorf("workspace = %q", cfg.Workspace.Path)
	}
	if len(cfg.Files.Ignore) != 2 || cfg.Files.Ignore[1] != "*.tmp" {
		t.Errorf("ignore = %v", cfg.Files.Ignore)
	}
}

func TestEnvBadValue(t *testing.T) {
	path := writeFile(t, "c.toml", "")
	t.Setenv("BLUEBIRD_INTERCEPTOR_CAPACITY", "lots")

	_, err := Load(path)
	var oe *OverrideError
	if !errors.As(err, &oe) {
		t.Fatalf("error = %v, want *OverrideError", err)
	}
	if oe.Path != "interceptor.capacity" {
		t.Errorf("Path = %q", oe.Path)
	}
}

func TestSet(t *testing.T) {
	tests := []struct {
		path    string
		value   string
		check   func(*Config) bool
		wantErr bool
	}{
		{"files.watch", "off", func(c *Config) bool { return !c.Files.Watch }, false},
		{"files.watch", "maybe", nil, true},
		{"scripts.paths", "a.lua,b.lua", func(c *Config) bool { return len(c.Scripts.Paths) == 2 }, false},
		{"scripts.timeout", "forever", nil, true},
		{"state.backend", "SQLite", func(c *Config) bool { return c.State.Backend == "sqlite" }, false},
		{"nope.nothing", "1", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.path+"="+tt.value, func(t *testing.T) {
			cfg := Default()
			err := cfg.Set(tt.path, tt.value)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Set error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.check != nil && !tt.check(cfg) {
				t.Errorf("setting not applied: %+v", cfg)
			}
		})
	}

	if err := Default().Set("nope.nothing", "1"); !errors.Is(err, ErrUnknownSetting) {
		t.Errorf("unknown path error = %v, want ErrUnknownSetting", err)
	}
}

func TestValidateCollectsAll(t *testing.T) {
	cfg := Default()
	cfg.Logging.Level = "loud"
	cfg.Logging.Format = "xml"
	cfg.Interceptor.Capacity = 0
	cfg.State.Path = ""
	cfg.Scripts.Paths = []string{"plugin.py"}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected errors")
	}
	for _, field := range []string{"logging.level", "logging.format", "interceptor.capacity", "state.path", "scripts.paths"} {
		if !strings.Contains(err.Error(), field) {
			t.Errorf("error %q does not mention %s", err, field)
		}
	}
}

func TestMemoryBackendNeedsNoPath(t *testing.T) {
	cfg := Default()
	cfg.State.Backend = storage.BackendMemory
	cfg.State.Path = ""
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	for _, f := range []loader.Format{loader.FormatTOML, loader.FormatYAML} {
		cfg := Default()
		cfg.Scripts.Paths = []string{"x.lua"}
		data, err := cfg.Encode(f)
		if err != nil {
			t.Fatalf("%s Encode: %v", f, err)
		}
		got := &Config{}
		if err := loader.Decode(f, "x", data, got); err != nil {
			t.Fatalf("%s Decode: %v\n%s", f, err, data)
		}
		if got.Files.Debounce != cfg.Files.Debounce || got.Scripts.Paths[0] != "x.lua" {
			t.Errorf("%s round trip = %+v", f, got)
		}
	}
}

func TestLoggerConfig(t *testing.T) {
	cfg := Default()
	cfg.Logging.Level = "debug"
	cfg.Logging.Format = "json"
	lc := cfg.LoggerConfig()
	if lc.Level != logging.LevelDebug || lc.Format != logging.FormatJSON {
		t.Errorf("LoggerConfig() = %+v", lc)
	}
}
