package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/dshills/bluebird/internal/config/loader"
	"github.com/dshills/bluebird/internal/logging"
	"github.com/dshills/bluebird/internal/plugins/interceptor"
	"github.com/dshills/bluebird/internal/script/lua"
	"github.com/dshills/bluebird/internal/storage"
	"github.com/dshills/bluebird/internal/watch"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "BLUEBIRD_"

// Config is the complete runtime configuration.
type Config struct {
	Logging     LoggingConfig     `toml:"logging" yaml:"logging"`
	State       StateConfig       `toml:"state" yaml:"state"`
	Workspace   WorkspaceConfig   `toml:"workspace" yaml:"workspace"`
	Interceptor InterceptorConfig `toml:"interceptor" yaml:"interceptor"`
	Logger      LoggerConfig      `toml:"logger" yaml:"logger"`
	Files       FilesConfig       `toml:"files" yaml:"files"`
	Scripts     ScriptsConfig     `toml:"scripts" yaml:"scripts"`
}

// LoggingConfig configures the process log, not the logger plugin.
type LoggingConfig struct {
	Level  string `toml:"level" yaml:"level"`
	Format string `toml:"format" yaml:"format"`
	// File receives log output instead of stderr when set.
	File string `toml:"file" yaml:"file"`
}

// StateConfig selects where plugin state is persisted.
type StateConfig struct {
	Backend string `toml:"backend" yaml:"backend"`
	Path    string `toml:"path" yaml:"path"`
}

// WorkspaceConfig names a project to open at startup.
type WorkspaceConfig struct {
	Path string `toml:"path" yaml:"path"`
}

type InterceptorConfig struct {
	Capacity int `toml:"capacity" yaml:"capacity"`
}

type LoggerConfig struct {
	// MaxEntries caps the logger plugin history. Zero keeps everything.
	MaxEntries int `toml:"max_entries" yaml:"max_entries"`
}

type FilesConfig struct {
	Ignore   []string `toml:"ignore" yaml:"ignore"`
	Watch    bool     `toml:"watch" yaml:"watch"`
	Debounce Duration `toml:"debounce" yaml:"debounce"`
}

type ScriptsConfig struct {
	Paths   []string `toml:"paths" yaml:"paths"`
	Timeout Duration `toml:"timeout" yaml:"timeout"`
}

// Sections lists the top level setting groups.
var Sections = []string{"logging", "state", "workspace", "interceptor", "logger", "files", "scripts"}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: string(logging.FormatText),
		},
		State: StateConfig{
			Backend: storage.BackendDir,
			Path:    DefaultStatePath(),
		},
		Interceptor: InterceptorConfig{Capacity: interceptor.DefaultCapacity},
		Logger:      LoggerConfig{MaxEntries: 1000},
		Files: FilesConfig{
			Ignore:   slices.Clone(watch.DefaultIgnore),
			Watch:    true,
			Debounce: Duration(watch.DefaultDebounce),
		},
		Scripts: ScriptsConfig{Timeout: Duration(lua.DefaultTimeout)},
	}
}

// Dir returns the per-user bluebird configuration directory.
func Dir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		base = os.TempDir()
	}
	return filepath.Join(base, "bluebird")
}

// DefaultPath is the config file read when none is named.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.toml")
}

// DefaultStatePath is where the dir backend keeps plugin state.
func DefaultStatePath() string {
	return filepath.Join(Dir(), "state")
}

// Load builds the configuration from defaults, the file at path and the
// environment. An empty path reads DefaultPath if it exists.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	found, err := loader.NewFileLoader(path).Load(cfg)
	if err != nil {
		return nil, err
	}
	if explicit && !found {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv applies BLUEBIRD_* overrides from the process environment.
func (c *Config) ApplyEnv() error {
	env := loader.NewEnvLoader(EnvPrefix, Sections...)
	env.AddMapping(EnvPrefix+"LOG_LEVEL", "logging.level")
	env.AddMapping(EnvPrefix+"WORKSPACE", "workspace.path")
	return c.Apply(env.Load())
}

// Apply sets every path in values. Paths are applied in sorted order and
// all failures are reported together.
func (c *Config) Apply(values map[string]string) error {
	paths := make([]string, 0, len(values))
	for p := range values {
		paths = append(paths, p)
	}
	slices.Sort(paths)

	var errs []error
	for _, p := range paths {
		if err := c.Set(p, values[p]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Set assigns a single setting from its string form.
func (c *Config) Set(path, value string) error {
	var err error
	switch path {
	case "logging.level":
		c.Logging.Level = strings.ToLower(value)
	case "logging.format":
		c.Logging.Format = strings.ToLower(value)
	case "logging.file":
		c.Logging.File = value
	case "state.backend":
		c.State.Backend = strings.ToLower(value)
	case "state.path":
		c.State.Path = value
	case "workspace.path":
		c.Workspace.Path = value
	case "interceptor.capacity":
		c.Interceptor.Capacity, err = strconv.Atoi(value)
	case "logger.max_entries":
		c.Logger.MaxEntries, err = strconv.Atoi(value)
	case "files.ignore":
		c.Files.Ignore = splitList(value)
	case "files.watch":
		c.Files.Watch, err = parseBool(value)
	case "files.debounce":
		err = c.Files.Debounce.UnmarshalText([]byte(value))
	case "scripts.paths":
		c.Scripts.Paths = splitList(value)
	case "scripts.timeout":
		err = c.Scripts.Timeout.UnmarshalText([]byte(value))
	default:
		err = ErrUnknownSetting
	}
	if err != nil {
		return &OverrideError{Path: path, Value: value, Err: err}
	}
	return nil
}

// Validate checks every setting and returns all failures joined.
func (c *Config) Validate() error {
	var errs []error
	invalid := func(path, msg string, v any) {
		errs = append(errs, &ValidationError{Path: path, Message: msg, Value: v})
	}

	if !logging.ValidLevel(c.Logging.Level) {
		invalid("logging.level", "must be debug, info, warn or error", c.Logging.Level)
	}
	switch logging.Format(c.Logging.Format) {
	case logging.FormatText, logging.FormatJSON:
	default:
		invalid("logging.format", "must be text or json", c.Logging.Format)
	}

	switch c.State.Backend {
	case storage.BackendMemory:
	case storage.BackendDir, storage.BackendSQLite:
		if c.State.Path == "" {
			invalid("state.path", "required for the "+c.State.Backend+" backend", c.State.Path)
		}
	default:
		invalid("state.backend", "must be memory, dir or sqlite", c.State.Backend)
	}

	if c.Interceptor.Capacity <= 0 {
		invalid("interceptor.capacity", "must be positive", c.Interceptor.Capacity)
	}
	if c.Logger.MaxEntries < 0 {
		invalid("logger.max_entries", "must not be negative", c.Logger.MaxEntries)
	}
	if c.Files.Debounce < 0 {
		invalid("files.debounce", "must not be negative", c.Files.Debounce)
	}
	if _, err := watch.NewIgnore(c.Files.Ignore...); err != nil {
		invalid("files.ignore", err.Error(), c.Files.Ignore)
	}
	if c.Scripts.Timeout < 0 {
		invalid("scripts.timeout", "must not be negative", c.Scripts.Timeout)
	}
	for _, p := range c.Scripts.Paths {
		if !strings.HasSuffix(p, ".lua") {
			invalid("scripts.paths", "scripts must be .lua files", p)
		}
	}

	return errors.Join(errs...)
}

// ScriptTimeout returns the Lua call deadline, falling back to the default
// when zero.
func (c *Config) ScriptTimeout() time.Duration {
	if c.Scripts.Timeout == 0 {
		return lua.DefaultTimeout
	}
	return c.Scripts.Timeout.Std()
}

// LoggerConfig converts the logging section for logging.New.
func (c *Config) LoggerConfig() logging.Config {
	lc := logging.DefaultConfig()
	lc.Level = logging.ParseLevel(c.Logging.Level)
	lc.Format = logging.Format(c.Logging.Format)
	return lc
}

// Encode renders the configuration in the given format.
func (c *Config) Encode(format loader.Format) ([]byte, error) {
	return loader.Encode(format, c)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	}
	return false, fmt.Errorf("not a boolean: %q", s)
}
