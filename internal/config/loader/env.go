package loader

import (
	"os"
	"strings"
)

// EnvLoader collects settings from environment variables.
type EnvLoader struct {
	prefix   string            // e.g. "BLUEBIRD_"
	mapping  map[string]string // env var -> setting path
	sections map[string]bool
	environ  func() []string
}

// NewEnvLoader creates a loader for variables starting with prefix. The
// prefix should include the trailing underscore. Unmapped variables are
// only picked up when their first segment names a known section.
func NewEnvLoader(prefix string, sections ...string) *EnvLoader {
	known := make(map[string]bool, len(sections))
	for _, s := range sections {
		known[s] = true
	}
	return &EnvLoader{
		prefix:   prefix,
		mapping:  make(map[string]string),
		sections: known,
		environ:  os.Environ,
	}
}

// AddMapping binds an environment variable to a setting path.
func (l *EnvLoader) AddMapping(envVar, path string) {
	l.mapping[envVar] = path
}

// Load returns raw values keyed by dotted setting path. Empty values are
// treated as set.
func (l *EnvLoader) Load() map[string]string {
	values := make(map[string]string)

	for _, env := range l.environ() {
		name, value, ok := strings.Cut(env, "=")
		if !ok {
			continue
		}
		if path, mapped := l.mapping[name]; mapped {
			values[path] = value
			continue
		}
		if !strings.HasPrefix(name, l.prefix) {
			continue
		}
		if path, ok := l.envToPath(name); ok {
			values[path] = value
		}
	}
	return values
}

// envToPath converts BLUEBIRD_LOGGER_MAX_ENTRIES to logger.max_entries.
func (l *EnvLoader) envToPath(env string) (string, bool) {
	name := strings.ToLower(strings.TrimPrefix(env, l.prefix))
	section, key, ok := strings.Cut(name, "_")
	if !ok || key == "" || !l.sections[section] {
		return "", false
	}
	return section + "." + key, true
}
