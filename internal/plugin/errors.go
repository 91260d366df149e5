package plugin

import (
	"errors"
	"fmt"
)

// Plugin system errors.
var (
	// ErrDuplicatePlugin is returned when a plugin instance or UUID is
	// registered twice.
	ErrDuplicatePlugin = errors.New("plugin already registered")

	// ErrInvalidPlugin is returned when a plugin fails validation.
	ErrInvalidPlugin = errors.New("invalid plugin")

	// ErrStorageUnavailable is returned when persisted state cannot be read
	// or written.
	ErrStorageUnavailable = errors.New("state storage unavailable")

	// ErrStorageCorrupt is returned when persisted state exists but cannot
	// be parsed.
	ErrStorageCorrupt = errors.New("state storage corrupt")

	// ErrStateDeserialization is returned when a snapshot parses but does not
	// fit the plugin's state shape.
	ErrStateDeserialization = errors.New("state deserialization failed")

	// ErrUnknownCommand is returned by handlers for a command kind they do
	// not understand.
	ErrUnknownCommand = errors.New("unknown command")

	// ErrNoProject is returned when an operation needs an open project.
	ErrNoProject = errors.New("no project is open")
)

// StateError wraps a persistence failure with the plugin and operation.
type StateError struct {
	// Plugin is the plugin name.
	Plugin string

	// Op is "load" or "store".
	Op string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *StateError) Error() string {
	return e.Op + " state of plugin " + e.Plugin + ": " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *StateError) Unwrap() error {
	return e.Err
}

// UnknownCommand returns an ErrUnknownCommand for kind on action.
func UnknownCommand(action, kind string) error {
	return fmt.Errorf("%w %q on %s", ErrUnknownCommand, kind, action)
}
