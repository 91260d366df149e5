package core

import (
	"errors"
	"fmt"
)

// Coordinator errors.
var (
	// ErrAlreadyInitialized is returned when plugins are registered or
	// initialized after startup.
	ErrAlreadyInitialized = errors.New("plugins already initialized")

	// ErrHandlerPanic is matched by PanicError.
	ErrHandlerPanic = errors.New("handler panicked")

	// ErrPluginNotFound is returned when a plugin id is not registered.
	ErrPluginNotFound = errors.New("plugin not found")
)

// HandlerError wraps an error returned by a plugin's Handle.
type HandlerError struct {
	// Plugin is the name of the plugin whose handler failed.
	Plugin string

	// Action is the action being delivered.
	Action string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *HandlerError) Error() string {
	return "plugin " + e.Plugin + " failed handling " + e.Action + ": " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *HandlerError) Unwrap() error {
	return e.Err
}

// PanicError wraps a panic raised inside a plugin's Handle.
type PanicError struct {
	// Plugin is the name of the plugin whose handler panicked.
	Plugin string

	// Action is the action being delivered.
	Action string

	// Value is the value passed to panic().
	Value any

	// Stack is the stack trace at the time of the panic.
	Stack string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("plugin %s panicked handling %s: %v", e.Plugin, e.Action, e.Value)
}

// Is allows errors.Is to match PanicError with ErrHandlerPanic.
func (e *PanicError) Is(target error) bool {
	return target == ErrHandlerPanic
}

// InitError records a plugin whose Initialize failed.
type InitError struct {
	Plugin string
	Err    error
}

// Error implements the error interface.
func (e *InitError) Error() string {
	return "initialize plugin " + e.Plugin + ": " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *InitError) Unwrap() error {
	return e.Err
}
