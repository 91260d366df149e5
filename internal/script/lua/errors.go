package lua

import "errors"

// Errors for Lua state operations.
var (
	// ErrStateClosed is returned when operating on a closed state.
	ErrStateClosed = errors.New("lua state is closed")

	// ErrTimeout is returned when a call runs past its deadline.
	ErrTimeout = errors.New("lua execution timeout")

	// ErrNotFunction is returned when a called global is not a function.
	ErrNotFunction = errors.New("lua global is not a function")

	// ErrModuleDenied is raised inside Lua for modules outside the whitelist.
	ErrModuleDenied = errors.New("module is not available")
)
