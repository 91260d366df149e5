package envelope

import "errors"

// Sentinel errors for envelope encoding.
var (
	// ErrSerializationFailed is returned when a payload cannot be converted
	// to or from its structured form.
	ErrSerializationFailed = errors.New("serialization failed")

	// ErrEmptyAction is returned when a command reports an empty action.
	ErrEmptyAction = errors.New("action cannot be empty")
)

// SerializationError wraps an encoding or decoding failure with the action
// it occurred on.
type SerializationError struct {
	// Action is the action of the command or envelope being converted.
	Action string

	// Op is "encode" or "decode".
	Op string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *SerializationError) Error() string {
	if e.Action == "" {
		return e.Op + " payload: " + e.Err.Error()
	}
	return e.Op + " payload for " + e.Action + ": " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *SerializationError) Unwrap() error {
	return e.Err
}

// Is allows errors.Is to match SerializationError with ErrSerializationFailed.
func (e *SerializationError) Is(target error) bool {
	return target == ErrSerializationFailed
}
