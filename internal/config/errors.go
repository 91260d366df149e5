package config

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalid is wrapped by every ValidationError.
	ErrInvalid = errors.New("invalid configuration")

	// ErrNotFound is returned when an explicitly named config file is missing.
	ErrNotFound = errors.New("config file not found")

	// ErrUnknownSetting is returned when an override names no setting.
	ErrUnknownSetting = errors.New("unknown setting")
)

// ValidationError describes a validation failure for a setting.
type ValidationError struct {
	// Path is the setting path that failed validation.
	Path string
	// Message describes the validation error.
	Message string
	// Value is the invalid value.
	Value any
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (value: %v)", e.Path, e.Message, e.Value)
}

// Is reports ErrInvalid so callers need not inspect the concrete type.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalid
}

// OverrideError is returned when an override value cannot be converted.
type OverrideError struct {
	Path  string
	Value string
	Err   error
}

func (e *OverrideError) Error() string {
	return fmt.Sprintf("override %s=%q: %v", e.Path, e.Value, e.Err)
}

func (e *OverrideError) Unwrap() error {
	return e.Err
}
