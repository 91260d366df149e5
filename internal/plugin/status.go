package plugin

import "fmt"

// Status is the two-state lifecycle of a plugin.
type Status int

// Plugin statuses. The zero value is Disabled.
const (
	// Disabled plugins keep their state but receive no envelopes.
	Disabled Status = iota

	// Enabled plugins receive every dispatched envelope.
	Enabled
)

// String returns a string representation of the status.
func (s Status) String() string {
	switch s {
	case Disabled:
		return "Disabled"
	case Enabled:
		return "Enabled"
	default:
		return "Unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(text []byte) error {
	switch string(text) {
	case "Enabled":
		*s = Enabled
	case "Disabled":
		*s = Disabled
	default:
		return fmt.Errorf("unknown plugin status %q", text)
	}
	return nil
}
