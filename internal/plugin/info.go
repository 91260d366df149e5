package plugin

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Version is a semantic version triple.
type Version struct {
	Major int
	Minor int
	Patch int
}

// String returns "major.minor.patch".
func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// MarshalJSON encodes the version as [major, minor, patch].
func (v Version) MarshalJSON() ([]byte, error) {
	return json.Marshal([3]int{v.Major, v.Minor, v.Patch})
}

// UnmarshalJSON decodes a [major, minor, patch] triple.
func (v *Version) UnmarshalJSON(data []byte) error {
	var t [3]int
	if err := json.Unmarshal(data, &t); err != nil {
		return err
	}
	*v = Version{Major: t[0], Minor: t[1], Patch: t[2]}
	return nil
}

// Info is a plugin's identity. It is fixed at construction and used for
// diagnostics and storage keys, never for dispatch.
type Info struct {
	ID          uuid.UUID `json:"uuid"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Version     Version   `json:"version"`
	Author      string    `json:"author"`
}

// Validate checks that the identity is usable.
func (i Info) Validate() error {
	if i.ID == uuid.Nil {
		return fmt.Errorf("%w: missing uuid", ErrInvalidPlugin)
	}
	if i.Name == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidPlugin)
	}
	return nil
}

// String returns "name (version)".
func (i Info) String() string {
	return i.Name + " (" + i.Version.String() + ")"
}
