// Package storage provides media for the plugin state storage contract.
//
// Every medium is a plugin.Provider handing out one plugin.Storage per
// plugin, keyed by the plugin's UUID:
//
//   - Memory keeps snapshots in a map (tests, ephemeral sessions)
//   - Dir writes one JSON file per plugin into a directory
//   - SQLite keeps snapshots in a single database table
//
// Missing state loads as a null payload. Unreadable media fail with
// plugin.ErrStorageUnavailable and unparsable snapshots with
// plugin.ErrStorageCorrupt so callers can discard and fall back to
// defaults.
package storage

import (
	"fmt"
	"io"

	"github.com/dshills/bluebird/internal/plugin"
)

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendDir    = "dir"
	BackendSQLite = "sqlite"
)

// Backend is a provider that may hold resources.
type Backend interface {
	plugin.Provider
	io.Closer
}

// Open creates the named backend rooted at path.
func Open(backend, path string) (Backend, error) {
	switch backend {
	case BackendMemory, "":
		return NewMemory(), nil
	case BackendDir:
		return NewDir(path)
	case BackendSQLite:
		return OpenSQLite(path)
	default:
		return nil, fmt.Errorf("unknown state backend %q", backend)
	}
}
