package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dshills/bluebird/internal/envelope"
	"github.com/dshills/bluebird/internal/plugin"
)

// fileRecord is the on-disk layout of one plugin snapshot.
type fileRecord struct {
	Plugin  string           `json:"plugin"`
	Version plugin.Version   `json:"version"`
	State   envelope.Payload `json:"state"`
}

// Dir stores one "<uuid>.json" file per plugin.
type Dir struct {
	root string
}

// NewDir creates a directory provider, creating root if needed.
func NewDir(root string) (*Dir, error) {
	if root == "" {
		return nil, fmt.Errorf("state directory: %w", plugin.ErrStorageUnavailable)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create state directory %s: %w", root, errors.Join(plugin.ErrStorageUnavailable, err))
	}
	return &Dir{root: root}, nil
}

// Root returns the directory.
func (d *Dir) Root() string {
	return d.root
}

// For returns the file-backed storage of the given plugin.
func (d *Dir) For(info plugin.Info) plugin.Storage {
	return &FileStorage{
		Path:    filepath.Join(d.root, info.ID.String()+".json"),
		plugin:  info.Name,
		version: info.Version,
	}
}

// Close does nothing.
func (d *Dir) Close() error {
	return nil
}

// FileStorage persists a single snapshot as a JSON file.
type FileStorage struct {
	Path string

	plugin  string
	version plugin.Version
}

// StoreState writes the snapshot atomically.
func (f *FileStorage) StoreState(value envelope.Payload) error {
	data, err := json.MarshalIndent(fileRecord{Plugin: f.plugin, Version: f.version, State: value}, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(f.Path, data)
}

// LoadState reads the snapshot. A missing file yields a null payload.
func (f *FileStorage) LoadState() (envelope.Payload, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return envelope.Null(), nil
		}
		return envelope.Null(), fmt.Errorf("read %s: %w", f.Path, errors.Join(plugin.ErrStorageUnavailable, err))
	}

	var rec fileRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return envelope.Null(), fmt.Errorf("parse %s: %w", f.Path, errors.Join(plugin.ErrStorageCorrupt, err))
	}
	return rec.State, nil
}

// writeFileAtomic writes data to a temp file and renames it over path.
func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Join(plugin.ErrStorageUnavailable, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".state-*")
	if err != nil {
		return errors.Join(plugin.ErrStorageUnavailable, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.Join(plugin.ErrStorageUnavailable, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.Join(plugin.ErrStorageUnavailable, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return errors.Join(plugin.ErrStorageUnavailable, err)
	}
	return nil
}
