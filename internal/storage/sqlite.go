package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dshills/bluebird/internal/envelope"
	"github.com/dshills/bluebird/internal/plugin"
	"github.com/google/uuid"

	_ "modernc.org/sqlite" // SQLite driver
)

const schema = `
CREATE TABLE IF NOT EXISTS plugin_state (
	uuid       TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	version    TEXT NOT NULL DEFAULT '',
	state      TEXT NOT NULL,
	updated_at DATETIME NOT NULL
);
`

// SQLite persists plugin snapshots in a SQLite database.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at dbPath and ensures the
// plugin_state table exists. The caller is responsible for calling Close.
func OpenSQLite(dbPath string) (*SQLite, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("sqlite path: %w", plugin.ErrStorageUnavailable)
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, errors.Join(plugin.ErrStorageUnavailable, err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	db.SetMaxOpenConns(1) // prevent SQLITE_BUSY
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Close releases the underlying database connection.
func (s *SQLite) Close() error { return s.db.Close() }

// For returns the row-backed storage of the given plugin.
func (s *SQLite) For(info plugin.Info) plugin.Storage {
	return &sqliteSlot{db: s.db, info: info}
}

// Records lists every stored snapshot keyed by plugin name.
func (s *SQLite) Records() (map[string]envelope.Payload, error) {
	rows, err := s.db.Query(`SELECT name, state FROM plugin_state ORDER BY name`)
	if err != nil {
		return nil, errors.Join(plugin.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	out := make(map[string]envelope.Payload)
	for rows.Next() {
		var name, state string
		if err := rows.Scan(&name, &state); err != nil {
			return nil, errors.Join(plugin.ErrStorageUnavailable, err)
		}
		p, err := envelope.ParsePayload([]byte(state))
		if err != nil {
			return nil, fmt.Errorf("state of %s: %w", name, errors.Join(plugin.ErrStorageCorrupt, err))
		}
		out[name] = p
	}
	return out, rows.Err()
}

// Delete removes the snapshot of a plugin.
func (s *SQLite) Delete(id uuid.UUID) error {
	_, err := s.db.Exec(`DELETE FROM plugin_state WHERE uuid = ?`, id.String())
	return err
}

type sqliteSlot struct {
	db   *sql.DB
	info plugin.Info
}

func (s *sqliteSlot) StoreState(value envelope.Payload) error {
	_, err := s.db.Exec(`
		INSERT INTO plugin_state (uuid, name, version, state, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(uuid) DO UPDATE SET
			name = excluded.name,
			version = excluded.version,
			state = excluded.state,
			updated_at = excluded.updated_at`,
		s.info.ID.String(), s.info.Name, s.info.Version.String(), value.String(), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("store %s: %w", s.info.Name, errors.Join(plugin.ErrStorageUnavailable, err))
	}
	return nil
}

func (s *sqliteSlot) LoadState() (envelope.Payload, error) {
	var state string
	err := s.db.QueryRow(`SELECT state FROM plugin_state WHERE uuid = ?`, s.info.ID.String()).Scan(&state)
	if errors.Is(err, sql.ErrNoRows) {
		return envelope.Null(), nil
	}
	if err != nil {
		return envelope.Null(), fmt.Errorf("load %s: %w", s.info.Name, errors.Join(plugin.ErrStorageUnavailable, err))
	}
	p, err := envelope.ParsePayload([]byte(state))
	if err != nil {
		return envelope.Null(), fmt.Errorf("load %s: %w", s.info.Name, errors.Join(plugin.ErrStorageCorrupt, err))
	}
	return p, nil
}
