package store

import (
	"database/sql"
	"fmt"
	"sync"
)

// Current schema version
const SchemaVersion = "1"

// SQLite is a SQLite-backed store.
type SQLite struct {
	mu sync.Mutex
	db *sql.DB
}

// NewSQLite opens or creates the store at path.
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, err
	}

	// Create tables if not exists
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS definitions (
			name TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			source TEXT NOT NULL,
			seq INTEGER NOT NULL
		);
		CREATE TABLE IF NOT EXISTS definition_versions (
			name TEXT NOT NULL,
			version INTEGER NOT NULL,
			source TEXT NOT NULL,
			ts TEXT NOT NULL DEFAULT (datetime('now')),
			PRIMARY KEY (name, version)
		);
		CREATE TABLE IF NOT EXISTS metadata (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`)
	if err != nil {
		db.Close()
		return nil, err
	}

	s := &SQLite{db: db}

	// Check/set schema version (use unlocked versions since we're in init)
	version, err := s.getMetadataUnlocked("schema_version")
	if err != nil {
		db.Close()
		return nil, err
	}
	switch version {
	case "":
		if err := s.setMetadataUnlocked("schema_version", SchemaVersion); err != nil {
			db.Close()
			return nil, err
		}
	case SchemaVersion:
	default:
		db.Close()
		return nil, fmt.Errorf("unsupported schema version: %s (expected %s)", version, SchemaVersion)
	}

	return s, nil
}

// Get retrieves a definition by name.
func (s *SQLite) Get(name string) (*Definition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d := Definition{Name: name}
	err := s.db.QueryRow("SELECT kind, source, seq FROM definitions WHERE name = ?", name).
		Scan(&d.Kind, &d.Source, &d.Seq)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// Put stores a definition and records a new version when its source
// changed. Storing identical source again is a no-op.
func (s *SQLite) Put(d Definition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var kind, source string
	err = tx.QueryRow("SELECT kind, source FROM definitions WHERE name = ?", d.Name).Scan(&kind, &source)
	switch {
	case err == sql.ErrNoRows:
	case err != nil:
		return err
	case kind == d.Kind && source == d.Source:
		return nil
	}

	if _, err := tx.Exec(`
		INSERT INTO definitions (name, kind, source, seq) VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			kind = excluded.kind, source = excluded.source, seq = excluded.seq
	`, d.Name, d.Kind, d.Source, d.Seq); err != nil {
		return err
	}

	if _, err := tx.Exec(`
		INSERT INTO definition_versions (name, version, source)
		SELECT ?, COALESCE(MAX(version), 0) + 1, ? FROM definition_versions WHERE name = ?
	`, d.Name, d.Source, d.Name); err != nil {
		return err
	}
	return tx.Commit()
}

// Delete removes a definition and all of its versions.
func (s *SQLite) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.Exec("DELETE FROM definitions WHERE name = ?", name); err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM definition_versions WHERE name = ?", name); err != nil {
		return err
	}
	return tx.Commit()
}

// List returns all definitions ordered by Seq.
func (s *SQLite) List() ([]Definition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query("SELECT name, kind, source, seq FROM definitions ORDER BY seq, name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var defs []Definition
	for rows.Next() {
		var d Definition
		if err := rows.Scan(&d.Name, &d.Kind, &d.Source, &d.Seq); err != nil {
			return nil, err
		}
		defs = append(defs, d)
	}
	return defs, rows.Err()
}

// GetHistory returns up to limit versions of name, newest first. A limit of
// 0 returns all of them.
func (s *SQLite) GetHistory(name string, limit int) ([]VersionEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := "SELECT version, source, ts FROM definition_versions WHERE name = ? ORDER BY version DESC"
	args := []any{name}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []VersionEntry
	for rows.Next() {
		var e VersionEntry
		if err := rows.Scan(&e.Version, &e.Source, &e.Ts); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// getMetadataUnlocked retrieves metadata without locking (caller must hold lock).
func (s *SQLite) getMetadataUnlocked(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// setMetadataUnlocked stores metadata without locking (caller must hold lock).
func (s *SQLite) setMetadataUnlocked(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}
