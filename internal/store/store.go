// Package store is the local relational mirror: tasks, projects, sections,
// labels, the activity event log, plans, and plan task history, all in one
// sqlite database.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SaveMode selects how a batch save treats existing rows.
type SaveMode string

const (
	// SaveDeleteAll truncates the table before inserting.
	SaveDeleteAll SaveMode = "delete_all"
	// SaveIncrement inserts rows whose id is not already present.
	SaveIncrement SaveMode = "increment"
	// SaveUpdate updates known attributes of existing rows by id.
	SaveUpdate SaveMode = "update"
)

// Store wraps the database connection.
type Store struct {
	conn *sql.DB
	path string
}

// Open opens an existing database.
func Open(path string) (*Store, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("database not found: run 'todoplan init' first")
	}
	return open(path)
}

// Initialize creates the database (and its directory) and the schema.
func Initialize(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	s, err := open(path)
	if err != nil {
		return nil, err
	}
	if _, err := s.conn.Exec(schema); err != nil {
		s.conn.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	if err := s.SetParam(ParamTablesCreated, "true"); err != nil {
		s.conn.Close()
		return nil, err
	}
	return s, nil
}

func open(path string) (*Store, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// WAL for concurrent reads while writes are serialized
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA busy_timeout=500"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	conn.Exec("PRAGMA synchronous=NORMAL")

	return &Store{conn: conn, path: path}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.conn.Close()
}

// System parameter keys.
const (
	ParamTablesCreated       = "tables_created"
	ParamInitialFillComplete = "initial_tables_fill_complete"
)

// GetParam returns a system parameter, or "" when unset.
func (s *Store) GetParam(param string) (string, error) {
	var value string
	err := s.conn.QueryRow(`SELECT value FROM system_params WHERE param = ?`, param).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get param %s: %w", param, err)
	}
	return value, nil
}

// SetParam sets a system parameter.
func (s *Store) SetParam(param, value string) error {
	_, err := s.conn.Exec(`INSERT OR REPLACE INTO system_params (param, value) VALUES (?, ?)`, param, value)
	if err != nil {
		return fmt.Errorf("set param %s: %w", param, err)
	}
	return nil
}
