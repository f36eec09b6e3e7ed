// Package database provides SQLite connection handling for the backtest
// result stores.
package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// Profile selects the PRAGMA configuration for a database.
type Profile string

const (
	// ProfileLedger - maximum safety for the immutable audit trail
	ProfileLedger Profile = "ledger"
	// ProfileStandard - balanced configuration for result stores
	ProfileStandard Profile = "standard"
)

// Config holds database configuration
type Config struct {
	Path    string
	Profile Profile
	Name    string // friendly name for error messages (e.g. "ledger")
}

// DB wraps a SQLite connection opened with a profile-specific configuration.
type DB struct {
	conn *sql.DB
	path string
	name string
}

// New opens a database connection. file: URIs (in-memory databases in tests)
// are passed through untouched; plain paths are resolved to absolute and
// their directory created.
func New(cfg Config) (*DB, error) {
	if !strings.HasPrefix(cfg.Path, "file:") && cfg.Path != ":memory:" {
		absPath, err := filepath.Abs(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve database path: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(absPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		cfg.Path = absPath
	}

	if cfg.Profile == "" {
		cfg.Profile = ProfileStandard
	}

	conn, err := sql.Open("sqlite", connectionString(cfg.Path, cfg.Profile))
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", cfg.Name, err)
	}

	// SQLite serializes writers; a single connection avoids lock churn.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database %s: %w", cfg.Name, err)
	}

	return &DB{conn: conn, path: cfg.Path, name: cfg.Name}, nil
}

// connectionString appends profile-specific PRAGMAs to the path.
func connectionString(path string, profile Profile) string {
	pragmas := []string{
		"_pragma=busy_timeout(5000)",
		"_pragma=foreign_keys(1)",
	}
	switch profile {
	case ProfileLedger:
		pragmas = append(pragmas,
			"_pragma=journal_mode(WAL)",
			"_pragma=synchronous(FULL)",
		)
	default:
		pragmas = append(pragmas,
			"_pragma=journal_mode(WAL)",
			"_pragma=synchronous(NORMAL)",
		)
	}

	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + strings.Join(pragmas, "&")
}

// Conn exposes the underlying connection for repositories.
func (db *DB) Conn() *sql.DB { return db.conn }

// Path returns the resolved database path.
func (db *DB) Path() string { return db.path }

// Close closes the connection.
func (db *DB) Close() error { return db.conn.Close() }
