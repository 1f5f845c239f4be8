package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// CurrentSchemaVersion is the latest schema version.
// Bump this when adding migrations.
const CurrentSchemaVersion = 1

// Init initializes the SQLite database at baseDir/snapstrip.db.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.snapstrip.
//
// The database file is the only synchronization point between the daemon, the
// CLI, the web dashboard, and the MCP server; WAL plus a busy timeout keeps
// occasional cross-process access from failing outright.
func Init(baseDir string) (*sql.DB, error) {
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	_ = os.Chmod(baseDir, 0700)

	dbPath := filepath.Join(baseDir, "snapstrip.db")
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := verifyWALMode(db); err != nil {
		db.Close()
		return nil, err
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	_ = os.Chmod(dbPath, 0600)

	return db, nil
}

// migrate applies schema migrations based on user_version.
func migrate(db *sql.DB) error {
	version, err := GetUserVersion(db)
	if err != nil {
		return err
	}

	// Migration 0 -> 1: Initial schema (v1)
	if version < 1 {
		schema := `
		CREATE TABLE IF NOT EXISTS entries (
		  id            TEXT PRIMARY KEY,
		  day           TEXT NOT NULL,
		  score         REAL NOT NULL,
		  degraded      INTEGER NOT NULL DEFAULT 0,
		  frame_path    TEXT NOT NULL,
		  stylized_path TEXT,
		  captured_at   INTEGER NOT NULL,
		  clock         TEXT NOT NULL,
		  created_at    INTEGER NOT NULL,
		  archived_at   INTEGER
		);

		CREATE INDEX IF NOT EXISTS idx_entries_day_score
		ON entries(day, score DESC, captured_at ASC)
		WHERE archived_at IS NULL;

		CREATE INDEX IF NOT EXISTS idx_entries_day_time
		ON entries(day, captured_at ASC);

		CREATE TABLE IF NOT EXISTS strips (
		  day         TEXT PRIMARY KEY,
		  path        TEXT NOT NULL,
		  photo_count INTEGER NOT NULL,
		  created_at  INTEGER NOT NULL,
		  pushed_at   INTEGER,
		  hosted_url  TEXT
		);
		`
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("failed to apply schema v1: %w", err)
		}
		if err := SetUserVersion(db, 1); err != nil {
			return err
		}
	}

	return nil
}

// GetUserVersion reads the sqlite user_version pragma.
func GetUserVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to read user_version: %w", err)
	}
	return version, nil
}

// SetUserVersion writes the sqlite user_version pragma.
func SetUserVersion(db *sql.DB, version int) error {
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", version)); err != nil {
		return fmt.Errorf("failed to set user_version: %w", err)
	}
	return nil
}

// verifyWALMode confirms that the journal_mode pragma took effect.
func verifyWALMode(db *sql.DB) error {
	var mode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		return fmt.Errorf("failed to read journal_mode: %w", err)
	}
	if mode != "wal" {
		return fmt.Errorf("expected WAL journal mode, got %q", mode)
	}
	return nil
}
