package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"eve-metro/internal/logger"
	_ "modernc.org/sqlite"
)

// DB wraps a SQLite database connection.
type DB struct {
	sql *sql.DB
}

func dbPath() string {
	// Prefer working directory so the DB is stable across go run / go build.
	// Fall back to executable directory for deployed builds.
	if wd, err := os.Getwd(); err == nil {
		return filepath.Join(wd, "metro.db")
	}
	exe, _ := os.Executable()
	return filepath.Join(filepath.Dir(exe), "metro.db")
}

// Open opens (or creates) the SQLite database and runs migrations.
func Open() (*DB, error) {
	return OpenAt(dbPath())
}

// OpenAt opens the database at an explicit path. ":memory:" gives a throwaway
// database.
func OpenAt(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}
	d := &DB{sql: sqlDB}
	if err := d.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate db: %w", err)
	}
	logger.Success("DB", fmt.Sprintf("Opened %s", path))
	return d, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.sql.Close()
}

// SqlDB exposes the underlying handle for collaborators that manage their own
// tables.
func (d *DB) SqlDB() *sql.DB {
	return d.sql
}

func (d *DB) migrate() error {
	version := 0
	// Try to read current version
	d.sql.QueryRow("SELECT version FROM schema_version ORDER BY version DESC LIMIT 1").Scan(&version)

	if version < 1 {
		_, err := d.sql.Exec(`
			CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY);

			CREATE TABLE IF NOT EXISTS connections (
				id                  INTEGER PRIMARY KEY AUTOINCREMENT,
				system_from         INTEGER NOT NULL,
				system_to           INTEGER NOT NULL,
				signature_from      TEXT NOT NULL,
				signature_to        TEXT NOT NULL DEFAULT '',
				type_from           TEXT NOT NULL DEFAULT '',
				type_to             TEXT NOT NULL DEFAULT '',
				mass_critical       INTEGER NOT NULL DEFAULT 0,
				time_critical       INTEGER NOT NULL DEFAULT 0,
				time_critical_since TEXT,
				comment             TEXT NOT NULL DEFAULT '',
				created_by          TEXT NOT NULL DEFAULT '',
				created_at          TEXT NOT NULL,
				last_seen           TEXT,
				expiry_reports      TEXT NOT NULL DEFAULT '[]',
				UNIQUE(system_from, signature_from)
			);
			CREATE INDEX IF NOT EXISTS idx_connections_created ON connections(created_at);

			CREATE TABLE IF NOT EXISTS payments_log (
				external_id    INTEGER PRIMARY KEY,
				payer_id       INTEGER NOT NULL,
				receiver_id    INTEGER NOT NULL,
				amount         REAL NOT NULL,
				date           TEXT NOT NULL,
				raw            TEXT NOT NULL DEFAULT '',
				processed      INTEGER NOT NULL DEFAULT 0,
				processed_date TEXT
			);
			CREATE INDEX IF NOT EXISTS idx_payments_payer ON payments_log(payer_id);

			CREATE TABLE IF NOT EXISTS allowed_entities (
				entity_id   INTEGER PRIMARY KEY,
				entity_type TEXT NOT NULL,
				level       INTEGER NOT NULL DEFAULT 1,
				valid_until TEXT
			);

			CREATE TABLE IF NOT EXISTS wallet_watchers (
				character_id INTEGER PRIMARY KEY,
				corporation_id INTEGER NOT NULL,
				division     INTEGER NOT NULL DEFAULT 1,
				credential   TEXT NOT NULL,
				last_status  TEXT NOT NULL DEFAULT ''
			);

			INSERT OR IGNORE INTO schema_version (version) VALUES (1);
		`)
		if err != nil {
			return err
		}
	}
	return nil
}

// Timestamps are stored as RFC3339 UTC text so lexical comparison matches
// chronological order.

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
