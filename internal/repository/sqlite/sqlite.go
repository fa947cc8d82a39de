// Package sqlite implements the repository interfaces using SQLite as the
// storage backend.
//
// WHY SQLITE?
// The whole system is a single-server points service — an embedded database
// that lives in one file covers it without any infrastructure to operate.
// We use modernc.org/sqlite (a pure Go translation of SQLite) rather than the
// CGo driver, so the binary cross-compiles anywhere Go runs.
//
// The storage handle is an explicitly constructed *DB passed into the
// services — there is no package-level connection state.
package sqlite

import (
	"database/sql"
	"fmt"
	"strings"

	// Side-effect import: registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection pool and implements the repository interfaces.
type DB struct {
	conn *sql.DB
}

// New opens the SQLite database at dbPath (":memory:" for tests), configures
// it, and runs migrations. Callers own the handle and must Close it.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Force an immediate connection so a bad path surfaces here, not on the
	// first query.
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL allows concurrent reads while a write is in progress — the wallet
	// and leaderboard reads must not block behind ledger appends.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates the schema. CREATE ... IF NOT EXISTS keeps it idempotent —
// safe to run on every startup against an existing file.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			name          TEXT NOT NULL DEFAULT '',
			email         TEXT NOT NULL UNIQUE,
			code          TEXT NOT NULL UNIQUE,
			referrer_code TEXT NOT NULL DEFAULT '',
			verified      INTEGER NOT NULL DEFAULT 0,
			created_at    DATETIME NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	// ledger_entries is append-only: rows are never updated or deleted.
	// The day column is a structured YYYY-MM-DD stamp set on check-in entries;
	// the partial unique index makes "one check-in per user per day" a
	// storage-level constraint instead of a string match over metadata.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS ledger_entries (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL REFERENCES users(id),
			action     TEXT NOT NULL,
			points     INTEGER NOT NULL,
			meta       TEXT NOT NULL DEFAULT '{}',
			day        TEXT,
			created_at DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_entries_user_created
			ON ledger_entries(user_id, created_at);
		CREATE INDEX IF NOT EXISTS idx_entries_created
			ON ledger_entries(created_at);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_entries_checkin_day
			ON ledger_entries(user_id, day)
			WHERE action = 'daily_checkin' AND day IS NOT NULL;
	`)
	if err != nil {
		return fmt.Errorf("creating ledger_entries table: %w", err)
	}

	// balances is the materialized projection: one row per user, equal to the
	// sum of that user's ledger entries. Maintained incrementally by Append,
	// reproducible from scratch by RebuildBalances.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS balances (
			user_id TEXT PRIMARY KEY REFERENCES users(id),
			points  INTEGER NOT NULL DEFAULT 0
		);
	`)
	if err != nil {
		return fmt.Errorf("creating balances table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS login_tokens (
			email     TEXT PRIMARY KEY,
			code_hash TEXT NOT NULL,
			exp       DATETIME NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("creating login_tokens table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS rewards (
			id         TEXT PRIMARY KEY,
			title      TEXT NOT NULL,
			cost       INTEGER NOT NULL,
			stock      INTEGER NOT NULL,
			created_at DATETIME NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("creating rewards table: %w", err)
	}

	return nil
}

// isUniqueViolation reports whether err is a UNIQUE constraint failure.
// modernc.org/sqlite surfaces these as plain errors carrying the SQLite
// message, so the match is on the message text.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
