// Package sqlite implements every repository interface on one SQLite
// database (modernc.org/sqlite, pure Go).
//
// TABLES:
//
//	profiles        one row per GitHub account
//	trips           invite_code UNIQUE; creator is also an admin trip_members row
//	trip_members    UNIQUE(trip_id, user_id); travel fields live here
//	explore_items   admin-curated suggestions
//	wishlist_items  member wishes, optionally promoted from an explore item
//	memories        dated journal entries with media URLs
//	sessions        refresh-token sessions (bcrypt hashed secret)
//
// Dates are stored as YYYY-MM-DD text so they compare lexically.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	// Registers the "sqlite" driver.
	_ "modernc.org/sqlite"
)

// DB is the single value the server hands to every service as its
// repositories.
type DB struct {
	conn *sql.DB
}

// New opens dbPath (a file, or ":memory:" in tests) and applies the schema.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// SQLite allows one writer at a time, and PRAGMAs like foreign_keys are
	// per-connection. Pinning the pool to a single connection keeps both
	// simple: every query sees the same settings (and, for ":memory:", the
	// same database). Transactions must therefore only use their *sql.Tx.
	conn.SetMaxOpenConns(1)

	// Surface a bad path or permissions now rather than on the first query.
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	// Off by default in SQLite.
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

// Close closes the database.
func (db *DB) Close() error {
	return db.conn.Close()
}

// schema is applied in order on every start. Every statement is idempotent.
var schema = []struct {
	table string
	ddl   string
}{
	{"profiles", `
		CREATE TABLE IF NOT EXISTS profiles (
			id         TEXT PRIMARY KEY,
			github_id  INTEGER NOT NULL UNIQUE,
			name       TEXT NOT NULL DEFAULT '',
			avatar_url TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
`},
	// invite_code is UNIQUE; the backend is the authority on code uniqueness,
	// the service only generates candidates.
	{"trips", `
		CREATE TABLE IF NOT EXISTS trips (
			id          TEXT PRIMARY KEY,
			name        TEXT NOT NULL,
			destination TEXT NOT NULL,
			start_date  TEXT NOT NULL,
			end_date    TEXT NOT NULL,
			invite_code TEXT NOT NULL UNIQUE,
			album_url   TEXT NOT NULL DEFAULT '',
			created_by  TEXT NOT NULL REFERENCES profiles(id),
			created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_trips_created_by ON trips(created_by);
`},
	// UNIQUE(trip_id, user_id) enforces one membership row per pair.
	{"trip_members", `
		CREATE TABLE IF NOT EXISTS trip_members (
			id             TEXT PRIMARY KEY,
			trip_id        TEXT NOT NULL REFERENCES trips(id),
			user_id        TEXT NOT NULL REFERENCES profiles(id),
			role           TEXT NOT NULL CHECK (role IN ('admin', 'member')),
			arrival_date   TEXT NOT NULL DEFAULT '',
			arrival_time   TEXT NOT NULL DEFAULT '',
			departure_date TEXT NOT NULL DEFAULT '',
			departure_time TEXT NOT NULL DEFAULT '',
			travel_method  TEXT NOT NULL DEFAULT '',
			travel_details TEXT NOT NULL DEFAULT '',
			joined_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (trip_id, user_id)
		);
		CREATE INDEX IF NOT EXISTS idx_trip_members_user_id ON trip_members(user_id);
`},
	{"explore_items", `
		CREATE TABLE IF NOT EXISTS explore_items (
			id          TEXT PRIMARY KEY,
			trip_id     TEXT NOT NULL REFERENCES trips(id),
			created_by  TEXT NOT NULL REFERENCES profiles(id),
			title       TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			category    TEXT NOT NULL,
			date        TEXT NOT NULL DEFAULT '',
			url         TEXT NOT NULL DEFAULT '',
			image_url   TEXT NOT NULL DEFAULT '',
			created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_explore_items_trip_id ON explore_items(trip_id);
`},
	// explore_item_id is a soft link: promoting copies the row, and the
	// wishlist item must survive if the explore item is later removed.
	{"wishlist_items", `
		CREATE TABLE IF NOT EXISTS wishlist_items (
			id              TEXT PRIMARY KEY,
			trip_id         TEXT NOT NULL REFERENCES trips(id),
			created_by      TEXT NOT NULL REFERENCES profiles(id),
			title           TEXT NOT NULL,
			description     TEXT NOT NULL DEFAULT '',
			category        TEXT NOT NULL,
			completed       INTEGER NOT NULL DEFAULT 0,
			explore_item_id TEXT NOT NULL DEFAULT '',
			created_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_wishlist_items_trip_id ON wishlist_items(trip_id);
`},
	// media_urls holds a JSON array; SQLite has no array type.
	{"memories", `
		CREATE TABLE IF NOT EXISTS memories (
			id         TEXT PRIMARY KEY,
			trip_id    TEXT NOT NULL REFERENCES trips(id),
			created_by TEXT NOT NULL REFERENCES profiles(id),
			date       TEXT NOT NULL,
			content    TEXT NOT NULL,
			media_urls TEXT NOT NULL DEFAULT '[]',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_memories_trip_date ON memories(trip_id, date);
`},
	{"sessions", `
		CREATE TABLE IF NOT EXISTS sessions (
			id          TEXT PRIMARY KEY,
			user_id     TEXT NOT NULL REFERENCES profiles(id),
			secret_hash TEXT NOT NULL,
			expires_at  DATETIME NOT NULL,
			created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_sessions_user_id ON sessions(user_id);
`},
}

// migrate creates any missing tables and indexes.
func (db *DB) migrate() error {
	for _, stmt := range schema {
		if _, err := db.conn.Exec(stmt.ddl); err != nil {
			return fmt.Errorf("creating %s table: %w", stmt.table, err)
		}
	}
	return nil
}

// Ping runs a trivial query; the server's health route uses it.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// isUniqueViolation reports whether err came from a UNIQUE constraint.
// modernc.org/sqlite surfaces constraint failures as plain error strings.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// placeholders returns "?, ?, ?" for n arguments, for IN (...) clauses.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}
