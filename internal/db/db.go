package db

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// DB wraps a SQLite outcome store connection
type DB struct {
	conn *sqlx.DB
	Path string
}

const schema = `
CREATE TABLE IF NOT EXISTS trips (
	id TEXT PRIMARY KEY,
	world_id TEXT NOT NULL,
	prompt TEXT NOT NULL DEFAULT '',
	balance INTEGER NOT NULL DEFAULT 0,
	creation_cost INTEGER NOT NULL DEFAULT 0,
	visit_count INTEGER NOT NULL DEFAULT 0,
	kill_count INTEGER NOT NULL DEFAULT 0,
	owner TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_trips_world ON trips(world_id);

CREATE TABLE IF NOT EXISTS outcomes (
	id TEXT PRIMARY KEY,
	world_id TEXT NOT NULL,
	trip_id TEXT NOT NULL,
	rat_id TEXT NOT NULL,
	rat_name TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL,
	value_change INTEGER,
	rat_value_before INTEGER,
	rat_value_after INTEGER,
	trip_value_before INTEGER,
	trip_value_after INTEGER,
	inventory_json TEXT,
	item_changes_json TEXT,
	items_lost_json TEXT
);
CREATE INDEX IF NOT EXISTS idx_outcomes_world ON outcomes(world_id);
CREATE INDEX IF NOT EXISTS idx_outcomes_trip ON outcomes(world_id, trip_id);
`

// OpenDB opens a SQLite database with WAL mode and creates the schema if missing
func OpenDB(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if path != ":memory:" {
		// Enable WAL mode for concurrent reads
		if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
			conn.Close()
			return nil, fmt.Errorf("setting WAL mode: %w", err)
		}
	} else {
		// each pooled connection would otherwise get its own empty database
		conn.SetMaxOpenConns(1)
	}

	if _, err := conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrating schema: %w", err)
	}

	return &DB{conn: conn, Path: path}, nil
}

// Close closes the database connection
func (d *DB) Close() error {
	return d.conn.Close()
}

// Conn returns the underlying sqlx.DB for custom queries
func (d *DB) Conn() *sqlx.DB {
	return d.conn
}
