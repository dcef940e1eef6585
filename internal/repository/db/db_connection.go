package db

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

var pragmas = []string{
	"PRAGMA journal_mode = WAL;",
	"PRAGMA foreign_keys = ON;",
	"PRAGMA busy_timeout = 5000;",
}

// InitDB opens or creates the SQLite file at path and ensures the schema.
// Use ":memory:" for throwaway databases in tests.
func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open(sqliteDriverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite at %q: %w", path, err)
	}

	// A single connection serialises writers and keeps :memory: databases alive.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply %q: %w", p, err)
		}
	}

	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return db, nil
}

const sqliteDriverName = "sqlite"

const schemaScenarios = `
CREATE TABLE IF NOT EXISTS scenarios (
    user_id INTEGER PRIMARY KEY,
    preheat_mode TEXT NOT NULL CHECK (preheat_mode IN ('relative', 'absolute')),
    preheat_minutes INTEGER NOT NULL,
    heat_start_time TEXT,
    arrival_time TEXT NOT NULL,
    arrival_target_temp REAL NOT NULL,
    eco_time TEXT NOT NULL,
    eco_target_temp REAL NOT NULL,
    updated_at TEXT NOT NULL
);
`

const schemaScheduleEntries = `
CREATE TABLE IF NOT EXISTS schedule_entries (
    id TEXT PRIMARY KEY,
    user_id INTEGER NOT NULL,
    user_room_id TEXT NOT NULL,
    home_id TEXT NOT NULL,
    target_room_id TEXT NOT NULL,
    module_id TEXT,
    type TEXT NOT NULL CHECK (type IN ('heat', 'stop')),
    mode TEXT NOT NULL CHECK (mode IN ('manual', 'home')),
    temp REAL,
    start_time TEXT NOT NULL,
    end_time TEXT,
    status TEXT NOT NULL CHECK (status IN ('pending', 'applied', 'failed')),
    error TEXT,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);
`

const indexScheduleDue = `
CREATE INDEX IF NOT EXISTS idx_schedule_entries_status_start
    ON schedule_entries (status, start_time);
`

const indexScheduleUser = `
CREATE INDEX IF NOT EXISTS idx_schedule_entries_user_start
    ON schedule_entries (user_id, start_time);
`

const schemaScheduleEvents = `
CREATE TABLE IF NOT EXISTS schedule_events (
    id TEXT PRIMARY KEY,
    occurred_at TEXT NOT NULL,
    type TEXT NOT NULL,
    user_id INTEGER NOT NULL,
    entry_id TEXT,
    message TEXT NOT NULL,
    meta TEXT
);
`

const schemaUsers = `
CREATE TABLE IF NOT EXISTS users (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    username TEXT UNIQUE NOT NULL,
    password_hash TEXT NOT NULL
);
`

func ensureSchema(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin schema transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i, stmt := range []string{
		schemaScenarios,
		schemaScheduleEntries,
		indexScheduleDue,
		indexScheduleUser,
		schemaScheduleEvents,
		schemaUsers,
	} {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema transaction: %w", err)
	}
	return nil
}
