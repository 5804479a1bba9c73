// Package db is the store: a thin accessor over the sub_prompts and
// master_prompts tables in one SQLite file. It owns the schema, the row
// types, the read queries and the tx-scoped write helpers; all multi-step
// mutations run inside a single transaction driven by the engine.
package db

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

var sqlitePragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA synchronous = NORMAL",
	"PRAGMA foreign_keys = ON",
	"PRAGMA busy_timeout = 5000",
}

// Open opens the database file, creating it if absent. gpv is a single-writer
// tool, so the pool is capped at one connection; concurrent processes
// serialize on SQLite's own locking.
func Open(path string) (*sql.DB, error) {
	database, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}

	database.SetMaxOpenConns(1)
	database.SetConnMaxLifetime(0)

	if err := database.Ping(); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	for _, pragma := range sqlitePragmas {
		if _, err := database.Exec(pragma); err != nil {
			_ = database.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, err)
		}
	}

	return database, nil
}

func nowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339)
}
