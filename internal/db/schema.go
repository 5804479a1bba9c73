package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrSchemaExists is returned by InitSchema when a target table is already
// present; gpv never migrates over an existing schema.
var ErrSchemaExists = errors.New("schema already initialized")

const subPromptsSchema = `
CREATE TABLE sub_prompts (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    type           TEXT NOT NULL,
    parent_id      INTEGER REFERENCES sub_prompts(id),
    version        TEXT NOT NULL,
    contents       TEXT NOT NULL,
    commit_message TEXT NOT NULL,
    created_at     TEXT NOT NULL
);

CREATE UNIQUE INDEX idx_sub_prompts_contents ON sub_prompts(contents);
`

const masterPromptsSchema = `
CREATE TABLE master_prompts (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    parent_id      INTEGER REFERENCES master_prompts(id),
    version        TEXT NOT NULL,
    contents       TEXT NOT NULL,
    is_current     INTEGER NOT NULL,
    commit_message TEXT NOT NULL,
    created_at     TEXT NOT NULL
);

CREATE UNIQUE INDEX idx_master_prompts_contents ON master_prompts(contents);
CREATE UNIQUE INDEX idx_master_prompts_current  ON master_prompts(id) WHERE is_current = 1;
`

// InitSchema creates both tables and all three indexes in one transaction.
// It fails with ErrSchemaExists if either table is already present.
func InitSchema(ctx context.Context, database *sql.DB) error {
	for _, table := range []string{"sub_prompts", "master_prompts"} {
		exists, err := tableExists(ctx, database, table)
		if err != nil {
			return fmt.Errorf("check table %s: %w", table, err)
		}
		if exists {
			return fmt.Errorf("%w: table %s present", ErrSchemaExists, table)
		}
	}

	tx, err := database.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, subPromptsSchema); err != nil {
		return fmt.Errorf("create sub_prompts: %w", err)
	}
	if _, err := tx.ExecContext(ctx, masterPromptsSchema); err != nil {
		return fmt.Errorf("create master_prompts: %w", err)
	}

	return tx.Commit()
}

func tableExists(ctx context.Context, database *sql.DB, name string) (bool, error) {
	var count int
	if err := database.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type = 'table' AND name = ?",
		name,
	).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}
