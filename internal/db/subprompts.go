package db

import (
	"context"
	"database/sql"
	"errors"
	"strings"
)

// SubPrompt is one immutable, content-addressed revision of a template
// fragment. Contents are globally unique across all rows and all types.
type SubPrompt struct {
	ID            int64  `json:"id"`
	Type          string `json:"type"`
	ParentID      *int64 `json:"parent_id,omitempty"`
	Version       string `json:"version"`
	Contents      string `json:"contents"`
	CommitMessage string `json:"commit_message"`
	CreatedAt     string `json:"created_at"`
}

const subPromptColumns = "id, type, parent_id, version, contents, commit_message, created_at"

func scanSubPrompt(row interface{ Scan(...any) error }) (*SubPrompt, error) {
	var sub SubPrompt
	var parent sql.NullInt64
	if err := row.Scan(&sub.ID, &sub.Type, &parent, &sub.Version, &sub.Contents, &sub.CommitMessage, &sub.CreatedAt); err != nil {
		return nil, err
	}
	if parent.Valid {
		sub.ParentID = &parent.Int64
	}
	return &sub, nil
}

// GetSubPromptByContents returns the row with the exact contents, or nil when
// none exists.
func GetSubPromptByContents(ctx context.Context, database *sql.DB, contents string) (*SubPrompt, error) {
	row := database.QueryRowContext(ctx,
		"SELECT "+subPromptColumns+" FROM sub_prompts WHERE contents = ?", contents)
	sub, err := scanSubPrompt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return sub, err
}

// GetSubPromptByID returns the row with the given id, or nil when none exists.
func GetSubPromptByID(ctx context.Context, database *sql.DB, id int64) (*SubPrompt, error) {
	row := database.QueryRowContext(ctx,
		"SELECT "+subPromptColumns+" FROM sub_prompts WHERE id = ?", id)
	sub, err := scanSubPrompt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return sub, err
}

// GetSubPromptsByIDs returns the rows for ids, in the order of ids. Ids that
// do not resolve are simply absent; the caller decides whether that is
// corruption.
func GetSubPromptsByIDs(ctx context.Context, database *sql.DB, ids []int64) ([]SubPrompt, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := make([]string, 0, len(ids))
	args := make([]any, 0, len(ids))
	for _, id := range ids {
		placeholders = append(placeholders, "?")
		args = append(args, id)
	}
	rows, err := database.QueryContext(ctx,
		"SELECT "+subPromptColumns+" FROM sub_prompts WHERE id IN ("+strings.Join(placeholders, ", ")+")",
		args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byID := make(map[int64]SubPrompt, len(ids))
	for rows.Next() {
		sub, err := scanSubPrompt(rows)
		if err != nil {
			return nil, err
		}
		byID[sub.ID] = *sub
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]SubPrompt, 0, len(ids))
	for _, id := range ids {
		if sub, ok := byID[id]; ok {
			out = append(out, sub)
		}
	}
	return out, nil
}

// InsertSubPromptTx inserts a new revision within tx and returns its id.
// CreatedAt is assigned here; the caller never supplies it.
func InsertSubPromptTx(ctx context.Context, tx *sql.Tx, sub SubPrompt) (int64, error) {
	var parent sql.NullInt64
	if sub.ParentID != nil {
		parent = sql.NullInt64{Int64: *sub.ParentID, Valid: true}
	}
	res, err := tx.ExecContext(ctx, `
INSERT INTO sub_prompts (type, parent_id, version, contents, commit_message, created_at)
VALUES (?, ?, ?, ?, ?, ?)`,
		sub.Type, parent, sub.Version, sub.Contents, sub.CommitMessage, nowRFC3339())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// DeleteSubPromptsTx deletes the given rows within tx.
func DeleteSubPromptsTx(ctx context.Context, tx *sql.Tx, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := make([]string, 0, len(ids))
	args := make([]any, 0, len(ids))
	for _, id := range ids {
		placeholders = append(placeholders, "?")
		args = append(args, id)
	}
	_, err := tx.ExecContext(ctx,
		"DELETE FROM sub_prompts WHERE id IN ("+strings.Join(placeholders, ", ")+")",
		args...)
	return err
}
