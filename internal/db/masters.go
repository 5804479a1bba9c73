package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// MasterPrompt is an immutable, ordered snapshot of sub-prompt identities.
// Contents holds the JSON-serialized ordered member id list and is globally
// unique; at most one row is current at any time.
type MasterPrompt struct {
	ID            int64  `json:"id"`
	ParentID      *int64 `json:"parent_id,omitempty"`
	Version       string `json:"version"`
	Contents      string `json:"contents"`
	IsCurrent     bool   `json:"is_current"`
	CommitMessage string `json:"commit_message"`
	CreatedAt     string `json:"created_at"`
}

// MemberIDs decodes the ordered sub-prompt id list from Contents.
func (m *MasterPrompt) MemberIDs() ([]int64, error) {
	var ids []int64
	if err := json.Unmarshal([]byte(m.Contents), &ids); err != nil {
		return nil, fmt.Errorf("decode master %d contents: %w", m.ID, err)
	}
	return ids, nil
}

// EncodeMemberIDs serializes an ordered id list into master contents form.
func EncodeMemberIDs(ids []int64) (string, error) {
	if ids == nil {
		ids = []int64{}
	}
	b, err := json.Marshal(ids)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

const masterPromptColumns = "id, parent_id, version, contents, is_current, commit_message, created_at"

func scanMasterPrompt(row interface{ Scan(...any) error }) (*MasterPrompt, error) {
	var m MasterPrompt
	var parent sql.NullInt64
	if err := row.Scan(&m.ID, &parent, &m.Version, &m.Contents, &m.IsCurrent, &m.CommitMessage, &m.CreatedAt); err != nil {
		return nil, err
	}
	if parent.Valid {
		m.ParentID = &parent.Int64
	}
	return &m, nil
}

// GetCurrentMaster returns the row flagged is_current, or nil when no commit
// has happened yet.
func GetCurrentMaster(ctx context.Context, database *sql.DB) (*MasterPrompt, error) {
	row := database.QueryRowContext(ctx,
		"SELECT "+masterPromptColumns+" FROM master_prompts WHERE is_current = 1")
	m, err := scanMasterPrompt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return m, err
}

// GetMasterByID returns the row with the given id, or nil when none exists.
func GetMasterByID(ctx context.Context, database *sql.DB, id int64) (*MasterPrompt, error) {
	row := database.QueryRowContext(ctx,
		"SELECT "+masterPromptColumns+" FROM master_prompts WHERE id = ?", id)
	m, err := scanMasterPrompt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return m, err
}

// GetMasterByContents returns the row with the exact serialized member list,
// or nil when none exists.
func GetMasterByContents(ctx context.Context, database *sql.DB, contents string) (*MasterPrompt, error) {
	row := database.QueryRowContext(ctx,
		"SELECT "+masterPromptColumns+" FROM master_prompts WHERE contents = ?", contents)
	m, err := scanMasterPrompt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return m, err
}

// ListMasterPrompts returns every master row ordered by id.
func ListMasterPrompts(ctx context.Context, database *sql.DB) ([]MasterPrompt, error) {
	rows, err := database.QueryContext(ctx,
		"SELECT "+masterPromptColumns+" FROM master_prompts ORDER BY id ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []MasterPrompt
	for rows.Next() {
		m, err := scanMasterPrompt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

// InsertMasterPromptTx inserts a new snapshot within tx and returns its id.
func InsertMasterPromptTx(ctx context.Context, tx *sql.Tx, m MasterPrompt) (int64, error) {
	var parent sql.NullInt64
	if m.ParentID != nil {
		parent = sql.NullInt64{Int64: *m.ParentID, Valid: true}
	}
	res, err := tx.ExecContext(ctx, `
INSERT INTO master_prompts (parent_id, version, contents, is_current, commit_message, created_at)
VALUES (?, ?, ?, ?, ?, ?)`,
		parent, m.Version, m.Contents, m.IsCurrent, m.CommitMessage, nowRFC3339())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ClearCurrentMasterTx flips is_current off on whichever row holds it.
func ClearCurrentMasterTx(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE master_prompts SET is_current = 0 WHERE is_current = 1")
	return err
}

// SetCurrentMasterTx makes the given row current, clearing the flag first so
// the single-current invariant holds within the transaction.
func SetCurrentMasterTx(ctx context.Context, tx *sql.Tx, id int64) error {
	if err := ClearCurrentMasterTx(ctx, tx); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx,
		"UPDATE master_prompts SET is_current = 1 WHERE id = ?", id)
	return err
}

// DeleteMasterPromptTx deletes one master row within tx.
func DeleteMasterPromptTx(ctx context.Context, tx *sql.Tx, id int64) error {
	_, err := tx.ExecContext(ctx, "DELETE FROM master_prompts WHERE id = ?", id)
	return err
}
