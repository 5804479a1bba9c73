package engine

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"gpv/internal/db"
)

// UncommitResult describes a completed rollback.
type UncommitResult struct {
	RevertedID      int64   `json:"reverted_id"`
	RestoredID      int64   `json:"id"`
	RestoredVersion string  `json:"version"`
	PrunedSubIDs    []int64 `json:"pruned_sub_prompt_ids,omitempty"`
}

// Uncommit atomically restores the master snapshot immediately preceding the
// current one and prunes sub-prompt rows that existed only because of the
// reverted commit. The parent chain makes the restore exact: the previous
// master row itself becomes current again.
func Uncommit(ctx context.Context, database *sql.DB) (*UncommitResult, error) {
	current, err := db.GetCurrentMaster(ctx, database)
	if err != nil {
		return nil, fmt.Errorf("load current master: %w", err)
	}
	if current == nil {
		return nil, ErrNoCurrentMaster
	}
	if current.ParentID == nil {
		return nil, fmt.Errorf("%w: master %d is the first commit", ErrNoPreviousMaster, current.ID)
	}

	previous, err := db.GetMasterByID(ctx, database, *current.ParentID)
	if err != nil {
		return nil, fmt.Errorf("load previous master: %w", err)
	}
	if previous == nil {
		return nil, fmt.Errorf("%w: parent master %d of master %d", ErrDanglingReference, *current.ParentID, current.ID)
	}

	currentIDs, err := current.MemberIDs()
	if err != nil {
		return nil, err
	}
	previousIDs, err := previous.MemberIDs()
	if err != nil {
		return nil, err
	}

	// Sub-prompts referenced by the reverted master but not by the restored
	// one were created by the reverted commit and must go.
	inPrevious := make(map[int64]bool, len(previousIDs))
	for _, id := range previousIDs {
		inPrevious[id] = true
	}
	var prune []int64
	for _, id := range currentIDs {
		if !inPrevious[id] {
			prune = append(prune, id)
		}
	}

	// Master contents uniqueness should make cross-references impossible;
	// check anyway before deleting anything.
	if len(prune) > 0 {
		masters, err := db.ListMasterPrompts(ctx, database)
		if err != nil {
			return nil, fmt.Errorf("list masters: %w", err)
		}
		pruneSet := make(map[int64]bool, len(prune))
		for _, id := range prune {
			pruneSet[id] = true
		}
		for _, m := range masters {
			if m.ID == current.ID {
				continue
			}
			ids, err := m.MemberIDs()
			if err != nil {
				return nil, err
			}
			for _, id := range ids {
				if pruneSet[id] {
					return nil, fmt.Errorf("refusing to prune sub-prompt %d: still referenced by master %d", id, m.ID)
				}
			}
		}
	}

	tx, err := database.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := db.DeleteMasterPromptTx(ctx, tx, current.ID); err != nil {
		return nil, fmt.Errorf("delete master %d: %w", current.ID, err)
	}
	if err := db.SetCurrentMasterTx(ctx, tx, previous.ID); err != nil {
		return nil, fmt.Errorf("restore master %d: %w", previous.ID, err)
	}
	if err := db.DeleteSubPromptsTx(ctx, tx, prune); err != nil {
		return nil, fmt.Errorf("prune sub-prompts: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	slog.Debug("uncommit complete",
		"reverted", current.ID, "restored", previous.ID, "pruned", len(prune))
	return &UncommitResult{
		RevertedID:      current.ID,
		RestoredID:      previous.ID,
		RestoredVersion: previous.Version,
		PrunedSubIDs:    prune,
	}, nil
}
