package engine

import (
	"context"
	"database/sql"
	"fmt"

	"gpv/internal/db"
	"gpv/internal/scan"
)

// MasterDetail is a master row with its member sub-prompts resolved in order.
type MasterDetail struct {
	Master db.MasterPrompt
	Subs   []db.SubPrompt
}

// Info loads the current master, or the one named by key, with all members
// resolved. A member id that does not resolve is surfaced as
// ErrDanglingReference.
func Info(ctx context.Context, database *sql.DB, key *int64) (*MasterDetail, error) {
	master, err := lookupMaster(ctx, database, key)
	if err != nil {
		return nil, err
	}
	ids, err := master.MemberIDs()
	if err != nil {
		return nil, err
	}
	subs, err := db.GetSubPromptsByIDs(ctx, database, ids)
	if err != nil {
		return nil, fmt.Errorf("load members of master %d: %w", master.ID, err)
	}
	if len(subs) != len(ids) {
		return nil, fmt.Errorf("%w: master %d", ErrDanglingReference, master.ID)
	}
	return &MasterDetail{Master: *master, Subs: subs}, nil
}

// ExtractFile is one file to materialize from a master snapshot.
type ExtractFile struct {
	Name     string
	Contents string
}

// ExtractFiles maps a master's ordered members back to working filenames,
// the inverse of the commit-side scan.
func ExtractFiles(detail *MasterDetail) []ExtractFile {
	total := len(detail.Subs)
	files := make([]ExtractFile, 0, total)
	for i, sub := range detail.Subs {
		files = append(files, ExtractFile{
			Name:     scan.Filename(sub.Type, i, total),
			Contents: sub.Contents,
		})
	}
	return files
}

func lookupMaster(ctx context.Context, database *sql.DB, key *int64) (*db.MasterPrompt, error) {
	if key != nil {
		master, err := db.GetMasterByID(ctx, database, *key)
		if err != nil {
			return nil, fmt.Errorf("load master %d: %w", *key, err)
		}
		if master == nil {
			return nil, fmt.Errorf("%w: %d", ErrMasterNotFound, *key)
		}
		return master, nil
	}
	master, err := db.GetCurrentMaster(ctx, database)
	if err != nil {
		return nil, fmt.Errorf("load current master: %w", err)
	}
	if master == nil {
		return nil, ErrNoCurrentMaster
	}
	return master, nil
}
