// Package engine implements the commit, uncommit and query operations over
// the store. Commit reconciles working files against the current master
// snapshot and writes a new one; uncommit restores the previous snapshot via
// the parent chain. Every check runs before the enclosing transaction writes
// anything.
package engine

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"gpv/internal/db"
	"gpv/internal/scan"
	"gpv/internal/version"
)

// CommitRequest carries one commit invocation.
type CommitRequest struct {
	Message string

	// Candidates are the files named by this commit, in filename order. For
	// a full commit this equals WorkingSet.
	Candidates []scan.File

	// WorkingSet is the full directory scan. It establishes member ordering
	// and supplies the files that re-include retained types on partial
	// commits.
	WorkingSet []scan.File

	// Full marks a whole-directory commit. A partial commit (explicit path
	// list) may not add new types, and every type it keeps must still have a
	// working file to take its position from.
	Full bool

	// BranchParents forces branch versioning, keyed by candidate path; the
	// value is the parent sub-prompt id to branch from.
	BranchParents map[string]int64

	// ValidateTemplate, when non-nil, runs against every candidate before
	// any write; the first failure aborts the whole commit.
	ValidateTemplate func(contents string) error
}

// CreatedSubPrompt describes one sub-prompt row inserted by a commit.
type CreatedSubPrompt struct {
	ID       int64  `json:"id"`
	Type     string `json:"type"`
	Version  string `json:"version"`
	Branched bool   `json:"branched"`
}

// CommitResult describes the outcome of a commit.
type CommitResult struct {
	// NoChanges reports the "nothing to commit" outcome: the resolved member
	// list is identical to the current master's, so nothing was written.
	NoChanges bool               `json:"no_changes,omitempty"`
	MasterID  int64              `json:"id,omitempty"`
	Version   string             `json:"version,omitempty"`
	MemberIDs []int64            `json:"sub_prompt_ids,omitempty"`
	Created   []CreatedSubPrompt `json:"created,omitempty"`
	// Branched lists the member types whose version gained a segment
	// relative to the current master. Classification only: the master
	// version always takes the plain increment.
	Branched []string `json:"branched,omitempty"`
}

type pendingSubPrompt struct {
	file     scan.File
	parentID *int64
	version  string
	branched bool
}

// Commit reconciles the candidates against the current master and atomically
// produces a new master snapshot.
func Commit(ctx context.Context, database *sql.DB, req CommitRequest) (*CommitResult, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, ErrEmptyMessage
	}
	if len(req.Candidates) == 0 {
		return &CommitResult{NoChanges: true}, nil
	}

	// Duplicate types among the candidates.
	candidateNames := make(map[string]string, len(req.Candidates))
	for _, f := range req.Candidates {
		if prev, ok := candidateNames[f.Type]; ok {
			return nil, fmt.Errorf("%w: %q (%s, %s)", ErrDuplicateTypeInCommit, f.Type, prev, f.Name)
		}
		candidateNames[f.Type] = f.Name
	}

	current, err := db.GetCurrentMaster(ctx, database)
	if err != nil {
		return nil, fmt.Errorf("load current master: %w", err)
	}
	var currentIDs []int64
	currentByType := make(map[string]db.SubPrompt)
	if current != nil {
		currentIDs, err = current.MemberIDs()
		if err != nil {
			return nil, err
		}
		currentSubs, err := db.GetSubPromptsByIDs(ctx, database, currentIDs)
		if err != nil {
			return nil, fmt.Errorf("load current members: %w", err)
		}
		if len(currentSubs) != len(currentIDs) {
			return nil, fmt.Errorf("%w: master %d", ErrDanglingReference, current.ID)
		}
		// Duplicate types inside the current master mean something outside
		// gpv touched the database.
		for _, sub := range currentSubs {
			if _, ok := currentByType[sub.Type]; ok {
				return nil, fmt.Errorf("%w: %q", ErrDuplicateTypeInCurrent, sub.Type)
			}
			currentByType[sub.Type] = sub
		}
	}

	// Type-set reconciliation: partial commits may not add types, and every
	// current type they keep must still have a working file for its position.
	workingTypes := make(map[string]bool, len(req.WorkingSet))
	for _, f := range req.WorkingSet {
		workingTypes[f.Type] = true
	}
	if !req.Full && current != nil {
		for _, f := range req.Candidates {
			if _, ok := currentByType[f.Type]; !ok {
				return nil, fmt.Errorf("%w: %q (%s)", ErrPartialCommitAddsNewType, f.Type, f.Name)
			}
		}
		for typ := range currentByType {
			if _, named := candidateNames[typ]; named {
				continue
			}
			if !workingTypes[typ] {
				return nil, fmt.Errorf("%w: %q", ErrPartialCommitMissingCwdFile, typ)
			}
		}
	}

	// Optional template validation, before any write.
	if req.ValidateTemplate != nil {
		for _, f := range req.Candidates {
			if err := req.ValidateTemplate(f.Contents); err != nil {
				return nil, fmt.Errorf("invalid template %s: %w", f.Name, err)
			}
		}
	}

	// Per-candidate resolution: reuse rows whose contents already exist,
	// stage inserts for the rest.
	resolvedIDs := make(map[string]int64)
	resolvedVersions := make(map[string]string)
	var pending []pendingSubPrompt
	for _, f := range req.Candidates {
		existing, err := db.GetSubPromptByContents(ctx, database, f.Contents)
		if err != nil {
			return nil, fmt.Errorf("look up contents of %s: %w", f.Name, err)
		}
		if existing != nil {
			if existing.Type != f.Type {
				return nil, fmt.Errorf("%w: %s matches sub-prompt %d of type %q",
					ErrDuplicateContents, f.Name, existing.ID, existing.Type)
			}
			resolvedIDs[f.Type] = existing.ID
			resolvedVersions[f.Type] = existing.Version
			continue
		}

		var parentID *int64
		parentVersion := ""
		if cur, ok := currentByType[f.Type]; ok {
			id := cur.ID
			parentID = &id
			parentVersion = cur.Version
		}

		branched := false
		if parentPK, ok := req.BranchParents[f.Path]; ok {
			parent, err := db.GetSubPromptByID(ctx, database, parentPK)
			if err != nil {
				return nil, fmt.Errorf("load branch parent %d: %w", parentPK, err)
			}
			if parent == nil {
				return nil, fmt.Errorf("%w: sub-prompt %d not found", ErrBranchParent, parentPK)
			}
			if parent.Type != f.Type {
				return nil, fmt.Errorf("%w: sub-prompt %d has type %q, expected %q",
					ErrBranchParent, parentPK, parent.Type, f.Type)
			}
			id := parent.ID
			parentID = &id
			parentVersion = parent.Version
			branched = true
		}

		var next string
		if branched {
			next, err = version.Branch(parentVersion)
		} else {
			next, err = version.Increment(parentVersion)
		}
		if err != nil {
			return nil, fmt.Errorf("derive version for %q: %w", f.Type, err)
		}
		pending = append(pending, pendingSubPrompt{file: f, parentID: parentID, version: next, branched: branched})
		resolvedVersions[f.Type] = next
	}

	// Member order comes from the working set's filename order; candidates
	// whose file sits outside the scanned directory follow in commit order.
	keep := func(typ string) bool {
		if _, ok := candidateNames[typ]; ok {
			return true
		}
		_, retained := currentByType[typ]
		return retained && !req.Full
	}
	var orderedTypes []string
	seen := make(map[string]bool)
	for _, f := range req.WorkingSet {
		if keep(f.Type) && !seen[f.Type] {
			orderedTypes = append(orderedTypes, f.Type)
			seen[f.Type] = true
		}
	}
	for _, f := range req.Candidates {
		if !seen[f.Type] {
			orderedTypes = append(orderedTypes, f.Type)
			seen[f.Type] = true
		}
	}

	memberID := func(typ string) int64 {
		if id, ok := resolvedIDs[typ]; ok {
			return id
		}
		return currentByType[typ].ID
	}

	// No-op short circuit: without inserts the member list is fully known,
	// and an unchanged list means nothing to commit.
	if len(pending) == 0 {
		ids := make([]int64, len(orderedTypes))
		for i, typ := range orderedTypes {
			ids[i] = memberID(typ)
		}
		if current != nil && slices.Equal(ids, currentIDs) {
			return &CommitResult{NoChanges: true}, nil
		}
		contents, err := db.EncodeMemberIDs(ids)
		if err != nil {
			return nil, err
		}
		clash, err := db.GetMasterByContents(ctx, database, contents)
		if err != nil {
			return nil, fmt.Errorf("check snapshot uniqueness: %w", err)
		}
		if clash != nil {
			return nil, fmt.Errorf("%w: snapshot identical to master %d", ErrDuplicateContents, clash.ID)
		}
	}

	masterVersion := version.First
	var masterParent *int64
	if current != nil {
		masterVersion, err = version.Increment(current.Version)
		if err != nil {
			return nil, fmt.Errorf("derive master version: %w", err)
		}
		id := current.ID
		masterParent = &id
	}

	// Transactional write: sub-prompt inserts, the is_current flip and the
	// master insert land together or not at all.
	tx, err := database.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	result := &CommitResult{Version: masterVersion}
	for _, p := range pending {
		id, err := db.InsertSubPromptTx(ctx, tx, db.SubPrompt{
			Type:          p.file.Type,
			ParentID:      p.parentID,
			Version:       p.version,
			Contents:      p.file.Contents,
			CommitMessage: req.Message,
		})
		if err != nil {
			return nil, fmt.Errorf("insert sub-prompt %q: %w", p.file.Type, err)
		}
		resolvedIDs[p.file.Type] = id
		result.Created = append(result.Created, CreatedSubPrompt{
			ID: id, Type: p.file.Type, Version: p.version, Branched: p.branched,
		})
		slog.Debug("sub-prompt created",
			"id", id, "type", p.file.Type, "version", p.version, "branched", p.branched)
	}

	result.MemberIDs = make([]int64, len(orderedTypes))
	for i, typ := range orderedTypes {
		result.MemberIDs[i] = memberID(typ)
	}
	for _, typ := range orderedTypes {
		cur, ok := currentByType[typ]
		if !ok {
			continue
		}
		branched, err := version.IsBranched(resolvedVersion(resolvedVersions, currentByType, typ), cur.Version)
		if err != nil {
			return nil, fmt.Errorf("classify %q: %w", typ, err)
		}
		if branched {
			result.Branched = append(result.Branched, typ)
		}
	}

	contents, err := db.EncodeMemberIDs(result.MemberIDs)
	if err != nil {
		return nil, err
	}
	if current != nil {
		if err := db.ClearCurrentMasterTx(ctx, tx); err != nil {
			return nil, fmt.Errorf("clear current master: %w", err)
		}
	}
	masterID, err := db.InsertMasterPromptTx(ctx, tx, db.MasterPrompt{
		ParentID:      masterParent,
		Version:       masterVersion,
		Contents:      contents,
		IsCurrent:     true,
		CommitMessage: req.Message,
	})
	if err != nil {
		return nil, fmt.Errorf("insert master prompt: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	result.MasterID = masterID
	slog.Debug("master prompt created",
		"id", masterID, "version", masterVersion,
		"members", len(result.MemberIDs), "inserted", len(result.Created), "branched", result.Branched)
	return result, nil
}

// resolvedVersion returns the version a kept member will carry in the new
// master: the candidate's resolved version, or the retained member's own.
func resolvedVersion(resolved map[string]string, currentByType map[string]db.SubPrompt, typ string) string {
	if v, ok := resolved[typ]; ok {
		return v
	}
	return currentByType[typ].Version
}
