package engine

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"slices"
	"testing"

	"gpv/internal/db"
	"gpv/internal/scan"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gpv.db")
	database, err := db.Open(path)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	if err := db.InitSchema(context.Background(), database); err != nil {
		t.Fatalf("init schema: %v", err)
	}
	return database
}

func mkFile(t *testing.T, name, contents string) scan.File {
	t.Helper()
	prefix, typ, err := scan.ParseFilename(name)
	if err != nil {
		t.Fatalf("parse %q: %v", name, err)
	}
	return scan.File{Path: name, Name: name, Prefix: prefix, Type: typ, Contents: contents}
}

func commitFull(t *testing.T, database *sql.DB, message string, files ...scan.File) *CommitResult {
	t.Helper()
	res, err := Commit(context.Background(), database, CommitRequest{
		Message:    message,
		Candidates: files,
		WorkingSet: files,
		Full:       true,
	})
	if err != nil {
		t.Fatalf("full commit %q: %v", message, err)
	}
	return res
}

func TestFirstCommitCreatesVersionOne(t *testing.T) {
	ctx := context.Background()
	database := openTestDB(t)

	res := commitFull(t, database, "init",
		mkFile(t, "01_intro.j2", "A"),
		mkFile(t, "02_body.j2", "B"))

	if res.NoChanges {
		t.Fatalf("expected a new master")
	}
	if res.Version != "1" {
		t.Fatalf("unexpected master version: got %q want %q", res.Version, "1")
	}
	if len(res.Created) != 2 {
		t.Fatalf("expected two new sub-prompts, got %d", len(res.Created))
	}
	for _, c := range res.Created {
		if c.Version != "1" || c.Branched {
			t.Fatalf("unexpected created sub-prompt: %+v", c)
		}
	}

	current, err := db.GetCurrentMaster(ctx, database)
	if err != nil {
		t.Fatalf("get current: %v", err)
	}
	if current == nil || current.ID != res.MasterID || !current.IsCurrent {
		t.Fatalf("unexpected current master: %+v", current)
	}
	if current.ParentID != nil {
		t.Fatalf("first master must have no parent, got %v", *current.ParentID)
	}

	subs, err := db.GetSubPromptsByIDs(ctx, database, res.MemberIDs)
	if err != nil {
		t.Fatalf("resolve members: %v", err)
	}
	if len(subs) != 2 || subs[0].Type != "intro" || subs[1].Type != "body" {
		t.Fatalf("unexpected member order: %+v", subs)
	}
}

func TestRecommitUnchangedIsNoOp(t *testing.T) {
	ctx := context.Background()
	database := openTestDB(t)

	files := []scan.File{mkFile(t, "01_intro.j2", "A")}
	first := commitFull(t, database, "init", files...)

	res, err := Commit(ctx, database, CommitRequest{
		Message: "again", Candidates: files, WorkingSet: files, Full: true,
	})
	if err != nil {
		t.Fatalf("recommit: %v", err)
	}
	if !res.NoChanges {
		t.Fatalf("expected no-op, got %+v", res)
	}

	masters, err := db.ListMasterPrompts(ctx, database)
	if err != nil {
		t.Fatalf("list masters: %v", err)
	}
	if len(masters) != 1 || masters[0].ID != first.MasterID || !masters[0].IsCurrent {
		t.Fatalf("no-op must leave the prior master current: %+v", masters)
	}
}

func TestModifiedFileIncrementsVersion(t *testing.T) {
	ctx := context.Background()
	database := openTestDB(t)

	first := commitFull(t, database, "init",
		mkFile(t, "01_intro.j2", "A"),
		mkFile(t, "02_body.j2", "B"))

	second := commitFull(t, database, "update body",
		mkFile(t, "01_intro.j2", "A"),
		mkFile(t, "02_body.j2", "B2"))

	if second.Version != "2" {
		t.Fatalf("unexpected master version: got %q want %q", second.Version, "2")
	}
	if len(second.Created) != 1 || second.Created[0].Type != "body" || second.Created[0].Version != "2" {
		t.Fatalf("unexpected created rows: %+v", second.Created)
	}
	// intro keeps its id, body gets a new one
	if second.MemberIDs[0] != first.MemberIDs[0] {
		t.Fatalf("unchanged member must keep its id: got %d want %d", second.MemberIDs[0], first.MemberIDs[0])
	}
	if second.MemberIDs[1] == first.MemberIDs[1] {
		t.Fatalf("modified member must get a new id")
	}

	newBody, err := db.GetSubPromptByID(ctx, database, second.MemberIDs[1])
	if err != nil {
		t.Fatalf("load new body: %v", err)
	}
	if newBody.ParentID == nil || *newBody.ParentID != first.MemberIDs[1] {
		t.Fatalf("new revision must point at the superseded row: %+v", newBody)
	}
}

func TestIdenticalContentsReusesRow(t *testing.T) {
	ctx := context.Background()
	database := openTestDB(t)

	commitFull(t, database, "init", mkFile(t, "01_intro.j2", "A"))
	second := commitFull(t, database, "add body",
		mkFile(t, "01_intro.j2", "A"),
		mkFile(t, "02_body.j2", "B"))

	if len(second.Created) != 1 || second.Created[0].Type != "body" {
		t.Fatalf("resubmitting identical contents must not create rows: %+v", second.Created)
	}
	var count int
	if err := database.QueryRowContext(ctx, "SELECT COUNT(1) FROM sub_prompts WHERE type = 'intro'").Scan(&count); err != nil {
		t.Fatalf("count intro rows: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected a single intro row, got %d", count)
	}
}

func TestDuplicateTypeInCommit(t *testing.T) {
	database := openTestDB(t)

	files := []scan.File{
		mkFile(t, "01_intro.j2", "First intro"),
		mkFile(t, "02_intro.j2", "Second intro"),
	}
	_, err := Commit(context.Background(), database, CommitRequest{
		Message: "dup", Candidates: files, WorkingSet: files, Full: true,
	})
	if !errors.Is(err, ErrDuplicateTypeInCommit) {
		t.Fatalf("expected ErrDuplicateTypeInCommit, got %v", err)
	}
}

func TestPartialCommitRejectsNewType(t *testing.T) {
	database := openTestDB(t)

	header := mkFile(t, "01_header.j2", "Header")
	instruction := mkFile(t, "02_instruction.j2", "Instruction")
	commitFull(t, database, "first", header)

	_, err := Commit(context.Background(), database, CommitRequest{
		Message:    "add instruction",
		Candidates: []scan.File{instruction},
		WorkingSet: []scan.File{header, instruction},
		Full:       false,
	})
	if !errors.Is(err, ErrPartialCommitAddsNewType) {
		t.Fatalf("expected ErrPartialCommitAddsNewType, got %v", err)
	}
	assertCounts(t, database, 1, 1)
}

func TestPartialCommitRejectsMissingWorkingFile(t *testing.T) {
	database := openTestDB(t)

	header := mkFile(t, "01_header.j2", "Header")
	consideration := mkFile(t, "02_consideration.j2", "Consideration")
	instruction := mkFile(t, "03_instruction.j2", "Instruction")
	commitFull(t, database, "all three", header, consideration, instruction)

	// instruction's file is gone from the working directory
	updated := mkFile(t, "02_consideration.j2", "Consideration v2")
	_, err := Commit(context.Background(), database, CommitRequest{
		Message:    "update consideration",
		Candidates: []scan.File{updated},
		WorkingSet: []scan.File{header, updated},
		Full:       false,
	})
	if !errors.Is(err, ErrPartialCommitMissingCwdFile) {
		t.Fatalf("expected ErrPartialCommitMissingCwdFile, got %v", err)
	}
	assertCounts(t, database, 3, 1)
}

func TestPartialUpdatePreservesOrder(t *testing.T) {
	ctx := context.Background()
	database := openTestDB(t)

	header := mkFile(t, "01_header.j2", "Header")
	consideration := mkFile(t, "02_consideration.j2", "Consideration v1")
	instruction := mkFile(t, "03_instruction.j2", "Instruction")
	first := commitFull(t, database, "all three", header, consideration, instruction)

	updated := mkFile(t, "02_consideration.j2", "Consideration v2")
	second, err := Commit(ctx, database, CommitRequest{
		Message:    "update consideration",
		Candidates: []scan.File{updated},
		WorkingSet: []scan.File{header, updated, instruction},
		Full:       false,
	})
	if err != nil {
		t.Fatalf("partial commit: %v", err)
	}

	subs, err := db.GetSubPromptsByIDs(ctx, database, second.MemberIDs)
	if err != nil {
		t.Fatalf("resolve members: %v", err)
	}
	types := make([]string, len(subs))
	for i, sub := range subs {
		types[i] = sub.Type
	}
	if !slices.Equal(types, []string{"header", "consideration", "instruction"}) {
		t.Fatalf("unexpected member order: %v", types)
	}
	// retained members keep their ids, the updated one is re-versioned
	if second.MemberIDs[0] != first.MemberIDs[0] || second.MemberIDs[2] != first.MemberIDs[2] {
		t.Fatalf("retained members must keep their ids: %v vs %v", second.MemberIDs, first.MemberIDs)
	}
	if subs[1].Version != "2" {
		t.Fatalf("unexpected updated version: got %q want %q", subs[1].Version, "2")
	}
}

func TestFullCommitDropsTypesWithoutWorkingFiles(t *testing.T) {
	ctx := context.Background()
	database := openTestDB(t)

	intro := mkFile(t, "01_intro.j2", "Intro")
	body := mkFile(t, "02_body.j2", "Body")
	conclusion := mkFile(t, "03_conclusion.j2", "Conclusion")
	commitFull(t, database, "all three", intro, body, conclusion)

	second := commitFull(t, database, "remove conclusion", intro, body)

	subs, err := db.GetSubPromptsByIDs(ctx, database, second.MemberIDs)
	if err != nil {
		t.Fatalf("resolve members: %v", err)
	}
	types := make([]string, len(subs))
	for i, sub := range subs {
		types[i] = sub.Type
	}
	if !slices.Equal(types, []string{"intro", "body"}) {
		t.Fatalf("unexpected members after drop: %v", types)
	}
}

func TestBranchOverride(t *testing.T) {
	ctx := context.Background()
	database := openTestDB(t)

	first := commitFull(t, database, "v1", mkFile(t, "01_intro.j2", "A"))
	commitFull(t, database, "v2", mkFile(t, "01_intro.j2", "A2"))

	branchFile := mkFile(t, "01_intro.j2", "C")
	res, err := Commit(ctx, database, CommitRequest{
		Message:       "branch from v1",
		Candidates:    []scan.File{branchFile},
		WorkingSet:    []scan.File{branchFile},
		Full:          false,
		BranchParents: map[string]int64{branchFile.Path: first.MemberIDs[0]},
	})
	if err != nil {
		t.Fatalf("branch commit: %v", err)
	}

	if len(res.Created) != 1 || res.Created[0].Version != "1.1" || !res.Created[0].Branched {
		t.Fatalf("unexpected branched sub-prompt: %+v", res.Created)
	}
	if res.Version != "3" {
		t.Fatalf("master version must take the plain increment: got %q want %q", res.Version, "3")
	}
	if !slices.Equal(res.Branched, []string{"intro"}) {
		t.Fatalf("expected intro to be classified branched: %v", res.Branched)
	}

	sub, err := db.GetSubPromptByID(ctx, database, res.Created[0].ID)
	if err != nil {
		t.Fatalf("load branched row: %v", err)
	}
	if sub.ParentID == nil || *sub.ParentID != first.MemberIDs[0] {
		t.Fatalf("branched row must point at the override parent: %+v", sub)
	}
}

func TestBranchOverrideFromDeepVersion(t *testing.T) {
	ctx := context.Background()
	database := openTestDB(t)

	// Current state: intro at "4.3" under master "7", as a long history would
	// leave it.
	tx, err := database.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	introID, err := db.InsertSubPromptTx(ctx, tx, db.SubPrompt{
		Type: "intro", Version: "4.3", Contents: "A", CommitMessage: "m",
	})
	if err != nil {
		t.Fatalf("insert intro: %v", err)
	}
	contents, err := db.EncodeMemberIDs([]int64{introID})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := db.InsertMasterPromptTx(ctx, tx, db.MasterPrompt{
		Version: "7", Contents: contents, IsCurrent: true, CommitMessage: "m",
	}); err != nil {
		t.Fatalf("insert master: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	branchFile := mkFile(t, "01_intro.j2", "C")
	res, err := Commit(ctx, database, CommitRequest{
		Message:       "branch intro",
		Candidates:    []scan.File{branchFile},
		WorkingSet:    []scan.File{branchFile},
		Full:          false,
		BranchParents: map[string]int64{branchFile.Path: introID},
	})
	if err != nil {
		t.Fatalf("branch commit: %v", err)
	}

	if len(res.Created) != 1 || res.Created[0].Version != "4.3.1" || !res.Created[0].Branched {
		t.Fatalf("unexpected branched sub-prompt: %+v", res.Created)
	}
	if res.Version != "8" {
		t.Fatalf("master version must take the plain increment: got %q want %q", res.Version, "8")
	}
	if !slices.Equal(res.Branched, []string{"intro"}) {
		t.Fatalf("expected intro to be classified branched: %v", res.Branched)
	}
}

func TestBranchOverrideRejectsTypeMismatch(t *testing.T) {
	database := openTestDB(t)

	first := commitFull(t, database, "init",
		mkFile(t, "01_intro.j2", "A"),
		mkFile(t, "02_body.j2", "B"))

	branchFile := mkFile(t, "02_body.j2", "B-branch")
	_, err := Commit(context.Background(), database, CommitRequest{
		Message:       "bad parent",
		Candidates:    []scan.File{branchFile},
		WorkingSet:    []scan.File{mkFile(t, "01_intro.j2", "A"), branchFile},
		Full:          false,
		BranchParents: map[string]int64{branchFile.Path: first.MemberIDs[0]}, // intro row
	})
	if !errors.Is(err, ErrBranchParent) {
		t.Fatalf("expected ErrBranchParent, got %v", err)
	}
}

func TestContentsCollisionAcrossTypes(t *testing.T) {
	database := openTestDB(t)

	commitFull(t, database, "init", mkFile(t, "01_intro.j2", "shared"))

	files := []scan.File{
		mkFile(t, "01_intro.j2", "shared"),
		mkFile(t, "02_body.j2", "shared"),
	}
	_, err := Commit(context.Background(), database, CommitRequest{
		Message: "collide", Candidates: files, WorkingSet: files, Full: true,
	})
	if !errors.Is(err, ErrDuplicateContents) {
		t.Fatalf("expected ErrDuplicateContents, got %v", err)
	}
}

func TestRecommittingHistoricalSnapshotFails(t *testing.T) {
	database := openTestDB(t)

	intro := mkFile(t, "01_intro.j2", "A")
	commitFull(t, database, "first", intro)
	commitFull(t, database, "second", intro, mkFile(t, "02_body.j2", "B"))

	_, err := Commit(context.Background(), database, CommitRequest{
		Message: "back to first", Candidates: []scan.File{intro}, WorkingSet: []scan.File{intro}, Full: true,
	})
	if !errors.Is(err, ErrDuplicateContents) {
		t.Fatalf("expected ErrDuplicateContents for historical snapshot, got %v", err)
	}
}

func TestDuplicateTypeInCurrentDetected(t *testing.T) {
	ctx := context.Background()
	database := openTestDB(t)

	// Simulate external corruption: two rows of one type referenced by the
	// current master.
	tx, err := database.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	a, err := db.InsertSubPromptTx(ctx, tx, db.SubPrompt{Type: "intro", Version: "1", Contents: "A", CommitMessage: "m"})
	if err != nil {
		t.Fatalf("insert a: %v", err)
	}
	b, err := db.InsertSubPromptTx(ctx, tx, db.SubPrompt{Type: "intro", Version: "2", Contents: "B", CommitMessage: "m"})
	if err != nil {
		t.Fatalf("insert b: %v", err)
	}
	contents, err := db.EncodeMemberIDs([]int64{a, b})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := db.InsertMasterPromptTx(ctx, tx, db.MasterPrompt{
		Version: "1", Contents: contents, IsCurrent: true, CommitMessage: "m",
	}); err != nil {
		t.Fatalf("insert master: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	files := []scan.File{mkFile(t, "01_intro.j2", "C")}
	_, err = Commit(ctx, database, CommitRequest{
		Message: "next", Candidates: files, WorkingSet: files, Full: true,
	})
	if !errors.Is(err, ErrDuplicateTypeInCurrent) {
		t.Fatalf("expected ErrDuplicateTypeInCurrent, got %v", err)
	}
}

func TestEmptyMessageRejected(t *testing.T) {
	database := openTestDB(t)

	files := []scan.File{mkFile(t, "01_intro.j2", "A")}
	_, err := Commit(context.Background(), database, CommitRequest{
		Message: "  ", Candidates: files, WorkingSet: files, Full: true,
	})
	if !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("expected ErrEmptyMessage, got %v", err)
	}
}

func TestEmptyCandidateSetIsNoOp(t *testing.T) {
	database := openTestDB(t)

	res, err := Commit(context.Background(), database, CommitRequest{Message: "nothing", Full: true})
	if err != nil {
		t.Fatalf("empty commit: %v", err)
	}
	if !res.NoChanges {
		t.Fatalf("expected no-op for empty candidate set")
	}
}

func TestValidationFailureWritesNothing(t *testing.T) {
	database := openTestDB(t)

	files := []scan.File{
		mkFile(t, "01_intro.j2", "fine"),
		mkFile(t, "02_body.j2", "broken"),
	}
	_, err := Commit(context.Background(), database, CommitRequest{
		Message:    "validated",
		Candidates: files,
		WorkingSet: files,
		Full:       true,
		ValidateTemplate: func(contents string) error {
			if contents == "broken" {
				return errors.New("syntax error")
			}
			return nil
		},
	})
	if err == nil {
		t.Fatalf("expected validation failure")
	}
	assertCounts(t, database, 0, 0)
}

func assertCounts(t *testing.T, database *sql.DB, subs, masters int) {
	t.Helper()
	ctx := context.Background()
	var gotSubs, gotMasters int
	if err := database.QueryRowContext(ctx, "SELECT COUNT(1) FROM sub_prompts").Scan(&gotSubs); err != nil {
		t.Fatalf("count sub_prompts: %v", err)
	}
	if err := database.QueryRowContext(ctx, "SELECT COUNT(1) FROM master_prompts").Scan(&gotMasters); err != nil {
		t.Fatalf("count master_prompts: %v", err)
	}
	if gotSubs != subs || gotMasters != masters {
		t.Fatalf("unexpected row counts: sub_prompts %d (want %d), master_prompts %d (want %d)",
			gotSubs, subs, gotMasters, masters)
	}
}
