package engine

import "errors"

// Every failure mode of the engine is a distinct sentinel; commands match
// with errors.Is and surface the wrapped detail. All are terminal for the
// invoking command.
var (
	// ErrEmptyMessage: commit invoked without a commit message.
	ErrEmptyMessage = errors.New("commit message is required")

	// ErrDuplicateTypeInCommit: two candidates in one commit share a type.
	ErrDuplicateTypeInCommit = errors.New("multiple files with the same sub-prompt type in commit")

	// ErrDuplicateTypeInCurrent: the current master already references two
	// sub-prompts of the same type (external corruption).
	ErrDuplicateTypeInCurrent = errors.New("current master has a duplicate sub-prompt type")

	// ErrPartialCommitAddsNewType: a partial commit may not introduce a type
	// absent from the current master; adding a type requires a full commit so
	// ordering is unambiguous.
	ErrPartialCommitAddsNewType = errors.New("partial commit adds a new sub-prompt type; run a full commit")

	// ErrPartialCommitMissingCwdFile: a partial commit keeps a type for which
	// no working file exists, so its position cannot be established.
	ErrPartialCommitMissingCwdFile = errors.New("partial commit keeps a sub-prompt type with no working file")

	// ErrDuplicateContents: candidate contents collide with a stored row of a
	// different type, or a snapshot identical to a historical master.
	ErrDuplicateContents = errors.New("duplicate contents")

	// ErrNoCurrentMaster: no master prompt is flagged current.
	ErrNoCurrentMaster = errors.New("no current master prompt")

	// ErrNoPreviousMaster: the current master has no parent to revert to.
	ErrNoPreviousMaster = errors.New("no previous master to revert to")

	// ErrMasterNotFound: an explicitly keyed master id does not exist.
	ErrMasterNotFound = errors.New("master prompt not found")

	// ErrDanglingReference: a master references a sub-prompt row that does
	// not exist (corruption signal).
	ErrDanglingReference = errors.New("master references a missing sub-prompt")

	// ErrBranchParent: a branch override names a parent sub-prompt that does
	// not exist or whose type does not match the candidate.
	ErrBranchParent = errors.New("invalid branch parent")
)
