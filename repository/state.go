package repository

import (
	"context"

	"gitdock/conflict"
	"gitdock/git"
	"gitdock/patch"
	"gitdock/snapshot"
)

// StateName identifies a lifecycle state.
type StateName string

const (
	// StateLoading probes an expected repository; calls queue behind
	// the probe.
	StateLoading StateName = "loading"
	// StateLoadingGuess is loading without the expectation: the caller
	// is only guessing a repository might be there.
	StateLoadingGuess StateName = "loading-guess"
	// StateAbsent is a settled "no repository here".
	StateAbsent StateName = "absent"
	// StateAbsentGuess is the settled form of a failed guess.
	StateAbsentGuess StateName = "absent-guess"
	// StatePresent serves the full operation surface.
	StatePresent StateName = "present"
	// StateDestroyed is terminal; every call fails fast.
	StateDestroyed StateName = "destroyed"
)

func isLoadingName(n StateName) bool {
	return n == StateLoading || n == StateLoadingGuess
}

// PatchOptions selects which file patch variant an operation reads:
// the unstaged diff, the staged diff, or the staged diff relative to
// the parent commit while amending.
type PatchOptions struct {
	Staged   bool
	Amending bool
}

type CommitOptions struct {
	Amend      bool
	AllowEmpty bool
}

type PushOptions struct {
	Force       bool
	SetUpstream bool
}

type ConfigOptions struct {
	Local bool
}

// state is the closed set of lifecycle variants. Every public
// operation has exactly one entry here, so adding an operation without
// defining it for every state refuses to compile.
type state interface {
	name() StateName
	isEmpty() bool

	init(ctx context.Context, path string) error
	clone(ctx context.Context, url, dest string) error

	isMerging(ctx context.Context) (bool, error)
	unstagedChanges(ctx context.Context) ([]git.ChangedFile, error)
	stagedChanges(ctx context.Context) ([]git.ChangedFile, error)
	stagedChangesSinceParent(ctx context.Context) ([]git.ChangedFile, error)
	filePatchForPath(ctx context.Context, path string, opts PatchOptions) (*patch.FilePatch, error)
	readFileFromIndex(ctx context.Context, path string) ([]byte, error)
	isPartiallyStaged(ctx context.Context, path string) (bool, error)
	mergeConflicts(ctx context.Context) ([]conflict.Conflict, error)
	pathHasMergeMarkers(ctx context.Context, path string) (bool, error)
	lastCommit(ctx context.Context) (*git.Commit, error)
	recentCommits(ctx context.Context, limit int) ([]*git.Commit, error)
	branches(ctx context.Context) ([]git.Branch, error)
	currentBranch(ctx context.Context) (git.Branch, error)
	remotes(ctx context.Context) ([]git.Remote, error)
	remoteForBranch(ctx context.Context, branch string) (git.Remote, error)
	aheadCount(ctx context.Context, branch string) (int, error)
	behindCount(ctx context.Context, branch string) (int, error)
	getConfig(ctx context.Context, key string, opts ConfigOptions) (string, error)

	stageFiles(ctx context.Context, paths []string) error
	unstageFiles(ctx context.Context, paths []string) error
	stageFilesFromParentCommit(ctx context.Context, paths []string) error
	applyPatchToIndex(ctx context.Context, p *patch.FilePatch) error
	commit(ctx context.Context, message string, opts CommitOptions) error
	merge(ctx context.Context, ref string) error
	abortMerge(ctx context.Context) error
	fetch(ctx context.Context, branch string) error
	pull(ctx context.Context, branch string) error
	push(ctx context.Context, branch string, opts PushOptions) error
	setConfig(ctx context.Context, key, value string, opts ConfigOptions) error
	discardWorkDirChanges(ctx context.Context, paths []string) error

	storeBeforeAndAfterBlobs(ctx context.Context, paths []string, isSafe func() bool, mutate func() error, group string) (*snapshot.Snapshot, error)
	createDiscardHistoryBlob(ctx context.Context) (string, error)
	updateDiscardHistory(ctx context.Context) error
	popDiscardHistory(ctx context.Context) (*snapshot.Snapshot, error)
	discardHistory() []snapshot.Snapshot
}
