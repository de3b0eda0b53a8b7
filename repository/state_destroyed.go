package repository

import (
	"context"

	"gitdock/conflict"
	"gitdock/git"
	"gitdock/patch"
	"gitdock/snapshot"
)

// destroyedState is terminal: every operation fails with ErrDestroyed
// without touching the queue, the caches, or the filesystem.
type destroyedState struct{}

func (destroyedState) name() StateName { return StateDestroyed }
func (destroyedState) isEmpty() bool   { return false }

func (destroyedState) init(context.Context, string) error          { return ErrDestroyed }
func (destroyedState) clone(context.Context, string, string) error { return ErrDestroyed }

func (destroyedState) isMerging(context.Context) (bool, error) {
	return false, ErrDestroyed
}

func (destroyedState) unstagedChanges(context.Context) ([]git.ChangedFile, error) {
	return nil, ErrDestroyed
}

func (destroyedState) stagedChanges(context.Context) ([]git.ChangedFile, error) {
	return nil, ErrDestroyed
}

func (destroyedState) stagedChangesSinceParent(context.Context) ([]git.ChangedFile, error) {
	return nil, ErrDestroyed
}

func (destroyedState) filePatchForPath(context.Context, string, PatchOptions) (*patch.FilePatch, error) {
	return nil, ErrDestroyed
}

func (destroyedState) readFileFromIndex(context.Context, string) ([]byte, error) {
	return nil, ErrDestroyed
}

func (destroyedState) isPartiallyStaged(context.Context, string) (bool, error) {
	return false, ErrDestroyed
}

func (destroyedState) mergeConflicts(context.Context) ([]conflict.Conflict, error) {
	return nil, ErrDestroyed
}

func (destroyedState) pathHasMergeMarkers(context.Context, string) (bool, error) {
	return false, ErrDestroyed
}

func (destroyedState) lastCommit(context.Context) (*git.Commit, error) {
	return nil, ErrDestroyed
}

func (destroyedState) recentCommits(context.Context, int) ([]*git.Commit, error) {
	return nil, ErrDestroyed
}

func (destroyedState) branches(context.Context) ([]git.Branch, error) {
	return nil, ErrDestroyed
}

func (destroyedState) currentBranch(context.Context) (git.Branch, error) {
	return git.Branch{}, ErrDestroyed
}

func (destroyedState) remotes(context.Context) ([]git.Remote, error) {
	return nil, ErrDestroyed
}

func (destroyedState) remoteForBranch(context.Context, string) (git.Remote, error) {
	return git.Remote{}, ErrDestroyed
}

func (destroyedState) aheadCount(context.Context, string) (int, error) {
	return 0, ErrDestroyed
}

func (destroyedState) behindCount(context.Context, string) (int, error) {
	return 0, ErrDestroyed
}

func (destroyedState) getConfig(context.Context, string, ConfigOptions) (string, error) {
	return "", ErrDestroyed
}

func (destroyedState) stageFiles(context.Context, []string) error   { return ErrDestroyed }
func (destroyedState) unstageFiles(context.Context, []string) error { return ErrDestroyed }

func (destroyedState) stageFilesFromParentCommit(context.Context, []string) error {
	return ErrDestroyed
}

func (destroyedState) applyPatchToIndex(context.Context, *patch.FilePatch) error {
	return ErrDestroyed
}

func (destroyedState) commit(context.Context, string, CommitOptions) error { return ErrDestroyed }
func (destroyedState) merge(context.Context, string) error                 { return ErrDestroyed }
func (destroyedState) abortMerge(context.Context) error                    { return ErrDestroyed }
func (destroyedState) fetch(context.Context, string) error                 { return ErrDestroyed }
func (destroyedState) pull(context.Context, string) error                  { return ErrDestroyed }

func (destroyedState) push(context.Context, string, PushOptions) error {
	return ErrDestroyed
}

func (destroyedState) setConfig(context.Context, string, string, ConfigOptions) error {
	return ErrDestroyed
}

func (destroyedState) discardWorkDirChanges(context.Context, []string) error {
	return ErrDestroyed
}

func (destroyedState) storeBeforeAndAfterBlobs(context.Context, []string, func() bool, func() error, string) (*snapshot.Snapshot, error) {
	return nil, ErrDestroyed
}

func (destroyedState) createDiscardHistoryBlob(context.Context) (string, error) {
	return "", ErrDestroyed
}

func (destroyedState) updateDiscardHistory(context.Context) error { return ErrDestroyed }

func (destroyedState) popDiscardHistory(context.Context) (*snapshot.Snapshot, error) {
	return nil, ErrDestroyed
}

func (destroyedState) discardHistory() []snapshot.Snapshot { return nil }
