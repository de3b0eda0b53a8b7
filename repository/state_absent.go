package repository

import (
	"context"

	"gitdock/conflict"
	"gitdock/git"
	"gitdock/patch"
	"gitdock/snapshot"
)

// absentState is a settled "no repository here". Content operations
// fail immediately with ErrAbsent; init and clone are the two ways
// out, relaunching the load once the underlying repository exists.
type absentState struct {
	repo  *Repository
	guess bool
}

func (s *absentState) name() StateName {
	if s.guess {
		return StateAbsentGuess
	}
	return StateAbsent
}

func (s *absentState) isEmpty() bool { return true }

func (s *absentState) init(ctx context.Context, path string) error {
	drv, err := s.repo.bindWorkdir(path)
	if err != nil {
		return err
	}
	if err := drv.Init(ctx); err != nil {
		return err
	}
	s.repo.relaunch(false)
	return s.repo.WaitLoaded(ctx)
}

func (s *absentState) clone(ctx context.Context, url, dest string) error {
	drv, err := s.repo.bindWorkdir(dest)
	if err != nil {
		return err
	}
	if err := drv.Clone(ctx, url); err != nil {
		return err
	}
	s.repo.relaunch(false)
	return s.repo.WaitLoaded(ctx)
}

// isMerging is answerable without a repository: nothing absent is
// mid-merge.
func (s *absentState) isMerging(context.Context) (bool, error) {
	return false, nil
}

func (s *absentState) unstagedChanges(context.Context) ([]git.ChangedFile, error) {
	return nil, ErrAbsent
}

func (s *absentState) stagedChanges(context.Context) ([]git.ChangedFile, error) {
	return nil, ErrAbsent
}

func (s *absentState) stagedChangesSinceParent(context.Context) ([]git.ChangedFile, error) {
	return nil, ErrAbsent
}

func (s *absentState) filePatchForPath(context.Context, string, PatchOptions) (*patch.FilePatch, error) {
	return nil, ErrAbsent
}

func (s *absentState) readFileFromIndex(context.Context, string) ([]byte, error) {
	return nil, ErrAbsent
}

func (s *absentState) isPartiallyStaged(context.Context, string) (bool, error) {
	return false, ErrAbsent
}

func (s *absentState) mergeConflicts(context.Context) ([]conflict.Conflict, error) {
	return nil, ErrAbsent
}

func (s *absentState) pathHasMergeMarkers(context.Context, string) (bool, error) {
	return false, ErrAbsent
}

func (s *absentState) lastCommit(context.Context) (*git.Commit, error) {
	return nil, ErrAbsent
}

func (s *absentState) recentCommits(context.Context, int) ([]*git.Commit, error) {
	return nil, ErrAbsent
}

func (s *absentState) branches(context.Context) ([]git.Branch, error) {
	return nil, ErrAbsent
}

func (s *absentState) currentBranch(context.Context) (git.Branch, error) {
	return git.Branch{}, ErrAbsent
}

func (s *absentState) remotes(context.Context) ([]git.Remote, error) {
	return nil, ErrAbsent
}

func (s *absentState) remoteForBranch(context.Context, string) (git.Remote, error) {
	return git.Remote{}, ErrAbsent
}

func (s *absentState) aheadCount(context.Context, string) (int, error) {
	return 0, ErrAbsent
}

func (s *absentState) behindCount(context.Context, string) (int, error) {
	return 0, ErrAbsent
}

func (s *absentState) getConfig(context.Context, string, ConfigOptions) (string, error) {
	return "", ErrAbsent
}

func (s *absentState) stageFiles(context.Context, []string) error   { return ErrAbsent }
func (s *absentState) unstageFiles(context.Context, []string) error { return ErrAbsent }

func (s *absentState) stageFilesFromParentCommit(context.Context, []string) error {
	return ErrAbsent
}

func (s *absentState) applyPatchToIndex(context.Context, *patch.FilePatch) error {
	return ErrAbsent
}

func (s *absentState) commit(context.Context, string, CommitOptions) error { return ErrAbsent }
func (s *absentState) merge(context.Context, string) error                 { return ErrAbsent }
func (s *absentState) abortMerge(context.Context) error                    { return ErrAbsent }
func (s *absentState) fetch(context.Context, string) error                 { return ErrAbsent }
func (s *absentState) pull(context.Context, string) error                  { return ErrAbsent }

func (s *absentState) push(context.Context, string, PushOptions) error {
	return ErrAbsent
}

func (s *absentState) setConfig(context.Context, string, string, ConfigOptions) error {
	return ErrAbsent
}

func (s *absentState) discardWorkDirChanges(context.Context, []string) error {
	return ErrAbsent
}

func (s *absentState) storeBeforeAndAfterBlobs(context.Context, []string, func() bool, func() error, string) (*snapshot.Snapshot, error) {
	return nil, ErrAbsent
}

func (s *absentState) createDiscardHistoryBlob(context.Context) (string, error) {
	return "", ErrAbsent
}

func (s *absentState) updateDiscardHistory(context.Context) error { return ErrAbsent }

func (s *absentState) popDiscardHistory(context.Context) (*snapshot.Snapshot, error) {
	return nil, ErrAbsent
}

func (s *absentState) discardHistory() []snapshot.Snapshot { return nil }
