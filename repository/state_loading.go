package repository

import (
	"context"

	"gitdock/conflict"
	"gitdock/git"
	"gitdock/patch"
	"gitdock/snapshot"
)

// loadingState queues every operation behind the probe: each call
// waits for the load to settle and then re-dispatches against the
// settled state, so callers never observe a half-loaded repository.
type loadingState struct {
	repo  *Repository
	guess bool
}

func (s *loadingState) name() StateName {
	if s.guess {
		return StateLoadingGuess
	}
	return StateLoading
}

func (s *loadingState) isEmpty() bool { return false }

// settled blocks until the probe finishes and returns whichever state
// it settled into.
func (s *loadingState) settled(ctx context.Context) (state, error) {
	if err := s.repo.WaitLoaded(ctx); err != nil {
		return nil, err
	}
	return s.repo.state(), nil
}

func (s *loadingState) init(ctx context.Context, path string) error {
	st, err := s.settled(ctx)
	if err != nil {
		return err
	}
	return st.init(ctx, path)
}

func (s *loadingState) clone(ctx context.Context, url, dest string) error {
	st, err := s.settled(ctx)
	if err != nil {
		return err
	}
	return st.clone(ctx, url, dest)
}

func (s *loadingState) isMerging(ctx context.Context) (bool, error) {
	st, err := s.settled(ctx)
	if err != nil {
		return false, err
	}
	return st.isMerging(ctx)
}

func (s *loadingState) unstagedChanges(ctx context.Context) ([]git.ChangedFile, error) {
	st, err := s.settled(ctx)
	if err != nil {
		return nil, err
	}
	return st.unstagedChanges(ctx)
}

func (s *loadingState) stagedChanges(ctx context.Context) ([]git.ChangedFile, error) {
	st, err := s.settled(ctx)
	if err != nil {
		return nil, err
	}
	return st.stagedChanges(ctx)
}

func (s *loadingState) stagedChangesSinceParent(ctx context.Context) ([]git.ChangedFile, error) {
	st, err := s.settled(ctx)
	if err != nil {
		return nil, err
	}
	return st.stagedChangesSinceParent(ctx)
}

func (s *loadingState) filePatchForPath(ctx context.Context, path string, opts PatchOptions) (*patch.FilePatch, error) {
	st, err := s.settled(ctx)
	if err != nil {
		return nil, err
	}
	return st.filePatchForPath(ctx, path, opts)
}

func (s *loadingState) readFileFromIndex(ctx context.Context, path string) ([]byte, error) {
	st, err := s.settled(ctx)
	if err != nil {
		return nil, err
	}
	return st.readFileFromIndex(ctx, path)
}

func (s *loadingState) isPartiallyStaged(ctx context.Context, path string) (bool, error) {
	st, err := s.settled(ctx)
	if err != nil {
		return false, err
	}
	return st.isPartiallyStaged(ctx, path)
}

func (s *loadingState) mergeConflicts(ctx context.Context) ([]conflict.Conflict, error) {
	st, err := s.settled(ctx)
	if err != nil {
		return nil, err
	}
	return st.mergeConflicts(ctx)
}

func (s *loadingState) pathHasMergeMarkers(ctx context.Context, path string) (bool, error) {
	st, err := s.settled(ctx)
	if err != nil {
		return false, err
	}
	return st.pathHasMergeMarkers(ctx, path)
}

func (s *loadingState) lastCommit(ctx context.Context) (*git.Commit, error) {
	st, err := s.settled(ctx)
	if err != nil {
		return nil, err
	}
	return st.lastCommit(ctx)
}

func (s *loadingState) recentCommits(ctx context.Context, limit int) ([]*git.Commit, error) {
	st, err := s.settled(ctx)
	if err != nil {
		return nil, err
	}
	return st.recentCommits(ctx, limit)
}

func (s *loadingState) branches(ctx context.Context) ([]git.Branch, error) {
	st, err := s.settled(ctx)
	if err != nil {
		return nil, err
	}
	return st.branches(ctx)
}

func (s *loadingState) currentBranch(ctx context.Context) (git.Branch, error) {
	st, err := s.settled(ctx)
	if err != nil {
		return git.Branch{}, err
	}
	return st.currentBranch(ctx)
}

func (s *loadingState) remotes(ctx context.Context) ([]git.Remote, error) {
	st, err := s.settled(ctx)
	if err != nil {
		return nil, err
	}
	return st.remotes(ctx)
}

func (s *loadingState) remoteForBranch(ctx context.Context, branch string) (git.Remote, error) {
	st, err := s.settled(ctx)
	if err != nil {
		return git.Remote{}, err
	}
	return st.remoteForBranch(ctx, branch)
}

func (s *loadingState) aheadCount(ctx context.Context, branch string) (int, error) {
	st, err := s.settled(ctx)
	if err != nil {
		return 0, err
	}
	return st.aheadCount(ctx, branch)
}

func (s *loadingState) behindCount(ctx context.Context, branch string) (int, error) {
	st, err := s.settled(ctx)
	if err != nil {
		return 0, err
	}
	return st.behindCount(ctx, branch)
}

func (s *loadingState) getConfig(ctx context.Context, key string, opts ConfigOptions) (string, error) {
	st, err := s.settled(ctx)
	if err != nil {
		return "", err
	}
	return st.getConfig(ctx, key, opts)
}

func (s *loadingState) stageFiles(ctx context.Context, paths []string) error {
	st, err := s.settled(ctx)
	if err != nil {
		return err
	}
	return st.stageFiles(ctx, paths)
}

func (s *loadingState) unstageFiles(ctx context.Context, paths []string) error {
	st, err := s.settled(ctx)
	if err != nil {
		return err
	}
	return st.unstageFiles(ctx, paths)
}

func (s *loadingState) stageFilesFromParentCommit(ctx context.Context, paths []string) error {
	st, err := s.settled(ctx)
	if err != nil {
		return err
	}
	return st.stageFilesFromParentCommit(ctx, paths)
}

func (s *loadingState) applyPatchToIndex(ctx context.Context, p *patch.FilePatch) error {
	st, err := s.settled(ctx)
	if err != nil {
		return err
	}
	return st.applyPatchToIndex(ctx, p)
}

func (s *loadingState) commit(ctx context.Context, message string, opts CommitOptions) error {
	st, err := s.settled(ctx)
	if err != nil {
		return err
	}
	return st.commit(ctx, message, opts)
}

func (s *loadingState) merge(ctx context.Context, ref string) error {
	st, err := s.settled(ctx)
	if err != nil {
		return err
	}
	return st.merge(ctx, ref)
}

func (s *loadingState) abortMerge(ctx context.Context) error {
	st, err := s.settled(ctx)
	if err != nil {
		return err
	}
	return st.abortMerge(ctx)
}

func (s *loadingState) fetch(ctx context.Context, branch string) error {
	st, err := s.settled(ctx)
	if err != nil {
		return err
	}
	return st.fetch(ctx, branch)
}

func (s *loadingState) pull(ctx context.Context, branch string) error {
	st, err := s.settled(ctx)
	if err != nil {
		return err
	}
	return st.pull(ctx, branch)
}

func (s *loadingState) push(ctx context.Context, branch string, opts PushOptions) error {
	st, err := s.settled(ctx)
	if err != nil {
		return err
	}
	return st.push(ctx, branch, opts)
}

func (s *loadingState) setConfig(ctx context.Context, key, value string, opts ConfigOptions) error {
	st, err := s.settled(ctx)
	if err != nil {
		return err
	}
	return st.setConfig(ctx, key, value, opts)
}

func (s *loadingState) discardWorkDirChanges(ctx context.Context, paths []string) error {
	st, err := s.settled(ctx)
	if err != nil {
		return err
	}
	return st.discardWorkDirChanges(ctx, paths)
}

func (s *loadingState) storeBeforeAndAfterBlobs(ctx context.Context, paths []string, isSafe func() bool, mutate func() error, group string) (*snapshot.Snapshot, error) {
	st, err := s.settled(ctx)
	if err != nil {
		return nil, err
	}
	return st.storeBeforeAndAfterBlobs(ctx, paths, isSafe, mutate, group)
}

func (s *loadingState) createDiscardHistoryBlob(ctx context.Context) (string, error) {
	st, err := s.settled(ctx)
	if err != nil {
		return "", err
	}
	return st.createDiscardHistoryBlob(ctx)
}

func (s *loadingState) updateDiscardHistory(ctx context.Context) error {
	st, err := s.settled(ctx)
	if err != nil {
		return err
	}
	return st.updateDiscardHistory(ctx)
}

func (s *loadingState) popDiscardHistory(ctx context.Context) (*snapshot.Snapshot, error) {
	st, err := s.settled(ctx)
	if err != nil {
		return nil, err
	}
	return st.popDiscardHistory(ctx)
}

// discardHistory has no ctx to wait with; before the load settles
// there is nothing to report.
func (s *loadingState) discardHistory() []snapshot.Snapshot { return nil }
