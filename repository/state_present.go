package repository

import (
	"context"
	"os"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"

	"gitdock/conflict"
	"gitdock/git"
	"gitdock/internal/cache"
	"gitdock/internal/commitmsg"
	"gitdock/patch"
	"gitdock/snapshot"
)

// presentState serves the full operation surface: reads memoize
// through the cache, mutations serialize through the queue and drop
// exactly the cache rows their class names in the invalidation table.
type presentState struct {
	repo   *Repository
	git    Driver
	gitDir string
	// snapshots is nil when the discard history store failed to open;
	// discards still work, undo does not.
	snapshots *snapshot.Store
}

func (s *presentState) name() StateName { return StatePresent }
func (s *presentState) isEmpty() bool   { return false }

func (s *presentState) init(context.Context, string) error {
	return ErrAlreadyPresent
}

func (s *presentState) clone(context.Context, string, string) error {
	return ErrAlreadyPresent
}

// fetchAs memoizes one read under key. Concurrent callers share a
// single computation, and repeated hits return the stored value
// itself until an invalidation drops it.
func fetchAs[T any](c *cache.Cache, key cache.Key, compute func() (T, error)) (T, error) {
	v, err := c.GetOrSet(key, func() (any, error) { return compute() })
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

// isMerging reads MERGE_HEAD liveness on every call: finishing or
// aborting a merge outside this process must show up immediately.
func (s *presentState) isMerging(ctx context.Context) (bool, error) {
	return s.git.MergeInProgress(ctx)
}

func (s *presentState) unstagedChanges(ctx context.Context) ([]git.ChangedFile, error) {
	return fetchAs(s.repo.cache, cache.Key{Group: GroupChangedFiles}, func() ([]git.ChangedFile, error) {
		status, err := s.git.Status(ctx)
		if err != nil {
			return nil, err
		}
		return status.Unstaged, nil
	})
}

func (s *presentState) stagedChanges(ctx context.Context) ([]git.ChangedFile, error) {
	return fetchAs(s.repo.cache, cache.Key{Group: GroupStagedChanges}, func() ([]git.ChangedFile, error) {
		return s.git.DiffNameStatus(ctx, git.DiffOptions{Staged: true})
	})
}

func (s *presentState) stagedChangesSinceParent(ctx context.Context) ([]git.ChangedFile, error) {
	return fetchAs(s.repo.cache, cache.Key{Group: GroupStagedChangesSinceParent}, func() ([]git.ChangedFile, error) {
		return s.git.DiffNameStatus(ctx, git.DiffOptions{Staged: true, Amending: true})
	})
}

func (s *presentState) filePatchForPath(ctx context.Context, path string, opts PatchOptions) (*patch.FilePatch, error) {
	return fetchAs(s.repo.cache, filePatchKey(path, opts), func() (*patch.FilePatch, error) {
		raw, err := s.git.DiffRaw(ctx, git.DiffOptions{
			Staged:   opts.Staged,
			Amending: opts.Amending,
			Paths:    []string{path},
		})
		if err != nil {
			return nil, err
		}
		return patch.ParseFile(raw)
	})
}

func (s *presentState) readFileFromIndex(ctx context.Context, path string) ([]byte, error) {
	return fetchAs(s.repo.cache, cache.Key{Group: GroupIndex, Scope: path}, func() ([]byte, error) {
		return s.git.ReadIndexFile(ctx, path)
	})
}

// isPartiallyStaged composes the two cached listings rather than
// shelling out again; any mutation that reshapes either listing also
// drops this key.
func (s *presentState) isPartiallyStaged(ctx context.Context, path string) (bool, error) {
	return fetchAs(s.repo.cache, cache.Key{Group: GroupPartiallyStaged, Scope: path}, func() (bool, error) {
		unstaged, err := s.unstagedChanges(ctx)
		if err != nil {
			return false, err
		}
		staged, err := s.stagedChanges(ctx)
		if err != nil {
			return false, err
		}
		return statusPaths(unstaged)[path] && statusPaths(staged)[path], nil
	})
}

// mergeConflicts is computed fresh on every call. Its inputs are live
// working-tree files as much as index entries, and the worktree can
// change under us without any mutation passing through this facade.
func (s *presentState) mergeConflicts(ctx context.Context) ([]conflict.Conflict, error) {
	entries, err := s.git.UnmergedEntries(ctx)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	probe := &worktreeProbe{ctx: ctx, root: s.repo.Dir(), driver: s.git}
	return conflict.Classify(entries, probe), nil
}

// pathHasMergeMarkers reads the file directly; a deleted file has no
// markers.
func (s *presentState) pathHasMergeMarkers(ctx context.Context, path string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	f, err := os.Open(filepath.Join(s.repo.Dir(), path))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	defer f.Close()
	return conflict.HasMergeMarkers(f)
}

func (s *presentState) lastCommit(ctx context.Context) (*git.Commit, error) {
	return fetchAs(s.repo.cache, cache.Key{Group: GroupLastCommit}, func() (*git.Commit, error) {
		return s.git.HeadCommit(ctx)
	})
}

func (s *presentState) recentCommits(ctx context.Context, limit int) ([]*git.Commit, error) {
	key := cache.Key{Group: GroupRecentCommits, Scope: strconv.Itoa(limit)}
	return fetchAs(s.repo.cache, key, func() ([]*git.Commit, error) {
		return s.git.RecentCommits(ctx, limit)
	})
}

func (s *presentState) branches(ctx context.Context) ([]git.Branch, error) {
	return fetchAs(s.repo.cache, cache.Key{Group: GroupBranches}, func() ([]git.Branch, error) {
		return s.git.Branches(ctx)
	})
}

func (s *presentState) currentBranch(ctx context.Context) (git.Branch, error) {
	return fetchAs(s.repo.cache, cache.Key{Group: GroupCurrentBranch}, func() (git.Branch, error) {
		return s.git.CurrentBranch(ctx)
	})
}

func (s *presentState) remotes(ctx context.Context) ([]git.Remote, error) {
	return fetchAs(s.repo.cache, cache.Key{Group: GroupRemotes}, func() ([]git.Remote, error) {
		return s.git.Remotes(ctx)
	})
}

// remoteForBranch composes two cached reads instead of caching its
// own result: setConfig and push invalidate those inputs, so the
// composition can never serve a remote the config no longer names.
func (s *presentState) remoteForBranch(ctx context.Context, branch string) (git.Remote, error) {
	name, err := s.getConfig(ctx, "branch."+branch+".remote", ConfigOptions{})
	if err != nil {
		return git.Remote{}, err
	}
	if name == "" {
		return git.Remote{}, git.ErrNoRemote
	}
	remotes, err := s.remotes(ctx)
	if err != nil {
		return git.Remote{}, err
	}
	for _, r := range remotes {
		if r.Name == name {
			return r, nil
		}
	}
	return git.Remote{Name: name}, nil
}

func (s *presentState) aheadCount(ctx context.Context, branch string) (int, error) {
	return fetchAs(s.repo.cache, cache.Key{Group: GroupAhead, Scope: branch}, func() (int, error) {
		return s.git.Ahead(ctx, branch)
	})
}

func (s *presentState) behindCount(ctx context.Context, branch string) (int, error) {
	return fetchAs(s.repo.cache, cache.Key{Group: GroupBehind, Scope: branch}, func() (int, error) {
		return s.git.Behind(ctx, branch)
	})
}

func (s *presentState) getConfig(ctx context.Context, key string, opts ConfigOptions) (string, error) {
	return fetchAs(s.repo.cache, configKey(key, opts), func() (string, error) {
		return s.git.ConfigGet(ctx, key, opts.Local)
	})
}

func (s *presentState) stageFiles(ctx context.Context, paths []string) error {
	return s.repo.enqueue(ctx, "stage", func(tctx context.Context) error {
		if err := s.git.Stage(tctx, paths); err != nil {
			return err
		}
		s.repo.invalidateFor(opStage, paths...)
		return nil
	})
}

func (s *presentState) unstageFiles(ctx context.Context, paths []string) error {
	return s.repo.enqueue(ctx, "unstage", func(tctx context.Context) error {
		if err := s.git.Unstage(tctx, paths); err != nil {
			return err
		}
		s.repo.invalidateFor(opStage, paths...)
		return nil
	})
}

func (s *presentState) stageFilesFromParentCommit(ctx context.Context, paths []string) error {
	return s.repo.enqueue(ctx, "stage-from-parent", func(tctx context.Context) error {
		if err := s.git.ResetPaths(tctx, "HEAD~", paths); err != nil {
			return err
		}
		s.repo.invalidateFor(opStage, paths...)
		return nil
	})
}

func (s *presentState) applyPatchToIndex(ctx context.Context, p *patch.FilePatch) error {
	return s.repo.enqueue(ctx, "apply-patch", func(tctx context.Context) error {
		if err := s.git.ApplyIndexPatch(tctx, p.Text()); err != nil {
			return err
		}
		s.repo.invalidateFor(opStage, patchPaths(p)...)
		return nil
	})
}

// patchPaths lists every path a patch touches, both sides of a rename
// included.
func patchPaths(p *patch.FilePatch) []string {
	if p.OldPath == "" || p.OldPath == p.NewPath {
		return []string{p.Path()}
	}
	if p.NewPath == "" {
		return []string{p.OldPath}
	}
	return []string{p.OldPath, p.NewPath}
}

func (s *presentState) commit(ctx context.Context, message string, opts CommitOptions) error {
	return s.repo.enqueue(ctx, "commit", func(tctx context.Context) error {
		cleaned := commitmsg.Format(message)
		if err := s.git.Commit(tctx, cleaned, git.CommitOptions{
			Amend:      opts.Amend,
			AllowEmpty: opts.AllowEmpty,
		}); err != nil {
			return err
		}
		s.repo.invalidateFor(opCommit)
		return nil
	})
}

// merge and pull invalidate even on failure: a conflicted merge has
// already rewritten the index and working tree by the time git
// reports it.
func (s *presentState) merge(ctx context.Context, ref string) error {
	return s.repo.enqueue(ctx, "merge", func(tctx context.Context) error {
		err := s.git.Merge(tctx, ref)
		s.repo.invalidateFor(opMerge)
		return err
	})
}

// abortMerge invalidates only on success: git refuses to abort when it
// would lose local changes, and a refused abort changes nothing.
func (s *presentState) abortMerge(ctx context.Context) error {
	return s.repo.enqueue(ctx, "abort-merge", func(tctx context.Context) error {
		if err := s.git.AbortMerge(tctx); err != nil {
			return err
		}
		s.repo.invalidateFor(opAbortMerge)
		return nil
	})
}

func (s *presentState) fetch(ctx context.Context, branch string) error {
	return s.repo.enqueue(ctx, "fetch", func(tctx context.Context) error {
		err := s.git.Fetch(tctx, branch)
		s.repo.invalidateFor(opFetch)
		return err
	})
}

func (s *presentState) pull(ctx context.Context, branch string) error {
	return s.repo.enqueue(ctx, "pull", func(tctx context.Context) error {
		err := s.git.Pull(tctx, branch)
		s.repo.invalidateFor(opPull)
		return err
	})
}

func (s *presentState) push(ctx context.Context, branch string, opts PushOptions) error {
	return s.repo.enqueue(ctx, "push", func(tctx context.Context) error {
		if err := s.git.Push(tctx, branch, git.PushOptions{
			Force:       opts.Force,
			SetUpstream: opts.SetUpstream,
		}); err != nil {
			return err
		}
		s.repo.invalidateFor(opPush)
		return nil
	})
}

func (s *presentState) setConfig(ctx context.Context, key, value string, opts ConfigOptions) error {
	return s.repo.enqueue(ctx, "set-config", func(tctx context.Context) error {
		if err := s.git.ConfigSet(tctx, key, value, opts.Local); err != nil {
			return err
		}
		s.repo.invalidateFor(opSetConfig, key)
		return nil
	})
}

// discardWorkDirChanges reverts the given paths, wrapped in a
// before/after snapshot so the discard lands on the undo stack.
// Conflicted paths make the whole batch unsafe. Untracked files are
// removed outright; tracked files are checked out from the index.
func (s *presentState) discardWorkDirChanges(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	return s.repo.enqueue(ctx, "discard", func(tctx context.Context) error {
		status, err := s.git.Status(tctx)
		if err != nil {
			return err
		}
		unmerged := make(map[string]bool, len(status.Unmerged))
		for _, p := range status.Unmerged {
			unmerged[p] = true
		}
		untracked := make(map[string]bool, len(status.Untracked))
		for _, p := range status.Untracked {
			untracked[p] = true
		}

		isSafe := func() bool {
			for _, p := range paths {
				if unmerged[p] {
					return false
				}
			}
			return true
		}
		mutate := func() error {
			var tracked []string
			for _, p := range paths {
				if untracked[p] {
					if err := os.Remove(filepath.Join(s.repo.Dir(), p)); err != nil && !os.IsNotExist(err) {
						return err
					}
					continue
				}
				tracked = append(tracked, p)
			}
			if len(tracked) == 0 {
				return nil
			}
			return s.git.CheckoutPaths(tctx, tracked)
		}

		// Invalidate regardless of outcome: a mutate failure can leave
		// the working tree partially reverted.
		defer s.repo.invalidateFor(opDiscard, paths...)

		if s.snapshots == nil {
			if !isSafe() {
				return snapshot.ErrNotSafe
			}
			return mutate()
		}
		if _, err := s.snapshots.StoreBeforeAndAfterBlobs(tctx, paths, isSafe, mutate, ""); err != nil {
			return err
		}
		if err := s.snapshots.UpdateHistory(tctx); err != nil {
			// The discard itself succeeded; only persistence of the
			// undo stack lagged.
			s.repo.log.Warn("persisting discard history", zap.Error(err))
		}
		return nil
	})
}

func (s *presentState) storeBeforeAndAfterBlobs(ctx context.Context, paths []string, isSafe func() bool, mutate func() error, group string) (*snapshot.Snapshot, error) {
	if s.snapshots == nil {
		return nil, ErrHistoryUnavailable
	}
	var snap *snapshot.Snapshot
	err := s.repo.enqueue(ctx, "snapshot", func(tctx context.Context) error {
		got, err := s.snapshots.StoreBeforeAndAfterBlobs(tctx, paths, isSafe, mutate, group)
		if err != nil {
			return err
		}
		snap = got
		return nil
	})
	return snap, err
}

func (s *presentState) createDiscardHistoryBlob(ctx context.Context) (string, error) {
	if s.snapshots == nil {
		return "", ErrHistoryUnavailable
	}
	return s.snapshots.CreateHistoryBlob(ctx)
}

func (s *presentState) updateDiscardHistory(ctx context.Context) error {
	if s.snapshots == nil {
		return ErrHistoryUnavailable
	}
	return s.snapshots.UpdateHistory(ctx)
}

func (s *presentState) popDiscardHistory(ctx context.Context) (*snapshot.Snapshot, error) {
	if s.snapshots == nil {
		return nil, ErrHistoryUnavailable
	}
	var snap *snapshot.Snapshot
	err := s.repo.enqueue(ctx, "pop-discard", func(tctx context.Context) error {
		got, err := s.snapshots.Pop(tctx)
		if err != nil {
			return err
		}
		snap = got
		if snap != nil {
			s.repo.invalidateFor(opDiscard, snap.Paths()...)
			if err := s.snapshots.UpdateHistory(tctx); err != nil {
				s.repo.log.Warn("persisting discard history", zap.Error(err))
			}
		}
		return nil
	})
	return snap, err
}

func (s *presentState) discardHistory() []snapshot.Snapshot {
	if s.snapshots == nil {
		return nil
	}
	return s.snapshots.History()
}
