// Package repository is a stateful facade over one working directory's
// git state, built for editor integrations: reads are memoized behind
// precisely-invalidated cache groups, mutations run serialized through
// a task queue, and the whole surface stays callable in every
// lifecycle state from "still probing" to "destroyed".
package repository

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"gitdock/conflict"
	"gitdock/git"
	"gitdock/internal/blobstore"
	"gitdock/internal/cache"
	"gitdock/internal/logging"
	"gitdock/patch"
	"gitdock/snapshot"
)

type Repository struct {
	log           *zap.Logger
	cache         *cache.Cache
	queue         *taskQueue
	runner        git.Runner
	blobCacheSize int

	mu        sync.RWMutex
	workdir   string
	driver    Driver
	st        state
	loadDone  chan struct{}
	snapshots *snapshot.Store
	blobs     *blobstore.Store

	destroyed atomic.Bool
}

type Option func(*Repository)

// WithDriver substitutes the git collaborator, typically a scripted
// fake in tests.
func WithDriver(d Driver) Option {
	return func(r *Repository) { r.driver = d }
}

// WithRunner sets the process runner used when the default driver is
// built.
func WithRunner(runner git.Runner) Option {
	return func(r *Repository) { r.runner = runner }
}

func WithLogger(log *logging.Logger) Option {
	return func(r *Repository) { r.log = log.Logger }
}

// WithSnapshots substitutes the discard history store; without it one
// is opened under the repository's .git directory during load.
func WithSnapshots(s *snapshot.Store) Option {
	return func(r *Repository) { r.snapshots = s }
}

// WithBlobCacheSize sizes the blob store's in-memory LRU.
func WithBlobCacheSize(n int) Option {
	return func(r *Repository) { r.blobCacheSize = n }
}

// Open starts loading the repository expected at workdir. The returned
// facade is usable immediately: reads and mutations queue behind the
// probe and run once it settles.
func Open(workdir string, opts ...Option) *Repository {
	return open(workdir, StateLoading, opts...)
}

// OpenGuess is Open without the expectation: the caller only suspects
// a repository might be at workdir, and a miss settles into
// StateAbsentGuess instead of StateAbsent.
func OpenGuess(workdir string, opts ...Option) *Repository {
	return open(workdir, StateLoadingGuess, opts...)
}

// NewAbsent builds a facade with no working directory at all. Every
// operation fails until Init or Clone gives it one.
func NewAbsent(opts ...Option) *Repository {
	r := newRepository("", opts...)
	r.st = &absentState{repo: r}
	close(r.loadDone)
	return r
}

func open(workdir string, initial StateName, opts ...Option) *Repository {
	r := newRepository(workdir, opts...)
	r.st = &loadingState{repo: r, guess: initial == StateLoadingGuess}
	if r.driver == nil && workdir != "" {
		r.driver = git.New(workdir, git.WithRunner(r.runner), git.WithLogger(r.log))
	}
	go r.load()
	return r
}

func newRepository(workdir string, opts ...Option) *Repository {
	r := &Repository{
		log:      zap.NewNop(),
		cache:    cache.New(),
		runner:   git.ExecRunner{},
		workdir:  workdir,
		loadDone: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.queue = newTaskQueue(&logging.Logger{Logger: r.log})
	return r
}

// load probes the working directory and settles the facade into
// Present or Absent.
func (r *Repository) load() {
	ctx := context.Background()

	r.mu.RLock()
	drv := r.driver
	workdir := r.workdir
	guess := r.st.name() == StateLoadingGuess
	snaps := r.snapshots
	r.mu.RUnlock()

	if workdir == "" || drv == nil {
		r.settle(&absentState{repo: r, guess: guess}, nil)
		return
	}

	gitDir, err := drv.GitDir(ctx)
	if err != nil {
		if !errors.Is(err, git.ErrNotRepository) {
			r.log.Warn("probing repository", zap.String("dir", workdir), zap.Error(err))
		}
		r.settle(&absentState{repo: r, guess: guess}, nil)
		return
	}

	var blobs *blobstore.Store
	if snaps == nil {
		blobs, err = blobstore.OpenDir(filepath.Join(gitDir, "gitdock"), blobstore.Options{
			CacheSize: r.blobCacheSize,
			Logger:    r.log,
		})
		if err != nil {
			// Undo history degrades; everything else still works.
			r.log.Warn("opening discard history store", zap.Error(err))
		} else {
			snaps = snapshot.New(workdir, blobs, blobs, r.log)
		}
	}
	if snaps != nil {
		snaps.Load(ctx)
	}

	r.settle(&presentState{
		repo:      r,
		git:       drv,
		gitDir:    gitDir,
		snapshots: snaps,
	}, blobs)
}

func (r *Repository) settle(st state, blobs *blobstore.Store) {
	r.mu.Lock()
	if r.st.name() == StateDestroyed {
		r.mu.Unlock()
		if blobs != nil {
			blobs.Close()
		}
		return
	}
	r.st = st
	if blobs != nil {
		r.blobs = blobs
	}
	if ps, ok := st.(*presentState); ok {
		r.snapshots = ps.snapshots
	}
	close(r.loadDone)
	dir := r.workdir
	r.mu.Unlock()

	r.log.Info("repository settled",
		zap.String("state", string(st.name())),
		zap.String("dir", dir))
}

// relaunch re-enters loading after Init or Clone created a repository
// where none was.
func (r *Repository) relaunch(guess bool) {
	r.mu.Lock()
	r.st = &loadingState{repo: r, guess: guess}
	r.loadDone = make(chan struct{})
	r.mu.Unlock()
	go r.load()
}

// bindWorkdir fixes the working directory (when the facade started
// absent without one) and builds the default driver for it. Moving an
// already-bound facade to a different directory discards the old
// directory's driver.
func (r *Repository) bindWorkdir(path string) (Driver, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if path != "" && path != r.workdir {
		if r.workdir != "" {
			r.driver = nil
		}
		r.workdir = path
	}
	if r.workdir == "" {
		return nil, fmt.Errorf("no working directory given")
	}
	if r.driver == nil {
		r.driver = git.New(r.workdir, git.WithRunner(r.runner), git.WithLogger(r.log))
	}
	return r.driver, nil
}

func (r *Repository) state() state {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.st
}

// Dir returns the working directory, empty while none is bound.
func (r *Repository) Dir() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.workdir
}

// State names the current lifecycle state.
func (r *Repository) State() StateName {
	return r.state().name()
}

func (r *Repository) IsInState(name StateName) bool {
	return r.State() == name
}

func (r *Repository) IsLoading() bool {
	return isLoadingName(r.State())
}

func (r *Repository) IsPresent() bool {
	return r.State() == StatePresent
}

func (r *Repository) IsDestroyed() bool {
	return r.State() == StateDestroyed
}

// IsEmpty reports whether the facade settled without finding a
// repository.
func (r *Repository) IsEmpty() bool {
	return r.state().isEmpty()
}

// LoadDone returns a channel closed when the current load settles.
func (r *Repository) LoadDone() <-chan struct{} {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loadDone
}

// WaitLoaded blocks until the facade leaves its loading state. Init
// and Clone relaunch loading, so this can be waited on more than once.
func (r *Repository) WaitLoaded(ctx context.Context) error {
	for {
		r.mu.RLock()
		name := r.st.name()
		ch := r.loadDone
		r.mu.RUnlock()
		if !isLoadingName(name) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ch:
		}
	}
}

// Refresh drops every cached result. It is the blunt fallback for
// external changes the facade cannot attribute to one of its own
// mutations, such as filesystem writes by other tools.
func (r *Repository) Refresh() {
	r.cache.Clear()
}

// Destroy tears the facade down: pending queue tasks fail with
// ErrDestroyed, the running one finishes, caches drop, and the blob
// store closes. Destroy is idempotent and every later call on the
// facade fails fast.
func (r *Repository) Destroy() {
	if r.destroyed.Swap(true) {
		return
	}

	r.mu.Lock()
	wasLoading := isLoadingName(r.st.name())
	r.st = &destroyedState{}
	if wasLoading {
		close(r.loadDone)
	}
	blobs := r.blobs
	r.blobs = nil
	r.snapshots = nil
	r.mu.Unlock()

	r.queue.stop()
	r.cache.Clear()
	if blobs != nil {
		if err := blobs.Close(); err != nil {
			r.log.Warn("closing blob store", zap.Error(err))
		}
	}
	r.log.Info("repository destroyed")
}

// enqueue funnels one mutation through the serial queue.
func (r *Repository) enqueue(ctx context.Context, name string, fn func(context.Context) error) error {
	return r.queue.do(ctx, name, fn)
}

// Init creates a repository. On a facade built with NewAbsent, path
// names the working directory to create it in; otherwise path may be
// empty to init the bound directory.
func (r *Repository) Init(ctx context.Context, path string) error {
	return r.state().init(ctx, path)
}

// Clone clones url into dest (or the bound directory when dest is
// empty) and promotes the facade to Present.
func (r *Repository) Clone(ctx context.Context, url, dest string) error {
	return r.state().clone(ctx, url, dest)
}

// IsMerging reports whether a merge is in progress, read live from
// repository state on every call.
func (r *Repository) IsMerging(ctx context.Context) (bool, error) {
	return r.state().isMerging(ctx)
}

// UnstagedChanges lists files whose working-tree content differs from
// the index, untracked files included.
func (r *Repository) UnstagedChanges(ctx context.Context) ([]git.ChangedFile, error) {
	return r.state().unstagedChanges(ctx)
}

// StagedChanges lists files whose index content differs from HEAD.
func (r *Repository) StagedChanges(ctx context.Context) ([]git.ChangedFile, error) {
	return r.state().stagedChanges(ctx)
}

// StagedChangesSinceParent lists files staged relative to the parent
// commit, the listing an amend is interested in.
func (r *Repository) StagedChangesSinceParent(ctx context.Context) ([]git.ChangedFile, error) {
	return r.state().stagedChangesSinceParent(ctx)
}

// FilePatchForPath returns the structured patch for one path, nil when
// the path has no changes on the requested side.
func (r *Repository) FilePatchForPath(ctx context.Context, path string, opts PatchOptions) (*patch.FilePatch, error) {
	return r.state().filePatchForPath(ctx, path, opts)
}

// ReadFileFromIndex returns the staged content of path.
func (r *Repository) ReadFileFromIndex(ctx context.Context, path string) ([]byte, error) {
	return r.state().readFileFromIndex(ctx, path)
}

// IsPartiallyStaged reports whether path has both staged and unstaged
// changes at once.
func (r *Repository) IsPartiallyStaged(ctx context.Context, path string) (bool, error) {
	return r.state().isPartiallyStaged(ctx, path)
}

// MergeConflicts classifies the currently conflicted paths. The result
// is computed fresh on every call so working-tree edits and deletions
// show up immediately.
func (r *Repository) MergeConflicts(ctx context.Context) ([]conflict.Conflict, error) {
	return r.state().mergeConflicts(ctx)
}

// PathHasMergeMarkers reports whether the file at path currently
// contains conflict marker lines.
func (r *Repository) PathHasMergeMarkers(ctx context.Context, path string) (bool, error) {
	return r.state().pathHasMergeMarkers(ctx, path)
}

// LastCommit returns the commit HEAD points at, or an Unborn commit in
// a repository with no commits yet.
func (r *Repository) LastCommit(ctx context.Context) (*git.Commit, error) {
	return r.state().lastCommit(ctx)
}

// RecentCommits lists up to limit commits reachable from HEAD, newest
// first.
func (r *Repository) RecentCommits(ctx context.Context, limit int) ([]*git.Commit, error) {
	return r.state().recentCommits(ctx, limit)
}

// Branches lists local branches.
func (r *Repository) Branches(ctx context.Context) ([]git.Branch, error) {
	return r.state().branches(ctx)
}

// CurrentBranch describes what HEAD points at.
func (r *Repository) CurrentBranch(ctx context.Context) (git.Branch, error) {
	return r.state().currentBranch(ctx)
}

// Remotes lists configured remotes.
func (r *Repository) Remotes(ctx context.Context) ([]git.Remote, error) {
	return r.state().remotes(ctx)
}

// RemoteForBranch resolves the remote branch is configured to use.
func (r *Repository) RemoteForBranch(ctx context.Context, branch string) (git.Remote, error) {
	return r.state().remoteForBranch(ctx, branch)
}

// AheadCount counts commits on branch its upstream lacks.
func (r *Repository) AheadCount(ctx context.Context, branch string) (int, error) {
	return r.state().aheadCount(ctx, branch)
}

// BehindCount counts commits on the upstream that branch lacks.
func (r *Repository) BehindCount(ctx context.Context, branch string) (int, error) {
	return r.state().behindCount(ctx, branch)
}

// Config reads one git config key; missing keys read as "".
func (r *Repository) Config(ctx context.Context, key string, opts ConfigOptions) (string, error) {
	return r.state().getConfig(ctx, key, opts)
}

// StageFiles stages the given paths, deletions included.
func (r *Repository) StageFiles(ctx context.Context, paths ...string) error {
	return r.state().stageFiles(ctx, paths)
}

// UnstageFiles resets the index entries for paths back to HEAD.
func (r *Repository) UnstageFiles(ctx context.Context, paths ...string) error {
	return r.state().unstageFiles(ctx, paths)
}

// StageFilesFromParentCommit points the index entries for paths at the
// parent commit's tree, the staging step used while amending.
func (r *Repository) StageFilesFromParentCommit(ctx context.Context, paths ...string) error {
	return r.state().stageFilesFromParentCommit(ctx, paths)
}

// ApplyPatchToIndex applies a structured patch to the index only.
// Applying a patch and then its Invert is a no-op.
func (r *Repository) ApplyPatchToIndex(ctx context.Context, p *patch.FilePatch) error {
	return r.state().applyPatchToIndex(ctx, p)
}

// Commit records staged changes. The message is cleaned of comment
// lines and hard-wrapped before it reaches git.
func (r *Repository) Commit(ctx context.Context, message string, opts CommitOptions) error {
	return r.state().commit(ctx, message, opts)
}

// Merge merges ref into the current branch.
func (r *Repository) Merge(ctx context.Context, ref string) error {
	return r.state().merge(ctx, ref)
}

// AbortMerge abandons an in-progress merge.
func (r *Repository) AbortMerge(ctx context.Context) error {
	return r.state().abortMerge(ctx)
}

// Fetch updates remote tracking refs for branch's remote.
func (r *Repository) Fetch(ctx context.Context, branch string) error {
	return r.state().fetch(ctx, branch)
}

// Pull fetches and integrates branch's upstream.
func (r *Repository) Pull(ctx context.Context, branch string) error {
	return r.state().pull(ctx, branch)
}

// Push publishes branch to its remote.
func (r *Repository) Push(ctx context.Context, branch string, opts PushOptions) error {
	return r.state().push(ctx, branch, opts)
}

// SetConfig writes one git config key.
func (r *Repository) SetConfig(ctx context.Context, key, value string, opts ConfigOptions) error {
	return r.state().setConfig(ctx, key, value, opts)
}

// DiscardWorkDirChanges reverts the working-tree content of paths,
// snapshotting before and after so the discard can be undone.
func (r *Repository) DiscardWorkDirChanges(ctx context.Context, paths ...string) error {
	return r.state().discardWorkDirChanges(ctx, paths)
}

// StoreBeforeAndAfterBlobs wraps a destructive mutation of paths in a
// before/after snapshot. The isSafe gate is consulted once for the
// whole batch; mutate runs exactly once.
func (r *Repository) StoreBeforeAndAfterBlobs(ctx context.Context, paths []string, isSafe func() bool, mutate func() error, group string) (*snapshot.Snapshot, error) {
	return r.state().storeBeforeAndAfterBlobs(ctx, paths, isSafe, mutate, group)
}

// CreateDiscardHistoryBlob serializes the discard history and returns
// its content hash.
func (r *Repository) CreateDiscardHistoryBlob(ctx context.Context) (string, error) {
	return r.state().createDiscardHistoryBlob(ctx)
}

// UpdateDiscardHistory persists the discard history hash into
// repository metadata.
func (r *Repository) UpdateDiscardHistory(ctx context.Context) error {
	return r.state().updateDiscardHistory(ctx)
}

// PopDiscardHistory restores the most recent snapshot's before state
// and removes it from the history.
func (r *Repository) PopDiscardHistory(ctx context.Context) (*snapshot.Snapshot, error) {
	return r.state().popDiscardHistory(ctx)
}

// DiscardHistory returns the snapshot stack, newest last.
func (r *Repository) DiscardHistory() []snapshot.Snapshot {
	return r.state().discardHistory()
}
