package repository

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"gitdock/conflict"
	"gitdock/git"
	"gitdock/patch"
	"gitdock/snapshot"
)

// fakeDriver scripts the git collaborator in memory. Reads serve the
// configured fields, mutations reshuffle them the way the real
// commands would, and every call bumps a per-method counter so tests
// can tell a cache hit from a recomputation.
type fakeDriver struct {
	mu    sync.Mutex
	calls map[string]int

	root      string
	gitDir    string
	gitDirErr error
	// gitDirGate, when non-nil, blocks GitDir until closed.
	gitDirGate chan struct{}

	unstaged      []git.ChangedFile
	staged        []git.ChangedFile
	untracked     map[string]bool
	wasUntracked  map[string]bool
	unmergedPaths []string
	sinceParent   []git.ChangedFile

	diffs     map[string]string
	indexData map[string][]byte
	fileOIDs  map[string]string

	head    git.Commit
	recent  []git.Commit
	commits []string

	branchList []git.Branch
	current    git.Branch
	aheadVals  []int
	behindVals []int

	remoteList []git.Remote
	config     map[string]string

	merging bool
	stages  []conflict.StageEntry

	applied       []string
	resets        map[string][]string
	checkouts     [][]string
	checkoutFiles map[string]string
	clonedURL     string

	failures map[string]error
}

var _ Driver = (*fakeDriver)(nil)

func newFakeDriver() *fakeDriver {
	return &fakeDriver{
		calls:         map[string]int{},
		untracked:     map[string]bool{},
		wasUntracked:  map[string]bool{},
		diffs:         map[string]string{},
		indexData:     map[string][]byte{},
		fileOIDs:      map[string]string{},
		config:        map[string]string{},
		resets:        map[string][]string{},
		checkoutFiles: map[string]string{},
		failures:      map[string]error{},
		head:          git.Commit{OID: "1111111", Subject: "seed commit"},
		current:       git.Branch{Name: "main", Upstream: "origin/main"},
		aheadVals:     []int{0},
		behindVals:    []int{0},
	}
}

// bump increments and returns a call counter. Callers hold mu.
func (f *fakeDriver) bump(key string) int {
	f.calls[key]++
	return f.calls[key]
}

func (f *fakeDriver) count(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[key]
}

func (f *fakeDriver) GitDir(ctx context.Context) (string, error) {
	f.mu.Lock()
	f.bump("git-dir")
	gate := f.gitDirGate
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gitDirErr != nil {
		return "", f.gitDirErr
	}
	return f.gitDir, nil
}

func (f *fakeDriver) Init(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bump("init")
	if err := f.failures["init"]; err != nil {
		return err
	}
	f.gitDirErr = nil
	return nil
}

func (f *fakeDriver) Clone(ctx context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bump("clone")
	if err := f.failures["clone"]; err != nil {
		return err
	}
	f.clonedURL = url
	f.gitDirErr = nil
	return nil
}

func (f *fakeDriver) Status(ctx context.Context) (*git.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bump("status")
	if err := f.failures["status"]; err != nil {
		return nil, err
	}
	st := &git.Status{
		Staged:   copyChanged(f.staged),
		Unstaged: copyChanged(f.unstaged),
		Unmerged: append([]string(nil), f.unmergedPaths...),
	}
	for p := range f.untracked {
		st.Untracked = append(st.Untracked, p)
	}
	sort.Strings(st.Untracked)
	return st, nil
}

func (f *fakeDriver) DiffNameStatus(ctx context.Context, opts git.DiffOptions) ([]git.ChangedFile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if opts.Amending {
		f.bump("parent-list")
		return copyChanged(f.sinceParent), nil
	}
	f.bump("staged-list")
	return copyChanged(f.staged), nil
}

func (f *fakeDriver) DiffRaw(ctx context.Context, opts git.DiffOptions) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	scope := "u:"
	if opts.Staged {
		scope = "s:"
		if opts.Amending {
			scope = "s:amending:"
		}
	}
	if len(opts.Paths) > 0 {
		scope += opts.Paths[0]
	}
	f.bump("diff:" + scope)
	return f.diffs[scope], nil
}

func (f *fakeDriver) ReadIndexFile(ctx context.Context, path string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bump("index:" + path)
	data, ok := f.indexData[path]
	if !ok {
		return nil, &git.CommandError{Args: []string{"cat-file"}, ExitCode: 128, Stderr: "not in index"}
	}
	return append([]byte(nil), data...), nil
}

func (f *fakeDriver) HashFile(ctx context.Context, path string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bump("hash:" + path)
	return f.fileOIDs[path], nil
}

func (f *fakeDriver) Stage(ctx context.Context, paths []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bump("stage")
	if err := f.failures["stage"]; err != nil {
		return err
	}
	for _, p := range paths {
		moveChanged(&f.unstaged, &f.staged, p)
		if f.untracked[p] {
			delete(f.untracked, p)
			f.wasUntracked[p] = true
		}
	}
	sortChanged(f.staged)
	return nil
}

func (f *fakeDriver) Unstage(ctx context.Context, paths []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bump("unstage")
	if err := f.failures["unstage"]; err != nil {
		return err
	}
	for _, p := range paths {
		moveChanged(&f.staged, &f.unstaged, p)
		if f.wasUntracked[p] {
			delete(f.wasUntracked, p)
			f.untracked[p] = true
		}
	}
	sortChanged(f.unstaged)
	return nil
}

func (f *fakeDriver) ResetPaths(ctx context.Context, ref string, paths []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bump("reset:" + ref)
	if err := f.failures["reset"]; err != nil {
		return err
	}
	f.resets[ref] = append(f.resets[ref], paths...)
	return nil
}

func (f *fakeDriver) CheckoutPaths(ctx context.Context, paths []string) error {
	f.mu.Lock()
	root := f.root
	files := f.checkoutFiles
	f.bump("checkout")
	err := f.failures["checkout"]
	f.checkouts = append(f.checkouts, append([]string(nil), paths...))
	f.mu.Unlock()
	if err != nil {
		return err
	}
	for _, p := range paths {
		content, ok := files[p]
		if !ok || root == "" {
			continue
		}
		if err := os.WriteFile(filepath.Join(root, p), []byte(content), 0o644); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeDriver) ApplyIndexPatch(ctx context.Context, patchText string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bump("apply")
	if err := f.failures["apply"]; err != nil {
		return err
	}
	f.applied = append(f.applied, patchText)
	return nil
}

func (f *fakeDriver) Commit(ctx context.Context, message string, opts git.CommitOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bump("commit")
	if err := f.failures["commit"]; err != nil {
		return err
	}
	f.commits = append(f.commits, message)
	return nil
}

func (f *fakeDriver) HeadCommit(ctx context.Context) (*git.Commit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bump("head")
	if err := f.failures["head"]; err != nil {
		return nil, err
	}
	c := f.head
	return &c, nil
}

func (f *fakeDriver) RecentCommits(ctx context.Context, limit int) ([]*git.Commit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bump("recent")
	n := len(f.recent)
	if limit < n {
		n = limit
	}
	out := make([]*git.Commit, 0, n)
	for i := 0; i < n; i++ {
		c := f.recent[i]
		out = append(out, &c)
	}
	return out, nil
}

func (f *fakeDriver) Merge(ctx context.Context, ref string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bump("merge")
	return f.failures["merge"]
}

func (f *fakeDriver) AbortMerge(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bump("abort-merge")
	return f.failures["abort-merge"]
}

func (f *fakeDriver) MergeInProgress(ctx context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bump("merging")
	return f.merging, nil
}

func (f *fakeDriver) UnmergedEntries(ctx context.Context) ([]conflict.StageEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bump("unmerged")
	return append([]conflict.StageEntry(nil), f.stages...), nil
}

func (f *fakeDriver) Branches(ctx context.Context) ([]git.Branch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bump("branches")
	return append([]git.Branch(nil), f.branchList...), nil
}

func (f *fakeDriver) CurrentBranch(ctx context.Context) (git.Branch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bump("current-branch")
	return f.current, nil
}

func (f *fakeDriver) Ahead(ctx context.Context, branch string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := f.bump("ahead:" + branch)
	if err := f.failures["ahead"]; err != nil {
		return 0, err
	}
	return pickVal(f.aheadVals, n), nil
}

func (f *fakeDriver) Behind(ctx context.Context, branch string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := f.bump("behind:" + branch)
	if err := f.failures["behind"]; err != nil {
		return 0, err
	}
	return pickVal(f.behindVals, n), nil
}

func (f *fakeDriver) Remotes(ctx context.Context) ([]git.Remote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bump("remotes")
	return append([]git.Remote(nil), f.remoteList...), nil
}

func (f *fakeDriver) Fetch(ctx context.Context, branch string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bump("fetch")
	return f.failures["fetch"]
}

func (f *fakeDriver) Pull(ctx context.Context, branch string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bump("pull")
	return f.failures["pull"]
}

func (f *fakeDriver) Push(ctx context.Context, branch string, opts git.PushOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bump("push")
	return f.failures["push"]
}

func (f *fakeDriver) ConfigGet(ctx context.Context, key string, local bool) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bump("config-get:" + cfgKey(key, local))
	return f.config[cfgKey(key, local)], nil
}

func (f *fakeDriver) ConfigSet(ctx context.Context, key, value string, local bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bump("config-set")
	if err := f.failures["config-set"]; err != nil {
		return err
	}
	f.config[cfgKey(key, local)] = value
	return nil
}

func cfgKey(key string, local bool) string {
	if local {
		return "local:" + key
	}
	return key
}

func copyChanged(in []git.ChangedFile) []git.ChangedFile {
	return append([]git.ChangedFile(nil), in...)
}

func moveChanged(src, dst *[]git.ChangedFile, path string) {
	for i, cf := range *src {
		if cf.Path != path {
			continue
		}
		*src = append(append([]git.ChangedFile(nil), (*src)[:i]...), (*src)[i+1:]...)
		*dst = append(*dst, cf)
		return
	}
}

func sortChanged(files []git.ChangedFile) {
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
}

func pickVal(vals []int, call int) int {
	if len(vals) == 0 {
		return 0
	}
	if call > len(vals) {
		return vals[len(vals)-1]
	}
	return vals[call-1]
}

// memObjects is an in-memory content-addressed store for the snapshot
// interfaces.
type memObjects struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func newMemObjects() *memObjects {
	return &memObjects{blobs: map[string][]byte{}}
}

func (m *memObjects) Put(ctx context.Context, name string, content []byte) (string, error) {
	sum := sha256.Sum256(content)
	hash := hex.EncodeToString(sum[:])
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[hash] = append([]byte(nil), content...)
	return hash, nil
}

func (m *memObjects) Get(ctx context.Context, hash string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	content, ok := m.blobs[hash]
	if !ok {
		return nil, fmt.Errorf("blob %s not found", hash)
	}
	return append([]byte(nil), content...), nil
}

func (m *memObjects) Release(ctx context.Context, hash string) error { return nil }

type memMeta struct {
	mu     sync.Mutex
	values map[string][]byte
}

func newMemMeta() *memMeta {
	return &memMeta{values: map[string][]byte{}}
}

func (m *memMeta) GetMeta(key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	if !ok {
		return nil, fmt.Errorf("meta %s not found", key)
	}
	return append([]byte(nil), v...), nil
}

func (m *memMeta) PutMeta(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = append([]byte(nil), value...)
	return nil
}

func (m *memMeta) DeleteMeta(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

type repoFixture struct {
	repo    *Repository
	fake    *fakeDriver
	objects *memObjects
	meta    *memMeta
	dir     string
}

// openPresent opens a repository over a temp dir and waits for it to
// settle Present.
func openPresent(t *testing.T, fake *fakeDriver) *repoFixture {
	t.Helper()
	fx := openRepo(t, fake)
	require.NoError(t, fx.repo.WaitLoaded(context.Background()))
	require.Equal(t, StatePresent, fx.repo.State())
	return fx
}

func openRepo(t *testing.T, fake *fakeDriver) *repoFixture {
	t.Helper()
	dir := t.TempDir()
	fake.root = dir
	if fake.gitDir == "" {
		fake.gitDir = filepath.Join(dir, ".git")
	}
	objects := newMemObjects()
	meta := newMemMeta()
	store := snapshot.New(dir, objects, meta, zap.NewNop())
	r := Open(dir, WithDriver(fake), WithSnapshots(store))
	t.Cleanup(r.Destroy)
	return &repoFixture{repo: r, fake: fake, objects: objects, meta: meta, dir: dir}
}

func newPresentRepo(t *testing.T) *repoFixture {
	return openPresent(t, newFakeDriver())
}

func writeWorkFile(t *testing.T, dir, path, content string) {
	t.Helper()
	full := filepath.Join(dir, path)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func TestOpenSettlesPresent(t *testing.T) {
	fx := newPresentRepo(t)

	assert.True(t, fx.repo.IsPresent())
	assert.False(t, fx.repo.IsLoading())
	assert.False(t, fx.repo.IsEmpty())
	assert.Equal(t, fx.dir, fx.repo.Dir())
}

func TestOpenSettlesAbsent(t *testing.T) {
	ctx := context.Background()
	fake := newFakeDriver()
	fake.gitDirErr = git.ErrNotRepository
	fx := openRepo(t, fake)
	require.NoError(t, fx.repo.WaitLoaded(ctx))

	require.Equal(t, StateAbsent, fx.repo.State())
	assert.True(t, fx.repo.IsEmpty())
	assert.False(t, fx.repo.IsPresent())

	_, err := fx.repo.UnstagedChanges(ctx)
	assert.ErrorIs(t, err, ErrAbsent)
	assert.ErrorIs(t, err, ErrNotReady)

	err = fx.repo.StageFiles(ctx, "a.txt")
	assert.ErrorIs(t, err, ErrAbsent)

	_, err = fx.repo.LastCommit(ctx)
	assert.ErrorIs(t, err, ErrNotReady)

	merging, err := fx.repo.IsMerging(ctx)
	assert.NoError(t, err)
	assert.False(t, merging)
}

func TestOpenGuessSettlesAbsentGuess(t *testing.T) {
	fake := newFakeDriver()
	fake.gitDirErr = git.ErrNotRepository
	dir := t.TempDir()
	fake.root = dir
	fake.gitDir = filepath.Join(dir, ".git")
	r := OpenGuess(dir, WithDriver(fake))
	t.Cleanup(r.Destroy)

	require.NoError(t, r.WaitLoaded(context.Background()))
	assert.Equal(t, StateAbsentGuess, r.State())
	assert.True(t, r.IsEmpty())
	assert.True(t, r.IsInState(StateAbsentGuess))
}

func TestLoadingQueuesReadsBehindProbe(t *testing.T) {
	fake := newFakeDriver()
	fake.gitDirGate = make(chan struct{})
	fake.unstaged = []git.ChangedFile{{Path: "a.txt", Status: patch.Modified}}
	fx := openRepo(t, fake)
	require.True(t, fx.repo.IsLoading())

	type result struct {
		files []git.ChangedFile
		err   error
	}
	got := make(chan result, 1)
	go func() {
		files, err := fx.repo.UnstagedChanges(context.Background())
		got <- result{files, err}
	}()

	select {
	case <-got:
		t.Fatal("read completed before the probe settled")
	case <-time.After(50 * time.Millisecond):
	}

	close(fake.gitDirGate)

	select {
	case res := <-got:
		require.NoError(t, res.err)
		require.Len(t, res.files, 1)
		assert.Equal(t, "a.txt", res.files[0].Path)
	case <-time.After(2 * time.Second):
		t.Fatal("read never completed")
	}
	assert.Equal(t, StatePresent, fx.repo.State())
}

func TestLoadingReadHonorsContext(t *testing.T) {
	fake := newFakeDriver()
	fake.gitDirGate = make(chan struct{})
	fx := openRepo(t, fake)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := fx.repo.UnstagedChanges(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	close(fake.gitDirGate)
}

func TestDestroyFailsFast(t *testing.T) {
	ctx := context.Background()
	fx := newPresentRepo(t)
	fx.repo.Destroy()

	require.Equal(t, StateDestroyed, fx.repo.State())
	assert.True(t, fx.repo.IsDestroyed())

	_, err := fx.repo.UnstagedChanges(ctx)
	assert.ErrorIs(t, err, ErrDestroyed)
	assert.ErrorIs(t, err, ErrNotReady)

	assert.ErrorIs(t, fx.repo.StageFiles(ctx, "a.txt"), ErrDestroyed)
	assert.ErrorIs(t, fx.repo.Commit(ctx, "msg", CommitOptions{}), ErrDestroyed)
	assert.ErrorIs(t, fx.repo.Init(ctx, ""), ErrDestroyed)
	assert.ErrorIs(t, fx.repo.Clone(ctx, "url", ""), ErrDestroyed)

	_, err = fx.repo.IsMerging(ctx)
	assert.ErrorIs(t, err, ErrDestroyed)

	_, err = fx.repo.PopDiscardHistory(ctx)
	assert.ErrorIs(t, err, ErrDestroyed)
	assert.Nil(t, fx.repo.DiscardHistory())

	// Idempotent.
	fx.repo.Destroy()
	assert.Equal(t, StateDestroyed, fx.repo.State())
}

func TestDestroyWhileLoading(t *testing.T) {
	fake := newFakeDriver()
	fake.gitDirGate = make(chan struct{})
	fx := openRepo(t, fake)

	fx.repo.Destroy()
	require.Equal(t, StateDestroyed, fx.repo.State())

	// The probe finishing later must not resurrect the repository.
	close(fake.gitDirGate)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, StateDestroyed, fx.repo.State())

	_, err := fx.repo.LastCommit(context.Background())
	assert.ErrorIs(t, err, ErrDestroyed)
}

func TestInitPromotesAbsentToPresent(t *testing.T) {
	ctx := context.Background()
	fake := newFakeDriver()
	fake.gitDirErr = git.ErrNotRepository
	fx := openRepo(t, fake)
	require.NoError(t, fx.repo.WaitLoaded(ctx))
	require.Equal(t, StateAbsent, fx.repo.State())

	require.ErrorIs(t, fx.repo.StageFiles(ctx, "a.txt"), ErrAbsent)

	require.NoError(t, fx.repo.Init(ctx, ""))
	assert.Equal(t, StatePresent, fx.repo.State())
	assert.Equal(t, 1, fake.count("init"))

	_, err := fx.repo.LastCommit(ctx)
	assert.NoError(t, err)
}

func TestCloneBindsDirectoryFromAbsent(t *testing.T) {
	ctx := context.Background()
	fake := newFakeDriver()
	fake.gitDirErr = git.ErrNotRepository
	dir := t.TempDir()
	fake.root = dir
	fake.gitDir = filepath.Join(dir, ".git")
	store := snapshot.New(dir, newMemObjects(), newMemMeta(), zap.NewNop())

	r := NewAbsent(WithDriver(fake), WithSnapshots(store))
	t.Cleanup(r.Destroy)
	require.Equal(t, StateAbsent, r.State())
	require.Empty(t, r.Dir())

	require.NoError(t, r.Clone(ctx, "https://example.com/demo.git", dir))
	assert.Equal(t, dir, r.Dir())
	assert.Equal(t, StatePresent, r.State())
	assert.Equal(t, "https://example.com/demo.git", fake.clonedURL)
}

func TestInitOnPresentFails(t *testing.T) {
	ctx := context.Background()
	fx := newPresentRepo(t)

	assert.ErrorIs(t, fx.repo.Init(ctx, ""), ErrAlreadyPresent)
	assert.ErrorIs(t, fx.repo.Clone(ctx, "url", ""), ErrAlreadyPresent)
}

func TestReadsMemoizeUntilInvalidated(t *testing.T) {
	ctx := context.Background()
	fake := newFakeDriver()
	fake.unstaged = []git.ChangedFile{{Path: "a.txt", Status: patch.Modified}}
	fx := openPresent(t, fake)

	first, err := fx.repo.UnstagedChanges(ctx)
	require.NoError(t, err)
	second, err := fx.repo.UnstagedChanges(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, fake.count("status"))
	require.NotEmpty(t, first)
	assert.Same(t, &first[0], &second[0])

	require.NoError(t, fx.repo.StageFiles(ctx, "a.txt"))

	_, err = fx.repo.UnstagedChanges(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, fake.count("status"))
}

func TestFilePatchIdentityAndRefresh(t *testing.T) {
	ctx := context.Background()
	fake := newFakeDriver()
	fake.diffs["u:sample.txt"] = "diff --git a/sample.txt b/sample.txt\n" +
		"index 83db48f..bf269f4 100644\n" +
		"--- a/sample.txt\n" +
		"+++ b/sample.txt\n" +
		"@@ -1,3 +1,3 @@\n" +
		" one\n" +
		"-two\n" +
		"+2\n" +
		" three\n"
	fx := openPresent(t, fake)

	p1, err := fx.repo.FilePatchForPath(ctx, "sample.txt", PatchOptions{})
	require.NoError(t, err)
	require.NotNil(t, p1)

	p2, err := fx.repo.FilePatchForPath(ctx, "sample.txt", PatchOptions{})
	require.NoError(t, err)
	assert.Same(t, p1, p2)
	assert.Equal(t, 1, fake.count("diff:u:sample.txt"))

	fx.repo.Refresh()

	p3, err := fx.repo.FilePatchForPath(ctx, "sample.txt", PatchOptions{})
	require.NoError(t, err)
	assert.NotSame(t, p1, p3)
	assert.Equal(t, p1, p3)
	assert.Equal(t, 2, fake.count("diff:u:sample.txt"))
}

func TestStageUnstageRoundTrip(t *testing.T) {
	ctx := context.Background()
	fake := newFakeDriver()
	fake.unstaged = []git.ChangedFile{
		{Path: "deleted.txt", Status: patch.Deleted},
		{Path: "modified.txt", Status: patch.Modified},
		{Path: "new.txt", Status: patch.Added},
		{Path: "renamed.txt", OrigPath: "old.txt", Status: patch.Renamed},
	}
	fake.untracked["new.txt"] = true
	fake.staged = []git.ChangedFile{{Path: "already.txt", Status: patch.Modified}}
	fx := openPresent(t, fake)

	preUnstaged, err := fx.repo.UnstagedChanges(ctx)
	require.NoError(t, err)
	preStaged, err := fx.repo.StagedChanges(ctx)
	require.NoError(t, err)

	paths := []string{"deleted.txt", "modified.txt", "new.txt", "renamed.txt"}
	require.NoError(t, fx.repo.StageFiles(ctx, paths...))

	midUnstaged, err := fx.repo.UnstagedChanges(ctx)
	require.NoError(t, err)
	assert.Empty(t, midUnstaged)
	midStaged, err := fx.repo.StagedChanges(ctx)
	require.NoError(t, err)
	assert.Len(t, midStaged, 5)

	require.NoError(t, fx.repo.UnstageFiles(ctx, paths...))

	postUnstaged, err := fx.repo.UnstagedChanges(ctx)
	require.NoError(t, err)
	postStaged, err := fx.repo.StagedChanges(ctx)
	require.NoError(t, err)

	assert.Equal(t, preUnstaged, postUnstaged)
	assert.Equal(t, preStaged, postStaged)
}

func TestStageFilesFromParentCommitResetsAgainstParent(t *testing.T) {
	ctx := context.Background()
	fx := newPresentRepo(t)

	require.NoError(t, fx.repo.StageFilesFromParentCommit(ctx, "a.txt", "b.txt"))
	assert.Equal(t, []string{"a.txt", "b.txt"}, fx.fake.resets["HEAD~"])
}

func TestApplyPatchThenInverseSendsMirroredPayloads(t *testing.T) {
	ctx := context.Background()
	fx := newPresentRepo(t)

	p, err := patch.ParseFile("diff --git a/sample.txt b/sample.txt\n" +
		"index 83db48f..bf269f4 100644\n" +
		"--- a/sample.txt\n" +
		"+++ b/sample.txt\n" +
		"@@ -1,3 +1,3 @@\n" +
		" one\n" +
		"-two\n" +
		"+2\n" +
		" three\n")
	require.NoError(t, err)
	require.NotNil(t, p)

	require.NoError(t, fx.repo.ApplyPatchToIndex(ctx, p))
	require.NoError(t, fx.repo.ApplyPatchToIndex(ctx, p.Invert()))

	require.Len(t, fx.fake.applied, 2)
	assert.Equal(t, p.Text(), fx.fake.applied[0])
	assert.Equal(t, p.Invert().Text(), fx.fake.applied[1])

	inv, err := patch.ParseFile(fx.fake.applied[1])
	require.NoError(t, err)
	assert.Equal(t, patch.Modified, inv.Status)
	assert.Equal(t, "sample.txt", inv.Path())
}

func TestCommitCleansMessage(t *testing.T) {
	ctx := context.Background()
	fx := newPresentRepo(t)

	long := strings.TrimSpace(strings.Repeat("lorem ipsum ", 8))
	require.Greater(t, len(long), 90)

	msg := "Add feature\n\n# staged files are listed here\n" + long
	require.NoError(t, fx.repo.Commit(ctx, msg, CommitOptions{}))

	require.Len(t, fx.fake.commits, 1)
	lines := strings.Split(fx.fake.commits[0], "\n")
	require.GreaterOrEqual(t, len(lines), 3)
	assert.Equal(t, "Add feature", lines[0])
	assert.Equal(t, "", lines[1])
	for _, line := range lines[2:] {
		assert.LessOrEqual(t, len(line), 72)
		assert.NotContains(t, line, "#")
	}
	assert.Equal(t, strings.Fields(long), strings.Fields(strings.Join(lines[2:], " ")))

	require.NoError(t, fx.repo.Commit(ctx, "Only subject\n\n# one\n# two", CommitOptions{}))
	assert.Equal(t, "Only subject", fx.fake.commits[1])
}

func TestCommitFailureLeavesLastCommitCached(t *testing.T) {
	ctx := context.Background()
	fx := newPresentRepo(t)
	fx.fake.failures["commit"] = &git.CommandError{
		Args:     []string{"commit", "--cleanup=verbatim", "--file", "-"},
		ExitCode: 1,
		Stderr:   "error: Committing is not possible because you have unmerged files.",
	}

	pre, err := fx.repo.LastCommit(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, fx.fake.count("head"))

	err = fx.repo.Commit(ctx, "will not land", CommitOptions{})
	require.Error(t, err)
	var cmdErr *git.CommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, "commit", cmdErr.Args[0])
	assert.Equal(t, 1, cmdErr.ExitCode)

	post, err := fx.repo.LastCommit(ctx)
	require.NoError(t, err)
	assert.Same(t, pre, post)
	assert.Equal(t, 1, fx.fake.count("head"))
}

func TestAheadRecomputesAfterCommitWhileBehindStaysCached(t *testing.T) {
	ctx := context.Background()
	fake := newFakeDriver()
	fake.aheadVals = []int{0, 2}
	fake.behindVals = []int{1}
	fx := openPresent(t, fake)

	require.NoError(t, fx.repo.Fetch(ctx, "main"))

	ahead, err := fx.repo.AheadCount(ctx, "main")
	require.NoError(t, err)
	behind, err := fx.repo.BehindCount(ctx, "main")
	require.NoError(t, err)
	assert.Equal(t, 0, ahead)
	assert.Equal(t, 1, behind)

	require.NoError(t, fx.repo.Commit(ctx, "first", CommitOptions{}))
	require.NoError(t, fx.repo.Commit(ctx, "second", CommitOptions{}))

	ahead, err = fx.repo.AheadCount(ctx, "main")
	require.NoError(t, err)
	assert.Equal(t, 2, ahead)
	assert.Equal(t, 2, fake.count("ahead:main"))

	behind, err = fx.repo.BehindCount(ctx, "main")
	require.NoError(t, err)
	assert.Equal(t, 1, behind)
	assert.Equal(t, 1, fake.count("behind:main"))
}

func TestRemoteForBranchFollowsConfig(t *testing.T) {
	ctx := context.Background()
	fake := newFakeDriver()
	fake.config["branch.main.remote"] = "origin"
	fake.remoteList = []git.Remote{
		{Name: "origin", FetchURL: "git@example.com:demo.git", PushURL: "git@example.com:demo.git"},
	}
	fx := openPresent(t, fake)

	remote, err := fx.repo.RemoteForBranch(ctx, "main")
	require.NoError(t, err)
	assert.Equal(t, "origin", remote.Name)
	assert.Equal(t, "git@example.com:demo.git", remote.FetchURL)

	// An unconfigured branch has no remote.
	_, err = fx.repo.RemoteForBranch(ctx, "feature")
	assert.ErrorIs(t, err, git.ErrNoRemote)

	// Rewriting the config key must show up on the next resolution.
	require.NoError(t, fx.repo.SetConfig(ctx, "branch.main.remote", "fork", ConfigOptions{}))

	remote, err = fx.repo.RemoteForBranch(ctx, "main")
	require.NoError(t, err)
	assert.Equal(t, "fork", remote.Name)
	assert.Empty(t, remote.FetchURL)
	assert.Equal(t, 2, fake.count("config-get:branch.main.remote"))
}

func TestMergeConflictsReflectLiveWorktree(t *testing.T) {
	ctx := context.Background()
	fake := newFakeDriver()
	fake.stages = []conflict.StageEntry{
		{Mode: "100644", OID: "base0", Stage: 1, Path: "both.txt"},
		{Mode: "100644", OID: "ours0", Stage: 2, Path: "both.txt"},
		{Mode: "100644", OID: "theirs0", Stage: 3, Path: "both.txt"},
	}
	fake.fileOIDs["both.txt"] = "merged0"
	fx := openPresent(t, fake)
	writeWorkFile(t, fx.dir, "both.txt", "merged content")

	conflicts, err := fx.repo.MergeConflicts(ctx)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, "both.txt", conflicts[0].Path)
	assert.Equal(t, conflict.StatusModified, conflicts[0].File)
	assert.Equal(t, conflict.StatusModified, conflicts[0].Ours)
	assert.Equal(t, conflict.StatusModified, conflicts[0].Theirs)

	// Deleting the conflicted file flips its status on the next call;
	// no cache sits in between.
	require.NoError(t, os.Remove(filepath.Join(fx.dir, "both.txt")))

	conflicts, err = fx.repo.MergeConflicts(ctx)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, conflict.StatusDeleted, conflicts[0].File)
	assert.Equal(t, 2, fake.count("unmerged"))
}

func TestPathHasMergeMarkersReadsFile(t *testing.T) {
	ctx := context.Background()
	fx := newPresentRepo(t)

	writeWorkFile(t, fx.dir, "conflicted.txt", "intro\n<<<<<<< HEAD\nours\n=======\ntheirs\n>>>>>>> feature\n")
	writeWorkFile(t, fx.dir, "clean.txt", "just text\n<<< not a marker\n")

	has, err := fx.repo.PathHasMergeMarkers(ctx, "conflicted.txt")
	require.NoError(t, err)
	assert.True(t, has)

	has, err = fx.repo.PathHasMergeMarkers(ctx, "clean.txt")
	require.NoError(t, err)
	assert.False(t, has)

	has, err = fx.repo.PathHasMergeMarkers(ctx, "missing.txt")
	require.NoError(t, err)
	assert.False(t, has)
}

func TestIsMergingIsNeverCached(t *testing.T) {
	ctx := context.Background()
	fake := newFakeDriver()
	fake.merging = true
	fx := openPresent(t, fake)

	merging, err := fx.repo.IsMerging(ctx)
	require.NoError(t, err)
	assert.True(t, merging)

	fake.mu.Lock()
	fake.merging = false
	fake.mu.Unlock()

	merging, err = fx.repo.IsMerging(ctx)
	require.NoError(t, err)
	assert.False(t, merging)
	assert.Equal(t, 2, fake.count("merging"))
}

func TestIsPartiallyStagedComposition(t *testing.T) {
	ctx := context.Background()
	fake := newFakeDriver()
	fake.unstaged = []git.ChangedFile{
		{Path: "split.txt", Status: patch.Modified},
		{Path: "work-only.txt", Status: patch.Modified},
	}
	fake.staged = []git.ChangedFile{
		{Path: "split.txt", Status: patch.Modified},
		{Path: "index-only.txt", Status: patch.Modified},
	}
	fx := openPresent(t, fake)

	for path, want := range map[string]bool{
		"split.txt":      true,
		"work-only.txt":  false,
		"index-only.txt": false,
		"absent.txt":     false,
	} {
		got, err := fx.repo.IsPartiallyStaged(ctx, path)
		require.NoError(t, err)
		assert.Equal(t, want, got, path)
	}

	// All four answers came from one status and one staged listing.
	assert.Equal(t, 1, fake.count("status"))
	assert.Equal(t, 1, fake.count("staged-list"))
}

func TestReadFileFromIndex(t *testing.T) {
	ctx := context.Background()
	fake := newFakeDriver()
	fake.indexData["a.txt"] = []byte("staged content\n")
	fx := openPresent(t, fake)

	content, err := fx.repo.ReadFileFromIndex(ctx, "a.txt")
	require.NoError(t, err)
	assert.Equal(t, "staged content\n", string(content))

	_, err = fx.repo.ReadFileFromIndex(ctx, "a.txt")
	require.NoError(t, err)
	assert.Equal(t, 1, fake.count("index:a.txt"))

	var cmdErr *git.CommandError
	_, err = fx.repo.ReadFileFromIndex(ctx, "missing.txt")
	require.Error(t, err)
	assert.ErrorAs(t, err, &cmdErr)
}
