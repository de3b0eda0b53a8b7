package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"gitdock/git"
	"gitdock/patch"
	"gitdock/snapshot"
)

func TestDiscardCapturesUndoHistory(t *testing.T) {
	ctx := context.Background()
	fake := newFakeDriver()
	fake.unstaged = []git.ChangedFile{{Path: "a.txt", Status: patch.Modified}}
	fake.checkoutFiles["a.txt"] = "clean\n"
	fx := openPresent(t, fake)
	writeWorkFile(t, fx.dir, "a.txt", "dirty\n")

	require.NoError(t, fx.repo.DiscardWorkDirChanges(ctx, "a.txt"))

	content, err := os.ReadFile(filepath.Join(fx.dir, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "clean\n", string(content))

	history := fx.repo.DiscardHistory()
	require.Len(t, history, 1)
	require.Len(t, history[0].Entries, 1)
	entry := history[0].Entries[0]
	assert.Equal(t, "a.txt", entry.Path)
	assert.NotEmpty(t, entry.BeforeHash)
	assert.NotEmpty(t, entry.AfterHash)
	assert.NotEqual(t, entry.BeforeHash, entry.AfterHash)

	// The stack hash is already persisted in metadata.
	recorded, err := fx.meta.GetMeta("discard-history")
	require.NoError(t, err)
	hash, err := fx.repo.CreateDiscardHistoryBlob(ctx)
	require.NoError(t, err)
	assert.Equal(t, string(recorded), hash)
}

func TestDiscardRemovesUntrackedFiles(t *testing.T) {
	ctx := context.Background()
	fake := newFakeDriver()
	fake.unstaged = []git.ChangedFile{{Path: "scratch.txt", Status: patch.Added}}
	fake.untracked["scratch.txt"] = true
	fx := openPresent(t, fake)
	writeWorkFile(t, fx.dir, "scratch.txt", "temporary\n")

	require.NoError(t, fx.repo.DiscardWorkDirChanges(ctx, "scratch.txt"))

	_, err := os.Stat(filepath.Join(fx.dir, "scratch.txt"))
	assert.True(t, os.IsNotExist(err))
	// Untracked paths never reach checkout.
	assert.Empty(t, fx.fake.checkouts)

	history := fx.repo.DiscardHistory()
	require.Len(t, history, 1)
	entry := history[0].Entries[0]
	assert.NotEmpty(t, entry.BeforeHash)
	assert.Empty(t, entry.AfterHash)
}

func TestDiscardRefusesConflictedPaths(t *testing.T) {
	ctx := context.Background()
	fake := newFakeDriver()
	fake.unmergedPaths = []string{"conflicted.txt"}
	fx := openPresent(t, fake)
	writeWorkFile(t, fx.dir, "conflicted.txt", "<<<<<<< HEAD\n")

	err := fx.repo.DiscardWorkDirChanges(ctx, "conflicted.txt")
	require.ErrorIs(t, err, snapshot.ErrNotSafe)

	// Nothing mutated and nothing was recorded.
	assert.Empty(t, fx.fake.checkouts)
	assert.Empty(t, fx.repo.DiscardHistory())
	_, statErr := os.Stat(filepath.Join(fx.dir, "conflicted.txt"))
	assert.NoError(t, statErr)
}

func TestPopRestoresDiscardedContent(t *testing.T) {
	ctx := context.Background()
	fake := newFakeDriver()
	fake.unstaged = []git.ChangedFile{{Path: "a.txt", Status: patch.Modified}}
	fake.untracked["fresh.txt"] = true
	fake.unstaged = append(fake.unstaged, git.ChangedFile{Path: "fresh.txt", Status: patch.Added})
	fake.checkoutFiles["a.txt"] = "clean\n"
	fx := openPresent(t, fake)
	writeWorkFile(t, fx.dir, "a.txt", "dirty\n")
	writeWorkFile(t, fx.dir, "fresh.txt", "untracked\n")

	require.NoError(t, fx.repo.DiscardWorkDirChanges(ctx, "a.txt", "fresh.txt"))

	_, err := os.Stat(filepath.Join(fx.dir, "fresh.txt"))
	require.True(t, os.IsNotExist(err))

	snap, err := fx.repo.PopDiscardHistory(ctx)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.ElementsMatch(t, []string{"a.txt", "fresh.txt"}, snap.Paths())

	content, err := os.ReadFile(filepath.Join(fx.dir, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "dirty\n", string(content))

	content, err = os.ReadFile(filepath.Join(fx.dir, "fresh.txt"))
	require.NoError(t, err)
	assert.Equal(t, "untracked\n", string(content))

	assert.Empty(t, fx.repo.DiscardHistory())

	// Popping an empty history is a no-op, not an error.
	snap, err = fx.repo.PopDiscardHistory(ctx)
	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestStoreBeforeAndAfterBlobsSafetyGate(t *testing.T) {
	ctx := context.Background()
	fx := newPresentRepo(t)
	writeWorkFile(t, fx.dir, "a.txt", "content\n")

	mutated := false
	_, err := fx.repo.StoreBeforeAndAfterBlobs(ctx, []string{"a.txt"},
		func() bool { return false },
		func() error { mutated = true; return nil },
		"")
	require.ErrorIs(t, err, snapshot.ErrNotSafe)
	assert.False(t, mutated)
	assert.Empty(t, fx.repo.DiscardHistory())
}

func TestStoreBeforeAndAfterBlobsTagsGroup(t *testing.T) {
	ctx := context.Background()
	fx := newPresentRepo(t)
	writeWorkFile(t, fx.dir, "a.txt", "before\n")

	snap, err := fx.repo.StoreBeforeAndAfterBlobs(ctx, []string{"a.txt"},
		func() bool { return true },
		func() error {
			writeWorkFile(t, fx.dir, "a.txt", "after\n")
			return nil
		},
		"partial-hunk")
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, "partial-hunk", snap.Group)
	require.Len(t, fx.repo.DiscardHistory(), 1)
}

func TestHistorySharedAcrossInstances(t *testing.T) {
	ctx := context.Background()

	fake1 := newFakeDriver()
	fake1.unstaged = []git.ChangedFile{{Path: "a.txt", Status: patch.Modified}}
	fake1.checkoutFiles["a.txt"] = "clean\n"
	fx := openPresent(t, fake1)
	writeWorkFile(t, fx.dir, "a.txt", "dirty\n")

	require.NoError(t, fx.repo.DiscardWorkDirChanges(ctx, "a.txt"))
	hash1, err := fx.repo.CreateDiscardHistoryBlob(ctx)
	require.NoError(t, err)
	require.NoError(t, fx.repo.UpdateDiscardHistory(ctx))

	// A second instance over the same directory and backing stores
	// reconstructs the identical stack.
	fake2 := newFakeDriver()
	fake2.root = fx.dir
	fake2.gitDir = fake1.gitDir
	store2 := snapshot.New(fx.dir, fx.objects, fx.meta, zap.NewNop())
	r2 := Open(fx.dir, WithDriver(fake2), WithSnapshots(store2))
	t.Cleanup(r2.Destroy)
	require.NoError(t, r2.WaitLoaded(ctx))

	hash2, err := r2.CreateDiscardHistoryBlob(ctx)
	require.NoError(t, err)
	assert.Equal(t, hash1, hash2)
	assert.Equal(t, fx.repo.DiscardHistory(), r2.DiscardHistory())
}

func TestCorruptHistoryMetadataStartsEmpty(t *testing.T) {
	ctx := context.Background()

	fake1 := newFakeDriver()
	fake1.unstaged = []git.ChangedFile{{Path: "a.txt", Status: patch.Modified}}
	fake1.checkoutFiles["a.txt"] = "clean\n"
	fx := openPresent(t, fake1)
	writeWorkFile(t, fx.dir, "a.txt", "dirty\n")
	require.NoError(t, fx.repo.DiscardWorkDirChanges(ctx, "a.txt"))
	require.NotEmpty(t, fx.repo.DiscardHistory())

	require.NoError(t, fx.meta.PutMeta("discard-history", []byte("not-a-real-hash")))

	fake2 := newFakeDriver()
	fake2.root = fx.dir
	fake2.gitDir = fake1.gitDir
	store2 := snapshot.New(fx.dir, fx.objects, fx.meta, zap.NewNop())
	r2 := Open(fx.dir, WithDriver(fake2), WithSnapshots(store2))
	t.Cleanup(r2.Destroy)
	require.NoError(t, r2.WaitLoaded(ctx))

	assert.Equal(t, StatePresent, r2.State())
	assert.Empty(t, r2.DiscardHistory())
}

func TestHistoryOpsWithoutStore(t *testing.T) {
	ctx := context.Background()
	fake := newFakeDriver()
	dir := t.TempDir()
	fake.root = dir
	// Pointing the git dir at a regular file makes the blob store
	// unopenable, so the repository settles Present without history.
	fake.gitDir = filepath.Join(dir, "gitdir-file")
	require.NoError(t, os.WriteFile(fake.gitDir, []byte("x"), 0o644))
	fake.unstaged = []git.ChangedFile{{Path: "a.txt", Status: patch.Modified}}
	fake.checkoutFiles["a.txt"] = "clean\n"

	r := Open(dir, WithDriver(fake))
	t.Cleanup(r.Destroy)
	require.NoError(t, r.WaitLoaded(ctx))
	require.Equal(t, StatePresent, r.State())

	_, err := r.CreateDiscardHistoryBlob(ctx)
	assert.ErrorIs(t, err, ErrHistoryUnavailable)
	assert.ErrorIs(t, r.UpdateDiscardHistory(ctx), ErrHistoryUnavailable)
	_, err = r.PopDiscardHistory(ctx)
	assert.ErrorIs(t, err, ErrHistoryUnavailable)
	_, err = r.StoreBeforeAndAfterBlobs(ctx, []string{"a.txt"},
		func() bool { return true }, func() error { return nil }, "")
	assert.ErrorIs(t, err, ErrHistoryUnavailable)
	assert.Nil(t, r.DiscardHistory())

	// Plain discards still work, just without an undo trail.
	writeWorkFile(t, dir, "a.txt", "dirty\n")
	require.NoError(t, r.DiscardWorkDirChanges(ctx, "a.txt"))
	content, err := os.ReadFile(filepath.Join(dir, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "clean\n", string(content))
}
