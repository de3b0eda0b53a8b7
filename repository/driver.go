package repository

import (
	"context"
	"os"
	"path/filepath"

	"gitdock/conflict"
	"gitdock/git"
)

// Driver is the git collaborator surface the repository depends on.
// *git.Client satisfies it; tests substitute a scripted fake.
type Driver interface {
	GitDir(ctx context.Context) (string, error)
	Init(ctx context.Context) error
	Clone(ctx context.Context, url string) error

	Status(ctx context.Context) (*git.Status, error)
	DiffRaw(ctx context.Context, opts git.DiffOptions) (string, error)
	DiffNameStatus(ctx context.Context, opts git.DiffOptions) ([]git.ChangedFile, error)
	ReadIndexFile(ctx context.Context, path string) ([]byte, error)
	HashFile(ctx context.Context, path string) (string, error)

	Stage(ctx context.Context, paths []string) error
	Unstage(ctx context.Context, paths []string) error
	ResetPaths(ctx context.Context, ref string, paths []string) error
	CheckoutPaths(ctx context.Context, paths []string) error
	ApplyIndexPatch(ctx context.Context, patchText string) error

	Commit(ctx context.Context, message string, opts git.CommitOptions) error
	HeadCommit(ctx context.Context) (*git.Commit, error)
	RecentCommits(ctx context.Context, limit int) ([]*git.Commit, error)

	Merge(ctx context.Context, ref string) error
	AbortMerge(ctx context.Context) error
	MergeInProgress(ctx context.Context) (bool, error)
	UnmergedEntries(ctx context.Context) ([]conflict.StageEntry, error)

	Branches(ctx context.Context) ([]git.Branch, error)
	CurrentBranch(ctx context.Context) (git.Branch, error)
	Ahead(ctx context.Context, branch string) (int, error)
	Behind(ctx context.Context, branch string) (int, error)

	Remotes(ctx context.Context) ([]git.Remote, error)
	Fetch(ctx context.Context, branch string) error
	Pull(ctx context.Context, branch string) error
	Push(ctx context.Context, branch string, opts git.PushOptions) error

	ConfigGet(ctx context.Context, key string, local bool) (string, error)
	ConfigSet(ctx context.Context, key, value string, local bool) error
}

var _ Driver = (*git.Client)(nil)

// worktreeProbe adapts the repository to the conflict package's live
// working-tree checks.
type worktreeProbe struct {
	ctx    context.Context
	root   string
	driver Driver
}

func (p *worktreeProbe) Exists(path string) bool {
	_, err := os.Stat(filepath.Join(p.root, path))
	return err == nil
}

func (p *worktreeProbe) FileOID(path string) (string, error) {
	return p.driver.HashFile(p.ctx, path)
}

var _ conflict.Worktree = (*worktreeProbe)(nil)

// statusPaths extracts the path set of one status side.
func statusPaths(files []git.ChangedFile) map[string]bool {
	set := make(map[string]bool, len(files))
	for _, f := range files {
		set[f.Path] = true
	}
	return set
}
