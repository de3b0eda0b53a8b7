package git

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

// emptyTreeOID is the well-known hash of git's empty tree, used as the
// diff base while HEAD is unborn.
const emptyTreeOID = "4b825dc642cb6eb9a060e54bf8d69288fbee4904"

// GitDir resolves the repository's .git directory. It returns
// ErrNotRepository when the working directory is not under one.
func (c *Client) GitDir(ctx context.Context) (string, error) {
	out, err := c.run(ctx, "rev-parse", "--absolute-git-dir")
	if err != nil {
		var cmdErr *CommandError
		if errors.As(err, &cmdErr) && strings.Contains(cmdErr.Stderr, "not a git repository") {
			return "", ErrNotRepository
		}
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// Init creates an empty repository in the working directory, creating
// the directory itself if needed.
func (c *Client) Init(ctx context.Context) error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("creating workdir: %w", err)
	}
	_, err := c.run(ctx, "init")
	return err
}

// Clone clones url into the working directory.
func (c *Client) Clone(ctx context.Context, url string) error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("creating workdir: %w", err)
	}
	_, err := c.run(ctx, "clone", url, ".")
	return err
}

// HashObject hashes content with git's blob algorithm without writing
// anything to the object database.
func (c *Client) HashObject(ctx context.Context, content []byte) (string, error) {
	out, err := c.runStdin(ctx, content, "hash-object", "--stdin")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// HashFile hashes the current working-tree content of path.
func (c *Client) HashFile(ctx context.Context, path string) (string, error) {
	out, err := c.run(ctx, "hash-object", "--", path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// ReadBlob returns the raw content of the blob at oid.
func (c *Client) ReadBlob(ctx context.Context, oid string) ([]byte, error) {
	out, err := c.run(ctx, "cat-file", "blob", oid)
	if err != nil {
		return nil, err
	}
	return []byte(out), nil
}

// ReadIndexFile returns the staged (stage zero) content of path.
func (c *Client) ReadIndexFile(ctx context.Context, path string) ([]byte, error) {
	return c.ReadBlob(ctx, ":0:"+path)
}

// MergeInProgress reports whether MERGE_HEAD exists, reading the
// repository state live on every call.
func (c *Client) MergeInProgress(ctx context.Context) (bool, error) {
	_, _, code, err := c.runExit(ctx, "rev-parse", "-q", "--verify", "MERGE_HEAD")
	if err != nil {
		return false, err
	}
	return code == 0, nil
}

// headOID resolves HEAD to a commit oid, or "" while the repository
// has no commits.
func (c *Client) headOID(ctx context.Context) (string, error) {
	out, _, code, err := c.runExit(ctx, "rev-parse", "-q", "--verify", "HEAD^{commit}")
	if err != nil {
		return "", err
	}
	if code != 0 {
		return "", nil
	}
	return strings.TrimSpace(out), nil
}
