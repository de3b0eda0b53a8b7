package git

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"gitdock/conflict"
)

// Stage adds the given paths to the index, including deletions.
func (c *Client) Stage(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	args := append([]string{"add", "-A", "--"}, paths...)
	_, err := c.run(ctx, args...)
	return err
}

// Unstage resets the index entries for paths back to HEAD. While HEAD
// is unborn there is nothing to reset to, so the entries are dropped
// from the index instead.
func (c *Client) Unstage(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	args := append([]string{"reset", "-q", "HEAD", "--"}, paths...)
	_, err := c.run(ctx, args...)
	if err == nil {
		return nil
	}
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) && strings.Contains(cmdErr.Stderr, "HEAD") {
		args = append([]string{"rm", "--cached", "-r", "-q", "--ignore-unmatch", "--"}, paths...)
		_, err = c.run(ctx, args...)
	}
	return err
}

// ResetPaths points the index entries for paths at the tree of ref,
// leaving the working tree untouched.
func (c *Client) ResetPaths(ctx context.Context, ref string, paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	args := append([]string{"reset", "-q", ref, "--"}, paths...)
	_, err := c.run(ctx, args...)
	return err
}

// CheckoutPaths restores paths in the working tree from the index.
func (c *Client) CheckoutPaths(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	args := append([]string{"checkout", "--"}, paths...)
	_, err := c.run(ctx, args...)
	return err
}

// ApplyIndexPatch applies unified diff text to the index only.
func (c *Client) ApplyIndexPatch(ctx context.Context, patchText string) error {
	_, err := c.runStdin(ctx, []byte(patchText), "apply", "--cached", "--whitespace=nowarn", "-")
	return err
}

// Merge merges ref into the current branch without opening an editor.
func (c *Client) Merge(ctx context.Context, ref string) error {
	_, err := c.run(ctx, "merge", "--no-edit", ref)
	return err
}

// AbortMerge abandons an in-progress merge and restores the pre-merge
// state.
func (c *Client) AbortMerge(ctx context.Context) error {
	_, err := c.run(ctx, "merge", "--abort")
	return err
}

// UnmergedEntries lists the index's conflict stage entries.
func (c *Client) UnmergedEntries(ctx context.Context) ([]conflict.StageEntry, error) {
	out, err := c.run(ctx, "ls-files", "-u", "-z")
	if err != nil {
		return nil, err
	}
	var entries []conflict.StageEntry
	for _, rec := range strings.Split(out, "\x00") {
		if rec == "" {
			continue
		}
		// mode SP oid SP stage TAB path
		head, path, ok := strings.Cut(rec, "\t")
		if !ok {
			continue
		}
		fields := strings.Fields(head)
		if len(fields) != 3 {
			continue
		}
		stage, err := strconv.Atoi(fields[2])
		if err != nil {
			continue
		}
		entries = append(entries, conflict.StageEntry{
			Mode:  fields[0],
			OID:   fields[1],
			Stage: stage,
			Path:  path,
		})
	}
	return entries, nil
}
