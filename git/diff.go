package git

import (
	"context"
	"sort"
	"strings"

	"gitdock/patch"
)

// DiffOptions selects which sides of the index a diff compares.
// Unstaged diffs compare the working tree against the index; staged
// diffs compare the index against HEAD, or against HEAD~ when an amend
// is in flight. The base falls back to the empty tree while HEAD is
// unborn.
type DiffOptions struct {
	Staged   bool
	Amending bool
	Paths    []string
}

// DiffRaw returns unified diff text for the selected comparison.
func (c *Client) DiffRaw(ctx context.Context, opts DiffOptions) (string, error) {
	args, err := c.diffArgs(ctx, "--patch", opts)
	if err != nil {
		return "", err
	}
	return c.run(ctx, args...)
}

// DiffNameStatus lists changed paths for the selected comparison.
func (c *Client) DiffNameStatus(ctx context.Context, opts DiffOptions) ([]ChangedFile, error) {
	args, err := c.diffArgs(ctx, "--name-status", opts)
	if err != nil {
		return nil, err
	}
	out, err := c.run(ctx, args...)
	if err != nil {
		return nil, err
	}
	return parseNameStatus(out), nil
}

func (c *Client) diffArgs(ctx context.Context, mode string, opts DiffOptions) ([]string, error) {
	args := []string{"diff", mode, "--no-color", "--no-ext-diff", "--find-renames"}
	if opts.Staged {
		base, err := c.stagedBase(ctx, opts.Amending)
		if err != nil {
			return nil, err
		}
		args = append(args, "--cached", base)
	}
	if len(opts.Paths) > 0 {
		args = append(args, "--")
		args = append(args, opts.Paths...)
	}
	return args, nil
}

// stagedBase picks the tree the index is compared against.
func (c *Client) stagedBase(ctx context.Context, amending bool) (string, error) {
	ref := "HEAD"
	if amending {
		ref = "HEAD~"
	}
	out, _, code, err := c.runExit(ctx, "rev-parse", "-q", "--verify", ref+"^{commit}")
	if err != nil {
		return "", err
	}
	if code != 0 {
		// Unborn HEAD, or an amend of a root commit: everything staged
		// reads as added against the empty tree.
		return emptyTreeOID, nil
	}
	return strings.TrimSpace(out), nil
}

func parseNameStatus(out string) []ChangedFile {
	var files []ChangedFile
	for _, line := range strings.Split(out, "\n") {
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 2 {
			continue
		}
		code := fields[0]
		if code == "" {
			continue
		}
		switch code[0] {
		case 'R':
			if len(fields) < 3 {
				continue
			}
			files = append(files, ChangedFile{Path: fields[2], OrigPath: fields[1], Status: patch.Renamed})
		case 'C':
			// A copy nets out as an addition of the destination.
			if len(fields) < 3 {
				continue
			}
			files = append(files, ChangedFile{Path: fields[2], Status: patch.Added})
		default:
			status := charStatus(code[0])
			if status == "" {
				status = patch.Modified
			}
			files = append(files, ChangedFile{Path: fields[1], Status: status})
		}
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files
}
