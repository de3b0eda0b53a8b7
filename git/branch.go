package git

import (
	"context"
	"fmt"
	"strings"
)

// Branch carries no commit hash on purpose: advancing HEAD with a new
// commit does not change which branches exist or which one is checked
// out, so branch listings stay valid across commits.
type Branch struct {
	Name string
	// Upstream is the short upstream ref, empty when none is set.
	Upstream string
	// Detached marks a detached HEAD; Name then holds a short oid.
	Detached bool
}

// Branches lists local branches with their upstreams.
func (c *Client) Branches(ctx context.Context) ([]Branch, error) {
	out, err := c.run(ctx, "for-each-ref", "refs/heads", "--format=%(refname:short)%00%(upstream:short)")
	if err != nil {
		return nil, err
	}
	var branches []Branch
	for _, line := range strings.Split(out, "\n") {
		if line == "" {
			continue
		}
		name, upstream, _ := strings.Cut(line, "\x00")
		branches = append(branches, Branch{Name: name, Upstream: upstream})
	}
	return branches, nil
}

// CurrentBranch describes what HEAD points at. A detached HEAD comes
// back with the short oid as its name and Detached set.
func (c *Client) CurrentBranch(ctx context.Context) (Branch, error) {
	out, err := c.run(ctx, "branch", "--show-current")
	if err != nil {
		return Branch{}, err
	}
	name := strings.TrimSpace(out)
	if name == "" {
		short, err := c.run(ctx, "rev-parse", "--short", "HEAD")
		if err != nil {
			return Branch{}, err
		}
		return Branch{Name: strings.TrimSpace(short), Detached: true}, nil
	}

	upstream, _, code, err := c.runExit(ctx, "rev-parse", "--abbrev-ref", "--symbolic-full-name", name+"@{upstream}")
	if err != nil {
		return Branch{}, err
	}
	branch := Branch{Name: name}
	if code == 0 {
		branch.Upstream = strings.TrimSpace(upstream)
	}
	return branch, nil
}

// Ahead counts commits on branch that its upstream lacks.
func (c *Client) Ahead(ctx context.Context, branch string) (int, error) {
	upstream, err := c.upstreamOf(ctx, branch)
	if err != nil {
		return 0, err
	}
	return c.CountCommits(ctx, upstream, branch)
}

// Behind counts commits on the upstream that branch lacks.
func (c *Client) Behind(ctx context.Context, branch string) (int, error) {
	upstream, err := c.upstreamOf(ctx, branch)
	if err != nil {
		return 0, err
	}
	return c.CountCommits(ctx, branch, upstream)
}

func (c *Client) upstreamOf(ctx context.Context, branch string) (string, error) {
	out, _, code, err := c.runExit(ctx, "rev-parse", "--abbrev-ref", "--symbolic-full-name", branch+"@{upstream}")
	if err != nil {
		return "", err
	}
	if code != 0 {
		return "", fmt.Errorf("%s: %w", branch, ErrNoUpstream)
	}
	return strings.TrimSpace(out), nil
}
