package git

import (
	"context"
	"fmt"
	"strings"
)

type Remote struct {
	Name     string
	FetchURL string
	PushURL  string
}

// Remotes lists configured remotes in `git remote -v` order.
func (c *Client) Remotes(ctx context.Context) ([]Remote, error) {
	out, err := c.run(ctx, "remote", "-v")
	if err != nil {
		return nil, err
	}

	var remotes []Remote
	index := make(map[string]int)
	for _, line := range strings.Split(out, "\n") {
		if line == "" {
			continue
		}
		name, rest, ok := strings.Cut(line, "\t")
		if !ok {
			continue
		}
		url, kind, _ := strings.Cut(rest, " ")
		i, seen := index[name]
		if !seen {
			remotes = append(remotes, Remote{Name: name})
			i = len(remotes) - 1
			index[name] = i
		}
		switch kind {
		case "(push)":
			remotes[i].PushURL = url
		default:
			remotes[i].FetchURL = url
		}
	}
	return remotes, nil
}

// RemoteForBranch resolves the remote a branch is configured to talk
// to. A remote named in config but absent from the remote list (a raw
// URL remote) comes back with only its name set.
func (c *Client) RemoteForBranch(ctx context.Context, branch string) (Remote, error) {
	name, err := c.ConfigGet(ctx, "branch."+branch+".remote", false)
	if err != nil {
		return Remote{}, err
	}
	if name == "" {
		return Remote{}, fmt.Errorf("%s: %w", branch, ErrNoRemote)
	}
	remotes, err := c.Remotes(ctx)
	if err != nil {
		return Remote{}, err
	}
	for _, r := range remotes {
		if r.Name == name {
			return r, nil
		}
	}
	return Remote{Name: name}, nil
}

// Fetch updates remote tracking refs for the branch's remote.
func (c *Client) Fetch(ctx context.Context, branch string) error {
	remote, err := c.RemoteForBranch(ctx, branch)
	if err != nil {
		return err
	}
	_, err = c.run(ctx, "fetch", remote.Name, branch)
	return err
}

// Pull fetches and integrates the branch's upstream.
func (c *Client) Pull(ctx context.Context, branch string) error {
	remote, err := c.RemoteForBranch(ctx, branch)
	if err != nil {
		return err
	}
	_, err = c.run(ctx, "pull", "--no-edit", remote.Name, branch)
	return err
}

type PushOptions struct {
	Force       bool
	SetUpstream bool
}

// Push publishes branch to its remote, defaulting to origin when no
// remote is configured yet (the first push of a new branch).
func (c *Client) Push(ctx context.Context, branch string, opts PushOptions) error {
	remoteName := "origin"
	if remote, err := c.RemoteForBranch(ctx, branch); err == nil {
		remoteName = remote.Name
	}
	args := []string{"push"}
	if opts.Force {
		args = append(args, "--force")
	}
	if opts.SetUpstream {
		args = append(args, "--set-upstream")
	}
	args = append(args, remoteName, branch)
	_, err := c.run(ctx, args...)
	return err
}
