package git

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Commit is one commit's identity and metadata. Unborn marks the
// absence of any commit: a fresh repository before the first one.
type Commit struct {
	OID         string
	Subject     string
	AuthorName  string
	AuthorEmail string
	AuthoredAt  time.Time
	Parents     []string
	Unborn      bool
}

type CommitOptions struct {
	Amend      bool
	AllowEmpty bool
}

// Commit records the staged changes. The message goes in on stdin with
// verbatim cleanup, so callers control formatting completely.
func (c *Client) Commit(ctx context.Context, message string, opts CommitOptions) error {
	args := []string{"commit", "--cleanup=verbatim", "--file", "-"}
	if opts.Amend {
		args = append(args, "--amend")
	}
	if opts.AllowEmpty {
		args = append(args, "--allow-empty")
	}
	if !strings.HasSuffix(message, "\n") {
		message += "\n"
	}
	_, err := c.runStdin(ctx, []byte(message), args...)
	return err
}

const commitFormat = "%H%x00%s%x00%an%x00%ae%x00%at%x00%P"

// HeadCommit returns the commit HEAD points at, or an Unborn marker
// when the repository has no commits yet.
func (c *Client) HeadCommit(ctx context.Context) (*Commit, error) {
	oid, err := c.headOID(ctx)
	if err != nil {
		return nil, err
	}
	if oid == "" {
		return &Commit{Unborn: true}, nil
	}
	return c.GetCommit(ctx, oid)
}

// GetCommit resolves ref to a single commit.
func (c *Client) GetCommit(ctx context.Context, ref string) (*Commit, error) {
	out, err := c.run(ctx, "log", "-1", "--format="+commitFormat, ref, "--")
	if err != nil {
		return nil, err
	}
	return parseCommitLine(strings.TrimRight(out, "\n"))
}

// RecentCommits lists up to limit commits reachable from HEAD, newest
// first. An unborn HEAD yields an empty list.
func (c *Client) RecentCommits(ctx context.Context, limit int) ([]*Commit, error) {
	oid, err := c.headOID(ctx)
	if err != nil {
		return nil, err
	}
	if oid == "" {
		return nil, nil
	}
	out, err := c.run(ctx, "log", "--format="+commitFormat, "-n", strconv.Itoa(limit), oid, "--")
	if err != nil {
		return nil, err
	}
	var commits []*Commit
	for _, line := range strings.Split(out, "\n") {
		if line == "" {
			continue
		}
		commit, err := parseCommitLine(line)
		if err != nil {
			return nil, err
		}
		commits = append(commits, commit)
	}
	return commits, nil
}

// CountCommits counts commits reachable from to but not from from.
func (c *Client) CountCommits(ctx context.Context, from, to string) (int, error) {
	out, err := c.run(ctx, "rev-list", "--count", from+".."+to)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(out))
	if err != nil {
		return 0, fmt.Errorf("parsing rev-list count %q: %w", strings.TrimSpace(out), err)
	}
	return n, nil
}

func parseCommitLine(line string) (*Commit, error) {
	parts := strings.Split(line, "\x00")
	if len(parts) < 6 {
		return nil, fmt.Errorf("parsing commit record %q", line)
	}
	ts, err := strconv.ParseInt(parts[4], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing author timestamp: %w", err)
	}
	commit := &Commit{
		OID:         parts[0],
		Subject:     parts[1],
		AuthorName:  parts[2],
		AuthorEmail: parts[3],
		AuthoredAt:  time.Unix(ts, 0).UTC(),
	}
	if parts[5] != "" {
		commit.Parents = strings.Fields(parts[5])
	}
	return commit, nil
}
