// Package git shells out to the git binary and parses its plumbing
// output into the model types the rest of the module works with. One
// Client is bound to one working directory.
package git

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

type Client struct {
	dir    string
	runner Runner
	log    *zap.Logger
}

type Option func(*Client)

// WithRunner swaps the process runner, typically for a scripted fake.
func WithRunner(r Runner) Option {
	return func(c *Client) { c.runner = r }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.log = l }
}

func New(dir string, opts ...Option) *Client {
	c := &Client{
		dir:    dir,
		runner: ExecRunner{},
		log:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Dir() string { return c.dir }

// run executes git in the working directory, treating any non-zero
// exit as a failure.
func (c *Client) run(ctx context.Context, args ...string) (string, error) {
	return c.runStdin(ctx, nil, args...)
}

func (c *Client) runStdin(ctx context.Context, stdin []byte, args ...string) (string, error) {
	start := time.Now()
	stdout, stderr, code, err := c.runner.Run(ctx, c.dir, stdin, args...)
	c.log.Debug("git",
		zap.Strings("args", args),
		zap.Int("exit", code),
		zap.Duration("took", time.Since(start)))
	if err != nil {
		return "", fmt.Errorf("running git %s: %w", strings.Join(args, " "), err)
	}
	if code != 0 {
		return string(stdout), &CommandError{Args: args, ExitCode: code, Stderr: string(stderr)}
	}
	return string(stdout), nil
}

// runExit executes commands whose non-zero exit is data rather than
// failure, such as `config --get` and `rev-parse -q --verify`. It only
// errors when the process could not be spawned.
func (c *Client) runExit(ctx context.Context, args ...string) (stdout, stderr string, exitCode int, err error) {
	out, errOut, code, err := c.runner.Run(ctx, c.dir, nil, args...)
	if err != nil {
		return "", "", -1, fmt.Errorf("running git %s: %w", strings.Join(args, " "), err)
	}
	return string(out), string(errOut), code, nil
}
