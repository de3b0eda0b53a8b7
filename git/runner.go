package git

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
)

// Runner executes the git binary. The indirection keeps the client
// testable without a git installation on the machine running the tests.
type Runner interface {
	Run(ctx context.Context, dir string, stdin []byte, args ...string) (stdout, stderr []byte, exitCode int, err error)
}

// ExecRunner runs the real binary via os/exec. The zero value uses
// "git" from PATH.
type ExecRunner struct {
	Bin string
}

func (r ExecRunner) Run(ctx context.Context, dir string, stdin []byte, args ...string) ([]byte, []byte, int, error) {
	bin := r.Bin
	if bin == "" {
		bin = "git"
	}

	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Dir = dir
	// Keep plumbing output stable regardless of user configuration,
	// and stop background maintenance from taking index locks.
	cmd.Env = append(os.Environ(),
		"GIT_OPTIONAL_LOCKS=0",
		"LC_ALL=C",
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return stdout.Bytes(), stderr.Bytes(), exitErr.ExitCode(), nil
		}
		return stdout.Bytes(), stderr.Bytes(), -1, err
	}
	return stdout.Bytes(), stderr.Bytes(), 0, nil
}
