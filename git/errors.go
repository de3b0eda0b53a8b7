package git

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotRepository reports that the working directory is not inside
	// a git repository.
	ErrNotRepository = errors.New("not a git repository")

	// ErrNoUpstream reports that a branch has no upstream configured,
	// so ahead/behind counts are undefined for it.
	ErrNoUpstream = errors.New("branch has no upstream")

	// ErrNoRemote reports that a branch has no remote configured.
	ErrNoRemote = errors.New("branch has no remote")
)

// CommandError reports a git invocation that exited non-zero.
type CommandError struct {
	Args     []string
	ExitCode int
	Stderr   string
}

func (e *CommandError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" {
		msg = "no error output"
	}
	return fmt.Sprintf("git %s (exit %d): %s", strings.Join(e.Args, " "), e.ExitCode, msg)
}
