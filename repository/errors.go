package repository

import (
	"errors"
	"fmt"
)

var (
	// ErrNotReady classifies calls the repository cannot serve in its
	// current lifecycle state. ErrAbsent and ErrDestroyed both match
	// it via errors.Is.
	ErrNotReady = errors.New("repository not ready")

	// ErrAbsent reports a call against a working directory that holds
	// no repository.
	ErrAbsent = fmt.Errorf("%w: no repository in working directory", ErrNotReady)

	// ErrDestroyed reports a call after Destroy.
	ErrDestroyed = fmt.Errorf("%w: repository destroyed", ErrNotReady)

	// ErrAlreadyPresent reports an Init or Clone against a working
	// directory that already holds a repository.
	ErrAlreadyPresent = errors.New("repository already present")

	// ErrHistoryUnavailable reports that the discard history store
	// could not be opened. History operations fail with it; plain
	// discards still run, just without an undo trail.
	ErrHistoryUnavailable = errors.New("discard history store unavailable")
)
