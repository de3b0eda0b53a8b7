// Package conflict classifies unmerged paths from their index stage
// entries into the net outcome each side wanted and what the working
// tree currently holds.
package conflict

import (
	"sort"
)

type Status string

const (
	StatusAdded      Status = "added"
	StatusModified   Status = "modified"
	StatusDeleted    Status = "deleted"
	StatusEquivalent Status = "equivalent"
)

// StageEntry is one unmerged index entry as reported by `ls-files -u`.
// Stage 1 holds the merge base, 2 ours, 3 theirs.
type StageEntry struct {
	Mode  string
	OID   string
	Stage int
	Path  string
}

// Conflict is the three-way classification for one path.
type Conflict struct {
	Path   string
	File   Status
	Ours   Status
	Theirs Status
}

// Worktree probes the live working directory during classification.
type Worktree interface {
	Exists(path string) bool
	FileOID(path string) (string, error)
}

// Classify groups stage entries by path and derives per-side and file
// statuses. The file status reflects the working tree at call time, so
// deleting a conflicted file flips it to deleted on the next call.
func Classify(entries []StageEntry, wt Worktree) []Conflict {
	byPath := make(map[string]map[int]StageEntry)
	for _, e := range entries {
		stages, ok := byPath[e.Path]
		if !ok {
			stages = make(map[int]StageEntry)
			byPath[e.Path] = stages
		}
		stages[e.Stage] = e
	}

	paths := make([]string, 0, len(byPath))
	for p := range byPath {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	conflicts := make([]Conflict, 0, len(paths))
	for _, path := range paths {
		stages := byPath[path]
		_, hasBase := stages[1]
		ours, hasOurs := stages[2]
		theirs, hasTheirs := stages[3]

		c := Conflict{
			Path:   path,
			Ours:   sideStatus(hasOurs, hasBase),
			Theirs: sideStatus(hasTheirs, hasBase),
		}
		c.File = fileStatus(wt, path, hasBase, ours, hasOurs, theirs, hasTheirs)
		conflicts = append(conflicts, c)
	}
	return conflicts
}

func sideStatus(present, hasBase bool) Status {
	switch {
	case !present:
		return StatusDeleted
	case hasBase:
		return StatusModified
	default:
		return StatusAdded
	}
}

// fileStatus is the net working-tree outcome for the path. The
// equivalent answer is deliberately narrow: only a modify/delete
// conflict whose surviving file still matches its side's staged
// content qualifies.
func fileStatus(wt Worktree, path string, hasBase bool, ours StageEntry, hasOurs bool, theirs StageEntry, hasTheirs bool) Status {
	if wt == nil || !wt.Exists(path) {
		return StatusDeleted
	}
	oid, err := wt.FileOID(path)
	if err != nil {
		oid = ""
	}

	switch {
	case hasOurs && hasTheirs:
		if !hasBase && (oid == ours.OID || oid == theirs.OID) {
			// Both sides added; the file currently holds one side
			// verbatim, so the outcome reads as a plain addition.
			return StatusAdded
		}
		return StatusModified
	case hasOurs:
		return survivorStatus(oid, ours.OID, hasBase)
	case hasTheirs:
		return survivorStatus(oid, theirs.OID, hasBase)
	default:
		return StatusDeleted
	}
}

func survivorStatus(worktreeOID, stageOID string, hasBase bool) Status {
	if worktreeOID == stageOID && worktreeOID != "" {
		if hasBase {
			return StatusEquivalent
		}
		return StatusAdded
	}
	return StatusModified
}
