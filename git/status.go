package git

import (
	"context"
	"sort"
	"strings"

	"gitdock/patch"
)

// ChangedFile is one path's state on a single side of the index.
type ChangedFile struct {
	Path string
	// OrigPath is the rename source when Status is Renamed.
	OrigPath string
	Status   patch.Status
}

// Status is a full working-tree status snapshot. Untracked paths show
// up both in Unstaged (as additions) and in Untracked; conflicted
// paths appear only in Unmerged.
type Status struct {
	Staged    []ChangedFile
	Unstaged  []ChangedFile
	Untracked []string
	Unmerged  []string
}

// Status runs `git status --porcelain=v2` and splits the result into
// staged and unstaged sides. Output order is stable: sorted by path.
func (c *Client) Status(ctx context.Context) (*Status, error) {
	out, err := c.run(ctx, "status", "--porcelain=v2", "--untracked-files=all", "--find-renames")
	if err != nil {
		return nil, err
	}
	st := parseStatus(out)
	return st, nil
}

func parseStatus(out string) *Status {
	st := &Status{}
	for _, line := range strings.Split(out, "\n") {
		if line == "" {
			continue
		}
		switch line[0] {
		case '1':
			// 1 XY sub mH mI mW hH hI path
			parts := strings.SplitN(line, " ", 9)
			if len(parts) < 9 {
				continue
			}
			st.add(parts[1], parts[8], "")
		case '2':
			// 2 XY sub mH mI mW hH hI Xscore path TAB origPath
			parts := strings.SplitN(line, " ", 10)
			if len(parts) < 10 {
				continue
			}
			path, orig, _ := strings.Cut(parts[9], "\t")
			st.add(parts[1], path, orig)
		case 'u':
			// u XY sub m1 m2 m3 mW h1 h2 h3 path
			parts := strings.SplitN(line, " ", 11)
			if len(parts) < 11 {
				continue
			}
			st.Unmerged = append(st.Unmerged, parts[10])
		case '?':
			path := line[2:]
			st.Untracked = append(st.Untracked, path)
			st.Unstaged = append(st.Unstaged, ChangedFile{Path: path, Status: patch.Added})
		}
	}

	sortFiles(st.Staged)
	sortFiles(st.Unstaged)
	sort.Strings(st.Untracked)
	sort.Strings(st.Unmerged)
	return st
}

func (st *Status) add(xy, path, origPath string) {
	if len(xy) != 2 {
		return
	}
	if s := charStatus(xy[0]); s != "" {
		f := ChangedFile{Path: path, Status: s}
		if s == patch.Renamed {
			f.OrigPath = origPath
		}
		st.Staged = append(st.Staged, f)
	}
	if s := charStatus(xy[1]); s != "" {
		st.Unstaged = append(st.Unstaged, ChangedFile{Path: path, Status: s})
	}
}

func charStatus(ch byte) patch.Status {
	switch ch {
	case 'M', 'T':
		return patch.Modified
	case 'A', 'C':
		return patch.Added
	case 'D':
		return patch.Deleted
	case 'R':
		return patch.Renamed
	default:
		return ""
	}
}

func sortFiles(files []ChangedFile) {
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
}
