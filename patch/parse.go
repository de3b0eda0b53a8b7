package patch

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var hunkHeaderRe = regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@ ?(.*)$`)

// Parse splits raw `git diff` output into per-file patches.
func Parse(raw string) ([]*FilePatch, error) {
	var patches []*FilePatch
	var cur *FilePatch
	var hunk *Hunk
	oldNum, newNum := 0, 0

	flushHunk := func() {
		if hunk != nil && cur != nil {
			cur.Hunks = append(cur.Hunks, *hunk)
		}
		hunk = nil
	}
	flushFile := func() {
		flushHunk()
		if cur != nil {
			patches = append(patches, cur)
		}
		cur = nil
	}

	for _, line := range strings.Split(raw, "\n") {
		switch {
		case strings.HasPrefix(line, "diff --git "):
			flushFile()
			cur = &FilePatch{Status: Modified}
			cur.OldPath, cur.NewPath = parseHeaderPaths(line)
		case cur == nil:
			// Preamble before the first file header.
		case strings.HasPrefix(line, "new file mode "):
			cur.Status = Added
			cur.NewMode = strings.TrimPrefix(line, "new file mode ")
			cur.OldPath = ""
		case strings.HasPrefix(line, "deleted file mode "):
			cur.Status = Deleted
			cur.OldMode = strings.TrimPrefix(line, "deleted file mode ")
			cur.NewPath = ""
		case strings.HasPrefix(line, "old mode "):
			cur.OldMode = strings.TrimPrefix(line, "old mode ")
		case strings.HasPrefix(line, "new mode "):
			cur.NewMode = strings.TrimPrefix(line, "new mode ")
		case strings.HasPrefix(line, "rename from "):
			cur.Status = Renamed
			cur.OldPath = strings.TrimPrefix(line, "rename from ")
		case strings.HasPrefix(line, "rename to "):
			cur.Status = Renamed
			cur.NewPath = strings.TrimPrefix(line, "rename to ")
		case strings.HasPrefix(line, "similarity index "),
			strings.HasPrefix(line, "dissimilarity index "),
			strings.HasPrefix(line, "index "):
			// Metadata lines with nothing to keep.
		case strings.HasPrefix(line, "Binary files "), line == "GIT binary patch":
			cur.Binary = true
		case strings.HasPrefix(line, "--- "):
			if p := strings.TrimPrefix(line, "--- "); p == "/dev/null" {
				cur.OldPath = ""
			} else {
				cur.OldPath = stripPathPrefix(p)
			}
		case strings.HasPrefix(line, "+++ "):
			if p := strings.TrimPrefix(line, "+++ "); p == "/dev/null" {
				cur.NewPath = ""
			} else {
				cur.NewPath = stripPathPrefix(p)
			}
		case strings.HasPrefix(line, "@@ "):
			m := hunkHeaderRe.FindStringSubmatch(line)
			if m == nil {
				return nil, fmt.Errorf("parsing hunk header %q", line)
			}
			flushHunk()
			h := Hunk{
				OldStart: atoi(m[1], 0),
				OldLines: atoi(m[2], 1),
				NewStart: atoi(m[3], 0),
				NewLines: atoi(m[4], 1),
				Section:  m[5],
			}
			hunk = &h
			oldNum, newNum = h.OldStart, h.NewStart
		case hunk != nil && strings.HasPrefix(line, "+"):
			hunk.Lines = append(hunk.Lines, Line{Type: Addition, Text: line[1:], OldNum: NoLine, NewNum: newNum})
			newNum++
		case hunk != nil && strings.HasPrefix(line, "-"):
			hunk.Lines = append(hunk.Lines, Line{Type: Deletion, Text: line[1:], OldNum: oldNum, NewNum: NoLine})
			oldNum++
		case hunk != nil && strings.HasPrefix(line, " "):
			hunk.Lines = append(hunk.Lines, Line{Type: Context, Text: line[1:], OldNum: oldNum, NewNum: newNum})
			oldNum++
			newNum++
		case hunk != nil && strings.HasPrefix(line, `\`):
			if n := len(hunk.Lines); n > 0 {
				hunk.Lines[n-1].NoNewline = true
			}
		}
	}
	flushFile()
	return patches, nil
}

// ParseFile returns the first patch in raw, or nil when raw holds none.
func ParseFile(raw string) (*FilePatch, error) {
	patches, err := Parse(raw)
	if err != nil {
		return nil, err
	}
	if len(patches) == 0 {
		return nil, nil
	}
	return patches[0], nil
}

// parseHeaderPaths best-effort extracts paths from a `diff --git a/X b/Y`
// line. The --- and +++ (or rename from/to) lines that follow are
// authoritative and overwrite the result; this only matters for diffs
// that carry neither, such as empty file additions.
func parseHeaderPaths(line string) (oldPath, newPath string) {
	rest := strings.TrimPrefix(line, "diff --git ")
	if idx := strings.Index(rest, " b/"); idx >= 0 {
		return strings.TrimPrefix(rest[:idx], "a/"), rest[idx+len(" b/"):]
	}
	return "", ""
}

func stripPathPrefix(p string) string {
	if len(p) > 2 && (p[:2] == "a/" || p[:2] == "b/") {
		return p[2:]
	}
	return p
}

func atoi(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
