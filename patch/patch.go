// Package patch models file patches the way the diff plumbing emits
// them: one FilePatch per path, hunks in output order, line numbers
// carried per side with NoLine marking the absent side.
package patch

type Status string

const (
	Added    Status = "added"
	Modified Status = "modified"
	Deleted  Status = "deleted"
	Renamed  Status = "renamed"
)

type LineType int

const (
	Context LineType = iota
	Addition
	Deletion
)

// NoLine marks "no corresponding line on that side".
const NoLine = -1

type Line struct {
	Type   LineType
	Text   string
	OldNum int
	NewNum int
	// NoNewline records a "\ No newline at end of file" marker
	// following this line.
	NoNewline bool
}

type Hunk struct {
	OldStart int
	OldLines int
	NewStart int
	NewLines int
	Section  string
	Lines    []Line
}

type FilePatch struct {
	OldPath string
	NewPath string
	OldMode string
	NewMode string
	Status  Status
	Binary  bool
	Hunks   []Hunk
}

// Path returns the path the patch applies to, preferring the new side.
func (p *FilePatch) Path() string {
	if p.NewPath != "" {
		return p.NewPath
	}
	return p.OldPath
}

// Invert returns the structural inverse of p: applying p and then
// p.Invert() to the same index is a no-op. Staging UIs use this to
// build unstage patches.
func (p *FilePatch) Invert() *FilePatch {
	inv := &FilePatch{
		OldPath: p.NewPath,
		NewPath: p.OldPath,
		OldMode: p.NewMode,
		NewMode: p.OldMode,
		Status:  invertStatus(p.Status),
		Binary:  p.Binary,
	}
	if len(p.Hunks) == 0 {
		return inv
	}
	inv.Hunks = make([]Hunk, len(p.Hunks))
	for i, h := range p.Hunks {
		ih := Hunk{
			OldStart: h.NewStart,
			OldLines: h.NewLines,
			NewStart: h.OldStart,
			NewLines: h.OldLines,
			Section:  h.Section,
			Lines:    make([]Line, len(h.Lines)),
		}
		for j, l := range h.Lines {
			il := Line{
				Text:      l.Text,
				OldNum:    l.NewNum,
				NewNum:    l.OldNum,
				NoNewline: l.NoNewline,
			}
			switch l.Type {
			case Addition:
				il.Type = Deletion
			case Deletion:
				il.Type = Addition
			default:
				il.Type = Context
			}
			ih.Lines[j] = il
		}
		inv.Hunks[i] = ih
	}
	return inv
}

func invertStatus(s Status) Status {
	switch s {
	case Added:
		return Deleted
	case Deleted:
		return Added
	default:
		return s
	}
}
