package patch

import (
	"fmt"
	"strings"
)

// Text renders the patch back into unified diff form accepted by
// `git apply`. Within each hunk, runs of changed lines come out
// deletions-first, which keeps inverted patches applicable.
func (p *FilePatch) Text() string {
	var b strings.Builder

	headerOld := p.OldPath
	if headerOld == "" {
		headerOld = p.NewPath
	}
	headerNew := p.NewPath
	if headerNew == "" {
		headerNew = p.OldPath
	}
	fmt.Fprintf(&b, "diff --git a/%s b/%s\n", headerOld, headerNew)

	switch p.Status {
	case Added:
		fmt.Fprintf(&b, "new file mode %s\n", modeOrDefault(p.NewMode))
	case Deleted:
		fmt.Fprintf(&b, "deleted file mode %s\n", modeOrDefault(p.OldMode))
	case Renamed:
		fmt.Fprintf(&b, "rename from %s\n", p.OldPath)
		fmt.Fprintf(&b, "rename to %s\n", p.NewPath)
	default:
		if p.OldMode != "" && p.NewMode != "" && p.OldMode != p.NewMode {
			fmt.Fprintf(&b, "old mode %s\n", p.OldMode)
			fmt.Fprintf(&b, "new mode %s\n", p.NewMode)
		}
	}

	if p.Binary {
		fmt.Fprintf(&b, "Binary files a/%s and b/%s differ\n", headerOld, headerNew)
		return b.String()
	}
	if len(p.Hunks) == 0 {
		return b.String()
	}

	if p.OldPath == "" {
		b.WriteString("--- /dev/null\n")
	} else {
		fmt.Fprintf(&b, "--- a/%s\n", p.OldPath)
	}
	if p.NewPath == "" {
		b.WriteString("+++ /dev/null\n")
	} else {
		fmt.Fprintf(&b, "+++ b/%s\n", p.NewPath)
	}

	for _, h := range p.Hunks {
		fmt.Fprintf(&b, "@@ -%d,%d +%d,%d @@", h.OldStart, h.OldLines, h.NewStart, h.NewLines)
		if h.Section != "" {
			b.WriteByte(' ')
			b.WriteString(h.Section)
		}
		b.WriteByte('\n')
		renderLines(&b, h.Lines)
	}
	return b.String()
}

func renderLines(b *strings.Builder, lines []Line) {
	i := 0
	for i < len(lines) {
		if lines[i].Type == Context {
			writeLine(b, ' ', lines[i])
			i++
			continue
		}
		j := i
		var dels, adds []Line
		for j < len(lines) && lines[j].Type != Context {
			if lines[j].Type == Deletion {
				dels = append(dels, lines[j])
			} else {
				adds = append(adds, lines[j])
			}
			j++
		}
		for _, l := range dels {
			writeLine(b, '-', l)
		}
		for _, l := range adds {
			writeLine(b, '+', l)
		}
		i = j
	}
}

func writeLine(b *strings.Builder, prefix byte, l Line) {
	b.WriteByte(prefix)
	b.WriteString(l.Text)
	b.WriteByte('\n')
	if l.NoNewline {
		b.WriteString("\\ No newline at end of file\n")
	}
}

func modeOrDefault(mode string) string {
	if mode == "" {
		return "100644"
	}
	return mode
}
