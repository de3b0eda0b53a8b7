// Package commitmsg normalizes commit messages before they reach the
// plumbing: comment lines are stripped and body lines hard-wrap at 72
// columns, while the subject line stays untouched however long it is.
package commitmsg

import "strings"

const wrapColumn = 72

// Format prepares a raw editor buffer for `git commit`. Lines whose
// first non-blank character is '#' are comments and are dropped. Blank
// lines separate paragraphs and are never merged away. Wrapping is
// per-line: user line breaks survive, only overlong lines split.
func Format(message string) string {
	var kept []string
	for _, line := range strings.Split(message, "\n") {
		if isComment(line) {
			continue
		}
		kept = append(kept, line)
	}

	// The subject is the first surviving non-blank line.
	start := 0
	for start < len(kept) && strings.TrimSpace(kept[start]) == "" {
		start++
	}
	if start == len(kept) {
		return ""
	}

	out := []string{strings.TrimRight(kept[start], " \t")}
	for _, line := range kept[start+1:] {
		if strings.TrimSpace(line) == "" {
			out = append(out, "")
			continue
		}
		out = append(out, wrapLine(line, wrapColumn)...)
	}

	end := len(out)
	for end > 1 && out[end-1] == "" {
		end--
	}
	return strings.Join(out[:end], "\n")
}

func isComment(line string) bool {
	return strings.HasPrefix(strings.TrimLeft(line, " \t"), "#")
}

// wrapLine greedily wraps one line, breaking at the last whitespace
// that keeps the head within width columns. A single word wider than
// the column is emitted unbroken rather than split mid-word.
func wrapLine(line string, width int) []string {
	var out []string
	runes := []rune(line)
	for len(runes) > width {
		cut := -1
		for i := width; i > 0; i-- {
			if isSpace(runes[i]) {
				cut = i
				break
			}
		}
		if cut <= 0 {
			next := -1
			for i := width + 1; i < len(runes); i++ {
				if isSpace(runes[i]) {
					next = i
					break
				}
			}
			if next < 0 {
				break
			}
			out = append(out, string(runes[:next]))
			runes = trimLeadingSpace(runes[next:])
			continue
		}
		out = append(out, strings.TrimRight(string(runes[:cut]), " \t"))
		runes = trimLeadingSpace(runes[cut:])
	}
	if len(runes) > 0 {
		out = append(out, string(runes))
	}
	return out
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t'
}

func trimLeadingSpace(runes []rune) []rune {
	i := 0
	for i < len(runes) && isSpace(runes[i]) {
		i++
	}
	return runes[i:]
}
