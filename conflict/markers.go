package conflict

import (
	"bufio"
	"io"
	"regexp"
	"strings"
)

// markerRe matches exactly seven '<' or '>' at column zero, optionally
// followed by one space and a single-token label.
var markerRe = regexp.MustCompile(`^(<{7}|>{7})( \S+)?$`)

// LineIsMarker reports whether a single line is a conflict marker.
// Eight repeats, indentation, or a multi-word label all disqualify it.
func LineIsMarker(line string) bool {
	return markerRe.MatchString(strings.TrimSuffix(line, "\r"))
}

// HasMergeMarkers reports whether any line read from r is a conflict
// marker.
func HasMergeMarkers(r io.Reader) (bool, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		if LineIsMarker(scanner.Text()) {
			return true, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return false, err
	}
	return false, nil
}
