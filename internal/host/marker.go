package host

import (
	"strconv"
	"strings"
)

// The PTY host brackets every submitted command with an OSC 133-style "command
// finished" marker so exit codes can be recovered from the output stream:
//
//	ESC ] 133 ; D ; <exit code> BEL
const (
	markerPrefix = "\x1b]133;D;"
	markerSuffix = "\x07"
)

// markerScanner extracts finished markers from a terminal output stream and
// returns the surrounding text with markers stripped. Markers may be split
// across read chunks, so a partial tail is carried into the next call.
type markerScanner struct {
	carry string
}

func (s *markerScanner) scan(chunk []byte) (text string, codes []int) {
	data := s.carry + string(chunk)
	s.carry = ""

	var out strings.Builder
	for {
		idx := strings.Index(data, markerPrefix)
		if idx < 0 {
			break
		}
		out.WriteString(data[:idx])
		rest := data[idx+len(markerPrefix):]
		end := strings.Index(rest, markerSuffix)
		if end < 0 {
			// Incomplete marker, wait for the next chunk.
			s.carry = data[idx:]
			return out.String(), codes
		}
		if code, err := strconv.Atoi(rest[:end]); err == nil {
			codes = append(codes, code)
		}
		data = rest[end+len(markerSuffix):]
	}

	// Hold back a tail that could be the start of a marker.
	if n := partialPrefixLen(data, markerPrefix); n > 0 {
		s.carry = data[len(data)-n:]
		data = data[:len(data)-n]
	}
	out.WriteString(data)
	return out.String(), codes
}

// partialPrefixLen returns the length of the longest suffix of s that is a
// proper prefix of marker.
func partialPrefixLen(s, marker string) int {
	max := len(marker) - 1
	if len(s) < max {
		max = len(s)
	}
	for n := max; n > 0; n-- {
		if strings.HasSuffix(s, marker[:n]) {
			return n
		}
	}
	return 0
}
