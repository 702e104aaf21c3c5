package terminal

import (
	"regexp"
	"strings"
)

// separators splits a compound command line into its sub-commands.
var separators = regexp.MustCompile(`&&|\|\||;`)

// normalize trims a command line and collapses internal whitespace so that
// cosmetic differences in how the shell echoes a command do not defeat
// correlation.
func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// matchesTracked decides whether an observed command line belongs to the
// tracked command:
//
//  1. no tracked command: accept unconditionally (pass-through)
//  2. normalized exact match: accept
//  3. the observed line matches one part of the tracked compound command:
//     accept (hosts report each sub-command as a separate execution)
//  4. otherwise: the event belongs to some other invocation, ignore it
func matchesTracked(tracked, observed string) bool {
	if tracked == "" {
		return true
	}
	obs := normalize(observed)
	if obs == normalize(tracked) {
		return true
	}
	for _, part := range separators.Split(tracked, -1) {
		if p := normalize(part); p != "" && p == obs {
			return true
		}
	}
	return false
}

// lastPart returns the normalized final sub-command of a compound command,
// or the whole normalized command when there are no separators. A blocking
// run is complete only when this part's end event fires.
func lastPart(command string) string {
	parts := separators.Split(command, -1)
	for i := len(parts) - 1; i >= 0; i-- {
		if p := normalize(parts[i]); p != "" {
			return p
		}
	}
	return normalize(command)
}
