package terminal

import "time"

// Kind classifies monitor events.
type Kind int

const (
	// KindText fires for every chunk of output text.
	KindText Kind = iota
	// KindOpened fires when the monitor's terminal is created.
	KindOpened
	// KindClosed fires when the terminal is closed externally.
	KindClosed
	// KindExecStart fires when a correlated shell execution begins.
	KindExecStart
	// KindExecEnd fires when a correlated shell execution finishes.
	KindExecEnd
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindOpened:
		return "opened"
	case KindClosed:
		return "closed"
	case KindExecStart:
		return "exec-start"
	case KindExecEnd:
		return "exec-end"
	default:
		return "unknown"
	}
}

// Event is a transient notification delivered to listeners and waiters.
// Text is set for KindText; CommandLine and ExitCode for execution events.
// ExitCode is nil when the host could not determine one.
type Event struct {
	Kind        Kind
	Time        time.Time
	Text        string
	CommandLine string
	ExitCode    *int
}
