// Package host defines the terminal substrate the session monitors run on.
//
// The monitor core never talks to a shell directly; it consumes lifecycle
// notifications (execution start/end, output, terminal closed) from a Host
// and injects text through a Terminal. Two implementations exist:
//   - PTY: real interactive shells over pseudo-terminals
//   - Stub: a scriptable emitter for tests
package host

import "time"

// Options configures terminal creation.
type Options struct {
	Shell      string
	WorkingDir string
	Env        map[string]string
	Cols       int
	Rows       int
}

// ExecutionStart notifies that a shell execution began in a terminal.
type ExecutionStart struct {
	Terminal    string
	CommandLine string
	Time        time.Time
}

// ExecutionEnd notifies that a shell execution finished. ExitCode is nil when
// the substrate could not determine one.
type ExecutionEnd struct {
	Terminal    string
	CommandLine string
	ExitCode    *int
	Time        time.Time
}

// Output carries a chunk of terminal output text.
type Output struct {
	Terminal string
	Data     string
	Time     time.Time
}

// Terminal is one interactive terminal owned by the host.
type Terminal interface {
	Name() string

	// Send injects a command line into the terminal's input stream.
	Send(command string) error

	// Interrupt sends an interrupt signal to the foreground process.
	Interrupt() error

	Show()
	Hide()

	// Close releases the terminal and its child process.
	Close() error
}

// Host provides terminal lookup, creation, and lifecycle notifications.
// Subscriptions return a cancel func; events are scoped per terminal name.
type Host interface {
	Find(name string) (Terminal, bool)
	Create(name string, opts Options) (Terminal, error)

	SubscribeStart(fn func(ExecutionStart)) (cancel func())
	SubscribeEnd(fn func(ExecutionEnd)) (cancel func())
	SubscribeOutput(fn func(Output)) (cancel func())
	SubscribeClosed(fn func(name string)) (cancel func())
}
