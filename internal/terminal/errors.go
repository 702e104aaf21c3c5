package terminal

import "errors"

// Sentinel errors for the monitor's failure taxonomy. Callers use errors.Is
// to tell a timeout from a command failure or a refused cleanup.
var (
	// ErrTimeout reports that a wait operation exceeded its bound.
	ErrTimeout = errors.New("wait timed out")

	// ErrNoTerminal reports that no terminal exists and none could be created.
	ErrNoTerminal = errors.New("no terminal available")

	// ErrMissingExitCode reports that a blocking run completed without a
	// resolvable exit code.
	ErrMissingExitCode = errors.New("execution ended without exit code")

	// ErrCleanupFailed reports that dispose could not interrupt an active
	// execution; the terminal is deliberately left open.
	ErrCleanupFailed = errors.New("active execution could not be interrupted")
)
