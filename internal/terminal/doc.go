// Package terminal implements session monitors for interactive terminals.
//
// A Monitor owns one named terminal on the host substrate and correlates a
// logical "run this command and tell me what happened" request against the
// stream of loosely-coupled lifecycle events the host emits for that
// terminal. It exposes:
//   - Run: send a command, optionally suspend until its exit code is known
//   - WaitFor / WaitForText / WaitForMatch: one-shot waits with timeouts
//   - AddListener / AddTextCallback: durable, panic-isolated subscriptions
//   - Dispose: graceful teardown that refuses to destroy a terminal whose
//     foreground command cannot be interrupted
//
// The Registry maps terminal names to Monitor instances and demultiplexes
// host-level events to the right one. Events for terminal names no Monitor
// owns are dropped.
//
// Correlation is best-effort string matching: shells may split a compound
// command like "a && b" into separate executions, so the tracked command is
// split on shell separators and each part is matched after whitespace
// normalization. Two back-to-back runs of the identical command string are
// indistinguishable; there is no execution identifier on the wire.
package terminal
