// Package ws streams live terminal events to the editor over WebSocket.
//
// Each connection attaches to one named monitor and receives its output
// chunks and lifecycle events as JSON frames; input frames are forwarded to
// the underlying terminal.
package ws
