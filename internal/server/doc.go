// Package server wires configuration, the terminal registry, the firmware
// workflows, and the HTTP/WebSocket surfaces into one runnable service.
package server
