// Command server runs the terminal-monitor service backing the ArduPilot
// editor extension.
package main
