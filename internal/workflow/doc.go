// Package workflow implements the embedded-firmware development operations
// (clone, configure, build, flash, SITL) on top of the terminal session
// monitors. Each operation is a tracked command in a named terminal; build
// steps run blocking, the SITL simulator runs nonblocking and is stopped via
// the monitor's graceful-dispose path.
package workflow
