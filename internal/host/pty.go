package host

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/creack/pty"
	"go.uber.org/zap"

	"github.com/ArduPilot/ardupilot-vscode-devenv-sub002/internal/logging"
	"github.com/ArduPilot/ardupilot-vscode-devenv-sub002/internal/shared/id"
)

// PTY is a Host backed by real pseudo-terminals. Each terminal spawns a shell
// process; output is streamed to subscribers and exit codes are recovered via
// shell-integration markers appended to every submitted command.
type PTY struct {
	log *logging.Logger

	mu        sync.Mutex
	terminals map[string]*ptyTerminal

	starts  *fanout[ExecutionStart]
	ends    *fanout[ExecutionEnd]
	outputs *fanout[Output]
	closes  *fanout[string]
}

// NewPTY creates a PTY host.
func NewPTY(log *logging.Logger) *PTY {
	return &PTY{
		log:       log,
		terminals: make(map[string]*ptyTerminal),
		starts:    newFanout[ExecutionStart](),
		ends:      newFanout[ExecutionEnd](),
		outputs:   newFanout[Output](),
		closes:    newFanout[string](),
	}
}

// Find returns the live terminal registered under name, if any.
func (h *PTY) Find(name string) (Terminal, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	t, ok := h.terminals[name]
	if !ok {
		return nil, false
	}
	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return nil, false
	}
	return t, true
}

// Create spawns a shell under a new pseudo-terminal registered under name.
func (h *PTY) Create(name string, opts Options) (Terminal, error) {
	shell := opts.Shell
	if shell == "" {
		shell = os.Getenv("SHELL")
		if shell == "" {
			shell = "/bin/bash"
		}
	}
	workingDir := opts.WorkingDir
	if workingDir == "" {
		workingDir = os.Getenv("HOME")
		if workingDir == "" {
			workingDir = "/tmp"
		}
	}
	cols, rows := opts.Cols, opts.Rows
	if cols <= 0 {
		cols = 80
	}
	if rows <= 0 {
		rows = 24
	}

	cmd := exec.Command(shell)
	cmd.Dir = workingDir
	cmd.Env = append(os.Environ(), "TERM=xterm-256color")
	for key, value := range opts.Env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", key, value))
	}

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{
		Rows: uint16(rows),
		Cols: uint16(cols),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start PTY: %w", err)
	}

	t := &ptyTerminal{
		id:   string(id.NewTerminalID()),
		name: name,
		host: h,
		cmd:  cmd,
		ptmx: ptmx,
	}

	h.mu.Lock()
	h.terminals[name] = t
	h.mu.Unlock()

	go t.readOutput()
	go t.monitorProcess()

	h.log.Info("terminal created",
		zap.String("terminal", name),
		zap.String("id", t.id),
		zap.String("shell", shell))
	return t, nil
}

func (h *PTY) SubscribeStart(fn func(ExecutionStart)) func() { return h.starts.add(fn) }
func (h *PTY) SubscribeEnd(fn func(ExecutionEnd)) func()     { return h.ends.add(fn) }
func (h *PTY) SubscribeOutput(fn func(Output)) func()        { return h.outputs.add(fn) }
func (h *PTY) SubscribeClosed(fn func(string)) func()        { return h.closes.add(fn) }

// ptyTerminal is one shell process behind a pseudo-terminal.
type ptyTerminal struct {
	id   string
	name string
	host *PTY
	cmd  *exec.Cmd
	ptmx *os.File

	mu      sync.Mutex
	pending string
	visible bool
	closed  bool
}

func (t *ptyTerminal) Name() string { return t.name }

// Send writes the command followed by a finished marker so the output reader
// can attribute an exit code to it. The start event fires immediately; the
// matching end event fires when the marker is observed in the output stream.
func (t *ptyTerminal) Send(command string) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return fmt.Errorf("terminal %q is closed", t.name)
	}
	t.pending = command
	t.mu.Unlock()

	t.host.starts.emit(ExecutionStart{
		Terminal:    t.name,
		CommandLine: command,
		Time:        time.Now(),
	})

	line := fmt.Sprintf("%s; printf '%sD;%%d%s' \"$?\"\n", command, "\x1b]133;", "\x07")
	_, err := t.ptmx.WriteString(line)
	return err
}

// Interrupt sends ^C to the foreground process group.
func (t *ptyTerminal) Interrupt() error {
	_, err := t.ptmx.Write([]byte{0x03})
	return err
}

func (t *ptyTerminal) Show() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.visible = true
}

func (t *ptyTerminal) Hide() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.visible = false
}

// Close kills the shell process and releases the PTY.
func (t *ptyTerminal) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()

	if t.cmd.Process != nil {
		t.cmd.Process.Kill()
	}
	return t.ptmx.Close()
}

// readOutput streams PTY output, stripping finished markers and emitting the
// corresponding execution-end events.
func (t *ptyTerminal) readOutput() {
	var scanner markerScanner
	buf := make([]byte, 4096)
	for {
		n, err := t.ptmx.Read(buf)
		if n > 0 {
			text, codes := scanner.scan(buf[:n])
			if text != "" {
				t.host.outputs.emit(Output{Terminal: t.name, Data: text, Time: time.Now()})
			}
			for _, code := range codes {
				t.finishPending(code)
			}
		}
		if err != nil {
			if err != io.EOF {
				t.host.log.Debug("terminal read ended",
					zap.String("terminal", t.name), zap.Error(err))
			}
			return
		}
	}
}

func (t *ptyTerminal) finishPending(code int) {
	t.mu.Lock()
	command := t.pending
	t.pending = ""
	t.mu.Unlock()

	exit := code
	t.host.ends.emit(ExecutionEnd{
		Terminal:    t.name,
		CommandLine: command,
		ExitCode:    &exit,
		Time:        time.Now(),
	})
}

// monitorProcess waits for the shell to exit, then unregisters the terminal
// and notifies closed-subscribers.
func (t *ptyTerminal) monitorProcess() {
	t.cmd.Wait()

	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	t.ptmx.Close()

	t.host.mu.Lock()
	if current, ok := t.host.terminals[t.name]; ok && current == t {
		delete(t.host.terminals, t.name)
	}
	t.host.mu.Unlock()

	t.host.closes.emit(t.name)
}
