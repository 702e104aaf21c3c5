package terminal

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ArduPilot/ardupilot-vscode-devenv-sub002/internal/host"
	"github.com/ArduPilot/ardupilot-vscode-devenv-sub002/internal/logging"
	"github.com/ArduPilot/ardupilot-vscode-devenv-sub002/internal/shared/id"
)

const (
	// DefaultSettleDelay is how long a freshly created terminal is given to
	// finish shell/profile startup before the first command is sent.
	DefaultSettleDelay = 1500 * time.Millisecond

	// DefaultTextTimeout bounds WaitForText/WaitForMatch when the caller
	// passes no timeout.
	DefaultTextTimeout = 30 * time.Second

	disposeRetryLimit    = 5
	disposeRetryInterval = time.Second
)

// RunOptions controls a single command run.
type RunOptions struct {
	// Nonblocking returns immediately with exit code 0 instead of waiting
	// for the execution to end. Listeners still fire asynchronously.
	Nonblocking bool

	// OnStart, if set, fires once on the correlated execution-start event.
	OnStart func(Event)

	// OnEnd, if set, fires once on the next correlated execution-end event.
	OnEnd func(Event)
}

// Monitor owns one named terminal and correlates command runs against the
// host's event stream. At most one tracked command is meaningful at a time;
// starting a second run while one is outstanding overwrites the tracked
// command text.
type Monitor struct {
	name string
	reg  *Registry
	host host.Host
	log  *logging.Logger
	disp *dispatcher

	settle        time.Duration
	terminalOpts  host.Options
	retryLimit    int
	retryInterval time.Duration

	// createMu serializes terminal acquisition so concurrent EnsureTerminal
	// calls cannot each spawn a shell for the same name.
	createMu sync.Mutex

	mu       sync.Mutex
	term     host.Terminal
	tracked  string
	active   bool
	disposed bool
}

// Name returns the monitor's terminal name.
func (m *Monitor) Name() string { return m.name }

// Active reports whether a correlated execution is currently running.
func (m *Monitor) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// EnsureTerminal idempotently obtains a live terminal: an existing terminal
// registered under this monitor's name is reused, otherwise one is created
// and shown. Creation waits out a settle delay before returning because
// shell startup (login profiles, interpreter environment activation) is
// asynchronous and otherwise races the first command.
func (m *Monitor) EnsureTerminal(ctx context.Context) error {
	m.createMu.Lock()
	defer m.createMu.Unlock()

	m.mu.Lock()
	if m.term != nil {
		term := m.term
		m.mu.Unlock()
		term.Show()
		return nil
	}
	m.mu.Unlock()

	if t, ok := m.host.Find(m.name); ok {
		m.mu.Lock()
		m.term = t
		m.mu.Unlock()
		t.Show()
		return nil
	}

	t, err := m.host.Create(m.name, m.terminalOpts)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrNoTerminal, m.name, err)
	}
	m.mu.Lock()
	m.term = t
	m.mu.Unlock()
	t.Show()
	m.disp.emit(Event{Kind: KindOpened, Time: time.Now()})

	if m.settle > 0 {
		select {
		case <-time.After(m.settle):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Terminal returns the current terminal handle, or nil when none exists.
func (m *Monitor) Terminal() host.Terminal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.term
}

// Show makes the terminal visible, if one exists.
func (m *Monitor) Show() {
	if t := m.Terminal(); t != nil {
		t.Show()
	}
}

// Hide hides the terminal, if one exists.
func (m *Monitor) Hide() {
	if t := m.Terminal(); t != nil {
		t.Hide()
	}
}

// Interrupt delivers an interrupt to the terminal's foreground process, if a
// terminal exists.
func (m *Monitor) Interrupt() {
	if t := m.Terminal(); t != nil {
		t.Interrupt()
	}
}

// Run records command as the tracked command, sends it to the terminal, and
// in blocking mode suspends until the final sub-command's end event is
// observed, returning its exit code. A compound command ("a && b") completes
// only when the end event for its last part fires, since hosts may report
// each part as a separate execution.
func (m *Monitor) Run(ctx context.Context, command string, opts RunOptions) (int, error) {
	if err := m.EnsureTerminal(ctx); err != nil {
		return -1, err
	}

	m.mu.Lock()
	m.tracked = command
	term := m.term
	m.mu.Unlock()
	if term == nil {
		return -1, fmt.Errorf("%w: %s", ErrNoTerminal, m.name)
	}

	runID := id.NewRunID()
	m.log.Debug("command dispatched",
		zap.String("terminal", m.name),
		zap.Stringer("run", runID),
		zap.String("command", command),
		zap.Bool("nonblocking", opts.Nonblocking))

	if opts.OnStart != nil {
		m.disp.addListener(KindExecStart, true, opts.OnStart)
	}
	if opts.OnEnd != nil {
		m.disp.addListener(KindExecEnd, true, opts.OnEnd)
	}

	final := lastPart(command)
	whole := normalize(command)

	// The end listener is registered before the command is sent so an end
	// event emitted synchronously from Send cannot be missed. Only events
	// for the command's final part (or the whole command) are queued;
	// intermediate compound parts and pass-through activity on a busy
	// terminal never crowd out the completing event.
	var ends chan Event
	var endID int
	if !opts.Nonblocking {
		ends = make(chan Event, 4)
		endID = m.disp.addListener(KindExecEnd, false, func(ev Event) {
			obs := normalize(ev.CommandLine)
			if obs != final && obs != whole {
				return
			}
			select {
			case ends <- ev:
			default:
			}
		})
	}

	if err := term.Send(command); err != nil {
		if ends != nil {
			m.disp.removeListener(KindExecEnd, endID)
		}
		return -1, fmt.Errorf("send %q to terminal %s: %w", command, m.name, err)
	}

	if opts.Nonblocking {
		return 0, nil
	}
	defer m.disp.removeListener(KindExecEnd, endID)

	select {
	case ev := <-ends:
		if ev.ExitCode == nil {
			return -1, fmt.Errorf("%w: %q", ErrMissingExitCode, command)
		}
		m.log.Debug("command completed",
			zap.String("terminal", m.name),
			zap.Stringer("run", runID),
			zap.Int("exit_code", *ev.ExitCode))
		return *ev.ExitCode, nil
	case <-ctx.Done():
		return -1, ctx.Err()
	}
}

// WaitFor registers a one-shot waiter for the next event of the given kind.
// A timeout of zero waits indefinitely (bounded only by ctx). The waiter is
// removed on every exit path.
func (m *Monitor) WaitFor(ctx context.Context, kind Kind, timeout time.Duration) (Event, error) {
	w := m.disp.addWaiter(kind)

	var expire <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		expire = t.C
	}

	select {
	case ev := <-w.ch:
		return ev, nil
	case <-expire:
		if ev, ok := m.disp.cancelWaiter(kind, w); ok {
			return ev, nil
		}
		return Event{}, fmt.Errorf("%w: no %s event within %s", ErrTimeout, kind, timeout)
	case <-ctx.Done():
		if ev, ok := m.disp.cancelWaiter(kind, w); ok {
			return ev, nil
		}
		return Event{}, ctx.Err()
	}
}

// WaitForText resolves with the first output chunk containing substr.
func (m *Monitor) WaitForText(ctx context.Context, substr string, timeout time.Duration) (string, error) {
	return m.waitText(ctx, func(s string) bool { return strings.Contains(s, substr) }, timeout)
}

// WaitForMatch resolves with the first output chunk matching re.
func (m *Monitor) WaitForMatch(ctx context.Context, re *regexp.Regexp, timeout time.Duration) (string, error) {
	return m.waitText(ctx, re.MatchString, timeout)
}

func (m *Monitor) waitText(ctx context.Context, match func(string) bool, timeout time.Duration) (string, error) {
	if timeout <= 0 {
		timeout = DefaultTextTimeout
	}

	found := make(chan string, 1)
	id := m.disp.addText(func(chunk string) {
		if match(chunk) {
			select {
			case found <- chunk:
			default:
			}
		}
	})
	defer m.disp.removeText(id)

	t := time.NewTimer(timeout)
	defer t.Stop()

	select {
	case s := <-found:
		return s, nil
	case <-t.C:
		return "", fmt.Errorf("%w: no matching output within %s", ErrTimeout, timeout)
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// AddListener registers a durable listener for kind; the returned id removes
// it. Listeners fire in registration order and are panic-isolated.
func (m *Monitor) AddListener(kind Kind, fn func(Event)) int {
	return m.disp.addListener(kind, false, fn)
}

// RemoveListener unregisters a listener by id.
func (m *Monitor) RemoveListener(kind Kind, id int) {
	m.disp.removeListener(kind, id)
}

// AddTextCallback registers a callback invoked on every output chunk.
func (m *Monitor) AddTextCallback(fn func(string)) int {
	return m.disp.addText(fn)
}

// RemoveTextCallback unregisters a text callback by id.
func (m *Monitor) RemoveTextCallback(id int) {
	m.disp.removeText(id)
}

// Dispose tears the monitor down. With no active execution it unregisters
// from the registry, clears every subscription, and closes the terminal;
// calling it again is a no-op.
//
// With an active execution it first tries to interrupt: send an interrupt
// signal, wait for the end event, retry up to five times. If the command
// never stops, disposal is ABORTED: the terminal stays open, the monitor
// stays registered, and ErrCleanupFailed is returned. Silently destroying a
// terminal running an unbounded process (a simulator, say) would orphan it.
func (m *Monitor) Dispose(ctx context.Context) error {
	m.mu.Lock()
	if m.disposed {
		m.mu.Unlock()
		return nil
	}
	active := m.active
	term := m.term
	m.mu.Unlock()

	if active && term != nil {
		if !m.interruptActive(ctx, term) {
			m.log.Warn("dispose aborted: active command did not stop, leaving terminal open",
				zap.String("terminal", m.name),
				zap.Int("attempts", m.retryLimit))
			return fmt.Errorf("%w: terminal %q after %d attempts", ErrCleanupFailed, m.name, m.retryLimit)
		}
	}

	m.mu.Lock()
	m.disposed = true
	term = m.term
	m.term = nil
	m.mu.Unlock()

	if term != nil {
		if err := term.Close(); err != nil {
			m.log.Warn("closing terminal failed", zap.String("terminal", m.name), zap.Error(err))
		}
	}
	m.disp.clear()
	m.reg.remove(m.name)
	return nil
}

// interruptActive is a bounded retry loop: interrupt, wait one interval for
// the correlated end event, give up after retryLimit rounds. The waiter is
// registered before the interrupt is sent so an end event that lands
// immediately cannot be missed.
func (m *Monitor) interruptActive(ctx context.Context, term host.Terminal) bool {
	for attempt := 1; attempt <= m.retryLimit; attempt++ {
		m.mu.Lock()
		active := m.active
		m.mu.Unlock()
		if !active {
			return true
		}

		w := m.disp.addWaiter(KindExecEnd)
		if err := term.Interrupt(); err != nil {
			m.log.Warn("interrupt failed",
				zap.String("terminal", m.name),
				zap.Int("attempt", attempt),
				zap.Error(err))
		}

		t := time.NewTimer(m.retryInterval)
		select {
		case <-w.ch:
			t.Stop()
			return true
		case <-t.C:
			if _, ok := m.disp.cancelWaiter(KindExecEnd, w); ok {
				return true
			}
		case <-ctx.Done():
			t.Stop()
			m.disp.cancelWaiter(KindExecEnd, w)
			return false
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.active
}

// handleExecStart is called by the registry for host start events on this
// monitor's terminal. Events that fail correlation are ignored.
func (m *Monitor) handleExecStart(ev host.ExecutionStart) {
	m.mu.Lock()
	tracked := m.tracked
	m.mu.Unlock()
	if !matchesTracked(tracked, ev.CommandLine) {
		return
	}

	m.mu.Lock()
	m.active = true
	m.mu.Unlock()
	m.disp.emit(Event{Kind: KindExecStart, Time: ev.Time, CommandLine: ev.CommandLine})
}

func (m *Monitor) handleExecEnd(ev host.ExecutionEnd) {
	m.mu.Lock()
	tracked := m.tracked
	m.mu.Unlock()
	if !matchesTracked(tracked, ev.CommandLine) {
		return
	}

	m.mu.Lock()
	m.active = false
	m.mu.Unlock()
	m.disp.emit(Event{Kind: KindExecEnd, Time: ev.Time, CommandLine: ev.CommandLine, ExitCode: ev.ExitCode})
}

func (m *Monitor) handleOutput(ev host.Output) {
	m.disp.emit(Event{Kind: KindText, Time: ev.Time, Text: ev.Data})
}

// handleClosed detaches the monitor from its terminal. The monitor stays in
// the registry until Dispose runs.
func (m *Monitor) handleClosed() {
	m.mu.Lock()
	m.term = nil
	m.active = false
	m.mu.Unlock()
	m.disp.emit(Event{Kind: KindClosed, Time: time.Now()})
}
