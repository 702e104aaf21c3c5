package host

import (
	"fmt"
	"sync"
	"time"
)

// Stub is a scriptable in-memory Host for tests. Events are emitted
// synchronously from the Emit* methods so tests control interleaving exactly.
type Stub struct {
	// OnSend, when set, is invoked synchronously for every command sent to a
	// stub terminal. Tests use it to script start/end responses.
	OnSend func(terminal, command string)

	// FailCreate makes Create return an error, simulating a substrate that
	// cannot provide a terminal.
	FailCreate bool

	mu        sync.Mutex
	nextSub   int
	terminals map[string]*StubTerminal
	starts    map[int]func(ExecutionStart)
	ends      map[int]func(ExecutionEnd)
	outputs   map[int]func(Output)
	closes    map[int]func(string)
}

// NewStub creates an empty stub host.
func NewStub() *Stub {
	return &Stub{
		terminals: make(map[string]*StubTerminal),
		starts:    make(map[int]func(ExecutionStart)),
		ends:      make(map[int]func(ExecutionEnd)),
		outputs:   make(map[int]func(Output)),
		closes:    make(map[int]func(string)),
	}
}

// Find returns the terminal registered under name, if any.
func (s *Stub) Find(name string) (Terminal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.terminals[name]
	if !ok || t.closed {
		return nil, false
	}
	return t, true
}

// Create registers a new stub terminal under name.
func (s *Stub) Create(name string, opts Options) (Terminal, error) {
	if s.FailCreate {
		return nil, fmt.Errorf("stub host: terminal creation disabled")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &StubTerminal{name: name, host: s, opts: opts}
	s.terminals[name] = t
	return t, nil
}

func (s *Stub) SubscribeStart(fn func(ExecutionStart)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.starts[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.starts, id)
	}
}

func (s *Stub) SubscribeEnd(fn func(ExecutionEnd)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.ends[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.ends, id)
	}
}

func (s *Stub) SubscribeOutput(fn func(Output)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.outputs[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.outputs, id)
	}
}

func (s *Stub) SubscribeClosed(fn func(string)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.closes[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.closes, id)
	}
}

// EmitStart delivers an execution-start event for terminal.
func (s *Stub) EmitStart(terminal, commandLine string) {
	ev := ExecutionStart{Terminal: terminal, CommandLine: commandLine, Time: time.Now()}
	for _, fn := range s.startSubs() {
		fn(ev)
	}
}

// EmitEnd delivers an execution-end event carrying an exit code.
func (s *Stub) EmitEnd(terminal, commandLine string, exitCode int) {
	code := exitCode
	s.emitEnd(ExecutionEnd{Terminal: terminal, CommandLine: commandLine, ExitCode: &code, Time: time.Now()})
}

// EmitEndNoCode delivers an execution-end event without an exit code.
func (s *Stub) EmitEndNoCode(terminal, commandLine string) {
	s.emitEnd(ExecutionEnd{Terminal: terminal, CommandLine: commandLine, Time: time.Now()})
}

// EmitOutput delivers a chunk of terminal output.
func (s *Stub) EmitOutput(terminal, data string) {
	ev := Output{Terminal: terminal, Data: data, Time: time.Now()}
	s.mu.Lock()
	fns := make([]func(Output), 0, len(s.outputs))
	for _, fn := range s.outputs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

// EmitClosed delivers a terminal-closed event and drops the terminal.
func (s *Stub) EmitClosed(terminal string) {
	s.mu.Lock()
	if t, ok := s.terminals[terminal]; ok {
		t.closed = true
	}
	fns := make([]func(string), 0, len(s.closes))
	for _, fn := range s.closes {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(terminal)
	}
}

// Terminal returns the stub terminal registered under name for inspection.
func (s *Stub) Terminal(name string) *StubTerminal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.terminals[name]
}

func (s *Stub) startSubs() []func(ExecutionStart) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fns := make([]func(ExecutionStart), 0, len(s.starts))
	for _, fn := range s.starts {
		fns = append(fns, fn)
	}
	return fns
}

func (s *Stub) emitEnd(ev ExecutionEnd) {
	s.mu.Lock()
	fns := make([]func(ExecutionEnd), 0, len(s.ends))
	for _, fn := range s.ends {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

// StubTerminal records everything sent to it.
type StubTerminal struct {
	name string
	host *Stub
	opts Options

	mu         sync.Mutex
	sent       []string
	interrupts int
	visible    bool
	closed     bool
}

func (t *StubTerminal) Name() string { return t.name }

func (t *StubTerminal) Send(command string) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return fmt.Errorf("stub terminal %q is closed", t.name)
	}
	t.sent = append(t.sent, command)
	t.mu.Unlock()

	if t.host.OnSend != nil {
		t.host.OnSend(t.name, command)
	}
	return nil
}

func (t *StubTerminal) Interrupt() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.interrupts++
	return nil
}

func (t *StubTerminal) Show() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.visible = true
}

func (t *StubTerminal) Hide() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.visible = false
}

func (t *StubTerminal) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

// Sent returns a copy of every command sent to this terminal.
func (t *StubTerminal) Sent() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.sent))
	copy(out, t.sent)
	return out
}

// Interrupts returns how many interrupt signals were delivered.
func (t *StubTerminal) Interrupts() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.interrupts
}

// Closed reports whether Close was called.
func (t *StubTerminal) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// Visible reports whether the terminal is shown.
func (t *StubTerminal) Visible() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.visible
}
