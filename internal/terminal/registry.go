package terminal

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ArduPilot/ardupilot-vscode-devenv-sub002/internal/host"
	"github.com/ArduPilot/ardupilot-vscode-devenv-sub002/internal/logging"
)

// Options configures monitors created by a Registry.
type Options struct {
	// SettleDelay overrides DefaultSettleDelay for new terminals.
	SettleDelay time.Duration

	// Terminal is passed through to host.Create.
	Terminal host.Options
}

// Registry maps terminal names to Monitor instances and demultiplexes
// host-level events to the right one. Host subscriptions are installed
// exactly once, on first use, regardless of how many monitors exist; events
// for terminal names no monitor owns are dropped.
type Registry struct {
	host host.Host
	log  *logging.Logger
	opts Options

	install sync.Once
	cancels []func()

	mu       sync.Mutex
	monitors map[string]*Monitor
}

// NewRegistry creates a registry over the given host substrate.
func NewRegistry(h host.Host, log *logging.Logger, opts Options) *Registry {
	if opts.SettleDelay == 0 {
		opts.SettleDelay = DefaultSettleDelay
	}
	return &Registry{
		host:     h,
		log:      log,
		opts:     opts,
		monitors: make(map[string]*Monitor),
	}
}

// Monitor returns the monitor registered under name, creating and
// registering one if absent.
func (r *Registry) Monitor(name string) *Monitor {
	r.installSubscriptions()

	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.monitors[name]; ok {
		return m
	}
	m := &Monitor{
		name:          name,
		reg:           r,
		host:          r.host,
		log:           r.log,
		disp:          newDispatcher(r.log),
		settle:        r.opts.SettleDelay,
		terminalOpts:  r.opts.Terminal,
		retryLimit:    disposeRetryLimit,
		retryInterval: disposeRetryInterval,
	}
	r.monitors[name] = m
	return m
}

// Get returns the monitor registered under name, if any.
func (r *Registry) Get(name string) (*Monitor, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.monitors[name]
	return m, ok
}

// Names returns the names of all registered monitors.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.monitors))
	for name := range r.monitors {
		names = append(names, name)
	}
	return names
}

// Len returns the number of registered monitors.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.monitors)
}

// DisposeAll disposes every registered monitor, honoring each one's
// graceful-teardown contract, then tears down the host subscriptions.
// Monitors whose disposal was aborted stay registered; their errors are
// joined into the return value.
func (r *Registry) DisposeAll(ctx context.Context) error {
	// Snapshot first: Dispose mutates the map.
	r.mu.Lock()
	monitors := make([]*Monitor, 0, len(r.monitors))
	for _, m := range r.monitors {
		monitors = append(monitors, m)
	}
	r.mu.Unlock()

	var errs []error
	for _, m := range monitors {
		if err := m.Dispose(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	for _, cancel := range r.cancels {
		cancel()
	}
	r.cancels = nil

	return errors.Join(errs...)
}

func (r *Registry) remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.monitors, name)
}

func (r *Registry) installSubscriptions() {
	r.install.Do(func() {
		r.cancels = append(r.cancels,
			r.host.SubscribeStart(func(ev host.ExecutionStart) {
				if m, ok := r.Get(ev.Terminal); ok {
					m.handleExecStart(ev)
				}
			}),
			r.host.SubscribeEnd(func(ev host.ExecutionEnd) {
				if m, ok := r.Get(ev.Terminal); ok {
					m.handleExecEnd(ev)
				}
			}),
			r.host.SubscribeOutput(func(ev host.Output) {
				if m, ok := r.Get(ev.Terminal); ok {
					m.handleOutput(ev)
				}
			}),
			r.host.SubscribeClosed(func(name string) {
				if m, ok := r.Get(name); ok {
					m.handleClosed()
				}
			}),
		)
	})
}
