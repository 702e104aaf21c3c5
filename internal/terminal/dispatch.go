package terminal

import (
	"sync"

	"go.uber.org/zap"

	"github.com/ArduPilot/ardupilot-vscode-devenv-sub002/internal/logging"
)

// waiter is a one-shot future for the next event of a kind. The channel is
// buffered so emit never blocks on a waiter.
type waiter struct {
	ch chan Event
}

type eventListener struct {
	id   int
	once bool
	fn   func(Event)
}

type textCallback struct {
	id int
	fn func(string)
}

// dispatcher is the single delivery primitive behind a Monitor. Durable
// listeners and one-shot waiters are drained from the same emit call so the
// ordering guarantees live in one place: listeners fire in registration
// order, and the waiter list for a kind is detached under a single lock hold
// so a waiter registered after emit returns can never observe that event.
type dispatcher struct {
	log *logging.Logger

	mu        sync.Mutex
	nextID    int
	listeners map[Kind][]*eventListener
	waiters   map[Kind][]*waiter
	text      []*textCallback
}

func newDispatcher(log *logging.Logger) *dispatcher {
	return &dispatcher{
		log:       log,
		listeners: make(map[Kind][]*eventListener),
		waiters:   make(map[Kind][]*waiter),
	}
}

func (d *dispatcher) addListener(kind Kind, once bool, fn func(Event)) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.nextID
	d.nextID++
	d.listeners[kind] = append(d.listeners[kind], &eventListener{id: id, once: once, fn: fn})
	return id
}

func (d *dispatcher) removeListener(kind Kind, id int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	ls := d.listeners[kind]
	for i, l := range ls {
		if l.id == id {
			d.listeners[kind] = append(ls[:i:i], ls[i+1:]...)
			return
		}
	}
}

func (d *dispatcher) addText(fn func(string)) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.nextID
	d.nextID++
	d.text = append(d.text, &textCallback{id: id, fn: fn})
	return id
}

func (d *dispatcher) removeText(id int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, t := range d.text {
		if t.id == id {
			d.text = append(d.text[:i:i], d.text[i+1:]...)
			return
		}
	}
}

func (d *dispatcher) addWaiter(kind Kind) *waiter {
	w := &waiter{ch: make(chan Event, 1)}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.waiters[kind] = append(d.waiters[kind], w)
	return w
}

// cancelWaiter removes w from the pending list. If emit already drained it,
// the delivered event is returned instead so a timeout that loses the race
// still hands the caller the event.
func (d *dispatcher) cancelWaiter(kind Kind, w *waiter) (Event, bool) {
	d.mu.Lock()
	ws := d.waiters[kind]
	for i, cand := range ws {
		if cand == w {
			d.waiters[kind] = append(ws[:i:i], ws[i+1:]...)
			d.mu.Unlock()
			return Event{}, false
		}
	}
	d.mu.Unlock()

	select {
	case ev := <-w.ch:
		return ev, true
	default:
		return Event{}, false
	}
}

// emit resolves every pending waiter for the event's kind, then invokes
// listeners in registration order and, for text events, every text callback.
// A panicking subscriber is logged and does not stop delivery to the rest.
func (d *dispatcher) emit(ev Event) {
	d.mu.Lock()
	ws := d.waiters[ev.Kind]
	delete(d.waiters, ev.Kind)

	ls := make([]*eventListener, len(d.listeners[ev.Kind]))
	copy(ls, d.listeners[ev.Kind])
	if kept := dropOnce(d.listeners[ev.Kind]); len(kept) != len(ls) {
		d.listeners[ev.Kind] = kept
	}

	var tcbs []*textCallback
	if ev.Kind == KindText {
		tcbs = make([]*textCallback, len(d.text))
		copy(tcbs, d.text)
	}
	d.mu.Unlock()

	for _, w := range ws {
		w.ch <- ev
	}
	for _, l := range ls {
		d.safeCall(func() { l.fn(ev) })
	}
	for _, t := range tcbs {
		d.safeCall(func() { t.fn(ev.Text) })
	}
}

// clear drops every listener, waiter, and text callback. Pending waiters are
// left to their own timeouts.
func (d *dispatcher) clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners = make(map[Kind][]*eventListener)
	d.waiters = make(map[Kind][]*waiter)
	d.text = nil
}

func (d *dispatcher) waiterCount(kind Kind) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.waiters[kind])
}

func (d *dispatcher) safeCall(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Warn("terminal subscriber panicked", zap.Any("panic", r))
		}
	}()
	fn()
}

func dropOnce(ls []*eventListener) []*eventListener {
	kept := ls[:0:len(ls)]
	for _, l := range ls {
		if !l.once {
			kept = append(kept, l)
		}
	}
	return kept
}
