package terminal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ArduPilot/ardupilot-vscode-devenv-sub002/internal/logging"
)

func TestEmitListenerOrder(t *testing.T) {
	d := newDispatcher(logging.NewNop())

	var order []int
	for i := 1; i <= 4; i++ {
		i := i
		d.addListener(KindExecEnd, false, func(Event) { order = append(order, i) })
	}

	d.emit(Event{Kind: KindExecEnd, Time: time.Now()})
	assert.Equal(t, []int{1, 2, 3, 4}, order)
}

func TestEmitTextCallbackPanicIsolation(t *testing.T) {
	d := newDispatcher(logging.NewNop())

	var calls []int
	d.addText(func(string) { calls = append(calls, 1) })
	d.addText(func(string) { calls = append(calls, 2); panic("bad subscriber") })
	d.addText(func(string) { calls = append(calls, 3) })

	d.emit(Event{Kind: KindText, Text: "chunk"})

	// Every callback ran exactly once, in registration order, despite the
	// panic in the middle.
	assert.Equal(t, []int{1, 2, 3}, calls)
}

func TestEmitDrainsAllWaitersAtomically(t *testing.T) {
	d := newDispatcher(logging.NewNop())

	w1 := d.addWaiter(KindExecEnd)
	w2 := d.addWaiter(KindExecEnd)
	require.Equal(t, 2, d.waiterCount(KindExecEnd))

	d.emit(Event{Kind: KindExecEnd, CommandLine: "echo hi"})

	assert.Equal(t, 0, d.waiterCount(KindExecEnd))
	ev1 := <-w1.ch
	ev2 := <-w2.ch
	assert.Equal(t, "echo hi", ev1.CommandLine)
	assert.Equal(t, "echo hi", ev2.CommandLine)

	// A waiter registered after the emit does not see the old event.
	w3 := d.addWaiter(KindExecEnd)
	select {
	case <-w3.ch:
		t.Fatal("waiter registered after emit received a stale event")
	default:
	}
}

func TestCancelWaiterRemoves(t *testing.T) {
	d := newDispatcher(logging.NewNop())

	w := d.addWaiter(KindText)
	ev, delivered := d.cancelWaiter(KindText, w)
	assert.False(t, delivered)
	assert.Equal(t, Event{}, ev)
	assert.Equal(t, 0, d.waiterCount(KindText))
}

func TestCancelWaiterAfterDelivery(t *testing.T) {
	d := newDispatcher(logging.NewNop())

	w := d.addWaiter(KindText)
	d.emit(Event{Kind: KindText, Text: "hello"})

	// The waiter lost the removal race: cancel must surface the event that
	// was already delivered.
	ev, delivered := d.cancelWaiter(KindText, w)
	require.True(t, delivered)
	assert.Equal(t, "hello", ev.Text)
}

func TestOnceListenerFiresOnce(t *testing.T) {
	d := newDispatcher(logging.NewNop())

	count := 0
	d.addListener(KindExecStart, true, func(Event) { count++ })

	d.emit(Event{Kind: KindExecStart})
	d.emit(Event{Kind: KindExecStart})
	assert.Equal(t, 1, count)
}

func TestRemoveListener(t *testing.T) {
	d := newDispatcher(logging.NewNop())

	count := 0
	id := d.addListener(KindText, false, func(Event) { count++ })
	d.emit(Event{Kind: KindText})
	d.removeListener(KindText, id)
	d.emit(Event{Kind: KindText})

	assert.Equal(t, 1, count)
}

func TestClearDropsEverything(t *testing.T) {
	d := newDispatcher(logging.NewNop())

	d.addListener(KindText, false, func(Event) { t.Fatal("listener survived clear") })
	d.addText(func(string) { t.Fatal("text callback survived clear") })
	d.addWaiter(KindExecEnd)

	d.clear()
	assert.Equal(t, 0, d.waiterCount(KindExecEnd))
	d.emit(Event{Kind: KindText, Text: "x"})
}
