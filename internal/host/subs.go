package host

import "sync"

// fanout is a small subscription list with cancelable entries.
type fanout[T any] struct {
	mu   sync.Mutex
	next int
	fns  map[int]func(T)
}

func newFanout[T any]() *fanout[T] {
	return &fanout[T]{fns: make(map[int]func(T))}
}

func (f *fanout[T]) add(fn func(T)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.next
	f.next++
	f.fns[id] = fn
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.fns, id)
	}
}

func (f *fanout[T]) emit(v T) {
	f.mu.Lock()
	fns := make([]func(T), 0, len(f.fns))
	for _, fn := range f.fns {
		fns = append(fns, fn)
	}
	f.mu.Unlock()
	for _, fn := range fns {
		fn(v)
	}
}
