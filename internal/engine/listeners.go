package engine

import (
	"slices"
	"sync"

	"github.com/roach88/supervisor/internal/ir"
)

// Listener is invoked with the new state after each completed cycle.
type Listener func(state ir.State)

// ActionWatcher is invoked with each action as its cycle starts.
type ActionWatcher func(env ir.Envelope)

// listenerSet is an ordered, copy-on-write set of callbacks.
// Notification iterates a snapshot, so callbacks may add or remove
// listeners (including themselves) without deadlocking.
type listenerSet[T any] struct {
	mu      sync.Mutex
	nextID  int
	entries []listenerEntry[T]
}

type listenerEntry[T any] struct {
	id int
	fn func(T)
}

// add registers fn and returns a function that removes it.
// The returned function is idempotent.
func (l *listenerSet[T]) add(fn func(T)) func() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.nextID++
	id := l.nextID
	l.entries = append(slices.Clip(l.entries), listenerEntry[T]{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() { l.remove(id) })
	}
}

func (l *listenerSet[T]) remove(id int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = slices.DeleteFunc(slices.Clone(l.entries), func(e listenerEntry[T]) bool { return e.id == id })
}

func (l *listenerSet[T]) snapshot() []listenerEntry[T] {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.entries
}

// notify calls every registered callback in registration order.
func (l *listenerSet[T]) notify(v T) {
	for _, e := range l.snapshot() {
		e.fn(v)
	}
}

// len returns the number of registered callbacks.
func (l *listenerSet[T]) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// stateWatcher delivers state snapshots to one WatchState callback in seq
// order, dropping anything not newer than what it already delivered.
// This keeps the initial replay and the first live notification from racing.
type stateWatcher struct {
	mu   sync.Mutex
	last int64
	fn   Listener
}

func (w *stateWatcher) deliver(snap *snapshot) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if snap.seq <= w.last {
		return
	}
	w.last = snap.seq
	w.fn(snap.state.Clone())
}
