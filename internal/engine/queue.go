package engine

import (
	"sync"

	"github.com/roach88/supervisor/internal/ir"
)

// EventKind distinguishes between queued event kinds.
type EventKind int

const (
	// EventAction is a plain action to run through the pipeline.
	EventAction EventKind = iota + 1
	// EventLoadModule attaches a feature module.
	EventLoadModule
	// EventUnloadModule detaches a feature module by slice key.
	EventUnloadModule
)

// Event is one entry in the action channel.
type Event struct {
	Kind     EventKind
	Envelope ir.Envelope
	Module   FeatureModule // EventLoadModule only
}

// actionQueue is the store's action channel: a thread-safe FIFO queue.
//
// The queue is unbounded so that effects can append follow-up actions from
// inside the Run goroutine without ever blocking it.
//
// Seq numbers are stamped under the queue lock, so queue order and seq order
// always agree even with many dispatching goroutines.
//
// The queue also counts pending work (queued plus in flight) so callers can
// wait for the store to settle.
type actionQueue struct {
	mu      sync.Mutex
	clock   *Clock
	events  []Event
	closed  bool
	signal  chan struct{} // Signals event availability (buffered, size 1)
	pending int
	idle    chan struct{} // Closed while pending == 0
}

// newActionQueue creates an empty queue stamping seqs from clock.
func newActionQueue(clock *Clock) *actionQueue {
	idle := make(chan struct{})
	close(idle)
	return &actionQueue{
		clock:  clock,
		events: make([]Event, 0, 64),
		signal: make(chan struct{}, 1),
		idle:   idle,
	}
}

// Enqueue stamps the event with the next seq and appends it.
// Thread-safe: may be called from any goroutine.
// Returns the stamped seq, or false if the queue is closed.
func (q *actionQueue) Enqueue(e Event) (int64, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return 0, false
	}

	e.Envelope.Seq = q.clock.Next()
	q.events = append(q.events, e)

	if q.pending == 0 {
		q.idle = make(chan struct{})
	}
	q.pending++

	// Non-blocking: a buffer of 1 coalesces multiple signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return e.Envelope.Seq, true
}

// TryDequeue removes and returns the front event without blocking.
// Returns (Event{}, false) if the queue is empty.
// The event stays pending until Ack is called.
func (q *actionQueue) TryDequeue() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return Event{}, false
	}

	e := q.events[0]

	// Clear the slot so the backing array does not pin payloads and modules.
	q.events[0] = Event{}
	if len(q.events) == 1 {
		q.events = q.events[:0]
	} else {
		q.events = q.events[1:]
	}

	return e, true
}

// Ack marks one dequeued event as fully processed.
func (q *actionQueue) Ack() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.release(1)
}

// release must be called with mu held.
func (q *actionQueue) release(n int) {
	q.pending -= n
	if q.pending <= 0 {
		q.pending = 0
		select {
		case <-q.idle:
		default:
			close(q.idle)
		}
	}
}

// Discard drops every queued event, e.g. when Run is cancelled.
func (q *actionQueue) Discard() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.events)
	clear(q.events)
	q.events = q.events[:0]
	q.release(n)
	return n
}

// Wait returns a channel that signals when events may be available.
// The channel is closed once the queue is closed.
func (q *actionQueue) Wait() <-chan struct{} {
	return q.signal
}

// Idle returns a channel that is closed when no event is queued or in flight.
func (q *actionQueue) Idle() <-chan struct{} {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.idle
}

// Len returns the current queue length.
func (q *actionQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Closed reports whether Close has been called.
func (q *actionQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Close signals that no more events will be enqueued.
// Wakes any blocked waiters by closing the signal channel.
func (q *actionQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}
