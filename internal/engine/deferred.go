package engine

import (
	"context"

	"github.com/roach88/supervisor/internal/ir"
)

// Deferred is a single-value container for the result of a middleware or
// effect. It lets the engine treat synchronous and asynchronous results the
// same way: every result is awaited before the cycle moves on.
//
// A Deferred resolves exactly once, to one of:
//   - an action (Resolve)
//   - no action (Skip): a middleware withheld next, or an effect had nothing to emit
//   - an error (Fail)
type Deferred struct {
	done   chan struct{}
	action ir.Action
	ok     bool
	err    error
}

// closedDone is shared by every Deferred that is complete at construction.
var closedDone = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// Resolve returns a completed Deferred carrying action.
func Resolve(action ir.Action) *Deferred {
	return &Deferred{done: closedDone, action: action, ok: true}
}

// Skip returns a completed Deferred carrying no action.
func Skip() *Deferred {
	return &Deferred{done: closedDone}
}

// Fail returns a completed Deferred carrying err.
func Fail(err error) *Deferred {
	return &Deferred{done: closedDone, err: err}
}

// Defer runs fn on its own goroutine and resolves with its result.
//
// fn reports ok=false to produce no action. This is the helper for
// middleware and effects that perform deferred work; the engine itself
// never starts goroutines for a cycle.
func Defer(fn func() (ir.Action, bool, error)) *Deferred {
	d := &Deferred{done: make(chan struct{})}
	go func() {
		defer close(d.done)
		d.action, d.ok, d.err = fn()
	}()
	return d
}

// Done returns a channel that is closed once the value is available.
func (d *Deferred) Done() <-chan struct{} {
	if d == nil {
		return closedDone
	}
	return d.done
}

// Await blocks until the value is available or ctx is done.
// A nil Deferred behaves like Skip().
func (d *Deferred) Await(ctx context.Context) (ir.Action, bool, error) {
	if d == nil {
		return ir.Action{}, false, nil
	}
	select {
	case <-d.done:
		return d.action, d.ok, d.err
	case <-ctx.Done():
		return ir.Action{}, false, ctx.Err()
	}
}

// normalize turns a nil result into Skip so downstream code never
// needs a nil check.
func normalize(d *Deferred) *Deferred {
	if d == nil {
		return Skip()
	}
	return d
}
