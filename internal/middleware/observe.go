package middleware

import (
	"context"

	"github.com/roach88/supervisor/internal/engine"
	"github.com/roach88/supervisor/internal/ir"
)

// observe calls fn with the settled result of d and returns an equivalent
// Deferred. Completed results are observed inline; pending ones on the
// goroutine that awaits them.
func observe(ctx context.Context, d *engine.Deferred, fn func(action ir.Action, ok bool, err error)) *engine.Deferred {
	select {
	case <-d.Done():
		a, ok, err := d.Await(ctx)
		fn(a, ok, err)
		return d
	default:
	}
	return engine.Defer(func() (ir.Action, bool, error) {
		a, ok, err := d.Await(ctx)
		fn(a, ok, err)
		return a, ok, err
	})
}
