package middleware

import (
	"context"
	"time"

	"github.com/roach88/supervisor/internal/engine"
	"github.com/roach88/supervisor/internal/ir"
)

// Timeout bounds the deferred work of the rest of the chain. A chain that
// has not settled within d fails with context.DeadlineExceeded, which ends
// the cycle instead of stalling the store. Zero or negative duration
// disables the timeout.
func Timeout(d time.Duration) engine.Middleware {
	return engine.MiddlewareFunc(func(_ engine.API, next engine.Handler) engine.Handler {
		if d <= 0 {
			return next
		}
		return func(ctx context.Context, action ir.Action) *engine.Deferred {
			ctx, cancel := context.WithTimeout(ctx, d)
			res := next(ctx, action)
			return engine.Defer(func() (ir.Action, bool, error) {
				defer cancel()
				return res.Await(ctx)
			})
		}
	})
}
