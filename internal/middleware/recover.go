package middleware

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/roach88/supervisor/internal/engine"
	"github.com/roach88/supervisor/internal/ir"
)

// RecoveryError wraps a panic value with the stack trace.
type RecoveryError struct {
	PanicValue any
	StackTrace string
}

func (e *RecoveryError) Error() string {
	return fmt.Sprintf("panic recovered: %v", e.PanicValue)
}

// Recover converts a panic raised further down the chain into a failed
// result, so the cycle is reported as a middleware failure instead of
// crashing the Run goroutine.
//
// Only the synchronous part of the chain is covered. Reducers and effects
// run outside the chain; wrap effects with RecoverEffect.
func Recover() engine.Middleware {
	return engine.MiddlewareFunc(func(_ engine.API, next engine.Handler) engine.Handler {
		return func(ctx context.Context, action ir.Action) (d *engine.Deferred) {
			defer func() {
				if r := recover(); r != nil {
					d = engine.Fail(&RecoveryError{
						PanicValue: r,
						StackTrace: string(debug.Stack()),
					})
				}
			}()
			return next(ctx, action)
		}
	})
}

// RecoverEffect wraps an effect so a panic in its synchronous part becomes
// a failed result.
func RecoverEffect(effect engine.Effect) engine.Effect {
	return engine.EffectFunc(func(ctx context.Context, action ir.Action, state ir.State) (d *engine.Deferred) {
		defer func() {
			if r := recover(); r != nil {
				d = engine.Fail(&RecoveryError{
					PanicValue: r,
					StackTrace: string(debug.Stack()),
				})
			}
		}()
		return effect.Run(ctx, action, state)
	})
}
