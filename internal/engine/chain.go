package engine

import (
	"context"

	"github.com/roach88/supervisor/internal/ir"
)

// terminal is the innermost handler: it wraps the action into a completed unit.
func terminal(_ context.Context, action ir.Action) *Deferred {
	return Resolve(action)
}

// applyMiddleware binds every middleware against api once and composes the
// chain right to left. For middlewares A, B, C the execution flow is
// A → B → C → terminal: the first registered middleware sees the action first
// and the result last.
//
// Every link normalizes its result, so a middleware returning nil is read as
// a short-circuit and callers always get a non-nil *Deferred.
func applyMiddleware(api API, middlewares []Middleware) Handler {
	chain := Handler(terminal)
	for i := len(middlewares) - 1; i >= 0; i-- {
		next := chain
		h := middlewares[i].Wrap(api, next)
		if h == nil {
			continue
		}
		chain = func(ctx context.Context, action ir.Action) *Deferred {
			return normalize(h(ctx, action))
		}
	}
	return chain
}
