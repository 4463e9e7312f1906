package catalog

import (
	"context"
	"log/slog"
	"time"

	"github.com/roach88/supervisor/internal/engine"
	"github.com/roach88/supervisor/internal/ir"
	"github.com/roach88/supervisor/internal/middleware"
)

// Action types handled by the main module.
const (
	ActionPing = "PING"
	ActionPong = "PONG"
)

// MainOptions selects the middleware installed on the main module.
// Nil or zero fields are left out of the chain.
type MainOptions struct {
	Logger   *slog.Logger
	Metrics  *middleware.Metrics
	Throttle *middleware.Throttle
	Timeout  time.Duration
}

// Main returns the demo main module: identity reducer, the PING → PONG
// effect, and the middleware selected by opts in the order
// recover, logger, metrics, throttle, timeout.
func Main(opts MainOptions) engine.MainModule {
	mws := []engine.Middleware{middleware.Recover()}
	if opts.Logger != nil {
		mws = append(mws, middleware.Logger(opts.Logger))
	}
	if opts.Metrics != nil {
		mws = append(mws, opts.Metrics)
	}
	if opts.Throttle != nil {
		mws = append(mws, opts.Throttle)
	}
	if opts.Timeout > 0 {
		mws = append(mws, middleware.Timeout(opts.Timeout))
	}

	return engine.MainModule{
		Reducer:     engine.IdentityReducer,
		Effects:     []engine.Effect{PingEffect()},
		Middlewares: mws,
	}
}

// PingEffect answers every PING with a PONG.
func PingEffect() engine.Effect {
	return engine.OfType([]string{ActionPing}, func(context.Context, ir.Action, ir.State) *engine.Deferred {
		return engine.Resolve(ir.Action{Type: ActionPong})
	})
}
