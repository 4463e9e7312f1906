package middleware

import (
	"context"
	"log/slog"

	"github.com/roach88/supervisor/internal/engine"
	"github.com/roach88/supervisor/internal/ir"
)

// Logger logs every action passing through the chain and how the rest of the
// chain settled it.
//
// Withheld actions log at info, failures at error, everything else at debug.
func Logger(logger *slog.Logger) engine.Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return engine.MiddlewareFunc(func(_ engine.API, next engine.Handler) engine.Handler {
		return func(ctx context.Context, action ir.Action) *engine.Deferred {
			logger.Debug("action received", "action", action.Type, "payload", action.Payload)

			return observe(ctx, next(ctx, action), func(out ir.Action, ok bool, err error) {
				switch {
				case err != nil:
					logger.Error("action failed", "action", action.Type, "error", err)
				case !ok:
					logger.Info("action withheld", "action", action.Type)
				case out.Type != action.Type:
					logger.Debug("action rewritten", "action", action.Type, "result", out.Type)
				default:
					logger.Debug("action passed", "action", action.Type)
				}
			})
		}
	})
}
