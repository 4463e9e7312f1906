package middleware

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/roach88/supervisor/internal/engine"
	"github.com/roach88/supervisor/internal/ir"
)

// Throttle applies a token bucket per action type and withholds actions
// over the limit. Engine-owned action types are never throttled.
type Throttle struct {
	limit  rate.Limit
	burst  int
	logger *slog.Logger
	now    func() time.Time

	mu     sync.Mutex
	byType map[string]*rate.Limiter
}

// NewThrottle creates a per-type limiter; returns nil if args are invalid.
// A nil *Throttle passes every action through.
func NewThrottle(rps float64, burst int, logger *slog.Logger) *Throttle {
	if rps <= 0 || burst <= 0 {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Throttle{
		limit:  rate.Limit(rps),
		burst:  burst,
		logger: logger,
		now:    time.Now,
		byType: make(map[string]*rate.Limiter),
	}
}

// Allow reports whether one token can be consumed for actionType at now.
func (t *Throttle) Allow(actionType string, now time.Time) bool {
	if t == nil || ir.IsBuiltin(actionType) {
		return true
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	l, ok := t.byType[actionType]
	if !ok {
		l = rate.NewLimiter(t.limit, t.burst)
		t.byType[actionType] = l
	}
	return l.AllowN(now, 1)
}

// Wrap implements engine.Middleware.
func (t *Throttle) Wrap(_ engine.API, next engine.Handler) engine.Handler {
	if t == nil {
		return next
	}
	return func(ctx context.Context, action ir.Action) *engine.Deferred {
		if !t.Allow(action.Type, t.now()) {
			t.logger.Warn("action throttled", "action", action.Type, "rps", float64(t.limit), "burst", t.burst)
			return engine.Skip()
		}
		return next(ctx, action)
	}
}
