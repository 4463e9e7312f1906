package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/supervisor/internal/engine"
	"github.com/roach88/supervisor/internal/ir"
)

// Outcome label values.
const (
	OutcomePassed   = "passed"
	OutcomeWithheld = "withheld"
	OutcomeFailed   = "failed"
)

// Metrics is a middleware that exports prometheus metrics for the actions
// passing through the chain.
type Metrics struct {
	actions  *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inFlight prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg uses prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "supervisor",
			Name:      "actions_total",
			Help:      "Actions handled by the middleware chain, by type and outcome.",
		}, []string{"type", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "supervisor",
			Name:      "action_chain_seconds",
			Help:      "Time from entering the middleware chain until the chain settled.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"type"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "supervisor",
			Name:      "actions_in_flight",
			Help:      "Actions currently inside the middleware chain.",
		}),
	}

	for _, c := range []prometheus.Collector{m.actions, m.duration, m.inFlight} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}
	return m, nil
}

// Wrap implements engine.Middleware.
func (m *Metrics) Wrap(_ engine.API, next engine.Handler) engine.Handler {
	return func(ctx context.Context, action ir.Action) *engine.Deferred {
		start := time.Now()
		m.inFlight.Inc()

		return observe(ctx, next(ctx, action), func(_ ir.Action, ok bool, err error) {
			m.inFlight.Dec()
			m.duration.WithLabelValues(action.Type).Observe(time.Since(start).Seconds())

			outcome := OutcomePassed
			switch {
			case err != nil:
				outcome = OutcomeFailed
			case !ok:
				outcome = OutcomeWithheld
			}
			m.actions.WithLabelValues(action.Type, outcome).Inc()
		})
	}
}
