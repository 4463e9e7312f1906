package middleware

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/supervisor/internal/engine"
	"github.com/roach88/supervisor/internal/ir"
)

func passThrough(_ context.Context, action ir.Action) *engine.Deferred {
	return engine.Resolve(action)
}

func withhold(context.Context, ir.Action) *engine.Deferred {
	return engine.Skip()
}

func failing(context.Context, ir.Action) *engine.Deferred {
	return engine.Fail(assert.AnError)
}

func await(t *testing.T, d *engine.Deferred) (ir.Action, bool, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return d.Await(ctx)
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	tests := []struct {
		name string
		next engine.Handler
		want string
	}{
		{"passed", passThrough, "action passed"},
		{"withheld", withhold, "action withheld"},
		{"failed", failing, "action failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf.Reset()
			h := Logger(logger).Wrap(nil, tt.next)
			_, _, _ = await(t, h(context.Background(), ir.Action{Type: "ADD"}))

			out := buf.String()
			assert.Contains(t, out, "action received")
			assert.Contains(t, out, tt.want)
			assert.Contains(t, out, "action=ADD")
		})
	}
}

func TestLogger_PreservesResult(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	slow := func(_ context.Context, action ir.Action) *engine.Deferred {
		return engine.Defer(func() (ir.Action, bool, error) {
			time.Sleep(5 * time.Millisecond)
			return ir.Action{Type: "REWRITTEN"}, true, nil
		})
	}

	h := Logger(logger).Wrap(nil, slow)
	a, ok, err := await(t, h(context.Background(), ir.Action{Type: "ADD"}))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "REWRITTEN", a.Type)
}

func TestRecover(t *testing.T) {
	panicking := func(context.Context, ir.Action) *engine.Deferred {
		panic("boom")
	}

	h := Recover().Wrap(nil, panicking)
	_, ok, err := await(t, h(context.Background(), ir.Action{Type: "ADD"}))
	assert.False(t, ok)

	var recErr *RecoveryError
	require.ErrorAs(t, err, &recErr)
	assert.Equal(t, "boom", recErr.PanicValue)
	assert.Contains(t, recErr.StackTrace, "goroutine")
	assert.Equal(t, "panic recovered: boom", err.Error())
}

func TestRecover_NoPanic(t *testing.T) {
	h := Recover().Wrap(nil, passThrough)
	a, ok, err := await(t, h(context.Background(), ir.Action{Type: "ADD"}))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "ADD", a.Type)
}

func TestRecoverEffect(t *testing.T) {
	effect := RecoverEffect(engine.EffectFunc(func(context.Context, ir.Action, ir.State) *engine.Deferred {
		panic("effect boom")
	}))

	_, _, err := await(t, effect.Run(context.Background(), ir.Action{Type: "ADD"}, ir.State{}))
	var recErr *RecoveryError
	require.ErrorAs(t, err, &recErr)
	assert.Equal(t, "effect boom", recErr.PanicValue)
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)

	ctx := context.Background()
	_, _, _ = await(t, m.Wrap(nil, passThrough)(ctx, ir.Action{Type: "ADD"}))
	_, _, _ = await(t, m.Wrap(nil, passThrough)(ctx, ir.Action{Type: "ADD"}))
	_, _, _ = await(t, m.Wrap(nil, withhold)(ctx, ir.Action{Type: "ADD"}))
	_, _, _ = await(t, m.Wrap(nil, failing)(ctx, ir.Action{Type: "REMOVE"}))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.actions.WithLabelValues("ADD", OutcomePassed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.actions.WithLabelValues("ADD", OutcomeWithheld)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.actions.WithLabelValues("REMOVE", OutcomeFailed)))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.inFlight))
	assert.Equal(t, 2, testutil.CollectAndCount(m.duration))
}

func TestMetrics_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewMetrics(reg)
	require.NoError(t, err)

	_, err = NewMetrics(reg)
	assert.Error(t, err)
}

func TestThrottle(t *testing.T) {
	th := NewThrottle(1, 2, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	require.NotNil(t, th)
	now := time.Unix(1_700_000_000, 0)

	assert.True(t, th.Allow("ADD", now))
	assert.True(t, th.Allow("ADD", now))
	assert.False(t, th.Allow("ADD", now), "burst exhausted")
	assert.True(t, th.Allow("REMOVE", now), "each action type has its own bucket")
	assert.True(t, th.Allow(ir.ActionLoadModule, now), "engine actions are never throttled")
	assert.True(t, th.Allow("ADD", now.Add(time.Second)), "tokens refill over time")
}

func TestThrottle_Wrap(t *testing.T) {
	th := NewThrottle(1, 1, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	frozen := time.Unix(1_700_000_000, 0)
	th.now = func() time.Time { return frozen }

	h := th.Wrap(nil, passThrough)

	_, ok, err := await(t, h(context.Background(), ir.Action{Type: "ADD"}))
	require.NoError(t, err)
	assert.True(t, ok)

	_, ok, err = await(t, h(context.Background(), ir.Action{Type: "ADD"}))
	require.NoError(t, err)
	assert.False(t, ok, "second action in the same instant is withheld")
}

func TestThrottle_Disabled(t *testing.T) {
	assert.Nil(t, NewThrottle(0, 1, nil))
	assert.Nil(t, NewThrottle(1, 0, nil))

	var th *Throttle
	assert.True(t, th.Allow("ADD", time.Now()))

	h := th.Wrap(nil, passThrough)
	_, ok, err := await(t, h(context.Background(), ir.Action{Type: "ADD"}))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestTimeout(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	stuck := func(ctx context.Context, _ ir.Action) *engine.Deferred {
		return engine.Defer(func() (ir.Action, bool, error) {
			<-block
			return ir.Action{}, false, nil
		})
	}

	h := Timeout(10*time.Millisecond).Wrap(nil, stuck)
	_, _, err := await(t, h(context.Background(), ir.Action{Type: "ADD"}))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTimeout_Disabled(t *testing.T) {
	h := Timeout(0).Wrap(nil, passThrough)
	a, ok, err := await(t, h(context.Background(), ir.Action{Type: "ADD"}))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "ADD", a.Type)
}
