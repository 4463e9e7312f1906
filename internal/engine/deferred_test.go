package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/supervisor/internal/ir"
)

func TestDeferred_Completed(t *testing.T) {
	ctx := context.Background()

	a, ok, err := Resolve(ir.Action{Type: "ADD"}).Await(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "ADD", a.Type)

	_, ok, err = Skip().Await(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = Fail(assert.AnError).Await(ctx)
	assert.ErrorIs(t, err, assert.AnError)
	assert.False(t, ok)
}

func TestDeferred_NilIsSkip(t *testing.T) {
	var d *Deferred

	_, ok, err := d.Await(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	select {
	case <-d.Done():
	default:
		t.Fatal("nil deferred should be done")
	}
}

func TestDeferred_Defer(t *testing.T) {
	release := make(chan struct{})
	d := Defer(func() (ir.Action, bool, error) {
		<-release
		return ir.Action{Type: "LATE"}, true, nil
	})

	select {
	case <-d.Done():
		t.Fatal("deferred resolved before its work finished")
	default:
	}

	close(release)
	a, ok, err := d.Await(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "LATE", a.Type)
}

func TestDeferred_AwaitHonorsContext(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	d := Defer(func() (ir.Action, bool, error) {
		<-block
		return ir.Action{}, false, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, _, err := d.Await(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNormalize(t *testing.T) {
	assert.NotNil(t, normalize(nil))

	d := Resolve(ir.Action{Type: "X"})
	assert.Same(t, d, normalize(d))
}
