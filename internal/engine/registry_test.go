package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/supervisor/internal/ir"
)

func skipEffect() Effect {
	return EffectFunc(func(context.Context, ir.Action, ir.State) *Deferred { return Skip() })
}

func TestPipeline_New(t *testing.T) {
	p := newPipeline(MainModule{Effects: []Effect{skipEffect(), nil}}, &stubAPI{})

	require.NotNil(t, p.reducer)
	require.NotNil(t, p.chain)
	assert.Len(t, p.effects, 1, "nil effects are dropped")
	assert.Equal(t, "", p.effects[0].slice)
	assert.Empty(t, p.modules)
}

func TestLoadModule_AppendsInOrder(t *testing.T) {
	api := &stubAPI{}
	p := newPipeline(MainModule{Effects: []Effect{skipEffect()}}, api)

	p1, changed, events := loadModule(p, FeatureModule{Slice: "heroes", Reducer: heroesReducer, Effects: []Effect{skipEffect()}}, api)
	require.True(t, changed)
	require.Len(t, events, 1)
	assert.Equal(t, ir.PipelineEvent{Type: ir.ActionRegisterEffects, Slice: "heroes", Count: 1}, events[0])

	p2, changed, _ := loadModule(p1, FeatureModule{Slice: "villains", Reducer: heroesReducer, Effects: []Effect{skipEffect(), skipEffect()}}, api)
	require.True(t, changed)

	assert.Equal(t, []string{"heroes", "villains"}, p2.sliceKeys())
	slices := make([]string, len(p2.effects))
	for i, te := range p2.effects {
		slices[i] = te.slice
	}
	assert.Equal(t, []string{"", "heroes", "villains", "villains"}, slices)

	// Earlier pipeline values are untouched.
	assert.Empty(t, p.modules)
	assert.Len(t, p.effects, 1)
	assert.Equal(t, []string{"heroes"}, p1.sliceKeys())
	assert.Len(t, p1.effects, 2)
}

func TestLoadModule_Duplicate(t *testing.T) {
	api := &stubAPI{}
	p, _, _ := loadModule(newPipeline(MainModule{}, api), heroesModule(skipEffect()), api)

	again, changed, events := loadModule(p, heroesModule(skipEffect()), api)
	assert.False(t, changed)
	assert.Empty(t, events)
	assert.Same(t, p, again)
}

func TestLoadModule_MiddlewaresRebindChain(t *testing.T) {
	api := &stubAPI{}
	p := newPipeline(MainModule{Middlewares: []Middleware{tagging("m")}}, api)

	mod := heroesModule()
	mod.Middlewares = []Middleware{tagging("f")}
	next, _, events := loadModule(p, mod, api)

	require.Len(t, events, 2)
	assert.Equal(t, ir.ActionApplyMiddlewares, events[1].Type)
	assert.Equal(t, 2, events[1].Count)

	a, _, err := next.chain(context.Background(), ir.Action{Type: "ADD"}).Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "mf", a.Payload, "feature middleware runs after the main module's")
}

func TestUnloadModule_ByKey(t *testing.T) {
	api := &stubAPI{}
	p := newPipeline(MainModule{Effects: []Effect{skipEffect()}}, api)
	p, _, _ = loadModule(p, heroesModule(skipEffect(), skipEffect()), api)
	p, _, _ = loadModule(p, FeatureModule{Slice: "villains", Reducer: heroesReducer, Effects: []Effect{skipEffect()}}, api)

	next, changed, events := unloadModule(p, "heroes", api)
	require.True(t, changed)
	require.Len(t, events, 1)
	assert.Equal(t, ir.PipelineEvent{Type: ir.ActionUnregisterEffects, Slice: "heroes", Count: 2}, events[0])

	assert.Equal(t, []string{"villains"}, next.sliceKeys())
	require.Len(t, next.effects, 2)
	assert.Equal(t, "", next.effects[0].slice)
	assert.Equal(t, "villains", next.effects[1].slice)

	assert.Equal(t, []string{"heroes", "villains"}, p.sliceKeys(), "unload must not edit the previous pipeline")
}

func TestUnloadModule_Missing(t *testing.T) {
	api := &stubAPI{}
	p := newPipeline(MainModule{}, api)

	next, changed, events := unloadModule(p, "ghosts", api)
	assert.False(t, changed)
	assert.Empty(t, events)
	assert.Same(t, p, next)
}
