package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/supervisor/internal/ir"
)

func TestCombineReducers_MainOnly(t *testing.T) {
	reduce := combineReducers(IdentityReducer, nil)

	in := ir.State{"count": 1}
	out, err := reduce(in, ir.Action{Type: "ANY"})
	require.NoError(t, err)
	assert.Equal(t, in, out)

	out["count"] = 2
	assert.Equal(t, 1, in["count"], "the input state must never be mutated")
}

func TestCombineReducers_SlicesAfterMain(t *testing.T) {
	main := func(state any, _ ir.Action) any {
		next := state.(ir.State).Clone()
		next["heroes"] = "main"
		next["title"] = "main"
		return next
	}
	reduce := combineReducers(main, []FeatureModule{heroesModule()})

	out, err := reduce(ir.State{}, ir.Action{Type: "ADD", Payload: "X"})
	require.NoError(t, err)
	assert.Equal(t, ir.State{"heroes": []string{"X"}, "title": "main"}, out)
}

func TestCombineReducers_SliceSeesOwnSubState(t *testing.T) {
	var got any
	spy := FeatureModule{Slice: "heroes", Reducer: func(state any, _ ir.Action) any {
		got = state
		return state
	}}
	reduce := combineReducers(IdentityReducer, []FeatureModule{spy})

	_, err := reduce(ir.State{"heroes": []string{"A"}, "other": 1}, ir.Action{Type: "ANY"})
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, got)
}

func TestCombineReducers_AcceptsPlainMap(t *testing.T) {
	main := func(any, ir.Action) any { return map[string]any{"k": "v"} }
	reduce := combineReducers(main, nil)

	out, err := reduce(ir.State{}, ir.Action{Type: "ANY"})
	require.NoError(t, err)
	assert.Equal(t, ir.State{"k": "v"}, out)
}

func TestCombineReducers_RejectsNonState(t *testing.T) {
	main := func(any, ir.Action) any { return []int{1} }
	reduce := combineReducers(main, nil)

	_, err := reduce(ir.State{}, ir.Action{Type: "ANY"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "[]int")
}

func TestCombineReducers_UnloadDropsDetachedSlice(t *testing.T) {
	reduce := combineReducers(IdentityReducer, nil)

	out, err := reduce(ir.State{"heroes": []string{"X"}, "keep": true},
		ir.Action{Type: ir.ActionUnloadModule, Payload: "heroes"})
	require.NoError(t, err)
	assert.Equal(t, ir.State{"keep": true}, out)
}

func TestCombineReducers_UnloadKeepsAttachedSlice(t *testing.T) {
	reduce := combineReducers(IdentityReducer, []FeatureModule{heroesModule()})

	out, err := reduce(ir.State{"heroes": []string{"X"}},
		ir.Action{Type: ir.ActionUnloadModule, Payload: "heroes"})
	require.NoError(t, err)
	assert.Equal(t, []string{"X"}, out["heroes"])
}
