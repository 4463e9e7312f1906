package engine

import (
	"fmt"
	"slices"

	"github.com/roach88/supervisor/internal/ir"
)

// rootReducer folds an action into the whole state.
type rootReducer func(state ir.State, action ir.Action) (ir.State, error)

// combineReducers builds the reducer for one pipeline value.
//
// The main reducer runs first over the whole state. Then every attached
// feature reducer runs over its own slice of the previous state and its result
// is assigned under the slice key, so a feature slice always wins over a
// top-level key of the same name set by the main reducer.
//
// The main reducer's output is cloned before slices are assigned: an identity
// main reducer returns its input, and the input must never be mutated.
//
// An UNLOAD_MODULE action for a slice that is no longer attached removes that
// slice key from the result.
func combineReducers(main Reducer, modules []FeatureModule) rootReducer {
	mods := slices.Clone(modules)
	attached := make(map[string]bool, len(mods))
	for _, m := range mods {
		attached[m.Slice] = true
	}

	return func(state ir.State, action ir.Action) (ir.State, error) {
		out := main(state, action)
		base, ok := ir.AsState(out)
		if !ok {
			return nil, fmt.Errorf("main reducer returned %T, want ir.State", out)
		}

		next := base.Clone()
		if action.Type == ir.ActionUnloadModule {
			if slice, ok := action.Payload.(string); ok && !attached[slice] {
				delete(next, slice)
			}
		}
		for _, m := range mods {
			next[m.Slice] = m.Reducer(state[m.Slice], action)
		}
		return next, nil
	}
}
