package engine

import (
	"context"

	"github.com/roach88/supervisor/internal/ir"
)

// Reducer folds an action into a state value. It must not mutate its input.
//
// For the main module the state is the whole ir.State and the result must be
// an ir.State (or map[string]any). For a feature module the state is the
// module's slice value, nil before the slice is first initialised.
type Reducer func(state any, action ir.Action) any

// IdentityReducer returns the state unchanged.
// It is the default reducer of a MainModule.
func IdentityReducer(state any, _ ir.Action) any {
	return state
}

// DispatchFunc dispatches a plain action or a thunk.
type DispatchFunc func(v any) error

// GetStateFunc returns the latest folded state snapshot.
type GetStateFunc func() ir.State

// Thunk is an async action. It is invoked immediately with the store's
// dispatch and getState and never enters the action channel.
type Thunk func(dispatch DispatchFunc, getState GetStateFunc)

// API is the part of the store middleware may use.
type API interface {
	Dispatch(v any) error
	GetState() ir.State
}

// Handler processes an action and returns its (possibly deferred) result.
type Handler func(ctx context.Context, action ir.Action) *Deferred

// Middleware wraps the rest of the dispatch chain.
//
// Wrap is called once per pipeline build. The returned Handler must call next
// to continue the chain, or return without calling it to short-circuit.
type Middleware interface {
	Wrap(api API, next Handler) Handler
}

// MiddlewareFunc adapts a function to the Middleware interface.
type MiddlewareFunc func(api API, next Handler) Handler

// Wrap implements Middleware.
func (f MiddlewareFunc) Wrap(api API, next Handler) Handler {
	return f(api, next)
}

// Effect observes a completed fold and may produce one follow-up action.
// Effects never touch state directly; filtering by action type is the
// effect's own job.
type Effect interface {
	Run(ctx context.Context, action ir.Action, state ir.State) *Deferred
}

// EffectFunc adapts a function to the Effect interface.
type EffectFunc func(ctx context.Context, action ir.Action, state ir.State) *Deferred

// Run implements Effect.
func (f EffectFunc) Run(ctx context.Context, action ir.Action, state ir.State) *Deferred {
	return f(ctx, action, state)
}

// OfType returns an effect that calls fn only for actions whose type is one
// of types, and produces no action otherwise.
func OfType(types []string, fn EffectFunc) Effect {
	return EffectFunc(func(ctx context.Context, action ir.Action, state ir.State) *Deferred {
		if !action.Is(types...) {
			return Skip()
		}
		return fn(ctx, action, state)
	})
}

// MainModule is the baseline module configured at store creation.
// Its reducer operates on the whole state.
type MainModule struct {
	Reducer     Reducer
	Effects     []Effect
	Middlewares []Middleware
}

// withDefaults fills a zero reducer with IdentityReducer.
func (m MainModule) withDefaults() MainModule {
	if m.Reducer == nil {
		m.Reducer = IdentityReducer
	}
	return m
}

// FeatureModule is an independently attachable unit of state.
// Slice is its unique key in the state.
type FeatureModule struct {
	Slice       string
	Reducer     Reducer
	Effects     []Effect
	Middlewares []Middleware
}

// Validate checks that the module can be attached.
func (m FeatureModule) Validate() error {
	if m.Slice == "" {
		return ir.ValidationError{Field: "slice", Message: "feature module slice must not be empty"}
	}
	if m.Reducer == nil {
		return ir.ValidationError{Field: "reducer", Message: "feature module " + m.Slice + " has no reducer"}
	}
	return nil
}
