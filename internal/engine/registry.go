package engine

import (
	"slices"

	"github.com/roach88/supervisor/internal/ir"
)

// pipeline is the store's currently active configuration: the main module,
// the attached feature modules, and everything composed from them.
//
// A pipeline is an immutable value. Every transition returns a new pipeline
// that shares unchanged fields with the old one; slices are never appended
// to or edited in place.
//
// INVARIANTS:
//   - Slice keys in modules are unique
//   - effects == main effects ++ each module's effects, in attachment order
//   - reducer and chain always reflect exactly the current modules
type pipeline struct {
	main        MainModule
	modules     []FeatureModule
	reducer     rootReducer
	middlewares []Middleware
	chain       Handler
	effects     []taggedEffect
}

// newPipeline builds the pipeline for a freshly configured store.
func newPipeline(main MainModule, api API) *pipeline {
	p := &pipeline{main: main.withDefaults()}
	p = p.setupReducer()
	p = p.registerEffects()
	return p.applyMiddlewares(api)
}

func (p *pipeline) clone() *pipeline {
	cp := *p
	return &cp
}

// setupReducer regenerates the composed reducer from the main module and the
// attached modules. It is rebuilt on every attach/detach, never patched.
func (p *pipeline) setupReducer() *pipeline {
	next := p.clone()
	next.reducer = combineReducers(p.main.Reducer, p.modules)
	return next
}

// registerEffects rebuilds the effect list from scratch: the main module's
// effects followed by each attached module's effects.
func (p *pipeline) registerEffects() *pipeline {
	effects := tagEffects("", p.main.Effects)
	for _, m := range p.modules {
		effects = append(effects, tagEffects(m.Slice, m.Effects)...)
	}
	next := p.clone()
	next.effects = effects
	return next
}

// applyMiddlewares collects the main module's middlewares followed by each
// attached module's, and binds the chain against api once.
func (p *pipeline) applyMiddlewares(api API) *pipeline {
	middlewares := slices.Clone(p.main.Middlewares)
	for _, m := range p.modules {
		middlewares = append(middlewares, m.Middlewares...)
	}
	middlewares = slices.DeleteFunc(middlewares, func(m Middleware) bool { return m == nil })

	next := p.clone()
	next.middlewares = middlewares
	next.chain = applyMiddleware(api, middlewares)
	return next
}

// hasSlice reports whether a module with the given slice key is attached.
func (p *pipeline) hasSlice(slice string) bool {
	return slices.ContainsFunc(p.modules, func(m FeatureModule) bool { return m.Slice == slice })
}

// sliceKeys returns the attached slice keys in attachment order.
func (p *pipeline) sliceKeys() []string {
	keys := make([]string, len(p.modules))
	for i, m := range p.modules {
		keys[i] = m.Slice
	}
	return keys
}

// loadModule returns the pipeline with m attached.
//
// If m's slice is already attached the same pipeline is returned and changed
// is false: duplicate attach is an idempotent no-op, not an error.
// events lists the pipeline reconfigurations the attach caused.
func loadModule(p *pipeline, m FeatureModule, api API) (next *pipeline, changed bool, events []ir.PipelineEvent) {
	if p.hasSlice(m.Slice) {
		return p, false, nil
	}

	next = p.clone()
	next.modules = append(slices.Clip(p.modules), m)
	next = next.setupReducer()

	added := tagEffects(m.Slice, m.Effects)
	next.effects = append(slices.Clip(p.effects), added...)
	events = append(events, ir.PipelineEvent{Type: ir.ActionRegisterEffects, Slice: m.Slice, Count: len(added)})

	if len(m.Middlewares) > 0 {
		next = next.applyMiddlewares(api)
		events = append(events, ir.PipelineEvent{Type: ir.ActionApplyMiddlewares, Slice: m.Slice, Count: len(next.middlewares)})
	}

	return next, true, events
}

// unloadModule returns the pipeline with the module keyed by slice detached.
//
// Effects are removed by their owning slice key, not by identity, so the
// module value passed to unload need not be the one passed to load.
// Detaching a slice that is not attached returns the same pipeline and
// changed is false.
func unloadModule(p *pipeline, slice string, api API) (next *pipeline, changed bool, events []ir.PipelineEvent) {
	idx := slices.IndexFunc(p.modules, func(m FeatureModule) bool { return m.Slice == slice })
	if idx < 0 {
		return p, false, nil
	}
	removed := p.modules[idx]

	next = p.clone()
	next.modules = slices.Delete(slices.Clone(p.modules), idx, idx+1)
	next = next.setupReducer()

	remaining := make([]taggedEffect, 0, len(p.effects))
	for _, te := range p.effects {
		if te.slice != slice {
			remaining = append(remaining, te)
		}
	}
	events = append(events, ir.PipelineEvent{Type: ir.ActionUnregisterEffects, Slice: slice, Count: len(p.effects) - len(remaining)})
	next.effects = remaining

	if len(removed.Middlewares) > 0 {
		next = next.applyMiddlewares(api)
		events = append(events, ir.PipelineEvent{Type: ir.ActionApplyMiddlewares, Slice: slice, Count: len(next.middlewares)})
	}

	return next, true, events
}
