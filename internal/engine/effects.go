package engine

import (
	"context"

	"github.com/roach88/supervisor/internal/ir"
)

// taggedEffect is an effect together with the slice key of the module that
// registered it ("" for the main module). Unload removes effects by tag.
type taggedEffect struct {
	slice  string
	effect Effect
}

func tagEffects(slice string, effects []Effect) []taggedEffect {
	tagged := make([]taggedEffect, 0, len(effects))
	for _, e := range effects {
		if e == nil {
			continue
		}
		tagged = append(tagged, taggedEffect{slice: slice, effect: e})
	}
	return tagged
}

// emitFunc receives each action produced by an effect.
type emitFunc func(slice string, action ir.Action) error

// runEffects evaluates effects strictly in order against (action, state).
//
// Each effect is awaited, including any deferred work, before the next one
// starts. A produced action is handed to emit immediately, so follow-ups are
// queued in effect order. The first failure stops the run.
//
// Returns the number of actions emitted.
func runEffects(ctx context.Context, effects []taggedEffect, action ir.Action, state ir.State, emit emitFunc) (int, error) {
	emitted := 0
	for _, te := range effects {
		out, ok, err := normalize(te.effect.Run(ctx, action, state)).Await(ctx)
		if err != nil {
			return emitted, &effectError{slice: te.slice, err: err}
		}
		if !ok {
			continue
		}
		if err := emit(te.slice, out); err != nil {
			return emitted, err
		}
		emitted++
	}
	return emitted, nil
}

// effectError carries the owning slice of a failed effect up to the cycle.
type effectError struct {
	slice string
	err   error
}

func (e *effectError) Error() string { return e.err.Error() }
func (e *effectError) Unwrap() error { return e.err }
