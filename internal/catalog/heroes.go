package catalog

import (
	"context"
	"fmt"
	"slices"

	"github.com/roach88/supervisor/internal/engine"
	"github.com/roach88/supervisor/internal/ir"
)

// SliceHeroes is the heroes module's slice key.
const SliceHeroes = "heroes"

// Action types handled by the heroes module.
const (
	ActionAddHero    = "ADD_HERO"
	ActionRemoveHero = "REMOVE_HERO"
)

// Heroes returns the heroes feature module. Its slice is the ordered list of
// hero names; adding a name that is already present is ignored.
// Every change is announced on the message log.
func Heroes() engine.FeatureModule {
	return engine.FeatureModule{
		Slice:   SliceHeroes,
		Reducer: heroesReducer,
		Effects: []engine.Effect{heroAnnouncer()},
	}
}

func heroesReducer(state any, action ir.Action) any {
	heroes := stringList(state)

	name, ok := action.Payload.(string)
	if !ok || name == "" {
		return heroes
	}

	switch action.Type {
	case ActionAddHero:
		if slices.Contains(heroes, name) {
			return heroes
		}
		return append(slices.Clip(heroes), name)
	case ActionRemoveHero:
		if !slices.Contains(heroes, name) {
			return heroes
		}
		return slices.DeleteFunc(slices.Clone(heroes), func(h string) bool { return h == name })
	}
	return heroes
}

func heroAnnouncer() engine.Effect {
	return engine.OfType([]string{ActionAddHero, ActionRemoveHero}, func(_ context.Context, action ir.Action, _ ir.State) *engine.Deferred {
		name, ok := action.Payload.(string)
		if !ok || name == "" {
			return engine.Skip()
		}
		verb := "added"
		if action.Type == ActionRemoveHero {
			verb = "deleted"
		}
		return engine.Resolve(ir.Action{
			Type:    ActionAddMessage,
			Payload: fmt.Sprintf("HeroService: %s hero %s", verb, name),
		})
	})
}
