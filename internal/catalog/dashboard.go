package catalog

import (
	"slices"

	"github.com/roach88/supervisor/internal/engine"
	"github.com/roach88/supervisor/internal/ir"
)

// SliceDashboard is the dashboard module's slice key.
const SliceDashboard = "dashboard"

// TopHeroes is how many heroes the dashboard features.
const TopHeroes = 4

// Dashboard is the dashboard slice value.
type Dashboard struct {
	Top []string `json:"top"`
}

// DashboardModule returns the dashboard feature module. It features the
// first TopHeroes heroes added while it is attached.
func DashboardModule() engine.FeatureModule {
	return engine.FeatureModule{
		Slice:   SliceDashboard,
		Reducer: dashboardReducer,
	}
}

func dashboardReducer(state any, action ir.Action) any {
	d, ok := state.(Dashboard)
	if !ok {
		d = Dashboard{Top: []string{}}
	}

	name, _ := action.Payload.(string)
	switch action.Type {
	case ActionAddHero:
		if name == "" || len(d.Top) >= TopHeroes || slices.Contains(d.Top, name) {
			return d
		}
		return Dashboard{Top: append(slices.Clip(d.Top), name)}
	case ActionRemoveHero:
		if !slices.Contains(d.Top, name) {
			return d
		}
		return Dashboard{Top: slices.DeleteFunc(slices.Clone(d.Top), func(h string) bool { return h == name })}
	}
	return d
}
