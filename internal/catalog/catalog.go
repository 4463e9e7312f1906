package catalog

import (
	"fmt"
	"maps"
	"slices"

	"github.com/roach88/supervisor/internal/engine"
)

var features = map[string]func() engine.FeatureModule{
	SliceHeroes:    Heroes,
	SliceMessages:  Messages,
	SliceDashboard: DashboardModule,
}

// Lookup returns a fresh feature module for the given slice name.
func Lookup(slice string) (engine.FeatureModule, error) {
	build, ok := features[slice]
	if !ok {
		return engine.FeatureModule{}, fmt.Errorf("unknown module %q (known: %v)", slice, Names())
	}
	return build(), nil
}

// Names returns the known feature module names in sorted order.
func Names() []string {
	return slices.Sorted(maps.Keys(features))
}

// stringList reads a slice value holding a list of strings. A nil value
// is the empty list.
func stringList(state any) []string {
	switch v := state.(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return []string{}
	}
}
