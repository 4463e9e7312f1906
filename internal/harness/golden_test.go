package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Golden files live in testdata/golden. Regenerate with:
//
//	go test ./internal/harness -run TestGolden -update
func TestGolden_RepositoryScenarios(t *testing.T) {
	for _, name := range []string{"heroes_announce", "dashboard_unload"} {
		t.Run(name, func(t *testing.T) {
			scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", name+".yaml"))
			require.NoError(t, err)

			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestTraceSnapshot_CanonicalIsStable(t *testing.T) {
	result := NewResult()
	result.Trace = sampleTrace()[:2]
	result.State = map[string]any{"b": float64(1), "a": "x"}
	result.StateHash = "h"

	first, err := NewTraceSnapshot("stable", result).Canonical()
	require.NoError(t, err)
	second, err := NewTraceSnapshot("stable", result).Canonical()
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t,
		`{"pipeline":[],"scenario_name":"stable","state":{"a":"x","b":1},"state_hash":"h",`+
			`"trace":[{"correlation":"c-1","seq":1,"type":"INIT_STORE"},`+
			`{"correlation":"c-2","follow_ups":1,"payload":"Storm","seq":2,"type":"ADD_HERO"}]}`,
		string(first))
}
