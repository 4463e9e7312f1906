package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const passingScenario = `
name: cli_heroes
description: "Adding a hero announces it"
modules: [heroes, messages]
steps:
  - dispatch: { type: ADD_HERO, payload: Storm }
assertions:
  - type: trace_count
    action: ADD_MESSAGE
    count: 1
  - type: final_state
    slice: heroes
    expect: [Storm]
`

const failingScenario = `
name: cli_heroes_wrong
description: "Expects two announcements for one hero"
modules: [heroes, messages]
steps:
  - dispatch: { type: ADD_HERO, payload: Storm }
assertions:
  - type: trace_count
    action: ADD_MESSAGE
    count: 2
`

// stepsOnlyScenario relies on the configured modules.
const stepsOnlyScenario = `
name: cli_configured
description: "Modules come from configuration"
steps:
  - dispatch: { type: ADD_HERO, payload: Storm }
assertions:
  - type: final_state
    slice: messages
    expect: ["HeroService: added hero Storm"]
`

type runResponse struct {
	Status string    `json:"status"`
	Data   RunResult `json:"data"`
	Error  *CLIError `json:"error"`
}

func decodeRun(t *testing.T, out string) runResponse {
	t.Helper()
	var resp runResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp), "stdout: %s", out)
	return resp
}

func TestRunPassingScenarioText(t *testing.T) {
	path := writeFile(t, "heroes.yaml", passingScenario)

	out, _, err := execute(t, "run", path)
	require.NoError(t, err)

	assert.Contains(t, out, "PASS cli_heroes (5 cycles, 5 notifications)")
	assert.Contains(t, out, `state: {"heroes":["Storm"],"messages":["HeroService: added hero Storm"]}`)
	assert.Contains(t, out, "state hash: ")
}

func TestRunPassingScenarioJSON(t *testing.T) {
	path := writeFile(t, "heroes.yaml", passingScenario)

	out, _, err := execute(t, "run", path, "--format", "json")
	require.NoError(t, err)

	resp := decodeRun(t, out)
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Pass)
	assert.Equal(t, "cli_heroes", resp.Data.Scenario)
	assert.Equal(t, 5, resp.Data.Cycles)
	assert.Len(t, resp.Data.StateHash, 64)
	assert.Equal(t, []any{"Storm"}, resp.Data.State["heroes"])
	assert.Empty(t, resp.Data.Errors)
}

func TestRunFailingScenario(t *testing.T) {
	path := writeFile(t, "wrong.yaml", failingScenario)

	out, _, err := execute(t, "run", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "FAIL cli_heroes_wrong")
	assert.Contains(t, out, "ADD_MESSAGE")
}

func TestRunFailingScenarioJSON(t *testing.T) {
	path := writeFile(t, "wrong.yaml", failingScenario)

	out, _, err := execute(t, "run", path, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	resp := decodeRun(t, out)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeScenarioFailed, resp.Error.Code)
	assert.False(t, resp.Data.Pass)
	assert.Len(t, resp.Data.Errors, 1)
}

func TestRunMissingScenario(t *testing.T) {
	_, _, err := execute(t, "run", filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRunRequiresOneArg(t *testing.T) {
	_, _, err := execute(t, "run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestRunUnknownModule(t *testing.T) {
	path := writeFile(t, "unknown.yaml", `
name: unknown_module
description: "Loads a module the catalog does not know"
modules: [villains]
assertions:
  - type: cycle_errors
    count: 0
`)

	_, _, err := execute(t, "run", path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "villains")
}

func TestRunModulesFromConfig(t *testing.T) {
	scenario := writeFile(t, "configured.yaml", stepsOnlyScenario)
	cfg := writeFile(t, "supervisor.cue", `modules: ["heroes", "messages"]`)

	out, _, err := execute(t, "run", scenario, "--config", cfg)
	require.NoError(t, err, out)
	assert.Contains(t, out, "PASS cli_configured")
}

func TestRunModulesFromEnv(t *testing.T) {
	scenario := writeFile(t, "configured.yaml", stepsOnlyScenario)
	t.Setenv("SUPERVISOR_MODULES", "heroes,messages")

	out, _, err := execute(t, "run", scenario)
	require.NoError(t, err, out)
	assert.Contains(t, out, "PASS cli_configured")
}

func TestRunWithJournal(t *testing.T) {
	scenario := writeFile(t, "heroes.yaml", passingScenario)
	journalPath := filepath.Join(t.TempDir(), "trace.db")

	out, _, err := execute(t, "run", scenario, "--journal", journalPath)
	require.NoError(t, err)
	assert.Contains(t, out, "journal: "+journalPath)

	// A second run resets the journal rather than appending to it.
	_, _, err = execute(t, "run", scenario, "--journal", journalPath)
	require.NoError(t, err)

	out, _, err = execute(t, "trace", "--journal", journalPath, "--format", "json")
	require.NoError(t, err)
	resp := decodeTrace(t, out)
	assert.Equal(t, 5, resp.Data.Stats.Cycles)
}

func TestRunJournalFromConfig(t *testing.T) {
	scenario := writeFile(t, "heroes.yaml", passingScenario)
	journalPath := filepath.Join(t.TempDir(), "configured.db")
	t.Setenv("SUPERVISOR_JOURNAL", journalPath)

	out, _, err := execute(t, "run", scenario, "--format", "json")
	require.NoError(t, err)
	assert.Equal(t, journalPath, decodeRun(t, out).Data.Journal)
	assert.FileExists(t, journalPath)
}

func TestRunMetrics(t *testing.T) {
	path := writeFile(t, "heroes.yaml", passingScenario)

	out, stderr, err := execute(t, "run", path, "--metrics", "--format", "json")
	require.NoError(t, err)

	// Metrics go to stderr so stdout stays a single JSON document.
	decodeRun(t, out)
	assert.Contains(t, stderr, "supervisor_actions_total")
	assert.Contains(t, stderr, `type="ADD_HERO"`)
}

func TestRunMaxStepsFromConfig(t *testing.T) {
	path := writeFile(t, "loop.yaml", `
name: ping_quota
description: "The quota from settings bounds follow-ups"
steps:
  - dispatch: { type: PING }
assertions:
  - type: trace_contains
    action: PONG
`)
	t.Setenv("SUPERVISOR_MAX_STEPS", "1")

	out, _, err := execute(t, "run", path)
	require.NoError(t, err, out)
	assert.Contains(t, out, "PASS ping_quota")
}
