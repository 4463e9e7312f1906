package harness

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/supervisor/internal/ir"
)

// TraceSnapshot captures everything a scenario run produced.
// Serialized as canonical JSON for deterministic comparison.
type TraceSnapshot struct {
	ScenarioName string          `json:"scenario_name"`
	Trace        []TraceEvent    `json:"trace"`
	Pipeline     []pipelineEntry `json:"pipeline"`
	State        map[string]any  `json:"state"`
	StateHash    string          `json:"state_hash"`
}

// pipelineEntry is a pipeline event without its journal row id.
type pipelineEntry struct {
	Seq   int64  `json:"seq"`
	Type  string `json:"type"`
	Slice string `json:"slice,omitempty"`
	Count int    `json:"count"`
}

// NewTraceSnapshot builds the snapshot of a result.
func NewTraceSnapshot(name string, result *Result) TraceSnapshot {
	pipeline := make([]pipelineEntry, len(result.Pipeline))
	for i, ev := range result.Pipeline {
		pipeline[i] = pipelineEntry{Seq: ev.Seq, Type: ev.Type, Slice: ev.Slice, Count: ev.Count}
	}
	return TraceSnapshot{
		ScenarioName: name,
		Trace:        result.Trace,
		Pipeline:     pipeline,
		State:        result.State,
		StateHash:    result.StateHash,
	}
}

// Canonical returns the snapshot as canonical JSON.
func (s TraceSnapshot) Canonical() ([]byte, error) {
	return ir.MarshalCanonical(s)
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the snapshot doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario)
	if err != nil {
		return nil, err
	}
	return result, AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares an existing result against its golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := NewTraceSnapshot(scenarioName, result).Canonical()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)

	return nil
}
