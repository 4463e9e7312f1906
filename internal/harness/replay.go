package harness

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/roach88/supervisor/internal/ir"
	"github.com/roach88/supervisor/internal/journal"
)

// ReplayReport compares a recorded run with its replay.
type ReplayReport struct {
	Roots          int         `json:"roots"`
	Recorded       int         `json:"recorded"`
	Replayed       int         `json:"replayed"`
	ExpectedHash   string      `json:"expected_hash"`
	ActualHash     string      `json:"actual_hash"`
	Deterministic  bool        `json:"deterministic"`
	FirstDivergent *Divergence `json:"first_divergent,omitempty"`
}

// Divergence describes the first cycle where replay and record disagree.
// A zero side means that run had no cycle at this position.
type Divergence struct {
	Index    int          `json:"index"`
	Expected CycleSummary `json:"expected"`
	Actual   CycleSummary `json:"actual"`
}

// CycleSummary is the part of a cycle record replay compares.
type CycleSummary struct {
	Seq       int64  `json:"seq"`
	Type      string `json:"type"`
	StateHash string `json:"state_hash"`
}

func summarize(rec ir.CycleRecord) CycleSummary {
	return CycleSummary{Seq: rec.Seq, Type: rec.ActionType, StateHash: rec.StateHash}
}

// ScenarioFromJournal rebuilds the steps of a recorded run from its root
// cycles. INIT_STORE is implied by every store and is skipped.
func ScenarioFromJournal(name string, recorded []ir.CycleRecord) (*Scenario, error) {
	s := &Scenario{Name: name, Description: "replay of " + name}
	for _, rec := range recorded {
		if rec.ParentSeq != 0 {
			continue
		}

		var payload any
		if err := json.Unmarshal([]byte(rec.Payload), &payload); err != nil {
			return nil, fmt.Errorf("decode payload of seq %d: %w", rec.Seq, err)
		}

		switch rec.ActionType {
		case ir.ActionInitStore:
			continue
		case ir.ActionLoadModule, ir.ActionUnloadModule:
			slice, ok := payload.(string)
			if !ok || slice == "" {
				return nil, fmt.Errorf("seq %d: %s payload is %T, want module name", rec.Seq, rec.ActionType, payload)
			}
			if rec.ActionType == ir.ActionLoadModule {
				s.Steps = append(s.Steps, Step{Load: slice})
			} else {
				s.Steps = append(s.Steps, Step{Unload: slice})
			}
		default:
			s.Steps = append(s.Steps, Step{Dispatch: &ir.Action{Type: rec.ActionType, Payload: payload}})
		}
	}
	return s, nil
}

// Replay re-runs the root actions of a recorded run in a fresh store and
// compares every cycle's seq, type, and state hash with the record.
//
// opts.Journal is ignored: the replay is recorded in its own in-memory journal.
func Replay(ctx context.Context, recorded []ir.CycleRecord, opts Options) (*ReplayReport, error) {
	scenario, err := ScenarioFromJournal("replay", recorded)
	if err != nil {
		return nil, err
	}

	j, err := journal.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create replay journal: %w", err)
	}
	defer j.Close()
	opts.Journal = j

	result, err := RunWithOptions(ctx, scenario, opts)
	if err != nil {
		return nil, fmt.Errorf("replay: %w", err)
	}

	replayed, err := j.ReadCycles(ctx, journal.CycleFilter{})
	if err != nil {
		return nil, fmt.Errorf("read replay trace: %w", err)
	}

	report := &ReplayReport{
		Roots:         len(scenario.Steps),
		Recorded:      len(recorded),
		Replayed:      len(replayed),
		ActualHash:    result.StateHash,
		Deterministic: true,
	}
	if len(recorded) > 0 {
		report.ExpectedHash = recorded[len(recorded)-1].StateHash
	} else {
		report.ExpectedHash, err = ir.StateHash(ir.NewState())
		if err != nil {
			return nil, err
		}
	}

	for i := 0; i < max(len(recorded), len(replayed)); i++ {
		var want, got CycleSummary
		if i < len(recorded) {
			want = summarize(recorded[i])
		}
		if i < len(replayed) {
			got = summarize(replayed[i])
		}
		if want != got {
			report.Deterministic = false
			report.FirstDivergent = &Divergence{Index: i, Expected: want, Actual: got}
			break
		}
	}
	if report.ExpectedHash != report.ActualHash {
		report.Deterministic = false
	}

	return report, nil
}
