package harness

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/supervisor/internal/ir"
)

// TraceEvent is one reduced action as recorded in the journal.
type TraceEvent struct {
	Seq         int64  `json:"seq"`
	ParentSeq   int64  `json:"parent_seq,omitempty"`
	Correlation string `json:"correlation"`
	Type        string `json:"type"`
	Payload     any    `json:"payload,omitempty"`
	FollowUps   int    `json:"follow_ups,omitempty"`
}

// traceEventFromCycle converts a journal record into a trace event.
func traceEventFromCycle(rec ir.CycleRecord) (TraceEvent, error) {
	ev := TraceEvent{
		Seq:         rec.Seq,
		ParentSeq:   rec.ParentSeq,
		Correlation: rec.Correlation,
		Type:        rec.ActionType,
		FollowUps:   rec.FollowUps,
	}
	if err := json.Unmarshal([]byte(rec.Payload), &ev.Payload); err != nil {
		return ev, fmt.Errorf("decode payload of seq %d: %w", rec.Seq, err)
	}
	return ev, nil
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every assertion held.
	Pass bool `json:"pass"`

	// Trace lists the reduced actions in seq order.
	Trace []TraceEvent `json:"trace"`

	// Pipeline lists the pipeline reconfigurations in seq order.
	Pipeline []ir.PipelineEvent `json:"pipeline"`

	// Errors contains assertion failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// CycleErrors contains the errors reported by failed cycles.
	CycleErrors []string `json:"cycle_errors,omitempty"`

	// Notifications counts listener notifications.
	Notifications int `json:"notifications"`

	// State is the final state in its JSON form.
	State map[string]any `json:"state"`

	// StateHash is the content hash of the final state.
	StateHash string `json:"state_hash"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:        true,
		Trace:       []TraceEvent{},
		Pipeline:    []ir.PipelineEvent{},
		Errors:      []string{},
		CycleErrors: []string{},
		State:       make(map[string]any),
	}
}

// AddError adds an assertion failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
