package ir

// NOTE: These are journal records, not part of the live engine state.
// They use auto-increment IDs for journal rows (exception to seq-only ordering).

// Envelope is an action in flight through the action channel.
//
// Seq is stamped from the engine's logical clock when the action is
// published. ParentSeq is zero for externally dispatched actions and holds
// the triggering cycle's seq for actions produced by effects. Every action
// produced by an effect inherits its parent's Correlation token.
type Envelope struct {
	Seq         int64  `json:"seq"`
	ParentSeq   int64  `json:"parent_seq,omitempty"`
	Correlation string `json:"correlation"`
	Action      Action `json:"action"`
}

// IsRoot reports whether the envelope was dispatched from outside the engine.
func (e Envelope) IsRoot() bool {
	return e.ParentSeq == 0
}

// CycleRecord is the journal entry for one completed
// middleware → reduce → effects cycle.
type CycleRecord struct {
	ID          int64  `json:"id"`
	Seq         int64  `json:"seq"`
	ParentSeq   int64  `json:"parent_seq,omitempty"`
	Correlation string `json:"correlation"`
	ActionType  string `json:"action_type"`
	Payload     string `json:"payload"` // Canonical JSON
	State       string `json:"state"`   // Canonical JSON of the resulting state
	StateHash   string `json:"state_hash"`
	FollowUps   int    `json:"follow_ups"` // Actions produced by effects
}

// PipelineEvent is the journal entry for a pipeline reconfiguration
// (APPLY_MIDDLEWARES, REGISTER_EFFECTS, UNREGISTER_EFFECTS).
type PipelineEvent struct {
	ID    int64  `json:"id"`
	Seq   int64  `json:"seq"`
	Type  string `json:"type"`
	Slice string `json:"slice,omitempty"`
	Count int    `json:"count"` // Middlewares bound or effects (un)registered
}
