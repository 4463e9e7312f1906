package engine

import (
	"context"

	"github.com/roach88/supervisor/internal/ir"
)

// recordCycle journals a completed fold.
//
// The record carries the action as it was published, before middleware, so
// replaying root records through the same pipeline reproduces the run.
// Journal failures are logged and never fail the cycle.
func (s *Store) recordCycle(ctx context.Context, env ir.Envelope, state ir.State, followUps int) {
	if s.recorder == nil {
		return
	}

	payload, err := ir.MarshalCanonical(env.Action.Payload)
	if err != nil {
		s.logger.Warn("journal: payload not serializable", "error", err, "seq", env.Seq, "action", env.Action.Type)
		return
	}
	stateJSON, err := ir.MarshalCanonical(state)
	if err != nil {
		s.logger.Warn("journal: state not serializable", "error", err, "seq", env.Seq, "action", env.Action.Type)
		return
	}
	hash, err := ir.StateHash(state)
	if err != nil {
		s.logger.Warn("journal: state hash failed", "error", err, "seq", env.Seq)
		return
	}

	rec := ir.CycleRecord{
		Seq:         env.Seq,
		ParentSeq:   env.ParentSeq,
		Correlation: env.Correlation,
		ActionType:  env.Action.Type,
		Payload:     string(payload),
		State:       string(stateJSON),
		StateHash:   hash,
		FollowUps:   followUps,
	}
	if err := s.recorder.RecordCycle(ctx, rec); err != nil {
		s.logger.Error("journal: record cycle failed", "error", err, "seq", env.Seq, "action", env.Action.Type)
	}
}

// recordPipeline journals pipeline reconfigurations and logs them.
func (s *Store) recordPipeline(ctx context.Context, events []ir.PipelineEvent) {
	for _, ev := range events {
		s.logger.Debug("pipeline event", "type", ev.Type, "slice", ev.Slice, "count", ev.Count, "seq", ev.Seq)
		if s.recorder == nil {
			continue
		}
		if err := s.recorder.RecordPipelineEvent(ctx, ev); err != nil {
			s.logger.Error("journal: record pipeline event failed", "error", err, "type", ev.Type, "slice", ev.Slice)
		}
	}
}
