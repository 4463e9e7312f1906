package journal

import (
	"context"
	"fmt"

	"github.com/roach88/supervisor/internal/ir"
)

// RecordCycle inserts a completed cycle.
// Uses ON CONFLICT(seq) DO NOTHING for idempotency - a seq is recorded once.
// Other constraint violations (e.g., NOT NULL) still return errors.
func (j *Journal) RecordCycle(ctx context.Context, rec ir.CycleRecord) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO cycles
		(seq, parent_seq, correlation, action_type, payload, state, state_hash, follow_ups)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(seq) DO NOTHING
	`,
		rec.Seq,
		rec.ParentSeq,
		rec.Correlation,
		rec.ActionType,
		rec.Payload,
		rec.State,
		rec.StateHash,
		rec.FollowUps,
	)
	if err != nil {
		return fmt.Errorf("record cycle: %w", err)
	}
	return nil
}

// RecordPipelineEvent inserts a pipeline reconfiguration event.
func (j *Journal) RecordPipelineEvent(ctx context.Context, ev ir.PipelineEvent) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO pipeline_events (seq, type, slice, count)
		VALUES (?, ?, ?, ?)
	`,
		ev.Seq,
		ev.Type,
		ev.Slice,
		ev.Count,
	)
	if err != nil {
		return fmt.Errorf("record pipeline event: %w", err)
	}
	return nil
}
