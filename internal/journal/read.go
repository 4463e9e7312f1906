package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/supervisor/internal/ir"
)

// CycleFilter narrows ReadCycles. Zero fields match everything.
type CycleFilter struct {
	Correlation string
	ActionType  string
	RootsOnly   bool // Only externally dispatched cycles (parent_seq = 0)
}

// ReadCycles returns recorded cycles matching f.
// Results are ordered deterministically: ORDER BY seq ASC, id ASC.
//
// Returns an empty slice (not nil) if nothing matches.
func (j *Journal) ReadCycles(ctx context.Context, f CycleFilter) ([]ir.CycleRecord, error) {
	var where []string
	var args []any
	if f.Correlation != "" {
		where = append(where, "correlation = ?")
		args = append(args, f.Correlation)
	}
	if f.ActionType != "" {
		where = append(where, "action_type = ?")
		args = append(args, f.ActionType)
	}
	if f.RootsOnly {
		where = append(where, "parent_seq = 0")
	}

	query := `
		SELECT id, seq, parent_seq, correlation, action_type, payload, state, state_hash, follow_ups
		FROM cycles`
	if len(where) > 0 {
		query += "\n\t\tWHERE " + strings.Join(where, " AND ")
	}
	query += "\n\t\tORDER BY seq ASC, id ASC"

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query cycles: %w", err)
	}
	defer rows.Close()

	cycles := []ir.CycleRecord{}
	for rows.Next() {
		rec, err := scanCycle(rows)
		if err != nil {
			return nil, err
		}
		cycles = append(cycles, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cycles: %w", err)
	}

	return cycles, nil
}

// LastCycle returns the cycle with the highest seq.
// Returns sql.ErrNoRows if the journal is empty.
func (j *Journal) LastCycle(ctx context.Context) (ir.CycleRecord, error) {
	row := j.db.QueryRowContext(ctx, `
		SELECT id, seq, parent_seq, correlation, action_type, payload, state, state_hash, follow_ups
		FROM cycles
		ORDER BY seq DESC, id DESC
		LIMIT 1
	`)
	return scanCycle(row)
}

// ReadPipelineEvents returns every pipeline event.
// Results are ordered deterministically: ORDER BY seq ASC, id ASC.
func (j *Journal) ReadPipelineEvents(ctx context.Context) ([]ir.PipelineEvent, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, seq, type, slice, count
		FROM pipeline_events
		ORDER BY seq ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query pipeline events: %w", err)
	}
	defer rows.Close()

	events := []ir.PipelineEvent{}
	for rows.Next() {
		var ev ir.PipelineEvent
		if err := rows.Scan(&ev.ID, &ev.Seq, &ev.Type, &ev.Slice, &ev.Count); err != nil {
			return nil, fmt.Errorf("scan pipeline event: %w", err)
		}
		events = append(events, ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pipeline events: %w", err)
	}

	return events, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanCycle(row rowScanner) (ir.CycleRecord, error) {
	var rec ir.CycleRecord
	err := row.Scan(
		&rec.ID,
		&rec.Seq,
		&rec.ParentSeq,
		&rec.Correlation,
		&rec.ActionType,
		&rec.Payload,
		&rec.State,
		&rec.StateHash,
		&rec.FollowUps,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return rec, err
	}
	if err != nil {
		return rec, fmt.Errorf("scan cycle: %w", err)
	}
	return rec, nil
}
