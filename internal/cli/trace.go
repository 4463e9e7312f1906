package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/supervisor/internal/ir"
	"github.com/roach88/supervisor/internal/journal"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Journal     string
	Correlation string // optional - filter to one correlation token
	Action      string // optional - filter to one action type
	Roots       bool   // optional - only externally dispatched cycles
}

// TraceEvent is one cycle in the trace timeline.
type TraceEvent struct {
	Seq         int64  `json:"seq"`
	ParentSeq   int64  `json:"parent_seq,omitempty"`
	Correlation string `json:"correlation"`
	Type        string `json:"type"`
	Payload     string `json:"payload"`
	ActionHash  string `json:"action_hash,omitempty"`
	StateHash   string `json:"state_hash"`
	FollowUps   int    `json:"follow_ups"`
}

// CausalEdge links a cycle to a follow-up its effects dispatched.
type CausalEdge struct {
	From     int64  `json:"from"`
	FromType string `json:"from_type"`
	To       int64  `json:"to"`
	ToType   string `json:"to_type"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	Journal  string             `json:"journal"`
	Timeline []TraceEvent       `json:"timeline"`
	Causes   []CausalEdge       `json:"causes"`
	Pipeline []ir.PipelineEvent `json:"pipeline"`
	Stats    TraceStats         `json:"stats"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	Cycles         int    `json:"cycles"`
	Roots          int    `json:"roots"`
	FollowUps      int    `json:"follow_ups"`
	Correlations   int    `json:"correlations"`
	PipelineEvents int    `json:"pipeline_events"`
	FinalStateHash string `json:"final_state_hash,omitempty"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show the recorded cycles of a journal",
		Long: `Show the cycles recorded in a trace journal.

The output includes:
- Timeline: every completed cycle in seq order
- Causes: which cycle's effects dispatched which follow-up
- Pipeline: middleware and effect reconfigurations
- Stats: summary counts and the final state hash

Examples:
  supervisor trace --journal trace.db
  supervisor trace --journal trace.db --type ADD_HERO
  supervisor trace --journal trace.db --roots --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Journal, "journal", "", "path to SQLite trace journal (required)")
	_ = cmd.MarkFlagRequired("journal")
	cmd.Flags().StringVar(&opts.Correlation, "correlation", "", "filter to one correlation token")
	cmd.Flags().StringVar(&opts.Action, "type", "", "filter to one action type")
	cmd.Flags().BoolVar(&opts.Roots, "roots", false, "only show externally dispatched cycles")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := contextOf(cmd)
	formatter := newFormatter(opts.RootOptions, cmd)

	j, err := openExistingJournal(formatter, opts.Journal)
	if err != nil {
		return err
	}
	defer j.Close()

	all, err := j.ReadCycles(ctx, journal.CycleFilter{})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read cycles", err)
	}
	cycles, err := j.ReadCycles(ctx, journal.CycleFilter{
		Correlation: opts.Correlation,
		ActionType:  opts.Action,
		RootsOnly:   opts.Roots,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read cycles", err)
	}
	pipeline, err := j.ReadPipelineEvents(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read pipeline events", err)
	}

	result := buildTrace(opts.Journal, all, cycles, pipeline)

	if formatter.JSON() {
		return formatter.Success(result)
	}
	outputTraceText(cmd.OutOrStdout(), result, opts.Verbose)
	return nil
}

// openExistingJournal opens path without creating it.
func openExistingJournal(formatter *OutputFormatter, path string) (*journal.Journal, error) {
	if _, err := os.Stat(path); err != nil {
		_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("journal not found: %s", path), nil)
		return nil, WrapExitError(ExitCommandError, "journal not found", err)
	}
	j, err := journal.Open(path)
	if err != nil {
		_ = formatter.Error(ErrCodeJournal, err.Error(), nil)
		return nil, WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	return j, nil
}

// buildTrace assembles the report. all is the unfiltered journal, used to
// resolve the types of causes and for the final state hash; cycles is the
// filtered view shown in the timeline.
func buildTrace(path string, all, cycles []ir.CycleRecord, pipeline []ir.PipelineEvent) TraceResult {
	bySeq := make(map[int64]ir.CycleRecord, len(all))
	for _, c := range all {
		bySeq[c.Seq] = c
	}

	result := TraceResult{
		Journal:  path,
		Timeline: make([]TraceEvent, 0, len(cycles)),
		Causes:   []CausalEdge{},
		Pipeline: pipeline,
	}
	if result.Pipeline == nil {
		result.Pipeline = []ir.PipelineEvent{}
	}

	correlations := make(map[string]struct{})
	for _, c := range cycles {
		result.Timeline = append(result.Timeline, TraceEvent{
			Seq:         c.Seq,
			ParentSeq:   c.ParentSeq,
			Correlation: c.Correlation,
			Type:        c.ActionType,
			Payload:     c.Payload,
			ActionHash:  actionHash(c),
			StateHash:   c.StateHash,
			FollowUps:   c.FollowUps,
		})
		correlations[c.Correlation] = struct{}{}

		if c.ParentSeq == 0 {
			result.Stats.Roots++
			continue
		}
		result.Stats.FollowUps++
		if parent, ok := bySeq[c.ParentSeq]; ok {
			result.Causes = append(result.Causes, CausalEdge{
				From:     parent.Seq,
				FromType: parent.ActionType,
				To:       c.Seq,
				ToType:   c.ActionType,
			})
		}
	}

	result.Stats.Cycles = len(cycles)
	result.Stats.Correlations = len(correlations)
	result.Stats.PipelineEvents = len(pipeline)
	if len(all) > 0 {
		result.Stats.FinalStateHash = all[len(all)-1].StateHash
	}
	return result
}

// actionHash identifies the recorded action independent of when it ran.
// Returns "" for payloads that do not decode.
func actionHash(c ir.CycleRecord) string {
	var payload any
	if err := json.Unmarshal([]byte(c.Payload), &payload); err != nil {
		return ""
	}
	hash, err := ir.ActionHash(ir.NewAction(c.ActionType, payload))
	if err != nil {
		return ""
	}
	return hash
}

// outputTraceText outputs the trace result as text.
func outputTraceText(w io.Writer, result TraceResult, verbose bool) {
	fmt.Fprintf(w, "Trace for journal: %s\n", result.Journal)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Timeline ===")
	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "  (no cycles)")
	}
	for _, ev := range result.Timeline {
		formatTimelineEvent(w, ev, verbose)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Causes ===")
	if len(result.Causes) == 0 {
		fmt.Fprintln(w, "  (no follow-ups)")
	}
	for _, e := range result.Causes {
		fmt.Fprintf(w, "  [%d] %s -> [%d] %s\n", e.From, e.FromType, e.To, e.ToType)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Pipeline ===")
	if len(result.Pipeline) == 0 {
		fmt.Fprintln(w, "  (no events)")
	}
	for _, ev := range result.Pipeline {
		slice := ev.Slice
		if slice == "" {
			slice = "main"
		}
		fmt.Fprintf(w, "  [%d] %s %s (%d)\n", ev.Seq, ev.Type, slice, ev.Count)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Cycles:       %d\n", result.Stats.Cycles)
	fmt.Fprintf(w, "  Roots:        %d\n", result.Stats.Roots)
	fmt.Fprintf(w, "  Follow-ups:   %d\n", result.Stats.FollowUps)
	fmt.Fprintf(w, "  Correlations: %d\n", result.Stats.Correlations)
	if result.Stats.FinalStateHash != "" {
		fmt.Fprintf(w, "  State hash:   %s\n", truncateHash(result.Stats.FinalStateHash))
	}
}

// formatTimelineEvent formats a single timeline event for text output.
func formatTimelineEvent(w io.Writer, ev TraceEvent, verbose bool) {
	fmt.Fprintf(w, "  [%d] %s", ev.Seq, ev.Type)
	if ev.Payload != "" && ev.Payload != "null" {
		fmt.Fprintf(w, " %s", ev.Payload)
	}
	if ev.ParentSeq != 0 {
		fmt.Fprintf(w, " <- [%d]", ev.ParentSeq)
	}
	fmt.Fprintln(w)
	if verbose {
		fmt.Fprintf(w, "       correlation: %s\n", ev.Correlation)
		fmt.Fprintf(w, "       action: %s\n", truncateHash(ev.ActionHash))
		fmt.Fprintf(w, "       state: %s\n", truncateHash(ev.StateHash))
	}
}

// truncateHash shortens a state hash for display.
func truncateHash(hash string) string {
	if len(hash) <= 12 {
		return hash
	}
	return hash[:12]
}
