package cli

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/roach88/supervisor/internal/harness"
	"github.com/roach88/supervisor/internal/journal"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Journal string
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay a journal and verify determinism",
		Long: `Re-dispatch the root actions recorded in a journal against a fresh store
and compare every cycle's seq, action type, and state hash with the record.

Module loads and unloads are replayed from the catalog. The store is built
from the same settings as run (config file and SUPERVISOR_* variables), so
replay with the settings the journal was recorded under.

Exit codes:
  0 - The replay matches the journal
  1 - Determinism verification failed (divergence detected)
  2 - Command error (journal not found, unknown module, etc.)

Examples:
  supervisor replay --journal trace.db
  supervisor replay --journal trace.db --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Journal, "journal", "", "path to SQLite trace journal (required)")
	_ = cmd.MarkFlagRequired("journal")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx := contextOf(cmd)
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := opts.Logger(cmd.ErrOrStderr())

	j, err := openExistingJournal(formatter, opts.Journal)
	if err != nil {
		return err
	}
	defer j.Close()

	recorded, err := j.ReadCycles(ctx, journal.CycleFilter{})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read cycles", err)
	}
	formatter.VerboseLog("replaying %d recorded cycle(s) from %s", len(recorded), opts.Journal)

	main, err := newMainModule(opts.Settings, logger, prometheus.NewRegistry())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to register metrics", err)
	}
	report, err := harness.Replay(ctx, recorded, harness.Options{
		Logger:   logger,
		Main:     &main,
		MaxSteps: opts.Settings.MaxSteps,
	})
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "replay failed", err)
	}

	if formatter.JSON() {
		if report.Deterministic {
			return formatter.Success(report)
		}
		if err := formatter.Failure(ErrCodeNonDeterminism, "replay diverged from journal", report); err != nil {
			return err
		}
		return NewExitError(ExitFailure, "replay diverged from journal")
	}

	outputReplayText(formatter, report)
	if !report.Deterministic {
		return NewExitError(ExitFailure, "replay diverged from journal")
	}
	return nil
}

func outputReplayText(f *OutputFormatter, r *harness.ReplayReport) {
	f.Printf("Replayed %d root action(s): %d recorded cycle(s), %d replayed\n", r.Roots, r.Recorded, r.Replayed)
	f.Printf("Expected state hash: %s\n", r.ExpectedHash)
	f.Printf("Actual state hash:   %s\n", r.ActualHash)

	if r.Deterministic {
		f.Printf("✓ Deterministic\n")
		return
	}

	f.Printf("✗ Non-deterministic\n")
	if d := r.FirstDivergent; d != nil {
		f.Printf("  first divergence at cycle %d:\n", d.Index)
		f.Printf("    expected %s\n", formatSummary(d.Expected))
		f.Printf("    actual   %s\n", formatSummary(d.Actual))
	}
}

func formatSummary(c harness.CycleSummary) string {
	if c.Seq == 0 && c.Type == "" {
		return "(missing)"
	}
	return fmt.Sprintf("[%d] %s %s", c.Seq, c.Type, truncateHash(c.StateHash))
}
