package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"github.com/roach88/supervisor/internal/catalog"
	"github.com/roach88/supervisor/internal/config"
	"github.com/roach88/supervisor/internal/engine"
	"github.com/roach88/supervisor/internal/harness"
	"github.com/roach88/supervisor/internal/ir"
	"github.com/roach88/supervisor/internal/journal"
	"github.com/roach88/supervisor/internal/middleware"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Journal string // overrides the configured journal path
	Metrics bool   // print prometheus metrics after the run
}

// RunResult is the run command's report.
type RunResult struct {
	Scenario      string         `json:"scenario"`
	Pass          bool           `json:"pass"`
	Cycles        int            `json:"cycles"`
	Notifications int            `json:"notifications"`
	State         map[string]any `json:"state"`
	StateHash     string         `json:"state_hash"`
	Errors        []string       `json:"errors,omitempty"`
	CycleErrors   []string       `json:"cycle_errors,omitempty"`
	Journal       string         `json:"journal,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Play a scenario against the demo catalog",
		Long: `Play a scenario against a fresh store built from the demo catalog.

The store's main module carries the recover, logger, and metrics middleware,
plus the throttle when rate_limit is configured. Modules listed in the config
are attached before the scenario's own modules.

With a journal path (flag, config, or SUPERVISOR_JOURNAL) every cycle is
recorded for later trace and replay. An existing journal is reset first.

Exit codes:
  0 - All assertions passed
  1 - One or more assertions failed
  2 - Command error (unreadable scenario, unknown module, journal error)

Examples:
  supervisor run scenarios/heroes.yaml
  supervisor run scenarios/heroes.yaml --journal trace.db
  supervisor run scenarios/heroes.yaml --config supervisor.cue --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenario(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Journal, "journal", "", "path to SQLite trace journal (overrides config)")
	cmd.Flags().BoolVar(&opts.Metrics, "metrics", false, "print prometheus metrics after the run")

	return cmd
}

func runScenario(opts *RunOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := opts.Logger(cmd.ErrOrStderr())
	settings := opts.Settings

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		_ = formatter.Error(ErrCodeInvalidFile, err.Error(), map[string]string{"path": path})
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}
	scenario.Modules = append(append([]string{}, settings.Modules...), scenario.Modules...)

	registry := prometheus.NewRegistry()
	main, err := newMainModule(settings, logger, registry)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to register metrics", err)
	}

	runOpts := harness.Options{Logger: logger, Main: &main, MaxSteps: settings.MaxSteps}

	journalPath := opts.Journal
	if journalPath == "" {
		journalPath = settings.Journal
	}
	if journalPath != "" {
		j, err := journal.Open(journalPath)
		if err != nil {
			_ = formatter.Error(ErrCodeJournal, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to open journal", err)
		}
		defer func() {
			if closeErr := j.Close(); closeErr != nil {
				logger.Error("error closing journal", "error", closeErr)
			}
		}()
		if err := j.Reset(contextOf(cmd)); err != nil {
			return WrapExitError(ExitCommandError, "failed to reset journal", err)
		}
		runOpts.Journal = j
	}

	ctx, stop := signal.NotifyContext(contextOf(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("running scenario", "name", scenario.Name, "modules", scenario.Modules, "journal", journalPath)
	result, err := harness.RunWithOptions(ctx, scenario, runOpts)
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "scenario run failed", err)
	}

	report := RunResult{
		Scenario:      scenario.Name,
		Pass:          result.Pass,
		Cycles:        len(result.Trace),
		Notifications: result.Notifications,
		State:         result.State,
		StateHash:     result.StateHash,
		Errors:        result.Errors,
		CycleErrors:   result.CycleErrors,
		Journal:       journalPath,
	}

	if formatter.JSON() {
		if report.Pass {
			err = formatter.Success(report)
		} else {
			err = formatter.Failure(ErrCodeScenarioFailed, "scenario assertions failed", report)
		}
		if err != nil {
			return err
		}
	} else {
		printRunText(formatter, report)
	}

	if opts.Metrics {
		if err := writeMetrics(formatter, registry); err != nil {
			return WrapExitError(ExitCommandError, "failed to write metrics", err)
		}
	}

	if !report.Pass {
		return NewExitError(ExitFailure, fmt.Sprintf("scenario %s failed %d assertion(s)", scenario.Name, len(report.Errors)))
	}
	return nil
}

// newMainModule builds the catalog main module from the resolved settings,
// registering the metrics middleware on registry.
func newMainModule(settings config.Config, logger *slog.Logger, registry prometheus.Registerer) (engine.MainModule, error) {
	metrics, err := middleware.NewMetrics(registry)
	if err != nil {
		return engine.MainModule{}, err
	}
	return catalog.Main(catalog.MainOptions{
		Logger:   logger,
		Metrics:  metrics,
		Throttle: middleware.NewThrottle(settings.RateLimit.RPS, settings.RateLimit.Burst, logger),
		Timeout:  settings.ActionTimeout(),
	}), nil
}

func printRunText(f *OutputFormatter, r RunResult) {
	status := "PASS"
	if !r.Pass {
		status = "FAIL"
	}
	f.Printf("%s %s (%d cycles, %d notifications)\n", status, r.Scenario, r.Cycles, r.Notifications)

	state, err := ir.MarshalCanonical(r.State)
	if err != nil {
		state = []byte(fmt.Sprintf("%v", r.State))
	}
	f.Printf("state: %s\n", state)
	f.Printf("state hash: %s\n", r.StateHash)
	if r.Journal != "" {
		f.Printf("journal: %s\n", r.Journal)
	}

	for _, e := range r.CycleErrors {
		f.Printf("cycle error: %s\n", e)
	}
	for _, e := range r.Errors {
		f.Printf("\n%s", strings.TrimRight(e, "\n")+"\n")
	}
}

// writeMetrics prints the registry in the prometheus text format on the
// diagnostic writer, so JSON output stays parseable.
func writeMetrics(f *OutputFormatter, registry *prometheus.Registry) error {
	families, err := registry.Gather()
	if err != nil {
		return err
	}
	w := f.GetErrWriter()
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}

// contextOf returns the command's context, or Background when the command
// was executed without one.
func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
