package harness

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/roach88/supervisor/internal/catalog"
	"github.com/roach88/supervisor/internal/engine"
	"github.com/roach88/supervisor/internal/ir"
	"github.com/roach88/supervisor/internal/journal"
	"github.com/roach88/supervisor/internal/testutil"
)

// DefaultTimeout bounds a scenario run when ctx has no deadline.
const DefaultTimeout = 10 * time.Second

// Options configures a scenario run. The zero value is a silent run of the
// catalog main module against a throwaway in-memory journal.
type Options struct {
	// Logger receives store logs. Nil discards them.
	Logger *slog.Logger

	// Main replaces the catalog main module.
	Main *engine.MainModule

	// Journal records the run. It must be empty. Nil opens an in-memory
	// journal that is closed when the run ends.
	Journal *journal.Journal

	// MaxSteps is the follow-up quota when the scenario does not set one.
	MaxSteps int
}

// harness drives one scenario against one store.
type harness struct {
	store   *engine.Store
	journal *journal.Journal
	logger  *slog.Logger
}

// Run executes a scenario with default options.
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	return RunWithOptions(ctx, scenario, Options{})
}

// RunWithOptions executes a scenario and returns the result.
//
// Execution flow:
//  1. Create a fresh store wired to the journal and a sequential correlation generator
//  2. Attach the scenario's modules
//  3. Execute steps, letting the store settle after each one
//  4. Stop the store and read the trace back from the journal
//  5. Evaluate assertions
//
// Settling after every step keeps seqs independent of goroutine scheduling,
// so traces are reproducible.
func RunWithOptions(ctx context.Context, scenario *Scenario, opts Options) (*Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	j := opts.Journal
	if j == nil {
		mem, err := journal.Open(":memory:")
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory journal: %w", err)
		}
		defer mem.Close()
		j = mem
	}
	if err := j.SetMeta(ctx, "scenario", scenario.Name); err != nil {
		return nil, err
	}

	main := catalog.Main(catalog.MainOptions{})
	if opts.Main != nil {
		main = *opts.Main
	}

	maxSteps := engine.DefaultMaxSteps
	switch {
	case scenario.MaxSteps > 0:
		maxSteps = scenario.MaxSteps
	case opts.MaxSteps > 0:
		maxSteps = opts.MaxSteps
	}

	var (
		mu            sync.Mutex
		cycleErrors   []string
		notifications atomic.Int64
	)
	st := engine.New(main,
		engine.WithLogger(logger),
		engine.WithRecorder(j),
		engine.WithCorrelationGenerator(testutil.NewSequenceGenerator(scenario.CorrelationPrefix)),
		engine.WithMaxSteps(maxSteps),
		engine.WithErrorHandler(func(env ir.Envelope, err error) {
			mu.Lock()
			defer mu.Unlock()
			cycleErrors = append(cycleErrors, fmt.Sprintf("seq %d %s: %v", env.Seq, env.Action.Type, err))
		}),
	)
	st.Subscribe(func(ir.State) { notifications.Add(1) })

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultTimeout)
		defer cancel()
	}
	runCtx, stopRun := context.WithCancel(ctx)
	defer stopRun()

	runErr := make(chan error, 1)
	go func() { runErr <- st.Run(runCtx) }()

	h := &harness{store: st, journal: j, logger: logger}
	execErr := h.execute(ctx, scenario)

	if execErr != nil {
		stopRun()
	} else {
		st.Stop()
	}
	if err := <-runErr; err != nil && execErr == nil {
		execErr = fmt.Errorf("store stopped early: %w", err)
	}
	if execErr != nil {
		return nil, execErr
	}

	result := NewResult()
	result.Notifications = int(notifications.Load())
	mu.Lock()
	result.CycleErrors = append(result.CycleErrors, cycleErrors...)
	mu.Unlock()

	if err := h.collect(ctx, result); err != nil {
		return nil, err
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}

	return result, nil
}

// execute attaches the scenario's modules and runs its steps.
func (h *harness) execute(ctx context.Context, scenario *Scenario) error {
	if err := h.settle(ctx); err != nil {
		return fmt.Errorf("store initialisation: %w", err)
	}

	for i, name := range scenario.Modules {
		if err := h.load(ctx, name); err != nil {
			return fmt.Errorf("modules[%d]: %w", i, err)
		}
	}

	for i, step := range scenario.Steps {
		var err error
		switch step.Kind() {
		case "dispatch":
			err = h.store.Dispatch(*step.Dispatch)
			if err == nil {
				err = h.settle(ctx)
			}
		case "load":
			err = h.load(ctx, step.Load)
		case "unload":
			err = h.unload(ctx, step.Unload)
		default:
			err = fmt.Errorf("empty step")
		}
		if err != nil {
			return fmt.Errorf("steps[%d] (%s): %w", i, step.Kind(), err)
		}

		h.logger.Info("scenario step completed", "step", i, "kind", step.Kind())
	}

	return nil
}

func (h *harness) load(ctx context.Context, name string) error {
	m, err := catalog.Lookup(name)
	if err != nil {
		return err
	}
	if err := h.store.LoadModule(m); err != nil {
		return err
	}
	return h.settle(ctx)
}

func (h *harness) unload(ctx context.Context, name string) error {
	m, err := catalog.Lookup(name)
	if err != nil {
		return err
	}
	if err := h.store.UnloadModule(m); err != nil {
		return err
	}
	return h.settle(ctx)
}

func (h *harness) settle(ctx context.Context) error {
	if err := h.store.Settle(ctx); err != nil {
		return fmt.Errorf("store did not settle: %w", err)
	}
	return nil
}

// collect reads the trace back from the journal and snapshots the final state.
func (h *harness) collect(ctx context.Context, result *Result) error {
	cycles, err := h.journal.ReadCycles(ctx, journal.CycleFilter{})
	if err != nil {
		return fmt.Errorf("read trace: %w", err)
	}
	for _, rec := range cycles {
		ev, err := traceEventFromCycle(rec)
		if err != nil {
			return err
		}
		result.Trace = append(result.Trace, ev)
	}

	events, err := h.journal.ReadPipelineEvents(ctx)
	if err != nil {
		return fmt.Errorf("read pipeline events: %w", err)
	}
	result.Pipeline = events

	state := h.store.GetState()
	result.StateHash, err = ir.StateHash(state)
	if err != nil {
		return err
	}
	canonical, err := ir.MarshalCanonical(state)
	if err != nil {
		return fmt.Errorf("serialize final state: %w", err)
	}
	if err := json.Unmarshal(canonical, &result.State); err != nil {
		return fmt.Errorf("decode final state: %w", err)
	}
	return nil
}
