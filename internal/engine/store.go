package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/roach88/supervisor/internal/ir"
)

// snapshot pairs a folded state with the seq of the cycle that produced it.
type snapshot struct {
	seq   int64
	state ir.State
}

// Store holds the single shared application state and runs the dispatch
// pipeline over it.
//
// Lifecycle: New (configure) → Run (process) → Stop (shut down).
//
// Thread-safety model:
//   - Dispatch, GetState, Subscribe, WatchState, WatchActions,
//     LoadModule, UnloadModule, Settle, Stop: safe from any goroutine
//   - Run: must be called from exactly one goroutine
//
// INVARIANTS:
//   - State is only ever replaced by the output of the composed reducer
//   - The pipeline is replaced, never mutated, and only by the Run goroutine
//   - One cycle completes (middleware → reduce → effects → notify) before the next begins
type Store struct {
	logger   *slog.Logger
	clock    *Clock
	corrGen  CorrelationGenerator
	queue    *actionQueue
	recorder Recorder
	onError  ErrorHandler
	maxSteps int

	pipeline    atomic.Pointer[pipeline]
	current     atomic.Pointer[snapshot]
	dispatching atomic.Bool
	running     atomic.Bool

	listeners listenerSet[ir.State]
	watchers  listenerSet[*snapshot]
	actions   listenerSet[ir.Envelope]

	// Owned by the Run goroutine.
	quotas      map[string]*QuotaEnforcer
	outstanding map[string]int
}

// New configures a store with the given main module.
//
// The main module's zero fields default to an identity reducer, no effects,
// and no middleware. The initial state is empty. An INIT_STORE action is
// queued as the first cycle; it runs once Run starts.
//
// Configuration is one-shot: the main module cannot be replaced afterwards.
func New(main MainModule, opts ...Option) *Store {
	clock := NewClock()
	s := &Store{
		logger:      slog.Default(),
		clock:       clock,
		corrGen:     UUIDv7Generator{},
		queue:       newActionQueue(clock),
		maxSteps:    DefaultMaxSteps,
		quotas:      make(map[string]*QuotaEnforcer),
		outstanding: make(map[string]int),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.pipeline.Store(newPipeline(main, s))
	s.current.Store(&snapshot{state: ir.NewState()})

	s.queue.Enqueue(Event{
		Kind:     EventAction,
		Envelope: ir.Envelope{Correlation: s.corrGen.Generate(), Action: ir.Action{Type: ir.ActionInitStore}},
	})

	return s
}

// Init always fails: the main module is fixed when New returns.
func (s *Store) Init(MainModule) error {
	return &ConfigError{Op: "init", Message: "store is already configured; the main module is fixed by New"}
}

// Dispatch accepts a plain action or a thunk.
//
//   - ir.Action (or non-nil *ir.Action): stamped and appended to the action
//     channel. Returns once queued; the cycle runs on the Run goroutine.
//   - Thunk, or a func(DispatchFunc, GetStateFunc): invoked immediately on the
//     calling goroutine with the store's Dispatch and GetState. Never queued.
//   - anything else: InvalidActionError naming the received kind. State is untouched.
//
// Dispatch never runs a cycle inline, so it is safe to call from reducers,
// middleware, effects, and listeners: the action is queued behind the
// in-flight cycle.
func (s *Store) Dispatch(v any) error {
	switch a := v.(type) {
	case ir.Action:
		return s.publish(a)
	case *ir.Action:
		if a == nil {
			return &InvalidActionError{Kind: kindOf(v)}
		}
		return s.publish(*a)
	case Thunk:
		if a == nil {
			return &InvalidActionError{Kind: kindOf(v)}
		}
		a(s.Dispatch, s.GetState)
		return nil
	case func(DispatchFunc, GetStateFunc):
		if a == nil {
			return &InvalidActionError{Kind: kindOf(v)}
		}
		a(s.Dispatch, s.GetState)
		return nil
	default:
		return &InvalidActionError{Kind: kindOf(v)}
	}
}

func (s *Store) publish(a ir.Action) error {
	if err := a.Validate(); err != nil {
		return &InvalidActionError{Kind: "struct", Reason: err.Error()}
	}
	env := ir.Envelope{Correlation: s.corrGen.Generate(), Action: a}
	if _, ok := s.queue.Enqueue(Event{Kind: EventAction, Envelope: env}); !ok {
		return ErrStopped
	}
	return nil
}

// GetState returns the latest folded state.
// The returned map is a shallow copy; slice values are shared and must be
// treated as read-only.
func (s *Store) GetState() ir.State {
	return s.current.Load().state.Clone()
}

// IsDispatching reports whether a reduction is in progress.
// Advisory only: it is never used to reject or queue dispatches.
func (s *Store) IsDispatching() bool {
	return s.dispatching.Load()
}

// Modules returns the attached slice keys in attachment order.
func (s *Store) Modules() []string {
	return s.pipeline.Load().sliceKeys()
}

// Subscribe registers a listener invoked with the new state after each
// completed cycle. Returns a function that removes the listener.
func (s *Store) Subscribe(l Listener) func() {
	return s.listeners.add(l)
}

// WatchState registers a state observer. It receives the current state
// immediately, then the new state after every cycle.
func (s *Store) WatchState(l Listener) func() {
	w := &stateWatcher{last: -1, fn: l}
	unsubscribe := s.watchers.add(w.deliver)
	w.deliver(s.current.Load())
	return unsubscribe
}

// WatchActions registers an action observer. It sees only actions published
// after it subscribed, each one as its cycle starts.
func (s *Store) WatchActions(fn ActionWatcher) func() {
	since := s.clock.Current()
	return s.actions.add(func(env ir.Envelope) {
		if env.Seq > since {
			fn(env)
		}
	})
}

// LoadModule attaches a feature module.
//
// The attach is sequenced through the action channel: every action
// dispatched after LoadModule returns sees the new module. Attaching a slice
// that is already attached is silently ignored when its turn comes.
// An effective attach runs a LOAD_MODULE cycle so the new slice is initialised.
func (s *Store) LoadModule(m FeatureModule) error {
	if err := m.Validate(); err != nil {
		return err
	}
	env := ir.Envelope{
		Correlation: s.corrGen.Generate(),
		Action:      ir.Action{Type: ir.ActionLoadModule, Payload: m.Slice},
	}
	if _, ok := s.queue.Enqueue(Event{Kind: EventLoadModule, Envelope: env, Module: m}); !ok {
		return ErrStopped
	}
	return nil
}

// UnloadModule detaches the feature module with m's slice key.
//
// Only m.Slice is consulted. Detaching a slice that is not attached is
// silently ignored. An effective detach runs an UNLOAD_MODULE cycle that
// drops the slice from the state.
func (s *Store) UnloadModule(m FeatureModule) error {
	env := ir.Envelope{
		Correlation: s.corrGen.Generate(),
		Action:      ir.Action{Type: ir.ActionUnloadModule, Payload: m.Slice},
	}
	if _, ok := s.queue.Enqueue(Event{Kind: EventUnloadModule, Envelope: env}); !ok {
		return ErrStopped
	}
	return nil
}

// Settle blocks until no action is queued or in flight, or ctx is done.
func (s *Store) Settle(ctx context.Context) error {
	select {
	case <-s.queue.Idle():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run starts the single processing goroutine.
// Blocks until ctx is cancelled, or Stop is called and the queue is drained.
//
// CRITICAL: Must be called from exactly ONE goroutine, once.
//
// ERROR HANDLING: A failed cycle is logged with full action context, passed
// to the ErrorHandler, and processing continues with the next action.
// Panics raised by reducers, middleware, or effects are not recovered.
func (s *Store) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return &ConfigError{Op: "run", Message: "store is already running or has run"}
	}

	p := s.pipeline.Load()
	s.logger.Info("store starting",
		"middlewares", len(p.middlewares),
		"effects", len(p.effects),
	)
	s.recordPipeline(ctx, []ir.PipelineEvent{
		{Type: ir.ActionApplyMiddlewares, Count: len(p.middlewares)},
		{Type: ir.ActionRegisterEffects, Count: len(p.effects)},
	})

	for {
		ev, ok := s.queue.TryDequeue()
		if ok {
			s.processEvent(ctx, ev)
			s.queue.Ack()
			continue
		}

		select {
		case <-ctx.Done():
			dropped := s.queue.Discard()
			s.queue.Close()
			s.logger.Info("store stopping: context cancelled", "dropped", dropped)
			return ctx.Err()

		case <-s.queue.Wait():
			// The signal channel is closed once the queue is closed, so this
			// case fires immediately after Stop; drain before returning.
			if s.queue.Closed() && s.queue.Len() == 0 {
				s.logger.Info("store stopping: action channel closed")
				return nil
			}
		}
	}
}

// Stop closes the action channel. Run processes everything already queued
// and then returns. Dispatch and module changes fail with ErrStopped afterwards.
func (s *Store) Stop() {
	s.queue.Close()
}

// processEvent routes an event to the appropriate handler.
// CRITICAL: Called only from Run() goroutine - single-writer guarantee.
func (s *Store) processEvent(ctx context.Context, ev Event) {
	switch ev.Kind {
	case EventAction:
		s.runCycle(ctx, ev.Envelope)

	case EventLoadModule:
		next, changed, events := loadModule(s.pipeline.Load(), ev.Module, s)
		if !changed {
			s.logger.Debug("module already attached, ignoring", "slice", ev.Module.Slice, "seq", ev.Envelope.Seq)
			return
		}
		s.pipeline.Store(next)
		s.logger.Info("module attached", "slice", ev.Module.Slice, "modules", len(next.modules))
		s.recordPipeline(ctx, stampEvents(events, ev.Envelope.Seq))
		s.runCycle(ctx, ev.Envelope)

	case EventUnloadModule:
		slice, _ := ev.Envelope.Action.Payload.(string)
		next, changed, events := unloadModule(s.pipeline.Load(), slice, s)
		if !changed {
			s.logger.Debug("module not attached, ignoring", "slice", slice, "seq", ev.Envelope.Seq)
			return
		}
		s.pipeline.Store(next)
		s.logger.Info("module detached", "slice", slice, "modules", len(next.modules))
		s.recordPipeline(ctx, stampEvents(events, ev.Envelope.Seq))
		s.runCycle(ctx, ev.Envelope)

	default:
		s.logger.Error("unknown event kind", "kind", ev.Kind, "seq", ev.Envelope.Seq)
	}
}

// runCycle runs one action through middleware, reduction, and effects,
// then notifies listeners.
func (s *Store) runCycle(ctx context.Context, env ir.Envelope) {
	if env.IsRoot() {
		s.outstanding[env.Correlation]++
	}
	defer s.release(env.Correlation)

	s.actions.notify(env)

	if err := s.cycle(ctx, s.pipeline.Load(), env); err != nil {
		s.reportError(env, err)
	}
}

func (s *Store) cycle(ctx context.Context, p *pipeline, env ir.Envelope) error {
	s.logger.Debug("processing action",
		"seq", env.Seq,
		"action", env.Action.Type,
		"correlation", env.Correlation,
		"parent_seq", env.ParentSeq,
	)

	action, ok, err := normalize(p.chain(ctx, env.Action)).Await(ctx)
	if err == nil && ok {
		err = action.Validate()
	}
	if err != nil {
		return s.runtimeError(ErrCodeMiddlewareFailed, env, "", err)
	}
	if !ok {
		s.logger.Debug("action withheld by middleware", "seq", env.Seq, "action", env.Action.Type)
		return nil
	}

	next, err := s.fold(p, s.current.Load().state, action)
	if err != nil {
		return s.runtimeError(ErrCodeReducerFailed, env, "", err)
	}
	snap := &snapshot{seq: env.Seq, state: next}
	s.current.Store(snap)

	followUps, effErr := runEffects(ctx, p.effects, action, next, func(slice string, out ir.Action) error {
		return s.emitFollowUp(env, slice, out)
	})

	s.recordCycle(ctx, env, next, followUps)
	s.notify(snap)

	if effErr != nil {
		var re *RuntimeError
		if errors.As(effErr, &re) {
			return re
		}
		slice := ""
		var ee *effectError
		if errors.As(effErr, &ee) {
			slice = ee.slice
			effErr = ee.err
		}
		return s.runtimeError(ErrCodeEffectFailed, env, slice, effErr)
	}
	return nil
}

// fold runs the composed reducer with the advisory dispatching flag set.
func (s *Store) fold(p *pipeline, state ir.State, action ir.Action) (ir.State, error) {
	s.dispatching.Store(true)
	defer s.dispatching.Store(false)
	return p.reducer(state, action)
}

// emitFollowUp queues an action produced by an effect behind everything
// already waiting. The follow-up inherits the parent's correlation.
func (s *Store) emitFollowUp(parent ir.Envelope, slice string, action ir.Action) error {
	if err := action.Validate(); err != nil {
		return &effectError{slice: slice, err: err}
	}

	if err := s.quotaFor(parent.Correlation).Check(parent.Correlation); err != nil {
		s.logger.Error("max steps quota exceeded",
			"correlation", parent.Correlation,
			"action", action.Type,
			"limit", s.maxSteps,
		)
		return s.runtimeError(ErrCodeQuotaExceeded, parent, slice, err)
	}

	env := ir.Envelope{ParentSeq: parent.Seq, Correlation: parent.Correlation, Action: action}
	seq, ok := s.queue.Enqueue(Event{Kind: EventAction, Envelope: env})
	if !ok {
		return &effectError{slice: slice, err: ErrStopped}
	}
	s.outstanding[parent.Correlation]++

	s.logger.Debug("effect produced action",
		"seq", seq,
		"parent_seq", parent.Seq,
		"action", action.Type,
		"slice", slice,
	)
	return nil
}

// quotaFor returns or creates the quota enforcer for a correlation.
func (s *Store) quotaFor(correlation string) *QuotaEnforcer {
	if q, ok := s.quotas[correlation]; ok {
		return q
	}
	q := NewQuotaEnforcer(s.maxSteps)
	s.quotas[correlation] = q
	return q
}

// release drops the per-correlation bookkeeping once the last queued action
// of the correlation has completed.
//
// A root is counted when its cycle starts and a follow-up when it is queued.
// Follow-ups are queued before their parent's cycle releases, so the count
// stays positive while a chain is alive.
func (s *Store) release(correlation string) {
	s.outstanding[correlation]--
	if s.outstanding[correlation] <= 0 {
		delete(s.outstanding, correlation)
		delete(s.quotas, correlation)
	}
}

func (s *Store) notify(snap *snapshot) {
	if s.listeners.len() > 0 {
		s.listeners.notify(snap.state.Clone())
	}
	s.watchers.notify(snap)
}

func (s *Store) runtimeError(code RuntimeErrorCode, env ir.Envelope, slice string, err error) *RuntimeError {
	return &RuntimeError{
		Code:        code,
		Seq:         env.Seq,
		Correlation: env.Correlation,
		ActionType:  env.Action.Type,
		Slice:       slice,
		Err:         err,
	}
}

// reportError logs a cycle failure with full context and forwards it.
func (s *Store) reportError(env ir.Envelope, err error) {
	s.logger.Error("cycle failed",
		"error", err,
		"seq", env.Seq,
		"action", env.Action.Type,
		"correlation", env.Correlation,
		"parent_seq", env.ParentSeq,
	)
	if s.onError != nil {
		s.onError(env, err)
	}
}

func stampEvents(events []ir.PipelineEvent, seq int64) []ir.PipelineEvent {
	for i := range events {
		events[i].Seq = seq
	}
	return events
}
