// Package engine implements the supervisor store: a single shared state
// folded from dispatched actions by pluggable reducers, with interceptor
// middleware and reactive effects.
//
// ARCHITECTURE:
//
// Single-Writer Event Loop:
// The store processes every action in a single goroutine (Store.Run). This
// ensures:
//   - Action N+1 is never processed ahead of action N
//   - No parallel mutation of state, pipeline, or attached modules
//   - Reproducible state for a given action sequence
//
// Cycle Flow:
//  1. Dispatch stamps the action with a seq and appends it to a FIFO queue
//  2. Run dequeues one event at a time
//  3. The middleware chain processes the action (may transform, defer, or withhold it)
//  4. The composed reducer folds the action into a new state
//  5. Effects run sequentially against (action, new state); produced actions
//     are appended to the same queue behind everything already waiting
//  6. Listeners are notified
//
// Module attach/detach is sequenced through the same queue, so an action
// dispatched after LoadModule always sees the new module.
//
// Copy-on-write:
// The pipeline (reducer, middleware chain, effects, attached modules) is an
// immutable value. Attach/detach builds a new pipeline from the old one and
// the Run goroutine swaps it in. State is replaced only by the output of the
// composed reducer.
//
// Reentrancy:
// Dispatch never runs a cycle inline. A dispatch performed from a reducer,
// middleware, effect, or listener is queued behind the in-flight cycle.
package engine
