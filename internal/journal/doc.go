// Package journal provides a SQLite-backed trace journal for the store.
//
// The journal is an append-only log with:
//   - Cycles: one row per completed middleware → reduce → effects cycle
//   - Pipeline events: APPLY_MIDDLEWARES, REGISTER_EFFECTS, UNREGISTER_EFFECTS
//
// It is a diagnostic record. The store never reads it back to restore
// state; the replay command re-dispatches root actions instead.
//
// # Ordering
//
// All ordering uses seq (the store's logical clock), never timestamps.
// Every query orders by seq ASC, id ASC so results are identical across
// reads.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//
// Payloads and states are stored as canonical JSON (see ir.MarshalCanonical).
package journal
