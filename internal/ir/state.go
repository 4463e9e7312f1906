package ir

import (
	"maps"
	"slices"
)

// State is the single shared application state.
//
// Top-level keys are either written by the main module's reducer or are
// slice keys owned by attached feature modules. A State handed out by the
// engine is a snapshot: callers must treat it as read-only.
type State map[string]any

// NewState returns an empty state, the initial value of every store.
func NewState() State {
	return State{}
}

// Clone returns a shallow copy of the state.
// Slice values are shared; only the top-level map is copied.
func (s State) Clone() State {
	if s == nil {
		return State{}
	}
	return maps.Clone(s)
}

// Slice returns the value stored under key and whether it exists.
func (s State) Slice(key string) (any, bool) {
	v, ok := s[key]
	return v, ok
}

// SortedKeys returns the top-level keys in lexicographic order.
func (s State) SortedKeys() []string {
	return slices.Sorted(maps.Keys(s))
}

// AsState converts a reducer result into a State.
// Accepts State and map[string]any; any other value reports false.
func AsState(v any) (State, bool) {
	switch st := v.(type) {
	case State:
		return st, true
	case map[string]any:
		return State(st), true
	default:
		return nil, false
	}
}
