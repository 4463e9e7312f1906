package harness

import (
	"encoding/json"
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strings"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			if event.Payload != nil {
				fmt.Fprintf(&buf, "  [%d] %s %v\n", event.Seq, event.Type, event.Payload)
			} else {
				fmt.Fprintf(&buf, "  [%d] %s\n", event.Seq, event.Type)
			}
		}
	}

	return buf.String()
}

// assertTraceContains checks if the trace contains an action of the given
// type whose payload matches (subset match for objects).
func assertTraceContains(trace []TraceEvent, assertion Assertion) error {
	expected, err := normalize(assertion.Payload)
	if err != nil {
		return fmt.Errorf("trace_contains: %w", err)
	}

	for _, event := range trace {
		if event.Type != assertion.Action {
			continue
		}
		if assertion.Payload == nil || matchValue(event.Payload, expected) {
			return nil
		}
	}

	what := "action " + assertion.Action
	if assertion.Payload != nil {
		what += fmt.Sprintf(" with payload %v", assertion.Payload)
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: what,
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that the first occurrences of the given action
// types appear in the specified order. Intervening actions are allowed.
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	positions := make(map[string]int)
	for i, event := range trace {
		if _, seen := positions[event.Type]; !seen {
			positions[event.Type] = i + 1 // 1-indexed for readability
		}
	}

	for _, action := range assertion.Actions {
		if positions[action] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all actions present: %v", assertion.Actions),
				Actual:   fmt.Sprintf("missing action: %s", action),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(assertion.Actions); i++ {
		prev := assertion.Actions[i-1]
		curr := assertion.Actions[i]

		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("actions in order: %v", assertion.Actions),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}

	return nil
}

// assertTraceCount checks if the action appears exactly the specified number of times.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Type == assertion.Action {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, assertion.Action),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}

	return nil
}

// assertFinalState compares a slice of the final state, or the whole state
// when no slice is named, against the expected value.
func assertFinalState(state map[string]any, assertion Assertion) error {
	expected, err := normalize(assertion.Expect)
	if err != nil {
		return fmt.Errorf("final_state: %w", err)
	}

	var actual any = state
	where := "state"
	if assertion.Slice != "" {
		v, ok := state[assertion.Slice]
		if !ok {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("slice %q to exist", assertion.Slice),
				Actual:   fmt.Sprintf("slice not present; keys: %v", keys(state)),
			}
		}
		actual = v
		where = "slice " + assertion.Slice
	}

	if !matchValue(actual, expected) {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("%s = %v", where, expected),
			Actual:   fmt.Sprintf("%s = %v", where, actual),
		}
	}
	return nil
}

func assertCount(kind string, got int, assertion Assertion) error {
	if got != assertion.Count {
		return &AssertionError{
			Type:     kind,
			Expected: fmt.Sprintf("%d", assertion.Count),
			Actual:   fmt.Sprintf("%d", got),
		}
	}
	return nil
}

// normalize converts a decoded YAML value into the JSON model used by the
// trace and final state, so 3 (int) and 3 (float64) compare equal.
func normalize(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("expected value is not JSON-compatible: %w", err)
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// matchValue reports whether actual matches expected. Objects match as a
// subset: extra keys in actual are ignored. Everything else must be equal.
func matchValue(actual, expected any) bool {
	exp, ok := expected.(map[string]any)
	if !ok {
		return reflect.DeepEqual(actual, expected)
	}
	act, ok := actual.(map[string]any)
	if !ok {
		return false
	}
	for key, ev := range exp {
		av, exists := act[key]
		if !exists || !matchValue(av, ev) {
			return false
		}
	}
	return true
}

func keys(m map[string]any) []string {
	return slices.Sorted(maps.Keys(m))
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertFinalState:
			err = assertFinalState(result.State, assertion)
		case AssertNotifications:
			err = assertCount(AssertNotifications, result.Notifications, assertion)
		case AssertCycleErrors:
			err = assertCount(AssertCycleErrors, len(result.CycleErrors), assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
