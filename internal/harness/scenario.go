package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/supervisor/internal/ir"
)

// Scenario is a scripted store session plus the checks to run on it.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Modules are catalog feature modules attached before the first step.
	Modules []string `yaml:"modules,omitempty"`

	// Steps run in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace and state.
	Assertions []Assertion `yaml:"assertions"`

	// MaxSteps overrides the per-correlation follow-up quota when positive.
	MaxSteps int `yaml:"max_steps,omitempty"`

	// CorrelationPrefix names correlation tokens "<prefix>-1", "<prefix>-2", ...
	// Defaults to "c".
	CorrelationPrefix string `yaml:"correlation_prefix,omitempty"`
}

// Step is one store operation. Exactly one field is set.
type Step struct {
	Dispatch *ir.Action `yaml:"dispatch,omitempty"`
	Load     string     `yaml:"load,omitempty"`
	Unload   string     `yaml:"unload,omitempty"`
}

// Kind returns the step's operation name.
func (s Step) Kind() string {
	switch {
	case s.Dispatch != nil:
		return "dispatch"
	case s.Load != "":
		return "load"
	case s.Unload != "":
		return "unload"
	default:
		return ""
	}
}

// Assertion validates trace or final state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Action is the action type (trace_contains, trace_count).
	Action string `yaml:"action,omitempty"`

	// Payload is the expected payload (trace_contains). Subset match for maps.
	Payload any `yaml:"payload,omitempty"`

	// Actions is the expected order of action types (trace_order).
	Actions []string `yaml:"actions,omitempty"`

	// Count is the expected number (trace_count, notifications, cycle_errors).
	Count int `yaml:"count,omitempty"`

	// Slice selects a state slice (final_state). Empty means the whole state.
	Slice string `yaml:"slice,omitempty"`

	// Expect is the expected value (final_state).
	Expect any `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
	AssertNotifications = "notifications"
	AssertCycleErrors   = "cycle_errors"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := ValidateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// ValidateScenario checks that required fields are present and valid.
// Module names are checked against the catalog when the scenario runs.
func ValidateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Steps) == 0 && len(s.Modules) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	if s.MaxSteps < 0 {
		return fmt.Errorf("max_steps must be non-negative")
	}

	for i, m := range s.Modules {
		if m == "" {
			return fmt.Errorf("modules[%d]: name is required", i)
		}
	}

	for i, step := range s.Steps {
		if err := validateStep(i, step); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

func validateStep(index int, s Step) error {
	set := 0
	if s.Dispatch != nil {
		set++
	}
	if s.Load != "" {
		set++
	}
	if s.Unload != "" {
		set++
	}
	if set != 1 {
		return fmt.Errorf("steps[%d]: exactly one of dispatch, load, unload is required", index)
	}
	if s.Dispatch != nil {
		if err := s.Dispatch.Validate(); err != nil {
			return fmt.Errorf("steps[%d].dispatch: %w", index, err)
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Actions) == 0 {
			return fmt.Errorf("assertions[%d]: actions list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if a.Expect == nil {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	case AssertNotifications, AssertCycleErrors:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for %s", index, a.Type)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
