// Package harness runs YAML scenarios against a real store.
//
// A scenario attaches feature modules from the catalog, dispatches actions,
// and asserts on the resulting trace and final state. Every scenario runs
// in a fresh store with an in-memory journal and sequential correlation
// tokens, so the same scenario always produces the same trace.
//
// # Scenario Format
//
//	name: heroes_announce
//	description: "Adding a hero posts a message"
//	modules: [heroes, messages]
//	steps:
//	  - dispatch: { type: ADD_HERO, payload: Storm }
//	  - unload: heroes
//	assertions:
//	  - type: trace_order
//	    actions: [ADD_HERO, ADD_MESSAGE]
//	  - type: final_state
//	    slice: messages
//	    expect: ["HeroService: added hero Storm"]
//
// Each step sets exactly one of dispatch, load, or unload.
//
// # Assertion Types
//
//   - trace_contains: an action of the given type (and payload, if set) was reduced
//   - trace_order: the given action types were first reduced in this order
//   - trace_count: an action type was reduced exactly N times
//   - final_state: a slice (or, with no slice, the whole state) matches expect
//   - notifications: listeners were notified exactly N times
//   - cycle_errors: exactly N cycles failed
//
// Map expectations are subset matches; everything else must be equal.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/heroes.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(ctx, scenario)
//	if !result.Pass {
//	    for _, msg := range result.Errors {
//	        log.Println(msg)
//	    }
//	}
package harness
