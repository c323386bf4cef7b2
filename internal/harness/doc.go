// Package harness provides conformance testing for synchronization
// strategies.
//
// A scenario seeds a store, picks a strategy, issues commands and states
// the expected end state. The harness records a trace of the view after
// every dispatch and settle, which is compared against golden files.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: optimistic_update_rollback
//	description: "A failed update restores the previous value"
//	strategy: optimistic
//	seed:
//	  - {name: Bo, email: b@example.com, phone: "2"}
//	steps:
//	  - op: update
//	    id: user-1
//	    fields: {name: Bob}
//	    fail: STORE_UNAVAILABLE
//	expect:
//	  view:
//	    - {id: user-1, name: Bo, email: b@example.com, phone: "2"}
//	  failures: ["update:STORE_UNAVAILABLE"]
//	  calls: {update: 1}
//
// Step ops are refresh, create, update, delete and settle. A mutation
// marked async stays in flight while later steps run; settle releases
// every in-flight call in dispatch order (or newest first with reverse).
//
// # Deterministic Testing
//
// Every scenario runs against a fresh in-memory SQLite store. Store ids
// are user-1, user-2, ... and temporary create keys tmp-1, tmp-2, ...
// Mutating calls are held until the harness releases them one at a time,
// so the same scenario always produces the same trace.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/rollback.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(ctx, scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, msg := range result.Errors {
//	        log.Println(msg)
//	    }
//	}
package harness
