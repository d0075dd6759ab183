// Package harness runs multi-actor scenarios against the Real World App.
//
// Every run seeds fresh actors, gives each its own isolated browser
// context, drives the payment protocols through the orchestrator and
// checks balance invariants after every step. The observable steps form a
// trace; assertions are evaluated against the trace and the balances.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: request_accept
//	description: "bob requests money and alice accepts"
//	actors: [alice, bob]
//	deviation_mode: tracked        # optional; tracked or strict
//	steps:
//	  - op: request
//	    id: dinner
//	    from: bob
//	    to: alice
//	    amount: 40
//	    note: Dinner
//	  - op: accept
//	    request: dinner
//	    by: alice                  # optional; defaults to the payer
//	    expect: { error: wrong_party }
//	assertions:
//	  - type: trace_contains
//	    actor: alice
//	    action: accept
//	  - type: balance_delta
//	    actor: alice
//	    delta: -40
//
// Steps are pay, request, accept and reject. A step with an expect clause
// must fail with that error kind; the run then continues from a clean
// state. Any other failed step ends the run and skips the assertions.
//
// # Assertion Types
//
//   - trace_contains: an action appears in the trace with matching args
//   - trace_order: actions first appear in the listed order
//   - trace_count: an action appears exactly N times
//   - balance_delta: an actor's balance moved by exactly delta
//   - deviation: an actor produced tracked deviation findings
//
// # Golden Traces
//
// Traces carry no timestamps or generated names, so the same scenario
// against the same application yields the same trace. RunWithGolden
// compares it against testdata/golden/{name}.golden.
package harness
