// Package rewrite implements the rule contract and the fixpoint driver that
// applies a rule set to a logical plan.
//
// ARCHITECTURE:
//
// Single-threaded passes:
// The driver mutates one plan from one goroutine. A pass walks the operator
// DAG from the root with an explicit work stack and a visited set, so an
// operator reachable through several parents is visited once per pass.
// For each operator:
// 1. every rule's RewritePre runs, in rule order
// 2. the operator's inputs are processed
// 3. every rule's RewritePost runs, in rule order
//
// A pass changed the plan if any hook returned true. Passes repeat until an
// unchanged pass (Converged) or until the pass budget is spent
// (BudgetExceeded).
//
// Errors:
// Budget exhaustion, invariant violations found by per-pass validation and
// errors returned by rules are *InternalError values. They are compiler
// defects: the driver never retries, truncates or downgrades them.
//
// Diagnostics:
// After each changed pass the driver hashes the printed plan. A hash seen
// before means the rule set oscillates; the pass numbers are attached to the
// budget error.
//
// Tracing:
// A Recorder receives the run summary and every firing once the run has
// finished. Recording never happens inside a pass.
package rewrite
