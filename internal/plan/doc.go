// Package plan holds the logical operator plan that the rewrite engine
// transforms in place.
//
// A Plan is an arena. Operators and expressions live in slices owned by the
// plan and are addressed by integer handles:
//
//	OpRef   -> Operator   (Navigate, Assign, Aggregate, Select, ...)
//	ExprRef -> Expr       (VariableRef, FunctionCall, Constant, Extension)
//
// Nodes are immutable values. All mutation goes through the plan:
//
//   - ReplaceOp / ReplaceExpr swap the content of a slot. Every parent that
//     holds the same ref observes the change (structural sharing).
//   - SetInput re-points a single input edge of one operator. Other parents
//     of the old child are untouched.
//
// The operator graph is a DAG rooted at Root(). Sharing is legal, cycles are
// not. Expressions form trees (or DAGs inside one operator); an expression
// ref is owned by exactly one operator so in-place rewrites of an expression
// never leak into a different operator.
//
// Operator and expression kinds are closed sum types sealed with unexported
// marker methods. Code in this package dispatches on them with exhaustive
// type switches; adding a kind means revisiting every switch here.
//
// Traversals (copy, validation, printing, fingerprinting, compaction) use
// explicit stacks. Plans can be deep and must not exhaust the goroutine
// stack.
//
// A Plan is not safe for concurrent use.
package plan
