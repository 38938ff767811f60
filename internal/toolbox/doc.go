// Package toolbox holds the read-only lookups rewrite rules use to match
// patterns across operator boundaries.
//
//   - FindFirstFunctionCall searches an expression tree for a call.
//   - FindProducer / ProducerOf locate the operator binding a variable.
//   - ExpressionFor returns the expression an operator binds to a variable.
//
// None of these mutate the plan. All of them walk with explicit stacks.
package toolbox
