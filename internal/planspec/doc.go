// Package planspec compiles logical plans written in CUE.
//
// A plan file declares named operators and the root to distribute from:
//
//	plan: {
//		root: "out"
//		ops: {
//			src:  {kind: "empty-tuple-source"}
//			doc:  {kind: "assign", input: "src", bind: [{var: "d", expr: {call: "root"}}]}
//			dos:  {kind: "navigate", input: "doc", var: "x", expr: {call: "descendant-or-self", args: [{var: "d"}]}}
//			kids: {kind: "navigate", input: "dos", var: "y", expr: {call: "child", args: [{var: "x"}, {const: "b"}]}}
//			out:  {kind: "distribute-result", input: "kids", exprs: [{var: "y"}]}
//		}
//	}
//
// Expressions are {var: name}, {call: fn, args: [...], annotations: {...}},
// {const: value} or {ext: expr, pragmas: [{name, content}]}. Variables are
// named in the file and numbered in order of first mention. Operators may
// be declared in any order; inputs refer to them by name.
//
// Compilation only checks the file's shape. Plan invariants such as
// acyclicity or producer placement are left to plan.Validate so that broken
// plans can still be loaded and explained.
package planspec
