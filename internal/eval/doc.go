// Package eval is a reference interpreter for logical plans over xdm
// documents.
//
// It evaluates operators as streams of tuples (variable -> sequence) the way
// the logical algebra defines them, with no attention to cost. Tests use it
// to check that a rewritten plan returns the same items as the original.
package eval
