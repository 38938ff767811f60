package plan

import (
	"slices"

	"github.com/roach88/xqopt/internal/ir"
)

// Expr is a logical expression.
//
// This is a sealed interface: only VariableRef, FunctionCall, Constant and
// Extension implement it. Children are held as ExprRef so a rule can
// replace one argument slot without rebuilding the enclosing call.
type Expr interface {
	exprNode()
}

// VariableRef reads a variable bound by an upstream operator.
type VariableRef struct {
	Var Variable
}

func (VariableRef) exprNode() {}

// FunctionCall applies a function to argument slots.
//
// Args and Annotations must not be modified after the call is stored in a
// plan. Build a new FunctionCall and ReplaceExpr instead.
type FunctionCall struct {
	Fn          FunctionID
	Args        []ExprRef
	Annotations map[string]ir.Value
}

func (FunctionCall) exprNode() {}

// Arg returns argument i, or NoExpr when out of range.
func (c FunctionCall) Arg(i int) ExprRef {
	if i < 0 || i >= len(c.Args) {
		return NoExpr
	}
	return c.Args[i]
}

// Constant is a literal value.
type Constant struct {
	Value ir.Value
}

func (Constant) exprNode() {}

// Pragma is an extension annotation such as (# saxon:stream #).
type Pragma struct {
	Name    string
	Content string
}

// Extension wraps an expression with implementation-defined pragmas.
// Evaluation ignores the pragmas.
type Extension struct {
	Input   ExprRef
	Pragmas []Pragma
}

func (Extension) exprNode() {}

// exprChildren returns the child slots of e in argument order.
func exprChildren(e Expr) []ExprRef {
	switch x := e.(type) {
	case VariableRef, Constant:
		return nil
	case FunctionCall:
		return x.Args
	case Extension:
		return []ExprRef{x.Input}
	default:
		panic(unknownExpr(e))
	}
}

// cloneExpr returns a copy of e whose slices and maps are not shared with e.
func cloneExpr(e Expr) Expr {
	switch x := e.(type) {
	case VariableRef:
		return x
	case Constant:
		return Constant{Value: ir.Clone(x.Value)}
	case FunctionCall:
		return FunctionCall{
			Fn:          x.Fn,
			Args:        slices.Clone(x.Args),
			Annotations: cloneAnnotations(x.Annotations),
		}
	case Extension:
		return Extension{Input: x.Input, Pragmas: slices.Clone(x.Pragmas)}
	default:
		panic(unknownExpr(e))
	}
}

func cloneAnnotations(a map[string]ir.Value) map[string]ir.Value {
	if a == nil {
		return nil
	}
	out := make(map[string]ir.Value, len(a))
	for k, v := range a {
		out[k] = ir.Clone(v)
	}
	return out
}
