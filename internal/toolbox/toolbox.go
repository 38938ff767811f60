package toolbox

import (
	"github.com/cockroachdb/errors"

	"github.com/roach88/xqopt/internal/plan"
)

// ErrNoProducer reports a variable reference with no producing operator
// below it. It always signals an internally inconsistent plan.
var ErrNoProducer = errors.New("no producer for variable")

// FindFirstFunctionCall returns the first call to fn in a pre-order,
// left-to-right walk of the expression under ref. The walk descends only
// through function call arguments; variables, constants and extension
// expressions are leaves.
func FindFirstFunctionCall(p *plan.Plan, ref plan.ExprRef, fn plan.FunctionID) (plan.ExprRef, bool) {
	seen := make(map[plan.ExprRef]bool)
	stack := []plan.ExprRef{ref}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[cur] || !p.ValidExpr(cur) {
			continue
		}
		seen[cur] = true
		call, ok := p.Expr(cur).(plan.FunctionCall)
		if !ok {
			continue
		}
		if call.Fn == fn {
			return cur, true
		}
		for i := len(call.Args) - 1; i >= 0; i-- {
			stack = append(stack, call.Args[i])
		}
	}
	return plan.NoExpr, false
}

// FindProducer returns the first operator binding v, starting at start and
// following input edges depth-first in input order. Each operator is
// checked once.
func FindProducer(p *plan.Plan, start plan.OpRef, v plan.Variable) (plan.OpRef, bool) {
	for _, ref := range plan.ReachableFrom(p, start) {
		if plan.Produces(p.Op(ref), v) {
			return ref, true
		}
	}
	return plan.NoOp, false
}

// ProducerOf is FindProducer for callers that hold a reference to v: a
// missing producer is an internal compiler error wrapping ErrNoProducer.
func ProducerOf(p *plan.Plan, start plan.OpRef, v plan.Variable) (plan.OpRef, error) {
	if ref, ok := FindProducer(p, start, v); ok {
		return ref, nil
	}
	return plan.NoOp, errors.WithAssertionFailure(
		errors.Wrapf(ErrNoProducer, "%s below %s", v, start))
}

// ExpressionFor returns the expression op binds to v.
//
// Navigate answers its source expression. Assign and Aggregate answer the
// expression at v's position; for Aggregate that is the aggregate call
// itself. Every other kind binds no expression and answers false.
func ExpressionFor(p *plan.Plan, op plan.OpRef, v plan.Variable) (plan.ExprRef, bool) {
	switch o := p.Op(op).(type) {
	case plan.Navigate:
		if o.Var == v {
			return o.Source, true
		}
	case plan.Assign:
		return exprAt(o.Vars, o.Exprs, v)
	case plan.Aggregate:
		return exprAt(o.Vars, o.Exprs, v)
	}
	return plan.NoExpr, false
}

func exprAt(vars []plan.Variable, exprs []plan.ExprRef, v plan.Variable) (plan.ExprRef, bool) {
	for i, bound := range vars {
		if bound == v && i < len(exprs) {
			return exprs[i], true
		}
	}
	return plan.NoExpr, false
}
