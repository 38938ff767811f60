package plan

import (
	"github.com/cockroachdb/errors"
)

// CopyExpr deep-clones the expression under ref into fresh slots and
// returns the new root.
//
// References to variables in substitution are replaced by a fresh copy of
// the substitute expression. References to any other variable keep their
// Variable identity: they refer to bindings established elsewhere in the
// plan. Annotations and pragmas are copied, never shared. A sub-expression
// shared inside the original is shared in the clone too.
//
// The walk uses an explicit stack and fails on an expression cycle.
func (p *Plan) CopyExpr(ref ExprRef, substitution map[Variable]ExprRef) (ExprRef, error) {
	memo := make(map[ExprRef]ExprRef)
	if err := p.copyInto(ref, substitution, memo); err != nil {
		return NoExpr, err
	}
	return memo[ref], nil
}

func (p *Plan) copyInto(root ExprRef, substitution map[Variable]ExprRef, memo map[ExprRef]ExprRef) error {
	type frame struct {
		ref      ExprRef
		expanded bool
	}
	inProgress := make(map[ExprRef]bool)
	stack := []frame{{ref: root}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, done := memo[f.ref]; done {
			continue
		}
		if !p.ValidExpr(f.ref) {
			return errors.AssertionFailedf("copy: dangling expression ref %s", f.ref)
		}
		e := p.exprs[f.ref]

		if vr, ok := e.(VariableRef); ok {
			if sub, ok := substitution[vr.Var]; ok {
				// The substitute is copied verbatim, without substitution.
				subMemo := make(map[ExprRef]ExprRef)
				if err := p.copyInto(sub, nil, subMemo); err != nil {
					return errors.Wrapf(err, "copy substitute for %s", vr.Var)
				}
				memo[f.ref] = subMemo[sub]
				continue
			}
		}

		kids := exprChildren(e)
		if !f.expanded && len(kids) > 0 {
			if inProgress[f.ref] {
				return errors.AssertionFailedf("copy: expression cycle through %s", f.ref)
			}
			inProgress[f.ref] = true
			stack = append(stack, frame{ref: f.ref, expanded: true})
			for i := len(kids) - 1; i >= 0; i-- {
				if _, done := memo[kids[i]]; !done {
					stack = append(stack, frame{ref: kids[i]})
				}
			}
			continue
		}
		delete(inProgress, f.ref)

		var clone Expr
		switch x := e.(type) {
		case VariableRef, Constant:
			clone = x
		case FunctionCall:
			args := make([]ExprRef, len(x.Args))
			for i, a := range x.Args {
				args[i] = memo[a]
			}
			clone = FunctionCall{Fn: x.Fn, Args: args, Annotations: x.Annotations}
		case Extension:
			clone = Extension{Input: memo[x.Input], Pragmas: x.Pragmas}
		default:
			panic(unknownExpr(e))
		}
		memo[f.ref] = p.AddExpr(clone)
	}
	return nil
}
