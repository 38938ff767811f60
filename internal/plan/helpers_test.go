package plan

import (
	"github.com/roach88/xqopt/internal/ir"
)

// chain builds the descendant-or-self/child navigation chain:
//
//	distribute-result $3
//	  navigate $3 <- child($2, "b")
//	    navigate $2 <- descendant-or-self($1)
//	      assign $1 <- root()
//	        empty-tuple-source
type chain struct {
	p                    *Plan
	src, doc, dos, kids  OpRef
	out                  OpRef
	v0, v1, v3           Variable
	childCall, childArg0 ExprRef
}

func buildChain() chain {
	p := New()
	c := chain{p: p}
	c.src = p.AddEmptySource()
	c.v0 = p.NewVariable()
	c.doc = p.AddAssign(c.src, []Variable{c.v0}, []ExprRef{p.Call(FnRoot)})
	c.v1 = p.NewVariable()
	c.dos = p.AddNavigate(c.doc, c.v1, p.Call(FnDescendantOrSelf, p.Var(c.v0)))
	c.v3 = p.NewVariable()
	c.childArg0 = p.Var(c.v1)
	c.childCall = p.Call(FnChild, c.childArg0, p.Const(ir.String("b")))
	c.kids = p.AddNavigate(c.dos, c.v3, c.childCall)
	c.out = p.AddDistribute(c.kids, p.Var(c.v3))
	p.SetRoot(c.out)
	return c
}
