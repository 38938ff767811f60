package rules

import (
	"github.com/roach88/xqopt/internal/ir"
	"github.com/roach88/xqopt/internal/plan"
	"github.com/roach88/xqopt/internal/rewrite"
	"github.com/roach88/xqopt/internal/testutil"
)

func newTestDriver(rs ...rewrite.Rule) *rewrite.Driver {
	return rewrite.New(rs,
		rewrite.WithLogger(testutil.DiscardLogger()),
		rewrite.WithValidation(true),
		rewrite.WithRunIDGenerator(rewrite.NewFixedGenerator("run-1", "run-2")),
	)
}

// applyOnce runs both hooks of rule on every reachable operator, inputs
// before consumers, and reports whether any hook fired.
func applyOnce(rule rewrite.Rule, p *plan.Plan) (bool, error) {
	ctx := rewrite.NewContext(p, testutil.DiscardLogger())
	reachable := plan.Reachable(p)
	changed := false
	for i := len(reachable) - 1; i >= 0; i-- {
		for _, hook := range []func(plan.OpRef, *rewrite.Context) (bool, error){rule.RewritePre, rule.RewritePost} {
			fired, err := hook(reachable[i], ctx)
			if err != nil {
				return changed, err
			}
			if fired {
				ctx.Invalidate()
				changed = true
			}
		}
	}
	return changed, nil
}

// chain is the descendant-or-self/child shape:
//
//	distribute-result $3
//	  navigate $3 <- child($2, "b")
//	    navigate $2 <- descendant-or-self($1)
//	      assign $1 <- root()
//	        empty-tuple-source
type chain struct {
	p              *plan.Plan
	doc, dos, kids plan.OpRef
	out            plan.OpRef
	v0, v1, v3     plan.Variable
	childCall      plan.ExprRef
}

func buildChain() chain {
	p := plan.New()
	c := chain{p: p}
	c.doc, c.v0 = testutil.RootAssign(p)
	c.v1 = p.NewVariable()
	c.dos = p.AddNavigate(c.doc, c.v1, p.Call(plan.FnDescendantOrSelf, p.Var(c.v0)))
	c.v3 = p.NewVariable()
	c.childCall = p.Call(plan.FnChild, p.Var(c.v1), p.Const(ir.String("b")))
	c.kids = p.AddNavigate(c.dos, c.v3, c.childCall)
	c.out = p.AddDistribute(c.kids, p.Var(c.v3))
	p.SetRoot(c.out)
	return c
}
