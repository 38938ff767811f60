package testutil

import (
	"github.com/roach88/xqopt/internal/ir"
	"github.com/roach88/xqopt/internal/plan"
	"github.com/roach88/xqopt/internal/xdm"
)

// SampleDocument is
//
//	<a id="1"><b><b/>x</b><c><b/></c></a>
func SampleDocument() *xdm.Document {
	return xdm.Build(
		xdm.Spec{Name: "a", Attrs: map[string]string{"id": "1"}, Children: []xdm.Spec{
			xdm.E("b", xdm.E("b"), xdm.T("x")),
			xdm.E("c", xdm.E("b")),
		}},
	)
}

// RootAssign adds "assign $v <- root()" over an empty tuple source.
func RootAssign(p *plan.Plan) (plan.OpRef, plan.Variable) {
	v := p.NewVariable()
	return p.AddAssign(p.AddEmptySource(), []plan.Variable{v}, []plan.ExprRef{p.Call(plan.FnRoot)}), v
}

// Step is one navigation step. An empty Test leaves the axis call with a
// single argument. Project follows the navigate with a projection keeping
// every variable bound so far, so earlier steps stay in use above it.
type Step struct {
	Axis    plan.FunctionID
	Test    string
	Project bool
}

// AddStep navigates from the item bound to cur and returns the new
// operator and the variable it binds.
func AddStep(p *plan.Plan, input plan.OpRef, cur plan.Variable, s Step) (plan.OpRef, plan.Variable) {
	args := []plan.ExprRef{p.Var(cur)}
	if s.Test != "" {
		args = append(args, p.Const(ir.String(s.Test)))
	}
	next := p.NewVariable()
	return p.AddNavigate(input, next, p.Call(s.Axis, args...)), next
}

// PathPlan builds root() followed by steps, one navigate per step, and
// distributes the last step's items:
//
//	distribute-result $n
//	  navigate $n <- ...
//	    ...
//	      assign $1 <- root()
//	        empty-tuple-source
func PathPlan(steps ...Step) *plan.Plan {
	p := plan.New()
	op, cur := addSteps(p, steps)
	p.SetRoot(p.AddDistribute(op, p.Var(cur)))
	return p
}

// NormalizedPathPlan is PathPlan with the result collected and put into
// document order without duplicates:
//
//	distribute-result $s
//	  assign $s <- sort-distinct-nodes-asc($agg)
//	    aggregate $agg <- sequence($n)
//	      navigate $n <- ...
func NormalizedPathPlan(steps ...Step) *plan.Plan {
	p := plan.New()
	op, cur := addSteps(p, steps)
	agg := p.NewVariable()
	op = p.AddAggregate(op, []plan.Variable{agg}, []plan.ExprRef{p.Call(plan.FnSequence, p.Var(cur))})
	out := p.NewVariable()
	op = p.AddAssign(op, []plan.Variable{out}, []plan.ExprRef{p.Call(plan.FnSortDistinctNodesAsc, p.Var(agg))})
	p.SetRoot(p.AddDistribute(op, p.Var(out)))
	return p
}

func addSteps(p *plan.Plan, steps []Step) (plan.OpRef, plan.Variable) {
	op, cur := RootAssign(p)
	bound := []plan.Variable{cur}
	for _, s := range steps {
		op, cur = AddStep(p, op, cur, s)
		bound = append(bound, cur)
		if s.Project {
			op = p.AddProject(op, bound...)
		}
	}
	return op, cur
}
