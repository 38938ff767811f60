package rules

import (
	"slices"

	"github.com/cockroachdb/errors"

	"github.com/roach88/xqopt/internal/ir"
	"github.com/roach88/xqopt/internal/plan"
	"github.com/roach88/xqopt/internal/rewrite"
	"github.com/roach88/xqopt/internal/toolbox"
)

// FusionSpec names the axes of one fusion rule.
type FusionSpec struct {
	// Name is the rule name, "inner/outer" by convention.
	Name string
	// Outer is the axis call matched in the visited navigate.
	Outer plan.FunctionID
	// Inner is the axis bound by the producing navigate.
	Inner plan.FunctionID
	// Fused replaces Outer after the rewrite.
	Fused plan.FunctionID
}

// DescendantOrSelfChild fuses child($v, test) over $v := descendant-or-self($x)
// into descendant-or-self($x, test).
var DescendantOrSelfChild = FusionSpec{
	Name:  "descendant-or-self/child",
	Outer: plan.FnChild,
	Inner: plan.FnDescendantOrSelf,
	Fused: plan.FnDescendantOrSelf,
}

// AxisFusion is a rewrite rule built from a FusionSpec. It only acts in
// the post-order hook, after the steps below the visited operator are in
// their final form for the pass.
type AxisFusion struct {
	spec FusionSpec
}

var _ rewrite.Rule = (*AxisFusion)(nil)

// NewAxisFusion returns the rule for spec.
func NewAxisFusion(spec FusionSpec) *AxisFusion {
	return &AxisFusion{spec: spec}
}

// Name implements rewrite.Rule.
func (r *AxisFusion) Name() string { return r.spec.Name }

// Spec returns the axes of the rule.
func (r *AxisFusion) Spec() FusionSpec { return r.spec }

// RewritePre implements rewrite.Rule. Fusion never fires top-down.
func (r *AxisFusion) RewritePre(plan.OpRef, *rewrite.Context) (bool, error) {
	return false, nil
}

// match is a successful precondition check.
type match struct {
	outer    plan.ExprRef      // outer axis call in the visited source
	call     plan.FunctionCall // its content
	producer plan.OpRef        // navigate binding the outer call's first argument
	inner    plan.FunctionCall // the producer's axis call
}

// RewritePost implements rewrite.Rule.
func (r *AxisFusion) RewritePost(ref plan.OpRef, ctx *rewrite.Context) (bool, error) {
	m, ok, err := r.check(ref, ctx)
	if err != nil || !ok {
		return false, err
	}
	p := ctx.Plan()

	source, err := p.CopyExpr(m.inner.Args[0], nil)
	if err != nil {
		return false, errors.Wrapf(err, "%s: copy inner source", r.spec.Name)
	}
	args := slices.Clone(m.call.Args)
	args[0] = source
	p.ReplaceExpr(m.outer, plan.FunctionCall{Fn: r.spec.Fused, Args: args, Annotations: m.call.Annotations})
	p.SetInput(ref, 0, p.Inputs(m.producer)[0])

	ctx.Logger().Debug("axis steps fused",
		"rule", r.spec.Name,
		"op", int(ref),
		"bypassed", int(m.producer),
	)
	return true, nil
}

// check runs the preconditions in order and stops at the first failure.
func (r *AxisFusion) check(ref plan.OpRef, ctx *rewrite.Context) (match, bool, error) {
	var m match
	p := ctx.Plan()

	// 1. The visited operator navigates.
	nav, ok := p.Op(ref).(plan.Navigate)
	if !ok {
		return m, false, nil
	}

	// 2. Its source contains a call to the outer axis.
	m.outer, ok = toolbox.FindFirstFunctionCall(p, nav.Source, r.spec.Outer)
	if !ok {
		return m, false, nil
	}
	m.call = p.Expr(m.outer).(plan.FunctionCall)

	// 3. The call's first argument is a plain variable reference.
	if len(m.call.Args) == 0 {
		return m, false, nil
	}
	vr, ok := p.Expr(m.call.Args[0]).(plan.VariableRef)
	if !ok {
		return m, false, nil
	}

	// 4. The variable is bound by the navigate directly below. A missing
	// producer means the plan is broken.
	in := nav.Inputs
	if len(in) != 1 {
		return m, false, nil
	}
	m.producer, ok = toolbox.FindProducer(p, in[0], vr.Var)
	if !ok {
		_, err := toolbox.ProducerOf(p, in[0], vr.Var)
		return m, false, errors.Wrapf(err, "%s at %s", r.spec.Name, ref)
	}
	if m.producer != in[0] {
		return m, false, nil
	}
	if _, ok := p.Op(m.producer).(plan.Navigate); !ok {
		return m, false, nil
	}

	// 5. The producer binds an unfiltered call to the inner axis.
	bound, ok := toolbox.ExpressionFor(p, m.producer, vr.Var)
	if !ok {
		return m, false, nil
	}
	m.inner, ok = p.Expr(bound).(plan.FunctionCall)
	if !ok || m.inner.Fn != r.spec.Inner || !unfiltered(p, m.inner) {
		return m, false, nil
	}

	// 6. The visited source is the only use of the variable on the path to
	// the root. Consumers in other branches keep the producer.
	if plan.VarOccurrences(p, ref)[vr.Var] != 1 {
		return m, false, nil
	}
	for _, user := range ctx.VarUses(vr.Var) {
		if user != ref && ctx.IsAncestor(user, ref) {
			return m, false, nil
		}
	}
	return m, true, nil
}

// unfiltered reports whether an axis call selects every node on its axis:
// it has a source and either no node test or node().
func unfiltered(p *plan.Plan, call plan.FunctionCall) bool {
	switch len(call.Args) {
	case 1:
		return true
	case 2:
		c, ok := p.Expr(call.Args[1]).(plan.Constant)
		return ok && ir.Equal(c.Value, ir.String(AnyNode))
	default:
		return false
	}
}

// AnyNode is the node test that matches every node.
const AnyNode = "node()"
