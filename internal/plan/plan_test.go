package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/xqopt/internal/ir"
)

func TestPlan_NewVariable(t *testing.T) {
	p := New()
	v1 := p.NewVariable()
	v2 := p.NewVariable()

	assert.NotEqual(t, NoVariable, v1)
	assert.NotEqual(t, v1, v2)
	assert.Equal(t, v2, p.LastVariable())
	assert.Equal(t, "$1", v1.String())
}

func TestPlan_ReplaceExpr_VisibleToAllHolders(t *testing.T) {
	p := New()
	shared := p.Const(ir.String("b"))
	left := p.Call(FnChild, p.Var(1), shared)
	right := p.Call(FnDescendant, p.Var(1), shared)

	p.ReplaceExpr(shared, Constant{Value: ir.String("c")})

	assert.Equal(t, `child($1, "c")`, FormatExpr(p, left))
	assert.Equal(t, `descendant($1, "c")`, FormatExpr(p, right))
}

func TestPlan_SetInput_EdgeLocal(t *testing.T) {
	p := New()
	src := p.AddEmptySource()
	v := p.NewVariable()
	shared := p.AddAssign(src, []Variable{v}, []ExprRef{p.Call(FnRoot)})
	a := p.AddSelect(shared, p.Call(FnExists, p.Var(v)))
	b := p.AddSelect(shared, p.Call(FnExists, p.Var(v)))

	p.SetInput(a, 0, src)

	assert.Equal(t, []OpRef{src}, p.Inputs(a))
	assert.Equal(t, []OpRef{shared}, p.Inputs(b), "other parent keeps the shared input")
}

func TestPlan_SetInput_OutOfRangePanics(t *testing.T) {
	p := New()
	src := p.AddEmptySource()
	assert.Panics(t, func() { p.SetInput(src, 0, src) })
}

func TestPlan_AddOp_CopiesSlices(t *testing.T) {
	p := New()
	src := p.AddEmptySource()
	vars := []Variable{p.NewVariable()}
	exprs := []ExprRef{p.Call(FnRoot)}
	ref := p.AddAssign(src, vars, exprs)

	vars[0] = 99
	exprs[0] = 42

	op := p.Op(ref).(Assign)
	assert.Equal(t, Variable(1), op.Vars[0])
	assert.Equal(t, ExprRef(0), op.Exprs[0])
}

func TestPlan_Clone_Independent(t *testing.T) {
	c := buildChain()
	clone := c.p.Clone()

	c.p.ReplaceExpr(c.childArg0, VariableRef{Var: c.v0})
	c.p.SetInput(c.kids, 0, c.doc)

	assert.Equal(t, VariableRef{Var: c.v1}, clone.Expr(c.childArg0))
	assert.Equal(t, []OpRef{c.dos}, clone.Inputs(c.kids))
	assert.Equal(t, c.p.Root(), clone.Root())
}

func TestPlan_OpOutOfRangePanics(t *testing.T) {
	p := New()
	assert.Panics(t, func() { p.Op(0) })
	assert.Panics(t, func() { p.Expr(-1) })
}

func TestPlan_InstanceOf(t *testing.T) {
	p := New()
	ref := p.InstanceOf(p.Var(1), "element(b)")

	call, ok := p.Expr(ref).(FunctionCall)
	require.True(t, ok)
	assert.Equal(t, FnInstanceOf, call.Fn)
	assert.True(t, IsCastFunction(call.Fn))
	assert.Equal(t, `cast:instance-of($1, "element(b)")`, FormatExpr(p, ref))
}

func TestPlan_Extend(t *testing.T) {
	p := New()
	ref := p.Extend(p.Var(2), Pragma{Name: "saxon:stream", Content: "yes"})
	assert.Equal(t, `(# saxon:stream yes #) { $2 }`, FormatExpr(p, ref))
}

func TestLookupFunction(t *testing.T) {
	info, ok := LookupFunction(FnDescendantOrSelf)
	require.True(t, ok)
	assert.True(t, info.Axis)
	assert.True(t, IsAxis(FnChild))
	assert.False(t, IsAxis(FnRoot))
	assert.False(t, IsCastFunction(FnChild))

	_, ok = LookupFunction("no-such-function")
	assert.False(t, ok)
}

func TestProducedVars(t *testing.T) {
	c := buildChain()

	assert.Empty(t, ProducedVars(c.p.Op(c.src)))
	assert.Empty(t, ProducedVars(DataSourceScan{Source: "books"}))
	assert.Equal(t, []Variable{c.v0}, ProducedVars(c.p.Op(c.doc)))
	assert.Equal(t, []Variable{c.v1}, ProducedVars(c.p.Op(c.dos)))
	assert.True(t, Produces(c.p.Op(c.kids), c.v3))
	assert.Empty(t, ProducedVars(c.p.Op(c.out)))
}

func TestReachable_PreOrder(t *testing.T) {
	c := buildChain()
	assert.Equal(t, []OpRef{c.out, c.kids, c.dos, c.doc, c.src}, Reachable(c.p))
}

func TestReaches(t *testing.T) {
	c := buildChain()
	assert.True(t, Reaches(c.p, c.out, c.src))
	assert.True(t, Reaches(c.p, c.kids, c.kids))
	assert.False(t, Reaches(c.p, c.src, c.out))
}

func TestVarOccurrences_CountsPaths(t *testing.T) {
	p := New()
	src := p.AddEmptySource()
	v := p.NewVariable()
	doc := p.AddAssign(src, []Variable{v}, []ExprRef{p.Call(FnRoot)})
	shared := p.Var(v)
	sel := p.AddSelect(doc, p.Call(FnSequence, shared, shared, p.Var(v)))

	assert.Equal(t, 3, VarOccurrences(p, sel)[v])
}

func TestUses(t *testing.T) {
	c := buildChain()
	assert.Equal(t, []OpRef{c.kids}, Uses(c.p, c.v1))
	assert.Equal(t, []OpRef{c.out}, Uses(c.p, c.v3))
}

func TestUses_CountsProjection(t *testing.T) {
	c := buildChain()
	proj := c.p.AddProject(c.kids, c.v1, c.v3)
	c.p.SetInput(c.out, 0, proj)

	assert.Equal(t, []OpRef{proj, c.kids}, Uses(c.p, c.v1))
	assert.Equal(t, []OpRef{c.out, proj}, Uses(c.p, c.v3))
}
