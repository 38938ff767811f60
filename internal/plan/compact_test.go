package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlan_Compact_DropsOrphans(t *testing.T) {
	c := buildChain()
	// Bypass the descendant-or-self step; it becomes unreachable.
	c.p.ReplaceExpr(c.childArg0, VariableRef{Var: c.v0})
	c.p.SetInput(c.kids, 0, c.doc)
	require.NoError(t, c.p.Validate())

	out := c.p.Compact()

	assert.Equal(t, 4, out.NumOps())
	assert.Equal(t, OpRef(0), out.Root())
	assert.Equal(t, c.p.LastVariable(), out.LastVariable())
	assert.NoError(t, out.Validate())
	assert.Equal(t, Explain(c.p), Explain(out))
	// root(), $1, child(...), "b", $3
	assert.Equal(t, 5, out.NumExprs())
}

func TestPlan_Compact_PreservesSharing(t *testing.T) {
	p := New()
	src := p.AddEmptySource()
	v := p.NewVariable()
	doc := p.AddAssign(src, []Variable{v}, []ExprRef{p.Call(FnRoot)})
	join := p.AddJoin(doc, doc, p.Call(FnRoot))
	p.SetRoot(join)

	out := p.Compact()

	in := out.Inputs(out.Root())
	require.Len(t, in, 2)
	assert.Equal(t, in[0], in[1])
	assert.Equal(t, 3, out.NumOps())
}

func TestPlan_Compact_Empty(t *testing.T) {
	out := New().Compact()
	assert.Equal(t, NoOp, out.Root())
	assert.Equal(t, 0, out.NumOps())
}

func TestPlan_Compact_Independent(t *testing.T) {
	c := buildChain()
	out := c.p.Compact()

	c.p.ReplaceExpr(c.childArg0, VariableRef{Var: c.v0})
	assert.Contains(t, Explain(out), "child($2")
}
