package plan

import (
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"

	"github.com/roach88/xqopt/internal/ir"
)

func newGoldie(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func TestExplain_Chain(t *testing.T) {
	c := buildChain()
	newGoldie(t).Assert(t, "explain_chain", []byte(Explain(c.p)))
}

func TestExplain_SharedOperator(t *testing.T) {
	p := New()
	src := p.AddEmptySource()
	v0 := p.NewVariable()
	doc := p.AddAssign(src, []Variable{v0}, []ExprRef{p.Call(FnRoot)})
	v1 := p.NewVariable()
	dos := p.AddNavigate(doc, v1, p.Call(FnDescendantOrSelf, p.Var(v0)))
	v2 := p.NewVariable()
	left := p.AddNavigate(dos, v2, p.Call(FnChild, p.Var(v1), p.Const(ir.String("b"))))
	v3 := p.NewVariable()
	right := p.AddNavigate(dos, v3, p.Call(FnAttribute, p.Var(v1), p.Const(ir.String("id"))))
	join := p.AddJoin(left, right, p.Const(ir.Bool(true)))
	p.SetRoot(p.AddDistribute(join, p.Var(v2), p.Var(v3)))

	newGoldie(t).Assert(t, "explain_shared", []byte(Explain(p)))
}

func TestExplain_Empty(t *testing.T) {
	assert.Equal(t, "(empty plan)\n", Explain(New()))
}

func TestExplain_IgnoresArenaLayout(t *testing.T) {
	c := buildChain()
	assert.Equal(t, Explain(c.p), Explain(c.p.Compact()))
}

func TestFormatExpr_Constants(t *testing.T) {
	p := New()
	assert.Equal(t, `"b"`, FormatExpr(p, p.Const(ir.String("b"))))
	assert.Equal(t, "()", FormatExpr(p, p.Const(ir.Null{})))
	assert.Equal(t, "true()", FormatExpr(p, p.Const(ir.Bool(true))))
	assert.Equal(t, "sequence()", FormatExpr(p, p.Call(FnSequence)))
}
