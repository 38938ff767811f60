package planspec

import (
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/xqopt/internal/ir"
	"github.com/roach88/xqopt/internal/plan"
)

func TestLoadFile_DescendantChild(t *testing.T) {
	spec, err := LoadFile(filepath.Join("testdata", "descendant_child.cue"))
	require.NoError(t, err)

	assert.Equal(t, "descendant_child", spec.Name)
	require.NoError(t, spec.Plan.Validate())
	assert.Equal(t, `distribute-result $3
  navigate $3 <- child($2, "b")
    navigate $2 <- descendant-or-self($1)
      assign $1 <- root()
        empty-tuple-source
`, plan.Explain(spec.Plan))
	assert.Equal(t, spec.Ops["out"], spec.Plan.Root())
	assert.Equal(t, map[string]plan.Variable{"d": 1, "x": 2, "y": 3}, spec.Vars)

	name, ok := spec.OpName(spec.Plan.Inputs(spec.Plan.Root())[0])
	assert.True(t, ok)
	assert.Equal(t, "kids", name)
}

func TestLoadFile_ForwardReferences(t *testing.T) {
	spec, err := LoadFile(filepath.Join("testdata", "shared_producer.cue"))
	require.NoError(t, err)
	assert.Equal(t, "shared-producer", spec.Name)
	require.NoError(t, spec.Plan.Validate())

	want := plan.New()
	src := want.AddEmptySource()
	d := want.NewVariable()
	doc := want.AddAssign(src, []plan.Variable{d}, []plan.ExprRef{want.Call(plan.FnRoot)})
	x := want.NewVariable()
	dos := want.AddNavigate(doc, x, want.Call(plan.FnDescendantOrSelf, want.Var(d)))
	b, id := want.NewVariable(), want.NewVariable()
	kids := want.AddNavigate(dos, b, want.Call(plan.FnChild, want.Var(x), want.Const(ir.String("b"))))
	attrs := want.AddNavigate(dos, id, want.Call(plan.FnAttribute, want.Var(x), want.Const(ir.String("id"))))
	join := want.AddJoin(kids, attrs, want.Const(ir.Bool(true)))
	want.SetRoot(want.AddDistribute(join, want.Var(b), want.Var(id)))

	wantFP, err := plan.Fingerprint(want)
	require.NoError(t, err)
	gotFP, err := plan.Fingerprint(spec.Plan)
	require.NoError(t, err)
	assert.Equal(t, wantFP, gotFP)
}

func TestLoad_Directory(t *testing.T) {
	spec, err := Load(filepath.Join("testdata", "pkgplan"))
	require.NoError(t, err)
	assert.Equal(t, "pkgplan", spec.Name)
	assert.Equal(t, `distribute-result $1
  assign $1 <- root()
    empty-tuple-source
`, plan.Explain(spec.Plan))
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join("testdata", "nope.cue"))
	assert.Error(t, err)
}

func TestCompileString_Expressions(t *testing.T) {
	spec, err := CompileString(`
plan: {
	root: "out"
	ops: {
		src: {kind: "empty-tuple-source"}
		out: {kind: "distribute-result", input: "src", exprs: [
			{const: [1, "two", null, {k: false}]},
			{call: "cast:instance-of", args: [{const: 1}, {const: "xs:integer"}], annotations: {ordered: true}},
			{ext: {call: "sequence"}, pragmas: [{name: "saxon:stream"}, {name: "hint", content: "x"}]},
		]}
	}
}`, "exprs.cue")
	require.NoError(t, err)

	exprs := spec.Plan.Op(spec.Plan.Root()).(plan.DistributeResult).Exprs
	require.Len(t, exprs, 3)

	assert.Equal(t, plan.Constant{Value: ir.Seq{ir.Int(1), ir.String("two"), ir.Null{}, ir.Object{"k": ir.Bool(false)}}},
		spec.Plan.Expr(exprs[0]))

	call := spec.Plan.Expr(exprs[1]).(plan.FunctionCall)
	assert.Equal(t, plan.FnInstanceOf, call.Fn)
	assert.Len(t, call.Args, 2)
	assert.Equal(t, map[string]ir.Value{"ordered": ir.Bool(true)}, call.Annotations)

	ext := spec.Plan.Expr(exprs[2]).(plan.Extension)
	assert.Equal(t, []plan.Pragma{{Name: "saxon:stream"}, {Name: "hint", Content: "x"}}, ext.Pragmas)
	assert.Equal(t, plan.FunctionCall{Fn: plan.FnSequence}, spec.Plan.Expr(ext.Input))
}

func TestCompileString_Errors(t *testing.T) {
	wrap := func(ops string) string {
		return "plan: {\n\troot: \"out\"\n\tops: {\n" + ops + "\n\t}\n}\n"
	}
	src := `src: {kind: "empty-tuple-source"}`

	tests := []struct {
		name      string
		source    string
		wantField string
		wantMsg   string
	}{
		{
			name:      "missing plan",
			source:    `other: 1`,
			wantField: "plan",
			wantMsg:   "plan is required",
		},
		{
			name:      "unknown input",
			source:    wrap(`out: {kind: "distribute-result", input: "nowhere", exprs: []}`),
			wantField: "ops.out.input",
			wantMsg:   `unknown operator "nowhere"`,
		},
		{
			name:      "unknown root",
			source:    "plan: {root: \"missing\", ops: {" + src + "}}",
			wantField: "root",
			wantMsg:   `unknown operator "missing"`,
		},
		{
			name:      "unknown kind",
			source:    wrap(`out: {kind: "sort"}`),
			wantField: "cue",
		},
		{
			name:      "unknown op field",
			source:    wrap(src + "\nout: {kind: \"distribute-result\", input: \"src\", exprs: [], colour: \"red\"}"),
			wantField: "cue",
		},
		{
			name:      "navigate without var",
			source:    wrap(src + "\nout: {kind: \"navigate\", input: \"src\", expr: {call: \"root\"}}"),
			wantField: "ops.out.var",
			wantMsg:   "var is required",
		},
		{
			name:      "two expression forms",
			source:    wrap(src + "\nout: {kind: \"distribute-result\", input: \"src\", exprs: [{var: \"a\", const: 1}]}"),
			wantField: "ops.out.exprs[0]",
			wantMsg:   "expression has both var and const",
		},
		{
			name:      "empty expression",
			source:    wrap(src + "\nout: {kind: \"distribute-result\", input: \"src\", exprs: [{}]}"),
			wantField: "ops.out.exprs[0]",
			wantMsg:   "expression needs one of var, call, const or ext",
		},
		{
			name:      "float constant",
			source:    wrap(src + "\nout: {kind: \"distribute-result\", input: \"src\", exprs: [{const: 1.5}]}"),
			wantField: "ops.out.exprs[0].const",
			wantMsg:   "unsupported constant kind",
		},
		{
			name:      "axis arity",
			source:    wrap(src + "\nout: {kind: \"distribute-result\", input: \"src\", exprs: [{call: \"child\"}]}"),
			wantField: "ops.out.exprs[0]",
			wantMsg:   "child takes 1 to 2 arguments, got 0",
		},
		{
			name:      "join arity",
			source:    wrap(src + "\nout: {kind: \"join\", inputs: [\"src\"], cond: {const: true}}"),
			wantField: "ops.out.inputs",
			wantMsg:   "join needs 2 inputs, got 1",
		},
		{
			name:      "empty assign",
			source:    wrap(src + "\nout: {kind: \"assign\", input: \"src\", bind: []}"),
			wantField: "ops.out.bind",
			wantMsg:   "at least one binding is required",
		},
		{
			name:      "no operators",
			source:    `plan: {root: "out", ops: {}}`,
			wantField: "ops",
			wantMsg:   "at least one operator is required",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CompileString(tt.source, "bad.cue")
			require.Error(t, err)
			var ce *CompileError
			require.True(t, errors.As(err, &ce), "got %T: %v", err, err)
			assert.Equal(t, tt.wantField, ce.Field)
			if tt.wantMsg != "" {
				assert.Contains(t, ce.Message, tt.wantMsg)
			}
		})
	}
}

func TestCompileError_Position(t *testing.T) {
	_, err := CompileString("plan: {\n\troot: \"nope\"\n\tops: {src: {kind: \"empty-tuple-source\"}}\n}\n", "pos.cue")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pos.cue:2:")
	assert.Contains(t, err.Error(), "root: unknown operator")
}

func TestCompileString_BrokenPlanStillLoads(t *testing.T) {
	spec, err := CompileString(`
plan: {
	root: "out"
	ops: {
		src: {kind: "empty-tuple-source"}
		out: {kind: "distribute-result", input: "src", exprs: [{var: "ghost"}]}
	}
}`, "ghost.cue")
	require.NoError(t, err)
	err = spec.Plan.Validate()
	var ie *plan.InvariantError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, plan.CodeMissingProducer, ie.Code)
}
