package planspec

import (
	"fmt"
	"regexp"
	"strconv"

	"cuelang.org/go/cue/ast"
	"cuelang.org/go/cue/format"
	"cuelang.org/go/cue/token"
	"github.com/cockroachdb/errors"

	"github.com/roach88/xqopt/internal/ir"
	"github.com/roach88/xqopt/internal/plan"
)

// Format renders the reachable part of p as a plan file that Compile
// accepts. Operators are named op1, op2, ... in pre-order from the root and
// variables keep their numbers (v1 for $1).
func Format(name string, p *plan.Plan) ([]byte, error) {
	if p.Root() == plan.NoOp {
		return nil, errors.New("format: empty plan")
	}
	reachable := plan.Reachable(p)
	names := make(map[plan.OpRef]string, len(reachable))
	for i, ref := range reachable {
		names[ref] = fmt.Sprintf("op%d", i+1)
	}

	w := &writer{p: p, names: names}
	ops := make([]ast.Decl, 0, len(reachable))
	for i := len(reachable) - 1; i >= 0; i-- {
		op, err := w.operator(reachable[i])
		if err != nil {
			return nil, err
		}
		ops = append(ops, field(names[reachable[i]], op))
	}

	var decls []ast.Decl
	if name != "" {
		decls = append(decls, field("name", ast.NewString(name)))
	}
	decls = append(decls,
		field("root", ast.NewString(names[p.Root()])),
		field("ops", &ast.StructLit{Elts: ops}),
	)
	file := &ast.File{Decls: []ast.Decl{field("plan", &ast.StructLit{Elts: decls})}}

	out, err := format.Node(file, format.Simplify())
	if err != nil {
		return nil, errors.Wrap(err, "format plan")
	}
	return out, nil
}

type writer struct {
	p     *plan.Plan
	names map[plan.OpRef]string
}

func (w *writer) operator(ref plan.OpRef) (ast.Expr, error) {
	op := w.p.Op(ref)
	decls := []ast.Decl{field("kind", ast.NewString(string(plan.KindOf(op))))}
	in := plan.InputsOf(op)
	if len(in) == 1 {
		decls = append(decls, field("input", ast.NewString(w.names[in[0]])))
	}

	switch o := op.(type) {
	case plan.EmptyTupleSource:
	case plan.DataSourceScan:
		decls = append(decls, field("source", ast.NewString(o.Source)))
	case plan.Navigate:
		src, err := w.expr(o.Source)
		if err != nil {
			return nil, err
		}
		decls = append(decls, field("var", ast.NewString(varName(o.Var))), field("expr", src))
	case plan.Assign:
		bind, err := w.bindings(o.Vars, o.Exprs)
		if err != nil {
			return nil, err
		}
		decls = append(decls, field("bind", bind))
	case plan.Aggregate:
		bind, err := w.bindings(o.Vars, o.Exprs)
		if err != nil {
			return nil, err
		}
		decls = append(decls, field("bind", bind))
	case plan.Select:
		cond, err := w.expr(o.Cond)
		if err != nil {
			return nil, err
		}
		decls = append(decls, field("cond", cond))
	case plan.Project:
		vars := make([]ast.Expr, len(o.Vars))
		for i, v := range o.Vars {
			vars[i] = ast.NewString(varName(v))
		}
		decls = append(decls, field("vars", ast.NewList(vars...)))
	case plan.Join:
		cond, err := w.expr(o.Cond)
		if err != nil {
			return nil, err
		}
		decls = append(decls,
			field("inputs", ast.NewList(ast.NewString(w.names[in[0]]), ast.NewString(w.names[in[1]]))),
			field("cond", cond),
		)
	case plan.DistributeResult:
		exprs := make([]ast.Expr, len(o.Exprs))
		for i, e := range o.Exprs {
			x, err := w.expr(e)
			if err != nil {
				return nil, err
			}
			exprs[i] = x
		}
		decls = append(decls, field("exprs", ast.NewList(exprs...)))
	default:
		return nil, errors.AssertionFailedf("format: unknown operator %T", op)
	}
	return &ast.StructLit{Elts: decls}, nil
}

func (w *writer) bindings(vars []plan.Variable, exprs []plan.ExprRef) (ast.Expr, error) {
	items := make([]ast.Expr, len(vars))
	for i, v := range vars {
		x, err := w.expr(exprs[i])
		if err != nil {
			return nil, err
		}
		items[i] = &ast.StructLit{Elts: []ast.Decl{
			field("var", ast.NewString(varName(v))),
			field("expr", x),
		}}
	}
	return ast.NewList(items...), nil
}

// expr renders an expression tree as nested structs.
func (w *writer) expr(ref plan.ExprRef) (ast.Expr, error) {
	switch e := w.p.Expr(ref).(type) {
	case plan.VariableRef:
		return &ast.StructLit{Elts: []ast.Decl{field("var", ast.NewString(varName(e.Var)))}}, nil
	case plan.Constant:
		val, err := literal(e.Value)
		if err != nil {
			return nil, err
		}
		return &ast.StructLit{Elts: []ast.Decl{field("const", val)}}, nil
	case plan.FunctionCall:
		decls := []ast.Decl{field("call", ast.NewString(string(e.Fn)))}
		if len(e.Args) > 0 {
			args := make([]ast.Expr, len(e.Args))
			for i, a := range e.Args {
				x, err := w.expr(a)
				if err != nil {
					return nil, err
				}
				args[i] = x
			}
			decls = append(decls, field("args", ast.NewList(args...)))
		}
		if len(e.Annotations) > 0 {
			ann, err := literal(ir.Object(e.Annotations))
			if err != nil {
				return nil, err
			}
			decls = append(decls, field("annotations", ann))
		}
		return &ast.StructLit{Elts: decls}, nil
	case plan.Extension:
		input, err := w.expr(e.Input)
		if err != nil {
			return nil, err
		}
		decls := []ast.Decl{field("ext", input)}
		if len(e.Pragmas) > 0 {
			pragmas := make([]ast.Expr, len(e.Pragmas))
			for i, pr := range e.Pragmas {
				pragmas[i] = &ast.StructLit{Elts: []ast.Decl{
					field("name", ast.NewString(pr.Name)),
					field("content", ast.NewString(pr.Content)),
				}}
			}
			decls = append(decls, field("pragmas", ast.NewList(pragmas...)))
		}
		return &ast.StructLit{Elts: decls}, nil
	default:
		return nil, errors.AssertionFailedf("format: unknown expression %T", e)
	}
}

func literal(v ir.Value) (ast.Expr, error) {
	switch x := v.(type) {
	case ir.Null:
		return ast.NewNull(), nil
	case ir.Bool:
		return ast.NewBool(bool(x)), nil
	case ir.Int:
		return ast.NewLit(token.INT, strconv.FormatInt(int64(x), 10)), nil
	case ir.String:
		return ast.NewString(string(x)), nil
	case ir.Seq:
		elems := make([]ast.Expr, len(x))
		for i, e := range x {
			lit, err := literal(e)
			if err != nil {
				return nil, err
			}
			elems[i] = lit
		}
		return ast.NewList(elems...), nil
	case ir.Object:
		keys := x.SortedKeys()
		decls := make([]ast.Decl, len(keys))
		for i, k := range keys {
			lit, err := literal(x[k])
			if err != nil {
				return nil, err
			}
			decls[i] = field(k, lit)
		}
		return &ast.StructLit{Elts: decls}, nil
	default:
		return nil, errors.AssertionFailedf("format: unknown value %T", v)
	}
}

func varName(v plan.Variable) string {
	return "v" + strconv.FormatUint(uint64(v), 10)
}

var identLabel = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

var reservedLabels = map[string]bool{
	"true": true, "false": true, "null": true,
	"if": true, "for": true, "in": true, "let": true, "import": true, "package": true,
}

func field(name string, value ast.Expr) *ast.Field {
	var label ast.Label
	if identLabel.MatchString(name) && !reservedLabels[name] {
		label = ast.NewIdent(name)
	} else {
		label = ast.NewString(name)
	}
	return &ast.Field{Label: label, Value: value}
}
