package planspec

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"github.com/cockroachdb/errors"

	"github.com/roach88/xqopt/internal/ir"
	"github.com/roach88/xqopt/internal/plan"
)

//go:embed schema.cue
var schemaSource string

// Spec is a compiled plan file.
type Spec struct {
	// Name is plan.name, or the file or directory name without extension.
	Name string
	Plan *plan.Plan
	// Ops and Vars map the names used in the file to plan handles.
	Ops  map[string]plan.OpRef
	Vars map[string]plan.Variable
}

// OpName returns the declared name of ref.
func (s *Spec) OpName(ref plan.OpRef) (string, bool) {
	for name, r := range s.Ops {
		if r == ref {
			return name, true
		}
	}
	return "", false
}

// Compile builds a plan from a CUE value holding a top-level plan field.
func Compile(v cue.Value) (*Spec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	planVal := v.LookupPath(cue.ParsePath("plan"))
	if !planVal.Exists() {
		return nil, &CompileError{Field: "plan", Message: "plan is required", Pos: v.Pos()}
	}

	schema := v.Context().CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, errors.WithAssertionFailure(errors.Wrap(err, "compile plan schema"))
	}
	checked := schema.LookupPath(cue.ParsePath("#Plan")).Unify(planVal)
	if err := checked.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	c := &compiler{
		p:    plan.New(),
		ops:  make(map[string]plan.OpRef),
		vars: make(map[string]plan.Variable),
	}
	if err := c.compilePlan(planVal); err != nil {
		return nil, err
	}
	spec := &Spec{Plan: c.p, Ops: c.ops, Vars: c.vars}
	if nameVal := planVal.LookupPath(cue.ParsePath("name")); nameVal.Exists() {
		spec.Name, _ = nameVal.String()
	}
	return spec, nil
}

// CompileString compiles CUE source. filename appears in error positions
// and names the plan when it has no name field.
func CompileString(src, filename string) (*Spec, error) {
	v := cuecontext.New().CompileString(src, cue.Filename(filename))
	spec, err := Compile(v)
	if err != nil {
		return nil, err
	}
	if spec.Name == "" {
		spec.Name = strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	}
	return spec, nil
}

// LoadFile reads and compiles one .cue file.
func LoadFile(path string) (*Spec, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read plan %s", path)
	}
	return CompileString(string(src), path)
}

// LoadDir compiles the CUE package in dir.
func LoadDir(dir string) (*Spec, error) {
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, errors.Newf("no CUE instances in %s", dir)
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, formatCUEError(inst.Err)
	}
	spec, err := Compile(cuecontext.New().BuildInstance(inst))
	if err != nil {
		return nil, err
	}
	if spec.Name == "" {
		spec.Name = filepath.Base(filepath.Clean(dir))
	}
	return spec, nil
}

// Load compiles path, which may be a .cue file or a directory.
func Load(path string) (*Spec, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrapf(err, "plan %s", path)
	}
	if info.IsDir() {
		return LoadDir(path)
	}
	return LoadFile(path)
}

type compiler struct {
	p    *plan.Plan
	ops  map[string]plan.OpRef
	vars map[string]plan.Variable
}

type namedOp struct {
	name string
	v    cue.Value
}

func (c *compiler) compilePlan(v cue.Value) error {
	iter, err := v.LookupPath(cue.ParsePath("ops")).Fields()
	if err != nil {
		return formatCUEError(err)
	}
	// Refs are handed out in declaration order so inputs may name
	// operators declared further down.
	var decls []namedOp
	for iter.Next() {
		c.ops[iter.Label()] = plan.OpRef(c.p.NumOps() + len(decls))
		decls = append(decls, namedOp{name: iter.Label(), v: iter.Value()})
	}
	if len(decls) == 0 {
		return &CompileError{Field: "ops", Message: "at least one operator is required", Pos: v.Pos()}
	}
	for _, d := range decls {
		op, err := c.operator(d.name, d.v)
		if err != nil {
			return err
		}
		if got := c.p.AddOp(op); got != c.ops[d.name] {
			return errors.AssertionFailedf("operator %s stored at %s, want %s", d.name, got, c.ops[d.name])
		}
	}

	rootVal := v.LookupPath(cue.ParsePath("root"))
	rootName, err := rootVal.String()
	if err != nil {
		return formatCUEError(err)
	}
	root, ok := c.ops[rootName]
	if !ok {
		return &CompileError{Field: "root", Message: fmt.Sprintf("unknown operator %q", rootName), Pos: rootVal.Pos()}
	}
	c.p.SetRoot(root)
	return nil
}

func (c *compiler) operator(name string, v cue.Value) (plan.Operator, error) {
	field := "ops." + name
	kind, err := c.str(field, v, "kind")
	if err != nil {
		return nil, err
	}

	switch plan.Kind(kind) {
	case plan.KindEmptyTupleSource:
		return plan.EmptyTupleSource{}, nil

	case plan.KindDataSourceScan:
		source, err := c.str(field, v, "source")
		if err != nil {
			return nil, err
		}
		return plan.DataSourceScan{Source: source}, nil

	case plan.KindJoin:
		inputs, err := c.inputs(field, v)
		if err != nil {
			return nil, err
		}
		cond, err := c.exprField(field, v, "cond")
		if err != nil {
			return nil, err
		}
		return plan.Join{Cond: cond, Inputs: inputs}, nil
	}

	input, err := c.input(field, v)
	if err != nil {
		return nil, err
	}
	in := []plan.OpRef{input}

	switch plan.Kind(kind) {
	case plan.KindNavigate:
		varName, err := c.str(field, v, "var")
		if err != nil {
			return nil, err
		}
		bound := c.variable(varName)
		source, err := c.exprField(field, v, "expr")
		if err != nil {
			return nil, err
		}
		return plan.Navigate{Var: bound, Source: source, Inputs: in}, nil

	case plan.KindAssign, plan.KindAggregate:
		vars, exprs, err := c.bindings(field, v)
		if err != nil {
			return nil, err
		}
		if plan.Kind(kind) == plan.KindAssign {
			return plan.Assign{Vars: vars, Exprs: exprs, Inputs: in}, nil
		}
		return plan.Aggregate{Vars: vars, Exprs: exprs, Inputs: in}, nil

	case plan.KindSelect:
		cond, err := c.exprField(field, v, "cond")
		if err != nil {
			return nil, err
		}
		return plan.Select{Cond: cond, Inputs: in}, nil

	case plan.KindProject:
		names, err := c.strings(field, v, "vars")
		if err != nil {
			return nil, err
		}
		vars := make([]plan.Variable, len(names))
		for i, n := range names {
			vars[i] = c.variable(n)
		}
		return plan.Project{Vars: vars, Inputs: in}, nil

	case plan.KindDistributeResult:
		exprs, err := c.exprList(field, v, "exprs")
		if err != nil {
			return nil, err
		}
		return plan.DistributeResult{Exprs: exprs, Inputs: in}, nil

	default:
		return nil, &CompileError{Field: field + ".kind", Message: fmt.Sprintf("unknown operator kind %q", kind), Pos: v.Pos()}
	}
}

// variable returns the plan variable for name, allocating it on first
// mention.
func (c *compiler) variable(name string) plan.Variable {
	if v, ok := c.vars[name]; ok {
		return v
	}
	v := c.p.NewVariable()
	c.vars[name] = v
	return v
}

func (c *compiler) opRef(field string, v cue.Value) (plan.OpRef, error) {
	name, err := v.String()
	if err != nil {
		return plan.NoOp, formatCUEError(err)
	}
	ref, ok := c.ops[name]
	if !ok {
		return plan.NoOp, &CompileError{Field: field, Message: fmt.Sprintf("unknown operator %q", name), Pos: v.Pos()}
	}
	return ref, nil
}

func (c *compiler) input(field string, v cue.Value) (plan.OpRef, error) {
	inVal := v.LookupPath(cue.ParsePath("input"))
	if !inVal.Exists() {
		return plan.NoOp, &CompileError{Field: field + ".input", Message: "input is required", Pos: v.Pos()}
	}
	return c.opRef(field+".input", inVal)
}

func (c *compiler) inputs(field string, v cue.Value) ([]plan.OpRef, error) {
	names, err := c.list(field, v, "inputs")
	if err != nil {
		return nil, err
	}
	if len(names) != 2 {
		return nil, &CompileError{Field: field + ".inputs", Message: fmt.Sprintf("join needs 2 inputs, got %d", len(names)), Pos: v.Pos()}
	}
	out := make([]plan.OpRef, len(names))
	for i, n := range names {
		if out[i], err = c.opRef(fmt.Sprintf("%s.inputs[%d]", field, i), n); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (c *compiler) bindings(field string, v cue.Value) ([]plan.Variable, []plan.ExprRef, error) {
	items, err := c.list(field, v, "bind")
	if err != nil {
		return nil, nil, err
	}
	if len(items) == 0 {
		return nil, nil, &CompileError{Field: field + ".bind", Message: "at least one binding is required", Pos: v.Pos()}
	}
	vars := make([]plan.Variable, len(items))
	exprs := make([]plan.ExprRef, len(items))
	for i, item := range items {
		path := fmt.Sprintf("%s.bind[%d]", field, i)
		name, err := c.str(path, item, "var")
		if err != nil {
			return nil, nil, err
		}
		vars[i] = c.variable(name)
		if exprs[i], err = c.exprField(path, item, "expr"); err != nil {
			return nil, nil, err
		}
	}
	return vars, exprs, nil
}

func (c *compiler) exprField(field string, v cue.Value, key string) (plan.ExprRef, error) {
	ev := v.LookupPath(cue.ParsePath(key))
	if !ev.Exists() {
		return plan.NoExpr, &CompileError{Field: field + "." + key, Message: key + " is required", Pos: v.Pos()}
	}
	return c.expr(field+"."+key, ev)
}

func (c *compiler) exprList(field string, v cue.Value, key string) ([]plan.ExprRef, error) {
	items, err := c.list(field, v, key)
	if err != nil {
		return nil, err
	}
	out := make([]plan.ExprRef, len(items))
	for i, item := range items {
		if out[i], err = c.expr(fmt.Sprintf("%s.%s[%d]", field, key, i), item); err != nil {
			return nil, err
		}
	}
	return out, nil
}

var exprForms = []string{"var", "call", "const", "ext"}

func (c *compiler) expr(field string, v cue.Value) (plan.ExprRef, error) {
	form := ""
	for _, f := range exprForms {
		if v.LookupPath(cue.ParsePath(f)).Exists() {
			if form != "" {
				return plan.NoExpr, &CompileError{Field: field, Message: fmt.Sprintf("expression has both %s and %s", form, f), Pos: v.Pos()}
			}
			form = f
		}
	}

	switch form {
	case "var":
		name, err := c.str(field, v, "var")
		if err != nil {
			return plan.NoExpr, err
		}
		return c.p.Var(c.variable(name)), nil

	case "const":
		val, err := constant(field+".const", v.LookupPath(cue.ParsePath("const")))
		if err != nil {
			return plan.NoExpr, err
		}
		return c.p.Const(val), nil

	case "call":
		fn, err := c.str(field, v, "call")
		if err != nil {
			return plan.NoExpr, err
		}
		var args []plan.ExprRef
		if v.LookupPath(cue.ParsePath("args")).Exists() {
			if args, err = c.exprList(field, v, "args"); err != nil {
				return plan.NoExpr, err
			}
		}
		if info, ok := plan.LookupFunction(plan.FunctionID(fn)); ok {
			if len(args) < info.MinArgs || (info.MaxArgs >= 0 && len(args) > info.MaxArgs) {
				return plan.NoExpr, &CompileError{Field: field, Message: fmt.Sprintf("%s takes %s arguments, got %d", fn, arity(info), len(args)), Pos: v.Pos()}
			}
		}
		call := plan.FunctionCall{Fn: plan.FunctionID(fn), Args: args}
		if annVal := v.LookupPath(cue.ParsePath("annotations")); annVal.Exists() {
			ann, err := constant(field+".annotations", annVal)
			if err != nil {
				return plan.NoExpr, err
			}
			obj, ok := ann.(ir.Object)
			if !ok {
				return plan.NoExpr, &CompileError{Field: field + ".annotations", Message: "annotations must be a struct", Pos: annVal.Pos()}
			}
			call.Annotations = obj
		}
		return c.p.AddExpr(call), nil

	case "ext":
		input, err := c.expr(field+".ext", v.LookupPath(cue.ParsePath("ext")))
		if err != nil {
			return plan.NoExpr, err
		}
		var pragmas []plan.Pragma
		if v.LookupPath(cue.ParsePath("pragmas")).Exists() {
			items, err := c.list(field, v, "pragmas")
			if err != nil {
				return plan.NoExpr, err
			}
			for i, item := range items {
				path := fmt.Sprintf("%s.pragmas[%d]", field, i)
				name, err := c.str(path, item, "name")
				if err != nil {
					return plan.NoExpr, err
				}
				pr := plan.Pragma{Name: name}
				if item.LookupPath(cue.ParsePath("content")).Exists() {
					if pr.Content, err = c.str(path, item, "content"); err != nil {
						return plan.NoExpr, err
					}
				}
				pragmas = append(pragmas, pr)
			}
		}
		return c.p.Extend(input, pragmas...), nil

	default:
		return plan.NoExpr, &CompileError{Field: field, Message: "expression needs one of var, call, const or ext", Pos: v.Pos()}
	}
}

func arity(info plan.FunctionInfo) string {
	switch {
	case info.MaxArgs < 0:
		return fmt.Sprintf("at least %d", info.MinArgs)
	case info.MinArgs == info.MaxArgs:
		return fmt.Sprint(info.MinArgs)
	default:
		return fmt.Sprintf("%d to %d", info.MinArgs, info.MaxArgs)
	}
}

func (c *compiler) str(field string, v cue.Value, key string) (string, error) {
	sv := v.LookupPath(cue.ParsePath(key))
	if !sv.Exists() {
		return "", &CompileError{Field: field + "." + key, Message: key + " is required", Pos: v.Pos()}
	}
	s, err := sv.String()
	if err != nil {
		return "", &CompileError{Field: field + "." + key, Message: "must be a string", Pos: sv.Pos()}
	}
	return s, nil
}

func (c *compiler) strings(field string, v cue.Value, key string) ([]string, error) {
	items, err := c.list(field, v, key)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(items))
	for i, item := range items {
		if out[i], err = item.String(); err != nil {
			return nil, &CompileError{Field: fmt.Sprintf("%s.%s[%d]", field, key, i), Message: "must be a string", Pos: item.Pos()}
		}
	}
	return out, nil
}

func (c *compiler) list(field string, v cue.Value, key string) ([]cue.Value, error) {
	lv := v.LookupPath(cue.ParsePath(key))
	if !lv.Exists() {
		return nil, &CompileError{Field: field + "." + key, Message: key + " is required", Pos: v.Pos()}
	}
	iter, err := lv.List()
	if err != nil {
		return nil, &CompileError{Field: field + "." + key, Message: "must be a list", Pos: lv.Pos()}
	}
	var out []cue.Value
	for iter.Next() {
		out = append(out, iter.Value())
	}
	return out, nil
}

// constant converts a concrete CUE value. Floats and bytes have no plan
// representation.
func constant(field string, v cue.Value) (ir.Value, error) {
	switch v.Kind() {
	case cue.NullKind:
		return ir.Null{}, nil
	case cue.BoolKind:
		b, err := v.Bool()
		return ir.Bool(b), formatCUEError(err)
	case cue.IntKind:
		n, err := v.Int64()
		if err != nil {
			return nil, &CompileError{Field: field, Message: "integer out of range", Pos: v.Pos()}
		}
		return ir.Int(n), nil
	case cue.StringKind:
		s, err := v.String()
		return ir.String(s), formatCUEError(err)
	case cue.ListKind:
		iter, err := v.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		seq := ir.Seq{}
		for i := 0; iter.Next(); i++ {
			elem, err := constant(fmt.Sprintf("%s[%d]", field, i), iter.Value())
			if err != nil {
				return nil, err
			}
			seq = append(seq, elem)
		}
		return seq, nil
	case cue.StructKind:
		iter, err := v.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		obj := ir.Object{}
		for iter.Next() {
			key := iter.Label()
			elem, err := constant(field+"."+key, iter.Value())
			if err != nil {
				return nil, err
			}
			obj[key] = elem
		}
		return obj, nil
	default:
		return nil, &CompileError{Field: field, Message: fmt.Sprintf("unsupported constant kind %s", v.Kind()), Pos: v.Pos()}
	}
}
