package plan

import (
	"fmt"
	"slices"

	"github.com/roach88/xqopt/internal/ir"
)

// Plan is an arena of operators and expressions with a single root.
//
// Accessors panic on refs outside the arena: a bad ref is a programming
// error in the caller, the same as an out-of-range slice index.
type Plan struct {
	ops     []Operator
	exprs   []Expr
	lastVar Variable
	root    OpRef
}

// New returns an empty plan with no root.
func New() *Plan {
	return &Plan{root: NoOp}
}

// Root returns the root operator, or NoOp for an empty plan.
func (p *Plan) Root() OpRef { return p.root }

// SetRoot makes ref the plan root.
func (p *Plan) SetRoot(ref OpRef) {
	p.checkOp(ref)
	p.root = ref
}

// NumOps returns the arena size for operators, reachable or not.
func (p *Plan) NumOps() int { return len(p.ops) }

// NumExprs returns the arena size for expressions, reachable or not.
func (p *Plan) NumExprs() int { return len(p.exprs) }

// NewVariable mints a fresh variable.
func (p *Plan) NewVariable() Variable {
	p.lastVar++
	return p.lastVar
}

// LastVariable returns the most recently minted variable.
func (p *Plan) LastVariable() Variable { return p.lastVar }

// Op returns the operator in slot ref.
func (p *Plan) Op(ref OpRef) Operator {
	p.checkOp(ref)
	return p.ops[ref]
}

// Expr returns the expression in slot ref.
func (p *Plan) Expr(ref ExprRef) Expr {
	p.checkExpr(ref)
	return p.exprs[ref]
}

// ValidOp reports whether ref addresses an operator slot.
func (p *Plan) ValidOp(ref OpRef) bool { return ref >= 0 && int(ref) < len(p.ops) }

// ValidExpr reports whether ref addresses an expression slot.
func (p *Plan) ValidExpr(ref ExprRef) bool { return ref >= 0 && int(ref) < len(p.exprs) }

// Inputs returns the input edges of the operator in slot ref.
func (p *Plan) Inputs(ref OpRef) []OpRef {
	return InputsOf(p.Op(ref))
}

// AddOp stores op in a new slot.
func (p *Plan) AddOp(op Operator) OpRef {
	p.ops = append(p.ops, cloneOperator(op))
	return OpRef(len(p.ops) - 1)
}

// AddExpr stores e in a new slot.
func (p *Plan) AddExpr(e Expr) ExprRef {
	p.exprs = append(p.exprs, cloneExpr(e))
	return ExprRef(len(p.exprs) - 1)
}

// ReplaceOp swaps the content of slot ref. Every holder of ref sees op.
func (p *Plan) ReplaceOp(ref OpRef, op Operator) {
	p.checkOp(ref)
	p.ops[ref] = cloneOperator(op)
}

// ReplaceExpr swaps the content of slot ref. Every holder of ref sees e.
func (p *Plan) ReplaceExpr(ref ExprRef, e Expr) {
	p.checkExpr(ref)
	p.exprs[ref] = cloneExpr(e)
}

// SetInput re-points input edge i of parent to child. Only that edge
// changes; other parents of the previous child keep it.
func (p *Plan) SetInput(parent OpRef, i int, child OpRef) {
	p.checkOp(child)
	op := p.Op(parent)
	in := slices.Clone(InputsOf(op))
	if i < 0 || i >= len(in) {
		panic(fmt.Sprintf("plan: input %d out of range for %s with %d inputs", i, parent, len(in)))
	}
	in[i] = child
	p.ops[parent] = withInputs(op, in)
}

// Clone returns a deep copy of the whole arena, unreachable slots included.
// Refs in the copy address the same slots as in p.
func (p *Plan) Clone() *Plan {
	c := &Plan{
		ops:     make([]Operator, len(p.ops)),
		exprs:   make([]Expr, len(p.exprs)),
		lastVar: p.lastVar,
		root:    p.root,
	}
	for i, op := range p.ops {
		c.ops[i] = cloneOperator(op)
	}
	for i, e := range p.exprs {
		c.exprs[i] = cloneExpr(e)
	}
	return c
}

func (p *Plan) checkOp(ref OpRef) {
	if !p.ValidOp(ref) {
		panic(fmt.Sprintf("plan: operator ref %s out of range [0,%d)", ref, len(p.ops)))
	}
}

func (p *Plan) checkExpr(ref ExprRef) {
	if !p.ValidExpr(ref) {
		panic(fmt.Sprintf("plan: expression ref %s out of range [0,%d)", ref, len(p.exprs)))
	}
}

// Var adds a reference to v.
func (p *Plan) Var(v Variable) ExprRef {
	return p.AddExpr(VariableRef{Var: v})
}

// Call adds a call of fn on args.
func (p *Plan) Call(fn FunctionID, args ...ExprRef) ExprRef {
	return p.AddExpr(FunctionCall{Fn: fn, Args: args})
}

// Const adds a literal.
func (p *Plan) Const(v ir.Value) ExprRef {
	return p.AddExpr(Constant{Value: v})
}

// InstanceOf adds "expr instance of seqType". The sequence type is an opaque
// tag handed to the casting library.
func (p *Plan) InstanceOf(expr ExprRef, seqType string) ExprRef {
	return p.Call(FnInstanceOf, expr, p.Const(ir.String(seqType)))
}

// Extend wraps expr in an extension expression.
func (p *Plan) Extend(expr ExprRef, pragmas ...Pragma) ExprRef {
	return p.AddExpr(Extension{Input: expr, Pragmas: pragmas})
}

// AddEmptySource adds an EmptyTupleSource.
func (p *Plan) AddEmptySource() OpRef {
	return p.AddOp(EmptyTupleSource{})
}

// AddScan adds a DataSourceScan of the named collection.
func (p *Plan) AddScan(source string) OpRef {
	return p.AddOp(DataSourceScan{Source: source})
}

// AddNavigate adds a Navigate over input binding v to source.
func (p *Plan) AddNavigate(input OpRef, v Variable, source ExprRef) OpRef {
	return p.AddOp(Navigate{Var: v, Source: source, Inputs: []OpRef{input}})
}

// AddAssign adds an Assign over input.
func (p *Plan) AddAssign(input OpRef, vars []Variable, exprs []ExprRef) OpRef {
	return p.AddOp(Assign{Vars: vars, Exprs: exprs, Inputs: []OpRef{input}})
}

// AddAggregate adds an Aggregate over input.
func (p *Plan) AddAggregate(input OpRef, vars []Variable, exprs []ExprRef) OpRef {
	return p.AddOp(Aggregate{Vars: vars, Exprs: exprs, Inputs: []OpRef{input}})
}

// AddSelect adds a Select over input.
func (p *Plan) AddSelect(input OpRef, cond ExprRef) OpRef {
	return p.AddOp(Select{Cond: cond, Inputs: []OpRef{input}})
}

// AddProject adds a Project over input.
func (p *Plan) AddProject(input OpRef, vars ...Variable) OpRef {
	return p.AddOp(Project{Vars: vars, Inputs: []OpRef{input}})
}

// AddJoin adds a Join of left and right.
func (p *Plan) AddJoin(left, right OpRef, cond ExprRef) OpRef {
	return p.AddOp(Join{Cond: cond, Inputs: []OpRef{left, right}})
}

// AddDistribute adds a DistributeResult over input.
func (p *Plan) AddDistribute(input OpRef, exprs ...ExprRef) OpRef {
	return p.AddOp(DistributeResult{Exprs: exprs, Inputs: []OpRef{input}})
}
