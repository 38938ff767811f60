package eval

import (
	"slices"

	"github.com/cockroachdb/errors"

	"github.com/roach88/xqopt/internal/ir"
	"github.com/roach88/xqopt/internal/plan"
	"github.com/roach88/xqopt/internal/xdm"
)

// ErrUnsupported reports a plan construct the interpreter does not model.
var ErrUnsupported = errors.New("unsupported by the reference evaluator")

// Item is a node or an atomic value.
type Item struct {
	Node *xdm.Node
	Atom ir.Value
}

// String renders a node by path and an atom by its plan syntax.
func (it Item) String() string {
	if it.Node != nil {
		return it.Node.Path()
	}
	return ir.Format(it.Atom)
}

// Sequence is an ordered list of items.
type Sequence []Item

// Strings renders each item.
func (s Sequence) Strings() []string {
	out := make([]string, len(s))
	for i, it := range s {
		out[i] = it.String()
	}
	return out
}

// Tuple binds variables to sequences.
type Tuple map[plan.Variable]Sequence

func (t Tuple) with(v plan.Variable, s Sequence) Tuple {
	out := make(Tuple, len(t)+1)
	for k, val := range t {
		out[k] = val
	}
	out[v] = s
	return out
}

// Run evaluates the plan against doc. The root must be a DistributeResult;
// the result is the concatenation of its expressions over every tuple.
func Run(p *plan.Plan, doc *xdm.Document) (Sequence, error) {
	root := p.Root()
	if root == plan.NoOp {
		return nil, errors.New("eval: empty plan")
	}
	if _, ok := p.Op(root).(plan.DistributeResult); !ok {
		return nil, errors.Newf("eval: root is %s, want %s", plan.KindOf(p.Op(root)), plan.KindDistributeResult)
	}
	ev := &evaluator{p: p, doc: doc, out: make(map[plan.OpRef][]Tuple)}
	if err := ev.operators(); err != nil {
		return nil, err
	}
	return ev.result, nil
}

type evaluator struct {
	p      *plan.Plan
	doc    *xdm.Document
	out    map[plan.OpRef][]Tuple
	result Sequence
}

// operators evaluates every reachable operator once, inputs first.
func (ev *evaluator) operators() error {
	type frame struct {
		ref      plan.OpRef
		expanded bool
	}
	stack := []frame{{ref: ev.p.Root()}}
	onStack := make(map[plan.OpRef]bool)
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, done := ev.out[f.ref]; done {
			continue
		}
		if !f.expanded {
			if onStack[f.ref] {
				return errors.AssertionFailedf("eval: operator cycle through %s", f.ref)
			}
			onStack[f.ref] = true
			stack = append(stack, frame{ref: f.ref, expanded: true})
			for _, in := range ev.p.Inputs(f.ref) {
				stack = append(stack, frame{ref: in})
			}
			continue
		}
		delete(onStack, f.ref)
		tuples, err := ev.operator(f.ref)
		if err != nil {
			return errors.Wrapf(err, "%s %s", plan.KindOf(ev.p.Op(f.ref)), f.ref)
		}
		ev.out[f.ref] = tuples
	}
	return nil
}

func (ev *evaluator) operator(ref plan.OpRef) ([]Tuple, error) {
	input := func(i int) []Tuple { return ev.out[ev.p.Inputs(ref)[i]] }

	switch op := ev.p.Op(ref).(type) {
	case plan.EmptyTupleSource:
		return []Tuple{{}}, nil

	case plan.DataSourceScan:
		return nil, errors.Wrapf(ErrUnsupported, "scan of %q", op.Source)

	case plan.Navigate:
		var out []Tuple
		for _, t := range input(0) {
			seq, err := ev.expr(op.Source, t)
			if err != nil {
				return nil, err
			}
			for _, it := range seq {
				out = append(out, t.with(op.Var, Sequence{it}))
			}
		}
		return out, nil

	case plan.Assign:
		out := make([]Tuple, 0, len(input(0)))
		for _, t := range input(0) {
			cur := t
			for i, v := range op.Vars {
				seq, err := ev.expr(op.Exprs[i], cur)
				if err != nil {
					return nil, err
				}
				cur = cur.with(v, seq)
			}
			out = append(out, cur)
		}
		return out, nil

	case plan.Aggregate:
		agg := Tuple{}
		for i, v := range op.Vars {
			seq, err := ev.aggregate(op.Exprs[i], input(0))
			if err != nil {
				return nil, err
			}
			agg[v] = seq
		}
		return []Tuple{agg}, nil

	case plan.Select:
		var out []Tuple
		for _, t := range input(0) {
			ok, err := ev.truth(op.Cond, t)
			if err != nil {
				return nil, err
			}
			if ok {
				out = append(out, t)
			}
		}
		return out, nil

	case plan.Project:
		out := make([]Tuple, len(input(0)))
		for i, t := range input(0) {
			kept := make(Tuple, len(op.Vars))
			for _, v := range op.Vars {
				kept[v] = t[v]
			}
			out[i] = kept
		}
		return out, nil

	case plan.Join:
		var out []Tuple
		for _, l := range input(0) {
			for _, r := range input(1) {
				merged := make(Tuple, len(l)+len(r))
				for k, v := range l {
					merged[k] = v
				}
				for k, v := range r {
					merged[k] = v
				}
				ok, err := ev.truth(op.Cond, merged)
				if err != nil {
					return nil, err
				}
				if ok {
					out = append(out, merged)
				}
			}
		}
		return out, nil

	case plan.DistributeResult:
		for _, t := range input(0) {
			for _, e := range op.Exprs {
				seq, err := ev.expr(e, t)
				if err != nil {
					return nil, err
				}
				ev.result = append(ev.result, seq...)
			}
		}
		return nil, nil

	default:
		return nil, errors.Newf("eval: unknown operator %T", op)
	}
}

// aggregate evaluates an aggregate call. Only sequence(arg) is modeled: it
// concatenates arg over all input tuples.
func (ev *evaluator) aggregate(ref plan.ExprRef, tuples []Tuple) (Sequence, error) {
	call, ok := ev.p.Expr(ref).(plan.FunctionCall)
	if !ok || call.Fn != plan.FnSequence || len(call.Args) != 1 {
		return nil, errors.Wrapf(ErrUnsupported, "aggregate %s", plan.FormatExpr(ev.p, ref))
	}
	var out Sequence
	for _, t := range tuples {
		seq, err := ev.expr(call.Args[0], t)
		if err != nil {
			return nil, err
		}
		out = append(out, seq...)
	}
	return out, nil
}

func (ev *evaluator) truth(ref plan.ExprRef, t Tuple) (bool, error) {
	seq, err := ev.expr(ref, t)
	if err != nil {
		return false, err
	}
	return EffectiveBoolean(seq)
}

// EffectiveBoolean computes the effective boolean value of a sequence.
func EffectiveBoolean(seq Sequence) (bool, error) {
	if len(seq) == 0 {
		return false, nil
	}
	if seq[0].Node != nil {
		return true, nil
	}
	if len(seq) > 1 {
		return false, errors.New("effective boolean value of a multi-item atomic sequence")
	}
	switch v := seq[0].Atom.(type) {
	case ir.Bool:
		return bool(v), nil
	case ir.String:
		return v != "", nil
	case ir.Int:
		return v != 0, nil
	default:
		return false, errors.Newf("no effective boolean value for %s", ir.Format(v))
	}
}

// expr evaluates an expression bottom-up with an explicit stack.
func (ev *evaluator) expr(root plan.ExprRef, t Tuple) (Sequence, error) {
	type frame struct {
		ref      plan.ExprRef
		expanded bool
	}
	memo := make(map[plan.ExprRef]Sequence)
	stack := []frame{{ref: root}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, done := memo[f.ref]; done {
			continue
		}
		e := ev.p.Expr(f.ref)
		var kids []plan.ExprRef
		switch x := e.(type) {
		case plan.FunctionCall:
			kids = x.Args
		case plan.Extension:
			kids = []plan.ExprRef{x.Input}
		}
		if !f.expanded && len(kids) > 0 {
			stack = append(stack, frame{ref: f.ref, expanded: true})
			for _, k := range kids {
				stack = append(stack, frame{ref: k})
			}
			continue
		}
		seq, err := ev.node(e, t, memo)
		if err != nil {
			return nil, err
		}
		memo[f.ref] = seq
	}
	return memo[root], nil
}

func (ev *evaluator) node(e plan.Expr, t Tuple, memo map[plan.ExprRef]Sequence) (Sequence, error) {
	switch x := e.(type) {
	case plan.VariableRef:
		seq, ok := t[x.Var]
		if !ok {
			return nil, errors.AssertionFailedf("eval: %s unbound", x.Var)
		}
		return seq, nil
	case plan.Constant:
		return constant(x.Value), nil
	case plan.Extension:
		return memo[x.Input], nil
	case plan.FunctionCall:
		args := make([]Sequence, len(x.Args))
		for i, a := range x.Args {
			args[i] = memo[a]
		}
		return ev.call(x.Fn, args)
	default:
		return nil, errors.Newf("eval: unknown expression %T", e)
	}
}

func constant(v ir.Value) Sequence {
	switch c := v.(type) {
	case ir.Null:
		return nil
	case ir.Seq:
		out := make(Sequence, len(c))
		for i, elem := range c {
			out[i] = Item{Atom: elem}
		}
		return out
	default:
		return Sequence{{Atom: v}}
	}
}

func (ev *evaluator) call(fn plan.FunctionID, args []Sequence) (Sequence, error) {
	if plan.IsCastFunction(fn) {
		return nil, errors.Wrapf(ErrUnsupported, "cast function %s", fn)
	}
	if info, ok := plan.LookupFunction(fn); ok {
		if len(args) < info.MinArgs || (info.MaxArgs >= 0 && len(args) > info.MaxArgs) {
			return nil, errors.Newf("%s: %d arguments", fn, len(args))
		}
	}
	if plan.IsAxis(fn) {
		return step(xdm.Axis(fn), args)
	}
	switch fn {
	case plan.FnRoot:
		return Sequence{{Node: ev.doc.Root}}, nil
	case plan.FnIterate:
		return args[0], nil
	case plan.FnSequence:
		var out Sequence
		for _, a := range args {
			out = append(out, a...)
		}
		return out, nil
	case plan.FnSortDistinctNodesAsc:
		return sortDistinct(args[0])
	case plan.FnExists:
		return Sequence{{Atom: ir.Bool(len(args[0]) > 0)}}, nil
	case plan.FnNot:
		b, err := EffectiveBoolean(args[0])
		if err != nil {
			return nil, err
		}
		return Sequence{{Atom: ir.Bool(!b)}}, nil
	default:
		return nil, errors.Wrapf(ErrUnsupported, "function %s", fn)
	}
}

// step applies an axis to every context node and concatenates the results.
func step(axis xdm.Axis, args []Sequence) (Sequence, error) {
	test := ""
	if len(args) > 1 {
		if len(args[1]) != 1 || args[1][0].Node != nil {
			return nil, errors.Newf("%s: node test must be a single string", axis)
		}
		s, ok := args[1][0].Atom.(ir.String)
		if !ok {
			return nil, errors.Newf("%s: node test must be a string", axis)
		}
		test = string(s)
	}
	var out Sequence
	for _, it := range args[0] {
		if it.Node == nil {
			return nil, errors.Newf("%s: context item %s is not a node", axis, it)
		}
		nodes, err := xdm.Step(it.Node, axis, test)
		if err != nil {
			return nil, err
		}
		for _, n := range nodes {
			out = append(out, Item{Node: n})
		}
	}
	return out, nil
}

func sortDistinct(seq Sequence) (Sequence, error) {
	nodes := make([]*xdm.Node, 0, len(seq))
	for _, it := range seq {
		if it.Node == nil {
			return nil, errors.Newf("sort-distinct-nodes-asc: %s is not a node", it)
		}
		nodes = append(nodes, it.Node)
	}
	slices.SortFunc(nodes, func(a, b *xdm.Node) int { return a.Order() - b.Order() })
	nodes = slices.Compact(nodes)
	out := make(Sequence, len(nodes))
	for i, n := range nodes {
		out[i] = Item{Node: n}
	}
	return out, nil
}
