package plan

import (
	"github.com/roach88/xqopt/internal/ir"
)

// Encode returns a canonical description of the reachable plan.
//
// Operators, expressions and variables are renumbered in the order a
// pre-order walk from the root first meets them, so two plans that differ
// only in arena layout or variable ids encode identically. Orphaned slots
// are not encoded.
func Encode(p *Plan) ir.Object {
	reachable := Reachable(p)
	opIndex := make(map[OpRef]int, len(reachable))
	for i, ref := range reachable {
		opIndex[ref] = i
	}

	varIndex := make(map[Variable]int)
	number := func(v Variable) ir.Int {
		if _, ok := varIndex[v]; !ok {
			varIndex[v] = len(varIndex)
		}
		return ir.Int(varIndex[v])
	}
	for _, ref := range reachable {
		for _, v := range ProducedVars(p.ops[ref]) {
			number(v)
		}
		for _, root := range ExprsOf(p.ops[ref]) {
			for _, e := range ExprTree(p, root) {
				if vr, ok := p.exprs[e].(VariableRef); ok {
					number(vr.Var)
				}
			}
		}
	}

	enc := &encoder{p: p, memo: make(map[ExprRef]ir.Value), number: number}
	ops := make(ir.Seq, len(reachable))
	for i, ref := range reachable {
		ops[i] = enc.operator(p.ops[ref], opIndex)
	}
	obj := ir.Object{"ops": ops}
	if len(reachable) > 0 {
		obj["root"] = ir.Int(0)
	}
	return obj
}

// Fingerprint returns the domain-separated SHA-256 of the canonical JSON of
// Encode(p). Structurally equal plans have equal fingerprints.
func Fingerprint(p *Plan) (string, error) {
	return ir.PlanHash(Encode(p))
}

type encoder struct {
	p      *Plan
	memo   map[ExprRef]ir.Value
	number func(Variable) ir.Int
}

func (enc *encoder) operator(op Operator, opIndex map[OpRef]int) ir.Value {
	in := InputsOf(op)
	inputs := make(ir.Seq, len(in))
	for i, ref := range in {
		inputs[i] = ir.Int(opIndex[ref])
	}
	obj := ir.Object{
		"kind":   ir.String(KindOf(op)),
		"inputs": inputs,
	}
	if vars := ProducedVars(op); len(vars) > 0 {
		obj["vars"] = enc.vars(vars)
	}
	if refs := ExprsOf(op); len(refs) > 0 {
		exprs := make(ir.Seq, len(refs))
		for i, ref := range refs {
			exprs[i] = enc.expr(ref)
		}
		obj["exprs"] = exprs
	}
	switch o := op.(type) {
	case DataSourceScan:
		obj["source"] = ir.String(o.Source)
	case Project:
		obj["keep"] = enc.vars(o.Vars)
	}
	return obj
}

func (enc *encoder) vars(vars []Variable) ir.Seq {
	seq := make(ir.Seq, len(vars))
	for i, v := range vars {
		seq[i] = enc.number(v)
	}
	return seq
}

// expr encodes bottom-up with an explicit stack. Cycles and dangling refs
// encode as markers so a broken plan can still be fingerprinted.
func (enc *encoder) expr(root ExprRef) ir.Value {
	type frame struct {
		ref      ExprRef
		expanded bool
	}
	onStack := make(map[ExprRef]bool)
	stack := []frame{{ref: root}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, done := enc.memo[f.ref]; done {
			continue
		}
		if !enc.p.ValidExpr(f.ref) {
			enc.memo[f.ref] = ir.Object{"dangling": ir.Bool(true)}
			continue
		}
		e := enc.p.exprs[f.ref]
		kids := exprChildren(e)
		if !f.expanded && len(kids) > 0 {
			if onStack[f.ref] {
				enc.memo[f.ref] = ir.Object{"cycle": ir.Bool(true)}
				continue
			}
			onStack[f.ref] = true
			stack = append(stack, frame{ref: f.ref, expanded: true})
			for _, k := range kids {
				stack = append(stack, frame{ref: k})
			}
			continue
		}
		delete(onStack, f.ref)
		enc.memo[f.ref] = enc.encodeNode(e)
	}
	return enc.memo[root]
}

func (enc *encoder) encodeNode(e Expr) ir.Value {
	switch x := e.(type) {
	case VariableRef:
		return ir.Object{"var": enc.number(x.Var)}
	case Constant:
		// Constants may hold Null, which canonical JSON forbids, so they
		// travel as their JSON text.
		data, err := ir.MarshalValue(x.Value)
		if err != nil {
			return ir.Object{"const_error": ir.String(err.Error())}
		}
		return ir.Object{"const": ir.String(data)}
	case FunctionCall:
		args := make(ir.Seq, len(x.Args))
		for i, a := range x.Args {
			args[i] = enc.memo[a]
		}
		obj := ir.Object{"call": ir.String(x.Fn), "args": args}
		if len(x.Annotations) > 0 {
			data, err := ir.MarshalValue(ir.Object(x.Annotations))
			if err == nil {
				obj["annotations"] = ir.String(data)
			}
		}
		return obj
	case Extension:
		pragmas := make(ir.Seq, len(x.Pragmas))
		for i, pr := range x.Pragmas {
			pragmas[i] = ir.Object{"name": ir.String(pr.Name), "content": ir.String(pr.Content)}
		}
		return ir.Object{"ext": enc.memo[x.Input], "pragmas": pragmas}
	default:
		panic(unknownExpr(e))
	}
}
