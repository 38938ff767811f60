package plan

import (
	"slices"
)

// Validate checks the plan invariants and returns the first violation as an
// *InvariantError marked as an assertion failure.
//
// Checks, in order:
//  1. every ref reachable from the root addresses a slot
//  2. the operator graph is acyclic (the error carries the cycle path)
//  3. input arity and variable/expression list lengths per kind
//  4. expressions are acyclic and each slot is owned by one operator
//  5. each variable has exactly one producer, and every variable use has
//     that producer among the operators below the user
//
// Only the part of the arena reachable from the root is checked. Slots
// orphaned by rewrites are ignored.
func (p *Plan) Validate() error {
	if p.root == NoOp {
		return nil
	}
	if !p.ValidOp(p.root) {
		return assertion(newInvariantError(CodeDanglingRef, NoOp, "root %s out of range", p.root))
	}
	if ie := p.checkAcyclic(); ie != nil {
		return assertion(ie)
	}
	reachable := Reachable(p)
	for _, ref := range reachable {
		if ie := p.checkShape(ref); ie != nil {
			return assertion(ie)
		}
	}
	if ie := p.checkExprOwnership(reachable); ie != nil {
		return assertion(ie)
	}
	if ie := p.checkProducers(reachable); ie != nil {
		return assertion(ie)
	}
	return nil
}

// checkAcyclic runs an iterative three-colour DFS over input edges.
func (p *Plan) checkAcyclic() *InvariantError {
	const (
		white = iota
		grey
		black
	)
	type frame struct {
		ref  OpRef
		next int
	}
	colour := make(map[OpRef]int)
	stack := []frame{{ref: p.root}}
	colour[p.root] = grey
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		in := InputsOf(p.ops[top.ref])
		if top.next == len(in) {
			colour[top.ref] = black
			stack = stack[:len(stack)-1]
			continue
		}
		child := in[top.next]
		top.next++
		if !p.ValidOp(child) {
			return newInvariantError(CodeDanglingRef, top.ref, "input %s out of range", child)
		}
		switch colour[child] {
		case white:
			colour[child] = grey
			stack = append(stack, frame{ref: child})
		case grey:
			var path []OpRef
			for i := range stack {
				if stack[i].ref == child {
					for _, f := range stack[i:] {
						path = append(path, f.ref)
					}
					break
				}
			}
			path = append(path, child)
			ie := newInvariantError(CodeCycle, child, "operator cycle %v", path)
			ie.Path = path
			return ie
		}
	}
	return nil
}

func (p *Plan) checkShape(ref OpRef) *InvariantError {
	op := p.ops[ref]
	if got, want := len(InputsOf(op)), expectedInputs(op); got != want {
		return newInvariantError(CodeArity, ref, "%s has %d inputs, want %d", KindOf(op), got, want)
	}
	switch o := op.(type) {
	case Assign:
		if len(o.Vars) != len(o.Exprs) {
			return newInvariantError(CodeArity, ref, "assign binds %d variables to %d expressions", len(o.Vars), len(o.Exprs))
		}
	case Aggregate:
		if len(o.Vars) != len(o.Exprs) {
			return newInvariantError(CodeArity, ref, "aggregate binds %d variables to %d expressions", len(o.Vars), len(o.Exprs))
		}
	}
	for _, v := range ProducedVars(op) {
		if v == NoVariable {
			return newInvariantError(CodeInvalidVariable, ref, "%s binds the invalid variable", KindOf(op))
		}
	}
	if o, ok := op.(Project); ok && slices.Contains(o.Vars, NoVariable) {
		return newInvariantError(CodeInvalidVariable, ref, "project keeps the invalid variable")
	}
	return nil
}

// checkExprOwnership walks each operator's expressions, reporting dangling
// refs, expression cycles and slots reachable from two operators.
func (p *Plan) checkExprOwnership(reachable []OpRef) *InvariantError {
	owner := make(map[ExprRef]OpRef)
	for _, ref := range reachable {
		for _, root := range ExprsOf(p.ops[ref]) {
			if ie := p.checkExprTree(ref, root, owner); ie != nil {
				return ie
			}
		}
	}
	return nil
}

func (p *Plan) checkExprTree(op OpRef, root ExprRef, owner map[ExprRef]OpRef) *InvariantError {
	type frame struct {
		ref  ExprRef
		next int
	}
	onPath := make(map[ExprRef]bool)
	done := make(map[ExprRef]bool)
	if !p.ValidExpr(root) {
		ie := newInvariantError(CodeDanglingRef, op, "expression %s out of range", root)
		ie.Expr = root
		return ie
	}
	stack := []frame{{ref: root}}
	onPath[root] = true
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.next == 0 {
			if prev, ok := owner[top.ref]; ok && prev != op {
				ie := newInvariantError(CodeSharedExpr, op, "expression %s also owned by %s", top.ref, prev)
				ie.Expr = top.ref
				return ie
			}
			owner[top.ref] = op
			if vr, ok := p.exprs[top.ref].(VariableRef); ok && vr.Var == NoVariable {
				ie := newInvariantError(CodeInvalidVariable, op, "reference to the invalid variable")
				ie.Expr = top.ref
				return ie
			}
		}
		kids := exprChildren(p.exprs[top.ref])
		if top.next == len(kids) {
			delete(onPath, top.ref)
			done[top.ref] = true
			stack = stack[:len(stack)-1]
			continue
		}
		kid := kids[top.next]
		top.next++
		switch {
		case !p.ValidExpr(kid):
			ie := newInvariantError(CodeDanglingRef, op, "expression %s out of range", kid)
			ie.Expr = kid
			return ie
		case onPath[kid]:
			ie := newInvariantError(CodeExprCycle, op, "expression cycle through %s", kid)
			ie.Expr = kid
			return ie
		case done[kid]:
		default:
			onPath[kid] = true
			stack = append(stack, frame{ref: kid})
		}
	}
	return nil
}

func (p *Plan) checkProducers(reachable []OpRef) *InvariantError {
	producer := make(map[Variable]OpRef)
	for _, ref := range reachable {
		for _, v := range ProducedVars(p.ops[ref]) {
			if prev, ok := producer[v]; ok {
				ie := newInvariantError(CodeDuplicateProducer, ref, "%s also produced by %s", v, prev)
				ie.Var = v
				return ie
			}
			producer[v] = ref
		}
	}
	for _, ref := range reachable {
		uses := VarOccurrences(p, ref)
		vars := make([]Variable, 0, len(uses))
		for v := range uses {
			vars = append(vars, v)
		}
		if o, ok := p.ops[ref].(Project); ok {
			vars = append(vars, o.Vars...)
		}
		slices.Sort(vars)
		for _, v := range vars {
			prod, ok := producer[v]
			if !ok || prod == ref || !p.producerBelow(ref, prod) {
				ie := newInvariantError(CodeMissingProducer, ref, "no producer of %s below %s", v, KindOf(p.ops[ref]))
				ie.Var = v
				return ie
			}
		}
	}
	return nil
}

// producerBelow reports whether prod is reachable from the inputs of user.
func (p *Plan) producerBelow(user, prod OpRef) bool {
	for _, in := range InputsOf(p.ops[user]) {
		if Reaches(p, in, prod) {
			return true
		}
	}
	return false
}
