package plan

import "slices"

// Reachable returns the operators reachable from the root in depth-first
// pre-order, inputs left to right. Each operator appears once.
func Reachable(p *Plan) []OpRef {
	if p.root == NoOp {
		return nil
	}
	return ReachableFrom(p, p.root)
}

// ReachableFrom returns the operators reachable from start (inclusive) in
// depth-first pre-order. Dangling input refs are skipped.
func ReachableFrom(p *Plan, start OpRef) []OpRef {
	var order []OpRef
	seen := make(map[OpRef]bool)
	stack := []OpRef{start}
	for len(stack) > 0 {
		ref := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[ref] || !p.ValidOp(ref) {
			continue
		}
		seen[ref] = true
		order = append(order, ref)
		in := InputsOf(p.ops[ref])
		for i := len(in) - 1; i >= 0; i-- {
			if !seen[in[i]] {
				stack = append(stack, in[i])
			}
		}
	}
	return order
}

// Reaches reports whether to is reachable from from by following input
// edges. An operator reaches itself.
func Reaches(p *Plan, from, to OpRef) bool {
	seen := make(map[OpRef]bool)
	stack := []OpRef{from}
	for len(stack) > 0 {
		ref := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if ref == to {
			return true
		}
		if seen[ref] || !p.ValidOp(ref) {
			continue
		}
		seen[ref] = true
		stack = append(stack, InputsOf(p.ops[ref])...)
	}
	return false
}

// Parents maps each reachable operator to the reachable operators that hold
// it as an input, one entry per edge.
func Parents(p *Plan) map[OpRef][]OpRef {
	parents := make(map[OpRef][]OpRef)
	for _, ref := range Reachable(p) {
		for _, in := range InputsOf(p.ops[ref]) {
			parents[in] = append(parents[in], ref)
		}
	}
	return parents
}

// ExprTree returns the expression slots under root in pre-order, left to
// right, each slot once. Cycles are cut at the first repeat.
func ExprTree(p *Plan, root ExprRef) []ExprRef {
	var order []ExprRef
	seen := make(map[ExprRef]bool)
	stack := []ExprRef{root}
	for len(stack) > 0 {
		ref := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[ref] || !p.ValidExpr(ref) {
			continue
		}
		seen[ref] = true
		order = append(order, ref)
		kids := exprChildren(p.exprs[ref])
		for i := len(kids) - 1; i >= 0; i-- {
			stack = append(stack, kids[i])
		}
	}
	return order
}

// VarOccurrences counts the references to each variable in the expressions
// of op. A sub-expression shared inside op counts once per path to it.
func VarOccurrences(p *Plan, op OpRef) map[Variable]int {
	counts := make(map[Variable]int)
	memo := make(map[ExprRef]map[Variable]int)
	for _, root := range ExprsOf(p.Op(op)) {
		for v, n := range occurrencesUnder(p, root, memo) {
			counts[v] += n
		}
	}
	return counts
}

// occurrencesUnder computes per-path variable counts bottom-up. Slots on a
// cycle contribute nothing.
func occurrencesUnder(p *Plan, root ExprRef, memo map[ExprRef]map[Variable]int) map[Variable]int {
	type frame struct {
		ref      ExprRef
		expanded bool
	}
	onStack := make(map[ExprRef]bool)
	stack := []frame{{ref: root}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, done := memo[f.ref]; done || !p.ValidExpr(f.ref) {
			continue
		}
		e := p.exprs[f.ref]
		if !f.expanded {
			if onStack[f.ref] {
				continue
			}
			onStack[f.ref] = true
			stack = append(stack, frame{ref: f.ref, expanded: true})
			for _, kid := range exprChildren(e) {
				stack = append(stack, frame{ref: kid})
			}
			continue
		}
		delete(onStack, f.ref)
		counts := make(map[Variable]int)
		if vr, ok := e.(VariableRef); ok {
			counts[vr.Var] = 1
		}
		for _, kid := range exprChildren(e) {
			for v, n := range memo[kid] {
				counts[v] += n
			}
		}
		memo[f.ref] = counts
	}
	return memo[root]
}

// Uses returns the reachable operators that need v from their input, in
// Reachable order: those whose expressions reference v and projections
// keeping v.
func Uses(p *Plan, v Variable) []OpRef {
	var uses []OpRef
	for _, ref := range Reachable(p) {
		if proj, ok := p.Op(ref).(Project); ok && slices.Contains(proj.Vars, v) {
			uses = append(uses, ref)
			continue
		}
		if VarOccurrences(p, ref)[v] > 0 {
			uses = append(uses, ref)
		}
	}
	return uses
}
