package plan

// Compact returns a new plan holding only the operators and expressions
// reachable from the root of p. Slots are renumbered in pre-order from the
// root. Variables keep their ids and the variable counter carries over, so
// fresh variables minted on the result never collide with existing ones.
//
// p must be valid; Compact does not re-check invariants.
func (p *Plan) Compact() *Plan {
	out := New()
	out.lastVar = p.lastVar
	reachable := Reachable(p)
	if len(reachable) == 0 {
		return out
	}

	opMap := make(map[OpRef]OpRef, len(reachable))
	for i, ref := range reachable {
		opMap[ref] = OpRef(i)
	}
	exprMap := make(map[ExprRef]ExprRef)
	for _, ref := range reachable {
		for _, root := range ExprsOf(p.ops[ref]) {
			for _, e := range ExprTree(p, root) {
				if _, ok := exprMap[e]; !ok {
					exprMap[e] = ExprRef(len(exprMap))
				}
			}
		}
	}

	out.exprs = make([]Expr, len(exprMap))
	for old, nu := range exprMap {
		e := cloneExpr(p.exprs[old])
		switch x := e.(type) {
		case FunctionCall:
			for i, a := range x.Args {
				x.Args[i] = exprMap[a]
			}
			e = x
		case Extension:
			x.Input = exprMap[x.Input]
			e = x
		}
		out.exprs[nu] = e
	}

	out.ops = make([]Operator, len(reachable))
	for _, ref := range reachable {
		op := cloneOperator(p.ops[ref])
		in := InputsOf(op)
		for i, r := range in {
			in[i] = opMap[r]
		}
		refs := ExprsOf(op)
		mapped := make([]ExprRef, len(refs))
		for i, r := range refs {
			mapped[i] = exprMap[r]
		}
		out.ops[opMap[ref]] = withExprs(op, mapped)
	}
	out.root = opMap[p.root]
	return out
}
