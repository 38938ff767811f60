package plan

import (
	"fmt"
	"strings"

	"github.com/roach88/xqopt/internal/ir"
)

// Explain renders the plan as an indented tree, sink first, inputs indented
// below their consumer. An operator with several consumers is printed once
// and tagged with a label; later consumers print a back reference:
//
//	distribute-result $3
//	  join true()
//	    navigate $2 <- child($1, "b")  [shared 1]
//	      ...
//	    ^1
//
// The output depends only on the reachable plan, never on arena slot numbers.
func Explain(p *Plan) string {
	if p.root == NoOp {
		return "(empty plan)\n"
	}
	multi := make(map[OpRef]bool)
	for ref, parents := range Parents(p) {
		if len(parents) > 1 {
			multi[ref] = true
		}
	}

	type frame struct {
		ref   OpRef
		depth int
	}
	var sb strings.Builder
	labels := make(map[OpRef]int)
	exprs := newExprFormatter(p)
	stack := []frame{{ref: p.root}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		indent := strings.Repeat("  ", f.depth)
		if label, ok := labels[f.ref]; ok {
			fmt.Fprintf(&sb, "%s^%d\n", indent, label)
			continue
		}
		line := describe(p.ops[f.ref], exprs)
		if multi[f.ref] {
			labels[f.ref] = len(labels) + 1
			line += fmt.Sprintf("  [shared %d]", labels[f.ref])
		}
		sb.WriteString(indent)
		sb.WriteString(line)
		sb.WriteByte('\n')
		in := InputsOf(p.ops[f.ref])
		for i := len(in) - 1; i >= 0; i-- {
			stack = append(stack, frame{ref: in[i], depth: f.depth + 1})
		}
	}
	return sb.String()
}

func describe(op Operator, exprs *exprFormatter) string {
	switch o := op.(type) {
	case EmptyTupleSource:
		return string(KindEmptyTupleSource)
	case DataSourceScan:
		return fmt.Sprintf("%s %q", KindDataSourceScan, o.Source)
	case Navigate:
		return fmt.Sprintf("%s %s <- %s", KindNavigate, o.Var, exprs.format(o.Source))
	case Assign:
		return fmt.Sprintf("%s %s", KindAssign, bindings(o.Vars, o.Exprs, exprs))
	case Aggregate:
		return fmt.Sprintf("%s %s", KindAggregate, bindings(o.Vars, o.Exprs, exprs))
	case Select:
		return fmt.Sprintf("%s %s", KindSelect, exprs.format(o.Cond))
	case Project:
		names := make([]string, len(o.Vars))
		for i, v := range o.Vars {
			names[i] = v.String()
		}
		return fmt.Sprintf("%s [%s]", KindProject, strings.Join(names, ", "))
	case Join:
		return fmt.Sprintf("%s %s", KindJoin, exprs.format(o.Cond))
	case DistributeResult:
		parts := make([]string, len(o.Exprs))
		for i, e := range o.Exprs {
			parts[i] = exprs.format(e)
		}
		return fmt.Sprintf("%s %s", KindDistributeResult, strings.Join(parts, ", "))
	default:
		panic(unknownOperator(op))
	}
}

func bindings(vars []Variable, refs []ExprRef, exprs *exprFormatter) string {
	parts := make([]string, len(vars))
	for i, v := range vars {
		rhs := "?"
		if i < len(refs) {
			rhs = exprs.format(refs[i])
		}
		parts[i] = fmt.Sprintf("%s <- %s", v, rhs)
	}
	return strings.Join(parts, ", ")
}

// FormatExpr renders the expression under ref in function-call syntax.
func FormatExpr(p *Plan, ref ExprRef) string {
	return newExprFormatter(p).format(ref)
}

// exprFormatter renders expressions bottom-up with an explicit stack and
// memoizes rendered slots.
type exprFormatter struct {
	p    *Plan
	memo map[ExprRef]string
}

func newExprFormatter(p *Plan) *exprFormatter {
	return &exprFormatter{p: p, memo: make(map[ExprRef]string)}
}

func (f *exprFormatter) format(root ExprRef) string {
	type frame struct {
		ref      ExprRef
		expanded bool
	}
	onStack := make(map[ExprRef]bool)
	stack := []frame{{ref: root}}
	for len(stack) > 0 {
		fr := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, done := f.memo[fr.ref]; done {
			continue
		}
		if !f.p.ValidExpr(fr.ref) {
			f.memo[fr.ref] = fmt.Sprintf("<dangling %s>", fr.ref)
			continue
		}
		e := f.p.exprs[fr.ref]
		kids := exprChildren(e)
		if !fr.expanded && len(kids) > 0 {
			if onStack[fr.ref] {
				f.memo[fr.ref] = fmt.Sprintf("<cycle %s>", fr.ref)
				continue
			}
			onStack[fr.ref] = true
			stack = append(stack, frame{ref: fr.ref, expanded: true})
			for _, k := range kids {
				stack = append(stack, frame{ref: k})
			}
			continue
		}
		delete(onStack, fr.ref)
		f.memo[fr.ref] = f.render(e)
	}
	return f.memo[root]
}

func (f *exprFormatter) render(e Expr) string {
	switch x := e.(type) {
	case VariableRef:
		return x.Var.String()
	case Constant:
		return ir.Format(x.Value)
	case FunctionCall:
		args := make([]string, len(x.Args))
		for i, a := range x.Args {
			args[i] = f.memo[a]
		}
		s := string(x.Fn) + "(" + strings.Join(args, ", ") + ")"
		if len(x.Annotations) > 0 {
			s += " " + ir.Format(ir.Object(x.Annotations))
		}
		return s
	case Extension:
		parts := make([]string, len(x.Pragmas))
		for i, pr := range x.Pragmas {
			parts[i] = fmt.Sprintf("(# %s %s #)", pr.Name, pr.Content)
		}
		return strings.Join(parts, " ") + " { " + f.memo[x.Input] + " }"
	default:
		panic(unknownExpr(e))
	}
}
