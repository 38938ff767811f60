package plan

import "slices"

// Operator is a logical plan node.
//
// This is a sealed interface. Every operator carries its ordered input
// edges in an Inputs field: 0 for sources, 2 for Join, 1 otherwise.
type Operator interface {
	operatorNode()
}

// EmptyTupleSource yields a single empty tuple.
type EmptyTupleSource struct {
	Inputs []OpRef
}

// DataSourceScan reads tuples from a named collection. It produces no
// plan variables of its own.
type DataSourceScan struct {
	Source string
	Inputs []OpRef
}

// Navigate evaluates Source for each input tuple and emits one output tuple
// per item of the result, binding the item to Var.
type Navigate struct {
	Var    Variable
	Source ExprRef
	Inputs []OpRef
}

// Assign binds Vars[i] to the value of Exprs[i] for each input tuple.
type Assign struct {
	Vars   []Variable
	Exprs  []ExprRef
	Inputs []OpRef
}

// Aggregate collapses all input tuples into one, binding Vars[i] to the
// aggregate call Exprs[i].
type Aggregate struct {
	Vars   []Variable
	Exprs  []ExprRef
	Inputs []OpRef
}

// Select keeps input tuples whose condition has a true effective boolean
// value.
type Select struct {
	Cond   ExprRef
	Inputs []OpRef
}

// Project keeps only Vars in each tuple.
type Project struct {
	Vars   []Variable
	Inputs []OpRef
}

// Join combines tuples of its two inputs that satisfy Cond.
type Join struct {
	Cond   ExprRef
	Inputs []OpRef
}

// DistributeResult is the plan sink. It emits Exprs for every input tuple.
type DistributeResult struct {
	Exprs  []ExprRef
	Inputs []OpRef
}

func (EmptyTupleSource) operatorNode() {}
func (DataSourceScan) operatorNode()   {}
func (Navigate) operatorNode()         {}
func (Assign) operatorNode()           {}
func (Aggregate) operatorNode()        {}
func (Select) operatorNode()           {}
func (Project) operatorNode()          {}
func (Join) operatorNode()             {}
func (DistributeResult) operatorNode() {}

// Kind is the printable name of an operator kind.
type Kind string

const (
	KindEmptyTupleSource Kind = "empty-tuple-source"
	KindDataSourceScan   Kind = "data-source-scan"
	KindNavigate         Kind = "navigate"
	KindAssign           Kind = "assign"
	KindAggregate        Kind = "aggregate"
	KindSelect           Kind = "select"
	KindProject          Kind = "project"
	KindJoin             Kind = "join"
	KindDistributeResult Kind = "distribute-result"
)

// KindOf returns the kind of op.
func KindOf(op Operator) Kind {
	switch op.(type) {
	case EmptyTupleSource:
		return KindEmptyTupleSource
	case DataSourceScan:
		return KindDataSourceScan
	case Navigate:
		return KindNavigate
	case Assign:
		return KindAssign
	case Aggregate:
		return KindAggregate
	case Select:
		return KindSelect
	case Project:
		return KindProject
	case Join:
		return KindJoin
	case DistributeResult:
		return KindDistributeResult
	default:
		panic(unknownOperator(op))
	}
}

// InputsOf returns the input edges of op. The slice must not be modified.
func InputsOf(op Operator) []OpRef {
	switch o := op.(type) {
	case EmptyTupleSource:
		return o.Inputs
	case DataSourceScan:
		return o.Inputs
	case Navigate:
		return o.Inputs
	case Assign:
		return o.Inputs
	case Aggregate:
		return o.Inputs
	case Select:
		return o.Inputs
	case Project:
		return o.Inputs
	case Join:
		return o.Inputs
	case DistributeResult:
		return o.Inputs
	default:
		panic(unknownOperator(op))
	}
}

// expectedInputs is the input arity of each kind.
func expectedInputs(op Operator) int {
	switch op.(type) {
	case EmptyTupleSource, DataSourceScan:
		return 0
	case Join:
		return 2
	default:
		return 1
	}
}

// withInputs returns a copy of op whose Inputs is in.
func withInputs(op Operator, in []OpRef) Operator {
	switch o := op.(type) {
	case EmptyTupleSource:
		o.Inputs = in
		return o
	case DataSourceScan:
		o.Inputs = in
		return o
	case Navigate:
		o.Inputs = in
		return o
	case Assign:
		o.Inputs = in
		return o
	case Aggregate:
		o.Inputs = in
		return o
	case Select:
		o.Inputs = in
		return o
	case Project:
		o.Inputs = in
		return o
	case Join:
		o.Inputs = in
		return o
	case DistributeResult:
		o.Inputs = in
		return o
	default:
		panic(unknownOperator(op))
	}
}

// ProducedVars returns the variables op binds. Sources produce none.
func ProducedVars(op Operator) []Variable {
	switch o := op.(type) {
	case Navigate:
		return []Variable{o.Var}
	case Assign:
		return o.Vars
	case Aggregate:
		return o.Vars
	case EmptyTupleSource, DataSourceScan, Select, Project, Join, DistributeResult:
		return nil
	default:
		panic(unknownOperator(op))
	}
}

// Produces reports whether op binds v.
func Produces(op Operator, v Variable) bool {
	return slices.Contains(ProducedVars(op), v)
}

// ExprsOf returns the expression slots owned by op, in field order.
func ExprsOf(op Operator) []ExprRef {
	switch o := op.(type) {
	case EmptyTupleSource, DataSourceScan, Project:
		return nil
	case Navigate:
		return []ExprRef{o.Source}
	case Assign:
		return o.Exprs
	case Aggregate:
		return o.Exprs
	case Select:
		return []ExprRef{o.Cond}
	case Join:
		return []ExprRef{o.Cond}
	case DistributeResult:
		return o.Exprs
	default:
		panic(unknownOperator(op))
	}
}

// cloneOperator returns a copy of op whose slices are not shared with op.
func cloneOperator(op Operator) Operator {
	switch o := op.(type) {
	case EmptyTupleSource:
		o.Inputs = slices.Clone(o.Inputs)
		return o
	case DataSourceScan:
		o.Inputs = slices.Clone(o.Inputs)
		return o
	case Navigate:
		o.Inputs = slices.Clone(o.Inputs)
		return o
	case Assign:
		o.Vars, o.Exprs, o.Inputs = slices.Clone(o.Vars), slices.Clone(o.Exprs), slices.Clone(o.Inputs)
		return o
	case Aggregate:
		o.Vars, o.Exprs, o.Inputs = slices.Clone(o.Vars), slices.Clone(o.Exprs), slices.Clone(o.Inputs)
		return o
	case Select:
		o.Inputs = slices.Clone(o.Inputs)
		return o
	case Project:
		o.Vars, o.Inputs = slices.Clone(o.Vars), slices.Clone(o.Inputs)
		return o
	case Join:
		o.Inputs = slices.Clone(o.Inputs)
		return o
	case DistributeResult:
		o.Exprs, o.Inputs = slices.Clone(o.Exprs), slices.Clone(o.Inputs)
		return o
	default:
		panic(unknownOperator(op))
	}
}

// withExprs returns a copy of op with its expression slots replaced, in the
// order ExprsOf reports them.
func withExprs(op Operator, exprs []ExprRef) Operator {
	switch o := op.(type) {
	case EmptyTupleSource, DataSourceScan, Project:
		return o
	case Navigate:
		o.Source = exprs[0]
		return o
	case Assign:
		o.Exprs = exprs
		return o
	case Aggregate:
		o.Exprs = exprs
		return o
	case Select:
		o.Cond = exprs[0]
		return o
	case Join:
		o.Cond = exprs[0]
		return o
	case DistributeResult:
		o.Exprs = exprs
		return o
	default:
		panic(unknownOperator(op))
	}
}
