package plan

import "strconv"

// Variable is an opaque variable identifier minted by Plan.NewVariable.
// The zero value is invalid.
type Variable uint32

// NoVariable is the invalid variable.
const NoVariable Variable = 0

// String renders the variable as "$N".
func (v Variable) String() string {
	return "$" + strconv.FormatUint(uint64(v), 10)
}

// OpRef is a handle to an operator slot in a plan arena.
type OpRef int

// ExprRef is a handle to an expression slot in a plan arena.
type ExprRef int

// NoOp and NoExpr are the invalid refs.
const (
	NoOp   OpRef   = -1
	NoExpr ExprRef = -1
)

func (r OpRef) String() string   { return "#" + strconv.Itoa(int(r)) }
func (r ExprRef) String() string { return "e" + strconv.Itoa(int(r)) }
