package plan

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// InvariantCode categorizes plan invariant violations.
type InvariantCode string

const (
	// CodeDanglingRef indicates a ref outside the arena.
	CodeDanglingRef InvariantCode = "DANGLING_REF"

	// CodeCycle indicates a cycle in the operator graph.
	CodeCycle InvariantCode = "CYCLE"

	// CodeExprCycle indicates an expression that reaches itself.
	CodeExprCycle InvariantCode = "EXPR_CYCLE"

	// CodeArity indicates an operator with the wrong number of inputs or
	// mismatched variable/expression lists.
	CodeArity InvariantCode = "ARITY"

	// CodeInvalidVariable indicates a use or binding of NoVariable.
	CodeInvalidVariable InvariantCode = "INVALID_VARIABLE"

	// CodeDuplicateProducer indicates two operators bind the same variable.
	CodeDuplicateProducer InvariantCode = "DUPLICATE_PRODUCER"

	// CodeMissingProducer indicates a variable use with no producer below it.
	CodeMissingProducer InvariantCode = "MISSING_PRODUCER"

	// CodeSharedExpr indicates an expression slot owned by two operators.
	CodeSharedExpr InvariantCode = "SHARED_EXPRESSION"
)

// InvariantError describes the first invariant violation found by Validate.
// It signals an internally inconsistent plan, never a user error.
type InvariantError struct {
	Code    InvariantCode
	Message string
	Op      OpRef
	Expr    ExprRef
	Var     Variable
	// Path is the operator cycle for CodeCycle, first node repeated last.
	Path []OpRef
}

// Error implements the error interface.
func (e *InvariantError) Error() string {
	if e.Op != NoOp {
		return fmt.Sprintf("%s: %s (op=%s)", e.Code, e.Message, e.Op)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsInvariantError reports whether err wraps an *InvariantError.
func IsInvariantError(err error) bool {
	var ie *InvariantError
	return errors.As(err, &ie)
}

func newInvariantError(code InvariantCode, op OpRef, format string, args ...any) *InvariantError {
	return &InvariantError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Op:      op,
		Expr:    NoExpr,
	}
}

// assertion marks an invariant error as an internal compiler error.
func assertion(ie *InvariantError) error {
	return errors.WithAssertionFailure(ie)
}

func unknownExpr(e Expr) string {
	return fmt.Sprintf("plan: unknown expression type %T", e)
}

func unknownOperator(op Operator) string {
	return fmt.Sprintf("plan: unknown operator type %T", op)
}
