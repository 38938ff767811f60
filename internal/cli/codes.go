package cli

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"cuelang.org/go/cue/token"
	"github.com/cockroachdb/errors"

	"github.com/roach88/xqopt/internal/plan"
	"github.com/roach88/xqopt/internal/planspec"
	"github.com/roach88/xqopt/internal/rewrite"
)

// Error code constants, shared by all commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeLoadFailed  = "E004" // CUE load or schema failure
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeWriteFailed = "E007" // File write error
	ErrCodeDatabase    = "E008" // Trace store error
	ErrCodeBadFlag     = "E009" // Invalid flag value

	// Plan description errors
	ErrCodePlanShape    = "E101" // plan, root or ops malformed
	ErrCodeOperatorKind = "E102" // Unknown operator kind
	ErrCodeInputs       = "E103" // Bad input reference or arity
	ErrCodeVariables    = "E104" // Bad variable or binding
	ErrCodeExpression   = "E105" // Malformed expression
	ErrCodeInvariant    = "E120" // Plan violates a structural invariant

	// Rewrite errors
	ErrCodeInternal       = "E200" // Internal compiler error
	ErrCodeBudgetExceeded = "E201" // No fixpoint within the pass budget
	ErrCodeRuleFailed     = "E202" // A rule hook failed
	ErrCodeInvariantPass  = "E203" // A pass left the plan inconsistent
)

// LoadError is a plan loading failure with its error code.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Line returns the CUE line of the error, or 0.
func (e *LoadError) Line() int {
	if e.Pos.IsValid() {
		return e.Pos.Line()
	}
	return 0
}

// loadPlan compiles a CUE plan file or package directory.
func loadPlan(path string) (*planspec.Spec, *LoadError) {
	if _, err := os.Stat(path); err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("plan not found: %s", path)}
	}
	spec, err := planspec.Load(path)
	if err != nil {
		return nil, convertCompileError(err)
	}
	return spec, nil
}

// convertCompileError converts a planspec error to a LoadError with
// position info.
func convertCompileError(err error) *LoadError {
	var compileErr *planspec.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Message: fmt.Sprintf("%s: %s", compileErr.Field, compileErr.Message),
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{Code: ErrCodeLoadFailed, Message: err.Error()}
}

var indexSuffix = regexp.MustCompile(`\[\d+\]$`)

// MapFieldToErrorCode maps a CompileError field path such as
// "ops.kids.expr.args[1]" to an error code by its last segment.
func MapFieldToErrorCode(field string) string {
	last := field
	if i := strings.LastIndex(field, "."); i >= 0 {
		last = field[i+1:]
	}
	last = indexSuffix.ReplaceAllString(last, "")
	switch last {
	case "cue":
		return ErrCodeLoadFailed
	case "plan", "root", "ops":
		return ErrCodePlanShape
	case "kind":
		return ErrCodeOperatorKind
	case "input", "inputs":
		return ErrCodeInputs
	case "var", "vars", "bind":
		return ErrCodeVariables
	case "expr", "exprs", "cond", "args", "annotations", "pragmas", "call", "const", "ext":
		return ErrCodeExpression
	default:
		return ErrCodeGeneric
	}
}

// rewriteErrorCode classifies a driver error.
func rewriteErrorCode(err error) string {
	var invErr *plan.InvariantError
	switch {
	case errors.Is(err, rewrite.ErrInvalidPlan):
		return ErrCodeInvariant
	case rewrite.IsBudgetExceeded(err):
		return ErrCodeBudgetExceeded
	case rewrite.IsInvariantViolation(err):
		return ErrCodeInvariantPass
	case errors.As(err, &invErr):
		return ErrCodeInvariant
	case rewrite.IsInternalError(err):
		var ie *rewrite.InternalError
		if errors.As(err, &ie) && ie.Code == rewrite.CodeRuleFailed {
			return ErrCodeRuleFailed
		}
		return ErrCodeInternal
	default:
		return ErrCodeGeneric
	}
}
