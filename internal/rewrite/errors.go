package rewrite

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// InternalError is an internal compiler error raised while rewriting.
//
// Internal errors include:
//   - Budget exceeded: the rule set did not converge within maxPasses
//   - Invariant violated: per-pass validation found a broken plan
//   - Rule failed: a rule hook returned an error (for example a missing
//     producer during lookup)
type InternalError struct {
	// Code identifies the error category.
	Code InternalErrorCode

	// Message is a human-readable description.
	Message string

	// Pass is the pass during which the error surfaced.
	Pass int

	// Rule names the rule for CodeRuleFailed.
	Rule string

	// Details contains additional context.
	Details map[string]string

	// Err is the underlying cause, if any.
	Err error
}

// InternalErrorCode categorizes internal errors.
type InternalErrorCode string

const (
	// CodeBudgetExceeded indicates the pass budget ran out before a fixpoint.
	CodeBudgetExceeded InternalErrorCode = "BUDGET_EXCEEDED"

	// CodeInvariantViolated indicates the plan failed validation after a pass.
	CodeInvariantViolated InternalErrorCode = "INVARIANT_VIOLATED"

	// CodeRuleFailed indicates a rule hook returned an error.
	CodeRuleFailed InternalErrorCode = "RULE_FAILED"
)

// ErrInvalidBudget is returned for a non-positive pass budget.
var ErrInvalidBudget = errors.New("max passes must be positive")

// ErrInvalidPlan marks an input plan that failed validation before the
// first pass. The cause is the *plan.InvariantError.
var ErrInvalidPlan = errors.New("input plan is invalid")

// Error implements the error interface.
func (e *InternalError) Error() string {
	msg := fmt.Sprintf("%s: %s (pass=%d)", e.Code, e.Message, e.Pass)
	if e.Rule != "" {
		msg = fmt.Sprintf("%s: %s (pass=%d, rule=%s)", e.Code, e.Message, e.Pass, e.Rule)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the cause.
func (e *InternalError) Unwrap() error { return e.Err }

// IsInternalError reports whether err is an internal compiler error: an
// *InternalError or any error marked as an assertion failure.
func IsInternalError(err error) bool {
	var ie *InternalError
	if errors.As(err, &ie) {
		return true
	}
	return err != nil && errors.HasAssertionFailure(err)
}

// IsBudgetExceeded reports whether err is a budget exhaustion.
func IsBudgetExceeded(err error) bool {
	return hasCode(err, CodeBudgetExceeded)
}

// IsInvariantViolation reports whether err is a failed per-pass validation.
func IsInvariantViolation(err error) bool {
	return hasCode(err, CodeInvariantViolated)
}

func hasCode(err error, code InternalErrorCode) bool {
	var ie *InternalError
	if errors.As(err, &ie) {
		return ie.Code == code
	}
	return false
}

// newRuleError wraps an error returned by a rule hook.
func newRuleError(rule, hook string, pass int, err error) *InternalError {
	return &InternalError{
		Code:    CodeRuleFailed,
		Message: fmt.Sprintf("%s hook failed", hook),
		Pass:    pass,
		Rule:    rule,
		Err:     err,
	}
}

// newInvariantError wraps a failed validation.
func newInvariantError(pass int, err error) *InternalError {
	return &InternalError{
		Code:    CodeInvariantViolated,
		Message: "plan invariant violated after pass",
		Pass:    pass,
		Err:     err,
	}
}
