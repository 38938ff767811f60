package harness

import (
	"github.com/roach88/xqopt/internal/rewrite"
)

// Result is the outcome of a scenario execution.
type Result struct {
	// Scenario is the scenario name.
	Scenario string `json:"scenario"`

	// Pass is true when every expectation held.
	Pass bool `json:"pass"`

	// Errors lists failed expectations. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	RunID  string        `json:"run_id"`
	State  rewrite.State `json:"state"`
	Passes int           `json:"passes"`

	// Firings counts firings per rule, read back from the trace store.
	Firings map[string]int `json:"firings"`

	// RunError is the driver error message for failed or budget-exceeded
	// runs.
	RunError string `json:"run_error,omitempty"`

	// Explain is plan.Explain of the rewritten plan.
	Explain string `json:"explain"`

	// Before and After are the evaluation results of the input and
	// rewritten plans. Nil when the scenario has no document.
	Before []string `json:"before,omitempty"`
	After  []string `json:"after,omitempty"`
}

// NewResult creates a passing result for the named scenario.
func NewResult(name string) *Result {
	return &Result{
		Scenario: name,
		Pass:     true,
		Errors:   []string{},
		Firings:  make(map[string]int),
	}
}

// AddError records a failed expectation and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
