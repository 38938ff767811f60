package cli

import (
	"fmt"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/roach88/xqopt/internal/plan"
	"github.com/roach88/xqopt/internal/planspec"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid     bool   `json:"valid"`
	Plan      string `json:"plan,omitempty"`
	Operators int    `json:"operators"`
	Reachable int    `json:"reachable"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <plan>",
		Short: "Check a plan without rewriting it",
		Long: `Compile a CUE plan description and check its structural invariants:
input arity, acyclicity, expression ownership and that every variable
use has a producer below it.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	spec, loadErr := loadPlan(path)
	if loadErr != nil {
		return failLoad(f, loadErr)
	}
	f.VerboseLog("Compiled %d operator(s) from %s", spec.Plan.NumOps(), path)

	if err := spec.Plan.Validate(); err != nil {
		return failInvariant(f, spec, err, ValidationResult{Plan: spec.Name})
	}

	result := ValidationResult{
		Valid:     true,
		Plan:      spec.Name,
		Operators: spec.Plan.NumOps(),
		Reachable: len(plan.Reachable(spec.Plan)),
	}
	return f.Emit(result, func(w io.Writer) {
		fmt.Fprintf(w, "✓ Plan valid (%d operators, %d reachable)\n", result.Operators, result.Reachable)
	})
}

// failInvariant reports a plan that failed validation, naming the
// violated invariant and the operator it was found at.
func failInvariant(f *OutputFormatter, spec *planspec.Spec, err error, data any) error {
	var ie *plan.InvariantError
	if !errors.As(err, &ie) {
		return f.Fail(ExitFailure, ErrCodeGeneric, err.Error(), nil, nil)
	}
	details := map[string]any{"invariant": string(ie.Code)}
	if name, ok := spec.OpName(ie.Op); ok {
		details["op"] = name
	}
	return f.Fail(ExitFailure, ErrCodeInvariant, ie.Message, details, data)
}
