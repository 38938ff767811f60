package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/xqopt/internal/plan"
	"github.com/roach88/xqopt/internal/planspec"
)

// ExplainOptions holds flags for the explain command.
type ExplainOptions struct {
	*RootOptions
	CUE bool // print the normalized CUE description instead of the tree
}

// ExplainResult is a rendered plan.
type ExplainResult struct {
	Plan        string `json:"plan"`
	Fingerprint string `json:"fingerprint"`
	Explain     string `json:"explain"`
	CUE         string `json:"cue,omitempty"`
}

// NewExplainCommand creates the explain command.
func NewExplainCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExplainOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "explain <plan>",
		Short: "Print a plan as an operator tree",
		Long: `Compile a CUE plan description and print it sink first, inputs
indented below their consumer. Shared operators are printed once and
referenced by label.

With --cue the plan is printed back as a normalized CUE description.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExplain(opts, args[0], cmd)
		},
	}
	cmd.Flags().BoolVar(&opts.CUE, "cue", false, "print the normalized CUE description")
	return cmd
}

func runExplain(opts *ExplainOptions, path string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	spec, loadErr := loadPlan(path)
	if loadErr != nil {
		return failLoad(f, loadErr)
	}
	fp, err := plan.Fingerprint(spec.Plan)
	if err != nil {
		return WrapExitError(ExitFailure, "fingerprint plan", err)
	}
	result := ExplainResult{Plan: spec.Name, Fingerprint: fp, Explain: plan.Explain(spec.Plan)}
	if opts.CUE {
		src, err := planspec.Format(spec.Name, spec.Plan)
		if err != nil {
			return WrapExitError(ExitFailure, "format plan", err)
		}
		result.CUE = string(src)
	}

	return f.Emit(result, func(w io.Writer) {
		if opts.CUE {
			fmt.Fprint(w, result.CUE)
			return
		}
		fmt.Fprint(w, result.Explain)
	})
}
