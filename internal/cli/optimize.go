package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/roach88/xqopt/internal/plan"
	"github.com/roach88/xqopt/internal/planspec"
	"github.com/roach88/xqopt/internal/rewrite"
	"github.com/roach88/xqopt/internal/rules"
	"github.com/roach88/xqopt/internal/store"
)

// DefaultMaxPasses is the pass budget when --max-passes is not given.
const DefaultMaxPasses = 10

// OptimizeOptions holds flags for the optimize command.
type OptimizeOptions struct {
	*RootOptions
	MaxPasses int
	Rules     []string
	Database  string // record the run in this trace store
	Validate  bool   // validate after every pass
	Output    string // write the rewritten plan as CUE
	Metrics   bool   // include metric totals in the output
}

// OptimizeResult is the outcome of one optimize run.
type OptimizeResult struct {
	Plan       string             `json:"plan"`
	RunID      string             `json:"run_id"`
	State      string             `json:"state"`
	Passes     int                `json:"passes"`
	Firings    map[string]int     `json:"firings"`
	InputHash  string             `json:"input_hash"`
	OutputHash string             `json:"output_hash"`
	Explain    string             `json:"explain"`
	Metrics    map[string]float64 `json:"metrics,omitempty"`
}

// NewOptimizeCommand creates the optimize command.
func NewOptimizeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &OptimizeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "optimize <plan>",
		Short: "Rewrite a plan until no rule fires",
		Long: `Compile a CUE plan description and rewrite it with the axis fusion
rules until a pass changes nothing or the pass budget runs out.

Exit codes:
  0 - Plan converged
  1 - Invalid plan, budget exceeded or internal error
  2 - Command error (missing file, bad flags, database error)

Examples:
  xqopt optimize plan.cue
  xqopt optimize plan.cue --rules descendant-or-self/child --max-passes 3
  xqopt optimize ./plans/q1 --db trace.db --output q1.opt.cue
  xqopt optimize plan.cue --format json --metrics`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOptimize(opts, args[0], cmd)
		},
	}

	cmd.Flags().IntVar(&opts.MaxPasses, "max-passes", DefaultMaxPasses, "pass budget")
	cmd.Flags().StringSliceVar(&opts.Rules, "rules", nil, "rules in application order (default: all)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "record the run in this SQLite trace store")
	cmd.Flags().BoolVar(&opts.Validate, "validate", true, "validate the plan after every pass")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the rewritten plan as CUE to this file")
	cmd.Flags().BoolVar(&opts.Metrics, "metrics", false, "report metric totals")

	return cmd
}

func runOptimize(opts *OptimizeOptions, path string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	ctx := cmd.Context()

	if opts.MaxPasses <= 0 {
		return f.Fail(ExitCommandError, ErrCodeBadFlag, fmt.Sprintf("--max-passes must be positive, got %d", opts.MaxPasses), nil, nil)
	}
	rs, err := rules.ByName(opts.Rules)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeBadFlag, err.Error(), map[string]any{"known": rules.Names()}, nil)
	}

	spec, loadErr := loadPlan(path)
	if loadErr != nil {
		return failLoad(f, loadErr)
	}
	name := spec.Name
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	f.VerboseLog("Loaded plan %s: %d operators, %d expressions", name, spec.Plan.NumOps(), spec.Plan.NumExprs())

	reg := prometheus.NewRegistry()
	metrics, err := rewrite.NewMetrics(reg)
	if err != nil {
		return WrapExitError(ExitFailure, "register metrics", err)
	}
	driverOpts := []rewrite.Option{
		rewrite.WithLogger(opts.logger(f.GetErrWriter())),
		rewrite.WithValidation(opts.Validate),
		rewrite.WithMetrics(metrics),
	}

	var st *store.Store
	if opts.Database != "" {
		st, err = store.Open(opts.Database)
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeDatabase, fmt.Sprintf("failed to open database: %v", err), nil, nil)
		}
		defer st.Close()
		if _, err := st.WritePlan(ctx, plan.Encode(spec.Plan)); err != nil {
			return f.Fail(ExitCommandError, ErrCodeDatabase, err.Error(), nil, nil)
		}
		driverOpts = append(driverOpts, rewrite.WithRecorder(st))
	}

	inputHash, err := plan.Fingerprint(spec.Plan)
	if err != nil {
		return WrapExitError(ExitFailure, "fingerprint input plan", err)
	}

	res, runErr := rewrite.New(rs, driverOpts...).RunNamed(ctx, name, spec.Plan, opts.MaxPasses)
	result := OptimizeResult{
		Plan:       name,
		RunID:      res.RunID,
		State:      string(res.State),
		Passes:     res.Passes,
		Firings:    res.Firings,
		InputHash:  inputHash,
		OutputHash: res.Fingerprint,
		Explain:    plan.Explain(spec.Plan),
	}
	if opts.Metrics {
		if result.Metrics, err = metricTotals(reg); err != nil {
			return WrapExitError(ExitFailure, "gather metrics", err)
		}
	}
	if errors.Is(runErr, rewrite.ErrInvalidPlan) {
		return failInvariant(f, spec, runErr, result)
	}
	if runErr != nil {
		var details any
		var ie *rewrite.InternalError
		if errors.As(runErr, &ie) && len(ie.Details) > 0 {
			details = ie.Details
		}
		return f.Fail(ExitFailure, rewriteErrorCode(runErr), runErr.Error(), details, result)
	}

	if st != nil {
		if _, err := st.WritePlan(ctx, plan.Encode(spec.Plan)); err != nil {
			return f.Fail(ExitCommandError, ErrCodeDatabase, err.Error(), nil, nil)
		}
	}
	if opts.Output != "" {
		src, err := planspec.Format(name, spec.Plan)
		if err != nil {
			return WrapExitError(ExitFailure, "format plan", err)
		}
		if err := os.WriteFile(opts.Output, src, 0o644); err != nil {
			return f.Fail(ExitCommandError, ErrCodeWriteFailed, fmt.Sprintf("failed to write %s: %v", opts.Output, err), nil, nil)
		}
		f.VerboseLog("Wrote %s", opts.Output)
	}

	return f.Emit(result, func(w io.Writer) {
		fmt.Fprintf(w, "plan %s: %s after %d pass(es), run %s\n", result.Plan, result.State, result.Passes, result.RunID)
		writeCounts(w, "firings", result.Firings)
		if len(result.Metrics) > 0 {
			fmt.Fprintln(w, "metrics:")
			for _, k := range sortedKeys(result.Metrics) {
				fmt.Fprintf(w, "  %s %g\n", k, result.Metrics[k])
			}
		}
		fmt.Fprintln(w)
		fmt.Fprint(w, result.Explain)
	})
}

// failLoad reports a plan loading error: missing files are command
// errors, malformed plans are failures.
func failLoad(f *OutputFormatter, e *LoadError) error {
	exit := ExitFailure
	if e.Code == ErrCodeNotFound {
		exit = ExitCommandError
	}
	var details any
	if line := e.Line(); line > 0 {
		details = map[string]any{"file": e.Pos.Filename(), "line": line, "column": e.Pos.Column()}
	}
	return f.Fail(exit, e.Code, e.Message, details, nil)
}

// metricTotals flattens the registry into "name{label=value}" keys.
func metricTotals(reg *prometheus.Registry) (map[string]float64, error) {
	families, err := reg.Gather()
	if err != nil {
		return nil, err
	}
	out := make(map[string]float64)
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			key := mf.GetName()
			if labels := m.GetLabel(); len(labels) > 0 {
				parts := make([]string, len(labels))
				for i, l := range labels {
					parts[i] = fmt.Sprintf("%s=%q", l.GetName(), l.GetValue())
				}
				key += "{" + strings.Join(parts, ",") + "}"
			}
			out[key] = m.GetCounter().GetValue()
		}
	}
	return out, nil
}

func writeCounts(w io.Writer, title string, counts map[string]int) {
	if len(counts) == 0 {
		fmt.Fprintf(w, "%s: none\n", title)
		return
	}
	fmt.Fprintf(w, "%s:\n", title)
	for _, k := range sortedKeys(counts) {
		fmt.Fprintf(w, "  %s: %d\n", k, counts[k])
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
