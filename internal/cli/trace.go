package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"slices"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/roach88/xqopt/internal/ir"
	"github.com/roach88/xqopt/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	RunID    string // optional - show one run in detail
	Limit    int
}

// TraceRun is one recorded run in a listing.
type TraceRun struct {
	ID        string `json:"id"`
	Plan      string `json:"plan"`
	Outcome   string `json:"outcome"`
	Passes    int64  `json:"passes"`
	MaxPasses int64  `json:"max_passes"`
	Rewritten bool   `json:"rewritten"`
}

// TraceDetail is one run with its firings.
type TraceDetail struct {
	Run        ir.RunRecord      `json:"run"`
	Firings    []ir.FiringRecord `json:"firings"`
	ByRule     map[string]int    `json:"by_rule"`
	ByPass     map[int64]int     `json:"by_pass"`
	Rewritten  bool              `json:"rewritten"`
	OutputPlan json.RawMessage   `json:"output_plan,omitempty"` // canonical plan encoding
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Inspect recorded rewrite runs",
		Long: `Read rewrite runs recorded with "optimize --db".

Without --run, lists the most recent runs. With --run, shows every rule
firing of that run in order, broken down by rule and by pass.

Examples:
  xqopt trace --db trace.db
  xqopt trace --db trace.db --run 01939b1e-...
  xqopt trace --db trace.db --run 01939b1e-... --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run id to show")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "number of runs to list")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	ctx := cmd.Context()

	st, err := store.Open(opts.Database)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeDatabase, fmt.Sprintf("failed to open database: %v", err), nil, nil)
	}
	defer st.Close()

	if opts.RunID == "" {
		return listRuns(ctx, f, st, opts.Limit)
	}

	sum, err := st.Summarize(ctx, opts.RunID)
	if errors.Is(err, store.ErrNotFound) {
		return f.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("run not found: %s", opts.RunID), nil, nil)
	}
	if err != nil {
		return f.Fail(ExitFailure, ErrCodeDatabase, err.Error(), nil, nil)
	}

	detail := TraceDetail{
		Run:       sum.Run,
		Firings:   sum.Firings,
		ByRule:    sum.ByRule,
		ByPass:    sum.ByPass,
		Rewritten: sum.Rewritten,
	}
	enc, err := st.ReadPlan(ctx, sum.Run.OutputHash)
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		return f.Fail(ExitFailure, ErrCodeDatabase, err.Error(), nil, nil)
	default:
		if detail.OutputPlan, err = ir.MarshalCanonical(enc); err != nil {
			return WrapExitError(ExitFailure, "encode plan", err)
		}
	}

	return f.Emit(detail, func(w io.Writer) { writeTraceDetail(w, detail, opts.Verbose) })
}

func listRuns(ctx context.Context, f *OutputFormatter, st *store.Store, limit int) error {
	if limit <= 0 {
		return f.Fail(ExitCommandError, ErrCodeBadFlag, fmt.Sprintf("--limit must be positive, got %d", limit), nil, nil)
	}
	records, err := st.ListRuns(ctx, limit)
	if err != nil {
		return f.Fail(ExitFailure, ErrCodeDatabase, err.Error(), nil, nil)
	}
	runs := make([]TraceRun, len(records))
	for i, r := range records {
		runs[i] = TraceRun{
			ID:        r.ID,
			Plan:      r.PlanName,
			Outcome:   r.Outcome,
			Passes:    r.Passes,
			MaxPasses: r.MaxPasses,
			Rewritten: r.InputHash != r.OutputHash,
		}
	}
	return f.Emit(runs, func(w io.Writer) {
		if len(runs) == 0 {
			fmt.Fprintln(w, "No runs recorded.")
			return
		}
		for _, r := range runs {
			changed := "unchanged"
			if r.Rewritten {
				changed = "rewritten"
			}
			fmt.Fprintf(w, "%s  %-20s %-16s %d/%d passes  %s\n", r.ID, r.Plan, r.Outcome, r.Passes, r.MaxPasses, changed)
		}
	})
}

func writeTraceDetail(w io.Writer, d TraceDetail, verbose bool) {
	r := d.Run
	fmt.Fprintf(w, "Run: %s\n", r.ID)
	fmt.Fprintf(w, "Plan: %s\n", r.PlanName)
	fmt.Fprintf(w, "Outcome: %s after %d of %d pass(es)\n", r.Outcome, r.Passes, r.MaxPasses)
	fmt.Fprintf(w, "Rewritten: %t\n", d.Rewritten)
	if verbose {
		fmt.Fprintf(w, "Input:  %s\n", r.InputHash)
		fmt.Fprintf(w, "Output: %s\n", r.OutputHash)
		fmt.Fprintf(w, "Engine: %s (encoding %s)\n", r.EngineVersion, r.EncodingVersion)
	}
	fmt.Fprintln(w)

	if len(d.Firings) == 0 {
		fmt.Fprintln(w, "No firings.")
		return
	}
	fmt.Fprintln(w, "Firings:")
	for _, fr := range d.Firings {
		fmt.Fprintf(w, "  [%d] pass %d  %-4s op #%d  %s\n", fr.Ordinal+1, fr.Pass, fr.Hook, fr.Op, fr.Rule)
	}
	fmt.Fprintln(w)
	writeCounts(w, "By rule", d.ByRule)

	passes := make([]int64, 0, len(d.ByPass))
	for p := range d.ByPass {
		passes = append(passes, p)
	}
	slices.Sort(passes)
	fmt.Fprintln(w, "By pass:")
	for _, p := range passes {
		fmt.Fprintf(w, "  %d: %d\n", p, d.ByPass[p])
	}
}
