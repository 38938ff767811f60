package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sort"

	"github.com/cockroachdb/errors"

	"github.com/roach88/xqopt/internal/eval"
	"github.com/roach88/xqopt/internal/plan"
	"github.com/roach88/xqopt/internal/planspec"
	"github.com/roach88/xqopt/internal/rewrite"
	"github.com/roach88/xqopt/internal/rules"
	"github.com/roach88/xqopt/internal/store"
	"github.com/roach88/xqopt/internal/xdm"
)

// Harness runs scenarios. Each run uses a fresh in-memory trace store and
// a fixed run id, so results are reproducible.
type Harness struct {
	logger *slog.Logger
}

// Option configures a Harness.
type Option func(*Harness)

// WithLogger sets the logger handed to the driver. Default: discard.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Harness) { h.logger = logger }
}

// New creates a harness.
func New(opts ...Option) *Harness {
	h := &Harness{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run executes a scenario with a default harness.
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	return New().Run(ctx, scenario)
}

// Run executes scenario and evaluates its expectations.
//
// The returned error covers setup problems only: an unloadable plan or
// document, an unknown rule, a store failure. A driver error is part of
// the result and checked against the expected state.
//
// Execution flow:
//  1. Compile the CUE plan
//  2. Evaluate it against the document, if any
//  3. Rewrite it with validation on, recording into an in-memory store
//  4. Read the run back and check the expectations
func (h *Harness) Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	spec, err := planspec.Load(scenario.Plan)
	if err != nil {
		return nil, errors.Wrapf(err, "load plan %s", scenario.Plan)
	}
	rs, err := rules.ByName(scenario.Rules)
	if err != nil {
		return nil, err
	}

	var doc *xdm.Document
	result := NewResult(scenario.Name)
	if scenario.Document != "" {
		if doc, err = xdm.ParseString(scenario.Document); err != nil {
			return nil, errors.Wrap(err, "parse document")
		}
		before, err := eval.Run(spec.Plan, doc)
		if err != nil {
			return nil, errors.Wrap(err, "evaluate input plan")
		}
		result.Before = before.Strings()
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, errors.Wrap(err, "failed to create in-memory store")
	}
	defer st.Close()

	name := spec.Name
	if name == "" {
		name = scenario.Name
	}
	driver := rewrite.New(rs,
		rewrite.WithLogger(h.logger),
		rewrite.WithValidation(true),
		rewrite.WithRecorder(st),
		rewrite.WithRunIDGenerator(rewrite.NewFixedGenerator("scenario-"+scenario.Name)),
	)
	res, runErr := driver.RunNamed(ctx, name, spec.Plan, scenario.MaxPasses)
	if runErr != nil && res.RunID == "" {
		return nil, runErr
	}
	if runErr != nil {
		result.RunError = runErr.Error()
	}
	result.RunID = res.RunID
	result.State = res.State
	result.Passes = res.Passes
	result.Explain = plan.Explain(spec.Plan)

	summary, err := st.Summarize(ctx, res.RunID)
	if err != nil {
		return nil, errors.Wrap(err, "read back run")
	}
	for rule, n := range summary.ByRule {
		result.Firings[rule] = n
	}

	if doc != nil && res.State != rewrite.StateFailed {
		after, err := eval.Run(spec.Plan, doc)
		if err != nil {
			return nil, errors.Wrap(err, "evaluate rewritten plan")
		}
		result.After = after.Strings()
	}

	checkExpectations(result, scenario)
	return result, nil
}

func checkExpectations(result *Result, scenario *Scenario) {
	want := scenario.Expect
	if string(result.State) != want.State {
		msg := fmt.Sprintf("state: expected %s, got %s", want.State, result.State)
		if result.RunError != "" {
			msg += ": " + result.RunError
		}
		result.AddError(msg)
	}

	for _, rule := range sortedKeys(want.Firings) {
		if got := result.Firings[rule]; got != want.Firings[rule] {
			result.AddError(fmt.Sprintf("firings[%s]: expected %d, got %d", rule, want.Firings[rule], got))
		}
	}
	if want.TotalFirings != nil {
		total := 0
		for _, n := range result.Firings {
			total += n
		}
		if total != *want.TotalFirings {
			result.AddError(fmt.Sprintf("total_firings: expected %d, got %d", *want.TotalFirings, total))
		}
	}
	if want.Passes != nil && result.Passes != *want.Passes {
		result.AddError(fmt.Sprintf("passes: expected %d, got %d", *want.Passes, result.Passes))
	}

	if scenario.Document == "" {
		return
	}
	if result.After != nil && !slices.Equal(result.Before, result.After) {
		result.AddError(fmt.Sprintf("result changed by rewriting: before %v, after %v", result.Before, result.After))
	}
	if want.Result != nil && !slices.Equal(result.Before, want.Result) {
		result.AddError(fmt.Sprintf("result: expected %v, got %v", want.Result, result.Before))
	}
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
