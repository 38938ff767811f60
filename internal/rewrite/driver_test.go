package rewrite

import (
	"context"
	"fmt"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/xqopt/internal/ir"
	"github.com/roach88/xqopt/internal/plan"
	xqtest "github.com/roach88/xqopt/internal/testutil"
)

// funcRule adapts two functions to the Rule interface.
type funcRule struct {
	name string
	pre  func(plan.OpRef, *Context) (bool, error)
	post func(plan.OpRef, *Context) (bool, error)
}

func (r funcRule) Name() string { return r.name }

func (r funcRule) RewritePre(ref plan.OpRef, ctx *Context) (bool, error) {
	if r.pre == nil {
		return false, nil
	}
	return r.pre(ref, ctx)
}

func (r funcRule) RewritePost(ref plan.OpRef, ctx *Context) (bool, error) {
	if r.post == nil {
		return false, nil
	}
	return r.post(ref, ctx)
}

func newTestDriver(rules []Rule, opts ...Option) *Driver {
	opts = append([]Option{WithLogger(xqtest.DiscardLogger()), WithRunIDGenerator(NewFixedGenerator("run-1", "run-2", "run-3"))}, opts...)
	return New(rules, opts...)
}

// navPlan builds: distribute($2) <- navigate $2 <- child($1, "b") <- assign $1 <- root() <- ets.
func navPlan() (*plan.Plan, plan.OpRef, plan.ExprRef) {
	p := plan.New()
	src := p.AddEmptySource()
	v0 := p.NewVariable()
	doc := p.AddAssign(src, []plan.Variable{v0}, []plan.ExprRef{p.Call(plan.FnRoot)})
	v1 := p.NewVariable()
	call := p.Call(plan.FnChild, p.Var(v0), p.Const(ir.String("b")))
	nav := p.AddNavigate(doc, v1, call)
	p.SetRoot(p.AddDistribute(nav, p.Var(v1)))
	return p, nav, call
}

// renameAxis returns a hook that rewrites the navigate source call from one
// axis to another.
func renameAxis(from, to plan.FunctionID) func(plan.OpRef, *Context) (bool, error) {
	return func(ref plan.OpRef, ctx *Context) (bool, error) {
		p := ctx.Plan()
		nav, ok := p.Op(ref).(plan.Navigate)
		if !ok {
			return false, nil
		}
		call, ok := p.Expr(nav.Source).(plan.FunctionCall)
		if !ok || call.Fn != from {
			return false, nil
		}
		p.ReplaceExpr(nav.Source, plan.FunctionCall{Fn: to, Args: call.Args})
		return true, nil
	}
}

// =============================================================================
// Convergence
// =============================================================================

func TestDriver_Run_NoRulesConverges(t *testing.T) {
	p, _, _ := navPlan()
	res, err := newTestDriver(nil).Run(context.Background(), p, 5)

	require.NoError(t, err)
	assert.Equal(t, StateConverged, res.State)
	assert.Equal(t, 1, res.Passes)
	assert.Zero(t, res.TotalFirings())
	assert.Equal(t, "run-1", res.RunID)
	assert.Len(t, res.Fingerprint, 64)
}

func TestDriver_Run_InvalidBudget(t *testing.T) {
	p, _, _ := navPlan()
	for _, max := range []int{0, -3} {
		_, err := newTestDriver(nil).Run(context.Background(), p, max)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidBudget))
		assert.False(t, IsInternalError(err))
	}
}

func TestDriver_Run_SingleFiringThenFixpoint(t *testing.T) {
	p, _, call := navPlan()
	rule := funcRule{name: "child-to-descendant", post: renameAxis(plan.FnChild, plan.FnDescendant)}

	res, err := newTestDriver([]Rule{rule}).Run(context.Background(), p, 10)
	require.NoError(t, err)

	assert.Equal(t, StateConverged, res.State)
	assert.Equal(t, 2, res.Passes)
	assert.Equal(t, map[string]int{"child-to-descendant": 1}, res.Firings)
	assert.Equal(t, plan.FnDescendant, p.Expr(call).(plan.FunctionCall).Fn)
}

func TestDriver_Run_Idempotent(t *testing.T) {
	p, _, _ := navPlan()
	rule := funcRule{name: "child-to-descendant", post: renameAxis(plan.FnChild, plan.FnDescendant)}
	d := newTestDriver([]Rule{rule})

	first, err := d.Run(context.Background(), p, 10)
	require.NoError(t, err)
	second, err := d.Run(context.Background(), p, 10)
	require.NoError(t, err)

	assert.Equal(t, 1, second.Passes)
	assert.Zero(t, second.TotalFirings())
	assert.Equal(t, first.Fingerprint, second.Fingerprint)
}

func TestDriver_Run_EmptyPlan(t *testing.T) {
	res, err := newTestDriver(nil).Run(context.Background(), plan.New(), 1)
	require.NoError(t, err)
	assert.Equal(t, StateConverged, res.State)
}

// =============================================================================
// Traversal order
// =============================================================================

func TestDriver_Run_VisitOrderAndSharing(t *testing.T) {
	p := plan.New()
	src := p.AddEmptySource()
	v := p.NewVariable()
	doc := p.AddAssign(src, []plan.Variable{v}, []plan.ExprRef{p.Call(plan.FnRoot)})
	join := p.AddJoin(doc, doc, p.Const(ir.Bool(true)))
	p.SetRoot(join)

	var events []string
	record := func(hook string) func(plan.OpRef, *Context) (bool, error) {
		return func(ref plan.OpRef, ctx *Context) (bool, error) {
			events = append(events, fmt.Sprintf("%s %s", hook, plan.KindOf(ctx.Plan().Op(ref))))
			return false, nil
		}
	}
	rule := funcRule{name: "trace", pre: record("pre"), post: record("post")}

	_, err := newTestDriver([]Rule{rule}).Run(context.Background(), p, 1)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"pre join",
		"pre assign",
		"pre empty-tuple-source",
		"post empty-tuple-source",
		"post assign",
		"post join",
	}, events)
}

func TestDriver_Run_RuleOrderPerNode(t *testing.T) {
	p, nav, _ := navPlan()
	var order []string
	hook := func(name string) func(plan.OpRef, *Context) (bool, error) {
		return func(ref plan.OpRef, _ *Context) (bool, error) {
			if ref == nav {
				order = append(order, name)
			}
			return false, nil
		}
	}
	rules := []Rule{
		funcRule{name: "a", pre: hook("a.pre"), post: hook("a.post")},
		funcRule{name: "b", pre: hook("b.pre"), post: hook("b.post")},
	}

	_, err := newTestDriver(rules).Run(context.Background(), p, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.pre", "b.pre", "a.post", "b.post"}, order)
}

func TestDriver_Run_PassNumberInContext(t *testing.T) {
	p, nav, _ := navPlan()
	var passes []int
	rule := funcRule{name: "passes", post: func(ref plan.OpRef, ctx *Context) (bool, error) {
		if ref == nav {
			passes = append(passes, ctx.Pass())
		}
		return false, nil
	}}
	flip := funcRule{name: "flip", post: renameAxis(plan.FnChild, plan.FnDescendant)}

	_, err := newTestDriver([]Rule{rule, flip}).Run(context.Background(), p, 5)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, passes)
}

// =============================================================================
// Budget and oscillation
// =============================================================================

func TestDriver_Run_OscillatingPairExceedsBudget(t *testing.T) {
	p, _, _ := navPlan()
	rules := []Rule{
		funcRule{name: "undo", pre: renameAxis(plan.FnDescendant, plan.FnChild)},
		funcRule{name: "do", post: renameAxis(plan.FnChild, plan.FnDescendant)},
	}

	res, err := newTestDriver(rules).Run(context.Background(), p, 4)
	require.Error(t, err)

	assert.True(t, IsBudgetExceeded(err))
	assert.True(t, IsInternalError(err))
	assert.Equal(t, StateBudgetExceeded, res.State)
	assert.Equal(t, 4, res.Passes)
	assert.Equal(t, 4, res.Firings["do"])
	assert.Equal(t, 3, res.Firings["undo"])

	var ie *InternalError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, "4", ie.Details["max_passes"])
	assert.Equal(t, "2", ie.Details["first_repeat_pass"])
	assert.Equal(t, "1", ie.Details["repeats_pass"])
}

func TestDriver_Run_BudgetOfOneWithChange(t *testing.T) {
	p, _, _ := navPlan()
	rule := funcRule{name: "flip", post: renameAxis(plan.FnChild, plan.FnDescendant)}

	res, err := newTestDriver([]Rule{rule}).Run(context.Background(), p, 1)
	require.Error(t, err)
	assert.True(t, IsBudgetExceeded(err))
	assert.Equal(t, 1, res.Passes)

	var ie *InternalError
	require.True(t, errors.As(err, &ie))
	_, repeated := ie.Details["first_repeat_pass"]
	assert.False(t, repeated)
}

// =============================================================================
// Errors
// =============================================================================

func TestDriver_Run_RuleErrorIsInternal(t *testing.T) {
	p, _, _ := navPlan()
	sentinel := errors.New("lookup failed")
	rule := funcRule{name: "broken", post: func(plan.OpRef, *Context) (bool, error) {
		return false, errors.WithAssertionFailure(sentinel)
	}}

	res, err := newTestDriver([]Rule{rule}).Run(context.Background(), p, 3)
	require.Error(t, err)

	assert.True(t, IsInternalError(err))
	assert.True(t, errors.Is(err, sentinel))
	assert.Equal(t, StateFailed, res.State)

	var ie *InternalError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, CodeRuleFailed, ie.Code)
	assert.Equal(t, "broken", ie.Rule)
	assert.Equal(t, 1, ie.Pass)
}

func TestDriver_Run_ValidationCatchesCycle(t *testing.T) {
	p, nav, _ := navPlan()
	doc := p.Inputs(nav)[0]
	rule := funcRule{name: "make-cycle", post: func(ref plan.OpRef, ctx *Context) (bool, error) {
		if ref != doc || ctx.Plan().Inputs(doc)[0] == nav {
			return false, nil
		}
		ctx.Plan().SetInput(doc, 0, nav)
		return true, nil
	}}

	_, err := newTestDriver([]Rule{rule}, WithValidation(true)).Run(context.Background(), p, 3)
	require.Error(t, err)
	assert.True(t, IsInvariantViolation(err))
	assert.True(t, plan.IsInvariantError(err))
}

func TestDriver_Run_ValidationRejectsInvalidInput(t *testing.T) {
	p, nav, _ := navPlan()
	doc := p.Inputs(nav)[0]
	p.SetInput(nav, 0, p.Inputs(doc)[0])
	calls := 0
	rule := funcRule{name: "count", pre: func(plan.OpRef, *Context) (bool, error) {
		calls++
		return false, nil
	}}

	res, err := newTestDriver([]Rule{rule}, WithValidation(true)).Run(context.Background(), p, 3)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidPlan))
	assert.False(t, IsInvariantViolation(err), "not blamed on a pass")
	var ie *plan.InvariantError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, plan.CodeMissingProducer, ie.Code)
	assert.Equal(t, Result{}, res)
	assert.Zero(t, calls)

	res, err = newTestDriver([]Rule{rule}).Run(context.Background(), p, 3)
	require.NoError(t, err)
	assert.Equal(t, StateConverged, res.State)
}

func TestDriver_Run_ValidationAcceptsGoodRewrites(t *testing.T) {
	p, _, _ := navPlan()
	rule := funcRule{name: "flip", post: renameAxis(plan.FnChild, plan.FnDescendant)}

	res, err := newTestDriver([]Rule{rule}, WithValidation(true)).Run(context.Background(), p, 3)
	require.NoError(t, err)
	assert.Equal(t, StateConverged, res.State)
}

func TestDriver_Run_Cancelled(t *testing.T) {
	p, _, _ := navPlan()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := newTestDriver(nil).Run(ctx, p, 3)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, StateCancelled, res.State)
	assert.Equal(t, 0, res.Passes)
}

// =============================================================================
// Metrics and recording
// =============================================================================

func TestDriver_Run_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)

	p, _, _ := navPlan()
	rule := funcRule{name: "flip", post: renameAxis(plan.FnChild, plan.FnDescendant)}
	_, err = newTestDriver([]Rule{rule}, WithMetrics(m)).Run(context.Background(), p, 5)
	require.NoError(t, err)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Passes))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Firings.WithLabelValues("flip")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Runs.WithLabelValues("converged")))
}

func TestNewMetrics_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewMetrics(reg)
	require.NoError(t, err)
	_, err = NewMetrics(reg)
	assert.Error(t, err)
}

type memRecorder struct {
	runs    []ir.RunRecord
	firings [][]ir.FiringRecord
	err     error
}

func (m *memRecorder) RecordRun(_ context.Context, run ir.RunRecord, firings []ir.FiringRecord) error {
	m.runs = append(m.runs, run)
	m.firings = append(m.firings, firings)
	return m.err
}

func TestDriver_Run_Recorder(t *testing.T) {
	p, nav, _ := navPlan()
	rec := &memRecorder{}
	rule := funcRule{name: "flip", post: renameAxis(plan.FnChild, plan.FnDescendant)}

	res, err := newTestDriver([]Rule{rule}, WithRecorder(rec)).RunNamed(context.Background(), "nav", p, 5)
	require.NoError(t, err)

	require.Len(t, rec.runs, 1)
	run := rec.runs[0]
	assert.Equal(t, "run-1", run.ID)
	assert.Equal(t, "nav", run.PlanName)
	assert.Equal(t, "converged", run.Outcome)
	assert.Equal(t, int64(2), run.Passes)
	assert.Equal(t, int64(5), run.MaxPasses)
	assert.Equal(t, res.Fingerprint, run.OutputHash)
	assert.NotEqual(t, run.InputHash, run.OutputHash)

	require.Len(t, rec.firings[0], 1)
	f := rec.firings[0][0]
	assert.Equal(t, "flip", f.Rule)
	assert.Equal(t, HookPost, f.Hook)
	assert.Equal(t, int64(nav), f.Op)
	assert.Equal(t, int64(1), f.Pass)
	assert.Len(t, f.ID, 64)
}

func TestDriver_Run_RecorderErrorSurfaces(t *testing.T) {
	p, _, _ := navPlan()
	rec := &memRecorder{err: errors.New("disk full")}

	_, err := newTestDriver(nil, WithRecorder(rec)).Run(context.Background(), p, 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.False(t, IsInternalError(err))
}

func TestDriver_Rules(t *testing.T) {
	d := newTestDriver([]Rule{funcRule{name: "a"}, funcRule{name: "b"}})
	assert.Equal(t, []string{"a", "b"}, d.Rules())
}
