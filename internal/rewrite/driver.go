package rewrite

import (
	"context"
	"log/slog"

	"github.com/cockroachdb/errors"

	"github.com/roach88/xqopt/internal/ir"
	"github.com/roach88/xqopt/internal/plan"
)

// State is the terminal state of a driver run.
type State string

const (
	// StateConverged means a pass finished without any rule firing.
	StateConverged State = "converged"
	// StateBudgetExceeded means maxPasses passes all changed the plan.
	StateBudgetExceeded State = "budget_exceeded"
	// StateFailed means a rule or per-pass validation raised an error.
	StateFailed State = "failed"
	// StateCancelled means the context was cancelled between passes.
	StateCancelled State = "cancelled"
)

// Hook names used in firing records.
const (
	HookPre  = "pre"
	HookPost = "post"
)

// Recorder receives a finished run. The trace store implements it.
type Recorder interface {
	RecordRun(ctx context.Context, run ir.RunRecord, firings []ir.FiringRecord) error
}

// Result summarizes a driver run.
type Result struct {
	RunID string
	State State
	// Passes is the number of passes started, including the final
	// unchanged pass of a converged run.
	Passes int
	// Firings counts hooks that returned true, per rule name.
	Firings map[string]int
	// Fingerprint is plan.Fingerprint of the plan when the run stopped.
	Fingerprint string
}

// TotalFirings returns the number of firings across all rules.
func (r Result) TotalFirings() int {
	n := 0
	for _, c := range r.Firings {
		n += c
	}
	return n
}

// Driver applies an ordered rule set to plans until a fixpoint.
//
// The rule order never changes after construction; it is the order hooks
// run in at every operator.
type Driver struct {
	rules    []Rule
	logger   *slog.Logger
	validate bool
	metrics  *Metrics
	recorder Recorder
	runIDs   RunIDGenerator
}

// Option configures a Driver.
type Option func(*Driver)

// WithLogger sets the run logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(d *Driver) { d.logger = logger }
}

// WithValidation validates the input plan and the plan after every pass.
// A broken input is rejected with ErrInvalidPlan; a violation after a pass
// stops the run with CodeInvariantViolated.
func WithValidation(enabled bool) Option {
	return func(d *Driver) { d.validate = enabled }
}

// WithMetrics counts passes, firings and runs on m.
func WithMetrics(m *Metrics) Option {
	return func(d *Driver) { d.metrics = m }
}

// WithRecorder hands every finished run to r.
func WithRecorder(r Recorder) Option {
	return func(d *Driver) { d.recorder = r }
}

// WithRunIDGenerator sets the run id source. Default: UUIDv7Generator.
func WithRunIDGenerator(g RunIDGenerator) Option {
	return func(d *Driver) { d.runIDs = g }
}

// New creates a driver for rules. The slice is copied.
func New(rules []Rule, opts ...Option) *Driver {
	d := &Driver{
		rules:  append([]Rule(nil), rules...),
		logger: slog.Default(),
		runIDs: UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Rules returns the rule names in application order.
func (d *Driver) Rules() []string {
	names := make([]string, len(d.rules))
	for i, r := range d.rules {
		names[i] = r.Name()
	}
	return names
}

// Run rewrites p in place until no rule fires or maxPasses passes have all
// changed the plan. maxPasses must be positive.
//
// Budget exhaustion is an *InternalError with CodeBudgetExceeded, never a
// silent success. Cancellation of ctx is checked between passes. With
// validation enabled an input plan that fails Validate is rejected with
// ErrInvalidPlan before any pass runs.
func (d *Driver) Run(ctx context.Context, p *plan.Plan, maxPasses int) (Result, error) {
	return d.RunNamed(ctx, "", p, maxPasses)
}

// RunNamed is Run with a plan name for the trace record.
func (d *Driver) RunNamed(ctx context.Context, name string, p *plan.Plan, maxPasses int) (Result, error) {
	if maxPasses <= 0 {
		return Result{}, errors.Wrapf(ErrInvalidBudget, "got %d", maxPasses)
	}
	if d.validate {
		if err := p.Validate(); err != nil {
			return Result{}, errors.Mark(errors.Wrap(err, "validate input plan"), ErrInvalidPlan)
		}
	}

	run := &runState{
		driver:  d,
		plan:    p,
		result:  Result{RunID: d.runIDs.Generate(), Firings: make(map[string]int)},
		budget:  newPassBudget(maxPasses),
		osc:     newOscillationDetector(),
		rctx:    NewContext(p, d.logger),
		firings: nil,
	}
	inputHash, err := plan.Fingerprint(p)
	if err != nil {
		return Result{}, errors.Wrap(err, "fingerprint input plan")
	}
	run.osc.Observe(0, p)

	d.logger.Info("rewrite run started",
		"run_id", run.result.RunID,
		"plan", name,
		"rules", len(d.rules),
		"max_passes", maxPasses,
	)

	runErr := run.loop(ctx)

	run.result.Passes = run.budget.Current()
	if run.result.Fingerprint, err = plan.Fingerprint(p); err != nil && runErr == nil {
		runErr = errors.Wrap(err, "fingerprint output plan")
		run.result.State = StateFailed
	}
	d.metrics.run(run.result.State)

	d.logger.Info("rewrite run finished",
		"run_id", run.result.RunID,
		"state", string(run.result.State),
		"passes", run.result.Passes,
		"firings", run.result.TotalFirings(),
	)

	if d.recorder != nil {
		record := ir.RunRecord{
			ID:              run.result.RunID,
			PlanName:        name,
			InputHash:       inputHash,
			OutputHash:      run.result.Fingerprint,
			Outcome:         string(run.result.State),
			Passes:          int64(run.result.Passes),
			MaxPasses:       int64(maxPasses),
			EngineVersion:   ir.EngineVersion,
			EncodingVersion: ir.EncodingVersion,
		}
		if err := d.recorder.RecordRun(ctx, record, run.firings); err != nil {
			if runErr != nil {
				return run.result, errors.WithSecondaryError(runErr, err)
			}
			return run.result, errors.Wrap(err, "record run")
		}
	}
	return run.result, runErr
}

// runState carries one run's mutable bookkeeping.
type runState struct {
	driver  *Driver
	plan    *plan.Plan
	result  Result
	budget  *passBudget
	osc     *oscillationDetector
	rctx    *Context
	firings []ir.FiringRecord
}

func (r *runState) loop(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			r.result.State = StateCancelled
			return errors.Wrap(err, "rewrite cancelled")
		}
		pass, ok := r.budget.next()
		if !ok {
			r.result.State = StateBudgetExceeded
			return r.budget.exceeded(r.osc)
		}
		r.rctx.pass = pass
		r.driver.metrics.pass()

		changed, err := r.runPass(pass)
		if err != nil {
			r.result.State = StateFailed
			return err
		}
		if r.driver.validate {
			if err := r.plan.Validate(); err != nil {
				r.result.State = StateFailed
				return newInvariantError(pass, err)
			}
		}
		if !changed {
			r.result.State = StateConverged
			return nil
		}
		if earlier, repeated := r.osc.Observe(pass, r.plan); repeated {
			r.driver.logger.Debug("plan state repeated",
				"run_id", r.result.RunID,
				"pass", pass,
				"repeats_pass", earlier,
			)
		}
	}
}

// runPass visits every operator reachable from the root once. Pre hooks run
// when an operator is first popped, post hooks when it is popped again after
// its inputs.
func (r *runState) runPass(pass int) (bool, error) {
	p := r.plan
	if p.Root() == plan.NoOp {
		return false, nil
	}
	type frame struct {
		ref      plan.OpRef
		expanded bool
	}
	changed := false
	visited := make(map[plan.OpRef]bool)
	stack := []frame{{ref: p.Root()}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if f.expanded {
			fired, err := r.applyHooks(pass, f.ref, HookPost)
			if err != nil {
				return false, err
			}
			changed = changed || fired
			continue
		}
		if visited[f.ref] {
			continue
		}
		visited[f.ref] = true

		fired, err := r.applyHooks(pass, f.ref, HookPre)
		if err != nil {
			return false, err
		}
		changed = changed || fired

		stack = append(stack, frame{ref: f.ref, expanded: true})
		in := p.Inputs(f.ref)
		for i := len(in) - 1; i >= 0; i-- {
			if !visited[in[i]] {
				stack = append(stack, frame{ref: in[i]})
			}
		}
	}
	return changed, nil
}

func (r *runState) applyHooks(pass int, ref plan.OpRef, hook string) (bool, error) {
	changed := false
	for _, rule := range r.driver.rules {
		var (
			fired bool
			err   error
		)
		if hook == HookPre {
			fired, err = rule.RewritePre(ref, r.rctx)
		} else {
			fired, err = rule.RewritePost(ref, r.rctx)
		}
		if err != nil {
			return false, newRuleError(rule.Name(), hook, pass, err)
		}
		if !fired {
			continue
		}
		changed = true
		r.rctx.Invalidate()
		r.result.Firings[rule.Name()]++
		r.driver.metrics.firing(rule.Name())
		if err := r.recordFiring(pass, rule.Name(), hook, ref); err != nil {
			return false, err
		}
		r.driver.logger.Debug("rule fired",
			"run_id", r.result.RunID,
			"rule", rule.Name(),
			"hook", hook,
			"op", int(ref),
			"pass", pass,
		)
	}
	return changed, nil
}

func (r *runState) recordFiring(pass int, rule, hook string, ref plan.OpRef) error {
	if r.driver.recorder == nil {
		return nil
	}
	ordinal := int64(len(r.firings))
	id, err := ir.FiringID(r.result.RunID, rule, hook, int64(ref), int64(pass), ordinal)
	if err != nil {
		return errors.Wrap(err, "firing id")
	}
	r.firings = append(r.firings, ir.FiringRecord{
		ID:      id,
		RunID:   r.result.RunID,
		Pass:    int64(pass),
		Ordinal: ordinal,
		Rule:    rule,
		Hook:    hook,
		Op:      int64(ref),
	})
	return nil
}
