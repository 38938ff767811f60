package rewrite

import (
	"log/slog"

	"github.com/roach88/xqopt/internal/plan"
)

// Rule is a plan transformation.
//
// Both hooks receive the visited operator and the pass context and report
// whether they changed the plan. A hook whose precondition does not hold,
// including because the rule already fired, must return false, nil and
// leave the plan untouched. Decisions may depend on the visited operator,
// the operators below it and the liveness facts in Context, never on the
// pass number or visiting order.
type Rule interface {
	Name() string
	RewritePre(ref plan.OpRef, ctx *Context) (bool, error)
	RewritePost(ref plan.OpRef, ctx *Context) (bool, error)
}

// Context is handed to rule hooks. Liveness facts are computed on first
// use and dropped whenever a hook changes the plan.
type Context struct {
	plan   *plan.Plan
	pass   int
	logger *slog.Logger

	uses map[plan.Variable][]plan.OpRef
}

// NewContext returns a context for applying rules to p outside a driver
// run, as tests do.
func NewContext(p *plan.Plan, logger *slog.Logger) *Context {
	if logger == nil {
		logger = slog.Default()
	}
	return &Context{plan: p, logger: logger}
}

// Plan returns the plan being rewritten.
func (c *Context) Plan() *plan.Plan { return c.plan }

// Pass returns the current pass number, starting at 1. Informational only.
func (c *Context) Pass() int { return c.pass }

// Logger returns the run logger.
func (c *Context) Logger() *slog.Logger { return c.logger }

// VarUses returns the reachable operators that read v: those whose
// expressions reference it and projections keeping it. See plan.Uses.
func (c *Context) VarUses(v plan.Variable) []plan.OpRef {
	if c.uses == nil {
		c.uses = make(map[plan.Variable][]plan.OpRef)
	}
	uses, ok := c.uses[v]
	if !ok {
		uses = plan.Uses(c.plan, v)
		c.uses[v] = uses
	}
	return uses
}

// IsAncestor reports whether b lies strictly below a, i.e. a consumes the
// output of b through one or more input edges.
func (c *Context) IsAncestor(a, b plan.OpRef) bool {
	if a == b {
		return false
	}
	return plan.Reaches(c.plan, a, b)
}

// Invalidate drops cached facts. The driver calls it after every change;
// code applying rules by hand must do the same.
func (c *Context) Invalidate() {
	c.uses = nil
}
