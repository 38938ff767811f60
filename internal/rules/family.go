package rules

import (
	"github.com/cockroachdb/errors"

	"github.com/roach88/xqopt/internal/plan"
	"github.com/roach88/xqopt/internal/rewrite"
)

// Family returns the axis fusion rules in application order.
//
// descendant-or-self/descendant collapses duplicates and is only
// result-preserving under a duplicate-eliminating consumer; see the
// package documentation.
func Family() []FusionSpec {
	return []FusionSpec{
		DescendantOrSelfChild,
		{
			Name:  "descendant-or-self/descendant",
			Outer: plan.FnDescendant,
			Inner: plan.FnDescendantOrSelf,
			Fused: plan.FnDescendant,
		},
		{
			Name:  "self/child",
			Outer: plan.FnChild,
			Inner: plan.FnSelf,
			Fused: plan.FnChild,
		},
		{
			Name:  "child/self",
			Outer: plan.FnSelf,
			Inner: plan.FnChild,
			Fused: plan.FnChild,
		},
	}
}

// Default returns a rule for every member of Family.
func Default() []rewrite.Rule {
	specs := Family()
	out := make([]rewrite.Rule, len(specs))
	for i, s := range specs {
		out[i] = NewAxisFusion(s)
	}
	return out
}

// ByName returns the named rules in the order given. An empty list selects
// Default.
func ByName(names []string) ([]rewrite.Rule, error) {
	if len(names) == 0 {
		return Default(), nil
	}
	index := make(map[string]FusionSpec)
	for _, s := range Family() {
		index[s.Name] = s
	}
	out := make([]rewrite.Rule, 0, len(names))
	for _, name := range names {
		spec, ok := index[name]
		if !ok {
			return nil, errors.Newf("unknown rule %q", name)
		}
		out = append(out, NewAxisFusion(spec))
	}
	return out, nil
}

// Names returns the names of all known rules.
func Names() []string {
	specs := Family()
	names := make([]string, len(specs))
	for i, s := range specs {
		names[i] = s.Name
	}
	return names
}
