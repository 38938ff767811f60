package rewrite

import (
	"github.com/cespare/xxhash/v2"

	"github.com/roach88/xqopt/internal/plan"
)

// oscillationDetector remembers the printed plan hash after each pass.
//
// A hash seen before means the rule set brought the plan back to an earlier
// shape and will cycle forever. The detector only diagnoses: the budget
// still decides when the run stops.
type oscillationDetector struct {
	seen        map[uint64]int // hash -> first pass that produced it
	repeatPass  int
	repeatsPass int
}

func newOscillationDetector() *oscillationDetector {
	return &oscillationDetector{seen: make(map[uint64]int)}
}

// Observe records the plan state after pass. Pass 0 is the input plan.
// It returns the earlier pass with the same state, if any.
func (o *oscillationDetector) Observe(pass int, p *plan.Plan) (int, bool) {
	h := xxhash.Sum64String(plan.Explain(p))
	if earlier, ok := o.seen[h]; ok {
		if o.repeatPass == 0 {
			o.repeatPass, o.repeatsPass = pass, earlier
		}
		return earlier, true
	}
	o.seen[h] = pass
	return 0, false
}

// FirstRepeat returns the first pass whose result repeated an earlier
// state, and that earlier pass.
func (o *oscillationDetector) FirstRepeat() (pass, earlier int, ok bool) {
	return o.repeatPass, o.repeatsPass, o.repeatPass != 0
}
