package rewrite

import (
	"fmt"
	"strconv"
)

// passBudget counts passes against maxPasses.
//
// It bounds non-converging rule sets: a rule pair that undoes each other
// changes the plan on every pass and would otherwise never reach a fixpoint.
type passBudget struct {
	max     int
	current int
}

func newPassBudget(maxPasses int) *passBudget {
	return &passBudget{max: maxPasses}
}

// next starts a new pass and returns its number, or false when the budget
// is already spent.
func (b *passBudget) next() (int, bool) {
	if b.current >= b.max {
		return b.current, false
	}
	b.current++
	return b.current, true
}

// Current returns the number of passes started.
func (b *passBudget) Current() int { return b.current }

// exceeded builds the budget error. osc may add oscillation details.
func (b *passBudget) exceeded(osc *oscillationDetector) *InternalError {
	details := map[string]string{
		"passes":     strconv.Itoa(b.current),
		"max_passes": strconv.Itoa(b.max),
	}
	if pass, earlier, ok := osc.FirstRepeat(); ok {
		details["first_repeat_pass"] = strconv.Itoa(pass)
		details["repeats_pass"] = strconv.Itoa(earlier)
	}
	return &InternalError{
		Code:    CodeBudgetExceeded,
		Message: fmt.Sprintf("no fixpoint after %d passes", b.current),
		Pass:    b.current,
		Details: details,
	}
}
