package store

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/roach88/xqopt/internal/ir"
)

// RunSummary is a recorded run with its firings broken down for display.
type RunSummary struct {
	Run     ir.RunRecord
	Firings []ir.FiringRecord
	// ByRule counts firings per rule name.
	ByRule map[string]int
	// ByPass counts firings per pass. A converged run's last pass has none.
	ByPass map[int64]int
	// Rewritten is true when the output fingerprint differs from the input.
	Rewritten bool
}

// Summarize loads a run and its firings.
func (s *Store) Summarize(ctx context.Context, runID string) (RunSummary, error) {
	run, err := s.ReadRun(ctx, runID)
	if err != nil {
		return RunSummary{}, err
	}
	firings, err := s.ReadFirings(ctx, runID)
	if err != nil {
		return RunSummary{}, errors.Wrapf(err, "summarize run %s", runID)
	}

	sum := RunSummary{
		Run:       run,
		Firings:   firings,
		ByRule:    make(map[string]int),
		ByPass:    make(map[int64]int),
		Rewritten: run.InputHash != run.OutputHash,
	}
	for _, f := range firings {
		sum.ByRule[f.Rule]++
		sum.ByPass[f.Pass]++
	}
	if int64(len(sum.ByPass)) > run.Passes {
		return sum, errors.AssertionFailedf("run %s: firings in %d passes, run reports %d", runID, len(sum.ByPass), run.Passes)
	}
	return sum, nil
}
