package harness

import (
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// Snapshot renders the deterministic part of a result: the terminal
// state, pass count, firings per rule and the rewritten plan. Run ids and
// error text are left out.
func Snapshot(r *Result) []byte {
	var sb strings.Builder
	fmt.Fprintf(&sb, "scenario: %s\n", r.Scenario)
	fmt.Fprintf(&sb, "state: %s\n", r.State)
	fmt.Fprintf(&sb, "passes: %d\n", r.Passes)
	sb.WriteString("firings:\n")
	for _, rule := range sortedKeys(r.Firings) {
		fmt.Fprintf(&sb, "  %s: %d\n", rule, r.Firings[rule])
	}
	sb.WriteString("plan:\n")
	for _, line := range strings.SplitAfter(r.Explain, "\n") {
		if line != "" {
			sb.WriteString("  " + line)
		}
	}
	return []byte(sb.String())
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(t.Context(), scenario)
	if err != nil {
		return nil, err
	}
	AssertGolden(t, scenario.Name, result)
	return result, nil
}

// AssertGolden compares an existing result against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, name string, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, Snapshot(result))
}
