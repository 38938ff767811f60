package harness

import (
	"bytes"
	"os"
	"path/filepath"
	"slices"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"github.com/roach88/xqopt/internal/rewrite"
	"github.com/roach88/xqopt/internal/rules"
)

// DefaultMaxPasses is the pass budget of a scenario that names none.
const DefaultMaxPasses = 10

// Scenario describes one rewrite run and what it must produce.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Plan is the CUE plan file or package directory to optimize.
	// Relative paths are resolved against the scenario file.
	Plan string `yaml:"plan"`

	// Rules lists rule names in application order. Empty means the
	// default rule set.
	Rules []string `yaml:"rules,omitempty"`

	// MaxPasses is the pass budget. Zero means DefaultMaxPasses.
	MaxPasses int `yaml:"max_passes,omitempty"`

	// Document is an optional XML document. When set, the plan is
	// evaluated against it before and after rewriting and both results
	// must be equal.
	Document string `yaml:"document,omitempty"`

	Expect Expectation `yaml:"expect"`
}

// Expectation is what a scenario run must produce.
type Expectation struct {
	// State is the terminal driver state (converged, budget_exceeded, failed).
	State string `yaml:"state"`

	// Firings maps rule names to exact firing counts. Rules not listed
	// are not checked.
	Firings map[string]int `yaml:"firings,omitempty"`

	// TotalFirings, if set, is the exact number of firings of all rules.
	TotalFirings *int `yaml:"total_firings,omitempty"`

	// Passes, if set, is the exact number of passes started.
	Passes *int `yaml:"passes,omitempty"`

	// Result, if set, is the expected evaluation result as node paths or
	// atomic values. Requires Document.
	Result []string `yaml:"result,omitempty"`
}

var knownStates = map[string]bool{
	string(rewrite.StateConverged):      true,
	string(rewrite.StateBudgetExceeded): true,
	string(rewrite.StateFailed):         true,
}

// LoadScenario reads and parses a scenario YAML file. The plan path is
// resolved relative to the scenario file's directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read scenario file")
	}
	return ParseScenario(data, filepath.Dir(path))
}

// ParseScenario parses scenario YAML, resolving a relative plan path
// against baseDir. Unknown fields are rejected.
func ParseScenario(data []byte, baseDir string) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, errors.Wrap(err, "failed to parse YAML")
	}

	if scenario.Plan != "" && !filepath.IsAbs(scenario.Plan) && baseDir != "" {
		scenario.Plan = filepath.Join(baseDir, scenario.Plan)
	}
	if scenario.MaxPasses == 0 {
		scenario.MaxPasses = DefaultMaxPasses
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, errors.Wrap(err, "invalid scenario")
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return errors.New("name is required")
	}
	if s.Description == "" {
		return errors.New("description is required")
	}
	if s.Plan == "" {
		return errors.New("plan is required")
	}
	if _, err := os.Stat(s.Plan); err != nil {
		return errors.Newf("plan not found: %s", s.Plan)
	}
	if s.MaxPasses < 0 {
		return errors.Newf("max_passes must be positive, got %d", s.MaxPasses)
	}
	if _, err := rules.ByName(s.Rules); err != nil {
		return errors.Wrap(err, "rules")
	}

	if s.Expect.State == "" {
		return errors.New("expect.state is required")
	}
	if !knownStates[s.Expect.State] {
		return errors.Newf("expect.state: unknown state %q", s.Expect.State)
	}
	known := rules.Names()
	for name, count := range s.Expect.Firings {
		if !slices.Contains(known, name) {
			return errors.Newf("expect.firings: unknown rule %q", name)
		}
		if count < 0 {
			return errors.Newf("expect.firings[%s]: count must be non-negative", name)
		}
	}
	if s.Expect.TotalFirings != nil && *s.Expect.TotalFirings < 0 {
		return errors.New("expect.total_firings must be non-negative")
	}
	if s.Expect.Result != nil && s.Document == "" {
		return errors.New("expect.result requires a document")
	}
	return nil
}
