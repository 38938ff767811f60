package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/xqopt/internal/ir"
)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRun creates a run record with minimal required fields.
func createTestRun(id string) ir.RunRecord {
	return ir.RunRecord{
		ID:              id,
		PlanName:        "test-plan",
		InputHash:       "in-hash",
		OutputHash:      "out-hash",
		Outcome:         "converged",
		Passes:          2,
		MaxPasses:       10,
		EngineVersion:   ir.EngineVersion,
		EncodingVersion: ir.EncodingVersion,
	}
}

// createTestFiring creates a firing with a content-addressed id.
func createTestFiring(t *testing.T, runID string, pass, ordinal int64, rule string) ir.FiringRecord {
	t.Helper()
	id, err := ir.FiringID(runID, rule, "post", 3, pass, ordinal)
	if err != nil {
		t.Fatalf("FiringID() failed: %v", err)
	}
	return ir.FiringRecord{ID: id, RunID: runID, Pass: pass, Ordinal: ordinal, Rule: rule, Hook: "post", Op: 3}
}
