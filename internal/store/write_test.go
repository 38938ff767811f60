package store

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/xqopt/internal/ir"
)

func TestRecordRun_WithFirings(t *testing.T) {
	s := createTestStore(t)
	ctx := t.Context()
	firings := []ir.FiringRecord{
		createTestFiring(t, "run-1", 1, 0, "descendant-or-self/child"),
		createTestFiring(t, "run-1", 1, 1, "self/child"),
	}

	require.NoError(t, s.RecordRun(ctx, createTestRun("run-1"), firings))

	got, err := s.ReadFirings(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, firings, got)
}

func TestRecordRun_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := t.Context()
	firings := []ir.FiringRecord{createTestFiring(t, "run-1", 1, 0, "r")}

	require.NoError(t, s.RecordRun(ctx, createTestRun("run-1"), firings))
	second := createTestRun("run-1")
	second.PlanName = "other"
	require.NoError(t, s.RecordRun(ctx, second, firings))

	run, err := s.ReadRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "test-plan", run.PlanName)
	got, err := s.ReadFirings(ctx, "run-1")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestRecordRun_ForeignRunRejected(t *testing.T) {
	s := createTestStore(t)
	ctx := t.Context()

	err := s.RecordRun(ctx, createTestRun("run-1"), []ir.FiringRecord{createTestFiring(t, "run-2", 1, 0, "r")})
	require.Error(t, err)
	assert.True(t, errors.HasAssertionFailure(err))

	_, err = s.ReadRun(ctx, "run-1")
	assert.True(t, errors.Is(err, ErrNotFound), "transaction rolled back")
}

func TestRecordRun_DuplicateOrdinal(t *testing.T) {
	s := createTestStore(t)
	ctx := t.Context()
	a := createTestFiring(t, "run-1", 1, 0, "a")
	b := createTestFiring(t, "run-1", 1, 0, "b")

	err := s.RecordRun(ctx, createTestRun("run-1"), []ir.FiringRecord{a, b})
	assert.Error(t, err)
}

func TestWritePlan_ContentAddressed(t *testing.T) {
	s := createTestStore(t)
	ctx := t.Context()
	enc := ir.Object{"root": ir.Int(0), "ops": ir.Seq{ir.Object{"kind": ir.String("empty-tuple-source")}}}

	hash, err := s.WritePlan(ctx, enc)
	require.NoError(t, err)
	want, err := ir.PlanHash(enc)
	require.NoError(t, err)
	assert.Equal(t, want, hash)

	again, err := s.WritePlan(ctx, enc)
	require.NoError(t, err)
	assert.Equal(t, hash, again)

	got, err := s.ReadPlan(ctx, hash)
	require.NoError(t, err)
	assert.True(t, ir.Equal(enc, got))
}
