package store

import (
	"context"
	"database/sql"

	"github.com/cockroachdb/errors"

	"github.com/roach88/xqopt/internal/ir"
)

type scanner interface {
	Scan(dest ...any) error
}

const runColumns = `id, plan_name, input_hash, output_hash, outcome, passes, max_passes, engine_version, encoding_version`

func scanRun(row scanner) (ir.RunRecord, error) {
	var r ir.RunRecord
	err := row.Scan(
		&r.ID,
		&r.PlanName,
		&r.InputHash,
		&r.OutputHash,
		&r.Outcome,
		&r.Passes,
		&r.MaxPasses,
		&r.EngineVersion,
		&r.EncodingVersion,
	)
	return r, err
}

// ReadRun returns the run with the given id, or ErrNotFound.
func (s *Store) ReadRun(ctx context.Context, id string) (ir.RunRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.RunRecord{}, errors.Wrapf(ErrNotFound, "run %s", id)
	}
	if err != nil {
		return ir.RunRecord{}, errors.Wrapf(err, "read run %s", id)
	}
	return r, nil
}

// ListRuns returns the most recent runs first, at most limit of them.
// A limit of zero or less returns every run.
//
// Returns an empty slice (not nil) when the store holds no runs.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]ir.RunRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+runColumns+`
		FROM runs
		ORDER BY rowid DESC, id COLLATE BINARY ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "query runs")
	}
	defer rows.Close()

	runs := []ir.RunRecord{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan run")
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate runs")
	}
	return runs, nil
}

// ReadFirings returns the firings of a run in firing order.
//
// Returns an empty slice (not nil) if the run has no firings.
func (s *Store) ReadFirings(ctx context.Context, runID string) ([]ir.FiringRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, pass, ordinal, rule, hook, op
		FROM firings
		WHERE run_id = ?
		ORDER BY ordinal ASC, id COLLATE BINARY ASC
	`, runID)
	if err != nil {
		return nil, errors.Wrap(err, "query firings")
	}
	defer rows.Close()

	firings := []ir.FiringRecord{}
	for rows.Next() {
		var f ir.FiringRecord
		if err := rows.Scan(&f.ID, &f.RunID, &f.Pass, &f.Ordinal, &f.Rule, &f.Hook, &f.Op); err != nil {
			return nil, errors.Wrap(err, "scan firing")
		}
		firings = append(firings, f)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate firings")
	}
	return firings, nil
}

// ReadPlan returns the plan encoding stored under hash, or ErrNotFound.
func (s *Store) ReadPlan(ctx context.Context, hash string) (ir.Object, error) {
	var text string
	err := s.db.QueryRowContext(ctx, `SELECT encoding FROM plans WHERE hash = ?`, hash).Scan(&text)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(ErrNotFound, "plan %s", hash)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read plan %s", hash)
	}
	return unmarshalEncoding(text)
}
