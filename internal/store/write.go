package store

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/roach88/xqopt/internal/ir"
	"github.com/roach88/xqopt/internal/rewrite"
)

var _ rewrite.Recorder = (*Store)(nil)

// RecordRun stores a finished run and its firings in one transaction.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - recording the same run
// twice leaves the first copy in place.
func (s *Store) RecordRun(ctx context.Context, run ir.RunRecord, firings []ir.FiringRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "record run: begin tx")
	}
	defer tx.Rollback() // No-op if committed

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs
		(id, plan_name, input_hash, output_hash, outcome, passes, max_passes, engine_version, encoding_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		run.ID,
		run.PlanName,
		run.InputHash,
		run.OutputHash,
		run.Outcome,
		run.Passes,
		run.MaxPasses,
		run.EngineVersion,
		run.EncodingVersion,
	)
	if err != nil {
		return errors.Wrapf(err, "record run %s", run.ID)
	}

	for _, f := range firings {
		if f.RunID != run.ID {
			return errors.AssertionFailedf("firing %s belongs to run %s, not %s", f.ID, f.RunID, run.ID)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO firings
			(id, run_id, pass, ordinal, rule, hook, op)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO NOTHING
		`,
			f.ID,
			f.RunID,
			f.Pass,
			f.Ordinal,
			f.Rule,
			f.Hook,
			f.Op,
		)
		if err != nil {
			return errors.Wrapf(err, "record firing %d of run %s", f.Ordinal, run.ID)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "record run: commit")
	}
	return nil
}

// WritePlan stores a plan encoding under its fingerprint and returns the
// fingerprint. Writing the same plan twice is a no-op.
func (s *Store) WritePlan(ctx context.Context, enc ir.Object) (string, error) {
	hash, err := ir.PlanHash(enc)
	if err != nil {
		return "", errors.Wrap(err, "write plan")
	}
	text, err := marshalEncoding(enc)
	if err != nil {
		return "", errors.Wrap(err, "write plan")
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO plans (hash, encoding) VALUES (?, ?)
		ON CONFLICT(hash) DO NOTHING
	`, hash, text)
	if err != nil {
		return "", errors.Wrap(err, "write plan")
	}
	return hash, nil
}
