package store

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
)

// RebalanceExecution is the durable marker for an executed (or in-flight)
// rebalance decision, keyed by its content-derived execution id so the same
// decision cannot be submitted twice.
type RebalanceExecution struct {
	ExecutionID  string
	SourceDomain uint32
	TargetDomain uint32
	Amount       string
	ExecutedAt   int64
}

// InsertRebalanceExecution records an execution marker. Returns false when
// the execution id already exists.
func (s *Store) InsertRebalanceExecution(ctx context.Context, e RebalanceExecution) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO rebalance_executions (execution_id, source_domain, target_domain, amount, executed_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (execution_id) DO NOTHING`,
		e.ExecutionID, e.SourceDomain, e.TargetDomain, e.Amount, e.ExecutedAt,
	)
	if err != nil {
		return false, errors.Wrap(err, "failed to insert rebalance execution")
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "failed to read rebalance rows affected")
	}

	return n > 0, nil
}

// DeleteRebalanceExecution removes the marker so a failed execution can be
// retried.
func (s *Store) DeleteRebalanceExecution(ctx context.Context, executionID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM rebalance_executions WHERE execution_id = $1`, executionID,
	)

	return errors.Wrap(err, "failed to delete rebalance execution")
}

// CountRebalancesSince counts executions at or after the cutoff.
func (s *Store) CountRebalancesSince(ctx context.Context, cutoff int64) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM rebalance_executions WHERE executed_at >= $1`, cutoff,
	).Scan(&count)
	if err != nil {
		return 0, errors.Wrap(err, "failed to count rebalance executions")
	}

	return count, nil
}

// LastRebalanceAt returns the most recent execution time, or zero if none.
func (s *Store) LastRebalanceAt(ctx context.Context) (int64, error) {
	var ts int64
	err := s.db.QueryRowContext(ctx,
		`SELECT executed_at FROM rebalance_executions ORDER BY executed_at DESC LIMIT 1`,
	).Scan(&ts)

	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrap(err, "failed to query last rebalance time")
	}

	return ts, nil
}
