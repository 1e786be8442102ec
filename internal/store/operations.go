package store

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
)

// Pending operation kinds.
const (
	OperationKindDeployment = "deployment"
	OperationKindWithdrawal = "withdrawal"
	OperationKindRebalance  = "rebalance"
)

// PendingOperation tracks one in-flight cross-domain instruction from
// dispatch until settlement or timeout.
type PendingOperation struct {
	CorrelationID string
	Kind          string
	Amount        string
	TargetDomain  uint32
	CreatedAt     int64
	Completed     bool
	Flagged       bool
}

// InsertPendingOperation records a newly dispatched instruction.
func (s *Store) InsertPendingOperation(ctx context.Context, op PendingOperation) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO pending_operations (correlation_id, kind, amount, target_domain, created_at, completed, flagged)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		op.CorrelationID, op.Kind, op.Amount, op.TargetDomain, op.CreatedAt, op.Completed, op.Flagged,
	)

	return errors.Wrap(err, "failed to insert pending operation")
}

// PendingOperationByID loads a single operation.
func (s *Store) PendingOperationByID(ctx context.Context, correlationID string) (*PendingOperation, error) {
	op := &PendingOperation{}
	err := s.db.QueryRowContext(ctx,
		`SELECT correlation_id, kind, amount, target_domain, created_at, completed, flagged
		 FROM pending_operations WHERE correlation_id = $1`, correlationID,
	).Scan(&op.CorrelationID, &op.Kind, &op.Amount, &op.TargetDomain, &op.CreatedAt, &op.Completed, &op.Flagged)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to query pending operation")
	}

	return op, nil
}

// CompleteOldestOperation marks the oldest open operation of the given kind
// and domain as completed, returning it. Settlements do not carry the
// correlation id, so completion is matched FIFO per (kind, domain).
func (s *Store) CompleteOldestOperation(ctx context.Context, kind string, targetDomain uint32) (*PendingOperation, error) {
	op := &PendingOperation{}
	err := s.db.QueryRowContext(ctx,
		`SELECT correlation_id, kind, amount, target_domain, created_at, completed, flagged
		 FROM pending_operations
		 WHERE kind = $1 AND target_domain = $2 AND completed = 0
		 ORDER BY created_at ASC LIMIT 1`, kind, targetDomain,
	).Scan(&op.CorrelationID, &op.Kind, &op.Amount, &op.TargetDomain, &op.CreatedAt, &op.Completed, &op.Flagged)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to query oldest open operation")
	}

	if _, err := s.db.ExecContext(ctx,
		`UPDATE pending_operations SET completed = 1 WHERE correlation_id = $1`, op.CorrelationID,
	); err != nil {
		return nil, errors.Wrap(err, "failed to complete pending operation")
	}

	op.Completed = true
	return op, nil
}

// CompleteOperation marks a specific operation as completed.
func (s *Store) CompleteOperation(ctx context.Context, correlationID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE pending_operations SET completed = 1 WHERE correlation_id = $1`, correlationID,
	)

	return errors.Wrap(err, "failed to complete operation")
}

// FlagOperation marks an operation for manual follow-up without completing
// it (timed-out withdrawals whose funds may still arrive late).
func (s *Store) FlagOperation(ctx context.Context, correlationID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE pending_operations SET flagged = 1 WHERE correlation_id = $1`, correlationID,
	)

	return errors.Wrap(err, "failed to flag operation")
}

// OpenOperations returns all operations not yet completed, oldest first.
func (s *Store) OpenOperations(ctx context.Context) ([]*PendingOperation, error) {
	return s.queryOperations(ctx,
		`SELECT correlation_id, kind, amount, target_domain, created_at, completed, flagged
		 FROM pending_operations WHERE completed = 0 ORDER BY created_at ASC`)
}

// StaleOperations returns open, unflagged operations created at or before
// the given cutoff, oldest first.
func (s *Store) StaleOperations(ctx context.Context, cutoff int64) ([]*PendingOperation, error) {
	return s.queryOperations(ctx,
		`SELECT correlation_id, kind, amount, target_domain, created_at, completed, flagged
		 FROM pending_operations
		 WHERE completed = 0 AND flagged = 0 AND created_at <= $1
		 ORDER BY created_at ASC`, cutoff)
}

func (s *Store) queryOperations(ctx context.Context, query string, args ...interface{}) ([]*PendingOperation, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query operations")
	}
	defer rows.Close()

	ops := make([]*PendingOperation, 0)
	for rows.Next() {
		op := &PendingOperation{}
		if err := rows.Scan(&op.CorrelationID, &op.Kind, &op.Amount, &op.TargetDomain, &op.CreatedAt, &op.Completed, &op.Flagged); err != nil {
			return nil, errors.Wrap(err, "failed to scan operation")
		}
		ops = append(ops, op)
	}

	return ops, errors.Wrap(rows.Err(), "failed to iterate operations")
}
