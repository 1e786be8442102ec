package store

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
)

// Transfer status values.
const (
	TransferStatusPending = "pending"
	TransferStatusFailed  = "failed"
)

// PendingTransfer tracks an initiated burn/mint transfer until the
// destination confirms receipt. Settled transfers are deleted; permanently
// failed ones stay with status "failed" for manual recovery.
type PendingTransfer struct {
	TransferID  string
	Amount      string
	DestDomain  uint32
	Recipient   string
	Reference   string
	InitiatedAt int64
	RetryCount  int
	Status      string
}

// InsertPendingTransfer records a newly initiated transfer.
func (s *Store) InsertPendingTransfer(ctx context.Context, t PendingTransfer) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO pending_transfers (transfer_id, amount, dest_domain, recipient, reference, initiated_at, retry_count, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		t.TransferID, t.Amount, t.DestDomain, t.Recipient, t.Reference, t.InitiatedAt, t.RetryCount, t.Status,
	)

	return errors.Wrap(err, "failed to insert pending transfer")
}

// PendingTransferByID loads a tracked transfer.
func (s *Store) PendingTransferByID(ctx context.Context, transferID string) (*PendingTransfer, error) {
	t := &PendingTransfer{}
	err := s.db.QueryRowContext(ctx,
		`SELECT transfer_id, amount, dest_domain, recipient, reference, initiated_at, retry_count, status
		 FROM pending_transfers WHERE transfer_id = $1`, transferID,
	).Scan(&t.TransferID, &t.Amount, &t.DestDomain, &t.Recipient, &t.Reference, &t.InitiatedAt, &t.RetryCount, &t.Status)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to query pending transfer")
	}

	return t, nil
}

// BumpTransferRetry increments the retry counter.
func (s *Store) BumpTransferRetry(ctx context.Context, transferID string, retryCount int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE pending_transfers SET retry_count = $2 WHERE transfer_id = $1`,
		transferID, retryCount,
	)

	return errors.Wrap(err, "failed to bump transfer retry count")
}

// MarkTransferFailed flags a transfer as permanently failed. The row is
// kept so an administrator can drive a manual recovery.
func (s *Store) MarkTransferFailed(ctx context.Context, transferID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE pending_transfers SET status = $2 WHERE transfer_id = $1`,
		transferID, TransferStatusFailed,
	)

	return errors.Wrap(err, "failed to mark transfer failed")
}

// DeletePendingTransfer removes a settled transfer.
func (s *Store) DeletePendingTransfer(ctx context.Context, transferID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM pending_transfers WHERE transfer_id = $1`, transferID,
	)

	return errors.Wrap(err, "failed to delete pending transfer")
}

// ListTransfers returns tracked transfers filtered by status.
func (s *Store) ListTransfers(ctx context.Context, status string) ([]*PendingTransfer, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT transfer_id, amount, dest_domain, recipient, reference, initiated_at, retry_count, status
		 FROM pending_transfers WHERE status = $1 ORDER BY initiated_at ASC`, status,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list transfers")
	}
	defer rows.Close()

	transfers := make([]*PendingTransfer, 0)
	for rows.Next() {
		t := &PendingTransfer{}
		if err := rows.Scan(&t.TransferID, &t.Amount, &t.DestDomain, &t.Recipient, &t.Reference, &t.InitiatedAt, &t.RetryCount, &t.Status); err != nil {
			return nil, errors.Wrap(err, "failed to scan transfer")
		}
		transfers = append(transfers, t)
	}

	return transfers, errors.Wrap(rows.Err(), "failed to iterate transfers")
}

// RecordSettlement inserts a processed settlement hash. Returns false when
// the hash was already recorded, which callers treat as a duplicate and
// silently drop.
func (s *Store) RecordSettlement(ctx context.Context, messageHash string, sourceDomain uint32, amount string, receivedAt int64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO processed_settlements (message_hash, source_domain, amount, received_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (message_hash) DO NOTHING`,
		messageHash, sourceDomain, amount, receivedAt,
	)
	if err != nil {
		return false, errors.Wrap(err, "failed to record settlement")
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "failed to read settlement rows affected")
	}

	return n > 0, nil
}

// MarkSettlementApplied records that ledger bookkeeping for a settlement
// hash has run. Returns false when the hash was already applied, making
// re-invocations of the bookkeeping a no-op.
func (s *Store) MarkSettlementApplied(ctx context.Context, messageHash string, appliedAt int64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO applied_settlements (message_hash, applied_at)
		 VALUES ($1, $2)
		 ON CONFLICT (message_hash) DO NOTHING`,
		messageHash, appliedAt,
	)
	if err != nil {
		return false, errors.Wrap(err, "failed to mark settlement applied")
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "failed to read applied settlement rows affected")
	}

	return n > 0, nil
}

// UnmarkSettlementApplied removes an applied-settlement marker so the
// bookkeeping can be re-driven after an aborted application.
func (s *Store) UnmarkSettlementApplied(ctx context.Context, messageHash string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM applied_settlements WHERE message_hash = $1`, messageHash,
	)

	return errors.Wrap(err, "failed to unmark applied settlement")
}
