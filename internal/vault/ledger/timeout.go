package ledger

import (
	"context"
	"math/big"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/escion333/autoUSD-sub000/internal/auth"
	"github.com/escion333/autoUSD-sub000/internal/store"
)

// RecoverTimeouts scans open cross-domain operations past the timeout.
// A stale deployment never reached its position, so its local accounting
// is rolled back to idle. A stale withdrawal gets a further grace period
// for the funds to arrive and is then flagged for manual follow-up; a
// settlement landing later is still reconciled idempotently.
func (s *service) RecoverTimeouts(ctx context.Context, caller auth.Caller) (int, int, error) {
	if err := caller.RequireKeeper(); err != nil {
		return 0, 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	cutoff := now.Add(-s.crossDomainTimeout).Unix()
	graceCutoff := now.Add(-s.crossDomainTimeout - s.settlementGrace).Unix()

	ops, err := s.store.StaleOperations(ctx, cutoff)
	if err != nil {
		return 0, 0, err
	}

	reverted, flagged := 0, 0
	for _, op := range ops {
		switch op.Kind {
		case store.OperationKindDeployment:
			if err := s.revertDeployment(ctx, op); err != nil {
				log.Error().
					Err(err).
					Str("correlation_id", op.CorrelationID).
					Msg("LedgerService: deployment revert failed, flagging")

				if ferr := s.store.FlagOperation(ctx, op.CorrelationID); ferr != nil {
					return reverted, flagged, ferr
				}
				flagged++

				continue
			}
			reverted++

		case store.OperationKindWithdrawal, store.OperationKindRebalance:
			if op.CreatedAt > graceCutoff {
				continue
			}

			if err := s.store.FlagOperation(ctx, op.CorrelationID); err != nil {
				return reverted, flagged, err
			}
			flagged++

			log.Warn().
				Str("correlation_id", op.CorrelationID).
				Str("kind", op.Kind).
				Uint32("domain", op.TargetDomain).
				Msg("LedgerService: withdrawal timed out, flagged for manual follow-up")

		default:
			log.Error().
				Str("correlation_id", op.CorrelationID).
				Str("kind", op.Kind).
				Msg("LedgerService: unknown operation kind in timeout scan")
		}
	}

	if reverted > 0 || flagged > 0 {
		log.Info().
			Str("caller", caller.Subject).
			Int("reverted", reverted).
			Int("flagged", flagged).
			Msg("LedgerService: timeout recovery completed")
	}

	return reverted, flagged, nil
}

// revertDeployment rolls a timed-out deployment's accounting back to
// idle. The amounts must still be present on the books; anything else is
// an accounting fault and the operation stays open for inspection.
// Callers must hold s.mu.
func (s *service) revertDeployment(ctx context.Context, op *store.PendingOperation) error {
	amount, ok := new(big.Int).SetString(op.Amount, 10)
	if !ok {
		return errors.Errorf("unparseable operation amount %q", op.Amount)
	}

	pos, exists := s.positions[op.TargetDomain]
	if !exists {
		return errors.Wrapf(ErrUnknownDomain, "domain %d", op.TargetDomain)
	}

	if pos.Deployed.Cmp(amount) < 0 || s.deployed.Cmp(amount) < 0 {
		return errors.Wrapf(ErrAccountingFault,
			"revert %v exceeds position %v or deployed %v", amount, pos.Deployed, s.deployed)
	}

	if err := s.store.CompleteOperation(ctx, op.CorrelationID); err != nil {
		return err
	}

	pos.Deployed.Sub(pos.Deployed, amount)
	s.deployed.Sub(s.deployed, amount)
	s.idle.Add(s.idle, amount)
	s.publishGauges()

	log.Warn().
		Str("correlation_id", op.CorrelationID).
		Uint32("domain", op.TargetDomain).
		Str("amount", amount.String()).
		Msg("LedgerService: timed-out deployment reverted to idle")

	return nil
}
