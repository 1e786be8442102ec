package ledger

import (
	"context"
	"math/big"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/escion333/autoUSD-sub000/internal/auth"
)

// CollectFees accrues the management fee prorated over the time since the
// last collection:
//
//	fee = totalAssets * feeBps * elapsedSeconds / (10000 * secondsPerYear)
//
// capped at the current idle balance. The fee is debited from idle and
// credited to the configured sink.
func (s *service) CollectFees(ctx context.Context, caller auth.Caller) (*big.Int, error) {
	if err := caller.RequireKeeper(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	fee := s.collectFeesLocked()

	log.Info().
		Str("caller", caller.Subject).
		Str("fee", fee.String()).
		Str("fee_sink", s.feeSink.Hex()).
		Msg("LedgerService: management fee collected")

	return fee, nil
}

// collectFeesLocked runs the accrual and advances the collection clock.
// Callers must hold s.mu.
func (s *service) collectFeesLocked() *big.Int {
	now := s.now()
	elapsed := int64(now.Sub(s.lastFeeCollection).Seconds())

	if elapsed <= 0 || s.feeBps <= 0 {
		s.lastFeeCollection = now

		return big.NewInt(0)
	}

	total := new(big.Int).Add(s.idle, s.deployed)
	fee := total.Mul(total, big.NewInt(s.feeBps))
	fee.Mul(fee, big.NewInt(elapsed))
	fee.Div(fee, big.NewInt(bpsDenominator*secondsPerYear))

	if fee.Cmp(s.idle) > 0 {
		fee.Set(s.idle)
	}

	s.idle.Sub(s.idle, fee)
	s.feesAccrued.Add(s.feesAccrued, fee)
	s.lastFeeCollection = now
	s.publishGauges()

	return fee
}

func (s *service) ProposeFeeUpdate(ctx context.Context, caller auth.Caller, feeBps int64) error {
	if err := caller.RequireAdmin(); err != nil {
		return err
	}

	if feeBps < 0 || feeBps > s.maxFeeBps {
		return errors.Wrapf(ErrFeeTooHigh, "proposed %d bps, maximum %d bps", feeBps, s.maxFeeBps)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.pendingFee = &PendingFeeUpdate{FeeBps: feeBps, ProposedAt: s.now()}

	log.Info().
		Str("caller", caller.Subject).
		Int64("fee_bps", feeBps).
		Dur("timelock", s.feeTimelock).
		Msg("LedgerService: fee update proposed")

	return nil
}

// ExecuteFeeUpdate applies the pending fee once the timelock expired.
// Fees accrued at the old rate are collected first so the new rate only
// applies going forward.
func (s *service) ExecuteFeeUpdate(ctx context.Context, caller auth.Caller) error {
	if err := caller.RequireAdmin(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pendingFee == nil {
		return ErrNoPendingFee
	}

	unlocksAt := s.pendingFee.ProposedAt.Add(s.feeTimelock)
	if now := s.now(); now.Before(unlocksAt) {
		return errors.Wrapf(ErrTimelockPending, "unlocks in %v", unlocksAt.Sub(now))
	}

	s.collectFeesLocked()

	oldFee := s.feeBps
	s.feeBps = s.pendingFee.FeeBps
	s.pendingFee = nil

	log.Info().
		Str("caller", caller.Subject).
		Int64("old_fee_bps", oldFee).
		Int64("new_fee_bps", s.feeBps).
		Msg("LedgerService: fee update executed")

	return nil
}
