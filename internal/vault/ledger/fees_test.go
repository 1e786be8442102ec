package ledger_test

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/escion333/autoUSD-sub000/internal/auth"
	"github.com/escion333/autoUSD-sub000/internal/vault/ledger"
)

func TestCollectFeesProratesOverElapsedTime(t *testing.T) {
	withLedger(t, ledger.Config{ManagementFeeBps: 100}, func(f ledgerFixture) {
		ctx := context.Background()
		require.NoError(t, f.svc.Deposit(ctx, user, big.NewInt(10_000)))

		// a full year at 100 bps accrues exactly 1% of total assets
		*f.now = f.now.Add(365 * 24 * time.Hour)

		fee, err := f.svc.CollectFees(ctx, keeper)
		require.NoError(t, err)
		assert.Equal(t, "100", fee.String())

		o := f.svc.Overview()
		assert.Equal(t, "9900", o.IdleBalance.String())
		assert.Equal(t, "100", o.FeesAccrued.String())
		assert.Equal(t, *f.now, o.LastFeeCollection)

		// an immediate second collection accrues nothing
		fee, err = f.svc.CollectFees(ctx, keeper)
		require.NoError(t, err)
		assert.Equal(t, "0", fee.String())
	})
}

func TestCollectFeesIsCappedAtIdle(t *testing.T) {
	withLedger(t, ledger.Config{ManagementFeeBps: 100}, func(f ledgerFixture) {
		ctx := context.Background()
		f.register(t, baseDomain, remoteBase)

		require.NoError(t, f.svc.Deposit(ctx, user, big.NewInt(10_000)))
		_, err := f.svc.Deploy(ctx, keeper, baseDomain, big.NewInt(9_990))
		require.NoError(t, err)

		*f.now = f.now.Add(10 * 365 * 24 * time.Hour)

		// ten years would accrue 1000, but only 10 sit idle
		fee, err := f.svc.CollectFees(ctx, keeper)
		require.NoError(t, err)
		assert.Equal(t, "10", fee.String())
		assert.Equal(t, "0", f.svc.Overview().IdleBalance.String())
	})
}

func TestCollectFeesRequiresKeeper(t *testing.T) {
	withLedger(t, ledger.Config{ManagementFeeBps: 100}, func(f ledgerFixture) {
		_, err := f.svc.CollectFees(context.Background(), user)
		assert.True(t, errors.Is(err, auth.ErrForbidden))
	})
}

func TestFeeUpdateTimelock(t *testing.T) {
	withLedger(t, ledger.Config{ManagementFeeBps: 50, MaxFeeBps: 200, FeeTimelock: 48 * time.Hour}, func(f ledgerFixture) {
		ctx := context.Background()

		assert.True(t, errors.Is(f.svc.ExecuteFeeUpdate(ctx, admin), ledger.ErrNoPendingFee))

		err := f.svc.ProposeFeeUpdate(ctx, admin, 250)
		assert.True(t, errors.Is(err, ledger.ErrFeeTooHigh))

		err = f.svc.ProposeFeeUpdate(ctx, keeper, 100)
		assert.True(t, errors.Is(err, auth.ErrForbidden))

		require.NoError(t, f.svc.ProposeFeeUpdate(ctx, admin, 100))

		err = f.svc.ExecuteFeeUpdate(ctx, admin)
		assert.True(t, errors.Is(err, ledger.ErrTimelockPending))

		*f.now = f.now.Add(48*time.Hour + time.Second)
		require.NoError(t, f.svc.ExecuteFeeUpdate(ctx, admin))

		o := f.svc.Overview()
		assert.Equal(t, int64(100), o.ManagementFeeBps)
		assert.Nil(t, o.PendingFee)
	})
}

func TestExecuteFeeUpdateCollectsAtOldRate(t *testing.T) {
	withLedger(t, ledger.Config{ManagementFeeBps: 100, MaxFeeBps: 500, FeeTimelock: time.Hour}, func(f ledgerFixture) {
		ctx := context.Background()
		require.NoError(t, f.svc.Deposit(ctx, user, big.NewInt(10_000)))

		require.NoError(t, f.svc.ProposeFeeUpdate(ctx, admin, 400))

		// a year passes while the proposal waits; the accrual up to the
		// switch happens at the old 100 bps rate
		*f.now = f.now.Add(365 * 24 * time.Hour)
		require.NoError(t, f.svc.ExecuteFeeUpdate(ctx, admin))

		o := f.svc.Overview()
		assert.Equal(t, "100", o.FeesAccrued.String())
		assert.Equal(t, int64(400), o.ManagementFeeBps)
	})
}
