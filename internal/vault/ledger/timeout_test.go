package ledger_test

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/escion333/autoUSD-sub000/internal/store"
	"github.com/escion333/autoUSD-sub000/internal/vault/ledger"
)

func TestRecoverTimeoutsRevertsStaleDeployments(t *testing.T) {
	withLedger(t, ledger.Config{CrossDomainTimeout: 24 * time.Hour}, func(f ledgerFixture) {
		ctx := context.Background()
		f.register(t, baseDomain, remoteBase)

		require.NoError(t, f.svc.Deposit(ctx, user, big.NewInt(10_000)))
		correlationID, err := f.svc.Deploy(ctx, keeper, baseDomain, big.NewInt(4_000))
		require.NoError(t, err)

		// still within the window, nothing to do
		*f.now = f.now.Add(23 * time.Hour)
		reverted, flagged, err := f.svc.RecoverTimeouts(ctx, keeper)
		require.NoError(t, err)
		assert.Zero(t, reverted)
		assert.Zero(t, flagged)

		*f.now = f.now.Add(2 * time.Hour)
		reverted, flagged, err = f.svc.RecoverTimeouts(ctx, keeper)
		require.NoError(t, err)
		assert.Equal(t, 1, reverted)
		assert.Zero(t, flagged)

		o := f.svc.Overview()
		assert.Equal(t, "10000", o.IdleBalance.String())
		assert.Equal(t, "0", o.DeployedBalance.String())

		op, err := f.store.PendingOperationByID(ctx, correlationID)
		require.NoError(t, err)
		require.NotNil(t, op)
		assert.True(t, op.Completed)

		// the reverted operation does not come up again
		reverted, flagged, err = f.svc.RecoverTimeouts(ctx, keeper)
		require.NoError(t, err)
		assert.Zero(t, reverted)
		assert.Zero(t, flagged)
	})
}

func TestRecoverTimeoutsFlagsWithdrawalsAfterGrace(t *testing.T) {
	cfg := ledger.Config{CrossDomainTimeout: 24 * time.Hour, SettlementGrace: 72 * time.Hour}
	withLedger(t, cfg, func(f ledgerFixture) {
		ctx := context.Background()
		f.register(t, baseDomain, remoteBase)

		require.NoError(t, f.svc.Deposit(ctx, user, big.NewInt(10_000)))
		_, err := f.svc.Deploy(ctx, keeper, baseDomain, big.NewInt(4_000))
		require.NoError(t, err)

		correlationID, err := f.svc.InitiateWithdrawal(ctx, keeper, baseDomain, big.NewInt(1_000))
		require.NoError(t, err)

		// past the timeout but inside the grace window the withdrawal is
		// left open; the deployment is reverted on this pass
		*f.now = f.now.Add(25 * time.Hour)
		reverted, flagged, err := f.svc.RecoverTimeouts(ctx, keeper)
		require.NoError(t, err)
		assert.Equal(t, 1, reverted)
		assert.Zero(t, flagged)

		*f.now = f.now.Add(72 * time.Hour)
		reverted, flagged, err = f.svc.RecoverTimeouts(ctx, keeper)
		require.NoError(t, err)
		assert.Zero(t, reverted)
		assert.Equal(t, 1, flagged)

		op, err := f.store.PendingOperationByID(ctx, correlationID)
		require.NoError(t, err)
		require.NotNil(t, op)
		assert.True(t, op.Flagged)
		assert.Equal(t, store.OperationKindWithdrawal, op.Kind)
	})
}

func TestRecoverTimeoutsFlagsUnrevertableDeployment(t *testing.T) {
	withLedger(t, ledger.Config{CrossDomainTimeout: 24 * time.Hour}, func(f ledgerFixture) {
		ctx := context.Background()
		f.register(t, baseDomain, remoteBase)

		require.NoError(t, f.svc.Deposit(ctx, user, big.NewInt(10_000)))
		_, err := f.svc.Deploy(ctx, keeper, baseDomain, big.NewInt(4_000))
		require.NoError(t, err)

		// a settlement drains the position while the deployment row is
		// still open, so rolling it back would drive the books negative
		_, err = f.bridge.Receive(ctx, baseDomain, 1, big.NewInt(4_000), hubAddress)
		require.NoError(t, err)

		*f.now = f.now.Add(25 * time.Hour)
		reverted, flagged, err := f.svc.RecoverTimeouts(ctx, keeper)
		require.NoError(t, err)
		assert.Zero(t, reverted)
		assert.Equal(t, 1, flagged)

		require.NoError(t, f.svc.CheckInvariants())
	})
}
