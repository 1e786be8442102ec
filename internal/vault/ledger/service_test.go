package ledger_test

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/escion333/autoUSD-sub000/internal/auth"
	"github.com/escion333/autoUSD-sub000/internal/store"
	"github.com/escion333/autoUSD-sub000/internal/test"
	"github.com/escion333/autoUSD-sub000/internal/vault/bridge"
	"github.com/escion333/autoUSD-sub000/internal/vault/ledger"
	"github.com/escion333/autoUSD-sub000/internal/vault/messenger"
	"github.com/escion333/autoUSD-sub000/internal/vault/relay"
)

var (
	hubAddress = common.HexToAddress("0x0000000000000000000000000000000000000001")
	feeSink    = common.HexToAddress("0x0000000000000000000000000000000000000002")
	remoteBase = common.HexToAddress("0x00000000000000000000000000000000000000a0")
	remoteArbi = common.HexToAddress("0x00000000000000000000000000000000000000b0")

	admin  = auth.Caller{Subject: "ops", Role: auth.RoleAdmin}
	keeper = auth.Caller{Subject: "bot", Role: auth.RoleKeeper}
	user   = auth.Caller{Subject: "alice", Role: auth.RoleUser}
)

const (
	baseDomain = uint32(10)
	arbiDomain = uint32(20)
)

type ledgerFixture struct {
	svc     ledger.Service
	bridge  bridge.Service
	msgr    messenger.Service
	mailbox *relay.LoopbackMailbox
	burns   *relay.LoopbackTokenMessenger
	store   *store.Store
	now     *time.Time
}

func withLedger(t *testing.T, cfg ledger.Config, closure func(f ledgerFixture)) {
	t.Helper()

	test.WithTestStore(t, func(st *store.Store) {
		now := time.Unix(1_700_000_000, 0)
		clock := func() time.Time { return now }

		mailbox := relay.NewLoopbackMailbox()
		burns := relay.NewLoopbackTokenMessenger()

		ms := messenger.NewService(st, mailbox, nil, messenger.Config{
			LocalDomain:   1,
			LocalIdentity: hubAddress,
			MessageExpiry: time.Hour,
			MaxRetries:    3,
			Now:           clock,
		})

		br := bridge.NewService(st, burns, nil, hubAddress, bridge.Config{
			MinAmount:     big.NewInt(1),
			MaxAmount:     big.NewInt(10_000_000),
			Timeout:       24 * time.Hour,
			MaxRetryCount: 3,
			Now:           clock,
		})

		cfg.FeeSink = feeSink
		cfg.Now = clock
		if cfg.MaxFeeBps == 0 {
			cfg.MaxFeeBps = 200
		}
		if cfg.FeeTimelock == 0 {
			cfg.FeeTimelock = 48 * time.Hour
		}
		if cfg.CrossDomainTimeout == 0 {
			cfg.CrossDomainTimeout = 24 * time.Hour
		}
		if cfg.SettlementGrace == 0 {
			cfg.SettlementGrace = 72 * time.Hour
		}

		svc := ledger.NewService(st, br, ms, nil, cfg)

		closure(ledgerFixture{svc: svc, bridge: br, msgr: ms, mailbox: mailbox, burns: burns, store: st, now: &now})
	})
}

func (f ledgerFixture) register(t *testing.T, domain uint32, remote common.Address) {
	t.Helper()
	require.NoError(t, f.svc.RegisterPosition(context.Background(), admin, domain, remote))
}

func TestDepositRespectsCap(t *testing.T) {
	withLedger(t, ledger.Config{DepositCap: big.NewInt(10_000)}, func(f ledgerFixture) {
		ctx := context.Background()

		require.NoError(t, f.svc.Deposit(ctx, user, big.NewInt(9_950)))

		err := f.svc.Deposit(ctx, user, big.NewInt(51))
		assert.True(t, errors.Is(err, ledger.ErrDepositCapExceeded))

		// exactly up to the cap is fine
		require.NoError(t, f.svc.Deposit(ctx, user, big.NewInt(50)))
		assert.Equal(t, "10000", f.svc.Overview().TotalAssets.String())

		// a zero cap removes the limit
		require.NoError(t, f.svc.SetDepositCap(ctx, admin, big.NewInt(0)))
		require.NoError(t, f.svc.Deposit(ctx, user, big.NewInt(50_000)))
	})
}

func TestDepositRejectsInvalidAmounts(t *testing.T) {
	withLedger(t, ledger.Config{}, func(f ledgerFixture) {
		ctx := context.Background()

		assert.True(t, errors.Is(f.svc.Deposit(ctx, user, nil), ledger.ErrInvalidAmount))
		assert.True(t, errors.Is(f.svc.Deposit(ctx, user, big.NewInt(0)), ledger.ErrInvalidAmount))
		assert.True(t, errors.Is(f.svc.Deposit(ctx, user, big.NewInt(-5)), ledger.ErrInvalidAmount))
	})
}

func TestWithdrawHonorsBufferReserve(t *testing.T) {
	withLedger(t, ledger.Config{BufferBps: 500, BufferEnabled: true}, func(f ledgerFixture) {
		ctx := context.Background()
		f.register(t, baseDomain, remoteBase)

		require.NoError(t, f.svc.Deposit(ctx, user, big.NewInt(10_000)))
		_, err := f.svc.Deploy(ctx, keeper, baseDomain, big.NewInt(5_000))
		require.NoError(t, err)

		// total 10000, buffer 500, idle 5000: withdrawable 4500
		o := f.svc.Overview()
		assert.Equal(t, "500", o.RequiredBuffer.String())
		assert.Equal(t, "4500", o.Withdrawable.String())

		err = f.svc.Withdraw(ctx, user, big.NewInt(4_600))
		assert.True(t, errors.Is(err, ledger.ErrInsufficientLiquidity))

		require.NoError(t, f.svc.Withdraw(ctx, user, big.NewInt(4_500)))
		assert.Equal(t, "500", f.svc.Overview().IdleBalance.String())

		// disabling the buffer releases the reserve
		require.NoError(t, f.svc.SetBufferEnabled(ctx, admin, false))
		require.NoError(t, f.svc.Withdraw(ctx, user, big.NewInt(500)))
	})
}

func TestSettlementRestoresWithdrawableLiquidity(t *testing.T) {
	withLedger(t, ledger.Config{BufferBps: 500, BufferEnabled: true}, func(f ledgerFixture) {
		ctx := context.Background()
		f.register(t, baseDomain, remoteBase)

		require.NoError(t, f.svc.Deposit(ctx, user, big.NewInt(10_000)))
		_, err := f.svc.Deploy(ctx, keeper, baseDomain, big.NewInt(9_500))
		require.NoError(t, err)

		// idle 500 exactly covers the buffer, so nothing is withdrawable
		o := f.svc.Overview()
		assert.Equal(t, "0", o.Withdrawable.String())
		assert.True(t, o.BufferSufficient)

		err = f.svc.Withdraw(ctx, user, big.NewInt(1))
		assert.True(t, errors.Is(err, ledger.ErrInsufficientLiquidity))

		// an inbound settlement of 100 frees exactly that much
		_, err = f.bridge.Receive(ctx, baseDomain, 1, big.NewInt(100), hubAddress)
		require.NoError(t, err)

		assert.Equal(t, "100", f.svc.Overview().Withdrawable.String())
		require.NoError(t, f.svc.Withdraw(ctx, user, big.NewInt(100)))
	})
}

func TestDeployMovesIdleToPosition(t *testing.T) {
	withLedger(t, ledger.Config{}, func(f ledgerFixture) {
		ctx := context.Background()
		f.register(t, baseDomain, remoteBase)

		require.NoError(t, f.svc.Deposit(ctx, user, big.NewInt(10_000)))

		_, err := f.svc.Deploy(ctx, user, baseDomain, big.NewInt(1_000))
		assert.True(t, errors.Is(err, auth.ErrForbidden))

		_, err = f.svc.Deploy(ctx, keeper, 99, big.NewInt(1_000))
		assert.True(t, errors.Is(err, ledger.ErrUnknownDomain))

		_, err = f.svc.Deploy(ctx, keeper, baseDomain, big.NewInt(20_000))
		assert.True(t, errors.Is(err, ledger.ErrInsufficientLiquidity))

		correlationID, err := f.svc.Deploy(ctx, keeper, baseDomain, big.NewInt(4_000))
		require.NoError(t, err)
		require.NotEmpty(t, correlationID)

		o := f.svc.Overview()
		assert.Equal(t, "6000", o.IdleBalance.String())
		assert.Equal(t, "4000", o.DeployedBalance.String())

		pos, err := f.svc.Position(baseDomain)
		require.NoError(t, err)
		assert.Equal(t, "4000", pos.Deployed.String())

		// the asset was burned and the instruction dispatched
		require.Len(t, f.burns.Burns, 1)
		require.Len(t, f.mailbox.Dispatched, 1)

		op, err := f.store.PendingOperationByID(ctx, correlationID)
		require.NoError(t, err)
		require.NotNil(t, op)
		assert.Equal(t, store.OperationKindDeployment, op.Kind)

		require.NoError(t, f.svc.CheckInvariants())
	})
}

func TestWithdrawalRoundTripViaSettlement(t *testing.T) {
	withLedger(t, ledger.Config{}, func(f ledgerFixture) {
		ctx := context.Background()
		f.register(t, baseDomain, remoteBase)

		require.NoError(t, f.svc.Deposit(ctx, user, big.NewInt(10_000)))
		_, err := f.svc.Deploy(ctx, keeper, baseDomain, big.NewInt(4_000))
		require.NoError(t, err)

		correlationID, err := f.svc.InitiateWithdrawal(ctx, keeper, baseDomain, big.NewInt(1_500))
		require.NoError(t, err)

		// balances do not move until the settlement lands
		assert.Equal(t, "4000", f.svc.Overview().DeployedBalance.String())

		_, err = f.bridge.Receive(ctx, baseDomain, 1, big.NewInt(1_500), hubAddress)
		require.NoError(t, err)

		o := f.svc.Overview()
		assert.Equal(t, "7500", o.IdleBalance.String())
		assert.Equal(t, "2500", o.DeployedBalance.String())

		op, err := f.store.PendingOperationByID(ctx, correlationID)
		require.NoError(t, err)
		require.NotNil(t, op)
		assert.True(t, op.Completed)

		require.NoError(t, f.svc.CheckInvariants())
	})
}

func TestOnSettlementIsIdempotent(t *testing.T) {
	withLedger(t, ledger.Config{}, func(f ledgerFixture) {
		ctx := context.Background()
		f.register(t, baseDomain, remoteBase)

		require.NoError(t, f.svc.Deposit(ctx, user, big.NewInt(10_000)))
		_, err := f.svc.Deploy(ctx, keeper, baseDomain, big.NewInt(4_000))
		require.NoError(t, err)

		hash := bridge.SettlementHash(baseDomain, 1, big.NewInt(1_000), hubAddress)

		require.NoError(t, f.svc.OnSettlement(ctx, big.NewInt(1_000), baseDomain, hash))
		require.NoError(t, f.svc.OnSettlement(ctx, big.NewInt(1_000), baseDomain, hash))

		// applied exactly once
		assert.Equal(t, "3000", f.svc.Overview().DeployedBalance.String())
	})
}

func TestOnSettlementExceedingBooksIsRejected(t *testing.T) {
	withLedger(t, ledger.Config{}, func(f ledgerFixture) {
		ctx := context.Background()
		f.register(t, baseDomain, remoteBase)

		require.NoError(t, f.svc.Deposit(ctx, user, big.NewInt(10_000)))
		_, err := f.svc.Deploy(ctx, keeper, baseDomain, big.NewInt(1_000))
		require.NoError(t, err)

		hash := bridge.SettlementHash(baseDomain, 1, big.NewInt(5_000), hubAddress)

		err = f.svc.OnSettlement(ctx, big.NewInt(5_000), baseDomain, hash)
		assert.True(t, errors.Is(err, ledger.ErrAccountingFault))

		// the marker was rolled back, so a corrected re-drive still applies
		err = f.svc.OnSettlement(ctx, big.NewInt(1_000), baseDomain, bridge.SettlementHash(baseDomain, 2, big.NewInt(1_000), hubAddress))
		require.NoError(t, err)
	})
}

func TestPositionLifecycle(t *testing.T) {
	withLedger(t, ledger.Config{}, func(f ledgerFixture) {
		ctx := context.Background()
		f.register(t, baseDomain, remoteBase)

		err := f.svc.RegisterPosition(ctx, admin, baseDomain, remoteBase)
		assert.True(t, errors.Is(err, ledger.ErrDuplicateDomain))

		err = f.svc.RegisterPosition(ctx, user, arbiDomain, remoteArbi)
		assert.True(t, errors.Is(err, auth.ErrForbidden))

		// a position holding funds cannot be retired
		require.NoError(t, f.svc.Deposit(ctx, user, big.NewInt(5_000)))
		_, err = f.svc.Deploy(ctx, keeper, baseDomain, big.NewInt(1_000))
		require.NoError(t, err)

		err = f.svc.DeactivatePosition(ctx, admin, baseDomain)
		assert.True(t, errors.Is(err, ledger.ErrPositionNotEmpty))

		// drain it, then deactivate and remove
		_, err = f.bridge.Receive(ctx, baseDomain, 1, big.NewInt(1_000), hubAddress)
		require.NoError(t, err)

		err = f.svc.RemovePosition(ctx, admin, baseDomain)
		require.Error(t, err)

		require.NoError(t, f.svc.DeactivatePosition(ctx, admin, baseDomain))

		_, err = f.svc.Deploy(ctx, keeper, baseDomain, big.NewInt(100))
		assert.True(t, errors.Is(err, ledger.ErrPositionInactive))

		require.NoError(t, f.svc.RemovePosition(ctx, admin, baseDomain))

		_, err = f.svc.Position(baseDomain)
		assert.True(t, errors.Is(err, ledger.ErrUnknownDomain))
	})
}

func TestYieldReportUpdatesPosition(t *testing.T) {
	withLedger(t, ledger.Config{}, func(f ledgerFixture) {
		ctx := context.Background()
		f.register(t, baseDomain, remoteBase)

		err := f.svc.HandleInstruction(ctx, baseDomain, messenger.YieldReport{
			YieldBps: 1200,
			TVL:      big.NewInt(42_000),
		})
		require.NoError(t, err)

		pos, err := f.svc.Position(baseDomain)
		require.NoError(t, err)
		assert.Equal(t, uint32(1200), pos.YieldBps)
		assert.Equal(t, "42000", pos.TVL.String())
		assert.Equal(t, *f.now, pos.LastReport)

		// hub-outbound instruction types are rejected on the inbound path
		err = f.svc.HandleInstruction(ctx, baseDomain, messenger.PauseCommand{})
		require.Error(t, err)
	})
}

func TestInboundYieldReportReachesLedger(t *testing.T) {
	withLedger(t, ledger.Config{}, func(f ledgerFixture) {
		ctx := context.Background()
		f.register(t, baseDomain, remoteBase)

		payload, err := messenger.EncodeInstruction(&messenger.YieldReport{
			YieldBps: 1200,
			TVL:      big.NewInt(42_000),
			//nolint:gosec // Unix time is non-negative
			ReportedAt: uint64(f.now.Unix()),
		})
		require.NoError(t, err)

		raw, err := messenger.EncodeEnvelope(&messenger.Envelope{
			MessageType:     uint8(messenger.MessageTypeYieldReport),
			TargetDomain:    1,
			TargetRecipient: hubAddress,
			Payload:         payload,
			Nonce:           1,
			//nolint:gosec // Unix time is non-negative
			Timestamp: uint64(f.now.Unix()),
		})
		require.NoError(t, err)

		_, err = f.msgr.ProcessInbound(ctx, baseDomain, remoteBase, raw)
		require.NoError(t, err)

		pos, err := f.svc.Position(baseDomain)
		require.NoError(t, err)
		assert.Equal(t, uint32(1200), pos.YieldBps)
		assert.Equal(t, "42000", pos.TVL.String())
	})
}

func TestConfirmedDeploymentSurvivesTimeoutSweep(t *testing.T) {
	withLedger(t, ledger.Config{}, func(f ledgerFixture) {
		ctx := context.Background()
		f.register(t, baseDomain, remoteBase)

		require.NoError(t, f.svc.Deposit(ctx, user, big.NewInt(10_000)))
		correlationID, err := f.svc.Deploy(ctx, keeper, baseDomain, big.NewInt(4_000))
		require.NoError(t, err)

		pending, err := f.bridge.PendingTransfers(ctx)
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, correlationID, pending[0].Reference)

		require.NoError(t, f.bridge.Confirm(ctx, pending[0].TransferID))

		op, err := f.store.PendingOperationByID(ctx, correlationID)
		require.NoError(t, err)
		require.NotNil(t, op)
		assert.True(t, op.Completed)

		// well past the cross-domain timeout
		*f.now = f.now.Add(25 * time.Hour)

		reverted, flagged, err := f.svc.RecoverTimeouts(ctx, keeper)
		require.NoError(t, err)
		assert.Equal(t, 0, reverted)
		assert.Equal(t, 0, flagged)

		assert.Equal(t, "4000", f.svc.Overview().DeployedBalance.String())
		require.NoError(t, f.svc.CheckInvariants())
	})
}

func TestConcurrentDeployAndReceive(t *testing.T) {
	withLedger(t, ledger.Config{}, func(f ledgerFixture) {
		ctx := context.Background()
		f.register(t, baseDomain, remoteBase)

		require.NoError(t, f.svc.Deposit(ctx, user, big.NewInt(100_000)))
		_, err := f.svc.Deploy(ctx, keeper, baseDomain, big.NewInt(50_000))
		require.NoError(t, err)

		var wg sync.WaitGroup
		wg.Add(2)
		errs := make(chan error, 100)

		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				if _, err := f.svc.Deploy(ctx, keeper, baseDomain, big.NewInt(10)); err != nil {
					errs <- err
				}
			}
		}()

		go func() {
			defer wg.Done()
			for n := uint64(1); n <= 50; n++ {
				if _, err := f.bridge.Receive(ctx, baseDomain, n, big.NewInt(10), hubAddress); err != nil {
					errs <- err
				}
			}
		}()

		done := make(chan struct{})
		go func() {
			wg.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(10 * time.Second):
			t.Fatal("concurrent deploy and receive did not finish")
		}

		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		require.NoError(t, f.svc.CheckInvariants())
	})
}

func TestPauseBlocksCapitalMovements(t *testing.T) {
	withLedger(t, ledger.Config{}, func(f ledgerFixture) {
		ctx := context.Background()
		f.register(t, baseDomain, remoteBase)
		require.NoError(t, f.svc.Deposit(ctx, user, big.NewInt(5_000)))

		assert.True(t, errors.Is(f.svc.Unpause(ctx, admin), ledger.ErrNotPaused))

		require.NoError(t, f.svc.Pause(ctx, admin))
		assert.True(t, errors.Is(f.svc.Pause(ctx, admin), ledger.ErrPaused))

		assert.True(t, errors.Is(f.svc.Deposit(ctx, user, big.NewInt(1)), ledger.ErrPaused))
		assert.True(t, errors.Is(f.svc.Withdraw(ctx, user, big.NewInt(1)), ledger.ErrPaused))

		_, err := f.svc.Deploy(ctx, keeper, baseDomain, big.NewInt(1))
		assert.True(t, errors.Is(err, ledger.ErrPaused))

		_, err = f.svc.InitiateWithdrawal(ctx, keeper, baseDomain, big.NewInt(1))
		assert.True(t, errors.Is(err, ledger.ErrPaused))

		require.NoError(t, f.svc.Unpause(ctx, admin))
		require.NoError(t, f.svc.Deposit(ctx, user, big.NewInt(1)))
	})
}

func TestEmergencyWithdrawAllRequiresPause(t *testing.T) {
	withLedger(t, ledger.Config{}, func(f ledgerFixture) {
		ctx := context.Background()
		f.register(t, baseDomain, remoteBase)
		f.register(t, arbiDomain, remoteArbi)

		require.NoError(t, f.svc.Deposit(ctx, user, big.NewInt(10_000)))
		_, err := f.svc.Deploy(ctx, keeper, baseDomain, big.NewInt(4_000))
		require.NoError(t, err)

		_, err = f.svc.EmergencyWithdrawAll(ctx, admin)
		assert.True(t, errors.Is(err, ledger.ErrNotPaused))

		require.NoError(t, f.svc.Pause(ctx, admin))

		// only the position actually holding funds is instructed
		instructed, err := f.svc.EmergencyWithdrawAll(ctx, admin)
		require.NoError(t, err)
		assert.Equal(t, 1, instructed)
	})
}
