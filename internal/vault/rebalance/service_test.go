package rebalance_test

import (
	"context"
	"math/big"
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
	"github.com/escion333/autoUSD-sub000/internal/vault/rebalance"
	"github.com/escion333/autoUSD-sub000/internal/vault/relay"
)

var (
	hubAddress = common.HexToAddress("0x0000000000000000000000000000000000000001")
	remoteBase = common.HexToAddress("0x00000000000000000000000000000000000000a0")
	remoteArbi = common.HexToAddress("0x00000000000000000000000000000000000000b0")

	admin  = auth.Caller{Subject: "ops", Role: auth.RoleAdmin}
	keeper = auth.Caller{Subject: "bot", Role: auth.RoleKeeper}
)

const (
	baseDomain = uint32(10)
	arbiDomain = uint32(20)
)

type engineFixture struct {
	engine rebalance.Service
	ledger ledger.Service
	store  *store.Store
	now    *time.Time
}

func defaultEngineConfig() rebalance.Config {
	return rebalance.Config{
		Cooldown:                4 * time.Hour,
		DomainCooldown:          time.Hour,
		MinYieldDifferentialBps: 100,
		MinMoveAmount:           big.NewInt(100),
		MaxMoveAmount:           big.NewInt(100_000),
		MaxCostUSD:              50,
		CostPerLegUSD:           10,
		MaxPerWindow:            5,
		RateLimitWindow:         24 * time.Hour,
	}
}

func withEngine(t *testing.T, cfg rebalance.Config, closure func(f engineFixture)) {
	t.Helper()

	test.WithTestStore(t, func(st *store.Store) {
		now := time.Unix(1_700_000_000, 0)
		clock := func() time.Time { return now }

		ms := messenger.NewService(st, relay.NewLoopbackMailbox(), nil, messenger.Config{
			LocalDomain:   1,
			LocalIdentity: hubAddress,
			MessageExpiry: time.Hour,
			MaxRetries:    3,
			Now:           clock,
		})

		br := bridge.NewService(st, relay.NewLoopbackTokenMessenger(), nil, hubAddress, bridge.Config{
			MinAmount:     big.NewInt(1),
			MaxAmount:     big.NewInt(10_000_000),
			Timeout:       24 * time.Hour,
			MaxRetryCount: 3,
			Now:           clock,
		})

		lg := ledger.NewService(st, br, ms, nil, ledger.Config{
			BufferBps:          500,
			MaxFeeBps:          200,
			FeeTimelock:        48 * time.Hour,
			CrossDomainTimeout: 24 * time.Hour,
			SettlementGrace:    72 * time.Hour,
			Now:                clock,
		})

		cfg.Now = clock
		engine := rebalance.NewService(st, lg, nil, cfg)

		closure(engineFixture{engine: engine, ledger: lg, store: st, now: &now})
	})
}

// seedPosition registers a domain, deploys funds into it and applies a
// yield report, leaving the hub's idle balance untouched by the deposit.
func (f engineFixture) seedPosition(t *testing.T, domain uint32, remote common.Address, deployed int64, yieldBps uint32) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, f.ledger.RegisterPosition(ctx, admin, domain, remote))

	if deployed > 0 {
		require.NoError(t, f.ledger.Deposit(ctx, admin, big.NewInt(deployed)))
		_, err := f.ledger.Deploy(ctx, keeper, domain, big.NewInt(deployed))
		require.NoError(t, err)
	}

	require.NoError(t, f.ledger.HandleInstruction(ctx, domain, messenger.YieldReport{
		YieldBps: yieldBps,
		TVL:      big.NewInt(deployed),
	}))
}

func TestEvaluateNarrowsYieldGap(t *testing.T) {
	withEngine(t, defaultEngineConfig(), func(f engineFixture) {
		ctx := context.Background()
		f.seedPosition(t, baseDomain, remoteBase, 6_000, 800)
		f.seedPosition(t, arbiDomain, remoteArbi, 2_000, 1_200)

		d, err := f.engine.Evaluate(ctx)
		require.NoError(t, err)
		require.True(t, d.Actionable)
		assert.False(t, d.FromIdle)
		assert.Equal(t, baseDomain, d.SourceDomain)
		assert.Equal(t, arbiDomain, d.TargetDomain)
		// half the 4000 gap between the positions
		assert.Equal(t, "2000", d.Amount.String())
		assert.Equal(t, int64(20), d.EstimatedCostUSD)
		assert.NotEqual(t, common.Hash{}, d.ExecutionID)
	})
}

func TestRunOnceExecutesThenCoolsDown(t *testing.T) {
	withEngine(t, defaultEngineConfig(), func(f engineFixture) {
		ctx := context.Background()
		f.seedPosition(t, baseDomain, remoteBase, 6_000, 800)
		f.seedPosition(t, arbiDomain, remoteArbi, 2_000, 1_200)

		d, err := f.engine.RunOnce(ctx)
		require.NoError(t, err)
		require.True(t, d.Actionable)

		st, err := f.engine.Status(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, st.ExecutionsInWindow)
		assert.Equal(t, *f.now, st.LastRebalanceAt)

		// the very next run is vetoed by the global cooldown
		d, err = f.engine.RunOnce(ctx)
		require.NoError(t, err)
		assert.False(t, d.Actionable)
		assert.Equal(t, rebalance.ReasonCooldownActive, d.Reason)
	})
}

func TestEvaluatePrefersDeployingIdleCapital(t *testing.T) {
	withEngine(t, defaultEngineConfig(), func(f engineFixture) {
		ctx := context.Background()
		f.seedPosition(t, baseDomain, remoteBase, 1_000, 800)
		f.seedPosition(t, arbiDomain, remoteArbi, 1_000, 1_200)
		require.NoError(t, f.ledger.Deposit(ctx, admin, big.NewInt(5_000)))

		d, err := f.engine.RunOnce(ctx)
		require.NoError(t, err)
		require.True(t, d.Actionable)
		assert.True(t, d.FromIdle)
		assert.Equal(t, arbiDomain, d.TargetDomain)
		assert.Equal(t, "5000", d.Amount.String())
		assert.Equal(t, int64(10), d.EstimatedCostUSD)

		// the idle capital landed on the highest-yield position
		assert.Equal(t, "0", f.ledger.Overview().IdleBalance.String())
		pos, err := f.ledger.Position(arbiDomain)
		require.NoError(t, err)
		assert.Equal(t, "6000", pos.Deployed.String())
	})
}

func TestEvaluateVetoes(t *testing.T) {
	t.Run("no positions", func(t *testing.T) {
		withEngine(t, defaultEngineConfig(), func(f engineFixture) {
			d, err := f.engine.Evaluate(context.Background())
			require.NoError(t, err)
			assert.False(t, d.Actionable)
			assert.Equal(t, rebalance.ReasonTooFewPositions, d.Reason)
		})
	})

	t.Run("single position with nothing idle", func(t *testing.T) {
		withEngine(t, defaultEngineConfig(), func(f engineFixture) {
			f.seedPosition(t, baseDomain, remoteBase, 5_000, 800)

			d, err := f.engine.Evaluate(context.Background())
			require.NoError(t, err)
			assert.False(t, d.Actionable)
			assert.Equal(t, rebalance.ReasonTooFewPositions, d.Reason)
		})
	})

	t.Run("differential below threshold", func(t *testing.T) {
		withEngine(t, defaultEngineConfig(), func(f engineFixture) {
			f.seedPosition(t, baseDomain, remoteBase, 6_000, 800)
			f.seedPosition(t, arbiDomain, remoteArbi, 2_000, 850)

			d, err := f.engine.Evaluate(context.Background())
			require.NoError(t, err)
			assert.False(t, d.Actionable)
			assert.Equal(t, rebalance.ReasonDifferentialTooSmall, d.Reason)
		})
	})

	t.Run("move below minimum", func(t *testing.T) {
		withEngine(t, defaultEngineConfig(), func(f engineFixture) {
			f.seedPosition(t, baseDomain, remoteBase, 3_000, 800)
			f.seedPosition(t, arbiDomain, remoteArbi, 3_000, 1_200)

			d, err := f.engine.Evaluate(context.Background())
			require.NoError(t, err)
			assert.False(t, d.Actionable)
			assert.Equal(t, rebalance.ReasonMoveTooSmall, d.Reason)
		})
	})

	t.Run("cost above ceiling", func(t *testing.T) {
		cfg := defaultEngineConfig()
		cfg.MaxCostUSD = 15
		withEngine(t, cfg, func(f engineFixture) {
			f.seedPosition(t, baseDomain, remoteBase, 6_000, 800)
			f.seedPosition(t, arbiDomain, remoteArbi, 2_000, 1_200)

			d, err := f.engine.Evaluate(context.Background())
			require.NoError(t, err)
			assert.False(t, d.Actionable)
			assert.Equal(t, rebalance.ReasonCostTooHigh, d.Reason)
		})
	})

	t.Run("buffer insufficient", func(t *testing.T) {
		withEngine(t, defaultEngineConfig(), func(f engineFixture) {
			ctx := context.Background()
			f.seedPosition(t, baseDomain, remoteBase, 6_000, 800)
			f.seedPosition(t, arbiDomain, remoteArbi, 2_000, 1_200)
			require.NoError(t, f.ledger.SetBufferEnabled(ctx, admin, true))

			d, err := f.engine.Evaluate(ctx)
			require.NoError(t, err)
			assert.False(t, d.Actionable)
			assert.Equal(t, rebalance.ReasonBufferInsufficient, d.Reason)
		})
	})
}

func TestExecuteRejectsNoopDecisions(t *testing.T) {
	withEngine(t, defaultEngineConfig(), func(f engineFixture) {
		err := f.engine.Execute(context.Background(), rebalance.Decision{Reason: rebalance.ReasonTooFewPositions})
		assert.True(t, errors.Is(err, rebalance.ErrNotActionable))
	})
}

func TestExecuteGuardsAgainstReplay(t *testing.T) {
	cfg := defaultEngineConfig()
	cfg.Cooldown = 0
	cfg.DomainCooldown = 0
	withEngine(t, cfg, func(f engineFixture) {
		ctx := context.Background()
		f.seedPosition(t, baseDomain, remoteBase, 6_000, 800)
		f.seedPosition(t, arbiDomain, remoteArbi, 2_000, 1_200)

		d, err := f.engine.Evaluate(ctx)
		require.NoError(t, err)
		require.NoError(t, f.engine.Execute(ctx, d))

		err = f.engine.Execute(ctx, d)
		assert.True(t, errors.Is(err, rebalance.ErrAlreadyExecuted))
	})
}

func TestExecuteEnforcesRateLimit(t *testing.T) {
	cfg := defaultEngineConfig()
	cfg.Cooldown = 0
	cfg.DomainCooldown = 0
	cfg.MaxPerWindow = 1
	withEngine(t, cfg, func(f engineFixture) {
		ctx := context.Background()
		f.seedPosition(t, baseDomain, remoteBase, 6_000, 800)
		f.seedPosition(t, arbiDomain, remoteArbi, 2_000, 1_200)

		d, err := f.engine.Evaluate(ctx)
		require.NoError(t, err)
		require.NoError(t, f.engine.Execute(ctx, d))

		second := d
		second.Amount = big.NewInt(500)
		second.ExecutionID = common.HexToHash("0x02")

		err = f.engine.Execute(ctx, second)
		assert.True(t, errors.Is(err, rebalance.ErrRateLimited))
	})
}

func TestExecuteEnforcesDomainCooldown(t *testing.T) {
	cfg := defaultEngineConfig()
	cfg.Cooldown = 0
	cfg.DomainCooldown = 2 * time.Hour
	withEngine(t, cfg, func(f engineFixture) {
		ctx := context.Background()
		f.seedPosition(t, baseDomain, remoteBase, 6_000, 800)
		f.seedPosition(t, arbiDomain, remoteArbi, 2_000, 1_200)

		d, err := f.engine.Evaluate(ctx)
		require.NoError(t, err)
		require.NoError(t, f.engine.Execute(ctx, d))

		second := d
		second.Amount = big.NewInt(500)
		second.ExecutionID = common.HexToHash("0x02")

		err = f.engine.Execute(ctx, second)
		assert.True(t, errors.Is(err, rebalance.ErrDomainCooldownActive))

		*f.now = f.now.Add(3 * time.Hour)
		require.NoError(t, f.engine.Execute(ctx, second))
	})
}

func TestExecuteRechecksBufferBeforeMoving(t *testing.T) {
	withEngine(t, defaultEngineConfig(), func(f engineFixture) {
		ctx := context.Background()
		f.seedPosition(t, baseDomain, remoteBase, 6_000, 800)
		f.seedPosition(t, arbiDomain, remoteArbi, 2_000, 1_200)

		d, err := f.engine.Evaluate(ctx)
		require.NoError(t, err)
		require.True(t, d.Actionable)

		// the buffer drops below target between evaluation and execution
		require.NoError(t, f.ledger.SetBufferEnabled(ctx, admin, true))

		err = f.engine.Execute(ctx, d)
		assert.True(t, errors.Is(err, rebalance.ErrBufferInsufficient))
	})
}

func TestExecuteFailureClearsIdempotencyMarker(t *testing.T) {
	withEngine(t, defaultEngineConfig(), func(f engineFixture) {
		ctx := context.Background()
		f.seedPosition(t, baseDomain, remoteBase, 6_000, 800)
		f.seedPosition(t, arbiDomain, remoteArbi, 2_000, 1_200)

		d, err := f.engine.Evaluate(ctx)
		require.NoError(t, err)

		// sabotage the decision so the ledger rejects it
		broken := d
		broken.Amount = big.NewInt(1_000_000)

		err = f.engine.Execute(ctx, broken)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ledger.ErrInsufficientLiquidity))

		st, err := f.engine.Status(ctx)
		require.NoError(t, err)
		assert.Zero(t, st.ExecutionsInWindow)

		// the marker was cleared, so the intact decision still goes through
		require.NoError(t, f.engine.Execute(ctx, d))
	})
}

func TestSettingsRequireAdmin(t *testing.T) {
	withEngine(t, defaultEngineConfig(), func(f engineFixture) {
		ctx := context.Background()

		err := f.engine.SetCooldown(ctx, keeper, time.Hour)
		assert.True(t, errors.Is(err, auth.ErrForbidden))
		err = f.engine.SetMinYieldDifferential(ctx, keeper, 50)
		assert.True(t, errors.Is(err, auth.ErrForbidden))

		require.NoError(t, f.engine.SetCooldown(ctx, admin, time.Hour))
		require.NoError(t, f.engine.SetMinYieldDifferential(ctx, admin, 600))

		// the raised threshold now vetoes the 400 bps gap
		f.seedPosition(t, baseDomain, remoteBase, 6_000, 800)
		f.seedPosition(t, arbiDomain, remoteArbi, 2_000, 1_200)

		d, err := f.engine.Evaluate(ctx)
		require.NoError(t, err)
		assert.False(t, d.Actionable)
		assert.Equal(t, rebalance.ReasonDifferentialTooSmall, d.Reason)
	})
}
