package rebalance

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/escion333/autoUSD-sub000/internal/auth"
	"github.com/escion333/autoUSD-sub000/internal/metrics"
	"github.com/escion333/autoUSD-sub000/internal/store"
	"github.com/escion333/autoUSD-sub000/internal/vault/ledger"
)

// Service is the rebalance engine: it reads the hub's position snapshot,
// decides whether capital should move and drives the ledger to move it.
type Service interface {
	// Evaluate computes the current decision without executing it.
	Evaluate(ctx context.Context) (Decision, error)

	// Execute carries out an actionable decision, enforcing the rate
	// limit, cooldowns and the single-execution guard.
	Execute(ctx context.Context, d Decision) error

	// RunOnce evaluates and, if actionable, executes. Returns the
	// decision either way.
	RunOnce(ctx context.Context) (Decision, error)

	// Status reports the engine's execution state.
	Status(ctx context.Context) (Status, error)

	// SetCooldown replaces the global cooldown.
	SetCooldown(ctx context.Context, caller auth.Caller, d time.Duration) error

	// SetMinYieldDifferential replaces the differential threshold.
	SetMinYieldDifferential(ctx context.Context, caller auth.Caller, bps int64) error

	// StartAutoRebalance runs RunOnce on a fixed interval until the
	// context is cancelled.
	StartAutoRebalance(ctx context.Context, interval time.Duration)
}

type service struct {
	mu sync.Mutex

	store   *store.Store
	ledger  ledger.Service
	metrics *metrics.Service

	executing      bool
	lastDomainMove map[uint32]time.Time

	cooldown        time.Duration
	domainCooldown  time.Duration
	minDiffBps      int64
	minMove         *big.Int
	maxMove         *big.Int
	maxCostUSD      int64
	costPerLegUSD   int64
	maxPerWindow    int
	rateLimitWindow time.Duration

	now func() time.Time
}

// Config carries the rebalance engine parameters.
type Config struct {
	Cooldown                time.Duration
	DomainCooldown          time.Duration
	MinYieldDifferentialBps int64
	MinMoveAmount           *big.Int
	MaxMoveAmount           *big.Int
	MaxCostUSD              int64
	CostPerLegUSD           int64
	MaxPerWindow            int
	RateLimitWindow         time.Duration
	Now                     func() time.Time
}

// engineCaller is the identity the engine acts under when driving the
// ledger.
var engineCaller = auth.Caller{Subject: "rebalance-engine", Role: auth.RoleKeeper}

// NewService creates a new rebalance engine.
//
//nolint:ireturn // Returning interface aids DI
func NewService(st *store.Store, lg ledger.Service, m *metrics.Service, cfg Config) Service {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	minMove := cfg.MinMoveAmount
	if minMove == nil {
		minMove = big.NewInt(0)
	}
	maxMove := cfg.MaxMoveAmount
	if maxMove == nil {
		maxMove = big.NewInt(0)
	}

	return &service{
		store:           st,
		ledger:          lg,
		metrics:         m,
		lastDomainMove:  make(map[uint32]time.Time),
		cooldown:        cfg.Cooldown,
		domainCooldown:  cfg.DomainCooldown,
		minDiffBps:      cfg.MinYieldDifferentialBps,
		minMove:         minMove,
		maxMove:         maxMove,
		maxCostUSD:      cfg.MaxCostUSD,
		costPerLegUSD:   cfg.CostPerLegUSD,
		maxPerWindow:    cfg.MaxPerWindow,
		rateLimitWindow: cfg.RateLimitWindow,
		now:             now,
	}
}

func noop(reason string) Decision {
	return Decision{Reason: reason}
}

// Evaluate walks the decision priority order: buffer check, deploy idle
// capital, then a child-to-child move narrowing the gap between the
// lowest- and highest-yield positions.
func (s *service) Evaluate(ctx context.Context) (Decision, error) {
	s.mu.Lock()
	minDiff := s.minDiffBps
	cooldown := s.cooldown
	s.mu.Unlock()

	overview := s.ledger.Overview()

	if overview.BufferEnabled && !overview.BufferSufficient {
		s.metrics.RebalanceVetoed("buffer_insufficient")

		return noop(ReasonBufferInsufficient), nil
	}

	active := make([]ledger.ChildPosition, 0, len(overview.Positions))
	for _, pos := range overview.Positions {
		if pos.Active {
			active = append(active, pos)
		}
	}

	if len(active) == 0 {
		s.metrics.RebalanceVetoed("too_few_positions")

		return noop(ReasonTooFewPositions), nil
	}

	// Deployable idle capital takes priority over moving deployed funds.
	if deployable := overview.Withdrawable; deployable.Cmp(s.minMove) >= 0 {
		return s.evaluateIdleDeploy(active, deployable)
	}

	if len(active) < 2 {
		s.metrics.RebalanceVetoed("too_few_positions")

		return noop(ReasonTooFewPositions), nil
	}

	source, target := active[0], active[0]
	for _, pos := range active[1:] {
		if pos.YieldBps < source.YieldBps {
			source = pos
		}
		if pos.YieldBps > target.YieldBps {
			target = pos
		}
	}

	if source.Domain == target.Domain {
		s.metrics.RebalanceVetoed("source_equals_target")

		return noop(ReasonSourceEqualsTarget), nil
	}

	if int64(target.YieldBps)-int64(source.YieldBps) < minDiff {
		s.metrics.RebalanceVetoed("differential_too_small")

		return noop(ReasonDifferentialTooSmall), nil
	}

	last, err := s.store.LastRebalanceAt(ctx)
	if err != nil {
		return Decision{}, err
	}
	if last > 0 && s.now().Sub(time.Unix(last, 0)) < cooldown {
		s.metrics.RebalanceVetoed("cooldown")

		return noop(ReasonCooldownActive), nil
	}

	// Move half the deployed-amount gap so the imbalance narrows without
	// reversing.
	gap := new(big.Int).Sub(source.Deployed, target.Deployed)
	amount := gap.Rsh(gap, 1)
	if amount.Cmp(s.maxMove) > 0 {
		amount.Set(s.maxMove)
	}

	if amount.Cmp(s.minMove) < 0 {
		s.metrics.RebalanceVetoed("move_too_small")

		return noop(ReasonMoveTooSmall), nil
	}

	// A child-to-child move costs two legs: unwind to the hub, redeploy.
	cost := 2 * s.costPerLegUSD
	if cost > s.maxCostUSD {
		s.metrics.RebalanceVetoed("cost_too_high")

		return noop(ReasonCostTooHigh), nil
	}

	return Decision{
		Actionable:       true,
		SourceDomain:     source.Domain,
		TargetDomain:     target.Domain,
		Amount:           amount,
		EstimatedCostUSD: cost,
		ExecutionID:      executionID(source.Domain, target.Domain, amount, source.LastReport, target.LastReport),
	}, nil
}

func (s *service) evaluateIdleDeploy(active []ledger.ChildPosition, deployable *big.Int) (Decision, error) {
	target := active[0]
	for _, pos := range active[1:] {
		if pos.YieldBps > target.YieldBps {
			target = pos
		}
	}

	amount := new(big.Int).Set(deployable)
	if amount.Cmp(s.maxMove) > 0 {
		amount.Set(s.maxMove)
	}

	if s.costPerLegUSD > s.maxCostUSD {
		s.metrics.RebalanceVetoed("cost_too_high")

		return noop(ReasonCostTooHigh), nil
	}

	return Decision{
		Actionable:       true,
		FromIdle:         true,
		TargetDomain:     target.Domain,
		Amount:           amount,
		EstimatedCostUSD: s.costPerLegUSD,
		ExecutionID:      executionID(0, target.Domain, amount, time.Time{}, target.LastReport),
	}, nil
}

// executionID derives a stable id from the decision's content and the
// yield reports it was based on, so the same decision cannot run twice
// but a fresh report cycle can produce a new one.
func executionID(source, target uint32, amount *big.Int, sourceReport, targetReport time.Time) common.Hash {
	buf := make([]byte, 0, 88)
	buf = append(buf, byte(source>>24), byte(source>>16), byte(source>>8), byte(source))
	buf = append(buf, byte(target>>24), byte(target>>16), byte(target>>8), byte(target))
	buf = append(buf, common.BigToHash(amount).Bytes()...)
	buf = append(buf, common.BigToHash(big.NewInt(sourceReport.Unix())).Bytes()...)
	buf = append(buf, common.BigToHash(big.NewInt(targetReport.Unix())).Bytes()...)

	return crypto.Keccak256Hash(buf)
}

// Execute drives an actionable decision through the ledger. The guard
// flag, the rate limit and both cooldowns are enforced here; the buffer
// is re-verified right before capital moves.
func (s *service) Execute(ctx context.Context, d Decision) error {
	if !d.Actionable {
		return errors.Wrapf(ErrNotActionable, "reason: %s", d.Reason)
	}

	if err := s.beginExecution(); err != nil {
		return err
	}
	defer s.endExecution()

	now := s.now()

	count, err := s.store.CountRebalancesSince(ctx, now.Add(-s.rateLimitWindow).Unix())
	if err != nil {
		return err
	}
	if count >= s.maxPerWindow {
		s.metrics.RebalanceVetoed("rate_limited")

		return errors.Wrapf(ErrRateLimited, "%d executions in window, limit %d", count, s.maxPerWindow)
	}

	last, err := s.store.LastRebalanceAt(ctx)
	if err != nil {
		return err
	}
	if last > 0 && now.Sub(time.Unix(last, 0)) < s.cooldown {
		s.metrics.RebalanceVetoed("cooldown")

		return errors.Wrapf(ErrCooldownActive, "last rebalance %v ago", now.Sub(time.Unix(last, 0)))
	}

	if err := s.checkDomainCooldowns(now, d); err != nil {
		return err
	}

	if overview := s.ledger.Overview(); overview.BufferEnabled && !overview.BufferSufficient && !d.FromIdle {
		s.metrics.RebalanceVetoed("buffer_insufficient")

		return ErrBufferInsufficient
	}

	inserted, err := s.store.InsertRebalanceExecution(ctx, store.RebalanceExecution{
		ExecutionID:  d.ExecutionID.Hex(),
		SourceDomain: d.SourceDomain,
		TargetDomain: d.TargetDomain,
		Amount:       d.Amount.String(),
		ExecutedAt:   now.Unix(),
	})
	if err != nil {
		return err
	}
	if !inserted {
		return errors.Wrapf(ErrAlreadyExecuted, "execution %s", d.ExecutionID.Hex())
	}

	if err := s.delegate(ctx, d); err != nil {
		// Clear the marker so a corrected decision can be retried.
		if derr := s.store.DeleteRebalanceExecution(ctx, d.ExecutionID.Hex()); derr != nil {
			log.Error().Err(derr).Str("execution_id", d.ExecutionID.Hex()).Msg("RebalanceService: failed to clear execution marker")
		}

		return errors.Wrap(err, "rebalance execution failed")
	}

	s.mu.Lock()
	s.lastDomainMove[d.TargetDomain] = now
	if !d.FromIdle {
		s.lastDomainMove[d.SourceDomain] = now
	}
	s.mu.Unlock()

	s.metrics.RebalanceExecuted()

	log.Info().
		Bool("from_idle", d.FromIdle).
		Uint32("source_domain", d.SourceDomain).
		Uint32("target_domain", d.TargetDomain).
		Str("amount", d.Amount.String()).
		Str("execution_id", d.ExecutionID.Hex()).
		Msg("RebalanceService: rebalance executed")

	return nil
}

func (s *service) beginExecution() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.executing {
		return ErrExecutionInProgress
	}
	s.executing = true

	return nil
}

func (s *service) endExecution() {
	s.mu.Lock()
	s.executing = false
	s.mu.Unlock()
}

func (s *service) checkDomainCooldowns(now time.Time, d Decision) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	domains := []uint32{d.TargetDomain}
	if !d.FromIdle {
		domains = append(domains, d.SourceDomain)
	}

	for _, domain := range domains {
		if moved, ok := s.lastDomainMove[domain]; ok && now.Sub(moved) < s.domainCooldown {
			s.metrics.RebalanceVetoed("domain_cooldown")

			return errors.Wrapf(ErrDomainCooldownActive, "domain %d moved %v ago", domain, now.Sub(moved))
		}
	}

	return nil
}

func (s *service) delegate(ctx context.Context, d Decision) error {
	if d.FromIdle {
		_, err := s.ledger.Deploy(ctx, engineCaller, d.TargetDomain, d.Amount)

		return err
	}

	// Capital returns to the hub first; the next evaluation redeploys it
	// toward the highest-yield position.
	_, err := s.ledger.InitiateRebalanceReturn(ctx, d.SourceDomain, d.Amount)

	return err
}

func (s *service) RunOnce(ctx context.Context) (Decision, error) {
	d, err := s.Evaluate(ctx)
	if err != nil {
		return d, err
	}

	if !d.Actionable {
		log.Debug().Str("reason", d.Reason).Msg("RebalanceService: no action")

		return d, nil
	}

	return d, s.Execute(ctx, d)
}

func (s *service) Status(ctx context.Context) (Status, error) {
	count, err := s.store.CountRebalancesSince(ctx, s.now().Add(-s.rateLimitWindow).Unix())
	if err != nil {
		return Status{}, err
	}

	last, err := s.store.LastRebalanceAt(ctx)
	if err != nil {
		return Status{}, err
	}

	s.mu.Lock()
	executing := s.executing
	s.mu.Unlock()

	st := Status{
		Executing:          executing,
		ExecutionsInWindow: count,
		MaxPerWindow:       s.maxPerWindow,
	}
	if last > 0 {
		st.LastRebalanceAt = time.Unix(last, 0)
	}

	return st, nil
}

func (s *service) SetCooldown(ctx context.Context, caller auth.Caller, d time.Duration) error {
	if err := caller.RequireAdmin(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.cooldown = d

	log.Info().Str("caller", caller.Subject).Dur("cooldown", d).Msg("RebalanceService: cooldown updated")

	return nil
}

func (s *service) SetMinYieldDifferential(ctx context.Context, caller auth.Caller, bps int64) error {
	if err := caller.RequireAdmin(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.minDiffBps = bps

	log.Info().Str("caller", caller.Subject).Int64("min_differential_bps", bps).Msg("RebalanceService: differential threshold updated")

	return nil
}

// StartAutoRebalance drives RunOnce on the given interval until ctx is
// cancelled. Errors are logged and do not stop the loop.
func (s *service) StartAutoRebalance(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		log.Info().Dur("interval", interval).Msg("RebalanceService: auto-rebalance loop started")

		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("RebalanceService: auto-rebalance loop stopped")

				return
			case <-ticker.C:
				if _, err := s.RunOnce(ctx); err != nil {
					log.Warn().Err(err).Msg("RebalanceService: auto-rebalance run failed")
				}
			}
		}
	}()
}
