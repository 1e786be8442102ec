package ledger

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/escion333/autoUSD-sub000/internal/auth"
	"github.com/escion333/autoUSD-sub000/internal/metrics"
	"github.com/escion333/autoUSD-sub000/internal/store"
	"github.com/escion333/autoUSD-sub000/internal/vault/bridge"
	"github.com/escion333/autoUSD-sub000/internal/vault/messenger"
)

// Service is the hub ledger: the single owner of the idle/deployed split,
// the position registry and fee governance. All mutations run serially
// under one lock so the accounting invariants hold at every observable
// state.
type Service interface {
	// Deposit credits idle balance, respecting the deposit cap.
	Deposit(ctx context.Context, caller auth.Caller, amount *big.Int) error

	// Withdraw debits idle balance up to the buffer-aware limit.
	Withdraw(ctx context.Context, caller auth.Caller, amount *big.Int) error

	// RegisterPosition adds a child domain and trusts its remote identity
	// for messaging and bridging.
	RegisterPosition(ctx context.Context, caller auth.Caller, domain uint32, remote common.Address) error

	// DeactivatePosition retires an empty position without deleting it.
	DeactivatePosition(ctx context.Context, caller auth.Caller, domain uint32) error

	// RemovePosition deletes a deactivated, empty position.
	RemovePosition(ctx context.Context, caller auth.Caller, domain uint32) error

	// Deploy moves idle funds to a child position: bridges the asset,
	// sends the deployment instruction and records a pending operation.
	Deploy(ctx context.Context, caller auth.Caller, domain uint32, amount *big.Int) (string, error)

	// InitiateWithdrawal instructs a child position to unwind funds back
	// to the hub. Local accounting moves only when the settlement arrives.
	InitiateWithdrawal(ctx context.Context, caller auth.Caller, domain uint32, amount *big.Int) (string, error)

	// InitiateRebalanceReturn is InitiateWithdrawal driven by the
	// rebalance engine; the pending operation is tagged as a rebalance.
	InitiateRebalanceReturn(ctx context.Context, domain uint32, amount *big.Int) (string, error)

	// CollectFees accrues the time-prorated management fee, capped at the
	// current idle balance.
	CollectFees(ctx context.Context, caller auth.Caller) (*big.Int, error)

	// ProposeFeeUpdate starts the timelock for a new management fee.
	ProposeFeeUpdate(ctx context.Context, caller auth.Caller, feeBps int64) error

	// ExecuteFeeUpdate applies a proposed fee after its timelock expired.
	ExecuteFeeUpdate(ctx context.Context, caller auth.Caller) error

	// RecoverTimeouts reverts stale deployments and flags stale
	// withdrawals. Returns how many operations were reverted and flagged.
	RecoverTimeouts(ctx context.Context, caller auth.Caller) (int, int, error)

	// Pause halts capital movements and broadcasts the pause to children.
	Pause(ctx context.Context, caller auth.Caller) error

	// Unpause resumes operations and notifies children.
	Unpause(ctx context.Context, caller auth.Caller) error

	// EmergencyWithdrawAll instructs every active position to unwind
	// completely. Only valid while paused.
	EmergencyWithdrawAll(ctx context.Context, caller auth.Caller) (int, error)

	// SetDepositCap replaces the deposit cap; nil or zero removes it.
	SetDepositCap(ctx context.Context, caller auth.Caller, newCap *big.Int) error

	// SetBufferEnabled toggles buffer management.
	SetBufferEnabled(ctx context.Context, caller auth.Caller, enabled bool) error

	// Overview returns a snapshot of the hub accounting.
	Overview() Overview

	// Positions returns snapshots of every registered position.
	Positions() []ChildPosition

	// Position returns a snapshot of one registered position.
	Position(domain uint32) (ChildPosition, error)

	// DeployableAmount returns the idle capital above the buffer reserve.
	DeployableAmount() *big.Int

	// CheckInvariants verifies the accounting identities and returns the
	// first violation found.
	CheckInvariants() error

	// HandleInstruction implements messenger.Handler for instructions
	// addressed to the hub.
	HandleInstruction(ctx context.Context, originDomain uint32, instr messenger.Instruction) error

	// OnSettlement implements bridge.SettlementHandler; bookkeeping is
	// idempotent keyed by the settlement hash.
	OnSettlement(ctx context.Context, amount *big.Int, sourceDomain uint32, messageHash common.Hash) error

	// OnTransferConfirmed completes the pending operation referenced by a
	// confirmed bridge transfer.
	OnTransferConfirmed(ctx context.Context, reference string) error
}

type service struct {
	mu sync.Mutex

	store     *store.Store
	bridge    bridge.Service
	messenger messenger.Service
	metrics   *metrics.Service

	idle        *big.Int
	deployed    *big.Int
	feesAccrued *big.Int
	positions   map[uint32]*ChildPosition

	depositCap    *big.Int
	bufferBps     int64
	bufferEnabled bool

	feeBps            int64
	maxFeeBps         int64
	feeTimelock       time.Duration
	feeSink           common.Address
	pendingFee        *PendingFeeUpdate
	lastFeeCollection time.Time

	crossDomainTimeout time.Duration
	settlementGrace    time.Duration

	paused bool

	now func() time.Time
}

// Config carries the hub ledger parameters.
type Config struct {
	DepositCap         *big.Int
	BufferBps          int64
	BufferEnabled      bool
	ManagementFeeBps   int64
	MaxFeeBps          int64
	FeeTimelock        time.Duration
	FeeSink            common.Address
	CrossDomainTimeout time.Duration
	SettlementGrace    time.Duration
	Now                func() time.Time
}

// NewService creates a new hub ledger and wires itself as the handler for
// inbound instructions and settlements.
//
//nolint:ireturn // Returning interface aids DI
func NewService(st *store.Store, br bridge.Service, ms messenger.Service, m *metrics.Service, cfg Config) Service {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	depositCap := cfg.DepositCap
	if depositCap == nil {
		depositCap = big.NewInt(0)
	}

	s := &service{
		store:              st,
		bridge:             br,
		messenger:          ms,
		metrics:            m,
		idle:               big.NewInt(0),
		deployed:           big.NewInt(0),
		feesAccrued:        big.NewInt(0),
		positions:          make(map[uint32]*ChildPosition),
		depositCap:         depositCap,
		bufferBps:          cfg.BufferBps,
		bufferEnabled:      cfg.BufferEnabled,
		feeBps:             cfg.ManagementFeeBps,
		maxFeeBps:          cfg.MaxFeeBps,
		feeTimelock:        cfg.FeeTimelock,
		feeSink:            cfg.FeeSink,
		crossDomainTimeout: cfg.CrossDomainTimeout,
		settlementGrace:    cfg.SettlementGrace,
		lastFeeCollection:  now(),
		now:                now,
	}

	if ms != nil {
		ms.SetHandler(s)
	}
	if br != nil {
		br.SetHandler(s)
	}

	return s
}

// requiredBuffer returns ceil(totalAssets * bufferBps / 10000), or zero
// when buffer management is disabled. Callers must hold s.mu.
func (s *service) requiredBuffer() *big.Int {
	if !s.bufferEnabled || s.bufferBps <= 0 {
		return big.NewInt(0)
	}

	total := new(big.Int).Add(s.idle, s.deployed)
	num := total.Mul(total, big.NewInt(s.bufferBps))

	q, r := new(big.Int).QuoRem(num, big.NewInt(bpsDenominator), new(big.Int))
	if r.Sign() > 0 {
		q.Add(q, big.NewInt(1))
	}

	return q
}

// availableAboveBuffer returns max(0, idle - requiredBuffer). Callers must
// hold s.mu.
func (s *service) availableAboveBuffer() *big.Int {
	avail := new(big.Int).Sub(s.idle, s.requiredBuffer())
	if avail.Sign() < 0 {
		return big.NewInt(0)
	}

	return avail
}

func (s *service) publishGauges() {
	total := new(big.Int).Add(s.idle, s.deployed)
	s.metrics.SetBalances(bigFloat(total), bigFloat(s.idle), bigFloat(s.deployed))
}

func bigFloat(v *big.Int) float64 {
	f, _ := new(big.Float).SetInt(v).Float64()

	return f
}

func validAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}

	return nil
}

func (s *service) Deposit(ctx context.Context, caller auth.Caller, amount *big.Int) error {
	if err := validAmount(amount); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.paused {
		return ErrPaused
	}

	if s.depositCap.Sign() > 0 {
		total := new(big.Int).Add(s.idle, s.deployed)
		if total.Add(total, amount).Cmp(s.depositCap) > 0 {
			return errors.Wrapf(ErrDepositCapExceeded, "cap %v", s.depositCap)
		}
	}

	s.idle.Add(s.idle, amount)
	s.publishGauges()

	log.Info().
		Str("caller", caller.Subject).
		Str("amount", amount.String()).
		Str("idle", s.idle.String()).
		Msg("LedgerService: deposit accepted")

	return nil
}

func (s *service) Withdraw(ctx context.Context, caller auth.Caller, amount *big.Int) error {
	if err := validAmount(amount); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.paused {
		return ErrPaused
	}

	if avail := s.availableAboveBuffer(); amount.Cmp(avail) > 0 {
		return errors.Wrapf(ErrInsufficientLiquidity, "withdrawable %v", avail)
	}

	s.idle.Sub(s.idle, amount)
	s.publishGauges()

	log.Info().
		Str("caller", caller.Subject).
		Str("amount", amount.String()).
		Str("idle", s.idle.String()).
		Msg("LedgerService: withdrawal executed")

	return nil
}

func (s *service) RegisterPosition(ctx context.Context, caller auth.Caller, domain uint32, remote common.Address) error {
	if err := caller.RequireAdmin(); err != nil {
		return err
	}

	if remote == (common.Address{}) {
		return errors.New("remote address must not be zero")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.positions[domain]; ok {
		return errors.Wrapf(ErrDuplicateDomain, "domain %d", domain)
	}

	s.positions[domain] = &ChildPosition{
		Domain:   domain,
		Remote:   remote,
		Deployed: big.NewInt(0),
		Active:   true,
	}

	s.messenger.SetTrustedSender(domain, remote)
	s.bridge.SetSupportedDomain(domain, true)

	log.Info().
		Str("caller", caller.Subject).
		Uint32("domain", domain).
		Str("remote", remote.Hex()).
		Msg("LedgerService: position registered")

	return nil
}

func (s *service) DeactivatePosition(ctx context.Context, caller auth.Caller, domain uint32) error {
	if err := caller.RequireAdmin(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	pos, ok := s.positions[domain]
	if !ok {
		return errors.Wrapf(ErrUnknownDomain, "domain %d", domain)
	}

	if pos.Deployed.Sign() != 0 {
		return errors.Wrapf(ErrPositionNotEmpty, "deployed %v", pos.Deployed)
	}

	pos.Active = false
	s.bridge.SetSupportedDomain(domain, false)

	log.Info().
		Str("caller", caller.Subject).
		Uint32("domain", domain).
		Msg("LedgerService: position deactivated")

	return nil
}

func (s *service) RemovePosition(ctx context.Context, caller auth.Caller, domain uint32) error {
	if err := caller.RequireAdmin(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	pos, ok := s.positions[domain]
	if !ok {
		return errors.Wrapf(ErrUnknownDomain, "domain %d", domain)
	}

	if pos.Active {
		return errors.New("position must be deactivated before removal")
	}

	if pos.Deployed.Sign() != 0 {
		return errors.Wrapf(ErrPositionNotEmpty, "deployed %v", pos.Deployed)
	}

	delete(s.positions, domain)
	s.messenger.RemoveTrustedSender(domain)

	log.Info().
		Str("caller", caller.Subject).
		Uint32("domain", domain).
		Msg("LedgerService: position removed")

	return nil
}

// Deploy bridges funds toward the position first; local accounting moves
// only after the burn succeeded. A messenger failure after the burn is
// queued, not rolled back, since the asset has already left the hub.
func (s *service) Deploy(ctx context.Context, caller auth.Caller, domain uint32, amount *big.Int) (string, error) {
	if err := caller.RequireKeeper(); err != nil {
		return "", err
	}
	if err := validAmount(amount); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.paused {
		return "", ErrPaused
	}

	pos, ok := s.positions[domain]
	if !ok {
		return "", errors.Wrapf(ErrUnknownDomain, "domain %d", domain)
	}
	if !pos.Active {
		return "", errors.Wrapf(ErrPositionInactive, "domain %d", domain)
	}

	if avail := s.availableAboveBuffer(); amount.Cmp(avail) > 0 {
		return "", errors.Wrapf(ErrInsufficientLiquidity, "deployable %v", avail)
	}

	// The correlation id rides on the bridge transfer so a destination
	// confirmation can complete the matching pending operation.
	correlationID := uuid.New().String()

	transferID, err := s.bridge.Send(ctx, amount, domain, pos.Remote, correlationID)
	if err != nil {
		return "", errors.Wrap(err, "failed to bridge deployment")
	}

	s.idle.Sub(s.idle, amount)
	s.deployed.Add(s.deployed, amount)
	pos.Deployed.Add(pos.Deployed, amount)

	instr := messenger.DepositInstruction{Amount: amount, CorrelationID: correlationID}
	if _, err := s.messenger.Send(ctx, domain, pos.Remote, instr); err != nil && !errors.Is(err, messenger.ErrQueuedForRetry) {
		// The asset is already in flight; the pending operation keeps the
		// deployment visible until it settles or times out.
		log.Error().
			Err(err).
			Uint32("domain", domain).
			Str("correlation_id", correlationID).
			Msg("LedgerService: deployment instruction undeliverable")
	}

	if err := s.store.InsertPendingOperation(ctx, store.PendingOperation{
		CorrelationID: correlationID,
		Kind:          store.OperationKindDeployment,
		Amount:        amount.String(),
		TargetDomain:  domain,
		CreatedAt:     s.now().Unix(),
	}); err != nil {
		return "", err
	}

	s.publishGauges()

	log.Info().
		Str("caller", caller.Subject).
		Uint32("domain", domain).
		Str("amount", amount.String()).
		Str("transfer_id", transferID).
		Str("correlation_id", correlationID).
		Msg("LedgerService: deployment dispatched")

	return correlationID, nil
}

func (s *service) InitiateWithdrawal(ctx context.Context, caller auth.Caller, domain uint32, amount *big.Int) (string, error) {
	if err := caller.RequireKeeper(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.paused {
		return "", ErrPaused
	}

	return s.initiateReturn(ctx, store.OperationKindWithdrawal, domain, amount)
}

func (s *service) InitiateRebalanceReturn(ctx context.Context, domain uint32, amount *big.Int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.paused {
		return "", ErrPaused
	}

	return s.initiateReturn(ctx, store.OperationKindRebalance, domain, amount)
}

// initiateReturn sends the unwind instruction and records the pending
// operation. Local balances stay untouched until the settlement arrives.
// Callers must hold s.mu.
func (s *service) initiateReturn(ctx context.Context, kind string, domain uint32, amount *big.Int) (string, error) {
	if err := validAmount(amount); err != nil {
		return "", err
	}

	pos, ok := s.positions[domain]
	if !ok {
		return "", errors.Wrapf(ErrUnknownDomain, "domain %d", domain)
	}
	if !pos.Active {
		return "", errors.Wrapf(ErrPositionInactive, "domain %d", domain)
	}

	if amount.Cmp(pos.Deployed) > 0 {
		return "", errors.Wrapf(ErrInsufficientLiquidity, "position holds %v", pos.Deployed)
	}

	correlationID := uuid.New().String()

	instr := messenger.WithdrawInstruction{Amount: amount, CorrelationID: correlationID}
	if _, err := s.messenger.Send(ctx, domain, pos.Remote, instr); err != nil && !errors.Is(err, messenger.ErrQueuedForRetry) {
		return "", errors.Wrap(err, "failed to send withdrawal instruction")
	}

	if err := s.store.InsertPendingOperation(ctx, store.PendingOperation{
		CorrelationID: correlationID,
		Kind:          kind,
		Amount:        amount.String(),
		TargetDomain:  domain,
		CreatedAt:     s.now().Unix(),
	}); err != nil {
		return "", err
	}

	log.Info().
		Uint32("domain", domain).
		Str("amount", amount.String()).
		Str("kind", kind).
		Str("correlation_id", correlationID).
		Msg("LedgerService: withdrawal initiated")

	return correlationID, nil
}

func (s *service) Pause(ctx context.Context, caller auth.Caller) error {
	if err := caller.RequireAdmin(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.paused {
		return ErrPaused
	}

	s.paused = true
	s.broadcast(ctx, messenger.PauseCommand{})

	log.Warn().Str("caller", caller.Subject).Msg("LedgerService: hub paused")

	return nil
}

func (s *service) Unpause(ctx context.Context, caller auth.Caller) error {
	if err := caller.RequireAdmin(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.paused {
		return ErrNotPaused
	}

	s.paused = false
	s.broadcast(ctx, messenger.UnpauseCommand{})

	log.Info().Str("caller", caller.Subject).Msg("LedgerService: hub unpaused")

	return nil
}

// broadcast sends an instruction to every active position. Undeliverable
// messages land in the retry queue; broadcast never fails. Callers must
// hold s.mu.
func (s *service) broadcast(ctx context.Context, instr messenger.Instruction) {
	for domain, pos := range s.positions {
		if !pos.Active {
			continue
		}

		if _, err := s.messenger.Send(ctx, domain, pos.Remote, instr); err != nil && !errors.Is(err, messenger.ErrQueuedForRetry) {
			log.Error().
				Err(err).
				Uint32("domain", domain).
				Str("message_type", instr.Type().String()).
				Msg("LedgerService: broadcast undeliverable")
		}
	}
}

func (s *service) EmergencyWithdrawAll(ctx context.Context, caller auth.Caller) (int, error) {
	if err := caller.RequireAdmin(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.paused {
		return 0, ErrNotPaused
	}

	instructed := 0
	for domain, pos := range s.positions {
		if !pos.Active || pos.Deployed.Sign() == 0 {
			continue
		}

		if _, err := s.messenger.Send(ctx, domain, pos.Remote, messenger.EmergencyWithdrawCommand{}); err != nil && !errors.Is(err, messenger.ErrQueuedForRetry) {
			log.Error().
				Err(err).
				Uint32("domain", domain).
				Msg("LedgerService: emergency withdraw instruction undeliverable")

			continue
		}

		if err := s.store.InsertPendingOperation(ctx, store.PendingOperation{
			CorrelationID: uuid.New().String(),
			Kind:          store.OperationKindWithdrawal,
			Amount:        pos.Deployed.String(),
			TargetDomain:  domain,
			CreatedAt:     s.now().Unix(),
		}); err != nil {
			return instructed, err
		}

		instructed++
	}

	log.Warn().
		Str("caller", caller.Subject).
		Int("instructed", instructed).
		Msg("LedgerService: emergency withdraw-all dispatched")

	return instructed, nil
}

func (s *service) SetDepositCap(ctx context.Context, caller auth.Caller, newCap *big.Int) error {
	if err := caller.RequireAdmin(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if newCap == nil {
		newCap = big.NewInt(0)
	}
	s.depositCap = new(big.Int).Set(newCap)

	log.Info().
		Str("caller", caller.Subject).
		Str("deposit_cap", s.depositCap.String()).
		Msg("LedgerService: deposit cap updated")

	return nil
}

func (s *service) SetBufferEnabled(ctx context.Context, caller auth.Caller, enabled bool) error {
	if err := caller.RequireAdmin(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.bufferEnabled = enabled

	log.Info().
		Str("caller", caller.Subject).
		Bool("buffer_enabled", enabled).
		Msg("LedgerService: buffer management toggled")

	return nil
}

func (s *service) Overview() Overview {
	s.mu.Lock()
	defer s.mu.Unlock()

	required := s.requiredBuffer()

	o := Overview{
		TotalAssets:       new(big.Int).Add(s.idle, s.deployed),
		IdleBalance:       new(big.Int).Set(s.idle),
		DeployedBalance:   new(big.Int).Set(s.deployed),
		DepositCap:        new(big.Int).Set(s.depositCap),
		RequiredBuffer:    required,
		Withdrawable:      s.availableAboveBuffer(),
		BufferEnabled:     s.bufferEnabled,
		BufferSufficient:  s.idle.Cmp(required) >= 0,
		ManagementFeeBps:  s.feeBps,
		FeesAccrued:       new(big.Int).Set(s.feesAccrued),
		LastFeeCollection: s.lastFeeCollection,
		Paused:            s.paused,
		Positions:         s.positionsLocked(),
	}

	if s.pendingFee != nil {
		pf := *s.pendingFee
		o.PendingFee = &pf
	}

	return o
}

func (s *service) Positions() []ChildPosition {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.positionsLocked()
}

func (s *service) positionsLocked() []ChildPosition {
	out := make([]ChildPosition, 0, len(s.positions))
	for _, pos := range s.positions {
		out = append(out, pos.clone())
	}

	return out
}

func (s *service) Position(domain uint32) (ChildPosition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos, ok := s.positions[domain]
	if !ok {
		return ChildPosition{}, errors.Wrapf(ErrUnknownDomain, "domain %d", domain)
	}

	return pos.clone(), nil
}

func (s *service) DeployableAmount() *big.Int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.availableAboveBuffer()
}

func (s *service) CheckInvariants() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.idle.Sign() < 0 {
		return errors.Wrapf(ErrAccountingFault, "idle balance %v is negative", s.idle)
	}
	if s.deployed.Sign() < 0 {
		return errors.Wrapf(ErrAccountingFault, "deployed balance %v is negative", s.deployed)
	}

	sum := big.NewInt(0)
	for _, pos := range s.positions {
		if !pos.Active {
			continue
		}
		sum.Add(sum, pos.Deployed)
	}

	if sum.Cmp(s.deployed) != 0 {
		return errors.Wrapf(ErrAccountingFault, "deployed %v != position sum %v", s.deployed, sum)
	}

	return nil
}

// HandleInstruction processes instructions addressed to the hub. Only
// yield reports flow hub-ward; every other type is hub-outbound and gets
// rejected so the messenger records the failure against the message.
func (s *service) HandleInstruction(ctx context.Context, originDomain uint32, instr messenger.Instruction) error {
	switch v := instr.(type) {
	case messenger.YieldReport:
		return s.applyYieldReport(originDomain, v)
	case messenger.DepositInstruction, messenger.WithdrawInstruction, messenger.RebalanceCommand,
		messenger.PauseCommand, messenger.UnpauseCommand, messenger.EmergencyWithdrawCommand:
		return errors.Errorf("instruction %s is not valid hub-inbound", instr.Type())
	default:
		return errors.Errorf("unhandled instruction type %d", instr.Type())
	}
}

func (s *service) applyYieldReport(originDomain uint32, report messenger.YieldReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos, ok := s.positions[originDomain]
	if !ok {
		return errors.Wrapf(ErrUnknownDomain, "domain %d", originDomain)
	}
	if !pos.Active {
		return errors.Wrapf(ErrPositionInactive, "domain %d", originDomain)
	}

	pos.YieldBps = report.YieldBps
	if report.TVL != nil {
		pos.TVL = new(big.Int).Set(report.TVL)
	}
	pos.LastReport = s.now()

	log.Info().
		Uint32("domain", originDomain).
		Uint32("yield_bps", report.YieldBps).
		Msg("LedgerService: yield report applied")

	return nil
}

// OnSettlement applies inbound funds from a child position to the hub
// accounting. The bookkeeping is keyed by the settlement hash so driving
// the same settlement twice is a no-op.
func (s *service) OnSettlement(ctx context.Context, amount *big.Int, sourceDomain uint32, messageHash common.Hash) error {
	if err := validAmount(amount); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	pos, ok := s.positions[sourceDomain]
	if !ok {
		return errors.Wrapf(ErrUnknownDomain, "settlement from domain %d", sourceDomain)
	}

	fresh, err := s.store.MarkSettlementApplied(ctx, messageHash.Hex(), s.now().Unix())
	if err != nil {
		return err
	}
	if !fresh {
		log.Debug().
			Str("message_hash", messageHash.Hex()).
			Msg("LedgerService: settlement already applied")

		return nil
	}

	if pos.Deployed.Cmp(amount) < 0 || s.deployed.Cmp(amount) < 0 {
		// Roll the marker back so the settlement can be re-driven once the
		// books are repaired.
		if uerr := s.store.UnmarkSettlementApplied(ctx, messageHash.Hex()); uerr != nil {
			log.Error().Err(uerr).Str("message_hash", messageHash.Hex()).Msg("LedgerService: failed to unmark settlement")
		}

		return errors.Wrapf(ErrAccountingFault,
			"settlement %v exceeds position %v or deployed %v", amount, pos.Deployed, s.deployed)
	}

	pos.Deployed.Sub(pos.Deployed, amount)
	s.deployed.Sub(s.deployed, amount)
	s.idle.Add(s.idle, amount)

	s.completeOldestReturn(ctx, sourceDomain, messageHash)
	s.publishGauges()

	log.Info().
		Uint32("source_domain", sourceDomain).
		Str("amount", amount.String()).
		Str("message_hash", messageHash.Hex()).
		Str("idle", s.idle.String()).
		Msg("LedgerService: settlement applied")

	return nil
}

// OnTransferConfirmed closes the deployment operation whose correlation id
// rode on the confirmed bridge transfer, so the timeout sweep never
// reverts a deployment the destination already acknowledged.
func (s *service) OnTransferConfirmed(ctx context.Context, reference string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.CompleteOperation(ctx, reference); err != nil {
		return errors.Wrapf(err, "failed to complete operation %s", reference)
	}

	log.Info().
		Str("correlation_id", reference).
		Msg("LedgerService: deployment confirmed by destination")

	return nil
}

// completeOldestReturn marks the oldest open withdrawal (or rebalance)
// operation toward the source domain as completed. A settlement with no
// matching operation is logged, not rejected; the funds are already here.
func (s *service) completeOldestReturn(ctx context.Context, sourceDomain uint32, messageHash common.Hash) {
	for _, kind := range []string{store.OperationKindWithdrawal, store.OperationKindRebalance} {
		op, err := s.store.CompleteOldestOperation(ctx, kind, sourceDomain)
		if err != nil {
			log.Error().Err(err).Uint32("domain", sourceDomain).Msg("LedgerService: failed to complete operation")

			return
		}
		if op != nil {
			log.Info().
				Str("correlation_id", op.CorrelationID).
				Str("kind", op.Kind).
				Msg("LedgerService: pending operation completed")

			return
		}
	}

	log.Warn().
		Uint32("source_domain", sourceDomain).
		Str("message_hash", messageHash.Hex()).
		Msg("LedgerService: settlement without matching pending operation")
}
