package ledger

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

const (
	bpsDenominator = 10_000
	secondsPerYear = 31_536_000
)

var (
	// ErrPaused rejects state-changing operations while the hub is paused.
	ErrPaused = errors.New("hub is paused")
	// ErrNotPaused rejects emergency operations while the hub is running.
	ErrNotPaused = errors.New("hub is not paused")
	// ErrInvalidAmount rejects nil, zero or negative amounts.
	ErrInvalidAmount = errors.New("amount must be positive")
	// ErrDepositCapExceeded rejects deposits that would push total assets
	// past the configured cap.
	ErrDepositCapExceeded = errors.New("deposit cap exceeded")
	// ErrInsufficientLiquidity rejects withdrawals and deployments beyond
	// the buffer-aware available amount.
	ErrInsufficientLiquidity = errors.New("insufficient idle liquidity")
	// ErrUnknownDomain rejects operations against an unregistered domain.
	ErrUnknownDomain = errors.New("domain is not registered")
	// ErrDuplicateDomain rejects registering a domain twice.
	ErrDuplicateDomain = errors.New("domain is already registered")
	// ErrPositionInactive rejects capital movements toward a deactivated
	// position.
	ErrPositionInactive = errors.New("position is not active")
	// ErrPositionNotEmpty rejects deactivating or removing a position that
	// still holds deployed funds.
	ErrPositionNotEmpty = errors.New("position still holds deployed funds")
	// ErrFeeTooHigh rejects fee proposals above the hard cap.
	ErrFeeTooHigh = errors.New("proposed fee exceeds maximum")
	// ErrNoPendingFee rejects executing a fee update that was never
	// proposed.
	ErrNoPendingFee = errors.New("no pending fee update")
	// ErrTimelockPending rejects executing a fee update before its
	// timelock expires.
	ErrTimelockPending = errors.New("fee timelock has not expired")
	// ErrAccountingFault signals that applying an operation would drive a
	// balance negative. State is left untouched for manual inspection.
	ErrAccountingFault = errors.New("accounting fault detected")
)

// ChildPosition is the hub's view of one remote strategy position.
type ChildPosition struct {
	Domain     uint32
	Remote     common.Address
	Deployed   *big.Int
	YieldBps   uint32
	TVL        *big.Int
	LastReport time.Time
	Active     bool
}

func (p *ChildPosition) clone() ChildPosition {
	c := *p
	c.Deployed = new(big.Int).Set(p.Deployed)
	if p.TVL != nil {
		c.TVL = new(big.Int).Set(p.TVL)
	}

	return c
}

// PendingFeeUpdate is a proposed management fee waiting out its timelock.
type PendingFeeUpdate struct {
	FeeBps     int64
	ProposedAt time.Time
}

// Overview is a point-in-time snapshot of the hub's accounting, safe to
// hand out without exposing internal state.
type Overview struct {
	TotalAssets       *big.Int
	IdleBalance       *big.Int
	DeployedBalance   *big.Int
	DepositCap        *big.Int
	RequiredBuffer    *big.Int
	Withdrawable      *big.Int
	BufferEnabled     bool
	BufferSufficient  bool
	ManagementFeeBps  int64
	PendingFee        *PendingFeeUpdate
	FeesAccrued       *big.Int
	LastFeeCollection time.Time
	Paused            bool
	Positions         []ChildPosition
}
