package rebalance

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

// No-op reasons reported by Evaluate. These surface verbatim through the
// preview API, so treat them as stable strings.
const (
	ReasonBufferInsufficient   = "Buffer insufficient"
	ReasonTooFewPositions      = "Too few active positions"
	ReasonSourceEqualsTarget   = "Source equals target"
	ReasonDifferentialTooSmall = "Yield differential below threshold"
	ReasonMoveTooSmall         = "Move below minimum size"
	ReasonCostTooHigh          = "Estimated cost above ceiling"
	ReasonCooldownActive       = "Cooldown not expired"
)

var (
	// ErrNotActionable rejects executing a no-op decision.
	ErrNotActionable = errors.New("decision is not actionable")
	// ErrExecutionInProgress rejects a second execution while one is
	// already mutating the ledger.
	ErrExecutionInProgress = errors.New("rebalance execution already in progress")
	// ErrAlreadyExecuted rejects re-submitting a decision whose execution
	// id was already recorded.
	ErrAlreadyExecuted = errors.New("decision already executed")
	// ErrRateLimited rejects executions past the rolling window limit.
	ErrRateLimited = errors.New("rebalance rate limit reached")
	// ErrCooldownActive rejects executions before the global cooldown
	// expired.
	ErrCooldownActive = errors.New("rebalance cooldown active")
	// ErrDomainCooldownActive rejects moving a domain's capital again too
	// soon.
	ErrDomainCooldownActive = errors.New("domain cooldown active")
	// ErrBufferInsufficient rejects an execution whose buffer re-check
	// failed after the decision was made.
	ErrBufferInsufficient = errors.New("buffer insufficient at execution time")
)

// Decision is the outcome of one evaluation. Non-actionable decisions
// carry the vetoing reason; actionable ones carry the proposed move and a
// content-derived execution id.
type Decision struct {
	Actionable       bool
	Reason           string
	FromIdle         bool
	SourceDomain     uint32
	TargetDomain     uint32
	Amount           *big.Int
	EstimatedCostUSD int64
	ExecutionID      common.Hash
}

// Status is a snapshot of the engine's execution state for monitoring.
type Status struct {
	Executing          bool
	LastRebalanceAt    time.Time
	ExecutionsInWindow int
	MaxPerWindow       int
}
