package messenger

import (
	"math/big"
	"time"

	"github.com/pkg/errors"
)

// MessageType tags the instruction carried by an envelope.
type MessageType uint8

const (
	MessageTypeDeposit MessageType = iota + 1
	MessageTypeWithdraw
	MessageTypeYieldReport
	MessageTypeRebalance
	MessageTypePause
	MessageTypeUnpause
	MessageTypeEmergencyWithdraw
)

// String returns a short wire-stable name for logging.
func (t MessageType) String() string {
	switch t {
	case MessageTypeDeposit:
		return "deposit"
	case MessageTypeWithdraw:
		return "withdraw"
	case MessageTypeYieldReport:
		return "yield_report"
	case MessageTypeRebalance:
		return "rebalance"
	case MessageTypePause:
		return "pause"
	case MessageTypeUnpause:
		return "unpause"
	case MessageTypeEmergencyWithdraw:
		return "emergency_withdraw"
	default:
		return "unknown"
	}
}

// Instruction is the decoded payload of an envelope. The concrete types
// below form a closed union; the processing boundary switches over them
// exhaustively.
type Instruction interface {
	Type() MessageType
}

// DepositInstruction tells a child domain to deploy freshly bridged funds
// into its strategy position.
type DepositInstruction struct {
	Amount        *big.Int
	CorrelationID string
}

func (DepositInstruction) Type() MessageType { return MessageTypeDeposit }

// WithdrawInstruction tells a child domain to unwind part of its position
// and bridge the funds back to the hub.
type WithdrawInstruction struct {
	Amount        *big.Int
	CorrelationID string
}

func (WithdrawInstruction) Type() MessageType { return MessageTypeWithdraw }

// YieldReport carries a child position's periodic yield/TVL reading.
type YieldReport struct {
	YieldBps   uint32
	TVL        *big.Int
	ReportedAt uint64
}

func (YieldReport) Type() MessageType { return MessageTypeYieldReport }

// RebalanceCommand tells a child domain to release funds toward another
// domain as part of a hub-decided rebalance.
type RebalanceCommand struct {
	Amount       *big.Int
	SourceDomain uint32
	TargetDomain uint32
}

func (RebalanceCommand) Type() MessageType { return MessageTypeRebalance }

// PauseCommand halts a child position.
type PauseCommand struct{}

func (PauseCommand) Type() MessageType { return MessageTypePause }

// UnpauseCommand resumes a child position.
type UnpauseCommand struct{}

func (UnpauseCommand) Type() MessageType { return MessageTypeUnpause }

// EmergencyWithdrawCommand tells a child domain to unwind everything.
type EmergencyWithdrawCommand struct{}

func (EmergencyWithdrawCommand) Type() MessageType { return MessageTypeEmergencyWithdraw }

// retryBackoff is indexed by attempt count; attempts beyond the schedule
// reuse the last entry.
var retryBackoff = []time.Duration{
	1 * time.Minute,
	5 * time.Minute,
	15 * time.Minute,
}

// RetryDelayForAttempt returns the wait required before retry attempt n.
func RetryDelayForAttempt(attempts int) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	if attempts >= len(retryBackoff) {
		return retryBackoff[len(retryBackoff)-1]
	}

	return retryBackoff[attempts]
}

var (
	// ErrUntrustedSender rejects envelopes whose origin/sender pair is not
	// on the allow-list.
	ErrUntrustedSender = errors.New("sender is not trusted for origin domain")
	// ErrDuplicateMessage rejects an already-recorded message id. State is
	// not mutated, preserving at-most-once semantics.
	ErrDuplicateMessage = errors.New("message already processed")
	// ErrWrongRecipient rejects envelopes addressed to someone else.
	ErrWrongRecipient = errors.New("envelope recipient does not match local identity")
	// ErrFutureTimestamp rejects envelopes stamped ahead of local time.
	ErrFutureTimestamp = errors.New("envelope timestamp is in the future")
	// ErrMessageExpired rejects envelopes older than the expiry window.
	ErrMessageExpired = errors.New("envelope timestamp is past the expiry window")
	// ErrStaleTimestamp rejects envelopes not strictly newer than the last
	// processed envelope from the same origin.
	ErrStaleTimestamp = errors.New("envelope timestamp is not newer than the last processed")
	// ErrNonceGap rejects out-of-sequence nonces.
	ErrNonceGap = errors.New("envelope nonce is out of sequence")
	// ErrQueuedForRetry signals that a send could not be delivered and was
	// queued; the caller's local state change stands.
	ErrQueuedForRetry = errors.New("message queued for retry")
	// ErrRetryDelayNotElapsed rejects a retry before its backoff delay.
	ErrRetryDelayNotElapsed = errors.New("retry delay not elapsed")
	// ErrRetriesExhausted rejects a retry past the maximum attempt count.
	ErrRetriesExhausted = errors.New("maximum retry attempts exhausted")
)
