package bridge

import (
	"math/big"
	"time"

	"github.com/pkg/errors"
)

var (
	// ErrAmountOutOfRange rejects amounts outside [min, max].
	ErrAmountOutOfRange = errors.New("transfer amount outside allowed range")
	// ErrZeroRecipient rejects the zero address as a recipient.
	ErrZeroRecipient = errors.New("transfer recipient is the zero address")
	// ErrUnsupportedDomain rejects destinations not in the supported set.
	ErrUnsupportedDomain = errors.New("destination domain is not supported")
	// ErrTransferNotFound is returned for unknown transfer ids.
	ErrTransferNotFound = errors.New("transfer not found")
	// ErrTransferFailed marks a transfer past its retry/timeout limits;
	// only an administrative force-retry or refund can move it.
	ErrTransferFailed = errors.New("transfer permanently failed")
	// ErrRetryDelayNotElapsed rejects a retry before its backoff delay.
	ErrRetryDelayNotElapsed = errors.New("transfer retry delay not elapsed")
	// ErrDuplicateSettlement rejects an already-processed settlement hash
	// without mutating state.
	ErrDuplicateSettlement = errors.New("settlement already processed")
)

// retryBackoff mirrors the messenger's schedule, indexed by retry count.
var retryBackoff = []time.Duration{
	1 * time.Minute,
	5 * time.Minute,
	15 * time.Minute,
}

func retryDelayForCount(retryCount int) time.Duration {
	if retryCount < 0 {
		retryCount = 0
	}
	if retryCount >= len(retryBackoff) {
		return retryBackoff[len(retryBackoff)-1]
	}

	return retryBackoff[retryCount]
}

// Config carries the bridge parameters.
type Config struct {
	MinAmount     *big.Int
	MaxAmount     *big.Int
	Timeout       time.Duration
	MaxRetryCount int
	Now           func() time.Time
}
