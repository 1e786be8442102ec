package httperrors

import (
	"net/http"

	"github.com/pkg/errors"

	"github.com/escion333/autoUSD-sub000/internal/auth"
	"github.com/escion333/autoUSD-sub000/internal/types"
	"github.com/escion333/autoUSD-sub000/internal/vault/bridge"
	"github.com/escion333/autoUSD-sub000/internal/vault/ledger"
	"github.com/escion333/autoUSD-sub000/internal/vault/messenger"
	"github.com/escion333/autoUSD-sub000/internal/vault/rebalance"
)

// mapping pairs a domain sentinel with the public error it renders as.
type mapping struct {
	sentinel error
	code     int
	errType  string
}

var mappings = []mapping{
	{auth.ErrForbidden, http.StatusForbidden, types.PublicHTTPErrorTypeForbidden},

	{ledger.ErrInvalidAmount, http.StatusBadRequest, types.PublicHTTPErrorTypeValidation},
	{ledger.ErrDepositCapExceeded, http.StatusConflict, types.PublicHTTPErrorTypeDepositCap},
	{ledger.ErrInsufficientLiquidity, http.StatusConflict, types.PublicHTTPErrorTypeLiquidity},
	{ledger.ErrUnknownDomain, http.StatusNotFound, types.PublicHTTPErrorTypeNotFound},
	{ledger.ErrDuplicateDomain, http.StatusConflict, types.PublicHTTPErrorTypeConflict},
	{ledger.ErrPositionInactive, http.StatusConflict, types.PublicHTTPErrorTypeConflict},
	{ledger.ErrPositionNotEmpty, http.StatusConflict, types.PublicHTTPErrorTypeConflict},
	{ledger.ErrPaused, http.StatusConflict, types.PublicHTTPErrorTypePaused},
	{ledger.ErrNotPaused, http.StatusConflict, types.PublicHTTPErrorTypeNotPaused},
	{ledger.ErrFeeTooHigh, http.StatusBadRequest, types.PublicHTTPErrorTypeValidation},
	{ledger.ErrNoPendingFee, http.StatusConflict, types.PublicHTTPErrorTypeConflict},
	{ledger.ErrTimelockPending, http.StatusConflict, types.PublicHTTPErrorTypeTimelock},
	{ledger.ErrAccountingFault, http.StatusInternalServerError, types.PublicHTTPErrorTypeAccountingFault},

	{messenger.ErrUntrustedSender, http.StatusForbidden, types.PublicHTTPErrorTypeMessageRejected},
	{messenger.ErrDuplicateMessage, http.StatusConflict, types.PublicHTTPErrorTypeDuplicate},
	{messenger.ErrWrongRecipient, http.StatusUnprocessableEntity, types.PublicHTTPErrorTypeMessageRejected},
	{messenger.ErrFutureTimestamp, http.StatusUnprocessableEntity, types.PublicHTTPErrorTypeMessageRejected},
	{messenger.ErrMessageExpired, http.StatusUnprocessableEntity, types.PublicHTTPErrorTypeMessageRejected},
	{messenger.ErrStaleTimestamp, http.StatusUnprocessableEntity, types.PublicHTTPErrorTypeMessageRejected},
	{messenger.ErrNonceGap, http.StatusUnprocessableEntity, types.PublicHTTPErrorTypeMessageRejected},
	{messenger.ErrRetryDelayNotElapsed, http.StatusConflict, types.PublicHTTPErrorTypeRetryDelay},
	{messenger.ErrRetriesExhausted, http.StatusConflict, types.PublicHTTPErrorTypeConflict},

	{bridge.ErrAmountOutOfRange, http.StatusBadRequest, types.PublicHTTPErrorTypeTransferRejected},
	{bridge.ErrZeroRecipient, http.StatusBadRequest, types.PublicHTTPErrorTypeTransferRejected},
	{bridge.ErrUnsupportedDomain, http.StatusNotFound, types.PublicHTTPErrorTypeNotFound},
	{bridge.ErrTransferNotFound, http.StatusNotFound, types.PublicHTTPErrorTypeNotFound},
	{bridge.ErrTransferFailed, http.StatusConflict, types.PublicHTTPErrorTypeTransferRejected},
	{bridge.ErrRetryDelayNotElapsed, http.StatusConflict, types.PublicHTTPErrorTypeRetryDelay},
	{bridge.ErrDuplicateSettlement, http.StatusConflict, types.PublicHTTPErrorTypeDuplicate},

	{rebalance.ErrNotActionable, http.StatusConflict, types.PublicHTTPErrorTypeConflict},
	{rebalance.ErrExecutionInProgress, http.StatusConflict, types.PublicHTTPErrorTypeConflict},
	{rebalance.ErrAlreadyExecuted, http.StatusConflict, types.PublicHTTPErrorTypeDuplicate},
	{rebalance.ErrRateLimited, http.StatusTooManyRequests, types.PublicHTTPErrorTypeRateLimited},
	{rebalance.ErrCooldownActive, http.StatusConflict, types.PublicHTTPErrorTypeCooldown},
	{rebalance.ErrDomainCooldownActive, http.StatusConflict, types.PublicHTTPErrorTypeCooldown},
	{rebalance.ErrBufferInsufficient, http.StatusConflict, types.PublicHTTPErrorTypeConflict},
}

// FromDomain maps a domain error onto its public HTTP rendering. Unmapped
// errors pass through untouched and render as 500.
func FromDomain(err error) error {
	if err == nil {
		return nil
	}

	for _, m := range mappings {
		if errors.Is(err, m.sentinel) {
			return NewHTTPErrorWithDetail(m.code, m.errType, m.sentinel.Error(), err.Error()).WithInternal(err)
		}
	}

	return err
}
