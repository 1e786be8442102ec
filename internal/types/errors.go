package types

// Public HTTP error type identifiers, stable across releases.
const (
	PublicHTTPErrorTypeGeneric          = "generic"
	PublicHTTPErrorTypeForbidden        = "forbidden"
	PublicHTTPErrorTypeNotFound         = "not_found"
	PublicHTTPErrorTypeConflict         = "conflict"
	PublicHTTPErrorTypeValidation       = "validation_error"
	PublicHTTPErrorTypeDepositCap       = "deposit_cap_exceeded"
	PublicHTTPErrorTypeLiquidity        = "insufficient_liquidity"
	PublicHTTPErrorTypePaused           = "hub_paused"
	PublicHTTPErrorTypeNotPaused        = "hub_not_paused"
	PublicHTTPErrorTypeTimelock         = "timelock_pending"
	PublicHTTPErrorTypeRateLimited      = "rate_limited"
	PublicHTTPErrorTypeCooldown         = "cooldown_active"
	PublicHTTPErrorTypeRetryDelay       = "retry_delay_not_elapsed"
	PublicHTTPErrorTypeDuplicate        = "duplicate"
	PublicHTTPErrorTypeAccountingFault  = "accounting_fault"
	PublicHTTPErrorTypeMessageRejected  = "message_rejected"
	PublicHTTPErrorTypeTransferRejected = "transfer_rejected"
)

// PublicHTTPError is the JSON error body returned by every handler.
type PublicHTTPError struct {
	Code   int    `json:"code"`
	Type   string `json:"type"`
	Title  string `json:"title"`
	Detail string `json:"detail,omitempty"`
}
