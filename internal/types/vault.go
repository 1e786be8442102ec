package types

// Amounts travel as decimal strings so callers never lose precision on
// values beyond float64 range.

// PostDepositPayload is the body for POST /api/v1/vault/deposit.
type PostDepositPayload struct {
	Amount string `json:"amount"`
}

// PostWithdrawPayload is the body for POST /api/v1/vault/withdraw.
type PostWithdrawPayload struct {
	Amount string `json:"amount"`
}

// PostRegisterPositionPayload is the body for POST /api/v1/vault/positions.
type PostRegisterPositionPayload struct {
	Domain        uint32 `json:"domain"`
	RemoteAddress string `json:"remote_address"`
}

// PostDeployPayload is the body for POST /api/v1/vault/deploy.
type PostDeployPayload struct {
	Domain uint32 `json:"domain"`
	Amount string `json:"amount"`
}

// PostInitiateWithdrawalPayload is the body for POST
// /api/v1/vault/initiate-withdrawal.
type PostInitiateWithdrawalPayload struct {
	Domain uint32 `json:"domain"`
	Amount string `json:"amount"`
}

// PostProposeFeePayload is the body for POST /api/v1/vault/fees/propose.
type PostProposeFeePayload struct {
	FeeBps int64 `json:"fee_bps"`
}

// PostDepositCapPayload is the body for POST /api/v1/vault/deposit-cap.
type PostDepositCapPayload struct {
	DepositCap string `json:"deposit_cap"`
}

// PostBufferPayload is the body for POST /api/v1/vault/buffer.
type PostBufferPayload struct {
	Enabled bool `json:"enabled"`
}

// CorrelationResponse carries the id of a newly created cross-domain
// operation.
type CorrelationResponse struct {
	CorrelationID string `json:"correlation_id"`
}

// PendingFeeResponse mirrors a pending fee update.
type PendingFeeResponse struct {
	FeeBps     int64 `json:"fee_bps"`
	ProposedAt int64 `json:"proposed_at"`
}

// PositionResponse mirrors one child position.
type PositionResponse struct {
	Domain        uint32 `json:"domain"`
	RemoteAddress string `json:"remote_address"`
	Deployed      string `json:"deployed"`
	YieldBps      uint32 `json:"yield_bps"`
	TVL           string `json:"tvl,omitempty"`
	LastReport    int64  `json:"last_report,omitempty"`
	Active        bool   `json:"active"`
}

// OverviewResponse is the hub accounting snapshot.
type OverviewResponse struct {
	TotalAssets       string              `json:"total_assets"`
	IdleBalance       string              `json:"idle_balance"`
	DeployedBalance   string              `json:"deployed_balance"`
	DepositCap        string              `json:"deposit_cap"`
	RequiredBuffer    string              `json:"required_buffer"`
	Withdrawable      string              `json:"withdrawable"`
	BufferEnabled     bool                `json:"buffer_enabled"`
	BufferSufficient  bool                `json:"buffer_sufficient"`
	ManagementFeeBps  int64               `json:"management_fee_bps"`
	PendingFee        *PendingFeeResponse `json:"pending_fee,omitempty"`
	FeesAccrued       string              `json:"fees_accrued"`
	LastFeeCollection int64               `json:"last_fee_collection"`
	Paused            bool                `json:"paused"`
	Positions         []PositionResponse  `json:"positions"`
}

// OperationResponse mirrors one pending cross-domain operation.
type OperationResponse struct {
	CorrelationID string `json:"correlation_id"`
	Kind          string `json:"kind"`
	Amount        string `json:"amount"`
	TargetDomain  uint32 `json:"target_domain"`
	CreatedAt     int64  `json:"created_at"`
	Completed     bool   `json:"completed"`
	Flagged       bool   `json:"flagged"`
}

// CollectFeesResponse reports a fee accrual.
type CollectFeesResponse struct {
	Fee string `json:"fee"`
}

// TimeoutScanResponse reports a timeout recovery run.
type TimeoutScanResponse struct {
	Reverted int `json:"reverted"`
	Flagged  int `json:"flagged"`
}

// EmergencyWithdrawResponse reports how many positions were instructed to
// unwind.
type EmergencyWithdrawResponse struct {
	Instructed int `json:"instructed"`
}
