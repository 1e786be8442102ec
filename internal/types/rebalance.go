package types

// RebalanceDecisionResponse mirrors one engine decision.
type RebalanceDecisionResponse struct {
	Actionable       bool   `json:"actionable"`
	Reason           string `json:"reason,omitempty"`
	FromIdle         bool   `json:"from_idle"`
	SourceDomain     uint32 `json:"source_domain"`
	TargetDomain     uint32 `json:"target_domain"`
	Amount           string `json:"amount,omitempty"`
	EstimatedCostUSD int64  `json:"estimated_cost_usd"`
	ExecutionID      string `json:"execution_id,omitempty"`
}

// RebalanceStatusResponse mirrors the engine execution state.
type RebalanceStatusResponse struct {
	Executing          bool  `json:"executing"`
	LastRebalanceAt    int64 `json:"last_rebalance_at,omitempty"`
	ExecutionsInWindow int   `json:"executions_in_window"`
	MaxPerWindow       int   `json:"max_per_window"`
}

// PostCooldownPayload sets the engine's global cooldown in seconds.
type PostCooldownPayload struct {
	CooldownSeconds int64 `json:"cooldown_seconds"`
}

// PostMinDifferentialPayload sets the differential threshold.
type PostMinDifferentialPayload struct {
	MinDifferentialBps int64 `json:"min_differential_bps"`
}
