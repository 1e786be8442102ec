package rebalance

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/escion333/autoUSD-sub000/internal/types"
	"github.com/escion333/autoUSD-sub000/internal/vault/rebalance"
)

func decisionResponse(d rebalance.Decision) *types.RebalanceDecisionResponse {
	res := &types.RebalanceDecisionResponse{
		Actionable:       d.Actionable,
		Reason:           d.Reason,
		FromIdle:         d.FromIdle,
		SourceDomain:     d.SourceDomain,
		TargetDomain:     d.TargetDomain,
		EstimatedCostUSD: d.EstimatedCostUSD,
	}

	if d.Amount != nil {
		res.Amount = d.Amount.String()
	}
	if d.ExecutionID != (common.Hash{}) {
		res.ExecutionID = d.ExecutionID.Hex()
	}

	return res
}
