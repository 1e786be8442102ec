package vault

import (
	"github.com/escion333/autoUSD-sub000/internal/store"
	"github.com/escion333/autoUSD-sub000/internal/types"
	"github.com/escion333/autoUSD-sub000/internal/vault/ledger"
)

func overviewResponse(o ledger.Overview) *types.OverviewResponse {
	res := &types.OverviewResponse{
		TotalAssets:       o.TotalAssets.String(),
		IdleBalance:       o.IdleBalance.String(),
		DeployedBalance:   o.DeployedBalance.String(),
		DepositCap:        o.DepositCap.String(),
		RequiredBuffer:    o.RequiredBuffer.String(),
		Withdrawable:      o.Withdrawable.String(),
		BufferEnabled:     o.BufferEnabled,
		BufferSufficient:  o.BufferSufficient,
		ManagementFeeBps:  o.ManagementFeeBps,
		FeesAccrued:       o.FeesAccrued.String(),
		LastFeeCollection: o.LastFeeCollection.Unix(),
		Paused:            o.Paused,
		Positions:         positionResponses(o.Positions),
	}

	if o.PendingFee != nil {
		res.PendingFee = &types.PendingFeeResponse{
			FeeBps:     o.PendingFee.FeeBps,
			ProposedAt: o.PendingFee.ProposedAt.Unix(),
		}
	}

	return res
}

func positionResponses(positions []ledger.ChildPosition) []types.PositionResponse {
	out := make([]types.PositionResponse, 0, len(positions))
	for _, pos := range positions {
		out = append(out, positionResponse(pos))
	}

	return out
}

func positionResponse(pos ledger.ChildPosition) types.PositionResponse {
	res := types.PositionResponse{
		Domain:        pos.Domain,
		RemoteAddress: pos.Remote.Hex(),
		Deployed:      pos.Deployed.String(),
		YieldBps:      pos.YieldBps,
		Active:        pos.Active,
	}

	if pos.TVL != nil {
		res.TVL = pos.TVL.String()
	}
	if !pos.LastReport.IsZero() {
		res.LastReport = pos.LastReport.Unix()
	}

	return res
}

func operationResponses(ops []*store.PendingOperation) []types.OperationResponse {
	out := make([]types.OperationResponse, 0, len(ops))
	for _, op := range ops {
		out = append(out, types.OperationResponse{
			CorrelationID: op.CorrelationID,
			Kind:          op.Kind,
			Amount:        op.Amount,
			TargetDomain:  op.TargetDomain,
			CreatedAt:     op.CreatedAt,
			Completed:     op.Completed,
			Flagged:       op.Flagged,
		})
	}

	return out
}
