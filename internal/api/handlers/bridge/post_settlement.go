package bridge

import (
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/labstack/echo/v4"

	"github.com/escion333/autoUSD-sub000/internal/api"
	"github.com/escion333/autoUSD-sub000/internal/api/httperrors"
	"github.com/escion333/autoUSD-sub000/internal/types"
	"github.com/escion333/autoUSD-sub000/internal/util"
)

func PostSettlementRoute(s *api.Server) *echo.Route {
	return s.Router.APIV1Bridge.POST("/settlement", postSettlementHandler(s))
}

// postSettlementHandler is the attestation-layer webhook for verified
// inbound settlements. Replays dedupe on the content hash and return the
// original hash.
func postSettlementHandler(s *api.Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		var body types.PostSettlementPayload
		if err := util.BindAndValidateBody(c, &body); err != nil {
			return err
		}

		if !common.IsHexAddress(body.Recipient) {
			return httperrors.ErrBadRequestInvalidBody
		}

		amount, err := util.ParseAmount(body.Amount)
		if err != nil {
			return httperrors.ErrBadRequestInvalidAmount.WithInternal(err)
		}

		messageHash, err := s.Bridge.Receive(ctx, body.SourceDomain, body.Nonce, amount, common.HexToAddress(body.Recipient))
		if err != nil {
			return err
		}

		return util.ValidateAndReturn(c, http.StatusOK, &types.SettlementResponse{MessageHash: messageHash.Hex()})
	}
}
