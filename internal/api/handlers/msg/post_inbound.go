package msg

import (
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/labstack/echo/v4"

	"github.com/escion333/autoUSD-sub000/internal/api"
	"github.com/escion333/autoUSD-sub000/internal/api/httperrors"
	"github.com/escion333/autoUSD-sub000/internal/types"
	"github.com/escion333/autoUSD-sub000/internal/util"
)

func PostInboundRoute(s *api.Server) *echo.Route {
	return s.Router.APIV1Messenger.POST("/inbound", postInboundHandler(s))
}

// postInboundHandler is the relay webhook for inbound envelopes. The
// verification pipeline decides whether the envelope is applied; a
// rejected envelope maps to 422.
func postInboundHandler(s *api.Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		var body types.PostInboundPayload
		if err := util.BindAndValidateBody(c, &body); err != nil {
			return err
		}

		if !common.IsHexAddress(body.Sender) {
			return httperrors.ErrBadRequestInvalidBody
		}

		raw, err := hex.DecodeString(strings.TrimPrefix(body.Raw, "0x"))
		if err != nil || len(raw) == 0 {
			return httperrors.ErrBadRequestInvalidBody.WithInternal(err)
		}

		messageID, err := s.Messenger.ProcessInbound(ctx, body.OriginDomain, common.HexToAddress(body.Sender), raw)
		if err != nil {
			return err
		}

		return util.ValidateAndReturn(c, http.StatusOK, &types.InboundResponse{MessageID: messageID.Hex()})
	}
}
