package vault

import (
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/labstack/echo/v4"

	"github.com/escion333/autoUSD-sub000/internal/api"
	"github.com/escion333/autoUSD-sub000/internal/api/httperrors"
	"github.com/escion333/autoUSD-sub000/internal/auth"
	"github.com/escion333/autoUSD-sub000/internal/types"
	"github.com/escion333/autoUSD-sub000/internal/util"
)

func PostRegisterPositionRoute(s *api.Server) *echo.Route {
	return s.Router.APIV1Vault.POST("/positions", postRegisterPositionHandler(s))
}

func postRegisterPositionHandler(s *api.Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		caller := auth.CallerFromContext(ctx)
		if caller == nil {
			return echo.ErrUnauthorized
		}

		var body types.PostRegisterPositionPayload
		if err := util.BindAndValidateBody(c, &body); err != nil {
			return err
		}

		if !common.IsHexAddress(body.RemoteAddress) {
			return httperrors.ErrBadRequestInvalidBody.WithInternal(
				echo.NewHTTPError(http.StatusBadRequest, "remote_address is not a valid address"))
		}

		if err := s.Ledger.RegisterPosition(ctx, *caller, body.Domain, common.HexToAddress(body.RemoteAddress)); err != nil {
			return err
		}

		pos, err := s.Ledger.Position(body.Domain)
		if err != nil {
			return err
		}

		return util.ValidateAndReturn(c, http.StatusCreated, positionResponse(pos))
	}
}
