package vault

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/escion333/autoUSD-sub000/internal/api"
	"github.com/escion333/autoUSD-sub000/internal/api/httperrors"
	"github.com/escion333/autoUSD-sub000/internal/auth"
	"github.com/escion333/autoUSD-sub000/internal/types"
	"github.com/escion333/autoUSD-sub000/internal/util"
)

func PostDeployRoute(s *api.Server) *echo.Route {
	return s.Router.APIV1Vault.POST("/deploy", postDeployHandler(s))
}

// postDeployHandler moves idle capital into a child position. The
// response carries the correlation id of the pending operation.
func postDeployHandler(s *api.Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		caller := auth.CallerFromContext(ctx)
		if caller == nil {
			return echo.ErrUnauthorized
		}

		var body types.PostDeployPayload
		if err := util.BindAndValidateBody(c, &body); err != nil {
			return err
		}

		amount, err := util.ParseAmount(body.Amount)
		if err != nil {
			return httperrors.ErrBadRequestInvalidAmount.WithInternal(err)
		}

		correlationID, err := s.Ledger.Deploy(ctx, *caller, body.Domain, amount)
		if err != nil {
			return err
		}

		return util.ValidateAndReturn(c, http.StatusAccepted, &types.CorrelationResponse{CorrelationID: correlationID})
	}
}
