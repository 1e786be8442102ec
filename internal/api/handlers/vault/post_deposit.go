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

func PostDepositRoute(s *api.Server) *echo.Route {
	return s.Router.APIV1Vault.POST("/deposit", postDepositHandler(s))
}

func postDepositHandler(s *api.Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		caller := auth.CallerFromContext(ctx)
		if caller == nil {
			return echo.ErrUnauthorized
		}

		var body types.PostDepositPayload
		if err := util.BindAndValidateBody(c, &body); err != nil {
			return err
		}

		amount, err := util.ParseAmount(body.Amount)
		if err != nil {
			return httperrors.ErrBadRequestInvalidAmount.WithInternal(err)
		}

		if err := s.Ledger.Deposit(ctx, *caller, amount); err != nil {
			return err
		}

		return util.ValidateAndReturn(c, http.StatusOK, overviewResponse(s.Ledger.Overview()))
	}
}
