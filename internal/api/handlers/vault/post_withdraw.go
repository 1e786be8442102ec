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

func PostWithdrawRoute(s *api.Server) *echo.Route {
	return s.Router.APIV1Vault.POST("/withdraw", postWithdrawHandler(s))
}

// postWithdrawHandler withdraws from idle balance, limited to the
// buffer-aware withdrawable amount.
func postWithdrawHandler(s *api.Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		caller := auth.CallerFromContext(ctx)
		if caller == nil {
			return echo.ErrUnauthorized
		}

		var body types.PostWithdrawPayload
		if err := util.BindAndValidateBody(c, &body); err != nil {
			return err
		}

		amount, err := util.ParseAmount(body.Amount)
		if err != nil {
			return httperrors.ErrBadRequestInvalidAmount.WithInternal(err)
		}

		if err := s.Ledger.Withdraw(ctx, *caller, amount); err != nil {
			return err
		}

		return util.ValidateAndReturn(c, http.StatusOK, overviewResponse(s.Ledger.Overview()))
	}
}
