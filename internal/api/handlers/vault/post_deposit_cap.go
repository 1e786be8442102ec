package vault

import (
	"math/big"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/escion333/autoUSD-sub000/internal/api"
	"github.com/escion333/autoUSD-sub000/internal/api/httperrors"
	"github.com/escion333/autoUSD-sub000/internal/auth"
	"github.com/escion333/autoUSD-sub000/internal/types"
	"github.com/escion333/autoUSD-sub000/internal/util"
)

func PostDepositCapRoute(s *api.Server) *echo.Route {
	return s.Router.APIV1Vault.POST("/deposit-cap", postDepositCapHandler(s))
}

// postDepositCapHandler replaces the deposit cap. A cap of "0" removes
// the limit.
func postDepositCapHandler(s *api.Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		caller := auth.CallerFromContext(ctx)
		if caller == nil {
			return echo.ErrUnauthorized
		}

		var body types.PostDepositCapPayload
		if err := util.BindAndValidateBody(c, &body); err != nil {
			return err
		}

		newCap, ok := new(big.Int).SetString(body.DepositCap, 10)
		if !ok || newCap.Sign() < 0 {
			return httperrors.ErrBadRequestInvalidAmount
		}

		if err := s.Ledger.SetDepositCap(ctx, *caller, newCap); err != nil {
			return err
		}

		return c.NoContent(http.StatusNoContent)
	}
}
