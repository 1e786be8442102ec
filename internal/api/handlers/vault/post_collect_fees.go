package vault

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/escion333/autoUSD-sub000/internal/api"
	"github.com/escion333/autoUSD-sub000/internal/auth"
	"github.com/escion333/autoUSD-sub000/internal/types"
	"github.com/escion333/autoUSD-sub000/internal/util"
)

func PostCollectFeesRoute(s *api.Server) *echo.Route {
	return s.Router.APIV1Vault.POST("/collect-fees", postCollectFeesHandler(s))
}

func postCollectFeesHandler(s *api.Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		caller := auth.CallerFromContext(ctx)
		if caller == nil {
			return echo.ErrUnauthorized
		}

		fee, err := s.Ledger.CollectFees(ctx, *caller)
		if err != nil {
			return err
		}

		return util.ValidateAndReturn(c, http.StatusOK, &types.CollectFeesResponse{Fee: fee.String()})
	}
}
