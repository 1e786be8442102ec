package vault

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/escion333/autoUSD-sub000/internal/api"
	"github.com/escion333/autoUSD-sub000/internal/auth"
	"github.com/escion333/autoUSD-sub000/internal/types"
	"github.com/escion333/autoUSD-sub000/internal/util"
)

func PostEmergencyWithdrawRoute(s *api.Server) *echo.Route {
	return s.Router.APIV1Vault.POST("/emergency-withdraw", postEmergencyWithdrawHandler(s))
}

func postEmergencyWithdrawHandler(s *api.Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		caller := auth.CallerFromContext(ctx)
		if caller == nil {
			return echo.ErrUnauthorized
		}

		instructed, err := s.Ledger.EmergencyWithdrawAll(ctx, *caller)
		if err != nil {
			return err
		}

		return util.ValidateAndReturn(c, http.StatusAccepted, &types.EmergencyWithdrawResponse{Instructed: instructed})
	}
}
