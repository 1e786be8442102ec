package vault

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/escion333/autoUSD-sub000/internal/api"
	"github.com/escion333/autoUSD-sub000/internal/util"
)

func GetOverviewRoute(s *api.Server) *echo.Route {
	return s.Router.APIV1Vault.GET("", getOverviewHandler(s))
}

func getOverviewHandler(s *api.Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		return util.ValidateAndReturn(c, http.StatusOK, overviewResponse(s.Ledger.Overview()))
	}
}
