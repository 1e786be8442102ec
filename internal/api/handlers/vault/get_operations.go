package vault

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/escion333/autoUSD-sub000/internal/api"
	"github.com/escion333/autoUSD-sub000/internal/util"
)

func GetOperationsRoute(s *api.Server) *echo.Route {
	return s.Router.APIV1Vault.GET("/operations", getOperationsHandler(s))
}

// getOperationsHandler lists the open cross-domain operations still
// waiting for a settlement or a timeout.
func getOperationsHandler(s *api.Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		ops, err := s.Store.OpenOperations(c.Request().Context())
		if err != nil {
			return err
		}

		return util.ValidateAndReturn(c, http.StatusOK, operationResponses(ops))
	}
}
