package common

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/escion333/autoUSD-sub000/internal/api"
)

func GetHealthyRoute(s *api.Server) *echo.Route {
	return s.Router.Management.GET("/healthy", getHealthyHandler(s))
}

// getHealthyHandler is the liveness probe. It only proves the process is
// serving requests; readiness covers the dependencies.
func getHealthyHandler(_ *api.Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.String(http.StatusOK, "OK.")
	}
}
