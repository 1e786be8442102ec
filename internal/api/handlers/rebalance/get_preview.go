package rebalance

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/escion333/autoUSD-sub000/internal/api"
	"github.com/escion333/autoUSD-sub000/internal/util"
)

func GetPreviewRoute(s *api.Server) *echo.Route {
	return s.Router.APIV1Rebalance.GET("/preview", getPreviewHandler(s))
}

// getPreviewHandler evaluates the current decision without executing it.
func getPreviewHandler(s *api.Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		d, err := s.Rebalance.Evaluate(ctx)
		if err != nil {
			return err
		}

		return util.ValidateAndReturn(c, http.StatusOK, decisionResponse(d))
	}
}
