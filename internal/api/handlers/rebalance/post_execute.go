package rebalance

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/escion333/autoUSD-sub000/internal/api"
	"github.com/escion333/autoUSD-sub000/internal/auth"
	"github.com/escion333/autoUSD-sub000/internal/util"
)

func PostExecuteRoute(s *api.Server) *echo.Route {
	return s.Router.APIV1Rebalance.POST("/execute", postExecuteHandler(s))
}

// postExecuteHandler evaluates and, if the decision is actionable,
// executes it. The decision is returned either way.
func postExecuteHandler(s *api.Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		caller := auth.CallerFromContext(ctx)
		if caller == nil {
			return echo.ErrUnauthorized
		}
		if err := caller.RequireKeeper(); err != nil {
			return err
		}

		d, err := s.Rebalance.RunOnce(ctx)
		if err != nil {
			return err
		}

		return util.ValidateAndReturn(c, http.StatusOK, decisionResponse(d))
	}
}
