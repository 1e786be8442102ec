package bridge

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/escion333/autoUSD-sub000/internal/api"
	"github.com/escion333/autoUSD-sub000/internal/auth"
	"github.com/escion333/autoUSD-sub000/internal/types"
	"github.com/escion333/autoUSD-sub000/internal/util"
)

func PostExpireStaleRoute(s *api.Server) *echo.Route {
	return s.Router.APIV1Bridge.POST("/transfers/expire-stale", postExpireStaleHandler(s))
}

// postExpireStaleHandler flags transfers past the bridge timeout or
// retry cap as permanently failed.
func postExpireStaleHandler(s *api.Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		caller := auth.CallerFromContext(ctx)
		if caller == nil {
			return echo.ErrUnauthorized
		}
		if err := caller.RequireKeeper(); err != nil {
			return err
		}

		expired, err := s.Bridge.ExpireStale(ctx)
		if err != nil {
			return err
		}

		return util.ValidateAndReturn(c, http.StatusOK, &types.ExpireStaleResponse{Expired: expired})
	}
}
