package rebalance

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/escion333/autoUSD-sub000/internal/api"
	"github.com/escion333/autoUSD-sub000/internal/api/httperrors"
	"github.com/escion333/autoUSD-sub000/internal/auth"
	"github.com/escion333/autoUSD-sub000/internal/types"
	"github.com/escion333/autoUSD-sub000/internal/util"
)

func PostMinDifferentialRoute(s *api.Server) *echo.Route {
	return s.Router.APIV1Rebalance.POST("/min-differential", postMinDifferentialHandler(s))
}

func postMinDifferentialHandler(s *api.Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		caller := auth.CallerFromContext(ctx)
		if caller == nil {
			return echo.ErrUnauthorized
		}

		var body types.PostMinDifferentialPayload
		if err := util.BindAndValidateBody(c, &body); err != nil {
			return err
		}
		if body.MinDifferentialBps < 0 {
			return httperrors.ErrBadRequestInvalidBody
		}

		if err := s.Rebalance.SetMinYieldDifferential(ctx, *caller, body.MinDifferentialBps); err != nil {
			return err
		}

		return c.NoContent(http.StatusNoContent)
	}
}
