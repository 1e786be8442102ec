package bridge

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/escion333/autoUSD-sub000/internal/api"
	"github.com/escion333/autoUSD-sub000/internal/auth"
)

func PostConfirmTransferRoute(s *api.Server) *echo.Route {
	return s.Router.APIV1Bridge.POST("/transfers/:id/confirm", postConfirmTransferHandler(s))
}

func postConfirmTransferHandler(s *api.Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		caller := auth.CallerFromContext(ctx)
		if caller == nil {
			return echo.ErrUnauthorized
		}
		if err := caller.RequireKeeper(); err != nil {
			return err
		}

		if err := s.Bridge.Confirm(ctx, c.Param("id")); err != nil {
			return err
		}

		return c.NoContent(http.StatusNoContent)
	}
}
