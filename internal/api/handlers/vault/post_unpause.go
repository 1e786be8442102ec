package vault

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/escion333/autoUSD-sub000/internal/api"
	"github.com/escion333/autoUSD-sub000/internal/auth"
)

func PostUnpauseRoute(s *api.Server) *echo.Route {
	return s.Router.APIV1Vault.POST("/unpause", postUnpauseHandler(s))
}

func postUnpauseHandler(s *api.Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		caller := auth.CallerFromContext(ctx)
		if caller == nil {
			return echo.ErrUnauthorized
		}

		if err := s.Ledger.Unpause(ctx, *caller); err != nil {
			return err
		}

		return c.NoContent(http.StatusNoContent)
	}
}
