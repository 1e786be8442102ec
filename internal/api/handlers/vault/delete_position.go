package vault

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/escion333/autoUSD-sub000/internal/api"
	"github.com/escion333/autoUSD-sub000/internal/auth"
)

func DeletePositionRoute(s *api.Server) *echo.Route {
	return s.Router.APIV1Vault.DELETE("/positions/:domain", deletePositionHandler(s))
}

func deletePositionHandler(s *api.Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		caller := auth.CallerFromContext(ctx)
		if caller == nil {
			return echo.ErrUnauthorized
		}

		domain, err := parseDomainParam(c)
		if err != nil {
			return err
		}

		if err := s.Ledger.RemovePosition(ctx, *caller, domain); err != nil {
			return err
		}

		return c.NoContent(http.StatusNoContent)
	}
}
