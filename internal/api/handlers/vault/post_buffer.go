package vault

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/escion333/autoUSD-sub000/internal/api"
	"github.com/escion333/autoUSD-sub000/internal/auth"
	"github.com/escion333/autoUSD-sub000/internal/types"
	"github.com/escion333/autoUSD-sub000/internal/util"
)

func PostBufferRoute(s *api.Server) *echo.Route {
	return s.Router.APIV1Vault.POST("/buffer", postBufferHandler(s))
}

func postBufferHandler(s *api.Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		caller := auth.CallerFromContext(ctx)
		if caller == nil {
			return echo.ErrUnauthorized
		}

		var body types.PostBufferPayload
		if err := util.BindAndValidateBody(c, &body); err != nil {
			return err
		}

		if err := s.Ledger.SetBufferEnabled(ctx, *caller, body.Enabled); err != nil {
			return err
		}

		return c.NoContent(http.StatusNoContent)
	}
}
