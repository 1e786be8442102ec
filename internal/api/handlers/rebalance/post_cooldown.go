package rebalance

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/escion333/autoUSD-sub000/internal/api"
	"github.com/escion333/autoUSD-sub000/internal/api/httperrors"
	"github.com/escion333/autoUSD-sub000/internal/auth"
	"github.com/escion333/autoUSD-sub000/internal/types"
	"github.com/escion333/autoUSD-sub000/internal/util"
)

func PostCooldownRoute(s *api.Server) *echo.Route {
	return s.Router.APIV1Rebalance.POST("/cooldown", postCooldownHandler(s))
}

func postCooldownHandler(s *api.Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		caller := auth.CallerFromContext(ctx)
		if caller == nil {
			return echo.ErrUnauthorized
		}

		var body types.PostCooldownPayload
		if err := util.BindAndValidateBody(c, &body); err != nil {
			return err
		}
		if body.CooldownSeconds < 0 {
			return httperrors.ErrBadRequestInvalidBody
		}

		cooldown := time.Duration(body.CooldownSeconds) * time.Second
		if err := s.Rebalance.SetCooldown(ctx, *caller, cooldown); err != nil {
			return err
		}

		return c.NoContent(http.StatusNoContent)
	}
}
