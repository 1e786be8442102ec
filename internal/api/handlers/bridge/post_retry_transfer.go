package bridge

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/escion333/autoUSD-sub000/internal/api"
	"github.com/escion333/autoUSD-sub000/internal/auth"
	"github.com/escion333/autoUSD-sub000/internal/types"
	"github.com/escion333/autoUSD-sub000/internal/util"
)

func PostRetryTransferRoute(s *api.Server) *echo.Route {
	return s.Router.APIV1Bridge.POST("/transfers/:id/retry", postRetryTransferHandler(s))
}

// postRetryTransferHandler re-initiates the burn for a transfer that
// never confirmed. force bypasses the backoff schedule and the failed
// flag and is admin-only.
func postRetryTransferHandler(s *api.Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		caller := auth.CallerFromContext(ctx)
		if caller == nil {
			return echo.ErrUnauthorized
		}

		var body types.PostRetryTransferPayload
		if err := util.BindAndValidateBody(c, &body); err != nil {
			return err
		}

		if body.Force {
			if err := caller.RequireAdmin(); err != nil {
				return err
			}
		} else if err := caller.RequireKeeper(); err != nil {
			return err
		}

		if err := s.Bridge.Retry(ctx, c.Param("id"), body.Force); err != nil {
			return err
		}

		return c.NoContent(http.StatusNoContent)
	}
}
