package msg

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/escion333/autoUSD-sub000/internal/api"
	"github.com/escion333/autoUSD-sub000/internal/api/httperrors"
	"github.com/escion333/autoUSD-sub000/internal/auth"
	"github.com/escion333/autoUSD-sub000/internal/types"
	"github.com/escion333/autoUSD-sub000/internal/util"
)

func PostRetryMessageRoute(s *api.Server) *echo.Route {
	return s.Router.APIV1Messenger.POST("/failed/:id/retry", postRetryMessageHandler(s))
}

// postRetryMessageHandler re-dispatches a queued message. force bypasses
// the backoff schedule and the attempt cap and is admin-only.
func postRetryMessageHandler(s *api.Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		caller := auth.CallerFromContext(ctx)
		if caller == nil {
			return echo.ErrUnauthorized
		}

		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			return httperrors.ErrBadRequestInvalidBody.WithInternal(err)
		}

		var body types.PostRetryMessagePayload
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

		if err := s.Messenger.RetryFailed(ctx, id, body.Force); err != nil {
			return err
		}

		return c.NoContent(http.StatusNoContent)
	}
}
