package vault

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/escion333/autoUSD-sub000/internal/api"
	"github.com/escion333/autoUSD-sub000/internal/auth"
	"github.com/escion333/autoUSD-sub000/internal/types"
	"github.com/escion333/autoUSD-sub000/internal/util"
)

func PostTimeoutScanRoute(s *api.Server) *echo.Route {
	return s.Router.APIV1Vault.POST("/timeout-scan", postTimeoutScanHandler(s))
}

// postTimeoutScanHandler sweeps pending cross-domain operations that
// outlived the timeout, reverting stale deployments and flagging stale
// withdrawals for operator review.
func postTimeoutScanHandler(s *api.Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		caller := auth.CallerFromContext(ctx)
		if caller == nil {
			return echo.ErrUnauthorized
		}

		reverted, flagged, err := s.Ledger.RecoverTimeouts(ctx, *caller)
		if err != nil {
			return err
		}

		return util.ValidateAndReturn(c, http.StatusOK, &types.TimeoutScanResponse{
			Reverted: reverted,
			Flagged:  flagged,
		})
	}
}
