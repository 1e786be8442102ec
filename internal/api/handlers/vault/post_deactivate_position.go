package vault

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/escion333/autoUSD-sub000/internal/api"
	"github.com/escion333/autoUSD-sub000/internal/auth"
	"github.com/escion333/autoUSD-sub000/internal/util"
)

func PostDeactivatePositionRoute(s *api.Server) *echo.Route {
	return s.Router.APIV1Vault.POST("/positions/:domain/deactivate", postDeactivatePositionHandler(s))
}

func postDeactivatePositionHandler(s *api.Server) echo.HandlerFunc {
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

		if err := s.Ledger.DeactivatePosition(ctx, *caller, domain); err != nil {
			return err
		}

		pos, err := s.Ledger.Position(domain)
		if err != nil {
			return err
		}

		return util.ValidateAndReturn(c, http.StatusOK, positionResponse(pos))
	}
}

func parseDomainParam(c echo.Context) (uint32, error) {
	domain, err := strconv.ParseUint(c.Param("domain"), 10, 32)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "domain must be a uint32").SetInternal(err)
	}

	return uint32(domain), nil
}
