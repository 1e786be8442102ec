package rebalance

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/escion333/autoUSD-sub000/internal/api"
	"github.com/escion333/autoUSD-sub000/internal/types"
	"github.com/escion333/autoUSD-sub000/internal/util"
)

func GetStatusRoute(s *api.Server) *echo.Route {
	return s.Router.APIV1Rebalance.GET("/status", getStatusHandler(s))
}

func getStatusHandler(s *api.Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		st, err := s.Rebalance.Status(ctx)
		if err != nil {
			return err
		}

		res := &types.RebalanceStatusResponse{
			Executing:          st.Executing,
			ExecutionsInWindow: st.ExecutionsInWindow,
			MaxPerWindow:       st.MaxPerWindow,
		}
		if !st.LastRebalanceAt.IsZero() {
			res.LastRebalanceAt = st.LastRebalanceAt.Unix()
		}

		return util.ValidateAndReturn(c, http.StatusOK, res)
	}
}
