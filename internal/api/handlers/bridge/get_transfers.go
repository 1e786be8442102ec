package bridge

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/escion333/autoUSD-sub000/internal/api"
	"github.com/escion333/autoUSD-sub000/internal/api/httperrors"
	"github.com/escion333/autoUSD-sub000/internal/store"
	"github.com/escion333/autoUSD-sub000/internal/types"
	"github.com/escion333/autoUSD-sub000/internal/util"
)

func GetTransfersRoute(s *api.Server) *echo.Route {
	return s.Router.APIV1Bridge.GET("/transfers", getTransfersHandler(s))
}

// getTransfersHandler lists tracked transfers. ?status=pending (default)
// or ?status=failed.
func getTransfersHandler(s *api.Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		var transfers []*store.PendingTransfer
		var err error

		switch status := c.QueryParam("status"); status {
		case "", "pending":
			transfers, err = s.Bridge.PendingTransfers(ctx)
		case "failed":
			transfers, err = s.Bridge.FailedTransfers(ctx)
		default:
			return httperrors.ErrBadRequestInvalidBody
		}
		if err != nil {
			return err
		}

		res := make([]*types.TransferResponse, 0, len(transfers))
		for _, t := range transfers {
			res = append(res, &types.TransferResponse{
				TransferID:  t.TransferID,
				Amount:      t.Amount,
				DestDomain:  t.DestDomain,
				Recipient:   t.Recipient,
				InitiatedAt: t.InitiatedAt,
				RetryCount:  t.RetryCount,
				Status:      t.Status,
			})
		}

		return util.ValidateAndReturn(c, http.StatusOK, res)
	}
}
