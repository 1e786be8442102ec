package msg

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/escion333/autoUSD-sub000/internal/api"
	"github.com/escion333/autoUSD-sub000/internal/types"
	"github.com/escion333/autoUSD-sub000/internal/util"
	"github.com/escion333/autoUSD-sub000/internal/vault/messenger"
)

func GetFailedMessagesRoute(s *api.Server) *echo.Route {
	return s.Router.APIV1Messenger.GET("/failed", getFailedMessagesHandler(s))
}

func getFailedMessagesHandler(s *api.Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		msgs, err := s.Messenger.FailedMessages(ctx)
		if err != nil {
			return err
		}

		res := make([]*types.FailedMessageResponse, 0, len(msgs))
		for _, m := range msgs {
			res = append(res, &types.FailedMessageResponse{
				ID:          m.ID,
				MessageType: messenger.MessageType(m.MessageType).String(),
				DestDomain:  m.DestDomain,
				Recipient:   m.Recipient,
				Attempts:    m.Attempts,
				LastAttempt: m.LastAttempt,
				Resolved:    m.Resolved,
			})
		}

		return util.ValidateAndReturn(c, http.StatusOK, res)
	}
}
