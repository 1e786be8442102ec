package router

import (
	"net/http"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"

	"github.com/escion333/autoUSD-sub000/internal/api"
	"github.com/escion333/autoUSD-sub000/internal/api/handlers/bridge"
	"github.com/escion333/autoUSD-sub000/internal/api/handlers/common"
	"github.com/escion333/autoUSD-sub000/internal/api/handlers/msg"
	"github.com/escion333/autoUSD-sub000/internal/api/handlers/rebalance"
	"github.com/escion333/autoUSD-sub000/internal/api/handlers/vault"
	"github.com/escion333/autoUSD-sub000/internal/api/httperrors"
	"github.com/escion333/autoUSD-sub000/internal/api/middleware"
	"github.com/escion333/autoUSD-sub000/internal/types"
)

// Init attaches echo, the middleware stack and every route to the server.
func Init(s *api.Server) {
	s.Echo = echo.New()
	s.Echo.HideBanner = true
	s.Echo.HidePort = true
	s.Echo.HTTPErrorHandler = errorHandler(s)

	s.Echo.Use(echoMiddleware.Recover())
	s.Echo.Use(echoMiddleware.RequestID())
	s.Echo.Use(middleware.Logger())

	if s.Config.Echo.EnableMetricsMiddleware {
		s.Echo.Use(echoprometheus.NewMiddleware("autousd"))
	}

	s.Router = &api.Router{
		Root:           s.Echo.Group(""),
		Management:     s.Echo.Group("/-"),
		APIV1Vault:     s.Echo.Group("/api/v1/vault", middleware.BearerAuth(s.Config.Auth)),
		APIV1Rebalance: s.Echo.Group("/api/v1/rebalance", middleware.BearerAuth(s.Config.Auth)),
		APIV1Messenger: s.Echo.Group("/api/v1/messenger", middleware.BearerAuth(s.Config.Auth)),
		APIV1Bridge:    s.Echo.Group("/api/v1/bridge", middleware.BearerAuth(s.Config.Auth)),
	}

	s.Router.Management.GET("/metrics", echoprometheus.NewHandler())

	attachAllRoutes(s)
}

func attachAllRoutes(s *api.Server) {
	s.Router.Routes = []*echo.Route{
		common.GetHealthyRoute(s),
		common.GetReadyRoute(s),

		vault.GetOverviewRoute(s),
		vault.GetPositionsRoute(s),
		vault.GetOperationsRoute(s),
		vault.PostDepositRoute(s),
		vault.PostWithdrawRoute(s),
		vault.PostRegisterPositionRoute(s),
		vault.PostDeactivatePositionRoute(s),
		vault.DeletePositionRoute(s),
		vault.PostDeployRoute(s),
		vault.PostInitiateWithdrawalRoute(s),
		vault.PostCollectFeesRoute(s),
		vault.PostProposeFeeRoute(s),
		vault.PostExecuteFeeRoute(s),
		vault.PostPauseRoute(s),
		vault.PostUnpauseRoute(s),
		vault.PostEmergencyWithdrawRoute(s),
		vault.PostDepositCapRoute(s),
		vault.PostBufferRoute(s),
		vault.PostTimeoutScanRoute(s),

		rebalance.GetPreviewRoute(s),
		rebalance.GetStatusRoute(s),
		rebalance.PostExecuteRoute(s),
		rebalance.PostCooldownRoute(s),
		rebalance.PostMinDifferentialRoute(s),

		msg.PostInboundRoute(s),
		msg.GetFailedMessagesRoute(s),
		msg.PostRetryMessageRoute(s),

		bridge.PostSettlementRoute(s),
		bridge.GetTransfersRoute(s),
		bridge.PostRetryTransferRoute(s),
		bridge.PostConfirmTransferRoute(s),
		bridge.PostExpireStaleRoute(s),
	}
}

// errorHandler renders domain and echo errors as the public JSON error
// shape, hiding internals when configured to.
func errorHandler(s *api.Server) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		mapped := httperrors.FromDomain(err)

		var body types.PublicHTTPError
		switch e := mapped.(type) {
		case *httperrors.HTTPError:
			body = e.PublicHTTPError
		case *echo.HTTPError:
			body = types.PublicHTTPError{
				Code:  e.Code,
				Type:  types.PublicHTTPErrorTypeGeneric,
				Title: http.StatusText(e.Code),
			}
			if msg, ok := e.Message.(string); ok {
				body.Detail = msg
			}
		default:
			body = types.PublicHTTPError{
				Code:  http.StatusInternalServerError,
				Type:  types.PublicHTTPErrorTypeGeneric,
				Title: http.StatusText(http.StatusInternalServerError),
			}
			if !s.Config.Echo.HideInternalServerErrorDetails {
				body.Detail = err.Error()
			}
		}

		if body.Code >= http.StatusInternalServerError {
			log.Error().Err(err).Str("path", c.Path()).Msg("Request failed")
		}

		if jerr := c.JSON(body.Code, body); jerr != nil {
			log.Error().Err(jerr).Msg("Failed to write error response")
		}
	}
}
