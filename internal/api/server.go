package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/escion333/autoUSD-sub000/internal/config"
	"github.com/escion333/autoUSD-sub000/internal/metrics"
	"github.com/escion333/autoUSD-sub000/internal/store"
	"github.com/escion333/autoUSD-sub000/internal/util"
	"github.com/escion333/autoUSD-sub000/internal/vault/bridge"
	"github.com/escion333/autoUSD-sub000/internal/vault/ledger"
	"github.com/escion333/autoUSD-sub000/internal/vault/messenger"
	"github.com/escion333/autoUSD-sub000/internal/vault/rebalance"
	"github.com/escion333/autoUSD-sub000/internal/vault/relay"
)

// LedgerService interface for hub accounting operations
// Alias to ledger.Service for API access
type LedgerService = ledger.Service

// MessengerService interface for cross-domain messaging operations
type MessengerService = messenger.Service

// BridgeService interface for asset transfer operations
type BridgeService = bridge.Service

// RebalanceService interface for rebalance operations
type RebalanceService = rebalance.Service

type Router struct {
	Routes         []*echo.Route
	Root           *echo.Group
	Management     *echo.Group
	APIV1Vault     *echo.Group
	APIV1Rebalance *echo.Group
	APIV1Messenger *echo.Group
	APIV1Bridge    *echo.Group
}

// Server is a central struct keeping all the dependencies. Components are
// initialized by InitComponents in dependency order; Echo and Router are
// attached afterwards by router.Init.
type Server struct {
	Echo   *echo.Echo
	Router *Router

	Config         config.Server
	DB             *sql.DB
	Store          *store.Store
	Metrics        *metrics.Service
	Mailbox        relay.Mailbox
	TokenMessenger relay.TokenMessenger
	Messenger      MessengerService
	Bridge         BridgeService
	Ledger         LedgerService
	Rebalance      RebalanceService
}

func NewServer(config config.Server) *Server {
	s := &Server{
		Config: config,
	}

	return s
}

func (s *Server) Ready() bool {
	if err := util.IsStructInitialized(s); err != nil {
		log.Debug().Err(err).Msg("Server is not fully initialized")
		return false
	}

	return true
}

func (s *Server) Start() error {
	if !s.Ready() {
		return errors.New("server is not ready")
	}

	if err := s.Echo.Start(s.Config.Echo.ListenAddress); err != nil {
		return fmt.Errorf("failed to start echo server: %w", err)
	}

	return nil
}

func (s *Server) Shutdown(ctx context.Context) []error {
	log.Warn().Msg("Shutting down server")

	var errs []error

	if s.Store != nil {
		log.Debug().Msg("Closing store")

		if err := s.Store.Close(); err != nil && !errors.Is(err, sql.ErrConnDone) {
			log.Error().Err(err).Msg("Failed to close store")
			errs = append(errs, err)
		}
	}

	if s.Echo != nil {
		log.Debug().Msg("Shutting down echo server")

		if err := s.Echo.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Failed to shutdown echo server")
			errs = append(errs, err)
		}
	}

	return errs
}
