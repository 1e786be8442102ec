package api

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/escion333/autoUSD-sub000/internal/metrics"
	"github.com/escion333/autoUSD-sub000/internal/store"
	"github.com/escion333/autoUSD-sub000/internal/vault/bridge"
	"github.com/escion333/autoUSD-sub000/internal/vault/ledger"
	"github.com/escion333/autoUSD-sub000/internal/vault/messenger"
	"github.com/escion333/autoUSD-sub000/internal/vault/rebalance"
	"github.com/escion333/autoUSD-sub000/internal/vault/relay"
)

// InitComponents initializes all server components in dependency order:
// store, metrics, relay clients, messenger, bridge, ledger, rebalance
// engine. Echo and the router are attached separately by router.Init.
func InitComponents(ctx context.Context, s *Server, registerer prometheus.Registerer) error {
	st, err := store.Open(ctx, s.Config.DB.Path)
	if err != nil {
		return errors.Wrap(err, "failed to open store")
	}

	s.Store = st
	s.DB = st.DB()
	s.Metrics = metrics.New(registerer)

	initRelay(s)

	hubAddress := common.HexToAddress(s.Config.Vault.HubAddress)

	s.Messenger = messenger.NewService(st, s.Mailbox, s.Metrics, messenger.Config{
		LocalDomain:   s.Config.Vault.LocalDomain,
		LocalIdentity: hubAddress,
		MessageExpiry: s.Config.Messenger.MessageExpiry,
		MaxRetries:    s.Config.Messenger.MaxRetries,
		GasPayment:    mustParseAmount(s.Config.Relay.GasPayment, "relay gas payment"),
	})

	s.Bridge = bridge.NewService(st, s.TokenMessenger, s.Metrics, hubAddress, bridge.Config{
		MinAmount:     mustParseAmount(s.Config.Bridge.MinAmount, "bridge min amount"),
		MaxAmount:     mustParseAmount(s.Config.Bridge.MaxAmount, "bridge max amount"),
		Timeout:       s.Config.Bridge.Timeout,
		MaxRetryCount: s.Config.Bridge.MaxRetryCount,
	})

	s.Ledger = ledger.NewService(st, s.Bridge, s.Messenger, s.Metrics, ledger.Config{
		DepositCap:         mustParseAmount(s.Config.Vault.DepositCap, "deposit cap"),
		BufferBps:          s.Config.Vault.BufferBps,
		BufferEnabled:      s.Config.Vault.BufferEnabled,
		ManagementFeeBps:   s.Config.Vault.ManagementFeeBps,
		MaxFeeBps:          s.Config.Vault.MaxFeeBps,
		FeeTimelock:        s.Config.Vault.FeeTimelock,
		FeeSink:            common.HexToAddress(s.Config.Vault.FeeSink),
		CrossDomainTimeout: s.Config.Vault.CrossDomainTimeout,
		SettlementGrace:    s.Config.Vault.SettlementGrace,
	})

	s.Rebalance = rebalance.NewService(st, s.Ledger, s.Metrics, rebalance.Config{
		Cooldown:                s.Config.Rebalance.Cooldown,
		DomainCooldown:          s.Config.Rebalance.DomainCooldown,
		MinYieldDifferentialBps: s.Config.Rebalance.MinYieldDifferentialBps,
		MinMoveAmount:           mustParseAmount(s.Config.Rebalance.MinMoveAmount, "min move amount"),
		MaxMoveAmount:           mustParseAmount(s.Config.Rebalance.MaxMoveAmount, "max move amount"),
		MaxCostUSD:              s.Config.Rebalance.MaxCostUSD,
		CostPerLegUSD:           s.Config.Rebalance.CostPerLegUSD,
		MaxPerWindow:            s.Config.Rebalance.MaxPerWindow,
		RateLimitWindow:         s.Config.Rebalance.RateLimitWindow,
	})

	return nil
}

// initRelay selects the relay transport. Configured URLs get the HTTP
// clients; otherwise the in-process loopback keeps local setups and tests
// self-contained.
func initRelay(s *Server) {
	if s.Config.Relay.MailboxURL != "" {
		s.Mailbox = relay.NewHTTPMailbox(s.Config.Relay.MailboxURL)
	} else {
		log.Warn().Msg("No relay mailbox URL configured, using loopback mailbox")
		s.Mailbox = relay.NewLoopbackMailbox()
	}

	if s.Config.Relay.TokenMessengerURL != "" {
		s.TokenMessenger = relay.NewHTTPTokenMessenger(s.Config.Relay.TokenMessengerURL)
	} else {
		log.Warn().Msg("No token messenger URL configured, using loopback token messenger")
		s.TokenMessenger = relay.NewLoopbackTokenMessenger()
	}
}

func mustParseAmount(v, what string) *big.Int {
	amount, ok := new(big.Int).SetString(v, 10)
	if !ok {
		log.Fatal().Str("value", v).Msgf("Failed to parse %s as decimal integer", what)
	}

	return amount
}
