package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/escion333/autoUSD-sub000/internal/api"
	"github.com/escion333/autoUSD-sub000/internal/api/router"
	"github.com/escion333/autoUSD-sub000/internal/config"
	"github.com/escion333/autoUSD-sub000/internal/util/command"
)

const shutdownTimeout = 30 * time.Second

func New() *cobra.Command {
	return &cobra.Command{
		Use:   "server",
		Short: "Starts the server",
		Long: `Starts the stateful HTTP server.
Requires configuration through ENV.`,
		Run: func(_ *cobra.Command, _ []string) {
			runServer()
		},
	}
}

func runServer() {
	cfg := config.DefaultServiceConfigFromEnv()
	command.ConfigureLogger(cfg.Logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := api.NewServer(cfg)

	if err := api.InitComponents(ctx, s, prometheus.DefaultRegisterer); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize server components")
	}

	router.Init(s)

	if cfg.Rebalance.AutoEnabled {
		s.Rebalance.StartAutoRebalance(ctx, cfg.Rebalance.AutoInterval)
	}

	go func() {
		if err := s.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Str("address", cfg.Echo.ListenAddress).Msg("Server started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if errs := s.Shutdown(shutdownCtx); len(errs) > 0 {
		log.Fatal().Errs("errors", errs).Msg("Failed to gracefully shutdown server")
	}
}
