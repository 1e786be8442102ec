package db

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/escion333/autoUSD-sub000/internal/config"
	"github.com/escion333/autoUSD-sub000/internal/store"
)

const pingTimeout = 5 * time.Second

func newPing() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Checks the store is reachable",
		Run: func(_ *cobra.Command, _ []string) {
			runPing()
		},
	}
}

func runPing() {
	cfg := config.DefaultServiceConfigFromEnv()

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	st, err := store.Open(ctx, cfg.DB.Path)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DB.Path).Msg("Failed to open store")
	}
	defer st.Close()

	if err := st.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to ping store")
	}

	log.Info().Str("path", cfg.DB.Path).Msg("Store reachable")
}
