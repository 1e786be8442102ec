package db

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/escion333/autoUSD-sub000/internal/config"
	"github.com/escion333/autoUSD-sub000/internal/store"
)

// newMigrate opens the store, which applies the schema, and exits. Useful
// to prepare a database volume before the first server start.
func newMigrate() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Applies the store schema",
		Run: func(_ *cobra.Command, _ []string) {
			runMigrate()
		},
	}
}

func runMigrate() {
	cfg := config.DefaultServiceConfigFromEnv()

	st, err := store.Open(context.Background(), cfg.DB.Path)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DB.Path).Msg("Failed to open store")
	}
	defer st.Close()

	log.Info().Str("path", cfg.DB.Path).Msg("Schema applied")
}
