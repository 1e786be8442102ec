package probe

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/escion333/autoUSD-sub000/internal/config"
	"github.com/escion333/autoUSD-sub000/internal/store"
)

const readinessTimeout = 5 * time.Second

// newReadiness checks the durable store directly, for use as a container
// readiness check.
func newReadiness() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "readiness",
		Short: "Runs a readiness probe against the durable store",
		Run: func(cmd *cobra.Command, _ []string) {
			verbose, err := cmd.Flags().GetBool(verboseFlag)
			if err != nil {
				log.Fatal().Err(err).Msg("Failed to parse verbose flag")
			}

			runReadiness(verbose)
		},
	}

	cmd.Flags().BoolP(verboseFlag, "v", false, "Print probe details")

	return cmd
}

func runReadiness(verbose bool) {
	cfg := config.DefaultServiceConfigFromEnv()

	ctx, cancel := context.WithTimeout(context.Background(), readinessTimeout)
	defer cancel()

	st, err := store.Open(ctx, cfg.DB.Path)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DB.Path).Msg("Readiness probe failed to open store")
	}
	defer st.Close()

	if err := st.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("Readiness probe failed to ping store")
	}

	if verbose {
		fmt.Fprintf(os.Stdout, "Ready: store at %s reachable\n", cfg.DB.Path)
	}
}
