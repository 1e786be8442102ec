package probe

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/escion333/autoUSD-sub000/internal/config"
)

const livenessTimeout = 5 * time.Second

// newLiveness probes the running server's health endpoint, for use as a
// container liveness check.
func newLiveness() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "liveness",
		Short: "Runs a liveness probe against the local server",
		Run: func(cmd *cobra.Command, _ []string) {
			verbose, err := cmd.Flags().GetBool(verboseFlag)
			if err != nil {
				log.Fatal().Err(err).Msg("Failed to parse verbose flag")
			}

			runLiveness(verbose)
		},
	}

	cmd.Flags().BoolP(verboseFlag, "v", false, "Print probe details")

	return cmd
}

func runLiveness(verbose bool) {
	cfg := config.DefaultServiceConfigFromEnv()

	client := &http.Client{Timeout: livenessTimeout}

	url := fmt.Sprintf("http://localhost%s/-/healthy", cfg.Echo.ListenAddress)

	res, err := client.Get(url)
	if err != nil {
		log.Fatal().Err(err).Str("url", url).Msg("Liveness probe failed")
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		log.Fatal().Int("status", res.StatusCode).Str("url", url).Msg("Liveness probe failed")
	}

	if verbose {
		fmt.Fprintf(os.Stdout, "Live: %s returned %d\n", url, res.StatusCode)
	}
}
