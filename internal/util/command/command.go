package command

import (
	"context"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/escion333/autoUSD-sub000/internal/api"
	"github.com/escion333/autoUSD-sub000/internal/config"
	"github.com/escion333/autoUSD-sub000/internal/util"
)

// NewSubcommandGroup returns a command that only exists to group its
// subcommands; calling it bare prints usage.
func NewSubcommandGroup(use string, subcommands ...*cobra.Command) *cobra.Command {
	cmd := &cobra.Command{
		Use: use,
		Run: func(cmd *cobra.Command, _ []string) {
			if err := cmd.Help(); err != nil {
				log.Error().Err(err).Msg("Failed to print help")
			}
			os.Exit(0)
		},
	}

	cmd.AddCommand(subcommands...)

	return cmd
}

// WithServer initializes logging and a fully wired server from config,
// runs f against it and shuts the server down afterwards. Intended for
// one-shot maintenance subcommands.
func WithServer(ctx context.Context, cfg config.Server, f func(ctx context.Context, s *api.Server) error) error {
	ConfigureLogger(cfg.Logger)

	s := api.NewServer(cfg)
	if err := api.InitComponents(ctx, s, prometheus.NewRegistry()); err != nil {
		return err
	}

	defer func() {
		if errs := s.Shutdown(ctx); len(errs) > 0 {
			log.Error().Errs("errors", errs).Msg("Failed to shutdown server")
		}
	}()

	return f(ctx, s)
}

// ConfigureLogger applies the log level and output format from config to
// the global zerolog logger.
func ConfigureLogger(cfg config.Logger) {
	zerolog.SetGlobalLevel(util.LogLevelFromString(cfg.Level))

	if cfg.PrettyPrintConsole {
		log.Logger = log.Output(zerolog.NewConsoleWriter())
	}
}
